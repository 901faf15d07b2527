package namechain

import (
	"bytes"
	"testing"

	btcdscript "github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/namechain/txscript"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// TestOpenInMemory 测试内存模式下节点的打开与关闭。
func TestOpenInMemory(t *testing.T) {
	t.Parallel()

	opt := DefaultOptions().BuildNetwork("regtest").BuildInMemory(true)
	node, err := Open(opt)
	require.NoError(t, err)
	require.True(t, opt.IsOpened)
	require.Equal(t, "regtest", node.Params().Name)

	_, err = Open(opt)
	require.Error(t, err)

	height, err := node.Coins().BestHeight()
	require.NoError(t, err)
	require.EqualValues(t, -1, height)
	require.EqualValues(t, -1, node.MemPool().BestHeight())

	require.NoError(t, node.Close())
	require.False(t, opt.IsOpened)
	require.NoError(t, node.Close())
}

// TestNodeLifecycle 测试区块连接、交易提交以及重启后内存池的恢复。
func TestNodeLifecycle(t *testing.T) {
	root := t.TempDir()
	t.Cleanup(func() {
		logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	})

	opt := DefaultOptions().BuildNetwork("regtest").BuildRootPath(root).BuildInstanceId("lifecycle")
	node, err := Open(opt)
	require.NoError(t, err)

	key := testKey(t, 0)
	address := p2pkhScript(key)

	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: wire.MaxPrevOutIndex}, []byte{0x51, 0x51}, nil))
	coinbase.AddTxOut(wire.NewTxOut(2500000000, address))
	coinbase.AddTxOut(wire.NewTxOut(2500000000, address))

	_, err = node.ConnectBlock([]*wire.MsgTx{coinbase}, 1)
	require.NoError(t, err)
	_, err = node.ConnectBlock(nil, 120)
	require.NoError(t, err)

	// 名字注册被打包后写入名字索引
	firstUpdate, err := txscript.BuildNameFirstUpdate(address, []byte("d/node"),
		bytes.Repeat([]byte{0x07}, 20), []byte("value"))
	require.NoError(t, err)
	nameTx := wire.NewMsgTx(NamecoinTxVersion)
	nameTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: coinbase.TxHash(), Index: 1}, nil, nil))
	nameTx.AddTxOut(wire.NewTxOut(1000000, firstUpdate))
	_, err = node.ConnectBlock([]*wire.MsgTx{nameTx}, 121)
	require.NoError(t, err)

	rec, err := node.Names().GetName([]byte("d/node"))
	require.NoError(t, err)
	require.EqualValues(t, 121, rec.Height)

	// 成熟的 coinbase 输出可以花费
	spend := wire.NewMsgTx(1)
	spend.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: coinbase.TxHash(), Index: 0}, nil, nil))
	spend.AddTxOut(wire.NewTxOut(2500000000-harnessFee, address))
	sigScript, err := btcdscript.SignatureScript(spend, 0, address, btcdscript.SigHashAll, key, true)
	require.NoError(t, err)
	spend.TxIn[0].SignatureScript = sigScript

	_, err = node.SubmitTx(spend)
	require.NoError(t, err)
	require.Equal(t, 1, node.MemPool().Count())

	require.NoError(t, node.Close())

	// 重新打开后恢复最新高度与内存池
	reopened, err := Open(opt)
	require.NoError(t, err)
	defer reopened.Close()

	require.EqualValues(t, 121, reopened.MemPool().BestHeight())
	txid := spend.TxHash()
	require.True(t, reopened.MemPool().HaveTx(&txid))

	// 名字过期后索引可以查到
	_, err = reopened.ConnectBlock(nil, 121+reopened.Params().NameExpirationDepth)
	require.NoError(t, err)
	expired, err := reopened.Names().ExpiredNames(121 + reopened.Params().NameExpirationDepth)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("d/node")}, expired)

	// 打包内存池中的交易
	removed, err := reopened.ConnectBlock([]*wire.MsgTx{spend}, 200)
	require.NoError(t, err)
	require.Empty(t, removed)
	require.Zero(t, reopened.MemPool().Count())
	require.True(t, reopened.Coins().HaveCoin(wire.OutPoint{Hash: txid, Index: 0}))
}
