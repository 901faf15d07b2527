package namechain

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcdscript "github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/namechain/netparams"
	"github.com/qinglongcn/namechain/txscript"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip32"
)

// testSeed 是派生测试私钥使用的固定种子。
var testSeed = bytes.Repeat([]byte{0x3c}, 32)

// testKey 从固定种子派生第 i 个私钥。
func testKey(t testing.TB, i uint32) *btcec.PrivateKey {
	t.Helper()

	master, err := bip32.NewMasterKey(testSeed)
	require.NoError(t, err)
	child, err := master.NewChildKey(i)
	require.NoError(t, err)

	priv, _ := btcec.PrivKeyFromBytes(child.Key)
	return priv
}

// p2pkhScript 返回支付到私钥对应压缩公钥哈希的脚本。
func p2pkhScript(priv *btcec.PrivateKey) []byte {
	var dest txscript.PubKeyHashDestination
	copy(dest[:], btcutil.Hash160(priv.PubKey().SerializeCompressed()))
	return txscript.ScriptForDestination(dest)
}

// fakeTxid 返回第 n 个虚构的交易哈希。
func fakeTxid(n uint32) chainhash.Hash {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], n)
	return chainhash.HashH(buf[:])
}

// poolHarness 用内存币数据库和固定私钥构造、签名并提交交易。
type poolHarness struct {
	t       *testing.T
	key     *btcec.PrivateKey
	address []byte
	coins   *CoinStore
	pool    *MemPool
	scripts map[wire.OutPoint][]byte
	next    uint32
}

const (
	harnessHeight = 200
	harnessFee    = 10000
)

func newPoolHarness(t *testing.T) *poolHarness {
	t.Helper()

	coins, err := OpenCoinStore("", true)
	require.NoError(t, err)
	t.Cleanup(func() { coins.Close() })

	key := testKey(t, 0)
	h := &poolHarness{
		t:       t,
		key:     key,
		address: p2pkhScript(key),
		coins:   coins,
		scripts: make(map[wire.OutPoint][]byte),
	}
	h.pool = NewMemPool(&MemPoolConfig{
		Params:     &netparams.RegressionNetParams,
		Coins:      coins,
		BestHeight: harnessHeight,
	})
	return h
}

// fund 向币数据库加入一个属于 h.key 的输出。
func (h *poolHarness) fund(value int64, height int32, coinbase bool) wire.OutPoint {
	return h.fundScript(h.address, value, height, coinbase)
}

// fundScript 向币数据库加入一个任意脚本的输出。
func (h *poolHarness) fundScript(pkScript []byte, value int64, height int32, coinbase bool) wire.OutPoint {
	h.t.Helper()

	h.next++
	op := wire.OutPoint{Hash: fakeTxid(h.next), Index: 0}
	coin := &Coin{TxOut: wire.NewTxOut(value, pkScript), Height: height, Coinbase: coinbase}
	require.NoError(h.t, h.coins.AddCoin(op, coin))
	h.scripts[op] = pkScript
	return op
}

// spend 构造花费 ins 的交易并用 h.key 签名每个输入，交易的输出登记为以后可花费。
func (h *poolHarness) spend(version int32, ins []wire.OutPoint, outs ...*wire.TxOut) *wire.MsgTx {
	h.t.Helper()

	tx := wire.NewMsgTx(version)
	for _, op := range ins {
		tx.AddTxIn(wire.NewTxIn(&op, nil, nil))
	}
	for _, out := range outs {
		tx.AddTxOut(out)
	}
	h.sign(tx, h.key)

	txid := tx.TxHash()
	for i, out := range tx.TxOut {
		h.scripts[wire.OutPoint{Hash: txid, Index: uint32(i)}] = out.PkScript
	}
	return tx
}

// sign 用 key 重新签名交易的所有输入。
func (h *poolHarness) sign(tx *wire.MsgTx, key *btcec.PrivateKey) {
	h.t.Helper()

	for i, txIn := range tx.TxIn {
		pkScript, ok := h.scripts[txIn.PreviousOutPoint]
		require.True(h.t, ok, "unknown previous output %v", txIn.PreviousOutPoint)

		sigScript, err := btcdscript.SignatureScript(tx, i, pkScript, btcdscript.SigHashAll, key, true)
		require.NoError(h.t, err)
		txIn.SignatureScript = sigScript
	}
}

// payment 返回支付到 h.key 的输出。
func (h *poolHarness) payment(value int64) *wire.TxOut {
	return wire.NewTxOut(value, h.address)
}

// nameOut 返回金额为 value 的名字输出。
func (h *poolHarness) nameOut(script []byte, err error) *wire.TxOut {
	h.t.Helper()

	require.NoError(h.t, err)
	return wire.NewTxOut(1000000, script)
}

// confirm 把交易的第 index 个输出作为高度 height 的已确认输出写入币数据库。
func (h *poolHarness) confirm(tx *wire.MsgTx, index uint32, height int32) wire.OutPoint {
	h.t.Helper()

	op := wire.OutPoint{Hash: tx.TxHash(), Index: index}
	require.NoError(h.t, h.coins.AddCoin(op, &Coin{TxOut: tx.TxOut[index], Height: height}))
	return op
}

// requireRejectCode 断言 err 是携带 code 的 TxRuleError。
func requireRejectCode(t testing.TB, err error, code wire.RejectCode) {
	t.Helper()

	require.Error(t, err)
	got, ok := RejectCodeOf(err)
	require.True(t, ok, "error %v is not a rule error", err)
	require.Equal(t, code, got, "unexpected reject code for %v", err)
}
