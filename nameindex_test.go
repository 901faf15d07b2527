package namechain

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/namechain/netparams"
	"github.com/qinglongcn/namechain/txscript"
	"github.com/stretchr/testify/require"
)

func openTestNameIndex(t *testing.T) *NameIndex {
	t.Helper()

	index, err := OpenNameIndex(":memory:", &netparams.RegressionNetParams)
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })
	return index
}

// TestNameIndexRecords 测试名字记录的增删查。
func TestNameIndexRecords(t *testing.T) {
	t.Parallel()

	index := openTestNameIndex(t)

	_, err := index.GetName([]byte("d/missing"))
	require.ErrorIs(t, err, ErrNameNotFound)
	require.ErrorIs(t, index.DeleteName([]byte("d/missing")), ErrNameNotFound)

	records := []*NameRecord{
		{Name: []byte("d/b"), Value: []byte("2"), OutPoint: wire.OutPoint{Hash: fakeTxid(2), Index: 1}, Height: 20, Class: txscript.PubKeyHashTy},
		{Name: []byte("d/a"), Value: nil, OutPoint: wire.OutPoint{Hash: fakeTxid(1)}, Height: 10, Class: txscript.ScriptHashTy},
		{Name: []byte("id/c"), Value: []byte("3"), OutPoint: wire.OutPoint{Hash: fakeTxid(3)}, Height: 30, Address: "addr", Class: txscript.WitnessV0PubKeyHashTy},
	}
	for _, rec := range records {
		require.NoError(t, index.UpsertName(rec))
	}

	got, err := index.GetName([]byte("d/a"))
	require.NoError(t, err)
	require.Empty(t, got.Value)
	require.Equal(t, records[1].OutPoint, got.OutPoint)
	require.Equal(t, txscript.ScriptHashTy, got.Class)

	// 覆盖写入
	updated := *records[0]
	updated.Value = []byte("22")
	updated.Height = 25
	require.NoError(t, index.UpsertName(&updated))
	got, err = index.GetName([]byte("d/b"))
	require.NoError(t, err)
	require.Equal(t, []byte("22"), got.Value)
	require.EqualValues(t, 25, got.Height)

	n, err := index.Count()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	list, err := index.ListNames(nil, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []byte("d/a"), list[0].Name)
	require.Equal(t, []byte("id/c"), list[2].Name)

	list, err = index.ListNames([]byte("d/b"), 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, []byte("d/b"), list[0].Name)

	require.NoError(t, index.DeleteName([]byte("d/a")))
	n, err = index.Count()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	tooLong := &NameRecord{Name: bytes.Repeat([]byte{'x'}, netparams.MaxNameLength+1)}
	require.Error(t, index.UpsertName(tooLong))
}

// TestNameIndexExpiredNames 测试按高度查询过期名字。
func TestNameIndexExpiredNames(t *testing.T) {
	t.Parallel()

	index := openTestNameIndex(t)
	depth := netparams.RegressionNetParams.NameExpirationDepth

	for i, height := range []int32{100, 110, 120} {
		require.NoError(t, index.UpsertName(&NameRecord{
			Name:     []byte{'n', byte('0' + i)},
			Value:    []byte("v"),
			OutPoint: wire.OutPoint{Hash: fakeTxid(uint32(i))},
			Height:   height,
			Class:    txscript.PubKeyHashTy,
		}))
	}

	expired, err := index.ExpiredNames(100 + depth - 1)
	require.NoError(t, err)
	require.Empty(t, expired)

	expired, err = index.ExpiredNames(110 + depth)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("n0"), []byte("n1")}, expired)
}

// TestNameIndexApplyTx 测试从交易中提取名字操作。
func TestNameIndexApplyTx(t *testing.T) {
	t.Parallel()

	index := openTestNameIndex(t)
	address := p2pkhScript(testKey(t, 1))

	nameNew, err := txscript.BuildNameNew(address, bytes.Repeat([]byte{0x01}, 20))
	require.NoError(t, err)
	tx := wire.NewMsgTx(NamecoinTxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: fakeTxid(9)}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000000, nameNew))

	updated, err := index.ApplyTx(tx, 5)
	require.NoError(t, err)
	require.Empty(t, updated)

	firstUpdate, err := txscript.BuildNameFirstUpdate(address, []byte("d/site"),
		bytes.Repeat([]byte{0x02}, 20), []byte("hello"))
	require.NoError(t, err)
	tx = wire.NewMsgTx(NamecoinTxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: fakeTxid(10)}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(50000, address))
	tx.AddTxOut(wire.NewTxOut(1000000, firstUpdate))

	updated, err = index.ApplyTx(tx, 17)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("d/site")}, updated)

	rec, err := index.GetName([]byte("d/site"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), rec.Value)
	require.Equal(t, wire.OutPoint{Hash: tx.TxHash(), Index: 1}, rec.OutPoint)
	require.EqualValues(t, 17, rec.Height)
	require.Equal(t, txscript.PubKeyHashTy, rec.Class)

	dest, ok := txscript.ExtractDestination(address)
	require.True(t, ok)
	want, err := txscript.EncodeDestination(dest, netparams.RegressionNetParams.Params)
	require.NoError(t, err)
	require.Equal(t, want, rec.Address)
}
