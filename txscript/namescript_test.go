package txscript

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseNameScript 检查三种名字操作的解析以及不是名字脚本的情形。
func TestParseNameScript(t *testing.T) {
	t.Parallel()

	addr := p2pkhScript(bytes.Repeat([]byte{0x11}, 20))
	hash := bytes.Repeat([]byte{0x22}, 20)
	name := []byte("d/example")
	value := []byte(`{"ip":"192.0.2.1"}`)
	rand := bytes.Repeat([]byte{0x33}, 8)

	nameNew, err := BuildNameNew(addr, hash)
	require.NoError(t, err)
	firstUpdate, err := BuildNameFirstUpdate(addr, name, rand, value)
	require.NoError(t, err)
	update, err := BuildNameUpdate(addr, name, value)
	require.NoError(t, err)

	require.Equal(t, append(append(append([]byte{OP_NAME_NEW, OP_DATA_20}, hash...),
		OP_2DROP), addr...), nameNew)

	tests := []struct {
		name    string
		script  []byte
		op      NameOp
		args    [][]byte
		address []byte
	}{
		{"name_new", nameNew, NameNew, [][]byte{hash}, addr},
		{"name_firstupdate", firstUpdate, NameFirstUpdate, [][]byte{name, rand, value}, addr},
		{"name_update", update, NameUpdate, [][]byte{name, value}, addr},
		{
			"OP_NOP as separator",
			append(append(appendPush(appendPush([]byte{OP_NAME_UPDATE}, name), value),
				OP_NOP), addr...),
			NameUpdate,
			[][]byte{name, value},
			addr,
		},
		{
			"empty address",
			append(appendPush([]byte{OP_NAME_NEW}, hash), OP_2DROP),
			NameNew,
			[][]byte{hash},
			[]byte{},
		},
	}

	for _, test := range tests {
		ns, ok := ParseNameScript(test.script)
		require.True(t, ok, test.name)
		require.Equal(t, test.op, ns.Op, test.name)
		require.Equal(t, test.args, ns.Args, test.name)
		require.Equal(t, test.address, ns.Address, test.name)
		require.True(t, IsNameScript(test.script), test.name)
		require.Equal(t, test.address, StripNamePrefix(test.script), test.name)
	}

	notName := []struct {
		name   string
		script []byte
	}{
		{"empty", nil},
		{"plain p2pkh", addr},
		{"missing separator", appendPush([]byte{OP_NAME_NEW}, hash)},
		{"too few arguments", append(appendPush([]byte{OP_NAME_UPDATE}, name), OP_2DROP)},
		{"too many arguments", append(appendPush(appendPush([]byte{OP_NAME_NEW}, hash), hash), OP_2DROP)},
		{"non-push argument", append(appendPush([]byte{OP_NAME_UPDATE}, name), OP_DUP, OP_2DROP)},
		{"malformed argument", []byte{OP_NAME_NEW, OP_DATA_20, 0x01}},
		{"not a name op", append(appendPush([]byte{OP_4}, name), OP_2DROP)},
	}
	for _, test := range notName {
		_, ok := ParseNameScript(test.script)
		require.False(t, ok, test.name)
		require.True(t, bytes.Equal(test.script, StripNamePrefix(test.script)), test.name)
	}
}

// TestNameScriptAccessors 检查各操作的访问方法。
func TestNameScriptAccessors(t *testing.T) {
	t.Parallel()

	addr := []byte{OP_TRUE}
	name, value, rand := []byte("d/x"), []byte{0x01}, []byte{0x05}
	hash := bytes.Repeat([]byte{0x44}, 20)

	script, err := BuildNameNew(addr, hash)
	require.NoError(t, err)
	ns, ok := ParseNameScript(script)
	require.True(t, ok)
	require.Equal(t, hash, ns.Hash())
	require.Nil(t, ns.Name())
	require.Nil(t, ns.Value())
	require.Nil(t, ns.Rand())
	require.False(t, ns.IsAnyUpdate())
	require.Equal(t, "name_new", ns.Op.String())

	// 单字节参数必须以字面推送写出，否则会变成小整数操作码。
	script, err = BuildNameFirstUpdate(addr, name, rand, value)
	require.NoError(t, err)
	ns, ok = ParseNameScript(script)
	require.True(t, ok)
	require.Equal(t, name, ns.Name())
	require.Equal(t, rand, ns.Rand())
	require.Equal(t, value, ns.Value())
	require.Nil(t, ns.Hash())
	require.True(t, ns.IsAnyUpdate())
	require.Equal(t, "name_firstupdate", ns.Op.String())

	script, err = BuildNameUpdate(addr, name, value)
	require.NoError(t, err)
	ns, ok = ParseNameScript(script)
	require.True(t, ok)
	require.Equal(t, name, ns.Name())
	require.Equal(t, value, ns.Value())
	require.Nil(t, ns.Rand())
	require.True(t, ns.IsAnyUpdate())
	require.Equal(t, "name_update", ns.Op.String())
	require.Equal(t, addr, ns.Address)

	require.Equal(t, "unknown name op 4", NameOp(4).String())
}
