package txscript

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScriptPredicates 检查脚本模式判断函数。
func TestScriptPredicates(t *testing.T) {
	t.Parallel()

	hash20 := bytes.Repeat([]byte{0x11}, 20)
	hash32 := bytes.Repeat([]byte{0x22}, 32)

	p2sh := append(append([]byte{OP_HASH160, OP_DATA_20}, hash20...), OP_EQUAL)
	p2wpkh := append([]byte{OP_0, OP_DATA_20}, hash20...)
	p2wsh := append([]byte{OP_0, OP_DATA_32}, hash32...)
	v1 := append([]byte{OP_1, OP_DATA_32}, hash32...)
	v16 := []byte{OP_16, OP_DATA_2, 0x01, 0x02}

	tests := []struct {
		name      string
		script    []byte
		isP2SH    bool
		isP2WSH   bool
		isP2WPKH  bool
		isWitness bool
		version   int
	}{
		{"p2sh", p2sh, true, false, false, false, 0},
		{"p2wpkh", p2wpkh, false, false, true, true, 0},
		{"p2wsh", p2wsh, false, true, false, true, 0},
		{"v1 program", v1, false, false, false, true, 1},
		{"v16 two byte program", v16, false, false, false, true, 16},
		{"program too short", []byte{OP_1, OP_DATA_1, 0x01}, false, false, false, false, 0},
		{"program too long", append([]byte{OP_1, 41}, make([]byte, 41)...), false, false, false, false, 0},
		{"push does not cover script", append(p2wpkh, OP_NOP), false, false, false, false, 0},
		{"bad version opcode", append([]byte{OP_1NEGATE, OP_DATA_20}, hash20...), false, false, false, false, 0},
		{"p2sh with pushdata1", append(append([]byte{OP_HASH160, OP_PUSHDATA1, 20}, hash20...), OP_EQUAL), false, false, false, false, 0},
		{"empty", nil, false, false, false, false, 0},
	}

	for _, test := range tests {
		require.Equal(t, test.isP2SH, IsPayToScriptHash(test.script), test.name)
		require.Equal(t, test.isP2WSH, IsPayToWitnessScriptHash(test.script), test.name)
		require.Equal(t, test.isP2WPKH, IsPayToWitnessPubKeyHash(test.script), test.name)
		require.Equal(t, test.isWitness, IsWitnessProgram(test.script), test.name)

		version, program, err := ExtractWitnessProgramInfo(test.script)
		if !test.isWitness {
			requireErrorCode(t, err, ErrWitnessProgramWrongLength)
			continue
		}
		require.NoError(t, err, test.name)
		require.Equal(t, test.version, version, test.name)
		require.Equal(t, test.script[2:], program, test.name)
	}
}

// TestIsPushOnlyScript 检查纯推送判断。
func TestIsPushOnlyScript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script []byte
		want   bool
	}{
		{"empty", nil, true},
		{"small ints", []byte{OP_0, OP_1NEGATE, OP_1, OP_16}, true},
		{"reserved counts as push", []byte{OP_RESERVED}, true},
		{"data push", []byte{OP_DATA_2, 0x01, 0x02}, true},
		{"nop", []byte{OP_NOP}, false},
		{"truncated push", []byte{OP_DATA_2, 0x01}, false},
	}

	for _, test := range tests {
		require.Equal(t, test.want, IsPushOnlyScript(test.script), test.name)
	}
}

// TestHasValidOps 检查操作码与元素大小的有效性判断。
func TestHasValidOps(t *testing.T) {
	t.Parallel()

	require.True(t, HasValidOps(nil))
	require.True(t, HasValidOps([]byte{OP_NOP10, OP_CHECKSIG}))
	require.False(t, HasValidOps([]byte{OP_NOP10 + 1}))
	require.False(t, HasValidOps([]byte{OP_INVALIDOPCODE}))
	require.False(t, HasValidOps([]byte{OP_PUSHDATA1, 2, 0x01}))

	big := append([]byte{OP_PUSHDATA2, 0x09, 0x02}, make([]byte, MaxScriptElementSize+1)...)
	require.False(t, HasValidOps(big))
	limit := append([]byte{OP_PUSHDATA2, 0x08, 0x02}, make([]byte, MaxScriptElementSize)...)
	require.True(t, HasValidOps(limit))
}

// TestCountSigOps 检查签名操作计数。
func TestCountSigOps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		script   string
		accurate int
		estimate int
	}{
		{"empty", "", 0, 0},
		{"checksig", "DUP HASH160 0x14 0x0000000000000000000000000000000000000000 EQUALVERIFY CHECKSIG", 1, 1},
		{"checksigverify twice", "CHECKSIGVERIFY CHECKSIGVERIFY", 2, 2},
		{"multisig 2 of 3", "2 0x21 0x020000000000000000000000000000000000000000000000000000000000000000 3 CHECKMULTISIG", 3, 20},
		{"multisig without count", "CHECKMULTISIG", 20, 20},
		{"multisig after push", "0x01 0x03 CHECKMULTISIGVERIFY", 20, 20},
		{"stops at parse failure", "CHECKSIG 0x4c 0x05 0x01", 1, 1},
	}

	for _, test := range tests {
		script := mustParseScript(test.script)
		require.Equal(t, test.accurate, CountSigOps(script, true), test.name)
		require.Equal(t, test.estimate, CountSigOps(script, false), test.name)
	}
}

// TestGetPreciseSigOpCount 检查 P2SH 赎回脚本的签名操作计数。
func TestGetPreciseSigOpCount(t *testing.T) {
	t.Parallel()

	redeemScript := mustParseScript("1 0x21 0x020000000000000000000000000000000000000000000000000000000000000000 " +
		"0x21 0x030000000000000000000000000000000000000000000000000000000000000000 2 CHECKMULTISIG")
	p2sh := ScriptForDestination(ScriptHashDestination(hash160(redeemScript)))

	sigScript, err := NewScriptBuilder().AddOp(OP_0).AddData(redeemScript).Script()
	require.NoError(t, err)

	require.Equal(t, 2, GetPreciseSigOpCount(sigScript, p2sh))
	require.Equal(t, 0, GetPreciseSigOpCount(nil, p2sh))
	require.Equal(t, 0, GetPreciseSigOpCount([]byte{OP_NOP}, p2sh))
	require.Equal(t, 0, GetPreciseSigOpCount([]byte{OP_DATA_2, 0x01}, p2sh))
	require.Equal(t, 2, GetPreciseSigOpCount(nil, redeemScript))
}

// TestIsUnspendable 检查可证明不可花费的输出。
func TestIsUnspendable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script []byte
		want   bool
	}{
		{"op_return", []byte{OP_RETURN, OP_DATA_1, 0x01}, true},
		{"bare op_return", []byte{OP_RETURN}, true},
		{"too large", make([]byte, MaxScriptSize+1), true},
		{"max size", make([]byte, MaxScriptSize), false},
		{"unparsable", []byte{OP_DATA_2, 0x01}, true},
		{"empty", nil, false},
		{"p2pkh", mustParseScript("DUP HASH160 0x14 0x0000000000000000000000000000000000000000 EQUALVERIFY CHECKSIG"), false},
	}

	for _, test := range tests {
		require.Equal(t, test.want, IsUnspendable(test.script), test.name)
	}
}

// TestRecursiveMemoryUsage 检查内联阈值与 16 字节对齐。
func TestRecursiveMemoryUsage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size int
		want int
	}{
		{0, 0},
		{28, 0},
		{29, 48},
		{32, 48},
		{33, 64},
		{100, 128},
	}

	for _, test := range tests {
		require.Equal(t, test.want, RecursiveMemoryUsage(make([]byte, test.size)), "size %d", test.size)
	}
}

// TestFindAndDelete 检查只在操作码边界上匹配的删除语义。
func TestFindAndDelete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		sub    string
		want   string
		count  int
	}{
		{"single", "5152", "52", "51", 1},
		{"middle", "515253", "52", "5153", 1},
		{"repeated", "535153535453", "53", "5154", 4},
		{"whole push", "0302ff03", "0302ff03", "", 1},
		{"two pushes", "0302ff030302ff03", "0302ff03", "", 2},
		{"inside push", "0302ff030302ff03", "02", "0302ff030302ff03", 0},
		{"inside push data", "0302ff030302ff03", "ff", "0302ff030302ff03", 0},
		{"push prefix shifts boundaries", "0302ff030302ff03", "03", "02ff0302ff03", 2},
		{"not at boundary", "02feed5169", "feed51", "02feed5169", 0},
		{"push and opcode", "02feed5169", "02feed51", "69", 1},
		{"after opcode not at boundary", "516902feed5169", "feed51", "516902feed5169", 0},
		{"after opcode", "516902feed5169", "02feed51", "516969", 1},
		{"whole opcodes only", "00005151", "0051", "0051", 1},
		{"consecutive matches", "000051005151", "0051", "0051", 2},
		{"restart after match", "0003feed", "03feed", "00", 1},
		{"leading zero", "0003feed", "00", "03feed", 1},
		{"empty sub", "5152", "", "5152", 0},
		{"unparsable tail kept", "5102ff", "51", "02ff", 1},
	}

	for _, test := range tests {
		got, count := FindAndDelete(hexToBytes(test.script), hexToBytes(test.sub))
		require.Equal(t, hexToBytes(test.want), got, test.name)
		require.Equal(t, test.count, count, test.name)
	}
}

// TestDisasm 检查反汇编输出。
func TestDisasm(t *testing.T) {
	t.Parallel()

	sig := hexToBytes("300602010102010101")
	sigScript, err := NewScriptBuilder().AddData(sig).AddData(hexToBytes("0102")).Script()
	require.NoError(t, err)

	tests := []struct {
		name    string
		script  []byte
		disasm  string
		asm     string
		sighash string
		err     bool
	}{{
		name:    "p2pkh",
		script:  hexToBytes("76a914000102030405060708090a0b0c0d0e0f1011121388ac"),
		disasm:  "OP_DUP OP_HASH160 000102030405060708090a0b0c0d0e0f10111213 OP_EQUALVERIFY OP_CHECKSIG",
		asm:     "OP_DUP OP_HASH160 000102030405060708090a0b0c0d0e0f10111213 OP_EQUALVERIFY OP_CHECKSIG",
		sighash: "OP_DUP OP_HASH160 000102030405060708090a0b0c0d0e0f10111213 OP_EQUALVERIFY OP_CHECKSIG",
	}, {
		name:    "signature and small push",
		script:  sigScript,
		disasm:  "300602010102010101 0102",
		asm:     "300602010102010101 513",
		sighash: "3006020101020101[ALL] 513",
	}, {
		name:    "small ints",
		script:  []byte{OP_0, OP_1NEGATE, OP_16},
		disasm:  "0 -1 16",
		asm:     "0 -1 16",
		sighash: "0 -1 16",
	}, {
		name:    "op_return keeps signature bytes",
		script:  append([]byte{OP_RETURN}, sigScript...),
		disasm:  "OP_RETURN 300602010102010101 0102",
		asm:     "OP_RETURN 300602010102010101 513",
		sighash: "OP_RETURN 300602010102010101 513",
	}, {
		name:    "truncated push",
		script:  []byte{OP_1, OP_DATA_2, 0x01},
		disasm:  "1 [error]",
		asm:     "1 [error]",
		sighash: "1 [error]",
		err:     true,
	}, {
		name:   "empty",
		script: nil,
	}}

	for _, test := range tests {
		disasm, err := DisasmString(test.script)
		require.Equal(t, test.disasm, disasm, test.name)
		if test.err {
			requireErrorCode(t, err, ErrMalformedPush)
		} else {
			require.NoError(t, err, test.name)
		}

		require.Equal(t, test.asm, ScriptToAsmStr(test.script, false), test.name)
		require.Equal(t, test.sighash, ScriptToAsmStr(test.script, true), test.name)
	}
}

// TestFormatParseScript 检查文本记法的输出与解析。
func TestFormatParseScript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		script    string
		formatted string
	}{
		{"small numbers", "0 -1 1 16", "004f5160", "0 -1 1 16"},
		{"large number", "17 1000 -1000", "0111" + "02e803" + "02e883", "0x01 0x11 0x02 0xe803 0x02 0xe883"},
		{"named opcodes", "DUP OP_HASH160 EQUALVERIFY CHECKSIG", "76a988ac", "DUP HASH160 EQUALVERIFY CHECKSIG"},
		{"nop aliases", "NOP2 CHECKSEQUENCEVERIFY", "b1b2", "CHECKLOCKTIMEVERIFY CHECKSEQUENCEVERIFY"},
		{"raw hex", "0x02 0xbeef", "02beef", "0x02 0xbeef"},
		{"quoted string", "'abc'", "03616263", "0x03 0x616263"},
		{"empty string", "''", "00", "0"},
		{"return and reserved", "RETURN RESERVED", "6a50", "RETURN 0x50"},
		{"pushdata1", "0x4c 0x01 0x07", "4c0107", "0x4c01 0x07"},
	}

	for _, test := range tests {
		script, err := ParseScript(test.text)
		require.NoError(t, err, test.name)
		require.Equal(t, hexToBytes(test.script), script, test.name)
		require.Equal(t, test.formatted, FormatScript(script), test.name)

		reparsed, err := ParseScript(FormatScript(script))
		require.NoError(t, err, test.name)
		require.Equal(t, script, reparsed, test.name)
	}

	require.Equal(t, "0x4c0201", FormatScript(hexToBytes("4c0201")))

	for _, bad := range []string{"NOTANOPCODE", "0xzz", "4294967296", "-4294967296"} {
		_, err := ParseScript(bad)
		requireErrorCode(t, err, ErrInvalidScriptNotation)
	}
	_, err := ParseScript("4294967295")
	require.NoError(t, err)
}

// TestPushedData 检查推送数据的提取。
func TestPushedData(t *testing.T) {
	t.Parallel()

	data, err := PushedData(mustParseScript("0 1 0x02 0xbeef 0x4c 0x00"))
	require.NoError(t, err)
	require.Equal(t, [][]byte{nil, hexToBytes("beef"), {}}, data)

	_, err = PushedData([]byte{OP_DATA_2})
	requireErrorCode(t, err, ErrMalformedPush)
}

// TestGetOpName 检查操作码名称。
func TestGetOpName(t *testing.T) {
	t.Parallel()

	tests := map[byte]string{
		OP_0:             "0",
		OP_1NEGATE:       "-1",
		OP_16:            "16",
		OP_DATA_20:       "OP_UNKNOWN",
		OP_CHECKSIG:      "OP_CHECKSIG",
		OP_RETURN:        "OP_RETURN",
		OP_NOP10:         "OP_NOP10",
		OP_NOP10 + 1:     "OP_UNKNOWN",
		OP_PUSHDATA1:     "OP_PUSHDATA1",
		OP_INVALIDOPCODE: "OP_INVALIDOPCODE",
	}
	for op, want := range tests {
		require.Equal(t, want, GetOpName(op), "opcode 0x%02x", op)
	}
}
