package txscript

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip32"
)

// hexToBytes 把硬编码的十六进制常量转换为字节，常量有误时 panic。
func hexToBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("invalid hex in source file: " + s)
	}
	return b
}

// mustParseScript 解析文本记法的脚本，只用于硬编码的测试脚本。
func mustParseScript(s string) []byte {
	script, err := ParseScript(s)
	if err != nil {
		panic("invalid script in source file: " + s + ": " + err.Error())
	}
	return script
}

// testSeed 是派生测试公钥使用的固定种子。
var testSeed = bytes.Repeat([]byte{0x5a}, 32)

// testPubKeys 从固定种子派生 n 个压缩公钥。
func testPubKeys(t testing.TB, n int) [][]byte {
	t.Helper()

	master, err := bip32.NewMasterKey(testSeed)
	require.NoError(t, err)

	keys := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		child, err := master.NewChildKey(uint32(i))
		require.NoError(t, err)
		keys = append(keys, child.PublicKey().Key)
	}
	return keys
}

// uncompressedKey 返回压缩公钥对应的 65 字节未压缩公钥。
func uncompressedKey(t testing.TB, compressed []byte) []byte {
	t.Helper()

	pubKey, err := btcec.ParsePubKey(compressed)
	require.NoError(t, err)
	return pubKey.SerializeUncompressed()
}

// requireErrorCode 断言 err 是携带 code 的脚本错误，code 为 ErrOK 时断言没有错误。
func requireErrorCode(t testing.TB, err error, code ErrorCode) {
	t.Helper()

	if code == ErrOK {
		require.NoError(t, err)
		return
	}
	require.Error(t, err)
	require.Truef(t, IsErrorCode(err, code), "want %v, got %v", code, err)
}
