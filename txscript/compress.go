// 包含币数据库使用的脚本与金额压缩格式，与参考节点的存储格式逐字节兼容。

package txscript

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// -----------------------------------------------------------------------------
// 变长整数（VLQ）是一种以 7 位为一组、高位在前的编码，每个非末尾字节的最高位为 1。
// 与常见的 VLQ 不同，除最后一组外每组都减去 1，使每个数值只有唯一的编码，并能在相同字节数内表示更大的值。
//
// 示例：
//
//	0     -> [0x00]
//	127   -> [0x7f]
//	128   -> [0x80 0x00]
//	255   -> [0x80 0x7f]
//	16511 -> [0xff 0x7f]
//	max uint64 -> [0x80 0xfe 0xfe 0xfe 0xfe 0xfe 0xfe 0xfe 0xfe 0x7f]
// -----------------------------------------------------------------------------

// SerializeSizeVLQ 返回以 VLQ 编码 n 所需的字节数。
func SerializeSizeVLQ(n uint64) int {
	size := 1
	for ; n > 0x7f; n = (n >> 7) - 1 {
		size++
	}

	return size
}

// PutVLQ 把 n 的 VLQ 编码写入 target 并返回写入的字节数。target 必须至少有 SerializeSizeVLQ(n) 字节。
func PutVLQ(target []byte, n uint64) int {
	offset := 0
	for ; ; offset++ {
		// 除最低组外，每组的最高位标记后面还有字节。
		highBitMask := byte(0x80)
		if offset == 0 {
			highBitMask = 0x00
		}

		target[offset] = byte(n&0x7f) | highBitMask
		if n <= 0x7f {
			break
		}
		n = (n >> 7) - 1
	}

	// 反转为高位在前。
	for i, j := 0, offset; i < j; i, j = i+1, j-1 {
		target[i], target[j] = target[j], target[i]
	}

	return offset + 1
}

// DeserializeVLQ 解码 VLQ 编码的数值，返回数值与读取的字节数。
// 输入被截断时返回已读部分的结果，读取字节数等于输入长度。
func DeserializeVLQ(serialized []byte) (uint64, int) {
	var n uint64
	var size int
	for _, val := range serialized {
		size++
		n = (n << 7) | uint64(val&0x7f)
		if val&0x80 != 0x80 {
			break
		}
		n++
	}

	return n, size
}

// -----------------------------------------------------------------------------
// 脚本压缩只识别六种特殊脚本，以一个字节的标签加定长载荷表示：
//
//	0    P2PKH，载荷为 20 字节公钥哈希
//	1    P2SH，载荷为 20 字节脚本哈希
//	2, 3 压缩公钥的 P2PK，标签即公钥首字节，载荷为 32 字节 X 坐标
//	4, 5 未压缩公钥的 P2PK，标签为 4 与 Y 坐标奇偶位之和，载荷为 32 字节 X 坐标
//
// 存储时标签以 VLQ 写出。其他脚本写作 VLQ(len+numSpecialScripts) 后跟原始脚本。
// -----------------------------------------------------------------------------

const (
	// numSpecialScripts 是特殊脚本标签的数量，原始脚本的长度编码从此值开始。
	numSpecialScripts = 6

	cstPayToPubKeyHash    = 0
	cstPayToScriptHash    = 1
	cstPayToPubKeyComp2   = 2
	cstPayToPubKeyComp3   = 3
	cstPayToPubKeyUncomp4 = 4
	cstPayToPubKeyUncomp5 = 5
)

// SpecialScriptSize 返回特殊脚本标签对应的载荷长度，非特殊标签返回 0。
func SpecialScriptSize(tag uint64) int {
	switch tag {
	case cstPayToPubKeyHash, cstPayToScriptHash:
		return 20
	case cstPayToPubKeyComp2, cstPayToPubKeyComp3,
		cstPayToPubKeyUncomp4, cstPayToPubKeyUncomp5:
		return 32
	}
	return 0
}

// compressiblePubKey 在脚本为可压缩的 P2PK 脚本时返回其公钥。
// 压缩公钥只检查首字节，未压缩公钥必须是曲线上的有效点。
func compressiblePubKey(script []byte) []byte {
	if len(script) == secp256k1.PubKeyBytesLenCompressed+2 &&
		script[0] == OP_DATA_33 &&
		script[34] == OP_CHECKSIG &&
		(script[1] == secp256k1.PubKeyFormatCompressedEven ||
			script[1] == secp256k1.PubKeyFormatCompressedOdd) {

		return script[1:34]
	}

	if len(script) == secp256k1.PubKeyBytesLenUncompressed+2 &&
		script[0] == OP_DATA_65 &&
		script[66] == OP_CHECKSIG &&
		script[1] == secp256k1.PubKeyFormatUncompressed {

		serializedPubKey := script[1:66]
		if _, err := btcec.ParsePubKey(serializedPubKey); err == nil {
			return serializedPubKey
		}
	}

	return nil
}

// CompressScript 把六种特殊脚本压缩为标签加载荷。其他脚本返回 false。
// 返回结果的第一个字节是标签，永远不超过 5。
func CompressScript(script []byte) ([]byte, bool) {
	if hash := extractPubKeyHash(script); hash != nil {
		out := make([]byte, 21)
		out[0] = cstPayToPubKeyHash
		copy(out[1:], hash)
		return out, true
	}

	if hash := extractScriptHash(script); hash != nil {
		out := make([]byte, 21)
		out[0] = cstPayToScriptHash
		copy(out[1:], hash)
		return out, true
	}

	if pubKey := compressiblePubKey(script); pubKey != nil {
		out := make([]byte, 33)
		copy(out[1:], pubKey[1:33])
		if pubKey[0] == secp256k1.PubKeyFormatUncompressed {
			out[0] = cstPayToPubKeyUncomp4 | (pubKey[64] & 0x01)
		} else {
			out[0] = pubKey[0]
		}
		return out, true
	}

	return nil, false
}

// DecompressScript 根据标签与载荷还原特殊脚本。
//
// 载荷短于标签要求的长度时返回 ErrCompressedPayloadShort，多余的字节被忽略；
// 标签大于 5 时返回 ErrUnknownCompressionTag；
// 标签 4、5 的载荷无法还原为曲线上的点时返回 ErrInvalidCompressedPubKey。
func DecompressScript(tag uint64, payload []byte) ([]byte, error) {
	if tag >= numSpecialScripts {
		str := fmt.Sprintf("compression tag %d is not a special script", tag)
		return nil, scriptError(ErrUnknownCompressionTag, str)
	}
	if len(payload) < SpecialScriptSize(tag) {
		str := fmt.Sprintf("payload of %d bytes is too short for "+
			"compression tag %d", len(payload), tag)
		return nil, scriptError(ErrCompressedPayloadShort, str)
	}

	switch tag {
	case cstPayToPubKeyHash:
		script := make([]byte, 25)
		script[0] = OP_DUP
		script[1] = OP_HASH160
		script[2] = OP_DATA_20
		copy(script[3:], payload[:20])
		script[23] = OP_EQUALVERIFY
		script[24] = OP_CHECKSIG
		return script, nil

	case cstPayToScriptHash:
		script := make([]byte, 23)
		script[0] = OP_HASH160
		script[1] = OP_DATA_20
		copy(script[2:], payload[:20])
		script[22] = OP_EQUAL
		return script, nil

	case cstPayToPubKeyComp2, cstPayToPubKeyComp3:
		script := make([]byte, 35)
		script[0] = OP_DATA_33
		script[1] = byte(tag)
		copy(script[2:], payload[:32])
		script[34] = OP_CHECKSIG
		return script, nil
	}

	// 标签 4、5：先按压缩公钥解析再展开为未压缩形式。
	compressedKey := make([]byte, secp256k1.PubKeyBytesLenCompressed)
	compressedKey[0] = byte(tag - 2)
	copy(compressedKey[1:], payload[:32])
	key, err := btcec.ParsePubKey(compressedKey)
	if err != nil {
		str := fmt.Sprintf("compressed pubkey %x is invalid: %v",
			compressedKey, err)
		return nil, scriptError(ErrInvalidCompressedPubKey, str)
	}

	script := make([]byte, 67)
	script[0] = OP_DATA_65
	copy(script[1:], key.SerializeUncompressed())
	script[66] = OP_CHECKSIG
	return script, nil
}

// CompressedScriptSize 返回脚本以存储格式压缩后的字节数。
func CompressedScriptSize(script []byte) int {
	if compressed, ok := CompressScript(script); ok {
		return len(compressed)
	}

	return SerializeSizeVLQ(uint64(len(script))+numSpecialScripts) + len(script)
}

// PutCompressedScript 把脚本的存储格式写入 target 并返回写入的字节数。
// target 必须至少有 CompressedScriptSize(script) 字节。
func PutCompressedScript(target, script []byte) int {
	if compressed, ok := CompressScript(script); ok {
		return copy(target, compressed)
	}

	encodedSize := uint64(len(script)) + numSpecialScripts
	vlqSizeLen := PutVLQ(target, encodedSize)
	copy(target[vlqSizeLen:], script)
	return vlqSizeLen + len(script)
}

// EncodeCompressedScript 返回脚本的存储格式。超过 MaxScriptSize 的脚本不可压缩，返回 ErrScriptNotCompressible。
func EncodeCompressedScript(script []byte) ([]byte, error) {
	if len(script) > MaxScriptSize {
		str := fmt.Sprintf("script of %d bytes exceeds the max "+
			"compressible size of %d", len(script), MaxScriptSize)
		return nil, scriptError(ErrScriptNotCompressible, str)
	}

	target := make([]byte, CompressedScriptSize(script))
	PutCompressedScript(target, script)
	return target, nil
}

// DecodeCompressedScript 从存储格式中解码脚本，返回脚本与读取的字节数。
//
// 记录的原始脚本长度超过 MaxScriptSize 时跳过该脚本并返回单个 OP_RETURN，
// 与参考节点读取此类记录时的行为一致。
func DecodeCompressedScript(serialized []byte) ([]byte, int, error) {
	if len(serialized) == 0 {
		return nil, 0, scriptError(ErrCompressedPayloadShort,
			"unexpected end of data before compressed script")
	}

	encodedSize, bytesRead := DeserializeVLQ(serialized)
	if serialized[bytesRead-1]&0x80 != 0 {
		return nil, bytesRead, scriptError(ErrCompressedPayloadShort,
			"unexpected end of data within compressed script size")
	}

	if encodedSize < numSpecialScripts {
		payloadSize := SpecialScriptSize(encodedSize)
		if len(serialized[bytesRead:]) < payloadSize {
			str := fmt.Sprintf("unexpected end of data after "+
				"compression tag %d", encodedSize)
			return nil, bytesRead, scriptError(ErrCompressedPayloadShort, str)
		}

		script, err := DecompressScript(encodedSize,
			serialized[bytesRead:bytesRead+payloadSize])
		if err != nil {
			return nil, bytesRead + payloadSize, err
		}
		return script, bytesRead + payloadSize, nil
	}

	scriptSize := encodedSize - numSpecialScripts
	if uint64(len(serialized[bytesRead:])) < scriptSize {
		str := fmt.Sprintf("unexpected end of data within raw script "+
			"of %d bytes", scriptSize)
		return nil, len(serialized), scriptError(ErrCompressedPayloadShort, str)
	}

	end := bytesRead + int(scriptSize)
	if scriptSize > MaxScriptSize {
		return []byte{OP_RETURN}, end, nil
	}

	script := make([]byte, scriptSize)
	copy(script, serialized[bytesRead:end])
	return script, end, nil
}

// -----------------------------------------------------------------------------
// 金额压缩利用金额通常以多个零结尾的特点：
//
//	金额为 0 时编码为 0。
//	否则记 n*10^e 为金额（e 最大为 9，n 不以 0 结尾），
//	e < 9 时 n = 10*d + x（x 为 1..9），编码为 1 + 10*(9*d + x - 1) + e；
//	e = 9 时编码为 1 + 10*(n - 1) + 9。
// -----------------------------------------------------------------------------

// CompressTxOutAmount 压缩交易输出金额。
func CompressTxOutAmount(amount uint64) uint64 {
	if amount == 0 {
		return 0
	}

	exponent := uint64(0)
	for amount%10 == 0 && exponent < 9 {
		amount /= 10
		exponent++
	}

	if exponent < 9 {
		lastDigit := amount % 10
		amount /= 10
		return 1 + 10*(9*amount+lastDigit-1) + exponent
	}

	return 10 + 10*(amount-1)
}

// DecompressTxOutAmount 是 CompressTxOutAmount 的逆运算。
func DecompressTxOutAmount(amount uint64) uint64 {
	if amount == 0 {
		return 0
	}

	amount--
	exponent := amount % 10
	amount /= 10

	var n uint64
	if exponent < 9 {
		lastDigit := amount%9 + 1
		amount /= 9
		n = amount*10 + lastDigit
	} else {
		n = amount + 1
	}

	for ; exponent > 0; exponent-- {
		n *= 10
	}

	return n
}

// CompressedTxOutSize 返回压缩交易输出所需的字节数。
func CompressedTxOutSize(amount uint64, pkScript []byte) int {
	return SerializeSizeVLQ(CompressTxOutAmount(amount)) +
		CompressedScriptSize(pkScript)
}

// PutCompressedTxOut 把压缩金额与压缩脚本写入 target 并返回写入的字节数。
func PutCompressedTxOut(target []byte, amount uint64, pkScript []byte) int {
	offset := PutVLQ(target, CompressTxOutAmount(amount))
	offset += PutCompressedScript(target[offset:], pkScript)
	return offset
}

// DecodeCompressedTxOut 解码压缩交易输出，返回还原后的金额、脚本与读取的字节数。
func DecodeCompressedTxOut(serialized []byte) (uint64, []byte, int, error) {
	compressedAmount, bytesRead := DeserializeVLQ(serialized)
	if bytesRead >= len(serialized) {
		return 0, nil, bytesRead, scriptError(ErrCompressedPayloadShort,
			"unexpected end of data after compressed amount")
	}

	script, scriptRead, err := DecodeCompressedScript(serialized[bytesRead:])
	if err != nil {
		return 0, nil, bytesRead + scriptRead, err
	}

	return DecompressTxOutAmount(compressedAmount), script, bytesRead + scriptRead, nil
}
