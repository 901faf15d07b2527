// 包含处理脚本字节码的基本函数：模式判断、签名操作计数、反汇编与文本表示。

package txscript

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// 这些是为各个脚本中的最大值指定的常量。
const (
	MaxOpsPerScript       = 201   // 最大非推送操作数。
	MaxPubKeysPerMultiSig = 20    // 多重签名不能有比这更多的公钥。
	MaxScriptElementSize  = 520   // 可推入堆栈的最大字节数。
	MaxScriptSize         = 10000 // 脚本允许的最大字节数。

	// inlineScriptSize 是脚本内联存储、不产生堆分配的最大长度。
	inlineScriptSize = 28
)

// IsPayToScriptHash 返回脚本是否为 OP_HASH160 <20 字节哈希> OP_EQUAL 形式。
func IsPayToScriptHash(script []byte) bool {
	return len(script) == 23 &&
		script[0] == OP_HASH160 &&
		script[1] == OP_DATA_20 &&
		script[22] == OP_EQUAL
}

// IsPayToWitnessScriptHash 返回脚本是否为 OP_0 <32 字节哈希> 形式。
func IsPayToWitnessScriptHash(script []byte) bool {
	return len(script) == 34 &&
		script[0] == OP_0 &&
		script[1] == OP_DATA_32
}

// IsPayToWitnessPubKeyHash 返回脚本是否为 OP_0 <20 字节哈希> 形式。
func IsPayToWitnessPubKeyHash(script []byte) bool {
	return len(script) == 22 &&
		script[0] == OP_0 &&
		script[1] == OP_DATA_20
}

// extractWitnessProgramInfo 在脚本为见证程序时返回版本与程序。
//
// 见证程序由一个版本操作码（OP_0 或 OP_1 到 OP_16）和一个直接推送组成，
// 推送的长度必须正好覆盖脚本剩余部分，总长度在 4 到 42 字节之间。
func extractWitnessProgramInfo(script []byte) (int, []byte, bool) {
	if len(script) < 4 || len(script) > 42 {
		return 0, nil, false
	}
	if script[0] != OP_0 && (script[0] < OP_1 || script[0] > OP_16) {
		return 0, nil, false
	}
	if int(script[1])+2 != len(script) {
		return 0, nil, false
	}

	return AsSmallInt(script[0]), script[2:], true
}

// IsWitnessProgram 返回脚本是否为见证程序。
func IsWitnessProgram(script []byte) bool {
	_, _, ok := extractWitnessProgramInfo(script)
	return ok
}

// ExtractWitnessProgramInfo 返回见证程序的版本与程序数据。脚本不是见证程序时返回错误。
func ExtractWitnessProgramInfo(script []byte) (int, []byte, error) {
	version, program, ok := extractWitnessProgramInfo(script)
	if !ok {
		return 0, nil, scriptError(ErrWitnessProgramWrongLength,
			"script is not a witness program, unable to extract version or "+
				"witness program")
	}

	return version, program, nil
}

// IsPushOnlyScript 返回脚本是否只包含数据推送操作码（OP_16 及以下）。
// 无法完整解析的脚本返回 false。
func IsPushOnlyScript(script []byte) bool {
	tokenizer := MakeScriptTokenizer(script)
	for tokenizer.Next() {
		// OP_RESERVED 与小整数一样被视为推送。
		if tokenizer.Opcode() > OP_16 {
			return false
		}
	}
	return tokenizer.Err() == nil
}

// HasValidOps 返回脚本是否能完整解析、所有操作码不超过 MaxOpcode 且每个推送不超过 MaxScriptElementSize。
func HasValidOps(script []byte) bool {
	tokenizer := MakeScriptTokenizer(script)
	for tokenizer.Next() {
		if tokenizer.Opcode() > MaxOpcode ||
			len(tokenizer.Data()) > MaxScriptElementSize {

			return false
		}
	}
	return tokenizer.Err() == nil
}

// CountSigOps 统计脚本中的签名操作数。
//
// OP_CHECKSIG 与 OP_CHECKSIGVERIFY 计 1；OP_CHECKMULTISIG 与 OP_CHECKMULTISIGVERIFY
// 在 accurate 为 true 且前一个操作码为 OP_1 到 OP_16 时计该数值，否则按 MaxPubKeysPerMultiSig 计。
// 遇到解析错误时停止并返回已累计的数量。
func CountSigOps(script []byte, accurate bool) int {
	numSigOps := 0
	prevOp := byte(OP_INVALIDOPCODE)
	tokenizer := MakeScriptTokenizer(script)
	for tokenizer.Next() {
		switch tokenizer.Opcode() {
		case OP_CHECKSIG, OP_CHECKSIGVERIFY:
			numSigOps++

		case OP_CHECKMULTISIG, OP_CHECKMULTISIGVERIFY:
			if accurate && prevOp >= OP_1 && prevOp <= OP_16 {
				numSigOps += AsSmallInt(prevOp)
			} else {
				numSigOps += MaxPubKeysPerMultiSig
			}
		}

		prevOp = tokenizer.Opcode()
	}

	return numSigOps
}

// finalOpcodeData 返回脚本最后一个操作码推送的数据。脚本为空或无法解析时返回 nil。
func finalOpcodeData(script []byte) []byte {
	if len(script) == 0 {
		return nil
	}

	var data []byte
	tokenizer := MakeScriptTokenizer(script)
	for tokenizer.Next() {
		data = tokenizer.Data()
	}
	if tokenizer.Err() != nil {
		return nil
	}
	return data
}

// GetPreciseSigOpCount 返回花费 scriptPubKey 所需的签名操作数。
// 对于 P2SH 输出，统计签名脚本最后一个推送（赎回脚本）中的签名操作，
// 签名脚本不是纯推送时返回 0。
func GetPreciseSigOpCount(scriptSig, scriptPubKey []byte) int {
	if !IsPayToScriptHash(scriptPubKey) {
		return CountSigOps(scriptPubKey, true)
	}

	if len(scriptSig) == 0 || !IsPushOnlyScript(scriptSig) {
		return 0
	}

	redeemScript := finalOpcodeData(scriptSig)
	return CountSigOps(redeemScript, true)
}

// RecursiveMemoryUsage 返回脚本在节点内存中占用的堆空间。
// 不超过 28 字节的脚本内联存储，返回 0；更长的脚本按 16 字节对齐计算。
func RecursiveMemoryUsage(script []byte) int {
	if len(script) <= inlineScriptSize {
		return 0
	}
	return ((len(script) + 31) >> 4) << 4
}

// IsUnspendable 返回输出脚本是否可证明不可花费：以 OP_RETURN 开头、长度超过 MaxScriptSize 或无法解析。
func IsUnspendable(pkScript []byte) bool {
	if isProvablyUnspendable(pkScript) {
		return true
	}

	return checkScriptParses(pkScript) != nil
}

// isProvablyUnspendable 只检查前缀与长度，不解析脚本。
func isProvablyUnspendable(script []byte) bool {
	return (len(script) > 0 && script[0] == OP_RETURN) ||
		len(script) > MaxScriptSize
}

// FindAndDelete 删除脚本中所有从操作码边界开始、与 sub 完全相同的字节序列，返回新脚本和删除次数。
//
// 匹配后从匹配结束处继续按操作码前进，即使该位置落在原脚本某个操作码的中间。
// 脚本在某处无法解析时，剩余字节原样保留。没有删除任何内容时返回原脚本。
func FindAndDelete(script, sub []byte) ([]byte, int) {
	if len(sub) == 0 {
		return script, 0
	}

	result := make([]byte, 0, len(script))
	found := 0
	pc, pc2 := 0, 0
	for {
		result = append(result, script[pc2:pc]...)
		for len(script)-pc >= len(sub) && bytes.Equal(script[pc:pc+len(sub)], sub) {
			pc += len(sub)
			found++
		}
		pc2 = pc

		tokenizer := MakeScriptTokenizer(script[pc:])
		if !tokenizer.Next() {
			break
		}
		pc += int(tokenizer.ByteIndex())
	}

	if found == 0 {
		return script, 0
	}
	result = append(result, script[pc2:]...)
	return result, found
}

// DisasmString 把脚本反汇编为单行文本，每个操作码之间以空格分隔。
// 小整数显示为数字，数据推送显示为十六进制。脚本无法解析时，在已反汇编的内容后追加 "[error]" 并返回解析错误。
func DisasmString(script []byte) (string, error) {
	var disbuf strings.Builder
	tokenizer := MakeScriptTokenizer(script)
	if tokenizer.Next() {
		disasmOpcode(&disbuf, &opcodeArray[tokenizer.Opcode()], tokenizer.Data(), true)
	}
	for tokenizer.Next() {
		disbuf.WriteByte(' ')
		disasmOpcode(&disbuf, &opcodeArray[tokenizer.Opcode()], tokenizer.Data(), true)
	}
	if tokenizer.Err() != nil {
		if tokenizer.ByteIndex() != 0 {
			disbuf.WriteByte(' ')
		}
		disbuf.WriteString("[error]")
	}
	return disbuf.String(), tokenizer.Err()
}

// ScriptToAsmStr 返回脚本的汇编表示。
//
// 不超过 4 字节的推送按脚本数值（允许非最小编码）显示为十进制，更长的推送显示为十六进制。
// decodeSighash 为 true 且脚本并非以 OP_RETURN 开头时，严格编码的签名末尾的哈希类型字节
// 会被替换为 "[ALL]"、"[SINGLE|ANYONECANPAY]" 等后缀。解析失败时追加 "[error]"。
func ScriptToAsmStr(script []byte, decodeSighash bool) string {
	var buf strings.Builder
	tokenizer := MakeScriptTokenizer(script)
	for !tokenizer.Done() {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		if !tokenizer.Next() {
			buf.WriteString("[error]")
			break
		}

		op, data := tokenizer.Opcode(), tokenizer.Data()
		if op > OP_PUSHDATA4 {
			buf.WriteString(GetOpName(op))
			continue
		}

		if len(data) <= maxScriptNumLen {
			num, _ := MakeScriptNum(data, false, maxScriptNumLen)
			buf.WriteString(strconv.FormatInt(int64(num.Int32()), 10))
			continue
		}

		if decodeSighash && !isProvablyUnspendable(script) &&
			isStrictSignatureEncoding(data) {

			hashType := SigHashType(data[len(data)-1])
			if name, ok := sigHashTypeNames[hashType]; ok {
				buf.WriteString(hex.EncodeToString(data[:len(data)-1]))
				buf.WriteString("[" + name + "]")
				continue
			}
		}
		buf.WriteString(hex.EncodeToString(data))
	}

	return buf.String()
}

// FormatScript 以测试向量使用的记法输出脚本：OP_0 为 "0"，OP_1NEGATE 与 OP_1 到 OP_16 为数字，
// OP_NOP 到 OP_NOP10 之间的具名操作码去掉 "OP_" 前缀，其余操作码输出其字节的十六进制，
// 数据推送输出为 "0x<前缀> 0x<数据>"。无法解析的剩余部分整体输出为十六进制。
func FormatScript(script []byte) string {
	words := make([]string, 0, len(script))
	offset := 0
	for offset < len(script) {
		tokenizer := MakeScriptTokenizer(script[offset:])
		if !tokenizer.Next() {
			words = append(words, "0x"+hex.EncodeToString(script[offset:]))
			break
		}

		next := offset + int(tokenizer.ByteIndex())
		op, data := tokenizer.Opcode(), tokenizer.Data()
		switch {
		case op == OP_0:
			words = append(words, "0")
			offset = next
			continue

		case op == OP_1NEGATE || (op >= OP_1 && op <= OP_16):
			words = append(words, strconv.Itoa(int(op)-OP_1NEGATE-1))
			offset = next
			continue

		case op >= OP_NOP && op <= OP_NOP10:
			if name := GetOpName(op); strings.HasPrefix(name, "OP_") {
				words = append(words, name[3:])
				offset = next
				continue
			}
		}

		if len(data) > 0 {
			prefixEnd := next - len(data)
			words = append(words,
				"0x"+hex.EncodeToString(script[offset:prefixEnd]),
				"0x"+hex.EncodeToString(script[prefixEnd:next]))
		} else {
			words = append(words, "0x"+hex.EncodeToString(script[offset:next]))
		}
		offset = next
	}

	return strings.Join(words, " ")
}

// maxParsedScriptNum 是 ParseScript 接受的十进制数值的绝对值上限。
const maxParsedScriptNum = 0xffffffff

// ParseScript 解析 FormatScript 使用的文本记法。
//
// 十进制数按 AddInt64 的规则编码；"0x" 开头的十六进制原样插入而不作为推送；
// 单引号包围的字符串作为数据推送；其余单词必须是操作码名称（可省略 "OP_" 前缀）。
func ParseScript(s string) ([]byte, error) {
	var script []byte
	for _, word := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n'
	}) {
		switch {
		case isDecimalWord(word):
			num, err := strconv.ParseInt(word, 10, 64)
			if err != nil || num > maxParsedScriptNum || num < -maxParsedScriptNum {
				str := fmt.Sprintf("decimal value %q is outside the range "+
					"-0xFFFFFFFF...0xFFFFFFFF", word)
				return nil, scriptError(ErrInvalidScriptNotation, str)
			}
			script = appendInt64(script, num)

		case strings.HasPrefix(word, "0x") && len(word) > 2:
			raw, err := hex.DecodeString(word[2:])
			if err != nil {
				str := fmt.Sprintf("invalid hex word %q: %v", word, err)
				return nil, scriptError(ErrInvalidScriptNotation, str)
			}
			script = append(script, raw...)

		case len(word) >= 2 && word[0] == '\'' && word[len(word)-1] == '\'':
			script = appendPush(script, []byte(word[1:len(word)-1]))

		default:
			op, ok := opcodeByName[word]
			if !ok {
				str := fmt.Sprintf("unknown opcode %q", word)
				return nil, scriptError(ErrInvalidScriptNotation, str)
			}
			script = append(script, op)
		}
	}

	return script, nil
}

// isDecimalWord 返回单词是否由数字组成，允许一个前导负号。
func isDecimalWord(word string) bool {
	digits := word
	if strings.HasPrefix(word, "-") && len(word) > 1 {
		digits = word[1:]
	}
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// appendPush 以最短长度前缀把 data 作为数据推送追加到脚本，空数据使用 OP_0。
func appendPush(script, data []byte) []byte {
	if len(data) == 0 {
		return append(script, OP_0)
	}
	script = appendPushPrefix(script, len(data))
	return append(script, data...)
}

// appendInt64 按 AddInt64 的规则追加整数。
func appendInt64(script []byte, val int64) []byte {
	if val == 0 {
		return append(script, OP_0)
	}
	if val == -1 || (val >= 1 && val <= 16) {
		return append(script, byte((OP_1-1)+val))
	}
	return appendPush(script, ScriptNum(val).Bytes())
}

// PushedData 返回脚本中所有数据推送的数据，小整数操作码不计入。
func PushedData(script []byte) ([][]byte, error) {
	var data [][]byte
	tokenizer := MakeScriptTokenizer(script)
	for tokenizer.Next() {
		if tokenizer.Data() != nil {
			data = append(data, tokenizer.Data())
		} else if tokenizer.Opcode() == OP_0 {
			data = append(data, nil)
		}
	}
	if err := tokenizer.Err(); err != nil {
		return nil, err
	}
	return data, nil
}
