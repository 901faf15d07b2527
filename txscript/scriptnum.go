package txscript

import (
	"fmt"
)

const (
	// maxInt32 与 minInt32 用于把脚本数值截断到 int32 范围。
	maxInt32 = 1<<31 - 1
	minInt32 = -1 << 31

	// maxScriptNumLen 是作为数值解释的数据允许的最大字节数。
	maxScriptNumLen = 4
)

// ScriptNum 表示脚本中的数值。
//
// 数值以小端序、符号-幅值的形式编码：最高字节的最高位是符号位，其余位为绝对值。
// 零编码为空字节串，负零（0x80）只在非最小编码下被接受。
// 作为操作数读入的数值最多 4 字节，但运算结果可以超出该范围，因此底层使用 int64。
type ScriptNum int64

// checkMinimalDataEncoding 在数值没有使用最小编码时返回错误。
func checkMinimalDataEncoding(v []byte) error {
	if len(v) == 0 {
		return nil
	}

	// The most significant byte may only be zero (ignoring the sign bit)
	// when the byte before it would otherwise be read as the sign.
	if v[len(v)-1]&0x7f == 0 {
		if len(v) == 1 || v[len(v)-2]&0x80 == 0 {
			str := fmt.Sprintf("numeric value encoded as %x is not "+
				"minimally encoded", v)
			return scriptError(ErrMinimalData, str)
		}
	}

	return nil
}

// Bytes 返回数值的最小编码。
//
// 示例编码：
//
//	127   -> [0x7f]
//	-127  -> [0xff]
//	128   -> [0x80 0x00]
//	-128  -> [0x80 0x80]
//	32767 -> [0xff 0x7f]
func (n ScriptNum) Bytes() []byte {
	if n == 0 {
		return nil
	}

	// 绝对值按 uint64 计算，math.MinInt64 取反不会溢出。
	isNegative := n < 0
	abs := uint64(n)
	if isNegative {
		abs = uint64(^n) + 1
	}

	result := make([]byte, 0, 9)
	for abs > 0 {
		result = append(result, byte(abs&0xff))
		abs >>= 8
	}

	// Add an extra byte for the sign when the high bit is already taken
	// by the magnitude, otherwise fold the sign into the last byte.
	if result[len(result)-1]&0x80 != 0 {
		extraByte := byte(0x00)
		if isNegative {
			extraByte = 0x80
		}
		result = append(result, extraByte)
	} else if isNegative {
		result[len(result)-1] |= 0x80
	}

	return result
}

// Int32 返回截断到 int32 范围内的数值。
func (n ScriptNum) Int32() int32 {
	if n > maxInt32 {
		return maxInt32
	}
	if n < minInt32 {
		return minInt32
	}
	return int32(n)
}

// Int64 返回数值本身。
func (n ScriptNum) Int64() int64 {
	return int64(n)
}

// MakeScriptNum 把编码后的字节解释为脚本数值。
//
// requireMinimal 要求编码是最小编码；scriptNumLen 是允许的最大字节数，
// 共识规则下为 4，个别操作码（如锁定时间检查）允许 5。
func MakeScriptNum(v []byte, requireMinimal bool, scriptNumLen int) (ScriptNum, error) {
	if len(v) > scriptNumLen {
		str := fmt.Sprintf("numeric value encoded as %x is %d bytes "+
			"which exceeds the max allowed of %d", v, len(v),
			scriptNumLen)
		return 0, scriptError(ErrNumberTooBig, str)
	}

	if requireMinimal {
		if err := checkMinimalDataEncoding(v); err != nil {
			return 0, err
		}
	}

	if len(v) == 0 {
		return 0, nil
	}

	var result int64
	for i, val := range v {
		result |= int64(val) << uint8(8*i)
	}

	// A set sign bit on the final byte means the value is negative.
	if v[len(v)-1]&0x80 != 0 {
		result &= ^(int64(0x80) << uint8(8*(len(v)-1)))
		return ScriptNum(-result), nil
	}

	return ScriptNum(result), nil
}
