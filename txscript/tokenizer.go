package txscript

import (
	"encoding/binary"
	"fmt"
)

// ScriptTokenizer 逐个操作码地遍历脚本，是本包所有脚本分析的唯一解析入口。
// 它不做任何内存分配，遇到截断的数据推送时停止迭代并记录错误。
//
// 典型用法：
//
//	tokenizer := MakeScriptTokenizer(script)
//	for tokenizer.Next() {
//		op, data := tokenizer.Opcode(), tokenizer.Data()
//	}
//	if err := tokenizer.Err(); err != nil {
//		// 脚本格式错误
//	}
type ScriptTokenizer struct {
	script []byte
	offset int32
	op     *opcode
	data   []byte
	err    error
}

// MakeScriptTokenizer 返回一个指向脚本起始位置的新分词器。
func MakeScriptTokenizer(script []byte) ScriptTokenizer {
	return ScriptTokenizer{script: script}
}

// Done 在所有操作码都已读取完毕或出现解析错误时返回 true。
func (t *ScriptTokenizer) Done() bool {
	return t.err != nil || t.offset >= int32(len(t.script))
}

// Next 读取下一个操作码，成功时返回 true。
// 返回 false 时，要么已到达脚本末尾，要么发生了解析错误，可通过 Err 区分。
func (t *ScriptTokenizer) Next() bool {
	if t.Done() {
		return false
	}

	op := &opcodeArray[t.script[t.offset]]
	switch {
	case op.length == 1:
		t.offset++
		t.op = op
		t.data = nil
		return true

	case op.length > 1:
		script := t.script[t.offset:]
		if len(script) < op.length {
			str := fmt.Sprintf("opcode %s requires %d bytes, but script only "+
				"has %d remaining", op.name, op.length, len(script))
			t.err = scriptError(ErrMalformedPush, str)
			return false
		}

		t.offset += int32(op.length)
		t.op = op
		t.data = script[1:op.length]
		return true

	case op.length < 0:
		script := t.script[t.offset+1:]
		if len(script) < -op.length {
			str := fmt.Sprintf("opcode %s requires %d bytes, but script only "+
				"has %d remaining", op.name, -op.length, len(script))
			t.err = scriptError(ErrMalformedPush, str)
			return false
		}

		var dataLen int32
		switch op.length {
		case -1:
			dataLen = int32(script[0])
		case -2:
			dataLen = int32(binary.LittleEndian.Uint16(script[:2]))
		case -4:
			// A length above MaxInt32 wraps negative and is caught below.
			dataLen = int32(binary.LittleEndian.Uint32(script[:4]))
		default:
			str := fmt.Sprintf("invalid opcode length %d", op.length)
			t.err = scriptError(ErrMalformedPush, str)
			return false
		}

		script = script[-op.length:]
		if dataLen < 0 || int(dataLen) > len(script) {
			str := fmt.Sprintf("opcode %s pushes %d bytes, but script only "+
				"has %d remaining", op.name, dataLen, len(script))
			t.err = scriptError(ErrMalformedPush, str)
			return false
		}

		t.offset += 1 + int32(-op.length) + dataLen
		t.op = op
		t.data = script[:dataLen]
		return true
	}

	str := fmt.Sprintf("opcode %s has unsupported length %d", op.name, op.length)
	t.err = scriptError(ErrMalformedPush, str)
	return false
}

// Script 返回正在遍历的完整脚本。
func (t *ScriptTokenizer) Script() []byte {
	return t.script
}

// ByteIndex 返回下一个待读取操作码在脚本中的字节偏移。
func (t *ScriptTokenizer) ByteIndex() int32 {
	return t.offset
}

// Opcode 返回当前操作码。
func (t *ScriptTokenizer) Opcode() byte {
	return t.op.value
}

// Data 返回当前操作码推送的数据，非推送操作码返回 nil。
func (t *ScriptTokenizer) Data() []byte {
	return t.data
}

// Err 返回解析过程中遇到的错误，没有错误时为 nil。
func (t *ScriptTokenizer) Err() error {
	return t.err
}

// checkScriptParses 在脚本无法完整解析时返回错误。
func checkScriptParses(script []byte) error {
	tokenizer := MakeScriptTokenizer(script)
	for tokenizer.Next() {
	}
	return tokenizer.Err()
}
