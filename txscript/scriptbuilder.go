package txscript

import (
	"encoding/binary"
	"fmt"
)

const (
	// defaultScriptAlloc 是构建器初始分配的脚本容量，足以容纳绝大多数标准脚本。
	defaultScriptAlloc = 500
)

// ErrScriptNotCanonical 表示构建器无法生成规范脚本，例如推送超过 MaxScriptElementSize 的数据或使脚本超过 MaxScriptSize。
type ErrScriptNotCanonical string

// Error 实现 error 接口。
func (e ErrScriptNotCanonical) Error() string {
	return string(e)
}

// ScriptBuilder 以最小推送规则构建脚本。
//
// 构建器在第一次出错后记录错误，之后的追加操作都不再修改脚本，错误在调用 Script 时返回。
// 这样调用方可以链式调用而不必逐步检查错误：
//
//	builder := txscript.NewScriptBuilder()
//	builder.AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160)
//	builder.AddData(pubKeyHash).AddOp(txscript.OP_EQUALVERIFY)
//	builder.AddOp(txscript.OP_CHECKSIG)
//	script, err := builder.Script()
type ScriptBuilder struct {
	script []byte
	err    error
}

// ScriptBuilderOpt 是构建器的函数式选项。
type ScriptBuilderOpt func(*scriptBuilderConfig)

type scriptBuilderConfig struct {
	allocSize int
}

// WithScriptAllocSize 指定构建器初始分配的脚本容量。
func WithScriptAllocSize(size int) ScriptBuilderOpt {
	return func(cfg *scriptBuilderConfig) {
		cfg.allocSize = size
	}
}

// NewScriptBuilder 返回一个新的脚本构建器。
func NewScriptBuilder(opts ...ScriptBuilderOpt) *ScriptBuilder {
	cfg := &scriptBuilderConfig{allocSize: defaultScriptAlloc}
	for _, opt := range opts {
		opt(cfg)
	}

	return &ScriptBuilder{
		script: make([]byte, 0, cfg.allocSize),
	}
}

// AddOp 把操作码追加到脚本末尾。
func (b *ScriptBuilder) AddOp(opcode byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	if len(b.script)+1 > MaxScriptSize {
		str := fmt.Sprintf("adding an opcode would exceed the maximum "+
			"allowed canonical script length of %d", MaxScriptSize)
		b.err = ErrScriptNotCanonical(str)
		return b
	}

	b.script = append(b.script, opcode)
	return b
}

// AddOps 依次追加多个操作码。
func (b *ScriptBuilder) AddOps(opcodes []byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	if len(b.script)+len(opcodes) > MaxScriptSize {
		str := fmt.Sprintf("adding opcodes would exceed the maximum "+
			"allowed canonical script length of %d", MaxScriptSize)
		b.err = ErrScriptNotCanonical(str)
		return b
	}

	b.script = append(b.script, opcodes...)
	return b
}

// canonicalDataSize 返回以最小推送规则推送 data 所需的字节数。
func canonicalDataSize(data []byte) int {
	dataLen := len(data)

	if dataLen == 0 {
		return 1
	} else if dataLen == 1 && (data[0] <= 16 || data[0] == 0x81) {
		return 1
	}

	return pushPrefixSize(dataLen) + dataLen
}

// pushPrefixSize 返回推送 dataLen 字节所需的最短前缀长度。
func pushPrefixSize(dataLen int) int {
	switch {
	case dataLen < OP_PUSHDATA1:
		return 1
	case dataLen <= 0xff:
		return 2
	case dataLen <= 0xffff:
		return 3
	}
	return 5
}

// appendPushPrefix 追加推送 dataLen 字节所需的最短前缀。
func appendPushPrefix(script []byte, dataLen int) []byte {
	switch {
	case dataLen < OP_PUSHDATA1:
		return append(script, byte(dataLen))
	case dataLen <= 0xff:
		return append(script, OP_PUSHDATA1, byte(dataLen))
	case dataLen <= 0xffff:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(dataLen))
		script = append(script, OP_PUSHDATA2)
		return append(script, buf...)
	}

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(dataLen))
	script = append(script, OP_PUSHDATA4)
	return append(script, buf...)
}

// addData 以最小推送规则追加数据，不检查任何大小限制。
func (b *ScriptBuilder) addData(data []byte) *ScriptBuilder {
	dataLen := len(data)

	// Empty pushes and small single byte values have dedicated opcodes.
	if dataLen == 0 || dataLen == 1 && data[0] == 0 {
		b.script = append(b.script, OP_0)
		return b
	} else if dataLen == 1 && data[0] <= 16 {
		b.script = append(b.script, (OP_1-1)+data[0])
		return b
	} else if dataLen == 1 && data[0] == 0x81 {
		b.script = append(b.script, byte(OP_1NEGATE))
		return b
	}

	b.script = appendPushPrefix(b.script, dataLen)
	b.script = append(b.script, data...)
	return b
}

// AddFullData 追加数据且不做任何大小检查，只应用于测试构造非标准脚本。
func (b *ScriptBuilder) AddFullData(data []byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	return b.addData(data)
}

// AddData 以最小推送规则追加数据：空数据和 1 到 16 的单字节使用小整数操作码，其余使用最短的长度前缀。
// 超过 MaxScriptElementSize 的数据或会使脚本超过 MaxScriptSize 的数据会使构建器进入错误状态。
func (b *ScriptBuilder) AddData(data []byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	dataSize := canonicalDataSize(data)
	if len(b.script)+dataSize > MaxScriptSize {
		str := fmt.Sprintf("adding %d bytes of data would exceed the "+
			"maximum allowed canonical script length of %d",
			dataSize, MaxScriptSize)
		b.err = ErrScriptNotCanonical(str)
		return b
	}

	dataLen := len(data)
	if dataLen > MaxScriptElementSize {
		str := fmt.Sprintf("adding a data element of %d bytes would "+
			"exceed the maximum allowed script element size of %d",
			dataLen, MaxScriptElementSize)
		b.err = ErrScriptNotCanonical(str)
		return b
	}

	return b.addData(data)
}

// AddPushData 以数据推送的形式追加数据，即使数据只有一个字节也不会替换为小整数操作码。
// 名字脚本等要求参数必须是数据推送的场景使用此方法。
func (b *ScriptBuilder) AddPushData(data []byte) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	dataLen := len(data)
	if len(b.script)+pushPrefixSize(dataLen)+dataLen > MaxScriptSize {
		str := fmt.Sprintf("adding %d bytes of data would exceed the "+
			"maximum allowed canonical script length of %d",
			dataLen, MaxScriptSize)
		b.err = ErrScriptNotCanonical(str)
		return b
	}
	if dataLen > MaxScriptElementSize {
		str := fmt.Sprintf("adding a data element of %d bytes would "+
			"exceed the maximum allowed script element size of %d",
			dataLen, MaxScriptElementSize)
		b.err = ErrScriptNotCanonical(str)
		return b
	}

	if dataLen == 0 {
		b.script = append(b.script, OP_0)
		return b
	}
	b.script = appendPushPrefix(b.script, dataLen)
	b.script = append(b.script, data...)
	return b
}

// AddInt64 追加整数：0 使用 OP_0，-1 与 1 到 16 使用对应的单字节操作码，其余值推送其最小数值编码。
func (b *ScriptBuilder) AddInt64(val int64) *ScriptBuilder {
	if b.err != nil {
		return b
	}

	if len(b.script)+1 > MaxScriptSize {
		str := fmt.Sprintf("adding an integer would exceed the "+
			"maximum allow canonical script length of %d",
			MaxScriptSize)
		b.err = ErrScriptNotCanonical(str)
		return b
	}

	if val == 0 {
		b.script = append(b.script, OP_0)
		return b
	}
	if val == -1 || (val >= 1 && val <= 16) {
		b.script = append(b.script, byte((OP_1-1)+val))
		return b
	}

	return b.AddPushData(ScriptNum(val).Bytes())
}

// AddScriptNum 以与 AddInt64 相同的编码追加脚本数值。
func (b *ScriptBuilder) AddScriptNum(num ScriptNum) *ScriptBuilder {
	return b.AddInt64(num.Int64())
}

// Reset 清空构建器中的脚本和错误状态。
func (b *ScriptBuilder) Reset() *ScriptBuilder {
	b.script = b.script[0:0]
	b.err = nil
	return b
}

// Script 返回当前构建的脚本以及构建过程中遇到的第一个错误。
// 出错时脚本为出错前的内容。
func (b *ScriptBuilder) Script() ([]byte, error) {
	return b.script, b.err
}
