package txscript

import (
	"fmt"
)

// NameOp 是名字脚本的操作类型。
type NameOp byte

// 名字操作。
const (
	NameNew         NameOp = OP_NAME_NEW
	NameFirstUpdate NameOp = OP_NAME_FIRSTUPDATE
	NameUpdate      NameOp = OP_NAME_UPDATE
)

// nameOpArgs 是每种名字操作要求的参数个数。
var nameOpArgs = map[NameOp]int{
	NameNew:         1,
	NameFirstUpdate: 3,
	NameUpdate:      2,
}

// String 返回名字操作的名称。
func (op NameOp) String() string {
	switch op {
	case NameNew:
		return "name_new"
	case NameFirstUpdate:
		return "name_firstupdate"
	case NameUpdate:
		return "name_update"
	}
	return fmt.Sprintf("unknown name op %d", byte(op))
}

// NameScript 是解析后的名字脚本。
//
// 名字脚本由名字前缀和地址脚本组成：
//
//	OP_NAME_NEW <hash> OP_2DROP <地址>
//	OP_NAME_FIRSTUPDATE <name> <rand> <value> OP_2DROP OP_2DROP <地址>
//	OP_NAME_UPDATE <name> <value> OP_2DROP OP_DROP <地址>
type NameScript struct {
	Op      NameOp
	Args    [][]byte
	Address []byte
}

// Name 返回名字，name_new 没有名字，返回 nil。
func (s *NameScript) Name() []byte {
	if s.Op == NameNew {
		return nil
	}
	return s.Args[0]
}

// Value 返回名字的值，name_new 返回 nil。
func (s *NameScript) Value() []byte {
	switch s.Op {
	case NameFirstUpdate:
		return s.Args[2]
	case NameUpdate:
		return s.Args[1]
	}
	return nil
}

// Rand 返回 name_firstupdate 揭示的随机数。
func (s *NameScript) Rand() []byte {
	if s.Op == NameFirstUpdate {
		return s.Args[1]
	}
	return nil
}

// Hash 返回 name_new 承诺的哈希。
func (s *NameScript) Hash() []byte {
	if s.Op == NameNew {
		return s.Args[0]
	}
	return nil
}

// IsAnyUpdate 返回操作是否为 name_firstupdate 或 name_update。
func (s *NameScript) IsAnyUpdate() bool {
	return s.Op == NameFirstUpdate || s.Op == NameUpdate
}

// isNameDrop 返回操作码是否结束名字参数。
func isNameDrop(op byte) bool {
	return op == OP_DROP || op == OP_2DROP || op == OP_NOP
}

// ParseNameScript 尝试把脚本解析为名字脚本。
//
// 第一个操作码决定名字操作，随后的数据推送是参数，直到遇到 OP_DROP、OP_2DROP 或 OP_NOP；
// 出现其他非推送操作码时不是名字脚本。跳过所有连续的丢弃操作码后，剩余部分为地址脚本。
// 参数个数必须与操作相符。
func ParseNameScript(script []byte) (*NameScript, bool) {
	tokenizer := MakeScriptTokenizer(script)
	if !tokenizer.Next() {
		return nil, false
	}
	op := NameOp(tokenizer.Opcode())
	wantArgs, ok := nameOpArgs[op]
	if !ok {
		return nil, false
	}

	var args [][]byte
	for {
		if !tokenizer.Next() {
			return nil, false
		}
		if isNameDrop(tokenizer.Opcode()) {
			break
		}
		if tokenizer.Opcode() > OP_PUSHDATA4 {
			return nil, false
		}
		args = append(args, tokenizer.Data())
	}
	if len(args) != wantArgs {
		return nil, false
	}

	addrStart := tokenizer.ByteIndex()
	for tokenizer.Next() && isNameDrop(tokenizer.Opcode()) {
		addrStart = tokenizer.ByteIndex()
	}

	return &NameScript{
		Op:      op,
		Args:    args,
		Address: script[addrStart:],
	}, true
}

// IsNameScript 返回脚本是否为名字脚本。
func IsNameScript(script []byte) bool {
	_, ok := ParseNameScript(script)
	return ok
}

// StripNamePrefix 返回名字脚本的地址部分，普通脚本原样返回。
func StripNamePrefix(script []byte) []byte {
	if nameScript, ok := ParseNameScript(script); ok {
		return nameScript.Address
	}
	return script
}

// BuildNameNew 创建 name_new 脚本，hash 是对随机数与名字的承诺。
func BuildNameNew(addr, hash []byte) ([]byte, error) {
	builder := NewScriptBuilder(WithScriptAllocSize(len(addr) + len(hash) + 4))
	builder.AddOp(OP_NAME_NEW).AddPushData(hash).AddOp(OP_2DROP)
	builder.AddOps(addr)
	return builder.Script()
}

// BuildNameFirstUpdate 创建 name_firstupdate 脚本。
func BuildNameFirstUpdate(addr, name, rand, value []byte) ([]byte, error) {
	builder := NewScriptBuilder()
	builder.AddOp(OP_NAME_FIRSTUPDATE).AddPushData(name).AddPushData(rand).
		AddPushData(value).AddOp(OP_2DROP).AddOp(OP_2DROP)
	builder.AddOps(addr)
	return builder.Script()
}

// BuildNameUpdate 创建 name_update 脚本。
func BuildNameUpdate(addr, name, value []byte) ([]byte, error) {
	builder := NewScriptBuilder()
	builder.AddOp(OP_NAME_UPDATE).AddPushData(name).AddPushData(value).
		AddOp(OP_2DROP).AddOp(OP_DROP)
	builder.AddOps(addr)
	return builder.Script()
}
