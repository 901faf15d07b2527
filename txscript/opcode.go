// 包含脚本语言的操作码定义、名称表以及反汇编相关的辅助函数。

package txscript

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// opcode 描述一个操作码的值、可读名称以及它在脚本中占用的长度。
// length 为正数时表示操作码连同数据的总字节数，为负数时表示后续长度前缀的字节数（-1、-2、-4）。
type opcode struct {
	value  byte
	name   string
	length int
}

// 数据推送操作码。OP_DATA_n 直接推送后续的 n 个字节。
const (
	OP_0     = 0x00
	OP_FALSE = 0x00
)

const (
	OP_DATA_1 = iota + 1
	OP_DATA_2
	OP_DATA_3
	OP_DATA_4
	OP_DATA_5
	OP_DATA_6
	OP_DATA_7
	OP_DATA_8
	OP_DATA_9
	OP_DATA_10
	OP_DATA_11
	OP_DATA_12
	OP_DATA_13
	OP_DATA_14
	OP_DATA_15
	OP_DATA_16
	OP_DATA_17
	OP_DATA_18
	OP_DATA_19
	OP_DATA_20
	OP_DATA_21
	OP_DATA_22
	OP_DATA_23
	OP_DATA_24
	OP_DATA_25
	OP_DATA_26
	OP_DATA_27
	OP_DATA_28
	OP_DATA_29
	OP_DATA_30
	OP_DATA_31
	OP_DATA_32
	OP_DATA_33
	OP_DATA_34
	OP_DATA_35
	OP_DATA_36
	OP_DATA_37
	OP_DATA_38
	OP_DATA_39
	OP_DATA_40
	OP_DATA_41
	OP_DATA_42
	OP_DATA_43
	OP_DATA_44
	OP_DATA_45
	OP_DATA_46
	OP_DATA_47
	OP_DATA_48
	OP_DATA_49
	OP_DATA_50
	OP_DATA_51
	OP_DATA_52
	OP_DATA_53
	OP_DATA_54
	OP_DATA_55
	OP_DATA_56
	OP_DATA_57
	OP_DATA_58
	OP_DATA_59
	OP_DATA_60
	OP_DATA_61
	OP_DATA_62
	OP_DATA_63
	OP_DATA_64
	OP_DATA_65
	OP_DATA_66
	OP_DATA_67
	OP_DATA_68
	OP_DATA_69
	OP_DATA_70
	OP_DATA_71
	OP_DATA_72
	OP_DATA_73
	OP_DATA_74
	OP_DATA_75
)

// 其余具名操作码。
const (
	OP_PUSHDATA1 = 0x4c
	OP_PUSHDATA2 = 0x4d
	OP_PUSHDATA4 = 0x4e
	OP_1NEGATE   = 0x4f
	OP_RESERVED  = 0x50
	OP_1         = 0x51
	OP_TRUE      = 0x51
	OP_2         = 0x52
	OP_3         = 0x53
	OP_4         = 0x54
	OP_5         = 0x55
	OP_6         = 0x56
	OP_7         = 0x57
	OP_8         = 0x58
	OP_9         = 0x59
	OP_10        = 0x5a
	OP_11        = 0x5b
	OP_12        = 0x5c
	OP_13        = 0x5d
	OP_14        = 0x5e
	OP_15        = 0x5f
	OP_16        = 0x60

	// 流程控制
	OP_NOP      = 0x61
	OP_VER      = 0x62
	OP_IF       = 0x63
	OP_NOTIF    = 0x64
	OP_VERIF    = 0x65
	OP_VERNOTIF = 0x66
	OP_ELSE     = 0x67
	OP_ENDIF    = 0x68
	OP_VERIFY   = 0x69
	OP_RETURN   = 0x6a

	// 栈操作
	OP_TOALTSTACK   = 0x6b
	OP_FROMALTSTACK = 0x6c
	OP_2DROP        = 0x6d
	OP_2DUP         = 0x6e
	OP_3DUP         = 0x6f
	OP_2OVER        = 0x70
	OP_2ROT         = 0x71
	OP_2SWAP        = 0x72
	OP_IFDUP        = 0x73
	OP_DEPTH        = 0x74
	OP_DROP         = 0x75
	OP_DUP          = 0x76
	OP_NIP          = 0x77
	OP_OVER         = 0x78
	OP_PICK         = 0x79
	OP_ROLL         = 0x7a
	OP_ROT          = 0x7b
	OP_SWAP         = 0x7c
	OP_TUCK         = 0x7d

	// 字节串操作（大部分已禁用）
	OP_CAT    = 0x7e
	OP_SUBSTR = 0x7f
	OP_LEFT   = 0x80
	OP_RIGHT  = 0x81
	OP_SIZE   = 0x82

	// 位逻辑
	OP_INVERT      = 0x83
	OP_AND         = 0x84
	OP_OR          = 0x85
	OP_XOR         = 0x86
	OP_EQUAL       = 0x87
	OP_EQUALVERIFY = 0x88
	OP_RESERVED1   = 0x89
	OP_RESERVED2   = 0x8a

	// 数值运算
	OP_1ADD               = 0x8b
	OP_1SUB               = 0x8c
	OP_2MUL               = 0x8d
	OP_2DIV               = 0x8e
	OP_NEGATE             = 0x8f
	OP_ABS                = 0x90
	OP_NOT                = 0x91
	OP_0NOTEQUAL          = 0x92
	OP_ADD                = 0x93
	OP_SUB                = 0x94
	OP_MUL                = 0x95
	OP_DIV                = 0x96
	OP_MOD                = 0x97
	OP_LSHIFT             = 0x98
	OP_RSHIFT             = 0x99
	OP_BOOLAND            = 0x9a
	OP_BOOLOR             = 0x9b
	OP_NUMEQUAL           = 0x9c
	OP_NUMEQUALVERIFY     = 0x9d
	OP_NUMNOTEQUAL        = 0x9e
	OP_LESSTHAN           = 0x9f
	OP_GREATERTHAN        = 0xa0
	OP_LESSTHANOREQUAL    = 0xa1
	OP_GREATERTHANOREQUAL = 0xa2
	OP_MIN                = 0xa3
	OP_MAX                = 0xa4
	OP_WITHIN             = 0xa5

	// 密码学
	OP_RIPEMD160           = 0xa6
	OP_SHA1                = 0xa7
	OP_SHA256              = 0xa8
	OP_HASH160             = 0xa9
	OP_HASH256             = 0xaa
	OP_CODESEPARATOR       = 0xab
	OP_CHECKSIG            = 0xac
	OP_CHECKSIGVERIFY      = 0xad
	OP_CHECKMULTISIG       = 0xae
	OP_CHECKMULTISIGVERIFY = 0xaf

	// 扩展
	OP_NOP1                = 0xb0
	OP_NOP2                = 0xb1
	OP_CHECKLOCKTIMEVERIFY = 0xb1
	OP_NOP3                = 0xb2
	OP_CHECKSEQUENCEVERIFY = 0xb2
	OP_NOP4                = 0xb3
	OP_NOP5                = 0xb4
	OP_NOP6                = 0xb5
	OP_NOP7                = 0xb6
	OP_NOP8                = 0xb7
	OP_NOP9                = 0xb8
	OP_NOP10               = 0xb9

	// 节点内部使用的模板占位码，不会出现在合法脚本中。
	OP_SMALLINTEGER  = 0xfa
	OP_PUBKEYS       = 0xfb
	OP_PUBKEYHASH    = 0xfd
	OP_PUBKEY        = 0xfe
	OP_INVALIDOPCODE = 0xff
)

// 名字操作复用小整数操作码作为脚本前缀。
const (
	OP_NAME_NEW         = OP_1
	OP_NAME_FIRSTUPDATE = OP_2
	OP_NAME_UPDATE      = OP_3
)

// MaxOpcode 是 HasValidOps 认可的最大操作码。
const MaxOpcode = OP_NOP10

// namedOpcodes 列出除数据推送与未知值之外所有具名操作码的显示名称。
var namedOpcodes = map[byte]string{
	OP_0:                   "OP_0",
	OP_PUSHDATA1:           "OP_PUSHDATA1",
	OP_PUSHDATA2:           "OP_PUSHDATA2",
	OP_PUSHDATA4:           "OP_PUSHDATA4",
	OP_1NEGATE:             "OP_1NEGATE",
	OP_RESERVED:            "OP_RESERVED",
	OP_NOP:                 "OP_NOP",
	OP_VER:                 "OP_VER",
	OP_IF:                  "OP_IF",
	OP_NOTIF:               "OP_NOTIF",
	OP_VERIF:               "OP_VERIF",
	OP_VERNOTIF:            "OP_VERNOTIF",
	OP_ELSE:                "OP_ELSE",
	OP_ENDIF:               "OP_ENDIF",
	OP_VERIFY:              "OP_VERIFY",
	OP_RETURN:              "OP_RETURN",
	OP_TOALTSTACK:          "OP_TOALTSTACK",
	OP_FROMALTSTACK:        "OP_FROMALTSTACK",
	OP_2DROP:               "OP_2DROP",
	OP_2DUP:                "OP_2DUP",
	OP_3DUP:                "OP_3DUP",
	OP_2OVER:               "OP_2OVER",
	OP_2ROT:                "OP_2ROT",
	OP_2SWAP:               "OP_2SWAP",
	OP_IFDUP:               "OP_IFDUP",
	OP_DEPTH:               "OP_DEPTH",
	OP_DROP:                "OP_DROP",
	OP_DUP:                 "OP_DUP",
	OP_NIP:                 "OP_NIP",
	OP_OVER:                "OP_OVER",
	OP_PICK:                "OP_PICK",
	OP_ROLL:                "OP_ROLL",
	OP_ROT:                 "OP_ROT",
	OP_SWAP:                "OP_SWAP",
	OP_TUCK:                "OP_TUCK",
	OP_CAT:                 "OP_CAT",
	OP_SUBSTR:              "OP_SUBSTR",
	OP_LEFT:                "OP_LEFT",
	OP_RIGHT:               "OP_RIGHT",
	OP_SIZE:                "OP_SIZE",
	OP_INVERT:              "OP_INVERT",
	OP_AND:                 "OP_AND",
	OP_OR:                  "OP_OR",
	OP_XOR:                 "OP_XOR",
	OP_EQUAL:               "OP_EQUAL",
	OP_EQUALVERIFY:         "OP_EQUALVERIFY",
	OP_RESERVED1:           "OP_RESERVED1",
	OP_RESERVED2:           "OP_RESERVED2",
	OP_1ADD:                "OP_1ADD",
	OP_1SUB:                "OP_1SUB",
	OP_2MUL:                "OP_2MUL",
	OP_2DIV:                "OP_2DIV",
	OP_NEGATE:              "OP_NEGATE",
	OP_ABS:                 "OP_ABS",
	OP_NOT:                 "OP_NOT",
	OP_0NOTEQUAL:           "OP_0NOTEQUAL",
	OP_ADD:                 "OP_ADD",
	OP_SUB:                 "OP_SUB",
	OP_MUL:                 "OP_MUL",
	OP_DIV:                 "OP_DIV",
	OP_MOD:                 "OP_MOD",
	OP_LSHIFT:              "OP_LSHIFT",
	OP_RSHIFT:              "OP_RSHIFT",
	OP_BOOLAND:             "OP_BOOLAND",
	OP_BOOLOR:              "OP_BOOLOR",
	OP_NUMEQUAL:            "OP_NUMEQUAL",
	OP_NUMEQUALVERIFY:      "OP_NUMEQUALVERIFY",
	OP_NUMNOTEQUAL:         "OP_NUMNOTEQUAL",
	OP_LESSTHAN:            "OP_LESSTHAN",
	OP_GREATERTHAN:         "OP_GREATERTHAN",
	OP_LESSTHANOREQUAL:     "OP_LESSTHANOREQUAL",
	OP_GREATERTHANOREQUAL:  "OP_GREATERTHANOREQUAL",
	OP_MIN:                 "OP_MIN",
	OP_MAX:                 "OP_MAX",
	OP_WITHIN:              "OP_WITHIN",
	OP_RIPEMD160:           "OP_RIPEMD160",
	OP_SHA1:                "OP_SHA1",
	OP_SHA256:              "OP_SHA256",
	OP_HASH160:             "OP_HASH160",
	OP_HASH256:             "OP_HASH256",
	OP_CODESEPARATOR:       "OP_CODESEPARATOR",
	OP_CHECKSIG:            "OP_CHECKSIG",
	OP_CHECKSIGVERIFY:      "OP_CHECKSIGVERIFY",
	OP_CHECKMULTISIG:       "OP_CHECKMULTISIG",
	OP_CHECKMULTISIGVERIFY: "OP_CHECKMULTISIGVERIFY",
	OP_NOP1:                "OP_NOP1",
	OP_CHECKLOCKTIMEVERIFY: "OP_CHECKLOCKTIMEVERIFY",
	OP_CHECKSEQUENCEVERIFY: "OP_CHECKSEQUENCEVERIFY",
	OP_NOP4:                "OP_NOP4",
	OP_NOP5:                "OP_NOP5",
	OP_NOP6:                "OP_NOP6",
	OP_NOP7:                "OP_NOP7",
	OP_NOP8:                "OP_NOP8",
	OP_NOP9:                "OP_NOP9",
	OP_NOP10:               "OP_NOP10",
	OP_SMALLINTEGER:        "OP_SMALLINTEGER",
	OP_PUBKEYS:             "OP_PUBKEYS",
	OP_PUBKEYHASH:          "OP_PUBKEYHASH",
	OP_PUBKEY:              "OP_PUBKEY",
	OP_INVALIDOPCODE:       "OP_INVALIDOPCODE",
}

// opcodeArray 保存全部 256 个字节值的操作码信息，在 init 中根据 namedOpcodes 生成。
var opcodeArray [256]opcode

// opcodeByName 把显示名称（带或不带 OP_ 前缀）映射回操作码，用于解析文本形式的脚本。
var opcodeByName = make(map[string]byte)

func init() {
	for i := 0; i < len(opcodeArray); i++ {
		op := byte(i)
		entry := opcode{value: op, length: 1}

		switch {
		case op >= OP_DATA_1 && op <= OP_DATA_75:
			entry.name = fmt.Sprintf("OP_DATA_%d", op)
			entry.length = int(op) + 1
		case op >= OP_1 && op <= OP_16:
			entry.name = fmt.Sprintf("OP_%d", op-(OP_1-1))
		case op == OP_PUSHDATA1:
			entry.length = -1
		case op == OP_PUSHDATA2:
			entry.length = -2
		case op == OP_PUSHDATA4:
			entry.length = -4
		}
		if name, ok := namedOpcodes[op]; ok {
			entry.name = name
		}
		if entry.name == "" {
			entry.name = fmt.Sprintf("OP_UNKNOWN%d", op)
		}
		opcodeArray[i] = entry

		// Only opcodes from OP_NOP up to MaxOpcode plus OP_RESERVED are
		// addressable by name in the textual script notation.
		if (op >= OP_NOP && op <= MaxOpcode) || op == OP_RESERVED {
			opcodeByName[entry.name] = op
			opcodeByName[strings.TrimPrefix(entry.name, "OP_")] = op
		}
	}
	opcodeByName["OP_NOP2"] = OP_CHECKLOCKTIMEVERIFY
	opcodeByName["NOP2"] = OP_CHECKLOCKTIMEVERIFY
	opcodeByName["OP_NOP3"] = OP_CHECKSEQUENCEVERIFY
	opcodeByName["NOP3"] = OP_CHECKSEQUENCEVERIFY
}

// GetOpName 返回单行汇编输出中操作码使用的名称。
// OP_0、OP_1NEGATE 与 OP_1 到 OP_16 以数字表示；没有名称的值（包括直接数据推送）返回 "OP_UNKNOWN"。
func GetOpName(op byte) string {
	switch {
	case op == OP_0:
		return "0"
	case op == OP_1NEGATE:
		return "-1"
	case op >= OP_1 && op <= OP_16:
		return fmt.Sprintf("%d", op-(OP_1-1))
	case op >= OP_DATA_1 && op <= OP_DATA_75:
		return "OP_UNKNOWN"
	}
	if name, ok := namedOpcodes[op]; ok {
		return name
	}
	return "OP_UNKNOWN"
}

// IsSmallInt 返回操作码是否为 OP_0 或 OP_1 到 OP_16 之一。
func IsSmallInt(op byte) bool {
	return op == OP_0 || (op >= OP_1 && op <= OP_16)
}

// AsSmallInt 返回小整数操作码表示的数值，调用方需保证 IsSmallInt(op) 为 true。
func AsSmallInt(op byte) int {
	if op == OP_0 {
		return 0
	}
	return int(op - (OP_1 - 1))
}

// encodeSmallInt 返回数值 0 到 16 对应的小整数操作码。
func encodeSmallInt(n int) byte {
	if n == 0 {
		return OP_0
	}
	return byte(OP_1 - 1 + n)
}

// disasmOpcode 把操作码及其数据的反汇编文本写入 buf。
// compact 为 true 时，小整数写成数字，数据推送只写十六进制数据。
func disasmOpcode(buf *strings.Builder, op *opcode, data []byte, compact bool) {
	if compact {
		switch {
		case op.value == OP_0:
			buf.WriteString("0")
		case op.value == OP_1NEGATE:
			buf.WriteString("-1")
		case op.value >= OP_1 && op.value <= OP_16:
			fmt.Fprintf(buf, "%d", AsSmallInt(op.value))
		case op.length == 1:
			buf.WriteString(op.name)
		default:
			buf.WriteString(hex.EncodeToString(data))
		}
		return
	}

	buf.WriteString(op.name)
	switch op.length {
	case 1:
		return
	case -1:
		fmt.Fprintf(buf, " 0x%02x", len(data))
	case -2:
		fmt.Fprintf(buf, " 0x%04x", len(data))
	case -4:
		fmt.Fprintf(buf, " 0x%08x", len(data))
	}
	fmt.Fprintf(buf, " 0x%02x", data)
}
