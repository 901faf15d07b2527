package txscript

// SigHashType 表示签名末尾附加的哈希类型字节。
type SigHashType uint32

// 签名哈希类型。
const (
	SigHashOld          SigHashType = 0x0
	SigHashAll          SigHashType = 0x1
	SigHashNone         SigHashType = 0x2
	SigHashSingle       SigHashType = 0x3
	SigHashAnyOneCanPay SigHashType = 0x80

	// sigHashMask 定义用于确定签名哈希类型的位数。
	sigHashMask = 0x1f
)

// sigHashTypeNames 是汇编输出中已定义哈希类型的显示名称。
var sigHashTypeNames = map[SigHashType]string{
	SigHashAll:                         "ALL",
	SigHashAll | SigHashAnyOneCanPay:    "ALL|ANYONECANPAY",
	SigHashNone:                        "NONE",
	SigHashNone | SigHashAnyOneCanPay:   "NONE|ANYONECANPAY",
	SigHashSingle:                      "SINGLE",
	SigHashSingle | SigHashAnyOneCanPay: "SINGLE|ANYONECANPAY",
}

// String 返回哈希类型的显示名称，未定义的类型返回空字符串。
func (t SigHashType) String() string {
	return sigHashTypeNames[t]
}

// isDefinedHashType 返回签名最后一个字节是否为已定义的哈希类型。
func isDefinedHashType(sig []byte) bool {
	if len(sig) == 0 {
		return false
	}
	hashType := SigHashType(sig[len(sig)-1]) &^ SigHashAnyOneCanPay
	return hashType >= SigHashAll && hashType <= SigHashSingle
}

// isValidSignatureEncoding 检查带哈希类型字节的签名是否为严格的 DER 编码：
//
//	0x30 [总长度] 0x02 [R 长度] [R] 0x02 [S 长度] [S] [哈希类型]
//
// R 与 S 必须为正数且不能有多余的前导零字节。
func isValidSignatureEncoding(sig []byte) bool {
	// 最短签名 9 字节，最长 73 字节（包括哈希类型）。
	if len(sig) < 9 || len(sig) > 73 {
		return false
	}
	if sig[0] != 0x30 {
		return false
	}
	if int(sig[1]) != len(sig)-3 {
		return false
	}

	lenR := int(sig[3])
	if 5+lenR >= len(sig) {
		return false
	}
	lenS := int(sig[5+lenR])
	if lenR+lenS+7 != len(sig) {
		return false
	}

	if sig[2] != 0x02 || lenR == 0 {
		return false
	}
	if sig[4]&0x80 != 0 {
		return false
	}
	if lenR > 1 && sig[4] == 0x00 && sig[5]&0x80 == 0 {
		return false
	}

	if sig[lenR+4] != 0x02 || lenS == 0 {
		return false
	}
	if sig[lenR+6]&0x80 != 0 {
		return false
	}
	if lenS > 1 && sig[lenR+6] == 0x00 && sig[lenR+7]&0x80 == 0 {
		return false
	}

	return true
}

// isStrictSignatureEncoding 返回签名是否满足严格编码规则：DER 编码且哈希类型已定义。
func isStrictSignatureEncoding(sig []byte) bool {
	return isValidSignatureEncoding(sig) && isDefinedHashType(sig)
}
