// 包含识别标准脚本模板的分类器以及中继策略下的标准性判断。

package txscript

import (
	"fmt"
)

const (
	// MaxDataCarrierBytes 是中继策略允许的空数据输出脚本的最大字节数（含 OP_RETURN 与推送前缀）。
	MaxDataCarrierBytes = 83

	// MaxStandardMultiSigKeys 是标准裸多签脚本允许的最大公钥数量。
	MaxStandardMultiSigKeys = 3

	// witnessV0PubKeyHashLen 与 witnessV0ScriptHashLen 是版本 0 见证程序的长度。
	witnessV0PubKeyHashLen = 20
	witnessV0ScriptHashLen = 32
)

// ScriptClass 是脚本标准类型列表的枚举。
type ScriptClass byte

// 区块链中已知的脚本支付类别。
const (
	NonStandardTy         ScriptClass = iota // 没有任何公认的形式。
	PubKeyTy                                 // 支付到公钥。
	PubKeyHashTy                             // 支付到公钥哈希。
	ScriptHashTy                             // 支付到脚本哈希。
	MultiSigTy                               // 裸多重签名。
	NullDataTy                               // 只有空数据（可证明可剪枝）。
	WitnessV0PubKeyHashTy                    // 支付到见证公钥哈希。
	WitnessV0ScriptHashTy                    // 支付到见证脚本哈希。
	WitnessUnknownTy                         // 未知版本的见证程序。
)

// scriptClassToName 包含描述每个脚本类的字符串。
var scriptClassToName = []string{
	NonStandardTy:         "nonstandard",
	PubKeyTy:              "pubkey",
	PubKeyHashTy:          "pubkeyhash",
	ScriptHashTy:          "scripthash",
	MultiSigTy:            "multisig",
	NullDataTy:            "nulldata",
	WitnessV0PubKeyHashTy: "witness_v0_keyhash",
	WitnessV0ScriptHashTy: "witness_v0_scripthash",
	WitnessUnknownTy:      "witness_unknown",
}

// String 通过返回枚举脚本类的名称来实现 Stringer 接口。如果枚举无效，则返回 "Invalid"。
func (t ScriptClass) String() string {
	if int(t) >= len(scriptClassToName) {
		return "Invalid"
	}
	return scriptClassToName[t]
}

// NewScriptClass 返回与名称对应的 ScriptClass。
func NewScriptClass(name string) (ScriptClass, error) {
	for i, n := range scriptClassToName {
		if n == name {
			return ScriptClass(i), nil
		}
	}

	str := fmt.Sprintf("unknown script class %q", name)
	return NonStandardTy, scriptError(ErrUnknown, str)
}

// pubKeyLenForHeader 根据公钥首字节返回期望的公钥长度，未知首字节返回 0。
func pubKeyLenForHeader(header byte) int {
	switch header {
	case 0x02, 0x03:
		return 33
	case 0x04, 0x06, 0x07:
		return 65
	}
	return 0
}

// isValidSizePubKey 返回数据的长度是否与其首字节声明的公钥格式相符。
// 混合格式（0x06、0x07）同样接受，此处不校验点是否在曲线上。
func isValidSizePubKey(data []byte) bool {
	return len(data) > 0 && len(data) == pubKeyLenForHeader(data[0])
}

// extractPubKey 在脚本为 <公钥> OP_CHECKSIG 形式时返回公钥，否则返回 nil。
func extractPubKey(script []byte) []byte {
	// A pay-to-pubkey script is of the form:
	//  OP_DATA_65 <65-byte pubkey> OP_CHECKSIG
	//  OP_DATA_33 <33-byte pubkey> OP_CHECKSIG
	switch len(script) {
	case 67:
		if script[0] == OP_DATA_65 && script[66] == OP_CHECKSIG &&
			isValidSizePubKey(script[1:66]) {

			return script[1:66]
		}
	case 35:
		if script[0] == OP_DATA_33 && script[34] == OP_CHECKSIG &&
			isValidSizePubKey(script[1:34]) {

			return script[1:34]
		}
	}

	return nil
}

// extractPubKeyHash 在脚本为标准的支付到公钥哈希脚本时返回公钥哈希，否则返回 nil。
func extractPubKeyHash(script []byte) []byte {
	// A pay-to-pubkey-hash script is of the form:
	//  OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG
	if len(script) == 25 &&
		script[0] == OP_DUP &&
		script[1] == OP_HASH160 &&
		script[2] == OP_DATA_20 &&
		script[23] == OP_EQUALVERIFY &&
		script[24] == OP_CHECKSIG {

		return script[3:23]
	}

	return nil
}

// extractScriptHash 在脚本为标准的支付到脚本哈希脚本时返回脚本哈希，否则返回 nil。
func extractScriptHash(script []byte) []byte {
	if IsPayToScriptHash(script) {
		return script[2:22]
	}
	return nil
}

// multiSigDetails 包含从标准多重签名脚本中提取的详细信息。
type multiSigDetails struct {
	requiredSigs int
	numPubKeys   int
	pubKeys      [][]byte
	valid        bool
}

// extractMultisigScriptDetails 尝试从脚本中提取多签信息，不是多签脚本时 valid 为 false。
//
// 多签脚本的形式为：
//
//	OP_m <公钥>... OP_n OP_CHECKMULTISIG
//
// m 与 n 必须是 OP_1 到 OP_16，公钥数量等于 n 且 m 不大于 n。
// 公钥只按首字节与长度检查，不要求点在曲线上。
func extractMultisigScriptDetails(script []byte, extractPubKeys bool) multiSigDetails {
	if len(script) < 1 || script[len(script)-1] != OP_CHECKMULTISIG {
		return multiSigDetails{}
	}

	tokenizer := MakeScriptTokenizer(script)
	if !tokenizer.Next() || tokenizer.Opcode() < OP_1 || tokenizer.Opcode() > OP_16 {
		return multiSigDetails{}
	}
	requiredSigs := AsSmallInt(tokenizer.Opcode())

	var pubKeys [][]byte
	numPubKeys := 0
	stopped := false
	for tokenizer.Next() {
		if !isValidSizePubKey(tokenizer.Data()) {
			stopped = true
			break
		}
		numPubKeys++
		if extractPubKeys {
			pubKeys = append(pubKeys, tokenizer.Data())
		}
	}
	if !stopped {
		return multiSigDetails{}
	}

	// 停止处的操作码必须是公钥数量。
	op := tokenizer.Opcode()
	if op < OP_1 || op > OP_16 {
		return multiSigDetails{}
	}
	if AsSmallInt(op) != numPubKeys || numPubKeys < requiredSigs {
		return multiSigDetails{}
	}

	// 之后只能剩下末尾的 OP_CHECKMULTISIG。
	if int(tokenizer.ByteIndex())+1 != len(script) {
		return multiSigDetails{}
	}

	return multiSigDetails{
		requiredSigs: requiredSigs,
		numPubKeys:   numPubKeys,
		pubKeys:      pubKeys,
		valid:        true,
	}
}

// IsMultisigScript 返回脚本是否为标准多重签名脚本。
func IsMultisigScript(script []byte) bool {
	return extractMultisigScriptDetails(script, false).valid
}

// CalcMultiSigStats 返回多签脚本的公钥数量与所需签名数量。脚本不是多签脚本时返回 ErrNotMultisigScript。
func CalcMultiSigStats(script []byte) (int, int, error) {
	details := extractMultisigScriptDetails(script, false)
	if !details.valid {
		str := fmt.Sprintf("script %x is not a multisig script", script)
		return 0, 0, scriptError(ErrNotMultisigScript, str)
	}

	return details.numPubKeys, details.requiredSigs, nil
}

// isNullDataScript 返回脚本是否为 OP_RETURN 后跟零个或多个数据推送的空数据脚本。
func isNullDataScript(script []byte) bool {
	return len(script) >= 1 && script[0] == OP_RETURN && IsPushOnlyScript(script[1:])
}

// IsNullData 返回脚本是否为空数据脚本，不检查数据大小。
func IsNullData(script []byte) bool {
	return isNullDataScript(script)
}

// Solver 对脚本进行模板分类，返回类别与从模板中提取的数据。
//
// 模板按固定顺序尝试：空数据、多签、公钥、公钥哈希、脚本哈希、见证 v0 公钥哈希、
// 见证 v0 脚本哈希、未知版本见证程序，均不匹配时为 NonStandardTy。各模板互斥。
// 提取的数据：单公钥或单哈希模板为该公钥或哈希；多签为 [m, 公钥..., n]，m 与 n 各占一个字节；
// 未知见证为 [版本, 程序]。
//
// 名字脚本按其地址部分分类；名字前缀后接空数据地址时为 NonStandardTy，因为这样的输出并非不可花费。
// 超过 MaxScriptSize 的名字脚本同样为 NonStandardTy。
func Solver(script []byte) (ScriptClass, [][]byte) {
	if nameScript, ok := ParseNameScript(script); ok {
		if len(script) > MaxScriptSize {
			return NonStandardTy, nil
		}
		class, solutions := solveAddress(nameScript.Address)
		if class == NullDataTy {
			return NonStandardTy, nil
		}
		return class, solutions
	}

	return solveAddress(script)
}

// solveAddress 对不含名字前缀的脚本进行模板分类。
func solveAddress(script []byte) (ScriptClass, [][]byte) {
	if isNullDataScript(script) {
		return NullDataTy, nil
	}

	if details := extractMultisigScriptDetails(script, true); details.valid {
		solutions := make([][]byte, 0, len(details.pubKeys)+2)
		solutions = append(solutions, []byte{byte(details.requiredSigs)})
		solutions = append(solutions, details.pubKeys...)
		solutions = append(solutions, []byte{byte(details.numPubKeys)})
		return MultiSigTy, solutions
	}

	if pubKey := extractPubKey(script); pubKey != nil {
		return PubKeyTy, [][]byte{pubKey}
	}

	if hash := extractPubKeyHash(script); hash != nil {
		return PubKeyHashTy, [][]byte{hash}
	}

	if hash := extractScriptHash(script); hash != nil {
		return ScriptHashTy, [][]byte{hash}
	}

	if version, program, ok := extractWitnessProgramInfo(script); ok {
		switch {
		case version == 0 && len(program) == witnessV0PubKeyHashLen:
			return WitnessV0PubKeyHashTy, [][]byte{program}
		case version == 0 && len(program) == witnessV0ScriptHashLen:
			return WitnessV0ScriptHashTy, [][]byte{program}
		case version != 0:
			return WitnessUnknownTy, [][]byte{{byte(version)}, program}
		}
	}

	return NonStandardTy, nil
}

// GetScriptClass 返回脚本的类别。无法解析的脚本为 NonStandardTy。
func GetScriptClass(script []byte) ScriptClass {
	class, _ := Solver(script)
	return class
}

// StandardPolicy 描述输出脚本标准性判断使用的中继策略。
type StandardPolicy struct {
	// AcceptDataCarrier 为 false 时空数据输出都不是标准的。
	AcceptDataCarrier bool

	// MaxDataCarrierBytes 是空数据输出脚本的最大字节数。
	MaxDataCarrierBytes int

	// MaxStandardMultiSigKeys 是裸多签允许的最大公钥数。
	MaxStandardMultiSigKeys int
}

// DefaultStandardPolicy 返回默认中继策略。
func DefaultStandardPolicy() *StandardPolicy {
	return &StandardPolicy{
		AcceptDataCarrier:       true,
		MaxDataCarrierBytes:     MaxDataCarrierBytes,
		MaxStandardMultiSigKeys: MaxStandardMultiSigKeys,
	}
}

// IsStandard 返回输出脚本在该策略下是否标准，同时返回脚本类别。
//
// NonStandardTy 永远不标准；多签要求 1 <= m <= n <= MaxStandardMultiSigKeys；
// 空数据要求接受数据载体且整个脚本不超过 MaxDataCarrierBytes。
func (p *StandardPolicy) IsStandard(script []byte) (bool, ScriptClass) {
	class, solutions := Solver(script)
	switch class {
	case NonStandardTy:
		return false, class

	case MultiSigTy:
		m := int(solutions[0][0])
		n := int(solutions[len(solutions)-1][0])
		if n < 1 || n > p.MaxStandardMultiSigKeys {
			return false, class
		}
		if m < 1 || m > n {
			return false, class
		}

	case NullDataTy:
		if !p.AcceptDataCarrier || len(script) > p.MaxDataCarrierBytes {
			return false, class
		}
	}

	return true, class
}

// IsStandard 使用默认中继策略判断输出脚本是否标准。
func IsStandard(script []byte) (bool, ScriptClass) {
	return DefaultStandardPolicy().IsStandard(script)
}

// NullDataScript 创建一个只携带数据的不可花费输出脚本。数据超过 MaxDataCarrierBytes 能容纳的长度时返回 ErrTooMuchNullData。
func NullDataScript(data []byte) ([]byte, error) {
	if len(data)+pushPrefixSize(len(data))+1 > MaxDataCarrierBytes {
		str := fmt.Sprintf("data size %d is larger than max allowed size %d",
			len(data), MaxDataCarrierBytes)
		return nil, scriptError(ErrTooMuchNullData, str)
	}

	return NewScriptBuilder().AddOp(OP_RETURN).AddData(data).Script()
}

// MultiSigScript 返回 nRequired-of-len(pubKeys) 的多重签名脚本。
// nRequired 超过公钥数量或公钥数量超过 16 时返回 ErrTooManyRequiredSigs。
func MultiSigScript(pubKeys [][]byte, nRequired int) ([]byte, error) {
	if len(pubKeys) < nRequired || len(pubKeys) > 16 || nRequired < 1 {
		str := fmt.Sprintf("unable to generate multisig script with "+
			"%d required signatures when there are only %d public "+
			"keys available", nRequired, len(pubKeys))
		return nil, scriptError(ErrTooManyRequiredSigs, str)
	}

	builder := NewScriptBuilder().AddInt64(int64(nRequired))
	for _, key := range pubKeys {
		builder.AddData(key)
	}
	builder.AddInt64(int64(len(pubKeys)))
	builder.AddOp(OP_CHECKMULTISIG)

	return builder.Script()
}
