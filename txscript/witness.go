// 包含脚本验证标志以及隔离见证签名操作计数。

package txscript

import (
	"github.com/btcsuite/btcd/wire"
)

// ScriptFlags 是一个位掩码，定义验证脚本时启用的附加规则。
type ScriptFlags uint32

const (
	// ScriptVerifyP2SH 启用支付到脚本哈希的验证（BIP16）。
	ScriptVerifyP2SH ScriptFlags = 1 << iota

	// ScriptVerifyStrictEncoding 要求签名与公钥严格编码。
	ScriptVerifyStrictEncoding

	// ScriptVerifyDERSignatures 要求签名符合 DER 编码（BIP66）。
	ScriptVerifyDERSignatures

	// ScriptVerifyLowS 要求签名的 S 值不超过曲线阶的一半。
	ScriptVerifyLowS

	// ScriptVerifyNullDummy 要求 CHECKMULTISIG 多弹出的元素为空。
	ScriptVerifyNullDummy

	// ScriptVerifySigPushOnly 要求签名脚本只包含推送。
	ScriptVerifySigPushOnly

	// ScriptVerifyMinimalData 要求使用最短的推送方式。
	ScriptVerifyMinimalData

	// ScriptVerifyDiscourageUpgradableNops 拒绝为软分叉保留的 NOP1 到 NOP10。
	ScriptVerifyDiscourageUpgradableNops

	// ScriptVerifyCleanStack 要求执行结束后堆栈上正好剩一个元素。
	ScriptVerifyCleanStack

	// ScriptVerifyCheckLockTimeVerify 启用 OP_CHECKLOCKTIMEVERIFY（BIP65）。
	ScriptVerifyCheckLockTimeVerify

	// ScriptVerifyCheckSequenceVerify 启用 OP_CHECKSEQUENCEVERIFY（BIP112）。
	ScriptVerifyCheckSequenceVerify

	// ScriptVerifyWitness 启用见证程序的验证。
	ScriptVerifyWitness

	// ScriptVerifyDiscourageUpgradableWitnessProgram 拒绝版本 1 到 16 的见证程序。
	ScriptVerifyDiscourageUpgradableWitnessProgram

	// ScriptVerifyMinimalIf 要求见证脚本中 OP_IF/OP_NOTIF 的参数为空或 0x01。
	ScriptVerifyMinimalIf

	// ScriptVerifyNullFail 要求失败的 CHECKSIG/CHECKMULTISIG 的签名为空。
	ScriptVerifyNullFail

	// ScriptVerifyWitnessPubKeyType 要求见证脚本中的公钥为压缩格式。
	ScriptVerifyWitnessPubKeyType

	// ScriptVerifyConstScriptCode 拒绝非见证脚本中的 OP_CODESEPARATOR 以及 FindAndDelete 命中。
	ScriptVerifyConstScriptCode
)

const (
	// MandatoryVerifyFlags 是区块中的交易必须满足的标志。
	MandatoryVerifyFlags = ScriptVerifyP2SH

	// StandardVerifyFlags 是中继和打包交易时使用的标志，比共识规则更严格。
	StandardVerifyFlags = MandatoryVerifyFlags |
		ScriptVerifyDERSignatures |
		ScriptVerifyStrictEncoding |
		ScriptVerifyMinimalData |
		ScriptVerifyNullDummy |
		ScriptVerifyDiscourageUpgradableNops |
		ScriptVerifyCleanStack |
		ScriptVerifyCheckLockTimeVerify |
		ScriptVerifyCheckSequenceVerify |
		ScriptVerifyLowS |
		ScriptVerifyWitness |
		ScriptVerifyDiscourageUpgradableWitnessProgram |
		ScriptVerifyMinimalIf |
		ScriptVerifyNullFail |
		ScriptVerifyWitnessPubKeyType |
		ScriptVerifyConstScriptCode
)

// HasFlag 返回 flags 是否包含 flag 的全部位。
func (flags ScriptFlags) HasFlag(flag ScriptFlags) bool {
	return flags&flag == flag
}

// witnessSigOps 统计花费见证程序所需的签名操作数。
func witnessSigOps(version int, program []byte, witness wire.TxWitness) int {
	if version != 0 {
		return 0
	}

	switch len(program) {
	case witnessV0PubKeyHashLen:
		return 1

	case witnessV0ScriptHashLen:
		if len(witness) == 0 {
			return 0
		}
		witnessScript := witness[len(witness)-1]
		return CountSigOps(witnessScript, true)
	}

	return 0
}

// CountWitnessSigOps 返回花费输出时见证部分的签名操作数。
//
// 未启用 ScriptVerifyWitness 时返回 0。输出是见证程序时按见证计数；
// 输出是 P2SH 且签名脚本为纯推送时，最后一个推送若是见证程序也按见证计数。
// 版本 0 的公钥哈希程序计 1，脚本哈希程序精确统计见证脚本（见证的最后一项）。
// 名字脚本按其地址部分计数。
func CountWitnessSigOps(sigScript, pkScript []byte, witness wire.TxWitness, flags ScriptFlags) int {
	if !flags.HasFlag(ScriptVerifyWitness) {
		return 0
	}
	pkScript = StripNamePrefix(pkScript)

	if version, program, ok := extractWitnessProgramInfo(pkScript); ok {
		return witnessSigOps(version, program, witness)
	}

	if IsPayToScriptHash(pkScript) && IsPushOnlyScript(sigScript) {
		redeemScript := finalOpcodeData(sigScript)
		if version, program, ok := extractWitnessProgramInfo(redeemScript); ok {
			return witnessSigOps(version, program, witness)
		}
	}

	return 0
}

// GetSigOpCost 返回花费一个输入时赎回脚本与见证部分的签名操作开销：
// P2SH 赎回脚本的签名操作乘以见证折扣系数，加上见证签名操作。
// 签名脚本与输出脚本本身的传统签名操作由调用方按交易统计。
func GetSigOpCost(sigScript, pkScript []byte, witness wire.TxWitness, flags ScriptFlags) int {
	const witnessScaleFactor = 4

	pkScript = StripNamePrefix(pkScript)

	cost := 0
	if flags.HasFlag(ScriptVerifyP2SH) && IsPayToScriptHash(pkScript) {
		cost += GetPreciseSigOpCount(sigScript, pkScript) * witnessScaleFactor
	}
	cost += CountWitnessSigOps(sigScript, pkScript, witness, flags)
	return cost
}
