// 包含脚本验证接口以及基于 btcd 执行引擎的实现。

package txscript

import (
	"errors"
	"fmt"

	btcdscript "github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Verifier 在交易上下文中执行签名脚本与输出脚本。
// 验证失败时返回携带 ErrorCode 的 Error。
type Verifier interface {
	Verify(sigScript, pkScript []byte, witness wire.TxWitness, tx *wire.MsgTx,
		idx int, amount int64, flags ScriptFlags) error
}

// EngineVerifier 使用 btcd 的脚本执行引擎实现 Verifier。
type EngineVerifier struct {
	sigCache *btcdscript.SigCache
}

// NewEngineVerifier 返回一个使用 btcd 执行引擎的验证器。
func NewEngineVerifier() *EngineVerifier {
	return &EngineVerifier{}
}

// NewCachingEngineVerifier 返回一个共享签名缓存的验证器，缓存最多保存 maxEntries 个签名。
func NewCachingEngineVerifier(maxEntries uint) *EngineVerifier {
	return &EngineVerifier{sigCache: btcdscript.NewSigCache(maxEntries)}
}

// engineFlags 把验证标志转换为执行引擎的标志。ScriptVerifyConstScriptCode 没有对应项，被忽略。
func engineFlags(flags ScriptFlags) btcdscript.ScriptFlags {
	mapping := []struct {
		ours   ScriptFlags
		engine btcdscript.ScriptFlags
	}{
		{ScriptVerifyP2SH, btcdscript.ScriptBip16},
		{ScriptVerifyStrictEncoding, btcdscript.ScriptVerifyStrictEncoding},
		{ScriptVerifyDERSignatures, btcdscript.ScriptVerifyDERSignatures},
		{ScriptVerifyLowS, btcdscript.ScriptVerifyLowS},
		{ScriptVerifyNullDummy, btcdscript.ScriptStrictMultiSig},
		{ScriptVerifySigPushOnly, btcdscript.ScriptVerifySigPushOnly},
		{ScriptVerifyMinimalData, btcdscript.ScriptVerifyMinimalData},
		{ScriptVerifyDiscourageUpgradableNops, btcdscript.ScriptDiscourageUpgradableNops},
		{ScriptVerifyCleanStack, btcdscript.ScriptVerifyCleanStack},
		{ScriptVerifyCheckLockTimeVerify, btcdscript.ScriptVerifyCheckLockTimeVerify},
		{ScriptVerifyCheckSequenceVerify, btcdscript.ScriptVerifyCheckSequenceVerify},
		{ScriptVerifyWitness, btcdscript.ScriptVerifyWitness},
		{ScriptVerifyDiscourageUpgradableWitnessProgram, btcdscript.ScriptVerifyDiscourageUpgradeableWitnessProgram},
		{ScriptVerifyMinimalIf, btcdscript.ScriptVerifyMinimalIf},
		{ScriptVerifyNullFail, btcdscript.ScriptVerifyNullFail},
		{ScriptVerifyWitnessPubKeyType, btcdscript.ScriptVerifyWitnessPubKeyType},
	}

	var out btcdscript.ScriptFlags
	for _, m := range mapping {
		if flags.HasFlag(m.ours) {
			out |= m.engine
		}
	}
	return out
}

// engineErrorCodes 是执行引擎错误码到本包错误码的映射，未列出的错误码映射为 ErrUnknown。
var engineErrorCodes = map[btcdscript.ErrorCode]ErrorCode{
	btcdscript.ErrEvalFalse:                          ErrEvalFalse,
	btcdscript.ErrEmptyStack:                         ErrEvalFalse,
	btcdscript.ErrEarlyReturn:                        ErrEarlyReturn,
	btcdscript.ErrScriptTooBig:                       ErrScriptTooBig,
	btcdscript.ErrElementTooBig:                      ErrElementTooBig,
	btcdscript.ErrTooManyOperations:                  ErrTooManyOperations,
	btcdscript.ErrStackOverflow:                      ErrStackOverflow,
	btcdscript.ErrInvalidPubKeyCount:                 ErrInvalidPubKeyCount,
	btcdscript.ErrInvalidSignatureCount:              ErrInvalidSignatureCount,
	btcdscript.ErrVerify:                             ErrVerify,
	btcdscript.ErrEqualVerify:                        ErrEqualVerify,
	btcdscript.ErrNumEqualVerify:                     ErrNumEqualVerify,
	btcdscript.ErrCheckSigVerify:                     ErrCheckSigVerify,
	btcdscript.ErrCheckMultiSigVerify:                ErrCheckMultiSigVerify,
	btcdscript.ErrDisabledOpcode:                     ErrDisabledOpcode,
	btcdscript.ErrReservedOpcode:                     ErrBadOpcode,
	btcdscript.ErrMalformedPush:                      ErrBadOpcode,
	btcdscript.ErrInvalidStackOperation:              ErrInvalidStackOperation,
	btcdscript.ErrUnbalancedConditional:              ErrUnbalancedConditional,
	btcdscript.ErrNegativeLockTime:                   ErrNegativeLockTime,
	btcdscript.ErrUnsatisfiedLockTime:                ErrUnsatisfiedLockTime,
	btcdscript.ErrInvalidSigHashType:                 ErrInvalidSigHashType,
	btcdscript.ErrSigTooShort:                        ErrSigDER,
	btcdscript.ErrSigTooLong:                         ErrSigDER,
	btcdscript.ErrSigInvalidSeqID:                    ErrSigDER,
	btcdscript.ErrSigInvalidDataLen:                  ErrSigDER,
	btcdscript.ErrSigMissingSTypeID:                  ErrSigDER,
	btcdscript.ErrSigMissingSLen:                     ErrSigDER,
	btcdscript.ErrSigInvalidSLen:                     ErrSigDER,
	btcdscript.ErrSigInvalidRIntID:                   ErrSigDER,
	btcdscript.ErrSigZeroRLen:                        ErrSigDER,
	btcdscript.ErrSigNegativeR:                       ErrSigDER,
	btcdscript.ErrSigTooMuchRPadding:                 ErrSigDER,
	btcdscript.ErrSigInvalidSIntID:                   ErrSigDER,
	btcdscript.ErrSigZeroSLen:                        ErrSigDER,
	btcdscript.ErrSigNegativeS:                       ErrSigDER,
	btcdscript.ErrSigTooMuchSPadding:                 ErrSigDER,
	btcdscript.ErrMinimalData:                        ErrMinimalData,
	btcdscript.ErrNotPushOnly:                        ErrNotPushOnly,
	btcdscript.ErrSigHighS:                           ErrSigHighS,
	btcdscript.ErrSigNullDummy:                       ErrSigNullDummy,
	btcdscript.ErrPubKeyType:                         ErrPubKeyType,
	btcdscript.ErrCleanStack:                         ErrCleanStack,
	btcdscript.ErrMinimalIf:                          ErrMinimalIf,
	btcdscript.ErrNullFail:                           ErrNullFail,
	btcdscript.ErrDiscourageUpgradableNOPs:           ErrDiscourageUpgradableNOPs,
	btcdscript.ErrDiscourageUpgradableWitnessProgram: ErrDiscourageUpgradableWitnessProgram,
	btcdscript.ErrWitnessProgramWrongLength:          ErrWitnessProgramWrongLength,
	btcdscript.ErrWitnessProgramEmpty:                ErrWitnessProgramEmpty,
	btcdscript.ErrWitnessProgramMismatch:             ErrWitnessProgramMismatch,
	btcdscript.ErrWitnessMalleated:                   ErrWitnessMalleated,
	btcdscript.ErrWitnessMalleatedP2SH:               ErrWitnessMalleatedP2SH,
	btcdscript.ErrWitnessUnexpected:                  ErrWitnessUnexpected,
	btcdscript.ErrWitnessPubKeyType:                  ErrWitnessPubKeyType,
}

// mapEngineError 把执行引擎返回的错误转换为本包的 Error。
func mapEngineError(err error) error {
	if err == nil {
		return nil
	}

	var engineErr btcdscript.Error
	if errors.As(err, &engineErr) {
		code, ok := engineErrorCodes[engineErr.ErrorCode]
		if !ok {
			code = ErrUnknown
		}
		return scriptError(code, engineErr.Description)
	}

	return scriptError(ErrUnknown, err.Error())
}

// engineScript 返回交给执行引擎的输出脚本。
//
// 地址部分是 P2SH 或见证程序的名字脚本去掉名字前缀，引擎才会执行赎回脚本或见证；
// 其余脚本原样执行，名字前缀只是被丢弃的推送。
func engineScript(pkScript []byte) []byte {
	address := StripNamePrefix(pkScript)
	if len(address) == len(pkScript) {
		return pkScript
	}
	if IsPayToScriptHash(address) || IsWitnessProgram(address) {
		return address
	}
	return pkScript
}

// Verify 实现 Verifier。
//
// tx 不会被修改：sigScript 与 witness 被放到交易副本的第 idx 个输入上再执行。
func (v *EngineVerifier) Verify(sigScript, pkScript []byte, witness wire.TxWitness,
	tx *wire.MsgTx, idx int, amount int64, flags ScriptFlags) error {

	if tx == nil || idx < 0 || idx >= len(tx.TxIn) {
		return scriptError(ErrUnknown, fmt.Sprintf("input index %d out of range", idx))
	}

	pkScript = engineScript(pkScript)

	txCopy := tx.Copy()
	txCopy.TxIn[idx].SignatureScript = sigScript
	txCopy.TxIn[idx].Witness = witness

	fetcher := btcdscript.NewCannedPrevOutputFetcher(pkScript, amount)
	sigHashes := btcdscript.NewTxSigHashes(txCopy, fetcher)

	vm, err := btcdscript.NewEngine(pkScript, txCopy, idx, engineFlags(flags),
		v.sigCache, sigHashes, amount, fetcher)
	if err != nil {
		return mapEngineError(err)
	}

	return mapEngineError(vm.Execute())
}
