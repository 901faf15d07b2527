package txscript

import (
	"errors"
	"fmt"
)

// ErrorCode 标识脚本相关错误的种类。
// 前半部分与外部执行引擎报告的脚本错误一一对应，其后是本包在分析、构建和压缩脚本时使用的错误。
type ErrorCode int

// 执行引擎报告的脚本错误。
const (
	ErrOK ErrorCode = iota
	ErrUnknown
	ErrEvalFalse
	ErrEarlyReturn

	// 资源限制
	ErrScriptTooBig
	ErrElementTooBig
	ErrTooManyOperations
	ErrStackOverflow
	ErrInvalidSignatureCount
	ErrInvalidPubKeyCount

	// VERIFY 类操作失败
	ErrVerify
	ErrEqualVerify
	ErrCheckMultiSigVerify
	ErrCheckSigVerify
	ErrNumEqualVerify

	// 逻辑与操作码错误
	ErrBadOpcode
	ErrDisabledOpcode
	ErrInvalidStackOperation
	ErrInvalidAltStackOperation
	ErrUnbalancedConditional

	// 锁定时间
	ErrNegativeLockTime
	ErrUnsatisfiedLockTime

	// 可塑性
	ErrInvalidSigHashType
	ErrSigDER
	ErrMinimalData
	ErrNotPushOnly
	ErrSigHighS
	ErrSigNullDummy
	ErrPubKeyType
	ErrCleanStack
	ErrMinimalIf
	ErrNullFail

	// 软分叉保留
	ErrDiscourageUpgradableNOPs
	ErrDiscourageUpgradableWitnessProgram

	// 隔离见证
	ErrWitnessProgramWrongLength
	ErrWitnessProgramEmpty
	ErrWitnessProgramMismatch
	ErrWitnessMalleated
	ErrWitnessMalleatedP2SH
	ErrWitnessUnexpected
	ErrWitnessPubKeyType

	// 常量脚本
	ErrCodeSeparator
	ErrSigFindAndDelete

	// numScriptErrors 是执行引擎错误的数量，其后的错误码仅在本包内部产生。
	numScriptErrors
)

// 本包在解析、构建和编码脚本时产生的错误。
const (
	// ErrMalformedPush 表示数据推送操作码声明的长度超出了脚本剩余的字节。
	ErrMalformedPush ErrorCode = iota + numScriptErrors

	// ErrNumberTooBig 表示数值编码超过了允许的字节数。
	ErrNumberTooBig

	// ErrNotMultisigScript 表示脚本不是多重签名脚本。
	ErrNotMultisigScript

	// ErrTooManyRequiredSigs 表示多重签名所需签名数超过了公钥数。
	ErrTooManyRequiredSigs

	// ErrTooMuchNullData 表示空数据脚本携带的数据超过了上限。
	ErrTooMuchNullData

	// ErrUnsupportedAddress 表示目标地址类型无法转换为脚本或地址字符串。
	ErrUnsupportedAddress

	// ErrScriptNotCompressible 表示脚本超过了可压缩的最大长度。
	ErrScriptNotCompressible

	// ErrCompressedPayloadShort 表示压缩数据短于标签要求的长度。
	ErrCompressedPayloadShort

	// ErrUnknownCompressionTag 表示压缩标签不属于特殊模板。
	ErrUnknownCompressionTag

	// ErrInvalidCompressedPubKey 表示压缩的公钥无法还原为曲线上的点。
	ErrInvalidCompressedPubKey

	// ErrInvalidScriptNotation 表示文本形式的脚本无法解析。
	ErrInvalidScriptNotation

	// numErrorCodes 是错误码的总数，仅用于测试。
	numErrorCodes
)

// errorCodeStrings 是错误码到其 Go 名称的映射。
var errorCodeStrings = map[ErrorCode]string{
	ErrOK:                                 "ErrOK",
	ErrUnknown:                            "ErrUnknown",
	ErrEvalFalse:                          "ErrEvalFalse",
	ErrEarlyReturn:                        "ErrEarlyReturn",
	ErrScriptTooBig:                       "ErrScriptTooBig",
	ErrElementTooBig:                      "ErrElementTooBig",
	ErrTooManyOperations:                  "ErrTooManyOperations",
	ErrStackOverflow:                      "ErrStackOverflow",
	ErrInvalidSignatureCount:              "ErrInvalidSignatureCount",
	ErrInvalidPubKeyCount:                 "ErrInvalidPubKeyCount",
	ErrVerify:                             "ErrVerify",
	ErrEqualVerify:                        "ErrEqualVerify",
	ErrCheckMultiSigVerify:                "ErrCheckMultiSigVerify",
	ErrCheckSigVerify:                     "ErrCheckSigVerify",
	ErrNumEqualVerify:                     "ErrNumEqualVerify",
	ErrBadOpcode:                          "ErrBadOpcode",
	ErrDisabledOpcode:                     "ErrDisabledOpcode",
	ErrInvalidStackOperation:              "ErrInvalidStackOperation",
	ErrInvalidAltStackOperation:           "ErrInvalidAltStackOperation",
	ErrUnbalancedConditional:              "ErrUnbalancedConditional",
	ErrNegativeLockTime:                   "ErrNegativeLockTime",
	ErrUnsatisfiedLockTime:                "ErrUnsatisfiedLockTime",
	ErrInvalidSigHashType:                 "ErrInvalidSigHashType",
	ErrSigDER:                             "ErrSigDER",
	ErrMinimalData:                        "ErrMinimalData",
	ErrNotPushOnly:                        "ErrNotPushOnly",
	ErrSigHighS:                           "ErrSigHighS",
	ErrSigNullDummy:                       "ErrSigNullDummy",
	ErrPubKeyType:                         "ErrPubKeyType",
	ErrCleanStack:                         "ErrCleanStack",
	ErrMinimalIf:                          "ErrMinimalIf",
	ErrNullFail:                           "ErrNullFail",
	ErrDiscourageUpgradableNOPs:           "ErrDiscourageUpgradableNOPs",
	ErrDiscourageUpgradableWitnessProgram: "ErrDiscourageUpgradableWitnessProgram",
	ErrWitnessProgramWrongLength:          "ErrWitnessProgramWrongLength",
	ErrWitnessProgramEmpty:                "ErrWitnessProgramEmpty",
	ErrWitnessProgramMismatch:             "ErrWitnessProgramMismatch",
	ErrWitnessMalleated:                   "ErrWitnessMalleated",
	ErrWitnessMalleatedP2SH:               "ErrWitnessMalleatedP2SH",
	ErrWitnessUnexpected:                  "ErrWitnessUnexpected",
	ErrWitnessPubKeyType:                  "ErrWitnessPubKeyType",
	ErrCodeSeparator:                      "ErrCodeSeparator",
	ErrSigFindAndDelete:                   "ErrSigFindAndDelete",
	ErrMalformedPush:                      "ErrMalformedPush",
	ErrNumberTooBig:                       "ErrNumberTooBig",
	ErrNotMultisigScript:                  "ErrNotMultisigScript",
	ErrTooManyRequiredSigs:                "ErrTooManyRequiredSigs",
	ErrTooMuchNullData:                    "ErrTooMuchNullData",
	ErrUnsupportedAddress:                 "ErrUnsupportedAddress",
	ErrScriptNotCompressible:              "ErrScriptNotCompressible",
	ErrCompressedPayloadShort:             "ErrCompressedPayloadShort",
	ErrUnknownCompressionTag:              "ErrUnknownCompressionTag",
	ErrInvalidCompressedPubKey:            "ErrInvalidCompressedPubKey",
	ErrInvalidScriptNotation:              "ErrInvalidScriptNotation",
}

// scriptErrorMessages 是执行引擎错误的人类可读描述，与参考节点输出的文本保持一致。
var scriptErrorMessages = [numScriptErrors]string{
	ErrOK:                                 "No error",
	ErrUnknown:                            "unknown error",
	ErrEvalFalse:                          "Script evaluated without error but finished with a false/empty top stack element",
	ErrEarlyReturn:                        "OP_RETURN was encountered",
	ErrScriptTooBig:                       "Script is too big",
	ErrElementTooBig:                      "Push value size limit exceeded",
	ErrTooManyOperations:                  "Operation limit exceeded",
	ErrStackOverflow:                      "Stack size limit exceeded",
	ErrInvalidSignatureCount:              "Signature count negative or greater than pubkey count",
	ErrInvalidPubKeyCount:                 "Pubkey count negative or limit exceeded",
	ErrVerify:                             "Script failed an OP_VERIFY operation",
	ErrEqualVerify:                        "Script failed an OP_EQUALVERIFY operation",
	ErrCheckMultiSigVerify:                "Script failed an OP_CHECKMULTISIGVERIFY operation",
	ErrCheckSigVerify:                     "Script failed an OP_CHECKSIGVERIFY operation",
	ErrNumEqualVerify:                     "Script failed an OP_NUMEQUALVERIFY operation",
	ErrBadOpcode:                          "Opcode missing or not understood",
	ErrDisabledOpcode:                     "Attempted to use a disabled opcode",
	ErrInvalidStackOperation:              "Operation not valid with the current stack size",
	ErrInvalidAltStackOperation:           "Operation not valid with the current altstack size",
	ErrUnbalancedConditional:              "Invalid OP_IF construction",
	ErrNegativeLockTime:                   "Negative locktime",
	ErrUnsatisfiedLockTime:                "Locktime requirement not satisfied",
	ErrInvalidSigHashType:                 "Signature hash type missing or not understood",
	ErrSigDER:                             "Non-canonical DER signature",
	ErrMinimalData:                        "Data push larger than necessary",
	ErrNotPushOnly:                        "Only push operators allowed in signatures",
	ErrSigHighS:                           "Non-canonical signature: S value is unnecessarily high",
	ErrSigNullDummy:                       "Dummy CHECKMULTISIG argument must be zero",
	ErrPubKeyType:                         "Public key is neither compressed or uncompressed",
	ErrCleanStack:                         "Stack size must be exactly one after execution",
	ErrMinimalIf:                          "OP_IF/NOTIF argument must be minimal",
	ErrNullFail:                           "Signature must be zero for failed CHECK(MULTI)SIG operation",
	ErrDiscourageUpgradableNOPs:           "NOPx reserved for soft-fork upgrades",
	ErrDiscourageUpgradableWitnessProgram: "Witness version reserved for soft-fork upgrades",
	ErrWitnessProgramWrongLength:          "Witness program has incorrect length",
	ErrWitnessProgramEmpty:                "Witness program was passed an empty witness",
	ErrWitnessProgramMismatch:             "Witness program hash mismatch",
	ErrWitnessMalleated:                   "Witness requires empty scriptSig",
	ErrWitnessMalleatedP2SH:               "Witness requires only-redeemscript scriptSig",
	ErrWitnessUnexpected:                  "Witness provided for non-witness script",
	ErrWitnessPubKeyType:                  "Using non-compressed keys in segwit",
	ErrCodeSeparator:                      "Using OP_CODESEPARATOR in non-witness script",
	ErrSigFindAndDelete:                   "Signature is found in scriptCode",
}

// String 返回错误码的 Go 名称。
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error 实现 error 接口，使错误码可以直接与 errors.Is 配合使用。
func (e ErrorCode) Error() string {
	return e.String()
}

// Error 标识脚本相关的错误，携带错误码和描述。
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error 实现 error 接口。
func (e Error) Error() string {
	return e.Description
}

// Unwrap 返回底层错误码，errors.Is(err, ErrMalformedPush) 因此成立。
func (e Error) Unwrap() error {
	return e.ErrorCode
}

// scriptError 使用给定的错误码和描述创建一个 Error。
func scriptError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode 返回 err 是否为携带给定错误码的脚本错误。
func IsErrorCode(err error, c ErrorCode) bool {
	var serr Error
	return errors.As(err, &serr) && serr.ErrorCode == c
}

// ScriptErrorString 返回执行引擎错误码的描述文本，越界或本包内部的错误码返回 "unknown error"。
func ScriptErrorString(code ErrorCode) string {
	if code < 0 || code >= numScriptErrors {
		return scriptErrorMessages[ErrUnknown]
	}
	return scriptErrorMessages[code]
}
