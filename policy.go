package namechain

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	btcdscript "github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/namechain/names"
	"github.com/qinglongcn/namechain/netparams"
	"github.com/qinglongcn/namechain/txscript"
)

const (
	// NamecoinTxVersion 是带名字操作的交易必须使用的版本号。
	NamecoinTxVersion = 0x7100

	// maxStandardP2SHSigOps 是 P2SH 输入赎回脚本中允许的最大签名操作数。
	maxStandardP2SHSigOps = 15

	// maxStandardTxWeight 是标准交易允许的最大权重。
	maxStandardTxWeight = 400000

	// maxStandardSigScriptSize 是标准交易输入签名脚本的最大字节数，
	// 足够容纳 15-of-15 的 P2SH 多签赎回。
	maxStandardSigScriptSize = 1650

	// maxStandardTxSigOpsCost 是标准交易允许的最大签名操作开销。
	maxStandardTxSigOpsCost = blockchain.MaxBlockSigOpsCost / 5

	// DefaultMinRelayTxFee 是默认的最低中继费率，单位为 satoshi/kB。
	DefaultMinRelayTxFee = btcutil.Amount(1000)
)

// Policy 内存池接受交易时使用的中继策略
type Policy struct {
	Standard           *txscript.StandardPolicy
	PermitBareMultisig bool
	MaxTxVersion       int32
	MinRelayTxFee      btcutil.Amount
}

// DefaultPolicy 返回默认中继策略
func DefaultPolicy() *Policy {
	return &Policy{
		Standard:           txscript.DefaultStandardPolicy(),
		PermitBareMultisig: true,
		MaxTxVersion:       2,
		MinRelayTxFee:      DefaultMinRelayTxFee,
	}
}

// GetDustThreshold 计算输出的粉尘阈值：花费该输出的典型交易大小乘以 3
func GetDustThreshold(txOut *wire.TxOut) int64 {
	// 输入前导部分 41 字节，典型 P2PKH 签名脚本 107 字节，见证数据按比例折扣
	totalSize := txOut.SerializeSize() + 41
	if txscript.IsWitnessProgram(txscript.StripNamePrefix(txOut.PkScript)) {
		totalSize += 107 / blockchain.WitnessScaleFactor
	} else {
		totalSize += 107
	}
	return 3 * int64(totalSize)
}

// IsDust 返回输出按最低中继费率计算是否为粉尘，不可花费的输出都是粉尘
func IsDust(txOut *wire.TxOut, minRelayTxFee btcutil.Amount) bool {
	if txscript.IsUnspendable(txOut.PkScript) {
		return true
	}
	return txOut.Value*1000/GetDustThreshold(txOut) < int64(minRelayTxFee)
}

// checkNameOutputs 检查名字输出与交易版本是否匹配
func checkNameOutputs(tx *wire.MsgTx) error {
	outs := names.NameOutputs(tx)
	if tx.Version != NamecoinTxVersion {
		if len(outs) > 0 {
			return txRuleError(wire.RejectInvalid, "non-name transaction has name outputs")
		}
		return nil
	}

	if len(outs) == 0 {
		return txRuleError(wire.RejectInvalid, "name transaction without name outputs")
	}
	if len(outs) > 1 {
		return txRuleError(wire.RejectInvalid, "transaction has %d name outputs", len(outs))
	}
	ns := outs[0].Script
	if err := netparams.CheckNameLength(ns.Name(), ns.Value()); err != nil {
		return txRuleError(wire.RejectInvalid, "name output %d: %v", outs[0].Index, err)
	}
	if ns.Op == txscript.NameNew && len(ns.Hash()) != 20 {
		return txRuleError(wire.RejectInvalid, "name_new hash has %d bytes", len(ns.Hash()))
	}
	return nil
}

// CheckTransactionStandard 检查交易是否满足中继策略：
// 版本在允许范围内，权重不超限，签名脚本只含推送且不超长，
// 每个输出都是标准的且不是粉尘，最多一个空数据输出。
func CheckTransactionStandard(tx *wire.MsgTx, policy *Policy) error {
	if tx.Version != NamecoinTxVersion && (tx.Version < 1 || tx.Version > policy.MaxTxVersion) {
		return txRuleError(wire.RejectNonstandard,
			"transaction version %d is not in the valid range of %d-%d",
			tx.Version, 1, policy.MaxTxVersion)
	}

	txWeight := blockchain.GetTransactionWeight(btcutil.NewTx(tx))
	if txWeight > maxStandardTxWeight {
		return txRuleError(wire.RejectNonstandard,
			"weight of transaction is larger than max allowed: %v > %v",
			txWeight, maxStandardTxWeight)
	}

	for i, txIn := range tx.TxIn {
		sigScriptLen := len(txIn.SignatureScript)
		if sigScriptLen > maxStandardSigScriptSize {
			return txRuleError(wire.RejectNonstandard,
				"transaction input %d: signature script size is larger "+
					"than max allowed: %d > %d bytes", i, sigScriptLen,
				maxStandardSigScriptSize)
		}
		if !txscript.IsPushOnlyScript(txIn.SignatureScript) {
			return txRuleError(wire.RejectNonstandard,
				"transaction input %d: signature script is not push only", i)
		}
	}

	numNullDataOutputs := 0
	for i, txOut := range tx.TxOut {
		standard, class := policy.Standard.IsStandard(txOut.PkScript)
		if !standard {
			return txRuleError(wire.RejectNonstandard,
				"transaction output %d: non-standard %s script", i, class)
		}

		switch {
		case class == txscript.NullDataTy:
			numNullDataOutputs++
		case class == txscript.MultiSigTy && !policy.PermitBareMultisig:
			return txRuleError(wire.RejectNonstandard,
				"transaction output %d: bare multisig", i)
		case IsDust(txOut, policy.MinRelayTxFee):
			return txRuleError(wire.RejectDust,
				"transaction output %d: payment is dust: %v", i, txOut.Value)
		}
	}

	if numNullDataOutputs > 1 {
		return txRuleError(wire.RejectNonstandard,
			"more than one transaction output in a nulldata script")
	}

	return checkNameOutputs(tx)
}

// CheckInputsStandard 检查交易花费的输出：不能花费非标准脚本，
// P2SH 赎回脚本的签名操作数不能超过 maxStandardP2SHSigOps。
func CheckInputsStandard(tx *wire.MsgTx, prevOuts btcdscript.PrevOutputFetcher) error {
	for i, txIn := range tx.TxIn {
		prevOut := prevOuts.FetchPrevOutput(txIn.PreviousOutPoint)
		if prevOut == nil {
			return txRuleError(wire.RejectInvalid,
				"transaction input %d: missing previous output %v", i, txIn.PreviousOutPoint)
		}

		switch txscript.GetScriptClass(prevOut.PkScript) {
		case txscript.ScriptHashTy:
			numSigOps := txscript.GetPreciseSigOpCount(txIn.SignatureScript,
				txscript.StripNamePrefix(prevOut.PkScript))
			if numSigOps > maxStandardP2SHSigOps {
				return txRuleError(wire.RejectNonstandard,
					"transaction input #%d has %d signature operations which "+
						"is more than the allowed max amount of %d",
					i, numSigOps, maxStandardP2SHSigOps)
			}

		case txscript.NonStandardTy:
			return txRuleError(wire.RejectNonstandard,
				"transaction input #%d has a non-standard script form", i)
		}
	}
	return nil
}

// GetTransactionSigOpCost 返回交易的签名操作开销：
// 传统计数乘以见证折扣系数，再加上每个输入的 P2SH 与见证开销。
func GetTransactionSigOpCost(tx *wire.MsgTx, prevOuts btcdscript.PrevOutputFetcher,
	flags txscript.ScriptFlags) (int, error) {

	legacy := 0
	for _, txIn := range tx.TxIn {
		legacy += txscript.CountSigOps(txIn.SignatureScript, false)
	}
	for _, txOut := range tx.TxOut {
		legacy += txscript.CountSigOps(txOut.PkScript, false)
	}
	cost := legacy * blockchain.WitnessScaleFactor

	if blockchain.IsCoinBaseTx(tx) {
		return cost, nil
	}

	for i, txIn := range tx.TxIn {
		prevOut := prevOuts.FetchPrevOutput(txIn.PreviousOutPoint)
		if prevOut == nil {
			return 0, txRuleError(wire.RejectInvalid,
				"transaction input %d: missing previous output %v", i, txIn.PreviousOutPoint)
		}
		cost += txscript.GetSigOpCost(txIn.SignatureScript,
			txscript.StripNamePrefix(prevOut.PkScript), txIn.Witness, flags)
	}
	return cost, nil
}

// CheckTransactionSigCost 检查交易的签名操作开销不超过标准上限
func CheckTransactionSigCost(tx *wire.MsgTx, prevOuts btcdscript.PrevOutputFetcher,
	flags txscript.ScriptFlags) error {

	cost, err := GetTransactionSigOpCost(tx, prevOuts, flags)
	if err != nil {
		return err
	}
	if cost > maxStandardTxSigOpsCost {
		return txRuleError(wire.RejectNonstandard,
			"transaction %v sigop cost is too high: %d > %d",
			tx.TxHash(), cost, maxStandardTxSigOpsCost)
	}
	return nil
}
