package txscript

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcdscript "github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

const verifyAmount = 100000

// spendingTx 返回花费单个输出的交易。
func spendingTx() *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	prevOut := wire.NewOutPoint(&chainhash.Hash{0x01}, 0)
	tx.AddTxIn(wire.NewTxIn(prevOut, nil, nil))
	tx.AddTxOut(wire.NewTxOut(verifyAmount-1000, p2pkhScript(make([]byte, 20))))
	return tx
}

// TestEngineVerifierP2PKH 检查传统公钥哈希输出的签名验证。
func TestEngineVerifierP2PKH(t *testing.T) {
	t.Parallel()

	privKey, pubKey := btcec.PrivKeyFromBytes(testSeed)
	pkScript := p2pkhScript(btcutil.Hash160(pubKey.SerializeCompressed()))

	tx := spendingTx()
	sigScript, err := btcdscript.SignatureScript(tx, 0, pkScript,
		btcdscript.SigHashAll, privKey, true)
	require.NoError(t, err)

	verifiers := []Verifier{NewEngineVerifier(), NewCachingEngineVerifier(10)}
	for _, v := range verifiers {
		for i := 0; i < 2; i++ {
			err := v.Verify(sigScript, pkScript, nil, tx, 0, verifyAmount, StandardVerifyFlags)
			require.NoError(t, err)
		}
	}
	require.Nil(t, tx.TxIn[0].SignatureScript)

	v := NewEngineVerifier()

	// 签名后修改输出使签名失效。
	tampered := tx.Copy()
	tampered.TxOut[0].Value--
	err = v.Verify(sigScript, pkScript, nil, tampered, 0, verifyAmount, MandatoryVerifyFlags)
	requireErrorCode(t, err, ErrEvalFalse)
	err = v.Verify(sigScript, pkScript, nil, tampered, 0, verifyAmount, StandardVerifyFlags)
	requireErrorCode(t, err, ErrNullFail)

	// 签名脚本中的非推送操作码。
	nonPush := append([]byte{OP_NOP}, sigScript...)
	err = v.Verify(nonPush, pkScript, nil, tx, 0, verifyAmount, StandardVerifyFlags)
	requireErrorCode(t, err, ErrNotPushOnly)

	err = v.Verify(sigScript, pkScript, nil, tx, 1, verifyAmount, StandardVerifyFlags)
	requireErrorCode(t, err, ErrUnknown)
	err = v.Verify(sigScript, pkScript, nil, nil, 0, verifyAmount, StandardVerifyFlags)
	requireErrorCode(t, err, ErrUnknown)
}

// TestEngineVerifierP2WPKH 检查见证公钥哈希输出的签名验证，金额参与签名。
func TestEngineVerifierP2WPKH(t *testing.T) {
	t.Parallel()

	privKey, pubKey := btcec.PrivKeyFromBytes(testSeed)
	pkScript := p2wpkhScript(pubKey.SerializeCompressed())

	tx := spendingTx()
	fetcher := btcdscript.NewCannedPrevOutputFetcher(pkScript, verifyAmount)
	sigHashes := btcdscript.NewTxSigHashes(tx, fetcher)
	witness, err := btcdscript.WitnessSignature(tx, sigHashes, 0, verifyAmount,
		pkScript, btcdscript.SigHashAll, privKey, true)
	require.NoError(t, err)

	v := NewEngineVerifier()
	require.NoError(t, v.Verify(nil, pkScript, witness, tx, 0, verifyAmount, StandardVerifyFlags))

	err = v.Verify(nil, pkScript, witness, tx, 0, verifyAmount+1, StandardVerifyFlags)
	requireErrorCode(t, err, ErrNullFail)

	err = v.Verify([]byte{OP_TRUE}, pkScript, witness, tx, 0, verifyAmount, StandardVerifyFlags)
	requireErrorCode(t, err, ErrWitnessMalleated)
}

// TestEngineVerifierNameScripts 检查地址部分为 P2SH 或见证程序的名字输出按其地址执行。
func TestEngineVerifierNameScripts(t *testing.T) {
	t.Parallel()

	privKey, pubKey := btcec.PrivKeyFromBytes(testSeed)
	v := NewEngineVerifier()
	tx := spendingTx()

	redeemScript := p2pkScript(pubKey.SerializeCompressed())
	nameP2SH, err := BuildNameUpdate(p2shScript(redeemScript), []byte("d/x"), []byte("v"))
	require.NoError(t, err)
	require.Equal(t, ScriptHashTy, GetScriptClass(nameP2SH))

	// 只提供赎回脚本时必须执行赎回脚本并失败。
	redeemOnly, err := NewScriptBuilder().AddData(redeemScript).Script()
	require.NoError(t, err)
	err = v.Verify(redeemOnly, nameP2SH, nil, tx, 0, verifyAmount, StandardVerifyFlags)
	require.Error(t, err)

	sig, err := btcdscript.RawTxInSignature(tx, 0, redeemScript, btcdscript.SigHashAll, privKey)
	require.NoError(t, err)
	sigScript, err := NewScriptBuilder().AddData(sig).AddData(redeemScript).Script()
	require.NoError(t, err)
	require.NoError(t, v.Verify(sigScript, nameP2SH, nil, tx, 0, verifyAmount, StandardVerifyFlags))

	// 见证公钥哈希地址的名字输出以见证花费。
	wpkh := p2wpkhScript(pubKey.SerializeCompressed())
	nameWPKH, err := BuildNameUpdate(wpkh, []byte("d/x"), []byte("v"))
	require.NoError(t, err)

	fetcher := btcdscript.NewCannedPrevOutputFetcher(wpkh, verifyAmount)
	sigHashes := btcdscript.NewTxSigHashes(tx, fetcher)
	witness, err := btcdscript.WitnessSignature(tx, sigHashes, 0, verifyAmount,
		wpkh, btcdscript.SigHashAll, privKey, true)
	require.NoError(t, err)
	require.NoError(t, v.Verify(nil, nameWPKH, witness, tx, 0, verifyAmount, StandardVerifyFlags))
	require.Equal(t, 1, CountWitnessSigOps(nil, nameWPKH, witness, StandardVerifyFlags))

	// 签名操作开销按赎回脚本计算。
	require.Equal(t, 4, GetSigOpCost(sigScript, nameP2SH, nil, StandardVerifyFlags))
}

// TestEngineVerifierScriptErrors 检查执行错误的映射。
func TestEngineVerifierScriptErrors(t *testing.T) {
	t.Parallel()

	v := NewEngineVerifier()
	tx := spendingTx()

	tests := []struct {
		name      string
		sigScript []byte
		pkScript  []byte
		err       ErrorCode
	}{
		{"true", nil, []byte{OP_TRUE}, ErrOK},
		{"early return", nil, []byte{OP_RETURN}, ErrEarlyReturn},
		{"false", nil, []byte{OP_FALSE}, ErrEvalFalse},
		{"equal verify", []byte{OP_1, OP_2}, []byte{OP_EQUALVERIFY, OP_TRUE}, ErrEqualVerify},
		{"disabled opcode", []byte{OP_1, OP_1}, []byte{OP_CAT}, ErrDisabledOpcode},
		{"unbalanced conditional", nil, []byte{OP_TRUE, OP_IF}, ErrUnbalancedConditional},
		{"stack underflow", nil, []byte{OP_DROP}, ErrInvalidStackOperation},
	}

	for _, test := range tests {
		err := v.Verify(test.sigScript, test.pkScript, nil, tx, 0, verifyAmount, MandatoryVerifyFlags)
		requireErrorCode(t, err, test.err)
	}
}
