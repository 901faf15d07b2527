// 包含输出脚本的 JSON 视图。

package txscript

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// NameOpResult 是名字操作的 JSON 视图。
type NameOpResult struct {
	Op            string `json:"op"`
	Hash          string `json:"hash,omitempty"`
	Name          string `json:"name,omitempty"`
	NameEncoding  string `json:"name_encoding,omitempty"`
	Value         string `json:"value,omitempty"`
	ValueEncoding string `json:"value_encoding,omitempty"`
	Rand          string `json:"rand,omitempty"`
}

// ScriptPubKeyResult 是输出脚本的 JSON 视图。
type ScriptPubKeyResult struct {
	NameOp    *NameOpResult `json:"nameOp,omitempty"`
	Asm       string        `json:"asm"`
	Desc      string        `json:"desc,omitempty"`
	Hex       string        `json:"hex,omitempty"`
	Type      string        `json:"type"`
	Address   string        `json:"address,omitempty"`
	ReqSigs   int           `json:"reqSigs,omitempty"`
	Addresses []string      `json:"addresses,omitempty"`
}

// DecodeScriptResult 是任意脚本的 JSON 视图，附带以该脚本为赎回脚本或见证脚本时的地址。
type DecodeScriptResult struct {
	ScriptPubKeyResult
	P2SH   string        `json:"p2sh,omitempty"`
	Segwit *SegwitResult `json:"segwit,omitempty"`
}

// SegwitResult 是脚本对应的见证输出的 JSON 视图。
type SegwitResult struct {
	ScriptPubKeyResult
	P2SHSegwit string `json:"p2sh-segwit,omitempty"`
}

// encodeNameData 把名字或值编码为字符串：可打印 ASCII 原样输出，否则输出十六进制。
func encodeNameData(data []byte) (string, string) {
	for _, b := range data {
		if b < 0x20 || b > 0x7e {
			return hex.EncodeToString(data), "hex"
		}
	}
	return string(data), "ascii"
}

func nameOpResult(ns *NameScript) *NameOpResult {
	res := &NameOpResult{Op: ns.Op.String()}
	switch ns.Op {
	case NameNew:
		res.Hash = hex.EncodeToString(ns.Hash())

	case NameFirstUpdate:
		res.Rand = hex.EncodeToString(ns.Rand())
		fallthrough

	case NameUpdate:
		res.Name, res.NameEncoding = encodeNameData(ns.Name())
		res.Value, res.ValueEncoding = encodeNameData(ns.Value())
	}
	return res
}

// ScriptPubKeyToResult 返回输出脚本的 JSON 视图。
//
// 只有唯一目标的脚本填写 address；多签在 addresses 中列出每个公钥对应的地址并给出 reqSigs。
// 名字脚本额外给出 nameOp，地址信息取自其地址部分。
func ScriptPubKeyToResult(script []byte, includeHex bool, params *chaincfg.Params) ScriptPubKeyResult {
	res := ScriptPubKeyResult{
		Asm:  ScriptToAsmStr(script, false),
		Desc: InferDescriptor(nil, script, params).String(),
	}
	if includeHex {
		res.Hex = hex.EncodeToString(script)
	}

	if ns, ok := ParseNameScript(script); ok {
		res.NameOp = nameOpResult(ns)
	}

	class, dests, required, ok := ExtractDestinations(script)
	res.Type = class.String()
	if !ok {
		return res
	}

	for _, dest := range dests {
		addr, err := EncodeDestination(dest, params)
		if err != nil {
			continue
		}
		res.Addresses = append(res.Addresses, addr)
	}
	res.ReqSigs = required

	if class != MultiSigTy && len(res.Addresses) == 1 {
		res.Address = res.Addresses[0]
	}
	return res
}

// ScriptToResult 返回任意脚本的 JSON 视图。
//
// 脚本本身不是 P2SH 时给出以其为赎回脚本的 P2SH 地址。脚本为公钥、公钥哈希、多签或非标准，
// 且不含未压缩公钥时，给出对应的见证输出：公钥哈希对应 P2WPKH，其余对应以其为见证脚本的 P2WSH。
func ScriptToResult(script []byte, params *chaincfg.Params) DecodeScriptResult {
	res := DecodeScriptResult{ScriptPubKeyResult: ScriptPubKeyToResult(script, false, params)}

	class, solutions := Solver(script)
	if class != ScriptHashTy {
		p2sh := ScriptHashDestination(hash160(script))
		if addr, err := EncodeDestination(p2sh, params); err == nil {
			res.P2SH = addr
		}
	}

	var witnessScript []byte
	switch class {
	case PubKeyTy, PubKeyHashTy, MultiSigTy, NonStandardTy:
		for _, solution := range solutions {
			if len(solution) != 1 && len(solution) != 20 && !isCompressedPubKey(solution) {
				return res
			}
		}

		if class == PubKeyHashTy {
			var dest WitnessV0KeyHashDestination
			copy(dest[:], solutions[0])
			witnessScript = ScriptForDestination(dest)
		} else {
			var dest WitnessV0ScriptHashDestination
			copy(dest[:], chainhash.HashB(script))
			witnessScript = ScriptForDestination(dest)
		}

	default:
		return res
	}

	segwit := &SegwitResult{ScriptPubKeyResult: ScriptPubKeyToResult(witnessScript, true, params)}
	p2shSegwit := ScriptHashDestination(hash160(witnessScript))
	if addr, err := EncodeDestination(p2shSegwit, params); err == nil {
		segwit.P2SHSegwit = addr
	}
	res.Segwit = segwit
	return res
}
