// 包含输出目标（Destination）类型及其与脚本、地址字符串之间的转换。

package txscript

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
)

const (
	// maxWitnessProgramLen 与 minWitnessProgramLen 是见证程序的长度范围。
	maxWitnessProgramLen = 40
	minWitnessProgramLen = 2
)

// Destination 表示“谁可以花费该输出”。具体类型只有本包定义的七种，
// 使用类型选择时应覆盖全部变体。
//
// 所有变体都可以用 == 比较，并且可以作为 map 的键。
type Destination interface {
	// destinationIndex 返回变体的序号，决定不同变体之间的顺序。
	destinationIndex() int
}

// NoDestination 表示没有可识别的目标。
type NoDestination struct{}

// PubKeyHashDestination 是公钥的 HASH160。
type PubKeyHashDestination [20]byte

// ScriptHashDestination 是赎回脚本的 HASH160。
type ScriptHashDestination [20]byte

// WitnessV0KeyHashDestination 是版本 0 见证公钥哈希。
type WitnessV0KeyHashDestination [20]byte

// WitnessV0ScriptHashDestination 是版本 0 见证脚本的 SHA256。
type WitnessV0ScriptHashDestination [32]byte

// WitnessUnknown 是未知版本的见证程序，记录版本、程序长度与程序。
//
// Length 之后的 Program 字节不属于程序。应通过 NewWitnessUnknown 构造；
// 手工构造的值请用 Equal 或 Compare 比较，不要用 ==。
type WitnessUnknown struct {
	Version uint32
	Length  uint32
	Program [maxWitnessProgramLen]byte
}

// PubKeyDestination 是原始公钥，只能通过 NewPubKeyDestination 构造。
type PubKeyDestination struct {
	key string
}

func (NoDestination) destinationIndex() int                  { return 0 }
func (PubKeyHashDestination) destinationIndex() int          { return 1 }
func (ScriptHashDestination) destinationIndex() int          { return 2 }
func (WitnessV0KeyHashDestination) destinationIndex() int    { return 3 }
func (WitnessV0ScriptHashDestination) destinationIndex() int { return 4 }
func (WitnessUnknown) destinationIndex() int                 { return 5 }
func (PubKeyDestination) destinationIndex() int              { return 6 }

// NewWitnessUnknown 创建未知版本见证目标，程序超过 40 字节时截断。
func NewWitnessUnknown(version uint32, program []byte) WitnessUnknown {
	w := WitnessUnknown{Version: version}
	w.Length = uint32(copy(w.Program[:], program))
	return w
}

// ProgramBytes 返回见证程序的有效部分。
func (w WitnessUnknown) ProgramBytes() []byte {
	length := w.Length
	if length > maxWitnessProgramLen {
		length = maxWitnessProgramLen
	}
	return w.Program[:length]
}

// Compare 依次比较版本、长度与程序字节，返回 -1、0 或 1。
func (w WitnessUnknown) Compare(other WitnessUnknown) int {
	switch {
	case w.Version < other.Version:
		return -1
	case w.Version > other.Version:
		return 1
	case w.Length < other.Length:
		return -1
	case w.Length > other.Length:
		return 1
	}
	return bytes.Compare(w.ProgramBytes(), other.ProgramBytes())
}

// Equal 返回两个见证程序是否相同，只比较有效部分。
func (w WitnessUnknown) Equal(other WitnessUnknown) bool {
	return w.Compare(other) == 0
}

// NewPubKeyDestination 创建原始公钥目标。
func NewPubKeyDestination(pubKey []byte) PubKeyDestination {
	return PubKeyDestination{key: string(pubKey)}
}

// Bytes 返回序列化的公钥。
func (d PubKeyDestination) Bytes() []byte {
	return []byte(d.key)
}

// CompareDestinations 返回两个目标的全序比较结果：先比较变体序号，同一变体再比较内容。
// nil 视为 NoDestination。
func CompareDestinations(a, b Destination) int {
	if a == nil {
		a = NoDestination{}
	}
	if b == nil {
		b = NoDestination{}
	}

	ia, ib := a.destinationIndex(), b.destinationIndex()
	if ia != ib {
		if ia < ib {
			return -1
		}
		return 1
	}

	switch a := a.(type) {
	case NoDestination:
		return 0
	case PubKeyHashDestination:
		b := b.(PubKeyHashDestination)
		return bytes.Compare(a[:], b[:])
	case ScriptHashDestination:
		b := b.(ScriptHashDestination)
		return bytes.Compare(a[:], b[:])
	case WitnessV0KeyHashDestination:
		b := b.(WitnessV0KeyHashDestination)
		return bytes.Compare(a[:], b[:])
	case WitnessV0ScriptHashDestination:
		b := b.(WitnessV0ScriptHashDestination)
		return bytes.Compare(a[:], b[:])
	case WitnessUnknown:
		return a.Compare(b.(WitnessUnknown))
	case PubKeyDestination:
		return strings.Compare(a.key, b.(PubKeyDestination).key)
	}

	return 0
}

// IsValidDestination 返回目标是否不是 NoDestination。
func IsValidDestination(dest Destination) bool {
	if dest == nil {
		return false
	}
	_, none := dest.(NoDestination)
	return !none
}

// ExtractDestination 返回输出脚本的唯一目标。
// 公钥、公钥哈希、脚本哈希与各类见证程序有目标；多签、空数据与非标准脚本返回 NoDestination 与 false。
func ExtractDestination(script []byte) (Destination, bool) {
	class, solutions := Solver(script)
	switch class {
	case PubKeyTy:
		return NewPubKeyDestination(solutions[0]), true

	case PubKeyHashTy:
		var dest PubKeyHashDestination
		copy(dest[:], solutions[0])
		return dest, true

	case ScriptHashTy:
		var dest ScriptHashDestination
		copy(dest[:], solutions[0])
		return dest, true

	case WitnessV0PubKeyHashTy:
		var dest WitnessV0KeyHashDestination
		copy(dest[:], solutions[0])
		return dest, true

	case WitnessV0ScriptHashTy:
		var dest WitnessV0ScriptHashDestination
		copy(dest[:], solutions[0])
		return dest, true

	case WitnessUnknownTy:
		return NewWitnessUnknown(uint32(solutions[0][0]), solutions[1]), true
	}

	return NoDestination{}, false
}

// ExtractDestinations 返回输出脚本的类别、所有目标与所需签名数。
// 多签返回每个公钥的目标与 m；其他有目标的类别返回单个目标，所需签名数为 1。
// 非标准与空数据脚本返回 false。
func ExtractDestinations(script []byte) (ScriptClass, []Destination, int, bool) {
	class, solutions := Solver(script)
	switch class {
	case NonStandardTy, NullDataTy:
		return class, nil, 0, false

	case MultiSigTy:
		required := int(solutions[0][0])
		dests := make([]Destination, 0, len(solutions)-2)
		for _, key := range solutions[1 : len(solutions)-1] {
			dests = append(dests, NewPubKeyDestination(key))
		}
		return class, dests, required, true
	}

	dest, ok := ExtractDestination(script)
	if !ok {
		return class, nil, 0, false
	}
	return class, []Destination{dest}, 1, true
}

// ScriptForDestination 返回支付到目标的输出脚本，NoDestination 与无效的目标返回空脚本。
func ScriptForDestination(dest Destination) []byte {
	builder := NewScriptBuilder()
	switch dest := dest.(type) {
	case PubKeyHashDestination:
		builder.AddOp(OP_DUP).AddOp(OP_HASH160).AddData(dest[:]).
			AddOp(OP_EQUALVERIFY).AddOp(OP_CHECKSIG)

	case ScriptHashDestination:
		builder.AddOp(OP_HASH160).AddData(dest[:]).AddOp(OP_EQUAL)

	case WitnessV0KeyHashDestination:
		builder.AddOp(OP_0).AddData(dest[:])

	case WitnessV0ScriptHashDestination:
		builder.AddOp(OP_0).AddData(dest[:])

	case WitnessUnknown:
		if dest.Version > 16 || dest.Length > maxWitnessProgramLen {
			return nil
		}
		builder.AddOp(encodeSmallInt(int(dest.Version))).
			AddPushData(dest.ProgramBytes())

	case PubKeyDestination:
		builder.AddPushData(dest.Bytes()).AddOp(OP_CHECKSIG)

	default:
		return nil
	}

	script, err := builder.Script()
	if err != nil {
		return nil
	}
	return script
}

// EncodeDestination 把目标编码为网络地址字符串。
// 见证 v0 使用 bech32，其他见证版本使用 bech32m，原始公钥编码为对应的公钥哈希地址。
func EncodeDestination(dest Destination, params *chaincfg.Params) (string, error) {
	var (
		addr btcutil.Address
		err  error
	)
	switch dest := dest.(type) {
	case PubKeyHashDestination:
		addr, err = btcutil.NewAddressPubKeyHash(dest[:], params)

	case ScriptHashDestination:
		addr, err = btcutil.NewAddressScriptHashFromHash(dest[:], params)

	case WitnessV0KeyHashDestination:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(dest[:], params)

	case WitnessV0ScriptHashDestination:
		addr, err = btcutil.NewAddressWitnessScriptHash(dest[:], params)

	case WitnessUnknown:
		return encodeWitnessUnknown(dest, params)

	case PubKeyDestination:
		var pubKeyAddr *btcutil.AddressPubKey
		pubKeyAddr, err = btcutil.NewAddressPubKey(dest.Bytes(), params)
		if err == nil {
			return pubKeyAddr.AddressPubKeyHash().EncodeAddress(), nil
		}

	default:
		str := fmt.Sprintf("unable to encode destination of type %T", dest)
		return "", scriptError(ErrUnsupportedAddress, str)
	}
	if err != nil {
		return "", scriptError(ErrUnsupportedAddress, err.Error())
	}

	return addr.EncodeAddress(), nil
}

// encodeWitnessUnknown 以 bech32m 编码未知版本的见证程序。
func encodeWitnessUnknown(dest WitnessUnknown, params *chaincfg.Params) (string, error) {
	if dest.Version < 1 || dest.Version > 16 ||
		dest.Length < minWitnessProgramLen || dest.Length > maxWitnessProgramLen {

		str := fmt.Sprintf("invalid witness program version %d length %d",
			dest.Version, dest.Length)
		return "", scriptError(ErrUnsupportedAddress, str)
	}

	converted, err := bech32.ConvertBits(dest.ProgramBytes(), 8, 5, true)
	if err != nil {
		return "", scriptError(ErrUnsupportedAddress, err.Error())
	}

	data := make([]byte, 0, len(converted)+1)
	data = append(data, byte(dest.Version))
	data = append(data, converted...)
	addr, err := bech32.EncodeM(params.Bech32HRPSegwit, data)
	if err != nil {
		return "", scriptError(ErrUnsupportedAddress, err.Error())
	}
	return addr, nil
}

// DecodeDestination 把地址字符串解码为目标。地址必须属于 params 指定的网络。
//
// 以网络 bech32 前缀开头的地址按见证地址自行解码：版本 0 使用 bech32，其余版本使用 bech32m。
// 其他地址交给 btcutil 按 base58check 解码。
func DecodeDestination(addr string, params *chaincfg.Params) (Destination, error) {
	segwitPrefix := strings.ToLower(params.Bech32HRPSegwit) + "1"
	if strings.HasPrefix(strings.ToLower(addr), segwitPrefix) {
		dest, err := decodeSegWit(addr, params)
		if err != nil {
			return NoDestination{}, err
		}
		return dest, nil
	}

	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return NoDestination{}, scriptError(ErrUnsupportedAddress, err.Error())
	}
	if !decoded.IsForNet(params) {
		str := fmt.Sprintf("address %s is not for network %s", addr, params.Name)
		return NoDestination{}, scriptError(ErrUnsupportedAddress, str)
	}

	switch decoded := decoded.(type) {
	case *btcutil.AddressPubKeyHash:
		return PubKeyHashDestination(*decoded.Hash160()), nil

	case *btcutil.AddressScriptHash:
		return ScriptHashDestination(*decoded.Hash160()), nil

	case *btcutil.AddressPubKey:
		return NewPubKeyDestination(decoded.ScriptAddress()), nil
	}

	str := fmt.Sprintf("unsupported address type %T", decoded)
	return NoDestination{}, scriptError(ErrUnsupportedAddress, str)
}

// decodeSegWit 解码见证地址。
func decodeSegWit(addr string, params *chaincfg.Params) (Destination, error) {
	hrp, data, encoding, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return nil, scriptError(ErrUnsupportedAddress, err.Error())
	}
	if hrp != strings.ToLower(params.Bech32HRPSegwit) {
		str := fmt.Sprintf("address %s is not for network %s", addr, params.Name)
		return nil, scriptError(ErrUnsupportedAddress, str)
	}
	if len(data) < 1 || data[0] > 16 {
		str := fmt.Sprintf("address %s has an invalid witness version", addr)
		return nil, scriptError(ErrUnsupportedAddress, str)
	}

	witnessVersion := data[0]
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, scriptError(ErrUnsupportedAddress, err.Error())
	}
	if len(program) < minWitnessProgramLen || len(program) > maxWitnessProgramLen {
		str := fmt.Sprintf("witness program of %d bytes is invalid", len(program))
		return nil, scriptError(ErrUnsupportedAddress, str)
	}

	// 版本 0 必须使用 bech32，其余版本必须使用 bech32m。
	if (witnessVersion == 0) != (encoding == bech32.Version0) {
		str := fmt.Sprintf("address %s uses the wrong checksum for witness "+
			"version %d", addr, witnessVersion)
		return nil, scriptError(ErrUnsupportedAddress, str)
	}

	if witnessVersion != 0 {
		return NewWitnessUnknown(uint32(witnessVersion), program), nil
	}
	switch len(program) {
	case witnessV0PubKeyHashLen:
		var dest WitnessV0KeyHashDestination
		copy(dest[:], program)
		return dest, nil
	case witnessV0ScriptHashLen:
		var dest WitnessV0ScriptHashDestination
		copy(dest[:], program)
		return dest, nil
	}

	str := fmt.Sprintf("witness v0 program of %d bytes is invalid", len(program))
	return nil, scriptError(ErrUnsupportedAddress, str)
}

// PayToAddrScript 创建支付到 btcutil 地址的输出脚本。
func PayToAddrScript(addr btcutil.Address) ([]byte, error) {
	var dest Destination
	switch addr := addr.(type) {
	case *btcutil.AddressPubKeyHash:
		dest = PubKeyHashDestination(*addr.Hash160())
	case *btcutil.AddressScriptHash:
		dest = ScriptHashDestination(*addr.Hash160())
	case *btcutil.AddressPubKey:
		dest = NewPubKeyDestination(addr.ScriptAddress())
	case *btcutil.AddressWitnessPubKeyHash:
		var d WitnessV0KeyHashDestination
		copy(d[:], addr.WitnessProgram())
		dest = d
	case *btcutil.AddressWitnessScriptHash:
		var d WitnessV0ScriptHashDestination
		copy(d[:], addr.WitnessProgram())
		dest = d
	case *btcutil.AddressTaproot:
		dest = NewWitnessUnknown(uint32(addr.WitnessVersion()), addr.WitnessProgram())
	default:
		str := fmt.Sprintf("unable to generate payment script for "+
			"unsupported address type %T", addr)
		return nil, scriptError(ErrUnsupportedAddress, str)
	}

	script := ScriptForDestination(dest)
	if len(script) == 0 {
		return nil, scriptError(ErrUnsupportedAddress,
			"unable to generate payment script for address")
	}
	return script, nil
}
