// 包含从输出脚本推导输出描述符的逻辑以及描述符校验和。

package txscript

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// DescriptorType 是描述符节点的类型。
type DescriptorType int

// 描述符节点类型。
const (
	DescriptorRaw DescriptorType = iota
	DescriptorAddr
	DescriptorPK
	DescriptorPKH
	DescriptorWPKH
	DescriptorMulti
	DescriptorSH
	DescriptorWSH
)

var descriptorTypeNames = map[DescriptorType]string{
	DescriptorRaw:   "raw",
	DescriptorAddr:  "addr",
	DescriptorPK:    "pk",
	DescriptorPKH:   "pkh",
	DescriptorWPKH:  "wpkh",
	DescriptorMulti: "multi",
	DescriptorSH:    "sh",
	DescriptorWSH:   "wsh",
}

// String 返回描述符函数名。
func (t DescriptorType) String() string {
	return descriptorTypeNames[t]
}

// Descriptor 是描述脚本花费条件的输出描述符。
type Descriptor struct {
	Type DescriptorType

	// PubKeys 是 pk、pkh、wpkh 的单个公钥或 multi 的全部公钥。
	PubKeys [][]byte

	// Threshold 是 multi 的所需签名数。
	Threshold int

	// Sub 是 sh、wsh 包裹的子描述符。
	Sub *Descriptor

	// Address 与 Dest 是 addr 的地址字符串与目标。
	Address string
	Dest    Destination

	// RawScript 是 raw 的脚本。
	RawScript []byte
}

// body 返回不带校验和的描述符文本。
func (d *Descriptor) body() string {
	var b strings.Builder
	b.WriteString(d.Type.String())
	b.WriteByte('(')
	switch d.Type {
	case DescriptorRaw:
		b.WriteString(hex.EncodeToString(d.RawScript))
	case DescriptorAddr:
		b.WriteString(d.Address)
	case DescriptorPK, DescriptorPKH, DescriptorWPKH:
		b.WriteString(hex.EncodeToString(d.PubKeys[0]))
	case DescriptorMulti:
		b.WriteString(strconv.Itoa(d.Threshold))
		for _, key := range d.PubKeys {
			b.WriteByte(',')
			b.WriteString(hex.EncodeToString(key))
		}
	case DescriptorSH, DescriptorWSH:
		b.WriteString(d.Sub.body())
	}
	b.WriteByte(')')
	return b.String()
}

// String 返回带 "#校验和" 后缀的描述符文本。
func (d *Descriptor) String() string {
	body := d.body()
	return body + "#" + DescriptorChecksum(body)
}

// Script 把描述符展开为输出脚本。
func (d *Descriptor) Script() []byte {
	switch d.Type {
	case DescriptorRaw:
		return d.RawScript

	case DescriptorAddr:
		return ScriptForDestination(d.Dest)

	case DescriptorPK:
		return ScriptForDestination(NewPubKeyDestination(d.PubKeys[0]))

	case DescriptorPKH:
		return ScriptForDestination(PubKeyHashDestination(hash160(d.PubKeys[0])))

	case DescriptorWPKH:
		return ScriptForDestination(WitnessV0KeyHashDestination(hash160(d.PubKeys[0])))

	case DescriptorMulti:
		script, err := MultiSigScript(d.PubKeys, d.Threshold)
		if err != nil {
			return nil
		}
		return script

	case DescriptorSH:
		return ScriptForDestination(ScriptHashDestination(hash160(d.Sub.Script())))

	case DescriptorWSH:
		return ScriptForDestination(WitnessV0ScriptHashDestination(
			chainhash.HashH(d.Sub.Script())))
	}

	return nil
}

// IsSolvable 返回描述符是否包含构造花费所需的全部结构信息。addr 与 raw 不可解。
func (d *Descriptor) IsSolvable() bool {
	switch d.Type {
	case DescriptorRaw, DescriptorAddr:
		return false
	case DescriptorSH, DescriptorWSH:
		return d.Sub.IsSolvable()
	}
	return true
}

// InferDescriptor 推导输出脚本的描述符，结果总是非 nil。
//
// 依次尝试 pk、pkh（公钥已知）、wpkh（公钥已知且不在 P2WSH 中）、multi、
// sh（仅顶层，赎回脚本已知）、wsh（不在 P2WSH 中，见证脚本已知），
// 然后当脚本正好等于其目标的标准脚本时使用 addr，其余为 raw。名字脚本总是推导为 raw。
func InferDescriptor(provider SigningProvider, script []byte, params *chaincfg.Params) *Descriptor {
	if provider == nil {
		provider = emptyProvider{}
	}
	return inferScript(provider, script, ctxTop, params, 1)
}

func rawDescriptor(script []byte) *Descriptor {
	raw := make([]byte, len(script))
	copy(raw, script)
	return &Descriptor{Type: DescriptorRaw, RawScript: raw}
}

func inferScript(provider SigningProvider, script []byte, ctx solveContext,
	params *chaincfg.Params, depth int) *Descriptor {

	if IsNameScript(script) {
		return rawDescriptor(script)
	}

	class, solutions := solveAddress(script)
	if depth <= MaxSolveDepth {
		if d := inferTemplate(provider, class, solutions, ctx, params, depth); d != nil {
			return d
		}
	}

	if dest, ok := ExtractDestination(script); ok {
		if bytesEqual(ScriptForDestination(dest), script) {
			if addr, err := EncodeDestination(dest, params); err == nil {
				return &Descriptor{Type: DescriptorAddr, Address: addr, Dest: dest}
			}
		}
	}

	return rawDescriptor(script)
}

// inferTemplate 为可识别的模板推导描述符，无法推导时返回 nil。
func inferTemplate(provider SigningProvider, class ScriptClass, solutions [][]byte,
	ctx solveContext, params *chaincfg.Params, depth int) *Descriptor {

	switch class {
	case PubKeyTy:
		return &Descriptor{Type: DescriptorPK, PubKeys: [][]byte{copyBytes(solutions[0])}}

	case PubKeyHashTy:
		if pubKey, ok := lookupPubKey(provider, solutions[0]); ok {
			return &Descriptor{Type: DescriptorPKH, PubKeys: [][]byte{copyBytes(pubKey)}}
		}

	case WitnessV0PubKeyHashTy:
		if ctx == ctxP2WSH {
			return nil
		}
		if pubKey, ok := lookupPubKey(provider, solutions[0]); ok {
			return &Descriptor{Type: DescriptorWPKH, PubKeys: [][]byte{copyBytes(pubKey)}}
		}

	case MultiSigTy:
		keys := make([][]byte, 0, len(solutions)-2)
		for _, key := range solutions[1 : len(solutions)-1] {
			keys = append(keys, copyBytes(key))
		}
		return &Descriptor{
			Type:      DescriptorMulti,
			PubKeys:   keys,
			Threshold: int(solutions[0][0]),
		}

	case ScriptHashTy:
		if ctx != ctxTop {
			return nil
		}
		var id [20]byte
		copy(id[:], solutions[0])
		if redeemScript, ok := provider.GetScript(id); ok {
			sub := inferScript(provider, redeemScript, ctxP2SH, params, depth+1)
			return &Descriptor{Type: DescriptorSH, Sub: sub}
		}

	case WitnessV0ScriptHashTy:
		if ctx == ctxP2WSH {
			return nil
		}
		if witnessScript, ok := provider.GetScript(witnessScriptID(solutions[0])); ok {
			sub := inferScript(provider, witnessScript, ctxP2WSH, params, depth+1)
			return &Descriptor{Type: DescriptorWSH, Sub: sub}
		}
	}

	return nil
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func bytesEqual(a, b []byte) bool {
	return len(a) == len(b) && string(a) == string(b)
}

// descriptorInputCharset 是描述符允许的字符，每个字符的位置决定其在校验和中的取值。
const descriptorInputCharset = "0123456789()[],'/*abcdefgh@:$%{}" +
	"IJKLMNOPQRSTUVWXYZ&+-.;<=>?!^_|~" +
	"ijklmnopqrstuvwxyzABCDEFGH`#\"\\ "

// descriptorChecksumCharset 是校验和使用的字符集。
const descriptorChecksumCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// descriptorPolyMod 是校验和使用的 GF(32) 上的 BCH 码多项式取模。
func descriptorPolyMod(c uint64, val int) uint64 {
	c0 := c >> 35
	c = ((c & 0x7ffffffff) << 5) ^ uint64(val)
	if c0&1 != 0 {
		c ^= 0xf5dee51989
	}
	if c0&2 != 0 {
		c ^= 0xa9fdca3312
	}
	if c0&4 != 0 {
		c ^= 0x1bab10e32d
	}
	if c0&8 != 0 {
		c ^= 0x3706b1677a
	}
	if c0&16 != 0 {
		c ^= 0x644d626ffd
	}
	return c
}

// DescriptorChecksum 返回描述符文本的 8 字符校验和。文本含有不允许的字符时返回空字符串。
func DescriptorChecksum(desc string) string {
	c := uint64(1)
	cls, clsCount := 0, 0
	for i := 0; i < len(desc); i++ {
		pos := strings.IndexByte(descriptorInputCharset, desc[i])
		if pos < 0 {
			return ""
		}

		// 低 5 位直接输入，高位每三个字符合并为一个符号。
		c = descriptorPolyMod(c, pos&31)
		cls = cls*3 + (pos >> 5)
		clsCount++
		if clsCount == 3 {
			c = descriptorPolyMod(c, cls)
			cls, clsCount = 0, 0
		}
	}
	if clsCount > 0 {
		c = descriptorPolyMod(c, cls)
	}
	for j := 0; j < 8; j++ {
		c = descriptorPolyMod(c, 0)
	}
	c ^= 1

	checksum := make([]byte, 8)
	for j := 0; j < 8; j++ {
		checksum[j] = descriptorChecksumCharset[(c>>(5*(7-j)))&31]
	}
	return string(checksum)
}
