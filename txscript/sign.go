// 包含签名材料提供者以及判断脚本是否可解（给定私钥时能否构造有效花费）的逻辑。

package txscript

import (
	"bytes"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/crypto/ripemd160"
)

// MaxSolveDepth 是可解性判断与描述符推导允许的最大嵌套层数（顶层、P2SH、P2WSH）。
const MaxSolveDepth = 3

// SigningProvider 提供按 HASH160 查找的公钥与脚本，由钱包或密钥库实现。
type SigningProvider interface {
	// GetPubKey 返回 HASH160 为 hash 的公钥。
	GetPubKey(hash [20]byte) ([]byte, bool)

	// GetScript 返回 HASH160 为 hash 的赎回脚本或见证脚本。
	GetScript(hash [20]byte) ([]byte, bool)
}

// FlatSigningProvider 是基于 map 的 SigningProvider，可并发使用。
type FlatSigningProvider struct {
	mu      sync.RWMutex
	pubKeys map[[20]byte][]byte
	scripts map[[20]byte][]byte
}

// NewFlatSigningProvider 返回一个空的签名材料提供者。
func NewFlatSigningProvider() *FlatSigningProvider {
	return &FlatSigningProvider{
		pubKeys: make(map[[20]byte][]byte),
		scripts: make(map[[20]byte][]byte),
	}
}

// hash160 返回 RIPEMD160(SHA256(data))。
func hash160(data []byte) [20]byte {
	var h [20]byte
	copy(h[:], btcutil.Hash160(data))
	return h
}

// AddPubKey 以公钥的 HASH160 为键记录公钥。
func (p *FlatSigningProvider) AddPubKey(pubKey []byte) {
	key := make([]byte, len(pubKey))
	copy(key, pubKey)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pubKeys == nil {
		p.pubKeys = make(map[[20]byte][]byte)
	}
	p.pubKeys[hash160(key)] = key
}

// AddScript 以脚本的 HASH160 为键记录脚本。
// 由于 RIPEMD160(SHA256(script)) 同时也是见证脚本的查找键，该脚本既可作为赎回脚本也可作为见证脚本被找到。
func (p *FlatSigningProvider) AddScript(script []byte) {
	s := make([]byte, len(script))
	copy(s, script)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scripts == nil {
		p.scripts = make(map[[20]byte][]byte)
	}
	p.scripts[hash160(s)] = s
}

// GetPubKey 实现 SigningProvider。
func (p *FlatSigningProvider) GetPubKey(hash [20]byte) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	key, ok := p.pubKeys[hash]
	return key, ok
}

// GetScript 实现 SigningProvider。
func (p *FlatSigningProvider) GetScript(hash [20]byte) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	script, ok := p.scripts[hash]
	return script, ok
}

// Merge 把 other 中的全部公钥与脚本加入 p。
func (p *FlatSigningProvider) Merge(other *FlatSigningProvider) {
	if other == nil || other == p {
		return
	}

	other.mu.RLock()
	pubKeys := make([][]byte, 0, len(other.pubKeys))
	for _, key := range other.pubKeys {
		pubKeys = append(pubKeys, key)
	}
	scripts := make([][]byte, 0, len(other.scripts))
	for _, script := range other.scripts {
		scripts = append(scripts, script)
	}
	other.mu.RUnlock()

	for _, key := range pubKeys {
		p.AddPubKey(key)
	}
	for _, script := range scripts {
		p.AddScript(script)
	}
}

// emptyProvider 不提供任何签名材料。
type emptyProvider struct{}

func (emptyProvider) GetPubKey([20]byte) ([]byte, bool) { return nil, false }
func (emptyProvider) GetScript([20]byte) ([]byte, bool) { return nil, false }

// solveContext 是脚本所处的嵌套位置。
type solveContext int

const (
	ctxTop solveContext = iota
	ctxP2SH
	ctxP2WSH
)

// isStrictPubKeyEncoding 返回公钥是否为 33 字节压缩格式或 65 字节未压缩格式。混合格式不被接受。
func isStrictPubKeyEncoding(pubKey []byte) bool {
	switch len(pubKey) {
	case 33:
		return pubKey[0] == 0x02 || pubKey[0] == 0x03
	case 65:
		return pubKey[0] == 0x04
	}
	return false
}

// isCompressedPubKey 返回公钥是否为压缩格式。
func isCompressedPubKey(pubKey []byte) bool {
	return len(pubKey) == 33 && (pubKey[0] == 0x02 || pubKey[0] == 0x03)
}

// isUsableKey 返回公钥在给定上下文中能否用于签名：必须严格编码，见证脚本中还必须是压缩公钥。
func isUsableKey(pubKey []byte, ctx solveContext) bool {
	if ctx == ctxP2WSH {
		return isCompressedPubKey(pubKey)
	}
	return isStrictPubKeyEncoding(pubKey)
}

// lookupPubKey 按哈希查找公钥，并确认公钥确实哈希到该值。
func lookupPubKey(provider SigningProvider, hash []byte) ([]byte, bool) {
	var id [20]byte
	copy(id[:], hash)
	pubKey, ok := provider.GetPubKey(id)
	if !ok {
		return nil, false
	}
	if h := hash160(pubKey); !bytes.Equal(h[:], hash) {
		return nil, false
	}
	return pubKey, true
}

// witnessScriptID 返回见证脚本哈希对应的查找键 RIPEMD160(program)。
func witnessScriptID(program []byte) [20]byte {
	hasher := ripemd160.New()
	hasher.Write(program)

	var id [20]byte
	copy(id[:], hasher.Sum(nil))
	return id
}

// IsSolvable 返回在拥有相应私钥的前提下，provider 提供的材料是否足以构造花费脚本的有效见证。
//
// 规则：
//   - 公钥脚本：公钥必须严格编码，见证脚本中必须压缩。
//   - 公钥哈希：provider 必须知道公钥，公钥规则同上。
//   - 脚本哈希：只能位于顶层，赎回脚本必须已知且不超过 520 字节，本身可解且不能再是脚本哈希。
//   - 多签：前 m 个公钥满足公钥规则。
//   - 见证公钥哈希：位于顶层或 P2SH 中，公钥已知且为压缩公钥。
//   - 见证脚本哈希：位于顶层或 P2SH 中，见证脚本已知、哈希与程序一致、不超过 MaxScriptSize，
//     且不能是脚本哈希、见证公钥哈希或见证脚本哈希。
//   - 非标准、空数据与未知见证永远不可解。
//
// 嵌套层数超过 MaxSolveDepth 时视为不可解。
func IsSolvable(provider SigningProvider, script []byte) bool {
	if provider == nil {
		provider = emptyProvider{}
	}
	return isSolvable(provider, script, ctxTop, 1)
}

func isSolvable(provider SigningProvider, script []byte, ctx solveContext, depth int) bool {
	if depth > MaxSolveDepth {
		return false
	}

	class, solutions := Solver(script)
	switch class {
	case PubKeyTy:
		return isUsableKey(solutions[0], ctx)

	case PubKeyHashTy:
		pubKey, ok := lookupPubKey(provider, solutions[0])
		return ok && isUsableKey(pubKey, ctx)

	case MultiSigTy:
		required := int(solutions[0][0])
		for _, pubKey := range solutions[1 : required+1] {
			if !isUsableKey(pubKey, ctx) {
				return false
			}
		}
		return true

	case ScriptHashTy:
		if ctx != ctxTop {
			return false
		}
		var id [20]byte
		copy(id[:], solutions[0])
		redeemScript, ok := provider.GetScript(id)
		if !ok || len(redeemScript) > MaxScriptElementSize {
			return false
		}
		if h := hash160(redeemScript); !bytes.Equal(h[:], solutions[0]) {
			return false
		}
		return isSolvable(provider, redeemScript, ctxP2SH, depth+1)

	case WitnessV0PubKeyHashTy:
		if ctx == ctxP2WSH {
			return false
		}
		pubKey, ok := lookupPubKey(provider, solutions[0])
		return ok && isCompressedPubKey(pubKey)

	case WitnessV0ScriptHashTy:
		if ctx == ctxP2WSH {
			return false
		}
		witnessScript, ok := provider.GetScript(witnessScriptID(solutions[0]))
		if !ok || len(witnessScript) > MaxScriptSize {
			return false
		}
		if !bytes.Equal(chainhash.HashB(witnessScript), solutions[0]) {
			return false
		}
		return isSolvable(provider, witnessScript, ctxP2WSH, depth+1)
	}

	return false
}

// IsSegWitOutput 返回脚本是否为见证程序，或是 provider 已知其赎回脚本为见证程序的 P2SH 脚本。
func IsSegWitOutput(provider SigningProvider, script []byte) bool {
	if IsWitnessProgram(script) {
		return true
	}
	if !IsPayToScriptHash(script) {
		return false
	}
	if provider == nil {
		return false
	}

	var id [20]byte
	copy(id[:], script[2:22])
	redeemScript, ok := provider.GetScript(id)
	return ok && IsWitnessProgram(redeemScript)
}
