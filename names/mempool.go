// Package names 维护内存池中的名字操作，保证池内交易之间没有名字冲突。
package names

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/namechain/txscript"
	"github.com/sirupsen/logrus"
)

// DefaultNameChainLimit 默认允许的待处理名字操作链长度。
// 目前只允许单个待处理操作，不允许在池内串联 name_update。
const DefaultNameChainLimit = 1

// NameOutput 描述交易中的一个名字输出。
type NameOutput struct {
	Index  uint32
	Script *txscript.NameScript
}

// NameOutputs 返回交易中所有带名字前缀的输出。
func NameOutputs(tx *wire.MsgTx) []NameOutput {
	var outs []NameOutput
	for i, txOut := range tx.TxOut {
		if ns, ok := txscript.ParseNameScript(txOut.PkScript); ok {
			outs = append(outs, NameOutput{Index: uint32(i), Script: ns})
		}
	}
	return outs
}

// NameMemPool 内存池的名字部分。
// 同一个名字在池内最多只有一笔注册交易，更新则可以按链长限制排队。
type NameMemPool struct {
	mtx sync.RWMutex

	chainLimit int

	txs      map[chainhash.Hash]*wire.MsgTx         // 含名字操作的池内交易
	regs     map[string]chainhash.Hash              // 名字 -> 注册交易
	updates  map[string]map[chainhash.Hash]struct{} // 名字 -> 更新交易集合
	nameNews map[string]chainhash.Hash              // name_new 哈希 -> 交易，直到 Clear 才清空
}

// NewNameMemPool 创建名字内存池，chainLimit 不大于零时使用默认值。
func NewNameMemPool(chainLimit int) *NameMemPool {
	if chainLimit <= 0 {
		chainLimit = DefaultNameChainLimit
	}
	return &NameMemPool{
		chainLimit: chainLimit,
		txs:        make(map[chainhash.Hash]*wire.MsgTx),
		regs:       make(map[string]chainhash.Hash),
		updates:    make(map[string]map[chainhash.Hash]struct{}),
		nameNews:   make(map[string]chainhash.Hash),
	}
}

// ChainLimit 返回待处理名字操作链的长度上限。
func (p *NameMemPool) ChainLimit() int {
	return p.chainLimit
}

// RegistersName 返回池内是否有交易注册该名字。
func (p *NameMemPool) RegistersName(name []byte) bool {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	_, ok := p.regs[string(name)]
	return ok
}

// UpdatesName 返回池内是否至少有一笔该名字的更新。
func (p *NameMemPool) UpdatesName(name []byte) bool {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	return len(p.updates[string(name)]) > 0
}

// PendingChainLength 返回该名字在池内待处理操作的个数。
func (p *NameMemPool) PendingChainLength(name []byte) int {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	return p.pendingChainLength(string(name))
}

func (p *NameMemPool) pendingChainLength(name string) int {
	n := len(p.updates[name])
	if _, ok := p.regs[name]; ok {
		n++
	}
	return n
}

// LastNameOutput 返回待处理操作链末端的名字输出，下一次更新应当花费它。
// 名字没有待处理操作时返回零值。
func (p *NameMemPool) LastNameOutput(name []byte) wire.OutPoint {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	key := string(name)
	candidates := make(map[chainhash.Hash]struct{}, len(p.updates[key])+1)
	if txid, ok := p.regs[key]; ok {
		candidates[txid] = struct{}{}
	}
	for txid := range p.updates[key] {
		candidates[txid] = struct{}{}
	}

	spent := make(map[chainhash.Hash]struct{})
	outpoints := make(map[chainhash.Hash]wire.OutPoint)
	for txid := range candidates {
		tx := p.txs[txid]
		for _, txIn := range tx.TxIn {
			if _, ok := candidates[txIn.PreviousOutPoint.Hash]; ok {
				spent[txIn.PreviousOutPoint.Hash] = struct{}{}
			}
		}
		for _, out := range NameOutputs(tx) {
			if out.Script.Op != txscript.NameNew && bytes.Equal(out.Script.Name(), name) {
				outpoints[txid] = wire.OutPoint{Hash: txid, Index: out.Index}
			}
		}
	}

	for txid, outpoint := range outpoints {
		if _, ok := spent[txid]; !ok {
			return outpoint
		}
	}
	return wire.OutPoint{}
}

// NameNewTx 返回提交了该 name_new 哈希的交易。
func (p *NameMemPool) NameNewTx(hash []byte) (chainhash.Hash, bool) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	txid, ok := p.nameNews[string(hash)]
	return txid, ok
}

// AddUnchecked 登记交易中的名字操作，调用者应先通过 CheckTx。
// 与池内已有交易冲突时返回错误且不修改状态。
func (p *NameMemPool) AddUnchecked(tx *wire.MsgTx) error {
	outs := NameOutputs(tx)
	if len(outs) == 0 {
		return nil
	}
	txid := tx.TxHash()

	p.mtx.Lock()
	defer p.mtx.Unlock()

	for _, out := range outs {
		ns := out.Script
		switch ns.Op {
		case txscript.NameNew:
			if other, ok := p.nameNews[string(ns.Hash())]; ok && other != txid {
				return fmt.Errorf("name_new hash %x already used by %v", ns.Hash(), other)
			}
		case txscript.NameFirstUpdate:
			if other, ok := p.regs[string(ns.Name())]; ok && other != txid {
				return fmt.Errorf("name %q already registered by %v", ns.Name(), other)
			}
		}
	}

	for _, out := range outs {
		ns := out.Script
		switch ns.Op {
		case txscript.NameNew:
			p.nameNews[string(ns.Hash())] = txid
		case txscript.NameFirstUpdate:
			p.regs[string(ns.Name())] = txid
		case txscript.NameUpdate:
			set, ok := p.updates[string(ns.Name())]
			if !ok {
				set = make(map[chainhash.Hash]struct{})
				p.updates[string(ns.Name())] = set
			}
			set[txid] = struct{}{}
		}
	}
	p.txs[txid] = tx
	return nil
}

// Remove 移除交易的名字登记。name_new 的哈希记录保留。
func (p *NameMemPool) Remove(tx *wire.MsgTx) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.remove(tx.TxHash())
}

func (p *NameMemPool) remove(txid chainhash.Hash) {
	tx, ok := p.txs[txid]
	if !ok {
		return
	}
	for _, out := range NameOutputs(tx) {
		name := string(out.Script.Name())
		switch out.Script.Op {
		case txscript.NameFirstUpdate:
			if p.regs[name] == txid {
				delete(p.regs, name)
			}
		case txscript.NameUpdate:
			delete(p.updates[name], txid)
			if len(p.updates[name]) == 0 {
				delete(p.updates, name)
			}
		}
	}
	delete(p.txs, txid)
}

// RemoveConflicts 移除与已确认交易 tx 注册同一名字的池内交易，返回被移除的交易。
func (p *NameMemPool) RemoveConflicts(tx *wire.MsgTx) []chainhash.Hash {
	txid := tx.TxHash()

	p.mtx.Lock()
	defer p.mtx.Unlock()

	var removed []chainhash.Hash
	for _, out := range NameOutputs(tx) {
		if out.Script.Op != txscript.NameFirstUpdate {
			continue
		}
		other, ok := p.regs[string(out.Script.Name())]
		if !ok || other == txid {
			continue
		}
		logrus.Debugf("[names] 移除与 %v 冲突的名字注册 %v: %s", txid, other, out.Script.Name())
		p.remove(other)
		removed = append(removed, other)
	}
	return removed
}

// RemoveUnexpireConflicts 名字重新变为未过期后，池内对它的注册不再有效，将其移除。
func (p *NameMemPool) RemoveUnexpireConflicts(unexpired [][]byte) []chainhash.Hash {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	var removed []chainhash.Hash
	for _, name := range unexpired {
		txid, ok := p.regs[string(name)]
		if !ok {
			continue
		}
		logrus.Debugf("[names] 名字 %s 未过期，移除注册 %v", name, txid)
		p.remove(txid)
		removed = append(removed, txid)
	}
	return removed
}

// RemoveExpireConflicts 名字过期后，池内对它的更新不再有效，将其全部移除。
func (p *NameMemPool) RemoveExpireConflicts(expired [][]byte) []chainhash.Hash {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	var removed []chainhash.Hash
	for _, name := range expired {
		for txid := range p.updates[string(name)] {
			logrus.Debugf("[names] 名字 %s 已过期，移除更新 %v", name, txid)
			p.remove(txid)
			removed = append(removed, txid)
		}
	}
	return removed
}

// CheckTx 返回交易能否在不产生名字冲突的情况下加入内存池。
func (p *NameMemPool) CheckTx(tx *wire.MsgTx) bool {
	outs := NameOutputs(tx)
	if len(outs) == 0 {
		return true
	}
	txid := tx.TxHash()

	p.mtx.RLock()
	defer p.mtx.RUnlock()

	for _, out := range outs {
		ns := out.Script
		switch ns.Op {
		case txscript.NameNew:
			if other, ok := p.nameNews[string(ns.Hash())]; ok && other != txid {
				return false
			}
		case txscript.NameFirstUpdate:
			if _, ok := p.regs[string(ns.Name())]; ok {
				return false
			}
		case txscript.NameUpdate:
			if p.pendingChainLength(string(ns.Name())) >= p.chainLimit {
				return false
			}
		}
	}
	return true
}

// Count 返回登记了名字操作的交易数。
func (p *NameMemPool) Count() int {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	return len(p.txs)
}

// Clear 清空全部数据，包括 name_new 哈希记录。
func (p *NameMemPool) Clear() {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	p.txs = make(map[chainhash.Hash]*wire.MsgTx)
	p.regs = make(map[string]chainhash.Hash)
	p.updates = make(map[string]map[chainhash.Hash]struct{})
	p.nameNews = make(map[string]chainhash.Hash)
}

// Check 检查内部索引的一致性。
func (p *NameMemPool) Check() error {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	hasOp := func(txid chainhash.Hash, op txscript.NameOp, name string) bool {
		tx, ok := p.txs[txid]
		if !ok {
			return false
		}
		for _, out := range NameOutputs(tx) {
			if out.Script.Op == op && string(out.Script.Name()) == name {
				return true
			}
		}
		return false
	}

	for name, txid := range p.regs {
		if !hasOp(txid, txscript.NameFirstUpdate, name) {
			return fmt.Errorf("registration of %q points to unknown tx %v", name, txid)
		}
	}
	for name, set := range p.updates {
		if len(set) == 0 {
			return fmt.Errorf("empty update set for %q", name)
		}
		for txid := range set {
			if !hasOp(txid, txscript.NameUpdate, name) {
				return fmt.Errorf("update of %q points to unknown tx %v", name, txid)
			}
		}
	}

	for txid, tx := range p.txs {
		if tx.TxHash() != txid {
			return fmt.Errorf("tx %v stored under %v", tx.TxHash(), txid)
		}
		for _, out := range NameOutputs(tx) {
			ns := out.Script
			name := string(ns.Name())
			switch ns.Op {
			case txscript.NameNew:
				if p.nameNews[string(ns.Hash())] != txid {
					return fmt.Errorf("name_new %s of %v is not indexed",
						hex.EncodeToString(ns.Hash()), txid)
				}
			case txscript.NameFirstUpdate:
				if p.regs[name] != txid {
					return fmt.Errorf("registration of %q by %v is not indexed", name, txid)
				}
			case txscript.NameUpdate:
				if _, ok := p.updates[name][txid]; !ok {
					return fmt.Errorf("update of %q by %v is not indexed", name, txid)
				}
			}
		}
	}
	return nil
}
