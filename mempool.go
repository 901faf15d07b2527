package namechain

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcdscript "github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/decred/dcrd/lru"
	"github.com/qinglongcn/namechain/names"
	"github.com/qinglongcn/namechain/netparams"
	"github.com/qinglongcn/namechain/txscript"
	"github.com/sirupsen/logrus"
)

// mempoolFileVersion 内存池持久化文件的格式版本
const mempoolFileVersion = 1

// ErrMissingInputs 交易引用的输出既不在币数据库中也不在内存池中
var ErrMissingInputs = errors.New("missing inputs")

// CoinView 提供已确认的未花费输出
type CoinView interface {
	FetchCoin(op wire.OutPoint) (*Coin, error)
}

// NameView 提供已确认名字的当前状态
type NameView interface {
	GetName(name []byte) (*NameRecord, error)
}

// TxDesc 内存池中的交易及其元数据
type TxDesc struct {
	Tx     *wire.MsgTx
	Added  time.Time // 加入内存池的时间
	Height int32     // 加入时的最新区块高度
	Fee    int64     // 交易费，单位 satoshi

	seq uint64 // 加入顺序，父交易总是先于子交易
}

// MemPoolConfig 创建内存池所需的依赖
type MemPoolConfig struct {
	Policy            *Policy
	Params            *netparams.Params
	Coins             CoinView
	Names             NameView
	NamePool          *names.NameMemPool
	Verifier          txscript.Verifier
	RejectedCacheSize uint
	BestHeight        int32
}

// MemPool 等待打包的交易池
type MemPool struct {
	mtx sync.RWMutex

	cfg        MemPoolConfig
	pool       map[chainhash.Hash]*TxDesc
	outpoints  map[wire.OutPoint]chainhash.Hash // 被池内交易花费的输出 -> 花费者
	rejected   lru.Cache                        // 最近被拒绝的交易
	bestHeight int32
	nextSeq    uint64
}

// NewMemPool 创建内存池，未指定的依赖使用默认值
func NewMemPool(cfg *MemPoolConfig) *MemPool {
	c := *cfg
	if c.Policy == nil {
		c.Policy = DefaultPolicy()
	}
	if c.Params == nil {
		c.Params = &netparams.MainNetParams
	}
	if c.NamePool == nil {
		c.NamePool = names.NewNameMemPool(names.DefaultNameChainLimit)
	}
	if c.Verifier == nil {
		c.Verifier = txscript.NewEngineVerifier()
	}
	if c.RejectedCacheSize == 0 {
		c.RejectedCacheSize = 1000
	}
	return &MemPool{
		cfg:        c,
		pool:       make(map[chainhash.Hash]*TxDesc),
		outpoints:  make(map[wire.OutPoint]chainhash.Hash),
		rejected:   lru.NewCache(c.RejectedCacheSize),
		bestHeight: c.BestHeight,
	}
}

// NamePool 返回内存池的名字部分
func (mp *MemPool) NamePool() *names.NameMemPool {
	return mp.cfg.NamePool
}

// BestHeight 返回内存池所在的最新区块高度
func (mp *MemPool) BestHeight() int32 {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return mp.bestHeight
}

// HaveTx 返回交易是否在内存池中
func (mp *MemPool) HaveTx(txid *chainhash.Hash) bool {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	_, ok := mp.pool[*txid]
	return ok
}

// IsRejected 返回交易是否在最近被拒绝的缓存中
func (mp *MemPool) IsRejected(txid *chainhash.Hash) bool {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return mp.rejected.Contains(*txid)
}

// FetchTx 返回内存池中的交易
func (mp *MemPool) FetchTx(txid *chainhash.Hash) (*TxDesc, error) {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	desc, ok := mp.pool[*txid]
	if !ok {
		return nil, fmt.Errorf("transaction %v is not in the pool", txid)
	}
	return desc, nil
}

// Count 返回内存池中的交易数量
func (mp *MemPool) Count() int {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return len(mp.pool)
}

// TxHashes 返回内存池中所有交易的哈希，按加入顺序排列
func (mp *MemPool) TxHashes() []chainhash.Hash {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	descs := mp.sortedDescs()
	hashes := make([]chainhash.Hash, len(descs))
	for i, desc := range descs {
		hashes[i] = desc.Tx.TxHash()
	}
	return hashes
}

func (mp *MemPool) sortedDescs() []*TxDesc {
	descs := make([]*TxDesc, 0, len(mp.pool))
	for _, desc := range mp.pool {
		descs = append(descs, desc)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].seq < descs[j].seq })
	return descs
}

// fetchInputCoins 查找交易的所有输入，池内交易的输出视为尚未确认
func (mp *MemPool) fetchInputCoins(tx *wire.MsgTx) (map[wire.OutPoint]*Coin, error) {
	coins := make(map[wire.OutPoint]*Coin, len(tx.TxIn))
	for i, txIn := range tx.TxIn {
		prev := txIn.PreviousOutPoint
		if spender, ok := mp.outpoints[prev]; ok {
			return nil, txRuleError(wire.RejectDuplicate,
				"output %v already spent by transaction %v in the memory pool", prev, spender)
		}

		if parent, ok := mp.pool[prev.Hash]; ok {
			if prev.Index >= uint32(len(parent.Tx.TxOut)) {
				return nil, txRuleError(wire.RejectInvalid,
					"transaction input %d: output index %d out of range", i, prev.Index)
			}
			coins[prev] = &Coin{TxOut: parent.Tx.TxOut[prev.Index], Height: mp.bestHeight + 1}
			continue
		}

		if mp.cfg.Coins == nil {
			return nil, fmt.Errorf("input %v: %w", prev, ErrMissingInputs)
		}
		coin, err := mp.cfg.Coins.FetchCoin(prev)
		if errors.Is(err, ErrCoinNotFound) {
			return nil, fmt.Errorf("input %v: %w", prev, ErrMissingInputs)
		} else if err != nil {
			return nil, err
		}
		coins[prev] = coin
	}
	return coins, nil
}

// checkInputAmounts 检查 coinbase 成熟度与金额，返回交易费
func (mp *MemPool) checkInputAmounts(tx *wire.MsgTx, coins map[wire.OutPoint]*Coin) (int64, error) {
	nextHeight := mp.bestHeight + 1
	maturity := int32(mp.cfg.Params.CoinbaseMaturity)

	var totalIn int64
	for _, txIn := range tx.TxIn {
		coin := coins[txIn.PreviousOutPoint]
		if coin.Coinbase && nextHeight-coin.Height < maturity {
			return 0, txRuleError(wire.RejectInvalid,
				"tried to spend coinbase output %v from height %d at height %d before maturity of %d",
				txIn.PreviousOutPoint, coin.Height, nextHeight, maturity)
		}
		totalIn += coin.TxOut.Value
	}

	var totalOut int64
	for _, txOut := range tx.TxOut {
		totalOut += txOut.Value
	}

	fee := totalIn - totalOut
	if fee < 0 {
		return 0, txRuleError(wire.RejectInvalid,
			"total value of all inputs %d is less than the amount spent %d", totalIn, totalOut)
	}
	return fee, nil
}

// calcMinRequiredTxRelayFee 返回 serializedSize 字节的交易至少需要支付的中继费
func calcMinRequiredTxRelayFee(serializedSize int64, minRelayTxFee btcutil.Amount) int64 {
	minFee := (serializedSize * int64(minRelayTxFee)) / 1000
	if minFee == 0 && minRelayTxFee > 0 {
		minFee = int64(minRelayTxFee)
	}
	if minFee < 0 || minFee > btcutil.MaxSatoshi {
		minFee = btcutil.MaxSatoshi
	}
	return minFee
}

// checkNameInputs 检查名字操作花费了正确的名字输出
func (mp *MemPool) checkNameInputs(tx *wire.MsgTx, coins map[wire.OutPoint]*Coin) error {
	var (
		nameIn   *txscript.NameScript
		nameCoin *Coin
	)
	for _, txIn := range tx.TxIn {
		coin := coins[txIn.PreviousOutPoint]
		ns, ok := txscript.ParseNameScript(coin.TxOut.PkScript)
		if !ok {
			continue
		}
		if nameIn != nil {
			return txRuleError(wire.RejectInvalid, "transaction spends multiple name outputs")
		}
		nameIn, nameCoin = ns, coin
	}

	outs := names.NameOutputs(tx)
	if len(outs) == 0 {
		if nameIn != nil {
			return txRuleError(wire.RejectInvalid, "non-name transaction spends a name output")
		}
		return nil
	}

	out := outs[0].Script
	nextHeight := mp.bestHeight + 1
	switch out.Op {
	case txscript.NameNew:
		if nameIn != nil {
			return txRuleError(wire.RejectInvalid, "name_new spends a name output")
		}

	case txscript.NameFirstUpdate:
		if nameIn == nil || nameIn.Op != txscript.NameNew {
			return txRuleError(wire.RejectInvalid, "name_firstupdate does not spend a name_new")
		}
		commitment := btcutil.Hash160(append(append([]byte{}, out.Rand()...), out.Name()...))
		if !bytes.Equal(commitment, nameIn.Hash()) {
			return txRuleError(wire.RejectInvalid, "name_firstupdate of %q does not match name_new hash", out.Name())
		}
		if nameCoin.Height+netparams.MinFirstUpdateDepth > nextHeight {
			return txRuleError(wire.RejectInvalid,
				"name_new for %q is not mature for name_firstupdate", out.Name())
		}
		if mp.cfg.Names != nil {
			rec, err := mp.cfg.Names.GetName(out.Name())
			if err == nil && !mp.cfg.Params.NameExpired(rec.Height, nextHeight) {
				return txRuleError(wire.RejectInvalid, "name %q is already registered", out.Name())
			} else if err != nil && !errors.Is(err, ErrNameNotFound) {
				return err
			}
		}

	case txscript.NameUpdate:
		if nameIn == nil || !nameIn.IsAnyUpdate() {
			return txRuleError(wire.RejectInvalid, "name_update does not spend a name output")
		}
		if !bytes.Equal(nameIn.Name(), out.Name()) {
			return txRuleError(wire.RejectInvalid,
				"name_update of %q spends name output of %q", out.Name(), nameIn.Name())
		}
		if mp.cfg.Names != nil {
			rec, err := mp.cfg.Names.GetName(out.Name())
			if err == nil && mp.cfg.Params.NameExpired(rec.Height, nextHeight) {
				return txRuleError(wire.RejectInvalid, "name %q has expired", out.Name())
			} else if err != nil && !errors.Is(err, ErrNameNotFound) {
				return err
			}
		}
	}
	return nil
}

// AddTx 检查交易并加入内存池。
// 交易违反规则时返回 TxRuleError，除重复与冲突外都记入拒绝缓存；输入缺失时返回 ErrMissingInputs。
func (mp *MemPool) AddTx(tx *wire.MsgTx) (*TxDesc, error) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	txid := tx.TxHash()
	desc, err := mp.maybeAcceptTx(tx, txid)
	if err != nil {
		// 重复与冲突的交易之后可能重新有效，不记入拒绝缓存
		if code, ok := RejectCodeOf(err); ok && code != wire.RejectDuplicate {
			mp.rejected.Add(txid)
		}
		logrus.Debugf("[MemPool] 拒绝交易 %v: %v", txid, err)
		return nil, err
	}
	return desc, nil
}

func (mp *MemPool) maybeAcceptTx(tx *wire.MsgTx, txid chainhash.Hash) (*TxDesc, error) {
	if _, ok := mp.pool[txid]; ok {
		return nil, txRuleError(wire.RejectDuplicate, "already have transaction %v", txid)
	}
	if mp.rejected.Contains(txid) {
		return nil, txRuleError(wire.RejectDuplicate, "transaction %v was recently rejected", txid)
	}
	if err := blockchain.CheckTransactionSanity(btcutil.NewTx(tx)); err != nil {
		return nil, txRuleError(wire.RejectInvalid, "%v", err)
	}
	if blockchain.IsCoinBaseTx(tx) {
		return nil, txRuleError(wire.RejectInvalid, "transaction %v is an individual coinbase", txid)
	}

	if err := CheckTransactionStandard(tx, mp.cfg.Policy); err != nil {
		return nil, err
	}

	coins, err := mp.fetchInputCoins(tx)
	if err != nil {
		return nil, err
	}
	fee, err := mp.checkInputAmounts(tx, coins)
	if err != nil {
		return nil, err
	}

	prevOuts := btcdscript.NewMultiPrevOutFetcher(make(map[wire.OutPoint]*wire.TxOut, len(coins)))
	for op, coin := range coins {
		prevOuts.AddPrevOut(op, coin.TxOut)
	}
	if err := CheckInputsStandard(tx, prevOuts); err != nil {
		return nil, err
	}
	if err := CheckTransactionSigCost(tx, prevOuts, txscript.StandardVerifyFlags); err != nil {
		return nil, err
	}

	minFee := calcMinRequiredTxRelayFee(int64(tx.SerializeSize()), mp.cfg.Policy.MinRelayTxFee)
	if fee < minFee {
		return nil, txRuleError(wire.RejectInsufficientFee,
			"transaction %v has %d fees which is under the required amount of %d", txid, fee, minFee)
	}

	if err := mp.checkNameInputs(tx, coins); err != nil {
		return nil, err
	}
	if !mp.cfg.NamePool.CheckTx(tx) {
		return nil, txRuleError(wire.RejectDuplicate, "transaction %v conflicts with pending name operations", txid)
	}

	for i, txIn := range tx.TxIn {
		prevOut := coins[txIn.PreviousOutPoint].TxOut
		err := mp.cfg.Verifier.Verify(txIn.SignatureScript, prevOut.PkScript, txIn.Witness,
			tx, i, prevOut.Value, txscript.StandardVerifyFlags)
		if err != nil {
			return nil, txRuleError(wire.RejectNonstandard,
				"transaction input %d: script verification failed: %v", i, err)
		}
	}

	if err := mp.cfg.NamePool.AddUnchecked(tx); err != nil {
		return nil, txRuleError(wire.RejectDuplicate, "%v", err)
	}

	desc := &TxDesc{
		Tx:     tx,
		Added:  time.Now(),
		Height: mp.bestHeight,
		Fee:    fee,
		seq:    mp.nextSeq,
	}
	mp.nextSeq++
	mp.pool[txid] = desc
	for _, txIn := range tx.TxIn {
		mp.outpoints[txIn.PreviousOutPoint] = txid
	}

	logrus.Debugf("[MemPool] 接受交易 %v (池内共 %d 笔)", txid, len(mp.pool))
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.Tracef("[MemPool] %v", spew.Sdump(tx))
	}
	return desc, nil
}

// RemoveTx 从内存池移除交易，removeRedeemers 为 true 时同时移除花费其输出的交易
func (mp *MemPool) RemoveTx(txid *chainhash.Hash, removeRedeemers bool) []chainhash.Hash {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	return mp.removeTx(*txid, removeRedeemers)
}

func (mp *MemPool) removeTx(txid chainhash.Hash, removeRedeemers bool) []chainhash.Hash {
	desc, ok := mp.pool[txid]
	if !ok {
		return nil
	}

	var removed []chainhash.Hash
	if removeRedeemers {
		for i := range desc.Tx.TxOut {
			op := wire.OutPoint{Hash: txid, Index: uint32(i)}
			if spender, ok := mp.outpoints[op]; ok {
				removed = append(removed, mp.removeTx(spender, true)...)
			}
		}
	}

	for _, txIn := range desc.Tx.TxIn {
		delete(mp.outpoints, txIn.PreviousOutPoint)
	}
	mp.cfg.NamePool.Remove(desc.Tx)
	delete(mp.pool, txid)
	return append(removed, txid)
}

// removeDoubleSpends 移除与 tx 花费同一输出的池内交易
func (mp *MemPool) removeDoubleSpends(tx *wire.MsgTx) []chainhash.Hash {
	txid := tx.TxHash()
	var removed []chainhash.Hash
	for _, txIn := range tx.TxIn {
		if spender, ok := mp.outpoints[txIn.PreviousOutPoint]; ok && spender != txid {
			removed = append(removed, mp.removeTx(spender, true)...)
		}
	}
	return removed
}

// removeAll 移除给定交易及其后代
func (mp *MemPool) removeAll(txids []chainhash.Hash) []chainhash.Hash {
	var removed []chainhash.Hash
	for _, txid := range txids {
		removed = append(removed, mp.removeTx(txid, true)...)
	}
	return removed
}

// ConnectBlock 在区块 height 被连接后更新内存池：
// 移除已打包的交易，与之双花的交易，以及名字冲突的交易。返回因冲突被移除的交易。
func (mp *MemPool) ConnectBlock(txs []*wire.MsgTx, height int32) []chainhash.Hash {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	mp.bestHeight = height

	var conflicts []chainhash.Hash
	for _, tx := range txs {
		// 已打包的交易留在链上，它的子交易继续有效
		mp.removeTx(tx.TxHash(), false)
		conflicts = append(conflicts, mp.removeDoubleSpends(tx)...)
		conflicts = append(conflicts, mp.removeAll(mp.cfg.NamePool.RemoveConflicts(tx))...)
	}
	if len(conflicts) > 0 {
		logrus.Infof("[MemPool] 区块 %d 移除了 %d 笔冲突交易", height, len(conflicts))
	}
	return conflicts
}

// RemoveExpireConflicts 移除对已过期名字的待处理更新
func (mp *MemPool) RemoveExpireConflicts(expired [][]byte) []chainhash.Hash {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	return mp.removeAll(mp.cfg.NamePool.RemoveExpireConflicts(expired))
}

// RemoveUnexpireConflicts 移除对重新生效名字的待处理注册
func (mp *MemPool) RemoveUnexpireConflicts(unexpired [][]byte) []chainhash.Hash {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	return mp.removeAll(mp.cfg.NamePool.RemoveUnexpireConflicts(unexpired))
}

// Clear 清空内存池与拒绝缓存以外的全部状态
func (mp *MemPool) Clear() {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	mp.pool = make(map[chainhash.Hash]*TxDesc)
	mp.outpoints = make(map[wire.OutPoint]chainhash.Hash)
	mp.cfg.NamePool.Clear()
}

// writeTo 按加入顺序写出全部交易：版本、数量，然后每笔交易的加入时间与序列化数据
func (mp *MemPool) writeTo(w io.Writer) error {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	descs := mp.sortedDescs()
	if err := binary.Write(w, binary.LittleEndian, uint32(mempoolFileVersion)); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, 0, uint64(len(descs))); err != nil {
		return err
	}
	for _, desc := range descs {
		if err := binary.Write(w, binary.LittleEndian, desc.Added.Unix()); err != nil {
			return err
		}
		if err := desc.Tx.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// readFrom 读取 writeTo 写出的交易并重新检查后加入内存池，返回成功加入的数量
func (mp *MemPool) readFrom(r io.Reader) (int, error) {
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	if version != mempoolFileVersion {
		return 0, fmt.Errorf("unsupported mempool file version %d", version)
	}
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return 0, err
	}

	accepted := 0
	for i := uint64(0); i < count; i++ {
		var added int64
		if err := binary.Read(r, binary.LittleEndian, &added); err != nil {
			return accepted, err
		}
		tx := new(wire.MsgTx)
		if err := tx.Deserialize(r); err != nil {
			return accepted, fmt.Errorf("transaction %d: %w", i, err)
		}

		desc, err := mp.AddTx(tx)
		if err != nil {
			logrus.Warnf("[MemPool] 丢弃保存的交易 %v: %v", tx.TxHash(), err)
			continue
		}
		mp.mtx.Lock()
		desc.Added = time.Unix(added, 0)
		mp.mtx.Unlock()
		accepted++
	}
	return accepted, nil
}

// Save 把内存池写入数据目录下的 mempool.dat
func (mp *MemPool) Save(fs *FileStore) error {
	return fs.WriteFile("", poolFile, mp.writeTo)
}

// Load 从 mempool.dat 恢复内存池，文件不存在时什么也不做
func (mp *MemPool) Load(fs *FileStore) (int, error) {
	var accepted int
	err := fs.ReadFile("", poolFile, func(r io.Reader) error {
		var err error
		accepted, err = mp.readFrom(r)
		return err
	})
	if errors.Is(err, ErrFileNotFound) {
		return 0, nil
	}
	return accepted, err
}
