package namechain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/dgraph-io/badger/v4"
	"github.com/qinglongcn/namechain/txscript"
	"github.com/sirupsen/logrus"
)

var (
	coinPrefix    = []byte("coin-")       // 键值前缀
	bestHeightKey = []byte("best-height") // 最新区块高度

	// ErrCoinNotFound 输出不存在或已被花费
	ErrCoinNotFound = errors.New("coin not found")
)

// Coin 未花费的交易输出及其创建位置
type Coin struct {
	TxOut    *wire.TxOut
	Height   int32 // 创建该输出的区块高度
	Coinbase bool  // 是否来自 coinbase 交易
}

// coinKey 返回输出在数据库中的键：前缀 + 交易哈希 + 大端序输出索引
func coinKey(op wire.OutPoint) []byte {
	key := make([]byte, len(coinPrefix)+chainhash.HashSize+4)
	copy(key, coinPrefix)
	copy(key[len(coinPrefix):], op.Hash[:])
	binary.BigEndian.PutUint32(key[len(coinPrefix)+chainhash.HashSize:], op.Index)
	return key
}

// outPointFromKey 从数据库键还原输出
func outPointFromKey(key []byte) (wire.OutPoint, error) {
	var op wire.OutPoint
	if len(key) != len(coinPrefix)+chainhash.HashSize+4 {
		return op, fmt.Errorf("malformed coin key of %d bytes", len(key))
	}
	copy(op.Hash[:], key[len(coinPrefix):])
	op.Index = binary.BigEndian.Uint32(key[len(coinPrefix)+chainhash.HashSize:])
	return op, nil
}

// serializeCoin 编码为 VLQ(高度*2 + coinbase) 加压缩交易输出
func serializeCoin(coin *Coin) []byte {
	code := uint64(coin.Height) << 1
	if coin.Coinbase {
		code |= 1
	}
	amount := uint64(coin.TxOut.Value)
	size := txscript.SerializeSizeVLQ(code) + txscript.CompressedTxOutSize(amount, coin.TxOut.PkScript)

	serialized := make([]byte, size)
	offset := txscript.PutVLQ(serialized, code)
	txscript.PutCompressedTxOut(serialized[offset:], amount, coin.TxOut.PkScript)
	return serialized
}

// deserializeCoin 是 serializeCoin 的逆运算
func deserializeCoin(serialized []byte) (*Coin, error) {
	code, offset := txscript.DeserializeVLQ(serialized)
	if offset >= len(serialized) {
		return nil, errors.New("unexpected end of data after height code")
	}

	amount, pkScript, _, err := txscript.DecodeCompressedTxOut(serialized[offset:])
	if err != nil {
		return nil, fmt.Errorf("unable to decode txout: %w", err)
	}

	return &Coin{
		TxOut:    wire.NewTxOut(int64(amount), pkScript),
		Height:   int32(code >> 1),
		Coinbase: code&1 == 1,
	}, nil
}

// CoinStore 以压缩格式保存未花费输出
type CoinStore struct {
	db *badger.DB
}

// OpenCoinStore 打开路径为 path 的币数据库，inMemory 为 true 时不落盘
func OpenCoinStore(path string, inMemory bool) (*CoinStore, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
		opts.ValueDir = path
	}
	opts = opts.WithLogger(logrus.StandardLogger())

	db, err := openDB(path, opts)
	if err != nil {
		return nil, err
	}
	return &CoinStore{db: db}, nil
}

// Close 关闭数据库
func (s *CoinStore) Close() error {
	return s.db.Close()
}

// putCoin 在事务中写入输出，不可花费的脚本不保存
func putCoin(txn *badger.Txn, op wire.OutPoint, coin *Coin) error {
	if txscript.IsUnspendable(coin.TxOut.PkScript) {
		logrus.Debugf("[CoinStore] 跳过不可花费的输出 %v", op)
		return nil
	}
	return txn.Set(coinKey(op), serializeCoin(coin))
}

// getCoin 在事务中读取输出
func getCoin(txn *badger.Txn, op wire.OutPoint) (*Coin, error) {
	item, err := txn.Get(coinKey(op))
	if err == badger.ErrKeyNotFound {
		return nil, ErrCoinNotFound
	} else if err != nil {
		return nil, err
	}

	var coin *Coin
	err = item.Value(func(val []byte) error {
		coin, err = deserializeCoin(val)
		return err
	})
	return coin, err
}

// AddCoin 保存一个未花费输出
func (s *CoinStore) AddCoin(op wire.OutPoint, coin *Coin) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putCoin(txn, op, coin)
	})
}

// FetchCoin 读取未花费输出，不存在时返回 ErrCoinNotFound
func (s *CoinStore) FetchCoin(op wire.OutPoint) (*Coin, error) {
	var coin *Coin
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		coin, err = getCoin(txn, op)
		return err
	})
	return coin, err
}

// HaveCoin 返回输出是否未花费
func (s *CoinStore) HaveCoin(op wire.OutPoint) bool {
	_, err := s.FetchCoin(op)
	return err == nil
}

// SpendCoin 删除并返回未花费输出
func (s *CoinStore) SpendCoin(op wire.OutPoint) (*Coin, error) {
	var coin *Coin
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		if coin, err = getCoin(txn, op); err != nil {
			return err
		}
		return txn.Delete(coinKey(op))
	})
	return coin, err
}

// ForEachCoin 按键顺序遍历所有未花费输出，fn 返回错误时停止
func (s *CoinStore) ForEachCoin(fn func(op wire.OutPoint, coin *Coin) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(coinPrefix); it.ValidForPrefix(coinPrefix); it.Next() {
			item := it.Item()
			op, err := outPointFromKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			coin, err := deserializeCoin(val)
			if err != nil {
				return fmt.Errorf("coin %v: %w", op, err)
			}
			if err := fn(op, coin); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count 返回未花费输出的数量
func (s *CoinStore) Count() (int, error) {
	var counter int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(coinPrefix); it.ValidForPrefix(coinPrefix); it.Next() {
			counter++
		}
		return nil
	})
	return counter, err
}

// SetBestHeight 记录已应用的最新区块高度
func (s *CoinStore) SetBestHeight(height int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(height))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(bestHeightKey, buf[:])
	})
}

// BestHeight 返回已应用的最新区块高度，尚未应用任何区块时返回 -1
func (s *CoinStore) BestHeight() (int32, error) {
	height := int32(-1)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bestHeightKey)
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 4 {
				return fmt.Errorf("malformed best height of %d bytes", len(val))
			}
			height = int32(binary.BigEndian.Uint32(val))
			return nil
		})
	})
	return height, err
}

// ApplyTx 在一个事务内花费交易的输入并保存其输出。
// 任一输入不存在时整笔交易不生效，返回花费掉的输出以便撤销。
func (s *CoinStore) ApplyTx(tx *wire.MsgTx, height int32) ([]*Coin, error) {
	coinbase := blockchain.IsCoinBaseTx(tx)
	txid := tx.TxHash()

	var spent []*Coin
	err := s.db.Update(func(txn *badger.Txn) error {
		if !coinbase {
			for _, txIn := range tx.TxIn {
				coin, err := getCoin(txn, txIn.PreviousOutPoint)
				if err != nil {
					return fmt.Errorf("input %v: %w", txIn.PreviousOutPoint, err)
				}
				if err := txn.Delete(coinKey(txIn.PreviousOutPoint)); err != nil {
					return err
				}
				spent = append(spent, coin)
			}
		}

		for i, txOut := range tx.TxOut {
			op := wire.OutPoint{Hash: txid, Index: uint32(i)}
			coin := &Coin{TxOut: txOut, Height: height, Coinbase: coinbase}
			if err := putCoin(txn, op, coin); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return spent, nil
}

// openDB 打开数据库，如果因为存在 LOCK 文件打开失败，执行 retry 确保打开
func openDB(path string, opts badger.Options) (*badger.DB, error) {
	db, err := badger.Open(opts)
	if err != nil && !opts.InMemory && strings.Contains(err.Error(), "LOCK") {
		db, err = retry(path, opts)
		if err != nil {
			return nil, fmt.Errorf("无法解锁数据库: %w", err)
		}
		return db, nil
	} else if err != nil {
		return nil, err
	}
	return db, nil
}

// retry 删除 lock 文件，并再次尝试打开数据库
func retry(path string, opts badger.Options) (*badger.DB, error) {
	lockPath := filepath.Join(path, "LOCK")

	// 检查锁文件是否可以安全删除
	if err := checkLock(lockPath); err != nil {
		return nil, err
	}

	if err := os.Remove(lockPath); err != nil {
		return nil, fmt.Errorf("移除 LOCK: %w", err)
	}

	var db *badger.DB
	var err error
	for i := 0; i < 3; i++ {
		db, err = badger.Open(opts)
		if err == nil {
			return db, nil
		}
		logrus.Errorf("打开数据库失败，%d 秒后重试", i+1)
		time.Sleep(time.Duration(i+1) * time.Second)
	}

	return nil, fmt.Errorf("打开数据库失败: %w", err)
}

// checkLock 检查锁文件是否可以安全删除
func checkLock(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开 LOCK 文件失败: %w", err)
	}
	defer file.Close()

	// 尝试获取文件锁
	err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		return fmt.Errorf("数据库正被其他进程使用: %w", err)
	}
	return syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
}
