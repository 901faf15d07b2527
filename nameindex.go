package namechain

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	_ "github.com/mattn/go-sqlite3"
	"github.com/qinglongcn/namechain/names"
	"github.com/qinglongcn/namechain/netparams"
	"github.com/qinglongcn/namechain/txscript"
	"github.com/sirupsen/logrus"
)

// ErrNameNotFound 名字不存在
var ErrNameNotFound = errors.New("name not found")

const (
	nameCreateTable = iota
	nameUpsert
	nameGet
	nameList
	nameDelete
	nameExpired
	nameCount
)

var nameQueries = []string{
	nameCreateTable: `CREATE TABLE IF NOT EXISTS names (
		name    BLOB PRIMARY KEY,
		value   BLOB NOT NULL,
		txid    BLOB NOT NULL,
		vout    INTEGER NOT NULL,
		height  INTEGER NOT NULL,
		address TEXT NOT NULL,
		class   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS names_height ON names (height);`,
	nameUpsert: `INSERT INTO names (name, value, txid, vout, height, address, class)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, txid = excluded.txid,
		vout = excluded.vout, height = excluded.height, address = excluded.address,
		class = excluded.class;`,
	nameGet:     "SELECT name, value, txid, vout, height, address, class FROM names WHERE name = ?;",
	nameList:    "SELECT name, value, txid, vout, height, address, class FROM names WHERE name >= ? ORDER BY name ASC LIMIT ?;",
	nameDelete:  "DELETE FROM names WHERE name = ?;",
	nameExpired: "SELECT name FROM names WHERE height <= ? ORDER BY name ASC;",
	nameCount:   "SELECT COUNT(*) FROM names;",
}

// NameRecord 名字的当前状态
type NameRecord struct {
	Name     []byte
	Value    []byte
	OutPoint wire.OutPoint        // 持有该名字的输出
	Height   int32                // 最后一次注册或更新的区块高度
	Address  string               // 名字输出地址部分对应的地址，无法编码时为空
	Class    txscript.ScriptClass // 名字输出地址部分的脚本类别
}

// NameIndex 在 sqlite 中保存每个名字的最新状态
type NameIndex struct {
	mtx    sync.Mutex
	db     *sql.DB
	params *netparams.Params
}

// OpenNameIndex 打开名字索引数据库，path 为 ":memory:" 时只保存在内存中
func OpenNameIndex(path string, params *netparams.Params) (*NameIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("打开名字索引失败: %w", err)
	}
	// 内存数据库按连接隔离，只能使用一个连接
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(nameQueries[nameCreateTable]); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建名字表失败: %w", err)
	}
	return &NameIndex{db: db, params: params}, nil
}

// Close 关闭数据库
func (ni *NameIndex) Close() error {
	return ni.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNameRecord(row rowScanner) (*NameRecord, error) {
	var (
		rec   NameRecord
		txid  []byte
		class string
	)
	if err := row.Scan(&rec.Name, &rec.Value, &txid, &rec.OutPoint.Index,
		&rec.Height, &rec.Address, &class); err != nil {
		return nil, err
	}
	if len(txid) != chainhash.HashSize {
		return nil, fmt.Errorf("name %q has malformed txid of %d bytes", rec.Name, len(txid))
	}
	copy(rec.OutPoint.Hash[:], txid)

	sc, err := txscript.NewScriptClass(class)
	if err != nil {
		return nil, err
	}
	rec.Class = sc
	return &rec, nil
}

// UpsertName 写入或覆盖名字记录
func (ni *NameIndex) UpsertName(rec *NameRecord) error {
	if err := netparams.CheckNameLength(rec.Name, rec.Value); err != nil {
		return err
	}

	// 空切片写成零长度 BLOB 而不是 NULL
	name, value := rec.Name, rec.Value
	if name == nil {
		name = []byte{}
	}
	if value == nil {
		value = []byte{}
	}

	ni.mtx.Lock()
	defer ni.mtx.Unlock()

	_, err := ni.db.Exec(nameQueries[nameUpsert], name, value, rec.OutPoint.Hash[:],
		rec.OutPoint.Index, rec.Height, rec.Address, rec.Class.String())
	return err
}

// GetName 读取名字记录，不存在时返回 ErrNameNotFound
func (ni *NameIndex) GetName(name []byte) (*NameRecord, error) {
	ni.mtx.Lock()
	defer ni.mtx.Unlock()

	rec, err := scanNameRecord(ni.db.QueryRow(nameQueries[nameGet], name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNameNotFound
	}
	return rec, err
}

// ListNames 按字节序返回从 start 开始的至多 count 个名字，count 不大于零时不限数量
func (ni *NameIndex) ListNames(start []byte, count int) ([]*NameRecord, error) {
	ni.mtx.Lock()
	defer ni.mtx.Unlock()

	if start == nil {
		start = []byte{}
	}
	if count <= 0 {
		count = -1
	}
	rows, err := ni.db.Query(nameQueries[nameList], start, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*NameRecord
	for rows.Next() {
		rec, err := scanNameRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteName 删除名字记录
func (ni *NameIndex) DeleteName(name []byte) error {
	ni.mtx.Lock()
	defer ni.mtx.Unlock()

	res, err := ni.db.Exec(nameQueries[nameDelete], name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNameNotFound
	}
	return nil
}

// ExpiredNames 返回在 height 处已经过期的名字
func (ni *NameIndex) ExpiredNames(height int32) ([][]byte, error) {
	ni.mtx.Lock()
	defer ni.mtx.Unlock()

	rows, err := ni.db.Query(nameQueries[nameExpired], ni.params.ExpirationHeight(height))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired [][]byte
	for rows.Next() {
		var name []byte
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		expired = append(expired, name)
	}
	return expired, rows.Err()
}

// Count 返回名字数量
func (ni *NameIndex) Count() (int, error) {
	ni.mtx.Lock()
	defer ni.mtx.Unlock()

	var n int
	err := ni.db.QueryRow(nameQueries[nameCount]).Scan(&n)
	return n, err
}

// ApplyTx 把交易中的 name_firstupdate 与 name_update 写入索引，返回更新的名字
func (ni *NameIndex) ApplyTx(tx *wire.MsgTx, height int32) ([][]byte, error) {
	txid := tx.TxHash()

	var updated [][]byte
	for _, out := range names.NameOutputs(tx) {
		ns := out.Script
		if !ns.IsAnyUpdate() {
			continue
		}

		rec := &NameRecord{
			Name:     ns.Name(),
			Value:    ns.Value(),
			OutPoint: wire.OutPoint{Hash: txid, Index: out.Index},
			Height:   height,
			Class:    txscript.GetScriptClass(ns.Address),
		}
		if dest, ok := txscript.ExtractDestination(ns.Address); ok {
			addr, err := txscript.EncodeDestination(dest, ni.params.Params)
			if err == nil {
				rec.Address = addr
			}
		}

		if err := ni.UpsertName(rec); err != nil {
			return updated, fmt.Errorf("name %q in %v: %w", ns.Name(), txid, err)
		}
		logrus.Debugf("[NameIndex] %s %q at height %d", ns.Op, ns.Name(), height)
		updated = append(updated, ns.Name())
	}
	return updated, nil
}
