package namechain

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/qinglongcn/namechain/names"
	"github.com/qinglongcn/namechain/netparams"
	"github.com/qinglongcn/namechain/txscript"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.uber.org/fx"
)

// Node 提供了与名字链节点交互所需的各种函数
type Node struct {
	ctx      context.Context    // 全局上下文
	opt      *Options           // 选项配置
	params   *netparams.Params  // 网络参数
	coins    *CoinStore         // 未花费输出
	names    *NameIndex         // 名字索引
	files    *FileStore         // 数据目录文件
	pool     *MemPool           // 交易内存池
	namePool *names.NameMemPool // 内存池的名字部分

	app *fx.App
}

// Open 按选项打开一个节点
func Open(opt *Options) (*Node, error) {
	if opt.IsOpened {
		return nil, fmt.Errorf("'%s' 节点实例已打开", opt.InstanceId)
	}
	// 1. 检查并设置选项
	if err := opt.CheckAndSetOptions(); err != nil {
		return nil, err
	}
	// 2. 本地文件夹与日志
	if !opt.InMemory {
		if err := initDirectories(opt); err != nil {
			return nil, err
		}
		if err := SetLog(opt.InstanceId, filepath.Join(dataDir(opt), logsDir)); err != nil {
			return nil, err
		}
	}

	node := &Node{
		ctx: context.Background(),
		opt: opt,
	}

	// fx 配置项
	opts := []fx.Option{
		fx.NopLogger,
		node.globalInit(),
		fx.Provide(
			NewCoinStore,   // 币数据库
			NewNameIndex,   // 名字索引
			NewDataFiles,   // 数据目录文件
			NewNamePool,    // 名字内存池
			NewNodeMemPool, // 交易内存池
		),
		fx.Invoke(
			LoadMemPool, // 恢复保存的内存池
		),
		fx.Populate(
			&node.params,
			&node.coins,
			&node.names,
			&node.files,
			&node.pool,
			&node.namePool,
		),
	}
	node.app = fx.New(opts...)
	if err := node.app.Err(); err != nil {
		return nil, err
	}

	if err := node.app.Start(node.ctx); err != nil {
		return nil, err
	}

	opt.IsOpened = true // 节点实例已打开
	logrus.Infof("[Node] 实例 %s 已在 %s 网络启动", opt.InstanceId, node.params.Name)
	return node, nil
}

// 全局初始化
func (n *Node) globalInit() fx.Option {
	return fx.Provide(
		func() context.Context {
			return n.ctx
		},
		func() *Options {
			return n.opt
		},
		func() *netparams.Params {
			return n.opt.Params()
		},
	)
}

// Close 保存内存池并关闭所有数据库
func (n *Node) Close() error {
	if !n.opt.IsOpened {
		return nil
	}
	err := n.app.Stop(n.ctx)
	n.opt.IsOpened = false
	return err
}

// Params 返回节点所在网络的参数
func (n *Node) Params() *netparams.Params { return n.params }

// Coins 返回币数据库
func (n *Node) Coins() *CoinStore { return n.coins }

// Names 返回名字索引
func (n *Node) Names() *NameIndex { return n.names }

// MemPool 返回交易内存池
func (n *Node) MemPool() *MemPool { return n.pool }

// SubmitTx 把交易提交到内存池
func (n *Node) SubmitTx(tx *wire.MsgTx) (*TxDesc, error) {
	return n.pool.AddTx(tx)
}

// ConnectBlock 把高度为 height 的区块交易应用到币数据库与名字索引，
// 然后从内存池移除已打包、冲突与过期名字相关的交易。返回因冲突被移除的交易。
func (n *Node) ConnectBlock(txs []*wire.MsgTx, height int32) ([]chainhash.Hash, error) {
	for _, tx := range txs {
		if _, err := n.coins.ApplyTx(tx, height); err != nil {
			return nil, fmt.Errorf("应用交易 %v 失败: %w", tx.TxHash(), err)
		}
		if _, err := n.names.ApplyTx(tx, height); err != nil {
			return nil, err
		}
	}
	if err := n.coins.SetBestHeight(height); err != nil {
		return nil, err
	}

	removed := n.pool.ConnectBlock(txs, height)

	// 下一个区块中过期的名字不能再被更新
	expired, err := n.names.ExpiredNames(height + 1)
	if err != nil {
		return removed, err
	}
	removed = append(removed, n.pool.RemoveExpireConflicts(expired)...)
	return removed, nil
}

type NewCoinStoreInput struct {
	fx.In

	Opt *Options // 选项配置
}

type NewCoinStoreOutput struct {
	fx.Out

	Coins *CoinStore // 币数据库
}

// NewCoinStore 打开币数据库，节点停止时关闭
func NewCoinStore(lc fx.Lifecycle, input NewCoinStoreInput) (out NewCoinStoreOutput, err error) {
	coins, err := OpenCoinStore(filepath.Join(dataDir(input.Opt), coinsDir), input.Opt.InMemory)
	if err != nil {
		logrus.Errorf("[NewCoinStore] 启动失败:\t%v", err)
		return out, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return coins.Close()
		},
	})
	out.Coins = coins
	return out, nil
}

type NewNameIndexInput struct {
	fx.In

	Opt    *Options          // 选项配置
	Params *netparams.Params // 网络参数
}

type NewNameIndexOutput struct {
	fx.Out

	Names *NameIndex // 名字索引
}

// NewNameIndex 打开名字索引，节点停止时关闭
func NewNameIndex(lc fx.Lifecycle, input NewNameIndexInput) (out NewNameIndexOutput, err error) {
	path := ":memory:"
	if !input.Opt.InMemory {
		path = filepath.Join(dataDir(input.Opt), namesDB)
	}
	index, err := OpenNameIndex(path, input.Params)
	if err != nil {
		logrus.Errorf("[NewNameIndex] 启动失败:\t%v", err)
		return out, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return index.Close()
		},
	})
	out.Names = index
	return out, nil
}

type NewDataFilesInput struct {
	fx.In

	Opt *Options // 选项配置
}

type NewDataFilesOutput struct {
	fx.Out

	Files *FileStore // 数据目录文件
}

// NewDataFiles 创建数据目录的文件存储，内存模式下使用内存文件系统
func NewDataFiles(input NewDataFilesInput) (out NewDataFilesOutput, err error) {
	var fs afero.Fs
	if input.Opt.InMemory {
		fs = afero.NewMemMapFs()
	}
	out.Files, err = NewFileStore(fs, dataDir(input.Opt))
	return out, err
}

type NewNamePoolInput struct {
	fx.In

	Opt *Options // 选项配置
}

type NewNamePoolOutput struct {
	fx.Out

	NamePool *names.NameMemPool // 名字内存池
}

// NewNamePool 创建内存池的名字部分
func NewNamePool(input NewNamePoolInput) NewNamePoolOutput {
	return NewNamePoolOutput{NamePool: names.NewNameMemPool(input.Opt.NameChainLimit)}
}

type NewNodeMemPoolInput struct {
	fx.In

	Opt      *Options           // 选项配置
	Params   *netparams.Params  // 网络参数
	Coins    *CoinStore         // 币数据库
	Names    *NameIndex         // 名字索引
	NamePool *names.NameMemPool // 名字内存池
	Files    *FileStore         // 数据目录文件
}

type NewNodeMemPoolOutput struct {
	fx.Out

	Pool *MemPool // 交易内存池
}

// NewNodeMemPool 按选项创建交易内存池，节点停止时先保存再关闭数据库
func NewNodeMemPool(lc fx.Lifecycle, input NewNodeMemPoolInput) (out NewNodeMemPoolOutput, err error) {
	height, err := input.Coins.BestHeight()
	if err != nil {
		return out, err
	}

	policy := DefaultPolicy()
	policy.Standard = input.Opt.StandardPolicy()
	policy.PermitBareMultisig = input.Opt.PermitBareMultisig

	pool := NewMemPool(&MemPoolConfig{
		Policy:            policy,
		Params:            input.Params,
		Coins:             input.Coins,
		Names:             input.Names,
		NamePool:          input.NamePool,
		Verifier:          txscript.NewCachingEngineVerifier(input.Opt.RejectedCacheSize * 10),
		RejectedCacheSize: input.Opt.RejectedCacheSize,
		BestHeight:        height,
	})

	// 钩子按注册的逆序执行停止，保存内存池早于关闭数据库
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if err := pool.Save(input.Files); err != nil {
				logrus.Errorf("[MemPool] 保存失败:\t%v", err)
				return err
			}
			logrus.Infof("[MemPool] 已保存 %d 笔交易", pool.Count())
			return nil
		},
	})
	out.Pool = pool
	return out, nil
}

type LoadMemPoolInput struct {
	fx.In

	Pool  *MemPool   // 交易内存池
	Files *FileStore // 数据目录文件
}

// LoadMemPool 恢复上次关闭时保存的内存池
func LoadMemPool(input LoadMemPoolInput) error {
	n, err := input.Pool.Load(input.Files)
	if err != nil {
		return fmt.Errorf("恢复内存池失败: %w", err)
	}
	if n > 0 {
		logrus.Infof("[MemPool] 恢复了 %d 笔交易", n)
	}
	return nil
}
