package namechain

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qinglongcn/namechain/names"
	"github.com/qinglongcn/namechain/netparams"
	"github.com/qinglongcn/namechain/txscript"
)

// Options 是用于打开节点的参数
type Options struct {
	IsOpened bool `optional:"false"  default:"false"` // 节点实例是否已打开
	InMemory bool `optional:"false"  default:"false"` // 数据库是否只保存在内存中，用于测试

	InstanceId string // 节点的实例标识符
	Network    string // 网络名称：mainnet、testnet3 或 regtest
	RootPath   string // 数据根目录

	DataCarrier         bool // 是否转发空数据（OP_RETURN）输出
	MaxDataCarrierBytes int  // 空数据输出脚本的最大字节数
	PermitBareMultisig  bool // 是否转发裸多签输出

	NameChainLimit    int  // 内存池中同一名字待处理操作链的最大长度
	RejectedCacheSize uint // 最近被拒绝交易缓存的容量

	params *netparams.Params // 由 Network 解析得到的网络参数
}

// DefaultOptions 返回默认选项
func DefaultOptions() *Options {
	return &Options{
		Network:             "mainnet",
		RootPath:            defaultRootPath(),
		DataCarrier:         true,
		MaxDataCarrierBytes: txscript.MaxDataCarrierBytes,
		PermitBareMultisig:  true,
		NameChainLimit:      names.DefaultNameChainLimit,
		RejectedCacheSize:   1000,
	}
}

// defaultRootPath 返回默认的数据根目录
func defaultRootPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".namechain"
	}
	return filepath.Join(home, ".namechain")
}

// BuildInstanceId 设置实例ID
func (opt *Options) BuildInstanceId(id string) *Options {
	opt.InstanceId = id
	return opt
}

// BuildNetwork 设置网络名称
func (opt *Options) BuildNetwork(network string) *Options {
	opt.Network = network
	return opt
}

// BuildRootPath 设置数据根目录
func (opt *Options) BuildRootPath(path string) *Options {
	opt.RootPath = path
	return opt
}

// BuildDataCarrier 设置是否转发空数据输出
func (opt *Options) BuildDataCarrier(enabled bool) *Options {
	opt.DataCarrier = enabled
	return opt
}

// BuildMaxDataCarrierBytes 设置空数据输出脚本的最大字节数
func (opt *Options) BuildMaxDataCarrierBytes(n int) *Options {
	opt.MaxDataCarrierBytes = n
	return opt
}

// BuildPermitBareMultisig 设置是否转发裸多签输出
func (opt *Options) BuildPermitBareMultisig(permit bool) *Options {
	opt.PermitBareMultisig = permit
	return opt
}

// BuildNameChainLimit 设置名字操作链的最大长度
func (opt *Options) BuildNameChainLimit(limit int) *Options {
	opt.NameChainLimit = limit
	return opt
}

// BuildRejectedCacheSize 设置拒绝缓存的容量
func (opt *Options) BuildRejectedCacheSize(size uint) *Options {
	opt.RejectedCacheSize = size
	return opt
}

// BuildInMemory 设置数据库只保存在内存中
func (opt *Options) BuildInMemory(inMemory bool) *Options {
	opt.InMemory = inMemory
	return opt
}

// Params 返回解析后的网络参数，CheckAndSetOptions 之前为空
func (opt *Options) Params() *netparams.Params {
	return opt.params
}

// StandardPolicy 返回由选项决定的输出标准性策略
func (opt *Options) StandardPolicy() *txscript.StandardPolicy {
	policy := txscript.DefaultStandardPolicy()
	policy.AcceptDataCarrier = opt.DataCarrier
	policy.MaxDataCarrierBytes = opt.MaxDataCarrierBytes
	return policy
}

// CheckAndSetOptions 检查并设置选项
func (opt *Options) CheckAndSetOptions() error {
	params, err := netparams.ParamsForNetwork(opt.Network)
	if err != nil {
		return err
	}
	opt.params = params

	if opt.InstanceId == "" {
		id, err := generateRandomString(8)
		if err != nil {
			return fmt.Errorf("生成实例ID失败: %w", err)
		}
		opt.InstanceId = id
	}

	if opt.RootPath == "" {
		opt.RootPath = defaultRootPath()
	}
	if !filepath.IsAbs(opt.RootPath) {
		abs, err := filepath.Abs(opt.RootPath)
		if err != nil {
			return fmt.Errorf("解析数据根目录失败: %w", err)
		}
		opt.RootPath = abs
	}

	if opt.MaxDataCarrierBytes < 0 {
		return fmt.Errorf("空数据输出上限不能为负数: %d", opt.MaxDataCarrierBytes)
	}
	if opt.NameChainLimit <= 0 {
		opt.NameChainLimit = names.DefaultNameChainLimit
	}
	if opt.RejectedCacheSize == 0 {
		opt.RejectedCacheSize = 1000
	}
	return nil
}
