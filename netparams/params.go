// Package netparams 定义名字链各网络的地址前缀与名字共识常量。
//
// 每个网络在 btcd 的 chaincfg 参数之上覆盖地址编码字段，
// 并在包初始化时注册到 chaincfg，使 btcutil 能够识别这些前缀。
package netparams

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// 名字共识常量。
const (
	MaxNameLength       = 255 // 名字的最大字节数
	MaxValueLength      = 520 // 名字值的最大字节数
	MinFirstUpdateDepth = 12  // name_new 与 name_firstupdate 之间的最小确认深度
)

// 网络魔数（小端序）。
const (
	MainNet       wire.BitcoinNet = 0xfeb4bef9
	TestNet3      wire.BitcoinNet = 0xfeb5bffa
	RegressionNet wire.BitcoinNet = 0xdab5bffa
)

// Params 在 chaincfg.Params 的基础上附加名字相关的网络参数。
type Params struct {
	*chaincfg.Params

	// NameExpirationDepth 名字在最后一次更新后经过多少个区块过期
	NameExpirationDepth int32
}

// NameExpired 返回在 nameHeight 处最后更新的名字在 height 处是否已过期。
func (p *Params) NameExpired(nameHeight, height int32) bool {
	return nameHeight+p.NameExpirationDepth <= height
}

// ExpirationHeight 返回在 height 处恰好过期的名字的最后更新高度。
func (p *Params) ExpirationHeight(height int32) int32 {
	return height - p.NameExpirationDepth
}

// CheckNameLength 检查名字与值的长度是否在共识范围内。
func CheckNameLength(name, value []byte) error {
	if len(name) > MaxNameLength {
		return fmt.Errorf("name length %d exceeds %d", len(name), MaxNameLength)
	}
	if len(value) > MaxValueLength {
		return fmt.Errorf("value length %d exceeds %d", len(value), MaxValueLength)
	}
	return nil
}

// derive 复制 base 并写入名字链的地址编码。
func derive(base *chaincfg.Params, name string, net wire.BitcoinNet, port, hrp string,
	pkh, sh, wif byte, coinType uint32) *chaincfg.Params {

	p := *base
	p.Name = name
	p.Net = net
	p.DefaultPort = port
	p.DNSSeeds = nil
	p.Checkpoints = nil
	p.Bech32HRPSegwit = hrp
	p.PubKeyHashAddrID = pkh
	p.ScriptHashAddrID = sh
	p.PrivateKeyID = wif
	p.HDCoinType = coinType
	return &p
}

// MainNetParams 主网参数。
var MainNetParams = Params{
	Params: derive(&chaincfg.MainNetParams, "mainnet", MainNet, "8334", "nc",
		0x34, 0x0d, 0xb4, 7),
	NameExpirationDepth: 36000,
}

// TestNet3Params 测试网参数。
var TestNet3Params = Params{
	Params: derive(&chaincfg.TestNet3Params, "testnet3", TestNet3, "18334", "tn",
		0x6f, 0xc4, 0xef, 1),
	NameExpirationDepth: 36000,
}

// RegressionNetParams 回归测试网参数。过期深度很短，便于测试名字过期。
var RegressionNetParams = Params{
	Params: derive(&chaincfg.RegressionNetParams, "regtest", RegressionNet, "18445", "ncrt",
		0x6f, 0xc4, 0xef, 1),
	NameExpirationDepth: 30,
}

// ErrUnknownNetwork 网络名称无法识别。
var ErrUnknownNetwork = errors.New("unknown network")

// ParamsForNetwork 按名称返回网络参数，名称不区分大小写。
func ParamsForNetwork(name string) (*Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mainnet", "main", "":
		return &MainNetParams, nil
	case "testnet3", "testnet", "test":
		return &TestNet3Params, nil
	case "regtest", "regression":
		return &RegressionNetParams, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
}

func init() {
	// 回归测试网与比特币回归测试网使用相同的魔数，重复注册可以忽略。
	for _, p := range []*Params{&MainNetParams, &TestNet3Params, &RegressionNetParams} {
		if err := chaincfg.Register(p.Params); err != nil && !errors.Is(err, chaincfg.ErrDuplicateNet) {
			panic(fmt.Sprintf("failed to register network %s: %v", p.Name, err))
		}
	}
}
