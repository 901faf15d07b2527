package namechain

import (
	"path/filepath"
	"testing"

	"github.com/qinglongcn/namechain/names"
	"github.com/qinglongcn/namechain/netparams"
	"github.com/qinglongcn/namechain/txscript"
	"github.com/stretchr/testify/require"
)

// TestCheckAndSetOptions 测试选项的检查与默认值。
func TestCheckAndSetOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opt     *Options
		params  *netparams.Params
		wantErr bool
	}{
		{name: "default", opt: DefaultOptions(), params: &netparams.MainNetParams},
		{name: "testnet", opt: DefaultOptions().BuildNetwork("testnet"), params: &netparams.TestNet3Params},
		{name: "regtest", opt: DefaultOptions().BuildNetwork("RegTest"), params: &netparams.RegressionNetParams},
		{name: "unknown network", opt: DefaultOptions().BuildNetwork("simnet"), wantErr: true},
		{name: "negative data carrier", opt: DefaultOptions().BuildMaxDataCarrierBytes(-1), wantErr: true},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := test.opt.CheckAndSetOptions()
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Same(t, test.params, test.opt.Params())
			require.Len(t, test.opt.InstanceId, 8)
			require.True(t, filepath.IsAbs(test.opt.RootPath))
		})
	}
}

// TestOptionsBuilders 测试选项设置方法与派生的标准性策略。
func TestOptionsBuilders(t *testing.T) {
	t.Parallel()

	opt := DefaultOptions().
		BuildInstanceId("node-1").
		BuildRootPath("relative/dir").
		BuildDataCarrier(false).
		BuildMaxDataCarrierBytes(40).
		BuildPermitBareMultisig(false).
		BuildNameChainLimit(0).
		BuildRejectedCacheSize(0).
		BuildInMemory(true)
	require.NoError(t, opt.CheckAndSetOptions())

	require.Equal(t, "node-1", opt.InstanceId)
	require.True(t, filepath.IsAbs(opt.RootPath))
	require.Equal(t, "dir", filepath.Base(opt.RootPath))
	require.False(t, opt.PermitBareMultisig)
	require.True(t, opt.InMemory)
	require.Equal(t, names.DefaultNameChainLimit, opt.NameChainLimit)
	require.EqualValues(t, 1000, opt.RejectedCacheSize)

	policy := opt.StandardPolicy()
	require.False(t, policy.AcceptDataCarrier)
	require.Equal(t, 40, policy.MaxDataCarrierBytes)
	require.Equal(t, txscript.MaxStandardMultiSigKeys, policy.MaxStandardMultiSigKeys)
}
