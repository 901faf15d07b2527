package txscript

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// TestDescriptorChecksum 检查描述符校验和。
func TestDescriptorChecksum(t *testing.T) {
	t.Parallel()

	const key = "03a34b99f22c790c4e36b2b3c2c35a36db06226e41c692fc82b8b56ac1c540c5bd"
	tests := []struct {
		desc     string
		checksum string
	}{
		{"raw(deadbeef)", "89f8spxm"},
		{"pk(" + key + ")", "9pcxlpvx"},
		{"multi(1," + key + "," + key + ")", "q9cyzdrh"},
		{"addr(mkmZxiEcEd8ZqjQWVZuC6so5dFMKEFpN2j)", "02wpgw69"},
		{"sh(wpkh(" + key + "))", "0aua3a8r"},
		{"raw(\xc3\xa9)", ""},
	}

	for _, test := range tests {
		require.Equal(t, test.checksum, DescriptorChecksum(test.desc), test.desc)
	}
}

// TestInferDescriptor 检查从输出脚本推导的描述符。
func TestInferDescriptor(t *testing.T) {
	t.Parallel()

	params := &chaincfg.MainNetParams
	keys := testPubKeys(t, 4)
	hexKey := func(i int) string { return hex.EncodeToString(keys[i]) }
	uncompressed := uncompressedKey(t, keys[0])

	addrOf := func(script []byte) string {
		dest, ok := ExtractDestination(script)
		require.True(t, ok)
		addr, err := EncodeDestination(dest, params)
		require.NoError(t, err)
		return addr
	}

	multi := multiSigScript(OP_2, OP_3, keys[0], keys[1], keys[2])
	wshMulti := multiSigScript(OP_1, OP_2, keys[0], keys[1])
	wshPubKey := p2pkScript(keys[2])
	wshWitness := p2wpkhScript(keys[0])

	provider := NewFlatSigningProvider()
	provider.AddPubKey(keys[0])
	provider.AddPubKey(keys[1])
	for _, script := range [][]byte{
		p2wpkhScript(keys[1]),
		wshMulti,
		wshPubKey,
		wshWitness,
		p2wshScript(wshPubKey),
	} {
		provider.AddScript(script)
	}

	nameScript, err := BuildNameUpdate(p2pkhScript(btcutil.Hash160(keys[0])),
		[]byte("d/example"), []byte("value"))
	require.NoError(t, err)

	witnessV1 := append([]byte{OP_1, OP_DATA_32}, make([]byte, 32)...)
	unknownP2SH := p2shScript(p2pkScript(keys[3]))
	unknownP2WSH := p2wshScript(p2pkScript(keys[3]))

	tests := []struct {
		name     string
		provider SigningProvider
		script   []byte
		typ      DescriptorType
		body     string
		solvable bool
	}{
		{
			name:     "p2pk",
			script:   p2pkScript(keys[0]),
			typ:      DescriptorPK,
			body:     "pk(" + hexKey(0) + ")",
			solvable: true,
		},
		{
			name:     "uncompressed p2pk",
			script:   p2pkScript(uncompressed),
			typ:      DescriptorPK,
			body:     "pk(" + hex.EncodeToString(uncompressed) + ")",
			solvable: true,
		},
		{
			name:   "p2pkh without key",
			script: p2pkhScript(btcutil.Hash160(keys[0])),
			typ:    DescriptorAddr,
			body:   "addr(" + addrOf(p2pkhScript(btcutil.Hash160(keys[0]))) + ")",
		},
		{
			name:     "p2pkh",
			provider: provider,
			script:   p2pkhScript(btcutil.Hash160(keys[0])),
			typ:      DescriptorPKH,
			body:     "pkh(" + hexKey(0) + ")",
			solvable: true,
		},
		{
			name:     "p2wpkh",
			provider: provider,
			script:   p2wpkhScript(keys[1]),
			typ:      DescriptorWPKH,
			body:     "wpkh(" + hexKey(1) + ")",
			solvable: true,
		},
		{
			name:     "multisig",
			script:   multi,
			typ:      DescriptorMulti,
			body:     "multi(2," + hexKey(0) + "," + hexKey(1) + "," + hexKey(2) + ")",
			solvable: true,
		},
		{
			name:     "p2sh of p2wpkh",
			provider: provider,
			script:   p2shScript(p2wpkhScript(keys[1])),
			typ:      DescriptorSH,
			body:     "sh(wpkh(" + hexKey(1) + "))",
			solvable: true,
		},
		{
			name:     "p2wsh of multisig",
			provider: provider,
			script:   p2wshScript(wshMulti),
			typ:      DescriptorWSH,
			body:     "wsh(multi(1," + hexKey(0) + "," + hexKey(1) + "))",
			solvable: true,
		},
		{
			name:     "p2sh of p2wsh of p2pk",
			provider: provider,
			script:   p2shScript(p2wshScript(wshPubKey)),
			typ:      DescriptorSH,
			body:     "sh(wsh(pk(" + hexKey(2) + ")))",
			solvable: true,
		},
		{
			name:     "p2wpkh inside p2wsh",
			provider: provider,
			script:   p2wshScript(wshWitness),
			typ:      DescriptorWSH,
			body:     "wsh(addr(" + addrOf(wshWitness) + "))",
		},
		{
			name:     "unknown p2sh",
			provider: provider,
			script:   unknownP2SH,
			typ:      DescriptorAddr,
			body:     "addr(" + addrOf(unknownP2SH) + ")",
		},
		{
			name:     "unknown p2wsh",
			provider: provider,
			script:   unknownP2WSH,
			typ:      DescriptorAddr,
			body:     "addr(" + addrOf(unknownP2WSH) + ")",
		},
		{
			name:   "witness v1",
			script: witnessV1,
			typ:    DescriptorAddr,
			body:   "addr(" + addrOf(witnessV1) + ")",
		},
		{
			name:   "null data",
			script: []byte{OP_RETURN, OP_DATA_1, 0x01},
			typ:    DescriptorRaw,
			body:   "raw(6a0101)",
		},
		{
			name:   "nonstandard",
			script: []byte{OP_TRUE},
			typ:    DescriptorRaw,
			body:   "raw(51)",
		},
		{
			name:     "name script",
			provider: provider,
			script:   nameScript,
			typ:      DescriptorRaw,
			body:     "raw(" + hex.EncodeToString(nameScript) + ")",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			desc := InferDescriptor(test.provider, test.script, params)
			require.NotNil(t, desc)
			require.Equal(t, test.typ, desc.Type)
			require.Equal(t, test.body+"#"+DescriptorChecksum(test.body), desc.String())
			require.Equal(t, test.solvable, desc.IsSolvable())
			require.Equal(t, test.script, desc.Script())
		})
	}
}

// TestDescriptorTypeNames 检查描述符函数名。
func TestDescriptorTypeNames(t *testing.T) {
	t.Parallel()

	require.Equal(t, "raw", DescriptorRaw.String())
	require.Equal(t, "wsh", DescriptorWSH.String())

	desc := &Descriptor{Type: DescriptorRaw, RawScript: hexToBytes("deadbeef")}
	require.Equal(t, "raw(deadbeef)#89f8spxm", desc.String())
}
