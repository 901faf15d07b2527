package txscript

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScriptTokenizer 检查分词器对各种推送与截断脚本的行为。
func TestScriptTokenizer(t *testing.T) {
	t.Parallel()

	type token struct {
		op    byte
		data  []byte
		index int32
	}

	type tokenizerTest struct {
		name     string
		script   []byte
		expected []token
		finalIdx int32
		err      ErrorCode
	}

	tests := make([]tokenizerTest, 0, 160)
	for op := byte(OP_DATA_1); op <= OP_DATA_75; op++ {
		data := bytes.Repeat([]byte{0x01}, int(op))
		tests = append(tests, tokenizerTest{
			name:     fmt.Sprintf("OP_DATA_%d", op),
			script:   append([]byte{op}, data...),
			expected: []token{{op, data, 1 + int32(op)}},
			finalIdx: 1 + int32(op),
		}, tokenizerTest{
			name:   fmt.Sprintf("short OP_DATA_%d", op),
			script: append([]byte{op}, data[1:]...),
			err:    ErrMalformedPush,
		})
	}

	data76 := bytes.Repeat([]byte{0x01}, 76)
	tests = append(tests, []tokenizerTest{{
		name:     "OP_PUSHDATA1",
		script:   append([]byte{OP_PUSHDATA1, 76}, data76...),
		expected: []token{{OP_PUSHDATA1, data76, 78}},
		finalIdx: 78,
	}, {
		name:   "OP_PUSHDATA1 without length",
		script: []byte{OP_PUSHDATA1},
		err:    ErrMalformedPush,
	}, {
		name:   "OP_PUSHDATA1 short by one byte",
		script: append([]byte{OP_PUSHDATA1, 76}, data76[1:]...),
		err:    ErrMalformedPush,
	}, {
		name:     "OP_PUSHDATA2",
		script:   append([]byte{OP_PUSHDATA2, 76, 0}, data76...),
		expected: []token{{OP_PUSHDATA2, data76, 79}},
		finalIdx: 79,
	}, {
		name:   "OP_PUSHDATA2 with one length byte",
		script: []byte{OP_PUSHDATA2, 0x01},
		err:    ErrMalformedPush,
	}, {
		name:     "OP_PUSHDATA4",
		script:   append([]byte{OP_PUSHDATA4, 76, 0, 0, 0}, data76...),
		expected: []token{{OP_PUSHDATA4, data76, 81}},
		finalIdx: 81,
	}, {
		name:   "OP_PUSHDATA4 with length above int32",
		script: []byte{OP_PUSHDATA4, 0xff, 0xff, 0xff, 0xff},
		err:    ErrMalformedPush,
	}, {
		name:     "OP_PUSHDATA1 with zero length",
		script:   []byte{OP_PUSHDATA1, 0x00},
		expected: []token{{OP_PUSHDATA1, []byte{}, 2}},
		finalIdx: 2,
	}, {
		name:   "empty script",
		script: nil,
	}, {
		name:   "p2pkh",
		script: hexToBytes("76a914" + "0102030405060708090a0b0c0d0e0f1011121314" + "88ac"),
		expected: []token{
			{OP_DUP, nil, 1},
			{OP_HASH160, nil, 2},
			{OP_DATA_20, hexToBytes("0102030405060708090a0b0c0d0e0f1011121314"), 23},
			{OP_EQUALVERIFY, nil, 24},
			{OP_CHECKSIG, nil, 25},
		},
		finalIdx: 25,
	}, {
		name:     "valid opcode followed by truncated push",
		script:   []byte{OP_1, OP_DATA_2, 0x01},
		expected: []token{{OP_1, nil, 1}},
		finalIdx: 1,
		err:      ErrMalformedPush,
	}}...)

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			tokenizer := MakeScriptTokenizer(test.script)
			var i int
			for tokenizer.Next() {
				require.Less(t, i, len(test.expected), "more tokens than expected")
				want := test.expected[i]
				require.Equal(t, want.op, tokenizer.Opcode())
				require.Equal(t, want.data, tokenizer.Data())
				require.Equal(t, want.index, tokenizer.ByteIndex())
				i++
			}
			require.Equal(t, len(test.expected), i)
			require.True(t, tokenizer.Done())
			require.Equal(t, test.finalIdx, tokenizer.ByteIndex())
			requireErrorCode(t, tokenizer.Err(), test.err)
		})
	}
}

// TestScriptTokenizerErrorStops 确保出错后分词器不再前进。
func TestScriptTokenizerErrorStops(t *testing.T) {
	t.Parallel()

	script := []byte{OP_DATA_5, 0x01}
	tokenizer := MakeScriptTokenizer(script)
	require.False(t, tokenizer.Next())
	require.False(t, tokenizer.Next())
	require.Equal(t, int32(0), tokenizer.ByteIndex())
	require.Equal(t, script, tokenizer.Script())
	requireErrorCode(t, tokenizer.Err(), ErrMalformedPush)
}
