package txscript

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestErrorCodeStringer 确保每个错误码都有名称，且未知错误码不会 panic。
func TestErrorCodeStringer(t *testing.T) {
	t.Parallel()

	for code := ErrOK; code < numErrorCodes; code++ {
		name, ok := errorCodeStrings[code]
		require.Truef(t, ok, "error code %d has no name", int(code))
		require.Equal(t, name, code.String())
	}
	require.Len(t, errorCodeStrings, int(numErrorCodes))
	require.Equal(t, "Unknown ErrorCode (9999)", ErrorCode(9999).String())
}

// TestScriptErrorString 检查执行引擎错误的描述文本。
func TestScriptErrorString(t *testing.T) {
	t.Parallel()

	for code := ErrOK; code < numScriptErrors; code++ {
		require.NotEmpty(t, ScriptErrorString(code), code.String())
	}

	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrOK, "No error"},
		{ErrEvalFalse, "Script evaluated without error but finished with a false/empty top stack element"},
		{ErrSigDER, "Non-canonical DER signature"},
		{ErrWitnessPubKeyType, "Using non-compressed keys in segwit"},
		{ErrMalformedPush, "unknown error"},
		{ErrorCode(-1), "unknown error"},
		{numErrorCodes + 5, "unknown error"},
	}
	for _, test := range tests {
		require.Equal(t, test.want, ScriptErrorString(test.code))
	}
}

// TestErrorMatching 检查 Error 与 errors.Is、errors.As 以及 IsErrorCode 的配合。
func TestErrorMatching(t *testing.T) {
	t.Parallel()

	err := scriptError(ErrTooMuchNullData, "too much data")
	require.Equal(t, "too much data", err.Error())

	wrapped := fmt.Errorf("checking output: %w", err)
	require.True(t, errors.Is(wrapped, ErrTooMuchNullData))
	require.False(t, errors.Is(wrapped, ErrMalformedPush))
	require.True(t, IsErrorCode(wrapped, ErrTooMuchNullData))
	require.False(t, IsErrorCode(errors.New("plain"), ErrTooMuchNullData))

	var serr Error
	require.True(t, errors.As(wrapped, &serr))
	require.Equal(t, ErrTooMuchNullData, serr.ErrorCode)
}
