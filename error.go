package namechain

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// TxRuleError 交易违反了内存池规则，RejectCode 给出拒绝原因
type TxRuleError struct {
	RejectCode  wire.RejectCode
	Description string
}

// Error 实现 error 接口
func (e TxRuleError) Error() string {
	return e.Description
}

// txRuleError 创建 TxRuleError
func txRuleError(c wire.RejectCode, format string, args ...interface{}) TxRuleError {
	return TxRuleError{RejectCode: c, Description: fmt.Sprintf(format, args...)}
}

// RejectCodeOf 返回错误携带的拒绝码，不是 TxRuleError 时返回 false
func RejectCodeOf(err error) (wire.RejectCode, bool) {
	var rerr TxRuleError
	if errors.As(err, &rerr) {
		return rerr.RejectCode, true
	}
	return 0, false
}
