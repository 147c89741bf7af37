package request

import (
	"strconv"

	"github.com/shopspring/decimal"
)

func formatTimestamp(ts int64) string {
	return strconv.FormatInt(ts, 10)
}

// ForceCompleteRequest 运营强制完成订单
type ForceCompleteRequest struct {
	Remark string `json:"remark" binding:"required"`
}

// PushTransferRequest 上游节点服务推送的已归一化转账
// 金额为人类可读单位, token 为符号 (空表示原生币)
type PushTransferRequest struct {
	Chain  string          `json:"chain" binding:"required"`
	TxHash string          `json:"tx_hash" binding:"required"`
	From   string          `json:"from" binding:"required"`
	To     string          `json:"to" binding:"required"`
	Token  string          `json:"token"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Height uint64          `json:"height"`
}
