package request

import "github.com/shopspring/decimal"

// CreateDepositRequest 商户创建充值订单
// 签名串: merchant_no + out_trade_no + chain + token + amount + timestamp
type CreateDepositRequest struct {
	MerchantNo  string          `json:"merchant_no" binding:"required"`
	OutTradeNo  string          `json:"out_trade_no" binding:"required"`
	Chain       string          `json:"chain" binding:"required"`
	Token       string          `json:"token"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	CallbackURL string          `json:"callback_url"`
	Timestamp   int64           `json:"timestamp" binding:"required"` // 毫秒
	Sign        string          `json:"sign" binding:"required"`
}

func (r *CreateDepositRequest) SignMessage() string {
	return r.MerchantNo + r.OutTradeNo + r.Chain + r.Token + r.Amount.String() + formatTimestamp(r.Timestamp)
}

// CreateWithdrawRequest 商户创建提现订单
// 签名串: merchant_no + out_trade_no + chain + token + amount + to_address + timestamp
type CreateWithdrawRequest struct {
	MerchantNo  string          `json:"merchant_no" binding:"required"`
	OutTradeNo  string          `json:"out_trade_no" binding:"required"`
	Chain       string          `json:"chain" binding:"required"`
	Token       string          `json:"token"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	ToAddress   string          `json:"to_address" binding:"required"`
	CallbackURL string          `json:"callback_url"`
	Timestamp   int64           `json:"timestamp" binding:"required"`
	Sign        string          `json:"sign" binding:"required"`
}

func (r *CreateWithdrawRequest) SignMessage() string {
	return r.MerchantNo + r.OutTradeNo + r.Chain + r.Token + r.Amount.String() + r.ToAddress + formatTimestamp(r.Timestamp)
}

// QueryOrderRequest 商户查单, order_no 与 out_trade_no 二选一
// 签名串: merchant_no + order_no + out_trade_no + timestamp
type QueryOrderRequest struct {
	MerchantNo string `json:"merchant_no" form:"merchant_no" binding:"required"`
	OrderNo    string `json:"order_no" form:"order_no"`
	OutTradeNo string `json:"out_trade_no" form:"out_trade_no"`
	Timestamp  int64  `json:"timestamp" form:"timestamp" binding:"required"`
	Sign       string `json:"sign" form:"sign" binding:"required"`
}

func (r *QueryOrderRequest) SignMessage() string {
	return r.MerchantNo + r.OrderNo + r.OutTradeNo + formatTimestamp(r.Timestamp)
}
