package handler

import (
	"time"

	"akx-core/internal/handler/request"
	"akx-core/internal/handler/response"
	"akx-core/internal/model"
	"akx-core/internal/service"
	"akx-core/pkg/config"
	"akx-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	payments *service.PaymentService
}

func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreateDeposit 创建充值订单
// @Summary 创建充值订单
// @Description 商户签名请求, 返回收款地址与消歧后的应付金额
// @Tags Payment
// @Accept json
// @Produce json
// @Param request body request.CreateDepositRequest true "Deposit Request"
// @Success 200 {object} response.Response
// @Router /api/v1/orders/deposit [post]
func (h *PaymentHandler) CreateDeposit(c *gin.Context) {
	// 1. 绑定参数
	var req request.CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	// 2. 验签 (充值用 deposit_key)
	merchant, err := h.payments.Authenticate(c.Request.Context(), req.MerchantNo, req.SignMessage(), req.Sign, req.Timestamp, model.OrderTypeDeposit)
	if err != nil {
		response.Error(c, err)
		return
	}

	// 3. 建单
	expireIn := time.Duration(config.Global.Order.ExpireMinutes) * time.Minute
	order, err := h.payments.CreateDepositOrder(c.Request.Context(), merchant, service.CreateDepositInput{
		OutTradeNo:  req.OutTradeNo,
		Chain:       req.Chain,
		Token:       req.Token,
		Amount:      req.Amount,
		CallbackURL: req.CallbackURL,
		ExpireIn:    expireIn,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_no":       order.OrderNo,
		"out_trade_no":   order.OutTradeNo,
		"wallet_address": order.WalletAddress,
		"amount":         order.Amount.String(), // 实际应付金额 (带消歧尾数)
		"fee":            order.Fee.String(),
		"expire_time":    order.ExpireTime,
	})
}

// CreateWithdraw 创建提现订单
// @Summary 创建提现订单
// @Description 商户签名请求, 余额立即扣减, 异步出款
// @Tags Payment
// @Accept json
// @Produce json
// @Param request body request.CreateWithdrawRequest true "Withdraw Request"
// @Success 200 {object} response.Response
// @Router /api/v1/orders/withdraw [post]
func (h *PaymentHandler) CreateWithdraw(c *gin.Context) {
	var req request.CreateWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	// 提现用 withdraw_key 验签
	merchant, err := h.payments.Authenticate(c.Request.Context(), req.MerchantNo, req.SignMessage(), req.Sign, req.Timestamp, model.OrderTypeWithdraw)
	if err != nil {
		response.Error(c, err)
		return
	}

	order, err := h.payments.CreateWithdrawOrder(c.Request.Context(), merchant, service.CreateWithdrawInput{
		OutTradeNo:  req.OutTradeNo,
		Chain:       req.Chain,
		Token:       req.Token,
		Amount:      req.Amount,
		ToAddress:   req.ToAddress,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_no":     order.OrderNo,
		"out_trade_no": order.OutTradeNo,
		"amount":       order.Amount.String(),
		"fee":          order.Fee.String(),
		"status":       order.Status,
	})
}

// QueryOrder 查询订单
// @Summary 查询订单
// @Description order_no 与 out_trade_no 二选一, order_no 优先
// @Tags Payment
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/orders/query [post]
func (h *PaymentHandler) QueryOrder(c *gin.Context) {
	var req request.QueryOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}
	if req.OrderNo == "" && req.OutTradeNo == "" {
		response.Error(c, errno.ErrBind)
		return
	}

	// 查单统一用 deposit_key
	merchant, err := h.payments.Authenticate(c.Request.Context(), req.MerchantNo, req.SignMessage(), req.Sign, req.Timestamp, model.OrderTypeDeposit)
	if err != nil {
		response.Error(c, err)
		return
	}

	var order *model.Order
	if req.OrderNo != "" {
		order, err = h.payments.GetOrderByNo(c.Request.Context(), merchant.ID, req.OrderNo)
	} else {
		order, err = h.payments.GetOrderByOutTradeNo(c.Request.Context(), merchant.ID, req.OutTradeNo)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, order)
}
