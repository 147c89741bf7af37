package handler

import (
	"akx-core/internal/chain"
	"akx-core/internal/handler/request"
	"akx-core/internal/handler/response"
	"akx-core/internal/service"
	"akx-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

// ProviderHandler 接收上游节点服务推送的转账事件
// 与自建扫块循环互补: 两边都以 tx_hash 幂等, 重复推送无副作用
type ProviderHandler struct {
	settlement *service.SettlementService
	recharge   *service.RechargeService
}

func NewProviderHandler(settlement *service.SettlementService, recharge *service.RechargeService) *ProviderHandler {
	return &ProviderHandler{settlement: settlement, recharge: recharge}
}

// PushTransfer 推送一笔转账
// @Summary 推送转账事件
// @Tags Provider
// @Accept json
// @Produce json
// @Param request body request.PushTransferRequest true "Transfer Event"
// @Success 200 {object} response.Response
// @Router /api/v1/provider/transfers [post]
func (h *ProviderHandler) PushTransfer(c *gin.Context) {
	var req request.PushTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	ev := chain.TransferEvent{
		TxHash: req.TxHash,
		From:   req.From,
		To:     req.To,
		Token:  req.Token,
		Amount: req.Amount,
		Height: req.Height,
	}
	if err := h.settlement.HandleTransfer(c.Request.Context(), req.Chain, ev); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.recharge.HandleTransfer(c.Request.Context(), req.Chain, ev); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
