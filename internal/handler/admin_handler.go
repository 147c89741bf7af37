package handler

import (
	"akx-core/internal/handler/request"
	"akx-core/internal/handler/response"
	"akx-core/internal/service"
	"akx-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	settlement *service.SettlementService
	recharge   *service.RechargeService
}

func NewAdminHandler(settlement *service.SettlementService, recharge *service.RechargeService) *AdminHandler {
	return &AdminHandler{settlement: settlement, recharge: recharge}
}

// ForceComplete 强制完成订单
// @Summary 强制完成订单
// @Description 运营人工确认后把任意非终态订单置为 success 并入账, 操作留痕
// @Tags Admin
// @Accept json
// @Produce json
// @Param order_no path string true "Order No"
// @Param request body request.ForceCompleteRequest true "Force Complete Request"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/orders/{order_no}/force-complete [post]
func (h *AdminHandler) ForceComplete(c *gin.Context) {
	orderNo := c.Param("order_no")

	var req request.ForceCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	// 操作员从网关注入的 header 取 (内部接口, 不对公网开放)
	operator := c.GetHeader("X-Operator")
	if operator == "" {
		operator = "unknown"
	}

	if err := h.settlement.ForceComplete(c.Request.Context(), orderNo, operator, req.Remark); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// EnsureRechargeAddress 获取/生成商户充值地址
// @Summary 获取商户充值地址
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/admin/merchants/recharge-address [post]
func (h *AdminHandler) EnsureRechargeAddress(c *gin.Context) {
	var req struct {
		MerchantID uint64 `json:"merchant_id" binding:"required"`
		Chain      string `json:"chain" binding:"required"`
		Token      string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	addr, err := h.recharge.EnsureAddress(c.Request.Context(), req.MerchantID, req.Chain, req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, addr)
}
