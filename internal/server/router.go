package server

import (
	"akx-core/internal/handler"
	"akx-core/internal/handler/response"
	"akx-core/pkg/monitor"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(payments *handler.PaymentHandler, admin *handler.AdminHandler, provider *handler.ProviderHandler) *gin.Engine {
	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})

		orders := api.Group("/orders")
		{
			orders.POST("/deposit", payments.CreateDeposit)
			orders.POST("/withdraw", payments.CreateWithdraw)
			orders.POST("/query", payments.QueryOrder)
		}

		// 内部接口: 网关层负责鉴权, 不对公网暴露
		adminGroup := api.Group("/admin")
		{
			adminGroup.POST("/orders/:order_no/force-complete", admin.ForceComplete)
			adminGroup.POST("/merchants/recharge-address", admin.EnsureRechargeAddress)
		}

		providerGroup := api.Group("/provider")
		{
			providerGroup.POST("/transfers", provider.PushTransfer)
		}
	}

	return r
}
