package main

import (
	"context"
	"fmt"

	"akx-core/internal/chain"
	"akx-core/internal/handler"
	"akx-core/internal/model"
	"akx-core/internal/server"
	"akx-core/internal/service"
	"akx-core/pkg/config"
	"akx-core/pkg/crypto_util"
	"akx-core/pkg/database"
	"akx-core/pkg/logger"
	"akx-core/pkg/monitor"
	"akx-core/pkg/utils/lock"

	"go.uber.org/zap"
)

// @title AKX Core API
// @version 1.0
// @description Crypto Payment Settlement API

// @host localhost:8080
// @BasePath /api/v1
func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	// 2. 连接数据库
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3. 连接 Redis
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 4. 执行数据库迁移 (Auto Migrate)
	if config.Global.App.Env == "development" {
		logger.Info("开发环境: 尝试自动迁移 Schema (GORM AutoMigrate)...")
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
		logger.Info("数据库自动迁移完成 (Dev Mode)")
	} else {
		logger.Info("生产环境: 跳过 AutoMigrate，请使用 migrate 工具管理 Schema")
	}

	// 5. 初始化监控指标 (HTTP + 业务)
	monitor.Init()

	// 6. 私钥加密器 (AES-256-GCM)
	cipher, err := crypto_util.NewAESCipher(config.Global.Security.AesKey)
	if err != nil {
		logger.Fatal("AES 密钥无效", zap.Error(err))
	}

	// 7. 注册链扫描器
	registry := chain.NewRegistry()
	if cfg, ok := config.Chain(chain.CodeTron); ok && cfg.RpcUrl != "" {
		registry.Register(chain.NewTronScanner(cfg, chainTokens(cfg)))
	}
	if cfg, ok := config.Chain(chain.CodeEthereum); ok && cfg.RpcUrl != "" {
		eth, err := chain.NewEthereumScanner(cfg, chainTokens(cfg))
		if err != nil {
			logger.Error("以太坊扫描器初始化失败", zap.Error(err))
		} else {
			registry.Register(eth)
		}
	}
	if cfg, ok := config.Chain(chain.CodeSolana); ok && cfg.RpcUrl != "" {
		registry.Register(chain.NewSolanaScanner(cfg, chainTokens(cfg)))
	}

	// 8. 组装服务
	locker := lock.NewRedisLock(rdb)
	ledger := service.NewLedgerService(db)
	channels := service.NewChannelService(db)
	amounts := service.NewAmountDisambiguator(db)
	webhooks := service.NewWebhookService(db)
	settlement := service.NewSettlementService(db, registry, ledger, channels, webhooks, cipher)
	payments := service.NewPaymentService(db, ledger, channels, amounts, registry, settlement)
	recharge := service.NewRechargeService(db, registry, ledger, cipher)
	collect := service.NewCollectService(db, registry, locker, cipher)
	sweeper := service.NewSweeperService(db, registry, locker, cipher)

	// 9. 启动后台工作
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	scanners := service.NewScannerService(db, registry, settlement, recharge)
	scanners.Run(workerCtx)

	crons := service.NewCronService(locker, registry, settlement, webhooks, collect, sweeper)
	if err := crons.Start(); err != nil {
		logger.Fatal("定时任务启动失败", zap.Error(err))
	}

	// 10. HTTP Router
	r := server.NewHTTPRouter(
		handler.NewPaymentHandler(payments),
		handler.NewAdminHandler(settlement, recharge),
		handler.NewProviderHandler(settlement, recharge),
	)

	// 11. 启动应用 (阻塞)
	app := server.New(server.Config{HttpPort: config.Global.App.HttpPort}, r, cancelWorkers, crons.Stop)
	app.Run()

	// 12. 退出后资源清理
	logger.Info("正在关闭数据库连接...")
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	rdb.Close()
	logger.Info("系统已退出")
}

func chainTokens(cfg config.ChainConfig) []chain.TokenConfig {
	out := make([]chain.TokenConfig, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		out = append(out, chain.TokenConfig{
			Symbol:   t.Symbol,
			Contract: t.Contract,
			Decimals: t.Decimals,
		})
	}
	return out
}
