package cmd

import (
	"fmt"

	"akx-core/internal/chain"
	"akx-core/internal/service"
	"akx-core/pkg/config"
	"akx-core/pkg/crypto_util"
	"akx-core/pkg/database"
	"akx-core/pkg/logger"
	"akx-core/pkg/utils/lock"
)

// deps 运维命令共享的运行时依赖
type deps struct {
	registry *chain.Registry
	collect  *service.CollectService
	sweeper  *service.SweeperService
}

// bootstrap 按服务端同样的顺序拉起依赖, 但只装配归集/清扫需要的部分
func bootstrap() (*deps, error) {
	config.Init()
	logger.Init(config.Global.App.Env)

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	cipher, err := crypto_util.NewAESCipher(config.Global.Security.AesKey)
	if err != nil {
		return nil, fmt.Errorf("AES 密钥无效: %w", err)
	}

	registry := chain.NewRegistry()
	if cfg, ok := config.Chain(chain.CodeTron); ok && cfg.RpcUrl != "" {
		registry.Register(chain.NewTronScanner(cfg, chainTokens(cfg)))
	}
	if cfg, ok := config.Chain(chain.CodeEthereum); ok && cfg.RpcUrl != "" {
		eth, err := chain.NewEthereumScanner(cfg, chainTokens(cfg))
		if err != nil {
			return nil, err
		}
		registry.Register(eth)
	}
	if cfg, ok := config.Chain(chain.CodeSolana); ok && cfg.RpcUrl != "" {
		registry.Register(chain.NewSolanaScanner(cfg, chainTokens(cfg)))
	}

	locker := lock.NewRedisLock(rdb)
	return &deps{
		registry: registry,
		collect:  service.NewCollectService(db, registry, locker, cipher),
		sweeper:  service.NewSweeperService(db, registry, locker, cipher),
	}, nil
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
