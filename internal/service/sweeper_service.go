package service

import (
	"context"
	"time"

	"akx-core/internal/chain"
	"akx-core/internal/model"
	"akx-core/pkg/config"
	"akx-core/pkg/crypto_util"
	"akx-core/pkg/errno"
	"akx-core/pkg/logger"
	"akx-core/pkg/monitor"
	"akx-core/pkg/utils/lock"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SweeperService 周期性清扫充值地址
// 与 CollectService 的区别: 不走任务表, 直接巡检并广播, 顺带补 gas
// 同一轮对同一地址只做一件事: 要么补 gas, 要么清扫, 绝不同时
type SweeperService struct {
	db       *gorm.DB
	registry *chain.Registry
	locker   lock.DistributedLock
	cipher   *crypto_util.AESCipher
}

func NewSweeperService(db *gorm.DB, registry *chain.Registry, locker lock.DistributedLock, cipher *crypto_util.AESCipher) *SweeperService {
	return &SweeperService{
		db:       db,
		registry: registry,
		locker:   locker,
		cipher:   cipher,
	}
}

// NeedsGasTopup 原生币余额低于阈值时需要先补 gas (纯逻辑)
func NeedsGasTopup(nativeBalance, threshold decimal.Decimal) bool {
	return nativeBalance.LessThan(threshold)
}

// SweepChain 清扫一条链的所有充值地址
func (s *SweeperService) SweepChain(ctx context.Context, chainCode string) error {
	scanner, err := s.registry.Get(chainCode)
	if err != nil {
		return err
	}
	cfg, ok := config.Chain(chainCode)
	if !ok {
		return errno.ErrUnsupportedChain
	}

	// 整链一把锁, 多实例下只有一个在扫
	lockKey := "sweep:" + chainCode
	acquired, err := s.locker.Acquire(ctx, lockKey, 10*time.Minute)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer s.locker.Release(ctx, lockKey)

	started := time.Now()
	defer func() {
		monitor.Business.CollectJobDuration.WithLabelValues(chainCode).Observe(time.Since(started).Seconds())
	}()

	minAmount, err := decimal.NewFromString(config.Global.Collect.MinAmount)
	if err != nil {
		minAmount = decimal.NewFromInt(10)
	}
	gasThreshold, err := decimal.NewFromString(cfg.GasThreshold)
	if err != nil {
		gasThreshold = decimal.Zero
	}
	gasTopup, err := decimal.NewFromString(cfg.GasTopup)
	if err != nil {
		gasTopup = decimal.Zero
	}

	cold, gas, err := s.infraWallets(ctx, chainCode)
	if err != nil {
		return err
	}

	var wallets []model.Wallet
	err = s.db.WithContext(ctx).
		Where("chain = ? AND wallet_type = ? AND is_active = ?", chainCode, model.WalletTypeDeposit, true).
		Find(&wallets).Error
	if err != nil {
		return err
	}

	for i := range wallets {
		if err := s.sweepWallet(ctx, scanner, &wallets[i], cold, gas, cfg.Tokens, minAmount, gasThreshold, gasTopup); err != nil {
			logger.Warn("清扫地址失败", zap.String("address", wallets[i].Address), zap.Error(err))
		}
	}
	return nil
}

func (s *SweeperService) sweepWallet(ctx context.Context, scanner chain.Scanner, w *model.Wallet, cold, gas *model.Wallet, tokens []config.TokenConfig, minAmount, gasThreshold, gasTopup decimal.Decimal) error {
	var sweepable []struct {
		symbol  string
		balance decimal.Decimal
	}
	for _, token := range tokens {
		balance, err := scanner.TokenBalance(ctx, w.Address, token.Symbol)
		if err != nil {
			return err
		}
		if balance.GreaterThanOrEqual(minAmount) {
			sweepable = append(sweepable, struct {
				symbol  string
				balance decimal.Decimal
			}{token.Symbol, balance})
		}
	}
	if len(sweepable) == 0 {
		return nil
	}

	native, err := scanner.NativeBalance(ctx, w.Address)
	if err != nil {
		return err
	}

	// gas 不够: 先补, 清扫留到下一轮 (补 gas 交易确认前转账会失败)
	if NeedsGasTopup(native, gasThreshold) {
		return s.topupGas(ctx, scanner, w.Address, gas, gasTopup)
	}

	privateKey, err := s.cipher.Decrypt(w.EncryptedPrivateKey)
	if err != nil {
		return err
	}
	for _, item := range sweepable {
		txHash, err := scanner.SendToken(ctx, privateKey, cold.Address, item.symbol, item.balance)
		if err != nil {
			return err
		}
		monitor.Business.SweptAmountTotal.WithLabelValues(w.Chain, item.symbol).Add(item.balance.InexactFloat64())
		logger.Info("地址已清扫 wallet swept",
			zap.String("chain", w.Chain),
			zap.String("from", w.Address),
			zap.String("amount", item.balance.String()),
			zap.String("tx_hash", txHash))
	}

	// 更新余额缓存
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(w).Updates(map[string]interface{}{
		"balance":    decimal.Zero,
		"balance_at": now,
	}).Error
}

func (s *SweeperService) topupGas(ctx context.Context, scanner chain.Scanner, toAddress string, gas *model.Wallet, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	privateKey, err := s.cipher.Decrypt(gas.EncryptedPrivateKey)
	if err != nil {
		return err
	}
	txHash, err := scanner.SendNative(ctx, privateKey, toAddress, amount)
	if err != nil {
		return err
	}
	logger.Info("已补充 gas gas topup sent",
		zap.String("to", toAddress),
		zap.String("amount", amount.String()),
		zap.String("tx_hash", txHash))
	return nil
}

func (s *SweeperService) infraWallets(ctx context.Context, chainCode string) (cold, gas *model.Wallet, err error) {
	var c model.Wallet
	err = s.db.WithContext(ctx).
		Where("chain = ? AND wallet_type = ? AND is_active = ?", chainCode, model.WalletTypeCold, true).
		First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, errno.ErrWalletNotFound
		}
		return nil, nil, err
	}

	var g model.Wallet
	err = s.db.WithContext(ctx).
		Where("chain = ? AND wallet_type = ? AND is_active = ?", chainCode, model.WalletTypeGas, true).
		First(&g).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, errno.ErrGasWalletNotFound
		}
		return nil, nil, err
	}
	return &c, &g, nil
}
