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
	"akx-core/pkg/utils/lock"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CollectService 资金归集: 把充值地址上的代币集中到热钱包
// 扫描与执行分两步, 任务落库, 同一源地址同时只能有一个非终态任务
type CollectService struct {
	db       *gorm.DB
	registry *chain.Registry
	locker   lock.DistributedLock
	cipher   *crypto_util.AESCipher
}

func NewCollectService(db *gorm.DB, registry *chain.Registry, locker lock.DistributedLock, cipher *crypto_util.AESCipher) *CollectService {
	return &CollectService{
		db:       db,
		registry: registry,
		locker:   locker,
		cipher:   cipher,
	}
}

// EligibleForCollection 余额达到归集阈值才建任务 (纯逻辑)
func EligibleForCollection(balance, minAmount decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(minAmount) && balance.IsPositive()
}

// ScanForCollection 扫描某条链的充值地址, 为余额达标的地址建归集任务
func (s *CollectService) ScanForCollection(ctx context.Context, chainCode string) error {
	scanner, err := s.registry.Get(chainCode)
	if err != nil {
		return err
	}
	cfg, ok := config.Chain(chainCode)
	if !ok {
		return errno.ErrUnsupportedChain
	}
	minAmount, err := decimal.NewFromString(config.Global.Collect.MinAmount)
	if err != nil {
		minAmount = decimal.NewFromInt(10)
	}

	hot, err := s.hotWallet(ctx, chainCode)
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

	created := 0
	for i := range wallets {
		w := &wallets[i]
		for _, token := range cfg.Tokens {
			balance, err := scanner.TokenBalance(ctx, w.Address, token.Symbol)
			if err != nil {
				logger.Warn("查询代币余额失败", zap.String("address", w.Address), zap.Error(err))
				continue
			}
			if !EligibleForCollection(balance, minAmount) {
				continue
			}

			live, err := s.hasLiveTask(ctx, w.Address, token.Symbol)
			if err != nil {
				return err
			}
			if live {
				continue
			}

			task := &model.CollectTask{
				Chain:       chainCode,
				Token:       token.Symbol,
				FromAddress: w.Address,
				ToAddress:   hot.Address,
				Amount:      balance,
				Status:      model.CollectStatusPending,
			}
			if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
				return err
			}
			created++
			logger.Info("归集任务已创建 collect task created",
				zap.String("chain", chainCode),
				zap.String("from", w.Address),
				zap.String("amount", balance.String()))
		}
	}

	if created > 0 {
		logger.Info("归集扫描完成 collect scan done",
			zap.String("chain", chainCode),
			zap.Int("created", created))
	}
	return nil
}

// ExecuteTasks 执行待归集任务, 每轮最多 batch_size 笔
// dryRun 只打印不广播, 任务保持 pending
func (s *CollectService) ExecuteTasks(ctx context.Context, chainCode string, dryRun bool) error {
	scanner, err := s.registry.Get(chainCode)
	if err != nil {
		return err
	}
	minAmount, err := decimal.NewFromString(config.Global.Collect.MinAmount)
	if err != nil {
		minAmount = decimal.NewFromInt(10)
	}
	batchSize := config.Global.Collect.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	delay := time.Duration(config.Global.Collect.BatchDelay) * time.Second

	var tasks []model.CollectTask
	err = s.db.WithContext(ctx).
		Where("chain = ? AND status = ?", chainCode, model.CollectStatusPending).
		Order("created_at asc").
		Limit(batchSize).
		Find(&tasks).Error
	if err != nil {
		return err
	}

	for i := range tasks {
		if i > 0 && delay > 0 && !dryRun {
			time.Sleep(delay)
		}
		if err := s.executeTask(ctx, scanner, &tasks[i], minAmount, dryRun); err != nil {
			logger.Error("归集任务执行失败", zap.Uint64("task_id", tasks[i].ID), zap.Error(err))
		}
	}
	return nil
}

func (s *CollectService) executeTask(ctx context.Context, scanner chain.Scanner, task *model.CollectTask, minAmount decimal.Decimal, dryRun bool) error {
	// 按源地址加锁, 避免两个实例同时归集同一地址
	lockKey := "collect:" + task.FromAddress
	acquired, err := s.locker.Acquire(ctx, lockKey, 5*time.Minute)
	if err != nil {
		return err
	}
	if !acquired {
		return errno.ErrCollectTaskConflict
	}
	defer s.locker.Release(ctx, lockKey)

	// 执行前重查链上余额: 建任务到执行之间余额可能已被归走
	balance, err := scanner.TokenBalance(ctx, task.FromAddress, task.Token)
	if err != nil {
		return s.markFailed(ctx, task, "余额查询失败: "+err.Error())
	}
	if balance.LessThan(minAmount) {
		logger.Info("余额已低于归集阈值, 跳过 task skipped",
			zap.Uint64("task_id", task.ID),
			zap.String("balance", balance.String()))
		return s.db.WithContext(ctx).Model(task).Update("status", model.CollectStatusSkipped).Error
	}

	if dryRun {
		logger.Info("[dry-run] 将归集 would collect",
			zap.String("from", task.FromAddress),
			zap.String("to", task.ToAddress),
			zap.String("amount", balance.String()))
		return nil
	}

	if err := s.db.WithContext(ctx).Model(task).Update("status", model.CollectStatusProcessing).Error; err != nil {
		return err
	}

	var wallet model.Wallet
	if err := s.db.WithContext(ctx).Where("address = ?", task.FromAddress).First(&wallet).Error; err != nil {
		return s.markFailed(ctx, task, "源地址钱包不存在")
	}
	privateKey, err := s.cipher.Decrypt(wallet.EncryptedPrivateKey)
	if err != nil {
		return s.markFailed(ctx, task, "私钥解密失败")
	}

	txHash, err := scanner.SendToken(ctx, privateKey, task.ToAddress, task.Token, balance)
	if err != nil {
		return s.markFailed(ctx, task, "广播失败: "+err.Error())
	}

	logger.Info("归集转账已广播 collect broadcast",
		zap.Uint64("task_id", task.ID),
		zap.String("tx_hash", txHash),
		zap.String("amount", balance.String()))
	return s.db.WithContext(ctx).Model(task).Updates(map[string]interface{}{
		"status":  model.CollectStatusSuccess,
		"tx_hash": txHash,
		"amount":  balance,
	}).Error
}

func (s *CollectService) markFailed(ctx context.Context, task *model.CollectTask, reason string) error {
	logger.Warn("归集任务失败 collect task failed",
		zap.Uint64("task_id", task.ID),
		zap.String("reason", reason))
	return s.db.WithContext(ctx).Model(task).Updates(map[string]interface{}{
		"status":      model.CollectStatusFailed,
		"retry_count": task.RetryCount + 1,
		"last_error":  reason,
	}).Error
}

// RetryFailed 把未超过重试上限的失败任务捞回 pending
func (s *CollectService) RetryFailed(ctx context.Context) error {
	maxRetries := config.Global.Collect.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	res := s.db.WithContext(ctx).Model(&model.CollectTask{}).
		Where("status = ? AND retry_count < ?", model.CollectStatusFailed, maxRetries).
		Update("status", model.CollectStatusPending)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		logger.Info("失败归集任务已重排 collect tasks requeued", zap.Int64("count", res.RowsAffected))
	}
	return nil
}

func (s *CollectService) hasLiveTask(ctx context.Context, fromAddress, token string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.CollectTask{}).
		Where("from_address = ? AND token = ? AND status IN ?",
			fromAddress, token, []string{model.CollectStatusPending, model.CollectStatusProcessing}).
		Count(&count).Error
	return count > 0, err
}

func (s *CollectService) hotWallet(ctx context.Context, chainCode string) (*model.Wallet, error) {
	var hot model.Wallet
	err := s.db.WithContext(ctx).
		Where("chain = ? AND wallet_type = ? AND is_active = ?", chainCode, model.WalletTypeHot, true).
		First(&hot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrHotWalletNotFound
		}
		return nil, err
	}
	return &hot, nil
}
