package service

import (
	"context"
	"time"

	"akx-core/internal/chain"
	"akx-core/internal/model"
	"akx-core/pkg/config"
	"akx-core/pkg/crypto_util"
	"akx-core/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RechargeService 商户余额充值: 商户给自己的平台账户打钱
// 地址专属于商户, 到账金额不需要消歧, 任意金额都入账
type RechargeService struct {
	db       *gorm.DB
	registry *chain.Registry
	ledger   *LedgerService
	cipher   *crypto_util.AESCipher
}

func NewRechargeService(db *gorm.DB, registry *chain.Registry, ledger *LedgerService, cipher *crypto_util.AESCipher) *RechargeService {
	return &RechargeService{
		db:       db,
		registry: registry,
		ledger:   ledger,
		cipher:   cipher,
	}
}

// EnsureAddress 返回商户在该链上的充值地址, 没有则生成
func (s *RechargeService) EnsureAddress(ctx context.Context, merchantID uint64, chainCode, token string) (*model.RechargeAddress, error) {
	var existing model.RechargeAddress
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND chain = ? AND token = ? AND is_active = ?", merchantID, chainCode, token, true).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	scanner, err := s.registry.Get(chainCode)
	if err != nil {
		return nil, err
	}
	keypair, err := scanner.GenerateWallet()
	if err != nil {
		return nil, err
	}
	encrypted, err := s.cipher.Encrypt(keypair.PrivateKey)
	if err != nil {
		return nil, err
	}

	addr := &model.RechargeAddress{
		MerchantID: merchantID,
		Chain:      chainCode,
		Token:      token,
		Address:    keypair.Address,
		IsActive:   true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 私钥统一落在钱包表, 归集与清扫按 deposit 类型一并处理
		wallet := &model.Wallet{
			Chain:               chainCode,
			Address:             keypair.Address,
			EncryptedPrivateKey: encrypted,
			WalletType:          model.WalletTypeDeposit,
			Token:               token,
			IsActive:            true,
		}
		if err := tx.Create(wallet).Error; err != nil {
			return err
		}
		return tx.Create(addr).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Info("充值地址已生成 recharge address created",
		zap.Uint64("merchant_id", merchantID),
		zap.String("chain", chainCode),
		zap.String("address", keypair.Address))
	return addr, nil
}

// HandleTransfer 消费扫块事件: 打到充值地址的任意转账都建单入账
func (s *RechargeService) HandleTransfer(ctx context.Context, chainCode string, ev chain.TransferEvent) error {
	var addr model.RechargeAddress
	err := s.db.WithContext(ctx).
		Where("chain = ? AND address = ? AND is_active = ?", chainCode, ev.To, true).
		First(&addr).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil // 不是充值地址
		}
		return err
	}

	// tx_hash 幂等
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.RechargeOrder{}).Where("tx_hash = ?", ev.TxHash).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	order := &model.RechargeOrder{
		RechargeNo: GenerateRechargeNo(),
		MerchantID: addr.MerchantID,
		Chain:      chainCode,
		Token:      ev.Token,
		Address:    ev.To,
		Amount:     ev.Amount,
		TxHash:     ev.TxHash,
		Status:     model.RechargeStatusConfirming,
	}
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}
	logger.Info("检测到余额充值 recharge detected",
		zap.String("recharge_no", order.RechargeNo),
		zap.String("tx_hash", ev.TxHash),
		zap.String("amount", ev.Amount.String()))
	return nil
}

// CheckConfirmations 推进确认数, 确认足够后入账
func (s *RechargeService) CheckConfirmations(ctx context.Context, chainCode string) error {
	scanner, err := s.registry.Get(chainCode)
	if err != nil {
		return err
	}
	cfg, _ := config.Chain(chainCode)

	var orders []model.RechargeOrder
	err = s.db.WithContext(ctx).
		Where("chain = ? AND status = ?", chainCode, model.RechargeStatusConfirming).
		Find(&orders).Error
	if err != nil {
		return err
	}

	for i := range orders {
		order := &orders[i]
		confs, err := scanner.Confirmations(ctx, order.TxHash)
		if err != nil {
			logger.Warn("查询充值确认数失败", zap.String("recharge_no", order.RechargeNo), zap.Error(err))
			continue
		}
		if confs > order.Confirmations {
			if err := s.db.WithContext(ctx).Model(order).Update("confirmations", confs).Error; err != nil {
				continue
			}
			order.Confirmations = confs
		}
		if order.Confirmations >= cfg.Confirmations {
			if err := s.settle(ctx, order.ID); err != nil {
				logger.Error("充值入账失败", zap.String("recharge_no", order.RechargeNo), zap.Error(err))
			}
		}
	}
	return nil
}

// settle 充值入账: 加余额并累计 total_recharged, 单事务
func (s *RechargeService) settle(ctx context.Context, orderID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.RechargeOrder
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			return err
		}
		if order.Status != model.RechargeStatusConfirming {
			return nil
		}

		now := time.Now().UTC()
		if err := tx.Model(&order).Updates(map[string]interface{}{
			"status":       model.RechargeStatusSuccess,
			"completed_at": now,
		}).Error; err != nil {
			return err
		}

		if err := s.ledger.CreditTx(tx, order.MerchantID, order.Amount, order.ID, model.LedgerTypeRecharge, "余额充值"); err != nil {
			return err
		}
		if err := tx.Model(&model.Merchant{}).
			Where("id = ?", order.MerchantID).
			Update("total_recharged", gorm.Expr("total_recharged + ?", order.Amount)).Error; err != nil {
			return err
		}

		logger.Info("余额充值已入账 recharge settled",
			zap.String("recharge_no", order.RechargeNo),
			zap.String("amount", order.Amount.String()))
		return nil
	})
}
