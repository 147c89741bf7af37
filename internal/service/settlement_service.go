package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"akx-core/internal/chain"
	"akx-core/internal/model"
	"akx-core/pkg/config"
	"akx-core/pkg/crypto_util"
	"akx-core/pkg/errno"
	"akx-core/pkg/logger"
	"akx-core/pkg/monitor"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementService 订单状态机的唯一驱动者
// 扫块匹配、确认数推进、过期、强制完成都从这里走; success 与入账在同一事务
type SettlementService struct {
	db       *gorm.DB
	registry *chain.Registry
	ledger   *LedgerService
	channels *ChannelService
	webhooks *WebhookService
	cipher   *crypto_util.AESCipher

	timers sync.Map // order ID → *time.Timer
}

func NewSettlementService(db *gorm.DB, registry *chain.Registry, ledger *LedgerService, channels *ChannelService, webhooks *WebhookService, cipher *crypto_util.AESCipher) *SettlementService {
	return &SettlementService{
		db:       db,
		registry: registry,
		ledger:   ledger,
		channels: channels,
		webhooks: webhooks,
		cipher:   cipher,
	}
}

// CanTransition 状态机转移表
// pending → confirming/processing/expired/failed; processing → confirming/failed;
// confirming → success/failed; 终态不再转移 (强制完成走单独入口)
func CanTransition(from, to string) bool {
	switch from {
	case model.OrderStatusPending:
		return to == model.OrderStatusConfirming ||
			to == model.OrderStatusProcessing ||
			to == model.OrderStatusExpired ||
			to == model.OrderStatusFailed
	case model.OrderStatusProcessing:
		return to == model.OrderStatusConfirming || to == model.OrderStatusFailed
	case model.OrderStatusConfirming:
		return to == model.OrderStatusSuccess || to == model.OrderStatusFailed
	}
	return false
}

// MatchTransfer 在候选订单里找金额精确相等的一笔 (纯逻辑)
// 只认精确相等: 少付/多付都不匹配, 由调用方记录人工处理
func MatchTransfer(orders []model.Order, ev chain.TransferEvent) *model.Order {
	for i := range orders {
		o := &orders[i]
		if o.Status != model.OrderStatusPending {
			continue
		}
		if o.Token != ev.Token {
			continue
		}
		if o.Amount.Equal(ev.Amount) {
			return o
		}
	}
	return nil
}

// HandleTransfer 消费一笔扫到的入账转账
// 以 tx_hash 幂等: 重扫同一区块不会重复推进
func (s *SettlementService) HandleTransfer(ctx context.Context, chainCode string, ev chain.TransferEvent) error {
	// 已关联过的交易直接跳过
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Order{}).Where("tx_hash = ?", ev.TxHash).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var candidates []model.Order
	err := s.db.WithContext(ctx).
		Where("chain = ? AND wallet_address = ? AND order_type = ? AND status = ?",
			chainCode, ev.To, model.OrderTypeDeposit, model.OrderStatusPending).
		Find(&candidates).Error
	if err != nil {
		return err
	}

	matched := MatchTransfer(candidates, ev)
	if matched == nil {
		// 少付或多付都不自动入账, 仅记录供人工核查
		monitor.Business.UnmatchedTransfers.WithLabelValues(chainCode).Inc()
		logger.Warn("转账未匹配任何订单 unmatched transfer",
			zap.String("chain", chainCode),
			zap.String("tx_hash", ev.TxHash),
			zap.String("to", ev.To),
			zap.String("token", ev.Token),
			zap.String("amount", ev.Amount.String()),
			zap.Int("pending_candidates", len(candidates)))
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, matched.ID).Error; err != nil {
			return err
		}
		if !CanTransition(order.Status, model.OrderStatusConfirming) {
			return nil // 并发下已被其他路径推进
		}
		return tx.Model(&order).Updates(map[string]interface{}{
			"status":       model.OrderStatusConfirming,
			"tx_hash":      ev.TxHash,
			"from_address": ev.From,
			"block_height": ev.Height,
		}).Error
	})
	if err != nil {
		return err
	}

	s.cancelExpiry(matched.ID)
	logger.Info("订单匹配到转账 order matched",
		zap.String("order_no", matched.OrderNo),
		zap.String("tx_hash", ev.TxHash))
	return nil
}

// CheckConfirmations 推进该链所有 confirming 订单的确认数
func (s *SettlementService) CheckConfirmations(ctx context.Context, chainCode string) error {
	scanner, err := s.registry.Get(chainCode)
	if err != nil {
		return err
	}
	cfg, _ := config.Chain(chainCode)

	var orders []model.Order
	err = s.db.WithContext(ctx).
		Where("chain = ? AND status = ?", chainCode, model.OrderStatusConfirming).
		Find(&orders).Error
	if err != nil {
		return err
	}

	for i := range orders {
		order := &orders[i]
		confs, err := scanner.Confirmations(ctx, order.TxHash)
		if err != nil {
			logger.Warn("查询确认数失败", zap.String("order_no", order.OrderNo), zap.Error(err))
			continue
		}
		// 确认数单调不减
		if confs > order.Confirmations {
			if err := s.db.WithContext(ctx).Model(order).Update("confirmations", confs).Error; err != nil {
				continue
			}
			order.Confirmations = confs
		}
		if order.Confirmations >= cfg.Confirmations {
			if err := s.succeed(ctx, order.ID, "", ""); err != nil {
				logger.Error("订单结算失败", zap.String("order_no", order.OrderNo), zap.Error(err))
			}
		}
	}
	return nil
}

// depositSettlement 充值成功时的账变序列: 全额入账, 再把建单时冻结的手续费转为实扣
// 手续费只收这一次, 两条合计商户净入 net_amount = amount - fee
func depositSettlement(o *model.Order) []ledgerChange {
	changes := []ledgerChange{{
		MerchantID: o.MerchantID,
		OrderID:    o.ID,
		ChangeType: model.LedgerTypeDepositCredit,
		Amount:     o.Amount,
		Remark:     "充值入账",
	}}
	if o.Fee.IsPositive() {
		changes = append(changes, ledgerChange{
			MerchantID:   o.MerchantID,
			OrderID:      o.ID,
			ChangeType:   model.LedgerTypeFeeSettle,
			Amount:       o.Fee.Neg(),
			FrozenAmount: o.Fee.Neg(),
			Remark:       "手续费结算",
		})
	}
	return changes
}

// succeed 终结订单为 success 并完成入账, 整体单事务
// operator 非空表示强制完成
func (s *SettlementService) succeed(ctx context.Context, orderID uint64, operator string, remark string) error {
	var settled model.Order
	var delivery *model.WebhookDelivery
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			return err
		}
		if order.IsTerminal() {
			return errno.ErrOrderNotTransitable
		}
		if operator == "" && !CanTransition(order.Status, model.OrderStatusSuccess) {
			return errno.ErrOrderNotTransitable
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":       model.OrderStatusSuccess,
			"completed_at": now,
		}
		if operator != "" {
			// 强制完成: 审计字段里保留原状态与操作员
			updates["force_completed_by"] = operator
			updates["force_remark"] = fmt.Sprintf("%s (原状态: %s)", remark, order.Status)
		}
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return err
		}

		switch order.OrderType {
		case model.OrderTypeDeposit:
			for _, c := range depositSettlement(&order) {
				if err := s.ledger.apply(tx, c, nil); err != nil {
					return err
				}
			}
			// 确认后才消费通道日额度
			if err := s.channels.ConsumeDailyQuota(ctx, tx, order.WalletAddress, order.Chain, order.Token, order.Amount); err != nil {
				return err
			}
		case model.OrderTypeWithdraw:
			// 提现金额建单时已扣, 这里只结算手续费
			if order.Fee.IsPositive() {
				if err := s.ledger.SettleFeeTx(tx, order.MerchantID, order.Fee, order.ID); err != nil {
					return err
				}
			}
		}

		order.Status = model.OrderStatusSuccess
		order.CompletedAt = &now

		// 回调记录与入账同事务落库 (发件箱), 提交前崩溃不会丢事件
		d, err := s.webhooks.EnqueueOrderEventTx(tx, &order, model.WebhookEventOrderSuccess)
		if err != nil {
			return err
		}
		delivery = d

		settled = order
		return nil
	})
	if err != nil {
		return err
	}

	s.cancelExpiry(settled.ID)
	monitor.Business.OrdersSettledTotal.WithLabelValues(settled.OrderType, model.OrderStatusSuccess).Inc()
	if settled.OrderType == model.OrderTypeDeposit {
		monitor.Business.DepositAmountTotal.WithLabelValues(settled.Chain, settled.Token).Add(settled.Amount.InexactFloat64())
	} else {
		monitor.Business.WithdrawAmountTotal.WithLabelValues(settled.Chain, settled.Token).Add(settled.Amount.InexactFloat64())
	}
	logger.Info("订单已成功结算 order settled",
		zap.String("order_no", settled.OrderNo),
		zap.String("type", settled.OrderType))

	s.webhooks.DeliverAsync(delivery)
	return nil
}

// Fail 终结订单为 failed; 提现退款, 手续费解冻
func (s *SettlementService) Fail(ctx context.Context, orderID uint64, reason string) error {
	var failed model.Order
	var delivery *model.WebhookDelivery
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			return err
		}
		if !CanTransition(order.Status, model.OrderStatusFailed) {
			return errno.ErrOrderNotTransitable
		}

		now := time.Now().UTC()
		if err := tx.Model(&order).Updates(map[string]interface{}{
			"status":       model.OrderStatusFailed,
			"completed_at": now,
		}).Error; err != nil {
			return err
		}

		if order.OrderType == model.OrderTypeWithdraw {
			if err := s.ledger.CreditTx(tx, order.MerchantID, order.Amount, order.ID, model.LedgerTypeRefund, "提现失败退款: "+reason); err != nil {
				return err
			}
		}
		if order.Fee.IsPositive() {
			if err := s.ledger.UnfreezeFeeTx(tx, order.MerchantID, order.Fee, order.ID); err != nil {
				return err
			}
		}

		order.Status = model.OrderStatusFailed
		order.CompletedAt = &now
		d, err := s.webhooks.EnqueueOrderEventTx(tx, &order, model.WebhookEventOrderFailed)
		if err != nil {
			return err
		}
		delivery = d

		failed = order
		return nil
	})
	if err != nil {
		return err
	}

	s.cancelExpiry(failed.ID)
	monitor.Business.OrdersSettledTotal.WithLabelValues(failed.OrderType, model.OrderStatusFailed).Inc()
	logger.Warn("订单已失败 order failed",
		zap.String("order_no", failed.OrderNo),
		zap.String("reason", reason))

	s.webhooks.DeliverAsync(delivery)
	return nil
}

// ForceComplete 运营强制完成: 任意非终态 → success, 带操作员与备注审计
func (s *SettlementService) ForceComplete(ctx context.Context, orderNo string, operator string, remark string) error {
	var order model.Order
	err := s.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errno.ErrOrderNotFound
		}
		return err
	}
	logger.Info("强制完成订单 force complete",
		zap.String("order_no", orderNo),
		zap.String("operator", operator),
		zap.String("original_status", order.Status))
	return s.succeed(ctx, order.ID, operator, remark)
}

// ScheduleExpiry 为订单挂过期定时器 (建单时调用)
func (s *SettlementService) ScheduleExpiry(order *model.Order) {
	if order.ExpireTime == nil {
		return
	}
	delay := time.Until(*order.ExpireTime)
	if delay < 0 {
		delay = 0
	}
	id := order.ID
	timer := time.AfterFunc(delay, func() {
		s.timers.Delete(id)
		if err := s.ExpireOrder(context.Background(), id); err != nil && err != errno.ErrOrderNotTransitable {
			logger.Error("订单过期处理失败", zap.Uint64("order_id", id), zap.Error(err))
		}
	})
	s.timers.Store(id, timer)
}

func (s *SettlementService) cancelExpiry(orderID uint64) {
	if v, ok := s.timers.LoadAndDelete(orderID); ok {
		v.(*time.Timer).Stop()
	}
}

// ExpireOrder 仅 pending 订单可过期; 冻结的手续费退回
func (s *SettlementService) ExpireOrder(ctx context.Context, orderID uint64) error {
	var expired model.Order
	var delivery *model.WebhookDelivery
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			return err
		}
		if order.Status != model.OrderStatusPending {
			return errno.ErrOrderNotTransitable
		}

		now := time.Now().UTC()
		if err := tx.Model(&order).Updates(map[string]interface{}{
			"status":       model.OrderStatusExpired,
			"completed_at": now,
		}).Error; err != nil {
			return err
		}
		if order.Fee.IsPositive() {
			if err := s.ledger.UnfreezeFeeTx(tx, order.MerchantID, order.Fee, order.ID); err != nil {
				return err
			}
		}

		order.Status = model.OrderStatusExpired
		order.CompletedAt = &now
		d, err := s.webhooks.EnqueueOrderEventTx(tx, &order, model.WebhookEventOrderExpired)
		if err != nil {
			return err
		}
		delivery = d

		expired = order
		return nil
	})
	if err != nil {
		return err
	}

	monitor.Business.OrdersSettledTotal.WithLabelValues(expired.OrderType, model.OrderStatusExpired).Inc()
	logger.Info("订单已过期 order expired", zap.String("order_no", expired.OrderNo))
	s.webhooks.DeliverAsync(delivery)
	return nil
}

// ExpireOverdueOrders 兜底扫描: 定时器丢失时由 cron 捞回
func (s *SettlementService) ExpireOverdueOrders(ctx context.Context) error {
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("status = ? AND expire_time IS NOT NULL AND expire_time < ?", model.OrderStatusPending, time.Now().UTC()).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.ExpireOrder(ctx, id); err != nil && err != errno.ErrOrderNotTransitable {
			logger.Error("兜底过期失败", zap.Uint64("order_id", id), zap.Error(err))
		}
	}
	return nil
}

// ProcessWithdrawals 出款: pending 提现单从热钱包广播
func (s *SettlementService) ProcessWithdrawals(ctx context.Context) error {
	var orders []model.Order
	err := s.db.WithContext(ctx).
		Where("order_type = ? AND status = ?", model.OrderTypeWithdraw, model.OrderStatusPending).
		Order("created_at asc").
		Limit(20).
		Find(&orders).Error
	if err != nil {
		return err
	}

	for i := range orders {
		if err := s.processWithdrawal(ctx, &orders[i]); err != nil {
			logger.Error("出款失败", zap.String("order_no", orders[i].OrderNo), zap.Error(err))
		}
	}
	return nil
}

func (s *SettlementService) processWithdrawal(ctx context.Context, order *model.Order) error {
	scanner, err := s.registry.Get(order.Chain)
	if err != nil {
		return s.Fail(ctx, order.ID, err.Error())
	}

	var hot model.Wallet
	err = s.db.WithContext(ctx).
		Where("chain = ? AND wallet_type = ? AND is_active = ?", order.Chain, model.WalletTypeHot, true).
		First(&hot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errno.ErrHotWalletNotFound
		}
		return err
	}

	// 占住订单再广播, 防止双发
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", order.ID, model.OrderStatusPending).
		Update("status", model.OrderStatusProcessing)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	// 私钥只在签名的瞬间出现在内存里
	privateKey, err := s.cipher.Decrypt(hot.EncryptedPrivateKey)
	if err != nil {
		return s.Fail(ctx, order.ID, "热钱包私钥解密失败")
	}

	var txHash string
	if order.Token == "" {
		txHash, err = scanner.SendNative(ctx, privateKey, order.ToAddress, order.Amount)
	} else {
		txHash, err = scanner.SendToken(ctx, privateKey, order.ToAddress, order.Token, order.Amount)
	}
	if err != nil {
		return s.Fail(ctx, order.ID, "广播失败: "+err.Error())
	}

	return s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":       model.OrderStatusConfirming,
			"tx_hash":      txHash,
			"from_address": hot.Address,
		}).Error
}
