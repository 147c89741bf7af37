package service

import (
	"context"
	"fmt"
	"time"

	"akx-core/internal/chain"
	"akx-core/internal/model"
	"akx-core/pkg/crypto_util"
	"akx-core/pkg/errno"
	"akx-core/pkg/logger"
	"akx-core/pkg/monitor"
	"akx-core/pkg/safe_random"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 请求时间戳有效窗口 (毫秒)
const timestampValidityMs = 5 * 60 * 1000

// PaymentService 订单入口: 商户鉴权、建单、查单
type PaymentService struct {
	db         *gorm.DB
	ledger     *LedgerService
	channels   *ChannelService
	amounts    *AmountDisambiguator
	registry   *chain.Registry
	settlement *SettlementService
}

func NewPaymentService(db *gorm.DB, ledger *LedgerService, channels *ChannelService, amounts *AmountDisambiguator, registry *chain.Registry, settlement *SettlementService) *PaymentService {
	return &PaymentService{
		db:         db,
		ledger:     ledger,
		channels:   channels,
		amounts:    amounts,
		registry:   registry,
		settlement: settlement,
	}
}

// GenerateOrderNo 订单号: AKX + D/W + UTC 时间戳 + 6 位随机数
func GenerateOrderNo(orderType string) string {
	prefix := "D"
	if orderType == model.OrderTypeWithdraw {
		prefix = "W"
	}
	rnd, err := safe_random.GenerateRandomHexString(3)
	if err != nil {
		rnd = fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	}
	return fmt.Sprintf("AKX%s%s%s", prefix, time.Now().UTC().Format("20060102150405"), rnd)
}

// GenerateRechargeNo 充值单号: R + UTC 时间戳 + 8 位随机 hex
func GenerateRechargeNo() string {
	rnd, err := safe_random.GenerateRandomHexString(4)
	if err != nil {
		rnd = fmt.Sprintf("%08d", time.Now().UnixNano()%100000000)
	}
	return fmt.Sprintf("R%s%s", time.Now().UTC().Format("20060102150405"), rnd)
}

// VerifyTimestamp 请求时间戳须在 ±5 分钟内 (毫秒)
func VerifyTimestamp(timestampMs int64, now time.Time) bool {
	diff := now.UnixMilli() - timestampMs
	if diff < 0 {
		diff = -diff
	}
	return diff <= timestampValidityMs
}

// Authenticate 校验商户签名请求
// keyType 选择 deposit_key / withdraw_key; message 由调用方按约定拼接
func (s *PaymentService) Authenticate(ctx context.Context, merchantNo string, message string, signature string, timestampMs int64, orderType string) (*model.Merchant, error) {
	if !VerifyTimestamp(timestampMs, time.Now()) {
		return nil, errno.ErrTimestamp
	}

	var m model.Merchant
	err := s.db.WithContext(ctx).Where("merchant_no = ? AND is_active = ?", merchantNo, true).First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrMerchantNotFound
		}
		return nil, err
	}

	secret := m.DepositKey
	if orderType == model.OrderTypeWithdraw {
		secret = m.WithdrawKey
	}
	if !crypto_util.VerifyHmacSHA256Hex(secret, message, signature) {
		return nil, errno.ErrSignature
	}
	return &m, nil
}

// DepositFee 充值手续费: amount*rate + fixed
func DepositFee(m *model.Merchant, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(m.DepositFeeRate).Add(m.DepositFeeFixed).Round(8)
}

// WithdrawFee 提现手续费
func WithdrawFee(m *model.Merchant, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(m.WithdrawFeeRate).Add(m.WithdrawFeeFixed).Round(8)
}

type CreateDepositInput struct {
	OutTradeNo  string
	Chain       string
	Token       string
	Amount      decimal.Decimal
	CallbackURL string
	ExpireIn    time.Duration
}

// CreateDepositOrder 建充值单
// 流程: 通道选址 → 金额消歧 → 冻结手续费 + 建单 (单事务) → 调度过期
func (s *PaymentService) CreateDepositOrder(ctx context.Context, m *model.Merchant, in CreateDepositInput) (*model.Order, error) {
	if _, err := s.registry.Get(in.Chain); err != nil {
		return nil, err
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errno.ErrAmountTooSmall
	}

	var existing model.Order
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND out_trade_no = ?", m.ID, in.OutTradeNo).
		First(&existing).Error
	if err == nil {
		return nil, errno.ErrDuplicateOutTradeNo
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	// 通道选择只取最优一个, 仅作路由, 不扣额度
	candidates, err := s.channels.FindAvailable(ctx, in.Chain, in.Token, in.Amount, 1)
	if err != nil {
		return nil, err
	}
	address := candidates[0].Channel.Address

	uniqueAmount, err := s.amounts.UniqueAmount(ctx, address, in.Amount)
	if err != nil {
		return nil, err
	}

	fee := DepositFee(m, uniqueAmount)
	expireTime := time.Now().UTC().Add(in.ExpireIn)

	order := &model.Order{
		OrderNo:        GenerateOrderNo(model.OrderTypeDeposit),
		OutTradeNo:     in.OutTradeNo,
		MerchantID:     m.ID,
		OrderType:      model.OrderTypeDeposit,
		Chain:          in.Chain,
		Token:          in.Token,
		Amount:         uniqueAmount,
		Fee:            fee,
		NetAmount:      uniqueAmount.Sub(fee),
		WalletAddress:  address,
		Status:         model.OrderStatusPending,
		CallbackURL:    in.CallbackURL,
		CallbackStatus: model.CallbackStatusNone,
		ExpireTime:     &expireTime,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		// 手续费先冻结, 成功后结算, 过期/失败解冻
		if fee.IsPositive() {
			return s.ledger.FreezeFeeTx(tx, m.ID, fee, order.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.settlement.ScheduleExpiry(order)
	monitor.Business.OrdersCreatedTotal.WithLabelValues(model.OrderTypeDeposit, in.Chain).Inc()
	logger.Info("充值订单已创建 deposit order created",
		zap.String("order_no", order.OrderNo),
		zap.String("address", address),
		zap.String("amount", uniqueAmount.String()))
	return order, nil
}

type CreateWithdrawInput struct {
	OutTradeNo  string
	Chain       string
	Token       string
	Amount      decimal.Decimal
	ToAddress   string
	CallbackURL string
}

// CreateWithdrawOrder 建提现单: 校验地址与余额, 扣款 + 冻结手续费后等待出款
func (s *PaymentService) CreateWithdrawOrder(ctx context.Context, m *model.Merchant, in CreateWithdrawInput) (*model.Order, error) {
	scanner, err := s.registry.Get(in.Chain)
	if err != nil {
		return nil, err
	}
	if !scanner.ValidateAddress(in.ToAddress) {
		return nil, errno.ErrInvalidAddress
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errno.ErrAmountTooSmall
	}

	var existing model.Order
	err = s.db.WithContext(ctx).
		Where("merchant_id = ? AND out_trade_no = ?", m.ID, in.OutTradeNo).
		First(&existing).Error
	if err == nil {
		return nil, errno.ErrDuplicateOutTradeNo
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	fee := WithdrawFee(m, in.Amount)

	order := &model.Order{
		OrderNo:        GenerateOrderNo(model.OrderTypeWithdraw),
		OutTradeNo:     in.OutTradeNo,
		MerchantID:     m.ID,
		OrderType:      model.OrderTypeWithdraw,
		Chain:          in.Chain,
		Token:          in.Token,
		Amount:         in.Amount,
		Fee:            fee,
		NetAmount:      in.Amount, // 用户全额到账, 手续费另计
		ToAddress:      in.ToAddress,
		Status:         model.OrderStatusPending,
		CallbackURL:    in.CallbackURL,
		CallbackStatus: model.CallbackStatusNone,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		// 提现金额立即扣减, 失败时原路退回
		if err := s.ledger.DebitTx(tx, m.ID, in.Amount, order.ID, model.LedgerTypeWithdrawDebit, "提现扣款"); err != nil {
			return err
		}
		if fee.IsPositive() {
			return s.ledger.FreezeFeeTx(tx, m.ID, fee, order.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitor.Business.OrdersCreatedTotal.WithLabelValues(model.OrderTypeWithdraw, in.Chain).Inc()
	logger.Info("提现订单已创建 withdraw order created",
		zap.String("order_no", order.OrderNo),
		zap.String("to", in.ToAddress),
		zap.String("amount", in.Amount.String()))
	return order, nil
}

func (s *PaymentService) GetOrderByNo(ctx context.Context, merchantID uint64, orderNo string) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND order_no = ?", merchantID, orderNo).
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (s *PaymentService) GetOrderByOutTradeNo(ctx context.Context, merchantID uint64, outTradeNo string) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND out_trade_no = ?", merchantID, outTradeNo).
		First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}
