package service

import (
	"context"
	"sort"
	"time"

	"akx-core/internal/model"
	"akx-core/pkg/errno"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelCandidate 可路由通道及其今日剩余额度
type ChannelCandidate struct {
	Channel   model.PaymentChannel
	Remaining decimal.Decimal // DailyLimit 为 0 (不限) 时为零值
	Unlimited bool
}

// ChannelService 支付通道选择器
// 选择只是路由建议, 不预扣额度; 额度由结算引擎在支付确认后消费
type ChannelService struct {
	db *gorm.DB
}

func NewChannelService(db *gorm.DB) *ChannelService {
	return &ChannelService{db: db}
}

// FindAvailable 返回最多 k 个可承接 (chain, token, amount) 的通道
// 读取时懒执行 UTC 零点的日额度重置
func (s *ChannelService) FindAvailable(ctx context.Context, chainCode, token string, amount decimal.Decimal, k int) ([]ChannelCandidate, error) {
	var channels []model.PaymentChannel
	err := s.db.WithContext(ctx).
		Where("chain = ? AND token = ? AND is_active = ?", chainCode, token, true).
		Find(&channels).Error
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range channels {
		if channels[i].NeedsDailyReset(now) {
			if err := s.resetDaily(ctx, &channels[i], now); err != nil {
				return nil, err
			}
		}
	}

	channels, err = s.filterByBalanceLimit(ctx, channels)
	if err != nil {
		return nil, err
	}

	candidates := FilterChannels(channels, amount)
	if len(candidates) == 0 {
		return nil, errno.ErrNoAvailableChannel
	}
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// FilterChannels 过滤并按 (priority 升序, daily_used 升序) 排序 (纯逻辑, 可测)
func FilterChannels(channels []model.PaymentChannel, amount decimal.Decimal) []ChannelCandidate {
	var out []ChannelCandidate
	for _, c := range channels {
		if !c.IsActive {
			continue
		}
		if amount.LessThan(c.MinAmount) {
			continue
		}
		if !c.MaxAmount.IsZero() && amount.GreaterThan(c.MaxAmount) {
			continue
		}
		remaining, limited := c.Remaining()
		if limited && c.DailyUsed.Add(amount).GreaterThan(c.DailyLimit) {
			continue
		}
		out = append(out, ChannelCandidate{Channel: c, Remaining: remaining, Unlimited: !limited})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Channel, out[j].Channel
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.DailyUsed.LessThan(b.DailyUsed)
	})
	return out
}

// filterByBalanceLimit 剔除地址余额已达上限的通道 (用钱包表的余额缓存, 不打链)
func (s *ChannelService) filterByBalanceLimit(ctx context.Context, channels []model.PaymentChannel) ([]model.PaymentChannel, error) {
	out := channels[:0]
	for _, c := range channels {
		if c.BalanceLimit.IsZero() {
			out = append(out, c)
			continue
		}
		var wallet model.Wallet
		err := s.db.WithContext(ctx).Where("address = ?", c.Address).First(&wallet).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				out = append(out, c)
				continue
			}
			return nil, err
		}
		if wallet.Balance.LessThan(c.BalanceLimit) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *ChannelService) resetDaily(ctx context.Context, c *model.PaymentChannel, now time.Time) error {
	c.DailyUsed = decimal.Zero
	c.DailyResetAt = &now
	return s.db.WithContext(ctx).Model(c).Updates(map[string]interface{}{
		"daily_used":     decimal.Zero,
		"daily_reset_at": now,
	}).Error
}

// PickChannelForToken 在同地址通道里找绑定该代币的那一个 (纯逻辑)
// 同一地址可按不同代币挂多个通道, 日额度各自独立
func PickChannelForToken(channels []model.PaymentChannel, token string) *model.PaymentChannel {
	for i := range channels {
		if channels[i].Token == token {
			return &channels[i]
		}
	}
	return nil
}

// ConsumeDailyQuota 支付确认后由结算引擎调用, 累加通道当日用量
func (s *ChannelService) ConsumeDailyQuota(ctx context.Context, tx *gorm.DB, channelAddress string, chainCode string, token string, amount decimal.Decimal) error {
	if tx == nil {
		tx = s.db.WithContext(ctx)
	}
	var channels []model.PaymentChannel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ? AND chain = ?", channelAddress, chainCode).
		Find(&channels).Error
	if err != nil {
		return err
	}
	// 地址没有绑定该代币的通道时静默跳过 (通道是可选的路由层)
	c := PickChannelForToken(channels, token)
	if c == nil {
		return nil
	}
	return tx.Model(c).Update("daily_used", c.DailyUsed.Add(amount)).Error
}
