package service

import (
	"context"
	"time"

	"akx-core/internal/chain"
	"akx-core/internal/model"
	"akx-core/pkg/config"
	"akx-core/pkg/logger"
	"akx-core/pkg/monitor"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ScannerService 扫块主循环: 每条链一个 goroutine
// 游标落库, 重启从上次扫到的高度继续; 同一区块重扫由下游 tx_hash 幂等兜底
type ScannerService struct {
	db         *gorm.DB
	registry   *chain.Registry
	settlement *SettlementService
	recharge   *RechargeService
}

func NewScannerService(db *gorm.DB, registry *chain.Registry, settlement *SettlementService, recharge *RechargeService) *ScannerService {
	return &ScannerService{
		db:         db,
		registry:   registry,
		settlement: settlement,
		recharge:   recharge,
	}
}

// Run 启动所有已注册链的扫块循环, ctx 取消时退出
func (s *ScannerService) Run(ctx context.Context) {
	for _, scanner := range s.registry.All() {
		go s.loop(ctx, scanner)
	}
}

func (s *ScannerService) loop(ctx context.Context, scanner chain.Scanner) {
	code := scanner.Code()
	cfg, _ := config.Chain(code)
	interval := time.Duration(cfg.ScanInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	logger.Info("扫块循环启动 scanner loop started",
		zap.String("chain", code),
		zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("扫块循环退出 scanner loop stopped", zap.String("chain", code))
			return
		case <-ticker.C:
			if err := s.ScanOnce(ctx, scanner); err != nil {
				logger.Error("扫块失败", zap.String("chain", code), zap.Error(err))
			}
			if err := s.settlement.CheckConfirmations(ctx, code); err != nil {
				logger.Error("确认数推进失败", zap.String("chain", code), zap.Error(err))
			}
			if err := s.recharge.CheckConfirmations(ctx, code); err != nil {
				logger.Error("充值确认数推进失败", zap.String("chain", code), zap.Error(err))
			}
		}
	}
}

// ScanOnce 扫一批区块并消费其中的入账转账
func (s *ScannerService) ScanOnce(ctx context.Context, scanner chain.Scanner) error {
	code := scanner.Code()
	cfg, _ := config.Chain(code)
	maxBlocks := cfg.MaxScanBlocks
	if maxBlocks == 0 {
		maxBlocks = 100
	}

	head, err := scanner.CurrentHeight(ctx)
	if err != nil {
		return err
	}

	cursor, err := s.loadCursor(ctx, code, head)
	if err != nil {
		return err
	}
	from := cursor.LastScannedHeight + 1
	if from > head {
		return nil
	}
	to := from + maxBlocks - 1
	if to > head {
		to = head
	}

	watch, err := s.watchSet(ctx, code)
	if err != nil {
		return err
	}
	if len(watch) == 0 {
		// 没有关注地址也推进游标, 否则积压的区块会越扫越多
		return s.saveCursor(ctx, cursor, to, head)
	}

	events, err := scanner.ScanRange(ctx, from, to, watch)
	if err != nil {
		return err
	}

	// 整批全部处理成功才推进游标, 否则下一轮重扫这段区间 (下游按 tx_hash 幂等)
	if err := consumeEvents(ctx, code, events, s.settlement.HandleTransfer, s.recharge.HandleTransfer); err != nil {
		return err
	}
	return s.saveCursor(ctx, cursor, to, head)
}

// consumeEvents 把一批转账事件交给各个下游消费
// 任何一笔失败都返回错误, 剩余事件仍会处理完 (各自幂等)
func consumeEvents(ctx context.Context, chainCode string, events []chain.TransferEvent, handlers ...func(context.Context, string, chain.TransferEvent) error) error {
	var errs *multierror.Error
	for _, ev := range events {
		for _, handle := range handlers {
			if err := handle(ctx, chainCode, ev); err != nil {
				logger.Error("处理入账转账失败",
					zap.String("chain", chainCode),
					zap.String("tx_hash", ev.TxHash),
					zap.Error(err))
				errs = multierror.Append(errs, err)
			}
		}
	}
	return errs.ErrorOrNil()
}

// watchSet 当前需要盯的地址: 待支付订单的收款地址 + 充值地址
func (s *ScannerService) watchSet(ctx context.Context, chainCode string) (map[string]bool, error) {
	watch := make(map[string]bool)

	var orderAddrs []string
	err := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("chain = ? AND order_type = ? AND status = ?", chainCode, model.OrderTypeDeposit, model.OrderStatusPending).
		Distinct().
		Pluck("wallet_address", &orderAddrs).Error
	if err != nil {
		return nil, err
	}
	for _, a := range orderAddrs {
		watch[a] = true
	}

	var rechargeAddrs []string
	err = s.db.WithContext(ctx).Model(&model.RechargeAddress{}).
		Where("chain = ? AND is_active = ?", chainCode, true).
		Pluck("address", &rechargeAddrs).Error
	if err != nil {
		return nil, err
	}
	for _, a := range rechargeAddrs {
		watch[a] = true
	}
	return watch, nil
}

// loadCursor 读游标, 首次运行从当前高度开始 (不回溯历史)
func (s *ScannerService) loadCursor(ctx context.Context, chainCode string, head uint64) (*model.ChainCursor, error) {
	var cursor model.ChainCursor
	err := s.db.WithContext(ctx).Where("chain = ?", chainCode).First(&cursor).Error
	if err == nil {
		return &cursor, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	cursor = model.ChainCursor{Chain: chainCode, LastScannedHeight: head - 1}
	if err := s.db.WithContext(ctx).Create(&cursor).Error; err != nil {
		return nil, err
	}
	logger.Info("初始化链游标 cursor initialized",
		zap.String("chain", chainCode),
		zap.Uint64("height", cursor.LastScannedHeight))
	return &cursor, nil
}

func (s *ScannerService) saveCursor(ctx context.Context, cursor *model.ChainCursor, to, head uint64) error {
	if err := s.db.WithContext(ctx).Model(cursor).Update("last_scanned_height", to).Error; err != nil {
		return err
	}
	cursor.LastScannedHeight = to
	monitor.Business.ScanLagBlocks.WithLabelValues(cursor.Chain).Set(float64(head - to))
	return nil
}
