package service

import (
	"context"
	"time"

	"akx-core/internal/chain"
	"akx-core/pkg/logger"
	"akx-core/pkg/utils/lock"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronService 周期任务调度
// 每个任务用分布式锁互斥, 多实例部署时同一任务只跑一份
type CronService struct {
	cron   *cron.Cron
	locker lock.DistributedLock

	registry   *chain.Registry
	settlement *SettlementService
	webhooks   *WebhookService
	collect    *CollectService
	sweeper    *SweeperService
}

func NewCronService(locker lock.DistributedLock, registry *chain.Registry, settlement *SettlementService, webhooks *WebhookService, collect *CollectService, sweeper *SweeperService) *CronService {
	return &CronService{
		cron:       cron.New(cron.WithSeconds()),
		locker:     locker,
		registry:   registry,
		settlement: settlement,
		webhooks:   webhooks,
		collect:    collect,
		sweeper:    sweeper,
	}
}

// Start 注册并启动所有周期任务
func (s *CronService) Start() error {
	jobs := []struct {
		spec string
		name string
		ttl  time.Duration
		fn   func(ctx context.Context) error
	}{
		// 过期兜底: 定时器随进程丢失, 靠这里捞回
		{"0 * * * * *", "expire_orders", 50 * time.Second, s.settlement.ExpireOverdueOrders},
		{"0 * * * * *", "webhook_retry", 50 * time.Second, s.webhooks.RetrySweep},
		{"*/30 * * * * *", "process_withdrawals", 25 * time.Second, s.settlement.ProcessWithdrawals},
		{"0 */5 * * * *", "collect_scan", 4 * time.Minute, s.collectScan},
		{"0 2-59/5 * * * *", "collect_execute", 4 * time.Minute, s.collectExecute},
		{"0 */5 * * * *", "collect_retry", 4 * time.Minute, s.collect.RetryFailed},
		{"0 */10 * * * *", "sweep", 9 * time.Minute, s.sweepAll},
	}

	for _, job := range jobs {
		job := job
		_, err := s.cron.AddFunc(job.spec, func() {
			s.runLocked(job.name, job.ttl, job.fn)
		})
		if err != nil {
			return err
		}
	}

	s.cron.Start()
	logger.Info("定时任务已启动 cron started", zap.Int("jobs", len(jobs)))
	return nil
}

func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("定时任务已停止 cron stopped")
}

// runLocked 拿到分布式锁才执行, 拿不到说明别的实例在跑
func (s *CronService) runLocked(name string, ttl time.Duration, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), ttl)
	defer cancel()

	acquired, err := s.locker.Acquire(ctx, "cron:"+name, ttl)
	if err != nil {
		logger.Error("获取任务锁失败", zap.String("job", name), zap.Error(err))
		return
	}
	if !acquired {
		return
	}
	defer s.locker.Release(ctx, "cron:"+name)

	if err := fn(ctx); err != nil {
		logger.Error("定时任务执行失败", zap.String("job", name), zap.Error(err))
	}
}

func (s *CronService) collectScan(ctx context.Context) error {
	for _, scanner := range s.registry.All() {
		if err := s.collect.ScanForCollection(ctx, scanner.Code()); err != nil {
			logger.Error("归集扫描失败", zap.String("chain", scanner.Code()), zap.Error(err))
		}
	}
	return nil
}

func (s *CronService) collectExecute(ctx context.Context) error {
	for _, scanner := range s.registry.All() {
		if err := s.collect.ExecuteTasks(ctx, scanner.Code(), false); err != nil {
			logger.Error("归集执行失败", zap.String("chain", scanner.Code()), zap.Error(err))
		}
	}
	return nil
}

func (s *CronService) sweepAll(ctx context.Context) error {
	for _, scanner := range s.registry.All() {
		if err := s.sweeper.SweepChain(ctx, scanner.Code()); err != nil {
			logger.Error("清扫失败", zap.String("chain", scanner.Code()), zap.Error(err))
		}
	}
	return nil
}
