package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/metrics"
	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	JobFast    = "fast"
	JobMedium  = "medium"
	JobDaily   = "daily"
	JobMonthly = "monthly"
)

// Refresher 聚合并刷新缓存
type Refresher interface {
	Refresh(ctx context.Context) (*models.DashboardSnapshot, bool)
}

// Broadcaster 订阅者扇出
type Broadcaster interface {
	Broadcast(snap *models.DashboardSnapshot) int
	Count() int
}

// Persister 统计持久化
type Persister interface {
	SaveSnapshot(ctx context.Context, snap *models.DashboardSnapshot) error
	SaveDeviceStatuses(ctx context.Context, devices []models.Device) (int, error)
	FinalizeDay(ctx context.Context, day time.Time, last *models.DashboardSnapshot) error
	GenerateMonthly(ctx context.Context, year, month int) (*models.MonthlyStatistics, error)
}

// SnapshotReader 当前缓存快照
type SnapshotReader interface {
	Current() *models.DashboardSnapshot
}

// SummaryPublisher 每个持久化周期推送一次快照摘要（可选）
type SummaryPublisher interface {
	PublishSummary(snap *models.DashboardSnapshot) error
}

// Options 调度参数
type Options struct {
	FastInterval    time.Duration
	MediumInterval  time.Duration
	DailySchedule   string
	MonthlySchedule string
	Now             func() time.Time
}

// Scheduler 四个独立的周期任务
// fast/medium 为定时循环，每次执行完成后才重新计时；daily/monthly 为 cron 任务
type Scheduler struct {
	refresher Refresher
	hub       Broadcaster
	persister Persister
	cache     SnapshotReader
	summary   SummaryPublisher
	opts      Options
	logger    *zap.Logger

	cron *cron.Cron
	wg   sync.WaitGroup
}

// New 创建调度器；persister 为 nil 时只运行 fast 任务
func New(refresher Refresher, hub Broadcaster, persister Persister, cache SnapshotReader, opts Options, logger *zap.Logger) *Scheduler {
	if opts.FastInterval <= 0 {
		opts.FastInterval = 3 * time.Second
	}
	if opts.MediumInterval <= 0 {
		opts.MediumInterval = 60 * time.Second
	}
	if opts.DailySchedule == "" {
		opts.DailySchedule = "0 0 1 * * *"
	}
	if opts.MonthlySchedule == "" {
		opts.MonthlySchedule = "0 0 2 1 * *"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		refresher: refresher,
		hub:       hub,
		persister: persister,
		cache:     cache,
		opts:      opts,
		logger:    logger,
	}
}

// WithSummaryPublisher 设置摘要推送
func (s *Scheduler) WithSummaryPublisher(p SummaryPublisher) *Scheduler {
	s.summary = p
	return s
}

// Start 启动全部任务，ctx 取消后退出；调用 Stop 等待退出完成
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting scheduler",
		zap.Duration("fast_interval", s.opts.FastInterval),
		zap.Duration("medium_interval", s.opts.MediumInterval),
		zap.String("daily_schedule", s.opts.DailySchedule),
		zap.String("monthly_schedule", s.opts.MonthlySchedule),
		zap.Bool("persistence_enabled", s.persister != nil),
	)

	if s.persister != nil {
		cl := newCronLogger(s.logger)
		s.cron = cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
		if _, err := s.cron.AddFunc(s.opts.DailySchedule, func() { s.run(ctx, JobDaily, s.RunDaily) }); err != nil {
			return fmt.Errorf("invalid daily schedule %q: %w", s.opts.DailySchedule, err)
		}
		if _, err := s.cron.AddFunc(s.opts.MonthlySchedule, func() { s.run(ctx, JobMonthly, s.RunMonthly) }); err != nil {
			return fmt.Errorf("invalid monthly schedule %q: %w", s.opts.MonthlySchedule, err)
		}
		s.cron.Start()

		s.wg.Add(1)
		go s.loop(ctx, JobMedium, s.opts.MediumInterval, s.RunMedium)
	}

	s.wg.Add(1)
	go s.loop(ctx, JobFast, s.opts.FastInterval, s.RunFast)
	return nil
}

// Stop 等待定时循环退出并停止 cron（等待进行中的 cron 任务结束）
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// loop 执行完成后才重新计时，同一任务不会重叠
func (s *Scheduler) loop(ctx context.Context, job string, interval time.Duration, fn func(context.Context) error) {
	defer s.wg.Done()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.run(ctx, job, fn)
			timer.Reset(interval)
		}
	}
}

// run 执行一次任务，错误和 panic 只记录，不影响下一次调度
func (s *Scheduler) run(ctx context.Context, job string, fn func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.JobRuns.WithLabelValues(job, "panic").Inc()
			s.logger.Error("Scheduled job panicked", zap.String("job", job), zap.Any("panic", r))
		}
	}()

	if err := fn(ctx); err != nil {
		metrics.JobRuns.WithLabelValues(job, "error").Inc()
		s.logger.Error("Scheduled job failed", zap.String("job", job), zap.Error(err))
		return
	}
	metrics.JobRuns.WithLabelValues(job, "ok").Inc()
}

// RunFast 有订阅者时刷新并广播，没有订阅者时跳过
func (s *Scheduler) RunFast(ctx context.Context) error {
	if s.hub.Count() == 0 {
		return nil
	}
	snap, fresh := s.refresher.Refresh(ctx)
	if !fresh {
		return nil
	}
	n := s.hub.Broadcast(snap)
	s.logger.Debug("Broadcast snapshot", zap.Int("delivered", n), zap.Int64("update_time", snap.UpdateTime))
	return nil
}

// RunMedium 刷新快照，写入当天统计和设备状态变化
func (s *Scheduler) RunMedium(ctx context.Context) error {
	snap, fresh := s.refresher.Refresh(ctx)
	if !fresh {
		return fmt.Errorf("snapshot refresh failed, skipping persistence")
	}

	var firstErr error
	if err := s.persister.SaveSnapshot(ctx, snap); err != nil {
		firstErr = err
	}
	if _, err := s.persister.SaveDeviceStatuses(ctx, snap.Devices); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.summary != nil {
		if err := s.summary.PublishSummary(snap); err != nil {
			s.logger.Warn("Failed to publish snapshot summary", zap.Error(err))
		}
	}
	return firstErr
}

// RunDaily 收尾昨天的统计
func (s *Scheduler) RunDaily(ctx context.Context) error {
	yesterday := s.opts.Now().AddDate(0, 0, -1)
	return s.persister.FinalizeDay(ctx, yesterday, s.cache.Current())
}

// RunMonthly 汇总上个月
func (s *Scheduler) RunMonthly(ctx context.Context) error {
	now := s.opts.Now()
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
	_, err := s.persister.GenerateMonthly(ctx, prev.Year(), int(prev.Month()))
	return err
}
