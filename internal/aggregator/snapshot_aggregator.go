package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/alarm"
	"github.com/GG-Yelin/factory-monitor-screen/internal/metrics"
	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const alarmTimeLayout = "2006-01-02 15:04:05"

// ProviderClient 上游数据源
type ProviderClient interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListDevicesForProjects(ctx context.Context, projects []models.Project) ([]models.Device, error)
	GetItemData(ctx context.Context, itemID string) ([]models.DataPoint, error)
}

// AlarmSink 放行报警的持久化/推送
type AlarmSink interface {
	Dispatch(ctx context.Context, event models.AlarmEvent) error
}

// TrendSource 已入库的每日统计
type TrendSource interface {
	ListDailyStatistics(ctx context.Context, start, end time.Time) ([]models.DailyStatistics, error)
}

// SnapshotStore 当前快照
type SnapshotStore interface {
	Set(s *models.DashboardSnapshot)
	Current() *models.DashboardSnapshot
}

// SnapshotMirror 快照镜像（如 Redis）
type SnapshotMirror interface {
	Save(ctx context.Context, s *models.DashboardSnapshot) error
}

// Options 聚合参数
type Options struct {
	ProductionNames []string
	PlanNames       []string

	OEEPerformanceRate float64
	OEEQualityRate     float64
	OEENoDeviceValue   float64
	DefaultQualityRate float64

	TrendDays            int
	TrendPlaceholderPlan int

	// 单次聚合中上游请求的总超时
	FetchTimeout time.Duration

	Now func() time.Time
}

// SnapshotAggregator 把上游原始数据聚合成大屏快照
type SnapshotAggregator struct {
	provider   ProviderClient
	suppressor *alarm.Suppressor
	sink       AlarmSink
	trend      TrendSource
	store      SnapshotStore
	mirror     SnapshotMirror
	opts       Options
	logger     *zap.Logger

	// 同一时刻只有一个聚合周期在运行（含写缓存与镜像）
	buildMu sync.Mutex
}

// NewSnapshotAggregator sink/trend/mirror 可以为 nil
func NewSnapshotAggregator(
	provider ProviderClient,
	suppressor *alarm.Suppressor,
	sink AlarmSink,
	trend TrendSource,
	store SnapshotStore,
	opts Options,
	logger *zap.Logger,
) *SnapshotAggregator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TrendDays <= 0 {
		opts.TrendDays = 7
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	return &SnapshotAggregator{
		provider:   provider,
		suppressor: suppressor,
		sink:       sink,
		trend:      trend,
		store:      store,
		opts:       opts,
		logger:     logger,
	}
}

// WithMirror 成功聚合后同步写入镜像
func (a *SnapshotAggregator) WithMirror(m SnapshotMirror) *SnapshotAggregator {
	a.mirror = m
	return a
}

// upstreamState 一个周期内抓取到的全部上游数据
type upstreamState struct {
	projects   []models.Project
	devices    []models.Device
	dataPoints []models.DataPoint
}

func (a *SnapshotAggregator) fetch(ctx context.Context) (*upstreamState, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()

	projects, err := a.provider.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	// 设备按本周期取到的项目列表拉取，保证分组与快照中的项目一致
	devices, err := a.provider.ListDevicesForProjects(ctx, projects)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	points := make([]models.DataPoint, 0)
	for _, p := range projects {
		pts, err := a.provider.GetItemData(ctx, p.ItemID)
		if err != nil {
			return nil, fmt.Errorf("get item data %s: %w", p.ItemID, err)
		}
		points = append(points, pts...)
	}

	return &upstreamState{projects: projects, devices: devices, dataPoints: points}, nil
}

// BuildSnapshot 执行一次完整聚合；任何上游请求失败都使整个周期失败
func (a *SnapshotAggregator) BuildSnapshot(ctx context.Context) (*models.DashboardSnapshot, error) {
	a.buildMu.Lock()
	defer a.buildMu.Unlock()
	return a.build(ctx)
}

// build 调用方须持有 buildMu
func (a *SnapshotAggregator) build(ctx context.Context) (*models.DashboardSnapshot, error) {
	started := time.Now()
	defer func() { metrics.SnapshotBuildDuration.Observe(time.Since(started).Seconds()) }()

	state, err := a.fetch(ctx)
	if err != nil {
		metrics.SnapshotBuilds.WithLabelValues("error").Inc()
		return nil, err
	}

	now := a.opts.Now()
	snap := a.assemble(ctx, state, now)
	snap.Alarms = a.processAlarms(ctx, state.devices, now)

	metrics.SnapshotBuilds.WithLabelValues("ok").Inc()
	a.logger.Debug("Snapshot built",
		zap.Int("projects", len(snap.Projects)),
		zap.Int("devices", snap.TotalDevices),
		zap.Int("data_points", len(snap.DataPoints)),
		zap.Int("today_production", snap.TodayProduction),
		zap.Int("plan_production", snap.PlanProduction),
		zap.Int("alarms", len(snap.Alarms)),
	)
	return snap, nil
}

// assemble 计算所有派生字段（不含报警）
func (a *SnapshotAggregator) assemble(ctx context.Context, state *upstreamState, now time.Time) *models.DashboardSnapshot {
	byProject := make(map[string][]models.Device)
	for _, d := range state.devices {
		if d.ItemID != "" {
			byProject[d.ItemID] = append(byProject[d.ItemID], d)
		}
	}

	projects := make([]models.Project, len(state.projects))
	for i, p := range state.projects {
		group := byProject[p.ItemID]
		p.DeviceCount = len(group)
		p.OnlineCount = 0
		for _, d := range group {
			if d.Status == models.DeviceOnline {
				p.OnlineCount++
			}
		}
		projects[i] = p
	}

	var online, offline, alarming int
	for _, d := range state.devices {
		switch d.Status {
		case models.DeviceOnline:
			online++
		case models.DeviceOffline:
			offline++
		case models.DeviceAlarm:
			alarming++
		}
	}
	total := len(state.devices)

	production := ExtractValue(state.dataPoints, a.opts.ProductionNames)
	plan := ExtractValue(state.dataPoints, a.opts.PlanNames)
	if skipped := production.Skipped + plan.Skipped; skipped > 0 {
		metrics.DataPointsSkipped.Add(float64(skipped))
		a.logger.Warn("Skipped unparsable data point values", zap.Int("count", skipped))
	}

	devices := append(make([]models.Device, 0, total), state.devices...)

	return &models.DashboardSnapshot{
		TotalDevices:        total,
		OnlineDevices:       online,
		OfflineDevices:      offline,
		AlarmDevices:        alarming,
		TodayProduction:     production.Total,
		PlanProduction:      plan.Total,
		ProductionRate:      Round2(Percent(production.Total, plan.Total)),
		EquipmentEfficiency: Round2(OEE(state.devices, a.opts.OEEPerformanceRate, a.opts.OEEQualityRate, a.opts.OEENoDeviceValue)),
		QualityRate:         Round2(QualityRate(state.dataPoints, a.opts.DefaultQualityRate)),
		RunningRate:         Round2(Percent(online, total)),
		Projects:            projects,
		Devices:             devices,
		DataPoints:          state.dataPoints,
		ProductionTrend:     a.buildTrend(ctx, now, production.Total, plan.Total),
		UpdateTime:          now.UnixMilli(),
	}
}

// processAlarms 为每个报警设备生成展示项，并经抑制器决定是否产生新的报警事件
func (a *SnapshotAggregator) processAlarms(ctx context.Context, devices []models.Device, now time.Time) []models.AlarmInfo {
	alarms := make([]models.AlarmInfo, 0)
	for _, d := range devices {
		if d.Status != models.DeviceAlarm {
			continue
		}

		alarms = append(alarms, models.AlarmInfo{
			ID:           uuid.New().String(),
			DeviceID:     d.DeviceID,
			DeviceName:   d.DeviceName,
			AlarmType:    models.AlarmTypeDevice,
			AlarmContent: models.AlarmContentDevice,
			AlarmTime:    now.Format(alarmTimeLayout),
			Level:        models.AlarmLevelWarning,
			Status:       models.AlarmStatusPending,
		})

		if a.suppressor == nil {
			continue
		}
		if !a.suppressor.ShouldEmit(d.DeviceID, now) {
			metrics.AlarmsSuppressed.Inc()
			continue
		}

		event := models.AlarmEvent{
			EventID:    uuid.New().String(),
			DeviceID:   d.DeviceID,
			DeviceName: d.DeviceName,
			Kind:       models.AlarmTypeDevice,
			Message:    models.AlarmContentDevice,
			Severity:   models.AlarmLevelWarning,
			OccurredAt: now,
		}
		if a.sink != nil {
			if err := a.sink.Dispatch(ctx, event); err != nil {
				// 未记录放行时间，下个周期重试
				a.logger.Error("Failed to dispatch alarm event",
					zap.String("device_id", d.DeviceID),
					zap.Error(err),
				)
				continue
			}
		}
		a.suppressor.RecordEmitted(d.DeviceID, now)
	}
	return alarms
}

// Refresh 聚合并更新缓存与镜像
// 写缓存也在 buildMu 内完成，较早周期的快照不会覆盖较新的
// 失败时返回缓存中的上一份快照（或全零快照），fresh=false
func (a *SnapshotAggregator) Refresh(ctx context.Context) (*models.DashboardSnapshot, bool) {
	a.buildMu.Lock()
	defer a.buildMu.Unlock()

	snap, err := a.build(ctx)
	if err != nil {
		a.logger.Error("Snapshot aggregation failed, serving cached snapshot", zap.Error(err))
		return a.store.Current(), false
	}

	a.store.Set(snap)
	metrics.SnapshotAge.Set(float64(snap.UpdateTime) / 1000)

	if a.mirror != nil {
		if err := a.mirror.Save(ctx, snap); err != nil {
			a.logger.Warn("Failed to mirror snapshot", zap.Error(err))
		}
	}
	return snap, true
}
