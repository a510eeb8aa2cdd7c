package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/aggregator"
	"github.com/GG-Yelin/factory-monitor-screen/internal/alarm"
	"github.com/GG-Yelin/factory-monitor-screen/internal/cache"
	"github.com/GG-Yelin/factory-monitor-screen/internal/config"
	httpapi "github.com/GG-Yelin/factory-monitor-screen/internal/http"
	"github.com/GG-Yelin/factory-monitor-screen/internal/hub"
	"github.com/GG-Yelin/factory-monitor-screen/internal/provider"
	"github.com/GG-Yelin/factory-monitor-screen/internal/repository"
	"github.com/GG-Yelin/factory-monitor-screen/internal/scheduler"
	"github.com/GG-Yelin/factory-monitor-screen/internal/stats"
	"github.com/GG-Yelin/factory-monitor-screen/monitor-common/database"
	mqttcommon "github.com/GG-Yelin/factory-monitor-screen/monitor-common/mqtt"
	rediscommon "github.com/GG-Yelin/factory-monitor-screen/monitor-common/redis"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MonitorService 组装大屏服务的全部组件
type MonitorService struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client

	snapshots  *cache.SnapshotCache
	mirror     *cache.SnapshotMirror
	hub        *hub.Hub
	aggregator *aggregator.SnapshotAggregator
	scheduler  *scheduler.Scheduler
	server     *Server
}

// NewMonitorService 创建服务；数据库/Redis 启用但连接失败时返回错误，MQTT 连接失败只告警
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	s := &MonitorService{
		config:    cfg,
		logger:    logger,
		snapshots: cache.NewSnapshotCache(),
	}

	if err := s.connect(); err != nil {
		s.closeClients()
		return nil, err
	}

	client := provider.NewClient(provider.Options{
		BaseURL:    cfg.Xinje.BaseURL,
		Username:   cfg.Xinje.Username,
		Password:   cfg.Xinje.Password,
		Timeout:    cfg.Xinje.Timeout,
		TokenTTL:   cfg.Xinje.TokenTTL,
		RetryCount: 1,
	}, logger.Named("provider"))

	// 可选组件统一用接口变量承接，避免 typed nil
	var (
		recordStore alarm.RecordStore
		trend       aggregator.TrendSource
		persister   scheduler.Persister
	)

	var statsRepo *repository.StatisticsRepository
	var alarmRepo *repository.AlarmRecordRepository
	var statsPersister *stats.Persister
	if s.db != nil {
		statsRepo = repository.NewStatisticsRepository(s.db, logger)
		alarmRepo = repository.NewAlarmRecordRepository(s.db, logger)
		statsPersister = stats.NewPersister(
			statsRepo,
			alarmRepo,
			repository.NewDeviceStatusRepository(s.db, logger),
			repository.NewProductionRepository(s.db, logger),
			cfg.Monitor.DefaultQualityRate,
			logger.Named("stats"),
		)
		recordStore = alarmRepo
		trend = statsRepo
		persister = statsPersister
	}

	dispatcher := alarm.NewDispatcher(recordStore, logger.Named("alarm"))
	if s.redisClient != nil {
		dispatcher.WithStream(s.redisClient, cfg.AlarmStream.Name, cfg.AlarmStream.MaxLen)
	}
	if s.mqttClient != nil {
		dispatcher.WithMQTT(s.mqttClient, cfg.MQTTTopicPrefix+"/alarms")
	}

	s.aggregator = aggregator.NewSnapshotAggregator(
		client,
		alarm.NewSuppressor(cfg.Monitor.AlarmWindow, cfg.Monitor.AlarmRetention),
		dispatcher,
		trend,
		s.snapshots,
		aggregator.Options{
			ProductionNames:      cfg.Xinje.ProductionNames,
			PlanNames:            cfg.Xinje.PlanNames,
			OEEPerformanceRate:   cfg.Monitor.OEEPerformanceRate,
			OEEQualityRate:       cfg.Monitor.OEEQualityRate,
			OEENoDeviceValue:     cfg.Monitor.OEENoDeviceValue,
			DefaultQualityRate:   cfg.Monitor.DefaultQualityRate,
			TrendDays:            cfg.Monitor.TrendDays,
			TrendPlaceholderPlan: cfg.Monitor.TrendPlaceholderPlan,
			FetchTimeout:         cfg.Xinje.Timeout,
		},
		logger.Named("aggregator"),
	)
	if s.redisClient != nil {
		s.mirror = cache.NewSnapshotMirror(cache.NewRedisMirrorStore(s.redisClient), cfg.Mirror.Key, cfg.Mirror.TTL, logger)
		s.aggregator.WithMirror(s.mirror)
	}

	s.hub = hub.NewHub(s.snapshots, logger.Named("hub"))

	s.scheduler = scheduler.New(s.aggregator, s.hub, persister, s.snapshots, scheduler.Options{
		FastInterval:    cfg.Monitor.PollingInterval,
		MediumInterval:  cfg.Monitor.PersistInterval,
		DailySchedule:   cfg.Monitor.DailySchedule,
		MonthlySchedule: cfg.Monitor.MonthlySchedule,
	}, logger.Named("scheduler"))
	if s.mqttClient != nil {
		s.scheduler.WithSummaryPublisher(&summaryPublisher{pub: s.mqttClient, topic: cfg.MQTTTopicPrefix + "/summary"})
	}

	router := httpapi.NewRouter(logger)
	router.RegisterMonitorRoutes(httpapi.NewMonitorHandler(s.snapshots, client, s.hub, logger))
	if s.db != nil {
		router.RegisterStatisticsRoutes(httpapi.NewStatisticsHandler(statsRepo, alarmRepo, statsPersister, logger))
	}
	router.HandleHandler("/ws/monitor", hub.NewHandler(s.hub, cfg.Monitor.SubscriberSendBuffer, logger.Named("ws")))
	router.HandleHandler("/metrics", promhttp.Handler())

	s.server = NewServer(cfg.HTTP.Addr, router, logger)
	return s, nil
}

// connect 建立已启用的外部连接
func (s *MonitorService) connect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.config.DBEnabled {
		db, err := database.NewPostgresDB(ctx, &s.config.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		if err := repository.EnsureSchema(ctx, db); err != nil {
			return err
		}
	}

	if s.config.RedisEnabled {
		client, err := rediscommon.Connect(ctx, &s.config.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redisClient = client
	}

	if s.config.MQTTEnabled {
		client, err := mqttcommon.NewClient(&s.config.MQTT, s.logger.Named("mqtt"))
		if err != nil {
			s.logger.Warn("Failed to connect to MQTT broker, alarm and summary publishing disabled", zap.Error(err))
		} else {
			s.mqttClient = client
		}
	}
	return nil
}

// Start 预热缓存、启动调度器和 HTTP 服务；阻塞直到 HTTP 服务退出
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting factory monitor service",
		zap.Bool("db_enabled", s.db != nil),
		zap.Bool("redis_enabled", s.redisClient != nil),
		zap.Bool("mqtt_enabled", s.mqttClient != nil),
	)

	if s.mirror != nil && s.mirror.Warm(ctx, s.snapshots) {
		s.logger.Info("Snapshot cache seeded from mirror")
	}

	// 首次聚合不等待第一个周期
	go s.aggregator.Refresh(ctx)

	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if err := s.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 关闭 HTTP 服务、订阅者、调度器和外部连接
func (s *MonitorService) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := s.server.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	s.hub.CloseAll()
	s.scheduler.Stop()
	s.closeClients()
	return errors.Join(errs...)
}

func (s *MonitorService) closeClients() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}
