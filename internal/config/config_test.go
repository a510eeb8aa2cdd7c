package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("Expected HTTP_ADDR default ':8080', got '%s'", cfg.HTTP.Addr)
	}
	if !cfg.DBEnabled {
		t.Errorf("Expected DB_ENABLED default true")
	}
	if cfg.Database.Database != "factory_monitor" {
		t.Errorf("Expected DB_NAME default 'factory_monitor', got '%s'", cfg.Database.Database)
	}
	if cfg.RedisEnabled || cfg.MQTTEnabled {
		t.Errorf("Expected redis and mqtt disabled by default")
	}
	if cfg.Monitor.PollingInterval != 3*time.Second {
		t.Errorf("Expected polling interval 3s, got %v", cfg.Monitor.PollingInterval)
	}
	if cfg.Monitor.PersistInterval != time.Minute {
		t.Errorf("Expected persist interval 60s, got %v", cfg.Monitor.PersistInterval)
	}
	if cfg.Monitor.AlarmWindow != 30*time.Minute {
		t.Errorf("Expected alarm window 30m, got %v", cfg.Monitor.AlarmWindow)
	}
	if cfg.Monitor.AlarmRetention != time.Hour {
		t.Errorf("Expected alarm retention 1h, got %v", cfg.Monitor.AlarmRetention)
	}
	if cfg.Monitor.OEEPerformanceRate != 0.95 || cfg.Monitor.OEEQualityRate != 0.98 {
		t.Errorf("Unexpected OEE constants %v %v", cfg.Monitor.OEEPerformanceRate, cfg.Monitor.OEEQualityRate)
	}
	if cfg.Monitor.DailySchedule != "0 0 1 * * *" || cfg.Monitor.MonthlySchedule != "0 0 2 1 * *" {
		t.Errorf("Unexpected schedules '%s' '%s'", cfg.Monitor.DailySchedule, cfg.Monitor.MonthlySchedule)
	}
	if len(cfg.Xinje.ProductionNames) != 5 || cfg.Xinje.ProductionNames[0] != "HD200" {
		t.Errorf("Unexpected production names %v", cfg.Xinje.ProductionNames)
	}
	if len(cfg.Xinje.PlanNames) != 1 || cfg.Xinje.PlanNames[0] != DefaultPlanNames {
		t.Errorf("Unexpected plan names %v", cfg.Xinje.PlanNames)
	}
	if cfg.Xinje.TokenTTL != 144*time.Hour {
		t.Errorf("Expected token ttl 144h, got %v", cfg.Xinje.TokenTTL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected LOG_LEVEL default 'info', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Setenv("POLLING_INTERVAL", "5")
	os.Setenv("PERSIST_INTERVAL", "2m")
	os.Setenv("XINJE_PRODUCTION_NAMES", " 产量 , ,output")
	os.Setenv("XINJE_BASE_URL", "http://xinje.local/")
	os.Setenv("REDIS_ENABLED", "true")
	os.Setenv("OEE_PERFORMANCE_RATE", "0.9")
	os.Setenv("DB_PORT", "15432")
	defer func() {
		os.Unsetenv("POLLING_INTERVAL")
		os.Unsetenv("PERSIST_INTERVAL")
		os.Unsetenv("XINJE_PRODUCTION_NAMES")
		os.Unsetenv("XINJE_BASE_URL")
		os.Unsetenv("REDIS_ENABLED")
		os.Unsetenv("OEE_PERFORMANCE_RATE")
		os.Unsetenv("DB_PORT")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Monitor.PollingInterval != 5*time.Second {
		t.Errorf("Expected polling interval 5s, got %v", cfg.Monitor.PollingInterval)
	}
	if cfg.Monitor.PersistInterval != 2*time.Minute {
		t.Errorf("Expected persist interval 2m, got %v", cfg.Monitor.PersistInterval)
	}
	if len(cfg.Xinje.ProductionNames) != 2 || cfg.Xinje.ProductionNames[0] != "产量" || cfg.Xinje.ProductionNames[1] != "output" {
		t.Errorf("Unexpected production names %v", cfg.Xinje.ProductionNames)
	}
	if cfg.Xinje.BaseURL != "http://xinje.local" {
		t.Errorf("Expected trailing slash trimmed, got '%s'", cfg.Xinje.BaseURL)
	}
	if !cfg.RedisEnabled {
		t.Errorf("Expected REDIS_ENABLED true")
	}
	if cfg.Monitor.OEEPerformanceRate != 0.9 {
		t.Errorf("Expected OEE performance 0.9, got %v", cfg.Monitor.OEEPerformanceRate)
	}
	if cfg.Database.Port != 15432 {
		t.Errorf("Expected DB_PORT 15432, got %d", cfg.Database.Port)
	}
}

func TestGetEnvDuration_Invalid(t *testing.T) {
	os.Setenv("TEST_DURATION", "soon")
	defer os.Unsetenv("TEST_DURATION")

	if d := getEnvDuration("TEST_DURATION", time.Second); d != time.Second {
		t.Errorf("Expected fallback 1s, got %v", d)
	}
}
