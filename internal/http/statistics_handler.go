package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"
	"github.com/GG-Yelin/factory-monitor-screen/internal/repository"
	"github.com/GG-Yelin/factory-monitor-screen/internal/stats"

	"go.uber.org/zap"
)

// StatisticsStore 统计查询
type StatisticsStore interface {
	GetDaily(ctx context.Context, day time.Time) (*models.DailyStatistics, error)
	ListDailyStatistics(ctx context.Context, start, end time.Time) ([]models.DailyStatistics, error)
	ListRecentDaily(ctx context.Context, now time.Time, days int) ([]models.DailyStatistics, error)
	GetMonthly(ctx context.Context, year, month int) (*models.MonthlyStatistics, error)
	ListMonthlyByYear(ctx context.Context, year int) ([]models.MonthlyStatistics, error)
	ListRecentMonthly(ctx context.Context, n int) ([]models.MonthlyStatistics, error)
}

// AlarmStore 报警记录查询与处理
type AlarmStore interface {
	ListRecent(ctx context.Context, limit int) ([]models.AlarmRecord, error)
	HandleAlarm(ctx context.Context, id int64, handler, remark string, at time.Time) error
}

// MonthlyGenerator 手动触发月度汇总
type MonthlyGenerator interface {
	GenerateMonthly(ctx context.Context, year, month int) (*models.MonthlyStatistics, error)
}

// StatisticsHandler 历史统计接口
type StatisticsHandler struct {
	stats     StatisticsStore
	alarms    AlarmStore
	generator MonthlyGenerator
	now       func() time.Time
	logger    *zap.Logger
}

// NewStatisticsHandler 创建统计 Handler
func NewStatisticsHandler(s StatisticsStore, alarms AlarmStore, generator MonthlyGenerator, logger *zap.Logger) *StatisticsHandler {
	return &StatisticsHandler{
		stats:     s,
		alarms:    alarms,
		generator: generator,
		now:       time.Now,
		logger:    logger,
	}
}

func (h *StatisticsHandler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error("Statistics request failed", zap.String("operation", op), zap.Error(err))
	writeJSON(w, http.StatusOK, Fail(err.Error()))
}

// optionalDaily 不存在时返回 nil 而非错误
func (h *StatisticsHandler) optionalDaily(ctx context.Context, day time.Time) (*models.DailyStatistics, error) {
	s, err := h.stats.GetDaily(ctx, day)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return s, err
}

func (h *StatisticsHandler) optionalMonthly(ctx context.Context, year, month int) (*models.MonthlyStatistics, error) {
	s, err := h.stats.GetMonthly(ctx, year, month)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return s, err
}

// GetDaily GET /api/statistics/daily?startDate=&endDate=
func (h *StatisticsHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDate(q.Get("startDate"))
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	end, err := parseDate(q.Get("endDate"))
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if end.Before(start) {
		writeJSON(w, http.StatusOK, Fail("endDate must not be before startDate"))
		return
	}

	list, err := h.stats.ListDailyStatistics(r.Context(), start, end)
	if err != nil {
		h.fail(w, "daily", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(list))
}

// GetRecentDaily GET /api/statistics/daily/recent?days=7
func (h *StatisticsHandler) GetRecentDaily(w http.ResponseWriter, r *http.Request) {
	days := parseInt(r.URL.Query().Get("days"), 7)
	list, err := h.stats.ListRecentDaily(r.Context(), h.now(), days)
	if err != nil {
		h.fail(w, "daily_recent", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(list))
}

// GetToday GET /api/statistics/daily/today
func (h *StatisticsHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	s, err := h.optionalDaily(r.Context(), h.now())
	if err != nil {
		h.fail(w, "daily_today", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

// GetMonthly GET /api/statistics/monthly?year=
func (h *StatisticsHandler) GetMonthly(w http.ResponseWriter, r *http.Request) {
	year := parseInt(r.URL.Query().Get("year"), h.now().Year())
	list, err := h.stats.ListMonthlyByYear(r.Context(), year)
	if err != nil {
		h.fail(w, "monthly", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(list))
}

// GetRecentMonthly GET /api/statistics/monthly/recent?months=12
func (h *StatisticsHandler) GetRecentMonthly(w http.ResponseWriter, r *http.Request) {
	months := parseInt(r.URL.Query().Get("months"), 12)
	list, err := h.stats.ListRecentMonthly(r.Context(), months)
	if err != nil {
		h.fail(w, "monthly_recent", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(list))
}

// GetCurrentMonth GET /api/statistics/monthly/current
func (h *StatisticsHandler) GetCurrentMonth(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	s, err := h.optionalMonthly(r.Context(), now.Year(), int(now.Month()))
	if err != nil {
		h.fail(w, "monthly_current", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

// GetOverview GET /api/statistics/overview
func (h *StatisticsHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()

	today, err := h.optionalDaily(ctx, now)
	if err != nil {
		h.fail(w, "overview", err)
		return
	}
	currentMonth, err := h.optionalMonthly(ctx, now.Year(), int(now.Month()))
	if err != nil {
		h.fail(w, "overview", err)
		return
	}
	weekTrend, err := h.stats.ListRecentDaily(ctx, now, 7)
	if err != nil {
		h.fail(w, "overview", err)
		return
	}
	yearTrend, err := h.stats.ListRecentMonthly(ctx, 12)
	if err != nil {
		h.fail(w, "overview", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"today":        today,
		"currentMonth": currentMonth,
		"weekTrend":    weekTrend,
		"yearTrend":    yearTrend,
	}))
}

// GetAlarms GET /api/statistics/alarms
func (h *StatisticsHandler) GetAlarms(w http.ResponseWriter, r *http.Request) {
	list, err := h.alarms.ListRecent(r.Context(), 10)
	if err != nil {
		h.fail(w, "alarms", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(list))
}

// HandleAlarm POST /api/statistics/alarms/{id}/handle?handler=&remark=
func (h *StatisticsHandler) HandleAlarm(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/statistics/alarms/"), "/handle")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	err = h.alarms.HandleAlarm(r.Context(), id, q.Get("handler"), q.Get("remark"), h.now())
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusOK, Fail(fmt.Sprintf("alarm %d not found", id)))
		return
	}
	if err != nil {
		h.fail(w, "alarm_handle", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}

// GenerateMonthly POST /api/statistics/monthly/generate?year=&month=
func (h *StatisticsHandler) GenerateMonthly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year := parseInt(q.Get("year"), 0)
	month := parseInt(q.Get("month"), 0)
	if year <= 0 || month < 1 || month > 12 {
		writeJSON(w, http.StatusOK, Fail("valid year and month are required"))
		return
	}

	m, err := h.generator.GenerateMonthly(r.Context(), year, month)
	if err != nil {
		h.fail(w, "monthly_generate", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(m))
}

// ExportDaily GET /api/statistics/export/daily?startDate=&endDate=
func (h *StatisticsHandler) ExportDaily(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDate(q.Get("startDate"))
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	end, err := parseDate(q.Get("endDate"))
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	list, err := h.stats.ListDailyStatistics(r.Context(), start, end)
	if err != nil {
		h.fail(w, "export_daily", err)
		return
	}
	data, err := stats.GenerateDailyReport(list)
	if err != nil {
		h.fail(w, "export_daily", err)
		return
	}
	writeXLSX(w, fmt.Sprintf("daily_statistics_%s_%s.xlsx", start.Format("20060102"), end.Format("20060102")), data)
}

// ExportMonthly GET /api/statistics/export/monthly?year=
func (h *StatisticsHandler) ExportMonthly(w http.ResponseWriter, r *http.Request) {
	year := parseInt(r.URL.Query().Get("year"), h.now().Year())
	list, err := h.stats.ListMonthlyByYear(r.Context(), year)
	if err != nil {
		h.fail(w, "export_monthly", err)
		return
	}
	data, err := stats.GenerateMonthlyReport(list)
	if err != nil {
		h.fail(w, "export_monthly", err)
		return
	}
	writeXLSX(w, fmt.Sprintf("monthly_statistics_%d.xlsx", year), data)
}
