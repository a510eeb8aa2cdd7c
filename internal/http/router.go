package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux，外层包一层请求指标
type Router struct {
	mux     *http.ServeMux
	handler http.Handler
	logger  *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	mux := http.NewServeMux()
	return &Router{
		mux:     mux,
		handler: withMetrics(mux),
		logger:  logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics、websocket）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// method 限定请求方法
func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != m {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterMonitorRoutes 实时数据接口
func (r *Router) RegisterMonitorRoutes(m *MonitorHandler) {
	r.Handle("/api/dashboard", method(http.MethodGet, m.GetDashboard))
	r.Handle("/api/projects", method(http.MethodGet, m.GetProjects))
	r.Handle("/api/devices", method(http.MethodGet, m.GetDevices))
	r.Handle("/api/devices/all", method(http.MethodGet, m.GetAllDevices))
	r.Handle("/api/data", method(http.MethodGet, m.GetData))
	r.Handle("/api/data/set", method(http.MethodPost, m.SetValue))
	r.Handle("/api/health", method(http.MethodGet, m.GetHealth))
}

// RegisterStatisticsRoutes 历史统计接口（仅在启用数据库时注册）
func (r *Router) RegisterStatisticsRoutes(s *StatisticsHandler) {
	r.Handle("/api/statistics/daily", method(http.MethodGet, s.GetDaily))
	r.Handle("/api/statistics/daily/recent", method(http.MethodGet, s.GetRecentDaily))
	r.Handle("/api/statistics/daily/today", method(http.MethodGet, s.GetToday))
	r.Handle("/api/statistics/monthly", method(http.MethodGet, s.GetMonthly))
	r.Handle("/api/statistics/monthly/recent", method(http.MethodGet, s.GetRecentMonthly))
	r.Handle("/api/statistics/monthly/current", method(http.MethodGet, s.GetCurrentMonth))
	r.Handle("/api/statistics/monthly/generate", method(http.MethodPost, s.GenerateMonthly))
	r.Handle("/api/statistics/overview", method(http.MethodGet, s.GetOverview))
	r.Handle("/api/statistics/alarms", method(http.MethodGet, s.GetAlarms))
	r.Handle("/api/statistics/export/daily", method(http.MethodGet, s.ExportDaily))
	r.Handle("/api/statistics/export/monthly", method(http.MethodGet, s.ExportMonthly))

	// alarms/{id}/handle
	r.Handle("/api/statistics/alarms/", func(w http.ResponseWriter, req *http.Request) {
		if !strings.HasSuffix(req.URL.Path, "/handle") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.HandleAlarm(w, req)
	})
}
