package httpapi

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/metrics"
)

// statusRecorder 记录响应状态码；保留 Hijacker 以支持 websocket 升级
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// routeLabel 收敛带 id 的路径，避免指标基数膨胀
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/statistics/alarms/"):
		return "/api/statistics/alarms/{id}/handle"
	case strings.HasPrefix(path, "/api/"), path == "/ws/monitor", path == "/metrics":
		return path
	default:
		return "other"
	}
}

// withMetrics 记录请求数和耗时
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		path := routeLabel(req.URL.Path)
		metrics.HTTPRequests.WithLabelValues(req.Method, path, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(req.Method, path).Observe(time.Since(start).Seconds())
	})
}
