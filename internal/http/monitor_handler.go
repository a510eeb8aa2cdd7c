package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"go.uber.org/zap"
)

// SnapshotReader 当前缓存快照
type SnapshotReader interface {
	Current() *models.DashboardSnapshot
	Get() (*models.DashboardSnapshot, bool)
}

// DeviceProvider 上游设备平台
type DeviceProvider interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListDevices(ctx context.Context, itemID string) ([]models.Device, error)
	ListDevicesWithStatus(ctx context.Context) ([]models.Device, error)
	GetItemData(ctx context.Context, itemID string) ([]models.DataPoint, error)
	SetValue(ctx context.Context, itemID, pointID, value string) (bool, error)
	LastGoodProjects() []models.Project
	LastGoodDevices() []models.Device
}

// SubscriberCounter 当前订阅者数量
type SubscriberCounter interface {
	Count() int
}

// MonitorHandler 大屏实时数据接口
type MonitorHandler struct {
	cache    SnapshotReader
	provider DeviceProvider
	hub      SubscriberCounter
	logger   *zap.Logger
}

// NewMonitorHandler 创建实时数据 Handler
func NewMonitorHandler(cache SnapshotReader, provider DeviceProvider, hub SubscriberCounter, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{cache: cache, provider: provider, hub: hub, logger: logger}
}

// GetDashboard GET /api/dashboard
func (h *MonitorHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.cache.Current()))
}

// GetProjects GET /api/projects，上游失败时返回最近一次成功的列表
func (h *MonitorHandler) GetProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.provider.ListProjects(r.Context())
	if err != nil {
		h.logger.Warn("Failed to list projects, serving last good list", zap.Error(err))
		projects = h.provider.LastGoodProjects()
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSON(w, http.StatusOK, Ok(projects))
}

// GetDevices GET /api/devices?projectId=
func (h *MonitorHandler) GetDevices(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		writeJSON(w, http.StatusOK, Fail("projectId is required"))
		return
	}

	devices, err := h.provider.ListDevices(r.Context(), projectID)
	if err != nil {
		h.logger.Warn("Failed to list devices, serving last good list",
			zap.String("project_id", projectID),
			zap.Error(err))
		devices = make([]models.Device, 0)
		for _, d := range h.provider.LastGoodDevices() {
			if d.ItemID == projectID {
				devices = append(devices, d)
			}
		}
	}
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, Ok(devices))
}

// GetAllDevices GET /api/devices/all
func (h *MonitorHandler) GetAllDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.provider.ListDevicesWithStatus(r.Context())
	if err != nil {
		h.logger.Warn("Failed to list all devices, serving last good list", zap.Error(err))
		devices = h.provider.LastGoodDevices()
	}
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, Ok(devices))
}

// GetData GET /api/data?projectId=
func (h *MonitorHandler) GetData(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		writeJSON(w, http.StatusOK, Fail("projectId is required"))
		return
	}

	points, err := h.provider.GetItemData(r.Context(), projectID)
	if err != nil {
		h.logger.Warn("Failed to get item data", zap.String("project_id", projectID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("upstream unavailable"))
		return
	}
	if points == nil {
		points = []models.DataPoint{}
	}
	writeJSON(w, http.StatusOK, Ok(points))
}

type setValueRequest struct {
	ProjectID string `json:"projectId"`
	PointID   string `json:"pointId"`
	Value     string `json:"value"`
}

// SetValue POST /api/data/set
func (h *MonitorHandler) SetValue(w http.ResponseWriter, r *http.Request) {
	var req setValueRequest
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	if req.ProjectID == "" || req.PointID == "" {
		writeJSON(w, http.StatusOK, Fail("projectId and pointId are required"))
		return
	}

	ok, err := h.provider.SetValue(r.Context(), req.ProjectID, req.PointID, req.Value)
	if err != nil {
		h.logger.Error("Failed to set value",
			zap.String("project_id", req.ProjectID),
			zap.String("point_id", req.PointID),
			zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, Fail("set value rejected by upstream"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}

// GetHealth GET /api/health
func (h *MonitorHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":      "UP",
		"subscribers": h.hub.Count(),
		"timestamp":   time.Now().UnixMilli(),
	}
	if snap, ok := h.cache.Get(); ok {
		resp["lastUpdate"] = snap.UpdateTime
	} else {
		resp["lastUpdate"] = nil
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}
