package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	// ErrUpstreamUnavailable 云平台请求失败、超时或返回非 200 业务码
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUnauthorized 登录失败
	ErrUnauthorized = errors.New("xinje login failed")
)

// Options 客户端参数，Now 可注入用于测试 token 过期
type Options struct {
	BaseURL    string
	Username   string
	Password   string
	Timeout    time.Duration
	TokenTTL   time.Duration
	RetryCount int
	Now        func() time.Time
}

// Client 信捷云平台 API 客户端
// 持有登录 token 与最近一次成功的项目/设备列表
type Client struct {
	httpClient *resty.Client
	opts       Options
	logger     *zap.Logger

	mu          sync.RWMutex
	token       string
	tokenExpire time.Time

	lastMu       sync.RWMutex
	lastProjects []models.Project
	lastDevices  []models.Device
}

// NewClient 创建信捷云客户端
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 6 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		opts:       opts,
		logger:     logger,
	}
}

// login 登录获取 token（有效期 TokenTTL）
func (c *Client) login(ctx context.Context) (string, error) {
	var env envelope
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"username":  c.opts.Username,
			"password":  c.opts.Password,
			"mode":      "pwd",
			"isEncrypt": "false",
		}).
		ForceContentType("application/json").
		SetResult(&env).
		Get("/api/login")
	if err != nil {
		return "", fmt.Errorf("%w: login request: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK || env.Code != codeOK || env.Token == "" {
		c.logger.Error("Xinje login rejected",
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("code", env.Code),
			zap.String("msg", env.Msg),
		)
		return "", fmt.Errorf("%w: code=%d msg=%s", ErrUnauthorized, env.Code, env.Msg)
	}

	c.mu.Lock()
	c.token = env.Token
	c.tokenExpire = c.opts.Now().Add(c.opts.TokenTTL)
	c.mu.Unlock()

	c.logger.Info("Xinje login successful")
	return env.Token, nil
}

// validToken 返回未过期的 token，必要时重新登录
func (c *Client) validToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	token, expire := c.token, c.tokenExpire
	c.mu.RUnlock()

	if token != "" && c.opts.Now().Before(expire) {
		return token, nil
	}
	return c.login(ctx)
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// call 带 token 请求并解出 data；401 时重新登录重试一次
func (c *Client) call(ctx context.Context, method, path string, query map[string]string, body interface{}, out interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.validToken(ctx)
		if err != nil {
			return err
		}

		var env envelope
		req := c.httpClient.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParams(query).
			ForceContentType("application/json").
			SetResult(&env).
			SetError(&env)
		if body != nil {
			req.SetHeader("Content-Type", "application/json").SetBody(body)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			return fmt.Errorf("%w: %s %s: %v", ErrUpstreamUnavailable, method, path, err)
		}

		if resp.StatusCode() == http.StatusUnauthorized || env.Code == http.StatusUnauthorized {
			c.logger.Warn("Xinje token rejected, re-login", zap.String("path", path))
			c.invalidateToken()
			continue
		}
		if resp.StatusCode() != http.StatusOK || env.Code != codeOK {
			return fmt.Errorf("%w: %s %s status=%d code=%d msg=%s",
				ErrUpstreamUnavailable, method, path, resp.StatusCode(), env.Code, env.Msg)
		}

		if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrUpstreamUnavailable, path, err)
		}
		return nil
	}
	return fmt.Errorf("%w: token rejected twice for %s", ErrUnauthorized, path)
}

// ListProjects 获取项目列表
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var data itemListData
	if err := c.call(ctx, resty.MethodGet, "/api/v1/Item/list", nil, nil, &data); err != nil {
		return nil, err
	}

	projects := make([]models.Project, 0, len(data.List))
	for _, it := range data.List {
		projects = append(projects, models.Project{
			ItemID:        it.ItemID,
			ItemName:      it.ItemName,
			Lnglat:        it.Lnglat,
			ParentGroupID: it.ParentGroupID,
		})
	}

	c.lastMu.Lock()
	c.lastProjects = projects
	c.lastMu.Unlock()

	c.logger.Debug("Fetched xinje projects", zap.Int("count", len(projects)))
	return projects, nil
}

// ListDevices 获取单个项目下的设备
func (c *Client) ListDevices(ctx context.Context, itemID string) ([]models.Device, error) {
	var data []deviceDTO
	if err := c.call(ctx, resty.MethodGet, "/api/v1/deviceconfig/deviceList", map[string]string{"itemId": itemID}, nil, &data); err != nil {
		return nil, err
	}

	devices := make([]models.Device, 0, len(data))
	for _, d := range data {
		status := models.DeviceOnline
		if d.Status != nil {
			status = models.DeviceStatus(*d.Status)
		}
		devices = append(devices, models.Device{
			DeviceID:   d.DeviceID,
			DeviceName: d.DeviceName,
			DeviceType: d.DeviceType,
			ItemID:     itemID,
			Status:     status,
		})
	}
	return devices, nil
}

// ListDevicesWithStatus 获取所有项目的设备（含在线/离线/报警状态）
func (c *Client) ListDevicesWithStatus(ctx context.Context) ([]models.Device, error) {
	projects, err := c.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return c.ListDevicesForProjects(ctx, projects)
}

// ListDevicesForProjects 按已获取的项目列表拉取设备，不再重复请求项目列表
func (c *Client) ListDevicesForProjects(ctx context.Context, projects []models.Project) ([]models.Device, error) {
	all := make([]models.Device, 0)
	for _, p := range projects {
		devices, err := c.ListDevices(ctx, p.ItemID)
		if err != nil {
			return nil, fmt.Errorf("list devices of item %s: %w", p.ItemID, err)
		}
		all = append(all, devices...)
	}

	c.lastMu.Lock()
	c.lastDevices = all
	c.lastMu.Unlock()

	return all, nil
}

// GetItemData 获取项目的加工数据与基础数据（计划数通常在基础数据里）
func (c *Client) GetItemData(ctx context.Context, itemID string) ([]models.DataPoint, error) {
	var itemData []deviceDataDTO
	if err := c.call(ctx, resty.MethodGet, "/api/v1/ItemData/GetItemData",
		map[string]string{"itemId": itemID, "viewId": "0"}, nil, &itemData); err != nil {
		return nil, err
	}

	var baseData []deviceDataDTO
	if err := c.call(ctx, resty.MethodGet, "/api/v1/itemdata/getitembasedata",
		map[string]string{"itemid": itemID}, nil, &baseData); err != nil {
		return nil, err
	}

	points := flattenDataPoints(itemData)
	return append(points, flattenDataPoints(baseData)...), nil
}

// SetValue 写数据点
func (c *Client) SetValue(ctx context.Context, itemID, pointID, value string) (bool, error) {
	body := setValueRequest{
		ItemID:  itemID,
		ViewID:  "0",
		ID:      pointID,
		Value:   value,
		BitMark: -1,
	}
	if err := c.call(ctx, resty.MethodPut, "/api/v1/ItemData/SetValue", nil, body, nil); err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			c.logger.Warn("Xinje set value failed",
				zap.String("item_id", itemID),
				zap.String("point_id", pointID),
				zap.Error(err),
			)
			return false, nil
		}
		return false, err
	}

	c.logger.Info("Xinje value set",
		zap.String("item_id", itemID),
		zap.String("point_id", pointID),
		zap.String("value", value),
	)
	return true, nil
}

// LastGoodProjects 最近一次成功获取的项目列表（可能为空）
func (c *Client) LastGoodProjects() []models.Project {
	c.lastMu.RLock()
	defer c.lastMu.RUnlock()
	return append([]models.Project(nil), c.lastProjects...)
}

// LastGoodDevices 最近一次成功获取的设备列表（可能为空）
func (c *Client) LastGoodDevices() []models.Device {
	c.lastMu.RLock()
	defer c.lastMu.RUnlock()
	return append([]models.Device(nil), c.lastDevices...)
}

func flattenDataPoints(devices []deviceDataDTO) []models.DataPoint {
	var points []models.DataPoint
	for _, d := range devices {
		for _, p := range d.Data {
			points = append(points, models.DataPoint{
				ID:          rawString(p.ID),
				Name:        p.Name,
				DeviceID:    d.DeviceID,
				DeviceName:  d.DeviceName,
				DataType:    p.DataType,
				Unit:        p.Unit,
				Value:       rawString(p.Value),
				ValueString: p.ValueString,
			})
		}
	}
	return points
}
