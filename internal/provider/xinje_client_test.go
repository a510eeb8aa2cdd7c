package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeXinje 模拟信捷云平台
type fakeXinje struct {
	mu         sync.Mutex
	logins     int32
	itemLists  int32
	rejectNext bool
	failItems  bool
	lastBody   []byte
}

func (f *fakeXinje) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
	authed := func(w http.ResponseWriter, r *http.Request) bool {
		f.mu.Lock()
		reject := f.rejectNext
		f.rejectNext = false
		f.mu.Unlock()
		if reject || r.Header.Get("Authorization") != "Bearer tok-1" {
			write(w, http.StatusUnauthorized, `{"code":401,"msg":"token expired"}`)
			return false
		}
		return true
	}

	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.logins, 1)
		q := r.URL.Query()
		if q.Get("username") != "admin" || q.Get("password") != "secret" || q.Get("mode") != "pwd" {
			write(w, http.StatusOK, `{"code":500,"msg":"bad credentials"}`)
			return
		}
		write(w, http.StatusOK, `{"code":200,"token":"tok-1"}`)
	})
	mux.HandleFunc("/api/v1/Item/list", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.itemLists, 1)
		if !authed(w, r) {
			return
		}
		f.mu.Lock()
		fail := f.failItems
		f.mu.Unlock()
		if fail {
			write(w, http.StatusInternalServerError, `{"code":500,"msg":"boom"}`)
			return
		}
		write(w, http.StatusOK, `{"code":200,"data":{"list":[
			{"itemId":"p1","itemName":"一车间","lnglat":"120.1,30.2","parentGroupId":"g1"},
			{"itemId":"p2","itemName":"二车间"}]}}`)
	})
	mux.HandleFunc("/api/v1/deviceconfig/deviceList", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		switch r.URL.Query().Get("itemId") {
		case "p1":
			write(w, http.StatusOK, `{"code":200,"data":[
				{"deviceId":"d1","deviceName":"注塑机1","deviceType":"PLC","status":2},
				{"deviceId":"d2","deviceName":"注塑机2","status":0}]}`)
		default:
			write(w, http.StatusOK, `{"code":200,"data":[{"deviceId":"d3","deviceName":"冲床"}]}`)
		}
	})
	mux.HandleFunc("/api/v1/ItemData/GetItemData", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		assert.Equal(t, "0", r.URL.Query().Get("viewId"))
		write(w, http.StatusOK, `{"code":200,"data":[{"deviceId":"d1","deviceName":"注塑机1","data":[
			{"id":101,"name":"今日产量","data_type":1,"unit":"件","value":"120"},
			{"id":"102","name":"温度","data_type":2,"value":65.5}]}]}`)
	})
	mux.HandleFunc("/api/v1/itemdata/getitembasedata", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		assert.Equal(t, "p1", r.URL.Query().Get("itemid"))
		write(w, http.StatusOK, `{"code":200,"data":[{"deviceId":"d1","deviceName":"注塑机1","data":[
			{"id":"201","name":"生产计划数","data_type":1,"value":"500"}]}]}`)
	})
	mux.HandleFunc("/api/v1/ItemData/SetValue", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		assert.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.lastBody = body
		f.mu.Unlock()
		write(w, http.StatusOK, `{"code":200}`)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeXinje, now func() time.Time) *Client {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:  srv.URL,
		Username: "admin",
		Password: "secret",
		Timeout:  2 * time.Second,
		TokenTTL: time.Hour,
		Now:      now,
	}, zap.NewNop())
}

func TestClient_ListDevicesWithStatus(t *testing.T) {
	f := &fakeXinje{}
	c := newTestClient(t, f, nil)

	devices, err := c.ListDevicesWithStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 3)

	assert.Equal(t, models.DeviceAlarm, devices[0].Status)
	assert.Equal(t, "p1", devices[0].ItemID)
	assert.Equal(t, models.DeviceOffline, devices[1].Status)
	assert.Equal(t, models.DeviceOnline, devices[2].Status, "missing status defaults to online")
	assert.Equal(t, "p2", devices[2].ItemID)

	assert.Len(t, c.LastGoodDevices(), 3)
	assert.Len(t, c.LastGoodProjects(), 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.logins), "token reused across calls")
}

func TestClient_ListDevicesForProjects_ReusesProjectList(t *testing.T) {
	f := &fakeXinje{}
	c := newTestClient(t, f, nil)

	projects := []models.Project{{ItemID: "p1"}, {ItemID: "p2"}}
	devices, err := c.ListDevicesForProjects(context.Background(), projects)
	require.NoError(t, err)
	require.Len(t, devices, 3)
	assert.Equal(t, "p1", devices[0].ItemID)
	assert.Equal(t, "p2", devices[2].ItemID)

	assert.Equal(t, int32(0), atomic.LoadInt32(&f.itemLists), "project list is not fetched again")
	assert.Len(t, c.LastGoodDevices(), 3)

	empty, err := c.ListDevicesForProjects(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestClient_GetItemData_MergesBaseData(t *testing.T) {
	f := &fakeXinje{}
	c := newTestClient(t, f, nil)

	points, err := c.GetItemData(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, "101", points[0].ID)
	assert.Equal(t, "120", points[0].Value)
	assert.Equal(t, "d1", points[0].DeviceID)
	assert.Equal(t, "65.5", points[1].Value)
	assert.Equal(t, "生产计划数", points[2].Name)
}

func TestClient_TokenExpiryTriggersRelogin(t *testing.T) {
	f := &fakeXinje{}
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	c := newTestClient(t, f, func() time.Time { return now })

	_, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	now = now.Add(30 * time.Minute)
	_, err = c.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.logins))

	now = now.Add(time.Hour)
	_, err = c.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.logins))
}

func TestClient_UnauthorizedResponseRelogins(t *testing.T) {
	f := &fakeXinje{}
	c := newTestClient(t, f, nil)

	_, err := c.ListProjects(context.Background())
	require.NoError(t, err)

	f.mu.Lock()
	f.rejectNext = true
	f.mu.Unlock()

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.logins))
}

func TestClient_UpstreamFailureKeepsLastGood(t *testing.T) {
	f := &fakeXinje{}
	c := newTestClient(t, f, nil)

	_, err := c.ListProjects(context.Background())
	require.NoError(t, err)

	f.mu.Lock()
	f.failItems = true
	f.mu.Unlock()

	_, err = c.ListProjects(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.Len(t, c.LastGoodProjects(), 2)
}

func TestClient_LoginRejected(t *testing.T) {
	f := &fakeXinje{}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Username: "admin", Password: "wrong"}, zap.NewNop())
	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestClient_SetValue(t *testing.T) {
	f := &fakeXinje{}
	c := newTestClient(t, f, nil)

	ok, err := c.SetValue(context.Background(), "p1", "101", "42")
	require.NoError(t, err)
	assert.True(t, ok)

	var body map[string]interface{}
	f.mu.Lock()
	require.NoError(t, json.Unmarshal(f.lastBody, &body))
	f.mu.Unlock()
	assert.Equal(t, "p1", body["itemId"])
	assert.Equal(t, "0", body["viewId"])
	assert.Equal(t, "101", body["id"])
	assert.Equal(t, "42", body["value"])
	assert.Equal(t, float64(-1), body["bitMark"])
}
