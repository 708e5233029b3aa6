package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"device-management-service/internal/domain/models"
	"device-management-service/internal/domain/services/container"
	"device-management-service/internal/infrastructure/cache"
	"device-management-service/internal/infrastructure/config"
)

type publishedEvent struct {
	EventType string
	DeviceID  string
	Data      interface{}
}

// recordingPublisher captures events instead of talking to a broker
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishDeviceEvent(eventType, deviceID string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{EventType: eventType, DeviceID: deviceID, Data: data})
}

func (p *recordingPublisher) IsConnected() bool { return true }
func (p *recordingPublisher) Close() error      { return nil }

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType)
	}
	return types
}

type testEnv struct {
	router    *gin.Engine
	publisher *recordingPublisher
	redis     *miniredis.Miniredis
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Device{}, &models.User{}))

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{Username: "admin", Password: string(hash)}).Error)

	mr := miniredis.RunT(t)
	cfg := &config.Config{
		AppName:                  "Device Management Service",
		AppVersion:               "1.0.0",
		Debug:                    true,
		RedisHost:                mr.Host(),
		RedisPort:                mr.Port(),
		JWTSecretKey:             "test-secret",
		JWTAlgorithm:             "HS256",
		AccessTokenExpireMinutes: 30,
		CacheTTL:                 time.Hour,
		DeviceHeartbeatTimeout:   300 * time.Second,
		DefaultPageSize:          10,
		MaxPageSize:              100,
	}

	deviceCache, err := cache.NewDeviceCache(cfg, zap.NewNop())
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	serviceContainer := container.NewServiceContainer(db, cfg, deviceCache, publisher, nil)
	t.Cleanup(serviceContainer.Close)

	return &testEnv{
		router:    SetupRouter(serviceContainer),
		publisher: publisher,
		redis:     mr,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	w, env := e.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": "admin",
		"password": "admin123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.NotEmpty(t, result.Token)
	return result.Token
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	w, _ := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.Equal(t, "connected", body["redis"])
	assert.Equal(t, "connected", body["rabbitmq"])
}

func TestServiceInfo(t *testing.T) {
	env := setupTestEnv(t)

	w, env2 := env.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", env2.Message)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := setupTestEnv(t)

	w, body := env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": "admin",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid username or password", body.Message)
}

func TestAuthenticationRequired(t *testing.T) {
	env := setupTestEnv(t)

	w, body := env.do(t, http.MethodGet, "/api/v1/devices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authorization header missing", body.Message)

	w, body = env.do(t, http.MethodGet, "/api/v1/devices", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or expired token", body.Message)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	req.Header.Set("Authorization", "NotBearer xyz")
	w2 := httptest.NewRecorder()
	env.router.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
	assert.Contains(t, w2.Body.String(), "must be Bearer")
}

func TestHealthSummaryIsPublic(t *testing.T) {
	env := setupTestEnv(t)

	w, body := env.do(t, http.MethodGet, "/api/v1/devices/health/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &summary))
	assert.Equal(t, float64(0), summary["total_devices"])
}

func TestCreateDeviceValidation(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t)

	// Unknown device type.
	w, _ := env.do(t, http.MethodPost, "/api/v1/devices", token, gin.H{
		"device_id":   "dev-1",
		"name":        "Thing",
		"device_type": "toaster",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Business id too short.
	w, _ = env.do(t, http.MethodPost, "/api/v1/devices", token, gin.H{
		"device_id":   "ab",
		"name":        "Thing",
		"device_type": "sensor",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusUpdateValidation(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t)

	w, _ := env.do(t, http.MethodPost, "/api/v1/devices", token, gin.H{
		"device_id":   "dev-1",
		"name":        "Sensor",
		"device_type": "sensor",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/v1/devices/dev-1/status", token, gin.H{
		"status":        "online",
		"battery_level": 150,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/v1/devices/dev-1/status", token, gin.H{
		"status": "rebooting",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeviceLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t)

	// Create.
	w, body := env.do(t, http.MethodPost, "/api/v1/devices", token, gin.H{
		"device_id":   "dev-1",
		"name":        "Temperature Sensor",
		"device_type": "sensor",
		"location":    "Warehouse A",
		"config":      gin.H{"interval": 30},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.DeviceResponse
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, "dev-1", created.DeviceID)
	assert.Equal(t, models.DeviceStatusOffline, created.Status)
	assert.Equal(t, "1.0.0", created.FirmwareVersion)
	assert.Nil(t, created.BatteryLevel)
	assert.Nil(t, created.LastSeen)
	// Owner defaults to the authenticated subject.
	require.NotNil(t, created.OwnerID)
	assert.Equal(t, "admin", *created.OwnerID)

	// Create is write-through cached.
	assert.True(t, env.redis.Exists("device:dev-1"))

	// Duplicate id.
	w, body = env.do(t, http.MethodPost, "/api/v1/devices", token, gin.H{
		"device_id":   "dev-1",
		"name":        "Impostor",
		"device_type": "gateway",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Device with ID dev-1 already exists", body.Message)

	// Fetch.
	w, body = env.do(t, http.MethodGet, "/api/v1/devices/dev-1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched models.DeviceResponse
	require.NoError(t, json.Unmarshal(body.Data, &fetched))
	assert.Equal(t, "Temperature Sensor", fetched.Name)
	assert.Equal(t, map[string]interface{}{"interval": float64(30)}, fetched.Config)

	// List.
	w, body = env.do(t, http.MethodGet, "/api/v1/devices?page=1&page_size=10", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list models.DeviceListResponse
	require.NoError(t, json.Unmarshal(body.Data, &list))
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, int64(1), list.TotalPages)
	require.Len(t, list.Devices, 1)

	// Partial update; device_id in the body is ignored.
	w, body = env.do(t, http.MethodPut, "/api/v1/devices/dev-1", token, gin.H{
		"device_id": "dev-999",
		"name":      "Renamed Sensor",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.DeviceResponse
	require.NoError(t, json.Unmarshal(body.Data, &updated))
	assert.Equal(t, "dev-1", updated.DeviceID)
	assert.Equal(t, "Renamed Sensor", updated.Name)

	// Heartbeat.
	w, body = env.do(t, http.MethodPost, "/api/v1/devices/dev-1/status", token, gin.H{
		"status":          "online",
		"battery_level":   85,
		"signal_strength": -42,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var afterStatus models.DeviceResponse
	require.NoError(t, json.Unmarshal(body.Data, &afterStatus))
	assert.Equal(t, models.DeviceStatusOnline, afterStatus.Status)
	require.NotNil(t, afterStatus.BatteryLevel)
	assert.Equal(t, 85.0, *afterStatus.BatteryLevel)
	require.NotNil(t, afterStatus.LastSeen)

	// Fleet summary reflects the heartbeat.
	w, body = env.do(t, http.MethodGet, "/api/v1/devices/health/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &summary))
	assert.Equal(t, float64(1), summary["total_devices"])
	assert.Equal(t, float64(1), summary["online"])
	assert.Equal(t, float64(100), summary["health_percentage"])

	// Delete.
	w, _ = env.do(t, http.MethodDelete, "/api/v1/devices/dev-1", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())

	// The cache must not resurrect the deleted device.
	assert.False(t, env.redis.Exists("device:dev-1"))
	w, _ = env.do(t, http.MethodGet, "/api/v1/devices/dev-1", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, []string{"created", "updated", "status_updated", "deleted"}, env.publisher.eventTypes())
}

func TestGetDeviceServedFromCache(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t)

	w, _ := env.do(t, http.MethodPost, "/api/v1/devices", token, gin.H{
		"device_id":   "dev-1",
		"name":        "Sensor",
		"device_type": "sensor",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Overwrite the cached snapshot; a cache-first read must surface it.
	require.NoError(t, env.redis.Set("device:dev-1",
		`{"device_id":"dev-1","name":"From Cache","device_type":"sensor","status":"offline"}`))

	w, body := env.do(t, http.MethodGet, "/api/v1/devices/dev-1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched models.DeviceResponse
	require.NoError(t, json.Unmarshal(body.Data, &fetched))
	assert.Equal(t, "From Cache", fetched.Name)
}

func TestListPagination(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t)

	for i := 0; i < 25; i++ {
		w, _ := env.do(t, http.MethodPost, "/api/v1/devices", token, gin.H{
			"device_id":   fmt.Sprintf("dev-%03d", i),
			"name":        fmt.Sprintf("Device %d", i),
			"device_type": "sensor",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, body := env.do(t, http.MethodGet, "/api/v1/devices?page=3&page_size=10", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list models.DeviceListResponse
	require.NoError(t, json.Unmarshal(body.Data, &list))
	assert.Equal(t, int64(25), list.Total)
	assert.Equal(t, int64(3), list.TotalPages)
	assert.Len(t, list.Devices, 5)

	// page_size above the cap is a validation error.
	w, _ = env.do(t, http.MethodGet, "/api/v1/devices?page_size=500", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListZeroPagingParams(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t)

	for i := 0; i < 15; i++ {
		w, _ := env.do(t, http.MethodPost, "/api/v1/devices", token, gin.H{
			"device_id":   fmt.Sprintf("dev-%03d", i),
			"name":        fmt.Sprintf("Device %d", i),
			"device_type": "sensor",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	// Explicit zeros bypass the omitempty binding checks; they must be
	// clamped to the defaults, never panic or 500.
	w, body := env.do(t, http.MethodGet, "/api/v1/devices?page_size=0", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list models.DeviceListResponse
	require.NoError(t, json.Unmarshal(body.Data, &list))
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 10, list.PageSize)
	assert.Equal(t, int64(15), list.Total)
	assert.Equal(t, int64(2), list.TotalPages)
	assert.Len(t, list.Devices, 10)

	w, body = env.do(t, http.MethodGet, "/api/v1/devices?page=0&page_size=0", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(body.Data, &list))
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 10, list.PageSize)
	assert.Len(t, list.Devices, 10)
}

func TestUpdateUnknownDevice(t *testing.T) {
	env := setupTestEnv(t)
	token := env.login(t)

	w, body := env.do(t, http.MethodPut, "/api/v1/devices/ghost", token, gin.H{"name": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Device not found", body.Message)

	w, _ = env.do(t, http.MethodDelete, "/api/v1/devices/ghost", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
