package di

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"internship-backend/infrastructure/config"
	"internship-backend/infrastructure/persistence/connection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(mode config.HostingMode, uri string) *config.Config {
	return &config.Config{
		ServerAddress:          ":0",
		Environment:            "test",
		HostingMode:            mode,
		DatabaseURI:            uri,
		DatabaseName:           "portal",
		ConnectTimeout:         time.Second,
		ServerSelectionTimeout: time.Second,
		SocketTimeout:          time.Second,
		MaxPoolSize:            10,
		BreakerFailures:        3,
		BreakerCooldown:        time.Second,
		CORSOrigins:            []string{"http://localhost:5173"},
		MemoryWarnBytes:        1 << 20,
		MemoryReclaimBytes:     2 << 20,
		MemorySampleEvery:      time.Minute,
		LogLevel:               "error",
		EnableMetrics:          true,
	}
}

func TestInitializeContainer(t *testing.T) {
	c, err := InitializeContainer(testConfig(config.HostingManaged, "memory://portal"))
	require.NoError(t, err)
	require.NotNil(t, c.Handler)
	assert.True(t, c.Manager.Configured())
	assert.Empty(t, c.Routes.Failed())

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"title":"Backend intern"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/internships", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool                     `json:"success"`
		Data    []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Backend intern", body.Data[0]["title"])
	assert.Equal(t, connection.Connected, c.Manager.State())

	rec = httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "internship_backend_db_connection_state")
}

func TestInitializeContainerUnknownScheme(t *testing.T) {
	c, err := InitializeContainer(testConfig(config.HostingLongRunning, "postgres://db/portal"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProvideLoggerRejectsLevel(t *testing.T) {
	cfg := testConfig(config.HostingManaged, "")
	cfg.LogLevel = "loud"
	_, err := ProvideLogger(cfg)
	assert.Error(t, err)
}

func TestProvideRetryPolicy(t *testing.T) {
	logger, err := ProvideLogger(testConfig(config.HostingManaged, ""))
	require.NoError(t, err)

	assert.IsType(t, connection.Immediate{}, ProvideRetryPolicy(testConfig(config.HostingManaged, ""), logger))
	assert.IsType(t, &connection.Breaker{}, ProvideRetryPolicy(testConfig(config.HostingLongRunning, ""), logger))
}
