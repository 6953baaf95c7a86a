package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockpanel/panel/internal/docker"
	"github.com/blockpanel/panel/internal/middleware"
	"github.com/blockpanel/panel/internal/models"
	"github.com/blockpanel/panel/internal/service"
	"github.com/blockpanel/panel/internal/store"
	"github.com/blockpanel/panel/pkg/config"
)

// stubRuntime satisfies docker.ContainerRuntime with an empty daemon
type stubRuntime struct{}

func (stubRuntime) ListByLabel(ctx context.Context, label, value string, runningOnly bool) ([]docker.ContainerInfo, error) {
	return nil, nil
}
func (stubRuntime) ComposeUp(ctx context.Context, project, manifestPath string) error   { return nil }
func (stubRuntime) ComposeStop(ctx context.Context, project, manifestPath string) error { return nil }
func (stubRuntime) ComposeDown(ctx context.Context, project, manifestPath string) error { return nil }
func (stubRuntime) Stats(ctx context.Context, containerID string) (*docker.ResourceStats, error) {
	return nil, nil
}
func (stubRuntime) Logs(ctx context.Context, containerID string, tail int, since time.Time) (string, error) {
	return "", nil
}

func newTestServer(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	cfg := &config.Config{
		AppName:         "test-panel",
		FrontendOrigin:  "http://localhost:5173",
		ConfigDir:       filepath.Join(dir, "config"),
		ComposeFilePath: filepath.Join(dir, "docker-compose.yml"),
		ServersDataPath: filepath.Join(dir, "servers"),
		ComposeTimeout:  5,
		AdminUsername:   "admin",
		AdminPassword:   "hunter2",
		JWTSecret:       "test-secret",
	}

	st, err := store.New(cfg.ConfigDir, cfg.ComposeFilePath)
	require.NoError(t, err)

	lifecycle := service.NewLifecycleService(st, stubRuntime{}, service.NewConsoleService(), cfg)

	authService, err := service.NewAuthService(cfg)
	require.NoError(t, err)
	middleware.SetAuthService(authService)

	router := SetupRouter(
		NewAuthHandler(authService),
		NewHandler(st, lifecycle),
		NewConsoleHandler(lifecycle, cfg.FrontendOrigin),
		lifecycle,
		cfg,
	)

	token, err := authService.GenerateToken("admin")
	require.NoError(t, err)
	return router, token
}

func doRequest(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doRequest(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServersRequireAuth(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doRequest(router, http.MethodGet, "/api/servers", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/servers", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doRequest(router, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "admin",
		"password": "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])

	rec = doRequest(router, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "admin",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListServers(t *testing.T) {
	router, token := newTestServer(t)

	rec := doRequest(router, http.MethodGet, "/api/servers", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var configs []models.ServerConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &configs))
	require.Len(t, configs, 2)
	assert.Equal(t, "daily", configs[0].ID)
	assert.Equal(t, "weekend", configs[1].ID)
}

func TestCreateUpdateDeleteServer(t *testing.T) {
	router, token := newTestServer(t)

	rec := doRequest(router, http.MethodPost, "/api/servers", token, gin.H{
		"id":   "events",
		"motd": "Event night",
		"port": 25600,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.ServerConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "events", created.ID)
	assert.Equal(t, "Event night", created.MOTD)
	assert.Equal(t, 25600, created.Port)

	// Duplicate create conflicts
	rec = doRequest(router, http.MethodPost, "/api/servers", token, gin.H{"id": "events"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Invalid id is rejected
	rec = doRequest(router, http.MethodPost, "/api/servers", token, gin.H{"id": "bad id!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Partial update
	rec = doRequest(router, http.MethodPut, "/api/servers/events", token, gin.H{
		"maxPlayers": 50,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.ServerConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, 50, updated.MaxPlayers)
	assert.Equal(t, "Event night", updated.MOTD)

	// Delete
	rec = doRequest(router, http.MethodDelete, "/api/servers/events", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/servers/events", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivationSwitch(t *testing.T) {
	router, token := newTestServer(t)

	rec := doRequest(router, http.MethodPut, "/api/servers/weekend", token, gin.H{
		"active": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/servers/daily", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var daily models.ServerConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &daily))
	assert.False(t, daily.Active)
}

func TestStatusEndpoints(t *testing.T) {
	router, token := newTestServer(t)

	rec := doRequest(router, http.MethodGet, "/api/servers/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var statuses map[string]models.ServerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	assert.Equal(t, models.StatusNotFound, statuses["daily"])
	assert.Equal(t, models.StatusNotFound, statuses["weekend"])

	rec = doRequest(router, http.MethodGet, "/api/servers/daily/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"not_found"}`, rec.Body.String())
}

func TestResourcesEndpoint(t *testing.T) {
	router, token := newTestServer(t)

	rec := doRequest(router, http.MethodGet, "/api/servers/daily/resources", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cpuUsage":"N/A","memoryUsage":"N/A","memoryLimit":"N/A"}`, rec.Body.String())
}

func TestLogsEndpointValidatesSince(t *testing.T) {
	router, token := newTestServer(t)

	rec := doRequest(router, http.MethodGet, "/api/servers/daily/logs?since=yesterday", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/servers/daily/logs?tail=50", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLifecycleActions(t *testing.T) {
	router, token := newTestServer(t)

	for _, action := range []string{"start", "stop", "restart", "clear-data"} {
		rec := doRequest(router, http.MethodPost, "/api/servers/daily/"+action, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, action)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String(), action)
	}
}

func TestCommandRequiresRunningServer(t *testing.T) {
	router, token := newTestServer(t)

	rec := doRequest(router, http.MethodPost, "/api/servers/daily/command", token, gin.H{
		"command":      "list",
		"rconPort":     25575,
		"rconPassword": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result service.CommandResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
}
