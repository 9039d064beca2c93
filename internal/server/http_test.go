package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-directory/internal/health"
	healthhandler "user-directory/internal/health/handler"
	"user-directory/internal/server/middleware"
	userhandler "user-directory/internal/user/handler"
	"user-directory/internal/user/repository"
	"user-directory/internal/user/service"
)

func newTestRouter(limiter *middleware.IPRateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewDirectory(repository.NewMemoryRepository(), nil, nil)
	return NewRouter(HTTPDeps{
		Users:   userhandler.NewHandler(svc, nil),
		Health:  healthhandler.NewServer(health.NewChecker(0), nil),
		Limiter: limiter,
	})
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRouter_RoutesAndEnvelope(t *testing.T) {
	r := newTestRouter(nil)

	w := get(r, "/users/count")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"count":0}}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = get(r, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"up","checks":{}}`, w.Body.String())

	w = get(r, "/nowhere")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":{"code":"RouteNotFound","message":"Route not found"}}`, w.Body.String())
}

func TestRouter_RateLimitSparesHealth(t *testing.T) {
	r := newTestRouter(middleware.NewIPRateLimiter(1, nil))

	assert.Equal(t, http.StatusOK, get(r, "/users").Code)
	w := get(r, "/users")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":{"code":"RateLimited","message":"Too many requests"}}`, w.Body.String())

	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)
}

func TestRouter_RecoversPanics(t *testing.T) {
	r := newTestRouter(nil)
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := get(r, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"InternalError"`)
}

func TestNewGRPCServer_RegistersHealth(t *testing.T) {
	s := NewGRPCServer(healthhandler.NewServer(nil, nil), nil)
	defer s.Stop()
	_, ok := s.GetServiceInfo()["grpc.health.v1.Health"]
	assert.True(t, ok)
}
