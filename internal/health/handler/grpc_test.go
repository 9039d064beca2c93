package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"user-directory/internal/health"
)

// mockPinger implements health.Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

func servingStatus(t *testing.T, s *Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestNewServer_StartsNotServing(t *testing.T) {
	srv := NewServer(nil, nil)
	if got := servingStatus(t, srv, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
}

func TestRefresh_NilChecker(t *testing.T) {
	srv := NewServer(nil, nil)
	srv.Refresh(context.Background())
	if got := servingStatus(t, srv, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
}

func TestRefresh_PingerSuccess(t *testing.T) {
	srv := NewServer(health.NewChecker(0).Add("database", &mockPinger{}), nil)
	srv.Refresh(context.Background())
	if got := servingStatus(t, srv, ServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
}

func TestRefresh_PingerFailure(t *testing.T) {
	srv := NewServer(health.NewChecker(0).Add("database", &mockPinger{pingErr: errors.New("connection refused")}), nil)
	srv.Refresh(context.Background())
	if got := servingStatus(t, srv, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
}

func TestHTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name    string
		pingErr error
		want    int
	}{
		{"up", nil, http.StatusOK},
		{"down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(health.NewChecker(0).Add("database", &mockPinger{pingErr: tt.pingErr}), nil)
			r := gin.New()
			r.GET("/healthz", srv.HTTP)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if w.Code != tt.want {
				t.Errorf("code = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
