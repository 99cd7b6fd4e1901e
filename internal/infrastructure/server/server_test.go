package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/GriffinCanCode/AgentOS/monitor/internal/infrastructure/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Logging.Development = true
	cfg.Logging.Level = "error"

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return srv
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthReportsDisconnectedSession(t *testing.T) {
	srv := newTestServer(t)

	w := serve(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "disconnected", body["session"])
	assert.NotContains(t, body, "run_id")
}

func TestRequestsAreRecorded(t *testing.T) {
	srv := newTestServer(t)

	w := serve(srv, http.MethodGet, "/users/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id": "1", "name": "Ada"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Transaction-ID"))

	w = serve(srv, http.MethodGet, "/users/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 2, srv.Harvester().Pending())
}

func TestCheckout(t *testing.T) {
	srv := newTestServer(t)

	w := serve(srv, http.MethodPost, "/checkout", `{"sku": "BOOK", "quantity": 2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sku": "book", "quantity": 2, "charged_cents": 2598}`, w.Body.String())

	w = serve(srv, http.MethodPost, "/checkout", `{"sku": "book", "quantity": 50}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = serve(srv, http.MethodPost, "/checkout", `{"quantity": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(srv, http.MethodGet, "/health", "")
	var body map[string]any
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["orders_completed"])
}

func TestGRPCRequestsAreRecorded(t *testing.T) {
	srv := newTestServer(t)

	lis := bufconn.Listen(1 << 20)
	go func() {
		_ = srv.GRPCServer().Serve(lis)
	}()
	t.Cleanup(srv.GRPCServer().Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	assert.Equal(t, 1, srv.Harvester().Pending())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	serve(srv, http.MethodGet, "/users/2", "")

	w := serve(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `monitor_http_requests_total{method="GET",path="/users/:id",status="200"} 1`)
	assert.Contains(t, w.Body.String(), "monitor_transactions_recorded_total 1")
}

func TestNewServerRejectsUnknownEncoding(t *testing.T) {
	cfg := config.Default()
	cfg.Collector.Encoding = "br"

	_, err := NewServer(cfg)
	assert.Error(t, err)
}

func TestCORSExposesTransactionHeader(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	req.Header.Set("Origin", "http://dashboard.example.com")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Transaction-Id")
}
