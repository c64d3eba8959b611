package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zoeyai/riftbot/pkg/lcu"
	"github.com/zoeyai/riftbot/pkg/match"
	"github.com/zoeyai/riftbot/pkg/telemetry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fixedStatus match.Status

func (f fixedStatus) Status() match.Status { return match.Status(f) }

func newTestServer(snap *telemetry.Snapshot, opts Options) *Server {
	provider := fixedStatus{SessionID: "abc", QueueID: 1700, Phase: lcu.PhaseInProgress, LoopRunning: true}
	return New(provider, func() *telemetry.Snapshot { return snap }, opts)
}

func TestStatusEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(nil, Options{Version: "1.2.3"}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	var body StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if body.SessionID != "abc" || body.QueueID != 1700 || body.Phase != lcu.PhaseInProgress || !body.LoopRunning {
		t.Errorf("状态不正确: %+v", body)
	}
	if body.Version != "1.2.3" {
		t.Errorf("版本不正确: %s", body.Version)
	}
}

func TestTelemetryEndpoint(t *testing.T) {
	empty := httptest.NewServer(newTestServer(nil, Options{}).Handler())
	defer empty.Close()

	resp, err := http.Get(empty.URL + "/telemetry")
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("无数据时应返回 204, 实际 %d", resp.StatusCode)
	}

	snap := &telemetry.Snapshot{}
	snap.ActivePlayer.Level = 7
	full := httptest.NewServer(newTestServer(snap, Options{}).Handler())
	defer full.Close()

	resp, err = http.Get(full.URL + "/telemetry")
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	var got telemetry.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if got.ActivePlayer.Level != 7 {
		t.Errorf("等级应为 7, 实际 %d", got.ActivePlayer.Level)
	}
}

func TestSystemEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(nil, Options{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/system")
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	var body SystemResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if body.OS == "" || body.Goroutines == 0 {
		t.Errorf("系统信息不完整: %+v", body)
	}
	t.Logf("系统信息: %+v", body)
}

func TestUnknownRoute(t *testing.T) {
	srv := httptest.NewServer(newTestServer(nil, Options{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("未知路由应返回 404, 实际 %d", resp.StatusCode)
	}
}

func TestGRPCHealth(t *testing.T) {
	s := newTestServer(nil, Options{GRPCAddr: "127.0.0.1:0", HTTPAddr: "127.0.0.1:0"})
	if err := s.Start(); err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	defer s.Shutdown(context.Background())

	conn, err := grpc.NewClient(s.GRPCAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("连接失败: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			t.Fatalf("健康检查失败: %v", err)
		}
		return resp.Status
	}

	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("启动前应为 NOT_SERVING, 实际 %v", got)
	}
	s.SetServing(true)
	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("应为 SERVING, 实际 %v", got)
	}

	resp, err := http.Get("http://" + s.HTTPAddr() + "/healthz")
	if err != nil {
		t.Fatalf("HTTP 请求失败: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz 应返回 200, 实际 %d", resp.StatusCode)
	}
}
