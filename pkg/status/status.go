// Package status 运行状态查询：HTTP (chi) 与 gRPC 健康检查
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/zoeyai/riftbot/internal/logger"
	"github.com/zoeyai/riftbot/pkg/match"
	"github.com/zoeyai/riftbot/pkg/telemetry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName gRPC 健康检查服务名
const ServiceName = "riftbot"

// StatusProvider 控制器状态来源
type StatusProvider interface {
	Status() match.Status
}

// TelemetryFunc 返回最新遥测数据，可能为 nil
type TelemetryFunc func() *telemetry.Snapshot

// Options 服务配置，地址为空的服务不启动
type Options struct {
	HTTPAddr string
	GRPCAddr string
	Version  string
}

// Server 状态服务
type Server struct {
	opts      Options
	provider  StatusProvider
	telemetry TelemetryFunc
	startedAt time.Time

	health  *health.Server
	httpSrv *http.Server
	grpcSrv *grpc.Server

	mu       sync.Mutex
	httpAddr string
	grpcAddr string
}

// New 创建状态服务
func New(provider StatusProvider, telemetryFn TelemetryFunc, opts Options) *Server {
	if telemetryFn == nil {
		telemetryFn = func() *telemetry.Snapshot { return nil }
	}
	s := &Server{
		opts:      opts,
		provider:  provider,
		telemetry: telemetryFn,
		startedAt: time.Now(),
		health:    health.NewServer(),
	}
	s.SetServing(false)
	return s
}

// Handler HTTP 路由
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/telemetry", s.handleTelemetry)
	r.Get("/system", s.handleSystem)
	return r
}

// Start 启动已配置的服务
func (s *Server) Start() error {
	if s.opts.HTTPAddr != "" {
		ln, err := net.Listen("tcp", s.opts.HTTPAddr)
		if err != nil {
			return fmt.Errorf("监听 HTTP 地址失败: %w", err)
		}
		s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
		s.setAddr(&s.httpAddr, ln.Addr().String())

		go func() {
			if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP 状态服务异常: %v", err)
			}
		}()
		logger.Info("HTTP 状态服务: http://%s/status", ln.Addr())
	}

	if s.opts.GRPCAddr != "" {
		ln, err := net.Listen("tcp", s.opts.GRPCAddr)
		if err != nil {
			return fmt.Errorf("监听 gRPC 地址失败: %w", err)
		}
		s.grpcSrv = grpc.NewServer()
		healthpb.RegisterHealthServer(s.grpcSrv, s.health)
		s.setAddr(&s.grpcAddr, ln.Addr().String())

		go func() {
			if err := s.grpcSrv.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Error("gRPC 健康检查服务异常: %v", err)
			}
		}()
		logger.Info("gRPC 健康检查服务: %s", ln.Addr())
	}
	return nil
}

// SetServing 更新健康状态
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// HTTPAddr 实际监听的 HTTP 地址
func (s *Server) HTTPAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

// GRPCAddr 实际监听的 gRPC 地址
func (s *Server) GRPCAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grpcAddr
}

// Shutdown 停止所有服务
func (s *Server) Shutdown(ctx context.Context) error {
	s.SetServing(false)
	s.health.Shutdown()

	if s.grpcSrv != nil {
		s.grpcSrv.GracefulStop()
	}
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			return fmt.Errorf("关闭 HTTP 状态服务失败: %w", err)
		}
	}
	return nil
}

func (s *Server) setAddr(dst *string, addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*dst = addr
}

// StatusResponse /status 响应
type StatusResponse struct {
	match.Status
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// SystemResponse /system 响应
type SystemResponse struct {
	OS            string  `json:"os"`
	Arch          string  `json:"arch"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	Goroutines    int     `json:"goroutines"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version: s.opts.Version,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.provider != nil {
		resp.Status = s.provider.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	snap := s.telemetry()
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	resp := SystemResponse{
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		Goroutines: runtime.NumGoroutine(),
	}
	if percents, err := cpu.PercentWithContext(r.Context(), 0, false); err == nil && len(percents) > 0 {
		resp.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		resp.MemoryPercent = vm.UsedPercent
		resp.MemoryUsedMB = vm.Used / 1024 / 1024
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
