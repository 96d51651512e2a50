package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/miradorstack/learnsense/internal/config"
)

// Server hosts the Personalization gRPC service with health and reflection.
// Health reports NOT_SERVING until Start and again once Shutdown begins.
type Server struct {
	cfg      config.ServerConfig
	logger   *slog.Logger
	grpc     *grpc.Server
	health   *health.Server
	listener net.Listener
}

// NewServer listens on cfg.Address.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, service PersonalizationServer, opts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}
	return NewServerWithListener(cfg, logger, lis, service, opts...), nil
}

// NewServerWithListener serves on an existing listener, such as an in-memory one.
func NewServerWithListener(cfg config.ServerConfig, logger *slog.Logger, lis net.Listener, service PersonalizationServer, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	grpc_prometheus.EnableHandlingTimeHistogram()
	serverOpts := append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}, opts...)
	gs := grpc.NewServer(serverOpts...)

	RegisterPersonalizationServer(gs, service)
	grpc_prometheus.Register(gs)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	reflection.Register(gs)

	return &Server{cfg: cfg, logger: logger, grpc: gs, health: hs, listener: lis}
}

// Start marks the service healthy and serves until Shutdown.
func (s *Server) Start() error {
	if s.grpc == nil || s.listener == nil {
		return fmt.Errorf("server not initialised")
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("gRPC server listening", slog.String("address", s.Address()))
	return s.grpc.Serve(s.listener)
}

// Shutdown flips health to NOT_SERVING, then drains in-flight calls. Without a
// deadline on ctx the configured graceful timeout applies; past it the server
// is stopped hard.
func (s *Server) Shutdown(ctx context.Context) {
	if s.grpc == nil {
		return
	}
	s.health.Shutdown()

	if _, ok := ctx.Deadline(); !ok && s.cfg.GracefulTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GracefulTimeout)
		defer cancel()
	}

	drained := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(drained)
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("gRPC graceful stop timed out, forcing")
		s.grpc.Stop()
	case <-drained:
	}
}

// Address is the bound listener address.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
