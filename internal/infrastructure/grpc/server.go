package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/SistemaEduas/AtendimentoMedico/internal/config"
	"github.com/SistemaEduas/AtendimentoMedico/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "assinaturas"

const (
	probeInterval = 10 * time.Second
	probeTimeout  = 3 * time.Second
)

// Probe reports whether a dependency the service needs is reachable.
type Probe func(ctx context.Context) error

// Server exposes the standard gRPC health protocol for orchestrators.
type Server struct {
	config   *config.Config
	logger   *zap.Logger
	server   *grpc.Server
	health   *health.Server
	probe    Probe
	listener net.Listener
	stop     chan struct{}
}

func NewServer(cfg *config.Config, probe Probe, log *zap.Logger) *Server {
	s := &Server{
		config: cfg,
		logger: log,
		health: health.NewServer(),
		probe:  probe,
		stop:   make(chan struct{}),
	}
	s.server = grpc.NewServer(logger.NewGrpcServerOptions(log)...)
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.GRPC.Host, s.config.Server.GRPC.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.checkOnce()
	go s.watch()

	s.logger.Info("Starting gRPC server", zap.String("address", addr))

	return s.server.Serve(listener)
}

func (s *Server) watch() {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.checkOnce()
		}
	}
}

func (s *Server) checkOnce() {
	status := healthpb.HealthCheckResponse_SERVING
	if s.probe != nil {
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		err := s.probe(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("Health probe failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}
