package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/fidde/cardinality_explorer/internal/analyzer"
)

// GRPCReceiver handles OTLP gRPC requests.
type GRPCReceiver struct {
	colmetricspb.UnimplementedMetricsServiceServer
	observer        analyzer.Observer
	metricsAnalyzer *analyzer.MetricsAnalyzer
	server          *grpc.Server
	addr            string
	logger          *slog.Logger
}

// NewGRPCReceiver creates a new gRPC receiver feeding obs.
func NewGRPCReceiver(addr string, obs analyzer.Observer, logger *slog.Logger) *GRPCReceiver {
	if logger == nil {
		logger = slog.Default()
	}

	r := &GRPCReceiver{
		observer:        obs,
		metricsAnalyzer: analyzer.NewMetricsAnalyzer(),
		addr:            addr,
		logger:          logger,
	}

	r.server = grpc.NewServer()
	colmetricspb.RegisterMetricsServiceServer(r.server, r)

	// Reflection for grpcurl.
	reflection.Register(r.server)

	return r
}

// Start listens on the configured address and serves until Shutdown.
func (r *GRPCReceiver) Start() error {
	lis, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return r.Serve(lis)
}

// Serve serves on an existing listener.
func (r *GRPCReceiver) Serve(lis net.Listener) error {
	r.logger.Info("gRPC receiver listening", "addr", lis.Addr().String())
	return r.server.Serve(lis)
}

// Shutdown gracefully shuts down the gRPC server. If ctx expires first the
// server is stopped forcibly.
func (r *GRPCReceiver) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.server.Stop()
		return ctx.Err()
	}
}

// Export implements the MetricsService Export RPC.
func (r *GRPCReceiver) Export(_ context.Context, req *colmetricspb.ExportMetricsServiceRequest) (*colmetricspb.ExportMetricsServiceResponse, error) {
	points, err := r.metricsAnalyzer.AnalyzeInto(req, r.observer)
	if err != nil {
		exportRequestsTotal.WithLabelValues("grpc", "bad_request").Inc()
		return nil, status.Errorf(codes.InvalidArgument, "failed to analyze metrics: %v", err)
	}

	exportRequestsTotal.WithLabelValues("grpc", "ok").Inc()
	r.logger.Debug("metrics export received", "data_points", points)

	return &colmetricspb.ExportMetricsServiceResponse{}, nil
}
