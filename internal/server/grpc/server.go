// Package grpc exposes store maintenance over gRPC: cleaning the store,
// purging a batch, allocating sequence values and reading a current resource.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/fhirkeeper/internal/logging"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
	"google.golang.org/grpc"
)

// Store is the part of the resource store the admin surface needs.
type Store interface {
	FindEntryByID(ctx context.Context, logicalID string) (models.Entry, error)
	PurgeBatch(ctx context.Context, batchID string) (int64, error)
}

// Sequencer allocates values of named counters.
type Sequencer interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Cleaner wipes the whole store.
type Cleaner interface {
	Clean(ctx context.Context) error
}

type GRPCServer struct {
	UnimplementedStoreAdminServer
	// ShutdownTimeout bounds the graceful stop; zero waits for all calls.
	ShutdownTimeout time.Duration

	address     string
	store       Store
	sequence    Sequencer
	maintenance Cleaner
	logger      logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, store Store, sequence Sequencer, maintenance Cleaner) *GRPCServer {
	return &GRPCServer{
		address:     a,
		logger:      l.With("module", "grpc_server"),
		store:       store,
		sequence:    sequence,
		maintenance: maintenance,
	}
}

// NewServer builds a grpc.Server with the admin service registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.loggingInterceptor)}, opts...)
	srv := grpc.NewServer(opts...)
	RegisterStoreAdminServer(srv, s)
	return srv
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.stop(srv)
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

func (s *GRPCServer) stop(srv *grpc.Server) {
	if s.ShutdownTimeout <= 0 {
		srv.GracefulStop()
		return
	}
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.ShutdownTimeout):
		srv.Stop()
	}
}
