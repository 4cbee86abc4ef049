package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/klari-app/klari-server/internal/model"
)

var _ model.Server = (*GRPCServer)(nil)

// GRPCServer wraps a gRPC server with address and lifecycle methods.
type GRPCServer struct {
	server *grpc.Server
	addr   string
}

func NewGRPCServer(
	server *grpc.Server,
	addr string,
) *GRPCServer {
	return &GRPCServer{server: server, addr: addr}
}

// Start starts serving on the configured address using the provided security layer.
func (s *GRPCServer) Start(securityLayer model.SecurityLayer) error {
	listener, err := securityLayer.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.server.Serve(listener)
}

// Stop gracefully stops the server.
func (s *GRPCServer) Stop(_ context.Context) error {
	s.server.GracefulStop()
	return nil
}

// Address returns the configured listen address.
func (s *GRPCServer) Address() string {
	return s.addr
}
