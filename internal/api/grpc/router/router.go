package router

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/klari-app/klari-server/internal/api/grpc/middleware"
	"github.com/klari-app/klari-server/internal/logger"
)

// Router assembles the gRPC server that exposes grpc.health.v1 to orchestrators.
type Router struct {
	health *health.Server
	logger *logger.Logger
}

func New(health *health.Server, logger *logger.Logger) *Router {
	return &Router{
		health: health,
		logger: logger,
	}
}

// logSkip keeps frequent liveness polls out of the request log.
func logSkip(_ context.Context, c interceptors.CallMeta) bool {
	return c.FullMethod() != healthpb.Health_Check_FullMethodName
}

// Register builds the server with panic recovery and request logging.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	recoverOpt := recovery.WithRecoveryHandler(func(p any) error {
		r.logger.Error("gRPC panic recovered", "panic", fmt.Sprint(p))
		return status.Error(codes.Internal, "internal server error")
	})

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recoverOpt),
			selector.UnaryServerInterceptor(logging.HandleGRPC, selector.MatchFunc(logSkip)),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoverOpt),
		),
	)
	healthpb.RegisterHealthServer(s, r.health)
	reflection.Register(s)

	return s
}
