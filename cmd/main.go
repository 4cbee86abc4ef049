package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	grpchealth "google.golang.org/grpc/health"

	"github.com/klari-app/klari-server/internal/access"
	grpcrouter "github.com/klari-app/klari-server/internal/api/grpc/router"
	grpcserver "github.com/klari-app/klari-server/internal/api/grpc/server"
	httpctx "github.com/klari-app/klari-server/internal/api/http/context"
	"github.com/klari-app/klari-server/internal/api/http/handler"
	httprouter "github.com/klari-app/klari-server/internal/api/http/router"
	"github.com/klari-app/klari-server/internal/cache/redis"
	"github.com/klari-app/klari-server/internal/config"
	"github.com/klari-app/klari-server/internal/health"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/metrics"
	"github.com/klari-app/klari-server/internal/model"
	"github.com/klari-app/klari-server/internal/recommend"
	"github.com/klari-app/klari-server/internal/repository/memory"
	"github.com/klari-app/klari-server/internal/repository/postgres"
	"github.com/klari-app/klari-server/internal/server"
	"github.com/klari-app/klari-server/internal/service"
	"github.com/klari-app/klari-server/internal/storage/minio"
	"github.com/klari-app/klari-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

type stores struct {
	users         model.UserStore
	products      model.ProductStore
	routines      model.RoutineStore
	refreshTokens model.RefreshTokenStore
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.NewWithFormat(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	logAppVersion()

	var checks []health.Check
	var st stores

	switch cfg.Database.Driver {
	case "memory":
		db := memory.New()
		st = stores{
			users:         memory.NewUserRepository(db),
			products:      memory.NewProductRepository(db),
			routines:      memory.NewRoutineRepository(db),
			refreshTokens: memory.NewRefreshTokenRepository(db),
		}
		logger.Warn("using in-memory storage, data is lost on exit")
	default:
		conn, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("failed to initialize storage", "error", err)
		}
		defer conn.Close()

		st = stores{
			users:         postgres.NewUserRepository(conn),
			products:      postgres.NewProductRepository(conn),
			routines:      postgres.NewRoutineRepository(conn),
			refreshTokens: postgres.NewRefreshTokenRepository(conn),
		}
		checks = append(checks, health.DatabaseCheck(conn.SQL()))
	}

	m := metrics.New()

	var recommender recommend.Recommender = recommend.NewMatcher(st.products, m, logger)
	var invalidator service.Invalidator
	if cfg.Cache.URL != "" {
		cache, err := redis.New(ctx, cfg.Cache.URL, cfg.Cache.TTL, logger)
		if err != nil {
			logger.Fatal("failed to initialize cache", "error", err)
		}
		defer cache.Close()

		cached := recommend.NewCachedMatcher(recommender, cache, cfg.Cache.TTL, m, logger)
		recommender = cached
		invalidator = cached
		checks = append(checks, health.PingCheck("redis", cache))
	}

	var images model.Storage
	if cfg.Storage.Endpoint != "" {
		client, err := minio.Dial(ctx, cfg.Storage)
		if err != nil {
			logger.Warn("Storage: object storage unavailable, product images disabled", "error", err.Error())
		} else {
			images = client
			checks = append(checks, health.PingCheck("storage", client))
		}
	}

	tokens := service.NewTokenService(
		token.NewJWT(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL),
		st.refreshTokens,
		cfg.JWT.RefreshTTL,
		logger,
	)
	authService := service.NewAuth(st.users, tokens, logger)
	productService := service.NewProduct(st.products, images, invalidator, cfg.Storage.PublicURL, logger)
	profileService := service.NewProfile(st.users, st.products, logger)
	routineService := service.NewRoutine(st.routines, st.products, m, logger)
	builder := service.NewRoutineBuilder(routineService, st.users, recommender, logger)

	contextManager := httpctx.NewManager()
	guard := access.NewGuard(contextManager)
	validator := handler.NewValidator()

	healthServer := grpchealth.NewServer()
	prober := health.NewProber(checks, healthServer, cfg.Health.ProbeInterval, logger)

	router := httprouter.New(httprouter.Handlers{
		Auth:      handler.NewAuth(authService, validator, logger),
		Product:   handler.NewProduct(productService, validator, logger),
		Recommend: handler.NewRecommend(recommender, cfg.Recommend, logger),
		User:      handler.NewUser(profileService, guard, logger),
		Routine:   handler.NewRoutine(routineService, builder, guard, validator, logger),
		Ops:       handler.NewOps(prober, logger),
		Metrics:   m.Handler(),
	}, authService, contextManager, m, cfg.HTTP.CORSOrigins, logger)

	servers := []model.Server{
		server.NewHTTPServer(router.Register(), fmt.Sprintf(":%s", cfg.HTTP.Port)),
		grpcserver.NewGRPCServer(grpcrouter.New(healthServer, logger).Register(), fmt.Sprintf(":%s", cfg.GRPC.Port)),
	}
	layers := []model.SecurityLayer{
		server.NewSecurityLayer(cfg.HTTP.EnableHTTPS, cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName),
		server.NewSecurityLayer(cfg.GRPC.EnableHTTPS, cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return prober.Run(gctx)
	})
	for i, s := range servers {
		g.Go(func() error {
			logger.Info("Starting server on", "address", s.Address())
			if err := s.Start(layers[i]); err != nil {
				return fmt.Errorf("server %s: %w", s.Address(), err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("received interruption signal, shutting down")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, s := range servers {
			if err := s.Stop(shutdownCtx); err != nil {
				logger.Error("error during server shutdown", "error", err, "address", s.Address())
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
	}
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
