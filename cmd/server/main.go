// Command cv-server starts the CV keeper gRPC server and its admin endpoint.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/cv-keeper/internal/api/cvapi"
	"github.com/and161185/cv-keeper/internal/cache"
	"github.com/and161185/cv-keeper/internal/config"
	"github.com/and161185/cv-keeper/internal/outbox"
	"github.com/and161185/cv-keeper/internal/schema"
	"github.com/and161185/cv-keeper/internal/server/admin"
	grpcserver "github.com/and161185/cv-keeper/internal/server/grpc"
	"github.com/and161185/cv-keeper/internal/service"
	"github.com/and161185/cv-keeper/internal/signer"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, opens the store and serves gRPC plus admin HTTP
// until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("db", cfg.DBDriver),
		zap.String("syncMode", cfg.SyncMode),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, cfg.SyncMode == config.SyncOutbox)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer st.close()

	sg, err := signer.New([]byte(cfg.EventSecret))
	if err != nil {
		logger.Fatal("signer", zap.Error(err))
	}
	validator, err := schema.New()
	if err != nil {
		logger.Fatal("schemas", zap.Error(err))
	}

	// Projection cache
	var pc cache.ProjectionCache = cache.Nop{}
	if cfg.RedisURL != "" {
		rc, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer func() { _ = rc.Close() }()
		pc = cache.NewRedis(rc, cfg.CacheTTL)
	}

	// Services
	sync := service.NewSynchronizer(st.events, st.projections, logger,
		service.WithCache(pc),
		service.WithVerifier(sg, cfg.VerifyOnRead),
	)

	var notifier service.Notifier = sync
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	relayDone := make(chan struct{})
	if cfg.SyncMode == config.SyncOutbox {
		relay := outbox.New(st.outbox, sync, logger, outbox.Config{
			Interval:    cfg.OutboxInterval,
			BatchSize:   cfg.OutboxBatchSize,
			MaxAttempts: cfg.OutboxMaxAttempts,
		})
		notifier = relay
		go func() {
			defer close(relayDone)
			if err := relay.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox relay stopped", zap.Error(err))
			}
		}()
	} else {
		close(relayDone)
	}

	cmdSvc := service.NewCommandService(st.events, validator, sg, notifier, logger,
		service.WithMaxRetries(cfg.CommandMaxRetries))
	var verifier service.EventVerifier
	if cfg.VerifyOnRead {
		verifier = sg
	}
	querySvc := service.NewQueryService(st.projections, st.events, sync, pc, verifier, logger)

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary([]byte(cfg.JWTKey), logger),
		),
	}
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)
	cvapi.RegisterCvServiceServer(s, grpcserver.New(cmdSvc, querySvc, logger))

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	// Listen
	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLSCert != ""))
		errCh <- s.Serve(lis)
	}()

	var adminSrv *http.Server
	if cfg.AdminAddr != "" {
		adminSrv = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           admin.NewRouter(admin.NewHandler(sync, st.ping, logger)),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("admin listening", zap.String("addr", cfg.AdminAddr))
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	// Wait for stop
	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		exitCode = 1
	}

	// graceful shutdown
	hs.Shutdown()
	if adminSrv != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = adminSrv.Shutdown(shCtx)
		cancel()
	}
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Stop()
	}
	cancelRun()
	<-relayDone

	logger.Info("shutdown complete")
	if exitCode != 0 {
		_ = logger.Sync()
		os.Exit(exitCode)
	}
}
