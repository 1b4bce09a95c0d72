package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bureau.org/internal/audit"
	"bureau.org/internal/auth"
	"bureau.org/internal/casefile"
	"bureau.org/internal/config"
	"bureau.org/internal/graph"
	"bureau.org/internal/grpcapi"
	"bureau.org/internal/httpapi"
	"bureau.org/internal/obs"
	"bureau.org/internal/roleimage"
	"bureau.org/internal/session"
	"bureau.org/internal/store/pg"
	"bureau.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = ""
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := obs.NewLogger(cfg.Log)
	audit.SetLogger(logger.With("component", "audit"))
	obs.Init()
	obs.SetBuildInfo(version, commit)

	if err := run(cfg, logger); err != nil {
		logger.Error("bureau-api stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := pg.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.PingTimeout)
	if err := store.Ping(pingCtx); err != nil {
		// The actor directory falls back to its built-in roster until the database returns.
		logger.Warn("database unreachable, starting degraded", "error", err)
	}
	cancel()

	sessions, closeSessions := openSessions(ctx, cfg.Redis, logger)
	defer closeSessions()

	sink, closeGraph := openGraph(ctx, cfg.Neo4j, logger)
	defer closeGraph()

	events := stream.New()
	policy := auth.NewPolicy(nil)

	actors, err := auth.NewActorService(store, policy,
		auth.WithActorLogger(logger),
		auth.WithDegradedHook(obs.RecordFallback),
	)
	if err != nil {
		return err
	}
	cases := casefile.NewService(store, policy,
		casefile.WithLogger(logger),
		casefile.WithPublisher(events),
		casefile.WithGraph(sink),
	)

	files, err := roleimage.NewFileStore(cfg.Storage.RoleImageDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return err
	}
	images := roleimage.NewService(store, files, policy,
		roleimage.WithMaxBytes(cfg.Storage.MaxImageBytes),
		roleimage.WithLogger(logger),
	)
	if err := images.Refresh(ctx); err != nil {
		logger.Warn("role images not loaded", "error", err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	opts := []httpapi.Option{
		httpapi.WithRateLimit(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		httpapi.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		httpapi.WithMaxImageBytes(cfg.Storage.MaxImageBytes),
		httpapi.WithCORSOrigins(cfg.CORS.Origins()),
	}
	if strings.HasPrefix(cfg.Storage.PublicBaseURL, "/") {
		opts = append(opts, httpapi.WithStaticImages(cfg.Storage.PublicBaseURL, cfg.Storage.RoleImageDir))
	}
	api := httpapi.New(httpapi.Deps{
		Actors:   actors,
		Cases:    cases,
		Images:   images,
		Tokens:   tokens,
		Sessions: sessions,
		Stream:   events,
		Backend:  store,
		Logger:   logger,
		Version:  version,
	}, opts...)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}
	grpcSrv := grpcapi.NewServer(grpcapi.NewHealthServer(store), logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("starting bureau-api", "version", version, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("starting grpc health service", "addr", cfg.Server.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	grpcSrv.GracefulStop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("stopped")
	return serveErr
}

func openSessions(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (session.Store, func()) {
	if cfg.Addr == "" {
		logger.Info("sessions kept in memory")
		return session.NewMemoryStore(), func() {}
	}
	client, err := session.OpenRedis(ctx, cfg)
	if err != nil {
		logger.Warn("redis unreachable, sessions kept in memory", "error", err)
		return session.NewMemoryStore(), func() {}
	}
	return session.NewRedisStore(client), func() { _ = client.Close() }
}

func openGraph(ctx context.Context, cfg config.Neo4jConfig, logger *slog.Logger) (graph.Sink, func()) {
	if cfg.URI == "" {
		return graph.Nop{}, func() {}
	}
	sink, err := graph.Connect(ctx, cfg)
	if err != nil {
		logger.Warn("neo4j unreachable, graph projection disabled", "error", err)
		return graph.Nop{}, func() {}
	}
	return sink, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sink.Close(closeCtx)
	}
}
