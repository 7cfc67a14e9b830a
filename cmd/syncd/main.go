// Command syncd starts the localization sync HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lingosync/lingosync/internal/config"
	"github.com/lingosync/lingosync/internal/migrate"
	"github.com/lingosync/lingosync/internal/repository/postgres"
	"github.com/lingosync/lingosync/internal/server/httpapi"
	"github.com/lingosync/lingosync/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts the HTTP server.
func main() {
	// Flags override the config file.
	confPath := flag.String("config", "", "path to TOML config file")
	addr := flag.String("addr", "", "listen address")
	dsn := flag.String("dsn", "", "PostgreSQL DSN")
	signKey := flag.String("sign-key", "", "HS256 key for verifying actor tokens (required)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
	)

	conf, err := config.Load(*confPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *addr != "" {
		conf.Server.Addr = *addr
	}
	if *dsn != "" {
		conf.DB.DSN = *dsn
	}
	if *signKey != "" {
		conf.Server.SignKey = *signKey
	}
	if conf.Server.SignKey == "" {
		logger.Fatal("missing token sign key (--sign-key or server.sign_key)")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, conf.DB.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	db, err := postgres.New(ctx, conf.DB.DSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	syncRepo := postgres.NewSyncRepo(db)
	historyRepo := postgres.NewHistoryRepo(db)
	snapshotRepo := postgres.NewSnapshotRepo(db)
	projectRepo := postgres.NewProjectRepo(db)

	// Services
	syncSvc := service.NewSyncService(syncRepo, conf.Sync.MaxBatch)
	historySvc := service.NewHistoryService(historyRepo, syncRepo, conf.Sync.MaxPageSize)
	snapshotSvc := service.NewSnapshotService(snapshotRepo, conf.Snapshots.Retention)
	projectSvc := service.NewProjectService(projectRepo)

	app := httpapi.New(syncSvc, historySvc, snapshotSvc, projectSvc,
		httpapi.ClaimsAuthorizer{}, logger, []byte(conf.Server.SignKey))

	srv := &http.Server{
		Addr:              conf.Server.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", conf.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
