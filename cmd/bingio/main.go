package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/bingio/internal/catalog"
	"github.com/xxxsen/bingio/internal/chatclient"
	"github.com/xxxsen/bingio/internal/config"
	"github.com/xxxsen/bingio/internal/conversation"
	"github.com/xxxsen/bingio/internal/handler"
	"github.com/xxxsen/bingio/internal/job"
	"github.com/xxxsen/bingio/internal/middleware"
	"github.com/xxxsen/bingio/internal/repo"
	"github.com/xxxsen/bingio/internal/schedule"
	"github.com/xxxsen/bingio/internal/snapshotstore"
	"github.com/xxxsen/bingio/internal/tui"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "bingio",
		Short: "bingio grounded film and series recommendations",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run bingio server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, true)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	var (
		catalogFile string
		force       bool
	)
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "load a csv catalog into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, true)
			if err != nil {
				return err
			}
			if catalogFile == "" {
				catalogFile = cfg.Catalog.Path
			}
			if catalogFile == "" {
				return fmt.Errorf("--file is required")
			}
			return runIngest(cmd.Context(), cfg, catalogFile, force)
		},
	}
	ingestCmd.Flags().StringVar(&catalogFile, "file", "", "csv file with title,type,genre,year,synopsis columns")
	ingestCmd.Flags().BoolVar(&force, "force", true, "re-ingest even if the file did not change")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "open the terminal chat client",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, false)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), cfg)
		},
	}

	rootCmd.AddCommand(runCmd, ingestCmd, chatCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string, console bool) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	// the terminal client owns the screen, so it only logs to file
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console && console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app, err := buildApp(ctx, cfg, registry)
	if err != nil {
		return err
	}
	defer app.Close()

	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_index", app.index.Name()),
		zap.String("snapshot_store", cfg.SnapshotStore.Type),
	)

	scheduler := schedule.NewCronScheduler()
	if err := registerJobs(scheduler, cfg, app); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	if cfg.Catalog.Path != "" && cfg.Catalog.SyncOnStart {
		if err := scheduler.Trigger(job.CatalogSyncJobName); err != nil {
			return err
		}
	}
	if cfg.Catalog.Path != "" && cfg.Catalog.Watch {
		watcher, err := catalog.NewWatcher(cfg.Catalog.Path, time.Duration(cfg.Catalog.DebounceMs)*time.Millisecond, func(ctx context.Context) {
			if err := scheduler.Trigger(job.CatalogSyncJobName); err != nil {
				logutil.GetLogger(ctx).Error("trigger catalog sync failed", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("watch catalog: %w", err)
		}
		go watcher.Run(ctx)
	}

	deps := handler.RouterDeps{
		Chat:          handler.NewChatHandler(app.chat),
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ChatRateLimit: time.Duration(cfg.Server.RateLimitMs) * time.Millisecond,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.Server.CORSAllowlist),
			// chat replies are flushed per increment and must not be buffered
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/chat"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func registerJobs(scheduler *schedule.CronScheduler, cfg *config.Config, app *app) error {
	if cfg.Catalog.Path != "" {
		syncJob := job.NewCatalogSyncJob(app.ingester, cfg.Catalog.Path, func(r *catalog.Report) {
			app.metrics.SetCatalogEntries(r.Total)
		})
		if err := scheduler.AddJob(syncJob, cfg.Catalog.SyncCron); err != nil {
			return fmt.Errorf("schedule catalog sync: %w", err)
		}
	}
	if app.db != nil && cfg.AI.EmbedCache.DB {
		cleanup := job.NewEmbeddingCacheCleanupJob(repo.NewEmbeddingCacheRepo(app.db), cfg.AI.EmbedCache.RetentionDays)
		if err := scheduler.AddJob(cleanup, cfg.AI.EmbedCache.CleanupCron); err != nil {
			return fmt.Errorf("schedule embedding cache cleanup: %w", err)
		}
	}
	return nil
}

func runIngest(ctx context.Context, cfg *config.Config, path string, force bool) error {
	app, err := buildApp(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer app.Close()
	report, err := app.ingester.IngestFile(ctx, path, force)
	if err != nil {
		return err
	}
	fmt.Printf("ingested %d entries into %s (%d upserted, %d deleted)\n",
		report.Total, app.index.Name(), report.Upserted, report.Deleted)
	return nil
}

func runChat(ctx context.Context, cfg *config.Config) error {
	storage, err := snapshotstore.New(cfg.SnapshotStore)
	if err != nil {
		return fmt.Errorf("init snapshot store: %w", err)
	}
	store := conversation.Open(ctx, storage)
	store.SeedWelcome(ctx, cfg.Client.Welcome)
	client := chatclient.New(
		cfg.Client.BaseURL,
		chatclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Client.TimeoutMs) * time.Millisecond}),
		chatclient.WithStreaming(*cfg.Client.Stream),
	)
	return tui.Run(ctx, conversation.NewSession(store, client))
}
