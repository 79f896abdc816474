package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/localrag/localrag/internal/ai"
	"github.com/localrag/localrag/internal/blobstore"
	"github.com/localrag/localrag/internal/chunker"
	"github.com/localrag/localrag/internal/config"
	"github.com/localrag/localrag/internal/embedcache"
	"github.com/localrag/localrag/internal/handler"
	"github.com/localrag/localrag/internal/index"
	"github.com/localrag/localrag/internal/middleware"
	"github.com/localrag/localrag/internal/querycache"
	"github.com/localrag/localrag/internal/repo"
	"github.com/localrag/localrag/internal/schedule"
	"github.com/localrag/localrag/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "localrag",
		Short: "local retrieval-augmented search server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the retrieval server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			db, err := repo.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("blob_store", cfg.BlobStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", cfg.AI.Model),
	)

	docRepo := repo.NewDocumentRepo(db)
	indexRepo := repo.NewIndexRepo(db)

	blobs, err := blobstore.New(cfg.BlobStore)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}

	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	provider, err := ai.NewEmbedProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewEmbedder(provider, cfg.AI.Model, time.Duration(cfg.AI.Timeout)*time.Second)
	embedder = embedcache.WrapLruCacheToEmbedder(
		embedder,
		cfg.Retrieval.EmbedCacheSize,
		time.Duration(cfg.Retrieval.EmbedCacheTTL)*time.Second,
	)

	splitter, err := chunker.New(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("init chunker: %w", err)
	}
	idx := index.New(index.Metric(cfg.Retrieval.Metric), cfg.AI.Dimension, cfg.Retrieval.RebuildThreshold)
	cache := querycache.New(cfg.Retrieval.QueryCacheSize, time.Duration(cfg.Retrieval.QueryCacheTTL)*time.Second)
	health := service.NewModelHealth()

	ingestService := service.NewIngestService(docRepo, indexRepo, blobs, splitter, embedder, idx, cache, health, service.IngestConfig{
		MaxUploadBytes: cfg.Retrieval.MaxUploadBytes,
		MaxRetries:     cfg.AI.MaxRetries,
		PersistIndex:   cfg.Retrieval.PersistIndex,
	})
	queryService := service.NewQueryService(docRepo, idx, cache, embedder, health, cfg.Retrieval.MaxTopK)

	if err := ingestService.WarmStart(context.Background()); err != nil {
		return fmt.Errorf("warm start index: %w", err)
	}

	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(ingestService),
		Queries:   handler.NewQueryHandler(queryService),
		Health:    handler.NewHealthHandler(queryService),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(service.NewIndexMaintainJob(idx), cfg.Retrieval.MaintainSpec); err != nil {
		return fmt.Errorf("schedule maintenance: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	scheduler.Stop()
	return nil
}
