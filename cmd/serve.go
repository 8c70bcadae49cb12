package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"creditrisk/db"
	chttp "creditrisk/http"
	"creditrisk/ml"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port      int
		modelPath string
		cacheSize int
		dbPath    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("model") {
				cfg.Model.Path = modelPath
			}
			if cmd.Flags().Changed("cache-size") {
				cfg.Cache.Size = cacheSize
			}
			if cmd.Flags().Changed("db") {
				cfg.Database.Path = dbPath
			}
			return runServe(cmd.Context(), a)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "bundle path")
	cmd.Flags().IntVar(&cacheSize, "cache-size", 0, "prediction cache entries (0 disables)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite path for the training log and prediction audit")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	bundle, err := ml.LoadBundle(cfg.Model.Path)
	if err != nil {
		logger.Error("cannot load model bundle; run `creditrisk train` first",
			zap.String("path", cfg.Model.Path), zap.Error(err))
		return fmt.Errorf("load bundle: %w", err)
	}
	logger.Info("loaded model bundle",
		zap.String("path", cfg.Model.Path),
		zap.String("fingerprint", bundle.Fingerprint),
		zap.Strings("features", bundle.FeatureColumns),
		zap.String("unseen_policy", string(bundle.UnseenPolicy)))

	var provider ml.ModelProvider = ml.NewPredictor(bundle)
	if cfg.Cache.Size > 0 {
		cached, err := ml.NewCachedPredictor(provider, cfg.Cache.Size)
		if err != nil {
			return err
		}
		if err := chttp.RegisterCacheMetrics(prometheus.DefaultRegisterer, cached); err != nil {
			return err
		}
		provider = cached
		logger.Info("prediction cache enabled", zap.Int("size", cfg.Cache.Size))
	}

	var opts []chttp.Option
	if cfg.Database.Path != "" {
		if err := db.InitDB(cfg.Database.Path); err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		defer db.Close()
		logger.Info("database initialized", zap.String("path", cfg.Database.Path))
		opts = append(opts, chttp.WithTrainingLog(db.LoadTrainingLog))
		if cfg.Database.RecordPredictions {
			opts = append(opts, chttp.WithAudit(db.SavePredictions))
		}
	}

	server := chttp.NewServer(chttp.ServerConfig{
		Port:           cfg.Server.Port,
		Timeout:        cfg.Server.Timeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}, provider, logger, opts...)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- server.Start()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
		return err
	}
	return nil
}
