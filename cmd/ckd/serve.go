package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ckd-aip/ckd-aip-go/pkg/api"
	"github.com/ckd-aip/ckd-aip-go/pkg/config"
	"github.com/ckd-aip/ckd-aip-go/pkg/logging"
	"github.com/ckd-aip/ckd-aip-go/pkg/metadatastore"
	"github.com/ckd-aip/ckd-aip-go/pkg/mlmodel"
	"github.com/ckd-aip/ckd-aip-go/pkg/predictor"
	"github.com/ckd-aip/ckd-aip-go/pkg/scheduler"
)

var (
	serveConfigPath string // YAML server config
	servePort       string
	serveModelPath  string
	serveDBPath     string
)

// serveCmd runs the screening web server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the screening pages and prediction API",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := serveConfigPath
		if path == "" {
			path = os.Getenv("CONFIG_FILE")
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("port") {
			cfg.Port = servePort
		}
		if flags.Changed("model") {
			cfg.ModelPath = serveModelPath
		}
		if flags.Changed("db") {
			cfg.DBPath = serveDBPath
		}
		if flags.Changed("log") {
			cfg.LogLevel = logLevel
		}
		if flags.Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if logger, err = logging.New(cfg.LogLevel, cfg.LogFormat); err != nil {
			return err
		}

		logger.WithField("environment", cfg.Environment).Info("Starting CKD screening service")

		var store metadatastore.MetadataStore
		var pruner *scheduler.Service
		if cfg.DBPath != "" {
			sqlite, err := metadatastore.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer sqlite.Close()
			store = sqlite
			logger.WithField("path", cfg.DBPath).Info("Initialized SQLite storage")

			if cfg.PruningEnabled() {
				if pruner, err = scheduler.NewService(store, cfg.PruneSchedule, cfg.HistoryRetentionDays, logger); err != nil {
					return err
				}
				if err := pruner.Start(); err != nil {
					return err
				}
				defer pruner.Stop()
			}
		}

		server, err := api.NewServer(predictor.LoadService(cfg.ModelPath, store, logger), api.Options{
			Port:        cfg.Port,
			CORSOrigins: cfg.CORSOrigins,
			Logger:      logger,
			Models:      mlmodel.NewService(store, logger),
			Pruner:      pruner,
		})
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case <-quit:
		}

		logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Server forced to shutdown")
		}
		logger.Info("Server exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "YAML config file (default $CONFIG_FILE)")
	serveCmd.Flags().StringVar(&servePort, "port", "5000", "HTTP port")
	serveCmd.Flags().StringVar(&serveModelPath, "model", "models/ckd_model.json", "Model artifact")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "data/ckd.db", "SQLite database for history and registry (empty to disable)")
}
