package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/trailmate/server/app"
	"github.com/trailmate/server/cache"
	"github.com/trailmate/server/config"
	dbadapter "github.com/trailmate/server/db"
	"github.com/trailmate/server/game/quest"
	"github.com/trailmate/server/logging"
	"github.com/trailmate/server/model"
	"github.com/trailmate/server/resource"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cfgPath string
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "trailmate",
	Short:         "Quest and activity tracking server for the TrailMate community",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables win.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		logger, err = logging.New(cfg.Log, cfg.Server.Debug)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := openDB()
		if err == nil {
			logger.Info("migration complete", zap.String("mode", cfg.Database.Mode))
		}
		return err
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect quest catalogs",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a YAML or JSON quest catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := quest.NewCatalog()
		if err := resource.LoadCatalog(c, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d quests OK\n", args[0], c.Len())
		return nil
	},
}

var exportFormat string

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the active quest catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := quest.NewCatalog()
		if err := resource.LoadCatalog(c, cfg.Quest.CatalogPath); err != nil {
			return err
		}
		return resource.Encode(cmd.OutOrStdout(), c.All(), exportFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config YAML (empty: defaults + TRAILMATE_* env)")
	catalogExportCmd.Flags().StringVarP(&exportFormat, "format", "f", resource.FormatYAML, "output format: yaml or json")

	catalogCmd.AddCommand(catalogValidateCmd, catalogExportCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, catalogCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("trailmate: %v", err)
	}
}

func openDB() (*gorm.DB, error) {
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if cfg.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret must be set")
	}
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	a, err := app.New(cfg, db, c, pubsub, logger)
	if err != nil {
		return err
	}
	a.StartBackground()

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.Close(context.Background())
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	a.Close(shutdownCtx)
	return nil
}
