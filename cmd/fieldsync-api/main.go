package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tradewire/fieldsync/internal/auth"
	"github.com/tradewire/fieldsync/internal/config"
	"github.com/tradewire/fieldsync/internal/database"
	"github.com/tradewire/fieldsync/internal/logging"
	"github.com/tradewire/fieldsync/internal/masterdata"
	"github.com/tradewire/fieldsync/internal/orders"
	"github.com/tradewire/fieldsync/internal/receipts"
	"github.com/tradewire/fieldsync/internal/server"
	"github.com/tradewire/fieldsync/internal/sync"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fieldsync-api",
		Short: "Field submission sync and approval backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Issued token TTL in minutes")
	cmd.PersistentFlags().Int("sync-status-limit", defaults.GetInt("sync.status_limit"), "Ledger rows returned per sync bundle")
	cmd.PersistentFlags().Int("reconcile-interval-minutes", defaults.GetInt("sync.reconcile_interval_minutes"), "Minutes between reconciliation sweeps")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "sync.status_limit", "sync-status-limit")
	bindFlag(cmd, "sync.reconcile_interval_minutes", "reconcile-interval-minutes")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	directory, err := masterdata.NewDirectory(db)
	if err != nil {
		return err
	}

	orderService, err := orders.NewService(orders.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	receiptService, err := receipts.NewService(receipts.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	deps := sync.Deps{
		Directory: directory,
		Orders:    orderService,
		Receipts:  receiptService,
	}

	ledger, err := sync.NewLedger(db, time.Now)
	if err != nil {
		return err
	}
	pending, err := sync.NewPendingStore(db)
	if err != nil {
		return err
	}
	normalizer, err := sync.NewNormalizer(directory)
	if err != nil {
		return err
	}

	processor, err := sync.NewProcessor(sync.ProcessorConfig{
		Ledger:     ledger,
		Pending:    pending,
		Normalizer: normalizer,
		Deps:       deps,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	executor, err := sync.NewExecutor(sync.ExecutorConfig{
		Pending: pending,
		Ledger:  ledger,
		Deps:    deps,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	builder, err := sync.NewBuilder(sync.BuilderConfig{
		Directory:   directory,
		Ledger:      ledger,
		Pending:     pending,
		Outstanding: masterdata.OutstandingBalance(db),
		StatusLimit: appConfig.SyncStatusLimit,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	reconciler, err := sync.NewReconciler(sync.ReconcilerConfig{
		Ledger:  ledger,
		Pending: pending,
		Deps:    deps,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	tokenManager := auth.NewTokenManager(auth.TokenManagerConfig{
		SigningSecret: []byte(appConfig.AuthSigningSecret),
		Issuer:        "fieldsync-auth",
		Audience:      "fieldsync-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager: tokenManager,
		Processor:    processor,
		Builder:      builder,
		Executor:     executor,
		Pending:      pending,
		Directory:    directory,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go reconciler.RunEvery(signalCtx, appConfig.ReconcileInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
