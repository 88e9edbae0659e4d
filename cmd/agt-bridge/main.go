package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/efactura-ao/agt-bridge/internal/agt"
	"github.com/efactura-ao/agt-bridge/internal/backup"
	"github.com/efactura-ao/agt-bridge/internal/config"
	"github.com/efactura-ao/agt-bridge/internal/logger"
	"github.com/efactura-ao/agt-bridge/internal/server"
	"github.com/efactura-ao/agt-bridge/internal/service"
	"github.com/efactura-ao/agt-bridge/internal/signing"
	"github.com/efactura-ao/agt-bridge/internal/syncer"
	"github.com/efactura-ao/agt-bridge/internal/transport"
	"github.com/efactura-ao/agt-bridge/internal/version"
)

func main() {
	cmd := &cobra.Command{
		Use:   "agt-bridge",
		Short: "AGT e-facturação bridge server",
		Long:  `agt-bridge exposes a local HTTP API for submitting invoices to the AGT web service and keeping a reconciled backup of registered documents`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.NewServerConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err.Error())
		os.Exit(1)
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)

	appLogger.Info("configuration loaded",
		slog.String("AGT_ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.String("AGT_BASE_URL", cfg.BaseURL()),
		slog.String("ISSUER_TAX_ID", cfg.IssuerTaxID),
		slog.String("BACKUP_FILE_PATH", cfg.BackupFilePath),
		slog.Bool("DATABASE_BACKED", cfg.DatabaseURL != ""),
	)

	store, pool, err := newStore(cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to set up backup store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	username, password := cfg.Credentials()
	auth := transport.Auth{Kind: transport.AuthNone}
	if username != "" {
		auth = transport.Auth{Kind: transport.AuthBasic, Username: username, Password: password}
	}

	client := transport.NewClient(transport.Config{
		BaseURL:       cfg.BaseURL(),
		Auth:          auth,
		Timeout:       cfg.CallTimeout,
		MaxRetries:    cfg.MaxRetries,
		OutboundRPS:   cfg.OutboundRPS,
		OutboundBurst: cfg.OutboundBurst,
	}, appLogger)

	signer, err := signing.NewPipeline(cfg.SigningKeyPath, cfg.SigningKeyID, appLogger)
	if err != nil {
		// submissions go out unsigned rather than not at all
		appLogger.Warn("signing disabled: " + err.Error())
		signer, _ = signing.NewPipeline("", cfg.SigningKeyID, appLogger)
	}

	software := agt.SoftwareInfo{
		ProductID:      cfg.SoftwareProductID,
		ProductVersion: cfg.SoftwareVersion,
		CertificateNo:  cfg.SoftwareCertNo,
	}

	svc := service.New(client, signer, store, syncer.New(appLogger), cfg.IssuerTaxID, software, appLogger)

	appLogger.Info("starting server", slog.String("version", version.Get().Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(cfg, svc, appLogger)

	if err := srv.Start(ctx); err != nil {
		appLogger.Error("server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}

// newStore selects the backup store. DATABASE_URL switches on the
// Postgres-backed store so multiple instances can share one mirror;
// without it the single-process JSON file store is used.
func newStore(cfg *config.ServerEnvironment, appLogger *slog.Logger) (backup.Store, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return backup.NewFileStore(cfg.BackupFilePath), nil, nil
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), cfg.DatabasePingTimeout)
	defer dbCancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.DBMaxConnections
	poolConfig.MinConns = cfg.DBMinConnections
	poolConfig.MaxConnLifetime = cfg.DBMaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.DBMaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.DBConnectTimeout

	pool, err := pgxpool.NewWithConfig(dbCtx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err = pool.Ping(dbCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("error pinging database via pool: %w", err)
	}

	if err := backup.MigrateUp(pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	appLogger.Info("connected to PostgreSQL")

	return backup.NewPGStore(pool), pool, nil
}
