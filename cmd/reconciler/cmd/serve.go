package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger-bank-reconciler/cmd/reconciler/config"
	"ledger-bank-reconciler/internal/api"
	"ledger-bank-reconciler/internal/reconciler"
	"ledger-bank-reconciler/internal/store"
	apperrors "ledger-bank-reconciler/pkg/errors"
	"ledger-bank-reconciler/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reconciliation HTTP API",
	Long: `Serve starts the HTTP API used by the web interface.

Settings are read from the environment, after loading a .env file from the
working directory when one exists:

  PORT           listen port (default 8080)
  DATABASE_URL   PostgreSQL DSN for upload sessions; in-memory when empty
  CORS_ORIGINS   comma separated allowed origins (default http://localhost:3000)

The matching preset, tolerance and bank period flags of the config file
apply as the server defaults.`,
	PersistentPreRunE: setupServerLogger,
	RunE:              runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func setupServerLogger(cmd *cobra.Command, args []string) error {
	cfg := logger.ServerConfig()
	if viper.GetBool("verbose") {
		cfg.Level = logger.DebugLevel
	}
	// JSON lines unless --log-format was given explicitly
	if cmd.Flags().Changed("log-format") {
		cfg.Format = logger.Format(viper.GetString("log-format"))
	}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger().WithComponent("server")

	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, relying on system env")
	}

	serverConfig, err := config.LoadServerConfig(viper.GetViper())
	if err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "server", nil, err)
	}
	reconcilerConfig, err := config.LoadReconcilerConfig(viper.GetViper())
	if err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "reconciler", nil, err)
	}

	st, err := openStore(serverConfig, log)
	if err != nil {
		return err
	}

	service, err := reconciler.NewService(reconcilerConfig, st, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         serverConfig.Addr(),
		Handler:      api.NewRouter(serverConfig.Router, service, st, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: serverConfig.Router.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return apperrors.InternalError(apperrors.CodeUnexpectedError, "listen", err).
				WithSuggestion("Check that the port is free")
		}
		return nil
	case <-quit:
	}

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "shutdown", err)
	}

	log.Info("Server exited")
	return nil
}

// openStore picks the session store: PostgreSQL when DATABASE_URL is set,
// memory otherwise.
func openStore(cfg *config.ServerConfig, log logger.Logger) (reconciler.TransactionStore, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, sessions are kept in memory")
		return store.NewMemoryStore(), nil
	}
	st, err := store.OpenPostgres(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	log.Info("Sessions are stored in PostgreSQL")
	return st, nil
}
