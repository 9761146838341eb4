// =============================================================================
// filingsync - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which starts the HTTP API.
//
// STARTUP SEQUENCE:
//   1. Load configuration
//   2. Open the SQLite store at database_path
//   3. Create the file manager rooted at data_dir
//   4. Create the API handler and router
//   5. Serve until SIGINT/SIGTERM, then shut down gracefully
//
// GRACEFUL SHUTDOWN:
//   1. Stop accepting new connections
//   2. Wait for active requests to complete (shutdown-timeout)
//   3. Close the database
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ginjaninja78/filingsync/internal/api"
	"github.com/ginjaninja78/filingsync/internal/runner"
	"github.com/ginjaninja78/filingsync/internal/store/sqlite"
	"github.com/ginjaninja78/filingsync/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// shutdownTimeout bounds the wait for in-flight requests.
var shutdownTimeout time.Duration

// serveCmd represents the 'serve' command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `The serve command starts the run-oriented HTTP API. Runs, uploads, metrics
and exceptions are kept in a SQLite database; uploaded and generated files
live under <data_dir>/runs/<run id>/.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "HTTP listen address (default :8080)")
	serveCmd.Flags().String("db", "", "SQLite database path (default <data_dir>/filingsync.db)")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "Time allowed for in-flight requests on shutdown")

	if err := viper.BindPFlag("listen_addr", serveCmd.Flags().Lookup("listen")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding listen flag: %v\n", err)
	}
	if err := viper.BindPFlag("database_path", serveCmd.Flags().Lookup("db")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding db flag: %v\n", err)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(cfg)
	defer closeLog()

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer st.Close()

	files := utils.NewFileManager(cfg.DataDir)
	if err := files.Writable(); err != nil {
		return err
	}

	handler := api.NewHandler(st, runner.New(logger), files, api.Config{
		MaxUploadBytes:   cfg.MaxUploadBytes(),
		OutputNameFormat: cfg.OutputNameFormat,
		CSV:              cfg.CSV,
		MinExpected:      cfg.MinExpectedFor,
	}, logger)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(handler, cfg.AllowedOrigins),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Str("data_dir", cfg.DataDir).
			Str("database", cfg.DatabasePath).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
