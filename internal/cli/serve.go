package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/medibox/internal/catalog"
)

// shutdownTimeout bounds how long in-flight HTTP requests may take to finish.
const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Addr     string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the handlers and the HTTP API",
		Long: `Start the medibox backend.

Opens the tree database (creating it if it doesn't exist), starts the
enrichment, run-out alert and order handlers, and serves the medicine
search and tree API over HTTP until interrupted.

Settings come from the environment (or the --env-file dotenv file):
  MEDIBOX_DB, MEDIBOX_HTTP_ADDR, GOOGLE_APPLICATION_CREDENTIALS,
  MEDIBOX_ORDER_TOPIC, MEDIBOX_HANDLER_TIMEOUT, MEDIBOX_LOG_LEVEL

Example:
  medibox serve
  medibox serve --db ./medibox.db --addr :9090 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides MEDIBOX_DB)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "HTTP listen address (overrides MEDIBOX_HTTP_ADDR)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}
	if opts.Addr != "" {
		cfg.HTTPAddr = opts.Addr
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	a, err := startApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fail(CodeConfig, "failed to listen", err)
	}
	srv := &http.Server{
		Handler:           catalog.New(a.store).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	slog.Info("medibox serving", "addr", ln.Addr().String(), "db", cfg.DBPath)
	fmt.Fprintf(cmd.OutOrStdout(), "medibox serving on %s\n", ln.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fail(CodeServer, "http server error", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}

	slog.Info("medibox stopped gracefully")
	return nil
}
