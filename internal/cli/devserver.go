package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/flame/internal/config"
	"github.com/roach88/flame/internal/devserver"
)

// DevserverOptions holds flags for the devserver command.
type DevserverOptions struct {
	*RootOptions
	Addr    string
	Fixture string
}

// NewDevserverCommand creates the devserver command.
func NewDevserverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DevserverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run the in-memory development backend",
		Long: `Serve the catalog API from memory, seeded from an optional YAML fixture.
Data lives until the process exits.

Examples:
  flame devserver --addr 127.0.0.1:5000
  flame devserver --fixture ./fixtures/basic.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevserver(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:5000", "listen address")
	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "YAML fixture to seed users, species and reactions")
	return cmd
}

func runDevserver(cmd *cobra.Command, opts *DevserverOptions) error {
	cfg, err := config.Load(config.Options{File: opts.ConfigFile, Flags: cmd.Flags()})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger, err := newLogger(cmd, cfg, opts.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	defer func() { _ = logger.Sync() }()

	srv := devserver.New(devserver.WithLogger(logger), devserver.WithBcryptCost(bcrypt.DefaultCost))
	if opts.Fixture != "" {
		fx, err := devserver.LoadFixture(opts.Fixture)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load fixture", err)
		}
		if err := srv.Seed(fx); err != nil {
			return WrapExitError(ExitCommandError, "failed to seed backend", err)
		}
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	hs := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}

	ctx := cmd.Context()
	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()

	fmt.Fprintf(cmd.OutOrStdout(), "serving on http://%s\n", ln.Addr())
	logger.Info("devserver started", zap.String("addr", ln.Addr().String()), zap.String("fixture", opts.Fixture))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitCommandError, "shutdown failed", err)
	}
	logger.Info("devserver stopped")
	return nil
}
