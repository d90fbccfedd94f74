package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newServeCmd creates the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serves the run API on server.port. Every run submitted over HTTP shares
one worker pool and the configured sinks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			if port > 0 {
				sess.cfg.Server.Port = port
			}
			return serve(cmd.Context(), sess)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default server.port)")
	return cmd
}

func serve(ctx context.Context, sess *session) error {
	a, err := sess.start(ctx)
	if err != nil {
		return err
	}
	logger := sess.logger
	a.Start(ctx)
	apiServer := a.Server()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(sess.cfg.Server.Port)),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", sess.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("runs still in flight at shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
