// Package cmd defines and implements the CLI commands for the frisbee executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/frisbee/internal/app"
	"github.com/JakeFAU/frisbee/internal/config"
	"github.com/JakeFAU/frisbee/internal/logging"
)

// sessionKeyType is the key for storing the session in the context.
type sessionKeyType string

const sessionKey sessionKeyType = "session"

// newApp is the application factory. It's a variable so tests can inject
// fakes through app options.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// session carries what the root command prepared for a subcommand.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	app    *app.App
}

// start builds the application once, after the subcommand adjusted the config.
func (s *session) start(ctx context.Context) (*app.App, error) {
	if s.app != nil {
		return s.app, nil
	}
	a, err := newApp(ctx, s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application services: %w", err)
	}
	s.app = a
	return a, nil
}

func (s *session) close() {
	if s.app != nil {
		s.app.Close()
		s.app = nil
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
}

// newRootCmd creates and configures the root command. sess is filled in before
// any subcommand runs; the caller closes it.
func newRootCmd(sess *session) *cobra.Command {
	var (
		cfgFile  string
		envFile  string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "frisbee",
		Short: "Collect email addresses for a domain from search engine results.",
		Long: `frisbee drives search engines for a target domain, fetches the result
pages and extracts matching email addresses. Greedy runs keep searching the
new domains they discover.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Load configuration and logging before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(dotEnvPaths(envFile)...); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			sess.cfg, sess.logger = cfg, logger
			cmd.SetContext(context.WithValue(cmd.Context(), sessionKey, sess))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before configuration (default .env)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newEnginesCmd())
	return cmd
}

func dotEnvPaths(envFile string) []string {
	if envFile == "" {
		return nil
	}
	return []string{envFile}
}

func resolveSession(ctx context.Context) (*session, error) {
	s, ok := ctx.Value(sessionKey).(*session)
	if !ok || s == nil {
		return nil, errors.New("application services not initialized")
	}
	return s, nil
}

// run executes the root command with args, writing command output to out.
func run(ctx context.Context, args []string, out io.Writer) error {
	sess := &session{}
	defer sess.close()

	root := newRootCmd(sess)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.ExecuteContext(ctx) //nolint:wrapcheck
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "frisbee: %v\n", err)
		stop()
		os.Exit(1)
	}
}
