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
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/app"
	"github.com/JakeFAU/embedctl/internal/config"
	"github.com/JakeFAU/embedctl/internal/logging"
	"github.com/JakeFAU/embedctl/internal/metrics"
	"github.com/JakeFAU/embedctl/internal/telemetry"
)

// appFactory builds the application services. Tests swap it for one that wires fakes.
type appFactory func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error)

// cli carries state shared by every subcommand of one invocation.
type cli struct {
	newApp  appFactory
	cfgFile string
	verbose bool

	app    *app.App
	logger *zap.Logger
	tracer *sdktrace.TracerProvider
	span   trace.Span
}

// errWarned marks a command that already printed its outcome as a warning.
var errWarned = errors.New("warned")

// newRootCmd creates and configures the root command.
func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embedctl",
		Short: "Fetch, inspect and manage oEmbed data.",
		Long: `embedctl resolves URLs to embed HTML through oEmbed providers and discovery,
inspects the provider and handler registries, and maintains the embed caches
stored alongside a WordPress-schema content store.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Builds the application before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	cmd.PersistentFlags().BoolVar(&c.verbose, "verbose", false, "show debug information")

	cmd.AddCommand(newFetchCmd(c))
	cmd.AddCommand(newProviderCmd(c))
	cmd.AddCommand(newHandlerCmd(c))
	cmd.AddCommand(newCacheCmd(c))
	cmd.AddCommand(newServeCmd(c))
	return cmd
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	level := cfg.Logging.Level
	if c.verbose {
		level = "debug"
	}
	logger, err := logging.NewAtLevel(cfg.Logging.Development, level)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	c.logger = logger

	ctx := cmd.Context()
	tp, err := telemetry.InitTracerProvider(ctx, "embedctl")
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	c.tracer = tp
	// serve traces per request instead.
	if cmd.Name() != "serve" {
		ctx, c.span = telemetry.Tracer().Start(ctx, cmd.CommandPath())
		cmd.SetContext(ctx)
	}

	metrics.Init()
	a, err := c.newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	c.app = a
	return nil
}

// close ends the command span, releases the application and flushes metrics and logs.
func (c *cli) close() {
	if c.span != nil {
		c.span.End()
		c.span = nil
	}
	if c.app != nil {
		if path := c.app.Config().Metrics.Textfile; path != "" {
			if err := metrics.WriteTextfile(path); err != nil {
				c.logger.Warn("Metrics textfile write failed", zap.String("path", path), zap.Error(err))
			}
		}
		c.app.Close()
		c.app = nil
	}
	if c.tracer != nil {
		if err := c.tracer.Shutdown(context.Background()); err != nil {
			c.logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
		c.tracer = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, factory appFactory, args []string, stdout, stderr io.Writer) int {
	c := &cli{newApp: factory}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	c.close()
	switch {
	case err == nil, errors.Is(err, errWarned):
		return 0
	default:
		printError(stderr, err)
		return 1
	}
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, app.New, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
