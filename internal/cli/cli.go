package cli

import (
	"context"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/parsegraph/internal/config"
	"github.com/matzehuels/parsegraph/pkg/analysis"
	"github.com/matzehuels/parsegraph/pkg/buildinfo"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = config.AppName

	// cacheFile holds persisted analysis results inside the cache directory.
	cacheFile = "results.json"
)

// Log levels accepted by New and SetLogLevel.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	cfg        config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
// The configuration file is loaded before any subcommand runs.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Parsegraph analyses source code remotely and renders its parse graphs",
		Long: `Parsegraph sends source code to an analysis backend, shows the tokens and
diagnostics it finds, and renders the parse tree and AST it returns as graphs.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/parsegraph/config.toml)")

	// Register all subcommands
	root.AddCommand(c.analyzeCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Service Factory
// =============================================================================

// backendFlags are the connection flags shared by commands that talk to the
// analysis backend. Unset flags fall back to the loaded configuration.
type backendFlags struct {
	server  string
	timeout string
	retries int
	noCache bool
}

func (f *backendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", "", "analysis backend URL")
	cmd.Flags().StringVar(&f.timeout, "timeout", "", "per-request timeout (e.g. 10s)")
	cmd.Flags().IntVar(&f.retries, "retries", 0, "total attempts per analysis")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the result cache")
}

// apply overlays the flags on cfg and validates the result.
func (f *backendFlags) apply(cfg config.Config) (config.Config, error) {
	if f.server != "" {
		cfg.Server = f.server
	}
	if f.timeout != "" {
		if err := cfg.Timeout.UnmarshalText([]byte(f.timeout)); err != nil {
			return cfg, err
		}
	}
	if f.retries > 0 {
		cfg.Retries = f.retries
	}
	if f.noCache {
		cfg.Cache = false
	}
	return cfg, cfg.Validate()
}

// newService creates an analysis service from the configuration and flags.
func (c *CLI) newService(ctx context.Context, f *backendFlags) (*analysis.Service, config.Config, error) {
	cfg, err := f.apply(c.cfg)
	if err != nil {
		return nil, cfg, err
	}
	return analysis.New(cfg.AnalysisOptions(loggerFromContext(ctx))), cfg, nil
}

// =============================================================================
// Result Cache Persistence
// =============================================================================

// cachePath returns the file that persists analysis results between runs.
func cachePath() (string, error) {
	dir, err := config.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, cacheFile), nil
}

// loadCache restores persisted results for the service's backend. Failures
// only cost a cache miss, so they are logged and ignored.
func loadCache(logger *log.Logger, svc *analysis.Service) {
	if !svc.CacheEnabled() {
		return
	}
	path, err := cachePath()
	if err != nil {
		return
	}
	n, err := svc.Cache().LoadFile(path, svc.BaseURL(), analysis.CheckResult)
	if err != nil {
		logger.Warn("could not load result cache", "path", path, "error", err)
		return
	}
	logger.Debug("loaded result cache", "entries", n, "path", path)
}

// saveCache persists the service's results for the next run.
func saveCache(logger *log.Logger, svc *analysis.Service) {
	if !svc.CacheEnabled() || svc.Cache().Len() == 0 {
		return
	}
	path, err := cachePath()
	if err != nil {
		return
	}
	if err := svc.Cache().SaveFile(path, svc.BaseURL()); err != nil {
		logger.Warn("could not save result cache", "path", path, "error", err)
	}
}
