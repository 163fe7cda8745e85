package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/hylla/gridsel/internal/adapters/server"
	"github.com/hylla/gridsel/internal/adapters/storage/sqlite"
	"github.com/hylla/gridsel/internal/app"
	"github.com/hylla/gridsel/internal/config"
	"github.com/hylla/gridsel/internal/platform"
	"github.com/hylla/gridsel/internal/tui"
	"github.com/spf13/cobra"
)

var version = "dev"

type program interface {
	Run() (tea.Model, error)
}

var programFactory = func(ctx context.Context, m tea.Model) program {
	return tea.NewProgram(m, tea.WithContext(ctx))
}

// serveCommandRunner starts serve mode. Tests replace it to avoid binding sockets.
var serveCommandRunner = server.Run

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes it through fang.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if args == nil {
		args = []string{}
	}

	root := newRootCommand(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	logLevel   string
	stderr     io.Writer
}

func newRootCommand(stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stderr: stderr}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("GRIDSEL_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := "gridsel"
	if envApp := strings.TrimSpace(os.Getenv("GRIDSEL_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:   "gridsel",
		Short: "Bulk row selection for admin record grids",
		Long: `gridsel is a terminal admin grid with bulk row selection.

Select rows one at a time, by shift-range, or the whole page, then extend the
selection to every record matching the current search and run one bulk action
on the lot. The same grid is exposed over HTTP and MCP with the serve command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")

	root.AddCommand(
		newPathsCommand(opts),
		newConfigCommand(opts),
		newServeCommand(opts),
		newSeedCommand(opts),
		newListCommand(opts),
		newExportCommand(opts),
		newBulkCommand(opts),
		newLogCommand(opts),
	)
	return root
}

// runtimeEnv is the wired application for one command invocation.
type runtimeEnv struct {
	appName    string
	devMode    bool
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
	repo       *sqlite.Repository
	svc        *app.Service
}

func (o *rootOptions) resolvePaths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// resolveConfig applies flag, env and file precedence for the config and db paths.
func (o *rootOptions) resolveConfig(paths platform.Paths) (string, config.Config, error) {
	configPath := strings.TrimSpace(o.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("GRIDSEL_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}

	dbPath := strings.TrimSpace(o.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("GRIDSEL_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return "", config.Config{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	if level := strings.ToLower(strings.TrimSpace(o.logLevel)); level != "" {
		cfg.Logging.Level = level
		if err := cfg.Validate(); err != nil {
			return "", config.Config{}, err
		}
	}
	return configPath, cfg, nil
}

// open resolves configuration, starts logging, and opens the repository.
func (o *rootOptions) open(command string, console bool) (*runtimeEnv, error) {
	paths, err := o.resolvePaths()
	if err != nil {
		return nil, err
	}
	configPath, cfg, err := o.resolveConfig(paths)
	if err != nil {
		return nil, err
	}

	logger, err := newRuntimeLogger(o.stderr, o.appName, o.devMode, paths.LogDir, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	// Muted for the grid, which owns the terminal.
	logger.SetConsoleEnabled(console)

	logger.Info("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	logger.Debug("sqlite repository ready", "db_path", cfg.Database.Path)

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		DefaultPageSize: cfg.Grid.PageSize,
	})

	return &runtimeEnv{
		appName:    o.appName,
		devMode:    o.devMode,
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		svc:        svc,
	}, nil
}

// Close releases the repository and log file.
func (e *runtimeEnv) Close() {
	if e == nil {
		return
	}
	if err := e.repo.Close(); err != nil {
		e.logger.Warn("sqlite close failed", "db_path", e.cfg.Database.Path, "err", err)
	}
	_ = e.logger.Close()
}

func runTUI(ctx context.Context, opts *rootOptions) error {
	env, err := opts.open("tui", false)
	if err != nil {
		return err
	}
	defer env.Close()

	env.logger.Info("command flow start", "command", "tui")
	model := tui.NewModel(env.svc,
		tui.WithRuntimeConfig(toTUIRuntimeConfig(env.cfg)),
		tui.WithLogger(env.logger.File()),
	)
	if _, err := programFactory(ctx, model).Run(); err != nil {
		env.logger.Error("command flow failed", "command", "tui", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	env.logger.Info("command flow complete", "command", "tui")
	return nil
}

// toTUIRuntimeConfig maps the persisted config onto the grid's runtime options.
func toTUIRuntimeConfig(cfg config.Config) tui.RuntimeConfig {
	return tui.RuntimeConfig{
		PageSize:                 cfg.Grid.PageSize,
		SuppressSinglePagePrompt: cfg.Grid.SuppressSinglePagePrompt,
		ShowArchived:             cfg.Grid.ShowArchived,
		Confirm: tui.ConfirmConfig{
			Delete:  cfg.Confirm.Delete,
			Archive: cfg.Confirm.Archive,
			Change:  cfg.Confirm.Change,
		},
		Keys: tui.KeyConfig{
			ToggleRow:     cfg.Keys.ToggleRow,
			RangeToggle:   cfg.Keys.RangeToggle,
			ToggleAll:     cfg.Keys.ToggleAll,
			ConfirmAcross: cfg.Keys.ConfirmAcross,
			ClearAcross:   cfg.Keys.ClearAcross,
			Actions:       cfg.Keys.Actions,
			Search:        cfg.Keys.Search,
		},
	}
}

// parseBoolEnv parses a boolean environment variable and reports whether it was set.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
