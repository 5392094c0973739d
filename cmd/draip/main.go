package main

import (
	"context"
	"errors"
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
	"github.com/spf13/cobra"

	"github.com/hylla/draip/internal/adapters/advisor"
	"github.com/hylla/draip/internal/adapters/fixture"
	serveradapter "github.com/hylla/draip/internal/adapters/server"
	"github.com/hylla/draip/internal/adapters/storage/sqlite"
	"github.com/hylla/draip/internal/app"
	"github.com/hylla/draip/internal/config"
	"github.com/hylla/draip/internal/platform"
)

var version = "dev"

// program is the slice of *tea.Program the watch command needs.
type program interface {
	Run() (tea.Model, error)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCommand(&rootOptions{stdout: os.Stdout, stderr: os.Stderr, now: time.Now})
	err := fang.Execute(ctx, root, fang.WithVersion(version))
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes the command tree without fang's styled error output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(&rootOptions{stdout: stdout, stderr: stderr, now: time.Now})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceErrors = true
	return root.ExecuteContext(ctx)
}

// rootOptions holds persistent flag values shared by every subcommand.
type rootOptions struct {
	configPath  string
	dbPath      string
	appName     string
	fixturePath string
	devMode     bool

	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("DRAIP_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("DRAIP_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:   "draip",
		Short: "Adaptive day planner that replans as the day unfolds",
		Long: `draip builds a one-day itinerary from your travel profile, the current
weather, and nearby places, then keeps watching weather, fatigue, lateness, and
crowds, replanning the remaining day when something breaks.

Running draip without a subcommand opens the live dashboard.`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts)
		},
	}
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML (env DRAIP_CONFIG)")
	flags.StringVar(&opts.dbPath, "db", "", "path to the sqlite place cache (env DRAIP_DB_PATH)")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.StringVar(&opts.fixturePath, "fixture", "", "trip fixture TOML with location, weather, and places (env DRAIP_FIXTURE)")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newPlanCommand(opts),
		newWatchCommand(opts),
		newServeCommand(opts),
		newPathsCommand(opts),
	)
	return root
}

// runtimeEnv is the wired engine behind every trip command.
type runtimeEnv struct {
	paths       platform.Paths
	configPath  string
	fixturePath string
	cfg         config.Config
	logger      *runtimeLogger
	stderr      io.Writer
	repo        *sqlite.Repository
	session     *app.Session
}

func (opts *rootOptions) resolvePaths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
}

// openRuntime loads configuration, opens the place cache, and builds the trip
// session. tui mutes console logging so the dashboard renders cleanly.
func openRuntime(opts *rootOptions, command string, tui bool) (*runtimeEnv, error) {
	paths, err := opts.resolvePaths()
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("DRAIP_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	if dbPath == "" {
		dbPath = strings.TrimSpace(os.Getenv("DRAIP_DB_PATH"))
	}
	dbOverridden := dbPath != ""
	if !dbOverridden {
		dbPath = paths.DBPath
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(opts.stderr, opts.appName, opts.devMode, cfg.Logging, opts.now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if tui {
		logger.SetConsoleEnabled(false)
	}
	env := &runtimeEnv{paths: paths, configPath: configPath, cfg: cfg, logger: logger, stderr: opts.stderr}

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", dbPath)
	logger.Info("configuration loaded", "config_path", configPath, "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	env.fixturePath = resolveFixturePath(opts.fixturePath, cfg, paths)
	source := fixture.Default()
	if env.fixturePath != "" {
		source, err = fixture.Open(env.fixturePath)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("open trip fixture: %w", err)
		}
	}
	location, err := tripLocation(source, cfg)
	if err != nil {
		env.Close()
		return nil, err
	}
	logger.Info("trip source ready", "fixture", fixtureLabel(env.fixturePath), "city", location.City)

	profile, err := cfg.UserProfile()
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("resolve profile: %w", err)
	}

	logger.Info("opening sqlite place cache", "db_path", cfg.Database.Path)
	env.repo, err = sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		env.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	places := app.NewCachedPlaceSearcher(source, env.repo, cfg.Places.CacheTTL.Std(), opts.now, logger)

	sessionOpts := []app.SessionOption{
		app.WithLogger(logger),
		app.WithIDGenerator(uuid.NewString),
		app.WithClock(opts.now),
	}
	if advisorClient := newAdvisor(cfg.Advisor, logger); advisorClient != nil {
		sessionOpts = append(sessionOpts, app.WithAdvisor(advisorClient))
	}
	env.session = app.NewSession(source, places, app.SessionConfig{
		Location: location,
		Profile:  profile,
		RadiusM:  cfg.Places.RadiusM,
		Engine: app.EngineConfig{
			TopK: cfg.Engine.TopK,
			Monitor: app.MonitorConfig{
				FatigueThreshold:   cfg.Engine.FatigueThreshold,
				LateThresholdHours: cfg.Engine.LateThresholdHours,
				CrowdThreshold:     cfg.Engine.CrowdThreshold,
			},
			AdvisorTimeout: cfg.Engine.AdvisorTimeout.Std(),
		},
	}, sessionOpts...)
	logger.Debug("trip session initialized", "top_k", cfg.Engine.TopK, "radius_m", cfg.Places.RadiusM)
	return env, nil
}

// Close waits for background replans and releases the cache and log file.
func (e *runtimeEnv) Close() {
	if e == nil {
		return
	}
	if e.session != nil {
		e.session.Wait()
	}
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Warn("sqlite close failed", "db_path", e.cfg.Database.Path, "err", err)
		}
	}
	if err := e.logger.Close(); err != nil && e.logger.consoleEnabled {
		_, _ = fmt.Fprintf(e.stderr, "warning: close runtime log sink: %v\n", err)
	}
}

func (e *runtimeEnv) scheduler() *app.Scheduler {
	return app.NewScheduler(e.session, app.SchedulerConfig{
		WeatherRefresh:       e.cfg.Engine.WeatherRefresh.Std(),
		EvaluationInterval:   e.cfg.Engine.EvaluationInterval.Std(),
		FirstEvaluationDelay: e.cfg.Engine.FirstEvaluationDelay.Std(),
	}, e.logger)
}

// resolveFixturePath picks the flag or env value, then the config, then the
// per-user trip.toml when it exists. An empty result means the built-in trip.
func resolveFixturePath(flagValue string, cfg config.Config, paths platform.Paths) string {
	for _, candidate := range []string{flagValue, os.Getenv("DRAIP_FIXTURE"), cfg.Trip.Fixture} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	if _, err := os.Stat(paths.FixturePath); err == nil {
		return paths.FixturePath
	}
	return ""
}

func fixtureLabel(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}

func tripLocation(source *fixture.Source, cfg config.Config) (app.Location, error) {
	if city := strings.TrimSpace(cfg.Trip.City); city != "" {
		return app.Location{City: city, Lat: cfg.Trip.Lat, Lon: cfg.Trip.Lon}, nil
	}
	loc, err := source.Location()
	if err != nil {
		return app.Location{}, fmt.Errorf("resolve trip location: %w", err)
	}
	return loc, nil
}

// newAdvisor returns nil when the advisor is disabled or has no key; the
// engine then plans deterministically.
func newAdvisor(cfg config.AdvisorConfig, logger *runtimeLogger) app.PlanAdvisor {
	if !cfg.Enabled {
		return nil
	}
	client, err := advisor.New(advisor.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  os.Getenv(cfg.APIKeyEnv),
		Model:   cfg.Model,
		Timeout: cfg.Timeout.Std(),
	}, nil)
	if err != nil {
		if errors.Is(err, advisor.ErrMissingAPIKey) {
			logger.Warn("advisor disabled: api key not set", "env", cfg.APIKeyEnv)
		} else {
			logger.Warn("advisor disabled", "err", err)
		}
		return nil
	}
	logger.Info("advisor enabled", "model", cfg.Model, "base_url", cfg.BaseURL)
	return client
}

// parseBoolEnv reports the parsed value of name and whether it was set to a
// valid boolean.
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
