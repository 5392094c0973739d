package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	serveradapter "github.com/hylla/draip/internal/adapters/server"
	"github.com/hylla/draip/internal/adapters/server/common"
	"github.com/hylla/draip/internal/app"
	"github.com/hylla/draip/internal/tui"
)

func newPlanCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build today's itinerary once and print it",
		Long: `Fetch weather and nearby places, build an itinerary for the configured
profile, and print it. Nothing is monitored afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd.Context(), opts, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full session snapshot as JSON")
	return cmd
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open the live dashboard (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts)
		},
	}
}

// serveFlags override the [server] config section.
type serveFlags struct {
	httpBind    string
	apiEndpoint string
	mcpEndpoint string
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the trip over HTTP JSON and MCP",
		Long: `Run the trip engine headless. The session is exposed as a JSON API and
as MCP tools on one listener while the scheduler keeps evaluating it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, flags)
		},
	}
	cmd.Flags().StringVar(&flags.httpBind, "http", "", "listen address (default server.http_bind)")
	cmd.Flags().StringVar(&flags.apiEndpoint, "api-endpoint", "", "JSON API base path (default server.api_endpoint)")
	cmd.Flags().StringVar(&flags.mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path (default server.mcp_endpoint)")
	return cmd
}

func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, fixture, and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			w := opts.stdout
			_, _ = fmt.Fprintf(w, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(w, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(w, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(w, "fixture: %s\n", paths.FixturePath)
			_, _ = fmt.Fprintf(w, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(w, "db: %s\n", paths.DBPath)
			return nil
		},
	}
}

func runPlan(ctx context.Context, opts *rootOptions, asJSON bool) error {
	env, err := openRuntime(opts, "plan", false)
	if err != nil {
		return err
	}
	defer env.Close()

	env.logger.Info("command flow start", "command", "plan")
	if _, err := env.session.BuildItinerary(ctx); err != nil {
		env.logger.Error("command flow failed", "command", "plan", "err", err)
		return fmt.Errorf("build itinerary: %w", err)
	}
	snap := env.session.Snapshot()
	if asJSON {
		enc := json.NewEncoder(opts.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
	} else if err := writePlan(opts.stdout, snap); err != nil {
		return err
	}
	env.logger.Info("command flow complete", "command", "plan", "version", snap.Itinerary.Version)
	return nil
}

// writePlan renders the itinerary as a bordered table with a cost footer.
func writePlan(w io.Writer, snap app.Snapshot) error {
	it := snap.Itinerary
	var b strings.Builder
	fmt.Fprintf(&b, "%s (v%d)\n", it.Theme, it.Version)
	if snap.Weather != nil {
		fmt.Fprintf(&b, "weather: %s %.0f°C\n", snap.Weather.Condition, snap.Weather.Temperature)
	}

	rows := make([][]string, 0, len(it.Activities))
	for _, a := range it.Activities {
		setting := "outdoor"
		if a.IsIndoor {
			setting = "indoor"
		}
		rows = append(rows, []string{
			a.StartTime.String() + "-" + a.EndTime.String(),
			a.Name,
			string(a.Category),
			fmt.Sprintf("$%.2f", a.CostUSD),
			setting,
			string(a.Status),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TIME", "ACTIVITY", "CATEGORY", "COST", "SETTING", "STATUS").
		Rows(rows...)
	b.WriteString(t.Render())
	b.WriteString("\n")

	fmt.Fprintf(&b, "total: $%.2f of $%.2f  walking: %.1f km\n", it.TotalCostUSD(), snap.Profile.BudgetPerDay, it.WalkingKm())
	if note := strings.TrimSpace(it.PlannerNote); note != "" {
		fmt.Fprintf(&b, "note: %s\n", note)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func runWatch(ctx context.Context, opts *rootOptions) error {
	env, err := openRuntime(opts, "watch", true)
	if err != nil {
		return err
	}
	defer env.Close()
	env.logger.Info("command flow start", "command", "tui")

	updates, unsubscribe := env.session.Subscribe()
	defer unsubscribe()
	model := tui.NewModel(common.NewSessionAdapter(env.session), tui.WithUpdates(updates))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return env.scheduler().Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		if _, err := programFactory(model).Run(); err != nil {
			return fmt.Errorf("run tui program: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		env.logger.Error("command flow failed", "command", "tui", "err", err)
		return err
	}
	env.logger.Info("command flow complete", "command", "tui")
	return nil
}

func runServe(ctx context.Context, opts *rootOptions, flags serveFlags) error {
	env, err := openRuntime(opts, "serve", false)
	if err != nil {
		return err
	}
	defer env.Close()

	cfg := serveradapter.Config{
		HTTPBind:      firstNonEmpty(flags.httpBind, env.cfg.Server.HTTPBind),
		APIEndpoint:   firstNonEmpty(flags.apiEndpoint, env.cfg.Server.APIEndpoint),
		MCPEndpoint:   firstNonEmpty(flags.mcpEndpoint, env.cfg.Server.MCPEndpoint),
		ServerName:    opts.appName,
		ServerVersion: version,
	}
	env.logger.Info("command flow start", "command", "serve", "http", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return env.scheduler().Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return serveCommandRunner(gctx, cfg, serveradapter.Dependencies{
			Trip: common.NewSessionAdapter(env.session),
		})
	})
	if err := g.Wait(); err != nil {
		env.logger.Error("command flow failed", "command", "serve", "err", err)
		return fmt.Errorf("run serve command: %w", err)
	}
	env.logger.Info("command flow complete", "command", "serve")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
