// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/draip/internal/adapters/server/common"
	"github.com/hylla/draip/internal/domain"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the trip tools.
func NewHandler(cfg Config, trip common.TripService) (*Handler, error) {
	if trip == nil {
		return nil, fmt.Errorf("trip service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerReadTools(mcpSrv, trip)
	registerPlanTools(mcpSrv, trip)
	registerActivityTools(mcpSrv, trip)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "draip"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerReadTools registers the snapshot and candidate listing tools.
func registerReadTools(srv *mcpserver.MCPServer, trip common.TripService) {
	srv.AddTool(
		mcp.NewTool(
			"draip.snapshot",
			mcp.WithDescription("Return the current trip state: itinerary, disruption, user state, metrics, and decision log."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			snap, err := trip.Snapshot(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("snapshot", snap)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"draip.list_candidates",
			mcp.WithDescription("List the candidate places the planner can choose from."),
			mcp.WithString("category", mcp.Description("Optional category filter")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			places, err := trip.Candidates(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			if raw := strings.TrimSpace(req.GetString("category", "")); raw != "" {
				category, err := domain.ParseCategory(raw)
				if err != nil {
					return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
				}
				filtered := places[:0:0]
				for _, p := range places {
					if p.Category == category {
						filtered = append(filtered, p)
					}
				}
				places = filtered
			}
			return jsonResult("list_candidates", map[string]any{
				"candidates": places,
			})
		},
	)
}

// registerPlanTools registers build, analysis, feedback, and disruption tools.
func registerPlanTools(srv *mcpserver.MCPServer, trip common.TripService) {
	srv.AddTool(
		mcp.NewTool(
			"draip.build_itinerary",
			mcp.WithDescription("Generate a fresh day itinerary from current weather and places."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			itinerary, err := trip.BuildItinerary(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("build_itinerary", itinerary)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"draip.run_analysis",
			mcp.WithDescription("Evaluate the active activity once. Disruptions found start a background replan."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := trip.RunAnalysis(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("run_analysis", result)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"draip.send_feedback",
			mcp.WithDescription("Apply one traveler feedback signal to the user state."),
			mcp.WithString("signal", mcp.Required(), mcp.Description("Feedback signal"), mcp.Enum("happy", "tired", "rushed", "bored")),
			mcp.WithNumber("intensity", mcp.Description("Signal intensity from 0 to 1")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			signal, err := req.RequireString("signal")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			result, err := trip.SendFeedback(ctx, common.FeedbackRequest{
				Signal:    signal,
				Intensity: req.GetFloat("intensity", 0.5),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("send_feedback", result)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"draip.dismiss_disruption",
			mcp.WithDescription("Dismiss the active disruption and keep the plan as is."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if err := trip.DismissDisruption(ctx); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("dismiss_disruption", map[string]any{
				"dismissed": true,
			})
		},
	)
}

// registerActivityTools registers per-activity commands.
func registerActivityTools(srv *mcpserver.MCPServer, trip common.TripService) {
	srv.AddTool(
		mcp.NewTool(
			"draip.add_activity",
			mcp.WithDescription("Append one candidate place to the plan as a pending activity."),
			mcp.WithString("candidate_id", mcp.Required(), mcp.Description("Candidate place identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			candidateID, err := req.RequireString("candidate_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			activity, err := trip.AddActivity(ctx, common.AddActivityRequest{CandidateID: candidateID})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_activity", activity)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"draip.confirm_activity",
			mcp.WithDescription("Confirm a pending activity."),
			mcp.WithString("activity_id", mcp.Required(), mcp.Description("Activity identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("activity_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			activity, err := trip.ConfirmActivity(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("confirm_activity", activity)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"draip.delete_activity",
			mcp.WithDescription("Remove one activity from the plan."),
			mcp.WithString("activity_id", mcp.Required(), mcp.Description("Activity identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("activity_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := trip.DeleteActivity(ctx, id); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_activity", map[string]any{
				"deleted": id,
			})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"draip.complete_activity",
			mcp.WithDescription("Mark the active activity done and move to the next one."),
			mcp.WithString("activity_id", mcp.Description("Optional guard: the activity expected to be active")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			activity, err := trip.CompleteActivity(ctx, req.GetString("activity_id", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("complete_activity", activity)
		},
	)
}

// jsonResult encodes one successful tool payload.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// toolResultFromError maps adapter errors into MCP tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrBusy):
		return mcp.NewToolResultError("busy: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("unavailable: " + err.Error())
	case errors.Is(err, common.ErrUpstream):
		return mcp.NewToolResultError("upstream_error: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
