package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hylla/draip/internal/adapters/server/common"
	"github.com/hylla/draip/internal/app"
	"github.com/hylla/draip/internal/domain"
)

// stubTrip provides deterministic trip responses for MCP tool tests.
type stubTrip struct {
	snapshot     app.Snapshot
	candidates   []domain.Candidate
	err          error
	lastFeedback common.FeedbackRequest
	lastID       string
}

func (s *stubTrip) Snapshot(context.Context) (app.Snapshot, error) {
	return s.snapshot, s.err
}

func (s *stubTrip) Candidates(context.Context) ([]domain.Candidate, error) {
	return append([]domain.Candidate(nil), s.candidates...), s.err
}

func (s *stubTrip) BuildItinerary(context.Context) (domain.Itinerary, error) {
	return s.snapshot.Itinerary, s.err
}

func (s *stubTrip) RunAnalysis(context.Context) (common.AnalysisResult, error) {
	return common.AnalysisResult{Disruptions: []domain.Disruption{}}, s.err
}

func (s *stubTrip) SendFeedback(_ context.Context, req common.FeedbackRequest) (app.FeedbackResult, error) {
	s.lastFeedback = req
	return app.FeedbackResult{State: domain.DefaultUserState()}, s.err
}

func (s *stubTrip) AddActivity(_ context.Context, req common.AddActivityRequest) (domain.Activity, error) {
	s.lastID = req.CandidateID
	return domain.Activity{ID: req.CandidateID, Status: domain.StatusPending}, s.err
}

func (s *stubTrip) ConfirmActivity(_ context.Context, id string) (domain.Activity, error) {
	s.lastID = id
	return domain.Activity{ID: id, Status: domain.StatusUpcoming}, s.err
}

func (s *stubTrip) DeleteActivity(_ context.Context, id string) error {
	s.lastID = id
	return s.err
}

func (s *stubTrip) CompleteActivity(_ context.Context, id string) (domain.Activity, error) {
	s.lastID = id
	return domain.Activity{ID: "m1", Status: domain.StatusDone}, s.err
}

func (s *stubTrip) DismissDisruption(context.Context) error {
	return s.err
}

func (s *stubTrip) RefreshWeather(context.Context) (domain.Weather, error) {
	return domain.Weather{}, s.err
}

func (s *stubTrip) ReloadPlaces(context.Context) ([]domain.Candidate, error) {
	return s.candidates, s.err
}

func (s *stubTrip) ResetTrip(context.Context) (app.Snapshot, error) {
	return app.Snapshot{Phase: app.PhasePlanning}, s.err
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// initializeRequest builds an MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "draip-test",
				"version": "1.0.0",
			},
		},
	}
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()
	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// startServer serves one MCP handler over stub and runs initialize.
func startServer(t *testing.T, stub *stubTrip) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, stub)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubTrip{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRequiresTripService verifies construction fails without a service.
func TestHandlerRequiresTripService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("NewHandler() error = nil, want error")
	}
}

// TestHandlerRegistersTripTools verifies tool discovery lists every trip tool.
func TestHandlerRegistersTripTools(t *testing.T) {
	server := startServer(t, &stubTrip{})
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})
	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, required := range []string{
		"draip.snapshot",
		"draip.build_itinerary",
		"draip.run_analysis",
		"draip.send_feedback",
		"draip.confirm_activity",
		"draip.delete_activity",
		"draip.complete_activity",
		"draip.add_activity",
		"draip.dismiss_disruption",
		"draip.list_candidates",
	} {
		if !slices.Contains(toolNames, required) {
			t.Fatalf("tool list missing %q: %#v", required, toolNames)
		}
	}
}

// TestHandlerSnapshotToolCall verifies snapshot results carry structured content.
func TestHandlerSnapshotToolCall(t *testing.T) {
	stub := &stubTrip{snapshot: app.Snapshot{
		Phase:     app.PhaseActive,
		Itinerary: domain.Itinerary{City: "Lisbon", Version: 4},
	}}
	server := startServer(t, stub)
	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "draip.snapshot", map[string]any{}))
	structured := toolResultStructured(t, callResp.Result)
	if structured["phase"] != string(app.PhaseActive) {
		t.Fatalf("phase = %#v, want active", structured["phase"])
	}
	itinerary, ok := structured["itinerary"].(map[string]any)
	if !ok || itinerary["version"] != float64(4) {
		t.Fatalf("itinerary = %#v, want version 4", structured["itinerary"])
	}
}

// TestHandlerFeedbackToolCall verifies arguments reach the trip service.
func TestHandlerFeedbackToolCall(t *testing.T) {
	stub := &stubTrip{}
	server := startServer(t, stub)
	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "draip.send_feedback", map[string]any{
		"signal":    "tired",
		"intensity": 0.9,
	}))
	if isErr, _ := callResp.Result["isError"].(bool); isErr {
		t.Fatalf("unexpected tool error: %s", toolResultText(t, callResp.Result))
	}
	if stub.lastFeedback.Signal != "tired" || stub.lastFeedback.Intensity != 0.9 {
		t.Fatalf("unexpected feedback request %+v", stub.lastFeedback)
	}

	_, callResp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "draip.send_feedback", map[string]any{
		"signal": "happy",
	}))
	if isErr, _ := callResp.Result["isError"].(bool); isErr {
		t.Fatalf("unexpected tool error: %s", toolResultText(t, callResp.Result))
	}
	if stub.lastFeedback.Intensity != 0.5 {
		t.Fatalf("intensity = %v, want default 0.5", stub.lastFeedback.Intensity)
	}
}

// TestHandlerListCandidatesFiltersCategory verifies the category filter.
func TestHandlerListCandidatesFiltersCategory(t *testing.T) {
	stub := &stubTrip{candidates: []domain.Candidate{
		{ID: "c1", Name: "Cafe", Category: domain.CategoryCafe},
		{ID: "m1", Name: "Museum", Category: domain.CategoryMuseum},
	}}
	server := startServer(t, stub)
	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "draip.list_candidates", map[string]any{
		"category": "museum",
	}))
	structured := toolResultStructured(t, callResp.Result)
	rows, ok := structured["candidates"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("candidates = %#v, want one row", structured["candidates"])
	}

	_, callResp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "draip.list_candidates", map[string]any{
		"category": "zoo",
	}))
	if isErr, _ := callResp.Result["isError"].(bool); !isErr {
		t.Fatalf("expected unknown category to fail: %#v", callResp.Result)
	}
}

// TestHandlerActivityToolCalls verifies activity ids reach the trip service.
func TestHandlerActivityToolCalls(t *testing.T) {
	stub := &stubTrip{}
	server := startServer(t, stub)
	cases := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"draip.add_activity", map[string]any{"candidate_id": "gulbenkian"}, "gulbenkian"},
		{"draip.confirm_activity", map[string]any{"activity_id": "castelo"}, "castelo"},
		{"draip.delete_activity", map[string]any{"activity_id": "maat"}, "maat"},
		{"draip.complete_activity", map[string]any{}, ""},
	}
	for idx, tc := range cases {
		stub.lastID = "unset"
		_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(10+idx, tc.tool, tc.args))
		if isErr, _ := callResp.Result["isError"].(bool); isErr {
			t.Fatalf("%s: unexpected tool error: %s", tc.tool, toolResultText(t, callResp.Result))
		}
		if stub.lastID != tc.want {
			t.Fatalf("%s: id = %q, want %q", tc.tool, stub.lastID, tc.want)
		}
	}
}

// TestHandlerToolErrorMapping verifies service errors surface as coded tool errors.
func TestHandlerToolErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{errors.Join(common.ErrConflict, app.ErrTripNotActive), "conflict: "},
		{errors.Join(common.ErrBusy, app.ErrEvaluationInProgress), "busy: "},
		{errors.Join(common.ErrUnavailable, app.ErrInsufficientData), "unavailable: "},
		{errors.New("boom"), "internal_error: "},
	}
	for idx, tc := range cases {
		server := startServer(t, &stubTrip{err: tc.err})
		_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(20+idx, "draip.run_analysis", map[string]any{}))
		if isErr, _ := callResp.Result["isError"].(bool); !isErr {
			t.Fatalf("expected tool error for %v", tc.err)
		}
		if text := toolResultText(t, callResp.Result); !strings.HasPrefix(text, tc.code) {
			t.Fatalf("text = %q, want prefix %q", text, tc.code)
		}
	}

	server := startServer(t, &stubTrip{})
	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(30, "draip.confirm_activity", map[string]any{}))
	if isErr, _ := callResp.Result["isError"].(bool); !isErr {
		t.Fatalf("expected missing activity_id to fail: %#v", callResp.Result)
	}
}
