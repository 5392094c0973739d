// Package httpapi provides the REST HTTP adapter for the trip service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hylla/draip/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	trip common.TripService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over a trip service.
func NewHandler(trip common.TripService) *Handler {
	return &Handler{trip: trip}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.trip == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "trip service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	switch path {
	case "snapshot":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleSnapshot(w, r)
	case "candidates":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleCandidates(w, r)
	case "itinerary":
		if !requirePost(w, r) {
			return
		}
		h.handleBuildItinerary(w, r)
	case "analysis":
		if !requirePost(w, r) {
			return
		}
		h.handleRunAnalysis(w, r)
	case "feedback":
		if !requirePost(w, r) {
			return
		}
		h.handleFeedback(w, r)
	case "activities":
		if !requirePost(w, r) {
			return
		}
		h.handleAddActivity(w, r)
	case "disruption/dismiss":
		if !requirePost(w, r) {
			return
		}
		h.handleDismissDisruption(w, r)
	case "weather/refresh":
		if !requirePost(w, r) {
			return
		}
		h.handleRefreshWeather(w, r)
	case "places/reload":
		if !requirePost(w, r) {
			return
		}
		h.handleReloadPlaces(w, r)
	case "reset":
		if !requirePost(w, r) {
			return
		}
		h.handleReset(w, r)
	default:
		id, action, ok := resolveActivityRoute(path)
		if !ok {
			writeJSONError(w, http.StatusNotFound, APIError{
				Code:    "not_found",
				Message: "endpoint not found",
			})
			return
		}
		h.handleActivity(w, r, id, action)
	}
}

// handleSnapshot serves GET `/snapshot`.
func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.trip.Snapshot(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleCandidates serves GET `/candidates`.
func (h *Handler) handleCandidates(w http.ResponseWriter, r *http.Request) {
	places, err := h.trip.Candidates(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"candidates": places,
	})
}

// handleBuildItinerary serves POST `/itinerary`.
func (h *Handler) handleBuildItinerary(w http.ResponseWriter, r *http.Request) {
	itinerary, err := h.trip.BuildItinerary(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, itinerary)
}

// handleRunAnalysis serves POST `/analysis`.
func (h *Handler) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	result, err := h.trip.RunAnalysis(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	status := http.StatusOK
	if result.ReplanRequested {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result)
}

// handleFeedback serves POST `/feedback`.
func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req common.FeedbackRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	result, err := h.trip.SendFeedback(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAddActivity serves POST `/activities`.
func (h *Handler) handleAddActivity(w http.ResponseWriter, r *http.Request) {
	var req common.AddActivityRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	activity, err := h.trip.AddActivity(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

// handleActivity serves `/activities/{id}` and its confirm and complete actions.
func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request, id, action string) {
	switch action {
	case "":
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w, http.MethodDelete)
			return
		}
		if err := h.trip.DeleteActivity(r.Context(), id); err != nil {
			writeErrorFrom(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "confirm":
		if !requirePost(w, r) {
			return
		}
		activity, err := h.trip.ConfirmActivity(r.Context(), id)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, activity)
	case "complete":
		if !requirePost(w, r) {
			return
		}
		activity, err := h.trip.CompleteActivity(r.Context(), id)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, activity)
	}
}

// handleDismissDisruption serves POST `/disruption/dismiss`.
func (h *Handler) handleDismissDisruption(w http.ResponseWriter, r *http.Request) {
	if err := h.trip.DismissDisruption(r.Context()); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRefreshWeather serves POST `/weather/refresh`.
func (h *Handler) handleRefreshWeather(w http.ResponseWriter, r *http.Request) {
	weather, err := h.trip.RefreshWeather(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weather)
}

// handleReloadPlaces serves POST `/places/reload`.
func (h *Handler) handleReloadPlaces(w http.ResponseWriter, r *http.Request) {
	places, err := h.trip.ReloadPlaces(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"candidates": places,
	})
}

// handleReset serves POST `/reset`.
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	snap, err := h.trip.ResetTrip(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// resolveActivityRoute parses `activities/{id}` and `activities/{id}/{action}`.
func resolveActivityRoute(path string) (string, string, bool) {
	const prefix = "activities/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(path, prefix), "/")
	id := strings.TrimSpace(parts[0])
	if id == "" {
		return "", "", false
	}
	switch len(parts) {
	case 1:
		return id, "", true
	case 2:
		if parts[1] == "confirm" || parts[1] == "complete" {
			return id, parts[1], true
		}
	}
	return "", "", false
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// requirePost writes a 405 unless r is a POST.
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	writeMethodNotAllowed(w, http.MethodPost)
	return false
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrBusy):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "busy",
			Message: err.Error(),
			Hint:    "Retry once the running evaluation or replan finishes.",
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
			Hint:    "Fetch /snapshot for the current trip state.",
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "unavailable",
			Message: err.Error(),
			Hint:    "Refresh weather or reload places, then retry.",
		})
	case errors.Is(err, common.ErrUpstream):
		writeJSONError(w, http.StatusBadGateway, APIError{
			Code:    "upstream_error",
			Message: err.Error(),
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "canceled",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
