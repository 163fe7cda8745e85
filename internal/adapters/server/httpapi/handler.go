// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hylla/gridsel/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	grid common.GridService
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

// NewHandler constructs one HTTP API adapter over the grid service.
func NewHandler(grid common.GridService) *Handler {
	return &Handler{grid: grid}
}

// route binds one sub-path to the single method it accepts.
type route struct {
	method string
	serve  func(*Handler, http.ResponseWriter, *http.Request)
}

var routes = map[string]route{
	"records":     {method: http.MethodGet, serve: (*Handler).handleListRecords},
	"actions":     {method: http.MethodPost, serve: (*Handler).handleRunBulkAction},
	"actions/log": {method: http.MethodGet, serve: (*Handler).handleListActionLog},
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.grid == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "grid service is not configured",
		})
		return
	}
	rt, ok := routes[strings.Trim(strings.TrimSpace(r.URL.Path), "/")]
	if !ok {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
		return
	}
	if r.Method != rt.method {
		writeMethodNotAllowed(w, rt.method)
		return
	}
	rt.serve(h, w, r)
}

// handleListRecords serves GET `/records`.
func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	archived, err := queryBool(values, "archived")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	page, err := queryInt(values, "page")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	pageSize, err := queryInt(values, "page_size")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}

	out, err := h.grid.ListRecords(r.Context(), common.ListRecordsRequest{
		Query: common.QueryFilter{
			Search:          strings.TrimSpace(values.Get("q")),
			Status:          strings.TrimSpace(values.Get("status")),
			IncludeArchived: archived,
		},
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRunBulkAction serves POST `/actions`.
func (h *Handler) handleRunBulkAction(w http.ResponseWriter, r *http.Request) {
	var req common.BulkActionRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	out, err := h.grid.RunBulkAction(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListActionLog serves GET `/actions/log`.
func (h *Handler) handleListActionLog(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query(), "limit")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	entries, err := h.grid.ListActionLog(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
	})
}

// queryInt parses one optional non-negative integer query value.
func queryInt(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer: %w", key, common.ErrInvalidArgument)
	}
	return n, nil
}

// queryBool parses one optional boolean query value.
func queryBool(values url.Values, key string) (bool, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, common.ErrInvalidArgument)
	}
	return v, nil
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNoSelection):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "no_selection",
			Message: err.Error(),
			Hint:    "Send ids, or set select_across with a query that matches records.",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidArgument):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
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
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidArgument, err))
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidArgument)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
