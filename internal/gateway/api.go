// ABOUTME: HTTP API handlers for agents: execute, health, status and action history
// ABOUTME: POST /execute blocks until the extension replies, the deadline passes, or the extension goes away

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/2389/dom-relay/internal/auth"
	"github.com/2389/dom-relay/internal/dedupe"
	"github.com/2389/dom-relay/internal/relay"
	"github.com/2389/dom-relay/internal/store"
)

// maxExecuteBody caps the POST /execute request body.
const maxExecuteBody = 1 << 20

// historyWriteTimeout bounds a single history insert.
const historyWriteTimeout = 5 * time.Second

// IdempotencyHeader names the request header used to deduplicate retries.
const IdempotencyHeader = "Idempotency-Key"

// ReplayedHeader is set on responses served from the idempotency cache.
const ReplayedHeader = "Idempotent-Replayed"

// ExecuteRequest is the JSON body for POST /execute.
type ExecuteRequest struct {
	Action   string  `json:"action"`
	Selector string  `json:"selector"`
	Value    *string `json:"value,omitempty"`
	URL      string  `json:"url,omitempty"`
	Timeout  int64   `json:"timeout,omitempty"` // milliseconds
}

// HealthResponse is the JSON body for GET /health.
type HealthResponse struct {
	Status             string  `json:"status"`
	ExtensionConnected bool    `json:"extensionConnected"`
	PendingRequests    int     `json:"pendingRequests"`
	Uptime             float64 `json:"uptime"`
}

// StatusResponse is the JSON body for GET /status.
type StatusResponse struct {
	relay.Status
	HistoryEnabled bool `json:"historyEnabled"`
	AuthEnabled    bool `json:"authEnabled"`
}

// parseExecuteRequest decodes and validates an ExecuteRequest.
func parseExecuteRequest(r io.Reader) (relay.ActionRequest, error) {
	var body ExecuteRequest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&body); err != nil {
		return relay.ActionRequest{}, errors.New("invalid JSON body")
	}
	if body.Timeout < 0 {
		return relay.ActionRequest{}, errors.New("timeout must not be negative")
	}

	req := relay.ActionRequest{
		Action:   body.Action,
		Selector: body.Selector,
		Value:    body.Value,
		URL:      body.URL,
		Timeout:  time.Duration(body.Timeout) * time.Millisecond,
	}
	if err := req.Validate(); err != nil {
		return relay.ActionRequest{}, err
	}
	return req, nil
}

func (g *Gateway) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, err := parseExecuteRequest(http.MaxBytesReader(w, r.Body, maxExecuteBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, relay.Failure(err.Error()))
		return
	}

	key := r.Header.Get(IdempotencyHeader)
	if key != "" && g.idempotency != nil {
		state, cached := g.idempotency.Begin(key)
		switch state {
		case dedupe.InFlight:
			g.sendJSONError(w, http.StatusConflict, "a request with this Idempotency-Key is still in progress")
			return
		case dedupe.Done:
			w.Header().Set(ReplayedHeader, "true")
			writeJSON(w, http.StatusOK, cached)
			return
		}
	} else {
		key = ""
	}

	agent := auth.AgentFromContext(r.Context())
	started := time.Now()
	waiter := g.relay.Submit(req)

	select {
	case res := <-waiter.Done():
		g.finishExecute(key, agent, req, res, started)
		writeJSON(w, http.StatusOK, res)
	case <-r.Context().Done():
		// The request stays registered until it resolves; record it then.
		g.pending.Add(1)
		go func() {
			defer g.pending.Done()
			res := <-waiter.Done()
			g.finishExecute(key, agent, req, res, started)
		}()
		g.logger.Debug("agent went away before result", "action", req.Action, "selector", req.Selector)
	}
}

// finishExecute settles the idempotency entry and records history for a resolved request.
func (g *Gateway) finishExecute(key, agent string, req relay.ActionRequest, res relay.Result, started time.Time) {
	switch {
	case key == "":
	case res.Outcome() == relay.OutcomeNotConnected:
		// Never dispatched, so a retry with the same key may run it.
		g.idempotency.Abandon(key)
	default:
		g.idempotency.Complete(key, res)
	}

	elapsed := time.Since(started)
	g.logger.Info("action completed",
		"action", req.Action,
		"selector", req.Selector,
		"outcome", res.Outcome(),
		"duration", elapsed,
	)

	if g.store == nil {
		return
	}
	rec := &store.ActionRecord{
		ID:          uuid.NewString(),
		Agent:       agent,
		Action:      req.Action,
		Selector:    req.Selector,
		URL:         req.URL,
		HasValue:    req.Value != nil,
		Success:     res.Success,
		Outcome:     string(res.Outcome()),
		Error:       res.Error,
		ElementType: res.ElementType,
		Duration:    elapsed,
		CreatedAt:   started.UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()
	if err := g.store.SaveAction(ctx, rec); err != nil {
		g.logger.Error("failed to record action", "error", err)
	}
}

// handleHealth returns 200 while the process is up, with extension state.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := g.relay.Snapshot()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:             "ok",
		ExtensionConnected: st.ExtensionConnected,
		PendingRequests:    st.PendingRequestCount,
		Uptime:             st.UptimeSeconds,
	})
}

// handleReady returns 200 only when an extension is attached.
func (g *Gateway) handleReady(w http.ResponseWriter, _ *http.Request) {
	if g.relay.Hub().State() != relay.StateConnected {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("extension not connected"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (g *Gateway) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:         g.relay.Snapshot(),
		HistoryEnabled: g.store != nil,
		AuthEnabled:    g.verifier != nil,
	})
}

// parseHistoryFilter reads limit, action, outcome, agent and since query parameters.
// since accepts an RFC 3339 timestamp or a duration measured back from now.
func parseHistoryFilter(r *http.Request, now time.Time) (store.ActionFilter, error) {
	q := r.URL.Query()
	filter := store.ActionFilter{
		Action:  q.Get("action"),
		Outcome: q.Get("outcome"),
		Agent:   q.Get("agent"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid limit %q", v)
		}
		filter.Limit = n
	}

	if v := q.Get("since"); v != "" {
		since, err := parseTimeOrAgo(v, now)
		if err != nil {
			return filter, fmt.Errorf("invalid since: %w", err)
		}
		filter.Since = &since
	}
	return filter, nil
}

func parseTimeOrAgo(v string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor a duration", v)
	}
	return now.Add(-d), nil
}

func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		g.sendJSONError(w, http.StatusNotFound, "history is disabled")
		return
	}
	filter, err := parseHistoryFilter(r, time.Now())
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := g.store.ListActions(r.Context(), filter)
	if err != nil {
		g.logger.Error("failed to list actions", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if records == nil {
		records = []*store.ActionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": records})
}

func (g *Gateway) handleGetAction(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		g.sendJSONError(w, http.StatusNotFound, "history is disabled")
		return
	}
	rec, err := g.store.GetAction(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "action not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to get action", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handlePruneHistory deletes records older than ?before (RFC 3339 or a duration ago).
func (g *Gateway) handlePruneHistory(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		g.sendJSONError(w, http.StatusNotFound, "history is disabled")
		return
	}
	v := r.URL.Query().Get("before")
	if v == "" {
		g.sendJSONError(w, http.StatusBadRequest, "before is required")
		return
	}
	before, err := parseTimeOrAgo(v, time.Now())
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid before: "+err.Error())
		return
	}

	n, err := g.store.PruneActions(r.Context(), before)
	if err != nil {
		g.logger.Error("failed to prune actions", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.logger.Info("pruned action history", "before", before, "deleted", n)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (g *Gateway) handleSessions(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		g.sendJSONError(w, http.StatusNotFound, "history is disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			g.sendJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	sessions, err := g.store.ListSessions(r.Context(), limit)
	if err != nil {
		g.logger.Error("failed to list sessions", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if sessions == nil {
		sessions = []*store.ExtensionSession{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// sendJSONError sends a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
