// ABOUTME: Action history and extension session queries
// ABOUTME: Available only when the relay runs with a database path

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/2389/dom-relay/internal/store"
)

// HistoryQuery filters History. Zero fields do not filter.
type HistoryQuery struct {
	Action  string
	Outcome string
	Agent   string
	Since   time.Duration // how far back to look
	Limit   int
}

func (q HistoryQuery) values() url.Values {
	v := url.Values{}
	if q.Action != "" {
		v.Set("action", q.Action)
	}
	if q.Outcome != "" {
		v.Set("outcome", q.Outcome)
	}
	if q.Agent != "" {
		v.Set("agent", q.Agent)
	}
	if q.Since > 0 {
		v.Set("since", q.Since.String())
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// History lists recorded actions, newest first.
func (c *Client) History(ctx context.Context, q HistoryQuery) ([]*store.ActionRecord, error) {
	path := "/history"
	if v := q.values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	var body struct {
		Actions []*store.ActionRecord `json:"actions"`
	}
	if err := c.getJSON(ctx, path, &body); err != nil {
		return nil, err
	}
	return body.Actions, nil
}

// GetAction fetches one recorded action.
func (c *Client) GetAction(ctx context.Context, id string) (*store.ActionRecord, error) {
	var rec store.ActionRecord
	if err := c.getJSON(ctx, "/history/"+url.PathEscape(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PruneHistory deletes records older than olderThan and returns how many were removed.
func (c *Client) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive, got %s", olderThan)
	}
	path := "/history?before=" + url.QueryEscape(olderThan.String())
	resp, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var body struct {
		Deleted int64 `json:"deleted"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return 0, err
	}
	return body.Deleted, nil
}

// Sessions lists recorded extension connections, newest first.
func (c *Client) Sessions(ctx context.Context, limit int) ([]*store.ExtensionSession, error) {
	path := "/sessions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var body struct {
		Sessions []*store.ExtensionSession `json:"sessions"`
	}
	if err := c.getJSON(ctx, path, &body); err != nil {
		return nil, err
	}
	return body.Sessions, nil
}
