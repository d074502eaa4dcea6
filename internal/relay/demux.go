// ABOUTME: Reply demultiplexer: decodes executor messages and resolves the matching waiter.
// ABOUTME: Uncorrelatable or late messages are logged and dropped, never fatal.

package relay

import (
	"encoding/json"
)

// inboundMessage is an executor reply. ID is a RawMessage so numeric or
// otherwise mistyped IDs can be reported instead of failing the decode.
type inboundMessage struct {
	ID          json.RawMessage `json:"id"`
	Type        string          `json:"type,omitempty"`
	Method      string          `json:"method,omitempty"`
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
	ElementType string          `json:"elementType,omitempty"`
}

// HandleMessage processes one raw message received from the executor.
func (r *Relay) HandleMessage(raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.counters.dropped.Add(1)
		r.logger.Warn("dropping malformed extension message", "error", err, "bytes", len(raw))
		return
	}

	if isKeepalive(msg) {
		return
	}

	var id string
	if len(msg.ID) == 0 || json.Unmarshal(msg.ID, &id) != nil || id == "" {
		r.counters.dropped.Add(1)
		r.logger.Warn("dropping extension message without usable id",
			"id", string(msg.ID),
			"type", msg.Type,
		)
		return
	}

	res := Result{
		Success:     msg.Success,
		Data:        decodeData(msg.Data),
		Error:       msg.Error,
		ElementType: msg.ElementType,
	}
	if !res.Success && res.Error == "" {
		res.Error = "Unknown error"
	}

	if !r.table.Resolve(id, res) {
		r.counters.lateReplies.Add(1)
		r.logger.Debug("ignoring reply for request no longer pending", "request_id", id)
		return
	}
	r.logger.Debug("reply correlated", "request_id", id, "success", res.Success)
}

func isKeepalive(msg inboundMessage) bool {
	switch {
	case msg.Type == "pong" || msg.Type == "ping" || msg.Type == "hello":
		return true
	case msg.Method == "pong" || msg.Method == "ping":
		return true
	}
	return false
}

// decodeData accepts a JSON string verbatim and renders any other JSON
// value (number, bool, object) as its compact text.
func decodeData(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
