// ABOUTME: Action request/result types exchanged between agents, the relay, and the executor.
// ABOUTME: Defines the terminal error strings every failure path resolves with.

package relay

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Actions the executor understands.
const (
	ActionRead  = "read"
	ActionWrite = "write"
	ActionClick = "click"
)

// Terminal error strings carried in Result.Error.
const (
	ErrorNotConnected = "Extension not connected"
	ErrorSendFailed   = "Send failed"
	ErrorTimeout      = "Request timeout"
	ErrorDisconnected = "Extension disconnected"
	ErrorDuplicateID  = "Duplicate request id"
)

// DefaultTimeout applies when a request does not carry its own timeout.
const DefaultTimeout = 30 * time.Second

// ErrInvalidRequest is wrapped by every validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// ActionRequest is what an agent submits. Timeout is relay-side only.
type ActionRequest struct {
	Action   string        `json:"action"`
	Selector string        `json:"selector"`
	Value    *string       `json:"value,omitempty"`
	URL      string        `json:"url,omitempty"`
	Timeout  time.Duration `json:"-"`
}

// Validate checks the fields the executor protocol requires.
func (r *ActionRequest) Validate() error {
	switch r.Action {
	case ActionRead, ActionClick:
	case ActionWrite:
		if r.Value == nil {
			return fmt.Errorf("%w: value is required for write", ErrInvalidRequest)
		}
	case "":
		return fmt.Errorf("%w: action is required", ErrInvalidRequest)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, r.Action)
	}
	if strings.TrimSpace(r.Selector) == "" {
		return fmt.Errorf("%w: selector is required", ErrInvalidRequest)
	}
	return nil
}

// outboundMessage is the wire form sent to the executor.
type outboundMessage struct {
	ID       string  `json:"id"`
	Action   string  `json:"action"`
	Selector string  `json:"selector"`
	Value    *string `json:"value,omitempty"`
	URL      string  `json:"url,omitempty"`
	Timeout  int64   `json:"timeout,omitempty"` // milliseconds
}

// Result is the terminal outcome of one request.
type Result struct {
	Success     bool   `json:"success"`
	Data        string `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
	ElementType string `json:"elementType,omitempty"`

	// outcome is set when the relay itself resolves the request, so
	// executor errors are never mistaken for relay failures.
	outcome Outcome
}

// Failure builds a success:false result with the given message.
func Failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

func relayFailure(o Outcome, msg string) Result {
	return Result{Success: false, Error: msg, outcome: o}
}

func sendFailed(err error) Result {
	return relayFailure(OutcomeSendFailed, fmt.Sprintf("%s: %v", ErrorSendFailed, err))
}

func timedOut() Result { return relayFailure(OutcomeTimeout, ErrorTimeout) }

func disconnected() Result { return relayFailure(OutcomeDisconnected, ErrorDisconnected) }

// Outcome classifies a result for counters and history.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeError        Outcome = "error"
	OutcomeNotConnected Outcome = "not_connected"
	OutcomeSendFailed   Outcome = "send_failed"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeDisconnected Outcome = "disconnected"
)

// Outcome reports which terminal path produced r. Any failure the
// executor reported is OutcomeError, whatever its text.
func (r Result) Outcome() Outcome {
	switch {
	case r.Success:
		return OutcomeSuccess
	case r.outcome != "":
		return r.outcome
	default:
		return OutcomeError
	}
}
