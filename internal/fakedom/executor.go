// ABOUTME: Executor protocol adapter: decodes relay commands and produces wire replies.
// ABOUTME: Also provides the built-in test page with its click handler wired.

package fakedom

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"golang.org/x/net/html"
)

//go:embed testpage.html
var testPageHTML string

// Command is a relay-to-executor message.
type Command struct {
	ID       string  `json:"id"`
	Action   string  `json:"action"`
	Selector string  `json:"selector"`
	Value    *string `json:"value,omitempty"`
	URL      string  `json:"url,omitempty"`
	Timeout  int64   `json:"timeout,omitempty"`
}

// Reply is an executor-to-relay message.
type Reply struct {
	ID          string `json:"id"`
	Success     bool   `json:"success"`
	Data        string `json:"data,omitempty"`
	Error       string `json:"error,omitempty"`
	ElementType string `json:"elementType,omitempty"`
}

// Execute applies cmd to the document and builds the reply.
func (d *Document) Execute(cmd Command) Reply {
	reply := Reply{ID: cmd.ID}

	var (
		data, elementType string
		err               error
	)
	switch cmd.Action {
	case "read":
		data, elementType, err = d.Read(cmd.Selector)
	case "write":
		value := ""
		if cmd.Value != nil {
			value = *cmd.Value
		}
		elementType, err = d.Write(cmd.Selector, value)
		if err == nil {
			data = "Value written"
		}
	case "click":
		elementType, err = d.Click(cmd.Selector)
		if err == nil {
			data = "Element clicked"
		}
	default:
		err = fmt.Errorf("Unknown action: %s", cmd.Action)
	}

	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	reply.Success = true
	reply.Data = data
	reply.ElementType = elementType
	return reply
}

// HandleRaw decodes one raw command and returns the encoded reply. It returns
// nil for messages that are not commands.
func (d *Document) HandleRaw(raw []byte) []byte {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.ID == "" {
		return nil
	}
	out, err := json.Marshal(d.Execute(cmd))
	if err != nil {
		return nil
	}
	return out
}

// TestPage returns a fresh copy of the built-in test page. Clicking
// #test-button writes the input and textarea values into #test-output.
func TestPage() *Document {
	d, err := ParseString(testPageHTML)
	if err != nil {
		panic(fmt.Sprintf("fakedom: built-in test page: %v", err))
	}
	if err := d.OnClick("#test-button", reportInputs); err != nil {
		panic(fmt.Sprintf("fakedom: built-in test page: %v", err))
	}
	return d
}

func reportInputs(d *Document, _ *html.Node) {
	input := orEmpty(d.Value("#test-input"))
	textarea := orEmpty(d.Value("#test-textarea"))
	_ = d.SetText("#test-output", fmt.Sprintf("Input: %s, Textarea: %s", input, textarea))
}

func orEmpty(s string) string {
	if s == "" {
		return "empty"
	}
	return s
}
