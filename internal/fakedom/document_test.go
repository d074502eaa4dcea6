// ABOUTME: Tests for the in-memory DOM: reads, writes, clicks and executor replies.
// ABOUTME: Exercises the built-in test page end to end.

package fakedom

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/dom-relay/internal/selector"
)

func TestRead(t *testing.T) {
	d, err := ParseString(`<div id="msg">hello <b>world</b></div><input id="x" value="hello"><select id="s"><option>a</option><option value="B" selected>b</option></select>`)
	require.NoError(t, err)

	data, kind, err := d.Read("#x")
	require.NoError(t, err)
	assert.Equal(t, "hello", data)
	assert.Equal(t, "input", kind)

	data, kind, err = d.Read("#msg")
	require.NoError(t, err)
	assert.Equal(t, "hello world", data)
	assert.Equal(t, "div", kind)

	data, kind, err = d.Read("#s")
	require.NoError(t, err)
	assert.Equal(t, "B", data)
	assert.Equal(t, "select", kind)
}

func TestReadErrors(t *testing.T) {
	d := TestPage()

	_, _, err := d.Read("#this-element-does-not-exist-12345")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "Element not found: #this-element-does-not-exist-12345", err.Error())

	_, _, err = d.Read("invalid>>selector")
	require.Error(t, err)
	assert.True(t, errors.Is(err, selector.ErrInvalid))
	assert.Equal(t, "Invalid selector: invalid>>selector", err.Error())
}

func TestWrite(t *testing.T) {
	d := TestPage()

	kind, err := d.Write("#test-input", "Hello World")
	require.NoError(t, err)
	assert.Equal(t, "input", kind)
	assert.Equal(t, "Hello World", d.Value("#test-input"))

	_, err = d.Write("#test-textarea", "line one")
	require.NoError(t, err)
	assert.Equal(t, "line one", d.Value("#test-textarea"))

	// Writing replaces rather than appends.
	_, err = d.Write("#test-textarea", "line two")
	require.NoError(t, err)
	assert.Equal(t, "line two", d.Value("#test-textarea"))

	_, err = d.Write("#test-select", "one")
	require.NoError(t, err)
	assert.Equal(t, "one", d.Value("#test-select"))

	events := d.Events()
	require.Len(t, events, 8)
	assert.Equal(t, Event{Type: "input", Selector: "#test-input"}, events[0])
	assert.Equal(t, Event{Type: "change", Selector: "#test-input"}, events[1])

	_, err = d.Write("#nonexistent", "test")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClick(t *testing.T) {
	d := TestPage()

	_, err := d.Click("#test-button")
	require.NoError(t, err)
	out, _, err := d.Read("#test-output")
	require.NoError(t, err)
	assert.Equal(t, "Input: empty, Textarea: empty", out)

	_, err = d.Write("#test-input", "Hello World")
	require.NoError(t, err)
	_, err = d.Write("#test-textarea", "More text")
	require.NoError(t, err)
	_, err = d.Click("#test-button")
	require.NoError(t, err)
	out, _, err = d.Read("#test-output")
	require.NoError(t, err)
	assert.Equal(t, "Input: Hello World, Textarea: More text", out)

	_, err = d.Click("#test-disabled")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDisabled))
	assert.Equal(t, "Element is disabled: #test-disabled", err.Error())

	_, err = d.Click("#nonexistent")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestExecute(t *testing.T) {
	d := TestPage()
	value := "Hello World"

	tests := []struct {
		name string
		cmd  Command
		want Reply
	}{
		{
			name: "write",
			cmd:  Command{ID: "1", Action: "write", Selector: "#test-input", Value: &value},
			want: Reply{ID: "1", Success: true, Data: "Value written", ElementType: "input"},
		},
		{
			name: "read back",
			cmd:  Command{ID: "2", Action: "read", Selector: "#test-input"},
			want: Reply{ID: "2", Success: true, Data: "Hello World", ElementType: "input"},
		},
		{
			name: "click",
			cmd:  Command{ID: "3", Action: "click", Selector: "#test-button"},
			want: Reply{ID: "3", Success: true, Data: "Element clicked", ElementType: "button"},
		},
		{
			name: "read output",
			cmd:  Command{ID: "4", Action: "read", Selector: "#test-output"},
			want: Reply{ID: "4", Success: true, Data: "Input: Hello World, Textarea: empty", ElementType: "div"},
		},
		{
			name: "empty selector",
			cmd:  Command{ID: "5", Action: "read", Selector: ""},
			want: Reply{ID: "5", Error: "Invalid selector: "},
		},
		{
			name: "unknown action",
			cmd:  Command{ID: "6", Action: "hover", Selector: "#test-button"},
			want: Reply{ID: "6", Error: "Unknown action: hover"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Execute(tt.cmd))
		})
	}
}

func TestHandleRaw(t *testing.T) {
	d := TestPage()

	out := d.HandleRaw([]byte(`{"id":"abc","action":"read","selector":"#test-output"}`))
	require.NotNil(t, out)

	var reply Reply
	require.NoError(t, json.Unmarshal(out, &reply))
	assert.Equal(t, "abc", reply.ID)
	assert.True(t, reply.Success)
	assert.Equal(t, "Click the button to see output", reply.Data)

	assert.Nil(t, d.HandleRaw([]byte(`{"type":"ping"}`)))
	assert.Nil(t, d.HandleRaw([]byte(`garbage`)))
}

func TestTestPageIsolated(t *testing.T) {
	a := TestPage()
	b := TestPage()
	_, err := a.Write("#test-input", "only a")
	require.NoError(t, err)
	assert.Equal(t, "", b.Value("#test-input"))
}
