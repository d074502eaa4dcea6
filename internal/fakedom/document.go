// ABOUTME: Document holds a parsed HTML page and applies read/write/click commands to it.
// ABOUTME: Element lookup mirrors document.querySelector: the first match in document order wins.

package fakedom

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/2389/dom-relay/internal/selector"
)

// Error kinds. The messages of returned errors match what the extension
// content script reports, so they can be passed to agents verbatim.
var (
	ErrNotFound = errors.New("element not found")
	ErrDisabled = errors.New("element is disabled")
)

// ElementError is a lookup or interaction failure on one selector.
type ElementError struct {
	Kind     error
	Selector string
}

func (e *ElementError) Error() string {
	switch e.Kind {
	case ErrDisabled:
		return "Element is disabled: " + e.Selector
	default:
		return "Element not found: " + e.Selector
	}
}

func (e *ElementError) Unwrap() error { return e.Kind }

var optionSel = cascadia.MustCompile("option")

// ClickHandler runs when a matching element is clicked.
type ClickHandler func(d *Document, el *html.Node)

type clickBinding struct {
	match cascadia.Matcher
	fn    ClickHandler
}

// Document is a mutable page. All methods are safe for concurrent use.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	selectors *selector.Validator
	clicks    []clickBinding
	events    []Event
}

// Event records a DOM event the fake dispatched.
type Event struct {
	Type     string
	Selector string
}

// Parse reads an HTML page.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return &Document{
		root:      root,
		selectors: selector.New(0),
	}, nil
}

// ParseString reads an HTML page from s.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// OnClick registers fn for clicks on elements matching sel.
func (d *Document) OnClick(sel string, fn ClickHandler) error {
	group, err := selector.Compile(sel)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clicks = append(d.clicks, clickBinding{match: group, fn: fn})
	return nil
}

// Read returns the element's value (form controls) or text content,
// together with its lowercase tag name.
func (d *Document) Read(sel string) (string, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, err := d.find(sel)
	if err != nil {
		return "", "", err
	}
	return valueOf(el), el.Data, nil
}

// Write replaces the element's value or content and records input and
// change events.
func (d *Document) Write(sel, value string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, err := d.find(sel)
	if err != nil {
		return "", err
	}
	setValue(el, value)
	d.events = append(d.events,
		Event{Type: "input", Selector: sel},
		Event{Type: "change", Selector: sel},
	)
	return el.Data, nil
}

// Click activates the element and runs any handlers bound to it.
func (d *Document) Click(sel string) (string, error) {
	d.mu.Lock()
	el, err := d.find(sel)
	if err != nil {
		d.mu.Unlock()
		return "", err
	}
	if hasAttr(el, "disabled") {
		d.mu.Unlock()
		return "", &ElementError{Kind: ErrDisabled, Selector: sel}
	}
	d.events = append(d.events, Event{Type: "click", Selector: sel})
	var handlers []ClickHandler
	for _, b := range d.clicks {
		if b.match.Match(el) {
			handlers = append(handlers, b.fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range handlers {
		fn(d, el)
	}
	return el.Data, nil
}

// Events returns the events dispatched so far.
func (d *Document) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// Value returns the current value of the element matching sel, or "".
// Click handlers use it to read sibling form controls.
func (d *Document) Value(sel string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.find(sel)
	if err != nil {
		return ""
	}
	return valueOf(el)
}

// SetText replaces the text content of the element matching sel.
func (d *Document) SetText(sel, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.find(sel)
	if err != nil {
		return err
	}
	setText(el, text)
	return nil
}

// HTML renders the current page.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	if err := html.Render(&b, d.root); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (d *Document) find(sel string) (*html.Node, error) {
	group, err := d.selectors.Compile(sel)
	if err != nil {
		return nil, err
	}
	el := cascadia.Query(d.root, group)
	if el == nil {
		return nil, &ElementError{Kind: ErrNotFound, Selector: sel}
	}
	return el, nil
}

func valueOf(el *html.Node) string {
	switch el.DataAtom {
	case atom.Input:
		return attr(el, "value")
	case atom.Select:
		var first *html.Node
		for _, opt := range cascadia.QueryAll(el, optionSel) {
			if first == nil {
				first = opt
			}
			if hasAttr(opt, "selected") {
				return optionValue(opt)
			}
		}
		if first != nil {
			return optionValue(first)
		}
		return ""
	default:
		return textContent(el)
	}
}

func optionValue(opt *html.Node) string {
	if hasAttr(opt, "value") {
		return attr(opt, "value")
	}
	return strings.TrimSpace(textContent(opt))
}

func setValue(el *html.Node, value string) {
	switch el.DataAtom {
	case atom.Input:
		setAttr(el, "value", value)
	case atom.Select:
		for _, opt := range cascadia.QueryAll(el, optionSel) {
			removeAttr(opt, "selected")
			if optionValue(opt) == value {
				setAttr(opt, "selected", "")
			}
		}
	default:
		setText(el, value)
	}
}

func setText(el *html.Node, text string) {
	for c := el.FirstChild; c != nil; {
		next := c.NextSibling
		el.RemoveChild(c)
		c = next
	}
	if text != "" {
		el.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}
