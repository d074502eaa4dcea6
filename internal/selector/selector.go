// ABOUTME: CSS selector validation using cascadia's parser.
// ABOUTME: Rejected selectors produce the same "Invalid selector" error the extension reports.

package selector

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
)

// ErrInvalid is wrapped by every rejection.
var ErrInvalid = errors.New("invalid selector")

// InvalidError reports a selector that failed to parse.
type InvalidError struct {
	Selector string
	Err      error
}

func (e *InvalidError) Error() string {
	return "Invalid selector: " + e.Selector
}

func (e *InvalidError) Unwrap() []error { return []error{ErrInvalid, e.Err} }

// Validator parses and caches selectors. The zero value is not usable; use New.
type Validator struct {
	mu    sync.Mutex
	cache map[string]cascadia.SelectorGroup
	limit int
}

// DefaultCacheSize bounds how many compiled selectors a Validator keeps.
const DefaultCacheSize = 256

// New creates a Validator caching up to limit compiled selectors.
func New(limit int) *Validator {
	if limit <= 0 {
		limit = DefaultCacheSize
	}
	return &Validator{
		cache: make(map[string]cascadia.SelectorGroup),
		limit: limit,
	}
}

// Validate returns nil when sel is a selector a browser would accept.
func (v *Validator) Validate(sel string) error {
	_, err := v.Compile(sel)
	return err
}

// Compile parses sel, reusing a cached result when available.
func (v *Validator) Compile(sel string) (cascadia.SelectorGroup, error) {
	if strings.TrimSpace(sel) == "" {
		return nil, &InvalidError{Selector: sel, Err: errors.New("empty selector")}
	}

	v.mu.Lock()
	group, ok := v.cache[sel]
	v.mu.Unlock()
	if ok {
		return group, nil
	}

	group, err := cascadia.ParseGroup(sel)
	if err != nil {
		return nil, &InvalidError{Selector: sel, Err: fmt.Errorf("parse: %w", err)}
	}

	v.mu.Lock()
	if len(v.cache) >= v.limit {
		// Cheap eviction: selectors are tiny and reparsing is fast.
		clear(v.cache)
	}
	v.cache[sel] = group
	v.mu.Unlock()
	return group, nil
}

// Compile parses sel without caching.
func Compile(sel string) (cascadia.SelectorGroup, error) {
	if strings.TrimSpace(sel) == "" {
		return nil, &InvalidError{Selector: sel, Err: errors.New("empty selector")}
	}
	group, err := cascadia.ParseGroup(sel)
	if err != nil {
		return nil, &InvalidError{Selector: sel, Err: fmt.Errorf("parse: %w", err)}
	}
	return group, nil
}
