// Package selector checks CSS selectors before they reach the browser.
//
// # Overview
//
// The browser extension resolves selectors with document.querySelector. A
// selector the browser cannot parse would round-trip to the extension only
// to come back as an error, so the relay parses selectors up front with
// cascadia and rejects the ones it cannot compile.
//
// Parsed selectors are cached by their source text; agents tend to reuse
// the same handful of selectors.
package selector
