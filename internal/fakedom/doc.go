// Package fakedom is an in-memory stand-in for the browser-side executor.
//
// It parses an HTML page with golang.org/x/net/html, resolves selectors with
// cascadia, and answers read, write and click commands with the same results
// and error strings the browser extension produces. The fake-extension binary
// and the end-to-end tests drive the relay through it.
//
// Scripts are not executed. Pages that need click behaviour register Go
// handlers with OnClick; TestPage wires the handler of the built-in test page.
package fakedom
