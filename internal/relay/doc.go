// Package relay correlates blocking agent requests with asynchronous replies
// from a single browser-side executor.
//
// # Overview
//
// An agent submits an ActionRequest (read, write or click on a CSS selector).
// The relay tags it with a fresh request ID, forwards it to the executor over
// whatever transport is attached to the Hub, and blocks the caller on a Waiter
// until the executor replies with the same ID, the deadline passes, or the
// executor goes away.
//
// # Components
//
//   - Table: request ID -> pending waiter + deadline timer
//   - Hub: the single executor connection (absent or connected)
//   - Submit/Execute: validation, ID allocation, registration, send
//   - HandleMessage: decodes executor replies and resolves waiters
//
// # Resolution
//
// Each request resolves exactly once, by whichever path gets there first:
//
//	reply arrives         -> executor payload
//	deadline passes       -> {success:false, error:"Request timeout"}
//	executor disconnects  -> {success:false, error:"Extension disconnected"}
//	send fails            -> {success:false, error:"Send failed: ..."}
//	no executor           -> {success:false, error:"Extension not connected"}
//
// Removal from the table and fulfilment of the waiter happen together, so a
// reply racing its own timeout is harmless: the loser finds nothing to resolve.
//
// # Locking
//
// The Hub's state lock is the outer lock. Disconnects flip the state and
// drain the table while holding it for writing; Submit checks the state and
// registers while holding it for reading. A request is therefore either
// rejected as not connected or guaranteed to be drained.
//
// # Replacement
//
// If a second executor attaches while one is connected, the new one wins.
// Requests in flight on the old connection fail with "Extension disconnected".
package relay
