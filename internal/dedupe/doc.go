// Package dedupe provides the idempotency cache behind the Idempotency-Key
// header on POST /execute.
//
// An agent that retries a request after a dropped HTTP response would
// otherwise click or type twice. The gateway calls Begin with the key: a
// Fresh key is executed and its result stored with Complete; a Done key
// replays the stored result; an InFlight key is refused with 409 Conflict.
package dedupe
