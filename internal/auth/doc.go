// Package auth provides optional bearer-token authentication for the agent API.
//
// When auth.jwt_secret is configured, every agent request must carry
//
//	Authorization: Bearer <jwt>
//
// where the token is HS256-signed with that secret, has audience "dom-relay",
// and names the agent in its "sub" claim. Tokens are minted with
// `dom-relay token --agent <name>`.
//
// The executor WebSocket is not covered; it is restricted to loopback
// clients and extension origins instead.
package auth
