// Package client is a Go client for the dom-relay agent HTTP API.
//
// Agents use it to drive the browser through a running relay:
//
//	c := client.New("http://127.0.0.1:6789", client.WithToken(token))
//	res, err := c.Write(ctx, "#search", "golang", "")
//	if err == nil && res.Success {
//	    res, err = c.Click(ctx, "button[type=submit]", "")
//	}
//
// Transport and protocol problems are returned as errors. A request the
// relay accepted always yields a relay.Result, whose Success field tells
// whether the browser action itself worked.
package client
