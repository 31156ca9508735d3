// Package mcp serves the weather tools over the Model Context Protocol.
//
// # Protocol
//
// Only the JSON-RPC 2.0 subset the tools need is implemented:
//
//   - initialize, ping
//   - tools/list, tools/call
//   - notifications/* (accepted, never answered)
//
// Handler is transport-agnostic. Two bindings drive it:
//
//   - ServeStdio reads newline-delimited JSON-RPC from a reader and writes
//     responses to a writer. Messages are processed one at a time. There is
//     no authentication.
//   - Server implements Streamable HTTP on POST /mcp with Mcp-Session-Id
//     sessions. Clients that accept text/event-stream get their response as
//     an SSE "message" event; others get application/json.
//
// # Tool results
//
// A successful call returns the result both as JSON text content and as
// structuredContent. A failed call returns isError with
//
//	{"error": {"kind": "not_found", "message": "...", "param": "city"}}
//
// in structuredContent, so clients can branch on the error kind.
//
// # Authentication
//
// When configured, the HTTP binding wraps /mcp in auth.Middleware:
//
//	Authorization: Bearer <token>
//
// Requests that fail authentication get HTTP 401 and never reach Handler.
//
// # Desktop MCP clients
//
//	{
//	  "mcpServers": {
//	    "weather": {
//	      "command": "weather-travel",
//	      "args": ["serve", "--transport", "stdio"]
//	    }
//	  }
//	}
package mcp
