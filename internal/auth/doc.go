// Package auth provides optional bearer-token authentication for the HTTP
// transport.
//
// # Credentials
//
// Three credential sources are supported and may be combined:
//
//   - Static token: a shared secret compared in constant time.
//   - Token hash: a bcrypt hash of the shared secret, so the plaintext never
//     sits in configuration.
//   - JWT: HS256 tokens signed with a configured secret. The "sub" claim
//     names the caller and the "scope" claim lists granted scopes.
//
// Authentication is enabled when any source is configured. A static token
// carries every configured scope; a JWT must carry all of them.
//
// # HTTP
//
//	mw := Middleware(cfg, verifier, logger)
//	mux.Handle("/mcp", mw(handler))
//
// Failures never reach the wrapped handler. Missing or invalid tokens get a
// 401 with a WWW-Authenticate challenge pointing at the protected resource
// metadata document (RFC 9728), which MetadataHandler serves.
package auth
