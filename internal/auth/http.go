// ABOUTME: HTTP middleware for bearer authentication on the MCP endpoint
// ABOUTME: Also serves the OAuth protected resource metadata document

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// MetadataPath is the RFC 9728 well-known location.
const MetadataPath = "/.well-known/oauth-protected-resource"

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header format"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeAuthError(w http.ResponseWriter, status int, challenge, code, msg string) {
	var body errorBody
	body.Error.Kind = "auth_error"
	body.Error.Code = code
	body.Error.Message = msg

	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// challenge builds the WWW-Authenticate value for a failure.
func challenge(cfg *Config, code, desc string) string {
	parts := []string{`Bearer error="` + code + `"`}
	if desc != "" {
		parts = append(parts, `error_description="`+desc+`"`)
	}
	if len(cfg.Scopes) > 0 {
		parts = append(parts, `scope="`+strings.Join(cfg.Scopes, " ")+`"`)
	}
	parts = append(parts, `resource_metadata="`+cfg.MetadataURL()+`"`)
	return strings.Join(parts, ", ")
}

// Middleware rejects requests without a valid bearer token. On success the
// Principal is attached to the request context.
func Middleware(cfg *Config, verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				logger.Debug("rejected request", "reason", errMsg, "remote", r.RemoteAddr)
				writeAuthError(w, http.StatusUnauthorized,
					challenge(cfg, "invalid_token", errMsg), "invalid_token", errMsg)
				return
			}

			principal, err := verifier.Verify(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, ErrExpiredToken) {
					msg = "token expired"
				}
				logger.Info("rejected bearer token", "reason", msg, "remote", r.RemoteAddr)
				writeAuthError(w, http.StatusUnauthorized,
					challenge(cfg, "invalid_token", msg), "invalid_token", msg)
				return
			}

			if !principal.HasScopes(cfg.Scopes) {
				logger.Info("insufficient scope", "subject", principal.Subject)
				writeAuthError(w, http.StatusForbidden,
					challenge(cfg, "insufficient_scope", "required scope not granted"),
					"insufficient_scope", "required scope not granted")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), principal)))
		})
	}
}

// Metadata is the protected resource metadata document.
type Metadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

// MetadataHandler serves the protected resource metadata for cfg.
func MetadataHandler(cfg *Config) http.Handler {
	doc := Metadata{
		Resource:               cfg.ResourceURL,
		AuthorizationServers:   []string{cfg.IssuerURL},
		ScopesSupported:        cfg.Scopes,
		BearerMethodsSupported: []string{"header"},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = json.NewEncoder(w).Encode(doc)
	})
}
