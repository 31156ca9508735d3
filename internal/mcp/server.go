// ABOUTME: Remote binding: MCP Streamable HTTP transport with optional bearer auth.
// ABOUTME: Responds with JSON or a single SSE message event; discards results after disconnect.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/weather-travel/internal/auth"
	"github.com/2389/weather-travel/internal/tools"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// Path is where the MCP endpoint is mounted.
const Path = "/mcp"

// DefaultSessionIdleTTL drops sessions that have not been used for this long.
const DefaultSessionIdleTTL = 30 * time.Minute

// DefaultKeepAlive is the SSE comment interval while a tool call is running.
const DefaultKeepAlive = 15 * time.Second

// Config holds configuration for the MCP HTTP server.
type Config struct {
	Handler *Handler
	Logger  *slog.Logger
	// Auth enables bearer authentication when Auth.Enabled().
	Auth          *auth.Config
	TokenVerifier auth.TokenVerifier
	// SessionIdleTTL; zero selects DefaultSessionIdleTTL, negative disables expiry.
	SessionIdleTTL time.Duration
	// KeepAlive; zero selects DefaultKeepAlive.
	KeepAlive time.Duration
}

// Server implements MCP-compatible HTTP endpoints.
type Server struct {
	handler   *Handler
	logger    *slog.Logger
	auth      *auth.Config
	verifier  auth.TokenVerifier
	sessions  *sessionStore
	keepAlive time.Duration
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if cfg.Auth.Enabled() && cfg.TokenVerifier == nil {
		return nil, errors.New("token verifier required when auth is enabled")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.SessionIdleTTL
	if ttl == 0 {
		ttl = DefaultSessionIdleTTL
	}
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}

	return &Server{
		handler:   cfg.Handler,
		logger:    logger.With("component", "mcp"),
		auth:      cfg.Auth,
		verifier:  cfg.TokenVerifier,
		sessions:  newSessionStore(ttl),
		keepAlive: keepAlive,
	}, nil
}

// RegisterRoutes registers the MCP endpoint, and the auth metadata document
// when auth is enabled, on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	var h http.Handler = http.HandlerFunc(s.handleMCP)
	if s.auth.Enabled() {
		h = auth.Middleware(s.auth, s.verifier, s.logger)(h)
		mux.Handle(auth.MetadataPath, auth.MetadataHandler(s.auth))
		// Some clients request the path-suffixed form.
		mux.Handle(auth.MetadataPath+Path, auth.MetadataHandler(s.auth))
	}
	mux.Handle(Path, h)
}

// handleMCP is the single MCP endpoint supporting POST and DELETE.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		// We don't support server-initiated SSE streams (GET)
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete terminates a session.
// Verifies the caller owns the session to prevent unauthorized termination.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	sess, ok := s.sessions.touch(sessionID)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if !sess.ownedBy(bearerToken(r)) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	s.sessions.delete(sessionID)
	s.logger.Info("MCP session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handlePost processes JSON-RPC messages sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	protoVersion := r.Header.Get("Mcp-Protocol-Version")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse(nil, JSONRPCParseError, "failed to read request body", nil))
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse(nil, JSONRPCInvalidRequest, "request body too large", nil))
		return
	}

	req, errResp := parseRequest(body)
	if errResp != nil {
		s.writeJSON(w, http.StatusBadRequest, errResp)
		return
	}

	isInitialize := req.Method == "initialize"

	// Validate protocol version header (not required on initialize)
	if !isInitialize && protoVersion != "" && !supportedProtocolVersions[protoVersion] {
		http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
		return
	}

	// Non-initialize requests require a valid session owned by the caller
	if !isInitialize {
		if sessionID == "" {
			http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		sess, ok := s.sessions.touch(sessionID)
		if !ok {
			// Session expired or invalid - client must re-initialize
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		if !sess.ownedBy(bearerToken(r)) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	requestID := uuid.New().String()
	logger := s.logger.With("request_id", requestID, "session_id", sessionID, "method", req.Method)
	logger.Debug("MCP request", "is_notification", req.IsNotification())

	// Notifications: accept and return HTTP 202 with no body
	if req.IsNotification() {
		s.handler.Handle(r.Context(), req)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if isInitialize {
		version, _ := negotiatedVersion(req.Params)
		sess := s.sessions.create(version, bearerToken(r))
		w.Header().Set("Mcp-Session-Id", sess.id)
		logger.Info("MCP session created", "new_session_id", sess.id, "protocol_version", version)
	}

	ctx := tools.WithTransport(r.Context(), tools.TransportHTTP)
	if wantsEventStream(r) {
		s.streamResponse(ctx, w, req, logger)
		return
	}

	resp := s.handler.Handle(ctx, req)
	if r.Context().Err() != nil {
		logger.Info("client disconnected, discarding response")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// streamResponse answers with a single SSE message event, sending keep-alive
// comments while the handler runs.
func (s *Server) streamResponse(ctx context.Context, w http.ResponseWriter, req *JSONRPCRequest, logger *slog.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeJSON(w, http.StatusOK, s.handler.Handle(ctx, req))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	done := make(chan *JSONRPCResponse, 1)
	go func() {
		done <- s.handler.Handle(ctx, req)
	}()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case resp := <-done:
			if ctx.Err() != nil {
				logger.Info("client disconnected, discarding response")
				return
			}
			if err := writeSSEMessage(w, resp); err != nil {
				logger.Warn("failed to write SSE message", "error", err)
				return
			}
			flusher.Flush()
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				logger.Debug("keep-alive write failed", "error", err)
			} else {
				flusher.Flush()
			}
		case <-ctx.Done():
			// Wait for the in-flight call so nothing outlives the request,
			// then drop its result.
			<-done
			logger.Info("client disconnected, discarding response")
			return
		}
	}
}

func writeSSEMessage(w io.Writer, resp *JSONRPCResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
	return err
}

// writeJSON sends a JSON-RPC response as application/json.
func (s *Server) writeJSON(w http.ResponseWriter, status int, resp *JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}

// wantsEventStream reports whether the client prefers SSE. Clients that list
// both types get SSE, matching the Streamable HTTP transport.
func wantsEventStream(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(mediaType), "text/event-stream") {
			return true
		}
	}
	return false
}

// bearerToken returns the raw bearer credential, if any.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// SessionCount returns the number of live sessions (for monitoring).
func (s *Server) SessionCount() int {
	return s.sessions.count()
}
