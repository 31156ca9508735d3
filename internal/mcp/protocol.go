// ABOUTME: JSON-RPC 2.0 types and the transport-agnostic MCP method handler.
// ABOUTME: Maps tool errors to isError results and protocol errors to JSON-RPC errors.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/2389/weather-travel/internal/toolerr"
	"github.com/2389/weather-travel/internal/tools"
)

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
	"2025-11-25": true,
}

// latestProtocolVersion is the version we advertise when the client asks for one we don't know
const latestProtocolVersion = "2025-11-25"

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *JSONRPCRequest) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// MCP-specific types

// MCPListToolsResult is the result for tools/list.
type MCPListToolsResult struct {
	Tools []tools.Definition `json:"tools"`
}

// MCPCallToolParams are the params for tools/call.
type MCPCallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MCPCallToolResult is the result for tools/call.
type MCPCallToolResult struct {
	Content           []MCPContent `json:"content"`
	StructuredContent any          `json:"structuredContent,omitempty"`
	IsError           bool         `json:"isError,omitempty"`
}

// MCPContent represents content in a tool result.
type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolError is the structured form of a failed tool call.
type ToolError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

// ServerInfo identifies this server in initialize responses.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Handler processes MCP methods against a tool invoker.
type Handler struct {
	invoker tools.Invoker
	info    ServerInfo
	logger  *slog.Logger
}

// NewHandler creates a handler.
func NewHandler(invoker tools.Invoker, info ServerInfo, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if info.Name == "" {
		info.Name = "weather-travel"
	}
	return &Handler{invoker: invoker, info: info, logger: logger}
}

// parseRequest decodes one JSON-RPC message. On failure it returns the error
// response to send instead.
func parseRequest(body []byte) (*JSONRPCRequest, *JSONRPCResponse) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, errorResponse(nil, JSONRPCInvalidRequest, "batch requests are not supported", nil)
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, errorResponse(nil, JSONRPCParseError, "invalid JSON", nil)
	}
	if req.JSONRPC != "2.0" {
		return nil, errorResponse(req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version", nil)
	}
	if req.Method == "" {
		return nil, errorResponse(req.ID, JSONRPCInvalidRequest, "method is required", nil)
	}
	return &req, nil
}

// Handle runs one request. It returns nil for notifications.
func (h *Handler) Handle(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	if req.IsNotification() {
		if strings.HasPrefix(req.Method, "notifications/") {
			h.logger.Debug("accepted MCP notification", "method", req.Method)
		} else {
			h.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		return nil
	}

	switch req.Method {
	case "initialize":
		return h.handleInitialize(req)
	case "ping":
		return resultResponse(req.ID, struct{}{})
	case "tools/list":
		return resultResponse(req.ID, MCPListToolsResult{Tools: h.invoker.Definitions()})
	case "tools/call":
		return h.handleToolsCall(ctx, req)
	default:
		return errorResponse(req.ID, JSONRPCMethodNotFound, "method not found", nil)
	}
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

// negotiatedVersion echoes the client's version when we support it.
func negotiatedVersion(params json.RawMessage) (string, initializeParams) {
	var p initializeParams
	if len(params) > 0 {
		_ = json.Unmarshal(params, &p)
	}
	if supportedProtocolVersions[p.ProtocolVersion] {
		return p.ProtocolVersion, p
	}
	return latestProtocolVersion, p
}

func (h *Handler) handleInitialize(req *JSONRPCRequest) *JSONRPCResponse {
	version, p := negotiatedVersion(req.Params)
	h.logger.Info("MCP client initialized",
		"client", p.ClientInfo.Name,
		"client_version", p.ClientInfo.Version,
		"protocol_version", version,
	)

	return resultResponse(req.ID, map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		"serverInfo": h.info,
	})
}

func (h *Handler) handleToolsCall(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	var params MCPCallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, JSONRPCInvalidParams, "invalid params", kindData(toolerr.Validation))
		}
	}
	if params.Name == "" {
		return errorResponse(req.ID, JSONRPCInvalidParams, "tool name is required", kindData(toolerr.Validation))
	}
	if !h.knownTool(params.Name) {
		return errorResponse(req.ID, JSONRPCInvalidParams, "tool not found: "+params.Name, kindData(toolerr.Validation))
	}

	result, err := h.invoker.Invoke(ctx, params.Name, params.Arguments)
	if err != nil {
		return resultResponse(req.ID, h.toolErrorResult(params.Name, err))
	}

	text, err := json.Marshal(result)
	if err != nil {
		h.logger.Error("failed to encode tool result", "tool", params.Name, "error", err)
		return errorResponse(req.ID, JSONRPCInternalError, "failed to encode tool result", nil)
	}
	return resultResponse(req.ID, MCPCallToolResult{
		Content:           []MCPContent{{Type: "text", Text: string(text)}},
		StructuredContent: result,
	})
}

func (h *Handler) knownTool(name string) bool {
	for _, d := range h.invoker.Definitions() {
		if d.Name == name {
			return true
		}
	}
	return false
}

// toolErrorResult maps a tool failure to an isError result, preserving its kind.
func (h *Handler) toolErrorResult(toolName string, err error) MCPCallToolResult {
	te := ToolError{Kind: string(toolerr.KindOf(err)), Message: err.Error()}
	if e, ok := toolerr.As(err); ok {
		te.Param = e.Param
	}
	switch {
	case te.Kind != "":
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		te.Kind = string(toolerr.Upstream)
		te.Message = toolName + ": request cancelled"
	default:
		// Untyped failures are bugs, not caller errors; don't leak internals.
		h.logger.Error("untyped tool error", "tool", toolName, "error", err)
		te.Kind = string(toolerr.Upstream)
		te.Message = toolName + ": internal error"
	}

	return MCPCallToolResult{
		Content:           []MCPContent{{Type: "text", Text: te.Message}},
		StructuredContent: map[string]any{"error": te},
		IsError:           true,
	}
}

func kindData(kind toolerr.Kind) map[string]string {
	return map[string]string{"kind": string(kind)}
}

func resultResponse(id json.RawMessage, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string, data any) *JSONRPCResponse {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}
