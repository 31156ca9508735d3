// ABOUTME: Thread-safe registry of in-process tools and their definitions.
// ABOUTME: Preserves registration order so tools/list output is stable.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// Definition describes a tool to clients.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Handler executes a tool with raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool pairs a definition with its handler.
type Tool struct {
	Definition Definition
	Handler    Handler
}

// Invoker is what a transport needs from the tool layer.
type Invoker interface {
	Definitions() []Definition
	Invoke(ctx context.Context, name string, args json.RawMessage) (any, error)
}

// Registry stores tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds tool. Returns ErrToolCollision if the name is taken.
func (r *Registry) Register(tool *Tool) error {
	if tool == nil || tool.Definition.Name == "" || tool.Handler == nil {
		return errors.New("tool must have a name and a handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Definition.Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: tool '%s' already registered", ErrToolCollision, name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns all definitions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}
