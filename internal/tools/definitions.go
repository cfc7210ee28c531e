// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// TOOL DEFINITION
// =============================================================================

// Tool represents an executable tool.
type Tool struct {
	// Name is the identifier the model calls, e.g. "web_search"
	Name string

	// Description explains what the tool does. The first line is sent to
	// the model; the rest is shown by /tools.
	Description string

	// Schema defines the tool's parameters
	Schema Schema

	// Executor handles the actual execution
	Executor ToolExecutor
}

// ShortDescription returns the first line of the description.
func (t *Tool) ShortDescription() string {
	if idx := strings.Index(t.Description, "\n"); idx != -1 {
		return t.Description[:idx]
	}
	return t.Description
}

// Schema defines a tool's parameters.
type Schema struct {
	Parameters []Parameter
}

// Parameter defines a single tool parameter.
type Parameter struct {
	Name string

	// Type is "string", "integer", "number" or "boolean"
	Type string

	Required    bool
	Description string

	// Enum restricts string values
	Enum []string
}

// =============================================================================
// TOOL EXECUTOR INTERFACE
// =============================================================================

// ToolExecutor runs one tool. A returned error is reported to the model the
// same way as a Result with Success false.
type ToolExecutor interface {
	Execute(ctx context.Context, params map[string]interface{}) (Result, error)
}

// ExecutorFunc adapts a function to ToolExecutor.
type ExecutorFunc func(ctx context.Context, params map[string]interface{}) (Result, error)

// Execute implements ToolExecutor.
func (f ExecutorFunc) Execute(ctx context.Context, params map[string]interface{}) (Result, error) {
	return f(ctx, params)
}

// Result holds the outcome of a tool execution.
type Result struct {
	Success bool
	Output  string
	Error   string

	Duration  time.Duration
	Truncated bool
}

// Text is what the model sees in the tool message.
func (r Result) Text() string {
	if r.Success {
		if r.Truncated {
			return r.Output + "\n[output truncated]"
		}
		return r.Output
	}
	return "error: " + r.Error
}

// =============================================================================
// TOOL REGISTRY
// =============================================================================

// Registry holds the available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...*Tool) *Registry {
	r := &Registry{tools: make(map[string]*Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing one with the same name.
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// All returns the tools sorted by name.
func (r *Registry) All() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// =============================================================================
// PARAM HELPERS
// =============================================================================

func getStringParam(params map[string]interface{}, name, def string) string {
	if v, ok := params[name].(string); ok {
		return v
	}
	return def
}

// getIntParam accepts JSON numbers, which decode as float64.
func getIntParam(params map[string]interface{}, name string, def int) int {
	switch v := params[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return def
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
