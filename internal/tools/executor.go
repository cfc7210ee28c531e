// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat/internal/ollama"
)

// DefaultToolTimeout applies when the context has no deadline.
const DefaultToolTimeout = 30 * time.Second

// DefaultMaxOutput bounds the output returned to the model, in bytes.
const DefaultMaxOutput = 16000

// maxHistorySize bounds the execution history.
const maxHistorySize = 200

// =============================================================================
// CALLS
// =============================================================================

// Call is one tool invocation.
type Call struct {
	ID     string
	Name   string
	Params map[string]interface{}
}

// FromOllama converts the calls of an assistant message.
func FromOllama(calls []ollama.ToolCall) []Call {
	out := make([]Call, len(calls))
	for i, c := range calls {
		params := c.Function.Arguments
		if params == nil {
			params = map[string]interface{}{}
		}
		out[i] = Call{ID: uuid.NewString(), Name: c.Function.Name, Params: params}
	}
	return out
}

// ParseCall builds a call from a tool name and a JSON object of arguments,
// as typed by the user.
func ParseCall(name, args string) (Call, error) {
	params := map[string]interface{}{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &params); err != nil {
			return Call{}, fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}
	return Call{ID: uuid.NewString(), Name: name, Params: params}, nil
}

// =============================================================================
// EXECUTION RECORD
// =============================================================================

// ExecutionRecord is one entry of the executor history.
type ExecutionRecord struct {
	CallID    string
	ToolName  string
	Params    map[string]interface{}
	Result    Result
	Timestamp time.Time
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor runs tool calls against a registry.
type Executor struct {
	registry  *Registry
	logger    *zap.Logger
	maxOutput int
	timeout   time.Duration

	mu      sync.Mutex
	history []ExecutionRecord
}

// NewExecutor creates an executor for registry.
func NewExecutor(registry *Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry:  registry,
		logger:    logger,
		maxOutput: DefaultMaxOutput,
		timeout:   DefaultToolTimeout,
	}
}

// SetMaxOutput changes the output bound; n <= 0 restores the default.
func (e *Executor) SetMaxOutput(n int) {
	if n <= 0 {
		n = DefaultMaxOutput
	}
	e.maxOutput = n
}

// Registry returns the tool registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// History returns a copy of the execution history, oldest first.
func (e *Executor) History() []ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.history)
}

// Execute runs one call. Failures are reported in the Result, never as a
// panic or an error, so the model always gets an answer.
func (e *Executor) Execute(ctx context.Context, call Call) Result {
	start := time.Now()

	tool := e.registry.Get(call.Name)
	if tool == nil {
		return e.finish(call, start, Result{Error: "unknown tool: " + call.Name})
	}

	if err := ValidateArgs(&tool.Schema, call.Params); err != nil {
		return e.finish(call, start, Result{Error: "parameter validation failed: " + err.Error()})
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resultCh := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- Result{Error: fmt.Sprintf("tool panicked: %v", r)}
			}
		}()
		result, err := tool.Executor.Execute(ctx, call.Params)
		if err != nil {
			result = Result{Error: err.Error()}
		}
		resultCh <- result
	}()

	var result Result
	select {
	case result = <-resultCh:
	case <-ctx.Done():
		result = Result{Error: "tool execution timed out: " + ctx.Err().Error()}
	}

	if len(result.Output) > e.maxOutput {
		cut := e.maxOutput
		for cut > 0 && !utf8.RuneStart(result.Output[cut]) {
			cut--
		}
		result.Output = result.Output[:cut]
		result.Truncated = true
	}
	return e.finish(call, start, result)
}

// ExecuteBatch runs calls in order.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))
	for i, call := range calls {
		results[i] = e.Execute(ctx, call)
	}
	return results
}

func (e *Executor) finish(call Call, start time.Time, result Result) Result {
	result.Duration = time.Since(start)

	fields := []zap.Field{
		zap.String("tool", call.Name),
		zap.String("call_id", call.ID),
		zap.Duration("duration", result.Duration),
		zap.Bool("success", result.Success),
	}
	if result.Success {
		e.logger.Info("tool executed", fields...)
	} else {
		e.logger.Warn("tool failed", append(fields, zap.String("error", result.Error))...)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) >= maxHistorySize {
		e.history = e.history[len(e.history)-maxHistorySize+1:]
	}
	e.history = append(e.history, ExecutionRecord{
		CallID:    call.ID,
		ToolName:  call.Name,
		Params:    call.Params,
		Result:    result,
		Timestamp: start,
	})
	return result
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a bad argument.
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Param + ": " + e.Message
}

// maxStringLength bounds string arguments.
const maxStringLength = 1 << 20

// ValidateArgs checks args against schema: required parameters, types,
// enum membership and string length.
func ValidateArgs(schema *Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	for _, param := range schema.Parameters {
		val, exists := args[param.Name]
		if !exists || val == nil {
			if param.Required {
				return &ValidationError{Param: param.Name, Message: "missing required argument"}
			}
			continue
		}
		if err := validateArgType(param, val); err != nil {
			return err
		}
		if s, ok := val.(string); ok {
			if len(s) > maxStringLength {
				return &ValidationError{Param: param.Name, Message: "string value exceeds maximum length"}
			}
			if len(param.Enum) > 0 && !slices.Contains(param.Enum, s) {
				return &ValidationError{Param: param.Name, Message: fmt.Sprintf("must be one of %v", param.Enum)}
			}
		}
	}
	return nil
}

func validateArgType(param Parameter, val interface{}) error {
	switch param.Type {
	case "string":
		if _, ok := val.(string); !ok {
			return &ValidationError{Param: param.Name, Message: "expected string type"}
		}
	case "integer":
		switch v := val.(type) {
		case int, int64:
		case float64:
			if v != float64(int64(v)) {
				return &ValidationError{Param: param.Name, Message: "expected integer type"}
			}
		default:
			return &ValidationError{Param: param.Name, Message: "expected integer type"}
		}
	case "number":
		switch val.(type) {
		case int, int64, float64:
		default:
			return &ValidationError{Param: param.Name, Message: "expected number type"}
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return &ValidationError{Param: param.Name, Message: "expected boolean type"}
		}
	}
	return nil
}
