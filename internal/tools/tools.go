// Package tools provides the fixed tool catalog the assistant exposes to the
// model: declarations with JSON schemas, and an executor dispatching tool
// invocations to the calendar/mail/tasks backend.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/davidh/jarvis/internal/toolbelt"
)

// Tool represents a tool the model can invoke
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
	Sensitive   bool           `json:"-"` // Not sent to the model; drives confirmation gating
}

// Result represents the outcome of executing a tool. Output is a JSON payload
// rendered for the model: a success payload, an {"error": ...} payload, or a
// {"status": "cancelled", ...} payload.
type Result struct {
	Output  string `json:"output"`
	IsError bool   `json:"is_error"`
}

// JSONResult marshals a success payload into a Result.
func JSONResult(payload any) Result {
	b, err := json.Marshal(payload)
	if err != nil {
		return ErrorResult("failed to encode result: %v", err)
	}
	return Result{Output: string(b)}
}

// ErrorResult builds an error payload Result.
func ErrorResult(format string, args ...any) Result {
	payload := map[string]any{"error": fmt.Sprintf(format, args...)}
	b, _ := json.Marshal(payload)
	return Result{Output: string(b), IsError: true}
}

// CancelledResult builds the payload returned when the confirmation gate
// denies an invocation. It is deliberately distinct from an error so the
// model can recover by asking for an alternative instead of reporting a
// failure.
func CancelledResult(reason string) Result {
	payload := map[string]any{"status": "cancelled", "reason": reason}
	b, _ := json.Marshal(payload)
	return Result{Output: string(b)}
}

// Set represents a collection of tools
type Set struct {
	tools map[string]Tool
	order []string
}

// NewSet creates a new tool set from a slice of tools
func NewSet(tools []Tool) *Set {
	s := &Set{
		tools: make(map[string]Tool),
	}
	for _, t := range tools {
		if _, ok := s.tools[t.Name]; !ok {
			s.order = append(s.order, t.Name)
		}
		s.tools[t.Name] = t
	}
	return s
}

// Get returns a tool by name, or nil if not found
func (s *Set) Get(name string) *Tool {
	if t, ok := s.tools[name]; ok {
		return &t
	}
	return nil
}

// Has returns true if the tool set contains a tool with the given name
func (s *Set) Has(name string) bool {
	_, ok := s.tools[name]
	return ok
}

// All returns all tools in the set in declaration order
func (s *Set) All() []Tool {
	result := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		result = append(result, s.tools[name])
	}
	return result
}

// Names returns the names of all tools in the set in declaration order
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

// ToAnthropicFormat converts tools to the schema format submitted with every
// model call
func (s *Set) ToAnthropicFormat() []toolbelt.AnthropicTool {
	result := make([]toolbelt.AnthropicTool, 0, len(s.order))
	for _, name := range s.order {
		t := s.tools[name]
		result = append(result, toolbelt.AnthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return result
}
