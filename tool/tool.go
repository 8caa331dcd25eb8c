package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	errorspkg "github.com/sweetpotato0/miniagent/errors"
)

var (
	// ErrToolNotFound is returned when a call names a tool absent from the registry.
	ErrToolNotFound = fmt.Errorf("%w: tool", errorspkg.ErrNotFound)

	// ErrDuplicateToolName is returned when two tools share a name at build time.
	ErrDuplicateToolName = fmt.Errorf("%w: duplicate tool name", errorspkg.ErrAlreadyExists)

	// ErrInvalidArguments is returned when arguments do not satisfy the tool's parameters.
	ErrInvalidArguments = fmt.Errorf("%w: tool arguments", errorspkg.ErrInvalidInput)
)

// Handler executes a tool. The returned value is JSON-encoded before it is
// handed back to the model.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Parameter defines a tool parameter
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // string, number, boolean, object, array
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// Tool represents a callable tool/function
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     Handler     `json:"-"`
}

// New builds a tool whose parameters are all required strings, which is the
// minimal schema the model needs to call a plain function.
func New(name, description string, handler Handler, params ...string) *Tool {
	t := &Tool{
		Name:        name,
		Description: description,
		Handler:     handler,
	}
	for _, p := range params {
		t.Parameters = append(t.Parameters, Parameter{Name: p, Type: "string", Required: true})
	}
	return t
}

// Invoke runs the tool with the given arguments. Tools without declared
// parameters always receive nil, whatever the model encoded.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if t.Handler == nil {
		return nil, fmt.Errorf("tool %s has no handler", t.Name)
	}
	if len(t.Parameters) == 0 {
		return t.Handler(ctx, nil)
	}
	if err := t.ValidateArgs(args); err != nil {
		return nil, err
	}
	return t.Handler(ctx, args)
}

// ValidateArgs validates the provided arguments against the tool's parameters
func (t *Tool) ValidateArgs(args map[string]any) error {
	for _, param := range t.Parameters {
		if param.Required {
			if _, ok := args[param.Name]; !ok {
				return fmt.Errorf("%w: %s: missing required parameter %q", ErrInvalidArguments, t.Name, param.Name)
			}
		}
	}
	return nil
}

// ToJSONSchema returns the function-tool definition sent to the model.
func (t *Tool) ToJSONSchema() map[string]any {
	properties := make(map[string]any, len(t.Parameters))
	required := make([]string, 0, len(t.Parameters))

	for _, param := range t.Parameters {
		typ := param.Type
		if typ == "" {
			typ = "string"
		}
		prop := map[string]any{"type": typ}
		if param.Description != "" {
			prop["description"] = param.Description
		}
		if len(param.Enum) > 0 {
			prop["enum"] = param.Enum
		}
		if param.Default != nil {
			prop["default"] = param.Default
		}
		properties[param.Name] = prop

		if param.Required {
			required = append(required, param.Name)
		}
	}

	return map[string]any{
		"type":        "function",
		"name":        t.Name,
		"description": t.Description,
		"parameters": map[string]any{
			"type":                 "object",
			"properties":           properties,
			"required":             required,
			"additionalProperties": true,
		},
	}
}

// Registry is an immutable name-indexed set of tools. It is built once by
// NewRegistry and only read afterwards, so concurrent use needs no locking.
type Registry struct {
	tools map[string]*Tool
	names []string
}

// NewRegistry builds a registry, rejecting nil or unnamed tools and name collisions.
func NewRegistry(tools ...*Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if t == nil || t.Name == "" {
			return nil, fmt.Errorf("%w: tool name cannot be empty", errorspkg.ErrInvalidInput)
		}
		if _, exists := r.tools[t.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateToolName, t.Name)
		}
		r.tools[t.Name] = t
		r.names = append(r.names, t.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(tools ...*Tool) *Registry {
	r, err := NewRegistry(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (*Tool, error) {
	if r != nil {
		if t, ok := r.tools[name]; ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []*Tool {
	tools := make([]*Tool, 0, r.Len())
	for _, name := range r.Names() {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// ToJSONSchemas returns all tools in JSON schema format, sorted by name.
func (r *Registry) ToJSONSchemas() []map[string]any {
	schemas := make([]map[string]any, 0, r.Len())
	for _, t := range r.List() {
		schemas = append(schemas, t.ToJSONSchema())
	}
	return schemas
}

// Invoke runs a tool by name with given arguments
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return t.Invoke(ctx, args)
}

// MarshalJSON customizes JSON marshaling for Registry
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToJSONSchemas())
}
