package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Executor performs the actual research call. Implementations live outside
// the core: the production executor is an HTTP client for the tool gateway,
// tests use in-package fakes.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, name string, args map[string]any) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	return f(ctx, name, args)
}

// Registry owns the tool catalog and validates every invocation before it
// reaches the executor. Arguments are checked against the tool's JSON schema;
// unknown fields are rejected, not ignored.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Def
	exec Executor
}

func NewRegistry(exec Executor, defs ...Def) (*Registry, error) {
	if exec == nil {
		return nil, errors.New("nil executor")
	}
	r := &Registry{defs: make(map[string]Def, len(defs)), exec: exec}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(def Def) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return errors.New("tool name is required")
	}
	def.Name = name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[name]; exists {
		return fmt.Errorf("duplicate tool %q", name)
	}
	r.defs[name] = def
	return nil
}

// Definitions returns the catalog sorted by name.
func (r *Registry) Definitions() []Def {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Def, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Lookup(name string) (Def, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[strings.TrimSpace(name)]
	return def, ok
}

// Execute validates and runs one call. It never returns an error: every
// failure mode is captured in the Result so one call's failure cannot abort
// its siblings.
func (r *Registry) Execute(ctx context.Context, call Call) Result {
	name := strings.TrimSpace(call.Name)
	if name == "" {
		return Result{CallID: call.ID, Status: StatusError, Err: &ToolErr{Code: ErrCodeArgument, Message: "missing tool name"}}
	}
	def, ok := r.Lookup(name)
	if !ok {
		return Result{CallID: call.ID, ToolName: name, Status: StatusError, Err: &ToolErr{Code: ErrCodeArgument, Message: fmt.Sprintf("unknown tool: %s", name)}}
	}
	if err := ValidateArgs(def, call.Args); err != nil {
		return Result{CallID: call.ID, ToolName: name, Status: StatusError, Err: &ToolErr{Code: ErrCodeArgument, Message: err.Error()}}
	}
	if err := ctx.Err(); err != nil {
		return Result{CallID: call.ID, ToolName: name, Status: StatusAborted, Err: &ToolErr{Code: ErrCodeTimeout, Message: "tool execution canceled"}}
	}

	payload, err := r.exec.Execute(ctx, name, call.Args)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Result{CallID: call.ID, ToolName: name, Status: StatusAborted, Err: &ToolErr{Code: ErrCodeTimeout, Message: "tool execution canceled"}}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{CallID: call.ID, ToolName: name, Status: StatusTimeout, Err: &ToolErr{Code: ErrCodeTimeout, Message: "tool execution timed out", Retryable: true}}
		}
		return Result{CallID: call.ID, ToolName: name, Status: StatusError, Err: ClassifyErr(err)}
	}
	return Result{CallID: call.ID, ToolName: name, Status: StatusSuccess, Payload: payload}
}

// ValidateArgs checks args against the tool's input schema: required fields
// must be present, typed fields must match, and fields absent from the schema
// are rejected.
func ValidateArgs(def Def, args map[string]any) error {
	if len(def.InputSchema) == 0 {
		return nil
	}
	var schema map[string]any
	if err := json.Unmarshal(def.InputSchema, &schema); err != nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	if req, ok := schema["required"].([]any); ok {
		for _, item := range req {
			field, _ := item.(string)
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			if _, exists := args[field]; !exists {
				return fmt.Errorf("missing required field: %s", field)
			}
		}
	}
	properties, _ := schema["properties"].(map[string]any)
	for key, val := range args {
		propRaw, ok := properties[key]
		if !ok {
			return fmt.Errorf("unknown field: %s", key)
		}
		prop, _ := propRaw.(map[string]any)
		typeName, _ := prop["type"].(string)
		typeName = strings.TrimSpace(typeName)
		if typeName == "" {
			continue
		}
		if !matchesSchemaType(typeName, val) {
			return fmt.Errorf("invalid type for %s: expected %s", key, typeName)
		}
	}
	return nil
}

func matchesSchemaType(typeName string, v any) bool {
	switch strings.ToLower(typeName) {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "integer", "number":
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		default:
			return false
		}
	case "object":
		t := reflect.TypeOf(v)
		return t != nil && t.Kind() == reflect.Map
	case "array":
		t := reflect.TypeOf(v)
		return t != nil && (t.Kind() == reflect.Slice || t.Kind() == reflect.Array)
	default:
		return true
	}
}
