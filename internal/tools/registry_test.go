package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func testRegistry(t *testing.T, exec Executor) *Registry {
	t.Helper()
	reg, err := NewRegistry(exec, Catalog()...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestCatalogHasNoDuplicates(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, ExecutorFunc(func(ctx context.Context, name string, args map[string]any) (any, error) {
		return nil, nil
	}))
	defs := reg.Definitions()
	if len(defs) < 40 {
		t.Fatalf("catalog has %d tools, want at least 40", len(defs))
	}
	for _, def := range defs {
		if strings.TrimSpace(def.Description) == "" {
			t.Errorf("tool %s has no description", def.Name)
		}
		if strings.TrimSpace(def.Domain) == "" {
			t.Errorf("tool %s has no domain", def.Name)
		}
	}
}

func TestExecuteRejectsUnknownField(t *testing.T) {
	t.Parallel()

	called := false
	reg := testRegistry(t, ExecutorFunc(func(ctx context.Context, name string, args map[string]any) (any, error) {
		called = true
		return nil, nil
	}))

	res := reg.Execute(context.Background(), Call{
		ID:   "c1",
		Name: "court_decision_fetch",
		Args: map[string]any{"case_number": "757/1234/24", "verbose": true},
	})
	if res.OK() {
		t.Fatalf("expected argument error, got %+v", res)
	}
	if res.Err == nil || res.Err.Code != ErrCodeArgument {
		t.Fatalf("error=%+v, want code %s", res.Err, ErrCodeArgument)
	}
	if !strings.Contains(res.Err.Message, "unknown field") {
		t.Fatalf("message=%q, want unknown field", res.Err.Message)
	}
	if called {
		t.Fatal("executor must not run on validation failure")
	}
}

func TestExecuteRejectsMissingRequired(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, ExecutorFunc(func(ctx context.Context, name string, args map[string]any) (any, error) {
		return nil, nil
	}))
	res := reg.Execute(context.Background(), Call{ID: "c1", Name: "law_article_fetch", Args: map[string]any{"law_id": "2341-III"}})
	if res.OK() || res.Err == nil || !strings.Contains(res.Err.Message, "missing required field") {
		t.Fatalf("result=%+v, want missing required field", res)
	}
}

func TestExecuteCapturesExecutorError(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, ExecutorFunc(func(ctx context.Context, name string, args map[string]any) (any, error) {
		return nil, errors.New("decision not found in registry")
	}))
	res := reg.Execute(context.Background(), Call{ID: "c1", Name: "court_decision_fetch", Args: map[string]any{"case_number": "757/1234/24"}})
	if res.Status != StatusError {
		t.Fatalf("status=%q, want error", res.Status)
	}
	if res.Err == nil || res.Err.Code != ErrCodeNotFound {
		t.Fatalf("err=%+v, want not_found classification", res.Err)
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, ExecutorFunc(func(ctx context.Context, name string, args map[string]any) (any, error) {
		t.Fatal("executor must not run after cancel")
		return nil, nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := reg.Execute(ctx, Call{ID: "c1", Name: "court_decision_fetch", Args: map[string]any{"case_number": "757/1234/24"}})
	if res.Status != StatusAborted {
		t.Fatalf("status=%q, want aborted", res.Status)
	}
}

func TestValidateArgsTypes(t *testing.T) {
	t.Parallel()

	def, ok := func() (Def, bool) {
		for _, d := range Catalog() {
			if d.Name == "court_decision_search" {
				return d, true
			}
		}
		return Def{}, false
	}()
	if !ok {
		t.Fatal("court_decision_search missing from catalog")
	}

	if err := ValidateArgs(def, map[string]any{"query": "штраф", "limit": float64(5)}); err != nil {
		t.Fatalf("valid args rejected: %v", err)
	}
	if err := ValidateArgs(def, map[string]any{"query": 42}); err == nil {
		t.Fatal("numeric query accepted, want type error")
	}
}
