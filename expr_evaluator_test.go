package dynvar

import (
	"errors"
	"sync"
	"testing"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string]any
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]any{}}
}

func (c *mapCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return value, ok
}

func (c *mapCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func TestEvaluateAgainstSnapshot(t *testing.T) {
	r := NewRegistry()
	if _, err := Declare(r, "timeout", 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := r.Evaluate("timeout * 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Value != 60 {
		t.Fatalf("expected 60, got %v", res.Value)
	}
}

func TestEvaluateObservesOverriddenValues(t *testing.T) {
	r := NewRegistry()
	timeout, err := Declare(r, "timeout", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = timeout.Overlay(5, func() error {
		res, err := r.Evaluate("timeout")
		if err != nil {
			return err
		}
		if res.Value != 5 {
			t.Fatalf("expected overridden 5, got %v", res.Value)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := r.Evaluate("timeout")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Value != 30 {
		t.Fatalf("expected root 30 after overlay, got %v", res.Value)
	}
}

func TestEvaluateWithCustomFunction(t *testing.T) {
	r := NewRegistry(
		WithCustomFunction("double", func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, errors.New("double wants one argument")
			}
			n, ok := args[0].(int)
			if !ok {
				return nil, errors.New("double wants an int")
			}
			return n * 2, nil
		}),
	)
	if _, err := Declare(r, "limit", 21); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := r.Evaluate("double(limit)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Value != 42 {
		t.Fatalf("expected 42, got %v", res.Value)
	}
}

func TestEvaluateUsesProgramCache(t *testing.T) {
	cache := newMapCache()
	r := NewRegistry(WithProgramCache(cache))
	if _, err := Declare(r, "limit", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		res, err := r.Evaluate("limit + 1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Value != 11 {
			t.Fatalf("expected 11, got %v", res.Value)
		}
	}

	if cache.hits < 2 {
		t.Fatalf("expected at least 2 cache hits, got %d", cache.hits)
	}
}

func TestEvaluatorLoggerReceivesEvents(t *testing.T) {
	var events []EvaluatorLogEvent
	r := NewRegistry(WithEvaluatorLogger(EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		events = append(events, event)
	})))
	if _, err := Declare(r, "limit", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := r.Evaluate("limit"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected 1 log event, got %d", len(events))
	}
	if events[0].Engine != "expr" {
		t.Fatalf("expected expr engine, got %q", events[0].Engine)
	}
	if events[0].Expr != "limit" {
		t.Fatalf("expected logged expression, got %q", events[0].Expr)
	}
}

func TestCompiledRuleReusesProgram(t *testing.T) {
	evaluator := NewExprEvaluator(ExprWithProgramCache(newMapCache()))

	rule, err := evaluator.Compile("limit * 3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := rule.Evaluate(EvalContext{Vars: map[string]any{"limit": 7}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != 21 {
		t.Fatalf("expected 21, got %v", out)
	}
}
