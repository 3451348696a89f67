package dynvar

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-dynvar/pkg/activity"
)

var (
	// ErrVarNameRequired indicates a variable with an empty name.
	ErrVarNameRequired = errors.New("dynvar: variable name must be provided")
	// ErrDuplicateVar indicates a second declaration under an existing name.
	ErrDuplicateVar = errors.New("dynvar: variable already declared")
	// ErrUnknownVar indicates a lookup or bind against an undeclared name.
	ErrUnknownVar = errors.New("dynvar: variable not declared")
	// ErrValueType indicates a bind value incompatible with the variable type.
	ErrValueType = errors.New("dynvar: value type mismatch")
	// ErrNoEvaluator indicates evaluation without a usable evaluator.
	ErrNoEvaluator = errors.New("dynvar: evaluator not configured")
)

// Registry owns a set of declared variables with a defined initialization
// order, so call sites reference explicit objects instead of ambient process
// globals and tests can build independent registries.
type Registry struct {
	mu    sync.RWMutex
	vars  map[string]Variable
	order []string
	cfg   registryConfig
}

// RegistryOption configures evaluation and observation on a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry
	logger       EvaluatorLogger
	hooks        activity.Hooks
}

// WithEvaluator configures the expression evaluator used by Evaluate.
func WithEvaluator(e Evaluator) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.evaluator = e
	}
}

// WithProgramCache registers a compiled-program cache for the default
// evaluator.
func WithProgramCache(cache ProgramCache) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.programCache = cache
	}
}

// WithFunctionRegistry exposes registry functions to evaluated expressions.
func WithFunctionRegistry(registry *FunctionRegistry) RegistryOption {
	return func(cfg *registryConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for evaluated expressions.
func WithCustomFunction(name string, fn Function) RegistryOption {
	return func(cfg *registryConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithEvaluatorLogger attaches an evaluator logger to the registry.
func WithEvaluatorLogger(logger EvaluatorLogger) RegistryOption {
	return func(cfg *registryConfig) {
		if logger == nil {
			cfg.logger = noopEvaluatorLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithActivityHooks attaches activity hooks that registry-driven overlays
// notify on install and restore. Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) RegistryOption {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *registryConfig) {
		cfg.hooks = normalized
	}
}

// NewRegistry builds an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := registryConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Registry{
		vars: make(map[string]Variable),
		cfg:  cfg,
	}
}

// Declare creates a variable with its root value and registers it in one
// step.
func Declare[T any](r *Registry, name string, initial T, opts ...VarOption) (*Var[T], error) {
	v := New(name, initial, opts...)
	if err := r.Register(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Register adds an already-constructed variable, guarding name uniqueness.
// Registration order is preserved and reported by Names.
func (r *Registry) Register(v Variable) error {
	if v == nil {
		return fmt.Errorf("dynvar: variable must not be nil")
	}
	if v.Name() == "" {
		return ErrVarNameRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vars == nil {
		r.vars = make(map[string]Variable)
	}
	if _, exists := r.vars[v.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateVar, v.Name())
	}
	r.vars[v.Name()] = v
	r.order = append(r.order, v.Name())
	return nil
}

// Lookup returns the variable declared under name.
func (r *Registry) Lookup(name string) (Variable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vars[name]
	return v, ok
}

// Names returns the declared names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of declared variables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot returns each declared variable's current value for the calling
// goroutine, keyed by name. Inside an overlay the snapshot observes the
// overridden values.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	vars := make([]Variable, 0, len(names))
	for _, name := range names {
		vars = append(vars, r.vars[name])
	}
	r.mu.RUnlock()

	out := make(map[string]any, len(vars))
	for _, v := range vars {
		out[v.Name()] = v.CurrentValue()
	}
	return out
}

// Bind builds an overlay binding for the named variable, checking that value
// is compatible with the variable's type. Numeric values convertible to the
// declared type are converted.
func (r *Registry) Bind(name string, value any) (Binding, error) {
	v, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVar, name)
	}
	return v.bindValue(value)
}

// Overlay runs a registry-aware overlay: the registry's activity hooks are
// applied before any per-call options so callers can still override them.
func (r *Registry) Overlay(bindings []Binding, fn func() error, opts ...OverlayOption) error {
	if r.cfg.hooks.Enabled() {
		opts = append([]OverlayOption{WithOverlayHooks(r.cfg.hooks)}, opts...)
	}
	return Overlay(bindings, fn, opts...)
}

// Evaluate executes expr against the registry's current snapshot and wraps
// the result.
func (r *Registry) Evaluate(expr string) (Response[any], error) {
	return r.EvaluateWith(EvalContext{}, expr)
}

// EvaluateWith executes expr using ctx, falling back to the registry snapshot
// when ctx.Vars is nil.
func (r *Registry) EvaluateWith(ctx EvalContext, expr string) (Response[any], error) {
	if expr == "" {
		return Response[any]{}, fmt.Errorf("dynvar: expression must not be empty")
	}
	evaluator, err := r.resolveEvaluator()
	if err != nil {
		return Response[any]{}, err
	}
	if ctx.Vars == nil {
		ctx.Vars = r.Snapshot()
	}
	ctx = ctx.withDefaultNow().withDefaultMaps()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError("", expr, evalErr)
	r.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return Response[any]{}, evalErr
	}
	return Response[any]{Value: value}, nil
}

func (r *Registry) evaluatorLogger() EvaluatorLogger {
	if r.cfg.logger != nil {
		return r.cfg.logger
	}
	return noopEvaluatorLogger{}
}

func (r *Registry) resolveEvaluator() (Evaluator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.evaluator != nil {
		return r.cfg.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cache := r.cfg.programCache; cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cache))
	}
	if registry := r.cfg.functions; registry != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(registry))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	r.cfg.evaluator = defaultEvaluator
	return defaultEvaluator, nil
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*dynvar.exprEvaluator":
		return "expr"
	case "*dynvar.celEvaluator":
		return "cel"
	case "*dynvar.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.Hook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
