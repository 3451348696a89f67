// Package dynvar implements dynamic-scope variable overlays: named,
// goroutine-scoped slots whose values can be temporarily replaced for the
// duration of a block, with the prior value guaranteed to come back on every
// exit path. It exists to avoid tramp data, values threaded through several
// call signatures purely so a deeply nested function can read them.
package dynvar

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/petermattis/goid"
)

// Variable is the untyped view of a declared dynamic variable. Var[T]
// implements it; registries and overlay bindings work against this interface
// so variables of different types can share one declaration list.
type Variable interface {
	// Name returns the identity the variable was declared with.
	Name() string
	// Label returns the optional human-friendly label.
	Label() string
	// CurrentValue returns the calling goroutine's current value.
	CurrentValue() any
	// Depth reports how many overlays of this variable are active on the
	// calling goroutine. Zero means the root value is visible.
	Depth() int

	bindValue(value any) (Binding, error)
}

// Var is a named slot holding one current value per goroutine. Goroutines
// that have no active overlay observe the root value set at declaration;
// goroutines inside an overlay observe their own override and never each
// other's. All reads of an overridden value must stay on the goroutine that
// installed the override for the override's entire extent.
type Var[T any] struct {
	name     string
	label    string
	metadata map[string]any

	mu    sync.RWMutex
	root  T
	slots map[int64]*slot[T]
}

// slot tracks the override state for one goroutine. value is only written by
// the owning goroutine; the map itself is guarded by Var.mu.
type slot[T any] struct {
	value T
	depth int
}

// VarOption configures metadata on Var declaration.
type VarOption func(*varConfig)

type varConfig struct {
	label    string
	metadata map[string]any
}

// WithLabel sets a human-friendly label on the variable.
func WithLabel(label string) VarOption {
	return func(cfg *varConfig) {
		cfg.label = label
	}
}

// WithMetadata attaches arbitrary metadata to the variable. The map is copied
// so the variable stays immutable if the caller mutates their reference.
func WithMetadata(metadata map[string]any) VarOption {
	return func(cfg *varConfig) {
		if len(metadata) == 0 {
			return
		}
		cfg.metadata = copyMetadata(metadata)
	}
}

// New declares a dynamic variable with its root value. Name validation is
// deferred to Registry registration so callers can build variables before
// deciding ownership.
func New[T any](name string, initial T, opts ...VarOption) *Var[T] {
	cfg := varConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return &Var[T]{
		name:     name,
		label:    cfg.label,
		metadata: copyMetadata(cfg.metadata),
		root:     initial,
		slots:    make(map[int64]*slot[T]),
	}
}

// Name returns the identity the variable was declared with.
func (v *Var[T]) Name() string { return v.name }

// Label returns the optional human-friendly label.
func (v *Var[T]) Label() string { return v.label }

// Metadata returns a copy of the metadata attached at declaration.
func (v *Var[T]) Metadata() map[string]any {
	return copyMetadata(v.metadata)
}

// Get returns the calling goroutine's current value: the innermost active
// override when one exists, otherwise the root value. It has no side effects
// and never blocks beyond the internal read lock.
func (v *Var[T]) Get() T {
	id := goid.Get()
	v.mu.RLock()
	defer v.mu.RUnlock()
	if s, ok := v.slots[id]; ok {
		return s.value
	}
	return v.root
}

// Set replaces the calling goroutine's current value. Inside an overlay it
// mutates the override, so the change is discarded when the overlay's scope
// exits; outside any overlay it replaces the root value seen by every
// goroutine without an override.
func (v *Var[T]) Set(value T) {
	id := goid.Get()
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.slots[id]; ok {
		s.value = value
		return
	}
	v.root = value
}

// Depth reports how many overlays of this variable are active on the calling
// goroutine.
func (v *Var[T]) Depth() int {
	id := goid.Get()
	v.mu.RLock()
	defer v.mu.RUnlock()
	if s, ok := v.slots[id]; ok {
		return s.depth
	}
	return 0
}

// CurrentValue returns the calling goroutine's current value untyped.
func (v *Var[T]) CurrentValue() any {
	return v.Get()
}

// Install overrides the variable for the calling goroutine and returns the
// Restorer that undoes it. The returned Restorer must fire on the same
// goroutine, normally via defer:
//
//	defer v.Install(value).Restore()
//
// The prior value is captured as an independent deep copy, so mutation of the
// installed value cannot alias it.
func (v *Var[T]) Install(value T) *Restorer {
	point := v.install(value)
	return newRestorer(v.name, func() {
		v.restore(point)
	})
}

// restorePoint is the captured state a single restore writes back.
type restorePoint[T any] struct {
	prev T
	base bool
	gid  int64
}

func (v *Var[T]) install(value T) restorePoint[T] {
	id := goid.Get()
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.slots[id]
	if !ok {
		point := restorePoint[T]{prev: Clone(v.root), base: true, gid: id}
		v.slots[id] = &slot[T]{value: value, depth: 1}
		return point
	}
	point := restorePoint[T]{prev: Clone(s.value), gid: id}
	s.value = value
	s.depth++
	return point
}

func (v *Var[T]) restore(point restorePoint[T]) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.slots[point.gid]
	if !ok {
		return
	}
	s.depth--
	if s.depth <= 0 {
		// Outermost restore: dropping the slot makes reads fall back to the
		// root value and leaves nothing behind once the goroutine exits.
		delete(v.slots, point.gid)
		return
	}
	s.value = point.prev
}

func (v *Var[T]) bindValue(value any) (Binding, error) {
	typed, ok := value.(T)
	if ok {
		return Bind(v, typed), nil
	}
	want := reflect.TypeOf(v.root)
	got := reflect.ValueOf(value)
	if want != nil && got.IsValid() && numericKind(want.Kind()) && numericKind(got.Kind()) {
		return Bind(v, got.Convert(want).Interface().(T)), nil
	}
	return nil, fmt.Errorf("%w: variable %q wants %T, got %T", ErrValueType, v.name, v.root, value)
}

// numericKind reports whether a kind participates in bind-time numeric
// conversion. Go's general convertibility is too loose here, it would turn
// an int into a one-rune string.
func numericKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
