package dynvar

import "sync"

// Binding pairs a declared variable with the value an overlay will install.
// Bindings are transient: they are built from caller arguments and consumed
// by a single Overlay invocation.
type Binding interface {
	// Variable returns the variable this binding targets.
	Variable() Variable

	install() *Restorer
}

// Bind builds a binding of v to value for use with Overlay.
func Bind[T any](v *Var[T], value T) Binding {
	return binding[T]{v: v, value: value}
}

type binding[T any] struct {
	v     *Var[T]
	value T
}

func (b binding[T]) Variable() Variable { return b.v }

func (b binding[T]) install() *Restorer {
	return b.v.Install(b.value)
}

// Restorer owns the responsibility to write one captured prior value back
// into its variable. Restore fires at most once regardless of how many times
// it is invoked, so a manual call followed by a deferred call stays safe.
type Restorer struct {
	name    string
	once    sync.Once
	restore func()
}

func newRestorer(name string, restore func()) *Restorer {
	return &Restorer{name: name, restore: restore}
}

// Name returns the name of the variable this restorer targets.
func (r *Restorer) Name() string {
	if r == nil {
		return ""
	}
	return r.name
}

// Restore writes the captured prior value back. Safe to call more than once;
// only the first call has effect. Restore never fails.
func (r *Restorer) Restore() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.restore != nil {
			r.restore()
		}
	})
}
