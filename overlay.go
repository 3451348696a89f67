package dynvar

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-dynvar/pkg/activity"
	"github.com/google/uuid"
)

// OverlayOption configures observation of a single Overlay invocation.
type OverlayOption func(*overlayConfig)

type overlayConfig struct {
	trace    *Trace
	hooks    activity.Hooks
	logger   OverlayLogger
	ctx      context.Context
	actorID  string
	metadata map[string]any
}

// WithTrace collects install/restore events for this invocation into trace.
func WithTrace(trace *Trace) OverlayOption {
	return func(cfg *overlayConfig) {
		cfg.trace = trace
	}
}

// WithOverlayHooks fans out install/restore events to activity hooks. Hook
// failures are reported to the overlay logger and never alter the overlay's
// result.
func WithOverlayHooks(hooks activity.Hooks) OverlayOption {
	return func(cfg *overlayConfig) {
		cfg.hooks = hooks
	}
}

// WithOverlayLogger attaches a logger that receives one event per completed
// invocation plus any hook failures.
func WithOverlayLogger(logger OverlayLogger) OverlayOption {
	return func(cfg *overlayConfig) {
		if logger == nil {
			cfg.logger = noopOverlayLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithNotifyContext sets the context passed to activity hooks.
func WithNotifyContext(ctx context.Context) OverlayOption {
	return func(cfg *overlayConfig) {
		cfg.ctx = ctx
	}
}

// WithActor stamps emitted activity events with an actor identifier.
func WithActor(actorID string) OverlayOption {
	return func(cfg *overlayConfig) {
		cfg.actorID = actorID
	}
}

// WithEventMetadata merges metadata into every emitted activity event.
func WithEventMetadata(metadata map[string]any) OverlayOption {
	return func(cfg *overlayConfig) {
		if len(metadata) == 0 {
			return
		}
		cfg.metadata = copyMetadata(metadata)
	}
}

func applyOverlayOptions(opts []OverlayOption) overlayConfig {
	cfg := overlayConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Overlay installs each binding in declaration order, runs fn, and restores
// every installed binding in reverse order on the way out. Restoration is
// bound to each binding's own scope, so it fires on normal return, on error
// return, and on panic unwind alike; a panic in fn propagates unchanged after
// all restorations have run. fn's error is returned untouched.
//
// Overlay must complete on the goroutine that called it: the overridden
// values are keyed to that goroutine and do not follow work handed to
// others.
func Overlay(bindings []Binding, fn func() error, opts ...OverlayOption) (err error) {
	cfg := applyOverlayOptions(opts)
	rec := newOverlayRecorder(cfg)
	if rec != nil || cfg.logger != nil {
		start := time.Now()
		defer func() {
			logger := cfg.logger
			if logger == nil {
				logger = noopOverlayLogger{}
			}
			logger.LogOverlay(OverlayLogEvent{
				OverlayID: rec.overlayID(),
				Bindings:  len(bindings),
				Duration:  time.Since(start),
				Err:       err,
			})
		}()
	}
	return runOverlay(bindings, fn, rec)
}

// runOverlay expands the binding list recursively: each step installs one
// binding and defers its restoration before handling the rest, which is what
// makes restoration per-binding and LIFO.
func runOverlay(bindings []Binding, fn func() error, rec *overlayRecorder) error {
	if len(bindings) == 0 {
		return fn()
	}
	head := bindings[0]
	restorer := head.install()
	rec.record(head.Variable(), ActionInstall)
	defer func() {
		restorer.Restore()
		rec.record(head.Variable(), ActionRestore)
	}()
	return runOverlay(bindings[1:], fn, rec)
}

// OverlayValue is Overlay for blocks that produce a result. The result and
// error come back exactly as fn returned them, after restoration.
func OverlayValue[R any](bindings []Binding, fn func() (R, error), opts ...OverlayOption) (R, error) {
	var out R
	err := Overlay(bindings, func() error {
		var innerErr error
		out, innerErr = fn()
		return innerErr
	}, opts...)
	return out, err
}

// Overlay overrides just this variable around fn. Equivalent to a one-binding
// Overlay call.
func (v *Var[T]) Overlay(value T, fn func() error, opts ...OverlayOption) error {
	return Overlay([]Binding{Bind(v, value)}, fn, opts...)
}

// overlayRecorder feeds trace and activity observers while an overlay runs.
// A nil recorder is valid and records nothing.
type overlayRecorder struct {
	id       string
	trace    *Trace
	hooks    activity.Hooks
	logger   OverlayLogger
	ctx      context.Context
	actorID  string
	metadata map[string]any
}

func newOverlayRecorder(cfg overlayConfig) *overlayRecorder {
	if cfg.trace == nil && !cfg.hooks.Enabled() {
		return nil
	}
	ctx := cfg.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.logger
	if logger == nil {
		logger = noopOverlayLogger{}
	}
	return &overlayRecorder{
		id:       uuid.NewString(),
		trace:    cfg.trace,
		hooks:    cfg.hooks,
		logger:   logger,
		ctx:      ctx,
		actorID:  cfg.actorID,
		metadata: cfg.metadata,
	}
}

func (r *overlayRecorder) overlayID() string {
	if r == nil {
		return ""
	}
	return r.id
}

func (r *overlayRecorder) record(v Variable, action Action) {
	if r == nil {
		return
	}
	now := time.Now()
	depth := v.Depth()
	if r.trace != nil {
		r.trace.append(Event{
			OverlayID:  r.id,
			Var:        v.Name(),
			Action:     action,
			Depth:      depth,
			OccurredAt: now,
		})
	}
	if !r.hooks.Enabled() {
		return
	}
	metadata := copyMetadata(r.metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["overlay_id"] = r.id
	metadata["depth"] = depth
	err := r.hooks.Notify(r.ctx, activity.Event{
		Verb:       string(action),
		ActorID:    r.actorID,
		ObjectType: "dynvar",
		ObjectID:   v.Name(),
		Channel:    "overlay",
		Metadata:   metadata,
		OccurredAt: now,
	})
	if err != nil {
		r.logger.LogOverlay(OverlayLogEvent{
			OverlayID: r.id,
			Err:       fmt.Errorf("dynvar: activity hooks: %w", err),
		})
	}
}
