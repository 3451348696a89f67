package dynvar

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-dynvar/pkg/activity"
)

func TestOverlayNotifiesActivityHooks(t *testing.T) {
	var events []activity.Event
	r := NewRegistry(WithActivityHooks(activity.Hooks{
		activity.HookFunc(func(_ context.Context, event activity.Event) error {
			events = append(events, event)
			return nil
		}),
	}))
	timeout, err := Declare(r, "timeout", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mode, err := Declare(r, "mode", "normal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = r.Overlay([]Binding{Bind(timeout, 5), Bind(mode, "debug")}, func() error {
		return nil
	}, WithActor("3f2c3ed4-9a41-4bb0-9c41-9b5b24b90001"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	wantVerbs := []string{"install", "install", "restore", "restore"}
	wantObjects := []string{"timeout", "mode", "mode", "timeout"}
	for i := range events {
		if events[i].Verb != wantVerbs[i] {
			t.Fatalf("event %d: expected verb %q, got %q", i, wantVerbs[i], events[i].Verb)
		}
		if events[i].ObjectID != wantObjects[i] {
			t.Fatalf("event %d: expected object %q, got %q", i, wantObjects[i], events[i].ObjectID)
		}
		if events[i].ObjectType != "dynvar" {
			t.Fatalf("event %d: expected object type dynvar, got %q", i, events[i].ObjectType)
		}
		if events[i].Metadata["overlay_id"] == "" {
			t.Fatalf("event %d: expected overlay id metadata", i)
		}
	}
}

func TestHookFailureDoesNotAlterOverlayResult(t *testing.T) {
	hookErr := errors.New("sink down")
	var logged []OverlayLogEvent

	v := New("timeout", 30)
	err := v.Overlay(5, func() error { return nil },
		WithOverlayHooks(activity.Hooks{
			activity.HookFunc(func(context.Context, activity.Event) error {
				return hookErr
			}),
		}),
		WithOverlayLogger(OverlayLoggerFunc(func(event OverlayLogEvent) {
			logged = append(logged, event)
		})),
	)
	if err != nil {
		t.Fatalf("expected hook failure to stay out of the overlay result, got %v", err)
	}
	if got := v.Get(); got != 30 {
		t.Fatalf("expected restoration, got %d", got)
	}

	found := false
	for _, event := range logged {
		if event.Err != nil && errors.Is(event.Err, hookErr) {
			found = true
		}
	}
	if !found {
		t.Fatal("expected hook failure reported to the overlay logger")
	}
}
