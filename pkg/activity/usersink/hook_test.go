package usersink_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-dynvar/pkg/activity"
	"github.com/goliatone/go-dynvar/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	overlayID := uuid.NewString()

	event := activity.Event{
		Verb:       "install",
		ActorID:    actorID.String(),
		ObjectType: "dynvar",
		ObjectID:   "timeout",
		Channel:    "overlay",
		Metadata: map[string]any{
			"overlay_id": overlayID,
			"depth":      1,
		},
		OccurredAt: now,
	}

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID {
		t.Fatalf("expected actor %s, got %s", actorID, record.ActorID)
	}
	if record.Verb != "install" || record.ObjectType != "dynvar" || record.ObjectID != "timeout" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "overlay" {
		t.Fatalf("expected overlay channel, got %q", record.Channel)
	}
	if record.Data["overlay_id"] != overlayID {
		t.Fatalf("expected overlay id in data, got %v", record.Data["overlay_id"])
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("expected timestamp kept, got %v", record.OccurredAt)
	}
}

func TestHookNotifyDropsIncompleteEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	if err := hook.Notify(context.Background(), activity.Event{Verb: "install"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 0 {
		t.Fatalf("expected no records, got %d", len(sink.records))
	}
}

func TestHookNotifyParsesInvalidActorAsNil(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	event := activity.Event{
		Verb:       "restore",
		ActorID:    "not-a-uuid",
		ObjectType: "dynvar",
		ObjectID:   "mode",
	}
	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sink.records[0].ActorID != uuid.Nil {
		t.Fatalf("expected nil actor id, got %s", sink.records[0].ActorID)
	}
}

func TestHookNotifyNilSink(t *testing.T) {
	hook := usersink.Hook{}
	if err := hook.Notify(context.Background(), activity.Event{
		Verb:       "install",
		ObjectType: "dynvar",
		ObjectID:   "timeout",
	}); err != nil {
		t.Fatalf("expected nil sink to be a no-op, got %v", err)
	}
}
