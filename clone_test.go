package dynvar

import (
	"testing"
	"time"
)

type cloneSample struct {
	Name   string
	Count  *int
	Labels map[string]string
	Tags   []string
}

func TestCloneDetachesReferences(t *testing.T) {
	count := 5
	original := cloneSample{
		Name:   "original",
		Count:  &count,
		Labels: map[string]string{"env": "prod"},
		Tags:   []string{"a", "b"},
	}

	cloned := Clone(original)

	*original.Count = 9
	original.Labels["env"] = "qa"
	original.Tags[0] = "z"

	if *cloned.Count != 5 {
		t.Fatalf("expected cloned pointer detached, got %d", *cloned.Count)
	}
	if cloned.Labels["env"] != "prod" {
		t.Fatalf("expected cloned map detached, got %q", cloned.Labels["env"])
	}
	if cloned.Tags[0] != "a" {
		t.Fatalf("expected cloned slice detached, got %q", cloned.Tags[0])
	}
}

func TestCloneKeepsUnexportedFields(t *testing.T) {
	when := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	cloned := Clone(when)
	if !cloned.Equal(when) {
		t.Fatalf("expected %v, got %v", when, cloned)
	}
}

func TestCloneZeroValues(t *testing.T) {
	if got := Clone[map[string]string](nil); got != nil {
		t.Fatalf("expected nil map, got %v", got)
	}
	if got := Clone(0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := Clone(""); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
	var empty any
	if got := Clone(empty); got != nil {
		t.Fatalf("expected nil any, got %v", got)
	}
}
