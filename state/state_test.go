package state

import (
	"path/filepath"
	"testing"

	"github.com/dhcgn/application-tracker/model"
	"github.com/dhcgn/application-tracker/store"
)

func TestMemoryTracker(t *testing.T) {
	tracker := NewMemoryTracker()

	if tracker.AlreadyProcessed("a") {
		t.Fatal("empty tracker reports a as processed")
	}

	tracker.MarkProcessed("a")
	tracker.MarkProcessed("a")
	tracker.MarkProcessed("")

	if !tracker.AlreadyProcessed("a") {
		t.Error("expected a to be processed")
	}
	if tracker.AlreadyProcessed("") {
		t.Error("empty id must never count as processed")
	}
	if got := tracker.Snapshot().Processed; got != 1 {
		t.Errorf("Snapshot().Processed = %d, want 1", got)
	}
}

func TestLoadStore(t *testing.T) {
	dir := t.TempDir()

	tracker, err := LoadStore(filepath.Join(dir, "missing.csv"))
	if err != nil {
		t.Fatalf("LoadStore(missing) error = %v", err)
	}
	if got := tracker.Snapshot().Processed; got != 0 {
		t.Errorf("missing store: Processed = %d, want 0", got)
	}

	path := filepath.Join(dir, "applications.csv")
	records := []model.Record{
		{MessageID: "m1", Status: model.StatusOffer},
		{MessageID: "m2", Status: model.StatusRejected},
	}
	if err := store.Write(path, records, store.ModeOverwrite); err != nil {
		t.Fatalf("store.Write() error = %v", err)
	}

	tracker, err = LoadStore(path)
	if err != nil {
		t.Fatalf("LoadStore() error = %v", err)
	}
	for _, id := range []string{"m1", "m2"} {
		if !tracker.AlreadyProcessed(id) {
			t.Errorf("expected %s to be loaded", id)
		}
	}
	if tracker.AlreadyProcessed("m3") {
		t.Error("m3 was never stored")
	}
}

func TestPending(t *testing.T) {
	tracker := NewMemoryTracker()
	tracker.MarkProcessed("b")

	tests := []struct {
		name       string
		candidates []string
		want       []string
	}{
		{name: "keeps order", candidates: []string{"c", "a", "b", "d"}, want: []string{"c", "a", "d"}},
		{name: "drops repeats", candidates: []string{"a", "a", "c"}, want: []string{"a", "c"}},
		{name: "all known", candidates: []string{"b"}, want: []string{}},
		{name: "empty", candidates: nil, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pending(tracker, tt.candidates)
			if len(got) != len(tt.want) {
				t.Fatalf("Pending() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Pending()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
