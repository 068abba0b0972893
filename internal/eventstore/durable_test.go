package eventstore

import (
	"os"
	"path/filepath"
	"testing"

	"gossipkv/internal/event"
)

func TestDurableSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	d, err := NewDurable(dir)
	if err != nil {
		t.Fatalf("NewDurable: %v", err)
	}
	e1 := event.New("n1", 1, map[string]any{"a": 1})
	e2 := event.New("n1", 2, map[string]any{"b": 2})
	if err := d.SaveEvent(e1); err != nil {
		t.Fatalf("SaveEvent e1: %v", err)
	}
	if err := d.SaveEvent(e2); err != nil {
		t.Fatalf("SaveEvent e2: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewDurable(dir)
	if err != nil {
		t.Fatalf("reopen NewDurable: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.GetAllEvents()
	if err != nil {
		t.Fatalf("GetAllEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("replayed %d events, want 2", len(events))
	}
}

func TestSnapshotTruncatesWAL(t *testing.T) {
	dir := t.TempDir()

	d, err := NewDurable(dir)
	if err != nil {
		t.Fatalf("NewDurable: %v", err)
	}
	_ = d.SaveEvent(event.New("n1", 1, nil))
	_ = d.SaveEvent(event.New("n1", 2, nil))

	if err := d.Snapshot(); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "events.wal"))
	if err != nil {
		t.Fatalf("stat wal: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("wal size after snapshot = %d, want 0", info.Size())
	}

	reopened, err := NewDurable(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.GetAllEvents()
	if err != nil {
		t.Fatalf("GetAllEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events after snapshot+reopen = %d, want 2", len(events))
	}

	snapshotPath := filepath.Join(dir, "snapshot.json")
	if _, err := newSnapshotManager(snapshotPath).load(); err != nil {
		t.Fatalf("snapshot file unreadable: %v", err)
	}
}
