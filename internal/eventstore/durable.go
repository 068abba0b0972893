package eventstore

import (
	"fmt"
	"os"
	"path/filepath"

	"gossipkv/internal/event"
)

// Durable wraps Memory with a write-ahead log and periodic snapshots, so
// a node's event history survives a process restart. Reads are served
// entirely from the in-memory index; writes go to the wal first and only
// then update memory, the same ordering the teacher's key-value store
// uses for crash safety.
type Durable struct {
	mem      *Memory
	wal      *wal
	snapshot *snapshotManager
	dataDir  string
}

// NewDurable opens (or creates) a durable event store rooted at dataDir:
// it loads the most recent snapshot, opens the wal, and replays any
// entries written after that snapshot.
func NewDurable(dataDir string) (*Durable, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, newErr(KindIO, "NewDurable", fmt.Errorf("create data dir: %w", err))
	}

	d := &Durable{
		mem:      NewMemory(),
		snapshot: newSnapshotManager(filepath.Join(dataDir, "snapshot.json")),
		dataDir:  dataDir,
	}

	snapshotted, err := d.snapshot.load()
	if err != nil {
		return nil, newErr(KindCorrupted, "NewDurable", fmt.Errorf("load snapshot: %w", err))
	}
	for _, e := range snapshotted {
		_ = d.mem.SaveEvent(e)
	}

	w, err := openWAL(filepath.Join(dataDir, "events.wal"))
	if err != nil {
		return nil, newErr(KindIO, "NewDurable", fmt.Errorf("open wal: %w", err))
	}
	d.wal = w

	entries, err := w.readAll()
	if err != nil {
		return nil, newErr(KindCorrupted, "NewDurable", fmt.Errorf("replay wal: %w", err))
	}
	for _, e := range entries {
		_ = d.mem.SaveEvent(e)
	}

	return d, nil
}

func (d *Durable) SaveEvent(e event.Event) error {
	has, err := d.mem.HasEvent(e.ID)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	if err := d.wal.append(e); err != nil {
		return newErr(KindIO, "SaveEvent", err)
	}
	return d.mem.SaveEvent(e)
}

func (d *Durable) GetEvent(id string) (event.Event, bool, error) { return d.mem.GetEvent(id) }
func (d *Durable) HasEvent(id string) (bool, error)              { return d.mem.HasEvent(id) }
func (d *Durable) GetEventsSince(nodeID string, since uint64) ([]event.Event, error) {
	return d.mem.GetEventsSince(nodeID, since)
}
func (d *Durable) GetLatestTimestampForNode(nodeID string) (uint64, error) {
	return d.mem.GetLatestTimestampForNode(nodeID)
}
func (d *Durable) GetAllEvents() ([]event.Event, error) { return d.mem.GetAllEvents() }
func (d *Durable) Origins() ([]string, error)           { return d.mem.Origins() }
func (d *Durable) GetStats() (Stats, error)             { return d.mem.GetStats() }

// Snapshot persists the full in-memory state and truncates the wal, the
// same two-step swap the teacher's store uses: write the snapshot file
// first, only then discard the log entries it now supersedes.
func (d *Durable) Snapshot() error {
	events, err := d.mem.GetAllEvents()
	if err != nil {
		return err
	}
	if err := d.snapshot.save(events); err != nil {
		return newErr(KindIO, "Snapshot", err)
	}
	return d.wal.truncate()
}

func (d *Durable) Close() error {
	if err := d.wal.close(); err != nil {
		return newErr(KindIO, "Close", err)
	}
	return d.mem.Close()
}
