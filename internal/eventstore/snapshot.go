package eventstore

import (
	"encoding/json"
	"os"

	"gossipkv/internal/event"
)

// snapshotManager saves and restores a point-in-time copy of every event
// held by a Durable store, so recovery doesn't have to replay the wal from
// the very first write.
type snapshotManager struct {
	path string
}

func newSnapshotManager(path string) *snapshotManager {
	return &snapshotManager{path: path}
}

// save writes events to a temp file and atomically renames it into place,
// so a crash mid-write leaves the previous snapshot intact.
func (s *snapshotManager) save(events []event.Event) error {
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// load returns (nil, nil) if no snapshot file exists yet.
func (s *snapshotManager) load() ([]event.Event, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var events []event.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	return events, nil
}
