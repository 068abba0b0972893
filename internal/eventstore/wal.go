package eventstore

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"gossipkv/internal/event"
)

// wal is an append-only, newline-delimited JSON log of every event
// accepted by a Durable store. On restart the log is replayed in order to
// rebuild the in-memory index before new writes are accepted.
//
// Every event is written to the wal before it becomes visible in memory —
// that ordering, not fsync latency, is what makes the store crash-safe.
type wal struct {
	mu   sync.Mutex
	file *os.File
}

func openWAL(path string) (*wal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &wal{file: f}, nil
}

func (w *wal) append(e event.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if _, err := w.file.Write(data); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *wal) readAll() ([]event.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, 0); err != nil {
		return nil, err
	}

	var events []event.Event
	scanner := bufio.NewScanner(w.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e event.Event
		if err := json.Unmarshal(line, &e); err != nil {
			// Corrupt entry — skip it rather than abort the whole replay.
			continue
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}

func (w *wal) truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	_, err := w.file.Seek(0, 0)
	return err
}

func (w *wal) close() error {
	return w.file.Close()
}
