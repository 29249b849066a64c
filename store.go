package eventdesk

import (
	"encoding/json"
	"sync"
)

// MirrorStore is the locally persisted copy of the event collection. It
// serves reads while the server is unreachable and holds optimistic
// writes until they are acknowledged. All mutation goes through its
// methods; the underlying storage blob is never edited directly.
//
// The store never fails: corrupt or missing storage reads as an empty
// collection, and persistence errors are dropped (the in-memory view
// stays correct for the session).
type MirrorStore struct {
	mu      sync.Mutex
	storage Storage
}

// NewMirrorStore creates a mirror store over the given storage backend.
func NewMirrorStore(storage Storage) *MirrorStore {
	return &MirrorStore{storage: storage}
}

// ReadAll returns the full cached collection, possibly empty.
func (s *MirrorStore) ReadAll() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Merge folds a server result into the cache. Incoming events with no
// local counterpart are inserted; existing unqueued entries are
// overwritten by the server version; entries marked queued are left
// untouched so the server cannot clobber a pending local change.
// Returns the new cached collection.
func (s *MirrorStore) Merge(serverEvents []Event) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.load()
	index := make(map[EventID]int, len(events))
	for i := range events {
		index[events[i].ID] = i
	}

	for _, incoming := range serverEvents {
		i, ok := index[incoming.ID]
		if !ok {
			index[incoming.ID] = len(events)
			events = append(events, incoming)
			continue
		}
		if !events[i].Queued {
			events[i] = incoming
		}
	}

	s.save(events)
	return events
}

// UpsertLocal inserts or replaces a single event by identifier.
func (s *MirrorStore) UpsertLocal(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.load()
	for i := range events {
		if events[i].ID == ev.ID {
			events[i] = ev
			s.save(events)
			return
		}
	}
	s.save(append(events, ev))
}

// RemoveLocal deletes a single event by identifier.
func (s *MirrorStore) RemoveLocal(id EventID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.load()
	kept := events[:0]
	for _, ev := range events {
		if ev.ID != id {
			kept = append(kept, ev)
		}
	}
	s.save(kept)
}

// ReplaceID swaps the entry keyed by a temporary identifier for the
// server-acknowledged event, in place, with the queued flag cleared. If
// no entry carries the temporary identifier the event is inserted.
func (s *MirrorStore) ReplaceID(tempID EventID, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.Queued = false
	events := s.load()
	tempIdx := -1
	serverIdx := -1
	for i := range events {
		switch events[i].ID {
		case tempID:
			tempIdx = i
		case ev.ID:
			serverIdx = i
		}
	}
	if tempIdx == -1 {
		if serverIdx >= 0 {
			events[serverIdx] = ev
		} else {
			events = append(events, ev)
		}
		s.save(events)
		return
	}
	events[tempIdx] = ev
	if serverIdx >= 0 {
		// The server copy already arrived via a merge; drop it so the
		// identifier stays unique.
		events = append(events[:serverIdx], events[serverIdx+1:]...)
	}
	s.save(events)
}

func (s *MirrorStore) load() []Event {
	data, err := s.storage.Get(storageKeyEvents)
	if err != nil || len(data) == 0 {
		return nil
	}
	var events []Event
	if json.Unmarshal(data, &events) != nil {
		return nil
	}
	return events
}

func (s *MirrorStore) save(events []Event) {
	if events == nil {
		events = []Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return
	}
	_ = s.storage.Set(storageKeyEvents, data)
}
