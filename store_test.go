package eventdesk

import (
	"testing"
)

func TestMirrorStoreMerge(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewMirrorStore(storage)

	store.UpsertLocal(Event{ID: "1", Title: "stale local"})
	store.UpsertLocal(Event{ID: "temp-100", Title: "pending create", Queued: true})
	store.UpsertLocal(Event{ID: "2", Title: "pending update", Queued: true})

	merged := store.Merge([]Event{
		{ID: "1", Title: "fresh from server"},
		{ID: "2", Title: "server version"},
		{ID: "3", Title: "brand new"},
	})

	byID := make(map[EventID]Event)
	for _, ev := range merged {
		if _, dup := byID[ev.ID]; dup {
			t.Fatalf("duplicate ID %s after merge", ev.ID)
		}
		byID[ev.ID] = ev
	}

	if byID["1"].Title != "fresh from server" {
		t.Errorf("unqueued entry not overwritten: %q", byID["1"].Title)
	}
	if byID["2"].Title != "pending update" || !byID["2"].Queued {
		// Queued entries must survive a merge untouched.
		t.Errorf("queued entry clobbered: %+v", byID["2"])
	}
	if byID["3"].Title != "brand new" {
		t.Errorf("new server entry not inserted")
	}
	if _, ok := byID["temp-100"]; !ok {
		t.Errorf("temp entry lost in merge")
	}
}

func TestMirrorStorePersistence(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewMirrorStore(storage)
	store.UpsertLocal(Event{ID: "1", Title: "persisted"})

	// A fresh store over the same storage sees the same data.
	again := NewMirrorStore(storage)
	events := again.ReadAll()
	if len(events) != 1 || events[0].Title != "persisted" {
		t.Fatalf("expected persisted event, got %v", events)
	}
}

func TestMirrorStoreCorruptStorage(t *testing.T) {
	storage := NewMemoryStorage()
	_ = storage.Set(storageKeyEvents, []byte("{not json"))

	store := NewMirrorStore(storage)
	if got := store.ReadAll(); len(got) != 0 {
		t.Fatalf("corrupt storage must read as empty, got %v", got)
	}
}

func TestMirrorStoreRemoveLocal(t *testing.T) {
	store := NewMirrorStore(NewMemoryStorage())
	store.UpsertLocal(Event{ID: "1"})
	store.UpsertLocal(Event{ID: "2"})

	store.RemoveLocal("1")
	events := store.ReadAll()
	if len(events) != 1 || events[0].ID != "2" {
		t.Fatalf("expected only event 2, got %v", events)
	}

	// Removing an absent ID is harmless.
	store.RemoveLocal("99")
	if got := store.ReadAll(); len(got) != 1 {
		t.Fatalf("unexpected change: %v", got)
	}
}

func TestMirrorStoreReplaceID(t *testing.T) {
	t.Run("rekeys temp entry in place", func(t *testing.T) {
		store := NewMirrorStore(NewMemoryStorage())
		store.UpsertLocal(Event{ID: "1"})
		store.UpsertLocal(Event{ID: "temp-5", Title: "pending", Queued: true})

		store.ReplaceID("temp-5", Event{ID: "42", Title: "confirmed"})

		events := store.ReadAll()
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %v", events)
		}
		if events[1].ID != "42" || events[1].Queued {
			t.Fatalf("temp entry not rekeyed: %+v", events[1])
		}
	})

	t.Run("drops merged duplicate of the server ID", func(t *testing.T) {
		store := NewMirrorStore(NewMemoryStorage())
		store.UpsertLocal(Event{ID: "temp-5", Title: "pending", Queued: true})
		// The server copy arrived through a merge before replay finished.
		store.Merge([]Event{{ID: "42", Title: "server copy"}})

		store.ReplaceID("temp-5", Event{ID: "42", Title: "confirmed"})

		events := store.ReadAll()
		if len(events) != 1 || events[0].ID != "42" {
			t.Fatalf("expected single event 42, got %v", events)
		}
	})

	t.Run("missing temp entry inserts", func(t *testing.T) {
		store := NewMirrorStore(NewMemoryStorage())
		store.ReplaceID("temp-5", Event{ID: "42"})
		if events := store.ReadAll(); len(events) != 1 || events[0].ID != "42" {
			t.Fatalf("expected inserted event, got %v", events)
		}
	})
}
