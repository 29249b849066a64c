package eventdesk

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()

	if data, err := s.Get("missing"); err != nil || data != nil {
		t.Fatalf("absent key must read as nil, got %v, %v", data, err)
	}

	if err := s.Set("k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	data, err := s.Get("k")
	if err != nil || string(data) != `{"a":1}` {
		t.Fatalf("unexpected read: %q, %v", data, err)
	}
}

func TestFileStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "storage")
	s, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("cannot create storage: %v", err)
	}

	if data, err := s.Get("missing"); err != nil || data != nil {
		t.Fatalf("absent key must read as nil, got %v, %v", data, err)
	}

	if err := s.Set(storageKeyEvents, []byte(`[{"ID":1}]`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// Values survive a new storage instance over the same directory.
	again, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("cannot reopen storage: %v", err)
	}
	data, err := again.Get(storageKeyEvents)
	if err != nil || string(data) != `[{"ID":1}]` {
		t.Fatalf("unexpected read: %q, %v", data, err)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
}
