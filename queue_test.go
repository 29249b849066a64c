package eventdesk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// replayServer records the order of write requests and lets tests fail
// individual targets.
type replayServer struct {
	mu       sync.Mutex
	requests []string
	nextID   int
	fail     map[string]int // path suffix -> status code
}

func newReplayServer() (*replayServer, *httptest.Server) {
	rs := &replayServer{nextID: 100, fail: make(map[string]int)}
	ts := httptest.NewServer(http.HandlerFunc(rs.handle))
	return rs, ts
}

func (rs *replayServer) handle(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	rs.requests = append(rs.requests, r.Method+" "+r.URL.Path)
	for suffix, status := range rs.fail {
		if strings.HasSuffix(r.URL.Path, suffix) {
			rs.mu.Unlock()
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "injected failure"})
			return
		}
	}
	defer rs.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		var in EventInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		rs.nextID++
		w.WriteHeader(http.StatusCreated)
		ev := in.Event(EventID(strconv.Itoa(rs.nextID)))
		_ = json.NewEncoder(w).Encode(ev)
	case http.MethodPut:
		var in EventInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		_ = json.NewEncoder(w).Encode(in.Event(EventID(id)))
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (rs *replayServer) requestLog() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string{}, rs.requests...)
}

func newTestQueue(baseURL string) (*OperationQueue, *MirrorStore, Storage) {
	storage := NewMemoryStorage()
	client := NewClient(WithBaseURL(baseURL))
	store := NewMirrorStore(storage)
	return NewOperationQueue(storage, client, store), store, storage
}

func testInput(title string) *EventInput {
	return &EventInput{
		Title: title, Group: "Tennis", Date: "2026-06-10",
		StartTime: "10:00", EndTime: "12:00", Description: "d",
	}
}

func TestProcessQueueFIFO(t *testing.T) {
	rs, ts := newReplayServer()
	defer ts.Close()
	queue, store, _ := newTestQueue(ts.URL)

	store.UpsertLocal(Event{ID: "temp-1", Title: "a", Queued: true})
	queue.AddOperation(QueuedOperation{Kind: OpCreate, Payload: testInput("a"), TempID: "temp-1"})
	queue.AddOperation(QueuedOperation{Kind: OpUpdate, TargetID: "7", Payload: testInput("b")})
	queue.AddOperation(QueuedOperation{Kind: OpDelete, TargetID: "8"})

	queue.ProcessQueue(context.Background())

	if queue.Len() != 0 {
		t.Fatalf("expected empty queue, %d remaining", queue.Len())
	}
	log := rs.requestLog()
	want := []string{"POST /entities", "PUT /entities/7", "DELETE /entities/8"}
	if len(log) != len(want) {
		t.Fatalf("expected %d requests, got %v", len(want), log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("request %d: got %q, want %q", i, log[i], want[i])
		}
	}

	// The create's temp entry was rekeyed to the server ID.
	for _, ev := range store.ReadAll() {
		if ev.ID.IsTemp() {
			t.Errorf("temp entry survived replay: %+v", ev)
		}
		if ev.Queued {
			t.Errorf("queued flag survived replay: %+v", ev)
		}
	}
}

func TestProcessQueueHaltsOnFailure(t *testing.T) {
	rs, ts := newReplayServer()
	defer ts.Close()
	queue, _, _ := newTestQueue(ts.URL)
	rs.fail["/entities/7"] = http.StatusInternalServerError

	queue.AddOperation(QueuedOperation{Kind: OpUpdate, TargetID: "7", Payload: testInput("a")})
	queue.AddOperation(QueuedOperation{Kind: OpDelete, TargetID: "8"})

	queue.ProcessQueue(context.Background())

	ops := queue.Operations()
	if len(ops) != 2 {
		t.Fatalf("expected both operations retained, got %d", len(ops))
	}
	if ops[0].TargetID != "7" || ops[1].TargetID != "8" {
		t.Fatalf("order not preserved: %v", ops)
	}
	if ops[0].Err == "" {
		t.Error("failed operation should record the error")
	}

	// The operation behind the failed head was never attempted.
	for _, req := range rs.requestLog() {
		if strings.Contains(req, "/entities/8") {
			t.Error("replay continued past a failed operation")
		}
	}
}

func TestProcessQueueDeleteNotFoundContinues(t *testing.T) {
	rs, ts := newReplayServer()
	defer ts.Close()
	queue, _, _ := newTestQueue(ts.URL)
	rs.fail["/entities/7"] = http.StatusNotFound

	queue.AddOperation(QueuedOperation{Kind: OpDelete, TargetID: "7"})
	queue.AddOperation(QueuedOperation{Kind: OpDelete, TargetID: "8"})

	queue.ProcessQueue(context.Background())

	if queue.Len() != 0 {
		t.Fatalf("404 on delete should count as success, %d remaining", queue.Len())
	}
}

func TestProcessQueueUpdateNotFoundHalts(t *testing.T) {
	rs, ts := newReplayServer()
	defer ts.Close()
	queue, _, _ := newTestQueue(ts.URL)
	rs.fail["/entities/7"] = http.StatusNotFound

	queue.AddOperation(QueuedOperation{Kind: OpUpdate, TargetID: "7", Payload: testInput("a")})

	queue.ProcessQueue(context.Background())

	if queue.Len() != 1 {
		t.Fatal("404 on update must not be treated as success")
	}
}

func TestQueuePersistsAcrossSessions(t *testing.T) {
	_, ts := newReplayServer()
	defer ts.Close()
	queue, store, storage := newTestQueue(ts.URL)

	queue.AddOperation(QueuedOperation{Kind: OpDelete, TargetID: "7"})

	// A new queue over the same storage restores the pending operation.
	client := NewClient(WithBaseURL(ts.URL))
	restored := NewOperationQueue(storage, client, store)
	ops := restored.Operations()
	if len(ops) != 1 || ops[0].Kind != OpDelete || ops[0].TargetID != "7" {
		t.Fatalf("queue not restored: %v", ops)
	}

	restored.ProcessQueue(context.Background())
	if restored.Len() != 0 {
		t.Fatal("restored queue failed to replay")
	}
}

func TestProcessQueueSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 16)
	var mu sync.Mutex
	var requests int

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	queue, _, _ := newTestQueue(ts.URL)
	queue.AddOperation(QueuedOperation{Kind: OpDelete, TargetID: "7"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.ProcessQueue(context.Background())
	}()
	<-started

	// A second call while the first replay is in flight must return
	// without touching the network.
	queue.ProcessQueue(context.Background())

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if requests != 1 {
		t.Fatalf("expected a single request, got %d", requests)
	}
}
