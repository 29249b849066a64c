package eventdesk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// healthServer is a health-check endpoint whose availability can be
// toggled mid-test.
type healthServer struct {
	mu   sync.Mutex
	down bool
}

func newHealthServer() (*healthServer, *httptest.Server) {
	hs := &healthServer{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hs.mu.Lock()
		down := hs.down
		hs.mu.Unlock()
		if down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(HealthStatus{Status: "ok"})
	}))
	return hs, ts
}

func (hs *healthServer) setDown(down bool) {
	hs.mu.Lock()
	hs.down = down
	hs.mu.Unlock()
}

func TestMonitorCheckNow(t *testing.T) {
	hs, ts := newHealthServer()
	defer ts.Close()

	m := NewConnectivityMonitor(NewClient(WithBaseURL(ts.URL)), nil)

	if m.Status().IsServerAvailable {
		t.Fatal("server must be assumed unavailable before the first probe")
	}

	m.CheckNow(context.Background())
	if !m.Status().Available() {
		t.Fatal("expected available after successful probe")
	}

	hs.setDown(true)
	m.CheckNow(context.Background())
	if m.Status().Available() {
		t.Fatal("expected unavailable after failed probe")
	}
}

func TestMonitorAvailableHookFiresOncePerTransition(t *testing.T) {
	hs, ts := newHealthServer()
	defer ts.Close()

	m := NewConnectivityMonitor(NewClient(WithBaseURL(ts.URL)), nil)

	var mu sync.Mutex
	var fired int
	m.OnAvailable(func(ctx context.Context) {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	ctx := context.Background()
	m.CheckNow(ctx) // unavailable -> available
	m.CheckNow(ctx) // still available, no transition
	m.CheckNow(ctx)

	mu.Lock()
	got := fired
	mu.Unlock()
	if got != 1 {
		t.Fatalf("hook fired %d times, want 1", got)
	}

	hs.setDown(true)
	m.CheckNow(ctx) // available -> unavailable
	hs.setDown(false)
	m.CheckNow(ctx) // unavailable -> available again

	mu.Lock()
	got = fired
	mu.Unlock()
	if got != 2 {
		t.Fatalf("hook fired %d times after second transition, want 2", got)
	}
}

func TestMonitorHookNotFiredWhileOffline(t *testing.T) {
	_, ts := newHealthServer()
	defer ts.Close()

	m := NewConnectivityMonitor(NewClient(WithBaseURL(ts.URL)), nil)

	var mu sync.Mutex
	var fired int
	m.OnAvailable(func(ctx context.Context) {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	m.mu.Lock()
	m.online = false
	m.mu.Unlock()

	m.CheckNow(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Fatal("hook must not fire while the device is offline")
	}
}

func TestMonitorNotifiesAfterEveryProbe(t *testing.T) {
	_, ts := newHealthServer()
	defer ts.Close()

	m := NewConnectivityMonitor(NewClient(WithBaseURL(ts.URL)), nil)

	var mu sync.Mutex
	var notifications []Status
	id := m.Subscribe(func(s Status) {
		mu.Lock()
		notifications = append(notifications, s)
		mu.Unlock()
	})

	ctx := context.Background()
	m.CheckNow(ctx)
	m.CheckNow(ctx)

	mu.Lock()
	count := len(notifications)
	mu.Unlock()
	if count != 2 {
		t.Fatalf("expected a notification per probe, got %d", count)
	}

	m.Unsubscribe(id)
	m.CheckNow(ctx)
	mu.Lock()
	defer mu.Unlock()
	if len(notifications) != 2 {
		t.Fatal("unsubscribed listener still notified")
	}
}

func TestMonitorListenerPanicIsContained(t *testing.T) {
	_, ts := newHealthServer()
	defer ts.Close()

	m := NewConnectivityMonitor(NewClient(WithBaseURL(ts.URL)), nil)
	m.Subscribe(func(Status) { panic("listener bug") })

	var mu sync.Mutex
	var reached bool
	m.Subscribe(func(Status) {
		mu.Lock()
		reached = true
		mu.Unlock()
	})

	m.CheckNow(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if !reached {
		t.Fatal("a panicking listener must not stop the others")
	}
}

func TestMonitorSetOnline(t *testing.T) {
	_, ts := newHealthServer()
	defer ts.Close()

	m := NewConnectivityMonitor(NewClient(WithBaseURL(ts.URL)), nil)
	m.CheckNow(context.Background())

	m.SetOnline(false)
	if m.Status().Available() {
		t.Fatal("offline device must never report available")
	}
}
