package eventdesk

import (
	"context"
	"sync"
	"time"
)

// Status is the combined connectivity snapshot: device-level online
// state plus actively probed server reachability.
type Status struct {
	IsOnline          bool `json:"isOnline"`
	IsServerAvailable bool `json:"isServerAvailable"`
}

// Available reports whether the network path to the server is usable.
func (s Status) Available() bool {
	return s.IsOnline && s.IsServerAvailable
}

// StatusListener receives status-change notifications. Listeners must
// be idempotent: a notification follows every probe, whether or not the
// status changed.
type StatusListener func(Status)

// MonitorOptions configures the ConnectivityMonitor.
type MonitorOptions struct {
	// ProbeInterval is the period of the background health probe.
	// Defaults to 15 seconds.
	ProbeInterval time.Duration
	// ProbeTimeout bounds a single probe. Defaults to 5 seconds.
	ProbeTimeout time.Duration
}

// ConnectivityMonitor tracks connectivity and notifies subscribers on
// every probe. When server reachability flips from false to true while
// online, the monitor fires its on-available hook (queue replay) exactly
// once per transition, before notifying listeners.
type ConnectivityMonitor struct {
	client        *Client
	probeInterval time.Duration
	probeTimeout  time.Duration

	mu              sync.Mutex
	online          bool
	serverAvailable bool
	onAvailable     func(context.Context)
	listeners       map[int]StatusListener
	nextListenerID  int
	stopCh          chan struct{}
	stopped         bool
	started         bool
}

// NewConnectivityMonitor creates a monitor probing through the given
// client. The device is assumed online until SetOnline says otherwise;
// the server is assumed unavailable until a probe succeeds.
func NewConnectivityMonitor(client *Client, opts *MonitorOptions) *ConnectivityMonitor {
	m := &ConnectivityMonitor{
		client:        client,
		probeInterval: 15 * time.Second,
		probeTimeout:  5 * time.Second,
		online:        true,
		listeners:     make(map[int]StatusListener),
		stopCh:        make(chan struct{}),
	}
	if opts != nil {
		if opts.ProbeInterval > 0 {
			m.probeInterval = opts.ProbeInterval
		}
		if opts.ProbeTimeout > 0 {
			m.probeTimeout = opts.ProbeTimeout
		}
	}
	return m
}

// OnAvailable sets the hook fired on each unavailable-to-available
// transition. The SyncCoordinator wires this to queue replay.
func (m *ConnectivityMonitor) OnAvailable(fn func(context.Context)) {
	m.mu.Lock()
	m.onAvailable = fn
	m.mu.Unlock()
}

// Status returns the current snapshot. Never blocks on the network.
func (m *ConnectivityMonitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{IsOnline: m.online, IsServerAvailable: m.serverAvailable}
}

// Subscribe registers a listener and returns its subscription id.
// No ordering is guaranteed among listeners.
func (m *ConnectivityMonitor) Subscribe(fn StatusListener) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextListenerID++
	m.listeners[m.nextListenerID] = fn
	return m.nextListenerID
}

// Unsubscribe removes a listener by subscription id.
func (m *ConnectivityMonitor) Unsubscribe(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
}

// SetOnline records a device-level connectivity transition. Going
// online triggers an immediate probe; going offline notifies listeners
// right away.
func (m *ConnectivityMonitor) SetOnline(online bool) {
	m.mu.Lock()
	m.online = online
	m.mu.Unlock()

	if online {
		go m.CheckNow(context.Background())
	} else {
		m.notify()
	}
}

// CheckNow probes the server's health endpoint once and updates the
// snapshot. A probe error is treated identically to a non-2xx response:
// server unavailable, nothing thrown to listeners.
func (m *ConnectivityMonitor) CheckNow(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	_, err := m.client.Health(probeCtx)
	cancel()
	available := err == nil

	m.mu.Lock()
	previous := m.serverAvailable
	m.serverAvailable = available
	becameAvailable := m.online && available && !previous
	hook := m.onAvailable
	m.mu.Unlock()

	// Replay before notifying, so listeners observe the post-replay
	// state.
	if becameAvailable && hook != nil {
		hook(ctx)
	}
	m.notify()
}

// Start launches the periodic probe loop, beginning with an immediate
// probe. Calling Start more than once is a no-op.
func (m *ConnectivityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		m.CheckNow(ctx)
		ticker := time.NewTicker(m.probeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckNow(ctx)
			}
		}
	}()
}

// Stop ends the probe loop. In-flight probes finish harmlessly.
func (m *ConnectivityMonitor) Stop() {
	m.mu.Lock()
	if !m.stopped {
		m.stopped = true
		close(m.stopCh)
	}
	m.mu.Unlock()
}

func (m *ConnectivityMonitor) notify() {
	m.mu.Lock()
	status := Status{IsOnline: m.online, IsServerAvailable: m.serverAvailable}
	listeners := make([]StatusListener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		func() {
			defer func() { recover() }() // swallow panics in user callbacks
			fn(status)
		}()
	}
}
