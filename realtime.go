package eventdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// ============================================================================
// Broadcast Wire Format
// ============================================================================

// BroadcastNewEntity is the envelope type carrying a freshly created event.
const BroadcastNewEntity = "NEW_ENTITY"

// BroadcastEnvelope is the wire format of the server's push channel.
type BroadcastEnvelope struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

// ============================================================================
// Configuration
// ============================================================================

// BroadcastConfig configures the broadcast client.
type BroadcastConfig struct {
	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
}

func (c *BroadcastConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
}

// BroadcastState represents the connection state.
type BroadcastState string

const (
	StateDisconnected BroadcastState = "disconnected"
	StateConnecting   BroadcastState = "connecting"
	StateConnected    BroadcastState = "connected"
	StateReconnecting BroadcastState = "reconnecting"
)

// ============================================================================
// Reconnector
// ============================================================================

type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func newReconnector(config *BroadcastConfig) *reconnector {
	return &reconnector{
		baseDelay:   config.ReconnectBaseDelay,
		maxDelay:    config.ReconnectMaxDelay,
		maxAttempts: config.MaxReconnectAttempts,
	}
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}

// ============================================================================
// BroadcastClient
// ============================================================================

// BroadcastClient subscribes to the server's push channel, a one-way
// WebSocket over which the server announces newly created events. The
// client never sends application data; the server never expects any.
type BroadcastClient struct {
	wsURL  string
	config *BroadcastConfig

	mu               sync.Mutex
	conn             *websocket.Conn
	state            BroadcastState
	intentionalClose bool
	cancelFn         context.CancelFunc

	handlerMu      sync.RWMutex
	onNewEntity    []func(Event)
	onConnected    []func()
	onDisconnected []func(reason string)
	onReconnecting []func(attempt int, delay time.Duration)

	recon *reconnector
}

// NewBroadcastClient creates a broadcast client for the server at
// baseURL. The http/https scheme is rewritten to ws/wss.
func NewBroadcastClient(baseURL string, config *BroadcastConfig) *BroadcastClient {
	if config == nil {
		config = &BroadcastConfig{AutoReconnect: true}
	}
	config.defaults()

	wsURL := strings.Replace(baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += entitiesPath + "/ws"

	return &BroadcastClient{
		wsURL:  wsURL,
		config: config,
		state:  StateDisconnected,
		recon:  newReconnector(config),
	}
}

// OnNewEntity registers a handler for pushed events.
func (bc *BroadcastClient) OnNewEntity(h func(Event)) {
	bc.handlerMu.Lock()
	bc.onNewEntity = append(bc.onNewEntity, h)
	bc.handlerMu.Unlock()
}

// OnConnected registers a handler for the connected meta-event.
func (bc *BroadcastClient) OnConnected(h func()) {
	bc.handlerMu.Lock()
	bc.onConnected = append(bc.onConnected, h)
	bc.handlerMu.Unlock()
}

// OnDisconnected registers a handler for the disconnected meta-event.
func (bc *BroadcastClient) OnDisconnected(h func(reason string)) {
	bc.handlerMu.Lock()
	bc.onDisconnected = append(bc.onDisconnected, h)
	bc.handlerMu.Unlock()
}

// OnReconnecting registers a handler for the reconnecting meta-event.
func (bc *BroadcastClient) OnReconnecting(h func(attempt int, delay time.Duration)) {
	bc.handlerMu.Lock()
	bc.onReconnecting = append(bc.onReconnecting, h)
	bc.handlerMu.Unlock()
}

// State returns the current connection state.
func (bc *BroadcastClient) State() BroadcastState {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.state
}

// Connect establishes the WebSocket connection and starts the read loop.
func (bc *BroadcastClient) Connect(ctx context.Context) error {
	bc.mu.Lock()
	if bc.state == StateConnected || bc.state == StateConnecting {
		bc.mu.Unlock()
		return nil
	}
	bc.state = StateConnecting
	bc.intentionalClose = false
	bc.mu.Unlock()

	conn, _, err := websocket.Dial(ctx, bc.wsURL, nil)
	if err != nil {
		bc.mu.Lock()
		bc.state = StateDisconnected
		bc.mu.Unlock()
		return fmt.Errorf("websocket dial: %w", err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	bc.mu.Lock()
	bc.conn = conn
	bc.state = StateConnected
	bc.cancelFn = cancel
	bc.mu.Unlock()
	bc.recon.markConnected()

	bc.emitConnected()
	go bc.readLoop(connCtx, conn)

	return nil
}

// Disconnect gracefully closes the connection.
func (bc *BroadcastClient) Disconnect() error {
	bc.mu.Lock()
	bc.intentionalClose = true
	if bc.cancelFn != nil {
		bc.cancelFn()
		bc.cancelFn = nil
	}
	conn := bc.conn
	bc.conn = nil
	bc.state = StateDisconnected
	bc.mu.Unlock()

	bc.emitDisconnected("client disconnect")

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	return nil
}

func (bc *BroadcastClient) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			bc.mu.Lock()
			intentional := bc.intentionalClose
			bc.state = StateDisconnected
			bc.conn = nil
			bc.mu.Unlock()
			if intentional {
				return
			}

			bc.emitDisconnected(err.Error())

			if bc.config.AutoReconnect && bc.recon.shouldReconnect() {
				bc.scheduleReconnect()
			}
			return
		}

		var env BroadcastEnvelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		if env.Type != BroadcastNewEntity {
			continue
		}

		bc.handlerMu.RLock()
		handlers := append([]func(Event){}, bc.onNewEntity...)
		bc.handlerMu.RUnlock()
		for _, h := range handlers {
			go h(env.Data)
		}
	}
}

func (bc *BroadcastClient) scheduleReconnect() {
	delay := bc.recon.nextDelay()
	bc.mu.Lock()
	bc.state = StateReconnecting
	bc.mu.Unlock()

	bc.emitReconnecting(bc.recon.attempt, delay)

	time.Sleep(delay)

	bc.mu.Lock()
	if bc.intentionalClose {
		bc.mu.Unlock()
		return
	}
	bc.state = StateDisconnected
	bc.mu.Unlock()

	if err := bc.Connect(context.Background()); err != nil {
		if bc.config.AutoReconnect && bc.recon.shouldReconnect() {
			bc.scheduleReconnect()
		}
	}
}

func (bc *BroadcastClient) emitConnected() {
	bc.handlerMu.RLock()
	handlers := append([]func(){}, bc.onConnected...)
	bc.handlerMu.RUnlock()
	for _, h := range handlers {
		go h()
	}
}

func (bc *BroadcastClient) emitDisconnected(reason string) {
	bc.handlerMu.RLock()
	handlers := append([]func(string){}, bc.onDisconnected...)
	bc.handlerMu.RUnlock()
	for _, h := range handlers {
		go h(reason)
	}
}

func (bc *BroadcastClient) emitReconnecting(attempt int, delay time.Duration) {
	bc.handlerMu.RLock()
	handlers := append([]func(int, time.Duration){}, bc.onReconnecting...)
	bc.handlerMu.RUnlock()
	for _, h := range handlers {
		go h(attempt, delay)
	}
}
