// Package connection owns the websocket session with the voice backend:
// dialing, the hello handshake, serialized writes, the read loop, and the
// periodic reconciliation of observed versus actual socket state.
package connection

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/huisuda/voicelink/internal/protocol"
)

// Connection errors.
var (
	ErrNotConnected = errors.New("connection: not established")
	ErrClosed       = errors.New("connection: manager closed")
)

const (
	probeWriteTimeout = 2 * time.Second
	// minStaleWindow bounds the silence tolerance from below so scheduling
	// hiccups on short reconcile intervals are not mistaken for a drop.
	minStaleWindow = 500 * time.Millisecond
)

// Config holds the endpoint, the device identity announced on connect, and
// the lifecycle timing policy.
type Config struct {
	ServerURL  string
	DeviceID   string
	DeviceName string
	DeviceMAC  string
	Token      string

	ReconnectDelay    time.Duration
	ReconcileInterval time.Duration
}

// Callbacks are the inbound half of the transport. All callbacks are
// optional and are invoked from the manager's internal goroutines.
type Callbacks struct {
	OnMessage      func(data []byte)
	OnAudio        func(frame []byte)
	OnConnected    func()
	OnDisconnected func(err error)
	OnStateDrift   func(observed bool, actual bool)
}

// Manager maintains at most one websocket session. The session counts as
// established only after the hello handshake has been written; sends before
// that point fail with ErrNotConnected.
type Manager struct {
	cfg       Config
	logger    *zap.Logger
	callbacks Callbacks

	mu           sync.Mutex
	conn         *websocket.Conn
	established  bool
	closed       bool
	reconcileCh  chan struct{}
	lastActivity time.Time

	writeMu sync.Mutex
}

// NewManager creates a disconnected manager.
func NewManager(cfg Config, callbacks Callbacks, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		callbacks: callbacks,
	}
}

// Connect dials the backend, announces the device identity, and starts the
// read loop. Connecting while a session is live tears the old one down first.
func (m *Manager) Connect(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}

	endpoint, err := dialEndpoint(m.cfg)
	if err != nil {
		return err
	}

	m.logger.Info("connecting to voice backend",
		zap.String("server_url", m.cfg.ServerURL),
		zap.String("device_id", m.cfg.DeviceID),
	)

	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial voice backend: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		m.markActivity()
		return nil
	})

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	if m.conn != nil {
		_ = m.conn.Close()
	}
	m.conn = conn
	m.established = false
	m.lastActivity = time.Now()
	stopReconcile := m.reconcileCh
	m.reconcileCh = make(chan struct{})
	reconcileStop := m.reconcileCh
	m.mu.Unlock()
	if stopReconcile != nil {
		close(stopReconcile)
	}

	hello := protocol.Hello(m.cfg.DeviceID, m.cfg.DeviceName, m.cfg.DeviceMAC, m.cfg.Token)
	if err := m.writeMessage(conn, hello); err != nil {
		m.dropConn(conn)
		return fmt.Errorf("send hello: %w", err)
	}

	m.mu.Lock()
	m.established = true
	m.mu.Unlock()

	m.logger.Info("voice backend session established", zap.String("device_id", m.cfg.DeviceID))
	if m.callbacks.OnConnected != nil {
		m.callbacks.OnConnected()
	}

	go m.readLoop(conn)
	if m.cfg.ReconcileInterval > 0 {
		go m.reconcileLoop(reconcileStop)
	}
	return nil
}

// Disconnect closes the current session. It is idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.established = false
	stopReconcile := m.reconcileCh
	m.reconcileCh = nil
	m.mu.Unlock()

	if stopReconcile != nil {
		close(stopReconcile)
	}
	if conn != nil {
		_ = conn.Close()
		m.logger.Info("voice backend session closed")
	}
}

// Reconnect tears the session down, waits the configured delay, and dials
// again.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.Disconnect()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.cfg.ReconnectDelay):
	}
	return m.Connect(ctx)
}

// Close disconnects and rejects any further Connect.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Disconnect()
}

// Established reports whether the hello handshake has completed on the
// current session.
func (m *Manager) Established() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.established
}

// SendMessage writes a control message as a text frame.
func (m *Manager) SendMessage(ctx context.Context, msg protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := m.liveConn()
	if err != nil {
		return err
	}
	return m.writeMessage(conn, msg)
}

// SendBinary writes a raw binary frame. The payload carries no envelope; the
// backend associates it with the surrounding listen signals by socket order.
func (m *Manager) SendBinary(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := m.liveConn()
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (m *Manager) liveConn() (*websocket.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil || !m.established {
		return nil, ErrNotConnected
	}
	return m.conn, nil
}

func (m *Manager) writeMessage(conn *websocket.Conn, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if m.dropConn(conn) {
				m.logger.Warn("voice backend session lost", zap.Error(err))
				if m.callbacks.OnDisconnected != nil {
					m.callbacks.OnDisconnected(err)
				}
			}
			return
		}
		m.markActivity()

		switch msgType {
		case websocket.TextMessage:
			if m.callbacks.OnMessage != nil {
				m.callbacks.OnMessage(data)
			}
		case websocket.BinaryMessage:
			if !protocol.IsAudioPayload(data) {
				m.logger.Warn("discarding unrecognized binary frame", zap.Int("bytes", len(data)))
				continue
			}
			if m.callbacks.OnAudio != nil {
				m.callbacks.OnAudio(data)
			}
		}
	}
}

// dropConn clears the session if conn is still current. It reports whether
// this call performed the teardown, so disconnect notifications fire once.
func (m *Manager) dropConn(conn *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != conn {
		return false
	}
	_ = m.conn.Close()
	m.conn = nil
	m.established = false
	return true
}

// reconcileLoop periodically checks the advertised session state against the
// transport itself. Close and error events are not delivered for every kind
// of transport loss; without the probe a silently dropped socket would keep
// reporting an established session until the next write failed.
func (m *Manager) reconcileLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		m.reconcile()
	}
}

// reconcile probes the transport with a ping. The session counts as gone
// when the ping cannot be written or when nothing, pong replies included,
// has arrived for several probe intervals.
func (m *Manager) reconcile() {
	m.mu.Lock()
	conn := m.conn
	observed := m.established
	last := m.lastActivity
	m.mu.Unlock()
	if conn == nil || !observed {
		return
	}

	idle := time.Since(last)
	err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(probeWriteTimeout))
	if err == nil && idle <= m.staleAfter() {
		return
	}
	if !m.dropConn(conn) {
		return
	}

	m.logger.Warn("session state drift reconciled",
		zap.Bool("observed", observed),
		zap.Bool("actual", false),
		zap.Duration("idle", idle),
		zap.Error(err),
	)
	if m.callbacks.OnStateDrift != nil {
		m.callbacks.OnStateDrift(observed, false)
	}
}

// staleAfter is the silence window tolerated before the transport counts as
// dropped. Each probe interval solicits a pong, so a live connection is
// never quiet for more than one interval.
func (m *Manager) staleAfter() time.Duration {
	stale := 3 * m.cfg.ReconcileInterval
	if stale < minStaleWindow {
		return minStaleWindow
	}
	return stale
}

func (m *Manager) markActivity() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// dialEndpoint validates the configured URL and appends the device identity
// query parameters the backend keys sessions on.
func dialEndpoint(cfg Config) (string, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	query := u.Query()
	query.Set("device_id", cfg.DeviceID)
	query.Set("device_mac", cfg.DeviceMAC)
	u.RawQuery = query.Encode()
	return u.String(), nil
}
