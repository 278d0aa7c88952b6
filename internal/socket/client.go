package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"table_order/internal/config"
	"table_order/internal/observable"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const closeWriteTimeout = time.Second

var (
	ErrMissingURL   = errors.New("socket url is required")
	ErrNotConnected = errors.New("socket is not connected")
	ErrNoSession    = errors.New("no active session")
	ErrClosed       = errors.New("socket client is closed")
)

// Client keeps one websocket to the session service and mirrors the
// session and table ids it announces. It redials on its own after an
// unexpected disconnect.
type Client struct {
	url               string
	deviceTableID     string
	dialer            *websocket.Dialer
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
	logger            *zap.Logger

	mu           sync.RWMutex
	conn         *websocket.Conn
	connected    bool
	connecting   bool
	closed       bool
	reconnecting bool
	sessionID    string
	tableID      string
	delay        time.Duration

	// wake restarts the reconnect loop's wait after the delay was reset.
	wake chan struct{}

	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connection      *observable.Stream[ConnectionEvent]
	errs            *observable.Stream[ErrorEvent]
	sessionStarted  *observable.Stream[SessionStartedEvent]
	sessionEnded    *observable.Stream[SessionEndedEvent]
	tableRegistered *observable.Stream[TableRegisteredEvent]
}

func NewClient(cfg config.Config, logger *zap.Logger) (*Client, error) {
	url := strings.TrimSpace(cfg.SocketURL)
	if url == "" {
		return nil, ErrMissingURL
	}
	logger = logger.Named("socket")

	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	maxReconnectDelay := cfg.MaxReconnectDelay
	if maxReconnectDelay < reconnectDelay {
		maxReconnectDelay = reconnectDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:           url,
		deviceTableID: strings.TrimSpace(cfg.TableID),
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.Timeout,
		},
		reconnectDelay:    reconnectDelay,
		maxReconnectDelay: maxReconnectDelay,
		logger:            logger,
		delay:             reconnectDelay,
		wake:              make(chan struct{}, 1),
		ctx:               ctx,
		cancel:            cancel,

		connection:      observable.NewStream[ConnectionEvent]("connection", logger),
		errs:            observable.NewStream[ErrorEvent]("error", logger),
		sessionStarted:  observable.NewStream[SessionStartedEvent]("session_started", logger),
		sessionEnded:    observable.NewStream[SessionEndedEvent]("session_ended", logger),
		tableRegistered: observable.NewStream[TableRegisteredEvent]("table_registered", logger),
	}, nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) IsConnecting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connecting
}

func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Client) TableID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tableID
}

func (c *Client) OnConnection(fn func(ConnectionEvent)) func() {
	return c.connection.Subscribe(fn)
}

func (c *Client) OnError(fn func(ErrorEvent)) func() {
	return c.errs.Subscribe(fn)
}

func (c *Client) OnSessionStarted(fn func(SessionStartedEvent)) func() {
	return c.sessionStarted.Subscribe(fn)
}

func (c *Client) OnSessionEnded(fn func(SessionEndedEvent)) func() {
	return c.sessionEnded.Subscribe(fn)
}

func (c *Client) OnTableRegistered(fn func(TableRegisteredEvent)) func() {
	return c.tableRegistered.Subscribe(fn)
}

// Start dials in the background and keeps retrying until connected or
// closed.
func (c *Client) Start() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		if err := c.Connect(c.ctx); err != nil {
			if errors.Is(err, ErrClosed) || c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("initial connect failed", zap.Error(err))
			c.errs.Publish(ErrorEvent{Message: err.Error()})
			c.scheduleReconnect()
		}
	}()
}

// Connect dials once. It is a no-op while a connection is up or a dial is
// already in progress.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.connected || c.connecting {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("dial socket: %w", err)
	}
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.connected = true
	c.delay = c.reconnectDelay
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Info("socket connected", zap.String("url", c.url))
	c.connection.Publish(ConnectionEvent{Connected: true})

	go c.readLoop(conn)

	if c.deviceTableID != "" {
		if err := c.send(ctx, eventRegisterTable, registerTableRequest{TableID: c.deviceTableID}); err != nil {
			c.logger.Warn("register table failed", zap.String("table_id", c.deviceTableID), zap.Error(err))
		}
	}
	return nil
}

// EndCurrentSession asks the server to close the active session. The
// session-ended event arrives asynchronously.
func (c *Client) EndCurrentSession(ctx context.Context) error {
	sessionID := c.SessionID()
	if sessionID == "" {
		return ErrNoSession
	}
	return c.send(ctx, eventEndSession, endSessionRequest{SessionID: sessionID})
}

// ManualReconnect drops the current connection and dials immediately with
// the backoff reset. A failed dial hands over to the single reconnect loop.
func (c *Client) ManualReconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	conn := c.conn
	wasConnected := c.connected
	c.conn = nil
	c.connected = false
	c.delay = c.reconnectDelay
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if wasConnected {
		c.connection.Publish(ConnectionEvent{Connected: false, Reason: "manual reconnect"})
	}

	if err := c.Connect(ctx); err != nil {
		if !errors.Is(err, ErrClosed) {
			c.scheduleReconnect()
		}
		return err
	}
	return nil
}

// Close stops reconnecting, closes the connection and waits for the
// background goroutines.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	wasConnected := c.connected
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWriteTimeout),
		)
		c.writeMu.Unlock()
		_ = conn.Close()
	}
	c.wg.Wait()

	if wasConnected {
		c.connection.Publish(ConnectionEvent{Connected: false, Reason: "closed"})
	}
	c.logger.Info("socket closed")
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) handleDisconnect(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		// Replaced by ManualReconnect or torn down by Close.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	closed := c.closed
	c.mu.Unlock()

	_ = conn.Close()
	c.logger.Warn("socket disconnected", zap.Error(cause))
	c.connection.Publish(ConnectionEvent{Connected: false, Reason: cause.Error()})

	if !closed {
		c.scheduleReconnect()
	}
}

// scheduleReconnect starts the reconnect loop. At most one loop runs; while
// it does, further calls only restart its wait with the current delay.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.reconnecting {
		c.mu.Unlock()
		select {
		case c.wake <- struct{}{}:
		default:
		}
		return
	}
	c.reconnecting = true
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		for {
			delay := c.nextDelay()
			timer := time.NewTimer(delay)
			select {
			case <-c.ctx.Done():
				timer.Stop()
				c.stopReconnecting()
				return
			case <-c.wake:
				timer.Stop()
				continue
			case <-timer.C:
			}

			err := c.Connect(c.ctx)
			if err != nil && !errors.Is(err, ErrClosed) {
				c.logger.Debug("reconnect failed", zap.Duration("delay", delay), zap.Error(err))
			}

			// Exit is decided under the lock so a disconnect racing this
			// check either sees the loop running or starts a new one.
			c.mu.Lock()
			if c.connected || c.closed {
				c.reconnecting = false
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
		}
	}()
}

func (c *Client) stopReconnecting() {
	c.mu.Lock()
	c.reconnecting = false
	c.mu.Unlock()
}

func (c *Client) nextDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	delay := c.delay
	c.delay *= 2
	if c.delay > c.maxReconnectDelay {
		c.delay = c.maxReconnectDelay
	}
	return delay
}

func (c *Client) send(ctx context.Context, event string, data any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	payload, err := json.Marshal(envelope{Event: event, Data: raw})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (c *Client) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("malformed socket message", zap.Error(err))
		return
	}

	switch env.Event {
	case eventSessionStarted:
		var ev SessionStartedEvent
		if !c.decode(env, &ev) {
			return
		}
		c.mu.Lock()
		c.sessionID = ev.SessionID
		if ev.TableID != "" {
			c.tableID = ev.TableID
		}
		c.mu.Unlock()
		c.logger.Info("session started", zap.String("session_id", ev.SessionID))
		c.sessionStarted.Publish(ev)
	case eventSessionEnded:
		var ev SessionEndedEvent
		if !c.decode(env, &ev) {
			return
		}
		c.mu.Lock()
		c.sessionID = ""
		c.mu.Unlock()
		c.logger.Info("session ended", zap.String("session_id", ev.SessionID))
		c.sessionEnded.Publish(ev)
	case eventTableRegistered:
		var ev TableRegisteredEvent
		if !c.decode(env, &ev) {
			return
		}
		if ev.TableID == "" {
			c.logger.Warn("table registered without table id")
			return
		}
		c.mu.Lock()
		c.tableID = ev.TableID
		c.mu.Unlock()
		c.logger.Info("table registered", zap.String("table_id", ev.TableID))
		c.tableRegistered.Publish(ev)
	case eventError:
		var ev ErrorEvent
		if !c.decode(env, &ev) {
			return
		}
		c.logger.Warn("server error", zap.String("message", ev.Message))
		c.errs.Publish(ev)
	default:
		c.logger.Debug("unhandled socket event", zap.String("event", env.Event))
	}
}

func (c *Client) decode(env envelope, v any) bool {
	if len(env.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		c.logger.Warn("malformed event payload", zap.String("event", env.Event), zap.Error(err))
		return false
	}
	return true
}
