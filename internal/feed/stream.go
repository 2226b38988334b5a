package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/hack3rvirus/parcel-tracker/pkg/streaming"
)

// State is the lifecycle state of the live stream.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed"
)

const (
	defaultBaseBackoff = 3 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	writeWait          = 10 * time.Second
)

// StreamOptions configures reconnect behavior. MaxAttempts caps how
// many reconnect dials are made after a drop; zero retries forever at
// the capped backoff.
type StreamOptions struct {
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	MaxAttempts int
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = defaultBaseBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultMaxBackoff
	}
	return o
}

// MessageHandler receives every decoded message from the stream.
type MessageHandler func(streaming.Envelope)

// StateHandler is notified on every state transition.
type StateHandler func(State)

// Stream maintains a websocket subscription to the live dashboard feed
// and reconnects with exponential backoff, by default indefinitely,
// when the connection drops. Once Close is called the stream is
// terminal and never reconnects.
type Stream struct {
	wsURL     string
	opts      StreamOptions
	onMessage MessageHandler
	onState   StateHandler
	logger    *slog.Logger

	mu     sync.Mutex
	conn   *ws.Conn
	state  State
	done   chan struct{} // closed on shutdown
	closed bool
}

// NewStream creates a stream for the given websocket URL. Handlers may
// be nil. Zero option fields fall back to defaults.
func NewStream(wsURL string, opts StreamOptions, onMessage MessageHandler, onState StateHandler, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		wsURL:     wsURL,
		opts:      opts.withDefaults(),
		onMessage: onMessage,
		onState:   onState,
		logger:    logger,
		state:     StateDisconnected,
		done:      make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) setState(state State) {
	s.mu.Lock()
	if s.state == StateClosed || s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	handler := s.onState
	s.mu.Unlock()

	if handler != nil {
		handler(state)
	}
}

// Connect performs the initial dial and starts the read loop.
func (s *Stream) Connect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("stream is closed")
	}
	s.mu.Unlock()

	s.setState(StateConnecting)

	conn, err := s.dialOnce()
	if err != nil {
		s.setState(StateDisconnected)
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.setState(StateConnected)
	go s.readLoop()

	return nil
}

func (s *Stream) dialOnce() (*ws.Conn, error) {
	conn, _, err := ws.DefaultDialer.Dial(s.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// readLoop reads feed messages and forwards them to the message
// handler. It returns on error or shutdown; errors trigger a reconnect.
func (s *Stream) readLoop() {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Warn("WebSocket read error", "error", err)
			s.setState(StateDisconnected)
			go s.reconnect()
			return
		}

		var envelope streaming.Envelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			s.logger.Debug("Undecodable stream message", "raw", string(message))
			continue
		}

		if s.onMessage != nil {
			s.onMessage(envelope)
		}
	}
}

// reconnect attempts to re-establish the websocket connection with
// exponential backoff, resetting to base on success.
func (s *Stream) reconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	backoff := s.opts.BaseBackoff
	for attempt := 1; s.opts.MaxAttempts == 0 || attempt <= s.opts.MaxAttempts; attempt++ {
		select {
		case <-s.done:
			return
		default:
		}

		s.logger.Info("Reconnecting to live feed", "attempt", attempt, "backoff", backoff)

		select {
		case <-time.After(backoff):
		case <-s.done:
			return
		}

		s.setState(StateConnecting)

		conn, err := s.dialOnce()
		if err != nil {
			s.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			s.setState(StateDisconnected)
			backoff *= 2
			if backoff > s.opts.MaxBackoff {
				backoff = s.opts.MaxBackoff
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		s.logger.Info("Live feed reconnected", "attempt", attempt)
		s.setState(StateConnected)
		go s.readLoop()
		return
	}

	s.logger.Error("Live feed reconnect gave up at the configured cap", "maxAttempts", s.opts.MaxAttempts)
	s.setState(StateDisconnected)
}

// Close sends a close frame and shuts down the stream for good.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	conn := s.conn
	s.conn = nil
	s.state = StateClosed
	handler := s.onState
	s.mu.Unlock()

	if handler != nil {
		handler(StateClosed)
	}

	if conn != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
