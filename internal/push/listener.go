package push

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"soko/internal/tracker"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second

	writeTimeout = 10 * time.Second
)

// Handler receives inbound push events. HandleStatus gets every normalized
// payment-status event; HandleStopHint gets the server's "no more updates
// needed" signal, which is advisory only.
type Handler interface {
	HandleStatus(reference string, rec tracker.StatusRecord)
	HandleStopHint(reference, reason string)
}

// Listener maintains the single long-lived websocket connection to the
// payment notification channel. The connection is lazy: it is dialed once
// the first reference subscribes and torn down when the last one leaves.
// On a drop it reconnects with capped exponential backoff and asks the
// registry (via OnUp) to replay every subscription, since server-side
// subscriptions do not survive a reconnect.
type Listener struct {
	url     string
	dialer  *websocket.Dialer
	logger  *zap.SugaredLogger
	handler Handler

	// OnUp runs after every successful (re)connect, before normal event
	// delivery resumes. The registry hooks Resubscribe here.
	OnUp func()

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[string]tracker.Observer
	running bool
	closed  bool
	quit    chan struct{}

	writeMu sync.Mutex
}

func NewListener(url string, logger *zap.SugaredLogger) *Listener {
	return &Listener{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
		subs:   make(map[string]tracker.Observer),
		quit:   make(chan struct{}),
	}
}

// SetHandler wires the event consumer. Must be called before the first
// Subscribe; the registry and the listener reference each other, so one side
// has to be attached after construction.
func (l *Listener) SetHandler(h Handler) {
	l.handler = h
}

// Subscribe registers a reference on the push channel. Redundant calls are
// safe. While the connection is down the frame is not sent; it is replayed
// through OnUp once the connection is up.
func (l *Listener) Subscribe(reference string, obs tracker.Observer) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return fmt.Errorf("push listener is closed")
	}
	l.subs[reference] = obs
	if !l.running {
		l.running = true
		go l.run()
	}
	conn := l.conn
	l.mu.Unlock()

	if conn == nil {
		return nil
	}
	return l.writeFrame(conn, frame{
		Event:     eventTrack,
		Reference: reference,
		UserID:    obs.UserID,
		SessionID: obs.SessionID,
	})
}

// Unsubscribe sends a best-effort stop frame and drops the reference from
// the replay set. When no references remain the connection is torn down.
func (l *Listener) Unsubscribe(reference string) error {
	l.mu.Lock()
	delete(l.subs, reference)
	conn := l.conn
	empty := len(l.subs) == 0
	l.mu.Unlock()

	var err error
	if conn != nil {
		err = l.writeFrame(conn, frame{Event: eventStopTracking, Reference: reference})
		if empty {
			// Last subscriber gone; the run loop sees the empty set and
			// exits after this close.
			_ = conn.Close()
		}
	}
	return err
}

// Close shuts the listener down for good.
func (l *Listener) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	conn := l.conn
	l.mu.Unlock()

	close(l.quit)
	if conn != nil {
		_ = conn.Close()
	}
}

func (l *Listener) run() {
	backoff := initialBackoff
	for {
		l.mu.Lock()
		if l.closed || len(l.subs) == 0 {
			l.running = false
			l.mu.Unlock()
			return
		}
		l.mu.Unlock()

		conn, _, err := l.dialer.Dial(l.url, nil)
		if err != nil {
			l.logger.Warnw("push channel connect failed", "url", l.url, "backoff", backoff, "error", err)
			select {
			case <-l.quit:
				l.mu.Lock()
				l.running = false
				l.mu.Unlock()
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = initialBackoff

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			_ = conn.Close()
			return
		}
		l.conn = conn
		l.mu.Unlock()

		l.logger.Infow("push channel connected", "url", l.url)
		if l.OnUp != nil {
			l.OnUp()
		}

		l.readLoop(conn)

		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()
		l.logger.Warnw("push channel disconnected", "url", l.url)
	}
}

func (l *Listener) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		l.dispatch(data)
	}
}

func (l *Listener) dispatch(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		l.logger.Warnw("undecodable push event", "error", err)
		return
	}
	if ev.Reference == "" {
		l.logger.Warnw("push event without reference", "event", ev.Event)
		return
	}

	switch ev.Event {
	case eventStatus, eventInitiated, eventSuccess, eventFailed, eventCancelled, eventCompleted:
		rec, ok := ev.StatusRecord()
		if !ok {
			l.logger.Warnw("push event with unknown status", "event", ev.Event, "reference", ev.Reference)
			return
		}
		l.handler.HandleStatus(ev.Reference, rec)
	case eventPollingStopped:
		l.handler.HandleStopHint(ev.Reference, ev.Reason)
	default:
		l.logger.Debugw("ignoring push event", "event", ev.Event, "reference", ev.Reference)
	}
}

func (l *Listener) writeFrame(conn *websocket.Conn, f frame) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(f)
}
