// Package transport carries signed gossip envelopes between peers over a
// websocket mesh. Every node listens for inbound peers and dials every peer
// discovery reports: outbound connections carry this node's publishes,
// inbound connections only receive.
package transport

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/brendisurfs/gossipchain/foundation/blockchain/peer"
	"github.com/brendisurfs/gossipchain/foundation/validate"
	"github.com/cenkalti/backoff/v4"
	"github.com/dimfeld/httptreemux/v5"
	"github.com/gorilla/websocket"
)

// Source names this package in the peer set's source bookkeeping.
const Source = "conn"

// Event kinds surfaced on the Events channel.
const (
	EventListening  = "listening"
	EventDialing    = "dialing"
	EventDialFailed = "dial-failed"
	EventConnected  = "connected"
	EventConnClosed = "conn-closed"
	EventPeerLive   = "peer-live"
	EventPeerGone   = "peer-gone"
	EventRejected   = "rejected"
	EventSendDrop   = "send-drop"
)

const (
	sendBuffer    = 64
	eventBuffer   = 128
	inboxBuffer   = 256
	pingPeriod    = 30 * time.Second
	maxFrameBytes = 10 << 20
)

// upgrader promotes inbound gossip requests to websockets.
var upgrader websocket.Upgrader

// Message is a verified inbound gossip payload.
type Message struct {
	Topic   string
	From    string
	TraceID string
	Payload []byte
}

// Event is a raw transport occurrence surfaced for logging and peer
// bookkeeping.
type Event struct {
	Kind string
	Peer string
	Err  error
}

// Config holds what the transport needs to run.
type Config struct {
	ListenAddr   string
	SelfID       string
	PrivateKey   *ecdsa.PrivateKey
	EvHandler    func(v string, args ...any)
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	DialRetryMax uint64
}

// conn is one established outbound websocket with its send queue.
type conn struct {
	peerID string
	ws     *websocket.Conn
	out    chan []byte
	done   chan struct{}
	once   sync.Once
}

// send enqueues a frame without blocking. It reports false when the queue
// is full or the conn is closed; delivery is best effort.
func (c *conn) send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	case c.out <- frame:
		return true
	default:
		return false
	}
}

// Transport owns the websocket mesh for one node.
type Transport struct {
	cfg      Config
	ev       func(v string, args ...any)
	inbox    chan Message
	events   chan Event
	server   *http.Server
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu       sync.Mutex
	outbound map[string]*conn
	dialing  map[string]struct{}
	inbound  map[*websocket.Conn]struct{}
}

// New constructs a Transport ready to Listen.
func New(cfg Config) (*Transport, error) {
	if cfg.SelfID == "" || cfg.PrivateKey == nil {
		return nil, errors.New("transport requires a node identity")
	}
	if cfg.ListenAddr == "" {
		return nil, errors.New("transport requires a listen address")
	}

	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 90 * time.Second
	}
	if cfg.DialRetryMax == 0 {
		cfg.DialRetryMax = 8
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	t := Transport{
		cfg:      cfg,
		ev:       ev,
		inbox:    make(chan Message, inboxBuffer),
		events:   make(chan Event, eventBuffer),
		ctx:      ctx,
		cancel:   cancel,
		outbound: make(map[string]*conn),
		dialing:  make(map[string]struct{}),
		inbound:  make(map[*websocket.Conn]struct{}),
	}

	return &t, nil
}

// Listen binds the gossip endpoint and starts accepting inbound peers.
func (t *Transport) Listen() error {
	ln, err := net.Listen("tcp", t.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("bind gossip listener: %w", err)
	}
	t.listener = ln

	mux := httptreemux.NewContextMux()
	mux.GET("/gossip", t.acceptInbound)

	t.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.ev("transport: listener stopped: %s", err)
		}
	}()

	t.emit(Event{Kind: EventListening, Peer: t.cfg.SelfID})
	t.ev("transport: listening: addr[%s]", ln.Addr())

	return nil
}

// Port returns the bound gossip port for discovery announcements.
func (t *Transport) Port() int {
	if t.listener == nil {
		return 0
	}

	return t.listener.Addr().(*net.TCPAddr).Port
}

// Inbox delivers the verified inbound gossip payloads.
func (t *Transport) Inbox() <-chan Message {
	return t.inbox
}

// Events delivers raw transport occurrences. Slow consumers lose events.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// Dial asynchronously establishes the outbound conn for the peer, retrying
// with exponential backoff. Already connected or in-flight peers are
// ignored.
func (t *Transport) Dial(p peer.Peer) {
	if p.ID == t.cfg.SelfID || p.Host == "" {
		return
	}

	t.mu.Lock()
	_, connected := t.outbound[p.ID]
	_, inflight := t.dialing[p.ID]
	if connected || inflight {
		t.mu.Unlock()
		return
	}
	t.dialing[p.ID] = struct{}{}
	t.mu.Unlock()

	t.emit(Event{Kind: EventDialing, Peer: p.ID})

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.dialing, p.ID)
			t.mu.Unlock()
		}()

		u := url.URL{Scheme: "ws", Host: p.Host, Path: "/gossip"}

		var ws *websocket.Conn
		op := func() error {
			dialer := websocket.Dialer{HandshakeTimeout: t.cfg.WriteTimeout}
			c, _, err := dialer.DialContext(t.ctx, u.String(), nil)
			if err != nil {
				return err
			}
			ws = c
			return nil
		}

		bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), t.cfg.DialRetryMax), t.ctx)
		if err := backoff.Retry(op, bo); err != nil {
			t.emit(Event{Kind: EventDialFailed, Peer: p.ID, Err: err})
			return
		}

		c := &conn{
			peerID: p.ID,
			ws:     ws,
			out:    make(chan []byte, sendBuffer),
			done:   make(chan struct{}),
		}

		t.mu.Lock()
		if _, exists := t.outbound[p.ID]; exists {
			t.mu.Unlock()
			ws.Close()
			return
		}
		t.outbound[p.ID] = c
		t.mu.Unlock()

		t.emit(Event{Kind: EventConnected, Peer: p.ID})

		t.wg.Add(2)
		go t.writeOutbound(c)
		go t.discardReads(c)
	}()
}

// Drop closes the outbound conn for the peer, if one exists.
func (t *Transport) Drop(peerID string) {
	t.mu.Lock()
	c, exists := t.outbound[peerID]
	t.mu.Unlock()

	if exists {
		t.dropConn(c, nil)
	}
}

// Publish signs the payload for the topic and enqueues it to every
// connected peer. Delivery is best effort with no ordering or receipt
// guarantee: a full queue drops the frame for that peer.
func (t *Transport) Publish(topic string, payload any) error {
	env, err := NewEnvelope(topic, t.cfg.SelfID, payload, t.cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("build envelope: %w", err)
	}

	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	t.mu.Lock()
	conns := make([]*conn, 0, len(t.outbound))
	for _, c := range t.outbound {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	for _, c := range conns {
		if !c.send(frame) {
			t.emit(Event{Kind: EventSendDrop, Peer: c.peerID})
		}
	}

	return nil
}

// Shutdown closes every conn and stops the listener, waiting for the
// transport goroutines to drain within the context deadline.
func (t *Transport) Shutdown(ctx context.Context) error {
	t.ev("transport: shutdown: started")
	defer t.ev("transport: shutdown: completed")

	t.cancel()

	t.mu.Lock()
	outbound := make([]*conn, 0, len(t.outbound))
	for _, c := range t.outbound {
		outbound = append(outbound, c)
	}
	inbound := make([]*websocket.Conn, 0, len(t.inbound))
	for ws := range t.inbound {
		inbound = append(inbound, ws)
	}
	t.mu.Unlock()

	for _, c := range outbound {
		t.dropConn(c, nil)
	}
	for _, ws := range inbound {
		ws.Close()
	}

	var err error
	if t.server != nil {
		err = t.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return err
}

// =============================================================================

// acceptInbound upgrades an inbound peer request and starts its reader.
func (t *Transport) acceptInbound(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.emit(Event{Kind: EventRejected, Err: err})
		return
	}

	t.mu.Lock()
	t.inbound[ws] = struct{}{}
	t.mu.Unlock()

	t.wg.Add(1)
	go t.readInbound(ws)
}

// readInbound drains one inbound conn, verifying each envelope before it
// reaches the node's inbox.
func (t *Transport) readInbound(ws *websocket.Conn) {
	defer t.wg.Done()

	var peerID string
	defer func() {
		t.mu.Lock()
		delete(t.inbound, ws)
		t.mu.Unlock()
		ws.Close()

		if peerID != "" {
			t.emit(Event{Kind: EventPeerGone, Peer: peerID})
		}
	}()

	ws.SetReadLimit(maxFrameBytes)
	ws.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
	ws.SetPingHandler(func(appData string) error {
		ws.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(t.cfg.WriteTimeout))
	})

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			return
		}
		ws.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.emit(Event{Kind: EventRejected, Err: err})
			continue
		}
		if err := validate.Check(env); err != nil {
			t.emit(Event{Kind: EventRejected, Err: err})
			continue
		}

		from, err := env.VerifySender()
		if err != nil {
			t.emit(Event{Kind: EventRejected, Err: err})
			continue
		}
		if from == t.cfg.SelfID {
			continue
		}

		if peerID == "" {
			peerID = from
			t.emit(Event{Kind: EventPeerLive, Peer: peerID})
		}

		msg := Message{
			Topic:   env.Topic,
			From:    from,
			TraceID: env.TraceID,
			Payload: env.Payload,
		}

		select {
		case t.inbox <- msg:
		case <-t.ctx.Done():
			return
		}
	}
}

// writeOutbound drains the conn's send queue and keeps the conn alive with
// pings between frames.
func (t *Transport) writeOutbound(c *conn) {
	defer t.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case frame := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				t.dropConn(c, err)
				return
			}

		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.cfg.WriteTimeout)); err != nil {
				t.dropConn(c, err)
				return
			}
		}
	}
}

// discardReads drains an outbound conn. Outbound conns are write only;
// reads run to process control frames and notice the remote closing.
func (t *Transport) discardReads(c *conn) {
	defer t.wg.Done()

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			t.dropConn(c, err)
			return
		}
	}
}

// dropConn removes the conn from the registry and closes it exactly once.
func (t *Transport) dropConn(c *conn, err error) {
	t.mu.Lock()
	if cur, exists := t.outbound[c.peerID]; exists && cur == c {
		delete(t.outbound, c.peerID)
	}
	t.mu.Unlock()

	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
		t.emit(Event{Kind: EventConnClosed, Peer: c.peerID, Err: err})
	})
}

// emit surfaces an event without blocking. Nobody listening loses events.
func (t *Transport) emit(event Event) {
	select {
	case t.events <- event:
	default:
	}
}
