package state

import (
	"context"
	"errors"
	"time"

	"github.com/brendisurfs/gossipchain/foundation/blockchain/gossip"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/peer"
	"github.com/brendisurfs/gossipchain/foundation/discovery"
	"github.com/brendisurfs/gossipchain/foundation/transport"
)

// ErrInputClosed is returned by Run when the command stream ends. The node
// cannot continue without its control surface.
var ErrInputClosed = errors.New("command input stream closed")

// eventKind discriminates the sources the event loop multiplexes.
type eventKind int

const (
	eventCommand eventKind = iota + 1
	eventResponse
	eventInit
	eventMessage
	eventTransport
	eventDiscovery
)

// event is one occurrence from any source, tagged with its kind. Only the
// field matching the kind is set.
type event struct {
	kind      eventKind
	line      string
	response  gossip.ChainResponse
	message   transport.Message
	netEvent  transport.Event
	discEvent discovery.Event
}

// =============================================================================

// Run executes the event loop until ctx is cancelled or the command stream
// closes. One event is handled at a time: all ledger and peer set decisions
// are serialized through this goroutine.
func (s *State) Run(ctx context.Context) error {
	s.evHandler("state: run: event loop started")
	defer s.evHandler("state: run: event loop stopped")

	var initC <-chan time.Time = time.After(s.initDelay)

	for {
		var ev event

		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-s.commands:
			if !ok {
				return ErrInputClosed
			}
			ev = event{kind: eventCommand, line: line}

		case resp := <-s.responses:
			ev = event{kind: eventResponse, response: resp}

		case <-initC:
			initC = nil
			ev = event{kind: eventInit}

		case msg := <-s.trans.Inbox():
			ev = event{kind: eventMessage, message: msg}

		case tev := <-s.trans.Events():
			ev = event{kind: eventTransport, netEvent: tev}

		case dev := <-s.disco.Events():
			ev = event{kind: eventDiscovery, discEvent: dev}
		}

		if err := s.dispatch[ev.kind](ev); err != nil {
			return err
		}
	}
}

// =============================================================================
// Dispatch handlers. Each handles exactly one event kind. A returned error
// stops the loop; everything recoverable is reported through the event
// handler instead.

// handleResponse broadcasts a chain snapshot queued by the gossip node.
func (s *State) handleResponse(ev event) error {
	if err := s.gossip.PublishChain(ev.response); err != nil {
		s.evHandler("state: response: publish chain failed: %s", err)
	}
	return nil
}

// handleInit seeds the genesis block and asks the most recently discovered
// peer for its chain, when one is known.
func (s *State) handleInit(ev event) error {
	s.evHandler("state: init: seeding genesis block")

	if err := s.ledger.Seed(); err != nil {
		s.evHandler("state: init: seed failed: %s", err)
		return nil
	}

	s.evHandler("state: init: connected nodes: %d", s.peers.Count())

	latest, ok := s.peers.Latest()
	if !ok {
		return nil
	}

	if err := s.gossip.RequestChain(latest.ID); err != nil {
		s.evHandler("state: init: chain request failed: %s", err)
	}
	return nil
}

// handleMessage routes one verified payload through the gossip node. When
// the routing moves the chain tail a running mining search is stale, so it
// is cancelled.
func (s *State) handleMessage(ev event) error {
	before, _ := s.ledger.Latest()

	s.gossip.HandleMessage(ev.message)

	after, _ := s.ledger.Latest()
	if before.Hash != after.Hash && s.Worker != nil {
		s.evHandler("state: message: chain tail moved: cancel mining")
		done := s.Worker.SignalCancelMining()
		done()
	}
	return nil
}

// handleTransport logs raw transport occurrences and keeps the peer set's
// connection source current.
func (s *State) handleTransport(ev event) error {
	tev := ev.netEvent

	switch tev.Kind {
	case transport.EventPeerLive:
		s.peers.Add(transport.Source, peer.Peer{ID: tev.Peer})
	case transport.EventPeerGone:
		s.peers.Remove(transport.Source, tev.Peer)
	}

	if tev.Err != nil {
		s.evHandler("state: transport: %s: peer[%s]: %s", tev.Kind, tev.Peer, tev.Err)
		return nil
	}

	s.evHandler("state: transport: %s: peer[%s]", tev.Kind, tev.Peer)
	return nil
}

// handleDiscovery reacts to mdns peer notifications: joins dial, leaves
// hang up.
func (s *State) handleDiscovery(ev event) error {
	dev := ev.discEvent

	switch dev.Kind {
	case discovery.KindJoined:
		s.evHandler("state: discovery: joined: peer[%s] host[%s]", dev.Peer.ID, dev.Peer.Host)
		s.peers.Add(discovery.Source, dev.Peer)
		s.trans.Dial(dev.Peer)

	case discovery.KindLeft:
		s.evHandler("state: discovery: left: peer[%s]", dev.Peer.ID)
		s.peers.Remove(discovery.Source, dev.Peer.ID)
		s.trans.Drop(dev.Peer.ID)
	}
	return nil
}
