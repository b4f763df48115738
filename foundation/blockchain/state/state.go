// Package state wires the node's components together and runs the event
// loop that serializes every decision the peer makes.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/brendisurfs/gossipchain/foundation/blockchain/gossip"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/ledger"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/peer"
	"github.com/brendisurfs/gossipchain/foundation/discovery"
	"github.com/brendisurfs/gossipchain/foundation/transport"
)

// defaultInitDelay is how long after startup the one shot init event fires.
const defaultInitDelay = time.Second

// =============================================================================

// EventHandler defines a function that is called when events occur in the
// processing of the node.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by
// any package providing support for background mining.
type Worker interface {
	Shutdown()
	SignalStartMining(data string)
	SignalCancelMining() (done func())
}

// Transport is the portion of the network layer the event loop drives.
type Transport interface {
	Inbox() <-chan transport.Message
	Events() <-chan transport.Event
	Dial(p peer.Peer)
	Drop(peerID string)
}

// Discovery delivers peer joined and left notifications.
type Discovery interface {
	Events() <-chan discovery.Event
}

// =============================================================================

// Config represents the configuration required to start the node.
type Config struct {
	SelfID    string
	Ledger    *ledger.Ledger
	Peers     *peer.Set
	Gossip    *gossip.Node
	Transport Transport
	Discovery Discovery
	Responses <-chan gossip.ChainResponse
	Commands  <-chan string
	InitDelay time.Duration
	EvHandler EventHandler
}

// State manages one peer of the gossip replicated ledger.
type State struct {
	selfID    string
	ledger    *ledger.Ledger
	peers     *peer.Set
	gossip    *gossip.Node
	trans     Transport
	disco     Discovery
	responses <-chan gossip.ChainResponse
	commands  <-chan string
	initDelay time.Duration
	evHandler EventHandler
	dispatch  map[eventKind]func(event) error

	Worker Worker
}

// New constructs the state for the node to run.
func New(cfg Config) (*State, error) {
	if cfg.SelfID == "" {
		return nil, errors.New("state requires a node identity")
	}
	if cfg.Ledger == nil || cfg.Peers == nil || cfg.Gossip == nil {
		return nil, errors.New("state requires a ledger, peer set and gossip node")
	}
	if cfg.Transport == nil || cfg.Discovery == nil {
		return nil, errors.New("state requires a transport and discovery source")
	}
	if cfg.Responses == nil || cfg.Commands == nil {
		return nil, errors.New("state requires response and command channels")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.InitDelay == 0 {
		cfg.InitDelay = defaultInitDelay
	}

	s := State{
		selfID:    cfg.SelfID,
		ledger:    cfg.Ledger,
		peers:     cfg.Peers,
		gossip:    cfg.Gossip,
		trans:     cfg.Transport,
		disco:     cfg.Discovery,
		responses: cfg.Responses,
		commands:  cfg.Commands,
		initDelay: cfg.InitDelay,
		evHandler: ev,
	}

	s.dispatch = map[eventKind]func(event) error{
		eventCommand:   s.handleCommand,
		eventResponse:  s.handleResponse,
		eventInit:      s.handleInit,
		eventMessage:   s.handleMessage,
		eventTransport: s.handleTransport,
		eventDiscovery: s.handleDiscovery,
	}

	// The Worker is not set here. The call to worker.Run will assign
	// itself and start the mining goroutines.

	return &s, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// =============================================================================

// MineNewBlock performs the proof of work search for the next block atop
// the current tail and appends the result. The search honors ctx so a
// winning remote block can cancel it.
func (s *State) MineNewBlock(ctx context.Context, data string) (ledger.Block, error) {
	latest, ok := s.ledger.Latest()
	if !ok {
		return ledger.Block{}, ledger.ErrNotSeeded
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW")

	block, err := ledger.POW(ctx, latest, data, s.ledger.DifficultyPrefix(), s.evHandler)
	if err != nil {
		return ledger.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return ledger.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	if err := s.ledger.Append(block); err != nil {
		return ledger.Block{}, err
	}

	return block, nil
}

// SendBlockToPeers announces a locally mined block to the network.
func (s *State) SendBlockToPeers(block ledger.Block) error {
	return s.gossip.PublishBlock(block)
}

// RetrieveKnownPeers returns the discovered peers, excluding this node.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.peers.Copy(s.selfID)
}
