package gossip

import (
	"errors"

	"github.com/brendisurfs/gossipchain/foundation/blockchain/ledger"
	"github.com/brendisurfs/gossipchain/foundation/transport"
)

// Publisher abstracts the broadcast side of the transport.
type Publisher interface {
	Publish(topic string, payload any) error
}

// Config holds what the gossip node needs to route messages.
type Config struct {
	SelfID     string
	ChainTopic string
	BlockTopic string
	Ledger     *ledger.Ledger
	Publisher  Publisher
	Responses  chan<- ChainResponse
	EvHandler  func(v string, args ...any)
}

// Node implements the gossip protocol for one peer.
type Node struct {
	cfg Config
	ev  func(v string, args ...any)
}

// New constructs a gossip Node subscribed to the chain and block topics.
func New(cfg Config) (*Node, error) {
	if cfg.SelfID == "" {
		return nil, errors.New("gossip requires a node identity")
	}
	if cfg.Ledger == nil || cfg.Publisher == nil || cfg.Responses == nil {
		return nil, errors.New("gossip requires a ledger, publisher and response channel")
	}

	if cfg.ChainTopic == "" {
		cfg.ChainTopic = DefaultChainTopic
	}
	if cfg.BlockTopic == "" {
		cfg.BlockTopic = DefaultBlockTopic
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	n := Node{
		cfg: cfg,
		ev:  ev,
	}

	return &n, nil
}

// HandleMessage trial decodes one verified transport payload and applies
// it. Messages outside the subscribed topics and payloads matching no
// schema are dropped.
func (n *Node) HandleMessage(msg transport.Message) {
	if msg.Topic != n.cfg.ChainTopic && msg.Topic != n.cfg.BlockTopic {
		n.ev("gossip: drop: unsubscribed topic[%s] from[%s]", msg.Topic, msg.From)
		return
	}

	decoded, err := Decode(msg.Payload)
	if err != nil {
		n.ev("gossip: drop: undecodable payload: from[%s] topic[%s] trace[%s]", msg.From, msg.Topic, msg.TraceID)
		return
	}

	switch decoded.Kind {
	case KindChainResponse:
		n.handleChainResponse(msg.From, decoded.Response)
	case KindChainRequest:
		n.handleChainRequest(msg.From, decoded.Request)
	case KindBlock:
		n.handleBlock(msg.From, decoded.Block)
	}
}

// handleChainResponse merges a chain snapshot addressed to this node.
// Snapshots addressed to anyone else are ignored.
func (n *Node) handleChainResponse(from string, resp ChainResponse) {
	if resp.Receiver != n.cfg.SelfID {
		return
	}

	n.ev("gossip: chain response: from[%s] blocks[%d]", from, len(resp.Blocks))

	replaced, err := n.cfg.Ledger.Resolve(resp.Blocks)
	if err != nil {
		n.ev("gossip: chain response: keeping local chain: %s", err)
		return
	}

	if replaced {
		n.ev("gossip: chain response: chain replaced: height[%d]", n.cfg.Ledger.Height())
		return
	}

	n.ev("gossip: chain response: local chain retained")
}

// handleChainRequest answers a chain request through the response channel
// the event loop drains. The request is served only when its from_peer_id
// names this node; the response is addressed to the transport level
// sender. Every peer on the topic applies the same rule, so exactly the
// named peer answers.
func (n *Node) handleChainRequest(from string, req LocalChainRequest) {
	n.ev("gossip: chain request: from[%s] names[%s]", from, req.FromPeerID)

	if req.FromPeerID != n.cfg.SelfID {
		return
	}

	resp := ChainResponse{
		Blocks:   n.cfg.Ledger.Blocks(),
		Receiver: from,
	}

	select {
	case n.cfg.Responses <- resp:
	default:
		n.ev("gossip: chain request: response channel full: dropping response for %s", from)
	}
}

// handleBlock validates an announced block against the chain tail and
// appends it. Rejections are diagnostics, never fatal.
func (n *Node) handleBlock(from string, blk ledger.Block) {
	n.ev("gossip: block announce: from[%s] blk[%d]", from, blk.ID)

	if err := n.cfg.Ledger.Append(blk); err != nil {
		n.ev("gossip: block announce: rejected: %s", err)
		return
	}

	n.ev("gossip: block announce: appended: blk[%d] hash[%s]", blk.ID, blk.Hash)
}

// =============================================================================

// PublishBlock announces a block on the block topic.
func (n *Node) PublishBlock(blk ledger.Block) error {
	n.ev("gossip: publish block: blk[%d] hash[%s]", blk.ID, blk.Hash)

	return n.cfg.Publisher.Publish(n.cfg.BlockTopic, blk)
}

// PublishChain broadcasts a chain response on the chain topic.
func (n *Node) PublishChain(resp ChainResponse) error {
	n.ev("gossip: publish chain: receiver[%s] blocks[%d]", resp.Receiver, len(resp.Blocks))

	return n.cfg.Publisher.Publish(n.cfg.ChainTopic, resp)
}

// RequestChain solicits the named peer's chain over the chain topic.
func (n *Node) RequestChain(peerID string) error {
	n.ev("gossip: request chain: peer[%s]", peerID)

	req := LocalChainRequest{FromPeerID: peerID}

	return n.cfg.Publisher.Publish(n.cfg.ChainTopic, req)
}
