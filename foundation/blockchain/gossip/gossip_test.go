package gossip_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/brendisurfs/gossipchain/foundation/blockchain/gossip"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/ledger"
	"github.com/brendisurfs/gossipchain/foundation/transport"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// testPrefix keeps mining fast inside the tests.
const testPrefix = "0"

func noEv(v string, args ...any) {}

// capturePublisher records everything the node publishes.
type capturePublisher struct {
	topics   []string
	payloads []any
}

func (p *capturePublisher) Publish(topic string, payload any) error {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to marshal payload: %s", failed, err)
	}

	return data
}

func mineNext(t *testing.T, prev ledger.Block, data string) ledger.Block {
	t.Helper()

	nonce, hash, err := ledger.Mine(context.Background(), prev.ID+1, prev.Timestamp+1, prev.Hash, data, testPrefix, noEv)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %s", failed, err)
	}

	return ledger.Block{
		ID:        prev.ID + 1,
		Hash:      hash,
		PrevHash:  prev.Hash,
		Timestamp: prev.Timestamp + 1,
		Data:      data,
		Nonce:     nonce,
	}
}

func newTestNode(t *testing.T, selfID string) (*gossip.Node, *ledger.Ledger, *capturePublisher, chan gossip.ChainResponse) {
	t.Helper()

	lgr := ledger.New(testPrefix, noEv)
	if err := lgr.Seed(); err != nil {
		t.Fatalf("\t%s\tShould be able to seed the ledger: %s", failed, err)
	}

	pub := capturePublisher{}
	responses := make(chan gossip.ChainResponse, 1)

	node, err := gossip.New(gossip.Config{
		SelfID:    selfID,
		Ledger:    lgr,
		Publisher: &pub,
		Responses: responses,
		EvHandler: noEv,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the node: %s", failed, err)
	}

	return node, lgr, &pub, responses
}

// =============================================================================

func Test_Decode(t *testing.T) {
	blk := mineNext(t, ledger.Genesis(), "decode test")

	tt := []struct {
		name    string
		payload string
		kind    gossip.Kind
		err     error
	}{
		{
			name:    "chain response",
			payload: string(mustJSON(t, gossip.ChainResponse{Blocks: []ledger.Block{ledger.Genesis(), blk}, Receiver: "peerA"})),
			kind:    gossip.KindChainResponse,
		},
		{
			name:    "empty chain response",
			payload: `{"receiver":"peerA"}`,
			kind:    gossip.KindChainResponse,
		},
		{
			name:    "chain request",
			payload: `{"from_peer_id":"peerA"}`,
			kind:    gossip.KindChainRequest,
		},
		{
			name:    "block",
			payload: string(mustJSON(t, blk)),
			kind:    gossip.KindBlock,
		},
		{
			name:    "chain response missing receiver",
			payload: string(mustJSON(t, struct {
				Blocks []ledger.Block `json:"blocks"`
			}{Blocks: []ledger.Block{blk}})),
			err: gossip.ErrUnknownMessage,
		},
		{
			name:    "chain request with empty peer id",
			payload: `{"from_peer_id":""}`,
			err:     gossip.ErrUnknownMessage,
		},
		{
			name:    "block missing hash",
			payload: `{"id":1,"prev_hash":"abc","timestamp":1,"data":"x","nonce":7}`,
			err:     gossip.ErrUnknownMessage,
		},
		{
			name:    "undeclared field",
			payload: `{"from_peer_id":"peerA","hops":3}`,
			err:     gossip.ErrUnknownMessage,
		},
		{
			name:    "not json",
			payload: `ping`,
			err:     gossip.ErrUnknownMessage,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := gossip.Decode([]byte(tc.payload))

			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected error %v, got %v", tc.err, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("expected decode to succeed, got %v", err)
			}
			if decoded.Kind != tc.kind {
				t.Fatalf("expected kind %v, got %v", tc.kind, decoded.Kind)
			}
		})
	}
}

func Test_ChainResponseFiltering(t *testing.T) {
	t.Log("Given the need to apply only chain responses addressed to this node.")
	{
		t.Logf("\tTest 0:\tWhen handling responses with varying receivers.")
		{
			node, lgr, _, _ := newTestNode(t, "peerSelf")

			remote := []ledger.Block{ledger.Genesis()}
			remote = append(remote, mineNext(t, remote[0], "block one"))
			remote = append(remote, mineNext(t, remote[1], "block two"))

			resp := gossip.ChainResponse{Blocks: remote, Receiver: "peerOther"}
			node.HandleMessage(transport.Message{
				Topic:   gossip.DefaultChainTopic,
				From:    "peerB",
				Payload: mustJSON(t, resp),
			})

			if lgr.Height() != 1 {
				t.Fatalf("\t%s\tShould ignore a response addressed elsewhere: height %d", failed, lgr.Height())
			}
			t.Logf("\t%s\tShould ignore a response addressed elsewhere.", success)

			resp.Receiver = "peerSelf"
			node.HandleMessage(transport.Message{
				Topic:   gossip.DefaultChainTopic,
				From:    "peerB",
				Payload: mustJSON(t, resp),
			})

			if lgr.Height() != 3 {
				t.Fatalf("\t%s\tShould adopt a longer valid chain: height %d", failed, lgr.Height())
			}
			t.Logf("\t%s\tShould adopt a longer valid chain.", success)

			short := gossip.ChainResponse{Blocks: []ledger.Block{ledger.Genesis()}, Receiver: "peerSelf"}
			node.HandleMessage(transport.Message{
				Topic:   gossip.DefaultChainTopic,
				From:    "peerB",
				Payload: mustJSON(t, short),
			})

			if lgr.Height() != 3 {
				t.Fatalf("\t%s\tShould retain the local chain over a shorter one: height %d", failed, lgr.Height())
			}
			t.Logf("\t%s\tShould retain the local chain over a shorter one.", success)
		}
	}
}

func Test_ChainRequestAnswering(t *testing.T) {
	t.Log("Given the need to serve chain requests that name this node.")
	{
		t.Logf("\tTest 0:\tWhen a request names this node.")
		{
			node, lgr, _, responses := newTestNode(t, "peerSelf")

			req := gossip.LocalChainRequest{FromPeerID: "peerSelf"}
			node.HandleMessage(transport.Message{
				Topic:   gossip.DefaultChainTopic,
				From:    "peerAsker",
				Payload: mustJSON(t, req),
			})

			select {
			case resp := <-responses:
				if resp.Receiver != "peerAsker" {
					t.Fatalf("\t%s\tShould address the response to the sender: got %q", failed, resp.Receiver)
				}
				if len(resp.Blocks) != lgr.Height() {
					t.Fatalf("\t%s\tShould carry the full chain: got %d blocks", failed, len(resp.Blocks))
				}
				t.Logf("\t%s\tShould queue a response addressed to the sender.", success)

			default:
				t.Fatalf("\t%s\tShould queue a response addressed to the sender.", failed)
			}
		}

		t.Logf("\tTest 1:\tWhen a request names a different node.")
		{
			node, _, _, responses := newTestNode(t, "peerSelf")

			req := gossip.LocalChainRequest{FromPeerID: "peerOther"}
			node.HandleMessage(transport.Message{
				Topic:   gossip.DefaultChainTopic,
				From:    "peerAsker",
				Payload: mustJSON(t, req),
			})

			select {
			case resp := <-responses:
				t.Fatalf("\t%s\tShould stay silent: queued response for %q", failed, resp.Receiver)
			default:
				t.Logf("\t%s\tShould stay silent.", success)
			}
		}
	}
}

func Test_BlockAnnounce(t *testing.T) {
	t.Log("Given the need to append announced blocks that extend the chain.")
	{
		t.Logf("\tTest 0:\tWhen handling announced blocks.")
		{
			node, lgr, _, _ := newTestNode(t, "peerSelf")

			blk := mineNext(t, ledger.Genesis(), "announced")
			node.HandleMessage(transport.Message{
				Topic:   gossip.DefaultBlockTopic,
				From:    "peerB",
				Payload: mustJSON(t, blk),
			})

			if lgr.Height() != 2 {
				t.Fatalf("\t%s\tShould append a valid announced block: height %d", failed, lgr.Height())
			}
			t.Logf("\t%s\tShould append a valid announced block.", success)

			node.HandleMessage(transport.Message{
				Topic:   gossip.DefaultBlockTopic,
				From:    "peerC",
				Payload: mustJSON(t, blk),
			})

			if lgr.Height() != 2 {
				t.Fatalf("\t%s\tShould reject a duplicate announcement: height %d", failed, lgr.Height())
			}
			t.Logf("\t%s\tShould reject a duplicate announcement.", success)
		}
	}
}

func Test_UnsubscribedTopic(t *testing.T) {
	t.Log("Given the need to drop traffic outside the subscribed topics.")
	{
		t.Logf("\tTest 0:\tWhen a valid block arrives on an unknown topic.")
		{
			node, lgr, _, _ := newTestNode(t, "peerSelf")

			blk := mineNext(t, ledger.Genesis(), "wrong topic")
			node.HandleMessage(transport.Message{
				Topic:   "txs",
				From:    "peerB",
				Payload: mustJSON(t, blk),
			})

			if lgr.Height() != 1 {
				t.Fatalf("\t%s\tShould leave the ledger untouched: height %d", failed, lgr.Height())
			}
			t.Logf("\t%s\tShould leave the ledger untouched.", success)
		}
	}
}

func Test_Outbound(t *testing.T) {
	t.Log("Given the need to publish local state to the network.")
	{
		t.Logf("\tTest 0:\tWhen publishing blocks, chains and requests.")
		{
			node, lgr, pub, _ := newTestNode(t, "peerSelf")

			blk := mineNext(t, ledger.Genesis(), "outbound")
			if err := node.PublishBlock(blk); err != nil {
				t.Fatalf("\t%s\tShould be able to publish a block: %s", failed, err)
			}

			resp := gossip.ChainResponse{Blocks: lgr.Blocks(), Receiver: "peerB"}
			if err := node.PublishChain(resp); err != nil {
				t.Fatalf("\t%s\tShould be able to publish the chain: %s", failed, err)
			}

			if err := node.RequestChain("peerB"); err != nil {
				t.Fatalf("\t%s\tShould be able to request a chain: %s", failed, err)
			}

			wantTopics := []string{gossip.DefaultBlockTopic, gossip.DefaultChainTopic, gossip.DefaultChainTopic}
			if len(pub.topics) != len(wantTopics) {
				t.Fatalf("\t%s\tShould publish three messages: got %d", failed, len(pub.topics))
			}
			for i, topic := range wantTopics {
				if pub.topics[i] != topic {
					t.Fatalf("\t%s\tShould publish on topic %q: got %q", failed, topic, pub.topics[i])
				}
			}
			t.Logf("\t%s\tShould publish on the expected topics.", success)

			req, ok := pub.payloads[2].(gossip.LocalChainRequest)
			if !ok {
				t.Fatalf("\t%s\tShould publish a chain request payload: got %T", failed, pub.payloads[2])
			}
			if req.FromPeerID != "peerB" {
				t.Fatalf("\t%s\tShould name the requested peer: got %q", failed, req.FromPeerID)
			}
			t.Logf("\t%s\tShould name the requested peer.", success)
		}
	}
}
