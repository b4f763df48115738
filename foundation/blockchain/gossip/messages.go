// Package gossip implements the replication protocol: it trial decodes
// inbound payloads against the known wire schemas, drives the ledger with
// what arrives, and publishes local state back to the network.
package gossip

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/brendisurfs/gossipchain/foundation/blockchain/ledger"
	"github.com/brendisurfs/gossipchain/foundation/validate"
)

// Topic defaults shared by every peer on the network.
const (
	DefaultChainTopic = "chains"
	DefaultBlockTopic = "blocks"
)

// ErrUnknownMessage is returned when a payload matches none of the wire
// schemas. Such payloads are dropped.
var ErrUnknownMessage = errors.New("payload matches no known schema")

// ChainResponse carries a full chain snapshot addressed to one peer. It
// travels on the broadcast chain topic; receivers filter on the receiver
// field.
type ChainResponse struct {
	Blocks   []ledger.Block `json:"blocks"`
	Receiver string         `json:"receiver" validate:"required"`
}

// LocalChainRequest solicits a ChainResponse from the peer it names.
type LocalChainRequest struct {
	FromPeerID string `json:"from_peer_id" validate:"required"`
}

// =============================================================================

// Kind discriminates decoded payloads.
type Kind int

// The wire schemas in their trial decode priority.
const (
	KindChainResponse Kind = iota + 1
	KindChainRequest
	KindBlock
)

// Decoded is one inbound payload after trial decoding.
type Decoded struct {
	Kind     Kind
	Response ChainResponse
	Request  LocalChainRequest
	Block    ledger.Block
}

// Decode attempts each wire schema in priority order: ChainResponse, then
// LocalChainRequest, then Block. The first schema that matches wins. Go's
// decoder leaves absent fields zero valued, so candidates are also checked
// for their declared field requirements before they count as a match.
func Decode(payload []byte) (Decoded, error) {
	var resp ChainResponse
	if err := strictUnmarshal(payload, &resp); err == nil {
		if err := validate.Check(resp); err == nil {
			return Decoded{Kind: KindChainResponse, Response: resp}, nil
		}
	}

	var req LocalChainRequest
	if err := strictUnmarshal(payload, &req); err == nil {
		if err := validate.Check(req); err == nil {
			return Decoded{Kind: KindChainRequest, Request: req}, nil
		}
	}

	var blk ledger.Block
	if err := strictUnmarshal(payload, &blk); err == nil {
		if err := validate.Check(blk); err == nil {
			return Decoded{Kind: KindBlock, Block: blk}, nil
		}
	}

	return Decoded{}, ErrUnknownMessage
}

// strictUnmarshal rejects payloads carrying fields the schema does not
// declare, which keeps the three schemas mutually exclusive.
func strictUnmarshal(payload []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()

	return dec.Decode(v)
}
