// Package ledger implements the replicated proof-of-work chain: the block
// model and its canonical hash, the miner, the validation rules, the
// longest-valid-chain fork choice, and the store that owns the node's copy
// of the chain.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

// GenesisPrevHash is the sentinel parent reference carried by block 0.
const GenesisPrevHash = "genesis"

// DefaultDifficultyPrefix is the leading pattern the binary rendering of a
// block hash must carry for the block to be accepted.
const DefaultDifficultyPrefix = "00"

// zeroHash represents a hash code of zeros.
const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// =============================================================================

// Block is one record in the replicated ledger. The JSON field names are
// fixed by the wire format shared with every peer. Only the two hash
// fields carry requirement tags: id, timestamp, data and nonce are all
// legitimately zero valued.
type Block struct {
	ID        uint64 `json:"id"`
	Hash      string `json:"hash" validate:"required"`
	PrevHash  string `json:"prev_hash" validate:"required"`
	Timestamp int64  `json:"timestamp"`
	Data      string `json:"data"`
	Nonce     uint64 `json:"nonce"`
}

// hashInput is the canonical form fed to SHA-256. The field order is load
// bearing: every peer hashes the keys in this exact order, so reordering
// the fields changes every digest and breaks interoperability.
type hashInput struct {
	Data      string `json:"data"`
	ID        uint64 `json:"id"`
	Nonce     uint64 `json:"nonce"`
	PrevHash  string `json:"previous_hash"`
	Timestamp int64  `json:"timestamp"`
}

// ComputeHash returns the hex encoded SHA-256 digest of the canonical
// encoding of the five hashed block fields.
func ComputeHash(id uint64, timestamp int64, prevHash string, data string, nonce uint64) string {
	in := hashInput{
		Data:      data,
		ID:        id,
		Nonce:     nonce,
		PrevHash:  prevHash,
		Timestamp: timestamp,
	}

	bs, err := json.Marshal(in)
	if err != nil {
		return zeroHash
	}

	hash := sha256.Sum256(bs)
	return hex.EncodeToString(hash[:])
}

// ComputeHash returns the digest the block's non-hash fields produce.
func (b Block) ComputeHash() string {
	return ComputeHash(b.ID, b.Timestamp, b.PrevHash, b.Data, b.Nonce)
}

// Genesis returns the hardcoded first block of the ledger. Every node
// constructs the identical value so independently started peers share a
// common root without coordination.
func Genesis() Block {
	return Block{
		ID:        0,
		Hash:      "0000f816a87f806bb0073dcf026a64fb40c946b5abee2573702828694d5b4c43",
		PrevHash:  GenesisPrevHash,
		Timestamp: 1700000000,
		Data:      "genesis!",
		Nonce:     2836,
	}
}

// =============================================================================

// BinaryDigits renders every byte of the hash as binary digits with no
// fixed-width padding and concatenates them. Leading zero bits of each byte
// are dropped by the unpadded rendering; the difficulty predicate operates
// on this exact string, quirk included, because every peer on the network
// checks the same way.
func BinaryDigits(hash []byte) string {
	var sb strings.Builder
	sb.Grow(len(hash) * 8)

	for _, b := range hash {
		sb.WriteString(strconv.FormatUint(uint64(b), 2))
	}

	return sb.String()
}

// IsHashSolved checks the hex hash complies with the POW rules. The binary
// rendering of the hash bytes must start with the difficulty prefix.
func IsHashSolved(difficultyPrefix string, hash string) bool {
	bs, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}

	return strings.HasPrefix(BinaryDigits(bs), difficultyPrefix)
}
