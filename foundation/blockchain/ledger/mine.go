package ledger

import (
	"context"
	"time"
)

// miningProgressInterval sets how many attempts pass between progress
// diagnostics during a search.
const miningProgressInterval = 100_000

// Mine performs the brute force nonce search for a block carrying the given
// fields. The search starts at nonce 0 and increments by 1, so the result
// is deterministic for fixed inputs. Mine occupies the calling goroutine
// for the full search and checks ctx on every attempt.
func Mine(ctx context.Context, id uint64, timestamp int64, prevHash string, data string, difficultyPrefix string, ev func(v string, args ...any)) (uint64, string, error) {
	ev("ledger: mine: started: blk[%d]", id)
	defer ev("ledger: mine: completed: blk[%d]", id)

	for nonce := uint64(0); ; nonce++ {
		if nonce%miningProgressInterval == 0 {
			ev("ledger: mine: working: blk[%d]: nonce[%d]", id, nonce)
		}

		if ctx.Err() != nil {
			ev("ledger: mine: CANCELLED: blk[%d]", id)
			return 0, "", ctx.Err()
		}

		hash := ComputeHash(id, timestamp, prevHash, data, nonce)
		if !IsHashSolved(difficultyPrefix, hash) {
			continue
		}

		ev("ledger: mine: SOLVED: blk[%d]: nonce[%d] hash[%s]", id, nonce, hash)

		return nonce, hash, nil
	}
}

// POW constructs the block that extends prev with the given payload and
// performs the work of finding a nonce that satisfies the difficulty
// prefix.
func POW(ctx context.Context, prev Block, data string, difficultyPrefix string, ev func(v string, args ...any)) (Block, error) {
	nb := Block{
		ID:        prev.ID + 1,
		PrevHash:  prev.Hash,
		Timestamp: time.Now().UTC().Unix(),
		Data:      data,
	}

	nonce, hash, err := Mine(ctx, nb.ID, nb.Timestamp, nb.PrevHash, nb.Data, difficultyPrefix, ev)
	if err != nil {
		return Block{}, err
	}

	nb.Nonce = nonce
	nb.Hash = hash

	return nb, nil
}
