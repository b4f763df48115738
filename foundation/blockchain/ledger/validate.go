package ledger

import (
	"errors"
	"fmt"
)

// Validation failures callers branch on with errors.Is.
var (
	ErrWrongParent       = errors.New("wrong previous hash")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrOutOfSequence     = errors.New("block id out of sequence")
)

// ValidateBlock checks that candidate extends predecessor. The checks run
// in a fixed order and stop at the first failure: parent link, difficulty,
// id sequence, hash recomputation. A recomputation mismatch is reported
// through ev but does not fail validation.
func ValidateBlock(candidate Block, predecessor Block, difficultyPrefix string, ev func(v string, args ...any)) error {
	ev("ledger: validate: blk[%d]: check: parent hash matches", candidate.ID)

	if candidate.PrevHash != predecessor.Hash {
		return fmt.Errorf("block %d: %w: got %s, exp %s", candidate.ID, ErrWrongParent, candidate.PrevHash, predecessor.Hash)
	}

	ev("ledger: validate: blk[%d]: check: difficulty prefix", candidate.ID)

	if !IsHashSolved(difficultyPrefix, candidate.Hash) {
		return fmt.Errorf("block %d: %w: hash %s", candidate.ID, ErrInvalidDifficulty, candidate.Hash)
	}

	ev("ledger: validate: blk[%d]: check: id is next in sequence", candidate.ID)

	if candidate.ID != predecessor.ID+1 {
		return fmt.Errorf("block %d: %w: exp %d", candidate.ID, ErrOutOfSequence, predecessor.ID+1)
	}

	ev("ledger: validate: blk[%d]: check: hash recomputation", candidate.ID)

	if recomputed := candidate.ComputeHash(); recomputed != candidate.Hash {
		ev("ledger: validate: blk[%d]: hash mismatch: got %s, exp %s", candidate.ID, candidate.Hash, recomputed)
	}

	return nil
}

// ValidateChain checks every adjacent pair of blocks with ValidateBlock.
// Chains of length zero or one are valid by definition.
func ValidateChain(blocks []Block, difficultyPrefix string, ev func(v string, args ...any)) error {
	for i := 1; i < len(blocks); i++ {
		if err := ValidateBlock(blocks[i], blocks[i-1], difficultyPrefix, ev); err != nil {
			return fmt.Errorf("chain invalid at position %d: %w", i, err)
		}
	}

	return nil
}
