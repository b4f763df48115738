package ledger

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotSeeded is returned by operations that need at least the genesis
// block in place.
var ErrNotSeeded = errors.New("ledger is not seeded")

// Ledger owns the node's copy of the chain. Mutation is serialized through
// the node's event loop; the lock exists so snapshot reads for the viewer
// API can run concurrently with that loop.
type Ledger struct {
	mu               sync.RWMutex
	blocks           []Block
	difficultyPrefix string
	evHandler        func(v string, args ...any)
}

// New constructs a Ledger enforcing the given difficulty prefix. The chain
// stays empty until Seed places the genesis block.
func New(difficultyPrefix string, evHandler func(v string, args ...any)) *Ledger {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	if difficultyPrefix == "" {
		difficultyPrefix = DefaultDifficultyPrefix
	}

	return &Ledger{
		difficultyPrefix: difficultyPrefix,
		evHandler:        ev,
	}
}

// Seed populates an empty ledger with the genesis block.
func (l *Ledger) Seed() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.blocks) != 0 {
		return errors.New("ledger already seeded")
	}

	l.blocks = append(l.blocks, Genesis())
	return nil
}

// Append validates the block against the current tail and appends it.
func (l *Ledger) Append(b Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.blocks) == 0 {
		return ErrNotSeeded
	}

	latest := l.blocks[len(l.blocks)-1]
	if err := ValidateBlock(b, latest, l.difficultyPrefix, l.evHandler); err != nil {
		return fmt.Errorf("could not append block: %w", err)
	}

	l.blocks = append(l.blocks, b)
	return nil
}

// Resolve runs fork choice between the current chain and a remote chain and
// swaps to the remote chain when it wins. It reports whether the swap
// happened. On ErrChainConflict the current chain is retained.
func (l *Ledger) Resolve(remote []Block) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	chosen, err := Choose(l.blocks, remote, l.difficultyPrefix, l.evHandler)
	if err != nil {
		return false, err
	}

	if sameChain(chosen, l.blocks) {
		return false, nil
	}

	l.blocks = copyBlocks(chosen)
	return true, nil
}

// Latest returns the current tail block. The second return is false while
// the ledger has not been seeded.
func (l *Ledger) Latest() (Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.blocks) == 0 {
		return Block{}, false
	}

	return l.blocks[len(l.blocks)-1], true
}

// Blocks returns a copy of the whole chain.
func (l *Ledger) Blocks() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return copyBlocks(l.blocks)
}

// Height returns the number of blocks currently held.
func (l *Ledger) Height() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.blocks)
}

// DifficultyPrefix returns the prefix the ledger validates against.
func (l *Ledger) DifficultyPrefix() string {
	return l.difficultyPrefix
}

// sameChain reports whether two chains share length and tail hash. Blocks
// are hash linked, so for validated chains that pins the whole sequence.
func sameChain(a []Block, b []Block) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return a[len(a)-1].Hash == b[len(b)-1].Hash
}

func copyBlocks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	copy(out, blocks)
	return out
}
