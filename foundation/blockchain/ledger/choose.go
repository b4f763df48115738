package ledger

import "errors"

// ErrChainConflict is returned from Choose when neither candidate chain
// validates. The caller retains whatever chain it already holds.
var ErrChainConflict = errors.New("local and remote chains are both invalid")

// Choose picks between the node's local chain and a remote chain. When both
// validate the longer one wins and a tie keeps local. When only one
// validates it wins regardless of length. When neither does, Choose returns
// ErrChainConflict.
func Choose(local []Block, remote []Block, difficultyPrefix string, ev func(v string, args ...any)) ([]Block, error) {
	localErr := ValidateChain(local, difficultyPrefix, ev)
	remoteErr := ValidateChain(remote, difficultyPrefix, ev)

	switch {
	case localErr == nil && remoteErr == nil:
		if len(remote) > len(local) {
			return remote, nil
		}
		return local, nil

	case remoteErr == nil:
		return remote, nil

	case localErr == nil:
		return local, nil

	default:
		return nil, ErrChainConflict
	}
}
