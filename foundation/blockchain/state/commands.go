package state

import (
	"encoding/json"
	"strings"
)

// Command prefixes accepted on the input stream.
const (
	cmdListPeers   = "ls p"
	cmdListChain   = "ls c"
	cmdCreateBlock = "create b"
)

// handleCommand executes one line from the input stream. Unknown commands
// are reported and change nothing.
func (s *State) handleCommand(ev event) error {
	line := ev.line

	switch {
	case line == cmdListPeers:
		s.printPeers()

	case strings.HasPrefix(line, cmdListChain):
		s.printChain()

	case strings.HasPrefix(line, cmdCreateBlock):
		data := strings.TrimSpace(strings.TrimPrefix(line, cmdCreateBlock))
		s.createBlock(data)

	default:
		s.evHandler("state: command: unknown command: %q", line)
	}

	return nil
}

func (s *State) printPeers() {
	peers := s.peers.Copy(s.selfID)

	s.evHandler("state: command: discovered peers: %d", len(peers))
	for _, p := range peers {
		s.evHandler("state: command: peer[%s] host[%s]", p.ID, p.Host)
	}
}

func (s *State) printChain() {
	out, err := json.MarshalIndent(s.ledger.Blocks(), "", "  ")
	if err != nil {
		s.evHandler("state: command: marshal chain failed: %s", err)
		return
	}

	s.evHandler("state: command: local chain:\n%s", string(out))
}

// createBlock signals the mining worker. The search runs in the worker's
// goroutine so the loop stays responsive while the nonce is found.
func (s *State) createBlock(data string) {
	if s.Worker == nil {
		s.evHandler("state: command: create block: no mining worker registered")
		return
	}

	s.Worker.SignalStartMining(data)
}
