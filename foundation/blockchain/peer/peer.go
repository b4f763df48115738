// Package peer maintains the set of peers the node has discovered, which
// discovery sources currently report each one, and the order they arrived.
package peer

import (
	"sort"
	"sync"
)

// Peer represents information about a node on the network.
type Peer struct {
	ID   string `json:"id"`
	Host string `json:"host"`
}

// Match validates if the specified id matches this peer.
func (p Peer) Match(id string) bool {
	return p.ID == id
}

// =============================================================================

// entry ties a peer to the discovery sources still reporting it.
type entry struct {
	peer    Peer
	sources map[string]struct{}
	seq     uint64
}

// Set maintains the known peers. A peer stays in the set until every
// discovery source that reported it has withdrawn its report.
type Set struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nextSeq uint64
}

// NewSet constructs an empty set to manage node peer information.
func NewSet() *Set {
	return &Set{
		entries: make(map[string]*entry),
	}
}

// Add records that the given source currently reports the peer. It returns
// true when the peer is new to the set.
func (s *Set) Add(source string, p Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[p.ID]; exists {
		e.sources[source] = struct{}{}
		if p.Host != "" {
			e.peer.Host = p.Host
		}
		return false
	}

	s.nextSeq++
	s.entries[p.ID] = &entry{
		peer:    p,
		sources: map[string]struct{}{source: {}},
		seq:     s.nextSeq,
	}

	return true
}

// Remove withdraws the source's report of the peer. The peer leaves the set
// only when no source still reports it; Remove returns true when it does.
func (s *Set) Remove(source string, peerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[peerID]
	if !exists {
		return false
	}

	delete(e.sources, source)
	if len(e.sources) > 0 {
		return false
	}

	delete(s.entries, peerID)
	return true
}

// Copy returns the known peers in discovery order, excluding selfID.
func (s *Set) Copy(selfID string) []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.peer.Match(selfID) {
			continue
		}
		ordered = append(ordered, e)
	}

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].seq < ordered[j].seq
	})

	peers := make([]Peer, len(ordered))
	for i, e := range ordered {
		peers[i] = e.peer
	}

	return peers
}

// Latest returns the most recently discovered peer. The second return is
// false when the set is empty.
func (s *Set) Latest() (Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *entry
	for _, e := range s.entries {
		if last == nil || e.seq > last.seq {
			last = e
		}
	}

	if last == nil {
		return Peer{}, false
	}

	return last.peer, true
}

// Count returns the number of known peers.
func (s *Set) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
