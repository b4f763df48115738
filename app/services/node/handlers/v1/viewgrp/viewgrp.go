// Package viewgrp maintains the group of handlers for viewing chain state.
package viewgrp

import (
	"net/http"
	"time"

	"github.com/brendisurfs/gossipchain/business/web/errs"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/ledger"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/peer"
	"github.com/brendisurfs/gossipchain/foundation/events"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of chain viewing endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	SelfID  string
	Ledger  *ledger.Ledger
	PeerSet *peer.Set
	WS      websocket.Upgrader
	Evts    *events.Events
}

// Events handles a web socket to provide node events to a client.
func (h Handlers) Events(w http.ResponseWriter, r *http.Request) {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Errorw("events", "ERROR", err)
		return
	}
	defer c.Close()

	clientID := uuid.NewString()

	ch := h.Evts.Acquire(clientID)
	defer h.Evts.Release(clientID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// Genesis returns the hardcoded genesis block.
func (h Handlers) Genesis(w http.ResponseWriter, r *http.Request) {
	h.respond(w, ledger.Genesis(), http.StatusOK)
}

// Chain returns the full local chain.
func (h Handlers) Chain(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.Ledger.Blocks(), http.StatusOK)
}

// Latest returns the current chain tail.
func (h Handlers) Latest(w http.ResponseWriter, r *http.Request) {
	latest, ok := h.Ledger.Latest()
	if !ok {
		h.respondError(w, errs.NewTrusted(ledger.ErrNotSeeded, http.StatusNotFound))
		return
	}

	h.respond(w, latest, http.StatusOK)
}

// Peers returns the discovered peers.
func (h Handlers) Peers(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.PeerSet.Copy(h.SelfID), http.StatusOK)
}

// Status returns the node's identity and replication state.
func (h Handlers) Status(w http.ResponseWriter, r *http.Request) {
	status := struct {
		PeerID           string `json:"peer_id"`
		Height           int    `json:"height"`
		KnownPeers       int    `json:"known_peers"`
		DifficultyPrefix string `json:"difficulty_prefix"`
	}{
		PeerID:           h.SelfID,
		Height:           h.Ledger.Height(),
		KnownPeers:       h.PeerSet.Count(),
		DifficultyPrefix: h.Ledger.DifficultyPrefix(),
	}

	h.respond(w, status, http.StatusOK)
}
