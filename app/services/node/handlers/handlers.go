// Package handlers manages the different versions of the API.
package handlers

import (
	"expvar"
	"net/http"
	"net/http/pprof"

	"github.com/brendisurfs/gossipchain/app/services/node/handlers/debug/checkgrp"
	"github.com/brendisurfs/gossipchain/app/services/node/handlers/v1/viewgrp"
	"github.com/brendisurfs/gossipchain/business/web/mid"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/ledger"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/peer"
	"github.com/brendisurfs/gossipchain/foundation/events"
	"github.com/dimfeld/httptreemux/v5"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Log    *zap.SugaredLogger
	SelfID string
	Ledger *ledger.Ledger
	Peers  *peer.Set
	Evts   *events.Events
}

// ViewerMux constructs a http.Handler with all application routes defined.
func ViewerMux(cfg MuxConfig) http.Handler {
	vgh := viewgrp.Handlers{
		Log:     cfg.Log,
		SelfID:  cfg.SelfID,
		Ledger:  cfg.Ledger,
		PeerSet: cfg.Peers,
		Evts:    cfg.Evts,
	}

	mux := httptreemux.NewContextMux()

	mux.GET("/v1/events", vgh.Events)
	mux.GET("/v1/genesis", vgh.Genesis)
	mux.GET("/v1/chain", vgh.Chain)
	mux.GET("/v1/chain/latest", vgh.Latest)
	mux.GET("/v1/peers", vgh.Peers)
	mux.GET("/v1/status", vgh.Status)

	// Wrap the routes with the common middleware, outermost first.
	return mid.Wrap(mux,
		mid.Logger(cfg.Log),
		mid.Metrics(),
		mid.Cors("*"),
		mid.Panics(cfg.Log),
	)
}

// DebugStandardLibraryMux registers all the debug routes from the standard library
// into a new mux bypassing the use of the DefaultServerMux. Using the
// DefaultServerMux would be a security risk since a dependency could inject a
// handler into our service without us knowing it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Register all the standard library debug endpoints.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers all the debug standard library routes and then custom
// debug application routes for the service. This bypassing the use of the
// DefaultServerMux. Using the DefaultServerMux would be a security risk since
// a dependency could inject a handler into our service without us knowing it.
func DebugMux(build string, log *zap.SugaredLogger, lgr *ledger.Ledger) http.Handler {
	mux := DebugStandardLibraryMux()

	// Register debug check endpoints.
	cgh := checkgrp.Handlers{
		Build:  build,
		Log:    log,
		Ledger: lgr,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	return mux
}
