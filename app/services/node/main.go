package main

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/brendisurfs/gossipchain/app/services/node/handlers"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/gossip"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/ledger"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/peer"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/state"
	"github.com/brendisurfs/gossipchain/foundation/blockchain/worker"
	"github.com/brendisurfs/gossipchain/foundation/discovery"
	"github.com/brendisurfs/gossipchain/foundation/events"
	"github.com/brendisurfs/gossipchain/foundation/logger"
	"github.com/brendisurfs/gossipchain/foundation/transport"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			ViewerHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Node struct {
			GossipHost       string        `conf:"default:0.0.0.0:9080"`
			KeyPath          string        `conf:"default:zblock/node.ecdsa"`
			DifficultyPrefix string        `conf:"default:00"`
			InitDelay        time.Duration `conf:"default:1s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "GOSSIPCHAIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Node Identity

	// The node signs every gossip envelope it publishes. The peer id other
	// nodes know this node by is derived from the same key, so the identity
	// survives restarts as long as the key file does.
	privateKey, err := loadOrCreateKey(cfg.Node.KeyPath)
	if err != nil {
		return fmt.Errorf("unable to load node identity: %w", err)
	}
	selfID := peer.IDFromKey(privateKey)

	log.Infow("startup", "status", "node identity loaded", "peer", selfID)

	// =========================================================================
	// Blockchain Support

	// The blockchain packages accept a function of this signature to allow the
	// application to log. For now, these raw messages are sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// A peer set is a collection of known nodes in the network so chains
	// and blocks can be shared. It starts empty and fills from discovery.
	peers := peer.NewSet()

	// The ledger holds this node's copy of the chain and enforces the
	// difficulty and linkage rules on everything appended to it.
	lgr := ledger.New(cfg.Node.DifficultyPrefix, ev)

	// =========================================================================
	// Network Support

	// The transport carries signed gossip envelopes between peers over a
	// websocket mesh.
	trans, err := transport.New(transport.Config{
		ListenAddr: cfg.Node.GossipHost,
		SelfID:     selfID,
		PrivateKey: privateKey,
		EvHandler:  ev,
	})
	if err != nil {
		return fmt.Errorf("constructing transport: %w", err)
	}

	if err := trans.Listen(); err != nil {
		return fmt.Errorf("starting gossip listener: %w", err)
	}

	// Discovery announces this node on the local network over mDNS using the
	// port the transport actually bound.
	disco, err := discovery.New(discovery.Config{
		SelfID:    selfID,
		Port:      trans.Port(),
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("constructing discovery: %w", err)
	}

	if err := disco.Start(); err != nil {
		return fmt.Errorf("starting discovery: %w", err)
	}
	defer disco.Stop()

	// =========================================================================
	// Gossip Support

	// Requests the gossip layer answers produce responses that must travel
	// back through the event loop before they publish.
	responses := make(chan gossip.ChainResponse, 16)

	gsp, err := gossip.New(gossip.Config{
		SelfID:    selfID,
		Ledger:    lgr,
		Publisher: trans,
		Responses: responses,
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("constructing gossip: %w", err)
	}

	// =========================================================================
	// State Support

	// Commands typed on stdin drive the node. Closing the channel on EOF
	// tells the event loop the input stream ended.
	commands := make(chan string)
	go func() {
		defer close(commands)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			commands <- sc.Text()
		}
	}()

	// The state value represents this peer of the replicated ledger. Its
	// event loop serializes every decision the node makes.
	st, err := state.New(state.Config{
		SelfID:    selfID,
		Ledger:    lgr,
		Peers:     peers,
		Gossip:    gsp,
		Transport: trans,
		Discovery: disco,
		Responses: responses,
		Commands:  commands,
		InitDelay: cfg.Node.InitDelay,
		EvHandler: ev,
	})
	if err != nil {
		return fmt.Errorf("constructing state: %w", err)
	}
	defer st.Shutdown()

	// The worker package implements the background mining workflow. The
	// worker will register itself with the state.
	worker.Run(st, ev)

	// Run the event loop until the node shuts down or the loop hits a
	// fatal error such as the command input closing.
	loopCtx, loopCancel := context.WithCancel(context.Background())
	defer loopCancel()

	loopErrors := make(chan error, 1)
	go func() {
		if err := st.Run(loopCtx); err != nil {
			loopErrors <- err
		}
	}()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, lgr)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Viewer Service

	log.Infow("startup", "status", "initializing V1 viewer API support")

	// Construct the mux for the viewer API calls.
	viewerMux := handlers.ViewerMux(handlers.MuxConfig{
		Log:    log,
		SelfID: selfID,
		Ledger: lgr,
		Peers:  peers,
		Evts:   evts,
	})

	// Construct a server to service the requests against the mux.
	viewer := http.Server{
		Addr:         cfg.Web.ViewerHost,
		Handler:      viewerMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "viewer api router started", "host", viewer.Addr)
		serverErrors <- viewer.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case err := <-loopErrors:
		return fmt.Errorf("event loop error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelViewer := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelViewer()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown viewer API started")
		if err := viewer.Shutdown(ctx); err != nil {
			viewer.Close()
			return fmt.Errorf("could not stop viewer service gracefully: %w", err)
		}

		// Give the gossip mesh a deadline to drain its connections.
		ctx, cancelTrans := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelTrans()

		log.Infow("shutdown", "status", "shutdown gossip transport started")
		if err := trans.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not stop transport gracefully: %w", err)
		}
	}

	return nil
}

// loadOrCreateKey loads the node's ECDSA identity key, generating and saving
// a new one on first run.
func loadOrCreateKey(path string) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err == nil {
		return privateKey, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("creating key folder: %w", err)
	}

	privateKey, err = crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return nil, fmt.Errorf("saving key file: %w", err)
	}

	return privateKey, nil
}
