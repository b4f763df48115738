// Package discovery announces this node on the local network over mDNS and
// watches for other nodes coming and going.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/brendisurfs/gossipchain/foundation/blockchain/peer"
	"github.com/grandcat/zeroconf"
)

// Source names this package in the peer set's per-source bookkeeping.
const Source = "mdns"

// mDNS service constants every node announces under.
const (
	serviceName = "_gossipchain._tcp"
	domain      = "local."
)

// Event kinds.
const (
	KindJoined = "joined"
	KindLeft   = "left"
)

// Event reports a peer appearing on or leaving the local network.
type Event struct {
	Kind string
	Peer peer.Peer
}

// Config holds what discovery needs to announce and browse.
type Config struct {
	SelfID    string
	Port      int
	EvHandler func(v string, args ...any)
}

// Discovery announces this node and browses for the others.
type Discovery struct {
	cfg    Config
	ev     func(v string, args ...any)
	server *zeroconf.Server
	events chan Event
	cancel context.CancelFunc
}

// New constructs a Discovery ready to Start.
func New(cfg Config) (*Discovery, error) {
	if cfg.SelfID == "" {
		return nil, errors.New("discovery requires a node identity")
	}
	if cfg.Port == 0 {
		return nil, errors.New("discovery requires the gossip port")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	d := Discovery{
		cfg:    cfg,
		ev:     ev,
		events: make(chan Event, 32),
	}

	return &d, nil
}

// Start registers this node's mDNS instance and begins browsing.
func (d *Discovery) Start() error {
	server, err := zeroconf.Register(d.cfg.SelfID, serviceName, domain, d.cfg.Port, []string{"id=" + d.cfg.SelfID}, nil)
	if err != nil {
		return fmt.Errorf("register mdns instance: %w", err)
	}
	d.server = server

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		server.Shutdown()
		return fmt.Errorf("construct mdns resolver: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	entries := make(chan *zeroconf.ServiceEntry, 16)
	go d.watch(ctx, entries)

	if err := resolver.Browse(ctx, serviceName, domain, entries); err != nil {
		cancel()
		server.Shutdown()
		return fmt.Errorf("browse mdns: %w", err)
	}

	d.ev("discovery: started: instance[%s] port[%d]", d.cfg.SelfID, d.cfg.Port)

	return nil
}

// Events delivers join and leave notifications.
func (d *Discovery) Events() <-chan Event {
	return d.events
}

// Stop withdraws the announcement and ends browsing.
func (d *Discovery) Stop() {
	d.ev("discovery: stop: started")
	defer d.ev("discovery: stop: completed")

	if d.cancel != nil {
		d.cancel()
	}
	if d.server != nil {
		d.server.Shutdown()
	}
}

// watch converts raw service entries into peer events. A zero TTL marks a
// goodbye announcement.
func (d *Discovery) watch(ctx context.Context, entries <-chan *zeroconf.ServiceEntry) {
	for {
		select {
		case <-ctx.Done():
			return

		case entry, ok := <-entries:
			if !ok {
				return
			}
			if entry == nil || entry.Instance == d.cfg.SelfID {
				continue
			}

			event := Event{
				Kind: KindJoined,
				Peer: peer.Peer{ID: entry.Instance, Host: hostFrom(entry)},
			}
			if entry.TTL == 0 {
				event = Event{Kind: KindLeft, Peer: peer.Peer{ID: entry.Instance}}
			}

			select {
			case d.events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// hostFrom picks a dialable address for the entry.
func hostFrom(entry *zeroconf.ServiceEntry) string {
	port := strconv.Itoa(entry.Port)

	if len(entry.AddrIPv4) > 0 {
		return net.JoinHostPort(entry.AddrIPv4[0].String(), port)
	}
	if len(entry.AddrIPv6) > 0 {
		return net.JoinHostPort(entry.AddrIPv6[0].String(), port)
	}

	return net.JoinHostPort(entry.HostName, port)
}
