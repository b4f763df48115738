package peer_test

import (
	"testing"

	"github.com/brendisurfs/gossipchain/foundation/blockchain/peer"
)

func Test_MultiSource(t *testing.T) {
	type table struct {
		name    string
		sources []string
	}

	tt := []table{
		{
			name:    "two sources",
			sources: []string{"mdns", "gossip"},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewSet()

			p := peer.Peer{ID: "peerA", Host: "127.0.0.1:9080"}
			for i, source := range tst.sources {
				added := ps.Add(source, p)
				if (i == 0) != added {
					t.Fatalf("Test %s:\tShould report new only on the first source.", tst.name)
				}
			}

			// Withdrawing one source must keep the peer alive.
			if gone := ps.Remove(tst.sources[0], "peerA"); gone {
				t.Fatalf("Test %s:\tShould keep the peer while another source reports it.", tst.name)
			}
			if ps.Count() != 1 {
				t.Fatalf("Test %s:\tShould still count the peer: got %d", tst.name, ps.Count())
			}

			if gone := ps.Remove(tst.sources[1], "peerA"); !gone {
				t.Fatalf("Test %s:\tShould drop the peer once all sources withdraw.", tst.name)
			}
			if ps.Count() != 0 {
				t.Fatalf("Test %s:\tShould have an empty set: got %d", tst.name, ps.Count())
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_DiscoveryOrder(t *testing.T) {
	ps := peer.NewSet()

	ps.Add("mdns", peer.Peer{ID: "first"})
	ps.Add("mdns", peer.Peer{ID: "second"})
	ps.Add("mdns", peer.Peer{ID: "third"})

	// Re-reporting an existing peer must not move it to the back.
	ps.Add("gossip", peer.Peer{ID: "first"})

	peers := ps.Copy("")
	if len(peers) != 3 {
		t.Fatalf("Test order:\tShould copy all peers: got %d", len(peers))
	}
	for i, want := range []string{"first", "second", "third"} {
		if peers[i].ID != want {
			t.Logf("Test order:\tgot: %s", peers[i].ID)
			t.Logf("Test order:\texp: %s", want)
			t.Fatalf("Test order:\tShould keep discovery order at position %d.", i)
		}
	}

	latest, ok := ps.Latest()
	if !ok || latest.ID != "third" {
		t.Fatalf("Test order:\tShould report the most recently discovered peer: got %+v", latest)
	}

	peers = ps.Copy("second")
	if len(peers) != 2 {
		t.Fatalf("Test order:\tShould exclude the requesting node: got %d", len(peers))
	}
}
