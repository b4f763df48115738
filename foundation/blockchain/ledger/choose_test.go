package ledger_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/brendisurfs/gossipchain/foundation/blockchain/ledger"
)

func Test_Choose(t *testing.T) {
	chain := mineChain(t, 5, "0")

	corrupt := func(blocks []ledger.Block) []ledger.Block {
		out := make([]ledger.Block, len(blocks))
		copy(out, blocks)
		out[1].Hash = strings.Repeat("ff", 32)
		return out
	}

	// A second valid history diverging from genesis, for equal length ties.
	rival := []ledger.Block{ledger.Genesis()}
	for len(rival) < 3 {
		rival = append(rival, mineNext(t, rival[len(rival)-1], "rival payload", "0"))
	}

	type table struct {
		name    string
		local   []ledger.Block
		remote  []ledger.Block
		want    []ledger.Block
		wantErr error
	}

	tt := []table{
		{name: "remote longer wins", local: chain[:3], remote: chain[:5], want: chain[:5]},
		{name: "local longer wins", local: chain[:5], remote: chain[:3], want: chain[:5]},
		{name: "tie keeps local", local: chain[:3], remote: rival, want: chain[:3]},
		{name: "invalid remote loses regardless of length", local: chain[:3], remote: corrupt(chain[:5]), want: chain[:3]},
		{name: "invalid local loses", local: corrupt(chain[:5]), remote: chain[:3], want: chain[:3]},
		{name: "both invalid conflict", local: corrupt(chain[:4]), remote: corrupt(chain[:5]), wantErr: ledger.ErrChainConflict},
	}

	t.Log("Given the need to pick the authoritative chain between two histories.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen choosing for case %q.", testID, tst.name)
			{
				f := func(t *testing.T) {
					got, err := ledger.Choose(tst.local, tst.remote, "0", noEv)

					if tst.wantErr != nil {
						if !errors.Is(err, tst.wantErr) {
							t.Fatalf("\t%s\tTest %d:\tShould surface the conflict: got %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould surface the conflict.", success, testID)
						return
					}

					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould choose without error: %v", failed, testID, err)
					}

					if len(got) != len(tst.want) || got[len(got)-1].Hash != tst.want[len(tst.want)-1].Hash {
						t.Logf("\t\tTest %d:\tgot: len %d tail %s", testID, len(got), got[len(got)-1].Hash)
						t.Logf("\t\tTest %d:\texp: len %d tail %s", testID, len(tst.want), tst.want[len(tst.want)-1].Hash)
						t.Fatalf("\t%s\tTest %d:\tShould select the expected chain.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould select the expected chain.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}
