package transport_test

import (
	"testing"

	"github.com/brendisurfs/gossipchain/foundation/blockchain/peer"
	"github.com/brendisurfs/gossipchain/foundation/transport"
	"github.com/ethereum/go-ethereum/crypto"
)

func Test_EnvelopeSignVerify(t *testing.T) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Test envelope:\tShould be able to generate a key: %v", err)
	}
	self := peer.IDFromKey(pk)

	env, err := transport.NewEnvelope("blocks", self, map[string]string{"hello": "world"}, pk)
	if err != nil {
		t.Fatalf("Test envelope:\tShould be able to build an envelope: %v", err)
	}

	from, err := env.VerifySender()
	if err != nil {
		t.Fatalf("Test envelope:\tShould verify a clean envelope: %v", err)
	}
	if from != self {
		t.Logf("Test envelope:\tgot: %s", from)
		t.Logf("Test envelope:\texp: %s", self)
		t.Fatalf("Test envelope:\tShould recover the signing peer id.")
	}

	tampered := env
	tampered.Payload = []byte(`{"hello":"evil"}`)
	if _, err := tampered.VerifySender(); err == nil {
		t.Fatalf("Test envelope:\tShould reject a tampered payload.")
	}

	claimed := env
	claimed.From = "0x0000000000000000000000000000000000000000"
	if _, err := claimed.VerifySender(); err == nil {
		t.Fatalf("Test envelope:\tShould reject a forged sender claim.")
	}
}
