package transport_test

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/brendisurfs/gossipchain/foundation/blockchain/peer"
	"github.com/brendisurfs/gossipchain/foundation/transport"
	"github.com/ethereum/go-ethereum/crypto"
)

func genKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()

	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Test mesh:\tShould be able to generate a key: %v", err)
	}

	return pk
}

func waitEvent(t *testing.T, events <-chan transport.Event, kind string) transport.Event {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Kind == kind {
				return event
			}
		case <-deadline:
			t.Fatalf("Test mesh:\tShould observe a %s event in time.", kind)
		}
	}
}

func Test_MeshPublish(t *testing.T) {
	recvKey := genKey(t)
	sendKey := genKey(t)
	recvID := peer.IDFromKey(recvKey)
	sendID := peer.IDFromKey(sendKey)

	receiver, err := transport.New(transport.Config{
		ListenAddr: "127.0.0.1:0",
		SelfID:     recvID,
		PrivateKey: recvKey,
	})
	if err != nil {
		t.Fatalf("Test mesh:\tShould construct the receiving transport: %v", err)
	}
	if err := receiver.Listen(); err != nil {
		t.Fatalf("Test mesh:\tShould bind the receiving transport: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		receiver.Shutdown(ctx)
	}()

	sender, err := transport.New(transport.Config{
		ListenAddr: "127.0.0.1:0",
		SelfID:     sendID,
		PrivateKey: sendKey,
	})
	if err != nil {
		t.Fatalf("Test mesh:\tShould construct the sending transport: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sender.Shutdown(ctx)
	}()

	sender.Dial(peer.Peer{
		ID:   recvID,
		Host: fmt.Sprintf("127.0.0.1:%d", receiver.Port()),
	})

	waitEvent(t, sender.Events(), transport.EventConnected)

	if err := sender.Publish("chains", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Test mesh:\tShould publish without error: %v", err)
	}

	select {
	case msg := <-receiver.Inbox():
		if msg.Topic != "chains" {
			t.Fatalf("Test mesh:\tShould deliver on the published topic: got %s", msg.Topic)
		}
		if msg.From != sendID {
			t.Fatalf("Test mesh:\tShould identify the verified sender: got %s", msg.From)
		}
		if !strings.Contains(string(msg.Payload), `"k":"v"`) {
			t.Fatalf("Test mesh:\tShould carry the payload intact: got %s", msg.Payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Test mesh:\tShould deliver the publish in time.")
	}

	event := waitEvent(t, receiver.Events(), transport.EventPeerLive)
	if event.Peer != sendID {
		t.Fatalf("Test mesh:\tShould report the sending peer live: got %s", event.Peer)
	}
}
