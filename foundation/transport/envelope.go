package transport

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// gossipStamp salts every envelope signature so signatures produced here
// are never valid in any other protocol.
const gossipStamp = "\x19Gossipchain Signed Message:\n32"

// Envelope is the signed frame every gossip payload travels in.
type Envelope struct {
	Topic   string          `json:"topic" validate:"required"`
	From    string          `json:"from" validate:"required"`
	TraceID string          `json:"trace_id" validate:"required,uuid"`
	Payload json.RawMessage `json:"payload" validate:"required"`
	Sig     string          `json:"sig" validate:"required"`
}

// NewEnvelope wraps the payload for a topic and signs it with the node key.
func NewEnvelope(topic string, from string, payload any, privateKey *ecdsa.PrivateKey) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}

	env := Envelope{
		Topic:   topic,
		From:    from,
		TraceID: uuid.NewString(),
		Payload: data,
	}

	stamp, err := env.stamp()
	if err != nil {
		return Envelope{}, err
	}

	sig, err := crypto.Sign(stamp, privateKey)
	if err != nil {
		return Envelope{}, fmt.Errorf("sign envelope: %w", err)
	}

	env.Sig = hexutil.Encode(sig)

	return env, nil
}

// VerifySender checks the signature against the claimed sender and returns
// the recovered peer id.
func (env Envelope) VerifySender() (string, error) {
	stamp, err := env.stamp()
	if err != nil {
		return "", err
	}

	sig, err := hexutil.Decode(env.Sig)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", errors.New("signature has the wrong length")
	}

	publicKey, err := crypto.SigToPub(stamp, sig)
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", err)
	}

	from := crypto.PubkeyToAddress(*publicKey).String()
	if from != env.From {
		return "", fmt.Errorf("signature recovers to %s, envelope claims %s", from, env.From)
	}

	return from, nil
}

// stamp produces the 32 bytes the signature covers. The payload bytes are
// embedded as marshaled, so both sides hash identical input.
func (env Envelope) stamp() ([]byte, error) {
	in := struct {
		Topic   string          `json:"topic"`
		From    string          `json:"from"`
		TraceID string          `json:"trace_id"`
		Payload json.RawMessage `json:"payload"`
	}{
		Topic:   env.Topic,
		From:    env.From,
		TraceID: env.TraceID,
		Payload: env.Payload,
	}

	v, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	hash := crypto.Keccak256(v)

	return crypto.Keccak256([]byte(gossipStamp), hash), nil
}
