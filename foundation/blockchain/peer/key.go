package peer

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
)

// IDFromKey derives the peer identifier for an ECDSA identity key. The id
// doubles as the address envelope signatures recover to.
func IDFromKey(privateKey *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(privateKey.PublicKey).String()
}
