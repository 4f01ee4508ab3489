package verify

import (
	"crypto/ed25519"
	"encoding/hex"
)

// Discord reports whether an interaction request carries a valid Ed25519
// signature over timestamp || body. Any hex-decode failure or key/signature
// size mismatch is a verification failure, never a panic.
func Discord(publicKeyHex, signatureHex, timestamp string, body []byte) bool {
	key, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)

	return ed25519.Verify(ed25519.PublicKey(key), msg, sig)
}
