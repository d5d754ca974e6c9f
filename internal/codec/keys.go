package codec

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// hkdfSalt and hkdfInfo are fixed per-application constants (spec.md
// section 4.1): "A shared password is stretched with HKDF-SHA256 using a
// fixed per-application salt and info string "session-key"". The salt need
// not be secret — it only needs to be stable across every peer in the
// cluster, which a compile-time constant guarantees.
var hkdfSalt = []byte("mouseshare-v1-session-salt")

const hkdfInfo = "session-key"

// DeriveSessionKey stretches a shared password into a 256-bit AES-GCM key.
// cmd/main.go calls this once at startup when encryption is enabled and
// hands the key to Transport, which builds every connection's Codec from it;
// the key is never rotated while the process runs.
func DeriveSessionKey(password string) ([]byte, error) {
	kdf := hkdf.New(sha256.New, []byte(password), hkdfSalt, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}
