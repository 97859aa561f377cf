package cryptox

import "golang.org/x/crypto/argon2"

// KDFParams are the argon2id cost parameters used to stretch the master
// secret into a per-token key.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams is one pass over 64 MiB with four lanes.
var DefaultKDFParams = KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}

// DeriveKey stretches secret with salt into a 32-byte AES-256 key.
func DeriveKey(secret, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(secret, salt, p.Time, p.Memory, p.Threads, keySize)
}
