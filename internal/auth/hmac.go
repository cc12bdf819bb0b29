package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// GarbageLen is the length of the random hex blob returned for unknown
// keys and failed handshakes. Decoys share the shape of real values so an
// observer cannot enumerate device keys from the response alone.
const GarbageLen = 64

// ComputeHMACHex returns the lowercase hex HMAC-SHA256 of message under key.
func ComputeHMACHex(key, message string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// CanonicalString joins request fields with "|" in their fixed per-endpoint
// order. The field list is decided at compile time per operation, never
// assembled by introspection.
func CanonicalString(fields ...string) string {
	return strings.Join(fields, "|")
}

// RandomHex returns n hex characters from a CSPRNG. n must be even.
func RandomHex(n int) string {
	buf := make([]byte, n/2)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read only fails when the platform CSPRNG is broken.
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// GarbageHex returns a decoy value for anti-enumeration responses.
func GarbageHex() string {
	return RandomHex(GarbageLen)
}
