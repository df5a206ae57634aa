package post

import (
	"crypto/sha256"
	"encoding/hex"
)

// Salts are part of the service, never user supplied. Changing them
// invalidates every existing access hash.
const (
	preSalt  = "saltghdcexg"
	postSalt = "nhlfjeryhbbugvtj6vtt6i67vtiv998"
)

// Hash turns an access secret (username and password, concatenated) into
// the access hash that owns posts. Equal secrets always hash identically.
func Hash(secret string) string {
	h := sha256.New()
	h.Write([]byte(preSalt))
	h.Write([]byte(secret))
	h.Write([]byte(postSalt))
	return hex.EncodeToString(h.Sum(nil))
}
