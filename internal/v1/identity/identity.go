// Package identity derives the pseudonymous identifiers used across the
// server: the stable per-IP client id in production, random ids in
// development, and the wall-clock milliseconds stamped on protocol events.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Service derives client ids from connection metadata.
//
// In production mode the id is a stable function of the remote IP and two
// server-side salts, so the same user keeps their identity (and bans)
// across reconnects. Outside production every connection gets a fresh
// random id.
type Service struct {
	production bool
	salt1      string
	salt2      string
}

// NewService builds a Service. production selects the hashed derivation;
// the salts are only consulted in that mode.
func NewService(production bool, salt1, salt2 string) *Service {
	return &Service{
		production: production,
		salt1:      salt1,
		salt2:      salt2,
	}
}

// ClientID returns the 24-character hex id for a remote IP: the first 12
// bytes of SHA-256(salt1 || ip || salt2) in production, a random id
// otherwise.
func (s *Service) ClientID(ip string) string {
	if !s.production {
		return RandomID()
	}
	sum := sha256.Sum256([]byte(s.salt1 + ip + s.salt2))
	return hex.EncodeToString(sum[:12])
}

// RandomID returns 12 random bytes, hex encoded.
func RandomID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// NowMillis returns the current wall clock as UTC milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
