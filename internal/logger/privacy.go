package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
)

var (
	hashSalt string
	saltOnce sync.Once
)

// InitHashSalt loads the log hashing salt from the environment. Call once at
// startup, before anything logs identifiers. In production set LOG_HASH_SALT.
func InitHashSalt() {
	saltOnce.Do(func() {
		hashSalt = os.Getenv("LOG_HASH_SALT")
		if hashSalt == "" {
			hashSalt = "default-salt-change-in-production"
		}
	})
}

// HashUserID creates a privacy-preserving hash of a user ID so user actions
// can be traced across log lines without exposing the identifier itself.
func HashUserID(userID string) string {
	InitHashSalt()
	hash := sha256.Sum256([]byte(userID + ":" + hashSalt))
	return hex.EncodeToString(hash[:])[:8]
}

// RedactNINO masks a National Insurance number, keeping only the first two
// characters. NINOs are taxpayer-identifying and must never appear in logs.
func RedactNINO(nino string) string {
	if len(nino) <= 2 {
		return "<redacted>"
	}
	return nino[:2] + "*******"
}

// SanitizeDescription redacts transaction descriptions while preserving
// length information for debugging.
func SanitizeDescription(desc string) string {
	if desc == "" {
		return "<empty>"
	}
	return fmt.Sprintf("<redacted: %d chars>", len(desc))
}
