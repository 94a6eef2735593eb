package auth

import (
	"crypto/sha256"
	"crypto/subtle"
)

// BotKey authenticates the Telegram bot when it requests login codes.
// Only a digest of the configured key is held.
type BotKey struct {
	hash [sha256.Size]byte
	set  bool
}

func NewBotKey(rawKey string) *BotKey {
	if rawKey == "" {
		return &BotKey{}
	}
	return &BotKey{hash: sha256.Sum256([]byte(rawKey)), set: true}
}

// Valid reports whether rawKey matches. An unconfigured key matches nothing.
func (k *BotKey) Valid(rawKey string) bool {
	if !k.set || rawKey == "" {
		return false
	}
	got := sha256.Sum256([]byte(rawKey))
	return subtle.ConstantTimeCompare(got[:], k.hash[:]) == 1
}
