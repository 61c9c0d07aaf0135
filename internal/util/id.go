package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewToken returns prefix_<64 hex chars> backed by 32 random bytes.
func NewToken(prefix string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	if prefix == "" {
		return hex.EncodeToString(buf), nil
	}
	return prefix + "_" + hex.EncodeToString(buf), nil
}
