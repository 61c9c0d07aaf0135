package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidToken = errors.New("invalid token")

// SignValue returns value with an HMAC-SHA256 signature appended, suitable for a
// cookie or bearer token.
func SignValue(secret []byte, value string) string {
	return value + "." + sign(secret, value)
}

// VerifyValue checks the signature produced by SignValue and returns the value.
func VerifyValue(secret []byte, token string) (string, error) {
	idx := strings.LastIndexByte(token, '.')
	if idx <= 0 || idx == len(token)-1 {
		return "", ErrInvalidToken
	}
	value := token[:idx]
	signature := token[idx+1:]

	expected := sign(secret, value)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", ErrInvalidToken
	}
	return value, nil
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}

func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
