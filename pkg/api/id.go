package api

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const (
	callIDLength = 24
	charset      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	completionIDPrefix = "chatcmpl-"
	callIDPrefix       = "call_"
)

// NewCompletionID generates a response/stream ID: "chatcmpl-" followed by
// 12 random bytes in hex.
func NewCompletionID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return completionIDPrefix + hex.EncodeToString(b)
}

// NewCallID generates a synthetic tool call ID with the "call_" prefix
// followed by 24 random alphanumeric characters.
func NewCallID() string {
	return callIDPrefix + randomAlphanumeric(callIDLength)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
