package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}

// GeneratePassword returns a random password drawn from an alphabet without
// look-alike characters, safe to embed in connection URLs unescaped.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid password length: %d", length)
	}
	buf := make([]byte, length)
	for i := range buf {
		idx, err := randIndex(len(passwordAlphabet))
		if err != nil {
			return "", err
		}
		buf[i] = passwordAlphabet[idx]
	}
	return string(buf), nil
}
