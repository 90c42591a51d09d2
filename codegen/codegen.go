// Package codegen produces the short codes that identify links.
// Generators must be safe for concurrent use.
package codegen

import (
	"crypto/rand"
	"errors"
)

const (
	// alphabet is the full base62 set; with the default length of 7 the
	// keyspace is 62^7 (~3.5 trillion), so random collisions are rare and
	// handled by an insert-retry in the caller rather than here.
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// DefaultLength is the short-code length used when none is configured.
const DefaultLength = 7

// Generator generates short codes of a fixed length.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

// base62Generator implements Generator using random base62 characters.
type base62Generator struct{}

// NewBase62 returns a new base62 short-code generator.
func NewBase62() Generator {
	return &base62Generator{}
}

// Generate returns a random base62 string of the given length.
func (g *base62Generator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}

	return string(b), nil
}
