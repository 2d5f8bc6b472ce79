// Package random generates short codes from a fixed 62-character alphabet.
//
// Each output character is Alphabet[b % 62] for one random byte b. Since 62 does
// not divide 256, the first 8 characters of the alphabet are drawn slightly more
// often (5/256 instead of 4/256). The skew is accepted for short codes.
package random

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Alphabet is the set of characters a short code is made of.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generator produces codes from an entropy source.
type Generator struct {
	src io.Reader
}

// NewGenerator returns a Generator reading from src. A nil src means crypto/rand.
func NewGenerator(src io.Reader) *Generator {
	if src == nil {
		src = rand.Reader
	}
	return &Generator{src: src}
}

// Generate returns a code of exactly length characters.
func (g *Generator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length %d", length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(g.src, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	for i, b := range buf {
		buf[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(buf), nil
}

// IsValid reports whether every character of code belongs to Alphabet.
func IsValid(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
