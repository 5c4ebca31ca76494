// Package utils provides shared utilities for text, hashing, timing, and logging.
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeText collapses all runs of whitespace in s to single spaces and
// trims leading and trailing whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HashText returns the hex-encoded SHA-256 digest of the normalized form of s.
// Texts that differ only in whitespace hash identically.
func HashText(s string) string {
	return HashBytes([]byte(NormalizeText(s)))
}

// HashBytes returns the hex-encoded SHA-256 digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Truncate returns s truncated to maxLen runes, with "..." appended if
// truncated. Cutting on rune boundaries keeps multi-byte text valid.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
