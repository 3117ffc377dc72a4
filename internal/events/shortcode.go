package events

import (
	"math/rand/v2"
	"regexp"
)

// Lower-case letters and digits without 0, 1 and l.
const shortCodeAlphabet = "abcdefghijkmnopqrstuvwxyz23456789"

const (
	shortCodeLength      = 6
	maxShortCodeAttempts = 10
)

var shortCodePattern = regexp.MustCompile(`^[a-km-z2-9]{6}$`)

func generateShortCode() string {
	b := make([]byte, shortCodeLength)
	for i := range b {
		b[i] = shortCodeAlphabet[rand.IntN(len(shortCodeAlphabet))]
	}
	return string(b)
}

// ValidShortCode reports whether code could have been generated here.
func ValidShortCode(code string) bool {
	return shortCodePattern.MatchString(code)
}
