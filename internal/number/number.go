// Package number canonicalizes raw phone handles into registry fingerprints.
//
// A fingerprint is the last ten digits of the handle with everything that is
// not a digit stripped. Matching on the tail sidesteps country-code and
// formatting differences ("+91 98765-43210" and "09876543210" collide on
// purpose). Handles shorter than ten digits keep whatever digits they have.
package number

import "strings"

const fingerprintLen = 10

// Fingerprint normalizes a raw caller or dialed handle. It returns "" only
// for handles that contain no digits at all; callers treat that as unknown
// and never blocked.
func Fingerprint(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > fingerprintLen {
		return digits[len(digits)-fingerprintLen:]
	}
	return digits
}
