// Package digest computes content-addressed identifiers for patterns and
// full matches.
//
// Every digest is SHA-256 over a domain prefix, a NUL separator and the
// payload, hex encoded. The version suffix on each domain leaves room for a
// future algorithm change without colliding with stored keys.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/littleponywork/IPMES/internal/match"
	"github.com/littleponywork/IPMES/internal/pattern"
)

const (
	DomainPattern = "ipmes/pattern/v1"
	DomainMatch   = "ipmes/match/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Pattern returns the digest of p's universal form. Two patterns with the
// same edges, signatures, parents and regex mode share a digest regardless
// of the file encoding they were loaded from.
func Pattern(p *pattern.Pattern) (string, error) {
	data, err := json.Marshal(p.ToSpec())
	if err != nil {
		return "", fmt.Errorf("digest pattern: %w", err)
	}
	return hashWithDomain(DomainPattern, data), nil
}

// MustPattern is like Pattern but panics on error.
// Use only in tests or when the pattern is known to be valid.
func MustPattern(p *pattern.Pattern) string {
	d, err := Pattern(p)
	if err != nil {
		panic(err)
	}
	return d
}

// MatchKey identifies a full match by the data edges bound to each pattern
// edge. Timestamps are excluded: the same binding found twice is one match.
func MatchKey(m match.FullMatch) string {
	return hashWithDomain(DomainMatch, []byte(m.Key()))
}
