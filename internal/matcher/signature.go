package matcher

import (
	"fmt"
	"regexp"

	"github.com/littleponywork/IPMES/internal/pattern"
)

// SignatureMatcher decides whether an event signature matches a pattern
// edge, by literal equality or by a regular expression matching the whole
// signature. The mode is fixed per pattern.
type SignatureMatcher struct {
	useRegex bool
	literals []string
	regexes  []*regexp.Regexp
}

// NewSignatureMatcher prepares the signatures of every edge of p.
func NewSignatureMatcher(p *pattern.Pattern) (*SignatureMatcher, error) {
	m := &SignatureMatcher{useRegex: p.UseRegex}
	for _, e := range p.Graph.Edges() {
		if !p.UseRegex {
			m.literals = append(m.literals, e.Signature)
			continue
		}
		re, err := regexp.Compile(pattern.AnchoredRegex(e.Signature))
		if err != nil {
			return nil, fmt.Errorf("compile signature of edge %d: %w", e.ID, err)
		}
		m.regexes = append(m.regexes, re)
	}
	return m, nil
}

// Match reports whether sig matches pattern edge edgeID.
func (m *SignatureMatcher) Match(edgeID int, sig string) bool {
	if m.useRegex {
		return m.regexes[edgeID].MatchString(sig)
	}
	return m.literals[edgeID] == sig
}
