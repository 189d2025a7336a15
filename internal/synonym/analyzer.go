package synonym

import (
	"errors"
	"strings"
)

var errNoTokens = errors.New("term analyzed to no tokens")

// Analyzer turns a term into its token sequence: whitespace tokenization
// followed by optional lower-casing.
type Analyzer struct {
	IgnoreCase bool
}

// Analyze returns the tokens of term.
func (a Analyzer) Analyze(term string) []string {
	tokens := strings.Fields(term)
	if a.IgnoreCase {
		for i, token := range tokens {
			tokens[i] = strings.ToLower(token)
		}
	}
	return tokens
}

// Normalize returns the canonical form of term, its tokens joined by single spaces.
func (a Analyzer) Normalize(term string) (string, int, error) {
	tokens := a.Analyze(term)
	if len(tokens) == 0 {
		return "", 0, errNoTokens
	}
	return strings.Join(tokens, " "), len(tokens), nil
}
