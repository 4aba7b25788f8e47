package tier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPattern rejects a malformed glob before any deletion is attempted.
var ErrInvalidPattern = errors.New("invalid key pattern")

// Key patterns use * as the sole metacharacter, matching zero or more
// characters. Everything else must come from the key alphabet.
const patternAlphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789:_-.*"

// ValidatePattern checks that pattern is a well-formed key glob.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	for _, r := range pattern {
		if !strings.ContainsRune(patternAlphabet, r) {
			return fmt.Errorf("%w: unexpected character %q", ErrInvalidPattern, r)
		}
	}
	return nil
}

// HasWildcard reports whether pattern needs expansion against the keyspace.
func HasWildcard(pattern string) bool {
	return strings.ContainsRune(pattern, '*')
}

// CompilePattern translates a key glob into an anchored regular expression.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	compiled, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return compiled, nil
}
