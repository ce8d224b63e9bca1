// Package placeholder generates and recognizes the reversible stand-in
// tokens substituted for detected secrets.
//
// Wire format: <PREFIX_REDACTED_hhhh> where PREFIX is the pattern's
// uppercase prefix word and hhhh is a 4-character lowercase hex digest of
// the secret's content. The format is part of the external contract and
// must not change.
package placeholder

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// DigestLen is the number of hex characters of the content digest carried
// in a placeholder.
const DigestLen = 4

const marker = "_REDACTED_"

// anyPlaceholder matches any well-formed placeholder regardless of prefix.
var anyPlaceholder = regexp.MustCompile(`<[A-Z][A-Z0-9_]*_REDACTED_[a-f0-9]{4}>`)

// suffixPattern extracts the digest from a well-formed placeholder.
var suffixPattern = regexp.MustCompile(`_REDACTED_([a-f0-9]{4})>`)

// Digest returns the fixed-width content digest for a secret value. The
// same value always yields the same digest, which is what makes redaction
// stable across retries and sessions.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])[:DigestLen]
}

// Generate builds the placeholder for a secret under the given prefix.
func Generate(prefix, secret string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(marker) + DigestLen + 2)
	b.WriteByte('<')
	b.WriteString(prefix)
	b.WriteString(marker)
	b.WriteString(Digest(secret))
	b.WriteByte('>')
	return b.String()
}

// DigestSuffix extracts the digest carried by a placeholder. Returns false
// when s does not end in a recognizable digest suffix.
func DigestSuffix(s string) (string, bool) {
	m := suffixPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DriftPattern returns a matcher for any placeholder carrying the given
// digest, tolerating prefix drift. Models occasionally rewrite the prefix
// word while preserving the token shape; the digest is what identifies the
// mapping entry.
func DriftPattern(digest string) *regexp.Regexp {
	return regexp.MustCompile(`<[A-Z_]*_REDACTED_` + regexp.QuoteMeta(digest) + `>`)
}

// Find returns all well-formed placeholders in text.
func Find(text string) []string {
	return anyPlaceholder.FindAllString(text, -1)
}

// Contains reports whether text holds at least one well-formed placeholder.
func Contains(text string) bool {
	return anyPlaceholder.MatchString(text)
}
