// Package detector implements pattern-based secret detection, redaction
// and restoration over a pattern registry.
package detector

import (
	"sort"
	"strings"

	"github.com/hfi/llm-secret-redactor/internal/pattern"
	"github.com/hfi/llm-secret-redactor/pkg/placeholder"
)

// minSecretLength rejects trivially short matches unless the pattern
// explicitly allows them (marker-style patterns like a private key header).
const minSecretLength = 10

// fallbackEntropyPenalty is added to a pattern's entropy floor when the
// pattern matched without keyword support. Generic high-entropy patterns
// produce most false positives; without a keyword in the surrounding text
// they must clear a stricter bar.
const fallbackEntropyPenalty = 0.5

// DetectedSecret is one accepted match within a single Detect call.
type DetectedSecret struct {
	// Value is the matched secret substring.
	Value string
	// Placeholder is the deterministic stand-in for Value.
	Placeholder string
	// PatternKey is the registry key of the owning pattern. Policy lookups
	// use this key directly, never a string derived from the placeholder.
	PatternKey string
	// PatternName is the owning pattern's display name.
	PatternName string
	// Start and End delimit the half-open match span in the source text.
	Start int
	End   int
}

// Detector scans text against a pattern registry. It is stateless and safe
// for concurrent use; the registry synchronizes its own rare writes.
type Detector struct {
	registry *pattern.Registry
}

// New returns a detector over the given registry.
func New(registry *pattern.Registry) *Detector {
	return &Detector{registry: registry}
}

// Registry returns the underlying pattern registry.
func (d *Detector) Registry() *pattern.Registry {
	return d.registry
}

// Detect returns all accepted secrets in text, ordered by descending start
// offset so that sequential in-place replacement never invalidates
// later offsets. Accepted spans are pairwise disjoint: patterns with
// keyword support are processed first and earlier acceptances win.
func (d *Detector) Detect(text string) []DetectedSecret {
	candidates := d.registry.Candidates(strings.ToLower(text))
	snapshot := d.registry.Patterns()

	// Keyword-backed patterns first, then entropy-gated patterns as a
	// stricter fallback pass. Registration order breaks ties within each
	// group.
	type checked struct {
		p          pattern.SecretPattern
		hasKeyword bool
	}
	toCheck := make([]checked, 0, len(snapshot))
	for _, p := range snapshot {
		if candidates[p.Key] {
			toCheck = append(toCheck, checked{p, true})
		}
	}
	for _, p := range snapshot {
		if !candidates[p.Key] && p.MinEntropy > 0 {
			toCheck = append(toCheck, checked{p, false})
		}
	}

	var detected []DetectedSecret
	var accepted [][2]int

	for _, c := range toCheck {
		matches := c.p.Regexp.FindAllStringSubmatchIndex(text, -1)
		for _, m := range matches {
			start, end := m[0], m[1]
			secret := text[start:end]
			if len(m) >= 4 && m[2] >= 0 {
				secret = text[m[2]:m[3]]
			}

			if overlaps(accepted, start, end) {
				continue
			}
			if len(secret) < minSecretLength && !c.p.AllowShort {
				continue
			}
			if c.p.MinEntropy > 0 {
				entropy := shannonEntropy(secret)
				if entropy < c.p.MinEntropy {
					continue
				}
				if !c.hasKeyword && entropy < c.p.MinEntropy+fallbackEntropyPenalty {
					continue
				}
			}

			detected = append(detected, DetectedSecret{
				Value:       secret,
				Placeholder: placeholder.Generate(c.p.Prefix, secret),
				PatternKey:  c.p.Key,
				PatternName: c.p.Name,
				Start:       start,
				End:         end,
			})
			accepted = append(accepted, [2]int{start, end})
		}
	}

	sort.Slice(detected, func(i, j int) bool {
		return detected[i].Start > detected[j].Start
	})
	return detected
}

func overlaps(accepted [][2]int, start, end int) bool {
	for _, span := range accepted {
		if start < span[1] && end > span[0] {
			return true
		}
	}
	return false
}

// Redact replaces every detected secret with its placeholder and returns
// the redacted text together with the placeholder-to-secret mapping.
func (d *Detector) Redact(text string) (string, map[string]string) {
	detected := d.Detect(text)
	mapping := make(map[string]string, len(detected))
	redacted := text

	// Detections arrive in descending start order, so earlier replacements
	// never shift the offsets still to be applied.
	for _, s := range detected {
		redacted = redacted[:s.Start] + s.Placeholder + redacted[s.End:]
		mapping[s.Placeholder] = s.Value
	}
	return redacted, mapping
}

// Restore replaces placeholders in text with their original values. The
// exact substring is tried first; when a cooperating model has rewritten
// the prefix word around the digest, any placeholder-shaped token carrying
// the same digest is replaced instead.
func (d *Detector) Restore(text string, mapping map[string]string) string {
	restored := text
	for ph, original := range mapping {
		if strings.Contains(restored, ph) {
			restored = strings.ReplaceAll(restored, ph, original)
			continue
		}
		digest, ok := placeholder.DigestSuffix(ph)
		if !ok {
			continue
		}
		// Literal replacement: secret values must never be interpreted as
		// expansion templates.
		restored = placeholder.DriftPattern(digest).ReplaceAllLiteralString(restored, original)
	}
	return restored
}
