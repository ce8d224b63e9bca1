// Package pattern holds the registry of secret patterns used by the
// detector: the builtin catalog plus any custom patterns registered at
// runtime, with a keyword index for fast candidate narrowing.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// SecretPattern describes one secret family. Immutable after registration.
type SecretPattern struct {
	// Key is the registry key and the identifier policy configuration is
	// keyed by.
	Key string
	// Name is the human-readable pattern name used in logs and metrics.
	Name string
	// Regexp matches candidate secrets. If it has a capture group, group 1
	// is the secret value; the full match span is what gets replaced.
	Regexp *regexp.Regexp
	// Keywords are lowercase trigger words; a pattern is only tried on a
	// text that contains at least one of them, unless it declares an
	// entropy floor (then it is tried as a stricter fallback).
	Keywords []string
	// MinEntropy is the Shannon entropy floor for matches. Zero means no
	// entropy gate.
	MinEntropy float64
	// Prefix is the uppercase placeholder prefix word.
	Prefix string
	// AllowShort permits matches under the global 10-character minimum,
	// e.g. a private key header marker.
	AllowShort bool
}

// Registry is a read-mostly set of patterns safe for concurrent detection.
// Registration of custom patterns is a cold-path synchronized write.
type Registry struct {
	mu       sync.RWMutex
	patterns map[string]SecretPattern
	order    []string            // registration order, builtins first
	keywords map[string][]string // lowercase keyword -> pattern keys
}

// NewRegistry returns a registry preloaded with the builtin catalog.
func NewRegistry() *Registry {
	r := &Registry{
		patterns: make(map[string]SecretPattern),
		keywords: make(map[string][]string),
	}
	for _, p := range builtins() {
		r.put(p)
	}
	return r
}

// NewEmptyRegistry returns a registry with no patterns. Used by tests and
// callers that want a fully custom catalog.
func NewEmptyRegistry() *Registry {
	return &Registry{
		patterns: make(map[string]SecretPattern),
		keywords: make(map[string][]string),
	}
}

// put inserts or overwrites without locking. Callers hold r.mu.
func (r *Registry) put(p SecretPattern) {
	if _, exists := r.patterns[p.Key]; !exists {
		r.order = append(r.order, p.Key)
	}
	r.patterns[p.Key] = p
	r.rebuildKeywordIndex()
}

func (r *Registry) rebuildKeywordIndex() {
	idx := make(map[string][]string)
	for _, key := range r.order {
		for _, kw := range r.patterns[key].Keywords {
			kw = strings.ToLower(kw)
			idx[kw] = append(idx[kw], key)
		}
	}
	r.keywords = idx
}

// Register adds a custom pattern or overwrites an existing one by key.
// The expression is compiled here so a bad custom pattern surfaces at
// registration time, not during detection. An empty prefix defaults to the
// uppercased key; allowShort admits marker-style matches under the global
// minimum length.
func (r *Registry) Register(key, name, expr string, keywords []string, prefix string, minEntropy float64, allowShort bool) error {
	if key == "" {
		return fmt.Errorf("pattern key must not be empty")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("compile pattern %q: %w", key, err)
	}
	if prefix == "" {
		prefix = strings.ToUpper(key)
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(SecretPattern{
		Key:        key,
		Name:       name,
		Regexp:     re,
		Keywords:   lowered,
		MinEntropy: minEntropy,
		Prefix:     prefix,
		AllowShort: allowShort,
	})
	return nil
}

// Lookup returns the pattern registered under key.
func (r *Registry) Lookup(key string) (SecretPattern, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patterns[key]
	return p, ok
}

// Patterns returns a snapshot of all patterns in registration order.
func (r *Registry) Patterns() []SecretPattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SecretPattern, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.patterns[key])
	}
	return out
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}

// Candidates scans the lowercased text once against the keyword index and
// returns the set of pattern keys with keyword support.
func (r *Registry) Candidates(textLower string) map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hits := make(map[string]bool)
	for kw, keys := range r.keywords {
		if strings.Contains(textLower, kw) {
			for _, k := range keys {
				hits[k] = true
			}
		}
	}
	return hits
}
