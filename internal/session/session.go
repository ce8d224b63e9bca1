// Package session tracks the placeholder-to-secret mappings accumulated
// by each conversation, with TTL- and capacity-based eviction.
package session

import "context"

// Stats summarizes live store contents.
type Stats struct {
	SessionCount         int     `json:"session_count"`
	TotalSecrets         int     `json:"total_secrets"`
	AvgSecretsPerSession float64 `json:"avg_secrets_per_session"`
}

// Store is the session mapping store consumed by the redaction middleware.
// Implementations must be safe for concurrent use.
type Store interface {
	// StoreMapping merges new placeholder-to-secret entries into the
	// session, creating it if absent. Oldest entries are dropped first when
	// the per-session cap would be exceeded.
	StoreMapping(ctx context.Context, sessionID string, mapping map[string]string) error

	// GetMapping returns a copy of the session's mapping, or ok=false when
	// the session is unknown or expired. Callers never observe live
	// internal state.
	GetMapping(ctx context.Context, sessionID string) (map[string]string, bool, error)

	// ClearSession removes the session unconditionally.
	ClearSession(ctx context.Context, sessionID string) error

	// Stats reports store contents after expiry has been applied.
	Stats(ctx context.Context) (Stats, error)

	// Close releases store resources.
	Close() error
}
