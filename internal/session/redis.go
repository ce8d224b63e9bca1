package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// storedEntry is the wire form of one mapping entry. Entries are stored as
// an ordered JSON list so per-session trimming keeps chronological order.
type storedEntry struct {
	Placeholder string `json:"p"`
	Secret      string `json:"s"`
}

// RedisStore is a Redis-backed Store. Each session is one JSON-encoded
// entry list under a prefixed key; expiry is delegated to Redis TTL, which
// is refreshed on every access. The global session cap is not enforced
// here: TTL bounds memory on the Redis side.
type RedisStore struct {
	client     *redis.Client
	ttl        time.Duration
	maxSecrets int
	prefix     string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(address, password string, db, maxSecretsPerSession int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client:     client,
		ttl:        ttl,
		maxSecrets: maxSecretsPerSession,
		prefix:     "redactor:session:",
	}, nil
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) load(ctx context.Context, sessionID string) ([]storedEntry, bool, error) {
	raw, err := r.client.Get(ctx, r.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	var entries []storedEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return entries, true, nil
}

// StoreMapping merges new entries into the session blob and refreshes its
// TTL. The read-modify-write is not atomic; one session is only ever
// written by its own request cycle, so contention is not a concern.
func (r *RedisStore) StoreMapping(ctx context.Context, sessionID string, mapping map[string]string) error {
	entries, _, err := r.load(ctx, sessionID)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(mapping))
	for ph := range mapping {
		keys = append(keys, ph)
	}
	sort.Strings(keys)
	for _, ph := range keys {
		updated := false
		for i := range entries {
			if entries[i].Placeholder == ph {
				entries[i].Secret = mapping[ph]
				updated = true
				break
			}
		}
		if !updated {
			entries = append(entries, storedEntry{Placeholder: ph, Secret: mapping[ph]})
		}
	}
	if over := len(entries) - r.maxSecrets; over > 0 {
		entries = entries[over:]
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	if err := r.client.Set(ctx, r.key(sessionID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("store session %s: %w", sessionID, err)
	}
	return nil
}

// GetMapping returns the session's mapping and refreshes its TTL.
func (r *RedisStore) GetMapping(ctx context.Context, sessionID string) (map[string]string, bool, error) {
	entries, ok, err := r.load(ctx, sessionID)
	if err != nil || !ok {
		return nil, false, err
	}

	r.client.Expire(ctx, r.key(sessionID), r.ttl)

	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Placeholder] = e.Secret
	}
	return out, true, nil
}

// ClearSession removes the session unconditionally.
func (r *RedisStore) ClearSession(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}

// Stats walks the session keyspace. This is O(sessions) and meant for the
// management endpoint, not the hot path.
func (r *RedisStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue // expired between scan and get
		}
		var entries []storedEntry
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			continue
		}
		st.SessionCount++
		st.TotalSecrets += len(entries)
	}
	if err := iter.Err(); err != nil {
		return st, fmt.Errorf("scan sessions: %w", err)
	}
	if st.SessionCount > 0 {
		st.AvgSecretsPerSession = float64(st.TotalSecrets) / float64(st.SessionCount)
	}
	return st, nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
