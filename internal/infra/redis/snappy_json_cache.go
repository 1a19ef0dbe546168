package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"

	"inkwell/internal/platform/cache"
)

// payloadVersion prefixes every stored value. Bump it when the cached shape
// changes; older payloads then read as misses.
const payloadVersion byte = 1

type bytesCacheClient interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// jsonStore keeps values of type T as versioned, snappy-compressed JSON.
type jsonStore[T any] struct {
	client bytesCacheClient
	ttl    time.Duration
}

func newJSONStore[T any](client bytesCacheClient, ttl time.Duration) *jsonStore[T] {
	return &jsonStore[T]{client: client, ttl: ttl}
}

func (s *jsonStore[T]) load(ctx context.Context, key string) (T, bool, error) {
	var zero T
	payload, err := s.client.GetBytes(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	if len(payload) == 0 || payload[0] != payloadVersion {
		return zero, false, nil
	}
	raw, err := snappy.Decode(nil, payload[1:])
	if err != nil {
		return zero, false, fmt.Errorf("snappy decode %s: %w", key, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, false, fmt.Errorf("json decode %s: %w", key, err)
	}
	return out, true, nil
}

func (s *jsonStore[T]) store(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json encode %s: %w", key, err)
	}
	payload := append([]byte{payloadVersion}, snappy.Encode(nil, raw)...)
	return s.client.SetBytes(ctx, key, payload, s.ttl)
}

func sha256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
