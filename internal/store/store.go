// Package store provides the durable key-value storage used for the
// scheduled prompt slot and the feedback queue.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// KV is a string-keyed blob store. Get returns (nil, nil) for a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// GetJSON decodes the value at key into a T. A missing, unreadable or
// corrupt value yields fallback; failures are logged and never returned.
func GetJSON[T any](ctx context.Context, kv KV, key string, fallback T) T {
	v, err := LoadJSON(ctx, kv, key, fallback)
	if err != nil {
		zap.L().Warn("store: read failed, using fallback",
			zap.String("key", key),
			zap.Error(err),
		)
		return fallback
	}
	return v
}

// LoadJSON is GetJSON for read-modify-write callers: a read error from kv
// is returned so the caller can abort without overwriting the stored value.
// A missing or corrupt value still yields fallback.
func LoadJSON[T any](ctx context.Context, kv KV, key string, fallback T) (T, error) {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return fallback, eris.Wrapf(err, "store: read %s", key)
	}
	if len(raw) == 0 {
		return fallback, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		zap.L().Warn("store: corrupt value, using fallback",
			zap.String("key", key),
			zap.Error(err),
		)
		return fallback, nil
	}
	return v, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON[T any](ctx context.Context, kv KV, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "store: marshal %s", key)
	}
	return kv.Set(ctx, key, raw)
}
