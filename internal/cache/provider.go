// Package cache holds the byte cache shared by summaries and consent lookups,
// plus a short-lived lock used to stop replicas rebuilding the same entry.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix namespaces every key this service writes.
const KeyPrefix = "learnsense"

// Provider is the cache backend. SetNX must be atomic on shared backends.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// Key joins parts under KeyPrefix, e.g. Key("summary", id) is "learnsense:summary:<id>".
func Key(parts ...string) string {
	return KeyPrefix + ":" + strings.Join(parts, ":")
}

// Lock is a best-effort rebuild lock held in the cache.
type Lock struct {
	provider Provider
	key      string
	token    []byte
}

// TryLock claims key for ttl. ok is false when another holder already owns it.
func TryLock(ctx context.Context, p Provider, key string, ttl time.Duration) (lock *Lock, ok bool, err error) {
	token := []byte(uuid.NewString())
	ok, err = p.SetNX(ctx, key, token, ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Lock{provider: p, key: key, token: token}, true, nil
}

// Release drops the lock if this holder still owns it. A lock that expired and
// was claimed by someone else is left alone.
func (l *Lock) Release(ctx context.Context) error {
	current, err := l.provider.Get(ctx, l.key)
	if errors.Is(err, ErrCacheMiss) {
		return nil
	}
	if err != nil {
		return err
	}
	if string(current) != string(l.token) {
		return nil
	}
	return l.provider.Del(ctx, l.key)
}

// NoopProvider stores nothing. Every lock is granted since there is no peer to
// contend with.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
