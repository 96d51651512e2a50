package repo

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/miradorstack/learnsense/internal/cache"
)

// fakeRegistry answers every consent lookup with one canned reply and keeps
// the requests it saw.
type fakeRegistry struct {
	mu       sync.Mutex
	status   int
	body     string
	requests []*http.Request
}

func newFakeRegistry(status int, body string) *fakeRegistry {
	return &fakeRegistry{status: status, body: body}
}

func (f *fakeRegistry) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return &http.Response{
		StatusCode: f.status,
		Status:     http.StatusText(f.status),
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Request:    req,
	}, nil
}

func (f *fakeRegistry) hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeRegistry) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

// withRegistry points client at a fake registry.
func withRegistry(client *ConsentRegistryClient, f *fakeRegistry) *ConsentRegistryClient {
	client.httpClient = &http.Client{Transport: f}
	return client
}

// consentCache is an in-memory cache.Provider that also records TTLs per key.
type consentCache struct {
	mu    sync.Mutex
	items map[string][]byte
	ttls  map[string]time.Duration
}

func newConsentCache() *consentCache {
	return &consentCache{items: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *consentCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

func (c *consentCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = append([]byte(nil), value...)
	c.ttls[key] = ttl
	return nil
}

func (c *consentCache) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.items[key]; taken {
		return false, nil
	}
	c.items[key] = append([]byte(nil), value...)
	c.ttls[key] = ttl
	return true, nil
}

func (c *consentCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	delete(c.ttls, key)
	return nil
}

func (c *consentCache) Close() error { return nil }
