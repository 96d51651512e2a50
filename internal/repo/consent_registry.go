package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/miradorstack/learnsense/internal/cache"
)

// ErrConsentUnknown reports that the registry has no record for the learner.
var ErrConsentUnknown = errors.New("consent record not found")

// ErrInvalidLearnerID reports an id that cannot name a single registry resource.
var ErrInvalidLearnerID = errors.New("invalid learner id")

// ConsentRecord is the registry's view of a learner's consent.
type ConsentRecord struct {
	LearnerID    string     `json:"learner_id"`
	ConsentGiven bool       `json:"consent_given"`
	ConsentDate  *time.Time `json:"consent_date,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

// Valid reports whether the record grants consent right now.
func (r ConsentRecord) Valid() bool {
	return r.ConsentGiven && r.RevokedAt == nil
}

// ConsentRegistryClient looks up learner consent in an external registry.
type ConsentRegistryClient struct {
	baseURL    string
	lookupPath string
	httpClient *http.Client
	cache      cache.Provider
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewConsentRegistryClient constructs a client targeting the configured registry.
func NewConsentRegistryClient(baseURL, lookupPath string, timeout time.Duration, cacheProvider cache.Provider, cacheTTL time.Duration, logger *slog.Logger) *ConsentRegistryClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsentRegistryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		lookupPath: lookupPath,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheProvider,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Enabled reports whether a registry endpoint is configured.
func (c *ConsentRegistryClient) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// Lookup fetches a learner's consent record, consulting the cache first.
func (c *ConsentRegistryClient) Lookup(ctx context.Context, learnerID string) (ConsentRecord, error) {
	if !c.Enabled() {
		return ConsentRecord{}, fmt.Errorf("consent registry base URL not configured")
	}
	target, err := c.lookupURL(learnerID)
	if err != nil {
		return ConsentRecord{}, err
	}

	key := consentCacheKey(learnerID)
	if cached, err := c.cache.Get(ctx, key); err == nil {
		var rec ConsentRecord
		if err := json.Unmarshal(cached, &rec); err == nil {
			return rec, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("consent cache read failed", slog.String("learner_id", learnerID), slog.Any("error", err))
	}

	rec, err := c.fetch(ctx, target, learnerID)
	if err != nil {
		return ConsentRecord{}, err
	}

	if data, err := json.Marshal(rec); err == nil && c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
			c.logger.Warn("consent cache write failed", slog.String("learner_id", learnerID), slog.Any("error", err))
		}
	}
	return rec, nil
}

func (c *ConsentRegistryClient) fetch(ctx context.Context, target, learnerID string) (ConsentRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ConsentRecord{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ConsentRecord{}, fmt.Errorf("consent registry request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ConsentRecord{}, ErrConsentUnknown
	default:
		return ConsentRecord{}, fmt.Errorf("consent registry returned %s", resp.Status)
	}

	var rec ConsentRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return ConsentRecord{}, fmt.Errorf("decode consent record: %w", err)
	}
	if rec.LearnerID == "" {
		rec.LearnerID = learnerID
	}
	return rec, nil
}

// lookupURL builds {base}{path}/{id}. The id must be a single path segment;
// separators and dot segments are rejected so one learner can never resolve
// to another learner's record.
func (c *ConsentRegistryClient) lookupURL(learnerID string) (string, error) {
	if learnerID == "" || learnerID == "." || learnerID == ".." || strings.ContainsAny(learnerID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLearnerID, learnerID)
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse consent registry URL: %w", err)
	}
	dir := path.Join("/", u.Path, strings.Trim(c.lookupPath, "/"))
	if dir == "/" {
		dir = ""
	}
	u.Path = dir + "/" + learnerID
	u.RawPath = (&url.URL{Path: dir}).EscapedPath() + "/" + url.PathEscape(learnerID)
	return u.String(), nil
}

func consentCacheKey(learnerID string) string {
	return cache.Key("consent", learnerID)
}
