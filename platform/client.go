// Package platform is the typed REST client for the trading platform API.
// Every endpoint shares the { success, data, error?, total? } envelope;
// fetchers validate the envelope, map snake_case payloads into models, and
// attach a per-resource cache policy (TTL + invalidation tag). Retry and
// backoff live here, beneath the typed fetchers; the store above never
// retries.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"roomsync/cache"
	"roomsync/metrics"
	"roomsync/models"
)

// ErrNotFound classifies a 404 response. The only endpoint where absence is
// meaningful is the weekly video ("no current video").
var ErrNotFound = errors.New("resource not found")

// APIError is a non-2xx or failed-envelope response from the platform.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform API error (%d): %s", e.StatusCode, e.Message)
}

// Client is the shared HTTP core for all platform endpoints.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	cache   *cache.RedisClient
	log     zerolog.Logger

	maxRetries int
	retryDelay time.Duration
	policies   CachePolicies
}

// Option configures a Client.
type Option func(*Client)

// WithRetry overrides the retry count and initial backoff delay.
func WithRetry(retries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = retries
		c.retryDelay = delay
	}
}

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a platform API client. A nil redis client disables
// snapshot caching.
func NewClient(baseURL, token string, redis *cache.RedisClient, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		cache:      redis,
		log:        log.With().Str("component", "platform").Logger(),
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// cachedEnvelope is what gets stored in redis for cacheable GETs: the raw
// data payload plus the envelope total, so pagination survives a cache hit.
type cachedEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Total *int            `json:"total,omitempty"`
}

// cachePolicy attaches a TTL and an invalidation tag to one GET call site.
type cachePolicy struct {
	key string
	ttl time.Duration
	tag string
}

// getEnvelope performs one GET with retry, envelope validation, and optional
// caching. Retries cover transport errors and 5xx responses; 4xx responses
// are returned immediately.
func (c *Client) getEnvelope(ctx context.Context, path string, query url.Values, policy *cachePolicy) (*cachedEnvelope, error) {
	if policy != nil && c.cache != nil {
		var hit cachedEnvelope
		if err := c.cache.Get(ctx, policy.key, &hit); err == nil {
			metrics.CacheHits.WithLabelValues("hit").Inc()
			return &hit, nil
		}
		metrics.CacheHits.WithLabelValues("miss").Inc()
	}

	env, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	result := &cachedEnvelope{Data: env.Data, Total: env.Total}
	if policy != nil && c.cache != nil {
		if err := c.cache.SetTagged(ctx, policy.key, result, policy.ttl, policy.tag); err != nil {
			c.log.Warn().Str("key", policy.key).Err(err).Msg("snapshot cache write failed")
		}
	}
	return result, nil
}

// do issues one request (with retry) and validates the envelope.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (*models.Envelope, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			env, decodeErr := decodeResponse(resp)
			if decodeErr == nil {
				return env, nil
			}
			// Only 5xx is worth retrying; 4xx and envelope failures are final.
			var apiErr *APIError
			if errors.As(decodeErr, &apiErr) && apiErr.StatusCode >= 500 {
				lastErr = decodeErr
			} else {
				return nil, decodeErr
			}
		}

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return nil, fmt.Errorf("%s %s failed after %d attempts: %w", method, path, c.maxRetries, lastErr)
}

func decodeResponse(resp *http.Response) (*models.Envelope, error) {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var env models.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "request rejected"
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &env, nil
}

// invalidate drops a cache tag group after a mutation. Best effort.
func (c *Client) invalidate(ctx context.Context, tag string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateTag(ctx, tag); err != nil {
		c.log.Warn().Str("tag", tag).Err(err).Msg("cache invalidation failed")
	}
}
