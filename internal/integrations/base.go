package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pricebridge/internal/cache"
	"pricebridge/internal/logger"
	"pricebridge/internal/ratelimit"
)

// Base carries the per-instance state every adapter shares: the store it is
// bound to, its cache and rate limiter, call tracking, and the HTTP client.
// Adapters embed it by value composition rather than inheriting behavior.
type Base struct {
	StoreID      string
	PlatformName Platform
	Cache        *cache.Cache
	Limiter      *ratelimit.Limiter
	Tracker      *Tracker
	Logger       *logger.Logger
	Client       *http.Client

	ProductTTL  time.Duration
	CustomerTTL time.Duration
}

func NewBase(storeID string, platform Platform, c *cache.Cache, l *ratelimit.Limiter, t *Tracker, log *logger.Logger, ttl time.Duration) Base {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return Base{
		StoreID:      storeID,
		PlatformName: platform,
		Cache:        c,
		Limiter:      l,
		Tracker:      t,
		Logger:       log,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		ProductTTL:  ttl,
		CustomerTTL: ttl / 2,
	}
}

// CallResult is the raw outcome of one platform HTTP call.
type CallResult struct {
	Status int
	Header http.Header
	Body   []byte
}

// Call issues one HTTP request: rate-limit gate first, then the request,
// with the attempt recorded whatever happens. A 404 is a valid result, not
// an error; any other non-2xx status comes back as *UpstreamError.
func (b *Base) Call(ctx context.Context, endpoint, method, url string, headers map[string]string, payload interface{}) (*CallResult, error) {
	if err := b.Limiter.Acquire(ctx, string(b.PlatformName)); err != nil {
		return nil, fmt.Errorf("rate limit wait aborted: %w", err)
	}

	var result *CallResult
	err := b.Tracker.Observe(endpoint, func() error {
		var body io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("failed to marshal payload: %w", err)
			}
			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := b.Client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		result = &CallResult{
			Status: resp.StatusCode,
			Header: resp.Header,
			Body:   data,
		}

		if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
			return &UpstreamError{
				Platform: b.PlatformName,
				Endpoint: endpoint,
				Status:   resp.StatusCode,
				Body:     truncate(string(data), 512),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Decode unmarshals a call body, wrapping the error with the endpoint for
// log context.
func (b *Base) Decode(endpoint string, data []byte, out interface{}) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// ProductKey and CustomerKey namespace cache entries by store and platform
// so instances never leak reads across stores.
func (b *Base) ProductKey(id string) string {
	return cache.Key(b.StoreID, string(b.PlatformName), "product", id)
}

func (b *Base) CustomerKey(id string) string {
	return cache.Key(b.StoreID, string(b.PlatformName), "customer", id)
}

// CachedProduct consults the cache per FetchOptions. ForceRefresh always
// misses; MaxAge bounds how old the cached entry may be for this read, so
// an entry within its TTL but older than MaxAge is a miss too.
func (b *Base) CachedProduct(id string, opts FetchOptions) (*Product, bool) {
	if opts.ForceRefresh {
		return nil, false
	}
	v, ok := b.Cache.GetFresh(b.ProductKey(id), opts.MaxAge)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Product)
	return p, ok
}

func (b *Base) StoreProduct(p *Product, opts FetchOptions) {
	b.Cache.Set(b.ProductKey(p.ID), p, b.ProductTTL)
}

func (b *Base) CachedCustomer(id string) (*Customer, bool) {
	v, ok := b.Cache.Get(b.CustomerKey(id))
	if !ok {
		return nil, false
	}
	c, ok := v.(*Customer)
	return c, ok
}

func (b *Base) StoreCustomer(c *Customer) {
	b.Cache.Set(b.CustomerKey(c.ID), c, b.CustomerTTL)
}

// CapPercentage clamps an engine-computed discount to the ceiling every
// adapter enforces before touching an order.
func CapPercentage(pct float64) float64 {
	if pct > MaxApplyPercentage {
		return MaxApplyPercentage
	}
	if pct < 0 {
		return 0
	}
	return pct
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
