package integrations

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"pricebridge/internal/logger"
)

// ConfigProvider loads a store's credentials for one platform. The gorm
// implementation lives in internal/models; tests use a stub.
type ConfigProvider interface {
	GetCredentials(ctx context.Context, storeID string, platform Platform) (*Credentials, error)
}

// Builder constructs a platform adapter bound to one store. Wired per
// platform at startup so this package never imports the variants.
type Builder func(storeID string, creds Credentials) (Adapter, error)

// Registry resolves (storeID, platform) to a memoized adapter instance,
// each constructed with its own cache and rate limiter. The instance map
// has its own lock, distinct from any adapter's internal locks.
type Registry struct {
	provider ConfigProvider
	builders map[Platform]Builder
	logger   *logger.Logger

	mu        sync.RWMutex
	instances map[string]Adapter
}

func NewRegistry(provider ConfigProvider, builders map[Platform]Builder, log *logger.Logger) *Registry {
	return &Registry{
		provider:  provider,
		builders:  builders,
		logger:    log,
		instances: make(map[string]Adapter),
	}
}

func instanceKey(storeID string, platform Platform) string {
	return storeID + ":" + string(platform)
}

// Resolve returns the adapter for (storeID, platform), constructing and
// memoizing it on first use. Concurrent first resolutions of the same key
// construct exactly once.
func (r *Registry) Resolve(ctx context.Context, storeID string, platform Platform) (Adapter, error) {
	key := instanceKey(storeID, platform)

	r.mu.RLock()
	adapter, ok := r.instances[key]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// double-check: another caller may have built it while we waited
	if adapter, ok := r.instances[key]; ok {
		return adapter, nil
	}

	builder, ok := r.builders[platform]
	if !ok {
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}

	creds, err := r.provider.GetCredentials(ctx, storeID, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if creds == nil {
		return nil, &ConfigurationMissing{StoreID: storeID, Platform: platform}
	}

	adapter, err = builder(storeID, *creds)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s adapter: %w", platform, err)
	}

	r.instances[key] = adapter
	r.logger.Info("Built %s adapter for store %s", platform, storeID)
	return adapter, nil
}

// Invalidate drops memoized instances. No arguments clears everything; a
// store alone clears every platform for that store; store and platform
// clear exactly one entry.
func (r *Registry) Invalidate(storeID string, platform Platform) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if storeID == "" {
		n := len(r.instances)
		r.instances = make(map[string]Adapter)
		return n
	}

	if platform != "" {
		key := instanceKey(storeID, platform)
		if _, ok := r.instances[key]; ok {
			delete(r.instances, key)
			return 1
		}
		return 0
	}

	prefix := storeID + ":"
	n := 0
	for key := range r.instances {
		if strings.HasPrefix(key, prefix) {
			delete(r.instances, key)
			n++
		}
	}
	return n
}

// Size reports how many adapter instances are live.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}
