package session

import (
	"context"

	"github.com/patrickmn/go-cache"
)

// Port is the key-value substrate a Store persists into. Set must replace the
// whole value for key atomically: readers see either the old or the new bytes.
type Port interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryPort keeps records in process memory without expiry.
type MemoryPort struct {
	cache *cache.Cache
}

func NewMemoryPort() *MemoryPort {
	// No cleanup interval: nothing expires, so no janitor goroutine is needed.
	return &MemoryPort{cache: cache.New(cache.NoExpiration, 0)}
}

func (p *MemoryPort) Get(_ context.Context, key string) ([]byte, bool, error) {
	x, found := p.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	stored := x.([]byte)
	out := make([]byte, len(stored))
	copy(out, stored)
	return out, true, nil
}

func (p *MemoryPort) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	p.cache.Set(key, stored, cache.NoExpiration)
	return nil
}

func (p *MemoryPort) Delete(_ context.Context, key string) error {
	p.cache.Delete(key)
	return nil
}
