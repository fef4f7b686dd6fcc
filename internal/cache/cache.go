package cache

import (
	"context"
	"time"
)

// Cache stores rendered read responses. Callers treat every error as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type NoopCache struct{}

func NewNoop() *NoopCache {
	return &NoopCache{}
}

func (n *NoopCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (n *NoopCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (n *NoopCache) Delete(ctx context.Context, key string) error {
	return nil
}

func (n *NoopCache) DeletePrefix(ctx context.Context, prefix string) error {
	return nil
}

// AvailabilityKey is the cache key of one service's slots on one date.
func AvailabilityKey(date, serviceID string) string {
	return AvailabilityPrefix(date) + serviceID
}

// AvailabilityPrefix covers every cached availability entry of date.
func AvailabilityPrefix(date string) string {
	return AvailabilityAll + date + ":"
}

// AvailabilityAll covers every cached availability entry.
const AvailabilityAll = "availability:"

// ServicesKey caches the public list of active services.
const ServicesKey = "services:active"
