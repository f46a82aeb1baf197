/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package resilience

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/carverauto/devscout/pkg/logger"
)

const defaultCacheSize = 128

// ResultCache memoizes operation results keyed by a deterministic
// serialization of the call arguments. Entries expire after the configured
// TTL. Lookups and expiry are safe for concurrent callers. Arguments that
// cannot be serialized bypass the cache and the operation runs directly.
type ResultCache[T any] struct {
	lru    *expirable.LRU[string, T]
	logger logger.Logger
}

// NewResultCache builds a cache holding up to size entries for ttl each.
func NewResultCache[T any](size int, ttl time.Duration, log logger.Logger) *ResultCache[T] {
	if size < 1 {
		size = defaultCacheSize
	}

	return &ResultCache[T]{
		lru:    expirable.NewLRU[string, T](size, nil, ttl),
		logger: log,
	}
}

// Do returns the cached result for args if present, otherwise runs op and
// caches a successful result. Errors are never cached.
func (c *ResultCache[T]) Do(ctx context.Context, op func(ctx context.Context) (T, error), args ...interface{}) (T, error) {
	key, ok := cacheKey(args...)
	if !ok {
		c.logger.Debug().Msg("arguments not serializable, bypassing cache")
		return op(ctx)
	}

	if cached, hit := c.lru.Get(key); hit {
		c.logger.Debug().Str("key", key).Msg("cache hit")
		return cached, nil
	}

	result, err := op(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.lru.Add(key, result)

	return result, nil
}

// Len returns the number of live entries.
func (c *ResultCache[T]) Len() int { return c.lru.Len() }

// Purge drops every entry.
func (c *ResultCache[T]) Purge() { c.lru.Purge() }

// cacheKey derives a stable key from the JSON encoding of args. Returns
// false for arguments JSON cannot represent (functions, channels, cycles).
func cacheKey(args ...interface{}) (string, bool) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", false
	}

	sum := sha256.Sum256(raw)

	return hex.EncodeToString(sum[:]), true
}
