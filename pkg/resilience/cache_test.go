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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devscout/pkg/logger"
)

func TestResultCacheMemoizesByArguments(t *testing.T) {
	cache := NewResultCache[int](16, time.Minute, logger.NewTestLogger())
	calls := 0

	op := func(_ context.Context) (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		result, err := cache.Do(context.Background(), op, "device_7", 161)
		require.NoError(t, err)
		assert.Equal(t, 42, result)
	}

	assert.Equal(t, 1, calls, "identical arguments must hit the cache")

	_, err := cache.Do(context.Background(), op, "device_8", 161)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "distinct arguments must recompute")
}

func TestResultCacheEntryExpiresAfterTTL(t *testing.T) {
	cache := NewResultCache[string](16, 50*time.Millisecond, logger.NewTestLogger())
	calls := 0

	op := func(_ context.Context) (string, error) {
		calls++
		return "payload", nil
	}

	_, err := cache.Do(context.Background(), op, "key")
	require.NoError(t, err)

	// Retrievable immediately.
	_, err = cache.Do(context.Background(), op, "key")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	time.Sleep(120 * time.Millisecond)

	// Expired: recomputation expected.
	_, err = cache.Do(context.Background(), op, "key")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestResultCacheNonSerializableArgsBypass(t *testing.T) {
	cache := NewResultCache[int](16, time.Minute, logger.NewTestLogger())
	calls := 0

	op := func(_ context.Context) (int, error) {
		calls++
		return calls, nil
	}

	// Functions cannot be JSON-encoded; every call must run directly.
	notSerializable := func() {}

	first, err := cache.Do(context.Background(), op, notSerializable)
	require.NoError(t, err)

	second, err := cache.Do(context.Background(), op, notSerializable)
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 0, cache.Len())
}

func TestResultCacheDoesNotCacheErrors(t *testing.T) {
	cache := NewResultCache[int](16, time.Minute, logger.NewTestLogger())
	calls := 0

	op := func(_ context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient blip")
		}

		return 7, nil
	}

	_, err := cache.Do(context.Background(), op, "k")
	require.Error(t, err)

	result, err := cache.Do(context.Background(), op, "k")
	require.NoError(t, err)
	assert.Equal(t, 7, result)
	assert.Equal(t, 2, calls)
}

func TestResultCacheConcurrentCallers(t *testing.T) {
	cache := NewResultCache[int](64, time.Minute, logger.NewTestLogger())

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			result, err := cache.Do(context.Background(), func(_ context.Context) (int, error) {
				return n % 5, nil
			}, n%5)

			assert.NoError(t, err)
			assert.Equal(t, n%5, result)
		}(i)
	}

	wg.Wait()
}
