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

// Package resilience provides the composable failure-handling primitives
// shared across discovery: retry with backoff, rate limiting, concurrency
// throttling, deadline enforcement, TTL result caching and
// default-on-failure. Each primitive wraps a plain operation and is
// independently usable.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/carverauto/devscout/pkg/logger"
	"github.com/carverauto/devscout/pkg/models"
)

// Retry invokes op until it succeeds, the error classifies outside the
// policy's retryable set, or the policy's attempts are exhausted. Backoff
// between attempts is min(base * 2^(attempt-1) [+ jitter], max). Errors
// outside the retryable set abort immediately. The last error is surfaced
// after exhaustion. Safe for concurrent callers; all state is per-call.
func Retry[T any](ctx context.Context, policy models.RetryPolicy, log logger.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("operation succeeded after retry")
			}

			return result, nil
		}

		lastErr = err
		class := models.Classify(err)

		if !policy.Retryable(class) {
			log.Error().
				Err(err).
				Str("class", string(class)).
				Int("attempt", attempt).
				Msg("non-retryable error, aborting")

			return zero, err
		}

		if attempt == maxAttempts {
			break
		}

		delay := backoffDelay(policy, attempt)

		log.Warn().
			Err(err).
			Str("class", string(class)).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", delay).
			Msg("transient error, retrying")

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	log.Error().
		Err(lastErr).
		Int("max_attempts", maxAttempts).
		Msg("retries exhausted")

	return zero, lastErr
}

// jitterBound is the width of the random jitter band: up to one second,
// independent of the policy's base delay.
const jitterBound = time.Second

// backoffDelay computes the exponential backoff for a 1-based attempt,
// optionally adding up to jitterBound of jitter, capped at MaxDelay.
func backoffDelay(policy models.RetryPolicy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := policy.BaseDelay
	if base <= 0 {
		base = time.Second
	}

	// Guard the shift against overflow on deep attempt counts.
	shift := uint(attempt - 1)
	if shift > 16 {
		shift = 16
	}

	delay := base * time.Duration(1<<shift)

	if policy.Jitter {
		delay += time.Duration(rand.Int63n(int64(jitterBound)))
	}

	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}

	return delay
}

// sleep blocks for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
