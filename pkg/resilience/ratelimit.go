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

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum inter-call spacing of 1/callsPerSecond.
// A call arriving before the interval has elapsed blocks until the interval
// is satisfied. Calls are never dropped, only delayed.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter allowing callsPerSecond sustained calls
// with no bursting.
func NewRateLimiter(callsPerSecond float64) *RateLimiter {
	if callsPerSecond <= 0 {
		callsPerSecond = 1
	}

	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(callsPerSecond), 1)}
}

// Wait blocks until the next call is admitted or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Do waits for admission and then runs fn.
func (r *RateLimiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := r.Wait(ctx); err != nil {
		return err
	}

	return fn(ctx)
}
