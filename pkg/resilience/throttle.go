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

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency caps fan-out over address ranges and command
// vocabularies when no explicit limit is configured.
const DefaultConcurrency = 10

// Throttle is a counting admission gate bounding the number of operations
// in flight. The (N+1)-th caller blocks in Acquire until a slot frees.
type Throttle struct {
	sem   *semaphore.Weighted
	limit int
}

// NewThrottle builds a gate admitting at most limit concurrent operations.
func NewThrottle(limit int) *Throttle {
	if limit < 1 {
		limit = DefaultConcurrency
	}

	return &Throttle{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: limit,
	}
}

// Limit returns the configured admission cap.
func (t *Throttle) Limit() int { return t.limit }

// Acquire blocks until a slot is available or ctx is done.
func (t *Throttle) Acquire(ctx context.Context) error {
	return t.sem.Acquire(ctx, 1)
}

// Release frees a slot acquired with Acquire.
func (t *Throttle) Release() {
	t.sem.Release(1)
}

// Do runs fn inside an admission slot.
func (t *Throttle) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := t.Acquire(ctx); err != nil {
		return err
	}
	defer t.Release()

	return fn(ctx)
}
