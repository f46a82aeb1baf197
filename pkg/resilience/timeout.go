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
	"time"

	"github.com/carverauto/devscout/pkg/models"
)

// WithTimeout runs op under a wall-clock deadline. The caller is unblocked
// by the deadline and receives models.ErrTimeout; op observes cancellation
// through its context but is not forcibly stopped. Work behind a transport
// that ignores its context may continue after the deadline is reported.
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		result T
		err    error
	}

	// Buffered so a late-finishing op never leaks its goroutine.
	done := make(chan outcome, 1)

	go func() {
		result, err := op(opCtx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && opCtx.Err() == context.DeadlineExceeded {
			return zero, models.ErrTimeout
		}

		return out.result, out.err
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		return zero, models.ErrTimeout
	}
}
