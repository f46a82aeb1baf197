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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devscout/pkg/models"
)

func TestWithTimeoutFastOperationReturnsResult(t *testing.T) {
	result, err := WithTimeout(context.Background(), time.Second,
		func(_ context.Context) (string, error) {
			return "done", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "done", result)
}

func TestWithTimeoutUnblocksCallerAtDeadline(t *testing.T) {
	start := time.Now()

	_, err := WithTimeout(context.Background(), 20*time.Millisecond,
		func(ctx context.Context) (int, error) {
			// Simulates a transport that ignores its context.
			time.Sleep(2 * time.Second)
			return 1, nil
		})

	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTimeout)
	assert.Less(t, elapsed, time.Second, "caller must be unblocked by the deadline")
	assert.Equal(t, models.ClassTransient, models.Classify(err))
}

func TestWithTimeoutPropagatesOperationError(t *testing.T) {
	opErr := errors.New("bad response")

	_, err := WithTimeout(context.Background(), time.Second,
		func(_ context.Context) (int, error) {
			return 0, opErr
		})

	assert.ErrorIs(t, err, opErr)
}

func TestWithTimeoutParentCancellationWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithTimeout(ctx, time.Minute,
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})

	assert.ErrorIs(t, err, context.Canceled)
}
