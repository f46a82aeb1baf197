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

	"github.com/stretchr/testify/assert"

	"github.com/carverauto/devscout/pkg/logger"
)

func TestOrDefaultReturnsResultOnSuccess(t *testing.T) {
	result := OrDefault(context.Background(), logger.NewTestLogger(), "lookup", -1,
		func(_ context.Context) (int, error) {
			return 10, nil
		})

	assert.Equal(t, 10, result)
}

func TestOrDefaultSubstitutesOnFailure(t *testing.T) {
	result := OrDefault(context.Background(), logger.NewTestLogger(), "lookup", -1,
		func(_ context.Context) (int, error) {
			return 0, errors.New("boom")
		})

	assert.Equal(t, -1, result)
}

func TestOrDefaultIsolatesBatchFailures(t *testing.T) {
	sum := 0

	for i := 0; i < 5; i++ {
		n := i

		sum += OrDefault(context.Background(), logger.NewTestLogger(), "item", 0,
			func(_ context.Context) (int, error) {
				if n == 2 {
					return 0, errors.New("one bad item")
				}

				return 1, nil
			})
	}

	assert.Equal(t, 4, sum)
}
