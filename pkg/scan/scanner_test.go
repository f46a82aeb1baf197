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

package scan

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devscout/pkg/logger"
	"github.com/carverauto/devscout/pkg/models"
)

func TestScanNeverExceedsConcurrencyLimit(t *testing.T) {
	const limit = 10

	targets := BuildRange("192.168.1", 1, 254, 161)
	require.Len(t, targets, 254)

	scanner := NewScanner(time.Second, limit, logger.NewTestLogger())

	var (
		inFlight int32
		peak     int32
	)

	results := scanner.Scan(context.Background(), targets,
		func(_ context.Context, _ models.ScanTarget) (interface{}, error) {
			current := atomic.AddInt32(&inFlight, 1)

			for {
				observed := atomic.LoadInt32(&peak)
				if current <= observed || atomic.CompareAndSwapInt32(&peak, observed, current) {
					break
				}
			}

			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)

			return "sysDescr", nil
		})

	assert.Len(t, results, 254)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(limit))
}

func TestScanIsolatesProbeFailures(t *testing.T) {
	targets := BuildRange("10.0.0", 1, 20, 0)
	scanner := NewScanner(time.Second, 5, logger.NewTestLogger())

	results := scanner.Scan(context.Background(), targets,
		func(_ context.Context, target models.ScanTarget) (interface{}, error) {
			if target.Address == "10.0.0.13" {
				return nil, models.ErrUnreachable
			}

			return target.Address, nil
		})

	require.Len(t, results, 20)

	succeeded := 0

	for _, r := range results {
		if r.Target.Address == "10.0.0.13" {
			assert.False(t, r.Succeeded)
			assert.Equal(t, models.ClassTransient, r.FailureReason)

			continue
		}

		assert.True(t, r.Succeeded, "failure on one target must not affect %s", r.Target.Address)
		succeeded++
	}

	assert.Equal(t, 19, succeeded)
}

func TestScanProbesObserveOwnTimeout(t *testing.T) {
	targets := BuildRange("10.0.0", 1, 4, 0)
	scanner := NewScanner(20*time.Millisecond, 2, logger.NewTestLogger())

	start := time.Now()

	results := scanner.Scan(context.Background(), targets,
		func(ctx context.Context, _ models.ScanTarget) (interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, results, 4)

	for _, r := range results {
		assert.False(t, r.Succeeded)
		assert.Equal(t, models.ClassTransient, r.FailureReason)
	}
}

func TestScanEmptyTargets(t *testing.T) {
	scanner := NewScanner(time.Second, 10, logger.NewTestLogger())

	results := scanner.Scan(context.Background(), nil,
		func(_ context.Context, _ models.ScanTarget) (interface{}, error) {
			t.Fatal("probe must not run without targets")
			return nil, nil
		})

	assert.Empty(t, results)
}

func TestBuildRange(t *testing.T) {
	tests := []struct {
		name        string
		first, last int
		wantLen     int
		wantFirst   string
		wantLast    string
	}{
		{"full range", 1, 254, 254, "192.168.1.1", "192.168.1.254"},
		{"clamped high", 250, 300, 5, "192.168.1.250", "192.168.1.254"},
		{"clamped low", -3, 2, 2, "192.168.1.1", "192.168.1.2"},
		{"inverted", 10, 5, 0, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets := BuildRange("192.168.1", tt.first, tt.last, 161)
			assert.Len(t, targets, tt.wantLen)

			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, targets[0].Address)
				assert.Equal(t, tt.wantLast, targets[len(targets)-1].Address)
				assert.Equal(t, 161, targets[0].Port)
			}
		})
	}
}
