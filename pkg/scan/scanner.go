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

// Package scan fans out probes across an address range under a bounded
// worker pool and collects classified per-target results.
package scan

import (
	"context"
	"sync"
	"time"

	"github.com/carverauto/devscout/pkg/logger"
	"github.com/carverauto/devscout/pkg/models"
	"github.com/carverauto/devscout/pkg/resilience"
)

const (
	defaultProbeTimeout = 1 * time.Second

	// Work queue headroom per worker, matching the sweep transports.
	workQueueMultiplier = 2
)

// ProbeFunc probes a single target and returns an opaque payload on
// success. Probes must honor ctx; the scanner gives each probe its own
// deadline. Transport-level retries do not belong here.
type ProbeFunc func(ctx context.Context, target models.ScanTarget) (interface{}, error)

// Scanner runs probe fan-outs with a fixed concurrency cap and a per-probe
// timeout. A failing or timed-out probe is classified and logged; it never
// aborts sibling probes.
type Scanner struct {
	timeout     time.Duration
	concurrency int
	logger      logger.Logger
}

// NewScanner builds a scanner. Zero values fall back to a 1s probe timeout
// and the default concurrency cap of 10.
func NewScanner(timeout time.Duration, concurrency int, log logger.Logger) *Scanner {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	if concurrency <= 0 {
		concurrency = resilience.DefaultConcurrency
	}

	return &Scanner{
		timeout:     timeout,
		concurrency: concurrency,
		logger:      log,
	}
}

// Scan probes every target and returns one result per target, in no
// particular order. All scheduled probes run to completion (or their own
// timeout) before Scan returns. Callers act on results with Succeeded set;
// failed probes carry a classified FailureReason.
func (s *Scanner) Scan(ctx context.Context, targets []models.ScanTarget, probe ProbeFunc) []models.ScanResult {
	if len(targets) == 0 {
		return nil
	}

	workers := s.concurrency
	if workers > len(targets) {
		workers = len(targets)
	}

	workCh := make(chan models.ScanTarget, workers*workQueueMultiplier)
	resultCh := make(chan models.ScanResult, len(targets))

	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			s.worker(ctx, workCh, resultCh, probe)
		}()
	}

	go func() {
		defer close(workCh)

		for _, t := range targets {
			select {
			case <-ctx.Done():
				return
			case workCh <- t:
			}
		}
	}()

	wg.Wait()
	close(resultCh)

	results := make([]models.ScanResult, 0, len(targets))
	for r := range resultCh {
		results = append(results, r)
	}

	return results
}

func (s *Scanner) worker(ctx context.Context, workCh <-chan models.ScanTarget, resultCh chan<- models.ScanResult, probe ProbeFunc) {
	for target := range workCh {
		result := s.probeOne(ctx, target, probe)

		select {
		case <-ctx.Done():
			return
		case resultCh <- result:
		}
	}
}

// probeOne runs a single probe under its own deadline. Failures are
// isolated to the target: classified, logged and recorded, never
// propagated.
func (s *Scanner) probeOne(ctx context.Context, target models.ScanTarget, probe ProbeFunc) models.ScanResult {
	start := time.Now()

	payload, err := resilience.WithTimeout(ctx, s.timeout,
		func(ctx context.Context) (interface{}, error) {
			return probe(ctx, target)
		})

	result := models.ScanResult{
		Target:   target,
		RespTime: time.Since(start),
	}

	if err != nil {
		result.FailureReason = models.Classify(err)

		s.logger.Debug().
			Err(err).
			Str("address", target.Address).
			Str("class", string(result.FailureReason)).
			Msg("probe failed")

		return result
	}

	result.Succeeded = true
	result.Payload = payload

	return result
}
