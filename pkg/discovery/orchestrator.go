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

// Package discovery composes scanning, registration and command learning
// into per-device-class discovery passes.
package discovery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/devscout/pkg/learner"
	"github.com/carverauto/devscout/pkg/logger"
	"github.com/carverauto/devscout/pkg/registry"
	"github.com/carverauto/devscout/pkg/resilience"
	"github.com/carverauto/devscout/pkg/scan"
	"github.com/carverauto/devscout/pkg/transport"
)

const (
	// oidSysDescr is the SNMP system description, the single OID a
	// sweep needs to decide a responder is a manageable device.
	oidSysDescr = ".1.3.6.1.2.1.1.1.0"

	defaultProbeTimeout = 1 * time.Second
	defaultSNMPPort     = 161

	rangeFirstHost = 1
	rangeLastHost  = 254

	// prefixCacheTTL covers the back-to-back class sweeps of one
	// DiscoverAll run; the local prefix rarely changes faster.
	prefixCacheTTL = 1 * time.Minute
)

// CommandLearner enriches freshly registered devices that have no known
// commands yet. Satisfied by *learner.Learner.
type CommandLearner interface {
	Learn(ctx context.Context, deviceID string) (learner.State, error)
}

// Options tunes a discovery pass.
type Options struct {
	// ProbeTimeout bounds each SNMP probe. Zero means 1s.
	ProbeTimeout time.Duration

	// Concurrency caps in-flight probes per sweep. Zero means the
	// resilience default.
	Concurrency int

	// SNMPPort overrides the UDP port probed. Zero means 161.
	SNMPPort int

	// NetworkPrefix overrides local-prefix autodetection, mainly for
	// tests and multi-homed hosts.
	NetworkPrefix string
}

// Orchestrator runs discovery passes and feeds what they find into the
// registry.
type Orchestrator struct {
	scanner     *scan.Scanner
	registry    *registry.Client
	snmp        transport.SNMPQuerier
	learner     CommandLearner
	prefixCache *resilience.ResultCache[string]
	opts        Options
	logger      logger.Logger
}

// New wires an orchestrator. learner may be nil when command learning is
// disabled.
func New(reg *registry.Client, snmp transport.SNMPQuerier, l CommandLearner, opts Options, log logger.Logger) *Orchestrator {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}

	if opts.SNMPPort <= 0 {
		opts.SNMPPort = defaultSNMPPort
	}

	return &Orchestrator{
		scanner:     scan.NewScanner(opts.ProbeTimeout, opts.Concurrency, log),
		registry:    reg,
		snmp:        snmp,
		learner:     l,
		prefixCache: resilience.NewResultCache[string](1, prefixCacheTTL, log),
		opts:        opts,
		logger:      log.WithComponent("discovery"),
	}
}

// DiscoverAll runs every per-class pass. A failing class does not stop
// the others; the first error is reported after all passes ran.
func (o *Orchestrator) DiscoverAll(ctx context.Context) error {
	var firstErr error

	if _, err := o.DiscoverAttachedDevices(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	if _, err := o.DiscoverNetworkDevices(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	if _, err := o.DiscoverIoTDevices(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// passLogger tags every log line of one pass with a fresh pass ID.
func (o *Orchestrator) passLogger(class string) logger.Logger {
	return o.logger.WithFields(map[string]interface{}{
		"pass_id": uuid.NewString(),
		"class":   class,
	})
}

// networkPrefix returns the configured prefix or autodetects one. The
// detected answer is memoized so consecutive class sweeps share it.
func (o *Orchestrator) networkPrefix(ctx context.Context) (string, error) {
	if o.opts.NetworkPrefix != "" {
		return o.opts.NetworkPrefix, nil
	}

	return o.prefixCache.Do(ctx, func(_ context.Context) (string, error) {
		return scan.LocalNetworkPrefix()
	}, "local-prefix")
}
