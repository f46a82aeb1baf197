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

package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/carverauto/devscout/pkg/learner"
	"github.com/carverauto/devscout/pkg/logger"
	"github.com/carverauto/devscout/pkg/models"
	"github.com/carverauto/devscout/pkg/scan"
)

// DiscoverNetworkDevices sweeps the local /24 with an SNMP sysDescr probe
// and registers every responder, skipping device IDs that already exist.
// Reports whether at least one new device was registered.
func (o *Orchestrator) DiscoverNetworkDevices(ctx context.Context) (bool, error) {
	log := o.passLogger("network")

	results, err := o.sweep(ctx, log)
	if err != nil {
		return false, err
	}

	registered := false

	for i := range results {
		result := &results[i]
		if !result.Succeeded {
			continue
		}

		rec := recordFromSweep(result, models.NetworkDeviceID(result.Target.Address), models.LocationNetwork)

		if o.registry.RegisterOrRetry(ctx, rec) {
			registered = true

			log.Info().
				Str("device_id", rec.DeviceID).
				Str("ip", result.Target.Address).
				Msg("Registered network device")
		}
	}

	log.Info().Bool("registered_any", registered).Msg("Network discovery pass complete")

	return registered, nil
}

// DiscoverIoTDevices sweeps the same range but registers responders
// unconditionally, refreshing records seen in earlier passes. Devices
// with no known commands are handed to the learner when one is wired.
func (o *Orchestrator) DiscoverIoTDevices(ctx context.Context) (bool, error) {
	log := o.passLogger("iot")

	results, err := o.sweep(ctx, log)
	if err != nil {
		return false, err
	}

	registered := false

	for i := range results {
		result := &results[i]
		if !result.Succeeded {
			continue
		}

		rec := recordFromSweep(result, models.IoTDeviceID(result.Target.Address), models.LocationIoT)

		if !o.registry.RegisterOrRetry(ctx, rec) {
			continue
		}

		registered = true

		log.Info().
			Str("device_id", rec.DeviceID).
			Str("ip", result.Target.Address).
			Msg("Registered IoT device")

		o.maybeLearn(ctx, log, rec.DeviceID)
	}

	log.Info().Bool("registered_any", registered).Msg("IoT discovery pass complete")

	return registered, nil
}

// sweep resolves the target range and runs the bounded scan. A prefix
// resolution failure aborts the pass before any write happens.
func (o *Orchestrator) sweep(ctx context.Context, log logger.Logger) ([]models.ScanResult, error) {
	prefix, err := o.networkPrefix(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Cannot resolve local network prefix")

		return nil, fmt.Errorf("resolve network prefix: %w", err)
	}

	targets := scan.BuildRange(prefix, rangeFirstHost, rangeLastHost, o.opts.SNMPPort)

	log.Info().
		Str("prefix", prefix).
		Int("targets", len(targets)).
		Msg("Starting sweep")

	return o.scanner.Scan(ctx, targets, o.snmpProbe), nil
}

// snmpProbe asks one address for its system description.
func (o *Orchestrator) snmpProbe(ctx context.Context, target models.ScanTarget) (interface{}, error) {
	resp, err := o.snmp.Query(ctx, target.Address, oidSysDescr, o.opts.ProbeTimeout)
	if err != nil {
		return nil, err
	}

	return resp.Value, nil
}

// maybeLearn triggers command learning for a device that knows nothing
// yet. Learning failure is logged, never fatal to the pass.
func (o *Orchestrator) maybeLearn(ctx context.Context, log logger.Logger, deviceID string) {
	if o.learner == nil {
		return
	}

	rec, err := o.registry.Get(ctx, deviceID)
	if err != nil || len(rec.KnownCommands) > 0 {
		return
	}

	state, err := o.learner.Learn(ctx, deviceID)
	if err != nil {
		log.Warn().Err(err).Str("device_id", deviceID).Msg("Command learning failed")

		return
	}

	if state == learner.StateCommandsExtracted || state == learner.StateCommandsLearned {
		log.Info().
			Str("device_id", deviceID).
			Str("state", string(state)).
			Msg("Command surface resolved")
	}
}

func recordFromSweep(result *models.ScanResult, deviceID string, class models.LocationClass) models.DeviceRecord {
	attrs := map[string]string{
		"ip": result.Target.Address,
	}

	if descr, ok := result.Payload.(string); ok && descr != "" {
		attrs["sys_descr"] = descr
	}

	now := time.Now().UTC()

	return models.DeviceRecord{
		DeviceID:      deviceID,
		LocationClass: class,
		Status:        models.StatusActive,
		Attributes:    attrs,
		FirstSeen:     now,
		LastSeen:      now,
	}
}
