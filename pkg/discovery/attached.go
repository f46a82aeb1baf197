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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/carverauto/devscout/pkg/models"
	"github.com/carverauto/devscout/pkg/resilience"
)

// sysfsUSBPath is where the kernel exposes enumerated USB devices.
const sysfsUSBPath = "/sys/bus/usb/devices"

// DiscoverAttachedDevices enumerates USB devices, mounted storage and the
// host system itself, registering each. A failing source contributes
// nothing but never aborts the others.
func (o *Orchestrator) DiscoverAttachedDevices(ctx context.Context) ([]models.DeviceRecord, error) {
	log := o.passLogger("attached")

	var records []models.DeviceRecord

	records = append(records, resilience.OrDefault(ctx, log, "usb devices", nil,
		func(ctx context.Context) ([]models.DeviceRecord, error) {
			return o.usbDevices(ctx)
		})...)

	records = append(records, resilience.OrDefault(ctx, log, "storage devices", nil,
		func(ctx context.Context) ([]models.DeviceRecord, error) {
			return o.storageDevices(ctx)
		})...)

	records = append(records, resilience.OrDefault(ctx, log, "system device", nil,
		func(ctx context.Context) ([]models.DeviceRecord, error) {
			return o.systemDevice(ctx)
		})...)

	registered := make([]models.DeviceRecord, 0, len(records))

	for _, rec := range records {
		if o.registry.RegisterOrRetry(ctx, rec) {
			registered = append(registered, rec)

			log.Info().
				Str("device_id", rec.DeviceID).
				Str("class", string(rec.LocationClass)).
				Msg("Registered attached device")
		}
	}

	log.Info().Int("registered", len(registered)).Msg("Attached discovery pass complete")

	return registered, nil
}

// usbDevices walks sysfs for devices exposing a vendor/product pair.
// Interface nodes (1-1:1.0) and root hubs without IDs are skipped.
func (o *Orchestrator) usbDevices(ctx context.Context) ([]models.DeviceRecord, error) {
	entries, err := os.ReadDir(sysfsUSBPath)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	var records []models.DeviceRecord

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		if strings.Contains(entry.Name(), ":") {
			continue
		}

		devPath := filepath.Join(sysfsUSBPath, entry.Name())

		vendor := readSysfsAttr(devPath, "idVendor")
		product := readSysfsAttr(devPath, "idProduct")

		if vendor == "" || product == "" {
			continue
		}

		attrs := map[string]string{
			"vendor_id":  vendor,
			"product_id": product,
			"bus_path":   entry.Name(),
		}

		if name := readSysfsAttr(devPath, "product"); name != "" {
			attrs["product_name"] = name
		}

		if serial := readSysfsAttr(devPath, "serial"); serial != "" {
			attrs["serial"] = serial
		}

		records = append(records, models.DeviceRecord{
			DeviceID:      models.USBDeviceID(vendor, product),
			LocationClass: models.LocationUSB,
			Status:        models.StatusActive,
			Attributes:    attrs,
			FirstSeen:     now,
			LastSeen:      now,
		})
	}

	return records, nil
}

// storageDevices registers one record per mounted partition.
func (o *Orchestrator) storageDevices(ctx context.Context) ([]models.DeviceRecord, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	records := make([]models.DeviceRecord, 0, len(partitions))

	for _, part := range partitions {
		records = append(records, models.DeviceRecord{
			DeviceID:      models.StorageDeviceID(part.Device),
			LocationClass: models.LocationStorage,
			Status:        models.StatusActive,
			Attributes: map[string]string{
				"device":     part.Device,
				"mountpoint": part.Mountpoint,
				"fstype":     part.Fstype,
			},
			FirstSeen: now,
			LastSeen:  now,
		})
	}

	return records, nil
}

// systemDevice registers the host itself.
func (o *Orchestrator) systemDevice(ctx context.Context) ([]models.DeviceRecord, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	return []models.DeviceRecord{{
		DeviceID:      models.SystemDeviceID(info.Hostname),
		LocationClass: models.LocationSystem,
		Status:        models.StatusActive,
		Attributes: map[string]string{
			"hostname":         info.Hostname,
			"os":               info.OS,
			"platform":         info.Platform,
			"platform_version": info.PlatformVersion,
			"kernel_version":   info.KernelVersion,
		},
		FirstSeen: now,
		LastSeen:  now,
	}}, nil
}

func readSysfsAttr(devPath, attr string) string {
	data, err := os.ReadFile(filepath.Join(devPath, attr))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}
