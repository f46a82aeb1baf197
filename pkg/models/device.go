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

// Package models holds the shared types passed between the scanner,
// registry client, command learner and discovery orchestrator.
package models

import (
	"fmt"
	"strings"
	"time"
)

// LocationClass identifies where a device is attached or reachable.
type LocationClass string

const (
	LocationUSB     LocationClass = "usb"
	LocationStorage LocationClass = "storage"
	LocationSystem  LocationClass = "system"
	LocationIoT     LocationClass = "iot"
	LocationNetwork LocationClass = "network"
)

// DeviceStatus is the last observed reachability of a device.
type DeviceStatus string

const (
	StatusUnknown     DeviceStatus = "unknown"
	StatusActive      DeviceStatus = "active"
	StatusUnreachable DeviceStatus = "unreachable"
)

// DeviceRecord is the persisted representation of a discovered device.
// The registry client is the only component that mutates persisted records;
// KnownCommands only grows unless explicitly replaced.
type DeviceRecord struct {
	DeviceID      string            `json:"_id"`
	LocationClass LocationClass     `json:"location_class"`
	Status        DeviceStatus      `json:"status"`
	KnownCommands []string          `json:"known_commands"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	FirstSeen     time.Time         `json:"first_seen"`
	LastSeen      time.Time         `json:"last_seen"`
}

// NetworkDeviceID derives the deterministic registry ID for a network
// device from its IP address, e.g. "network_device_42" for x.x.x.42.
func NetworkDeviceID(ip string) string {
	return "network_device_" + lastOctet(ip)
}

// IoTDeviceID derives the deterministic registry ID for an IoT device.
func IoTDeviceID(ip string) string {
	return "iot_device_" + lastOctet(ip)
}

// USBDeviceID derives the registry ID for a USB device from its
// vendor and product identifiers.
func USBDeviceID(vendor, product string) string {
	return fmt.Sprintf("usb_device_%s_%s", vendor, product)
}

// StorageDeviceID derives the registry ID for a storage device from its
// device node path.
func StorageDeviceID(devicePath string) string {
	return "storage_device_" + strings.ReplaceAll(devicePath, "/", "_")
}

// SystemDeviceID derives the registry ID for the host system itself.
func SystemDeviceID(node string) string {
	return "system_" + node
}

func lastOctet(ip string) string {
	idx := strings.LastIndex(ip, ".")
	if idx < 0 || idx == len(ip)-1 {
		return ip
	}

	return ip[idx+1:]
}
