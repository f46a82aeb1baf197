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
	"fmt"
	"net"
	"strings"

	"github.com/carverauto/devscout/pkg/models"
)

const maxRangeHosts = 254

// LocalNetworkPrefix resolves the host's primary outbound IPv4 address and
// returns its /24 prefix ("192.168.1"). No packets are sent; the UDP dial
// only selects a route.
func LocalNetworkPrefix() (string, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoLocalAddress, err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.To4() == nil {
		return "", ErrNoLocalAddress
	}

	ip := addr.IP.To4().String()

	idx := strings.LastIndex(ip, ".")
	if idx < 0 {
		return "", ErrNoLocalAddress
	}

	return ip[:idx], nil
}

// BuildRange expands a /24 prefix into scan targets for host octets
// [first, last], clamped to 1..254. Port is attached to every target.
func BuildRange(prefix string, first, last, port int) []models.ScanTarget {
	if first < 1 {
		first = 1
	}

	if last > maxRangeHosts {
		last = maxRangeHosts
	}

	if last < first {
		return nil
	}

	targets := make([]models.ScanTarget, 0, last-first+1)

	for octet := first; octet <= last; octet++ {
		targets = append(targets, models.ScanTarget{
			Address: fmt.Sprintf("%s.%d", prefix, octet),
			Port:    port,
		})
	}

	return targets
}
