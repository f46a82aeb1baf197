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

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/carverauto/devscout/pkg/models"
)

const (
	defaultSNMPPort      = 161
	defaultSNMPCommunity = "public"
)

// SNMPClient issues SNMP v2c GETs with a fresh connection per query.
// Probes are short-lived and run against hundreds of addresses in one
// pass, so connection reuse buys nothing here.
type SNMPClient struct {
	community string
	port      uint16
}

var _ SNMPQuerier = (*SNMPClient)(nil)

// NewSNMPClient returns a querier using the given community string and
// UDP port. An empty community falls back to "public"; a non-positive
// port falls back to 161.
func NewSNMPClient(community string, port int) *SNMPClient {
	if community == "" {
		community = defaultSNMPCommunity
	}

	if port <= 0 || port > 65535 {
		port = defaultSNMPPort
	}

	return &SNMPClient{
		community: community,
		port:      uint16(port),
	}
}

// Query performs a single GET for one OID. Timeouts and refusals map to
// transient error classes so callers can decide whether to retry.
func (c *SNMPClient) Query(ctx context.Context, address, oid string, timeout time.Duration) (*SNMPResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := c.newConn(ctx, address, timeout)

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", address, classifyNetErr(err))
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{oid})
	if err != nil {
		return nil, fmt.Errorf("snmp get %s %s: %w", address, oid, classifyNetErr(err))
	}

	if len(result.Variables) == 0 {
		return nil, fmt.Errorf("snmp get %s %s: %w", address, oid, models.ErrProtocol)
	}

	pdu := result.Variables[0]
	if pdu.Type == gosnmp.NoSuchObject || pdu.Type == gosnmp.NoSuchInstance {
		return nil, fmt.Errorf("snmp get %s %s: %w", address, oid, models.ErrNotFound)
	}

	return &SNMPResponse{
		Address: address,
		OID:     pdu.Name,
		Value:   pduValueString(&pdu),
	}, nil
}

// newConn builds the per-query gosnmp client carrying the configured
// community and port.
func (c *SNMPClient) newConn(ctx context.Context, address string, timeout time.Duration) *gosnmp.GoSNMP {
	return &gosnmp.GoSNMP{
		Target:             address,
		Port:               c.port,
		Community:          c.community,
		Version:            gosnmp.Version2c,
		Timeout:            timeout,
		Retries:            0,
		MaxOids:            gosnmp.MaxOids,
		ExponentialTimeout: true,
		Context:            ctx,
	}
}

func pduValueString(pdu *gosnmp.SnmpPDU) string {
	switch pdu.Type {
	case gosnmp.OctetString:
		if b, ok := pdu.Value.([]byte); ok {
			return string(b)
		}

		return fmt.Sprintf("%v", pdu.Value)
	case gosnmp.ObjectIdentifier:
		if s, ok := pdu.Value.(string); ok {
			return s
		}

		return fmt.Sprintf("%v", pdu.Value)
	default:
		return fmt.Sprintf("%v", pdu.Value)
	}
}

// classifyNetErr attaches a sentinel so the error class survives
// wrapping all the way up to the retry layer.
func classifyNetErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", models.ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", models.ErrUnreachable, err)
}
