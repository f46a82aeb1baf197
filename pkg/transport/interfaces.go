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

// Package transport holds the probe and command-execution collaborators.
// Wire encodings live entirely here; the discovery core only sees the
// interfaces.
package transport

import (
	"context"
	"time"
)

// SNMPResponse is the decoded answer to a single OID query.
type SNMPResponse struct {
	Address string
	OID     string
	Value   string
}

// SNMPQuerier issues one SNMP GET against one address.
type SNMPQuerier interface {
	Query(ctx context.Context, address, oid string, timeout time.Duration) (*SNMPResponse, error)
}

// CommandExecutor runs a command on a remote device and returns its
// stdout and stderr.
type CommandExecutor interface {
	Execute(ctx context.Context, host, user, credential, command string) (stdout, stderr string, err error)
}
