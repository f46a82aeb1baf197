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

// Package cache defines the transient key-value collaborator used for
// device state snapshots and best-effort read mirrors. Backends: in-memory
// (tests, standalone) and NATS JetStream KV.
package cache

import (
	"context"
	"time"
)

// Cache is the transient store collaborator. Implementations must be safe
// for concurrent callers; same-key writes are last-write-wins.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// HashGet returns one field of a named hash.
	HashGet(ctx context.Context, name, field string) (string, bool, error)

	// HashSet stores one field of a named hash.
	HashSet(ctx context.Context, name, field, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
