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

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsCache backs the Cache collaborator with a NATS JetStream KV bucket.
// Expiry is applied at the bucket level, so the bucket TTL is the
// effective ceiling for every entry.
type NatsCache struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

var _ Cache = (*NatsCache)(nil)

// NewNatsCache connects to NATS and binds (or creates) the KV bucket.
func NewNatsCache(ctx context.Context, natsURL, bucket string, ttl time.Duration) (*NatsCache, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	config := jetstream.KeyValueConfig{Bucket: bucket}

	if ttl > 0 {
		config.TTL = ttl
	}

	kv, err := js.CreateKeyValue(ctx, config)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}

	return &NatsCache{nc: nc, kv: kv}, nil
}

func (c *NatsCache) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := c.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return string(entry.Value()), true, nil
}

func (c *NatsCache) Set(ctx context.Context, key, value string, _ time.Duration) error {
	// TTL is bucket-level; the per-call value is accepted for interface
	// compatibility.
	if _, err := c.kv.Put(ctx, key, []byte(value)); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}

	return nil
}

func (c *NatsCache) HashGet(ctx context.Context, name, field string) (string, bool, error) {
	return c.Get(ctx, hashKey(name, field))
}

func (c *NatsCache) HashSet(ctx context.Context, name, field, value string) error {
	return c.Set(ctx, hashKey(name, field), value, 0)
}

func (c *NatsCache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

func (c *NatsCache) Close() error {
	c.nc.Close()
	return nil
}
