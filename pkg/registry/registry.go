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

// Package registry owns every mutation of persisted device records. The
// document store is authoritative; the optional cache is a best-effort
// read mirror invalidated on every write.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/devscout/pkg/cache"
	"github.com/carverauto/devscout/pkg/db"
	"github.com/carverauto/devscout/pkg/logger"
	"github.com/carverauto/devscout/pkg/models"
	"github.com/carverauto/devscout/pkg/resilience"
)

const (
	devicesCollection = "devices"
	mirrorKeyPrefix   = "device."
	mirrorTTL         = 5 * time.Minute
)

// RegisterPolicy decides what a repeat registration of the same device_id
// does.
type RegisterPolicy int

const (
	// RegisterIfAbsent skips registration entirely when a record already
	// exists: no update, no error. Used where duplicate registration is
	// meaningless, e.g. network devices.
	RegisterIfAbsent RegisterPolicy = iota

	// RegisterAlways upserts: devices re-registered on every discovery
	// pass, e.g. IoT devices.
	RegisterAlways
)

// DefaultPolicies maps each location class to its registration policy.
// The IoT/network asymmetry is deliberate and preserved from the original
// device managers.
func DefaultPolicies() map[models.LocationClass]RegisterPolicy {
	return map[models.LocationClass]RegisterPolicy{
		models.LocationNetwork: RegisterIfAbsent,
		models.LocationIoT:     RegisterAlways,
		models.LocationUSB:     RegisterIfAbsent,
		models.LocationStorage: RegisterIfAbsent,
		models.LocationSystem:  RegisterIfAbsent,
	}
}

// Client is the device registry client. All persisted DeviceRecord
// mutations flow through it.
type Client struct {
	store       db.DocumentStore
	mirror      cache.Cache // optional
	policies    map[models.LocationClass]RegisterPolicy
	retryPolicy models.RetryPolicy
	logger      logger.Logger
}

// NewClient builds a registry client. mirror may be nil to disable the
// read cache.
func NewClient(store db.DocumentStore, mirror cache.Cache, log logger.Logger) *Client {
	return &Client{
		store:       store,
		mirror:      mirror,
		policies:    DefaultPolicies(),
		retryPolicy: models.RegistrationRetryPolicy(),
		logger:      log,
	}
}

// SetPolicy overrides the registration policy for one location class.
func (c *Client) SetPolicy(class models.LocationClass, policy RegisterPolicy) {
	c.policies[class] = policy
}

// Register persists a new device record according to the class policy.
// Returns true when a record was written. Under RegisterIfAbsent an
// existing record makes Register a silent no-op.
func (c *Client) Register(ctx context.Context, rec models.DeviceRecord) (bool, error) {
	if rec.DeviceID == "" {
		return false, ErrEmptyDeviceID
	}

	if rec.Status == "" {
		rec.Status = models.StatusUnknown
	}

	now := time.Now().UTC()
	if rec.FirstSeen.IsZero() {
		rec.FirstSeen = now
	}

	rec.LastSeen = now

	policy := c.policies[rec.LocationClass]

	if policy == RegisterIfAbsent {
		exists, err := c.Exists(ctx, rec.DeviceID)
		if err != nil {
			return false, err
		}

		if exists {
			c.logger.Debug().
				Str("device_id", rec.DeviceID).
				Msg("device already registered, skipping")

			return false, nil
		}
	}

	doc, err := toDocument(rec)
	if err != nil {
		return false, err
	}

	_, err = c.store.Insert(ctx, devicesCollection, doc)

	switch {
	case err == nil:
	case errors.Is(err, db.ErrDuplicateID) && policy == RegisterAlways:
		// Lost the insert race or re-registering on a later pass. Refresh
		// only what this pass observed: command lists belong to the
		// learner and first_seen to the original registration.
		patch := cloneDocumentWithout(doc, "known_commands", "first_seen")

		if _, err = c.store.UpdateOne(ctx, devicesCollection,
			db.Document{"_id": rec.DeviceID}, patch); err != nil {
			return false, fmt.Errorf("upsert device %s: %w", rec.DeviceID, err)
		}
	case errors.Is(err, db.ErrDuplicateID):
		// Insert race under RegisterIfAbsent: someone else won, fine.
		return false, nil
	default:
		return false, fmt.Errorf("register device %s: %w", rec.DeviceID, err)
	}

	c.invalidate(ctx, rec.DeviceID)

	c.logger.Info().
		Str("device_id", rec.DeviceID).
		Str("location_class", string(rec.LocationClass)).
		Msg("device registered")

	return true, nil
}

// RegisterOrRetry wraps Register in the registration retry policy,
// retrying connectivity and timeout failures only. The outcome is reported
// as a boolean so batch discovery passes continue past individual devices.
func (c *Client) RegisterOrRetry(ctx context.Context, rec models.DeviceRecord) bool {
	registered, err := resilience.Retry(ctx, c.retryPolicy, c.logger,
		func(ctx context.Context) (bool, error) {
			return c.Register(ctx, rec)
		})
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("device_id", rec.DeviceID).
			Msg("device registration failed")

		return false
	}

	return registered
}

// Get fetches a device record, consulting the mirror first. Missing
// records surface models.ErrNotFound.
func (c *Client) Get(ctx context.Context, deviceID string) (*models.DeviceRecord, error) {
	if rec := c.fromMirror(ctx, deviceID); rec != nil {
		return rec, nil
	}

	doc, err := c.store.FindOne(ctx, devicesCollection, db.Document{"_id": deviceID})
	if err != nil {
		return nil, fmt.Errorf("get device %s: %w", deviceID, err)
	}

	if doc == nil {
		return nil, fmt.Errorf("device %s: %w", deviceID, models.ErrNotFound)
	}

	rec, err := fromDocument(doc)
	if err != nil {
		return nil, err
	}

	c.refreshMirror(ctx, rec)

	return rec, nil
}

// Exists reports whether a record with the given device_id is persisted.
func (c *Client) Exists(ctx context.Context, deviceID string) (bool, error) {
	doc, err := c.store.FindOne(ctx, devicesCollection, db.Document{"_id": deviceID})
	if err != nil {
		return false, fmt.Errorf("check device %s: %w", deviceID, err)
	}

	return doc != nil, nil
}

// List returns every registered device.
func (c *Client) List(ctx context.Context) ([]models.DeviceRecord, error) {
	docs, err := c.store.FindMany(ctx, devicesCollection, db.Document{}, 0)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	records := make([]models.DeviceRecord, 0, len(docs))

	for _, doc := range docs {
		rec, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}

		records = append(records, *rec)
	}

	return records, nil
}

// Update patches fields of an existing record. Not retried internally.
func (c *Client) Update(ctx context.Context, deviceID string, fields db.Document) error {
	modified, err := c.store.UpdateOne(ctx, devicesCollection,
		db.Document{"_id": deviceID}, fields)
	if err != nil {
		return fmt.Errorf("update device %s: %w", deviceID, err)
	}

	if modified == 0 {
		return fmt.Errorf("device %s: %w", deviceID, models.ErrNotFound)
	}

	c.invalidate(ctx, deviceID)

	return nil
}

// Delete removes a record. Deleting an unknown device surfaces
// models.ErrNotFound.
func (c *Client) Delete(ctx context.Context, deviceID string) error {
	deleted, err := c.store.DeleteOne(ctx, devicesCollection, db.Document{"_id": deviceID})
	if err != nil {
		return fmt.Errorf("delete device %s: %w", deviceID, err)
	}

	if deleted == 0 {
		return fmt.Errorf("device %s: %w", deviceID, models.ErrNotFound)
	}

	c.invalidate(ctx, deviceID)

	c.logger.Info().Str("device_id", deviceID).Msg("device deleted")

	return nil
}

// AppendCommands adds newly confirmed commands to a device's known set.
// Additive: previously confirmed commands are never dropped, duplicates
// are ignored.
func (c *Client) AppendCommands(ctx context.Context, deviceID string, commands ...string) error {
	rec, err := c.Get(ctx, deviceID)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(rec.KnownCommands))
	for _, cmd := range rec.KnownCommands {
		known[cmd] = struct{}{}
	}

	merged := rec.KnownCommands

	for _, cmd := range commands {
		if _, dup := known[cmd]; dup {
			continue
		}

		known[cmd] = struct{}{}
		merged = append(merged, cmd)
	}

	if len(merged) == len(rec.KnownCommands) {
		return nil
	}

	return c.Update(ctx, deviceID, db.Document{"known_commands": merged})
}

// ReplaceCommands overwrites the known-command set. This is the only
// operation allowed to drop previously confirmed commands.
func (c *Client) ReplaceCommands(ctx context.Context, deviceID string, commands []string) error {
	return c.Update(ctx, deviceID, db.Document{"known_commands": commands})
}

func (c *Client) invalidate(ctx context.Context, deviceID string) {
	if c.mirror == nil {
		return
	}

	if err := c.mirror.Delete(ctx, mirrorKeyPrefix+deviceID); err != nil {
		c.logger.Warn().Err(err).Str("device_id", deviceID).Msg("mirror invalidation failed")
	}
}

func (c *Client) refreshMirror(ctx context.Context, rec *models.DeviceRecord) {
	if c.mirror == nil {
		return
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}

	if err := c.mirror.Set(ctx, mirrorKeyPrefix+rec.DeviceID, string(raw), mirrorTTL); err != nil {
		c.logger.Warn().Err(err).Str("device_id", rec.DeviceID).Msg("mirror refresh failed")
	}
}

func (c *Client) fromMirror(ctx context.Context, deviceID string) *models.DeviceRecord {
	if c.mirror == nil {
		return nil
	}

	raw, found, err := c.mirror.Get(ctx, mirrorKeyPrefix+deviceID)
	if err != nil || !found {
		return nil
	}

	var rec models.DeviceRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil
	}

	return &rec
}

// toDocument converts a record through its JSON form so the store sees
// plain documents.
func toDocument(rec models.DeviceRecord) (db.Document, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode device %s: %w", rec.DeviceID, err)
	}

	var doc db.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode device %s: %w", rec.DeviceID, err)
	}

	return doc, nil
}

// cloneDocumentWithout copies a document minus the named fields, for
// patches that must leave parts of the stored record alone.
func cloneDocumentWithout(doc db.Document, fields ...string) db.Document {
	patch := make(db.Document, len(doc))
	for k, v := range doc {
		patch[k] = v
	}

	for _, field := range fields {
		delete(patch, field)
	}

	return patch
}

func fromDocument(doc db.Document) (*models.DeviceRecord, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("decode device record: %w", err)
	}

	var rec models.DeviceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode device record: %w", err)
	}

	return &rec, nil
}
