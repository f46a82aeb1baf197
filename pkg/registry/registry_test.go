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

package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/devscout/pkg/cache"
	"github.com/carverauto/devscout/pkg/db"
	"github.com/carverauto/devscout/pkg/logger"
	"github.com/carverauto/devscout/pkg/models"
)

// flakyStore fails Insert a configured number of times before delegating.
type flakyStore struct {
	*db.MemoryStore

	mu          sync.Mutex
	failures    int
	insertCalls int
	failWith    error
}

func (s *flakyStore) Insert(ctx context.Context, collection string, doc db.Document) (string, error) {
	s.mu.Lock()
	s.insertCalls++
	shouldFail := s.insertCalls <= s.failures
	s.mu.Unlock()

	if shouldFail {
		return "", s.failWith
	}

	return s.MemoryStore.Insert(ctx, collection, doc)
}

func (s *flakyStore) inserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertCalls
}

func fastRetryPolicy(maxAttempts int) models.RetryPolicy {
	return models.RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		RetryOn:     []models.ErrorClass{models.ClassTransient},
	}
}

func networkRecord(id string) models.DeviceRecord {
	return models.DeviceRecord{
		DeviceID:      id,
		LocationClass: models.LocationNetwork,
		Status:        models.StatusActive,
		Attributes:    map[string]string{"ip_address": "192.168.1.42"},
	}
}

func TestRegisterNetworkDeviceIsIdempotent(t *testing.T) {
	store := db.NewMemoryStore()
	client := NewClient(store, nil, logger.NewTestLogger())
	ctx := context.Background()

	registered, err := client.Register(ctx, networkRecord("network_device_42"))
	require.NoError(t, err)
	assert.True(t, registered)

	// Existing-before-register: second call is a silent no-op.
	registered, err = client.Register(ctx, networkRecord("network_device_42"))
	require.NoError(t, err)
	assert.False(t, registered)

	assert.Equal(t, 1, store.Count("devices"))
}

func TestRegisterIoTDeviceUpserts(t *testing.T) {
	store := db.NewMemoryStore()
	client := NewClient(store, nil, logger.NewTestLogger())
	ctx := context.Background()

	rec := models.DeviceRecord{
		DeviceID:      "iot_device_7",
		LocationClass: models.LocationIoT,
		Status:        models.StatusActive,
	}

	registered, err := client.Register(ctx, rec)
	require.NoError(t, err)
	assert.True(t, registered)

	rec.Status = models.StatusUnreachable

	registered, err = client.Register(ctx, rec)
	require.NoError(t, err)
	assert.True(t, registered, "IoT devices re-register every pass")

	assert.Equal(t, 1, store.Count("devices"))

	got, err := client.Get(ctx, "iot_device_7")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnreachable, got.Status)
}

func TestRegisterIoTDeviceUpsertPreservesLearnedCommands(t *testing.T) {
	store := db.NewMemoryStore()
	client := NewClient(store, nil, logger.NewTestLogger())
	ctx := context.Background()

	rec := models.DeviceRecord{
		DeviceID:      "iot_device_7",
		LocationClass: models.LocationIoT,
		Status:        models.StatusActive,
	}

	_, err := client.Register(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, client.ReplaceCommands(ctx, "iot_device_7", []string{"get_status", "turn_on"}))

	first, err := client.Get(ctx, "iot_device_7")
	require.NoError(t, err)

	// A later pass re-registers the device with no command knowledge.
	registered, err := client.Register(ctx, rec)
	require.NoError(t, err)
	assert.True(t, registered)

	got, err := client.Get(ctx, "iot_device_7")
	require.NoError(t, err)
	assert.Equal(t, []string{"get_status", "turn_on"}, got.KnownCommands,
		"re-registration must not erase learned commands")
	assert.Equal(t, first.FirstSeen, got.FirstSeen,
		"first_seen belongs to the original registration")
}

func TestRegisterOrRetryRecoversFromTransientFailures(t *testing.T) {
	store := &flakyStore{
		MemoryStore: db.NewMemoryStore(),
		failures:    2,
		failWith:    models.MarkTransient(errors.New("connection refused")),
	}

	client := NewClient(store, nil, logger.NewTestLogger())
	client.retryPolicy = fastRetryPolicy(5)

	rec := models.DeviceRecord{DeviceID: "iot_device_9", LocationClass: models.LocationIoT}

	assert.True(t, client.RegisterOrRetry(context.Background(), rec))
	assert.Equal(t, 3, store.inserts())
	assert.Equal(t, 1, store.Count("devices"))
}

func TestRegisterOrRetryAbortsOnPermanentError(t *testing.T) {
	store := &flakyStore{
		MemoryStore: db.NewMemoryStore(),
		failures:    100,
		failWith:    errors.New("schema validation failed"),
	}

	client := NewClient(store, nil, logger.NewTestLogger())
	client.retryPolicy = fastRetryPolicy(5)

	rec := models.DeviceRecord{DeviceID: "iot_device_9", LocationClass: models.LocationIoT}

	assert.False(t, client.RegisterOrRetry(context.Background(), rec))
	assert.Equal(t, 1, store.inserts(), "permanent errors must not be retried")
}

func TestRegisterOrRetryExhaustsAttempts(t *testing.T) {
	store := &flakyStore{
		MemoryStore: db.NewMemoryStore(),
		failures:    100,
		failWith:    models.ErrTimeout,
	}

	client := NewClient(store, nil, logger.NewTestLogger())
	client.retryPolicy = fastRetryPolicy(5)

	rec := models.DeviceRecord{DeviceID: "iot_device_9", LocationClass: models.LocationIoT}

	assert.False(t, client.RegisterOrRetry(context.Background(), rec))
	assert.Equal(t, 5, store.inserts())
}

func TestRegisterRejectsEmptyDeviceID(t *testing.T) {
	client := NewClient(db.NewMemoryStore(), nil, logger.NewTestLogger())

	_, err := client.Register(context.Background(), models.DeviceRecord{})
	assert.ErrorIs(t, err, ErrEmptyDeviceID)
}

func TestGetMissingDeviceReturnsNotFound(t *testing.T) {
	client := NewClient(db.NewMemoryStore(), nil, logger.NewTestLogger())

	_, err := client.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, models.ClassNotFound, models.Classify(err))
}

func TestDeleteDevice(t *testing.T) {
	store := db.NewMemoryStore()
	client := NewClient(store, nil, logger.NewTestLogger())
	ctx := context.Background()

	_, err := client.Register(ctx, networkRecord("network_device_1"))
	require.NoError(t, err)

	require.NoError(t, client.Delete(ctx, "network_device_1"))
	assert.Zero(t, store.Count("devices"))

	err = client.Delete(ctx, "network_device_1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAppendCommandsIsAdditive(t *testing.T) {
	client := NewClient(db.NewMemoryStore(), nil, logger.NewTestLogger())
	ctx := context.Background()

	rec := networkRecord("network_device_3")
	rec.KnownCommands = []string{"get_status"}

	_, err := client.Register(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, client.AppendCommands(ctx, "network_device_3", "reboot", "get_status"))

	got, err := client.Get(ctx, "network_device_3")
	require.NoError(t, err)
	assert.Equal(t, []string{"get_status", "reboot"}, got.KnownCommands,
		"append keeps confirmed commands and ignores duplicates")
}

func TestReplaceCommandsOverwrites(t *testing.T) {
	client := NewClient(db.NewMemoryStore(), nil, logger.NewTestLogger())
	ctx := context.Background()

	rec := networkRecord("network_device_4")
	rec.KnownCommands = []string{"old_command"}

	_, err := client.Register(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, client.ReplaceCommands(ctx, "network_device_4", []string{"get_status"}))

	got, err := client.Get(ctx, "network_device_4")
	require.NoError(t, err)
	assert.Equal(t, []string{"get_status"}, got.KnownCommands)
}

func TestMirrorInvalidatedOnWrite(t *testing.T) {
	store := db.NewMemoryStore()
	mirror := cache.NewMemoryCache()
	client := NewClient(store, mirror, logger.NewTestLogger())
	ctx := context.Background()

	rec := networkRecord("network_device_8")

	_, err := client.Register(ctx, rec)
	require.NoError(t, err)

	// Populate the mirror via a read.
	_, err = client.Get(ctx, "network_device_8")
	require.NoError(t, err)

	_, found, err := mirror.Get(ctx, "device.network_device_8")
	require.NoError(t, err)
	assert.True(t, found, "read must populate the mirror")

	// A write invalidates it; the next read sees fresh store state.
	require.NoError(t, client.Update(ctx, "network_device_8",
		db.Document{"status": string(models.StatusUnreachable)}))

	_, found, err = mirror.Get(ctx, "device.network_device_8")
	require.NoError(t, err)
	assert.False(t, found, "write must invalidate the mirror")

	got, err := client.Get(ctx, "network_device_8")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnreachable, got.Status)
}

func TestConcurrentRegistrationDistinctDevices(t *testing.T) {
	store := db.NewMemoryStore()
	client := NewClient(store, nil, logger.NewTestLogger())

	var wg sync.WaitGroup

	for i := 1; i <= 40; i++ {
		wg.Add(1)

		go func(octet int) {
			defer wg.Done()

			rec := models.DeviceRecord{
				DeviceID:      models.NetworkDeviceID(fmt.Sprintf("192.168.1.%d", octet)),
				LocationClass: models.LocationNetwork,
			}

			_, err := client.Register(context.Background(), rec)
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 40, store.Count("devices"))
}
