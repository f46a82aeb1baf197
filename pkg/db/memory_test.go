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

package db

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreInsertAndFindOne(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Insert(ctx, "devices", Document{"_id": "network_device_5", "status": "active"})
	require.NoError(t, err)
	assert.Equal(t, "network_device_5", id)

	doc, err := store.FindOne(ctx, "devices", Document{"_id": "network_device_5"})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "active", doc["status"])
}

func TestMemoryStoreFindOneAbsentIsNotError(t *testing.T) {
	store := NewMemoryStore()

	doc, err := store.FindOne(context.Background(), "devices", Document{"_id": "missing"})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestMemoryStoreDuplicateInsert(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Insert(ctx, "devices", Document{"_id": "dev_1"})
	require.NoError(t, err)

	_, err = store.Insert(ctx, "devices", Document{"_id": "dev_1"})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, store.Count("devices"))
}

func TestMemoryStoreGeneratesIDWhenMissing(t *testing.T) {
	store := NewMemoryStore()

	id, err := store.Insert(context.Background(), "devices", Document{"status": "unknown"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestMemoryStoreUpdateOne(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Insert(ctx, "devices", Document{"_id": "dev_1", "status": "unknown"})
	require.NoError(t, err)

	modified, err := store.UpdateOne(ctx, "devices", Document{"_id": "dev_1"}, Document{"status": "active"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	doc, err := store.FindOne(ctx, "devices", Document{"_id": "dev_1"})
	require.NoError(t, err)
	assert.Equal(t, "active", doc["status"])

	modified, err = store.UpdateOne(ctx, "devices", Document{"_id": "missing"}, Document{"status": "active"})
	require.NoError(t, err)
	assert.Zero(t, modified)
}

func TestMemoryStoreDeleteOne(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Insert(ctx, "devices", Document{"_id": "dev_1"})
	require.NoError(t, err)

	deleted, err := store.DeleteOne(ctx, "devices", Document{"_id": "dev_1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = store.DeleteOne(ctx, "devices", Document{"_id": "dev_1"})
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestMemoryStoreFindManyWithLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Insert(ctx, "devices", Document{"_id": fmt.Sprintf("dev_%d", i), "status": "active"})
		require.NoError(t, err)
	}

	docs, err := store.FindMany(ctx, "devices", Document{"status": "active"}, 3)
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	docs, err = store.FindMany(ctx, "devices", Document{}, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 5)
}

func TestMemoryStoreConcurrentDistinctWrites(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			_, err := store.Insert(context.Background(), "devices",
				Document{"_id": fmt.Sprintf("network_device_%d", n)})
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 50, store.Count("devices"))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Insert(ctx, "devices", Document{"_id": "dev_1", "status": "active"})
	require.NoError(t, err)

	doc, err := store.FindOne(ctx, "devices", Document{"_id": "dev_1"})
	require.NoError(t, err)

	doc["status"] = "mutated"

	fresh, err := store.FindOne(ctx, "devices", Document{"_id": "dev_1"})
	require.NoError(t, err)
	assert.Equal(t, "active", fresh["status"])
}
