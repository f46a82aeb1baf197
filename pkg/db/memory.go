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
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements DocumentStore for tests and standalone runs.
// A single RWMutex guards all collections; the write rate of a discovery
// pass stays far below contention levels that would justify sharding.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Document
}

var _ DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]Document)}
}

func (s *MemoryStore) Insert(_ context.Context, collection string, doc Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, hasID := doc["_id"].(string)
	if !hasID || id == "" {
		id = uuid.NewString()
	}

	for _, existing := range s.collections[collection] {
		if existing["_id"] == id {
			return "", ErrDuplicateID
		}
	}

	stored := cloneDocument(doc)
	stored["_id"] = id
	s.collections[collection] = append(s.collections[collection], stored)

	return id, nil
}

func (s *MemoryStore) FindOne(_ context.Context, collection string, query Document) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.collections[collection] {
		if matches(doc, query) {
			return cloneDocument(doc), nil
		}
	}

	return nil, nil
}

func (s *MemoryStore) FindMany(_ context.Context, collection string, query Document, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []Document

	for _, doc := range s.collections[collection] {
		if matches(doc, query) {
			found = append(found, cloneDocument(doc))

			if limit > 0 && len(found) >= limit {
				break
			}
		}
	}

	return found, nil
}

func (s *MemoryStore) UpdateOne(_ context.Context, collection string, query, patch Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.collections[collection] {
		if matches(doc, query) {
			for k, v := range patch {
				if k == "_id" {
					continue
				}

				doc[k] = v
			}

			return 1, nil
		}
	}

	return 0, nil
}

func (s *MemoryStore) DeleteOne(_ context.Context, collection string, query Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]

	for i, doc := range docs {
		if matches(doc, query) {
			s.collections[collection] = append(docs[:i], docs[i+1:]...)
			return 1, nil
		}
	}

	return 0, nil
}

// Count returns the number of documents in a collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.collections[collection])
}

// matches implements exact top-level field equality, the only query shape
// the registry issues.
func matches(doc, query Document) bool {
	for k, want := range query {
		if doc[k] != want {
			return false
		}
	}

	return true
}

// cloneDocument shallow-copies a document so callers never alias stored
// state.
func cloneDocument(doc Document) Document {
	clone := make(Document, len(doc))
	for k, v := range doc {
		clone[k] = v
	}

	return clone
}
