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

// Package db defines the document-store collaborator interface the
// registry persists through. The store engine itself is external; this
// package carries the contract plus an in-memory implementation used by
// tests and standalone runs.
package db

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateID means an insert collided with an existing _id.
	// Permanent; callers decide whether the collision is meaningful.
	ErrDuplicateID = errors.New("duplicate document id")
)

// Document is a schemaless record. Inserted documents carry their identity
// under "_id".
type Document = map[string]interface{}

// DocumentStore is the persistence collaborator. All operations must be
// safe to call concurrently; writes keyed by distinct _ids need no
// coordination, concurrent writes to the same _id are last-write-wins.
type DocumentStore interface {
	// Insert adds a document and returns its id. A document whose _id
	// already exists fails with ErrDuplicateID.
	Insert(ctx context.Context, collection string, doc Document) (string, error)

	// FindOne returns the first document matching query, or (nil, nil)
	// when nothing matches. An absent document is not an error.
	FindOne(ctx context.Context, collection string, query Document) (Document, error)

	// FindMany returns up to limit matching documents (limit <= 0 means
	// no limit).
	FindMany(ctx context.Context, collection string, query Document, limit int) ([]Document, error)

	// UpdateOne patches the first matching document and returns the
	// number of documents modified (0 when nothing matched).
	UpdateOne(ctx context.Context, collection string, query, patch Document) (int64, error)

	// DeleteOne removes the first matching document and returns the
	// number of documents deleted.
	DeleteOne(ctx context.Context, collection string, query Document) (int64, error)
}
