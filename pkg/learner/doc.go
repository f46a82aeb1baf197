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

// Package learner discovers the command surface of a device: first from a
// documentation artifact, then by trial-and-error probing, and additively
// during normal command execution.
package learner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CommandDoc is the documentation artifact for one device.
type CommandDoc struct {
	Commands []string `json:"commands"`
}

// DocLoader retrieves command documentation for a device. A nil doc with
// a nil error means no documentation exists.
type DocLoader interface {
	Load(ctx context.Context, deviceID string) (*CommandDoc, error)
}

// FileDocLoader reads documentation artifacts from a directory, one JSON
// file per device named <deviceID>.json.
type FileDocLoader struct {
	dir string
}

var _ DocLoader = (*FileDocLoader)(nil)

// NewFileDocLoader returns a loader rooted at dir.
func NewFileDocLoader(dir string) *FileDocLoader {
	return &FileDocLoader{dir: dir}
}

// Load reads the artifact for deviceID. An absent file is not an error.
func (l *FileDocLoader) Load(_ context.Context, deviceID string) (*CommandDoc, error) {
	path := filepath.Join(l.dir, deviceID+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("read command doc %s: %w", path, err)
	}

	var doc CommandDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse command doc %s: %w", path, err)
	}

	return &doc, nil
}
