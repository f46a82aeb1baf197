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

package models

import "time"

// ScanTarget is one address or bus slot to probe. Targets are ephemeral;
// they exist only for the duration of a single discovery pass.
type ScanTarget struct {
	Address string `json:"address"`
	Port    int    `json:"port,omitempty"`
}

// ScanResult is the outcome of probing a single target.
type ScanResult struct {
	Target        ScanTarget    `json:"target"`
	Succeeded     bool          `json:"succeeded"`
	Payload       interface{}   `json:"payload,omitempty"`
	FailureReason ErrorClass    `json:"failure_reason,omitempty"`
	RespTime      time.Duration `json:"response_time,omitempty"`
}

// LearningAttempt records a single probe of a candidate command against a
// device during trial-and-error learning. Transient; never persisted.
type LearningAttempt struct {
	Command   string    `json:"command"`
	Succeeded bool      `json:"succeeded"`
	Timestamp time.Time `json:"timestamp"`
}
