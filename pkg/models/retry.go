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

// RetryPolicy configures the retry executor. Policies are immutable value
// objects; a single policy may be shared read-only by any number of
// concurrent retry executions.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	Jitter      bool          `json:"jitter"`
	RetryOn     []ErrorClass  `json:"retry_on,omitempty"`
}

// DefaultRetryPolicy retries transient failures up to three times with a
// short exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    20 * time.Second,
		Jitter:      true,
		RetryOn:     []ErrorClass{ClassTransient},
	}
}

// RegistrationRetryPolicy is the policy used when persisting a freshly
// discovered device: five attempts, 2s base delay capped at 20s, jittered,
// retrying only on connectivity and timeout failures.
func RegistrationRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    20 * time.Second,
		Jitter:      true,
		RetryOn:     []ErrorClass{ClassTransient},
	}
}

// Retryable reports whether the policy retries errors of the given class.
// A policy with no explicit classes retries transient failures only.
func (p RetryPolicy) Retryable(class ErrorClass) bool {
	if len(p.RetryOn) == 0 {
		return class == ClassTransient
	}

	for _, c := range p.RetryOn {
		if c == class {
			return true
		}
	}

	return false
}
