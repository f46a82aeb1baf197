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

package resilience

import (
	"context"

	"github.com/carverauto/devscout/pkg/logger"
)

// OrDefault runs op and substitutes def when it fails, logging the error.
// It keeps one failing unit of work from aborting a larger batch.
func OrDefault[T any](ctx context.Context, log logger.Logger, name string, def T, op func(ctx context.Context) (T, error)) T {
	result, err := op(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Str("operation", name).
			Msg("operation failed, substituting default")

		return def
	}

	return result
}
