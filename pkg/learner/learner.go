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

package learner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/devscout/pkg/cache"
	"github.com/carverauto/devscout/pkg/logger"
	"github.com/carverauto/devscout/pkg/models"
	"github.com/carverauto/devscout/pkg/registry"
	"github.com/carverauto/devscout/pkg/resilience"
	"github.com/carverauto/devscout/pkg/transport"
)

// State is the terminal state of a learning run for one device.
type State string

const (
	// StateCommandsExtracted means commands came from documentation.
	StateCommandsExtracted State = "commands_extracted"

	// StateCommandsLearned means commands came from trial-and-error.
	StateCommandsLearned State = "commands_learned"

	// StateNoDocumentation means nothing worked; no state was persisted.
	StateNoDocumentation State = "no_documentation"
)

// DefaultVocabulary is the candidate set probed during trial-and-error
// when no per-deployment vocabulary is configured.
var DefaultVocabulary = []string{"turn_on", "turn_off", "get_status", "set_mode"}

// stateHash is the cache hash holding per-device state snapshots.
const stateHash = "device_state"

// attrAddress is the device-record attribute naming the reachable host.
const attrAddress = "ip"

// Learner probes devices for their command surface and persists what it
// finds through the registry client.
type Learner struct {
	registry   *registry.Client
	executor   transport.CommandExecutor
	docs       DocLoader
	cache      cache.Cache
	throttle   *resilience.Throttle
	limiter    *resilience.RateLimiter
	vocabulary []string
	user       string
	credential string
	logger     logger.Logger
}

// Options configures a Learner.
type Options struct {
	// Vocabulary is the candidate command set for trial-and-error.
	// Empty means DefaultVocabulary.
	Vocabulary []string

	// Concurrency caps parallel command probes. Zero means the
	// resilience default.
	Concurrency int

	// CommandRate caps commands per second against any one device.
	// Zero means unlimited.
	CommandRate float64

	// User and Credential authenticate command execution on devices.
	User       string
	Credential string
}

// New returns a Learner wired to its collaborators.
func New(reg *registry.Client, exec transport.CommandExecutor, docs DocLoader, c cache.Cache, opts Options, log logger.Logger) *Learner {
	vocab := opts.Vocabulary
	if len(vocab) == 0 {
		vocab = DefaultVocabulary
	}

	var limiter *resilience.RateLimiter
	if opts.CommandRate > 0 {
		limiter = resilience.NewRateLimiter(opts.CommandRate)
	}

	return &Learner{
		registry:   reg,
		executor:   exec,
		docs:       docs,
		cache:      c,
		throttle:   resilience.NewThrottle(opts.Concurrency),
		limiter:    limiter,
		vocabulary: vocab,
		user:       opts.User,
		credential: opts.Credential,
		logger:     log.WithComponent("learner"),
	}
}

// Learn resolves the command surface of deviceID. Documentation wins when
// it exists and names at least one command; otherwise every vocabulary
// candidate is probed and the survivors are persisted. When nothing
// succeeds, no record is touched and ErrNoCommandsLearned is returned.
func (l *Learner) Learn(ctx context.Context, deviceID string) (State, error) {
	rec, err := l.registry.Get(ctx, deviceID)
	if err != nil {
		return StateNoDocumentation, fmt.Errorf("load device %s: %w", deviceID, err)
	}

	doc, err := l.docs.Load(ctx, deviceID)
	if err != nil {
		l.logger.Warn().Err(err).Str("device_id", deviceID).Msg("Documentation lookup failed, falling back to trial-and-error")
	}

	if doc != nil && len(doc.Commands) > 0 {
		if err := l.registry.ReplaceCommands(ctx, deviceID, doc.Commands); err != nil {
			return StateNoDocumentation, fmt.Errorf("persist documented commands for %s: %w", deviceID, err)
		}

		l.logger.Info().
			Str("device_id", deviceID).
			Int("commands", len(doc.Commands)).
			Msg("Commands extracted from documentation")

		return StateCommandsExtracted, nil
	}

	learned, err := l.trialAndError(ctx, rec)
	if err != nil {
		return StateNoDocumentation, err
	}

	if len(learned) == 0 {
		l.logger.Warn().Str("device_id", deviceID).Msg("Trial-and-error learned nothing")

		return StateNoDocumentation, fmt.Errorf("device %s: %w", deviceID, ErrNoCommandsLearned)
	}

	if err := l.registry.ReplaceCommands(ctx, deviceID, learned); err != nil {
		return StateNoDocumentation, fmt.Errorf("persist learned commands for %s: %w", deviceID, err)
	}

	l.logger.Info().
		Str("device_id", deviceID).
		Int("commands", len(learned)).
		Msg("Commands learned by trial-and-error")

	return StateCommandsLearned, nil
}

// trialAndError probes the whole vocabulary concurrently under the
// throttle and returns the candidates that executed successfully, in
// vocabulary order.
func (l *Learner) trialAndError(ctx context.Context, rec *models.DeviceRecord) ([]string, error) {
	host := rec.Attributes[attrAddress]
	if host == "" {
		return nil, fmt.Errorf("device %s: %w", rec.DeviceID, ErrNoAddress)
	}

	attempts := make([]models.LearningAttempt, len(l.vocabulary))

	var wg sync.WaitGroup

	for i, command := range l.vocabulary {
		wg.Add(1)

		go func(i int, command string) {
			defer wg.Done()

			err := l.throttle.Do(ctx, func(ctx context.Context) error {
				_, _, execErr := l.execute(ctx, host, command)

				return execErr
			})

			attempts[i] = models.LearningAttempt{
				Command:   command,
				Succeeded: err == nil,
				Timestamp: time.Now(),
			}

			if err != nil {
				l.logger.Debug().
					Err(err).
					Str("device_id", rec.DeviceID).
					Str("command", command).
					Msg("Candidate command failed")
			}
		}(i, command)
	}

	wg.Wait()

	learned := make([]string, 0, len(attempts))

	for _, attempt := range attempts {
		if attempt.Succeeded {
			learned = append(learned, attempt.Command)
		}
	}

	return learned, nil
}

// SendCommand executes command against deviceID and returns its stdout.
// An unrecognized command that succeeds is appended to the device's
// known set, so the registry keeps up with capabilities discovered
// outside the learning pass.
func (l *Learner) SendCommand(ctx context.Context, deviceID, command string, params map[string]string) (string, error) {
	rec, err := l.registry.Get(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("load device %s: %w", deviceID, err)
	}

	host := rec.Attributes[attrAddress]
	if host == "" {
		return "", fmt.Errorf("device %s: %w", deviceID, ErrNoAddress)
	}

	stdout, stderr, err := l.execute(ctx, host, renderCommand(command, params))
	if err != nil {
		l.logger.Debug().
			Err(err).
			Str("device_id", deviceID).
			Str("command", command).
			Str("stderr", stderr).
			Msg("Command execution failed")

		return stdout, fmt.Errorf("execute %q on %s: %w", command, deviceID, err)
	}

	if !knowsCommand(rec, command) {
		if appendErr := l.registry.AppendCommands(ctx, deviceID, command); appendErr != nil {
			l.logger.Warn().
				Err(appendErr).
				Str("device_id", deviceID).
				Str("command", command).
				Msg("Failed to record newly observed command")
		} else {
			l.logger.Info().
				Str("device_id", deviceID).
				Str("command", command).
				Msg("Learned new command additively")
		}
	}

	return stdout, nil
}

// StoreState snapshots arbitrary device state into the cache as JSON.
func (l *Learner) StoreState(ctx context.Context, deviceID string, state map[string]interface{}) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state for %s: %w", deviceID, err)
	}

	if err := l.cache.HashSet(ctx, stateHash, deviceID, string(payload)); err != nil {
		return fmt.Errorf("store state for %s: %w", deviceID, err)
	}

	return nil
}

// LoadState returns the last stored state snapshot, or nil when none
// exists.
func (l *Learner) LoadState(ctx context.Context, deviceID string) (map[string]interface{}, error) {
	payload, found, err := l.cache.HashGet(ctx, stateHash, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load state for %s: %w", deviceID, err)
	}

	if !found {
		return nil, nil
	}

	var state map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("decode state for %s: %w", deviceID, err)
	}

	return state, nil
}

// execute runs one command against host, honoring the rate cap when one
// is configured.
func (l *Learner) execute(ctx context.Context, host, command string) (string, string, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", "", err
		}
	}

	return l.executor.Execute(ctx, host, l.user, l.credential, command)
}

// renderCommand flattens params onto the command line in a stable order.
func renderCommand(command string, params map[string]string) string {
	if len(params) == 0 {
		return command
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	line := command
	for _, k := range keys {
		line += fmt.Sprintf(" %s=%s", k, params[k])
	}

	return line
}

func knowsCommand(rec *models.DeviceRecord, command string) bool {
	for _, known := range rec.KnownCommands {
		if known == command {
			return true
		}
	}

	return false
}
