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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/devscout/pkg/cache"
	"github.com/carverauto/devscout/pkg/config"
	"github.com/carverauto/devscout/pkg/db"
	"github.com/carverauto/devscout/pkg/discovery"
	"github.com/carverauto/devscout/pkg/learner"
	"github.com/carverauto/devscout/pkg/logger"
	"github.com/carverauto/devscout/pkg/registry"
	"github.com/carverauto/devscout/pkg/transport"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/devscout/devscout.json", "Path to devscout config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()

	if _, err := os.Stat(*configPath); err == nil {
		loaded, loadErr := config.LoadFromFile(*configPath)
		if loadErr != nil {
			return fmt.Errorf("%w: %w", errFailedToLoadConfig, loadErr)
		}

		cfg = loaded
	}

	mainLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	deviceCache, err := buildCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer deviceCache.Close()

	reg := registry.NewClient(db.NewMemoryStore(), deviceCache, mainLogger)

	var commandLearner discovery.CommandLearner

	if cfg.Learner.Enabled {
		commandLearner = learner.New(
			reg,
			transport.NewSSHExecutor(),
			learner.NewFileDocLoader(cfg.Learner.DocsDir),
			deviceCache,
			learner.Options{
				Vocabulary:  cfg.Learner.Vocabulary,
				Concurrency: cfg.Learner.Concurrency,
				CommandRate: cfg.Learner.CommandRate,
				User:        cfg.Learner.User,
				Credential:  cfg.Learner.Credential,
			},
			mainLogger,
		)
	}

	orchestrator := discovery.New(
		reg,
		transport.NewSNMPClient(cfg.SNMP.Community, cfg.SNMP.Port),
		commandLearner,
		discovery.Options{
			ProbeTimeout:  time.Duration(cfg.Discovery.ProbeTimeout),
			Concurrency:   cfg.Discovery.Concurrency,
			SNMPPort:      cfg.SNMP.Port,
			NetworkPrefix: cfg.Discovery.NetworkPrefix,
		},
		mainLogger,
	)

	mainLogger.Info().
		Str("interval", time.Duration(cfg.Discovery.Interval).String()).
		Bool("learning", cfg.Learner.Enabled).
		Msg("devscout starting")

	runPasses(ctx, orchestrator, mainLogger, time.Duration(cfg.Discovery.Interval))

	mainLogger.Info().Msg("devscout shutting down")

	return nil
}

// runPasses executes one discovery pass immediately and then keeps
// running them on the configured interval until ctx is canceled.
func runPasses(ctx context.Context, o *discovery.Orchestrator, log logger.Logger, interval time.Duration) {
	if err := o.DiscoverAll(ctx); err != nil {
		log.Error().Err(err).Msg("Discovery pass failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.DiscoverAll(ctx); err != nil {
				log.Error().Err(err).Msg("Discovery pass failed")
			}
		}
	}
}

func buildCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case config.BackendNats:
		c, err := cache.NewNatsCache(ctx, cfg.Cache.NatsURL, cfg.Cache.Bucket, time.Duration(cfg.Cache.TTL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize nats cache: %w", err)
		}

		return c, nil
	default:
		return cache.NewMemoryCache(), nil
	}
}
