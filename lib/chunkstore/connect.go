// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hopper-foundation/hopper/lib/clock"
)

// ConnectConfig bounds the bootstrap retry loop.
type ConnectConfig struct {
	// Attempts is the total number of open calls, at least 1.
	Attempts int

	// Backoff is the fixed wait between attempts.
	Backoff time.Duration

	// Clock is required.
	Clock clock.Clock

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Connect calls open until it succeeds, returns an error that does not
// wrap ErrUnavailable, or runs out of attempts. Only unavailability is
// retried: a manifest mismatch or a bad path will not fix itself.
func Connect(ctx context.Context, config ConnectConfig, open func(context.Context) (Store, error)) (Store, error) {
	if config.Clock == nil {
		return nil, fmt.Errorf("chunkstore: connect: Clock is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	attempts := max(config.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		store, err := open(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("chunk store reachable", "attempt", attempt)
			}
			return store, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		logger.Warn("chunk store unreachable, retrying",
			"attempt", attempt,
			"attempts", attempts,
			"backoff", config.Backoff,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("chunkstore: connect: %w", ctx.Err())
		case <-config.Clock.After(config.Backoff):
		}
	}
	return nil, fmt.Errorf("chunkstore: connect: giving up after %d attempts: %w", attempts, lastErr)
}
