// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// hopper mounts a directory of virtual Minecraft region files. Every
// region file the game server opens is synthesized on demand: chunks
// come from the persistent chunk store when present and from the
// configured world generator otherwise.
//
// Usage:
//
//	hopper --config hopper.yaml [--mountpoint DIR] [--generator flat|terrain] [--seed N]
//
// The process runs until SIGINT or SIGTERM, or until the mount is
// removed externally (fusermount -u), then unmounts and closes the
// store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/hopper-foundation/hopper/lib/bootstrap"
	"github.com/hopper-foundation/hopper/lib/clock"
	"github.com/hopper-foundation/hopper/lib/metrics"
	"github.com/hopper-foundation/hopper/lib/process"
	"github.com/hopper-foundation/hopper/lib/regionfs"
	"github.com/hopper-foundation/hopper/lib/service"
	"github.com/hopper-foundation/hopper/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	flags := newFlags()
	if err := flags.parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if flags.showVersion {
		version.Print("hopper")
		return nil
	}

	cfg, err := flags.load()
	if err != nil {
		return err
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Mount.Mountpoint == "" {
		return fmt.Errorf("no mountpoint: set mount.mountpoint or pass --mountpoint")
	}

	logger, err := service.NewLogger(service.LoggerOptions{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return err
	}
	logger.Info("starting hopper",
		"version", version.Full(),
		"environment", cfg.Environment,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()
	counters := metrics.NewCounters(clk)

	pipeline, err := bootstrap.Start(ctx, cfg, bootstrap.Options{
		Clock:    clk,
		Observer: counters,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logger.Error("closing chunk store", "error", err)
		}
	}()

	server, err := regionfs.Mount(regionfs.Options{
		Mountpoint:  cfg.Mount.Mountpoint,
		Engine:      pipeline.Engine,
		Extensions:  cfg.Region.Extensions,
		ListRegions: cfg.Mount.ListRegions && pipeline.Regions != nil,
		Regions:     pipeline.Regions,
		Usage:       pipeline.Provider,
		AllowOther:  cfg.Mount.AllowOther,
		Clock:       clk,
		Logger:      logger.With("component", "regionfs"),
	})
	if err != nil {
		return err
	}

	// Wait returns once the kernel drops the mount, whether we
	// unmounted it or someone else did.
	serverDone := make(chan struct{})
	go func() {
		server.Wait()
		close(serverDone)
	}()

	if cfg.Metrics.ReportInterval > 0 {
		go reportLoop(ctx, clk, cfg.Metrics.ReportInterval, counters, logger)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := server.Unmount(); err != nil {
			logger.Error("unmount failed", "mountpoint", cfg.Mount.Mountpoint, "error", err)
		}
		<-serverDone
	case <-serverDone:
		logger.Warn("filesystem unmounted externally, shutting down",
			"mountpoint", cfg.Mount.Mountpoint)
	}

	logger.Info("final statistics", "stats", counters.Snapshot())
	return nil
}

// reportLoop logs a counter snapshot every interval until ctx ends.
func reportLoop(ctx context.Context, clk clock.Clock, interval time.Duration, counters *metrics.Counters, logger *slog.Logger) {
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("chunk statistics", "stats", counters.Snapshot())
		}
	}
}
