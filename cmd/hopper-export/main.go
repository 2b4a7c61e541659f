// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// hopper-export writes one virtual region file to disk, byte for byte
// as the mounted filesystem would serve it. It builds the same chunk
// pipeline as the daemon from the same config but never mounts, which
// makes it usable for inspecting a world with ordinary region tools.
//
// Usage:
//
//	hopper-export --config hopper.yaml --region -1,2 [--out r.-1.2.mca]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/hopper-foundation/hopper/lib/anvil"
	"github.com/hopper-foundation/hopper/lib/bootstrap"
	"github.com/hopper-foundation/hopper/lib/clock"
	"github.com/hopper-foundation/hopper/lib/config"
	"github.com/hopper-foundation/hopper/lib/metrics"
	"github.com/hopper-foundation/hopper/lib/process"
	"github.com/hopper-foundation/hopper/lib/service"
	"github.com/hopper-foundation/hopper/lib/version"
	"github.com/hopper-foundation/hopper/lib/virtualfile"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		configPath  string
		regionFlag  string
		outPath     string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("hopper-export", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to hopper.yaml (default: $HOPPER_CONFIG)")
	flagSet.StringVar(&regionFlag, "region", "", "region coordinates as x,z (required)")
	flagSet.StringVar(&outPath, "out", "", "output file (default: the region's file name)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}
	if showVersion {
		version.Print("hopper-export")
		return nil
	}

	region, err := parseRegion(regionFlag)
	if err != nil {
		return &process.ExitError{Code: 2, Err: fmt.Errorf("--region: %w", err)}
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if outPath == "" && len(cfg.Region.Extensions) > 0 {
		outPath = region.FileName(cfg.Region.Extensions[0])
	}

	// Progress goes to stderr as text; the export is interactive.
	logger, err := service.NewLogger(service.LoggerOptions{Level: cfg.Log.Level, Format: "text"})
	if err != nil {
		return err
	}

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
	defer pipeline.Close()

	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := export(ctx, pipeline.Engine, region, file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}

	logger.Info("region exported",
		"region", region,
		"out", outPath,
		"bytes", pipeline.Engine.Geometry().FileSize(),
	)
	fmt.Fprintln(os.Stderr, counters.Snapshot().Report())
	return nil
}

// parseRegion parses "x,z".
func parseRegion(value string) (anvil.RegionCoord, error) {
	xText, zText, ok := strings.Cut(value, ",")
	if !ok {
		return anvil.RegionCoord{}, fmt.Errorf("want x,z, got %q", value)
	}
	x, err := strconv.ParseInt(strings.TrimSpace(xText), 10, 32)
	if err != nil {
		return anvil.RegionCoord{}, fmt.Errorf("x: %w", err)
	}
	z, err := strconv.ParseInt(strings.TrimSpace(zText), 10, 32)
	if err != nil {
		return anvil.RegionCoord{}, fmt.Errorf("z: %w", err)
	}
	region := anvil.RegionCoord{X: int32(x), Z: int32(z)}
	if !region.Valid() {
		return anvil.RegionCoord{}, fmt.Errorf("region %d,%d is outside the world", x, z)
	}
	return region, nil
}

// exportWindow is the read size used to walk the region file: one
// header plus one slot at the default geometry.
const exportWindow = 1 << 20

// sparseFile is the output: written at offsets, sized up front so
// all-zero windows can be skipped.
type sparseFile interface {
	io.WriterAt
	Truncate(size int64) error
}

// export copies the whole region file into out. Windows that read as
// zeros are left as holes.
func export(ctx context.Context, engine *virtualfile.Engine, region anvil.RegionCoord, out sparseFile) error {
	size := engine.Geometry().FileSize()
	if err := out.Truncate(int64(size)); err != nil {
		return fmt.Errorf("sizing output: %w", err)
	}
	for offset := uint64(0); offset < size; offset += exportWindow {
		if err := ctx.Err(); err != nil {
			return err
		}
		length := int(min(exportWindow, size-offset))
		data := engine.ReadAt(ctx, region, offset, length)
		if allZero(data) {
			continue
		}
		if _, err := out.WriteAt(data, int64(offset)); err != nil {
			return fmt.Errorf("writing output at %d: %w", offset, err)
		}
	}
	return nil
}

func allZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
