// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/pflag"

	"github.com/hopper-foundation/hopper/lib/config"
)

// flags are the command-line settings. Any flag given explicitly
// overrides the value from the config file.
type flags struct {
	configPath  string
	mountpoint  string
	generator   string
	seed        int64
	showVersion bool

	set *pflag.FlagSet
}

func newFlags() *flags {
	f := &flags{set: pflag.NewFlagSet("hopper", pflag.ContinueOnError)}
	f.set.StringVar(&f.configPath, "config", "", "path to hopper.yaml (default: $HOPPER_CONFIG)")
	f.set.StringVar(&f.mountpoint, "mountpoint", "", "directory to mount the region filesystem on")
	f.set.StringVar(&f.generator, "generator", "", "world generator: flat or terrain")
	f.set.Int64Var(&f.seed, "seed", 0, "terrain generator seed")
	f.set.BoolVar(&f.showVersion, "version", false, "print version information and exit")
	return f
}

func (f *flags) parse(args []string) error {
	return f.set.Parse(args)
}

// load reads the config file named by --config, or by HOPPER_CONFIG
// when the flag is absent.
func (f *flags) load() (*config.Config, error) {
	if f.configPath != "" {
		return config.LoadFile(f.configPath)
	}
	return config.Load()
}

// apply copies explicitly set flags over cfg.
func (f *flags) apply(cfg *config.Config) {
	if f.set.Changed("mountpoint") {
		cfg.Mount.Mountpoint = f.mountpoint
	}
	if f.set.Changed("generator") {
		cfg.World.Generator = f.generator
	}
	if f.set.Changed("seed") {
		cfg.World.Seed = f.seed
	}
}
