// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads hopper's YAML configuration.
//
// The file is named by the --config flag or, through [Load], the
// HOPPER_CONFIG environment variable. There is no discovery and no
// environment variable overrides individual values, so the file on disk
// is the complete description of a mount.
//
// Values not present in the file keep the [Default] values. A
// development or production block overrides any subset of the base
// sections when environment matches:
//
//	environment: production
//	mount:
//	  mountpoint: ${HOME}/server/world/region
//	world:
//	  generator: terrain
//	  seed: 8675309
//	store:
//	  backend: sqlite
//	  path: ${HOPPER_DATA:-/var/lib/hopper}/chunks.db
//	production:
//	  cache:
//	    max_chunks: 65536
//	    prefetch_radius: 2
//
// ${VAR} and ${VAR:-default} are expanded in mount.mountpoint and
// store.path after overrides are applied.
//
// The development environment turns on strict chunk format checks
// (see [Config.ChunkFormat]).
package config
