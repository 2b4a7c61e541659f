// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap assembles the chunk pipeline from a loaded
// configuration: the chunk store (reached through the bootstrap retry
// loop), the world generator, the caching provider, and the virtual
// file engine. The daemon and the export tool both start here, so the
// two binaries serve byte-identical region files for one config.
//
// Mounting is left to the caller: the export tool reads the engine
// directly and never touches FUSE.
package bootstrap
