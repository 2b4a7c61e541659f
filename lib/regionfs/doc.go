// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package regionfs exposes virtual region files through a FUSE mount.
//
// The mount is one flat directory. Any canonical region file name
// (r.<x>.<z>.<ext> with a served extension) resolves on lookup to a
// regular file of fixed size whose bytes come from a
// [virtualfile.Engine]. Node identifiers carry the region coordinates
// (see package nodeid), so no inode table is kept and a forgotten node
// is rebuilt from its name alone.
//
// The directory is permissive toward the game server's housekeeping:
// creating, renaming, and unlinking files succeed, and names that are
// not region files become transient nodes that swallow their writes.
// The directory lists nothing by default; with ListRegions it lists
// the regions that have persisted chunks.
package regionfs
