// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package regionfs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hopper-foundation/hopper/lib/chunkstore"
	"github.com/hopper-foundation/hopper/lib/clock"
	"github.com/hopper-foundation/hopper/lib/virtualfile"
)

// Usage reports the bytes held by the persistent store, for statfs.
type Usage interface {
	TotalPersistedSize(ctx context.Context) (uint64, error)
}

// Options configures the mount.
type Options struct {
	// Mountpoint is created if it does not exist. A stale FUSE mount
	// left there by a crashed process is detached first.
	Mountpoint string

	// Engine serves region file contents. Required.
	Engine *virtualfile.Engine

	// Extensions are the region file extensions served, without the
	// dot. Defaults to ["mca"].
	Extensions []string

	// ListRegions makes the root directory list the regions returned
	// by Regions. Without it the directory lists nothing but lookups
	// still resolve.
	ListRegions bool
	Regions     chunkstore.RegionLister

	// Usage feeds statfs. Nil reports zero used bytes.
	Usage Usage

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Clock stamps the mount time reported as every node's mtime.
	// Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// filesystem is the state shared by every node of one mount.
type filesystem struct {
	engine      *virtualfile.Engine
	extensions  []string
	listRegions bool
	regions     chunkstore.RegionLister
	usage       Usage
	mounted     time.Time
	uid         uint32
	gid         uint32
	logger      *slog.Logger
}

// Mount mounts the region filesystem. The caller must call Unmount on
// the returned server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if options.ListRegions && options.Regions == nil {
		return nil, fmt.Errorf("listing regions requires a store that can enumerate them")
	}
	if len(options.Extensions) == 0 {
		options.Extensions = []string{"mca"}
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	if err := detachStaleMount(options.Mountpoint, options.Logger); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	fs := &filesystem{
		engine:      options.Engine,
		extensions:  options.Extensions,
		listRegions: options.ListRegions,
		regions:     options.Regions,
		usage:       options.Usage,
		mounted:     options.Clock.Now(),
		uid:         uint32(os.Getuid()),
		gid:         uint32(os.Getgid()),
		logger:      options.Logger,
	}
	root := &rootNode{fs: fs, scratch: make(map[string]struct{})}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 1 * time.Second

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "hopper",
			Name:       "hopper",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("region filesystem mounted",
		"mountpoint", options.Mountpoint,
		"extensions", options.Extensions,
		"file_size", options.Engine.Geometry().FileSize(),
		"write_back", options.Engine.WriteBack(),
	)
	return server, nil
}

// fill completes attr with ownership and timestamps.
func (fs *filesystem) fill(attr *fuse.Attr) {
	attr.Owner = fuse.Owner{Uid: fs.uid, Gid: fs.gid}
	attr.SetTimes(&fs.mounted, &fs.mounted, &fs.mounted)
}
