// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package regionfs

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hopper-foundation/hopper/lib/anvil"
	"github.com/hopper-foundation/hopper/lib/nodeid"
)

// rootNode is the mount root. It has no stored children: region nodes
// are built on lookup, and scratch names created by clients are
// remembered only until they are unlinked or renamed away.
type rootNode struct {
	gofuse.Inode
	fs *filesystem

	mu      sync.Mutex
	scratch map[string]struct{}
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeLookuper = (*rootNode)(nil)
var _ gofuse.NodeReaddirer = (*rootNode)(nil)
var _ gofuse.NodeGetattrer = (*rootNode)(nil)
var _ gofuse.NodeSetattrer = (*rootNode)(nil)
var _ gofuse.NodeCreater = (*rootNode)(nil)
var _ gofuse.NodeUnlinker = (*rootNode)(nil)
var _ gofuse.NodeRenamer = (*rootNode)(nil)
var _ gofuse.NodeStatfser = (*rootNode)(nil)

func (r *rootNode) Getattr(_ context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, _ := Attributes(nodeid.Root, r.fs.engine.Geometry())
	r.fs.fill(&attr)
	out.Attr = attr
	return 0
}

// Setattr accepts and ignores mode, owner, and time changes.
func (r *rootNode) Setattr(ctx context.Context, f gofuse.FileHandle, _ *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return r.Getattr(ctx, f, out)
}

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	inode, err := r.lookup(ctx, name, out)
	return inode, toErrno(err)
}

func (r *rootNode) lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, error) {
	if region, ok := resolveRegion(name, r.fs.extensions); ok {
		return r.regionInode(ctx, region, out), nil
	}
	r.mu.Lock()
	_, exists := r.scratch[name]
	r.mu.Unlock()
	if exists {
		return r.scratchInode(ctx, name, out), nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
}

func (r *rootNode) regionInode(ctx context.Context, region anvil.RegionCoord, out *fuse.EntryOut) *gofuse.Inode {
	id := nodeid.Encode(region.X, region.Z)
	attr, _ := Attributes(id, r.fs.engine.Geometry())
	r.fs.fill(&attr)
	out.Attr = attr
	return r.NewInode(ctx, &regionNode{fs: r.fs, region: region}, gofuse.StableAttr{
		Mode: syscall.S_IFREG,
		Ino:  uint64(id),
	})
}

func (r *rootNode) scratchInode(ctx context.Context, name string, out *fuse.EntryOut) *gofuse.Inode {
	id := nodeid.EncodeGeneric(name)
	attr, _ := Attributes(id, r.fs.engine.Geometry())
	r.fs.fill(&attr)
	out.Attr = attr
	return r.NewInode(ctx, &scratchNode{fs: r.fs, id: id}, gofuse.StableAttr{
		Mode: syscall.S_IFREG,
		Ino:  uint64(id),
	})
}

func (r *rootNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	var entries []fuse.DirEntry

	if r.fs.listRegions {
		regions, err := r.fs.regions.ListRegions(ctx)
		if err != nil {
			r.fs.logger.Warn("listing regions failed, serving an empty directory", "error", err)
		}
		for _, region := range regions {
			if !nodeid.InRange(region.X, region.Z) {
				continue
			}
			entries = append(entries, fuse.DirEntry{
				Name: region.FileName(r.fs.extensions[0]),
				Mode: syscall.S_IFREG,
				Ino:  uint64(nodeid.Encode(region.X, region.Z)),
			})
		}
	}

	r.mu.Lock()
	names := make([]string, 0, len(r.scratch))
	for name := range r.scratch {
		names = append(names, name)
	}
	r.mu.Unlock()
	slices.Sort(names)
	for _, name := range names {
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFREG,
			Ino:  uint64(nodeid.EncodeGeneric(name)),
		})
	}

	return gofuse.NewListDirStream(entries), 0
}

// Create returns the region node for a region name and a scratch node
// for anything else. Neither carries a file handle.
func (r *rootNode) Create(ctx context.Context, name string, _ uint32, _ uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	if region, ok := resolveRegion(name, r.fs.extensions); ok {
		return r.regionInode(ctx, region, out), nil, r.fs.openFlags(), 0
	}
	r.mu.Lock()
	r.scratch[name] = struct{}{}
	r.mu.Unlock()
	r.fs.logger.Debug("scratch file created", "name", name)
	return r.scratchInode(ctx, name, out), nil, 0, 0
}

// Unlink forgets scratch names. Region files cannot be removed, but
// the request succeeds.
func (r *rootNode) Unlink(_ context.Context, name string) syscall.Errno {
	r.mu.Lock()
	delete(r.scratch, name)
	r.mu.Unlock()
	return 0
}

// Rename moves scratch names. Renaming onto a region name drops the
// scratch file: the region file keeps serving its virtual contents.
func (r *rootNode) Rename(_ context.Context, name string, newParent gofuse.InodeEmbedder, newName string, _ uint32) syscall.Errno {
	if newParent.EmbeddedInode() != r.EmbeddedInode() {
		return syscall.EXDEV
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, wasScratch := r.scratch[name]
	delete(r.scratch, name)
	_, isRegion := resolveRegion(newName, r.fs.extensions)
	if wasScratch && !isRegion {
		r.scratch[newName] = struct{}{}
	}
	if isRegion {
		// The kernel now maps newName to the renamed node. Invalidate
		// that entry so the next lookup yields the region again. The
		// notification cannot be sent while the rename holds the
		// directory lock.
		go r.NotifyEntry(newName)
	}
	return 0
}

// statfsCapacity is the capacity reported to statfs. The filesystem
// has no real bound, so a large fixed figure keeps free-space checks
// in the game server from refusing to save.
const statfsCapacity = 1 << 40

func (r *rootNode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	var used uint64
	if r.fs.usage != nil {
		size, err := r.fs.usage.TotalPersistedSize(ctx)
		if err != nil {
			r.fs.logger.Warn("statfs could not read persisted size", "error", err)
		}
		used = size
	}
	total := max(statfsCapacity, used+statfsCapacity/2)

	out.Bsize = blockSize
	out.Frsize = blockSize
	out.Blocks = total / blockSize
	out.Bfree = (total - used) / blockSize
	out.Bavail = out.Bfree
	out.Files = 1 << 32
	out.Ffree = out.Files
	out.NameLen = 255
	return 0
}

// openFlags keeps the kernel page cache across opens unless writes
// can change region contents.
func (fs *filesystem) openFlags() uint32 {
	if fs.engine.WriteBack() {
		return 0
	}
	return fuse.FOPEN_KEEP_CACHE
}

// regionNode is one virtual region file.
type regionNode struct {
	gofuse.Inode
	fs     *filesystem
	region anvil.RegionCoord
}

var _ gofuse.InodeEmbedder = (*regionNode)(nil)
var _ gofuse.NodeGetattrer = (*regionNode)(nil)
var _ gofuse.NodeSetattrer = (*regionNode)(nil)
var _ gofuse.NodeOpener = (*regionNode)(nil)
var _ gofuse.NodeReader = (*regionNode)(nil)
var _ gofuse.NodeWriter = (*regionNode)(nil)
var _ gofuse.NodeFlusher = (*regionNode)(nil)
var _ gofuse.NodeFsyncer = (*regionNode)(nil)
var _ gofuse.NodeReleaser = (*regionNode)(nil)

func (n *regionNode) Getattr(_ context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, ok := Attributes(nodeid.ID(n.StableAttr().Ino), n.fs.engine.Geometry())
	if !ok {
		return toErrno(ErrNotFound)
	}
	n.fs.fill(&attr)
	out.Attr = attr
	return 0
}

// Setattr accepts truncation and metadata changes without effect: the
// file keeps its fixed size.
func (n *regionNode) Setattr(ctx context.Context, f gofuse.FileHandle, _ *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return n.Getattr(ctx, f, out)
}

func (n *regionNode) Open(_ context.Context, _ uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, n.fs.openFlags(), 0
}

func (n *regionNode) Read(ctx context.Context, _ gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	length := readWindow(off, len(dest), n.fs.engine.Geometry().FileSize())
	if length == 0 {
		return fuse.ReadResultData(nil), 0
	}
	return fuse.ReadResultData(n.fs.engine.ReadAt(ctx, n.region, uint64(off), length)), 0
}

func (n *regionNode) Write(ctx context.Context, _ gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	if off < 0 {
		return 0, syscall.EINVAL
	}
	return uint32(n.fs.engine.WriteAt(ctx, n.region, uint64(off), data)), 0
}

func (n *regionNode) Flush(context.Context, gofuse.FileHandle) syscall.Errno         { return 0 }
func (n *regionNode) Fsync(context.Context, gofuse.FileHandle, uint32) syscall.Errno { return 0 }
func (n *regionNode) Release(context.Context, gofuse.FileHandle) syscall.Errno       { return 0 }

// scratchNode is a file created under a name that is not a region. It
// is always empty and swallows writes.
type scratchNode struct {
	gofuse.Inode
	fs *filesystem
	id nodeid.ID
}

var _ gofuse.InodeEmbedder = (*scratchNode)(nil)
var _ gofuse.NodeGetattrer = (*scratchNode)(nil)
var _ gofuse.NodeSetattrer = (*scratchNode)(nil)
var _ gofuse.NodeOpener = (*scratchNode)(nil)
var _ gofuse.NodeReader = (*scratchNode)(nil)
var _ gofuse.NodeWriter = (*scratchNode)(nil)
var _ gofuse.NodeFlusher = (*scratchNode)(nil)
var _ gofuse.NodeFsyncer = (*scratchNode)(nil)

func (n *scratchNode) Getattr(_ context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, _ := Attributes(n.id, n.fs.engine.Geometry())
	n.fs.fill(&attr)
	out.Attr = attr
	return 0
}

func (n *scratchNode) Setattr(ctx context.Context, f gofuse.FileHandle, _ *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return n.Getattr(ctx, f, out)
}

func (n *scratchNode) Open(context.Context, uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, 0, 0
}

// Read zero-fills dest. The kernel clips it at the reported size of 0.
func (n *scratchNode) Read(_ context.Context, _ gofuse.FileHandle, dest []byte, _ int64) (fuse.ReadResult, syscall.Errno) {
	clear(dest)
	return fuse.ReadResultData(dest), 0
}

func (n *scratchNode) Write(_ context.Context, _ gofuse.FileHandle, data []byte, _ int64) (uint32, syscall.Errno) {
	return uint32(len(data)), 0
}

func (n *scratchNode) Flush(context.Context, gofuse.FileHandle) syscall.Errno         { return 0 }
func (n *scratchNode) Fsync(context.Context, gofuse.FileHandle, uint32) syscall.Errno { return 0 }
