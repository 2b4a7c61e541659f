// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package regionfs

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// detachStaleMount lazily unmounts a FUSE mount whose server died.
// Such a mountpoint fails every stat with ENOTCONN and cannot be
// mounted over.
func detachStaleMount(mountpoint string, logger *slog.Logger) error {
	var stat unix.Stat_t
	err := unix.Stat(mountpoint, &stat)
	if err == nil || !errors.Is(err, unix.ENOTCONN) {
		return nil
	}

	logger.Warn("detaching stale FUSE mount", "mountpoint", mountpoint)
	if err := unix.Unmount(mountpoint, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("mountpoint %s holds a stale FUSE mount that could not be detached (try fusermount -uz): %w",
			mountpoint, err)
	}
	return nil
}
