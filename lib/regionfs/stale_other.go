// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package regionfs

import "log/slog"

func detachStaleMount(string, *slog.Logger) error {
	return nil
}
