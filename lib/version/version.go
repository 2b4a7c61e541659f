// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"os"
	"runtime"
)

var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty is "true" when the tree had uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"

	// Version is the release version.
	Version = "0.1.0-dev"
)

// Info returns the --version line, for example
// "0.1.0-dev (abc1234-dirty, 2026-03-01T12:00:00Z)".
func Info() string {
	commit := GitCommit
	if GitDirty == "true" {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, BuildTime)
}

// Full adds the Go toolchain and platform to Info. Logged at startup.
func Full() string {
	return fmt.Sprintf("%s go=%s platform=%s/%s", Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Print writes "binary Info()" to stdout for --version.
func Print(binary string) {
	fmt.Fprintf(os.Stdout, "%s %s\n", binary, Info())
}
