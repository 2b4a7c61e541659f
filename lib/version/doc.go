// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build identity of hopper binaries.
//
// [GitCommit], [GitDirty], [BuildTime], and [Version] are injected with
// -ldflags -X at build time:
//
//	go build -ldflags "-X github.com/hopper-foundation/hopper/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/hopper
//
// Development builds report "unknown" and "0.1.0-dev".
package version
