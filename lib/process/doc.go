// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by the hopper
// binaries: reporting a fatal error before or after the structured
// logger exists, and choosing the exit status.
package process
