// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by hopper's package tests.
//
// [RequireReceive] wraps the select-with-timeout pattern so tests that
// hand work to goroutines fail instead of hanging when the goroutine
// never reports back. It is the only helper that uses a wall-clock
// timeout; the code under test takes a lib/clock.Clock.
//
// [RequireFUSE] skips a test on hosts without /dev/fuse.
//
// All helpers fail the test with t.Fatalf rather than returning errors.
package testutil
