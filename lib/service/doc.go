// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package service holds process scaffolding shared by hopper binaries.
//
// [NewLogger] builds the process logger: JSON on stderr by default,
// installed as the slog default so libraries that log through the
// package-level slog functions share the handler. Library packages do
// not call it; they take a *slog.Logger in their options and fall back
// to a discard handler.
package service
