// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitError carries a specific exit status out of run().
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the status main should exit with for err: 0 for
// nil, the carried code for an ExitError, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

// Report writes "error: err" to w.
func Report(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}

// Fatal reports err on stderr and exits with ExitCode(err). Use it in
// main() for errors from run(), where the structured logger may not
// exist yet.
func Fatal(err error) {
	Report(os.Stderr, err)
	os.Exit(ExitCode(err))
}
