// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	base := errors.New("mount failed")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", base, 1},
		{"exit error", &ExitError{Code: 2, Err: base}, 2},
		{"wrapped exit error", fmt.Errorf("starting: %w", &ExitError{Code: 3, Err: base}), 3},
	}
	for _, test := range tests {
		if got := ExitCode(test.err); got != test.want {
			t.Errorf("%s: ExitCode = %d, want %d", test.name, got, test.want)
		}
	}
}

func TestExitErrorUnwraps(t *testing.T) {
	base := errors.New("bad flag")
	err := &ExitError{Code: 2, Err: base}
	if !errors.Is(err, base) {
		t.Error("ExitError does not unwrap to its cause")
	}
	if err.Error() != "bad flag" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestReport(t *testing.T) {
	var buffer bytes.Buffer
	Report(&buffer, errors.New("store unavailable"))
	if got, want := buffer.String(), "error: store unavailable\n"; got != want {
		t.Errorf("Report wrote %q, want %q", got, want)
	}
}
