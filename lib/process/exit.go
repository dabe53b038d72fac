// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// exitCoder is implemented by errors that carry their own exit code and
// whose message has already been reported.
type exitCoder interface {
	ExitCode() int
}

// Fatal reports err and exits. Errors carrying an exit code exit with
// that code silently; anything else prints "error: err" to stderr and
// exits with code 1. Use it in main() for errors from run(), where the
// structured logger may not be initialized.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

// Report writes err to w the way Fatal does and returns the exit code
// Fatal would use. A nil err returns 0 and writes nothing.
func Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
