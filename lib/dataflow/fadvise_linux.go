// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package dataflow

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential tells the kernel the file will be read front to back
// exactly once, so it can read ahead aggressively and drop pages behind
// the cursor. The hint is advisory; failures are ignored.
func adviseSequential(file *os.File) {
	_ = unix.Fadvise(int(file.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
