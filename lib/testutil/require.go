// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"errors"
	"fmt"
)

// TB is the subset of testing.TB the require helpers use.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireBytes fails the test if got and want differ, reporting the
// lengths and the first differing offset rather than the full contents.
//
//	testutil.RequireBytes(t, decoded, input, "decoding %d-byte chunks", size)
func RequireBytes(t TB, got, want []byte, msgAndArgs ...any) {
	t.Helper()
	limit := min(len(got), len(want))
	for i := range limit {
		if got[i] != want[i] {
			t.Fatalf("%s: first difference at offset %d: got %#02x, want %#02x (len got %d, want %d)",
				formatMessage(msgAndArgs), i, got[i], want[i], len(got), len(want))
		}
	}
	if len(got) != len(want) {
		t.Fatalf("%s: length mismatch: got %d bytes, want %d (common prefix matches)",
			formatMessage(msgAndArgs), len(got), len(want))
	}
}

// RequireErrorIs fails the test unless errors.Is(err, target).
//
//	testutil.RequireErrorIs(t, err, dataflow.ErrCorrupt, "zero-count pair")
func RequireErrorIs(t TB, err, target error, msgAndArgs ...any) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: got nil error, want %v", formatMessage(msgAndArgs), target)
	}
	if !errors.Is(err, target) {
		t.Fatalf("%s: got error %q, want one wrapping %v", formatMessage(msgAndArgs), err, target)
	}
}

func formatMessage(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return "(no message)"
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
