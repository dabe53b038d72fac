// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"

	"github.com/dylanclarke890/krystal/lib/secret"
)

// MasterKey returns a deterministic master key derived from seed. It is
// closed when the test finishes.
func MasterKey(t testing.TB, seed uint64) *secret.Buffer {
	t.Helper()
	key, err := secret.NewFromBytes(RandomBytes(seed, secret.KeySize))
	if err != nil {
		t.Fatalf("allocating master key: %v", err)
	}
	t.Cleanup(func() { key.Close() })
	return key
}
