// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the krystal
// binary. It centralizes the raw stderr output that happens outside the
// structured logger: reporting the error that ends main() and choosing
// the exit code for it.
package process
