// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui renders a live progress display for long-running pipeline
// commands. Built on bubbletea (Elm architecture), it shows a progress
// bar with throughput while the task's log records are routed through a
// [LogHandler]: chunk records drive the bar, everything else at or above
// the configured level is printed above it.
//
// The display is only meant for interactive terminals. Commands decide
// whether to use it and fall back to plain structured logging
// otherwise.
package tui
