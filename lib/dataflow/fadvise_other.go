// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package dataflow

import "os"

func adviseSequential(*os.File) {}
