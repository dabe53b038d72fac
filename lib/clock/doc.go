// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that run timing
// and progress reporting can be tested deterministically.
//
// Code that measures elapsed time accepts a [Clock] instead of calling
// time.Now directly. Production wiring uses [Real]; tests use [Fake],
// whose time moves only when [FakeClock.Advance] is called or, with
// [FakeClock.SetStep], by a fixed amount on every reading.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	c.SetStep(time.Second) // each Now() advances one second
//	pipeline, _ := dataflow.New(dataflow.Config{Clock: c, ...})
package clock
