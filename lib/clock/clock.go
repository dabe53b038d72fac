// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts reading the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Since returns the time elapsed on c since start.
func Since(c Clock, start time.Time) time.Duration {
	return c.Now().Sub(start)
}

// Real returns the system wall clock.
func Real() Clock {
	return system{}
}

type system struct{}

func (system) Now() time.Time {
	return time.Now()
}
