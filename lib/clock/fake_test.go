// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockIgnoresNegativeAdvance(t *testing.T) {
	clock := Fake(epoch)
	clock.Advance(-time.Hour)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() after negative Advance = %v, want %v", got, epoch)
	}
}

func TestFakeClockStep(t *testing.T) {
	clock := Fake(epoch)
	clock.SetStep(time.Second)

	first := clock.Now()
	second := clock.Now()
	if !first.Equal(epoch) {
		t.Errorf("first reading = %v, want %v", first, epoch)
	}
	if got := second.Sub(first); got != time.Second {
		t.Errorf("step between readings = %v, want 1s", got)
	}
	if got := Since(clock, first); got != 2*time.Second {
		t.Errorf("Since(first) = %v, want 2s", got)
	}
	if clock.Reads() != 3 {
		t.Errorf("Reads() = %d, want 3", clock.Reads())
	}

	clock.SetStep(0)
	frozen := clock.Now()
	if !clock.Now().Equal(frozen) {
		t.Error("clock kept moving after SetStep(0)")
	}
}

func TestFakeClockConcurrentReads(t *testing.T) {
	clock := Fake(epoch)
	clock.SetStep(time.Millisecond)

	var group sync.WaitGroup
	for range 8 {
		group.Add(1)
		go func() {
			defer group.Done()
			for range 100 {
				clock.Now()
			}
		}()
	}
	group.Wait()

	if got := clock.Now(); !got.Equal(epoch.Add(800 * time.Millisecond)) {
		t.Errorf("Now() after 800 stepped reads = %v, want epoch+800ms", got)
	}
}

func TestRealClockMovesForward(t *testing.T) {
	clock := Real()
	before := clock.Now()
	if Since(clock, before) < 0 {
		t.Error("real clock went backwards")
	}
}
