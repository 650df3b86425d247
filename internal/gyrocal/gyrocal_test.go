package gyrocal

import (
	"testing"
	"time"
)

type countingBeeper struct{ count int }

func (b *countingBeeper) Beep(time.Duration) { b.count++ }

func noSleep(time.Duration) {}

func TestRunConvergesOnQuietSensor(t *testing.T) {
	sample := func() (int32, int32, int32) { return 10, -5, 2 }

	res := Run(sample, nil, noSleep)
	if !res.Converged {
		t.Fatalf("expected convergence on a perfectly quiet sensor, got BestVar=%d after %d iterations", res.BestVar, res.Iterations)
	}
	if res.BestVar > VarianceThreshold {
		t.Fatalf("BestVar %d exceeds VarianceThreshold %d", res.BestVar, VarianceThreshold)
	}
	if res.Iterations < MinTries {
		t.Fatalf("converged before MinTries: %d", res.Iterations)
	}
	want := [3]int32{10, -5, 2}
	if res.Zero != want {
		t.Fatalf("Zero = %v, want %v", res.Zero, want)
	}
}

func TestRunTerminatesWithinMaxTriesUnderNoise(t *testing.T) {
	// A noisy sensor that never settles should still terminate, picking
	// whichever window had the lowest observed variance. The spikes are
	// one-sided, so every window's range midpoint sits far from its mean.
	n := 0
	sample := func() (int32, int32, int32) {
		n++
		if n%4 == 0 {
			return 1000, -1000, 1000
		}
		return 0, 0, 0
	}

	res := Run(sample, nil, noSleep)
	if res.Iterations != MaxTries {
		t.Fatalf("expected MaxTries=%d iterations under persistent noise, got %d", MaxTries, res.Iterations)
	}
	if res.Converged {
		t.Fatal("did not expect convergence under persistent noise")
	}
}

func TestRunBeepsEveryFourthIteration(t *testing.T) {
	sample := func() (int32, int32, int32) { return 0, 0, 0 }
	b := &countingBeeper{}

	res := Run(sample, b, noSleep)
	want := res.Iterations / beepEvery
	if b.count != want {
		t.Fatalf("beep count = %d, want %d for %d iterations", b.count, want, res.Iterations)
	}
}

func TestRunPicksLowerVarianceWindow(t *testing.T) {
	// First window is noisy, settles to quiet afterward; best must reflect
	// the quiet window, not the first one observed. The first window's
	// spikes are one-sided, so its mean is off zero and its variance high.
	call := 0
	sample := func() (int32, int32, int32) {
		call++
		if call <= samplesPerWindow {
			if call%4 == 0 {
				return 500, 500, 500
			}
			return 0, 0, 0
		}
		return 0, 0, 0
	}

	res := Run(sample, nil, noSleep)
	if res.Zero != [3]int32{0, 0, 0} {
		t.Fatalf("expected the quiet second window to win, got Zero=%v BestVar=%d", res.Zero, res.BestVar)
	}
}
