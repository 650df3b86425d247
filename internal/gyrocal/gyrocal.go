// Package gyrocal implements the gyro-zero bias calibration protocol: a
// convergence search over short sampling windows that picks the quietest
// observed window rather than demanding a perfectly still one.
package gyrocal

import "time"

const (
	// MaxTries bounds the search so calibration always terminates even
	// under persistent vibration.
	MaxTries = 64
	// MinTries is the minimum number of windows sampled before the
	// variance criterion is allowed to end the search early.
	MinTries = 2
	// VarianceThreshold is the maxVar at or below which a window is
	// considered quiet enough to stop searching.
	VarianceThreshold = 2

	samplesPerWindow = 64
	sampleInterval    = 2 * time.Millisecond
	settleDelay       = 20 * time.Millisecond
	beepEvery         = 4
)

// Sampler returns one gyro sample per call; it is polled once per
// sampleInterval.
type Sampler func() (x, y, z int32)

// Beeper is pinged every beepEvery-th iteration as progress feedback.
type Beeper interface {
	Beep(d time.Duration)
}

// Sleeper abstracts time.Sleep so tests can run the protocol
// instantaneously.
type Sleeper func(time.Duration)

// Result is the outcome of a calibration run.
type Result struct {
	Zero       [3]int32
	BestVar    int32
	Iterations int
	Converged  bool // true if it stopped because BestVar <= VarianceThreshold
}

// Run executes the calibration protocol against sample, beeping progress on
// beeper and sleeping via sleep (pass time.Sleep on target; tests pass a
// no-op).
func Run(sample Sampler, beeper Beeper, sleep Sleeper) Result {
	sleep(settleDelay)

	var best [3]int32
	var bestVar int32
	haveBest := false
	var iterations int

	for try := 1; try <= MaxTries; try++ {
		iterations = try
		mean, maxVar := collectWindow(sample, sleep)

		if !haveBest || maxVar < bestVar {
			best = mean
			bestVar = maxVar
			haveBest = true
		}

		if try%beepEvery == 0 && beeper != nil {
			beeper.Beep(50 * time.Millisecond)
		}

		if try >= MinTries && bestVar <= VarianceThreshold {
			return Result{Zero: best, BestVar: bestVar, Iterations: iterations, Converged: true}
		}
	}

	return Result{Zero: best, BestVar: bestVar, Iterations: iterations, Converged: false}
}

// collectWindow samples samplesPerWindow readings per axis and returns the
// per-axis mean plus the largest per-axis variance, where variance is
// defined as |midpoint-of-range - mean| per the calibration design.
func collectWindow(sample Sampler, sleep Sleeper) (mean [3]int32, maxVar int32) {
	var sum [3]int64
	var min, max [3]int32
	for axis := 0; axis < 3; axis++ {
		min[axis] = 1<<31 - 1
		max[axis] = -(1 << 31)
	}

	for i := 0; i < samplesPerWindow; i++ {
		x, y, z := sample()
		vals := [3]int32{x, y, z}
		for axis, v := range vals {
			sum[axis] += int64(v)
			if v < min[axis] {
				min[axis] = v
			}
			if v > max[axis] {
				max[axis] = v
			}
		}
		sleep(sampleInterval)
	}

	for axis := 0; axis < 3; axis++ {
		m := int32(sum[axis] / samplesPerWindow)
		mean[axis] = m
		midpoint := (min[axis] + max[axis]) / 2
		v := midpoint - m
		if v < 0 {
			v = -v
		}
		if v > maxVar {
			maxVar = v
		}
	}
	return mean, maxVar
}
