// Package pidctrl implements the fixed-point PID controller every cascade
// stage (roll, pitch, yaw, altitude, ascent rate) is built from.
package pidctrl

// Controller is an integer PID with a fixed-point precision shift, an
// output clamp, a ceiling on the proportional input (PIMax) that bounds
// wind-up independently of the post-clamp output limit, an integral clamp,
// and a single-pole low-pass filter on the derivative term computed from
// the measured value rather than the error (so a setpoint step never kicks
// the derivative term).
type Controller struct {
	pGain, iGain, dGain int32
	precisionQ          uint

	maxOutput   int32
	piMax       int32
	maxIntegral int32
	derivFilter int32 // 0..256, applied as Filter/256

	integral   int32
	lastInput  int32
	filteredD  int32
	hasLast    bool
}

// New constructs a Controller with the given gains already scaled for
// precisionQ: output = (P*Ep + I*Ei + D*Dm) >> precisionQ.
func New(pGain, iGain, dGain int32, precisionQ uint) *Controller {
	return &Controller{
		pGain:      pGain,
		iGain:      iGain,
		dGain:      dGain,
		precisionQ: precisionQ,
		maxOutput:  1<<30 - 1,
		piMax:      1<<30 - 1,
		maxIntegral: 1<<30 - 1,
		derivFilter: 256,
	}
}

func (c *Controller) SetPGain(p int32)          { c.pGain = p }
func (c *Controller) SetIGain(i int32)          { c.iGain = i }
func (c *Controller) SetDGain(d int32)          { c.dGain = d }
func (c *Controller) SetPrecision(q uint)       { c.precisionQ = q }
func (c *Controller) SetMaxOutput(m int32)      { c.maxOutput = m }
func (c *Controller) SetPIMax(m int32)          { c.piMax = m }
func (c *Controller) SetMaxIntegral(m int32)    { c.maxIntegral = m }
func (c *Controller) SetDerivativeFilter(f int32) { c.derivFilter = f }

// ResetIntegralError zeroes the accumulator; the cascade calls it on the
// altitude controller when altitude hold is entered, to avoid carrying
// stale wind-up across a setpoint discontinuity.
func (c *Controller) ResetIntegralError() {
	c.integral = 0
}

// Reset clears the integral accumulator and the derivative history, so the
// next Calculate measures no derivative against an earlier input.
func (c *Controller) Reset() {
	c.integral = 0
	c.filteredD = 0
	c.hasLast = false
}

func clampI32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Calculate runs one PID step. integrate gates whether the integral
// accumulates this tick (the cascade controller clears it whenever the
// throttle-kill deadband is active).
func (c *Controller) Calculate(setpoint, measured int32, integrate bool) int32 {
	errVal := setpoint - measured
	ep := clampI32(errVal, -c.piMax, c.piMax)

	if integrate {
		c.integral = clampI32(c.integral+ep, -c.maxIntegral, c.maxIntegral)
	}

	var dMeasured int32
	if c.hasLast {
		dMeasured = measured - c.lastInput
	}
	c.lastInput = measured
	c.hasLast = true

	c.filteredD += (dMeasured - c.filteredD) * c.derivFilter / 256

	p := int64(c.pGain) * int64(ep)
	i := int64(c.iGain) * int64(c.integral)
	d := int64(c.dGain) * int64(-c.filteredD)

	out := (p + i + d) >> c.precisionQ
	return clampI32(int32(out), -c.maxOutput, c.maxOutput)
}

// Integral exposes the current accumulator, mainly for tests that assert
// the integrator does not grow while gated off.
func (c *Controller) Integral() int32 { return c.integral }
