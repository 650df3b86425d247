package pidctrl

import "testing"

func TestOutputClampedToMaxOutput(t *testing.T) {
	c := New(8000, 0, 0, 12)
	c.SetMaxOutput(3000)
	c.SetPIMax(100)

	out := c.Calculate(10000, 0, true)
	if out > 3000 || out < -3000 {
		t.Fatalf("output %d exceeded MaxOutput 3000", out)
	}
}

func TestIntegralClampedToMaxIntegral(t *testing.T) {
	c := New(0, 200, 0, 12)
	c.SetPIMax(1000)
	c.SetMaxIntegral(2000)

	for i := 0; i < 1000; i++ {
		c.Calculate(1000, 0, true)
	}
	if got := c.Integral(); got > 2000 || got < -2000 {
		t.Fatalf("integral %d exceeded MaxIntegral 2000", got)
	}
}

func TestIntegratorFreezesWhenGateOff(t *testing.T) {
	c := New(0, 200, 0, 12)
	c.SetPIMax(1000)
	c.SetMaxIntegral(4000)

	c.Calculate(1000, 0, true)
	before := c.Integral()

	for i := 0; i < 50; i++ {
		c.Calculate(1000, 0, false)
	}
	if got := c.Integral(); got != before {
		t.Fatalf("integral drifted from %d to %d while gated off", before, got)
	}
}

func TestResetIntegralErrorZeroesAccumulator(t *testing.T) {
	c := New(0, 200, 0, 12)
	c.SetPIMax(1000)
	c.SetMaxIntegral(4000)
	c.Calculate(1000, 0, true)
	if c.Integral() == 0 {
		t.Fatal("expected a nonzero integral before reset")
	}
	c.ResetIntegralError()
	if c.Integral() != 0 {
		t.Fatalf("expected integral 0 after reset, got %d", c.Integral())
	}
}

func TestDerivativeUsesMeasuredNotError(t *testing.T) {
	c := New(0, 0, 20000, 12)
	c.SetMaxOutput(5000)

	// First call establishes lastInput with no history: derivative term is 0.
	first := c.Calculate(0, 100, true)
	if first != 0 {
		t.Fatalf("expected 0 output on the first call (no derivative history), got %d", first)
	}

	// A setpoint-only change with the same measured value must not kick the
	// derivative term, since it is computed from measured, not error.
	second := c.Calculate(5000, 100, true)
	if second != 0 {
		t.Fatalf("setpoint change kicked the derivative term: got %d", second)
	}
}

func TestPIMaxBoundsProportionalInput(t *testing.T) {
	unclamped := New(10, 0, 0, 0)
	unclamped.SetMaxOutput(1 << 20)
	unclamped.SetPIMax(1 << 20)
	outUnclamped := unclamped.Calculate(1_000_000, 0, false)

	clamped := New(10, 0, 0, 0)
	clamped.SetMaxOutput(1 << 20)
	clamped.SetPIMax(100)
	outClamped := clamped.Calculate(1_000_000, 0, false)

	if outClamped >= outUnclamped {
		t.Fatalf("PIMax did not bound the proportional input: clamped=%d unclamped=%d", outClamped, outUnclamped)
	}
	if outClamped != 1000 { // 10 * 100
		t.Fatalf("expected PIMax-bounded output of 1000, got %d", outClamped)
	}
}
