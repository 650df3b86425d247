package imu

import (
	"testing"

	"github.com/sunsetTH/Flight-Controller/internal/sensors"
)

func TestResetDesiredOrientationZeroesDiffAtLevel(t *testing.T) {
	e := New(0.004)
	e.Update(sensors.Frame{Altitude: 1000}, 0, 0, 0, 0, 0, 9.8)
	e.WaitForCompletion()

	e.ResetDesiredOrientation()
	e.ResetDesiredYaw()

	if got := e.RollDiff(); got != 0 {
		t.Fatalf("RollDiff = %d, want 0 right after ResetDesiredOrientation", got)
	}
	if got := e.PitchDiff(); got != 0 {
		t.Fatalf("PitchDiff = %d, want 0 right after ResetDesiredOrientation", got)
	}
	if got := e.YawDiff(); got != 0 {
		t.Fatalf("YawDiff = %d, want 0 right after ResetDesiredYaw", got)
	}
}

func TestAscentEstTracksClimb(t *testing.T) {
	e := New(0.1)
	e.Update(sensors.Frame{Altitude: 1000}, 0, 0, 0, 0, 0, 9.8)
	e.WaitForCompletion()

	for alt := int32(1000); alt <= 2000; alt += 100 {
		e.Update(sensors.Frame{Altitude: alt}, 0, 0, 0, 0, 0, 9.8)
		e.WaitForCompletion()
	}

	if got := e.AscentEst(); got <= 0 {
		t.Fatalf("AscentEst = %d, want positive climb rate after a sustained altitude increase", got)
	}
}

func TestQuaternionIsUnitAtLevelAttitude(t *testing.T) {
	e := New(0.004)
	e.Update(sensors.Frame{Altitude: 0}, 0, 0, 0, 0, 0, 9.8)
	e.WaitForCompletion()

	w, x, y, z := e.Quaternion()
	mag := float64(w)*float64(w) + float64(x)*float64(x) + float64(y)*float64(y) + float64(z)*float64(z)
	if mag < 0.98 || mag > 1.02 {
		t.Fatalf("quaternion magnitude^2 = %f, want ~1", mag)
	}
	if w < 0.9 {
		t.Fatalf("w = %f, want close to 1 at near-level attitude", w)
	}
}

func TestDesiredQuaternionMatchesCurrentAfterReset(t *testing.T) {
	e := New(0.004)
	e.Update(sensors.Frame{Altitude: 0}, 0, 0, 0, 0, 0, 9.8)
	e.WaitForCompletion()
	e.ResetDesiredOrientation()
	e.ResetDesiredYaw()

	cw, cx, cy, cz := e.Quaternion()
	dw, dx, dy, dz := e.DesiredQuaternion()
	if cw != dw || cx != dx || cy != dy || cz != dz {
		t.Fatalf("desired quaternion (%f,%f,%f,%f) != current (%f,%f,%f,%f) right after reset", dw, dx, dy, dz, cw, cx, cy, cz)
	}
}

func TestThrustFactorAtLevelIsBaseline(t *testing.T) {
	e := New(0.004)
	e.Update(sensors.Frame{Altitude: 0}, 0, 0, 0, 0, 0, 9.8)
	e.WaitForCompletion()

	got := e.ThrustFactor()
	if got < 250 || got > 262 {
		t.Fatalf("ThrustFactor = %d, want ~256 at level attitude", got)
	}
}
