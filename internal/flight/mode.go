package flight

import "github.com/sunsetTH/Flight-Controller/internal/radio"

// Estimator is the subset of the IMU contract the mode/cascade logic needs.
// internal/imu.Estimator satisfies this. The mode and cascade functions take
// this interface so tests can drive them with a stand-in; Loop itself holds
// the concrete *imu.Estimator.
type Estimator interface {
	RollDiff() int32
	PitchDiff() int32
	YawDiff() int32
	AltiEst() int32
	AscentEst() int32
	ThrustFactor() int32
	ResetDesiredOrientation()
	ResetDesiredYaw()
}

// ArbitrateMode selects a Mode from the gear channel and applies the
// transition side effects documented in the flight-mode state machine:
// resetting desired orientation (Manual) or desired yaw (otherwise), and on
// entry to Automatic, locking DesiredAltitude to the current estimate. Any
// transition clears IsHolding.
func ArbitrateMode(s *State, est Estimator, f radio.Frame) {
	var next Mode
	switch {
	case f.Gear() > GearAssistedThreshold:
		next = ModeAssisted
	case f.Gear() < GearManualThreshold:
		next = ModeManual
	default:
		next = ModeAutomatic
	}

	if next == s.Mode {
		return
	}

	if next == ModeManual {
		est.ResetDesiredOrientation()
	} else {
		est.ResetDesiredYaw()
	}
	if next == ModeAutomatic {
		s.DesiredAltitude = est.AltiEst()
	}
	s.IsHolding = false
	s.Mode = next
}
