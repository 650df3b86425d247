package flight

import "github.com/sunsetTH/Flight-Controller/internal/radio"

// ArmResult reports the side effects UpdateArming wants the caller
// (typically the loop) to carry out; gyro recalibration and loop-timer
// resets touch state outside this package.
type ArmResult struct {
	JustArmed         bool
	JustDisarmed      bool
	EnteredCompassCal bool

	// ArmGestureHold and CompassGestureHold report that the corresponding
	// stick gesture is being held on this tick, whether or not it has
	// reached its hold-time threshold yet; the LED uses these for
	// in-progress feedback.
	ArmGestureHold     bool
	CompassGestureHold bool
}

// UpdateArming evaluates the arm/disarm/compass-cal stick gestures and
// mutates s.FlightEnabled accordingly. The arming gesture is throttle and
// elevator pulled full down, rudder full right, aileron full left; the
// compass-cal gesture swaps aileron to full right. Disarming is throttle
// and elevator full down, rudder full left, aileron full right. Any
// interruption of a gesture resets its hold counter immediately.
func UpdateArming(s *State, f radio.Frame) ArmResult {
	var res ArmResult

	if !s.FlightEnabled {
		armGesture := f.Throttle() < -StickArmThreshold &&
			f.Elevator() < -StickArmThreshold &&
			f.Rudder() > StickArmThreshold &&
			f.Aileron() < -StickArmThreshold
		compassGesture := f.Throttle() < -StickArmThreshold &&
			f.Elevator() < -StickArmThreshold &&
			f.Rudder() > StickArmThreshold &&
			f.Aileron() > StickArmThreshold

		if armGesture {
			res.ArmGestureHold = true
			s.FlightEnableStep++
			s.CompassConfigStep = 0
			if s.FlightEnableStep >= int32(s.Prefs.ArmDelay) {
				s.FlightEnabled = true
				s.FlightEnableStep = 0
				res.JustArmed = true
			}
		} else if compassGesture {
			res.CompassGestureHold = true
			s.CompassConfigStep++
			s.FlightEnableStep = 0
			if s.CompassConfigStep >= CompassCalHoldTicks {
				s.Mode = ModeCalibrateCompass
				s.CompassConfigStep = 0
				res.EnteredCompassCal = true
			}
		} else {
			s.FlightEnableStep = 0
			s.CompassConfigStep = 0
		}
		return res
	}

	disarmGesture := f.Throttle() < -StickArmThreshold &&
		f.Elevator() < -StickArmThreshold &&
		f.Rudder() < -StickArmThreshold &&
		f.Aileron() > StickArmThreshold

	if disarmGesture {
		s.DisarmStep++
		if s.DisarmStep >= int32(s.Prefs.DisarmDelay) {
			s.FlightEnabled = false
			s.DisarmStep = 0
			res.JustDisarmed = true
		}
	} else {
		s.DisarmStep = 0
	}
	return res
}
