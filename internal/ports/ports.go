// Package ports declares the narrow hardware contracts the flight loop
// depends on. Nothing under internal/ or cmd/flightcore imports a concrete
// driver package directly; drivers/ ships the adapters that satisfy these
// interfaces for a given target board.
package ports

import (
	"context"
	"time"
)

// RawSample is one IMU reading, straight off the sensor in its native
// units. The flight loop converts gyro and accel values to rad/s and m/s^2
// through flight.SensorScale before they reach the estimator.
type RawSample struct {
	Temp                int32
	GyroX, GyroY, GyroZ int32
	AccelX, AccelY, AccelZ int32
	MagX, MagY, MagZ    int32
	Altitude            int32
	AltiTemp            int32
	Timestamp           time.Time
}

// IMUSensor is the contract for a combined gyro/accel/mag driver. Read is
// expected to block only as long as it takes to pull the latest sample out
// of the sensor's own buffer; it must never block waiting on the flight
// loop.
type IMUSensor interface {
	Read() (RawSample, error)
}

// BaroSensor is the contract for a barometric altitude source, kept
// separate from IMUSensor because several boards pair a combined IMU with a
// standalone barometer.
type BaroSensor interface {
	ReadAltitude() (altitudeMM int32, temp int32, err error)
}

// ServoOutput drives the four motor channels of an X-configuration
// quadcopter. Set is called once per tick with already-mixed, already-
// clamped throttle values; the driver owns translating those into PWM/DShot
// pulses.
type ServoOutput interface {
	Set(frontLeft, frontRight, backLeft, backRight int32) error
}

// RadioInput exposes the latest decoded receiver channels. The concrete
// driver is responsible for running whatever protocol state machine its
// hardware speaks (PWM, S-BUS, iBus, CRSF, ELRS) and resolving it to the
// same channel array shape.
type RadioInput interface {
	// Channels returns the most recently decoded channel values and the
	// time they were captured, so the caller can detect a stale link.
	Channels() (values [8]int16, at time.Time)
}

// SerialPort is a byte-oriented, non-blocking-read transport used for the
// debug/telemetry link. It is deliberately narrow: the telemetry package
// only ever needs to check for a pending byte, read one with a timeout, and
// write a framed response.
type SerialPort interface {
	// TryReadByte returns ok=false immediately if no byte is available.
	TryReadByte() (b byte, ok bool)
	// ReadByteTimeout blocks up to timeout for one byte; err is non-nil on
	// timeout or transport failure.
	ReadByteTimeout(timeout time.Duration) (byte, error)
	Write(p []byte) (int, error)
}

// Beeper drives the audible feedback used throughout gyro calibration,
// arming, and the low-battery alarm.
type Beeper interface {
	Beep(d time.Duration)
	Tone(on bool)
}

// LEDOutput accepts a single composite color word per tick; the driver is
// responsible for whatever physical LED(s) it controls.
type LEDOutput interface {
	Set(r, g, b uint8)
}

// BatteryADC reads the raw battery-sense timing count produced by the
// RC-discharge/charge cycle described in the battery monitor design, and
// converts it to millivolts via a calibration curve supplied at
// construction time. The tick-by-tick discharge/charge schedule itself
// lives in internal/flight; this interface only covers the one raw sample.
type BatteryADC interface {
	SampleMillivolts() (int32, error)
}

// Store persists a checksummed preferences blob. Implementations range from
// an in-memory map (tests, simulator) to a flash page (on-target) to a YAML
// file (ground-station tooling).
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
}

// Watchdog is pet once per tick; a missed pet for longer than its configured
// timeout resets the board.
type Watchdog interface {
	Configure(timeout time.Duration) error
	Start() error
	Update()
}
