//go:build tinygo

// Package tinygoboard adapts a TinyGo-targeted microcontroller board to the
// ports contracts: an LSM6DS3TR IMU over I2C, four ESC PWM channels, an
// onboard watchdog, and a status LED driven from spare PWM lines.
package tinygoboard

import (
	"time"

	"machine"
	"tinygo.org/x/drivers/lsm6ds3tr"

	"github.com/sunsetTH/Flight-Controller/internal/mathutil"
	"github.com/sunsetTH/Flight-Controller/internal/ports"
)

const (
	escPWMFrequencyHz = 500
	minPulseWidthUS   = 1000
	maxPulseWidthUS   = 2000
)

// IMU wraps an lsm6ds3tr.Device as a ports.IMUSensor. Altitude/mag are left
// zero; boards pairing a barometer or magnetometer compose a second adapter
// and merge the RawSample fields at the call site.
type IMU struct {
	dev lsm6ds3tr.Device
	i2c *machine.I2C
}

// NewIMU configures i2c and brings up the LSM6DS3TR at the range/rate the
// flight loop was tuned against.
func NewIMU(i2c *machine.I2C) (*IMU, error) {
	if err := i2c.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz}); err != nil {
		return nil, err
	}
	dev := lsm6ds3tr.New(i2c)
	if err := dev.Configure(lsm6ds3tr.Configuration{
		AccelRange:      lsm6ds3tr.ACCEL_16G,
		AccelSampleRate: lsm6ds3tr.ACCEL_SR_6664,
		GyroRange:       lsm6ds3tr.GYRO_2000DPS,
		GyroSampleRate:  lsm6ds3tr.GYRO_SR_6664,
	}); err != nil {
		return nil, err
	}
	return &IMU{dev: dev, i2c: i2c}, nil
}

// Read implements ports.IMUSensor.
func (m *IMU) Read() (ports.RawSample, error) {
	ax, ay, az, err := m.dev.ReadAcceleration()
	if err != nil {
		return ports.RawSample{}, err
	}
	gx, gy, gz, err := m.dev.ReadRotation()
	if err != nil {
		return ports.RawSample{}, err
	}
	return ports.RawSample{
		AccelX: ax, AccelY: ay, AccelZ: az,
		GyroX: gx, GyroY: gy, GyroZ: gz,
		Timestamp: time.Now(),
	}, nil
}

// Motors drives the four ESC channels of an X-configuration quadcopter from
// one PWM timer running at the ESC frequency.
type Motors struct {
	pwm                              *machine.PWM
	frontLeft, frontRight, backLeft, backRight uint8
}

// NewMotors configures pwm at the ESC PWM frequency and claims one channel
// per rotor pin.
func NewMotors(pwm *machine.PWM, frontLeftPin, frontRightPin, backLeftPin, backRightPin machine.Pin) (*Motors, error) {
	if err := pwm.Configure(machine.PWMConfig{Period: machine.GHz * 1 / escPWMFrequencyHz}); err != nil {
		return nil, err
	}
	m := &Motors{pwm: pwm}
	var err error
	if m.frontLeft, err = pwm.Channel(frontLeftPin); err != nil {
		return nil, err
	}
	if m.frontRight, err = pwm.Channel(frontRightPin); err != nil {
		return nil, err
	}
	if m.backLeft, err = pwm.Channel(backLeftPin); err != nil {
		return nil, err
	}
	if m.backRight, err = pwm.Channel(backRightPin); err != nil {
		return nil, err
	}
	return m, nil
}

// Set implements ports.ServoOutput. Inputs are throttle units in
// [minThrottle, maxThrottle]; they are mapped linearly onto the
// [minPulseWidthUS, maxPulseWidthUS] ESC pulse range.
func (m *Motors) Set(frontLeft, frontRight, backLeft, backRight int32) error {
	m.pwm.Set(m.frontLeft, m.pulseTicks(frontLeft))
	m.pwm.Set(m.frontRight, m.pulseTicks(frontRight))
	m.pwm.Set(m.backLeft, m.pulseTicks(backLeft))
	m.pwm.Set(m.backRight, m.pulseTicks(backRight))
	return nil
}

// pulseTicks maps a throttle unit (already clamped upstream to the
// configured min/max throttle) onto a PWM duty count for the configured
// period.
func (m *Motors) pulseTicks(throttle int32) uint32 {
	const minThrottle, maxThrottle = 8000, 16000
	us := mathutil.MapRangeInt(throttle, minThrottle, maxThrottle, minPulseWidthUS, maxPulseWidthUS)
	us = mathutil.Clamp(us, minPulseWidthUS, maxPulseWidthUS)
	return uint32(uint64(m.pwm.Top()) * uint64(us) / (1e6 / escPWMFrequencyHz))
}

// Watchdog adapts the board's hardware watchdog timer to ports.Watchdog.
type Watchdog struct {
	wd machine.WatchdogType
}

// NewWatchdog wraps the board's singleton watchdog peripheral.
func NewWatchdog(wd machine.WatchdogType) *Watchdog { return &Watchdog{wd: wd} }

// Configure implements ports.Watchdog.
func (w *Watchdog) Configure(timeout time.Duration) error {
	return w.wd.Configure(machine.WatchdogConfig{TimeoutMillis: uint32(timeout.Milliseconds())})
}

// Start implements ports.Watchdog.
func (w *Watchdog) Start() error { return w.wd.Start() }

// Update implements ports.Watchdog.
func (w *Watchdog) Update() { w.wd.Update() }

// Beeper drives a piezo buzzer through a GPIO pin, on/off only; Beep blocks
// for the requested duration since the flight loop calls it from arming and
// calibration events rather than the hot tick path.
type Beeper struct {
	pin machine.Pin
}

// NewBeeper configures pin as a push-pull output for the buzzer.
func NewBeeper(pin machine.Pin) *Beeper {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &Beeper{pin: pin}
}

// Beep implements ports.Beeper.
func (b *Beeper) Beep(d time.Duration) {
	b.pin.High()
	time.Sleep(d)
	b.pin.Low()
}

// Tone implements ports.Beeper, toggling the buzzer for the low-battery
// alarm without blocking the tick that calls it.
func (b *Beeper) Tone(on bool) {
	if on {
		b.pin.High()
	} else {
		b.pin.Low()
	}
}

// LED drives a 3-channel RGB status LED over three PWM-capable pins so the
// composite color from flight.LEDColor can be shown with proper brightness
// mixing rather than just on/off.
type LED struct {
	pwm          *machine.PWM
	r, g, b      uint8
}

// NewLED configures pwm for the status LED's three channels.
func NewLED(pwm *machine.PWM, rPin, gPin, bPin machine.Pin) (*LED, error) {
	if err := pwm.Configure(machine.PWMConfig{}); err != nil {
		return nil, err
	}
	l := &LED{pwm: pwm}
	var err error
	if l.r, err = pwm.Channel(rPin); err != nil {
		return nil, err
	}
	if l.g, err = pwm.Channel(gPin); err != nil {
		return nil, err
	}
	if l.b, err = pwm.Channel(bPin); err != nil {
		return nil, err
	}
	return l, nil
}

// Set implements ports.LEDOutput.
func (l *LED) Set(r, g, b uint8) {
	top := l.pwm.Top()
	l.pwm.Set(l.r, top*uint32(r)/255)
	l.pwm.Set(l.g, top*uint32(g)/255)
	l.pwm.Set(l.b, top*uint32(b)/255)
}
