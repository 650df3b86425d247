// Package linuxsbc adapts a Linux single-board computer's gpio/spi/i2c
// peripherals, reached through periph.io, to the ports contracts. It is the
// backend for running the flight loop off a companion computer rather than
// a bare-metal microcontroller.
package linuxsbc

import (
	"fmt"
	"os"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/sunsetTH/Flight-Controller/internal/mathutil"
	"github.com/sunsetTH/Flight-Controller/internal/ports"
)

// Init brings up the periph.io host drivers; callers must invoke this once
// before constructing any adapter in this package.
func Init() error {
	_, err := host.Init()
	return err
}

// IMU wraps a periph.io mpu9250 device as a ports.IMUSensor.
type IMU struct {
	dev *mpu9250.MPU9250
}

// NewIMU opens the MPU9250 over the named SPI device using csPin as chip
// select.
func NewIMU(spiDev, csPin string) (*IMU, error) {
	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("linuxsbc: CS pin %q not found", csPin)
	}
	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("linuxsbc: SPI transport: %w", err)
	}
	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("linuxsbc: device creation: %w", err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("linuxsbc: initialization: %w", err)
	}
	return &IMU{dev: dev}, nil
}

// Read implements ports.IMUSensor.
func (m *IMU) Read() (ports.RawSample, error) {
	ax, err := m.dev.GetAccelerationX()
	if err != nil {
		return ports.RawSample{}, err
	}
	ay, err := m.dev.GetAccelerationY()
	if err != nil {
		return ports.RawSample{}, err
	}
	az, err := m.dev.GetAccelerationZ()
	if err != nil {
		return ports.RawSample{}, err
	}
	gx, err := m.dev.GetRotationX()
	if err != nil {
		return ports.RawSample{}, err
	}
	gy, err := m.dev.GetRotationY()
	if err != nil {
		return ports.RawSample{}, err
	}
	gz, err := m.dev.GetRotationZ()
	if err != nil {
		return ports.RawSample{}, err
	}
	return ports.RawSample{
		AccelX: int32(ax), AccelY: int32(ay), AccelZ: int32(az),
		GyroX: int32(gx), GyroY: int32(gy), GyroZ: int32(gz),
		Timestamp: time.Now(),
	}, nil
}

// Motors drives four hardware-PWM-capable gpio.PinIO pins as ESC channels.
type Motors struct {
	pins [4]gpio.PinIO
}

// NewMotors resolves four named pins in front-left, front-right, back-left,
// back-right order.
func NewMotors(names [4]string) (*Motors, error) {
	var m Motors
	for i, n := range names {
		p := gpioreg.ByName(n)
		if p == nil {
			return nil, fmt.Errorf("linuxsbc: pin %q not found", n)
		}
		m.pins[i] = p
	}
	return &m, nil
}

// Set implements ports.ServoOutput, mapping each throttle unit onto a PWM
// duty cycle at a fixed ESC frequency.
func (m *Motors) Set(frontLeft, frontRight, backLeft, backRight int32) error {
	for i, v := range [4]int32{frontLeft, frontRight, backLeft, backRight} {
		duty := dutyFromThrottle(v)
		if err := m.pins[i].PWM(duty, 500*physic.Hertz); err != nil {
			return fmt.Errorf("linuxsbc: set motor %d: %w", i, err)
		}
	}
	return nil
}

func dutyFromThrottle(throttle int32) gpio.Duty {
	const minThrottle, maxThrottle = 8000, 16000
	frac := mathutil.MapRange(float64(throttle), minThrottle, maxThrottle, 0, 1)
	frac = mathutil.Clamp(frac, 0, 1)
	return gpio.Duty(frac * float64(gpio.DutyMax))
}

// Beeper drives a piezo buzzer through a digital output pin.
type Beeper struct {
	pin gpio.PinIO
}

// NewBeeper resolves the named pin and configures it as a digital output.
func NewBeeper(name string) (*Beeper, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("linuxsbc: pin %q not found", name)
	}
	return &Beeper{pin: p}, nil
}

// Beep implements ports.Beeper.
func (b *Beeper) Beep(d time.Duration) {
	b.pin.Out(gpio.High)
	time.Sleep(d)
	b.pin.Out(gpio.Low)
}

// Tone implements ports.Beeper.
func (b *Beeper) Tone(on bool) {
	if on {
		b.pin.Out(gpio.High)
	} else {
		b.pin.Out(gpio.Low)
	}
}

// LED drives a 3-channel RGB status LED through three PWM-capable pins.
type LED struct {
	r, g, b gpio.PinIO
}

// NewLED resolves three named pins for the status LED's channels.
func NewLED(rName, gName, bName string) (*LED, error) {
	l := &LED{r: gpioreg.ByName(rName), g: gpioreg.ByName(gName), b: gpioreg.ByName(bName)}
	if l.r == nil || l.g == nil || l.b == nil {
		return nil, fmt.Errorf("linuxsbc: one or more LED pins not found")
	}
	return l, nil
}

// Set implements ports.LEDOutput.
func (l *LED) Set(r, g, b uint8) {
	l.r.PWM(gpio.Duty(int(gpio.DutyMax)*int(r)/255), physic.KiloHertz)
	l.g.PWM(gpio.Duty(int(gpio.DutyMax)*int(g)/255), physic.KiloHertz)
	l.b.PWM(gpio.Duty(int(gpio.DutyMax)*int(b)/255), physic.KiloHertz)
}

// Watchdog adapts the Linux kernel's /dev/watchdog character device to
// ports.Watchdog. periph.io has no watchdog abstraction of its own; the
// kernel interface is a plain file write, so this talks to it directly.
type Watchdog struct {
	f *os.File
}

// NewWatchdog opens the named watchdog device (typically "/dev/watchdog").
func NewWatchdog(device string) (*Watchdog, error) {
	f, err := os.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("linuxsbc: open watchdog: %w", err)
	}
	return &Watchdog{f: f}, nil
}

// Configure implements ports.Watchdog. The kernel driver's own timeout is
// set via ioctl at module-load time on most SBCs, so this only validates
// that the device is open and petable.
func (w *Watchdog) Configure(time.Duration) error {
	if w.f == nil {
		return fmt.Errorf("linuxsbc: watchdog device not open")
	}
	return nil
}

// Start implements ports.Watchdog.
func (w *Watchdog) Start() error { return nil }

// Update implements ports.Watchdog, petting the watchdog with the kernel's
// documented keepalive byte.
func (w *Watchdog) Update() {
	w.f.Write([]byte{0})
}
