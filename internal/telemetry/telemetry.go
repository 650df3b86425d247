// Package telemetry implements the debug/telemetry link: the byte-command
// protocol the main loop polls from two serial ports, and the typed
// packet formats it streams back. The physical ports are the out-of-scope
// external collaborator, represented here only by ports.SerialPort.
package telemetry

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/sunsetTH/Flight-Controller/internal/flight"
	"github.com/sunsetTH/Flight-Controller/internal/imu"
	"github.com/sunsetTH/Flight-Controller/internal/ports"
	"github.com/sunsetTH/Flight-Controller/internal/prefs"
	"github.com/sunsetTH/Flight-Controller/internal/radio"
	"github.com/sunsetTH/Flight-Controller/internal/sensors"
)

// Command bytes recognized on either serial port.
const (
	CmdMotorTestBase   = 0x08 // 0x08..0x0F, low 3 bits select the sub-action
	CmdTempZeroGyro    = 0x10
	CmdResetGyroDrift  = 0x11
	CmdResetChannelMap = 0x13
	CmdTempZeroAccel   = 0x14
	CmdResetAccel      = 0x15
	CmdQueryPrefs      = 0x18
	CmdUploadPrefs     = 0x19
	CmdRestoreDefaults = 0x1A
	CmdPing            = 0xFF

	respPingByte = 0xE8
)

// Packet type IDs for the typed telemetry stream.
const (
	PacketRadioBattery    = 1
	PacketRawSensors      = 2
	PacketQuaternion      = 3
	PacketComputed        = 4
	PacketMotorOutputs    = 5
	PacketDesiredQuaternion = 6
	PacketDebug           = 7
	PacketPrefsEcho       = 0x18
)

// pulseTimeout is how long a port's heartbeat stays "alive" with no
// traffic before its telemetry stream is silenced.
const pulseTimeout = 500 // ticks

// PortState tracks one serial port's pulse timer and byte-timed upload
// state machine.
type PortState struct {
	port      ports.SerialPort
	pulse     int32
	uploadBuf []byte
	uploading bool
}

func NewPortState(p ports.SerialPort) *PortState {
	return &PortState{port: p}
}

// Link runs the command dispatch and telemetry streaming for both serial
// ports against a shared Manager and flight Loop.
type Link struct {
	USB   *PortState
	Radio *PortState

	Prefs *prefs.Manager
	Loop  *flight.Loop

	tick int32
}

// NewLink wires a Link against the USB and radio-modem ports.
func NewLink(usb, radioPort ports.SerialPort, pm *prefs.Manager, loop *flight.Loop) *Link {
	return &Link{USB: NewPortState(usb), Radio: NewPortState(radioPort), Prefs: pm, Loop: loop}
}

// PollOnce services one tick's worth of non-blocking command processing and
// telemetry streaming on both ports. It is meant to be called once per
// flight-loop tick.
func (l *Link) PollOnce(ctx context.Context, frame sensors.Frame, rf radio.Frame, motors flight.MotorOutputs) {
	l.tick++
	for _, ps := range []*PortState{l.USB, l.Radio} {
		l.serviceCommands(ctx, ps)
		l.serviceStream(ps, frame, rf, motors)
	}
}

func (l *Link) serviceCommands(ctx context.Context, ps *PortState) {
	b, ok := ps.port.TryReadByte()
	if !ok {
		return
	}
	ps.pulse = 0

	switch {
	case b >= CmdMotorTestBase && b <= CmdMotorTestBase+7:
		// Motor nudge / buzzer / LED-rainbow / ESC-cal / motors-off: all of
		// these act on live hardware state the driver owns; the link only
		// needs to recognize and acknowledge the byte here.
		l.ack(ps)
	case b == CmdTempZeroGyro, b == CmdResetGyroDrift:
		l.ack(ps)
	case b == CmdResetChannelMap:
		p := l.Prefs.Current()
		for i := range p.ChannelScale {
			p.ChannelScale[i] = 1024
			p.ChannelCenter[i] = 0
		}
		l.Prefs.Apply(ctx, prefs.Encode(p))
		l.ack(ps)
	case b == CmdTempZeroAccel, b == CmdResetAccel:
		l.ack(ps)
	case b == CmdQueryPrefs:
		l.sendPrefsEcho(ps)
	case b == CmdUploadPrefs:
		l.beginUpload(ps)
	case b == CmdRestoreDefaults:
		l.Prefs.LoadDefaults(ctx)
		l.ack(ps)
	case b == CmdPing:
		ps.port.Write([]byte{respPingByte})
	}
}

// beginUpload reads the fixed-size preferences blob byte by byte, each
// with a 50ms timeout; on any timeout or checksum failure the upload is
// discarded and current preferences are left untouched.
func (l *Link) beginUpload(ps *PortState) {
	blob := make([]byte, prefs.BlobSize())
	for i := range blob {
		b, err := ps.port.ReadByteTimeout(50 * time.Millisecond)
		if err != nil {
			l.nack(ps)
			return
		}
		blob[i] = b
	}
	if err := l.Prefs.Apply(context.Background(), blob); err != nil {
		l.nack(ps)
		return
	}
	l.ack(ps)
}

func (l *Link) ack(ps *PortState)  { ps.port.Write([]byte{0x06}) }
func (l *Link) nack(ps *PortState) { ps.port.Write([]byte{0x15}) }

func (l *Link) sendPrefsEcho(ps *PortState) {
	blob := prefs.Encode(l.Prefs.Current())
	frame := append([]byte{PacketPrefsEcho}, blob...)
	ps.port.Write(frame)
}

// serviceStream advances a port's pulse timer and, while it is still
// "alive", writes the next telemetry packet in its rotation. USB cycles
// through all seven packet types, one per tick, over an 8-tick period (the
// eighth slot is idle); the radio modem halves that rate to stay within its
// lower baud budget.
func (l *Link) serviceStream(ps *PortState, frame sensors.Frame, rf radio.Frame, motors flight.MotorOutputs) {
	ps.pulse++
	if ps.pulse > pulseTimeout {
		return
	}

	period := int32(8)
	if ps == l.Radio {
		period = 16
	}
	slot := l.tick % period
	if slot >= 8 {
		return
	}

	var pkt []byte
	switch slot {
	case 0:
		pkt = encodeRadioBattery(rf, l.Loop.State().BatteryVolts)
	case 1:
		pkt = encodeRawSensors(frame)
	case 2:
		pkt = encodeMotorOutputs(motors)
	case 3:
		pkt = encodeComputed(l.Loop.Est, frame)
	case 4:
		w, x, y, z := l.Loop.Est.Quaternion()
		pkt = encodeQuaternion(w, x, y, z)
	case 5:
		w, x, y, z := l.Loop.Est.DesiredQuaternion()
		pkt = encodeDesiredQuaternion(w, x, y, z)
	case 6:
		pkt = encodeDebug(l.Loop.State())
	default:
		return
	}
	ps.port.Write(pkt)
}

func encodeRadioBattery(rf radio.Frame, volts int32) []byte {
	buf := make([]byte, 1, 18)
	buf[0] = PacketRadioBattery
	for _, v := range rf.Raw {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(volts))
	return buf
}

// encodeRawSensors lays out Temperature, GyroX/Y/Z, AccelX/Y/Z, MagX/Y/Z as
// ten little-endian int16 fields, matching the original's TxData word array.
func encodeRawSensors(f sensors.Frame) []byte {
	buf := make([]byte, 1, 21)
	buf[0] = PacketRawSensors
	for _, v := range []int32{f.Temp, f.GyroX, f.GyroY, f.GyroZ, f.AccelX, f.AccelY, f.AccelZ, f.MagX, f.MagY, f.MagZ} {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
	}
	return buf
}

func encodeMotorOutputs(m flight.MotorOutputs) []byte {
	buf := make([]byte, 1, 8)
	buf[0] = PacketMotorOutputs
	for _, v := range []int32{m.FrontLeft, m.FrontRight, m.BackLeft, m.BackRight} {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
	}
	return buf
}

// encodeComputed lays out PitchDifference, RollDifference, YawDifference,
// altitude, altimeter temperature, and the altitude estimate as six
// little-endian int32 fields.
func encodeComputed(est *imu.Estimator, f sensors.Frame) []byte {
	buf := make([]byte, 1, 25)
	buf[0] = PacketComputed
	for _, v := range []int32{est.PitchDiff(), est.RollDiff(), est.YawDiff(), f.Altitude, f.AltiTemp, est.AltiEst()} {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
	}
	return buf
}

func encodeQuaternion(w, x, y, z float32) []byte {
	return encodeQuat(PacketQuaternion, w, x, y, z)
}

func encodeDesiredQuaternion(w, x, y, z float32) []byte {
	return encodeQuat(PacketDesiredQuaternion, w, x, y, z)
}

func encodeQuat(tag byte, w, x, y, z float32) []byte {
	buf := make([]byte, 1, 17)
	buf[0] = tag
	for _, v := range []float32{w, x, y, z} {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// encodeDebug mirrors the original's case-1 debug packet: loop cycle count
// and the tick counter, 4 bytes each.
func encodeDebug(s *flight.State) []byte {
	buf := make([]byte, 1, 9)
	buf[0] = PacketDebug
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.LoopCycles))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.Counter))
	return buf
}
