package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/sunsetTH/Flight-Controller/internal/flight"
	"github.com/sunsetTH/Flight-Controller/internal/imu"
	"github.com/sunsetTH/Flight-Controller/internal/prefs"
	"github.com/sunsetTH/Flight-Controller/internal/radio"
	"github.com/sunsetTH/Flight-Controller/internal/sensors"
)

// fakePort is a minimal ports.SerialPort backed by an in-memory queue, used
// to drive the command dispatcher without a real transport.
type fakePort struct {
	in      []byte
	out     []byte
	timeout bool
}

func (p *fakePort) TryReadByte() (byte, bool) {
	if len(p.in) == 0 {
		return 0, false
	}
	b := p.in[0]
	p.in = p.in[1:]
	return b, true
}

func (p *fakePort) ReadByteTimeout(time.Duration) (byte, error) {
	if p.timeout || len(p.in) == 0 {
		return 0, context.DeadlineExceeded
	}
	b := p.in[0]
	p.in = p.in[1:]
	return b, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.out = append(p.out, b...)
	return len(b), nil
}

func TestPingRespondsWithPingByte(t *testing.T) {
	usb := &fakePort{in: []byte{CmdPing}}
	store := &prefs.MemStore{}
	pm := prefs.NewManager(context.Background(), store)

	l := &Link{USB: NewPortState(usb), Radio: NewPortState(&fakePort{}), Prefs: pm}
	l.serviceCommands(context.Background(), l.USB)

	if len(usb.out) != 1 || usb.out[0] != 0xE8 {
		t.Fatalf("expected a single 0xE8 ping response, got %v", usb.out)
	}
}

func TestUploadWithBadChecksumLeavesPrefsUnchanged(t *testing.T) {
	store := &prefs.MemStore{}
	pm := prefs.NewManager(context.Background(), store)
	before := pm.Current()

	blob := prefs.Encode(prefs.Default())
	blob[0] ^= 0xFF // corrupt a data byte

	in := append([]byte{CmdUploadPrefs}, blob...)
	usb := &fakePort{in: in}
	l := &Link{USB: NewPortState(usb), Radio: NewPortState(&fakePort{}), Prefs: pm}
	l.serviceCommands(context.Background(), l.USB)

	if pm.Current() != before {
		t.Fatal("prefs changed despite a bad checksum upload")
	}
	if len(usb.out) != 1 || usb.out[0] != 0x15 {
		t.Fatalf("expected a NACK byte 0x15, got %v", usb.out)
	}
}

func TestUploadWithGoodChecksumCommitsAndAcks(t *testing.T) {
	store := &prefs.MemStore{}
	pm := prefs.NewManager(context.Background(), store)

	next := prefs.Default()
	next.MaxThrottle = 15500
	blob := prefs.Encode(next)

	in := append([]byte{CmdUploadPrefs}, blob...)
	usb := &fakePort{in: in}
	l := &Link{USB: NewPortState(usb), Radio: NewPortState(&fakePort{}), Prefs: pm}
	l.serviceCommands(context.Background(), l.USB)

	if pm.Current().MaxThrottle != 15500 {
		t.Fatalf("MaxThrottle = %d, want 15500 after a good upload", pm.Current().MaxThrottle)
	}
	if len(usb.out) != 1 || usb.out[0] != 0x06 {
		t.Fatalf("expected an ACK byte 0x06, got %v", usb.out)
	}
}

func TestUploadTimeoutDiscardsAndNacks(t *testing.T) {
	store := &prefs.MemStore{}
	pm := prefs.NewManager(context.Background(), store)
	before := pm.Current()

	usb := &fakePort{in: []byte{CmdUploadPrefs, 0x01, 0x02}, timeout: false}
	// Only 2 bytes follow the command, far short of BlobSize(); the reader
	// will exhaust the queue and time out partway through.
	l := &Link{USB: NewPortState(usb), Radio: NewPortState(&fakePort{}), Prefs: pm}
	l.serviceCommands(context.Background(), l.USB)

	if pm.Current() != before {
		t.Fatal("prefs changed despite a truncated upload")
	}
	if len(usb.out) != 1 || usb.out[0] != 0x15 {
		t.Fatalf("expected a NACK byte 0x15 on timeout, got %v", usb.out)
	}
}

func TestQueryPrefsEchoesChecksumValidBlob(t *testing.T) {
	store := &prefs.MemStore{}
	pm := prefs.NewManager(context.Background(), store)
	usb := &fakePort{in: []byte{CmdQueryPrefs}}
	l := &Link{USB: NewPortState(usb), Radio: NewPortState(&fakePort{}), Prefs: pm}

	l.serviceCommands(context.Background(), l.USB)

	if len(usb.out) == 0 || usb.out[0] != PacketPrefsEcho {
		t.Fatalf("expected a prefs-echo packet, got %v", usb.out)
	}
	got, err := prefs.Decode(usb.out[1:])
	if err != nil {
		t.Fatalf("echoed prefs blob failed to decode: %v", err)
	}
	if got != pm.Current() {
		t.Fatal("echoed prefs do not match the currently-applied preferences")
	}
}

func TestServiceStreamCyclesThroughEveryPacketType(t *testing.T) {
	store := &prefs.MemStore{}
	pm := prefs.NewManager(context.Background(), store)
	est := imu.New(1.0 / flight.UpdateRateHz)
	ctrl := flight.NewControllers(flight.UpdateRateHz)
	loop := flight.NewLoop(nil, nil, nil, nil, nil, nil, nil, nil, pm, est, ctrl, flight.SensorScale{})

	usb := &fakePort{}
	l := &Link{USB: NewPortState(usb), Radio: NewPortState(&fakePort{}), Prefs: pm, Loop: loop}

	frame := sensors.Frame{}
	rf := radio.Frame{}
	motors := flight.MotorOutputs{}

	seen := map[byte]bool{}
	for i := int32(0); i < 8; i++ {
		l.tick = i
		before := len(usb.out)
		l.serviceStream(l.USB, frame, rf, motors)
		if len(usb.out) > before {
			seen[usb.out[before]] = true
		}
	}

	for _, want := range []byte{
		PacketRadioBattery, PacketRawSensors, PacketMotorOutputs, PacketComputed,
		PacketQuaternion, PacketDesiredQuaternion, PacketDebug,
	} {
		if !seen[want] {
			t.Fatalf("packet type %d never appeared in one 8-tick rotation", want)
		}
	}
}

func TestEncodeRawSensorsCarriesMagnetometerNotAltimetry(t *testing.T) {
	f := sensors.Frame{Temp: 1, GyroX: 2, GyroY: 3, GyroZ: 4, AccelX: 5, AccelY: 6, AccelZ: 7, MagX: 8, MagY: 9, MagZ: 10, Altitude: 999, AltiTemp: 888}
	pkt := encodeRawSensors(f)

	if len(pkt) != 21 {
		t.Fatalf("len(pkt) = %d, want 21 (1 tag + 10 int16 fields)", len(pkt))
	}
	if pkt[0] != PacketRawSensors {
		t.Fatalf("pkt[0] = %d, want PacketRawSensors", pkt[0])
	}
}
