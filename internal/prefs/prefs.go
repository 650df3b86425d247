// Package prefs implements the checksummed preferences blob and its
// atomic-apply protocol: write into a scratch record, verify the checksum,
// only then commit, persist, and reapply.
package prefs

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sunsetTH/Flight-Controller/internal/ports"
)

// ErrChecksum is returned when an uploaded preferences blob fails its
// checksum check. The caller discards the upload and keeps the prior value.
var ErrChecksum = errors.New("prefs: checksum mismatch")

// Preferences holds every user-tunable field consumed by the flight loop.
type Preferences struct {
	MinThrottle       int16
	MinThrottleArmed  int16
	MaxThrottle       int16
	CenterThrottle    int16

	ChannelIndex  [8]int16
	ChannelCenter [8]int16
	ChannelScale  [8]int16

	DriftScale   [3]int16
	AccelOffset  [3]int16
	MagScaleOfs  [9]int16
	RollCorrect  [2]int16
	PitchCorrect [2]int16

	AutoLevelRollPitch   int16
	AutoLevelYawRate     int16
	ManualRollPitchRate  int16
	ManualYawRate        int16

	AccelCorrectionFilter int16
	ThrustCorrectionScale int16
	VoltageOffset         int16
	LowVoltageAlarmThreshold int16

	ArmDelay    int16
	DisarmDelay int16

	UseSBUS       bool
	UseBattMon    bool
	DisableMotors bool
	LowVoltageAlarm bool
}

// Default returns the factory-default preference set, matching the seed
// values the cascade controller documents its PID gains against.
func Default() Preferences {
	p := Preferences{
		MinThrottle:      8000,
		MinThrottleArmed: 8100,
		MaxThrottle:      16000,
		CenterThrottle:   12000,

		AutoLevelRollPitch:  150,
		AutoLevelYawRate:    150,
		ManualRollPitchRate: 300,
		ManualYawRate:       300,

		AccelCorrectionFilter:    30,
		ThrustCorrectionScale:    0,
		VoltageOffset:            0,
		LowVoltageAlarmThreshold: 700,

		ArmDelay:    50,
		DisarmDelay: 50,

		UseSBUS:    false,
		UseBattMon: true,
	}
	for i := 0; i < 8; i++ {
		p.ChannelIndex[i] = int16(i)
		p.ChannelScale[i] = 1024
	}
	return p
}

// blobSize is the wire size of an encoded Preferences plus its trailing
// 2-byte checksum.
const blobSize = 2*4 + 2*8*3 + 2*3 + 2*3 + 2*9 + 2*2 + 2*2 + 2*4 + 2*4 + 2*2 + 2*4 + 2

// BlobSize is the exact byte length of an Encode output, so a caller
// reading a fixed-size upload off a serial port knows how many bytes to
// collect before calling Decode.
func BlobSize() int { return blobSize }

// Encode serializes p into a little-endian byte blob with a trailing
// checksum: the 16-bit sum of every preceding byte, matching the wire
// format a ground-station tool must also produce to round-trip an upload.
func Encode(p Preferences) []byte {
	buf := make([]byte, 0, blobSize)
	putI16 := func(v int16) { buf = binary.LittleEndian.AppendUint16(buf, uint16(v)) }
	putBool := func(v bool) {
		if v {
			putI16(1)
		} else {
			putI16(0)
		}
	}

	putI16(p.MinThrottle)
	putI16(p.MinThrottleArmed)
	putI16(p.MaxThrottle)
	putI16(p.CenterThrottle)
	for _, v := range p.ChannelIndex {
		putI16(v)
	}
	for _, v := range p.ChannelCenter {
		putI16(v)
	}
	for _, v := range p.ChannelScale {
		putI16(v)
	}
	for _, v := range p.DriftScale {
		putI16(v)
	}
	for _, v := range p.AccelOffset {
		putI16(v)
	}
	for _, v := range p.MagScaleOfs {
		putI16(v)
	}
	for _, v := range p.RollCorrect {
		putI16(v)
	}
	for _, v := range p.PitchCorrect {
		putI16(v)
	}
	putI16(p.AutoLevelRollPitch)
	putI16(p.AutoLevelYawRate)
	putI16(p.ManualRollPitchRate)
	putI16(p.ManualYawRate)
	putI16(p.AccelCorrectionFilter)
	putI16(p.ThrustCorrectionScale)
	putI16(p.VoltageOffset)
	putI16(p.LowVoltageAlarmThreshold)
	putI16(p.ArmDelay)
	putI16(p.DisarmDelay)
	putBool(p.UseSBUS)
	putBool(p.UseBattMon)
	putBool(p.DisableMotors)
	putBool(p.LowVoltageAlarm)

	sum := checksum(buf)
	buf = binary.LittleEndian.AppendUint16(buf, sum)
	return buf
}

// Decode parses a blob produced by Encode, validating its checksum. It
// returns ErrChecksum without modifying the zero-value Preferences it would
// otherwise return, so a caller never has to un-apply a failed decode.
func Decode(blob []byte) (Preferences, error) {
	if len(blob) != blobSize {
		return Preferences{}, fmt.Errorf("prefs: want %d bytes, got %d", blobSize, len(blob))
	}
	body, trailer := blob[:len(blob)-2], blob[len(blob)-2:]
	want := binary.LittleEndian.Uint16(trailer)
	got := checksum(body)
	if got != want {
		return Preferences{}, ErrChecksum
	}

	r := body
	getI16 := func() int16 {
		v := int16(binary.LittleEndian.Uint16(r))
		r = r[2:]
		return v
	}
	getBool := func() bool { return getI16() != 0 }

	var p Preferences
	p.MinThrottle = getI16()
	p.MinThrottleArmed = getI16()
	p.MaxThrottle = getI16()
	p.CenterThrottle = getI16()
	for i := range p.ChannelIndex {
		p.ChannelIndex[i] = getI16()
	}
	for i := range p.ChannelCenter {
		p.ChannelCenter[i] = getI16()
	}
	for i := range p.ChannelScale {
		p.ChannelScale[i] = getI16()
	}
	for i := range p.DriftScale {
		p.DriftScale[i] = getI16()
	}
	for i := range p.AccelOffset {
		p.AccelOffset[i] = getI16()
	}
	for i := range p.MagScaleOfs {
		p.MagScaleOfs[i] = getI16()
	}
	for i := range p.RollCorrect {
		p.RollCorrect[i] = getI16()
	}
	for i := range p.PitchCorrect {
		p.PitchCorrect[i] = getI16()
	}
	p.AutoLevelRollPitch = getI16()
	p.AutoLevelYawRate = getI16()
	p.ManualRollPitchRate = getI16()
	p.ManualYawRate = getI16()
	p.AccelCorrectionFilter = getI16()
	p.ThrustCorrectionScale = getI16()
	p.VoltageOffset = getI16()
	p.LowVoltageAlarmThreshold = getI16()
	p.ArmDelay = getI16()
	p.DisarmDelay = getI16()
	p.UseSBUS = getBool()
	p.UseBattMon = getBool()
	p.DisableMotors = getBool()
	p.LowVoltageAlarm = getBool()
	return p, nil
}

func checksum(b []byte) uint16 {
	var sum uint16
	for _, c := range b {
		sum += uint16(c)
	}
	return sum
}

// Manager owns the currently-applied Preferences and mediates the
// atomic-apply protocol against a Store. It is the only thing in the
// flight loop that ever mutates Preferences after startup.
type Manager struct {
	store   ports.Store
	current Preferences
}

// NewManager loads the initial preferences from store, falling back to
// Default() if none are stored yet or the stored blob fails its checksum.
func NewManager(ctx context.Context, store ports.Store) *Manager {
	m := &Manager{store: store, current: Default()}
	blob, err := store.Load(ctx)
	if err != nil || len(blob) == 0 {
		return m
	}
	if p, err := Decode(blob); err == nil {
		m.current = p
	}
	return m
}

// Current returns the currently-applied Preferences.
func (m *Manager) Current() Preferences { return m.current }

// Apply implements the upload protocol from the debug link: decode into a
// scratch record, verify the checksum, and only on success copy it over
// current, persist it, and reload to confirm the medium actually took the
// write. On any failure current is left untouched.
func (m *Manager) Apply(ctx context.Context, blob []byte) error {
	scratch, err := Decode(blob)
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, blob); err != nil {
		return fmt.Errorf("prefs: persist failed: %w", err)
	}
	reloaded, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("prefs: reload after persist failed: %w", err)
	}
	if _, err := Decode(reloaded); err != nil {
		return fmt.Errorf("prefs: persisted blob failed to verify: %w", err)
	}
	m.current = scratch
	return nil
}

// LoadDefaults resets current to Default() and persists it, matching the
// debug link's "restore defaults" command.
func (m *Manager) LoadDefaults(ctx context.Context) error {
	m.current = Default()
	return m.store.Save(ctx, Encode(m.current))
}

// MemStore is an in-memory ports.Store, used by tests and the host
// simulator; it has no physical persistence.
type MemStore struct {
	blob []byte
}

func (s *MemStore) Load(context.Context) ([]byte, error) { return s.blob, nil }
func (s *MemStore) Save(_ context.Context, blob []byte) error {
	s.blob = append([]byte(nil), blob...)
	return nil
}
