package prefs

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the human-editable mirror of Preferences used by offline
// tuning tools. Field names match Preferences; it exists separately so the
// wire format (Encode/Decode, checksummed and byte-exact) never has to
// track YAML's own marshaling quirks.
type Profile struct {
	MinThrottle      int16 `yaml:"min_throttle"`
	MinThrottleArmed int16 `yaml:"min_throttle_armed"`
	MaxThrottle      int16 `yaml:"max_throttle"`
	CenterThrottle   int16 `yaml:"center_throttle"`

	ChannelIndex  [8]int16 `yaml:"channel_index"`
	ChannelCenter [8]int16 `yaml:"channel_center"`
	ChannelScale  [8]int16 `yaml:"channel_scale"`

	DriftScale   [3]int16 `yaml:"drift_scale"`
	AccelOffset  [3]int16 `yaml:"accel_offset"`
	MagScaleOfs  [9]int16 `yaml:"mag_scale_ofs"`
	RollCorrect  [2]int16 `yaml:"roll_correct"`
	PitchCorrect [2]int16 `yaml:"pitch_correct"`

	AutoLevelRollPitch  int16 `yaml:"auto_level_roll_pitch"`
	AutoLevelYawRate    int16 `yaml:"auto_level_yaw_rate"`
	ManualRollPitchRate int16 `yaml:"manual_roll_pitch_rate"`
	ManualYawRate       int16 `yaml:"manual_yaw_rate"`

	AccelCorrectionFilter    int16 `yaml:"accel_correction_filter"`
	ThrustCorrectionScale    int16 `yaml:"thrust_correction_scale"`
	VoltageOffset            int16 `yaml:"voltage_offset"`
	LowVoltageAlarmThreshold int16 `yaml:"low_voltage_alarm_threshold"`

	ArmDelay    int16 `yaml:"arm_delay"`
	DisarmDelay int16 `yaml:"disarm_delay"`

	UseSBUS         bool `yaml:"use_sbus"`
	UseBattMon      bool `yaml:"use_batt_mon"`
	DisableMotors   bool `yaml:"disable_motors"`
	LowVoltageAlarm bool `yaml:"low_voltage_alarm"`
}

func fromPreferences(p Preferences) Profile { return Profile(p) }
func (p Profile) toPreferences() Preferences { return Preferences(p) }

// FromProfile converts a YAML-loaded Profile into the Preferences shape
// Encode/Decode and Manager operate on.
func FromProfile(p Profile) Preferences { return p.toPreferences() }

// DefaultProfile mirrors Default() in the YAML shape.
func DefaultProfile() Profile { return fromPreferences(Default()) }

// LoadProfile reads a YAML tuning profile from filename. A missing file is
// not an error; it yields DefaultProfile(), matching itohio/golpm's
// Load()-falls-back-to-Default() convention.
func LoadProfile(filename string) (Profile, error) {
	prof := DefaultProfile()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return prof, nil
		}
		return Profile{}, fmt.Errorf("prefs: read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &prof); err != nil {
		return Profile{}, fmt.Errorf("prefs: parse profile: %w", err)
	}
	prof.ensureDefaults()
	return prof, nil
}

// SaveProfile writes prof to filename as YAML.
func SaveProfile(filename string, prof Profile) error {
	data, err := yaml.Marshal(prof)
	if err != nil {
		return fmt.Errorf("prefs: marshal profile: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("prefs: write profile: %w", err)
	}
	return nil
}

// ensureDefaults replaces zero values with the matching Default() value for
// the throttle limits, the channel scale/index pair, the arm/disarm delays
// and the low-voltage threshold, the same pattern itohio/golpm's
// Config.ensureDefaults follows. Other fields keep whatever the file gave
// them, zero included.
func (p *Profile) ensureDefaults() {
	def := DefaultProfile()
	if p.MaxThrottle == 0 {
		p.MaxThrottle = def.MaxThrottle
	}
	if p.MinThrottle == 0 {
		p.MinThrottle = def.MinThrottle
	}
	if p.MinThrottleArmed == 0 {
		p.MinThrottleArmed = def.MinThrottleArmed
	}
	if p.CenterThrottle == 0 {
		p.CenterThrottle = def.CenterThrottle
	}
	if p.ChannelScale == [8]int16{} {
		p.ChannelScale = def.ChannelScale
		p.ChannelIndex = def.ChannelIndex
	}
	if p.ArmDelay == 0 {
		p.ArmDelay = def.ArmDelay
	}
	if p.DisarmDelay == 0 {
		p.DisarmDelay = def.DisarmDelay
	}
	if p.LowVoltageAlarmThreshold == 0 {
		p.LowVoltageAlarmThreshold = def.LowVoltageAlarmThreshold
	}
}

// YAMLStore is a ports.Store backed by a YAML profile file, so the
// checksummed wire protocol can persist into a human-editable file instead
// of a flash page.
type YAMLStore struct {
	Path string
}

func (s *YAMLStore) Load(context.Context) ([]byte, error) {
	prof, err := LoadProfile(s.Path)
	if err != nil {
		return nil, err
	}
	return Encode(prof.toPreferences()), nil
}

func (s *YAMLStore) Save(_ context.Context, blob []byte) error {
	p, err := Decode(blob)
	if err != nil {
		return err
	}
	return SaveProfile(s.Path, fromPreferences(p))
}
