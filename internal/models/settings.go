package models

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// SettingKind tags the value carried by a [SpeakerSetting].
type SettingKind string

const (
	SettingBool   SettingKind = "bool"
	SettingNumber SettingKind = "number"
	SettingEnum   SettingKind = "enum"
)

// SpeakerSetting is a device-side adjustable such as bass, loudness or an EQ preset.
//
// Exactly one of Bool, Number or Enum is meaningful, selected by Kind. Number settings carry an
// inclusive [Min, Max] range and an optional Step; Enum settings carry the allowed Cases.
type SpeakerSetting struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Kind   SettingKind `json:"kind"`
	Bool   bool        `json:"bool,omitempty"`
	Number float64     `json:"number,omitempty"`
	Min    float64     `json:"min,omitempty"`
	Max    float64     `json:"max,omitempty"`
	Step   float64     `json:"step,omitempty"`
	Enum   string      `json:"enum,omitempty"`
	Cases  []string    `json:"cases,omitempty"`
}

// SettingValue is a requested new value for a speaker setting.
type SettingValue struct {
	Bool   bool    `json:"bool,omitempty"`
	Number float64 `json:"number,omitempty"`
	Enum   string  `json:"enum,omitempty"`
}

func BoolValue(b bool) SettingValue      { return SettingValue{Bool: b} }
func NumberValue(n float64) SettingValue { return SettingValue{Number: n} }
func EnumValue(s string) SettingValue    { return SettingValue{Enum: s} }

// ParseValue interprets raw text according to the setting's kind.
func (s SpeakerSetting) ParseValue(raw string) (SettingValue, error) {
	raw = strings.TrimSpace(raw)
	switch s.Kind {
	case SettingBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return SettingValue{}, fmt.Errorf("setting %s expects true or false, got %q", s.ID, raw)
		}
		return BoolValue(b), nil
	case SettingNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return SettingValue{}, fmt.Errorf("setting %s expects a number, got %q", s.ID, raw)
		}
		return NumberValue(n), nil
	case SettingEnum:
		return EnumValue(raw), nil
	default:
		return SettingValue{}, fmt.Errorf("setting %s has unknown kind %q", s.ID, s.Kind)
	}
}

// Validate rejects numbers outside [Min, Max] or off the step grid, and unknown enum cases.
func (s SpeakerSetting) Validate(v SettingValue) error {
	switch s.Kind {
	case SettingBool:
		return nil
	case SettingNumber:
		if math.IsNaN(v.Number) || v.Number < s.Min || v.Number > s.Max {
			return fmt.Errorf("setting %s must be between %g and %g, got %g", s.ID, s.Min, s.Max, v.Number)
		}
		if s.Step > 0 {
			steps := (v.Number - s.Min) / s.Step
			if math.Abs(steps-math.Round(steps)) > 1e-9 {
				return fmt.Errorf("setting %s must move in steps of %g, got %g", s.ID, s.Step, v.Number)
			}
		}
		return nil
	case SettingEnum:
		if !slices.Contains(s.Cases, v.Enum) {
			return fmt.Errorf("setting %s does not accept %q (allowed: %s)", s.ID, v.Enum, strings.Join(s.Cases, ", "))
		}
		return nil
	default:
		return fmt.Errorf("setting %s has unknown kind %q", s.ID, s.Kind)
	}
}

// With returns a copy of the setting holding v.
func (s SpeakerSetting) With(v SettingValue) SpeakerSetting {
	switch s.Kind {
	case SettingBool:
		s.Bool = v.Bool
	case SettingNumber:
		s.Number = v.Number
	case SettingEnum:
		s.Enum = v.Enum
	}
	s.Cases = slices.Clone(s.Cases)
	return s
}

// ValueString renders the current value for display.
func (s SpeakerSetting) ValueString() string {
	switch s.Kind {
	case SettingBool:
		return strconv.FormatBool(s.Bool)
	case SettingNumber:
		return strconv.FormatFloat(s.Number, 'g', -1, 64)
	default:
		return s.Enum
	}
}
