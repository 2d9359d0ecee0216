// Package units converts between display unit systems and the base units
// used for calculations and storage (inches and pounds).
package units

import (
	"errors"
	"fmt"
	"strings"
)

// System identifies a display unit system.
type System string

const (
	Imperial System = "imperial"
	Metric   System = "metric"
)

const (
	centimetresPerInch = 2.54
	kilogramsPerPound  = 0.45359237
)

// ErrUnknownSystem is returned by ParseSystem for unsupported names.
var ErrUnknownSystem = errors.New("unknown unit system")

// ParseSystem resolves a system name case-insensitively. An empty name
// resolves to fallback.
func ParseSystem(raw string, fallback System) (System, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return fallback, nil
	case "imperial", "in", "lb":
		return Imperial, nil
	case "metric", "cm", "kg":
		return Metric, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownSystem, raw)
	}
}

// LengthUnit returns the display label for lengths.
func (s System) LengthUnit() string {
	if s == Metric {
		return "cm"
	}
	return "in"
}

// WeightUnit returns the display label for weights.
func (s System) WeightUnit() string {
	if s == Metric {
		return "kg"
	}
	return "lb"
}

// LengthToBase converts a length in s to inches.
func (s System) LengthToBase(v float64) float64 {
	if s == Metric {
		return v / centimetresPerInch
	}
	return v
}

// LengthFromBase converts inches to a length in s.
func (s System) LengthFromBase(v float64) float64 {
	if s == Metric {
		return v * centimetresPerInch
	}
	return v
}

// WeightToBase converts a weight in s to pounds.
func (s System) WeightToBase(v float64) float64 {
	if s == Metric {
		return v / kilogramsPerPound
	}
	return v
}

// WeightFromBase converts pounds to a weight in s.
func (s System) WeightFromBase(v float64) float64 {
	if s == Metric {
		return v * kilogramsPerPound
	}
	return v
}
