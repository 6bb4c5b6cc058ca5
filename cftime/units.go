// Package cftime converts between numeric time axes and time.Time values.
//
// Gridded datasets store time coordinates as plain numbers counted from a
// reference instant, described by a units attribute such as
// "days since 2000-01-01 00:00:00". This package parses that grammar and
// converts values in both directions at millisecond resolution.
//
// Decoding and encoding are exact inverses at millisecond resolution:
// Encode(Decode(v)) returns v for any v that lands on a whole millisecond,
// and Decode(Encode(t)) returns t for any t truncated to milliseconds.
package cftime

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/arloliu/nimbo/errs"
)

// Unit identifies the counting unit of a numeric time axis.
type Unit int

const (
	// UnitMilliseconds counts milliseconds since the reference instant.
	UnitMilliseconds Unit = iota + 1
	// UnitSeconds counts seconds since the reference instant.
	UnitSeconds
	// UnitMinutes counts minutes since the reference instant.
	UnitMinutes
	// UnitHours counts hours since the reference instant.
	UnitHours
	// UnitDays counts days of exactly 86400 seconds since the reference instant.
	UnitDays
)

// String returns the canonical plural spelling of the unit.
func (u Unit) String() string {
	switch u {
	case UnitMilliseconds:
		return "milliseconds"
	case UnitSeconds:
		return "seconds"
	case UnitMinutes:
		return "minutes"
	case UnitHours:
		return "hours"
	case UnitDays:
		return "days"
	default:
		return "unknown"
	}
}

// Valid returns true if the unit is one of the defined counting units.
func (u Unit) Valid() bool {
	return u >= UnitMilliseconds && u <= UnitDays
}

// scaleMillis returns the length of one unit in milliseconds.
func (u Unit) scaleMillis() int64 {
	switch u {
	case UnitMilliseconds:
		return 1
	case UnitSeconds:
		return 1000
	case UnitMinutes:
		return 60_000
	case UnitHours:
		return 3_600_000
	case UnitDays:
		return 86_400_000
	default:
		return 0
	}
}

// unitNames maps every accepted spelling, lower-cased, to its unit.
// Singular and plural forms are both accepted.
var unitNames = map[string]Unit{
	"millisecond":  UnitMilliseconds,
	"milliseconds": UnitMilliseconds,
	"msec":         UnitMilliseconds,
	"msecs":        UnitMilliseconds,
	"second":       UnitSeconds,
	"seconds":      UnitSeconds,
	"sec":          UnitSeconds,
	"secs":         UnitSeconds,
	"minute":       UnitMinutes,
	"minutes":      UnitMinutes,
	"min":          UnitMinutes,
	"mins":         UnitMinutes,
	"hour":         UnitHours,
	"hours":        UnitHours,
	"hr":           UnitHours,
	"hrs":          UnitHours,
	"day":          UnitDays,
	"days":         UnitDays,
}

// referenceLayouts lists the accepted reference instant formats, tried in
// order. Go's parser additionally tolerates a fractional second after the
// seconds field for all of them.
var referenceLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Units describes a numeric time axis: a counting unit and the reference
// instant the counting starts from.
//
// The zero value is not usable; construct values with Parse or New.
type Units struct {
	unit  Unit
	epoch time.Time
}

// New creates time axis units from a counting unit and a reference instant.
// The reference instant is truncated to millisecond resolution and converted
// to UTC.
func New(unit Unit, epoch time.Time) Units {
	return Units{unit: unit, epoch: epoch.Truncate(time.Millisecond).UTC()}
}

// IsTimeString reports whether s follows the "<unit> since <reference>"
// pattern of a time axis units attribute. It performs no validation beyond
// the shape of the string; Parse decides whether the unit and reference are
// actually usable.
func IsTimeString(s string) bool {
	fields := strings.Fields(s)
	return len(fields) >= 3 && strings.EqualFold(fields[1], "since")
}

// Parse parses a units attribute string such as
// "days since 2000-01-01 00:00:00" or "seconds since 1970-01-01".
//
// The unit is matched case-insensitively and accepts singular and plural
// spellings. The reference instant accepts a date with an optional time of
// day; a bare date means midnight. The reference is interpreted as UTC.
//
// Errors distinguish three situations:
//   - errs.ErrNotTimeUnits: s does not follow the "<unit> since <reference>"
//     pattern at all, so the attribute does not describe a time axis.
//   - errs.ErrUnknownTimeUnit: s has the pattern but the unit is not one of
//     the supported counting units.
//   - errs.ErrBadReferenceTime: s has the pattern but the reference instant
//     does not parse.
func Parse(s string) (Units, error) {
	fields := strings.Fields(s)
	if len(fields) < 3 || !strings.EqualFold(fields[1], "since") {
		return Units{}, fmt.Errorf("%w: %q", errs.ErrNotTimeUnits, s)
	}

	unit, ok := unitNames[strings.ToLower(fields[0])]
	if !ok {
		return Units{}, fmt.Errorf("%w: %q", errs.ErrUnknownTimeUnit, fields[0])
	}

	ref := strings.Join(fields[2:], " ")
	for _, layout := range referenceLayouts {
		epoch, err := time.ParseInLocation(layout, ref, time.UTC)
		if err == nil {
			return New(unit, epoch), nil
		}
	}

	return Units{}, fmt.Errorf("%w: %q", errs.ErrBadReferenceTime, ref)
}

// Unit returns the counting unit.
func (u Units) Unit() Unit { return u.unit }

// Epoch returns the reference instant in UTC.
func (u Units) Epoch() time.Time { return u.epoch }

// String returns the canonical attribute form, e.g.
// "days since 2000-01-01 00:00:00".
func (u Units) String() string {
	return fmt.Sprintf("%s since %s", u.unit, u.epoch.Format("2006-01-02 15:04:05"))
}

// Decode converts a numeric axis value to the instant it denotes.
//
// The value is scaled to milliseconds and rounded half away from zero, so
// fractional values such as 1.5 days resolve to a whole millisecond before
// being added to the reference instant. The result is in UTC.
func (u Units) Decode(v float64) time.Time {
	ms := int64(math.Round(v * float64(u.unit.scaleMillis())))
	return time.UnixMilli(u.epoch.UnixMilli() + ms).UTC()
}

// DecodeSlice converts a slice of numeric axis values to instants.
func (u Units) DecodeSlice(vs []float64) []time.Time {
	out := make([]time.Time, len(vs))
	for i, v := range vs {
		out[i] = u.Decode(v)
	}

	return out
}

// Encode converts an instant to its numeric axis value: the signed distance
// from the reference instant, measured in the counting unit. Sub-millisecond
// components of t are discarded.
func (u Units) Encode(t time.Time) float64 {
	ms := t.UnixMilli() - u.epoch.UnixMilli()
	return float64(ms) / float64(u.unit.scaleMillis())
}

// EncodeSlice converts a slice of instants to numeric axis values.
func (u Units) EncodeSlice(ts []time.Time) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = u.Encode(t)
	}

	return out
}
