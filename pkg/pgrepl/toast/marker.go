// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package toast

import "github.com/cockroachdb/redact"

// Marker stands in for the value of a column that the decoding plugin did
// not transmit because it is TOASTed and unchanged. Markers are compared by
// value; they are never row data and must not be serialized as such.
//
// The zero Marker is not a marker.
type Marker uint8

const (
	_ Marker = iota
	// UnchangedToastValue marks an unchanged TOAST value of a scalar column.
	// It is also the single element of the sequence produced for text array
	// columns.
	UnchangedToastValue
	// UnchangedTextArrayToastValue identifies an unchanged text array. It is
	// reported by MarkerOf for the wrapped sequence form; Column.Value never
	// returns it bare.
	UnchangedTextArrayToastValue
	// UnchangedIntArrayToastValue marks an unchanged integer[] column.
	UnchangedIntArrayToastValue
	// UnchangedBigintArrayToastValue marks an unchanged bigint[] column.
	UnchangedBigintArrayToastValue
)

var markerNames = [...]string{
	UnchangedToastValue:            "unchanged-toast",
	UnchangedTextArrayToastValue:   "unchanged-toast-text-array",
	UnchangedIntArrayToastValue:    "unchanged-toast-int-array",
	UnchangedBigintArrayToastValue: "unchanged-toast-bigint-array",
}

// Markers lists every marker.
var Markers = []Marker{
	UnchangedToastValue,
	UnchangedTextArrayToastValue,
	UnchangedIntArrayToastValue,
	UnchangedBigintArrayToastValue,
}

// IsValid returns whether m is one of the defined markers.
func (m Marker) IsValid() bool {
	return m >= UnchangedToastValue && m <= UnchangedBigintArrayToastValue
}

// Shape returns the column shape the marker stands for.
func (m Marker) Shape() Shape {
	switch m {
	case UnchangedTextArrayToastValue:
		return ShapeTextArray
	case UnchangedIntArrayToastValue:
		return ShapeIntegerArray
	case UnchangedBigintArrayToastValue:
		return ShapeBigintArray
	default:
		return ShapeScalar
	}
}

// String implements fmt.Stringer.
func (m Marker) String() string {
	if !m.IsValid() {
		return "invalid-marker"
	}
	return markerNames[m]
}

// SafeValue implements redact.SafeValue.
func (Marker) SafeValue() {}

var _ redact.SafeValue = Marker(0)

// MarkerOf reports whether v is the resolved value of an unchanged TOAST
// column, and which. Besides bare markers it recognizes the one-element
// sequence produced for text arrays.
func MarkerOf(v interface{}) (Marker, bool) {
	switch t := v.(type) {
	case Marker:
		return t, t.IsValid()
	case []interface{}:
		if len(t) == 1 {
			if m, ok := t[0].(Marker); ok && m == UnchangedToastValue {
				return UnchangedTextArrayToastValue, true
			}
		}
	}
	return 0, false
}
