// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package toast

import (
	"strings"

	"github.com/cockroachdb/redact"
)

// Shape is the value-shape category of an unchanged TOAST column. Only the
// three array shapes below need a sentinel of a different shape downstream;
// every other type is a Scalar.
type Shape uint8

const (
	// ShapeScalar is any type not recognized as one of the array shapes.
	ShapeScalar Shape = iota
	// ShapeTextArray is text[].
	ShapeTextArray
	// ShapeIntegerArray is integer[].
	ShapeIntegerArray
	// ShapeBigintArray is bigint[].
	ShapeBigintArray
)

var shapeNames = [...]string{
	ShapeScalar:       "scalar",
	ShapeTextArray:    "text-array",
	ShapeIntegerArray: "integer-array",
	ShapeBigintArray:  "bigint-array",
}

// String implements fmt.Stringer.
func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// SafeValue implements redact.SafeValue.
func (Shape) SafeValue() {}

var _ redact.SafeValue = Shape(0)

// Marker returns the marker that identifies an unchanged value of shape s.
func (s Shape) Marker() Marker {
	switch s {
	case ShapeTextArray:
		return UnchangedTextArrayToastValue
	case ShapeIntegerArray:
		return UnchangedIntArrayToastValue
	case ShapeBigintArray:
		return UnchangedBigintArrayToastValue
	default:
		return UnchangedToastValue
	}
}

// ClassifyShape returns the shape of a column given its type-with-modifiers
// descriptor. Decoding plugins report arrays either in SQL display form
// ("text[]") or in catalog form ("_text"); both classify identically. The
// match is exact and case-sensitive, and anything else is a Scalar.
func ClassifyShape(typeWithModifiers string) Shape {
	switch typeWithModifiers {
	case "text[]", "_text":
		return ShapeTextArray
	case "integer[]", "_int4":
		return ShapeIntegerArray
	case "bigint[]", "_int8":
		return ShapeBigintArray
	default:
		return ShapeScalar
	}
}

// IsUnrecognizedArray returns whether typeWithModifiers looks like an array
// type but classifies as a Scalar, e.g. "_varchar" or "text[][]".
func IsUnrecognizedArray(typeWithModifiers string) bool {
	if ClassifyShape(typeWithModifiers) != ShapeScalar {
		return false
	}
	return strings.HasPrefix(typeWithModifiers, "_") || strings.HasSuffix(typeWithModifiers, "[]")
}
