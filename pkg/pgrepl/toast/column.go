// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package toast represents columns whose content the logical decoding
// plugin omitted because the value is stored out of line (TOASTed) and did
// not change. Such a column resolves to a Marker rather than to data, so
// that record builders can tell "unchanged" apart from "set to null".
package toast

import (
	"context"

	"github.com/cockroachdb/pgcdc/pkg/pgrepl/pgtypes"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/replmsg"
	"github.com/cockroachdb/redact"
)

// Column is an unchanged TOASTed column of a replication message.
type Column struct {
	name              string
	typ               *pgtypes.Type
	typeWithModifiers string
	optional          bool
	shape             Shape
}

var _ replmsg.Column = (*Column)(nil)

// NewColumn returns the unchanged TOAST column for the given descriptor.
// It never fails: type descriptors that are not one of the recognized
// array forms are treated as scalars.
func NewColumn(name string, typ *pgtypes.Type, typeWithModifiers string, optional bool) *Column {
	return &Column{
		name:              name,
		typ:               typ,
		typeWithModifiers: typeWithModifiers,
		optional:          optional,
		shape:             ClassifyShape(typeWithModifiers),
	}
}

// Name implements replmsg.Column.
func (c *Column) Name() string { return c.name }

// Type implements replmsg.Column.
func (c *Column) Type() *pgtypes.Type { return c.typ }

// TypeWithModifiers implements replmsg.Column.
func (c *Column) TypeWithModifiers() string { return c.typeWithModifiers }

// IsOptional implements replmsg.Column.
func (c *Column) IsOptional() bool { return c.optional }

// Shape returns the shape the column was classified as.
func (c *Column) Shape() Shape { return c.shape }

// IsToastedColumn implements replmsg.Column. It is always true.
func (c *Column) IsToastedColumn() bool { return true }

// Value implements replmsg.Column. It returns the marker for the column's
// shape; text arrays get a fresh one-element sequence holding
// UnchangedToastValue so that consumers iterating array values keep
// working. The supplier and flag are not consulted and the error is always
// nil.
func (c *Column) Value(context.Context, replmsg.ConnSupplier, bool) (interface{}, error) {
	switch c.shape {
	case ShapeTextArray:
		return []interface{}{UnchangedToastValue}, nil
	case ShapeIntegerArray:
		return UnchangedIntArrayToastValue, nil
	case ShapeBigintArray:
		return UnchangedBigintArrayToastValue, nil
	default:
		return UnchangedToastValue, nil
	}
}

// SafeFormat implements redact.SafeFormatter.
func (c *Column) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s %s (%s)", c.name, redact.SafeString(c.typeWithModifiers), c.shape)
}

// String implements fmt.Stringer.
func (c *Column) String() string {
	return redact.StringWithoutMarkers(c)
}
