// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package decoded implements replication message columns whose content was
// transmitted by the decoding plugin.
package decoded

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/pgtypes"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/replmsg"
	"github.com/cockroachdb/pgcdc/pkg/util/log"
	"github.com/cockroachdb/redact"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgtype"
)

// Column is a column with a null, text or binary value.
type Column struct {
	name              string
	typ               *pgtypes.Type
	typeWithModifiers string
	optional          bool
	// kind is the pgoutput tuple data kind: 'n', 't' or 'b'.
	kind uint8
	data []byte
}

var _ replmsg.Column = (*Column)(nil)

// NewNull returns a column holding SQL NULL.
func NewNull(name string, typ *pgtypes.Type, typeWithModifiers string, optional bool) *Column {
	return &Column{
		name: name, typ: typ, typeWithModifiers: typeWithModifiers, optional: optional,
		kind: pglogrepl.TupleDataTypeNull,
	}
}

// NewText returns a column holding data in the text format of its type.
func NewText(
	name string, typ *pgtypes.Type, typeWithModifiers string, optional bool, data []byte,
) *Column {
	return &Column{
		name: name, typ: typ, typeWithModifiers: typeWithModifiers, optional: optional,
		kind: pglogrepl.TupleDataTypeText, data: data,
	}
}

// NewBinary returns a column holding data in the binary format of its type.
func NewBinary(
	name string, typ *pgtypes.Type, typeWithModifiers string, optional bool, data []byte,
) *Column {
	return &Column{
		name: name, typ: typ, typeWithModifiers: typeWithModifiers, optional: optional,
		kind: pglogrepl.TupleDataTypeBinary, data: data,
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

// IsToastedColumn implements replmsg.Column.
func (c *Column) IsToastedColumn() bool { return false }

// IsNull returns whether the column holds SQL NULL.
func (c *Column) IsNull() bool { return c.kind == pglogrepl.TupleDataTypeNull }

var unknownTypeEvery = log.Every(time.Minute)

// Value implements replmsg.Column. It decodes the column data with the
// codec registered for the column's type in the supplier's type map.
func (c *Column) Value(
	ctx context.Context, conn replmsg.ConnSupplier, includeUnknownDatatypes bool,
) (interface{}, error) {
	if c.IsNull() {
		return nil, nil
	}
	m, err := conn.TypeMap(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving type of column %q", c.name)
	}
	pt, ok := m.TypeForOID(uint32(c.typ.OID))
	if !ok {
		if includeUnknownDatatypes {
			return append([]byte(nil), c.data...), nil
		}
		if unknownTypeEvery.ShouldLog() {
			log.Warningf(ctx, "column %s has unknown type %s; value omitted", c.name, c.typ)
		}
		return nil, nil
	}
	format := int16(pgtype.TextFormatCode)
	if c.kind == pglogrepl.TupleDataTypeBinary {
		format = pgtype.BinaryFormatCode
	}
	v, err := pt.Codec.DecodeValue(m, pt.OID, format, c.data)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding column %q of type %s", c.name, c.typ)
	}
	return v, nil
}

// SafeFormat implements redact.SafeFormatter.
func (c *Column) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s %s", c.name, redact.SafeString(c.typeWithModifiers))
}

// String implements fmt.Stringer.
func (c *Column) String() string {
	return redact.StringWithoutMarkers(c)
}
