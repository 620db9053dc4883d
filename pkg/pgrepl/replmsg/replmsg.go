// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package replmsg defines the replication message abstraction produced by
// the logical decoding stream and the column contract shared by its
// resolved-value and unchanged-TOAST implementations.
package replmsg

import (
	"context"
	"time"

	"github.com/cockroachdb/pgcdc/pkg/pgrepl/pgtypes"
	"github.com/cockroachdb/redact"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgtype"
)

// Column is one field of a decoded row image.
type Column interface {
	// Name is the column name. It is used for diagnostics and to key the
	// emitted record.
	Name() string
	// Type is the declared type of the column.
	Type() *pgtypes.Type
	// TypeWithModifiers is the textual descriptor of the declared type,
	// e.g. "varchar(255)" or "_text".
	TypeWithModifiers() string
	// IsOptional reports whether the column may be absent from the key.
	IsOptional() bool
	// IsToastedColumn reports whether the column content was omitted by
	// the decoding plugin because it is TOASTed and unchanged.
	IsToastedColumn() bool
	// Value resolves the observable value of the column. conn is used to
	// resolve datatype metadata. When includeUnknownDatatypes is set,
	// values of types the type map does not know are returned as raw
	// bytes instead of nil.
	Value(ctx context.Context, conn ConnSupplier, includeUnknownDatatypes bool) (interface{}, error)
}

// ConnSupplier provides access to the datatype metadata of the source
// database.
type ConnSupplier interface {
	TypeMap(ctx context.Context) (*pgtype.Map, error)
}

type staticTypes struct {
	m *pgtype.Map
}

// StaticTypes returns a ConnSupplier that always returns m.
func StaticTypes(m *pgtype.Map) ConnSupplier {
	return staticTypes{m: m}
}

func (s staticTypes) TypeMap(context.Context) (*pgtype.Map, error) {
	return s.m, nil
}

// Operation is the kind of row change carried by a Message.
type Operation int

const (
	// OpInsert is a newly inserted row.
	OpInsert Operation = iota + 1
	// OpUpdate is an updated row.
	OpUpdate
	// OpDelete is a deleted row.
	OpDelete
)

var operationNames = map[Operation]string{
	OpInsert: "insert",
	OpUpdate: "update",
	OpDelete: "delete",
}

// String implements fmt.Stringer.
func (op Operation) String() string {
	if s, ok := operationNames[op]; ok {
		return s
	}
	return "unknown"
}

// SafeValue implements redact.SafeValue.
func (Operation) SafeValue() {}

var _ redact.SafeValue = Operation(0)

// Message is a single row change decoded from the replication stream.
type Message struct {
	Op         Operation
	LSN        pglogrepl.LSN
	XID        uint32
	CommitTime time.Time
	Schema     string
	Table      string
	// OldColumns holds the old row image for updates and deletes. It is
	// only populated when the table's replica identity sends it.
	OldColumns []Column
	// OldImageIsKey is set when OldColumns holds only the replica identity
	// key rather than the full old row. Values of the other columns are
	// not known from such an image.
	OldImageIsKey bool
	// NewColumns holds the new row image for inserts and updates.
	NewColumns []Column
}

// HasToastedColumns returns whether any column of the new image is an
// unchanged TOAST value.
func (m *Message) HasToastedColumns() bool {
	for _, c := range m.NewColumns {
		if c.IsToastedColumn() {
			return true
		}
	}
	return false
}

// SafeFormat implements redact.SafeFormatter.
func (m *Message) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s %s.%s@%s", m.Op, m.Schema, m.Table, redact.SafeString(m.LSN.String()))
}

// String implements fmt.Stringer.
func (m *Message) String() string {
	return redact.StringWithoutMarkers(m)
}
