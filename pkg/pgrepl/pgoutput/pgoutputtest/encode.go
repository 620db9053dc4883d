// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package pgoutputtest builds pgoutput protocol v1 payloads for tests.
package pgoutputtest

import (
	"encoding/binary"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/lib/pq/oid"
)

// Column describes a column of a Relation message.
type Column struct {
	Name string
	OID  oid.Oid
	// Typmod is the attribute type modifier. Zero means none.
	Typmod int32
	Key    bool
}

// Datum is one field of a tuple. Kind is one of the pglogrepl
// TupleDataType* constants.
type Datum struct {
	Kind uint8
	Data []byte
}

// Null returns a null datum.
func Null() Datum { return Datum{Kind: pglogrepl.TupleDataTypeNull} }

// Toast returns an unchanged TOAST datum.
func Toast() Datum { return Datum{Kind: pglogrepl.TupleDataTypeToast} }

// Text returns a datum in text format.
func Text(s string) Datum { return Datum{Kind: pglogrepl.TupleDataTypeText, Data: []byte(s)} }

// Binary returns a datum in binary format.
func Binary(b []byte) Datum { return Datum{Kind: pglogrepl.TupleDataTypeBinary, Data: b} }

var pgEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

type buf []byte

func (b buf) byte1(v byte) buf { return append(b, v) }

func (b buf) int16(v uint16) buf { return binary.BigEndian.AppendUint16(b, v) }

func (b buf) int32(v uint32) buf { return binary.BigEndian.AppendUint32(b, v) }

func (b buf) int64(v uint64) buf { return binary.BigEndian.AppendUint64(b, v) }

func (b buf) str(s string) buf { return append(append(b, s...), 0) }

func (b buf) ts(t time.Time) buf { return b.int64(uint64(t.Sub(pgEpoch).Microseconds())) }

func (b buf) tuple(datums []Datum) buf {
	b = b.int16(uint16(len(datums)))
	for _, d := range datums {
		b = b.byte1(d.Kind)
		if d.Kind == pglogrepl.TupleDataTypeText || d.Kind == pglogrepl.TupleDataTypeBinary {
			b = b.int32(uint32(len(d.Data)))
			b = append(b, d.Data...)
		}
	}
	return b
}

// Relation encodes a Relation message with replica identity default.
func Relation(relID uint32, namespace, name string, cols ...Column) []byte {
	b := buf{'R'}.int32(relID).str(namespace).str(name).byte1('d').int16(uint16(len(cols)))
	for _, c := range cols {
		var flags byte
		if c.Key {
			flags = 1
		}
		typmod := c.Typmod
		if typmod == 0 {
			typmod = -1
		}
		b = b.byte1(flags).str(c.Name).int32(uint32(c.OID)).int32(uint32(typmod))
	}
	return b
}

// Begin encodes a Begin message.
func Begin(finalLSN pglogrepl.LSN, commitTime time.Time, xid uint32) []byte {
	return buf{'B'}.int64(uint64(finalLSN)).ts(commitTime).int32(xid)
}

// Commit encodes a Commit message.
func Commit(commitLSN, endLSN pglogrepl.LSN, commitTime time.Time) []byte {
	return buf{'C'}.byte1(0).int64(uint64(commitLSN)).int64(uint64(endLSN)).ts(commitTime)
}

// Insert encodes an Insert message.
func Insert(relID uint32, datums ...Datum) []byte {
	return buf{'I'}.int32(relID).byte1('N').tuple(datums)
}

// Update encodes an Update message. A nil old image is omitted; otherwise
// it is sent as a full old row ('O').
func Update(relID uint32, old, newImage []Datum) []byte {
	b := buf{'U'}.int32(relID)
	if old != nil {
		b = b.byte1('O').tuple(old)
	}
	return b.byte1('N').tuple(newImage)
}

// UpdateKey encodes an Update message that changed the replica identity
// key. The old key image ('K') carries the old key values; as sent by the
// server, every other column of it should be Null.
func UpdateKey(relID uint32, oldKey, newImage []Datum) []byte {
	return buf{'U'}.int32(relID).byte1('K').tuple(oldKey).byte1('N').tuple(newImage)
}

// DeleteOld encodes a Delete message carrying the full old row, as sent for
// tables with REPLICA IDENTITY FULL.
func DeleteOld(relID uint32, old ...Datum) []byte {
	return buf{'D'}.int32(relID).byte1('O').tuple(old)
}

// Delete encodes a Delete message carrying the key of the deleted row.
func Delete(relID uint32, key ...Datum) []byte {
	return buf{'D'}.int32(relID).byte1('K').tuple(key)
}
