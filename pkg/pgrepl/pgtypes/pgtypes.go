// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package pgtypes provides the opaque type handles attached to replicated
// columns and renders the textual type-with-modifiers descriptor that the
// rest of the pipeline classifies on.
package pgtypes

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/redact"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq/oid"
)

// Type is the declared type of a replicated column. Handles are immutable
// once created and are shared between all columns of the same type.
type Type struct {
	// OID is the pg_type OID of the type.
	OID oid.Oid
	// Name is the catalog name of the type, e.g. "int4" or "_text".
	Name string
	// ElemOID is the element type of an array type, or zero.
	ElemOID oid.Oid
	// Known is false when neither the type map nor the builtin OID table
	// knows the OID.
	Known bool
}

// IsArray returns whether the type is a one-dimensional array type.
func (t *Type) IsArray() bool {
	return t.ElemOID != 0
}

// String implements fmt.Stringer.
func (t *Type) String() string {
	return redact.StringWithoutMarkers(t)
}

// SafeFormat implements redact.SafeFormatter. Type names come from the
// catalog and are not user data.
func (t *Type) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s(%d)", redact.SafeString(t.Name), redact.Safe(uint32(t.OID)))
}

// Registry resolves OIDs to type handles using a pgx type map, falling back
// to the builtin OID table of lib/pq for OIDs the map does not register.
// It is safe for concurrent use.
type Registry struct {
	m *pgtype.Map

	mu    sync.Mutex
	types map[oid.Oid]*Type
}

// NewRegistry returns a Registry backed by m.
func NewRegistry(m *pgtype.Map) *Registry {
	return &Registry{m: m, types: make(map[oid.Oid]*Type)}
}

// ByOID returns the handle for o. It never returns nil: unknown OIDs get a
// handle with Known unset.
func (r *Registry) ByOID(o oid.Oid) *Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.types[o]; ok {
		return t
	}
	t := r.resolveLocked(o)
	r.types[o] = t
	return t
}

func (r *Registry) resolveLocked(o oid.Oid) *Type {
	if pt, ok := r.m.TypeForOID(uint32(o)); ok {
		t := &Type{OID: o, Name: pt.Name, Known: true}
		if ac, ok := pt.Codec.(*pgtype.ArrayCodec); ok && ac.ElementType != nil {
			t.ElemOID = oid.Oid(ac.ElementType.OID)
		}
		return t
	}
	if name, ok := oid.TypeName[o]; ok {
		t := &Type{OID: o, Name: strings.ToLower(name), Known: true}
		if strings.HasPrefix(t.Name, "_") {
			if elem, ok := oidByName[t.Name[1:]]; ok {
				t.ElemOID = elem
			}
		}
		return t
	}
	return &Type{OID: o, Name: fmt.Sprintf("unknown_%d", uint32(o))}
}

var oidByName = func() map[string]oid.Oid {
	m := make(map[string]oid.Oid, len(oid.TypeName))
	for o, name := range oid.TypeName {
		m[strings.ToLower(name)] = o
	}
	return m
}()

// TypeWithModifiers renders the descriptor of t with the attribute type
// modifier typmod applied, e.g. "varchar(255)" or "numeric(10,2)". Array
// types keep their catalog name ("_text"), and a negative typmod means no
// modifier.
func TypeWithModifiers(t *Type, typmod int32) string {
	if typmod < 0 || t.IsArray() {
		return t.Name
	}
	switch t.OID {
	case oid.T_varchar, oid.T_bpchar:
		if typmod < varHdrSz {
			return t.Name
		}
		return fmt.Sprintf("%s(%d)", t.Name, typmod-varHdrSz)
	case oid.T_numeric:
		if typmod < varHdrSz {
			return t.Name
		}
		mod := typmod - varHdrSz
		return fmt.Sprintf("%s(%d,%d)", t.Name, (mod>>16)&0xffff, mod&0xffff)
	case oid.T_bit, oid.T_varbit:
		return fmt.Sprintf("%s(%d)", t.Name, typmod)
	case oid.T_time, oid.T_timetz, oid.T_timestamp, oid.T_timestamptz:
		return fmt.Sprintf("%s(%d)", t.Name, typmod)
	}
	return t.Name
}

// varHdrSz is the size of the varlena header that Postgres adds to the
// length-carrying type modifiers.
const varHdrSz = 4
