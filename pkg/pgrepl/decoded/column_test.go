// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package decoded

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/pgtypes"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/replmsg"
	"github.com/cockroachdb/pgcdc/pkg/util/log"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/require"
)

type failingSupplier struct{}

func (failingSupplier) TypeMap(context.Context) (*pgtype.Map, error) {
	return nil, errors.New("connection refused")
}

func TestColumnValue(t *testing.T) {
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	m := pgtype.NewMap()
	conn := replmsg.StaticTypes(m)
	reg := pgtypes.NewRegistry(m)

	testCases := []struct {
		name     string
		col      *Column
		expected interface{}
	}{
		{"int4 text", NewText("id", reg.ByOID(oid.T_int4), "int4", false, []byte("42")), int32(42)},
		{"int4 binary", NewBinary("id", reg.ByOID(oid.T_int4), "int4", false, []byte{0, 0, 0, 42}), int32(42)},
		{"int8 text", NewText("n", reg.ByOID(oid.T_int8), "int8", true, []byte("-7")), int64(-7)},
		{"text", NewText("body", reg.ByOID(oid.T_text), "text", true, []byte("hello")), "hello"},
		{"bool", NewText("ok", reg.ByOID(oid.T_bool), "bool", true, []byte("t")), true},
		{"null", NewNull("body", reg.ByOID(oid.T_text), "text", true), nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.False(t, tc.col.IsToastedColumn())
			v, err := tc.col.Value(ctx, conn, false)
			require.NoError(t, err)
			require.Equal(t, tc.expected, v)
		})
	}
}

func TestColumnValueUnknownType(t *testing.T) {
	s := log.Scope(t)
	defer s.Close(t)
	// Bypass the rate limit on the warning.
	defer log.SetVerbosity(2)()

	ctx := context.Background()
	m := pgtype.NewMap()
	typ := pgtypes.NewRegistry(m).ByOID(oid.Oid(424242))
	c := NewText("geom", typ, typ.Name, true, []byte("POINT(1 2)"))

	v, err := c.Value(ctx, replmsg.StaticTypes(m), true)
	require.NoError(t, err)
	require.Equal(t, []byte("POINT(1 2)"), v)

	v, err = c.Value(ctx, replmsg.StaticTypes(m), false)
	require.NoError(t, err)
	require.Nil(t, v)
	require.Contains(t, s.String(), "column geom has unknown type unknown_424242(424242); value omitted")
}

func TestColumnValueErrors(t *testing.T) {
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	m := pgtype.NewMap()
	reg := pgtypes.NewRegistry(m)

	c := NewText("id", reg.ByOID(oid.T_int4), "int4", false, []byte("forty-two"))
	_, err := c.Value(ctx, replmsg.StaticTypes(m), false)
	require.Error(t, err)
	require.Contains(t, err.Error(), `decoding column "id" of type int4(23)`)

	_, err = c.Value(ctx, failingSupplier{}, false)
	require.ErrorContains(t, err, `resolving type of column "id": connection refused`)

	// A null never needs the type map.
	v, err := NewNull("id", reg.ByOID(oid.T_int4), "int4", false).Value(ctx, failingSupplier{}, false)
	require.NoError(t, err)
	require.Nil(t, v)
}
