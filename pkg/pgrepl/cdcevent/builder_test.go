// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cdcevent

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/cockroachdb/pgcdc/pkg/pgrepl/cdcbase"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/decoded"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/pgoutput"
	pt "github.com/cockroachdb/pgcdc/pkg/pgrepl/pgoutput/pgoutputtest"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/pgtypes"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/replmsg"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/toast"
	"github.com/cockroachdb/pgcdc/pkg/util/log"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq/oid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	conn replmsg.ConnSupplier
	reg  *pgtypes.Registry
}

func newFixture() fixture {
	m := pgtype.NewMap()
	return fixture{conn: replmsg.StaticTypes(m), reg: pgtypes.NewRegistry(m)}
}

func (f fixture) text(name string, o oid.Oid, v string) replmsg.Column {
	typ := f.reg.ByOID(o)
	return decoded.NewText(name, typ, typ.Name, true, []byte(v))
}

func (f fixture) toasted(name string, o oid.Oid) replmsg.Column {
	typ := f.reg.ByOID(o)
	return toast.NewColumn(name, typ, typ.Name, true)
}

// update returns an update of docs(id, body, tags, scores, ids) where
// everything but id is unchanged.
func (f fixture) update(withOld bool) *replmsg.Message {
	msg := &replmsg.Message{
		Op:     replmsg.OpUpdate,
		LSN:    0x42,
		Schema: "public",
		Table:  "docs",
		NewColumns: []replmsg.Column{
			f.text("id", oid.T_int4, "1"),
			f.toasted("body", oid.T_text),
			f.toasted("tags", oid.T__text),
			f.toasted("scores", oid.T__int4),
			f.toasted("ids", oid.T__int8),
		},
	}
	if withOld {
		msg.OldColumns = []replmsg.Column{
			f.text("id", oid.T_int4, "1"),
			f.text("body", oid.T_text, "long body"),
			f.text("tags", oid.T__text, "{a}"),
			f.toasted("scores", oid.T__int4),
		}
	}
	return msg
}

func newBuilder(t *testing.T, opts map[string]string) (*Builder, *Metrics) {
	metrics := NewMetrics()
	b, err := NewBuilder(cdcbase.MakeStatementOptions(opts), metrics)
	require.NoError(t, err)
	return b, metrics
}

func TestBuildOmit(t *testing.T) {
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	f := newFixture()
	b, metrics := newBuilder(t, nil)

	row, err := b.Build(ctx, f.conn, f.update(false))
	require.NoError(t, err)
	expected := Row{
		Op:        replmsg.OpUpdate,
		Schema:    "public",
		Table:     "docs",
		LSN:       0x42,
		After:     map[string]interface{}{"id": int32(1)},
		Unchanged: []string{"body", "tags", "scores", "ids"},
	}
	if diff := cmp.Diff(expected, row); diff != "" {
		t.Fatalf("unexpected row (-want +got):\n%s", diff)
	}

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.RowsBuilt.WithLabelValues("update")))
	for _, shape := range []toast.Shape{
		toast.ShapeScalar, toast.ShapeTextArray, toast.ShapeIntegerArray, toast.ShapeBigintArray,
	} {
		require.Equal(t, 1.0,
			testutil.ToFloat64(metrics.ToastedColumns.WithLabelValues(shape.String(), "omit")), shape.String())
	}
}

func TestBuildPrevious(t *testing.T) {
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	f := newFixture()
	b, metrics := newBuilder(t, map[string]string{cdcbase.OptToastHandling: "previous"})

	row, err := b.Build(ctx, f.conn, f.update(true))
	require.NoError(t, err)
	expected := Row{
		Op:     replmsg.OpUpdate,
		Schema: "public",
		Table:  "docs",
		LSN:    0x42,
		Before: map[string]interface{}{
			"id":   int32(1),
			"body": "long body",
			"tags": []interface{}{"a"},
		},
		After: map[string]interface{}{
			"id":   int32(1),
			"body": "long body",
			"tags": []interface{}{"a"},
		},
		// scores is toasted in the old image too and ids is absent from it.
		Unchanged: []string{"scores", "ids"},
	}
	if diff := cmp.Diff(expected, row); diff != "" {
		t.Fatalf("unexpected row (-want +got):\n%s", diff)
	}

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ToastedColumns.WithLabelValues("scalar", "previous")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ToastedColumns.WithLabelValues("text-array", "previous")))
	// Once from the old image and once from the new one.
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.ToastedColumns.WithLabelValues("integer-array", "omit")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ToastedColumns.WithLabelValues("bigint-array", "omit")))

	// Without an old image every unchanged column is omitted.
	row, err = b.Build(ctx, f.conn, f.update(false))
	require.NoError(t, err)
	require.Nil(t, row.Before)
	require.Equal(t, []string{"body", "tags", "scores", "ids"}, row.Unchanged)
}

func TestBuildPlaceholder(t *testing.T) {
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	f := newFixture()
	b, _ := newBuilder(t, map[string]string{
		cdcbase.OptToastHandling:               "placeholder",
		cdcbase.OptUnavailableValuePlaceholder: "?!",
	})

	row, err := b.Build(ctx, f.conn, f.update(false))
	require.NoError(t, err)
	require.Empty(t, row.Unchanged)
	expected := map[string]interface{}{
		"id":     int32(1),
		"body":   "?!",
		"tags":   []string{"?!"},
		"scores": []int32{'?', '!'},
		"ids":    []int64{'?', '!'},
	}
	if diff := cmp.Diff(expected, row.After); diff != "" {
		t.Fatalf("unexpected image (-want +got):\n%s", diff)
	}
}

func TestBuildNeverLeaksMarkers(t *testing.T) {
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	f := newFixture()
	for _, handling := range []string{"omit", "previous", "placeholder"} {
		b, _ := newBuilder(t, map[string]string{cdcbase.OptToastHandling: handling})
		for _, withOld := range []bool{false, true} {
			row, err := b.Build(ctx, f.conn, f.update(withOld))
			require.NoError(t, err)
			for _, image := range []map[string]interface{}{row.Before, row.After} {
				for k, v := range image {
					_, ok := toast.MarkerOf(v)
					require.False(t, ok, "%s: field %s holds a marker", handling, k)
				}
			}
		}
	}
}

func TestNewBuilderRejectsInvalidOptions(t *testing.T) {
	_, err := NewBuilder(cdcbase.MakeStatementOptions(map[string]string{"toast_handling": "merge"}), nil)
	require.ErrorContains(t, err, `unknown toast_handling: "merge"`)
}

func TestMetricsRegister(t *testing.T) {
	r := prometheus.NewRegistry()
	require.NoError(t, NewMetrics().Register(r))
	require.Error(t, NewMetrics().Register(r))
}

func TestBuildFromStream(t *testing.T) {
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	m := pgtype.NewMap()
	d := pgoutput.NewDecoder(pgtypes.NewRegistry(m), nil)
	b, _ := newBuilder(t, nil)

	commitTime := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	var rows []Row
	for _, payload := range [][]byte{
		pt.Relation(1, "public", "docs",
			pt.Column{Name: "id", OID: oid.T_int4, Key: true},
			pt.Column{Name: "tags", OID: oid.T__text}),
		pt.Begin(0x200, commitTime, 9),
		pt.Update(1, nil, []pt.Datum{pt.Text("7"), pt.Toast()}),
		pt.Commit(0x200, 0x210, commitTime),
	} {
		msg, err := d.Decode(ctx, 0x100, payload)
		require.NoError(t, err)
		if msg == nil {
			continue
		}
		row, err := b.Build(ctx, replmsg.StaticTypes(m), msg)
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.Len(t, rows, 1)

	out, err := EncodeJSON(rows[0])
	require.NoError(t, err)
	require.JSONEq(t, `{
		"op": "update",
		"schema": "public",
		"table": "docs",
		"lsn": "0/100",
		"xid": 9,
		"commit_time": "2026-10-16T09:30:00Z",
		"after": {"id": 7},
		"unchanged": ["tags"]
	}`, string(out))
}

func TestBuildPreviousIgnoresKeyImage(t *testing.T) {
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	m := pgtype.NewMap()
	conn := replmsg.StaticTypes(m)
	d := pgoutput.NewDecoder(pgtypes.NewRegistry(m), nil)
	_, err := d.Decode(ctx, 0, pt.Relation(1, "public", "docs",
		pt.Column{Name: "id", OID: oid.T_int4, Key: true},
		pt.Column{Name: "body", OID: oid.T_text}))
	require.NoError(t, err)

	for _, handling := range []string{"omit", "previous"} {
		t.Run(handling, func(t *testing.T) {
			b, metrics := newBuilder(t, map[string]string{cdcbase.OptToastHandling: handling})

			// The key changes from 1 to 2 while body stays TOASTed. The key
			// image carries body as a null that is not its value.
			msg, err := d.Decode(ctx, 0x10, pt.UpdateKey(1,
				[]pt.Datum{pt.Text("1"), pt.Null()},
				[]pt.Datum{pt.Text("2"), pt.Toast()}))
			require.NoError(t, err)
			row, err := b.Build(ctx, conn, msg)
			require.NoError(t, err)
			expected := Row{
				Op:        replmsg.OpUpdate,
				Schema:    "public",
				Table:     "docs",
				LSN:       0x10,
				Before:    map[string]interface{}{"id": int32(1)},
				After:     map[string]interface{}{"id": int32(2)},
				Unchanged: []string{"body"},
			}
			if diff := cmp.Diff(expected, row); diff != "" {
				t.Fatalf("unexpected row (-want +got):\n%s", diff)
			}
			_, ok := row.After["body"]
			require.False(t, ok)
			require.Equal(t, 1.0,
				testutil.ToFloat64(metrics.ToastedColumns.WithLabelValues("scalar", "omit")))

			msg, err = d.Decode(ctx, 0x20, pt.Delete(1, pt.Text("2"), pt.Null()))
			require.NoError(t, err)
			row, err = b.Build(ctx, conn, msg)
			require.NoError(t, err)
			require.Equal(t, map[string]interface{}{"id": int32(2)}, row.Before)
			require.Nil(t, row.After)
		})
	}
}

func TestBuildPreviousFromFullOldRow(t *testing.T) {
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	m := pgtype.NewMap()
	conn := replmsg.StaticTypes(m)
	d := pgoutput.NewDecoder(pgtypes.NewRegistry(m), nil)
	_, err := d.Decode(ctx, 0, pt.Relation(1, "public", "docs",
		pt.Column{Name: "id", OID: oid.T_int4, Key: true},
		pt.Column{Name: "body", OID: oid.T_text}))
	require.NoError(t, err)
	b, _ := newBuilder(t, map[string]string{cdcbase.OptToastHandling: "previous"})

	// Under REPLICA IDENTITY FULL the old row holds the real values.
	msg, err := d.Decode(ctx, 0x10, pt.Update(1,
		[]pt.Datum{pt.Text("1"), pt.Text("long body")},
		[]pt.Datum{pt.Text("2"), pt.Toast()}))
	require.NoError(t, err)
	require.False(t, msg.OldImageIsKey)
	row, err := b.Build(ctx, conn, msg)
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"id": int32(2), "body": "long body"}, row.After)
	require.Empty(t, row.Unchanged)
}

func TestEncodeJSONNonFiniteFloats(t *testing.T) {
	defer log.Scope(t).Close(t)

	ctx := context.Background()
	m := pgtype.NewMap()
	d := pgoutput.NewDecoder(pgtypes.NewRegistry(m), nil)
	b, _ := newBuilder(t, nil)
	_, err := d.Decode(ctx, 0, pt.Relation(1, "public", "t",
		pt.Column{Name: "f", OID: oid.T_float8, Key: true},
		pt.Column{Name: "r", OID: oid.T_float4},
		pt.Column{Name: "fs", OID: oid.T__float8}))
	require.NoError(t, err)

	msg, err := d.Decode(ctx, 0x10, pt.Insert(1,
		pt.Text("NaN"), pt.Text("-Infinity"), pt.Text("{1.5,NaN,Infinity}")))
	require.NoError(t, err)
	row, err := b.Build(ctx, replmsg.StaticTypes(m), msg)
	require.NoError(t, err)

	out, err := EncodeJSON(row)
	require.NoError(t, err)
	require.JSONEq(t, `{"op":"insert","schema":"public","table":"t","lsn":"0/10",
		"after":{"f":"NaN","r":"-Infinity","fs":[1.5,"NaN","Infinity"]}}`, string(out))

	// The row itself keeps the float values.
	f, ok := row.After["f"].(float64)
	require.True(t, ok)
	require.True(t, math.IsNaN(f))
}
