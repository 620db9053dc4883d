// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cdcevent builds change records from replication messages. It is
// where unchanged TOAST markers are interpreted: a record never contains a
// marker, only real values, placeholders, or the absence of a field.
package cdcevent

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/cdcbase"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/replmsg"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/toast"
	"github.com/cockroachdb/pgcdc/pkg/util/log"
	"github.com/jackc/pglogrepl"
)

// Row is a change record.
type Row struct {
	Op         replmsg.Operation
	Schema     string
	Table      string
	LSN        pglogrepl.LSN
	XID        uint32
	CommitTime time.Time
	// Before is the old row image, nil when the message carries none. It
	// holds only the key columns when the source sent a key image.
	Before map[string]interface{}
	// After is the new row image, nil for deletes.
	After map[string]interface{}
	// Unchanged lists, in column order, the fields left out of After
	// because their values are TOASTed and unchanged.
	Unchanged []string
}

// Builder builds Rows according to a set of options. It is safe for
// concurrent use.
type Builder struct {
	handling       cdcbase.ToastHandling
	placeholder    string
	includeUnknown bool
	metrics        *Metrics
}

// NewBuilder returns a Builder for opts. metrics may be nil.
func NewBuilder(opts cdcbase.StatementOptions, metrics *Metrics) (*Builder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	handling, err := opts.GetToastHandling()
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Builder{
		handling:       handling,
		placeholder:    opts.GetUnavailableValuePlaceholder(),
		includeUnknown: opts.IncludeUnknownDatatypes(),
		metrics:        metrics,
	}, nil
}

// Build resolves every column of msg and assembles the change record.
func (b *Builder) Build(
	ctx context.Context, conn replmsg.ConnSupplier, msg *replmsg.Message,
) (Row, error) {
	row := Row{
		Op:         msg.Op,
		Schema:     msg.Schema,
		Table:      msg.Table,
		LSN:        msg.LSN,
		XID:        msg.XID,
		CommitTime: msg.CommitTime,
	}
	var err error
	if msg.OldColumns != nil {
		if row.Before, _, err = b.image(ctx, conn, msg.OldColumns, nil /* prev */); err != nil {
			return Row{}, errors.Wrapf(err, "building old image of %s", msg)
		}
	}
	// A key image says nothing about the other columns, so only a full old
	// row can supply previous values.
	var prev map[string]interface{}
	if !msg.OldImageIsKey {
		prev = row.Before
	}
	if msg.NewColumns != nil {
		if row.After, row.Unchanged, err = b.image(ctx, conn, msg.NewColumns, prev); err != nil {
			return Row{}, errors.Wrapf(err, "building new image of %s", msg)
		}
	}
	if len(row.Unchanged) > 0 {
		log.VEventf(ctx, 2, "%s: %d unchanged TOAST columns omitted", msg, len(row.Unchanged))
	}
	b.metrics.RowsBuilt.WithLabelValues(msg.Op.String()).Inc()
	return row, nil
}

// image resolves cols into a field map. prev is the full old row used by the
// "previous" handling, or nil; it never contains markers.
func (b *Builder) image(
	ctx context.Context,
	conn replmsg.ConnSupplier,
	cols []replmsg.Column,
	prev map[string]interface{},
) (fields map[string]interface{}, unchanged []string, _ error) {
	fields = make(map[string]interface{}, len(cols))
	for _, c := range cols {
		v, err := c.Value(ctx, conn, b.includeUnknown)
		if err != nil {
			return nil, nil, err
		}
		m, ok := toast.MarkerOf(v)
		if !ok {
			fields[c.Name()] = v
			continue
		}
		handling := b.handling
		switch handling {
		case cdcbase.OptToastHandlingPrevious:
			if pv, ok := prev[c.Name()]; ok {
				fields[c.Name()] = pv
				break
			}
			handling = cdcbase.OptToastHandlingOmit
			unchanged = append(unchanged, c.Name())
		case cdcbase.OptToastHandlingPlaceholder:
			fields[c.Name()] = b.placeholderFor(m)
		default:
			unchanged = append(unchanged, c.Name())
		}
		b.metrics.ToastedColumns.WithLabelValues(m.Shape().String(), string(handling)).Inc()
	}
	return fields, unchanged, nil
}

// placeholderFor returns the placeholder shaped like the column m stands
// for. Integer arrays carry the placeholder bytes as elements.
func (b *Builder) placeholderFor(m toast.Marker) interface{} {
	switch m {
	case toast.UnchangedTextArrayToastValue:
		return []string{b.placeholder}
	case toast.UnchangedIntArrayToastValue:
		out := make([]int32, len(b.placeholder))
		for i := 0; i < len(b.placeholder); i++ {
			out[i] = int32(b.placeholder[i])
		}
		return out
	case toast.UnchangedBigintArrayToastValue:
		out := make([]int64, len(b.placeholder))
		for i := 0; i < len(b.placeholder); i++ {
			out[i] = int64(b.placeholder[i])
		}
		return out
	case toast.UnchangedToastValue:
		return b.placeholder
	default:
		panic(errors.AssertionFailedf("unexpected marker %s", m))
	}
}
