// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package pgoutput turns the payloads of a pgoutput logical replication
// stream into replication messages.
package pgoutput

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/decoded"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/pgtypes"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/replmsg"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/toast"
	"github.com/cockroachdb/pgcdc/pkg/util/log"
	"github.com/cockroachdb/redact"
	"github.com/jackc/pglogrepl"
	"github.com/lib/pq/oid"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the decoder metrics.
type Metrics struct {
	Messages            *prometheus.CounterVec
	UnrecognizedArrays  prometheus.Counter
	UnchangedToastCells prometheus.Counter
}

// NewMetrics returns unregistered decoder metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pgcdc",
			Subsystem: "pgoutput",
			Name:      "messages_total",
			Help:      "Decoded pgoutput messages by type.",
		}, []string{"type"}),
		UnrecognizedArrays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pgcdc",
			Subsystem: "pgoutput",
			Name:      "unrecognized_array_toast_columns_total",
			Help:      "Unchanged TOAST columns of array types that fell back to the scalar marker.",
		}),
		UnchangedToastCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pgcdc",
			Subsystem: "pgoutput",
			Name:      "unchanged_toast_columns_total",
			Help:      "Columns reported as unchanged TOAST values.",
		}),
	}
}

// Register registers the metrics with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Messages, m.UnrecognizedArrays, m.UnchangedToastCells} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

type txnState struct {
	xid        uint32
	commitTime time.Time
	finalLSN   pglogrepl.LSN
}

// Decoder decodes a single replication stream. It caches the relations
// announced by the stream and is not safe for concurrent use.
type Decoder struct {
	reg       *pgtypes.Registry
	metrics   *Metrics
	relations map[uint32]*pglogrepl.RelationMessage
	txn       txnState

	unrecognizedArrayEvery log.EveryN
}

// NewDecoder returns a Decoder resolving column types through reg. metrics
// may be nil.
func NewDecoder(reg *pgtypes.Registry, metrics *Metrics) *Decoder {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Decoder{
		reg:                    reg,
		metrics:                metrics,
		relations:              make(map[uint32]*pglogrepl.RelationMessage),
		unrecognizedArrayEvery: log.Every(time.Minute),
	}
}

// Decode decodes one pgoutput payload received at walStart. It returns a
// nil message for payloads that do not carry a row change.
func (d *Decoder) Decode(
	ctx context.Context, walStart pglogrepl.LSN, data []byte,
) (*replmsg.Message, error) {
	msg, err := pglogrepl.Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing pgoutput message")
	}
	d.metrics.Messages.WithLabelValues(msg.Type().String()).Inc()

	switch msg := msg.(type) {
	case *pglogrepl.RelationMessage:
		// Relations are re-announced after schema changes; the latest
		// definition wins.
		d.relations[msg.RelationID] = msg
		log.VEventf(ctx, 2, "relation %d is %s.%s with %d columns",
			msg.RelationID, msg.Namespace, msg.RelationName, len(msg.Columns))
		for _, rc := range msg.Columns {
			if typ := d.reg.ByOID(oid.Oid(rc.DataType)); !typ.Known {
				log.Warningf(ctx, "column %s of %s.%s has type %s which is not registered; "+
					"its values need include_unknown_datatypes", rc.Name, msg.Namespace, msg.RelationName, typ)
			}
		}
	case *pglogrepl.BeginMessage:
		d.txn = txnState{xid: msg.Xid, commitTime: msg.CommitTime, finalLSN: msg.FinalLSN}
	case *pglogrepl.CommitMessage:
		d.txn = txnState{}
	case *pglogrepl.InsertMessage:
		return d.rowMessage(ctx, replmsg.OpInsert, walStart, msg.RelationID, 0, nil, msg.Tuple)
	case *pglogrepl.UpdateMessage:
		return d.rowMessage(ctx, replmsg.OpUpdate, walStart, msg.RelationID,
			msg.OldTupleType, msg.OldTuple, msg.NewTuple)
	case *pglogrepl.DeleteMessage:
		return d.rowMessage(ctx, replmsg.OpDelete, walStart, msg.RelationID,
			msg.OldTupleType, msg.OldTuple, nil)
	default:
		log.VEventf(ctx, 2, "ignoring %s message", redact.SafeString(msg.Type().String()))
	}
	return nil, nil
}

func (d *Decoder) rowMessage(
	ctx context.Context,
	op replmsg.Operation,
	walStart pglogrepl.LSN,
	relID uint32,
	oldTupleType uint8,
	oldTuple, newTuple *pglogrepl.TupleData,
) (*replmsg.Message, error) {
	rel, ok := d.relations[relID]
	if !ok {
		return nil, errors.WithHint(
			errors.Newf("unknown relation ID %d", relID),
			"the stream must announce a relation before sending rows for it")
	}
	m := &replmsg.Message{
		Op:         op,
		LSN:        walStart,
		XID:        d.txn.xid,
		CommitTime: d.txn.commitTime,
		Schema:     rel.Namespace,
		Table:      rel.RelationName,
	}
	// Deletes carry the same 'K'/'O' tags as updates.
	m.OldImageIsKey = oldTupleType == pglogrepl.UpdateMessageTupleTypeKey
	var err error
	if m.OldColumns, err = d.columns(ctx, rel, oldTuple, m.OldImageIsKey); err != nil {
		return nil, errors.Wrapf(err, "decoding old image of %s.%s", rel.Namespace, rel.RelationName)
	}
	if m.NewColumns, err = d.columns(ctx, rel, newTuple, false /* keyOnly */); err != nil {
		return nil, errors.Wrapf(err, "decoding new image of %s.%s", rel.Namespace, rel.RelationName)
	}
	return m, nil
}

// columns maps tuple onto the columns of rel. With keyOnly set, tuple is a
// replica identity key image: its non-key columns are placeholder nulls and
// are left out.
func (d *Decoder) columns(
	ctx context.Context, rel *pglogrepl.RelationMessage, tuple *pglogrepl.TupleData, keyOnly bool,
) ([]replmsg.Column, error) {
	if tuple == nil {
		return nil, nil
	}
	if len(tuple.Columns) != len(rel.Columns) {
		return nil, errors.Newf("relation has %d columns but tuple has %d",
			len(rel.Columns), len(tuple.Columns))
	}
	cols := make([]replmsg.Column, 0, len(tuple.Columns))
	for i, tc := range tuple.Columns {
		rc := rel.Columns[i]
		typ := d.reg.ByOID(oid.Oid(rc.DataType))
		typeWithModifiers := pgtypes.TypeWithModifiers(typ, rc.TypeModifier)
		// Key columns are always present; everything else may be null.
		optional := rc.Flags&1 == 0
		if keyOnly && optional {
			continue
		}

		switch tc.DataType {
		case pglogrepl.TupleDataTypeToast:
			d.metrics.UnchangedToastCells.Inc()
			if toast.IsUnrecognizedArray(typeWithModifiers) {
				d.metrics.UnrecognizedArrays.Inc()
				if d.unrecognizedArrayEvery.ShouldLog() {
					log.Warningf(ctx, "unchanged TOAST column %s of array type %s is treated as a scalar",
						rc.Name, redact.SafeString(typeWithModifiers))
				}
			}
			cols = append(cols, toast.NewColumn(rc.Name, typ, typeWithModifiers, optional))
		case pglogrepl.TupleDataTypeNull:
			cols = append(cols, decoded.NewNull(rc.Name, typ, typeWithModifiers, optional))
		case pglogrepl.TupleDataTypeText:
			cols = append(cols, decoded.NewText(rc.Name, typ, typeWithModifiers, optional, tc.Data))
		case pglogrepl.TupleDataTypeBinary:
			cols = append(cols, decoded.NewBinary(rc.Name, typ, typeWithModifiers, optional, tc.Data))
		default:
			return nil, errors.Newf("unknown tuple data kind %q for column %s", rune(tc.DataType), rc.Name)
		}
	}
	return cols, nil
}
