// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cdcevent

import (
	"encoding/json"
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

type jsonRow struct {
	Op         string                 `json:"op"`
	Schema     string                 `json:"schema"`
	Table      string                 `json:"table"`
	LSN        string                 `json:"lsn"`
	XID        uint32                 `json:"xid,omitempty"`
	CommitTime *time.Time             `json:"commit_time,omitempty"`
	Before     map[string]interface{} `json:"before,omitempty"`
	After      map[string]interface{} `json:"after,omitempty"`
	Unchanged  []string               `json:"unchanged,omitempty"`
}

// EncodeJSON renders row as a single-line JSON document.
func EncodeJSON(row Row) ([]byte, error) {
	r := jsonRow{
		Op:        row.Op.String(),
		Schema:    row.Schema,
		Table:     row.Table,
		LSN:       row.LSN.String(),
		XID:       row.XID,
		Before:    jsonImage(row.Before),
		After:     jsonImage(row.After),
		Unchanged: row.Unchanged,
	}
	if !row.CommitTime.IsZero() {
		ct := row.CommitTime.UTC()
		r.CommitTime = &ct
	}
	out, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s row of %s.%s", row.Op, row.Schema, row.Table)
	}
	return out, nil
}

func jsonImage(image map[string]interface{}) map[string]interface{} {
	if image == nil {
		return nil
	}
	out := make(map[string]interface{}, len(image))
	for k, v := range image {
		out[k] = jsonValue(v)
	}
	return out
}

// jsonValue replaces the float values JSON cannot represent (NaN and the
// infinities, all valid in Postgres) with their Postgres text form.
func jsonValue(v interface{}) interface{} {
	switch t := v.(type) {
	case float64:
		return jsonFloat(t, v)
	case float32:
		return jsonFloat(float64(t), v)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = jsonValue(t[i])
		}
		return out
	}
	return v
}

func jsonFloat(f float64, v interface{}) interface{} {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return v
}
