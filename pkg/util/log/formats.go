// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/redact"
)

type logEntry struct {
	sev     Severity
	time    time.Time
	file    string
	line    int
	tags    string
	payload redact.RedactableString
}

func makeEntry(
	ctx context.Context, sev Severity, depth int, now time.Time, format string, args []interface{},
) logEntry {
	entry := logEntry{sev: sev, time: now, file: "???", line: 1}
	if _, file, line, ok := runtime.Caller(depth + 1); ok {
		entry.file = filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file))
		entry.line = line
	}
	var tags strings.Builder
	formatTags(ctx, false /* brackets */, &tags)
	entry.tags = tags.String()
	if len(args) == 0 {
		entry.payload = redact.Sprint(redact.Safe(format))
	} else {
		entry.payload = redact.Sprintf(format, args...)
	}
	return entry
}

// formatCrdbV1 renders entries in the traditional single-line format:
//
//	I261016 15:04:05.000000 pgoutput/decoder.go:42 [tags] message
type formatCrdbV1 struct{}

func (formatCrdbV1) formatEntry(entry logEntry, redactable bool) []byte {
	var buf bytes.Buffer
	buf.WriteByte(entry.sev.String()[0])
	buf.WriteString(entry.time.UTC().Format("060102 15:04:05.000000"))
	fmt.Fprintf(&buf, " %s:%d ", entry.file, entry.line)
	if entry.tags != "" {
		buf.WriteByte('[')
		buf.WriteString(entry.tags)
		buf.WriteString("] ")
	}
	if redactable {
		buf.WriteString(string(entry.payload))
	} else {
		buf.WriteString(entry.payload.StripMarkers())
	}
	if b := buf.Bytes(); len(b) == 0 || b[len(b)-1] != '\n' {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
