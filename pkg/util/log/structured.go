// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/logtags"
)

// FormatWithContextTags formats the string and prepends the context
// tags.
//
// Redaction markers are *not* inserted. The resulting
// string is generally unsafe for reporting.
func FormatWithContextTags(ctx context.Context, format string, args ...interface{}) string {
	var buf strings.Builder
	formatTags(ctx, true /* brackets */, &buf)
	fmt.Fprintf(&buf, format, args...)
	return buf.String()
}

// formatTags writes the logging tags attached to ctx. With brackets set, the
// tags are enclosed in "[...] " and nothing is written when there are none.
func formatTags(ctx context.Context, brackets bool, buf *strings.Builder) {
	tags := logtags.FromContext(ctx)
	if tags == nil {
		return
	}
	list := tags.Get()
	if len(list) == 0 {
		return
	}
	if brackets {
		buf.WriteByte('[')
	}
	for i := range list {
		if i > 0 {
			buf.WriteByte(',')
		}
		t := &list[i]
		buf.WriteString(t.Key())
		if t.Value() != nil {
			buf.WriteByte('=')
			buf.WriteString(t.ValueStr())
		}
	}
	if brackets {
		buf.WriteString("] ")
	}
}
