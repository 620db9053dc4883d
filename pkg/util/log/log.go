// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log implements context-aware logging for the replication
// pipeline. Entries carry the logging tags attached to the context via
// github.com/cockroachdb/logtags, and arguments are rendered through
// github.com/cockroachdb/redact so that unsafe values can be marked in
// redactable output.
package log

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/redact"
)

// Severity identifies the importance of a log entry.
type Severity int32

const (
	// SeverityInfo is used for informational messages.
	SeverityInfo Severity = iota + 1
	// SeverityWarning is used for conditions that deserve attention but do
	// not prevent progress.
	SeverityWarning
	// SeverityError is used for failures.
	SeverityError
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SafeValue implements redact.SafeValue.
func (Severity) SafeValue() {}

var _ redact.SafeValue = Severity(0)

type loggerT struct {
	mu struct {
		sync.Mutex
		w          io.Writer
		redactable bool
	}
	verbosity int32
}

var logging = func() *loggerT {
	l := &loggerT{}
	l.mu.w = os.Stderr
	return l
}()

// SetOutput redirects all log entries to w. The returned function restores
// the previous destination.
func SetOutput(w io.Writer) (restore func()) {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	prev := logging.mu.w
	logging.mu.w = w
	return func() {
		logging.mu.Lock()
		defer logging.mu.Unlock()
		logging.mu.w = prev
	}
}

// SetRedactable controls whether redaction markers are kept in the output.
func SetRedactable(redactable bool) {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	logging.mu.redactable = redactable
}

// SetVerbosity sets the level up to which VEventf messages are emitted. The
// returned function restores the previous level.
func SetVerbosity(level int32) (restore func()) {
	prev := atomic.SwapInt32(&logging.verbosity, level)
	return func() { atomic.StoreInt32(&logging.verbosity, prev) }
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level int32) bool {
	return atomic.LoadInt32(&logging.verbosity) >= level
}

// Infof logs to the INFO severity.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, 1, SeverityInfo, format, args)
}

// Warningf logs to the WARNING severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, 1, SeverityWarning, format, args)
}

// Errorf logs to the ERROR severity.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	logDepth(ctx, 1, SeverityError, format, args)
}

// VEventf logs to the INFO severity if the verbosity is at least level.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	if V(level) {
		logDepth(ctx, 1, SeverityInfo, format, args)
	}
}

func logDepth(
	ctx context.Context, depth int, sev Severity, format string, args []interface{},
) {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	entry := makeEntry(ctx, sev, depth+1, time.Now(), format, args)
	buf := formatCrdbV1{}.formatEntry(entry, logging.mu.redactable)
	_, _ = logging.mu.w.Write(buf)
}
