// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"bytes"
	"sync"
	"testing"
)

// TestLogScope captures log output for the duration of a test. The
// captured entries are replayed through t.Log when the test fails.
type TestLogScope struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	restore func()
}

// Scope redirects log output into a new TestLogScope. Use with:
//
//	defer log.Scope(t).Close(t)
func Scope(t testing.TB) *TestLogScope {
	t.Helper()
	s := &TestLogScope{}
	s.restore = SetOutput(s)
	return s
}

// Write implements io.Writer.
func (s *TestLogScope) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// String returns everything logged since the scope was opened.
func (s *TestLogScope) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Close restores the previous log destination.
func (s *TestLogScope) Close(t testing.TB) {
	t.Helper()
	s.restore()
	if t.Failed() {
		if out := s.String(); out != "" {
			t.Logf("captured logs:\n%s", out)
		}
	}
}
