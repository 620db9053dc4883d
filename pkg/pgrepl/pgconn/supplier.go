// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package pgconn supplies datatype metadata from a live connection to the
// source database.
package pgconn

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/replmsg"
	"github.com/cockroachdb/pgcdc/pkg/util/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Supplier lazily opens a regular (non-replication) connection and exposes
// its type map. Types the driver does not know out of the box, such as
// enums, domains and extension types, can be registered with LoadTypes.
// It is safe for concurrent use.
type Supplier struct {
	connString string

	mu struct {
		sync.Mutex
		conn *pgx.Conn
	}
}

var _ replmsg.ConnSupplier = (*Supplier)(nil)

// NewSupplier returns a Supplier for connString. No connection is opened
// until it is needed.
func NewSupplier(connString string) *Supplier {
	return &Supplier{connString: connString}
}

func (s *Supplier) connLocked(ctx context.Context) (*pgx.Conn, error) {
	if s.mu.conn != nil && !s.mu.conn.IsClosed() {
		return s.mu.conn, nil
	}
	conn, err := pgx.Connect(ctx, s.connString)
	if err != nil {
		return nil, errors.Wrap(err, "connecting for type metadata")
	}
	s.mu.conn = conn
	return conn, nil
}

// TypeMap implements replmsg.ConnSupplier.
func (s *Supplier) TypeMap(ctx context.Context) (*pgtype.Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, err := s.connLocked(ctx)
	if err != nil {
		return nil, err
	}
	return conn.TypeMap(), nil
}

// LoadTypes looks up the named types in the catalog and registers them with
// the connection's type map.
func (s *Supplier) LoadTypes(ctx context.Context, names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, err := s.connLocked(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		t, err := conn.LoadType(ctx, name)
		if err != nil {
			return errors.Wrapf(err, "loading type %q", name)
		}
		conn.TypeMap().RegisterType(t)
		log.VEventf(ctx, 1, "registered type %s with OID %d", name, t.OID)
	}
	return nil
}

// Close closes the connection, if one was opened.
func (s *Supplier) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mu.conn == nil {
		return nil
	}
	err := s.mu.conn.Close(ctx)
	s.mu.conn = nil
	return err
}
