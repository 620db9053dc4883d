// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cdcbase holds the options that control how change records are
// built from replication messages.
package cdcbase

import (
	"bytes"
	"io"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ToastHandling configures what a change record contains for a column whose
// value was omitted because it is TOASTed and unchanged.
type ToastHandling string

// Constants for the options.
const (
	OptToastHandling               = `toast_handling`
	OptUnavailableValuePlaceholder = `unavailable_value_placeholder`
	OptIncludeUnknownDatatypes     = `include_unknown_datatypes`

	// OptToastHandlingOmit drops the field from the record and lists it as
	// unchanged.
	OptToastHandlingOmit ToastHandling = `omit`
	// OptToastHandlingPrevious takes the value from the old row image when
	// the message carries one, and otherwise omits the field.
	OptToastHandlingPrevious ToastHandling = `previous`
	// OptToastHandlingPlaceholder substitutes the unavailable value
	// placeholder, shaped like the column.
	OptToastHandlingPlaceholder ToastHandling = `placeholder`

	// DefaultUnavailableValuePlaceholder is the placeholder used when none
	// is configured.
	DefaultUnavailableValuePlaceholder = `__debezium_unavailable_value`
)

type optValidate int

const (
	optRequireValue optValidate = iota
	optRequireNoValue
)

// optionExpectValues lists the recognized options and whether they take a
// value.
var optionExpectValues = map[string]optValidate{
	OptToastHandling:               optRequireValue,
	OptUnavailableValuePlaceholder: optRequireValue,
	OptIncludeUnknownDatatypes:     optRequireNoValue,
}

var toastHandlings = map[ToastHandling]struct{}{
	OptToastHandlingOmit:        {},
	OptToastHandlingPrevious:    {},
	OptToastHandlingPlaceholder: {},
}

// StatementOptions is a validated-on-demand set of options.
type StatementOptions struct {
	m map[string]string
}

// MakeDefaultOptions returns the options used when nothing is configured.
func MakeDefaultOptions() StatementOptions {
	return StatementOptions{m: map[string]string{}}
}

// MakeStatementOptions wraps opts. The map is copied.
func MakeStatementOptions(opts map[string]string) StatementOptions {
	m := make(map[string]string, len(opts))
	for k, v := range opts {
		m[k] = v
	}
	return StatementOptions{m: m}
}

// Set sets key to value.
func (s StatementOptions) Set(key, value string) {
	s.m[key] = value
}

// AsMap returns a copy of the options.
func (s StatementOptions) AsMap() map[string]string {
	m := make(map[string]string, len(s.m))
	for k, v := range s.m {
		m[k] = v
	}
	return m
}

// Validate checks that every option is known, carries a value only if it
// takes one, and holds an acceptable value.
func (s StatementOptions) Validate() error {
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		expect, ok := optionExpectValues[k]
		if !ok {
			return errors.Newf("unknown option %q", k)
		}
		v := s.m[k]
		switch expect {
		case optRequireValue:
			if v == "" {
				return errors.Newf("option %q requires a value", k)
			}
		case optRequireNoValue:
			if v != "" {
				return errors.Newf("option %q does not take a value", k)
			}
		}
	}
	if v, ok := s.m[OptToastHandling]; ok {
		if _, ok := toastHandlings[ToastHandling(v)]; !ok {
			return errors.WithHintf(errors.Newf("unknown %s: %q", OptToastHandling, v),
				"valid values are %q, %q and %q",
				OptToastHandlingOmit, OptToastHandlingPrevious, OptToastHandlingPlaceholder)
		}
	}
	return nil
}

// GetToastHandling returns the configured ToastHandling.
func (s StatementOptions) GetToastHandling() (ToastHandling, error) {
	v, ok := s.m[OptToastHandling]
	if !ok {
		return OptToastHandlingOmit, nil
	}
	h := ToastHandling(v)
	if _, ok := toastHandlings[h]; !ok {
		return "", errors.Newf("unknown %s: %q", OptToastHandling, v)
	}
	return h, nil
}

// GetUnavailableValuePlaceholder returns the configured placeholder.
func (s StatementOptions) GetUnavailableValuePlaceholder() string {
	if v, ok := s.m[OptUnavailableValuePlaceholder]; ok && v != "" {
		return v
	}
	return DefaultUnavailableValuePlaceholder
}

// IncludeUnknownDatatypes returns whether values of unknown types are kept
// as raw bytes.
func (s StatementOptions) IncludeUnknownDatatypes() bool {
	_, ok := s.m[OptIncludeUnknownDatatypes]
	return ok
}

// fileOptions is the YAML layout of an options file.
type fileOptions struct {
	ToastHandling               string `yaml:"toast_handling"`
	UnavailableValuePlaceholder string `yaml:"unavailable_value_placeholder"`
	IncludeUnknownDatatypes     bool   `yaml:"include_unknown_datatypes"`
}

// ParseOptionsYAML parses options from YAML. Unknown fields are rejected.
func ParseOptionsYAML(data []byte) (StatementOptions, error) {
	var f fileOptions
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return StatementOptions{}, errors.Wrap(err, "parsing options")
	}
	opts := MakeDefaultOptions()
	if f.ToastHandling != "" {
		opts.Set(OptToastHandling, f.ToastHandling)
	}
	if f.UnavailableValuePlaceholder != "" {
		opts.Set(OptUnavailableValuePlaceholder, f.UnavailableValuePlaceholder)
	}
	if f.IncludeUnknownDatatypes {
		opts.Set(OptIncludeUnknownDatatypes, "")
	}
	if err := opts.Validate(); err != nil {
		return StatementOptions{}, err
	}
	return opts, nil
}

// LoadOptionsFile reads options from the YAML file at path.
func LoadOptionsFile(path string) (StatementOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StatementOptions{}, errors.Wrapf(err, "reading options file")
	}
	opts, err := ParseOptionsYAML(data)
	if err != nil {
		return StatementOptions{}, errors.Wrapf(err, "%s", path)
	}
	return opts, nil
}
