// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/pgcdc/pkg/pgrepl/toast"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <type-with-modifiers>...",
	Short: "Print the shape and marker of unchanged TOAST columns of the given types",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClassify(cmd.OutOrStdout(), args)
	},
}

func runClassify(w io.Writer, types []string) error {
	for _, typ := range types {
		shape := toast.ClassifyShape(typ)
		note := ""
		if toast.IsUnrecognizedArray(typ) {
			note = "\t(unrecognized array type, treated as scalar)"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s%s\n", typ, shape, shape.Marker(), note); err != nil {
			return err
		}
	}
	return nil
}
