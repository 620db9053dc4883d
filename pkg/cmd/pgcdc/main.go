// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// pgcdc inspects how unchanged TOAST columns of a pgoutput replication
// stream are classified and rendered into change records.
package main

import (
	"os"

	"github.com/cockroachdb/pgcdc/pkg/util/log"
	"github.com/spf13/cobra"
)

var verbosity int32

var rootCmd = &cobra.Command{
	Use:          "pgcdc",
	Short:        "Inspect unchanged TOAST handling of pgoutput streams",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetVerbosity(verbosity)
	},
}

func init() {
	rootCmd.PersistentFlags().Int32VarP(&verbosity, "verbosity", "v", 0, "log verbosity level")
	rootCmd.AddCommand(classifyCmd, makeDecodeCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
