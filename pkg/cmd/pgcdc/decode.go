// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/cdcbase"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/cdcevent"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/pgconn"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/pgoutput"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/pgtypes"
	"github.com/cockroachdb/pgcdc/pkg/pgrepl/replmsg"
	"github.com/cockroachdb/pgcdc/pkg/util/log"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type decodeOpts struct {
	configFile              string
	toastHandling           string
	placeholder             string
	includeUnknownDatatypes bool
	printMetrics            bool
	dsn                     string
	loadTypes               []string
}

func (o *decodeOpts) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configFile, "config", "", "YAML file with change record options")
	fs.StringVar(&o.toastHandling, "toast-handling", "",
		"how unchanged TOAST columns appear in records: omit, previous or placeholder")
	fs.StringVar(&o.placeholder, "placeholder", "", "placeholder for unavailable values")
	fs.BoolVar(&o.includeUnknownDatatypes, "include-unknown-datatypes", false,
		"keep values of unknown types as raw bytes")
	fs.BoolVar(&o.printMetrics, "print-metrics", false, "print metrics after decoding")
	fs.StringVar(&o.dsn, "dsn", "",
		"connection string of the source database, used to resolve datatype metadata")
	fs.StringSliceVar(&o.loadTypes, "load-type", nil,
		"user-defined type to register from the source database (requires --dsn)")
}

// statementOptions merges the config file with the flags; flags win.
func (o *decodeOpts) statementOptions() (cdcbase.StatementOptions, error) {
	opts := cdcbase.MakeDefaultOptions()
	if o.configFile != "" {
		var err error
		if opts, err = cdcbase.LoadOptionsFile(o.configFile); err != nil {
			return cdcbase.StatementOptions{}, err
		}
	}
	if o.toastHandling != "" {
		opts.Set(cdcbase.OptToastHandling, o.toastHandling)
	}
	if o.placeholder != "" {
		opts.Set(cdcbase.OptUnavailableValuePlaceholder, o.placeholder)
	}
	if o.includeUnknownDatatypes {
		opts.Set(cdcbase.OptIncludeUnknownDatatypes, "")
	}
	return opts, opts.Validate()
}

func makeDecodeCmd() *cobra.Command {
	var o decodeOpts
	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode hex-encoded pgoutput payloads into JSON change records",
		Long: `Decode reads one pgoutput payload per line, hex encoded and optionally
preceded by the LSN it was received at ("0/16B3748 52..."). Blank lines and
lines starting with '#' are skipped. Each row change is printed as one JSON
document.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := o.statementOptions()
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			ctx := cmd.Context()
			if o.dsn == "" {
				if len(o.loadTypes) > 0 {
					return errors.New("--load-type requires --dsn")
				}
				return runDecode(ctx, in, cmd.OutOrStdout(), opts, o.printMetrics)
			}
			supplier := pgconn.NewSupplier(o.dsn)
			defer func() {
				if err := supplier.Close(ctx); err != nil {
					log.Warningf(ctx, "closing metadata connection: %v", err)
				}
			}()
			if err := supplier.LoadTypes(ctx, o.loadTypes...); err != nil {
				return err
			}
			return decodeWithTypes(ctx, in, cmd.OutOrStdout(), opts, o.printMetrics, supplier)
		},
	}
	o.addFlags(cmd.Flags())
	return cmd
}

func runDecode(
	ctx context.Context,
	in io.Reader,
	out io.Writer,
	opts cdcbase.StatementOptions,
	printMetrics bool,
) error {
	return decodeWithTypes(ctx, in, out, opts, printMetrics, replmsg.StaticTypes(pgtype.NewMap()))
}

func decodeWithTypes(
	ctx context.Context,
	in io.Reader,
	out io.Writer,
	opts cdcbase.StatementOptions,
	printMetrics bool,
	conn replmsg.ConnSupplier,
) error {
	reg := prometheus.NewRegistry()
	decoderMetrics := pgoutput.NewMetrics()
	builderMetrics := cdcevent.NewMetrics()
	if err := decoderMetrics.Register(reg); err != nil {
		return err
	}
	if err := builderMetrics.Register(reg); err != nil {
		return err
	}
	builder, err := cdcevent.NewBuilder(opts, builderMetrics)
	if err != nil {
		return err
	}
	typeMap, err := conn.TypeMap(ctx)
	if err != nil {
		return err
	}
	decoder := pgoutput.NewDecoder(pgtypes.NewRegistry(typeMap), decoderMetrics)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64<<10), 64<<20)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lineCtx := logtags.AddTag(ctx, "line", lineNo)
		lsn, payload, err := parseLine(line)
		if err != nil {
			return errors.Wrapf(err, "line %d", lineNo)
		}
		msg, err := decoder.Decode(lineCtx, lsn, payload)
		if err != nil {
			return errors.Wrapf(err, "line %d", lineNo)
		}
		if msg == nil {
			continue
		}
		row, err := builder.Build(lineCtx, conn, msg)
		if err != nil {
			return errors.Wrapf(err, "line %d", lineNo)
		}
		doc, err := cdcevent.EncodeJSON(row)
		if err != nil {
			return errors.Wrapf(err, "line %d", lineNo)
		}
		if _, err := fmt.Fprintf(out, "%s\n", doc); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading payloads")
	}
	log.VEventf(ctx, 1, "decoding done")

	if printMetrics {
		families, err := reg.Gather()
		if err != nil {
			return err
		}
		enc := expfmt.NewEncoder(out, expfmt.FmtText)
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseLine splits "[lsn ]hex" into its parts.
func parseLine(line string) (pglogrepl.LSN, []byte, error) {
	var lsn pglogrepl.LSN
	payloadHex := line
	if i := strings.IndexByte(line, ' '); i >= 0 {
		var err error
		if lsn, err = pglogrepl.ParseLSN(line[:i]); err != nil {
			return 0, nil, errors.Wrap(err, "parsing LSN")
		}
		payloadHex = strings.TrimSpace(line[i+1:])
	}
	payload, err := hex.DecodeString(payloadHex)
	if err != nil {
		return 0, nil, errors.Wrap(err, "decoding payload")
	}
	return lsn, payload, nil
}
