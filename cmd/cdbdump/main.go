// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// cdbdump prints every record of a cdb file in cdbmake text format, or as
// JSON lines with -json.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-json"

	"github.com/bpowers/cdb"
	"github.com/bpowers/cdb/internal/cdbtext"
)

// jsonRecord is one line of -json output.  Bytes that aren't valid UTF-8
// come out as U+FFFD.
type jsonRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func dumpText(w io.Writer, it *cdb.RecordIter) error {
	tw := cdbtext.NewWriter(w)
	for k, v := range it.All() {
		if err := tw.Write(k, v); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	return tw.Close()
}

func dumpJSON(w io.Writer, it *cdb.RecordIter) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for it.Next() {
		rec := jsonRecord{Key: string(it.Key()), Value: string(it.Value())}
		if err := enc.Encode(&rec); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	return bw.Flush()
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("cdbdump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print one JSON object per record")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: cdbdump [-json] cdb\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return flag.ErrHelp
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	r, err := cdb.Open(fs.Arg(0), cdb.WithReaderLogger(logger))
	if err != nil {
		return fmt.Errorf("cdb.Open: %w", err)
	}
	defer func() {
		_ = r.Close()
	}()

	if *asJSON {
		return dumpJSON(stdout, r.Records())
	}
	return dumpText(stdout, r.Records())
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "cdbdump: %s\n", err)
		os.Exit(111)
	}
}
