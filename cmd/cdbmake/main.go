// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// cdbmake builds a cdb file from records in cdbmake text format
// (+klen,dlen:key->data lines ending with an empty line) read from stdin.
// The new file replaces the old one atomically.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bpowers/cdb"
	"github.com/bpowers/cdb/internal/cdbtext"
)

func run(args []string, stdin io.Reader, stderr io.Writer) error {
	fs := flag.NewFlagSet("cdbmake", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tmp := fs.String("tmp", "", "temporary file path (must be on the same filesystem as cdb)")
	lock := fs.Bool("lock", false, "wait for other cdbmake processes writing the same cdb")
	noWait := fs.Bool("nowait", false, "with -lock, fail instead of waiting")
	verbose := fs.Bool("v", false, "log progress to stderr")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: cdbmake [flags] cdb < records\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return flag.ErrHelp
	}
	path := fs.Arg(0)

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	opts := []cdb.BuilderOption{cdb.WithBuilderLogger(logger)}
	if *tmp != "" {
		opts = append(opts, cdb.WithTempPath(*tmp))
	}
	switch {
	case *lock && *noWait:
		opts = append(opts, cdb.WithTryWriterLock())
	case *lock:
		opts = append(opts, cdb.WithWriterLock())
	}

	b, err := cdb.Create(path, opts...)
	if err != nil {
		return fmt.Errorf("cdb.Create: %w", err)
	}
	defer func() {
		_ = b.Abort()
	}()

	r := cdbtext.NewReader(stdin)
	for r.Next() {
		if err := b.Add(r.Key(), r.Value()); err != nil {
			return fmt.Errorf("b.Add: %w", err)
		}
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("reading records: %w", err)
	}

	if err := b.Finish(); err != nil {
		return fmt.Errorf("b.Finish: %w", err)
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "cdbmake: %s\n", err)
		os.Exit(111)
	}
}
