// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// cdbget prints the values stored under one or more keys of a cdb file.
// Keys are looked up concurrently and printed in argument order.  It exits
// with status 100 if any key is missing.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/bpowers/cdb"
)

var errMissing = errors.New("key not found")

func lookup(r *cdb.Reader, key string, skip int, all bool) ([][]byte, error) {
	if all {
		values, err := r.GetAll([]byte(key))
		if err != nil {
			return nil, err
		}
		if len(values) <= skip {
			return nil, nil
		}
		return values[skip:], nil
	}
	v, ok, err := r.GetNth([]byte(key), skip)
	if err != nil || !ok {
		return nil, err
	}
	return [][]byte{v}, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("cdbget", flag.ContinueOnError)
	fs.SetOutput(stderr)
	skip := fs.Int("s", 0, "skip this many values of each key")
	all := fs.Bool("a", false, "print every remaining value, not just the first")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: cdbget [-s skip] [-a] cdb key...\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 || *skip < 0 {
		fs.Usage()
		return flag.ErrHelp
	}
	keys := fs.Args()[1:]

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	r, err := cdb.Open(fs.Arg(0), cdb.WithReaderLogger(logger))
	if err != nil {
		return fmt.Errorf("cdb.Open: %w", err)
	}
	defer func() {
		_ = r.Close()
	}()

	results := make([][][]byte, len(keys))
	var g errgroup.Group
	g.SetLimit(16)
	for i, key := range keys {
		g.Go(func() error {
			values, err := lookup(r, key, *skip, *all)
			if err != nil {
				return fmt.Errorf("lookup(%q): %w", key, err)
			}
			results[i] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// a single value prints exactly as stored, like djb's cdbget
	separate := len(keys) > 1 || *all
	bw := bufio.NewWriter(stdout)
	var missing []string
	for i, values := range results {
		if len(values) == 0 {
			missing = append(missing, keys[i])
			continue
		}
		for _, v := range values {
			_, _ = bw.Write(v)
			if separate {
				_ = bw.WriteByte('\n')
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %q", errMissing, missing)
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			os.Exit(2)
		case errors.Is(err, errMissing):
			os.Exit(100)
		}
		fmt.Fprintf(os.Stderr, "cdbget: %s\n", err)
		os.Exit(111)
	}
}
