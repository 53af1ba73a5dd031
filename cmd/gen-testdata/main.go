// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// gen-testdata writes random key:value lines like testdata.small, or
// cdbmake input with -cdbmake.  Keys are the farm fingerprint of their value.
package main

import (
	"bufio"
	crand "crypto/rand"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"

	farm "github.com/dgryski/go-farm"

	"github.com/bpowers/cdb/internal/cdbtext"
)

const (
	prefix    = "pref_"
	suffixLen = 16
)

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		var seedBytes [8]byte
		_, _ = crand.Read(seedBytes[:])
		seed = int64(binary.LittleEndian.Uint64(seedBytes[:]))
	}
	return rand.New(rand.NewSource(seed))
}

// keyFor derives a well-distributed, reproducible key from value.
func keyFor(value []byte) []byte {
	hi, lo := farm.Fingerprint128(value)
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], hi)
	binary.BigEndian.PutUint64(b[8:], lo)
	return fmt.Appendf(nil, "%x", b[:])
}

func generate(w io.Writer, n int, seed int64, cdbmake bool) error {
	rng := newRand(seed)

	bw := bufio.NewWriter(w)
	var tw *cdbtext.Writer
	if cdbmake {
		tw = cdbtext.NewWriter(bw)
	}

	for i := 0; i < n; i++ {
		var buf [suffixLen / 2]byte
		if _, err := rng.Read(buf[:]); err != nil {
			return err
		}
		value := fmt.Appendf(nil, "%s%x", prefix, buf)
		key := keyFor(value)

		if tw != nil {
			if err := tw.Write(key, value); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(bw, "%s:%s\n", key, value); err != nil {
			return err
		}
	}

	if tw != nil {
		if err := tw.Close(); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func main() {
	n := flag.Int("n", 1000000, "number of pairs")
	seed := flag.Int64("seed", 0, "random seed (0 picks one)")
	cdbmake := flag.Bool("cdbmake", false, "write cdbmake input instead of key:value lines")
	flag.Parse()

	if err := generate(os.Stdout, *n, *seed, *cdbmake); err != nil {
		fmt.Fprintf(os.Stderr, "gen-testdata: %s\n", err)
		os.Exit(1)
	}
}
