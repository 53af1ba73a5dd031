// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/cdb"
)

func buildTestFile(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "data.cdb")
	b, err := cdb.Create(path)
	require.NoError(t, err)
	require.NoError(t, b.AddMany(cdb.Pairs([]cdb.Pair{
		{Key: []byte("one"), Value: []byte("Hello")},
		{Key: []byte("two"), Value: []byte("<Goodbye>\n")},
		{Key: []byte("one"), Value: []byte("")},
	})))
	require.NoError(t, b.Finish())
	return path
}

func TestDumpText(t *testing.T) {
	path := buildTestFile(t)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{path}, &stdout, &stderr))
	assert.Equal(t, "+3,5:one->Hello\n+3,10:two-><Goodbye>\n\n+3,0:one->\n\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestDumpJSON(t *testing.T) {
	path := buildTestFile(t)

	var stdout bytes.Buffer
	require.NoError(t, run([]string{"-json", path}, &stdout, &bytes.Buffer{}))

	var records []jsonRecord
	s := bufio.NewScanner(&stdout)
	for s.Scan() {
		var rec jsonRecord
		require.NoError(t, json.Unmarshal(s.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, s.Err())

	assert.Equal(t, []jsonRecord{
		{Key: "one", Value: "Hello"},
		{Key: "two", Value: "<Goodbye>\n"},
		{Key: "one", Value: ""},
	}, records)
}

func TestDumpMissingFile(t *testing.T) {
	err := run([]string{filepath.Join(t.TempDir(), "missing")}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, cdb.ErrNotFound)
}
