// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"flag"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/cdb"
)

func buildTestFile(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "data.cdb")
	b, err := cdb.Create(path)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, b.Add([]byte("k"+strconv.Itoa(i)), []byte("v"+strconv.Itoa(i))))
	}
	for _, v := range []string{"1", "2", "3"} {
		require.NoError(t, b.Add([]byte("dup"), []byte(v)))
	}
	require.NoError(t, b.Finish())
	return path
}

func TestGet(t *testing.T) {
	path := buildTestFile(t)

	for _, tt := range []struct {
		args     []string
		expected string
	}{
		{[]string{path, "k7"}, "v7"},
		{[]string{path, "dup"}, "1"},
		{[]string{"-s", "1", path, "dup"}, "2"},
		{[]string{"-a", path, "dup"}, "1\n2\n3\n"},
		{[]string{"-a", "-s", "2", path, "dup"}, "3\n"},
		{[]string{path, "k3", "k1", "k99", "dup"}, "v3\nv1\nv99\n1\n"},
	} {
		var stdout bytes.Buffer
		require.NoError(t, run(tt.args, &stdout, &bytes.Buffer{}), "%v", tt.args)
		assert.Equal(t, tt.expected, stdout.String(), "%v", tt.args)
	}
}

func TestGetMissing(t *testing.T) {
	path := buildTestFile(t)

	var stdout bytes.Buffer
	err := run([]string{path, "k1", "nope", "k2"}, &stdout, &bytes.Buffer{})
	assert.ErrorIs(t, err, errMissing)
	assert.Contains(t, err.Error(), `"nope"`)
	// keys that were found are still printed
	assert.Equal(t, "v1\nv2\n", stdout.String())

	err = run([]string{"-s", "3", path, "dup"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, errMissing)
}

func TestGetUsage(t *testing.T) {
	err := run([]string{"only-a-path"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, flag.ErrHelp)

	err = run([]string{"-s", "-1", "path", "key"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, flag.ErrHelp)
}
