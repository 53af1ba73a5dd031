// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/cdb/internal/cdbtext"
)

func TestGenerateLines(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, generate(&a, 50, 42, false))
	require.NoError(t, generate(&b, 50, 42, false))
	assert.Equal(t, a.String(), b.String())

	lines := strings.Split(strings.TrimSuffix(a.String(), "\n"), "\n")
	require.Len(t, lines, 50)
	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		require.True(t, ok)
		assert.Len(t, key, 32)
		assert.Equal(t, string(keyFor([]byte(value))), key)
		assert.True(t, strings.HasPrefix(value, prefix))
		assert.Len(t, value, len(prefix)+suffixLen)
	}
}

func TestGenerateCdbmake(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, generate(&buf, 20, 7, true))

	r := cdbtext.NewReader(&buf)
	n := 0
	for r.Next() {
		assert.Equal(t, keyFor(r.Value()), r.Key())
		n++
	}
	require.NoError(t, r.Err())
	assert.Equal(t, 20, n)
}
