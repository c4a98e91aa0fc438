// Copyright 2024 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer
	w := NewMultiWriter(&a, nil, &b)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", a.String())
	assert.Equal(t, "hello", b.String())
}

func TestMultiWriterKeepsWritingAfterError(t *testing.T) {
	var b bytes.Buffer
	w := NewMultiWriter(failingWriter{}, &b)
	_, err := w.Write([]byte("x"))
	assert.Error(t, err)
	assert.Equal(t, "x", b.String())
}

func TestNewLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servo.log")
	log, closer, err := NewLogger(nil, path, "info")
	require.NoError(t, err)
	log.Debug().Msg("hidden")
	log.Info().Int("channel", 3).Msg("moved")
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"channel":3`)
	assert.NotContains(t, string(content), "hidden")
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, _, err := NewLogger(nil, "", "loud")
	assert.Error(t, err)
}
