// Copyright 2025 BINARY Members
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

package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	input := strings.Repeat("the log is the database ", 256)

	var compressed bytes.Buffer
	require.NoError(t, Compress(strings.NewReader(input), &compressed))
	assert.Less(t, compressed.Len(), len(input))

	var decompressed bytes.Buffer
	require.NoError(t, Decompress(bytes.NewReader(compressed.Bytes()), &decompressed))
	assert.Equal(t, input, decompressed.String())
}

func TestCompressEmpty(t *testing.T) {
	var compressed, decompressed bytes.Buffer
	require.NoError(t, Compress(strings.NewReader(""), &compressed))
	require.NoError(t, Decompress(bytes.NewReader(compressed.Bytes()), &decompressed))
	assert.Zero(t, decompressed.Len())
}
