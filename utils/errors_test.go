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
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewErrorWriter(&buf)
	w.Write(binary.LittleEndian, uint32(7))
	w.Write(binary.LittleEndian, uint16(3))
	w.Write(binary.LittleEndian, []byte("abc"))
	require.NoError(t, w.Error())

	r := NewErrorReader(bytes.NewReader(buf.Bytes()))
	var n uint32
	var l uint16
	r.Read(binary.LittleEndian, &n)
	r.Read(binary.LittleEndian, &l)
	payload := r.Bytes(int(l))
	require.NoError(t, r.Error())

	assert.Equal(t, uint32(7), n)
	assert.Equal(t, uint16(3), l)
	assert.Equal(t, []byte("abc"), payload)
}

func TestErrorReaderSticksOnFailure(t *testing.T) {
	r := NewErrorReader(bytes.NewReader([]byte{1}))

	var n uint32
	r.Read(binary.LittleEndian, &n)
	assert.Error(t, r.Error())

	// later reads are no-ops and keep the first error
	first := r.Error()
	var m uint16
	r.Read(binary.LittleEndian, &m)
	assert.Equal(t, first, r.Error())
	assert.Nil(t, r.Bytes(4))
}

func TestErrorReaderBytesBounds(t *testing.T) {
	r := NewErrorReader(bytes.NewReader([]byte{1, 2}))
	assert.Nil(t, r.Bytes(3))
	assert.ErrorIs(t, r.Error(), io.ErrUnexpectedEOF)

	r = NewErrorReader(bytes.NewReader([]byte{1, 2}))
	assert.Equal(t, []byte{1, 2}, r.Bytes(2))
	require.NoError(t, r.Error())
	assert.Empty(t, r.Bytes(0))
	require.NoError(t, r.Error())
}
