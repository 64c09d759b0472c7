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
)

// ErrorWriter collapses per-field error checks of binary encoders: the
// first failure sticks and later writes become no-ops.
type ErrorWriter struct {
	buf *bytes.Buffer
	err error
}

func NewErrorWriter(buf *bytes.Buffer) *ErrorWriter {
	return &ErrorWriter{
		buf: buf,
		err: nil,
	}
}

func (w *ErrorWriter) Write(order binary.ByteOrder, data any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.buf, order, data)
}

func (w *ErrorWriter) Error() error {
	return w.err
}

// ErrorReader is the decoding counterpart. It wraps a bytes.Reader so that
// variable-length reads can be bounds checked before allocating.
type ErrorReader struct {
	r   *bytes.Reader
	err error
}

func NewErrorReader(r *bytes.Reader) *ErrorReader {
	return &ErrorReader{
		r:   r,
		err: nil,
	}
}

func (r *ErrorReader) Read(order binary.ByteOrder, data any) {
	if r.err != nil {
		return
	}
	r.err = binary.Read(r.r, order, data)
}

// Bytes reads exactly n bytes, recording io.ErrUnexpectedEOF without
// allocating when fewer remain.
func (r *ErrorReader) Bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.r.Len() {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	buf := make([]byte, n)
	_, r.err = io.ReadFull(r.r, buf)
	return buf
}

func (r *ErrorReader) Error() error {
	return r.err
}
