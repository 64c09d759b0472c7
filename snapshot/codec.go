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

// Package snapshot compacts the live map-prefixed subset of the log into
// point-in-time images, in a binary (bmap) and a textual (tmap) form.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/B1NARY-GR0UP/logmap/pkg/bufferpool"
	"github.com/B1NARY-GR0UP/logmap/types"
	"github.com/B1NARY-GR0UP/logmap/utils"
)

// bmap layout, little-endian:
//
//	4  magic "BMAP"
//	u32 version
//	u32 count
//	count times: u16 key_len | key | u32 value_len | value
const _version uint32 = 1

var _magic = [4]byte{'B', 'M', 'A', 'P'}

var (
	ErrInvalidMagic   = errors.New("invalid bmap magic")
	ErrInvalidVersion = errors.New("invalid bmap version")
	ErrTruncated      = errors.New("truncated bmap data")
)

// EncodeBinary renders the authoritative on-disk form.
func EncodeBinary(kvs []types.KV) ([]byte, error) {
	buf := bufferpool.Pool.Get()
	defer bufferpool.Pool.Put(buf)

	w := utils.NewErrorWriter(buf)
	w.Write(binary.LittleEndian, _magic)
	w.Write(binary.LittleEndian, _version)
	w.Write(binary.LittleEndian, uint32(len(kvs)))
	for _, kv := range kvs {
		w.Write(binary.LittleEndian, uint16(len(kv.K)))
		w.Write(binary.LittleEndian, []byte(kv.K))
		w.Write(binary.LittleEndian, uint32(len(kv.V)))
		w.Write(binary.LittleEndian, kv.V)
	}

	if w.Error() != nil {
		return nil, w.Error()
	}
	return slices.Clone(buf.Bytes()), nil
}

// DecodeBinary verifies magic and version and bounds-checks every read.
// Empty input decodes to an empty list.
func DecodeBinary(data []byte) ([]types.KV, error) {
	if len(data) == 0 {
		return nil, nil
	}

	reader := bytes.NewReader(data)
	r := utils.NewErrorReader(reader)

	var magic [4]byte
	var version, count uint32
	r.Read(binary.LittleEndian, &magic)
	r.Read(binary.LittleEndian, &version)
	r.Read(binary.LittleEndian, &count)
	if err := r.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if magic != _magic {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMagic, magic[:])
	}
	if version != _version {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}

	// count is attacker-sized until proven by the reads below
	kvs := make([]types.KV, 0, min(int(count), 1<<16))
	for range count {
		var keyLen uint16
		r.Read(binary.LittleEndian, &keyLen)
		key := r.Bytes(int(keyLen))

		var valueLen uint32
		r.Read(binary.LittleEndian, &valueLen)
		value := r.Bytes(int(valueLen))

		if err := r.Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		kvs = append(kvs, types.KV{K: string(key), V: value})
	}
	return kvs, nil
}

// EncodeText renders one "key: value" line per entry with the value
// decoded lossily. Meant for inspection; arbitrary byte values do not
// round-trip.
func EncodeText(kvs []types.KV) []byte {
	buf := bufferpool.Pool.Get()
	defer bufferpool.Pool.Put(buf)

	for _, kv := range kvs {
		buf.WriteString(kv.K)
		buf.WriteString(": ")
		buf.WriteString(types.LossyString(kv.V))
		buf.WriteByte('\n')
	}
	return slices.Clone(buf.Bytes())
}

// DecodeText parses the textual form, skipping malformed lines.
func DecodeText(data []byte) []types.KV {
	var kvs []types.KV
	for _, line := range strings.Split(string(data), "\n") {
		key, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		kvs = append(kvs, types.KV{K: key, V: []byte(value)})
	}
	return kvs
}
