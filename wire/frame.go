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

package wire

import (
	"encoding/binary"
	"errors"

	"github.com/B1NARY-GR0UP/logmap/pkg/utils"
	"github.com/apache/thrift/lib/go/thrift"
	"github.com/spaolacci/murmur3"
)

var (
	ErrShortFrame = errors.New("frame shorter than checksum")
	ErrChecksum   = errors.New("frame checksum mismatch")
)

const _checksumSize = 4

// EncodeFrame prepends a little-endian murmur3 checksum to the encoded
// message. One frame travels per stream message.
func EncodeFrame(msg thrift.TStruct) ([]byte, error) {
	payload, err := utils.TMarshal(msg)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, _checksumSize+len(payload))
	binary.LittleEndian.PutUint32(frame, murmur3.Sum32(payload))
	copy(frame[_checksumSize:], payload)
	return frame, nil
}

// DecodeFrame verifies the checksum before decoding into msg.
func DecodeFrame(frame []byte, msg thrift.TStruct) error {
	if len(frame) < _checksumSize {
		return ErrShortFrame
	}
	payload := frame[_checksumSize:]
	if binary.LittleEndian.Uint32(frame) != murmur3.Sum32(payload) {
		return ErrChecksum
	}
	return utils.TUnmarshal(payload, msg)
}
