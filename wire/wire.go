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

// Package wire holds the message structs of logmap.thrift and the frame
// codec that carries them over a stream.
package wire

import (
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"
)

// Record mirrors the log record on the wire. Ordinals ride in i64 fields
// per thrift convention; they are non-negative by construction.
type Record struct {
	Ordinal   int64  `thrift:"ordinal,1" frugal:"1,default,i64" json:"ordinal"`
	Key       string `thrift:"key,2" frugal:"2,default,string" json:"key"`
	Value     []byte `thrift:"value,3" frugal:"3,default,binary" json:"value"`
	Timestamp int64  `thrift:"timestamp,4" frugal:"4,default,i64" json:"timestamp"`
}

func (p *Record) Read(iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T read struct begin error: ", p), err)
	}
	for {
		_, fieldTypeId, fieldId, err := iprot.ReadFieldBegin()
		if err != nil {
			return thrift.PrependError(fmt.Sprintf("%T field %d read error: ", p, fieldId), err)
		}
		if fieldTypeId == thrift.STOP {
			break
		}
		switch {
		case fieldId == 1 && fieldTypeId == thrift.I64:
			if p.Ordinal, err = iprot.ReadI64(); err != nil {
				return err
			}
		case fieldId == 2 && fieldTypeId == thrift.STRING:
			if p.Key, err = iprot.ReadString(); err != nil {
				return err
			}
		case fieldId == 3 && fieldTypeId == thrift.STRING:
			if p.Value, err = iprot.ReadBinary(); err != nil {
				return err
			}
		case fieldId == 4 && fieldTypeId == thrift.I64:
			if p.Timestamp, err = iprot.ReadI64(); err != nil {
				return err
			}
		default:
			if err = iprot.Skip(fieldTypeId); err != nil {
				return err
			}
		}
		if err = iprot.ReadFieldEnd(); err != nil {
			return err
		}
	}
	return iprot.ReadStructEnd()
}

func (p *Record) Write(oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin("Record"); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T write struct begin error: ", p), err)
	}
	if err := writeI64Field(oprot, "ordinal", 1, p.Ordinal); err != nil {
		return err
	}
	if err := writeStringField(oprot, "key", 2, p.Key); err != nil {
		return err
	}
	if err := writeBinaryField(oprot, "value", 3, p.Value); err != nil {
		return err
	}
	if err := writeI64Field(oprot, "timestamp", 4, p.Timestamp); err != nil {
		return err
	}
	if err := oprot.WriteFieldStop(); err != nil {
		return err
	}
	return oprot.WriteStructEnd()
}

// SubscribeRequest asks the server to stream every record with an ordinal
// strictly greater than StartOrdinal, then follow the live tail.
type SubscribeRequest struct {
	StartOrdinal int64 `thrift:"start_ordinal,1" frugal:"1,default,i64" json:"start_ordinal"`
}

func (p *SubscribeRequest) Read(iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T read struct begin error: ", p), err)
	}
	for {
		_, fieldTypeId, fieldId, err := iprot.ReadFieldBegin()
		if err != nil {
			return thrift.PrependError(fmt.Sprintf("%T field %d read error: ", p, fieldId), err)
		}
		if fieldTypeId == thrift.STOP {
			break
		}
		switch {
		case fieldId == 1 && fieldTypeId == thrift.I64:
			if p.StartOrdinal, err = iprot.ReadI64(); err != nil {
				return err
			}
		default:
			if err = iprot.Skip(fieldTypeId); err != nil {
				return err
			}
		}
		if err = iprot.ReadFieldEnd(); err != nil {
			return err
		}
	}
	return iprot.ReadStructEnd()
}

func (p *SubscribeRequest) Write(oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin("SubscribeRequest"); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T write struct begin error: ", p), err)
	}
	if err := writeI64Field(oprot, "start_ordinal", 1, p.StartOrdinal); err != nil {
		return err
	}
	if err := oprot.WriteFieldStop(); err != nil {
		return err
	}
	return oprot.WriteStructEnd()
}

// WriteRequest proposes a mutation. Ordinal is advisory; LatestKnown is
// the concurrency-control token.
type WriteRequest struct {
	Ordinal     int64  `thrift:"ordinal,1" frugal:"1,default,i64" json:"ordinal"`
	Key         string `thrift:"key,2" frugal:"2,default,string" json:"key"`
	Value       []byte `thrift:"value,3" frugal:"3,default,binary" json:"value"`
	LatestKnown int64  `thrift:"latest_known,4" frugal:"4,default,i64" json:"latest_known"`
}

func (p *WriteRequest) Read(iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T read struct begin error: ", p), err)
	}
	for {
		_, fieldTypeId, fieldId, err := iprot.ReadFieldBegin()
		if err != nil {
			return thrift.PrependError(fmt.Sprintf("%T field %d read error: ", p, fieldId), err)
		}
		if fieldTypeId == thrift.STOP {
			break
		}
		switch {
		case fieldId == 1 && fieldTypeId == thrift.I64:
			if p.Ordinal, err = iprot.ReadI64(); err != nil {
				return err
			}
		case fieldId == 2 && fieldTypeId == thrift.STRING:
			if p.Key, err = iprot.ReadString(); err != nil {
				return err
			}
		case fieldId == 3 && fieldTypeId == thrift.STRING:
			if p.Value, err = iprot.ReadBinary(); err != nil {
				return err
			}
		case fieldId == 4 && fieldTypeId == thrift.I64:
			if p.LatestKnown, err = iprot.ReadI64(); err != nil {
				return err
			}
		default:
			if err = iprot.Skip(fieldTypeId); err != nil {
				return err
			}
		}
		if err = iprot.ReadFieldEnd(); err != nil {
			return err
		}
	}
	return iprot.ReadStructEnd()
}

func (p *WriteRequest) Write(oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin("WriteRequest"); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T write struct begin error: ", p), err)
	}
	if err := writeI64Field(oprot, "ordinal", 1, p.Ordinal); err != nil {
		return err
	}
	if err := writeStringField(oprot, "key", 2, p.Key); err != nil {
		return err
	}
	if err := writeBinaryField(oprot, "value", 3, p.Value); err != nil {
		return err
	}
	if err := writeI64Field(oprot, "latest_known", 4, p.LatestKnown); err != nil {
		return err
	}
	if err := oprot.WriteFieldStop(); err != nil {
		return err
	}
	return oprot.WriteStructEnd()
}

// WriteResponse answers exactly one WriteRequest. A conflict is a
// successful response with Accepted false and the server's latest ordinal
// in AssignedOrdinal.
type WriteResponse struct {
	Accepted        bool   `thrift:"accepted,1" frugal:"1,default,bool" json:"accepted"`
	Error           string `thrift:"error,2" frugal:"2,default,string" json:"error"`
	AssignedOrdinal int64  `thrift:"assigned_ordinal,3" frugal:"3,default,i64" json:"assigned_ordinal"`
}

func (p *WriteResponse) Read(iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T read struct begin error: ", p), err)
	}
	for {
		_, fieldTypeId, fieldId, err := iprot.ReadFieldBegin()
		if err != nil {
			return thrift.PrependError(fmt.Sprintf("%T field %d read error: ", p, fieldId), err)
		}
		if fieldTypeId == thrift.STOP {
			break
		}
		switch {
		case fieldId == 1 && fieldTypeId == thrift.BOOL:
			if p.Accepted, err = iprot.ReadBool(); err != nil {
				return err
			}
		case fieldId == 2 && fieldTypeId == thrift.STRING:
			if p.Error, err = iprot.ReadString(); err != nil {
				return err
			}
		case fieldId == 3 && fieldTypeId == thrift.I64:
			if p.AssignedOrdinal, err = iprot.ReadI64(); err != nil {
				return err
			}
		default:
			if err = iprot.Skip(fieldTypeId); err != nil {
				return err
			}
		}
		if err = iprot.ReadFieldEnd(); err != nil {
			return err
		}
	}
	return iprot.ReadStructEnd()
}

func (p *WriteResponse) Write(oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin("WriteResponse"); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T write struct begin error: ", p), err)
	}
	if err := oprot.WriteFieldBegin("accepted", thrift.BOOL, 1); err != nil {
		return err
	}
	if err := oprot.WriteBool(p.Accepted); err != nil {
		return err
	}
	if err := oprot.WriteFieldEnd(); err != nil {
		return err
	}
	if err := writeStringField(oprot, "error", 2, p.Error); err != nil {
		return err
	}
	if err := writeI64Field(oprot, "assigned_ordinal", 3, p.AssignedOrdinal); err != nil {
		return err
	}
	if err := oprot.WriteFieldStop(); err != nil {
		return err
	}
	return oprot.WriteStructEnd()
}

// SnapshotResponse carries the latest bmap image. Ordinal 0 with empty
// data means no snapshot exists yet.
type SnapshotResponse struct {
	SnapshotOrdinal int64  `thrift:"snapshot_ordinal,1" frugal:"1,default,i64" json:"snapshot_ordinal"`
	SnapshotData    []byte `thrift:"snapshot_data,2" frugal:"2,default,binary" json:"snapshot_data"`
}

func (p *SnapshotResponse) Read(iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T read struct begin error: ", p), err)
	}
	for {
		_, fieldTypeId, fieldId, err := iprot.ReadFieldBegin()
		if err != nil {
			return thrift.PrependError(fmt.Sprintf("%T field %d read error: ", p, fieldId), err)
		}
		if fieldTypeId == thrift.STOP {
			break
		}
		switch {
		case fieldId == 1 && fieldTypeId == thrift.I64:
			if p.SnapshotOrdinal, err = iprot.ReadI64(); err != nil {
				return err
			}
		case fieldId == 2 && fieldTypeId == thrift.STRING:
			if p.SnapshotData, err = iprot.ReadBinary(); err != nil {
				return err
			}
		default:
			if err = iprot.Skip(fieldTypeId); err != nil {
				return err
			}
		}
		if err = iprot.ReadFieldEnd(); err != nil {
			return err
		}
	}
	return iprot.ReadStructEnd()
}

func (p *SnapshotResponse) Write(oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin("SnapshotResponse"); err != nil {
		return thrift.PrependError(fmt.Sprintf("%T write struct begin error: ", p), err)
	}
	if err := writeI64Field(oprot, "snapshot_ordinal", 1, p.SnapshotOrdinal); err != nil {
		return err
	}
	if err := writeBinaryField(oprot, "snapshot_data", 2, p.SnapshotData); err != nil {
		return err
	}
	if err := oprot.WriteFieldStop(); err != nil {
		return err
	}
	return oprot.WriteStructEnd()
}

func writeI64Field(oprot thrift.TProtocol, name string, id int16, value int64) error {
	if err := oprot.WriteFieldBegin(name, thrift.I64, id); err != nil {
		return err
	}
	if err := oprot.WriteI64(value); err != nil {
		return err
	}
	return oprot.WriteFieldEnd()
}

func writeStringField(oprot thrift.TProtocol, name string, id int16, value string) error {
	if err := oprot.WriteFieldBegin(name, thrift.STRING, id); err != nil {
		return err
	}
	if err := oprot.WriteString(value); err != nil {
		return err
	}
	return oprot.WriteFieldEnd()
}

func writeBinaryField(oprot thrift.TProtocol, name string, id int16, value []byte) error {
	if err := oprot.WriteFieldBegin(name, thrift.STRING, id); err != nil {
		return err
	}
	if err := oprot.WriteBinary(value); err != nil {
		return err
	}
	return oprot.WriteFieldEnd()
}
