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

// liblogmap exposes the client to non-Go callers as a c-shared library:
//
//	go build -buildmode=c-shared -o liblogmap.so ./cmd/liblogmap
//
// Handles are registry indices, never Go pointers. Calls block the
// caller; the Go runtime schedules the client's background work. Strings
// returned through out-parameters are C-owned and must be released with
// logmap_string_free.
package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"errors"
	"sync"
	"unicode/utf8"
	"unsafe"

	"github.com/B1NARY-GR0UP/logmap"
)

const (
	_codeSuccess       = 0
	_codeNullPointer   = 1
	_codeInvalidUTF8   = 2
	_codeConnectError  = 3
	_codeGetError      = 4
	_codeInsertError   = 5
	_codeRemoveError   = 6
	_codeInternalError = 99
)

var (
	handleMu   sync.Mutex
	nextHandle uintptr
	handles    = make(map[uintptr]*logmap.LogMap)
)

//export logmap_connect
func logmap_connect(addr *C.char, handleOut *C.uintptr_t) C.int {
	if addr == nil || handleOut == nil {
		return _codeNullPointer
	}
	goAddr := C.GoString(addr)
	if !utf8.ValidString(goAddr) {
		return _codeInvalidUTF8
	}

	m, err := logmap.Connect(goAddr, logmap.DefaultConfig)
	if err != nil {
		return errCode(err, _codeConnectError)
	}

	handleMu.Lock()
	nextHandle++
	handle := nextHandle
	handles[handle] = m
	handleMu.Unlock()

	*handleOut = C.uintptr_t(handle)
	return _codeSuccess
}

//export logmap_free
func logmap_free(handle C.uintptr_t) C.int {
	handleMu.Lock()
	m, ok := handles[uintptr(handle)]
	delete(handles, uintptr(handle))
	handleMu.Unlock()

	if !ok {
		return _codeNullPointer
	}
	if err := m.Close(); err != nil {
		return _codeInternalError
	}
	return _codeSuccess
}

//export logmap_get
func logmap_get(handle C.uintptr_t, key C.int64_t, valueOut **C.char) C.int {
	if valueOut == nil {
		return _codeNullPointer
	}
	m := lookup(handle)
	if m == nil {
		return _codeNullPointer
	}

	value, ok := m.Get(int64(key))
	if !ok {
		*valueOut = nil
		return _codeSuccess
	}
	*valueOut = C.CString(value)
	return _codeSuccess
}

//export logmap_insert
func logmap_insert(handle C.uintptr_t, key C.int64_t, value *C.char) C.int {
	if value == nil {
		return _codeNullPointer
	}
	m := lookup(handle)
	if m == nil {
		return _codeNullPointer
	}

	goValue := C.GoString(value)
	if !utf8.ValidString(goValue) {
		return _codeInvalidUTF8
	}
	if err := m.Insert(int64(key), goValue); err != nil {
		return errCode(err, _codeInsertError)
	}
	return _codeSuccess
}

//export logmap_remove
func logmap_remove(handle C.uintptr_t, key C.int64_t) C.int {
	m := lookup(handle)
	if m == nil {
		return _codeNullPointer
	}
	if err := m.Remove(int64(key)); err != nil {
		return errCode(err, _codeRemoveError)
	}
	return _codeSuccess
}

//export logmap_contains_key
func logmap_contains_key(handle C.uintptr_t, key C.int64_t) C.int {
	m := lookup(handle)
	if m == nil || !m.ContainsKey(int64(key)) {
		return 0
	}
	return 1
}

//export logmap_len
func logmap_len(handle C.uintptr_t) C.size_t {
	m := lookup(handle)
	if m == nil {
		return 0
	}
	return C.size_t(m.Len())
}

//export logmap_is_empty
func logmap_is_empty(handle C.uintptr_t) C.int {
	m := lookup(handle)
	if m == nil || m.IsEmpty() {
		return 1
	}
	return 0
}

//export logmap_string_free
func logmap_string_free(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

func lookup(handle C.uintptr_t) *logmap.LogMap {
	handleMu.Lock()
	defer handleMu.Unlock()
	return handles[uintptr(handle)]
}

// errCode maps client errors onto the enumerated codes: conflicts keep
// the operation's code, remote failures report as get errors, a closed
// stream is internal, and anything else is a transport-level connect
// failure.
func errCode(err error, opCode C.int) C.int {
	var conflict *logmap.ConflictError
	var remote *logmap.RemoteError
	switch {
	case errors.Is(err, logmap.ErrConnectionClosed):
		return _codeInternalError
	case errors.As(err, &conflict):
		return opCode
	case errors.As(err, &remote):
		return _codeGetError
	default:
		return _codeConnectError
	}
}

func main() {}
