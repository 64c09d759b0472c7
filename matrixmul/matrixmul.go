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

// Package matrixmul computes C = A × B cooperatively over a shared
// logmap. Keys: A row i at -(i+1), B row j at -(m+j+1) (comma-joined
// decimal floats), the start signal at key 0, and C[i][j] at i*p+j+1.
// Workers pick random uncomputed cells, so any number of them can join.
package matrixmul

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/B1NARY-GR0UP/logmap"
	"github.com/B1NARY-GR0UP/logmap/pkg/logger"
)

const (
	_startKey    int64 = 0
	_startSignal       = "start"

	_pollInterval = 100 * time.Millisecond
)

var ErrMissingData = errors.New("missing matrix data")

// DimensionError reports incompatible matrix shapes.
type DimensionError struct {
	M, N, BN, P int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("matrix dimension mismatch: A is %dx%d, B is %dx%d", e.M, e.N, e.BN, e.P)
}

// MatrixMul coordinates one participant, either the loader or a worker.
type MatrixMul struct {
	kv     *logmap.LogMap
	logger logger.Logger

	m, n, p int
}

func Connect(addr string, config logmap.Config) (*MatrixMul, error) {
	kv, err := logmap.Connect(addr, config)
	if err != nil {
		return nil, err
	}
	return &MatrixMul{
		kv:     kv,
		logger: logger.GetLogger(),
	}, nil
}

func (mm *MatrixMul) Close() error {
	return mm.kv.Close()
}

// SetSize declares the problem shape for participants that did not load
// the matrices themselves.
func (mm *MatrixMul) SetSize(m, n, p int) {
	mm.m, mm.n, mm.p = m, n, p
}

// Load writes A (m×n) and B (n×p) into the map.
func (mm *MatrixMul) Load(a, b [][]float64) error {
	m := len(a)
	var n int
	if m > 0 {
		n = len(a[0])
	}
	bn := len(b)
	var p int
	if bn > 0 {
		p = len(b[0])
	}
	if n != bn {
		return &DimensionError{M: m, N: n, BN: bn, P: p}
	}
	mm.m, mm.n, mm.p = m, n, p

	for i, row := range a {
		if err := mm.kv.Insert(-(int64(i) + 1), joinRow(row)); err != nil {
			return err
		}
	}
	for j, row := range b {
		if err := mm.kv.Insert(-(int64(m) + int64(j) + 1), joinRow(row)); err != nil {
			return err
		}
	}
	return nil
}

// Start signals workers to begin.
func (mm *MatrixMul) Start() error {
	return mm.kv.Insert(_startKey, _startSignal)
}

// Work runs the worker loop until the result matrix is complete or ctx is
// cancelled. It returns how many cells this worker computed.
func (mm *MatrixMul) Work(ctx context.Context) (int, error) {
	if mm.m == 0 || mm.n == 0 || mm.p == 0 {
		return 0, errors.New("matrix size not set")
	}

	var computed int
	for {
		if mm.isComplete() {
			return computed, nil
		}

		if !mm.kv.ContainsKey(_startKey) {
			if err := sleep(ctx, _pollInterval); err != nil {
				return computed, err
			}
			continue
		}

		i, j := rand.IntN(mm.m), rand.IntN(mm.p)
		if !mm.kv.ContainsKey(resultKey(i, j, mm.p)) {
			if err := mm.compute(i, j); err != nil {
				mm.logger.Debugf("compute C[%d][%d]: %v", i, j, err)
			} else {
				computed++
			}
		}

		if err := sleep(ctx, _pollInterval); err != nil {
			return computed, err
		}
	}
}

// WaitForCompletion polls until every result cell is present.
func (mm *MatrixMul) WaitForCompletion(ctx context.Context, m, p int) error {
	for {
		var count int
		for idx := 1; idx <= m*p; idx++ {
			if mm.kv.ContainsKey(int64(idx)) {
				count++
			}
		}
		if count == m*p {
			return nil
		}
		if err := sleep(ctx, _pollInterval); err != nil {
			return err
		}
	}
}

// Result assembles the m×p result matrix from the map.
func (mm *MatrixMul) Result(m, p int) ([][]float64, error) {
	result := make([][]float64, m)
	for i := range result {
		result[i] = make([]float64, p)
		for j := range result[i] {
			value, ok := mm.kv.Get(resultKey(i, j, p))
			if !ok {
				return nil, fmt.Errorf("%w at key %d", ErrMissingData, resultKey(i, j, p))
			}
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("parse result at key %d: %w", resultKey(i, j, p), err)
			}
			result[i][j] = parsed
		}
	}
	return result, nil
}

func (mm *MatrixMul) compute(i, j int) error {
	rowA, err := mm.row(-(int64(i) + 1))
	if err != nil {
		return err
	}

	colB := make([]float64, 0, mm.n)
	for k := range mm.n {
		rowB, err := mm.row(-(int64(mm.m) + int64(k) + 1))
		if err != nil {
			return err
		}
		if j >= len(rowB) {
			return fmt.Errorf("%w: B row %d has no column %d", ErrMissingData, k, j)
		}
		colB = append(colB, rowB[j])
	}

	var sum float64
	for k := range min(len(rowA), len(colB)) {
		sum += rowA[k] * colB[k]
	}
	return mm.kv.Insert(resultKey(i, j, mm.p), strconv.FormatFloat(sum, 'f', -1, 64))
}

func (mm *MatrixMul) row(key int64) ([]float64, error) {
	value, ok := mm.kv.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w at key %d", ErrMissingData, key)
	}
	fields := strings.Split(value, ",")
	row := make([]float64, 0, len(fields))
	for _, field := range fields {
		parsed, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("parse row at key %d: %w", key, err)
		}
		row = append(row, parsed)
	}
	return row, nil
}

func (mm *MatrixMul) isComplete() bool {
	total := mm.m * mm.p
	if total == 0 {
		return false
	}
	for idx := 1; idx <= total; idx++ {
		if !mm.kv.ContainsKey(int64(idx)) {
			return false
		}
	}
	return true
}

func resultKey(i, j, p int) int64 {
	return int64(i*p + j + 1)
}

func joinRow(row []float64) string {
	fields := make([]string, len(row))
	for i, v := range row {
		fields[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(fields, ",")
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
