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

// Demo driver for cooperative matrix multiplication over a log server.
//
//	matrixmul <addr> <mode> [args...]
//
// Modes: load <m> <n> <p>, start, client, result <m> <p>.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/B1NARY-GR0UP/logmap"
	"github.com/B1NARY-GR0UP/logmap/matrixmul"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		os.Exit(1)
	}
}

func run(args []string) error {
	addr := "localhost:50051"
	if len(args) > 0 {
		addr = args[0]
	}
	mode := "client"
	if len(args) > 1 {
		mode = args[1]
	}

	m := intArg(args, 2, 2)
	n := intArg(args, 3, 2)
	p := intArg(args, 4, 2)

	mm, err := matrixmul.Connect(addr, logmap.DefaultConfig)
	if err != nil {
		return err
	}
	defer mm.Close()
	mm.SetSize(m, n, p)

	switch mode {
	case "load":
		a := sequentialMatrix(m, n)
		b := sequentialMatrix(n, p)
		// B continues the count where A stops
		for _, row := range b {
			for j := range row {
				row[j] += float64(m * n)
			}
		}
		fmt.Printf("loading %dx%d matrix A and %dx%d matrix B\n", m, n, n, p)
		if err := mm.Load(a, b); err != nil {
			return err
		}
		fmt.Println("matrices loaded, run 'start' to begin computation")
	case "start":
		if err := mm.Start(); err != nil {
			return err
		}
		fmt.Println("computation started, workers can now run")
	case "client":
		fmt.Printf("worker (pid %d) connecting to %s\n", os.Getpid(), addr)
		computed, err := mm.Work(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("worker done, computed %d cells\n", computed)
	case "result":
		p = intArg(args, 3, 2)
		fmt.Println("waiting for completion...")
		if err := mm.WaitForCompletion(context.Background(), m, p); err != nil {
			return err
		}
		result, err := mm.Result(m, p)
		if err != nil {
			return err
		}
		fmt.Printf("result (%dx%d):\n", m, p)
		for _, row := range result {
			fmt.Printf("  %v\n", row)
		}
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
	return nil
}

// sequentialMatrix fills rows×cols with 1, 2, 3, ... row-major. With B
// offset by m*n in load, the 2×2 defaults give the canonical demo input
// A = [[1,2],[3,4]], B = [[5,6],[7,8]].
func sequentialMatrix(rows, cols int) [][]float64 {
	matrix := make([][]float64, rows)
	value := 1.0
	for i := range matrix {
		matrix[i] = make([]float64, cols)
		for j := range matrix[i] {
			matrix[i][j] = value
			value++
		}
	}
	return matrix
}

func intArg(args []string, idx, fallback int) int {
	if idx >= len(args) {
		return fallback
	}
	parsed, err := strconv.Atoi(args[idx])
	if err != nil {
		return fallback
	}
	return parsed
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: matrixmul <addr> <mode> [args...]")
	fmt.Fprintln(os.Stderr, "modes:")
	fmt.Fprintln(os.Stderr, "  load <m> <n> <p>   load m×n and n×p matrices")
	fmt.Fprintln(os.Stderr, "  start              start computation")
	fmt.Fprintln(os.Stderr, "  client             run a worker (default)")
	fmt.Fprintln(os.Stderr, "  result <m> <p>     wait and print the result matrix")
}
