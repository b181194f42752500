// Copyright 2025 Ravel ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the public API for the CPU pooling backend.
package cpu

import (
	internalcpu "github.com/ravel-ml/ravel/internal/backend/cpu"
	"github.com/ravel-ml/ravel/internal/parallel"
	"github.com/ravel-ml/ravel/tensor"
)

// Backend represents the CPU backend implementation.
//
// The CPU backend provides pure Go implementations of the pooling
// operations, parallelized across the (batch, channel) plane.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// ParallelConfig controls how kernels split work across goroutines.
type ParallelConfig = parallel.Config

// New creates a new CPU backend with default parallelism.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 3, 32, 32}, backend)
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with explicit parallel configuration.
func NewWithConfig(par ParallelConfig) *Backend {
	return internalcpu.NewWithConfig(par)
}

// Sequential returns a parallel configuration that disables the worker pool.
func Sequential() ParallelConfig {
	return parallel.Sequential()
}
