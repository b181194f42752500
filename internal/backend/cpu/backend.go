// Package cpu implements the pure-Go CPU kernels for max pooling with index.
package cpu

import (
	"github.com/ravel-ml/ravel/internal/parallel"
	"github.com/ravel-ml/ravel/internal/tensor"
)

// CPUBackend implements the pooling operations on CPU.
//
// Kernels partition work across the (batch, channel) plane: each worker
// owns its spatial slice exclusively, so no locking is needed in either
// the forward or the backward pass.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend with default parallelism.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// NewWithConfig creates a CPU backend with explicit parallel configuration.
// Useful for benchmarking and for forcing sequential execution in tests.
func NewWithConfig(par parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    par,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Verify that CPUBackend implements Backend.
var _ tensor.Backend = (*CPUBackend)(nil)
