// Copyright 2025 Ravel ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops provides the public API for name-based operator dispatch.
package ops

import (
	"github.com/ravel-ml/ravel/internal/ops"
)

// Registered operator names.
const (
	OpMaxPool2DWithIndex     = ops.OpMaxPool2DWithIndex
	OpMaxPool2DWithIndexGrad = ops.OpMaxPool2DWithIndexGrad
	OpMaxPool3DWithIndex     = ops.OpMaxPool3DWithIndex
	OpMaxPool3DWithIndexGrad = ops.OpMaxPool3DWithIndexGrad
	OpMaxUnpool2D            = ops.OpMaxUnpool2D
	OpMaxUnpool3D            = ops.OpMaxUnpool3D
)

// Handler executes one operator against typed configuration and inputs.
type Handler = ops.Handler

// Context provides backend and other execution context for operators.
type Context = ops.Context

// Registry maps operator names to handler functions.
type Registry = ops.Registry

// NewRegistry creates a registry with all pooling operators registered.
//
// Example:
//
//	reg := ops.NewRegistry()
//	ctx := &ops.Context{Backend: cpu.New()}
//	outs, err := reg.Execute(ctx, ops.OpMaxPool2DWithIndex, cfg, []*tensor.RawTensor{x})
func NewRegistry() *Registry {
	return ops.NewRegistry()
}
