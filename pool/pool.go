// Copyright 2025 Ravel ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package pool provides the public API for pooling configuration and
// shape inference.
package pool

import (
	"github.com/ravel-ml/ravel/internal/pool"
	"github.com/ravel-ml/ravel/internal/tensor"
)

// Config describes a max pooling invocation: window size, stride, and
// padding per spatial axis, plus the global pooling flag.
type Config = pool.Config

// Default2D returns a 2D pooling config with stride {1,1} and padding {0,0}.
func Default2D(kernel []int) Config {
	return pool.Default2D(kernel)
}

// Default3D returns a 3D pooling config with stride {1,1,1} and padding {0,0,0}.
func Default3D(kernel []int) Config {
	return pool.Default3D(kernel)
}

// InferShape validates the pooling configuration against the input shape
// and computes the output (and mask) shape.
func InferShape(in tensor.Shape, cfg Config) (tensor.Shape, error) {
	return pool.InferShape(in, cfg)
}

// InferGradShape computes the shape of the input gradient, which always
// equals the input shape.
func InferGradShape(x, mask tensor.Shape) (tensor.Shape, error) {
	return pool.InferGradShape(x, mask)
}
