// Copyright 2025 Ravel ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for the pooling layers.
package nn

import (
	"github.com/ravel-ml/ravel/internal/nn"
	"github.com/ravel-ml/ravel/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer that records argmax indices.
type MaxPool2D[B tensor.Backend] = nn.MaxPool2D[B]

// NewMaxPool2D creates a new 2D max pooling layer.
//
// kernel must have two entries (height, width). A nil stride defaults to
// {1, 1} and a nil padding to {0, 0}.
//
// Example:
//
//	pool := nn.NewMaxPool2D([]int{2, 2}, []int{2, 2}, nil, backend)
//	out, mask := pool.Forward(input)
func NewMaxPool2D[B tensor.Backend](kernel, stride, padding []int, backend B) *MaxPool2D[B] {
	return nn.NewMaxPool2D(kernel, stride, padding, backend)
}

// NewGlobalMaxPool2D creates a 2D max pooling layer that pools each
// channel's entire spatial extent down to a single value.
func NewGlobalMaxPool2D[B tensor.Backend](backend B) *MaxPool2D[B] {
	return nn.NewGlobalMaxPool2D[B](backend)
}

// MaxPool3D is the volumetric counterpart of MaxPool2D.
type MaxPool3D[B tensor.Backend] = nn.MaxPool3D[B]

// NewMaxPool3D creates a new 3D max pooling layer.
// kernel must have three entries (depth, height, width).
func NewMaxPool3D[B tensor.Backend](kernel, stride, padding []int, backend B) *MaxPool3D[B] {
	return nn.NewMaxPool3D(kernel, stride, padding, backend)
}

// NewGlobalMaxPool3D creates a 3D max pooling layer that pools each
// channel's entire spatial volume down to a single value.
func NewGlobalMaxPool3D[B tensor.Backend](backend B) *MaxPool3D[B] {
	return nn.NewGlobalMaxPool3D[B](backend)
}

// MaxUnpool2D inverts a MaxPool2D layer using its recorded mask.
type MaxUnpool2D[B tensor.Backend] = nn.MaxUnpool2D[B]

// NewMaxUnpool2D creates a new 2D max unpooling layer.
func NewMaxUnpool2D[B tensor.Backend](backend B) *MaxUnpool2D[B] {
	return nn.NewMaxUnpool2D[B](backend)
}

// MaxUnpool3D is the volumetric counterpart of MaxUnpool2D.
type MaxUnpool3D[B tensor.Backend] = nn.MaxUnpool3D[B]

// NewMaxUnpool3D creates a new 3D max unpooling layer.
func NewMaxUnpool3D[B tensor.Backend](backend B) *MaxUnpool3D[B] {
	return nn.NewMaxUnpool3D[B](backend)
}
