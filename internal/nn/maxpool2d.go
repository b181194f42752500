// Package nn implements the layer-level wrappers around the pooling kernels.
package nn

import (
	"fmt"

	"github.com/ravel-ml/ravel/internal/pool"
	"github.com/ravel-ml/ravel/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer that records argmax indices.
//
// Besides the pooled values, Forward returns a mask tensor holding the
// flat position of the winning input element for every output element.
// The mask drives the exact gradient route in Backward and the exact
// upsampling in MaxUnpool2D, which is what encoder/decoder architectures
// need to invert pooling precisely.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
// Mask shape:   same as output
//
// Where:
//
//	out_height = (height - kernel[0] + 2*padding[0]) / stride[0] + 1
//	out_width = (width - kernel[1] + 2*padding[1]) / stride[1] + 1
//
// MaxPool2D has no learnable parameters.
//
// Example:
//
//	// 2x2 non-overlapping pooling
//	layer := nn.NewMaxPool2D([]int{2, 2}, []int{2, 2}, nil, backend)
//
//	input := tensor.Zeros[float32](tensor.Shape{32, 64, 28, 28}, backend)
//	out, mask := layer.Forward(input) // [32, 64, 14, 14] each
type MaxPool2D[B tensor.Backend] struct {
	cfg     pool.Config
	backend B
}

// NewMaxPool2D creates a new 2D max pooling layer.
//
// kernel is required and must have two entries (height, width). A nil
// stride defaults to {1, 1} and a nil padding to {0, 0}. The
// configuration is validated eagerly against a representative shape check
// on the first Forward; structurally invalid arguments panic here.
func NewMaxPool2D[B tensor.Backend](kernel, stride, padding []int, backend B) *MaxPool2D[B] {
	cfg := pool.Default2D(kernel)
	if stride != nil {
		cfg.Stride = append([]int(nil), stride...)
	}
	if padding != nil {
		cfg.Padding = append([]int(nil), padding...)
	}
	validateLayerConfig("maxpool2d", cfg, 2)

	return &MaxPool2D[B]{cfg: cfg, backend: backend}
}

// NewGlobalMaxPool2D creates a 2D max pooling layer that pools each
// channel's entire spatial extent down to a single value. The window and
// padding are derived from the input at Forward time.
func NewGlobalMaxPool2D[B tensor.Backend](backend B) *MaxPool2D[B] {
	cfg := pool.Default2D([]int{1, 1})
	cfg.Global = true
	return &MaxPool2D[B]{cfg: cfg, backend: backend}
}

// Forward performs the forward pass, returning the pooled values and the
// argmax mask.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], *tensor.Tensor[int64, B]) {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}

	cfg := m.cfg.Normalize(inputShape[2:])
	outRaw, maskRaw := m.backend.MaxPool2DWithIndex(input.Raw(), cfg.Kernel, cfg.Stride, cfg.Padding)

	return tensor.New[float32](outRaw, m.backend), tensor.New[int64](maskRaw, m.backend)
}

// Backward routes the output gradient back to the argmax positions.
// input is used only for its shape; overlapping windows accumulate.
func (m *MaxPool2D[B]) Backward(input *tensor.Tensor[float32, B], mask *tensor.Tensor[int64, B], gradOut *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	gradRaw := m.backend.MaxPool2DWithIndexGrad(input.Raw(), mask.Raw(), gradOut.Raw())
	return tensor.New[float32](gradRaw, m.backend)
}

// OutputShape computes the output (and mask) shape for an input shape.
func (m *MaxPool2D[B]) OutputShape(inputShape tensor.Shape) (tensor.Shape, error) {
	return pool.InferShape(inputShape, m.cfg)
}

// Config returns the layer's pooling configuration.
func (m *MaxPool2D[B]) Config() pool.Config {
	return m.cfg
}

// String returns a string representation of the layer.
func (m *MaxPool2D[B]) String() string {
	if m.cfg.Global {
		return "MaxPool2D(global=true)"
	}
	return fmt.Sprintf("MaxPool2D(kernel=%v, stride=%v, padding=%v)",
		m.cfg.Kernel, m.cfg.Stride, m.cfg.Padding)
}

// validateLayerConfig rejects structurally invalid layer arguments.
// Shape-dependent validation happens in pool.InferShape.
func validateLayerConfig(name string, cfg pool.Config, spatialDims int) {
	if len(cfg.Kernel) != spatialDims {
		panic(fmt.Sprintf("%s: kernel must have %d entries, got %d", name, spatialDims, len(cfg.Kernel)))
	}
	if len(cfg.Stride) != spatialDims {
		panic(fmt.Sprintf("%s: stride must have %d entries, got %d", name, spatialDims, len(cfg.Stride)))
	}
	if len(cfg.Padding) != spatialDims {
		panic(fmt.Sprintf("%s: padding must have %d entries, got %d", name, spatialDims, len(cfg.Padding)))
	}
	for i := 0; i < spatialDims; i++ {
		if cfg.Kernel[i] <= 0 {
			panic(fmt.Sprintf("%s: invalid kernel size %d", name, cfg.Kernel[i]))
		}
		if cfg.Stride[i] <= 0 {
			panic(fmt.Sprintf("%s: invalid stride %d", name, cfg.Stride[i]))
		}
		if cfg.Padding[i] < 0 {
			panic(fmt.Sprintf("%s: invalid padding %d", name, cfg.Padding[i]))
		}
	}
}
