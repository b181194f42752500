package nn

import (
	"fmt"

	"github.com/ravel-ml/ravel/internal/pool"
	"github.com/ravel-ml/ravel/internal/tensor"
)

// MaxPool3D is the volumetric counterpart of MaxPool2D.
//
// Input shape:  [batch, channels, depth, height, width]
// Output shape: [batch, channels, out_depth, out_height, out_width]
// Mask shape:   same as output
//
// The mask encodes the winning position within the (n, c) volume as a
// single flat offset: (d*H + h)*W + w.
type MaxPool3D[B tensor.Backend] struct {
	cfg     pool.Config
	backend B
}

// NewMaxPool3D creates a new 3D max pooling layer.
//
// kernel is required and must have three entries (depth, height, width).
// A nil stride defaults to {1, 1, 1} and a nil padding to {0, 0, 0}.
func NewMaxPool3D[B tensor.Backend](kernel, stride, padding []int, backend B) *MaxPool3D[B] {
	cfg := pool.Default3D(kernel)
	if stride != nil {
		cfg.Stride = append([]int(nil), stride...)
	}
	if padding != nil {
		cfg.Padding = append([]int(nil), padding...)
	}
	validateLayerConfig("maxpool3d", cfg, 3)

	return &MaxPool3D[B]{cfg: cfg, backend: backend}
}

// NewGlobalMaxPool3D creates a 3D max pooling layer that pools each
// channel's entire spatial volume down to a single value.
func NewGlobalMaxPool3D[B tensor.Backend](backend B) *MaxPool3D[B] {
	cfg := pool.Default3D([]int{1, 1, 1})
	cfg.Global = true
	return &MaxPool3D[B]{cfg: cfg, backend: backend}
}

// Forward performs the forward pass, returning the pooled values and the
// argmax mask.
func (m *MaxPool3D[B]) Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], *tensor.Tensor[int64, B]) {
	inputShape := input.Shape()
	if len(inputShape) != 5 {
		panic(fmt.Sprintf("maxpool3d: expected 5D input [N,C,D,H,W], got %dD", len(inputShape)))
	}

	cfg := m.cfg.Normalize(inputShape[2:])
	outRaw, maskRaw := m.backend.MaxPool3DWithIndex(input.Raw(), cfg.Kernel, cfg.Stride, cfg.Padding)

	return tensor.New[float32](outRaw, m.backend), tensor.New[int64](maskRaw, m.backend)
}

// Backward routes the output gradient back to the argmax positions.
func (m *MaxPool3D[B]) Backward(input *tensor.Tensor[float32, B], mask *tensor.Tensor[int64, B], gradOut *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	gradRaw := m.backend.MaxPool3DWithIndexGrad(input.Raw(), mask.Raw(), gradOut.Raw())
	return tensor.New[float32](gradRaw, m.backend)
}

// OutputShape computes the output (and mask) shape for an input shape.
func (m *MaxPool3D[B]) OutputShape(inputShape tensor.Shape) (tensor.Shape, error) {
	return pool.InferShape(inputShape, m.cfg)
}

// Config returns the layer's pooling configuration.
func (m *MaxPool3D[B]) Config() pool.Config {
	return m.cfg
}

// String returns a string representation of the layer.
func (m *MaxPool3D[B]) String() string {
	if m.cfg.Global {
		return "MaxPool3D(global=true)"
	}
	return fmt.Sprintf("MaxPool3D(kernel=%v, stride=%v, padding=%v)",
		m.cfg.Kernel, m.cfg.Stride, m.cfg.Padding)
}
