package nn

import (
	"fmt"

	"github.com/ravel-ml/ravel/internal/tensor"
)

// MaxUnpool2D inverts a MaxPool2D layer using its recorded mask.
//
// Forward places each pooled value back at the exact position the pooling
// layer picked it from; all other positions in the output are zero. This
// is the decoder half of SegNet-style encoder/decoder networks.
type MaxUnpool2D[B tensor.Backend] struct {
	backend B
}

// NewMaxUnpool2D creates a new 2D max unpooling layer.
func NewMaxUnpool2D[B tensor.Backend](backend B) *MaxUnpool2D[B] {
	return &MaxUnpool2D[B]{backend: backend}
}

// Forward scatters pooled values through the mask into a zero tensor of
// outShape, which must be the [N,C,H,W] shape of the original pooling input.
func (m *MaxUnpool2D[B]) Forward(pooled *tensor.Tensor[float32, B], mask *tensor.Tensor[int64, B], outShape tensor.Shape) *tensor.Tensor[float32, B] {
	if len(outShape) != 4 {
		panic(fmt.Sprintf("maxunpool2d: expected 4D output shape, got %dD", len(outShape)))
	}
	outRaw := m.backend.MaxUnpool2D(pooled.Raw(), mask.Raw(), outShape)
	return tensor.New[float32](outRaw, m.backend)
}

// String returns a string representation of the layer.
func (m *MaxUnpool2D[B]) String() string {
	return "MaxUnpool2D()"
}

// MaxUnpool3D is the volumetric counterpart of MaxUnpool2D.
type MaxUnpool3D[B tensor.Backend] struct {
	backend B
}

// NewMaxUnpool3D creates a new 3D max unpooling layer.
func NewMaxUnpool3D[B tensor.Backend](backend B) *MaxUnpool3D[B] {
	return &MaxUnpool3D[B]{backend: backend}
}

// Forward scatters pooled values through the mask into a zero tensor of
// outShape, which must be the [N,C,D,H,W] shape of the original pooling input.
func (m *MaxUnpool3D[B]) Forward(pooled *tensor.Tensor[float32, B], mask *tensor.Tensor[int64, B], outShape tensor.Shape) *tensor.Tensor[float32, B] {
	if len(outShape) != 5 {
		panic(fmt.Sprintf("maxunpool3d: expected 5D output shape, got %dD", len(outShape)))
	}
	outRaw := m.backend.MaxUnpool3D(pooled.Raw(), mask.Raw(), outShape)
	return tensor.New[float32](outRaw, m.backend)
}

// String returns a string representation of the layer.
func (m *MaxUnpool3D[B]) String() string {
	return "MaxUnpool3D()"
}
