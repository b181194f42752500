package tensor

import "fmt"

// Verify that MockBackend implements Backend.
var _ Backend = (*MockBackend)(nil)

// MockBackend is a simple backend for testing.
// It implements all operations naively for correctness verification:
// coordinate arithmetic everywhere, no pre-slicing, no parallelism,
// all floats widened to float64.
type MockBackend struct{}

// NewMockBackend creates a new MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return "mock"
}

// Device returns the device type.
func (m *MockBackend) Device() Device {
	return CPU
}

// MaxPool2DWithIndex performs naive 2D max pooling with index tracking.
func (m *MockBackend) MaxPool2DWithIndex(x *RawTensor, kernel, stride, padding []int) (*RawTensor, *RawTensor) {
	inShape := x.Shape()
	if len(inShape) != 4 {
		panic(fmt.Sprintf("mock maxpool2d_with_index: expected 4D input, got %dD", len(inShape)))
	}
	N, C, H, W := inShape[0], inShape[1], inShape[2], inShape[3]
	HOut := (H-kernel[0]+2*padding[0])/stride[0] + 1
	WOut := (W-kernel[1]+2*padding[1])/stride[1] + 1

	out, mask := m.newOutputs(Shape{N, C, HOut, WOut}, x.DType())
	xData := m.toFloat64Slice(x)
	outData := make([]float64, out.NumElements())
	maskData := mask.AsInt64()

	o := 0
	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			base := (n*C + c) * H * W
			for oh := 0; oh < HOut; oh++ {
				for ow := 0; ow < WOut; ow++ {
					first := true
					var bestVal float64
					var bestIdx int
					for kh := 0; kh < kernel[0]; kh++ {
						for kw := 0; kw < kernel[1]; kw++ {
							h := oh*stride[0] - padding[0] + kh
							w := ow*stride[1] - padding[1] + kw
							if h < 0 || h >= H || w < 0 || w >= W {
								continue
							}
							val := xData[base+h*W+w]
							if first || val > bestVal {
								first = false
								bestVal = val
								bestIdx = h*W + w
							}
						}
					}
					if first {
						panic("mock maxpool2d_with_index: empty pooling window")
					}
					outData[o] = bestVal
					maskData[o] = int64(bestIdx)
					o++
				}
			}
		}
	}

	m.fromFloat64Slice(outData, out)
	return out, mask
}

// MaxPool2DWithIndexGrad performs a naive gradient scatter.
func (m *MockBackend) MaxPool2DWithIndexGrad(x, mask, gradOut *RawTensor) *RawTensor {
	return m.scatterAdd(x, mask, gradOut)
}

// MaxPool3DWithIndex performs naive 3D max pooling with index tracking.
func (m *MockBackend) MaxPool3DWithIndex(x *RawTensor, kernel, stride, padding []int) (*RawTensor, *RawTensor) {
	inShape := x.Shape()
	if len(inShape) != 5 {
		panic(fmt.Sprintf("mock maxpool3d_with_index: expected 5D input, got %dD", len(inShape)))
	}
	N, C, D, H, W := inShape[0], inShape[1], inShape[2], inShape[3], inShape[4]
	DOut := (D-kernel[0]+2*padding[0])/stride[0] + 1
	HOut := (H-kernel[1]+2*padding[1])/stride[1] + 1
	WOut := (W-kernel[2]+2*padding[2])/stride[2] + 1

	out, mask := m.newOutputs(Shape{N, C, DOut, HOut, WOut}, x.DType())
	xData := m.toFloat64Slice(x)
	outData := make([]float64, out.NumElements())
	maskData := mask.AsInt64()

	o := 0
	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			base := (n*C + c) * D * H * W
			for od := 0; od < DOut; od++ {
				for oh := 0; oh < HOut; oh++ {
					for ow := 0; ow < WOut; ow++ {
						first := true
						var bestVal float64
						var bestIdx int
						for kd := 0; kd < kernel[0]; kd++ {
							for kh := 0; kh < kernel[1]; kh++ {
								for kw := 0; kw < kernel[2]; kw++ {
									d := od*stride[0] - padding[0] + kd
									h := oh*stride[1] - padding[1] + kh
									w := ow*stride[2] - padding[2] + kw
									if d < 0 || d >= D || h < 0 || h >= H || w < 0 || w >= W {
										continue
									}
									val := xData[base+(d*H+h)*W+w]
									if first || val > bestVal {
										first = false
										bestVal = val
										bestIdx = (d*H+h)*W + w
									}
								}
							}
						}
						if first {
							panic("mock maxpool3d_with_index: empty pooling window")
						}
						outData[o] = bestVal
						maskData[o] = int64(bestIdx)
						o++
					}
				}
			}
		}
	}

	m.fromFloat64Slice(outData, out)
	return out, mask
}

// MaxPool3DWithIndexGrad performs a naive gradient scatter.
func (m *MockBackend) MaxPool3DWithIndexGrad(x, mask, gradOut *RawTensor) *RawTensor {
	return m.scatterAdd(x, mask, gradOut)
}

// MaxUnpool2D performs a naive unpooling scatter.
func (m *MockBackend) MaxUnpool2D(pooled, mask *RawTensor, outShape Shape) *RawTensor {
	return m.scatterPlace(pooled, mask, outShape)
}

// MaxUnpool3D performs a naive unpooling scatter.
func (m *MockBackend) MaxUnpool3D(pooled, mask *RawTensor, outShape Shape) *RawTensor {
	return m.scatterPlace(pooled, mask, outShape)
}

// scatterAdd is the shared naive gradient scatter: dx[decoded(idx)] += dOut.
func (m *MockBackend) scatterAdd(x, mask, gradOut *RawTensor) *RawTensor {
	dx, err := NewRaw(x.Shape(), gradOut.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	N, C := x.Shape()[0], x.Shape()[1]
	inSlice := x.Shape()[2:].NumElements()
	outSlice := mask.Shape()[2:].NumElements()

	dxData := make([]float64, dx.NumElements())
	gradData := m.toFloat64Slice(gradOut)
	maskData := mask.AsInt64()

	for nc := 0; nc < N*C; nc++ {
		for i := 0; i < outSlice; i++ {
			idx := maskData[nc*outSlice+i]
			if idx < 0 || idx >= int64(inSlice) {
				panic(fmt.Sprintf("mock scatter: corrupted mask index %d for slice size %d", idx, inSlice))
			}
			dxData[nc*inSlice+int(idx)] += gradData[nc*outSlice+i]
		}
	}

	m.fromFloat64Slice(dxData, dx)
	return dx
}

// scatterPlace is the shared naive unpooling scatter: out[decoded(idx)] = pooled.
func (m *MockBackend) scatterPlace(pooled, mask *RawTensor, outShape Shape) *RawTensor {
	out, err := NewRaw(outShape, pooled.DType(), m.Device())
	if err != nil {
		panic(err)
	}

	N, C := outShape[0], outShape[1]
	outSlice := outShape[2:].NumElements()
	inSlice := pooled.Shape()[2:].NumElements()

	outData := make([]float64, out.NumElements())
	pooledData := m.toFloat64Slice(pooled)
	maskData := mask.AsInt64()

	for nc := 0; nc < N*C; nc++ {
		for i := 0; i < inSlice; i++ {
			idx := maskData[nc*inSlice+i]
			if idx < 0 || idx >= int64(outSlice) {
				panic(fmt.Sprintf("mock scatter: corrupted mask index %d for slice size %d", idx, outSlice))
			}
			outData[nc*outSlice+int(idx)] = pooledData[nc*inSlice+i]
		}
	}

	m.fromFloat64Slice(outData, out)
	return out
}

// newOutputs allocates an output tensor of the given dtype and an Int64 mask.
func (m *MockBackend) newOutputs(shape Shape, dtype DataType) (*RawTensor, *RawTensor) {
	out, err := NewRaw(shape, dtype, m.Device())
	if err != nil {
		panic(err)
	}
	mask, err := NewRaw(shape, Int64, m.Device())
	if err != nil {
		panic(err)
	}
	return out, mask
}

// toFloat64Slice converts tensor data to []float64 for generic processing.
func (m *MockBackend) toFloat64Slice(t *RawTensor) []float64 {
	n := t.NumElements()
	result := make([]float64, n)

	switch t.DType() {
	case Float32:
		data := t.AsFloat32()
		for i := 0; i < n; i++ {
			result[i] = float64(data[i])
		}
	case Float64:
		copy(result, t.AsFloat64())
	case Int32:
		data := t.AsInt32()
		for i := 0; i < n; i++ {
			result[i] = float64(data[i])
		}
	case Int64:
		data := t.AsInt64()
		for i := 0; i < n; i++ {
			result[i] = float64(data[i])
		}
	default:
		panic(fmt.Sprintf("unsupported dtype %s", t.DType()))
	}

	return result
}

// fromFloat64Slice writes float64 data back into the tensor's dtype.
func (m *MockBackend) fromFloat64Slice(data []float64, t *RawTensor) {
	switch t.DType() {
	case Float32:
		out := t.AsFloat32()
		for i := range data {
			out[i] = float32(data[i])
		}
	case Float64:
		copy(t.AsFloat64(), data)
	case Int32:
		out := t.AsInt32()
		for i := range data {
			out[i] = int32(data[i])
		}
	case Int64:
		out := t.AsInt64()
		for i := range data {
			out[i] = int64(data[i])
		}
	default:
		panic(fmt.Sprintf("unsupported dtype %s", t.DType()))
	}
}
