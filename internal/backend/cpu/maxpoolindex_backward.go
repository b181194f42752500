package cpu

import (
	"fmt"

	"github.com/ravel-ml/ravel/internal/parallel"
	"github.com/ravel-ml/ravel/internal/pool"
	"github.com/ravel-ml/ravel/internal/tensor"
)

// MaxPool2DWithIndexGrad computes the input gradient for MaxPool2DWithIndex.
//
// The forward mask makes the backward pass a pure scatter: every output
// gradient is added to the input position its mask entry points at. No
// window scan, no argmax recomputation. Accumulation (not assignment) is
// required because overlapping windows (stride < kernel) can route several
// output positions to the same input element.
//
// x is used only for its shape. The returned gradient tensor is freshly
// allocated and zero-initialized before accumulation.
func (cpu *CPUBackend) MaxPool2DWithIndexGrad(x, mask, gradOut *tensor.RawTensor) *tensor.RawTensor {
	return cpu.maxPoolIndexGrad(x, mask, gradOut, 4, "maxpool2d_with_index_grad")
}

// MaxPool3DWithIndexGrad computes the input gradient for MaxPool3DWithIndex.
func (cpu *CPUBackend) MaxPool3DWithIndexGrad(x, mask, gradOut *tensor.RawTensor) *tensor.RawTensor {
	return cpu.maxPoolIndexGrad(x, mask, gradOut, 5, "maxpool3d_with_index_grad")
}

// maxPoolIndexGrad is the rank-agnostic scatter shared by both variants.
// Decoding a mask entry is a single addition: slice base + flat offset.
func (cpu *CPUBackend) maxPoolIndexGrad(x, mask, gradOut *tensor.RawTensor, rank int, opName string) *tensor.RawTensor {
	inShape := x.Shape()
	if len(inShape) != rank {
		panic(fmt.Sprintf("%s: expected %dD input, got %dD", opName, rank, len(inShape)))
	}
	if !mask.Shape().Equal(gradOut.Shape()) {
		panic(fmt.Sprintf("%s: mask shape %v != output gradient shape %v", opName, mask.Shape(), gradOut.Shape()))
	}
	if mask.DType() != tensor.Int64 {
		panic(fmt.Sprintf("%s: mask dtype must be int64, got %s", opName, mask.DType()))
	}

	gradShape, err := pool.InferGradShape(inShape, mask.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", opName, err))
	}

	N := inShape[0]
	C := inShape[1]
	if mask.Shape()[0] != N || mask.Shape()[1] != C {
		panic(fmt.Sprintf("%s: input batch/channels %dx%d != mask batch/channels %dx%d",
			opName, N, C, mask.Shape()[0], mask.Shape()[1]))
	}

	inSlice := inShape[2:].NumElements()
	outSlice := mask.Shape()[2:].NumElements()

	dx, err := tensor.NewRaw(gradShape, gradOut.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create gradient tensor: %v", opName, err))
	}

	switch gradOut.DType() {
	case tensor.Float32:
		scatterAddFloat32(dx, gradOut, mask.AsInt64(), N, C, inSlice, outSlice, opName, cpu.par)
	case tensor.Float64:
		scatterAddFloat64(dx, gradOut, mask.AsInt64(), N, C, inSlice, outSlice, opName, cpu.par)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", opName, gradOut.DType()))
	}

	return dx
}

// scatterAddFloat32 accumulates gradOut into dx at the decoded mask positions.
// Parallel across (n,c) only: scatter targets within one slice can collide
// when windows overlap, so positions inside a slice stay serialized.
func scatterAddFloat32(dx, gradOut *tensor.RawTensor, maskData []int64, N, C, inSlice, outSlice int, opName string, par parallel.Config) {
	dxData := dx.AsFloat32()
	gradData := gradOut.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		dxSlice := dxData[(n*C+c)*inSlice : (n*C+c+1)*inSlice]
		outBase := (n*C + c) * outSlice

		for i := 0; i < outSlice; i++ {
			idx := maskData[outBase+i]
			// An index outside the slice means the mask was corrupted
			// after the forward pass; never clamp silently.
			if idx < 0 || idx >= int64(inSlice) {
				panic(fmt.Sprintf("%s: corrupted mask: index %d outside spatial slice of size %d", opName, idx, inSlice))
			}
			dxSlice[idx] += gradData[outBase+i]
		}
	}, par)
}

// scatterAddFloat64 accumulates gradOut into dx at the decoded mask positions.
func scatterAddFloat64(dx, gradOut *tensor.RawTensor, maskData []int64, N, C, inSlice, outSlice int, opName string, par parallel.Config) {
	dxData := dx.AsFloat64()
	gradData := gradOut.AsFloat64()

	parallel.ForBatch(N, C, func(n, c int) {
		dxSlice := dxData[(n*C+c)*inSlice : (n*C+c+1)*inSlice]
		outBase := (n*C + c) * outSlice

		for i := 0; i < outSlice; i++ {
			idx := maskData[outBase+i]
			if idx < 0 || idx >= int64(inSlice) {
				panic(fmt.Sprintf("%s: corrupted mask: index %d outside spatial slice of size %d", opName, idx, inSlice))
			}
			dxSlice[idx] += gradData[outBase+i]
		}
	}, par)
}
