package cpu

import (
	"fmt"

	"github.com/ravel-ml/ravel/internal/parallel"
	"github.com/ravel-ml/ravel/internal/tensor"
)

// MaxUnpool2D inverts MaxPool2DWithIndex: pooled values are routed back
// through the mask into a zero tensor of the given [N,C,H,W] shape.
//
// Positions that did not win any pooling window stay zero. Unlike the
// gradient scatter this assigns rather than accumulates: the operation
// places values, and with a mask produced by non-overlapping pooling every
// target position is written at most once.
//
// Encoder/decoder networks (SegNet-style) use this to upsample feature
// maps at the exact locations the encoder picked.
func (cpu *CPUBackend) MaxUnpool2D(pooled, mask *tensor.RawTensor, outShape tensor.Shape) *tensor.RawTensor {
	return cpu.maxUnpool(pooled, mask, outShape, 4, "maxunpool2d")
}

// MaxUnpool3D is the [N,C,D,H,W] variant of MaxUnpool2D.
func (cpu *CPUBackend) MaxUnpool3D(pooled, mask *tensor.RawTensor, outShape tensor.Shape) *tensor.RawTensor {
	return cpu.maxUnpool(pooled, mask, outShape, 5, "maxunpool3d")
}

func (cpu *CPUBackend) maxUnpool(pooled, mask *tensor.RawTensor, outShape tensor.Shape, rank int, opName string) *tensor.RawTensor {
	if len(outShape) != rank {
		panic(fmt.Sprintf("%s: expected %dD output shape, got %dD", opName, rank, len(outShape)))
	}
	if !pooled.Shape().Equal(mask.Shape()) {
		panic(fmt.Sprintf("%s: pooled shape %v != mask shape %v", opName, pooled.Shape(), mask.Shape()))
	}
	if mask.DType() != tensor.Int64 {
		panic(fmt.Sprintf("%s: mask dtype must be int64, got %s", opName, mask.DType()))
	}

	N := outShape[0]
	C := outShape[1]
	if pooled.Shape()[0] != N || pooled.Shape()[1] != C {
		panic(fmt.Sprintf("%s: pooled batch/channels %dx%d != output batch/channels %dx%d",
			opName, pooled.Shape()[0], pooled.Shape()[1], N, C))
	}

	outSlice := outShape[2:].NumElements()
	inSlice := pooled.Shape()[2:].NumElements()

	out, err := tensor.NewRaw(outShape, pooled.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create output: %v", opName, err))
	}

	switch pooled.DType() {
	case tensor.Float32:
		scatterPlaceFloat32(out, pooled, mask.AsInt64(), N, C, outSlice, inSlice, opName, cpu.par)
	case tensor.Float64:
		scatterPlaceFloat64(out, pooled, mask.AsInt64(), N, C, outSlice, inSlice, opName, cpu.par)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", opName, pooled.DType()))
	}

	return out
}

// scatterPlaceFloat32 writes pooled values at the decoded mask positions.
func scatterPlaceFloat32(out, pooled *tensor.RawTensor, maskData []int64, N, C, outSlice, inSlice int, opName string, par parallel.Config) {
	outData := out.AsFloat32()
	pooledData := pooled.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		outSliceData := outData[(n*C+c)*outSlice : (n*C+c+1)*outSlice]
		inBase := (n*C + c) * inSlice

		for i := 0; i < inSlice; i++ {
			idx := maskData[inBase+i]
			if idx < 0 || idx >= int64(outSlice) {
				panic(fmt.Sprintf("%s: corrupted mask: index %d outside spatial slice of size %d", opName, idx, outSlice))
			}
			outSliceData[idx] = pooledData[inBase+i]
		}
	}, par)
}

// scatterPlaceFloat64 writes pooled values at the decoded mask positions.
func scatterPlaceFloat64(out, pooled *tensor.RawTensor, maskData []int64, N, C, outSlice, inSlice int, opName string, par parallel.Config) {
	outData := out.AsFloat64()
	pooledData := pooled.AsFloat64()

	parallel.ForBatch(N, C, func(n, c int) {
		outSliceData := outData[(n*C+c)*outSlice : (n*C+c+1)*outSlice]
		inBase := (n*C + c) * inSlice

		for i := 0; i < inSlice; i++ {
			idx := maskData[inBase+i]
			if idx < 0 || idx >= int64(outSlice) {
				panic(fmt.Sprintf("%s: corrupted mask: index %d outside spatial slice of size %d", opName, idx, outSlice))
			}
			outSliceData[idx] = pooledData[inBase+i]
		}
	}, par)
}
