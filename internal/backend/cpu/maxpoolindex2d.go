package cpu

import (
	"fmt"

	"github.com/ravel-ml/ravel/internal/parallel"
	"github.com/ravel-ml/ravel/internal/pool"
	"github.com/ravel-ml/ravel/internal/tensor"
)

// MaxPool2DWithIndex performs 2D max pooling and records the argmax.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
// Mask shape:   same as output, dtype Int64
//
// Where:
//
//	out_height = (height - kernel[0] + 2*padding[0]) / stride[0] + 1
//	out_width = (width - kernel[1] + 2*padding[1]) / stride[1] + 1
//
// Each mask element is the flat offset of the winning input element within
// its (n, c) spatial slice: h*W + w. Recording the argmax lets the backward
// pass (and max unpooling) route values to the exact source position
// without recomputing the window scan.
//
// Padding is implemented by clipping: window positions outside the input
// are excluded from the max search, never materialized. Ties keep the
// first position in row-major scan order.
//
// Example (2x2 window, stride=2):
//
//	Input: [[1,2,3,4],    Out: [[6,8],     Mask: [[5,7],
//	        [5,6,7,8],          [14,16]]          [13,15]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2DWithIndex(x *tensor.RawTensor, kernel, stride, padding []int) (*tensor.RawTensor, *tensor.RawTensor) {
	inShape := x.Shape()
	if len(inShape) != 4 {
		panic(fmt.Sprintf("maxpool2d_with_index: expected 4D input [N,C,H,W], got %dD", len(inShape)))
	}

	cfg := pool.Config{Kernel: kernel, Stride: stride, Padding: padding}
	outShape, err := pool.InferShape(inShape, cfg)
	if err != nil {
		panic(fmt.Sprintf("maxpool2d_with_index: %v", err))
	}

	N := inShape[0]
	C := inShape[1]
	H := inShape[2]
	W := inShape[3]
	HOut := outShape[2]
	WOut := outShape[3]

	out, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("maxpool2d_with_index: failed to create output: %v", err))
	}
	mask, err := tensor.NewRaw(outShape, tensor.Int64, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("maxpool2d_with_index: failed to create mask: %v", err))
	}

	// Dispatch to type-specific implementation
	switch x.DType() {
	case tensor.Float32:
		maxPoolIndex2DFloat32(out, mask, x, N, C, H, W, HOut, WOut, kernel, stride, padding, cpu.par)
	case tensor.Float64:
		maxPoolIndex2DFloat64(out, mask, x, N, C, H, W, HOut, WOut, kernel, stride, padding, cpu.par)
	default:
		panic(fmt.Sprintf("maxpool2d_with_index: unsupported dtype %s", x.DType()))
	}

	return out, mask
}

// maxPoolIndex2DFloat32 performs max pooling with index for float32 tensors.
func maxPoolIndex2DFloat32(out, mask, x *tensor.RawTensor, N, C, H, W, HOut, WOut int, kernel, stride, padding []int, par parallel.Config) {
	xData := x.AsFloat32()
	outData := out.AsFloat32()
	maskData := mask.AsInt64()

	KH, KW := kernel[0], kernel[1]
	SH, SW := stride[0], stride[1]
	PH, PW := padding[0], padding[1]

	parallel.ForBatch(N, C, func(n, c int) {
		// Pre-slice channel plane: eliminates (n*C+c)*H*W bounds check
		channelOffset := (n*C + c) * H * W
		channelData := xData[channelOffset : channelOffset+H*W]
		outOffset := (n*C + c) * HOut * WOut

		for outH := 0; outH < HOut; outH++ {
			// Clip the window to the valid input range per axis
			hStart := outH*SH - PH
			hEnd := min(hStart+KH, H)
			hStart = max(hStart, 0)

			for outW := 0; outW < WOut; outW++ {
				wStart := outW*SW - PW
				wEnd := min(wStart+KW, W)
				wStart = max(wStart, 0)

				if hStart >= hEnd || wStart >= wEnd {
					panic(fmt.Sprintf("maxpool2d_with_index: window for output (%d,%d) lies entirely outside the input", outH, outW))
				}

				// Seed with the first valid position; strict comparison
				// below keeps the first maximum in row-major scan order.
				bestIdx := hStart*W + wStart
				bestVal := channelData[bestIdx]

				for h := hStart; h < hEnd; h++ {
					rowStart := h * W
					for w := wStart; w < wEnd; w++ {
						if val := channelData[rowStart+w]; val > bestVal {
							bestVal = val
							bestIdx = rowStart + w
						}
					}
				}

				outIdx := outOffset + outH*WOut + outW
				outData[outIdx] = bestVal
				maskData[outIdx] = int64(bestIdx)
			}
		}
	}, par)
}

// maxPoolIndex2DFloat64 performs max pooling with index for float64 tensors.
func maxPoolIndex2DFloat64(out, mask, x *tensor.RawTensor, N, C, H, W, HOut, WOut int, kernel, stride, padding []int, par parallel.Config) {
	xData := x.AsFloat64()
	outData := out.AsFloat64()
	maskData := mask.AsInt64()

	KH, KW := kernel[0], kernel[1]
	SH, SW := stride[0], stride[1]
	PH, PW := padding[0], padding[1]

	parallel.ForBatch(N, C, func(n, c int) {
		channelOffset := (n*C + c) * H * W
		channelData := xData[channelOffset : channelOffset+H*W]
		outOffset := (n*C + c) * HOut * WOut

		for outH := 0; outH < HOut; outH++ {
			hStart := outH*SH - PH
			hEnd := min(hStart+KH, H)
			hStart = max(hStart, 0)

			for outW := 0; outW < WOut; outW++ {
				wStart := outW*SW - PW
				wEnd := min(wStart+KW, W)
				wStart = max(wStart, 0)

				if hStart >= hEnd || wStart >= wEnd {
					panic(fmt.Sprintf("maxpool2d_with_index: window for output (%d,%d) lies entirely outside the input", outH, outW))
				}

				bestIdx := hStart*W + wStart
				bestVal := channelData[bestIdx]

				for h := hStart; h < hEnd; h++ {
					rowStart := h * W
					for w := wStart; w < wEnd; w++ {
						if val := channelData[rowStart+w]; val > bestVal {
							bestVal = val
							bestIdx = rowStart + w
						}
					}
				}

				outIdx := outOffset + outH*WOut + outW
				outData[outIdx] = bestVal
				maskData[outIdx] = int64(bestIdx)
			}
		}
	}, par)
}
