package cpu

import (
	"fmt"

	"github.com/ravel-ml/ravel/internal/parallel"
	"github.com/ravel-ml/ravel/internal/pool"
	"github.com/ravel-ml/ravel/internal/tensor"
)

// MaxPool3DWithIndex performs 3D max pooling and records the argmax.
//
// Input shape:  [batch, channels, depth, height, width]
// Output shape: [batch, channels, out_depth, out_height, out_width]
// Mask shape:   same as output, dtype Int64
//
// The mask encodes the winning position within the (n, c) spatial volume
// as a single flat offset: (d*H + h)*W + w. Scan order is depth, then
// height, then width, ascending; ties keep the first position visited.
//
// Everything else matches MaxPool2DWithIndex: padding by clipping, shared
// shape inference, per-(n,c) parallelism.
func (cpu *CPUBackend) MaxPool3DWithIndex(x *tensor.RawTensor, kernel, stride, padding []int) (*tensor.RawTensor, *tensor.RawTensor) {
	inShape := x.Shape()
	if len(inShape) != 5 {
		panic(fmt.Sprintf("maxpool3d_with_index: expected 5D input [N,C,D,H,W], got %dD", len(inShape)))
	}

	cfg := pool.Config{Kernel: kernel, Stride: stride, Padding: padding}
	outShape, err := pool.InferShape(inShape, cfg)
	if err != nil {
		panic(fmt.Sprintf("maxpool3d_with_index: %v", err))
	}

	N := inShape[0]
	C := inShape[1]
	D := inShape[2]
	H := inShape[3]
	W := inShape[4]
	DOut := outShape[2]
	HOut := outShape[3]
	WOut := outShape[4]

	out, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("maxpool3d_with_index: failed to create output: %v", err))
	}
	mask, err := tensor.NewRaw(outShape, tensor.Int64, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("maxpool3d_with_index: failed to create mask: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		maxPoolIndex3DFloat32(out, mask, x, N, C, D, H, W, DOut, HOut, WOut, kernel, stride, padding, cpu.par)
	case tensor.Float64:
		maxPoolIndex3DFloat64(out, mask, x, N, C, D, H, W, DOut, HOut, WOut, kernel, stride, padding, cpu.par)
	default:
		panic(fmt.Sprintf("maxpool3d_with_index: unsupported dtype %s", x.DType()))
	}

	return out, mask
}

// maxPoolIndex3DFloat32 performs max pooling with index for float32 tensors.
func maxPoolIndex3DFloat32(out, mask, x *tensor.RawTensor, N, C, D, H, W, DOut, HOut, WOut int, kernel, stride, padding []int, par parallel.Config) {
	xData := x.AsFloat32()
	outData := out.AsFloat32()
	maskData := mask.AsInt64()

	KD, KH, KW := kernel[0], kernel[1], kernel[2]
	SD, SH, SW := stride[0], stride[1], stride[2]
	PD, PH, PW := padding[0], padding[1], padding[2]

	parallel.ForBatch(N, C, func(n, c int) {
		volume := D * H * W
		channelOffset := (n*C + c) * volume
		channelData := xData[channelOffset : channelOffset+volume]
		outOffset := (n*C + c) * DOut * HOut * WOut

		for outD := 0; outD < DOut; outD++ {
			dStart := outD*SD - PD
			dEnd := min(dStart+KD, D)
			dStart = max(dStart, 0)

			for outH := 0; outH < HOut; outH++ {
				hStart := outH*SH - PH
				hEnd := min(hStart+KH, H)
				hStart = max(hStart, 0)

				for outW := 0; outW < WOut; outW++ {
					wStart := outW*SW - PW
					wEnd := min(wStart+KW, W)
					wStart = max(wStart, 0)

					if dStart >= dEnd || hStart >= hEnd || wStart >= wEnd {
						panic(fmt.Sprintf("maxpool3d_with_index: window for output (%d,%d,%d) lies entirely outside the input", outD, outH, outW))
					}

					bestIdx := (dStart*H+hStart)*W + wStart
					bestVal := channelData[bestIdx]

					for d := dStart; d < dEnd; d++ {
						for h := hStart; h < hEnd; h++ {
							rowStart := (d*H + h) * W
							for w := wStart; w < wEnd; w++ {
								if val := channelData[rowStart+w]; val > bestVal {
									bestVal = val
									bestIdx = rowStart + w
								}
							}
						}
					}

					outIdx := outOffset + (outD*HOut+outH)*WOut + outW
					outData[outIdx] = bestVal
					maskData[outIdx] = int64(bestIdx)
				}
			}
		}
	}, par)
}

// maxPoolIndex3DFloat64 performs max pooling with index for float64 tensors.
func maxPoolIndex3DFloat64(out, mask, x *tensor.RawTensor, N, C, D, H, W, DOut, HOut, WOut int, kernel, stride, padding []int, par parallel.Config) {
	xData := x.AsFloat64()
	outData := out.AsFloat64()
	maskData := mask.AsInt64()

	KD, KH, KW := kernel[0], kernel[1], kernel[2]
	SD, SH, SW := stride[0], stride[1], stride[2]
	PD, PH, PW := padding[0], padding[1], padding[2]

	parallel.ForBatch(N, C, func(n, c int) {
		volume := D * H * W
		channelOffset := (n*C + c) * volume
		channelData := xData[channelOffset : channelOffset+volume]
		outOffset := (n*C + c) * DOut * HOut * WOut

		for outD := 0; outD < DOut; outD++ {
			dStart := outD*SD - PD
			dEnd := min(dStart+KD, D)
			dStart = max(dStart, 0)

			for outH := 0; outH < HOut; outH++ {
				hStart := outH*SH - PH
				hEnd := min(hStart+KH, H)
				hStart = max(hStart, 0)

				for outW := 0; outW < WOut; outW++ {
					wStart := outW*SW - PW
					wEnd := min(wStart+KW, W)
					wStart = max(wStart, 0)

					if dStart >= dEnd || hStart >= hEnd || wStart >= wEnd {
						panic(fmt.Sprintf("maxpool3d_with_index: window for output (%d,%d,%d) lies entirely outside the input", outD, outH, outW))
					}

					bestIdx := (dStart*H+hStart)*W + wStart
					bestVal := channelData[bestIdx]

					for d := dStart; d < dEnd; d++ {
						for h := hStart; h < hEnd; h++ {
							rowStart := (d*H + h) * W
							for w := wStart; w < wEnd; w++ {
								if val := channelData[rowStart+w]; val > bestVal {
									bestVal = val
									bestIdx = rowStart + w
								}
							}
						}
					}

					outIdx := outOffset + (outD*HOut+outH)*WOut + outW
					outData[outIdx] = bestVal
					maskData[outIdx] = int64(bestIdx)
				}
			}
		}
	}, par)
}
