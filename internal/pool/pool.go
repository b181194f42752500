// Package pool holds the pooling configuration and the shape inference
// shared by the 2D and 3D max-pool-with-index kernels.
package pool

import (
	"github.com/pkg/errors"

	"github.com/ravel-ml/ravel/internal/tensor"
)

// Config describes a max pooling invocation: window size, stride, and
// padding per spatial axis, plus the global pooling flag.
//
// All three slices have one entry per spatial axis: 2 for NCHW input,
// 3 for NCDHW input. Default2D and Default3D fill in the conventional
// defaults (stride 1, padding 0).
type Config struct {
	Kernel  []int // Pooling window size per spatial axis (required).
	Stride  []int // Step between window origins per spatial axis.
	Padding []int // Virtual zero-margin per spatial axis, implemented by clipping.
	Global  bool  // Pool the whole spatial extent; Kernel and Padding are ignored.
}

// Default2D returns a 2D pooling config with stride {1,1} and padding {0,0}.
func Default2D(kernel []int) Config {
	return Config{
		Kernel:  append([]int(nil), kernel...),
		Stride:  []int{1, 1},
		Padding: []int{0, 0},
	}
}

// Default3D returns a 3D pooling config with stride {1,1,1} and padding {0,0,0}.
func Default3D(kernel []int) Config {
	return Config{
		Kernel:  append([]int(nil), kernel...),
		Stride:  []int{1, 1, 1},
		Padding: []int{0, 0, 0},
	}
}

// Normalize resolves the global pooling flag against the input's spatial
// dimensions: the window is rewritten to span each axis entirely and the
// padding is zeroed. Stride is left untouched; a single window covers the
// whole axis regardless. The receiver is not modified.
//
// When Global is false the config is returned unchanged.
func (c Config) Normalize(spatial []int) Config {
	if !c.Global {
		return c
	}

	out := Config{
		Kernel:  make([]int, len(spatial)),
		Stride:  append([]int(nil), c.Stride...),
		Padding: make([]int, len(spatial)),
		Global:  true,
	}
	copy(out.Kernel, spatial)
	return out
}

// InferShape validates the pooling configuration against the input shape
// and computes the output shape. The mask tensor always has the same shape
// as the output, so a single inference covers both.
//
// The global pooling flag is resolved first, exactly as Normalize does.
//
// Per spatial axis: outDim = (inDim - kernel + 2*padding) / stride + 1,
// with truncating integer division.
func InferShape(in tensor.Shape, cfg Config) (tensor.Shape, error) {
	if len(in) != 4 && len(in) != 5 {
		return nil, errors.Errorf("pooling input must be a 4-D or 5-D tensor, got rank %d", len(in))
	}

	spatial := in[2:]
	cfg = cfg.Normalize(spatial)

	if len(in)-2 != len(cfg.Kernel) {
		return nil, errors.Errorf("input rank %d and pooling window rank %d are inconsistent", len(in), len(cfg.Kernel))
	}
	if len(cfg.Kernel) != len(cfg.Stride) {
		return nil, errors.Errorf("stride rank %d must match window rank %d", len(cfg.Stride), len(cfg.Kernel))
	}
	if len(cfg.Kernel) != len(cfg.Padding) {
		return nil, errors.Errorf("padding rank %d must match window rank %d", len(cfg.Padding), len(cfg.Kernel))
	}

	out := tensor.Shape{in[0], in[1]}
	for i := range cfg.Kernel {
		k, s, p := cfg.Kernel[i], cfg.Stride[i], cfg.Padding[i]
		if k <= 0 {
			return nil, errors.Errorf("window size must be positive, got %d on axis %d", k, i)
		}
		if s <= 0 {
			return nil, errors.Errorf("stride must be positive, got %d on axis %d", s, i)
		}
		if p < 0 {
			return nil, errors.Errorf("padding must be non-negative, got %d on axis %d", p, i)
		}
		// A window whose padding reaches its own size would clip to nothing;
		// fail here instead of letting a kernel scan an empty window.
		if p >= k {
			return nil, errors.Errorf("padding %d must be smaller than window size %d on axis %d", p, k, i)
		}

		outDim := (spatial[i]-k+2*p)/s + 1
		if outDim <= 0 {
			return nil, errors.Errorf("degenerate pooling window on axis %d: input %d, window %d, stride %d, padding %d give output %d",
				i, spatial[i], k, s, p, outDim)
		}
		out = append(out, outDim)
	}

	return out, nil
}

// InferGradShape computes the shape of the input gradient. Pooling is
// shape-reducing, so the gradient restores the original input shape; both
// the input and the mask must be present.
func InferGradShape(x, mask tensor.Shape) (tensor.Shape, error) {
	if len(x) == 0 {
		return nil, errors.New("input shape must not be empty")
	}
	if len(mask) == 0 {
		return nil, errors.New("mask shape must not be empty")
	}
	if len(x) != len(mask) {
		return nil, errors.Errorf("input rank %d and mask rank %d are inconsistent", len(x), len(mask))
	}
	return x.Clone(), nil
}
