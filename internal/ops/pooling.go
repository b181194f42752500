package ops

import (
	"github.com/pkg/errors"

	"github.com/ravel-ml/ravel/internal/pool"
	"github.com/ravel-ml/ravel/internal/tensor"
)

// Input layouts per operator:
//
//	forward: inputs = {X};            outputs = {Out, Mask}
//	grad:    inputs = {X, Mask, dOut}; outputs = {dX}  (X used only for shape)
//	unpool:  inputs = {X, Pooled, Mask}; outputs = {Out}  (X used only for shape)
//
// The primary tensor deliberately comes first in every layout. Frameworks
// that order the gradient inputs {Mask, X, dOut} must reorder when bridging.
//
// All contract violations are detected here, before any kernel runs.
func (r *Registry) registerPoolingOps() {
	r.Register(OpMaxPool2DWithIndex, maxPoolWithIndex(4))
	r.Register(OpMaxPool3DWithIndex, maxPoolWithIndex(5))
	r.Register(OpMaxPool2DWithIndexGrad, maxPoolWithIndexGrad(4))
	r.Register(OpMaxPool3DWithIndexGrad, maxPoolWithIndexGrad(5))
	r.Register(OpMaxUnpool2D, maxUnpool(4))
	r.Register(OpMaxUnpool3D, maxUnpool(5))
}

// maxPoolWithIndex builds the forward handler for the given input rank.
func maxPoolWithIndex(rank int) Handler {
	return func(ctx *Context, cfg pool.Config, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if len(inputs) != 1 || inputs[0] == nil {
			return nil, errors.New("X(Input) of pooling operator must not be null")
		}
		x := inputs[0]
		if len(x.Shape()) != rank {
			return nil, errors.Errorf("pooling input must be %d-D, got rank %d", rank, len(x.Shape()))
		}

		// Validates the whole configuration, including the global flag
		// and degenerate output dimensions, before the kernel runs.
		if _, err := pool.InferShape(x.Shape(), cfg); err != nil {
			return nil, errors.Wrap(err, "pooling shape inference")
		}

		cfg = cfg.Normalize(x.Shape()[2:])

		var out, mask *tensor.RawTensor
		if rank == 4 {
			out, mask = ctx.Backend.MaxPool2DWithIndex(x, cfg.Kernel, cfg.Stride, cfg.Padding)
		} else {
			out, mask = ctx.Backend.MaxPool3DWithIndex(x, cfg.Kernel, cfg.Stride, cfg.Padding)
		}
		return []*tensor.RawTensor{out, mask}, nil
	}
}

// maxPoolWithIndexGrad builds the gradient handler for the given input rank.
func maxPoolWithIndexGrad(rank int) Handler {
	return func(ctx *Context, _ pool.Config, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if len(inputs) != 3 {
			return nil, errors.Errorf("pooling gradient expects inputs {X, Mask, dOut}, got %d tensors", len(inputs))
		}
		x, mask, gradOut := inputs[0], inputs[1], inputs[2]
		if x == nil {
			return nil, errors.New("X(Input) of pooling gradient must not be null")
		}
		if mask == nil {
			return nil, errors.New("Mask(Input) of pooling gradient must not be null")
		}
		if gradOut == nil {
			return nil, errors.New("dOut(Input) of pooling gradient must not be null")
		}
		if len(x.Shape()) != rank {
			return nil, errors.Errorf("pooling gradient input must be %d-D, got rank %d", rank, len(x.Shape()))
		}
		if mask.DType() != tensor.Int64 {
			return nil, errors.Errorf("mask dtype must be int64, got %s", mask.DType())
		}
		if !mask.Shape().Equal(gradOut.Shape()) {
			return nil, errors.Errorf("mask shape %v and output gradient shape %v must match", mask.Shape(), gradOut.Shape())
		}
		if _, err := pool.InferGradShape(x.Shape(), mask.Shape()); err != nil {
			return nil, errors.Wrap(err, "pooling gradient shape inference")
		}

		var dx *tensor.RawTensor
		if rank == 4 {
			dx = ctx.Backend.MaxPool2DWithIndexGrad(x, mask, gradOut)
		} else {
			dx = ctx.Backend.MaxPool3DWithIndexGrad(x, mask, gradOut)
		}
		return []*tensor.RawTensor{dx}, nil
	}
}

// maxUnpool builds the unpooling handler for the given input rank.
func maxUnpool(rank int) Handler {
	return func(ctx *Context, _ pool.Config, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		if len(inputs) != 3 {
			return nil, errors.Errorf("unpooling expects inputs {X, Pooled, Mask}, got %d tensors", len(inputs))
		}
		x, pooled, mask := inputs[0], inputs[1], inputs[2]
		if x == nil {
			return nil, errors.New("X(Input) of unpooling must not be null")
		}
		if pooled == nil {
			return nil, errors.New("Pooled(Input) of unpooling must not be null")
		}
		if mask == nil {
			return nil, errors.New("Mask(Input) of unpooling must not be null")
		}
		if len(x.Shape()) != rank {
			return nil, errors.Errorf("unpooling target must be %d-D, got rank %d", rank, len(x.Shape()))
		}
		if mask.DType() != tensor.Int64 {
			return nil, errors.Errorf("mask dtype must be int64, got %s", mask.DType())
		}
		if !pooled.Shape().Equal(mask.Shape()) {
			return nil, errors.Errorf("pooled shape %v and mask shape %v must match", pooled.Shape(), mask.Shape())
		}

		var out *tensor.RawTensor
		if rank == 4 {
			out = ctx.Backend.MaxUnpool2D(pooled, mask, x.Shape())
		} else {
			out = ctx.Backend.MaxUnpool3D(pooled, mask, x.Shape())
		}
		return []*tensor.RawTensor{out}, nil
	}
}
