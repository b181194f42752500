// Package ops exposes the pooling kernels as named operators so a host
// framework can dispatch them without linking against backend types.
package ops

import (
	"github.com/pkg/errors"

	"github.com/ravel-ml/ravel/internal/pool"
	"github.com/ravel-ml/ravel/internal/tensor"
)

// Registered operator names. These follow the conventional
// max_pool*_with_index naming so graphs exported from other frameworks
// map onto them directly.
const (
	OpMaxPool2DWithIndex     = "max_pool2d_with_index"
	OpMaxPool2DWithIndexGrad = "max_pool2d_with_index_grad"
	OpMaxPool3DWithIndex     = "max_pool3d_with_index"
	OpMaxPool3DWithIndexGrad = "max_pool3d_with_index_grad"
	OpMaxUnpool2D            = "max_unpool2d"
	OpMaxUnpool3D            = "max_unpool3d"
)

// Handler executes one operator: it validates its inputs against the
// typed configuration and returns the output tensors.
//
// Configuration is a strongly typed pool.Config rather than a loose
// attribute bag; defaults are explicit in the config constructors.
type Handler func(ctx *Context, cfg pool.Config, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error)

// Context provides backend and other execution context for operators.
type Context struct {
	Backend tensor.Backend
}

// Registry maps operator names to handler functions.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates a registry with all pooling operators registered.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]Handler),
	}
	r.registerPoolingOps()
	return r
}

// Register adds a custom operator handler.
func (r *Registry) Register(name string, handler Handler) {
	r.handlers[name] = handler
}

// Get returns the handler for an operator name.
func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Execute runs an operator with the given configuration and inputs.
func (r *Registry) Execute(ctx *Context, name string, cfg pool.Config, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, errors.Errorf("unsupported operator: %s", name)
	}
	return handler(ctx, cfg, inputs)
}

// SupportedOps returns a list of all registered operator names.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	return ops
}
