package tensor

// Backend defines the interface that compute backends must implement.
// Backends handle the actual computation for pooling operations.
//
// Implementations:
//   - CPU: Pure Go kernels in internal/backend/cpu
//   - Mock: Naive reference implementation for correctness testing
//
// All pooling operations use channels-first layouts: NCHW for the 2D
// variants and NCDHW for the 3D variants. Kernel, stride, and padding are
// given per spatial axis (2 or 3 entries). Global pooling is resolved
// before a kernel is invoked, so backends never see the global flag.
type Backend interface {
	// MaxPool2DWithIndex performs 2D max pooling over [N,C,H,W] input and
	// returns the pooled values together with an Int64 mask holding, for
	// every output element, the flat offset of the winning input element
	// within its (n,c) spatial slice.
	MaxPool2DWithIndex(x *RawTensor, kernel, stride, padding []int) (out, mask *RawTensor)

	// MaxPool2DWithIndexGrad scatters gradOut back through the mask into a
	// zero tensor of x's shape, accumulating where windows overlap.
	MaxPool2DWithIndexGrad(x, mask, gradOut *RawTensor) *RawTensor

	// MaxPool3DWithIndex is the [N,C,D,H,W] variant of MaxPool2DWithIndex.
	MaxPool3DWithIndex(x *RawTensor, kernel, stride, padding []int) (out, mask *RawTensor)

	// MaxPool3DWithIndexGrad is the [N,C,D,H,W] variant of MaxPool2DWithIndexGrad.
	MaxPool3DWithIndexGrad(x, mask, gradOut *RawTensor) *RawTensor

	// MaxUnpool2D routes pooled values back through the mask into a zero
	// tensor with the given [N,C,H,W] shape. The exact inverse of pooling
	// for the winning positions; every other position stays zero.
	MaxUnpool2D(pooled, mask *RawTensor, outShape Shape) *RawTensor

	// MaxUnpool3D is the [N,C,D,H,W] variant of MaxUnpool2D.
	MaxUnpool3D(pooled, mask *RawTensor, outShape Shape) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
