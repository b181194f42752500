package ops

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravel-ml/ravel/internal/backend/cpu"
	"github.com/ravel-ml/ravel/internal/pool"
	"github.com/ravel-ml/ravel/internal/tensor"
)

func newContext() *Context {
	return &Context{Backend: cpu.New()}
}

func rawSeq(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	data := raw.AsFloat32()
	for i := range data {
		data[i] = float32(i + 1)
	}
	return raw
}

func TestRegistry_SupportedOps(t *testing.T) {
	r := NewRegistry()

	ops := r.SupportedOps()
	sort.Strings(ops)

	assert.Equal(t, []string{
		OpMaxPool2DWithIndex,
		OpMaxPool2DWithIndexGrad,
		OpMaxPool3DWithIndex,
		OpMaxPool3DWithIndexGrad,
		OpMaxUnpool2D,
		OpMaxUnpool3D,
	}, ops)

	for _, op := range ops {
		h, ok := r.Get(op)
		assert.True(t, ok, "handler missing for %s", op)
		assert.NotNil(t, h)
	}
}

func TestRegistry_UnknownOp(t *testing.T) {
	r := NewRegistry()

	_, err := r.Execute(newContext(), "conv2d", pool.Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported operator")
}

func TestRegistry_RegisterCustom(t *testing.T) {
	r := NewRegistry()

	r.Register("identity", func(_ *Context, _ pool.Config, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		return inputs, nil
	})

	x := rawSeq(t, tensor.Shape{1, 1, 2, 2})
	outs, err := r.Execute(newContext(), "identity", pool.Config{}, []*tensor.RawTensor{x})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Same(t, x, outs[0])
}

func TestExecute_MaxPool2DWithIndex(t *testing.T) {
	r := NewRegistry()
	cfg := pool.Default2D([]int{2, 2})
	cfg.Stride = []int{2, 2}

	x := rawSeq(t, tensor.Shape{1, 1, 4, 4})
	outs, err := r.Execute(newContext(), OpMaxPool2DWithIndex, cfg, []*tensor.RawTensor{x})
	require.NoError(t, err)
	require.Len(t, outs, 2)

	out, mask := outs[0], outs[1]
	assert.True(t, out.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	assert.Equal(t, tensor.Int64, mask.DType())
	assert.Equal(t, []float32{6, 8, 14, 16}, out.AsFloat32())
	assert.Equal(t, []int64{5, 7, 13, 15}, mask.AsInt64())
}

func TestExecute_GlobalPooling(t *testing.T) {
	r := NewRegistry()
	cfg := pool.Default2D([]int{1, 1})
	cfg.Global = true

	x := rawSeq(t, tensor.Shape{2, 3, 4, 5})
	outs, err := r.Execute(newContext(), OpMaxPool2DWithIndex, cfg, []*tensor.RawTensor{x})
	require.NoError(t, err)

	out, mask := outs[0], outs[1]
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 3, 1, 1}))

	// Sequential input: each channel's maximum is its last element.
	for nc := 0; nc < 6; nc++ {
		assert.Equal(t, float32((nc+1)*20), out.AsFloat32()[nc])
		assert.Equal(t, int64(19), mask.AsInt64()[nc])
	}
}

func TestExecute_MaxPool3DWithIndex(t *testing.T) {
	r := NewRegistry()
	cfg := pool.Default3D([]int{2, 2, 2})
	cfg.Stride = []int{2, 2, 2}

	x := rawSeq(t, tensor.Shape{1, 1, 4, 4, 4})
	outs, err := r.Execute(newContext(), OpMaxPool3DWithIndex, cfg, []*tensor.RawTensor{x})
	require.NoError(t, err)
	require.Len(t, outs, 2)

	assert.Equal(t, []int64{21, 23, 29, 31, 53, 55, 61, 63}, outs[1].AsInt64())
}

func TestExecute_ForwardErrors(t *testing.T) {
	r := NewRegistry()
	cfg := pool.Default2D([]int{2, 2})
	cfg.Stride = []int{2, 2}

	tests := []struct {
		name   string
		op     string
		cfg    pool.Config
		inputs []*tensor.RawTensor
	}{
		{"nil input", OpMaxPool2DWithIndex, cfg, []*tensor.RawTensor{nil}},
		{"no inputs", OpMaxPool2DWithIndex, cfg, nil},
		{"wrong rank", OpMaxPool2DWithIndex, cfg, []*tensor.RawTensor{rawSeq(t, tensor.Shape{1, 1, 4, 4, 4})}},
		{"3d op on 4d input", OpMaxPool3DWithIndex, pool.Default3D([]int{2, 2, 2}), []*tensor.RawTensor{rawSeq(t, tensor.Shape{1, 1, 4, 4})}},
		{"window too large", OpMaxPool2DWithIndex, pool.Default2D([]int{8, 8}), []*tensor.RawTensor{rawSeq(t, tensor.Shape{1, 1, 4, 4})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(newContext(), tt.op, tt.cfg, tt.inputs)
			assert.Error(t, err)
		})
	}
}

func TestExecute_MaxPool2DWithIndexGrad(t *testing.T) {
	r := NewRegistry()
	ctx := newContext()
	cfg := pool.Default2D([]int{2, 2})
	cfg.Stride = []int{2, 2}

	x := rawSeq(t, tensor.Shape{1, 1, 4, 4})
	fwd, err := r.Execute(ctx, OpMaxPool2DWithIndex, cfg, []*tensor.RawTensor{x})
	require.NoError(t, err)
	mask := fwd[1]

	gradOut, err := tensor.NewRaw(mask.Shape(), tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	for i := range gradOut.AsFloat32() {
		gradOut.AsFloat32()[i] = 1
	}

	outs, err := r.Execute(ctx, OpMaxPool2DWithIndexGrad, cfg, []*tensor.RawTensor{x, mask, gradOut})
	require.NoError(t, err)
	require.Len(t, outs, 1)

	dx := outs[0]
	require.True(t, dx.Shape().Equal(x.Shape()))

	argmax := map[int]bool{5: true, 7: true, 13: true, 15: true}
	for i, v := range dx.AsFloat32() {
		if argmax[i] {
			assert.Equal(t, float32(1), v, "dX[%d]", i)
		} else {
			assert.Equal(t, float32(0), v, "dX[%d]", i)
		}
	}
}

func TestExecute_GradErrors(t *testing.T) {
	r := NewRegistry()
	ctx := newContext()
	cfg := pool.Default2D([]int{2, 2})
	cfg.Stride = []int{2, 2}

	x := rawSeq(t, tensor.Shape{1, 1, 4, 4})
	fwd, err := r.Execute(ctx, OpMaxPool2DWithIndex, cfg, []*tensor.RawTensor{x})
	require.NoError(t, err)
	mask := fwd[1]

	gradOut, err := tensor.NewRaw(mask.Shape(), tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	badGrad, err := tensor.NewRaw(tensor.Shape{1, 1, 3, 3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	floatMask, err := tensor.NewRaw(mask.Shape(), tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	tests := []struct {
		name   string
		inputs []*tensor.RawTensor
	}{
		{"too few inputs", []*tensor.RawTensor{x, mask}},
		{"nil x", []*tensor.RawTensor{nil, mask, gradOut}},
		{"nil mask", []*tensor.RawTensor{x, nil, gradOut}},
		{"nil gradient", []*tensor.RawTensor{x, mask, nil}},
		{"mask/gradient shape mismatch", []*tensor.RawTensor{x, mask, badGrad}},
		{"mask not int64", []*tensor.RawTensor{x, floatMask, gradOut}},
		{"wrong x rank", []*tensor.RawTensor{rawSeq(t, tensor.Shape{1, 1, 4, 4, 4}), mask, gradOut}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(ctx, OpMaxPool2DWithIndexGrad, cfg, tt.inputs)
			assert.Error(t, err)
		})
	}
}

func TestExecute_MaxUnpool2D(t *testing.T) {
	r := NewRegistry()
	ctx := newContext()
	cfg := pool.Default2D([]int{2, 2})
	cfg.Stride = []int{2, 2}

	x := rawSeq(t, tensor.Shape{1, 1, 4, 4})
	fwd, err := r.Execute(ctx, OpMaxPool2DWithIndex, cfg, []*tensor.RawTensor{x})
	require.NoError(t, err)
	pooled, mask := fwd[0], fwd[1]

	outs, err := r.Execute(ctx, OpMaxUnpool2D, cfg, []*tensor.RawTensor{x, pooled, mask})
	require.NoError(t, err)
	require.Len(t, outs, 1)

	restored := outs[0]
	require.True(t, restored.Shape().Equal(x.Shape()))

	want := map[int]float32{5: 6, 7: 8, 13: 14, 15: 16}
	for i, v := range restored.AsFloat32() {
		assert.Equal(t, want[i], v, "restored[%d]", i)
	}
}

func TestExecute_UnpoolErrors(t *testing.T) {
	r := NewRegistry()
	ctx := newContext()
	cfg := pool.Default2D([]int{2, 2})
	cfg.Stride = []int{2, 2}

	x := rawSeq(t, tensor.Shape{1, 1, 4, 4})
	fwd, err := r.Execute(ctx, OpMaxPool2DWithIndex, cfg, []*tensor.RawTensor{x})
	require.NoError(t, err)
	pooled, mask := fwd[0], fwd[1]

	badMask, err := tensor.NewRaw(tensor.Shape{1, 1, 3, 3}, tensor.Int64, tensor.CPU)
	require.NoError(t, err)

	floatMask, err := tensor.NewRaw(mask.Shape(), tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	tests := []struct {
		name   string
		inputs []*tensor.RawTensor
	}{
		{"too few inputs", []*tensor.RawTensor{x, pooled}},
		{"nil target", []*tensor.RawTensor{nil, pooled, mask}},
		{"nil pooled", []*tensor.RawTensor{x, nil, mask}},
		{"nil mask", []*tensor.RawTensor{x, pooled, nil}},
		{"pooled/mask shape mismatch", []*tensor.RawTensor{x, pooled, badMask}},
		{"mask not int64", []*tensor.RawTensor{x, pooled, floatMask}},
		{"wrong target rank", []*tensor.RawTensor{rawSeq(t, tensor.Shape{1, 1, 4, 4, 4}), pooled, mask}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(ctx, OpMaxUnpool2D, cfg, tt.inputs)
			assert.Error(t, err)
		})
	}
}
