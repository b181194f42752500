package cpu

import (
	"testing"

	"github.com/ravel-ml/ravel/internal/tensor"
)

// TestMaxPool2DWithIndexGrad_Scenario runs the canonical round trip:
// pool a 4x4 grid with a 2x2 window, then scatter an all-ones gradient.
// Exactly the four argmax cells receive gradient, everything else is zero.
func TestMaxPool2DWithIndexGrad_Scenario(t *testing.T) {
	backend := New()

	input := newInput2D(t, tensor.Shape{1, 1, 4, 4}, seq(16))
	out, mask := backend.MaxPool2DWithIndex(input, []int{2, 2}, []int{2, 2}, []int{0, 0})

	if !out.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("unexpected output shape %v", out.Shape())
	}

	gradOut, _ := tensor.NewRaw(out.Shape(), tensor.Float32, tensor.CPU)
	gradData := gradOut.AsFloat32()
	for i := range gradData {
		gradData[i] = 1
	}

	dx := backend.MaxPool2DWithIndexGrad(input, mask, gradOut)

	if !dx.Shape().Equal(input.Shape()) {
		t.Fatalf("gradient shape %v != input shape %v", dx.Shape(), input.Shape())
	}

	argmax := map[int]bool{5: true, 7: true, 13: true, 15: true}
	dxData := dx.AsFloat32()
	for i, v := range dxData {
		if argmax[i] {
			if v != 1 {
				t.Errorf("dX[%d]: expected 1, got %.1f", i, v)
			}
		} else if v != 0 {
			t.Errorf("dX[%d]: expected 0, got %.1f", i, v)
		}
	}
}

// TestMaxPool2DWithIndexGrad_OverlappingAccumulates checks that multiple
// output positions routing to the same input element sum their gradients.
func TestMaxPool2DWithIndexGrad_OverlappingAccumulates(t *testing.T) {
	backend := New()

	// Center element dominates all four overlapping 2x2 windows.
	values := []float32{
		1, 1, 1,
		1, 9, 1,
		1, 1, 1,
	}
	input := newInput2D(t, tensor.Shape{1, 1, 3, 3}, values)

	_, mask := backend.MaxPool2DWithIndex(input, []int{2, 2}, []int{1, 1}, []int{0, 0})

	for i, idx := range mask.AsInt64() {
		if idx != 4 {
			t.Fatalf("Mask[%d]: expected 4 (center), got %d", i, idx)
		}
	}

	gradOut, _ := tensor.NewRaw(tensor.Shape{1, 1, 2, 2}, tensor.Float32, tensor.CPU)
	copy(gradOut.AsFloat32(), []float32{1, 2, 3, 4})

	dx := backend.MaxPool2DWithIndexGrad(input, mask, gradOut)

	dxData := dx.AsFloat32()
	for i, v := range dxData {
		want := float32(0)
		if i == 4 {
			want = 10 // 1+2+3+4
		}
		if v != want {
			t.Errorf("dX[%d]: expected %.1f, got %.1f", i, want, v)
		}
	}
}

// TestMaxPool2DWithIndexGrad_MassConservation checks sum(dX) == sum(dOut)
// for non-overlapping windows that tile the input.
func TestMaxPool2DWithIndexGrad_MassConservation(t *testing.T) {
	backend := New()

	input, _ := tensor.NewRaw(tensor.Shape{2, 3, 8, 8}, tensor.Float64, tensor.CPU)
	inputData := input.AsFloat64()
	for i := range inputData {
		inputData[i] = float64((i*17)%31) - 15
	}

	_, mask := backend.MaxPool2DWithIndex(input, []int{2, 2}, []int{2, 2}, []int{0, 0})

	gradOut, _ := tensor.NewRaw(mask.Shape(), tensor.Float64, tensor.CPU)
	gradData := gradOut.AsFloat64()
	var gradSum float64
	for i := range gradData {
		gradData[i] = float64(i%7) - 3
		gradSum += gradData[i]
	}

	dx := backend.MaxPool2DWithIndexGrad(input, mask, gradOut)

	var dxSum float64
	for _, v := range dx.AsFloat64() {
		dxSum += v
	}

	if dxSum != gradSum {
		t.Errorf("sum(dX) = %v, sum(dOut) = %v", dxSum, gradSum)
	}
}

// TestMaxPool3DWithIndexGrad_Scenario checks the volumetric scatter.
func TestMaxPool3DWithIndexGrad_Scenario(t *testing.T) {
	backend := New()

	input, _ := tensor.NewRaw(tensor.Shape{1, 1, 4, 4, 4}, tensor.Float32, tensor.CPU)
	data := input.AsFloat32()
	for i := range data {
		data[i] = float32(i + 1)
	}

	_, mask := backend.MaxPool3DWithIndex(input, []int{2, 2, 2}, []int{2, 2, 2}, []int{0, 0, 0})

	gradOut, _ := tensor.NewRaw(mask.Shape(), tensor.Float32, tensor.CPU)
	gradData := gradOut.AsFloat32()
	for i := range gradData {
		gradData[i] = 1
	}

	dx := backend.MaxPool3DWithIndexGrad(input, mask, gradOut)

	argmax := map[int]bool{21: true, 23: true, 29: true, 31: true, 53: true, 55: true, 61: true, 63: true}
	for i, v := range dx.AsFloat32() {
		want := float32(0)
		if argmax[i] {
			want = 1
		}
		if v != want {
			t.Errorf("dX[%d]: expected %.1f, got %.1f", i, want, v)
		}
	}
}

// TestMaxPoolWithIndexGrad_CorruptedMaskPanics verifies that an index
// outside the spatial slice is reported, not clamped.
func TestMaxPoolWithIndexGrad_CorruptedMaskPanics(t *testing.T) {
	backend := New()

	input := newInput2D(t, tensor.Shape{1, 1, 4, 4}, seq(16))
	_, mask := backend.MaxPool2DWithIndex(input, []int{2, 2}, []int{2, 2}, []int{0, 0})

	// Corrupt one entry past the 4x4 slice.
	mask.AsInt64()[2] = 16

	gradOut, _ := tensor.NewRaw(mask.Shape(), tensor.Float32, tensor.CPU)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for mask index outside the spatial slice")
		}
	}()
	backend.MaxPool2DWithIndexGrad(input, mask, gradOut)
}

// TestMaxPool2DWithIndexGrad_ShapeMismatchPanics verifies the eager
// contract check between mask and output gradient.
func TestMaxPool2DWithIndexGrad_ShapeMismatchPanics(t *testing.T) {
	backend := New()

	input := newInput2D(t, tensor.Shape{1, 1, 4, 4}, seq(16))
	_, mask := backend.MaxPool2DWithIndex(input, []int{2, 2}, []int{2, 2}, []int{0, 0})

	gradOut, _ := tensor.NewRaw(tensor.Shape{1, 1, 3, 3}, tensor.Float32, tensor.CPU)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for mask/gradient shape mismatch")
		}
	}()
	backend.MaxPool2DWithIndexGrad(input, mask, gradOut)
}

// TestMaxPool2DWithIndexGrad_MatchesMockBackend verifies the scatter
// against the naive reference implementation.
func TestMaxPool2DWithIndexGrad_MatchesMockBackend(t *testing.T) {
	cpuBackend := New()
	mockBackend := tensor.NewMockBackend()

	input, _ := tensor.NewRaw(tensor.Shape{2, 2, 6, 6}, tensor.Float32, tensor.CPU)
	data := input.AsFloat32()
	for i := range data {
		data[i] = float32((i*23)%71) - 35
	}

	kernel, stride, padding := []int{3, 3}, []int{2, 2}, []int{1, 1}
	_, mask := cpuBackend.MaxPool2DWithIndex(input, kernel, stride, padding)

	gradOut, _ := tensor.NewRaw(mask.Shape(), tensor.Float32, tensor.CPU)
	gradData := gradOut.AsFloat32()
	for i := range gradData {
		gradData[i] = float32(i%5) - 2
	}

	got := cpuBackend.MaxPool2DWithIndexGrad(input, mask, gradOut)
	want := mockBackend.MaxPool2DWithIndexGrad(input, mask, gradOut)

	gotData := got.AsFloat32()
	for i, w := range want.AsFloat32() {
		if gotData[i] != w {
			t.Errorf("dX[%d]: cpu %v != mock %v", i, gotData[i], w)
		}
	}
}

// TestMaxPool2DWithIndexGrad_MatchesFiniteDifference perturbs single
// input elements and compares the output delta against the analytic
// gradient. With an all-ones output gradient, dX[i] is exactly the
// derivative of sum(Out) with respect to X[i].
func TestMaxPool2DWithIndexGrad_MatchesFiniteDifference(t *testing.T) {
	backend := New()

	base := []float64{
		3, 1, 4, 1,
		5, 9, 2, 6,
		8, 7, 0, -2,
		-5, 3, 5, 1,
	}
	shape := tensor.Shape{1, 1, 4, 4}
	kernel, stride, padding := []int{2, 2}, []int{2, 2}, []int{0, 0}

	input, _ := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	copy(input.AsFloat64(), base)

	out, mask := backend.MaxPool2DWithIndex(input, kernel, stride, padding)

	gradOut, _ := tensor.NewRaw(out.Shape(), tensor.Float64, tensor.CPU)
	gradData := gradOut.AsFloat64()
	for i := range gradData {
		gradData[i] = 1
	}

	dx := backend.MaxPool2DWithIndexGrad(input, mask, gradOut)
	dxData := dx.AsFloat64()

	sumOut := func(o *tensor.RawTensor) float64 {
		var s float64
		for _, v := range o.AsFloat64() {
			s += v
		}
		return s
	}

	const eps = 1e-3
	const tol = 1e-9
	baseSum := sumOut(out)

	for i := range base {
		perturbed, _ := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
		copy(perturbed.AsFloat64(), base)
		perturbed.AsFloat64()[i] += eps

		pOut, _ := backend.MaxPool2DWithIndex(perturbed, kernel, stride, padding)
		numeric := (sumOut(pOut) - baseSum) / eps

		if diff := numeric - dxData[i]; diff > tol || diff < -tol {
			t.Errorf("element %d: finite difference %v != analytic gradient %v", i, numeric, dxData[i])
		}
	}
}
