package tensor

import "testing"

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{1, 3, 4, 4}, 48},
		{Shape{2, 1, 2, 3, 3}, 36},
	}

	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("NumElements(%v) = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3, 4}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{2, 0}).Validate(); err == nil {
		t.Error("zero dimension should be invalid")
	}
	if err := (Shape{-3}).Validate(); err == nil {
		t.Error("negative dimension should be invalid")
	}
}

func TestShapeEqual(t *testing.T) {
	if !(Shape{1, 2, 3}).Equal(Shape{1, 2, 3}) {
		t.Error("identical shapes should be equal")
	}
	if (Shape{1, 2}).Equal(Shape{1, 2, 3}) {
		t.Error("shapes of different rank should not be equal")
	}
	if (Shape{1, 2, 3}).Equal(Shape{1, 2, 4}) {
		t.Error("shapes with different dims should not be equal")
	}
}

func TestShapeComputeStrides(t *testing.T) {
	strides := Shape{2, 3, 4}.ComputeStrides()
	want := []int{12, 4, 1}
	for i := range want {
		if strides[i] != want[i] {
			t.Errorf("strides = %v, want %v", strides, want)
			break
		}
	}
}

func TestShapeCloneIndependent(t *testing.T) {
	s := Shape{1, 2, 3}
	c := s.Clone()
	c[0] = 9
	if s[0] != 1 {
		t.Error("Clone should not share backing memory")
	}
}
