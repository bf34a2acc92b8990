package gograd

import "fmt"

// ============================================================
// Tier and Shape
// ============================================================

// Tier is the rank of values a node produces.
type Tier uint8

const (
	TierScalar Tier = iota
	TierVector
	TierMatrix
)

func (t Tier) String() string {
	switch t {
	case TierScalar:
		return "scalar"
	case TierVector:
		return "vector"
	case TierMatrix:
		return "matrix"
	}
	return fmt.Sprintf("Tier(%d)", uint8(t))
}

// Shape is the declared output dimension of a node.  A vector of length n
// has Rows n and Cols 1; a scalar has neither.  Shapes are comparable.
type Shape struct {
	tier       Tier
	rows, cols int
}

func ScalarShape() Shape { return Shape{tier: TierScalar} }

func VectorShape(n int) Shape {
	if n <= 0 {
		panic(ShapeMismatch.New("vector length must be positive, got %d", n))
	}
	return Shape{tier: TierVector, rows: n, cols: 1}
}

func MatrixShape(rows, cols int) Shape {
	if rows <= 0 || cols <= 0 {
		panic(ShapeMismatch.New("matrix dimensions must be positive, got %dx%d", rows, cols))
	}
	return Shape{tier: TierMatrix, rows: rows, cols: cols}
}

func (s Shape) Tier() Tier     { return s.tier }
func (s Shape) Rows() int      { return s.rows }
func (s Shape) Cols() int      { return s.cols }
func (s Shape) IsScalar() bool { return s.tier == TierScalar }
func (s Shape) IsVector() bool { return s.tier == TierVector }
func (s Shape) IsMatrix() bool { return s.tier == TierMatrix }

// Len is the number of scalar cells.
func (s Shape) Len() int {
	if s.tier == TierScalar {
		return 1
	}
	return s.rows * s.cols
}

// T is the transposed shape; only meaningful for matrices.
func (s Shape) T() Shape {
	if s.tier != TierMatrix {
		return s
	}
	return Shape{tier: TierMatrix, rows: s.cols, cols: s.rows}
}

func (s Shape) String() string {
	switch s.tier {
	case TierScalar:
		return "scalar"
	case TierVector:
		return fmt.Sprintf("vec(%d)", s.rows)
	}
	return fmt.Sprintf("%dx%d", s.rows, s.cols)
}

// Dims is the shape as a dimension list: [] for a scalar, [n] for a
// vector and [rows, cols] for a matrix.
func (s Shape) Dims() []int {
	switch s.tier {
	case TierScalar:
		return []int{}
	case TierVector:
		return []int{s.rows}
	}
	return []int{s.rows, s.cols}
}

// ShapeOf is the inverse of Dims.
func ShapeOf(dims []int) (Shape, error) {
	switch {
	case len(dims) == 0:
		return ScalarShape(), nil
	case len(dims) == 1 && dims[0] > 0:
		return VectorShape(dims[0]), nil
	case len(dims) == 2 && dims[0] > 0 && dims[1] > 0:
		return MatrixShape(dims[0], dims[1]), nil
	}
	return Shape{}, ShapeMismatch.New("invalid dimensions %v", dims)
}

// ============================================================
// Shape Validator
// ============================================================

// Every operator constructor runs one of these before allocating a node.

func mismatch(op string, a, b Shape) error {
	return ShapeMismatch.New("%s: incompatible shapes %s and %s", op, a, b)
}

func checkSame(op string, a, b Shape) error {
	if a != b {
		return mismatch(op, a, b)
	}
	return nil
}

func checkTensor(op string, a Shape) error {
	if a.IsScalar() {
		return ShapeMismatch.New("%s: want vector or matrix, have %s", op, a)
	}
	return nil
}

func checkScalar(op string, a Shape) error {
	if !a.IsScalar() {
		return ShapeMismatch.New("%s: want scalar, have %s", op, a)
	}
	return nil
}

func checkMatMul(a, b Shape) error {
	if !a.IsMatrix() || !b.IsMatrix() || a.cols != b.rows {
		return mismatch("matmul", a, b)
	}
	return nil
}

func checkMatVec(a, b Shape) error {
	if !a.IsMatrix() || !b.IsVector() || a.cols != b.rows {
		return mismatch("matvec", a, b)
	}
	return nil
}

func checkDot(a, b Shape) error {
	if !a.IsVector() || a != b {
		return mismatch("dot", a, b)
	}
	return nil
}

func checkTranspose(a Shape) error {
	if !a.IsMatrix() {
		return ShapeMismatch.New("transpose: want matrix, have %s", a)
	}
	return nil
}

func checkIndex(a Shape, row, col int) error {
	switch a.tier {
	case TierVector:
		if row >= 0 && row < a.rows && col == 0 {
			return nil
		}
	case TierMatrix:
		if row >= 0 && row < a.rows && col >= 0 && col < a.cols {
			return nil
		}
	default:
		return ShapeMismatch.New("index: want vector or matrix, have %s", a)
	}
	return ShapeMismatch.New("index [%d,%d] out of range for %s", row, col, a)
}

// checkBinding validates that a replacement fits the variable it replaces.
func checkBinding(v, r Shape) error {
	if v != r {
		return mismatch("bind", v, r)
	}
	return nil
}
