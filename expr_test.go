package gograd_test

import (
	"math"
	"testing"

	"github.com/njchilds90/gograd"
)

// ============================================================
// Helpers
// ============================================================

func bind(t *testing.T, pairs ...interface{}) gograd.Bindings {
	t.Helper()
	var b gograd.Bindings
	for i := 0; i < len(pairs); i += 2 {
		v := pairs[i].(*gograd.Expr)
		var r *gograd.Expr
		switch x := pairs[i+1].(type) {
		case float64:
			r = gograd.Const(x)
		case int:
			r = gograd.Const(float64(x))
		case gograd.Value:
			r = gograd.ConstOf(x)
		case *gograd.Expr:
			r = x
		default:
			t.Fatalf("cannot bind %T", x)
		}
		var err error
		if b, err = b.With(v, r); err != nil {
			t.Fatalf("bind %s: %s", v, err)
		}
	}
	return b
}

func evalFloat(t *testing.T, e *gograd.Expr, b gograd.Bindings) float64 {
	t.Helper()
	v, err := e.Eval(b)
	if err != nil {
		t.Fatalf("eval %s: %s", e, err)
	}
	if !v.Shape().IsScalar() {
		t.Fatalf("eval %s: want scalar, got %s", e, v.Shape())
	}
	return v.Float()
}

func evalRows(t *testing.T, e *gograd.Expr, b gograd.Bindings) [][]float64 {
	t.Helper()
	v, err := e.Eval(b)
	if err != nil {
		t.Fatalf("eval %s: %s", e, err)
	}
	return v.Rows()
}

func matrix(t *testing.T, rows [][]float64) gograd.Value {
	t.Helper()
	v, err := gograd.MatrixValue(rows)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func sameRows(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if !near(a[i][j], b[i][j]) {
				return false
			}
		}
	}
	return true
}

// ============================================================
// Leaf tests
// ============================================================

func TestVar_Identity(t *testing.T) {
	a, b := gograd.Var("x"), gograd.Var("x")
	if a == b || gograd.Equal(a, b) {
		t.Errorf("two variables named x must be distinct")
	}
	if !gograd.Equal(a, a) {
		t.Errorf("a variable must equal itself")
	}
}

func TestVecVar_Cells(t *testing.T) {
	w := gograd.VecVar("w", 3)
	if w.Shape().String() != "vec(3)" {
		t.Errorf("want vec(3), got %s", w.Shape())
	}
	c := w.Cell(2, 0)
	if c.Name() != "w[2]" || c.Parent() != w {
		t.Errorf("want cell w[2] owned by w, got %s", c.Name())
	}
	if w.At(2, 0) != c {
		t.Errorf("At on a variable should return its cell variable")
	}
}

func TestMatVar_Cells(t *testing.T) {
	m := gograd.MatVar("M", 2, 3)
	if len(m.Cells()) != 6 {
		t.Fatalf("want 6 cells, got %d", len(m.Cells()))
	}
	c := m.Cell(1, 2)
	if c.Name() != "M[1,2]" {
		t.Errorf("want M[1,2], got %s", c.Name())
	}
	if r, col := c.Index(); r != 1 || col != 2 {
		t.Errorf("want index (1,2), got (%d,%d)", r, col)
	}
}

func TestMatConst_Ragged(t *testing.T) {
	_, err := gograd.MatConst([][]float64{{1, 2}, {3}})
	if !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("want ShapeMismatch for ragged rows, got %v", err)
	}
}

func TestIdentity(t *testing.T) {
	v, _ := gograd.Identity(2).Value()
	if !sameRows(v.Rows(), [][]float64{{1, 0}, {0, 1}}) {
		t.Errorf("want I2, got %s", v)
	}
}

// ============================================================
// Constructor shape validation
// ============================================================

func TestMul_MatMulShape(t *testing.T) {
	a, b := gograd.MatVar("A", 2, 3), gograd.MatVar("B", 3, 4)
	p, err := gograd.Mul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind() != gograd.KindMatMul || p.Shape().String() != "2x4" {
		t.Errorf("want 2x4 matmul, got %s %s", p.Kind(), p.Shape())
	}
}

func TestMul_Mismatch(t *testing.T) {
	a, b := gograd.MatVar("A", 2, 3), gograd.MatVar("B", 2, 3)
	_, err := gograd.Mul(a, b)
	if !gograd.ShapeMismatch.Contains(err) {
		t.Fatalf("want ShapeMismatch, got %v", err)
	}
	if !gograd.Error.Contains(err) {
		t.Errorf("ShapeMismatch should belong to the gograd error group")
	}
}

func TestMul_MatVec(t *testing.T) {
	a, v := gograd.MatVar("A", 3, 2), gograd.VecVar("v", 2)
	p, err := gograd.Mul(a, v)
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind() != gograd.KindMatVec || p.Shape().String() != "vec(3)" {
		t.Errorf("want vec(3) matvec, got %s %s", p.Kind(), p.Shape())
	}
	if _, err := gograd.Mul(v, a); !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("vector·matrix should be a ShapeMismatch, got %v", err)
	}
}

func TestMul_ScaleKeepsScalarLeft(t *testing.T) {
	s, m := gograd.Var("s"), gograd.MatVar("M", 2, 2)
	p := m.Mul(s)
	if p.Kind() != gograd.KindScale || p.Args()[0] != s {
		t.Errorf("want scale with scalar first, got %s", p)
	}
}

func TestAdd_Mismatch(t *testing.T) {
	_, err := gograd.Add(gograd.VecVar("v", 2), gograd.VecVar("w", 3))
	if !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("want ShapeMismatch, got %v", err)
	}
	_, err = gograd.Add(gograd.Var("x"), gograd.VecVar("w", 1))
	if !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("scalar + vec(1) should mismatch, got %v", err)
	}
}

func TestDot_Shapes(t *testing.T) {
	if _, err := gograd.Dot(gograd.VecVar("v", 2), gograd.VecVar("w", 2)); err != nil {
		t.Errorf("dot of equal vectors: %s", err)
	}
	if _, err := gograd.Dot(gograd.VecVar("v", 2), gograd.VecVar("w", 3)); !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("want ShapeMismatch, got %v", err)
	}
}

func TestTranspose_Shapes(t *testing.T) {
	m := gograd.MatVar("M", 2, 3)
	if m.T().Shape().String() != "3x2" {
		t.Errorf("want 3x2, got %s", m.T().Shape())
	}
	if _, err := gograd.Transpose(gograd.VecVar("v", 2)); !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("transpose of a vector should mismatch, got %v", err)
	}
}

func TestPow_RequiresScalars(t *testing.T) {
	if _, err := gograd.Pow(gograd.VecVar("v", 2), gograd.Const(2)); !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("want ShapeMismatch, got %v", err)
	}
}

func TestAt_OutOfRange(t *testing.T) {
	if _, err := gograd.At(gograd.MatVar("M", 2, 2), 2, 0); !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("want ShapeMismatch, got %v", err)
	}
	if _, err := gograd.At(gograd.Var("x"), 0, 0); !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("indexing a scalar should mismatch, got %v", err)
	}
}

func TestMatOf_Ragged(t *testing.T) {
	x := gograd.Var("x")
	if _, err := gograd.MatOf([][]*gograd.Expr{{x, x}, {x}}); !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("want ShapeMismatch, got %v", err)
	}
	if _, err := gograd.VecOf(x, gograd.VecVar("v", 2)); !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("grid entries must be scalar, got %v", err)
	}
}

// ============================================================
// Structural simplification
// ============================================================

func TestNeg_DoubleNegation(t *testing.T) {
	x := gograd.Var("x")
	if x.Neg().Neg() != x {
		t.Errorf("--x should be x")
	}
}

func TestPow_ExponentOne(t *testing.T) {
	x := gograd.Var("x")
	d := x.D(x)
	r, err := d.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if x.Pow(r) != x {
		t.Errorf("x^1 should be x, got %s", x.Pow(r))
	}
}

func TestConst_NotElided(t *testing.T) {
	// user constants are kept even when numerically zero
	x := gograd.Var("x")
	s := x.Add(gograd.Const(0))
	if s.Kind() != gograd.KindSum {
		t.Errorf("want sum, got %s", s.Kind())
	}
}

// ============================================================
// Try and method sugar
// ============================================================

func TestTry_RecoversShapeMismatch(t *testing.T) {
	_, err := gograd.Try(func() *gograd.Expr {
		return gograd.VecVar("v", 2).Add(gograd.VecVar("w", 3))
	})
	if !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("want ShapeMismatch, got %v", err)
	}
}

func TestTry_PassesResult(t *testing.T) {
	x := gograd.Var("x")
	e, err := gograd.Try(func() *gograd.Expr { return x.Mul(x) })
	if err != nil || e.Kind() != gograd.KindProd {
		t.Errorf("want x*x, got %v, %v", e, err)
	}
}

func TestKindOf(t *testing.T) {
	for _, k := range []gograd.Kind{gograd.KindVar, gograd.KindMatMul, gograd.KindJacobian} {
		got, ok := gograd.KindOf(k.String())
		if !ok || got != k {
			t.Errorf("KindOf(%s) = %s, %v", k, got, ok)
		}
	}
	if _, ok := gograd.KindOf("nope"); ok {
		t.Errorf("unknown kind should not parse")
	}
}
