package gograd_test

import (
	"reflect"
	"testing"

	"github.com/njchilds90/gograd"
)

// ============================================================
// Materialize and Eval
// ============================================================

func TestMaterialize_Constant(t *testing.T) {
	v, err := gograd.Const(2).Add(gograd.Const(3)).Materialize()
	if err != nil || v.Float() != 5 {
		t.Errorf("want 5, got %s, %v", v, err)
	}
}

func TestMaterialize_UnboundNames(t *testing.T) {
	x, y := gograd.Var("x"), gograd.Var("y")
	m := gograd.MatVar("M", 2, 2)
	f := y.Mul(x).Add(m.At(0, 0))
	_, err := f.Materialize()
	if !gograd.UnboundVariable.Contains(err) {
		t.Fatalf("want UnboundVariable, got %v", err)
	}
	want := []string{"M[0,0]", "x", "y"}
	if got := gograd.UnboundNames(err); !reflect.DeepEqual(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestMaterialize_PartiallyBound(t *testing.T) {
	x, y := gograd.Var("x"), gograd.Var("y")
	_, err := x.Mul(y).Eval(bind(t, x, 1))
	if got := gograd.UnboundNames(err); !reflect.DeepEqual(got, []string{"y"}) {
		t.Errorf("want [y], got %v", got)
	}
}

func TestUnboundNames_OtherError(t *testing.T) {
	_, err := gograd.Add(gograd.VecVar("v", 2), gograd.Var("x"))
	if gograd.UnboundNames(err) != nil {
		t.Errorf("only UnboundVariable carries names")
	}
}

func TestEval_ScenarioB(t *testing.T) {
	m := gograd.MatVar("M", 2, 2)
	f := m.Mul(m.T())
	got := evalRows(t, f, bind(t, m, matrix(t, [][]float64{{1, 2}, {3, 4}})))
	want := [][]float64{{5, 11}, {11, 25}}
	if !sameRows(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestEval_VectorOps(t *testing.T) {
	a, err := gograd.MatConst([][]float64{{1, 0}, {0, 2}})
	if err != nil {
		t.Fatal(err)
	}
	w := gograd.VecVar("w", 2)
	f := a.Mul(w).Add(w.Hadamard(w)).Dot(w)
	// A·w = [1, 4], w⊙w = [1, 4], sum [2, 8], dot w = 2 + 16
	if got := evalFloat(t, f, bind(t, w, gograd.VectorValue(1, 2))); got != 18 {
		t.Errorf("want 18, got %g", got)
	}
}

// ============================================================
// Composition
// ============================================================

func TestInvoke_EmptyBindingsIsIdentity(t *testing.T) {
	x := gograd.Var("x")
	f := x.Mul(x)
	if f.Invoke(gograd.Bindings{}) != f {
		t.Errorf("Invoke with no bindings should return the receiver")
	}
}

func TestInvoke_Lazy(t *testing.T) {
	x, u := gograd.Var("x"), gograd.Var("u")
	c := x.Mul(x).Invoke(bind(t, x, u))
	if c.Kind() != gograd.KindComposition {
		t.Fatalf("want composition, got %s", c.Kind())
	}
	r, err := c.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if r.String() != "u*u" {
		t.Errorf("want u*u, got %s", r)
	}
}

func TestInvoke_Nested(t *testing.T) {
	x, u := gograd.Var("x"), gograd.Var("u")
	f := x.Mul(x).Add(gograd.Const(3).Mul(x))
	g := f.Invoke(bind(t, x, u.Mul(u))).Invoke(bind(t, u, 3))
	if got := evalFloat(t, g, gograd.Bindings{}); got != 108 {
		t.Errorf("want 108, got %g", got)
	}
}

func TestInvoke_ShapeMismatch(t *testing.T) {
	m := gograd.MatVar("M", 2, 2)
	if _, err := gograd.Bind(m, gograd.MatVar("N", 3, 3)); !gograd.ShapeMismatch.Contains(err) {
		t.Errorf("want ShapeMismatch, got %v", err)
	}
}

// ============================================================
// Free variables
// ============================================================

func TestFreeVariables(t *testing.T) {
	x, y := gograd.Var("x"), gograd.Var("y")
	vars, err := gograd.FreeVariables(y.Mul(x).Add(x))
	if err != nil {
		t.Fatal(err)
	}
	if len(vars) != 2 || vars[0] != x || vars[1] != y {
		t.Errorf("want [x y], got %v", vars)
	}
}

func TestFreeVariables_ThroughComposition(t *testing.T) {
	x, u := gograd.Var("x"), gograd.Var("u")
	vars, err := gograd.FreeVariables(x.Mul(x).Invoke(bind(t, x, u)))
	if err != nil {
		t.Fatal(err)
	}
	if len(vars) != 1 || vars[0] != u {
		t.Errorf("want [u], got %v", vars)
	}
}

func TestFreeVariables_Constant(t *testing.T) {
	vars, err := gograd.FreeVariables(gograd.Const(4))
	if err != nil || len(vars) != 0 {
		t.Errorf("a constant has no free variables")
	}
}
