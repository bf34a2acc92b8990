package gograd_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/njchilds90/gograd"
)

// ============================================================
// Export tests
// ============================================================

func TestExportGraph_SharedNodesOnce(t *testing.T) {
	x := gograd.Var("x")
	f := x.Mul(x).Add(gograd.Const(3).Mul(x))
	g := gograd.ExportGraph(f)
	if len(g.Nodes) != 5 {
		t.Fatalf("want 5 nodes (x appears once), got %d", len(g.Nodes))
	}
	if g.Root != 5 || g.Nodes[4].Kind != "sum" {
		t.Errorf("root should be the last node, got %d %s", g.Root, g.Nodes[g.Root-1].Kind)
	}
	if len(g.Edges) != 6 {
		t.Errorf("want 6 operand edges, got %d", len(g.Edges))
	}
	for _, n := range g.Nodes {
		for _, a := range n.Args {
			if a >= n.ID {
				t.Errorf("node %d refers forward to %d", n.ID, a)
			}
		}
	}
}

func TestExportGraph_CellVariable(t *testing.T) {
	m := gograd.MatVar("M", 2, 2)
	g := gograd.ExportGraph(m.At(1, 0))
	if len(g.Nodes) != 2 {
		t.Fatalf("want owner and cell, got %d nodes", len(g.Nodes))
	}
	cell := g.Nodes[1]
	if cell.Parent != 1 || len(cell.Index) != 2 || cell.Index[0] != 1 || cell.Index[1] != 0 {
		t.Errorf("cell should point at its owner with index [1 0], got %+v", cell)
	}
}

// ============================================================
// Round trips
// ============================================================

func roundTrip(t *testing.T, e *gograd.Expr, f gograd.Format) (*gograd.Expr, map[string]*gograd.Expr) {
	t.Helper()
	var buf bytes.Buffer
	if err := gograd.WriteGraph(&buf, f, gograd.ExportGraph(e)); err != nil {
		t.Fatalf("write %s: %s", f, err)
	}
	back, vars, err := gograd.ReadExpr(&buf, f)
	if err != nil {
		t.Fatalf("read %s: %s", f, err)
	}
	return back, vars
}

func TestGraph_RoundTripJSON(t *testing.T) {
	x := gograd.Var("x")
	f := x.Mul(x).Add(gograd.Const(3).Mul(x))
	back, vars := roundTrip(t, f, gograd.FormatJSON)
	if back.String() != f.String() {
		t.Errorf("want %s, got %s", f, back)
	}
	if got := evalFloat(t, back.D(vars["x"]), bind(t, vars["x"], 2)); got != 7 {
		t.Errorf("want 7, got %g", got)
	}
}

func TestGraph_RoundTripCBOR(t *testing.T) {
	m := gograd.MatVar("M", 2, 2)
	f := m.Mul(m.T())
	back, vars := roundTrip(t, f, gograd.FormatCBOR)
	got := evalRows(t, back, bind(t, vars["M"], matrix(t, [][]float64{{1, 2}, {3, 4}})))
	if !sameRows(got, [][]float64{{5, 11}, {11, 25}}) {
		t.Errorf("want [[5 11] [11 25]], got %v", got)
	}
}

func TestGraph_RoundTripLazyNodes(t *testing.T) {
	x := gograd.Var("x")
	m := gograd.MatVar("M", 2, 2)
	g := m.At(0, 1).Mul(x)
	c := g.D(x).Invoke(bind(t, m, matrix(t, [][]float64{{1, 2}, {3, 4}})))
	back, _ := roundTrip(t, c, gograd.FormatJSON)
	if back.Kind() != gograd.KindComposition {
		t.Fatalf("want composition, got %s", back.Kind())
	}
	if got := evalFloat(t, back, gograd.Bindings{}); got != 2 {
		t.Errorf("want 2, got %g", got)
	}
}

func TestGraph_RoundTripConstants(t *testing.T) {
	a, err := gograd.MatConst([][]float64{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatal(err)
	}
	f := a.Mul(gograd.VecConst(1, 1)).Dot(gograd.VecConst(0.5, 0))
	back, _ := roundTrip(t, f, gograd.FormatJSON)
	if got := evalFloat(t, back, gograd.Bindings{}); got != 1.5 {
		t.Errorf("want 1.5, got %g", got)
	}
}

func TestReadGraph_YAML(t *testing.T) {
	doc := `
root: 3
nodes:
  - {id: 1, kind: var, shape: [], name: x}
  - {id: 2, kind: const, shape: [], value: 2}
  - {id: 3, kind: pow, shape: [], args: [1, 2]}
`
	e, vars, err := gograd.ReadExpr(strings.NewReader(doc), gograd.FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	if e.String() != "x^2" {
		t.Errorf("want x^2, got %s", e)
	}
	if got := evalFloat(t, e, bind(t, vars["x"], 3)); got != 9 {
		t.Errorf("want 9, got %g", got)
	}
}

func TestWriteGraph_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	err := gograd.WriteGraph(&buf, gograd.FormatYAML, gograd.ExportGraph(gograd.Var("x")))
	if !gograd.InvalidDocument.Contains(err) {
		t.Errorf("want InvalidDocument, got %v", err)
	}
}

// ============================================================
// Malformed documents
// ============================================================

func TestGraphBuild_Invalid(t *testing.T) {
	scalar := []int{}
	cases := map[string]*gograd.Graph{
		"unknown kind": {Root: 1, Nodes: []gograd.GraphNode{
			{ID: 1, Kind: "sin", Shape: scalar},
		}},
		"forward reference": {Root: 2, Nodes: []gograd.GraphNode{
			{ID: 1, Kind: "neg", Shape: scalar, Args: []int{2}},
			{ID: 2, Kind: "var", Shape: scalar, Name: "x"},
		}},
		"arity": {Root: 2, Nodes: []gograd.GraphNode{
			{ID: 1, Kind: "var", Shape: scalar, Name: "x"},
			{ID: 2, Kind: "sum", Shape: scalar, Args: []int{1}},
		}},
		"declared shape": {Root: 2, Nodes: []gograd.GraphNode{
			{ID: 1, Kind: "var", Shape: []int{2, 2}, Name: "M"},
			{ID: 2, Kind: "transpose", Shape: []int{3, 2}, Args: []int{1}},
		}},
		"operand shapes": {Root: 3, Nodes: []gograd.GraphNode{
			{ID: 1, Kind: "var", Shape: []int{2}, Name: "v"},
			{ID: 2, Kind: "var", Shape: []int{3}, Name: "w"},
			{ID: 3, Kind: "dot", Shape: scalar, Args: []int{1, 2}},
		}},
		"duplicate name": {Root: 3, Nodes: []gograd.GraphNode{
			{ID: 1, Kind: "var", Shape: scalar, Name: "x"},
			{ID: 2, Kind: "var", Shape: scalar, Name: "x"},
			{ID: 3, Kind: "sum", Shape: scalar, Args: []int{1, 2}},
		}},
		"missing value": {Root: 1, Nodes: []gograd.GraphNode{
			{ID: 1, Kind: "const", Shape: scalar},
		}},
		"root": {Root: 4, Nodes: []gograd.GraphNode{
			{ID: 1, Kind: "var", Shape: scalar, Name: "x"},
		}},
		"ids out of order": {Root: 1, Nodes: []gograd.GraphNode{
			{ID: 7, Kind: "var", Shape: scalar, Name: "x"},
		}},
		"grid arity": {Root: 3, Nodes: []gograd.GraphNode{
			{ID: 1, Kind: "const", Shape: scalar, Value: 1.0},
			{ID: 2, Kind: "const", Shape: scalar, Value: 2.0},
			{ID: 3, Kind: "grid", Shape: []int{3}, Args: []int{1, 2}},
		}},
		"declared kind": {Root: 3, Nodes: []gograd.GraphNode{
			{ID: 1, Kind: "var", Shape: scalar, Name: "x"},
			{ID: 2, Kind: "var", Shape: scalar, Name: "y"},
			{ID: 3, Kind: "matmul", Shape: scalar, Args: []int{1, 2}},
		}},
	}
	for name, g := range cases {
		if _, _, err := g.Build(); !gograd.InvalidDocument.Contains(err) {
			t.Errorf("%s: want InvalidDocument, got %v", name, err)
		}
	}
}
