package gograd

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/ugorji/go/codec"
	"gopkg.in/yaml.v3"
)

// ============================================================
// Graph documents
// ============================================================

// Graph is an expression flattened into an arena.  Node IDs start at 1 and
// every reference points at a smaller ID, so nodes can be rebuilt in order.
// A node reached through several parents appears once.
type Graph struct {
	Root  int         `codec:"root"`
	Nodes []GraphNode `codec:"nodes"`
	// Edges are (parent, operand) pairs derived from Args.
	Edges [][2]int `codec:"edges,omitempty"`
}

type GraphNode struct {
	ID    int         `codec:"id"`
	Kind  string      `codec:"kind"`
	Shape []int       `codec:"shape"`
	Label string      `codec:"label,omitempty"`
	Name  string      `codec:"name,omitempty"`
	Value interface{} `codec:"value"`

	// Index locates an Entry node, or a cell variable within Parent.
	Index    []int          `codec:"index,omitempty"`
	Parent   int            `codec:"parent,omitempty"`
	Args     []int          `codec:"args,omitempty"`
	Wrt      int            `codec:"wrt,omitempty"`
	Bindings []GraphBinding `codec:"bindings,omitempty"`
}

type GraphBinding struct {
	Var  int `codec:"var"`
	Expr int `codec:"expr"`
}

// ExportGraph flattens e in post-order; the root is the last node.
func ExportGraph(e *Expr) *Graph {
	x := &exporter{ids: map[*Expr]int{}, g: &Graph{}}
	x.g.Root = x.visit(e)
	return x.g
}

type exporter struct {
	ids map[*Expr]int
	g   *Graph
}

func (x *exporter) visit(e *Expr) int {
	if id, ok := x.ids[e]; ok {
		return id
	}
	n := GraphNode{
		Kind:  e.kind.String(),
		Shape: e.shape.Dims(),
		Label: label(e),
		Name:  e.name,
	}
	switch {
	case e.kind == KindConst:
		n.Value = e.value.Interface()
	case e.parent != nil:
		n.Parent = x.visit(e.parent)
		n.Index = []int{e.row, e.col}
	case e.kind == KindEntry:
		n.Index = []int{e.row, e.col}
	}
	for _, a := range e.args {
		n.Args = append(n.Args, x.visit(a))
	}
	if e.wrt != nil {
		n.Wrt = x.visit(e.wrt)
	}
	for _, v := range e.bindings.keys {
		n.Bindings = append(n.Bindings, GraphBinding{Var: x.visit(v), Expr: x.visit(e.bindings.vals[v])})
	}
	n.ID = len(x.g.Nodes) + 1
	x.ids[e] = n.ID
	x.g.Nodes = append(x.g.Nodes, n)
	for _, a := range n.Args {
		x.g.Edges = append(x.g.Edges, [2]int{n.ID, a})
	}
	return n.ID
}

var labels = map[Kind]string{
	KindNeg:         "-",
	KindSum:         "+",
	KindProd:        "*",
	KindScale:       "*",
	KindHadamard:    "⊙",
	KindMatMul:      "@",
	KindMatVec:      "@",
	KindDot:         "dot",
	KindTranspose:   "T",
	KindPow:         "^",
	KindLog:         "ln",
	KindEntry:       "[]",
	KindGrid:        "grid",
	KindComposition: "∘",
	KindDerivative:  "d",
	KindGradient:    "grad",
	KindJacobian:    "jac",
}

func label(e *Expr) string {
	switch e.kind {
	case KindVar:
		return e.name
	case KindConst:
		return e.value.String()
	}
	return labels[e.kind]
}

// ============================================================
// Rebuilding
// ============================================================

// Build reconstructs the expression.  The returned table maps the name of
// every top-level variable to its node; cell variables are reached through
// their owner.  Malformed documents fail with InvalidDocument.
func (g *Graph) Build() (*Expr, map[string]*Expr, error) {
	b := &builder{g: g, nodes: make([]*Expr, len(g.Nodes)+1), vars: map[string]*Expr{}}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID != i+1 {
			return nil, nil, InvalidDocument.New("node %d: out of order, want id %d", n.ID, i+1)
		}
		e, err := b.node(n)
		if err != nil {
			return nil, nil, InvalidDocument.New("node %d (%s): %s", n.ID, n.Kind, err)
		}
		b.nodes[n.ID] = e
	}
	if g.Root < 1 || g.Root > len(g.Nodes) {
		return nil, nil, InvalidDocument.New("root %d is not a node", g.Root)
	}
	return b.nodes[g.Root], b.vars, nil
}

type builder struct {
	g     *Graph
	nodes []*Expr
	vars  map[string]*Expr
}

func (b *builder) ref(from, id int) (*Expr, error) {
	if id < 1 || id >= from {
		return nil, InvalidDocument.New("reference %d must point at an earlier node", id)
	}
	return b.nodes[id], nil
}

var arity = map[Kind]int{
	KindVar: 0, KindConst: 0,
	KindNeg: 1, KindTranspose: 1, KindLog: 1, KindEntry: 1,
	KindComposition: 1, KindDerivative: 1, KindGradient: 1, KindJacobian: 1,
	KindSum: 2, KindProd: 2, KindScale: 2, KindHadamard: 2,
	KindMatMul: 2, KindMatVec: 2, KindDot: 2, KindPow: 2,
}

func (b *builder) node(n *GraphNode) (*Expr, error) {
	kind, ok := KindOf(n.Kind)
	if !ok {
		return nil, InvalidDocument.New("unknown kind %q", n.Kind)
	}
	shape, err := ShapeOf(n.Shape)
	if err != nil {
		return nil, err
	}
	if want, fixed := arity[kind]; fixed && len(n.Args) != want {
		return nil, InvalidDocument.New("want %d operands, have %d", want, len(n.Args))
	}
	args := make([]*Expr, len(n.Args))
	for i, id := range n.Args {
		if args[i], err = b.ref(n.ID, id); err != nil {
			return nil, err
		}
	}
	var e *Expr
	var cerr error
	if err = catch(func() { e, cerr = b.construct(n, kind, shape, args) }); err != nil {
		return nil, err
	}
	if cerr != nil {
		return nil, cerr
	}
	if e.shape != shape {
		return nil, InvalidDocument.New("declared shape %s, built %s", shape, e.shape)
	}
	switch kind {
	case KindProd, KindScale, KindMatMul, KindMatVec:
		if e.kind != kind {
			return nil, InvalidDocument.New("declared kind %s, built %s", kind, e.kind)
		}
	}
	return e, nil
}

func (b *builder) construct(n *GraphNode, kind Kind, shape Shape, args []*Expr) (*Expr, error) {
	row, col, err := b.index(n, kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindVar:
		return b.variable(n, shape, row, col)
	case KindConst:
		if n.Value == nil {
			return nil, InvalidDocument.New("constant has no value")
		}
		v, err := ValueOf(n.Value)
		if err != nil {
			return nil, err
		}
		return ConstOf(v), nil
	case KindNeg:
		return Neg(args[0]), nil
	case KindSum:
		return Add(args[0], args[1])
	case KindProd, KindScale, KindMatMul, KindMatVec:
		return Mul(args[0], args[1])
	case KindHadamard:
		return Hadamard(args[0], args[1])
	case KindDot:
		return Dot(args[0], args[1])
	case KindTranspose:
		return Transpose(args[0])
	case KindPow:
		return Pow(args[0], args[1])
	case KindLog:
		return Log(args[0])
	case KindEntry:
		return At(args[0], row, col)
	case KindGrid:
		if len(args) != shape.Len() {
			return nil, InvalidDocument.New("grid of shape %s needs %d entries, have %d", shape, shape.Len(), len(args))
		}
		return grid(shape, args)
	case KindComposition:
		var bs Bindings
		for _, gb := range n.Bindings {
			v, err := b.ref(n.ID, gb.Var)
			if err != nil {
				return nil, err
			}
			r, err := b.ref(n.ID, gb.Expr)
			if err != nil {
				return nil, err
			}
			if bs, err = bs.With(v, r); err != nil {
				return nil, err
			}
		}
		return args[0].Invoke(bs), nil
	}
	wrt, err := b.ref(n.ID, n.Wrt)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindDerivative:
		if !wrt.shape.IsScalar() {
			return nil, InvalidDocument.New("derivative target must be scalar, have %s", wrt.shape)
		}
		return D(args[0], wrt)
	case KindGradient:
		return Grad(args[0], wrt)
	case KindJacobian:
		return Jacobian(args[0], wrt)
	}
	return nil, InvalidDocument.New("cannot rebuild %s", kind)
}

func (b *builder) index(n *GraphNode, kind Kind) (row, col int, err error) {
	if kind != KindEntry && n.Parent == 0 {
		return 0, 0, nil
	}
	if len(n.Index) != 2 {
		return 0, 0, InvalidDocument.New("index must be [row, col], have %v", n.Index)
	}
	return n.Index[0], n.Index[1], nil
}

func (b *builder) variable(n *GraphNode, shape Shape, row, col int) (*Expr, error) {
	if n.Parent != 0 {
		p, err := b.ref(n.ID, n.Parent)
		if err != nil {
			return nil, err
		}
		if p.kind != KindVar || len(p.cells) == 0 {
			return nil, InvalidDocument.New("parent %d is not a vector or matrix variable", n.Parent)
		}
		if err := checkIndex(p.shape, row, col); err != nil {
			return nil, err
		}
		return p.Cell(row, col), nil
	}
	if n.Name == "" {
		return nil, InvalidDocument.New("variable has no name")
	}
	if _, dup := b.vars[n.Name]; dup {
		return nil, InvalidDocument.New("duplicate variable %q", n.Name)
	}
	var v *Expr
	switch shape.tier {
	case TierScalar:
		v = Var(n.Name)
	case TierVector:
		v = VecVar(n.Name, shape.rows)
	default:
		v = MatVar(n.Name, shape.rows, shape.cols)
	}
	b.vars[n.Name] = v
	return v, nil
}

// ============================================================
// Encoding
// ============================================================

// Format names a document encoding: "json", "cbor" or "yaml".
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
	FormatYAML Format = "yaml"
)

// yaml is decoded generically and bounced through cbor, so every format
// shares the codec struct tags.
var bounceHandle = &codec.CborHandle{}

func (f Format) handle() (codec.Handle, error) {
	switch f {
	case FormatJSON, "":
		return &codec.JsonHandle{Indent: -1}, nil
	case FormatCBOR:
		return &codec.CborHandle{}, nil
	}
	return nil, InvalidDocument.New("unsupported format %q", string(f))
}

// WriteGraph encodes g.  YAML is read-only.
func WriteGraph(w io.Writer, f Format, g *Graph) error {
	h, err := f.handle()
	if err != nil {
		return err
	}
	return codec.NewEncoder(w, h).Encode(g)
}

func ReadGraph(r io.Reader, f Format) (*Graph, error) {
	if f == FormatYAML {
		return readYAML(r)
	}
	h, err := f.handle()
	if err != nil {
		return nil, err
	}
	var g Graph
	if err := codec.NewDecoder(r, h).Decode(&g); err != nil {
		return nil, InvalidDocument.New("decode %s graph: %s", string(f), err)
	}
	return &g, nil
}

func readYAML(r io.Reader) (*Graph, error) {
	byts, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var raw interface{}
	if err := yaml.Unmarshal(byts, &raw); err != nil {
		return nil, InvalidDocument.New("parse yaml graph: %s", err)
	}
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, bounceHandle).Encode(raw); err != nil {
		return nil, InvalidDocument.New("bounce yaml graph: %s", err)
	}
	var g Graph
	if err := codec.NewDecoder(&buf, bounceHandle).Decode(&g); err != nil {
		return nil, InvalidDocument.New("decode yaml graph: %s", err)
	}
	return &g, nil
}

// ReadExpr reads a graph document and builds it.
func ReadExpr(r io.Reader, f Format) (*Expr, map[string]*Expr, error) {
	g, err := ReadGraph(r, f)
	if err != nil {
		return nil, nil, err
	}
	return g.Build()
}
