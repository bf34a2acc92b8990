// Package gograd is a symbolic differentiation kernel for scalar-, vector-
// and matrix-valued functions.
//
// Functions are immutable expression trees.  Every operator constructor
// validates operand shapes before a node exists, differentiation is a
// structural rewrite that returns new trees, and evaluation substitutes
// bindings until a concrete Value remains.
//
//	x := gograd.Var("x")
//	f, _ := gograd.Try(func() *gograd.Expr {
//		return x.Mul(x).Add(gograd.Const(3).Mul(x))
//	})
//	df, _ := gograd.D(f, x)
//	b, _ := gograd.Bind(x, gograd.Const(2))
//	v, _ := df.Eval(b) // 7
package gograd

import "fmt"

// ============================================================
// Kinds
// ============================================================

// Kind tags the closed set of node variants.
type Kind uint8

const (
	KindVar Kind = iota
	KindConst
	KindNeg
	KindSum
	KindProd     // scalar · scalar
	KindScale    // scalar · vector or matrix
	KindHadamard // elementwise product
	KindMatMul
	KindMatVec
	KindDot
	KindTranspose
	KindPow
	KindLog
	KindEntry // one cell of a vector or matrix
	KindGrid  // vector or matrix assembled from scalar nodes
	KindComposition
	KindDerivative
	KindGradient
	KindJacobian
)

var kindNames = [...]string{
	KindVar:         "var",
	KindConst:       "const",
	KindNeg:         "neg",
	KindSum:         "sum",
	KindProd:        "prod",
	KindScale:       "scale",
	KindHadamard:    "hadamard",
	KindMatMul:      "matmul",
	KindMatVec:      "matvec",
	KindDot:         "dot",
	KindTranspose:   "transpose",
	KindPow:         "pow",
	KindLog:         "log",
	KindEntry:       "entry",
	KindGrid:        "grid",
	KindComposition: "composition",
	KindDerivative:  "derivative",
	KindGradient:    "gradient",
	KindJacobian:    "jacobian",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// KindOf parses the names produced by Kind.String.
func KindOf(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// lazy reports whether nodes of this kind expand on demand.
func (k Kind) lazy() bool {
	return k == KindComposition || k == KindDerivative || k == KindGradient || k == KindJacobian
}

// ============================================================
// Expr
// ============================================================

// constTag marks constants the engine itself produced as structural zeros
// and ones, so constructors can elide them without numeric inspection.
type constTag uint8

const (
	tagNone constTag = iota
	tagZero
	tagOne
)

// Expr is an immutable expression node.  Operands may be shared between
// parents but never form a cycle.  Only the lazy cell of a Composition,
// Derivative, Gradient or Jacobian node is written after construction.
type Expr struct {
	kind  Kind
	shape Shape

	name  string
	value Value
	tag   constTag

	args []*Expr

	// cells are the per-entry scalar variables of a vector or matrix
	// variable, row-major.  A cell points back at its owner.
	cells  []*Expr
	parent *Expr

	// row and col locate a cell variable or an Entry node.
	row, col int

	bindings Bindings
	wrt      *Expr
	lazy     *memo
}

func (e *Expr) Kind() Kind   { return e.kind }
func (e *Expr) Shape() Shape { return e.shape }
func (e *Expr) Name() string { return e.name }

// Value is the content of a Constant.
func (e *Expr) Value() (Value, bool) { return e.value, e.kind == KindConst }

// Args are the operands in order.
func (e *Expr) Args() []*Expr { return append([]*Expr(nil), e.args...) }

// Cells are the per-entry scalar variables of a vector or matrix variable.
func (e *Expr) Cells() []*Expr { return append([]*Expr(nil), e.cells...) }

// Cell returns the scalar variable at (row, col); col is 0 for vectors.
func (e *Expr) Cell(row, col int) *Expr {
	if len(e.cells) == 0 {
		panic(UnsupportedOperation.New("%s has no cell variables", e.kind))
	}
	if err := checkIndex(e.shape, row, col); err != nil {
		panic(err)
	}
	return e.cells[row*e.shape.cols+col]
}

// Parent is the vector or matrix variable owning a cell variable.
func (e *Expr) Parent() *Expr { return e.parent }

// Index is the position of a cell variable or Entry node.
func (e *Expr) Index() (row, col int) { return e.row, e.col }

// Wrt is the differentiation target of a Derivative, Gradient or Jacobian.
func (e *Expr) Wrt() *Expr { return e.wrt }

// Bindings are the pending bindings of a Composition.
func (e *Expr) Bindings() Bindings { return e.bindings }

// Resolve returns the one-time expansion of a Composition, Derivative,
// Gradient or Jacobian node, and the receiver for every other kind.
func (e *Expr) Resolve() (*Expr, error) {
	if !e.kind.lazy() {
		return e, nil
	}
	return e.lazy.force(e, e.expand)
}

func (e *Expr) mustResolve() *Expr {
	r, err := e.Resolve()
	if err != nil {
		panic(err)
	}
	return r
}

func (e *Expr) expand() *Expr {
	switch e.kind {
	case KindComposition:
		return substitute(e.args[0], e.bindings)
	case KindDerivative:
		return differentiate(e.args[0], e.wrt)
	case KindGradient:
		return gradient(e.args[0], e.wrt)
	case KindJacobian:
		return jacobian(e.args[0], e.wrt)
	}
	panic(UnsupportedOperation.New("expand: %s is not lazy", e.kind))
}

// ============================================================
// Leaves
// ============================================================

// Var is a scalar variable.  Variables are identified by pointer, not by
// name; the name is for rendering.
func Var(name string) *Expr {
	return &Expr{kind: KindVar, shape: ScalarShape(), name: name}
}

// VecVar is a vector variable owning one scalar variable per entry, named
// name[i].  It panics with ShapeMismatch when n is not positive.
func VecVar(name string, n int) *Expr {
	v := &Expr{kind: KindVar, shape: VectorShape(n), name: name}
	v.cells = make([]*Expr, n)
	for i := range v.cells {
		v.cells[i] = &Expr{kind: KindVar, shape: ScalarShape(), name: fmt.Sprintf("%s[%d]", name, i), parent: v, row: i}
	}
	return v
}

// MatVar is a matrix variable owning one scalar variable per entry, named
// name[i,j].  It panics with ShapeMismatch on non-positive dimensions.
func MatVar(name string, rows, cols int) *Expr {
	v := &Expr{kind: KindVar, shape: MatrixShape(rows, cols), name: name}
	v.cells = make([]*Expr, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v.cells = append(v.cells, &Expr{kind: KindVar, shape: ScalarShape(), name: fmt.Sprintf("%s[%d,%d]", name, i, j), parent: v, row: i, col: j})
		}
	}
	return v
}

func ConstOf(v Value) *Expr { return &Expr{kind: KindConst, shape: v.shape, value: v} }

func Const(f float64) *Expr { return ConstOf(ScalarValue(f)) }

// VecConst panics with ShapeMismatch when xs is empty.
func VecConst(xs ...float64) *Expr { return ConstOf(VectorValue(xs...)) }

func MatConst(rows [][]float64) (*Expr, error) {
	v, err := MatrixValue(rows)
	if err != nil {
		return nil, err
	}
	return ConstOf(v), nil
}

// Identity is the n×n identity matrix constant.
func Identity(n int) *Expr {
	s := MatrixShape(n, n)
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	return ConstOf(gridValue(s, data))
}

// Zeros is the structural zero of shape s.
func Zeros(s Shape) *Expr {
	return &Expr{kind: KindConst, shape: s, value: zeroValue(s), tag: tagZero}
}

// One is the structural scalar one.
func One() *Expr {
	return &Expr{kind: KindConst, shape: ScalarShape(), value: ScalarValue(1), tag: tagOne}
}

func (e *Expr) isZero() bool { return e.kind == KindConst && e.tag == tagZero }
func (e *Expr) isOne() bool  { return e.kind == KindConst && e.tag == tagOne }

// ============================================================
// Operator constructors
// ============================================================

// Each constructor validates shapes first and then elides structural
// zeros and ones.  None of them performs numeric arithmetic.

func Neg(a *Expr) *Expr {
	switch {
	case a.isZero():
		return a
	case a.kind == KindNeg:
		return a.args[0]
	}
	return &Expr{kind: KindNeg, shape: a.shape, args: []*Expr{a}}
}

func Add(a, b *Expr) (*Expr, error) {
	if err := checkSame("add", a.shape, b.shape); err != nil {
		return nil, err
	}
	switch {
	case a.isZero():
		return b, nil
	case b.isZero():
		return a, nil
	}
	return &Expr{kind: KindSum, shape: a.shape, args: []*Expr{a, b}}, nil
}

func Sub(a, b *Expr) (*Expr, error) {
	if err := checkSame("sub", a.shape, b.shape); err != nil {
		return nil, err
	}
	return Add(a, Neg(b))
}

// Mul dispatches on operand tiers: scalar·scalar, scalar·tensor (either
// order), matrix·matrix and matrix·vector.  Vector·vector is Dot or
// Hadamard, never Mul.
func Mul(a, b *Expr) (*Expr, error) {
	as, bs := a.shape, b.shape
	switch {
	case as.IsScalar() && bs.IsScalar():
		return prod(a, b), nil
	case as.IsScalar():
		return scale(a, b), nil
	case bs.IsScalar():
		return scale(b, a), nil
	case as.IsMatrix() && bs.IsMatrix():
		if err := checkMatMul(as, bs); err != nil {
			return nil, err
		}
		if a.isZero() || b.isZero() {
			return Zeros(MatrixShape(as.rows, bs.cols)), nil
		}
		return &Expr{kind: KindMatMul, shape: MatrixShape(as.rows, bs.cols), args: []*Expr{a, b}}, nil
	case as.IsMatrix() && bs.IsVector():
		if err := checkMatVec(as, bs); err != nil {
			return nil, err
		}
		if a.isZero() || b.isZero() {
			return Zeros(VectorShape(as.rows)), nil
		}
		return &Expr{kind: KindMatVec, shape: VectorShape(as.rows), args: []*Expr{a, b}}, nil
	}
	return nil, mismatch("mul", as, bs)
}

func prod(a, b *Expr) *Expr {
	switch {
	case a.isZero() || b.isZero():
		return Zeros(ScalarShape())
	case a.isOne():
		return b
	case b.isOne():
		return a
	}
	return &Expr{kind: KindProd, shape: ScalarShape(), args: []*Expr{a, b}}
}

// scale keeps the scalar on the left.
func scale(s, t *Expr) *Expr {
	switch {
	case s.isZero() || t.isZero():
		return Zeros(t.shape)
	case s.isOne():
		return t
	}
	return &Expr{kind: KindScale, shape: t.shape, args: []*Expr{s, t}}
}

// Div divides by a scalar: a·b^-1.
func Div(a, b *Expr) (*Expr, error) {
	if err := checkScalar("div", b.shape); err != nil {
		return nil, err
	}
	inv, err := Pow(b, Const(-1))
	if err != nil {
		return nil, err
	}
	return Mul(a, inv)
}

func Hadamard(a, b *Expr) (*Expr, error) {
	if err := checkSame("hadamard", a.shape, b.shape); err != nil {
		return nil, err
	}
	if a.shape.IsScalar() {
		return prod(a, b), nil
	}
	if a.isZero() || b.isZero() {
		return Zeros(a.shape), nil
	}
	return &Expr{kind: KindHadamard, shape: a.shape, args: []*Expr{a, b}}, nil
}

func Dot(a, b *Expr) (*Expr, error) {
	if err := checkDot(a.shape, b.shape); err != nil {
		return nil, err
	}
	if a.isZero() || b.isZero() {
		return Zeros(ScalarShape()), nil
	}
	return &Expr{kind: KindDot, shape: ScalarShape(), args: []*Expr{a, b}}, nil
}

func Transpose(a *Expr) (*Expr, error) {
	if err := checkTranspose(a.shape); err != nil {
		return nil, err
	}
	if a.isZero() {
		return Zeros(a.shape.T()), nil
	}
	return &Expr{kind: KindTranspose, shape: a.shape.T(), args: []*Expr{a}}, nil
}

// Pow raises a scalar to a scalar power.  When the exponent contains
// variables its derivative uses logarithmic differentiation, which is only
// meaningful for a positive base; the base is not checked.
func Pow(base, exp *Expr) (*Expr, error) {
	if err := checkScalar("pow", base.shape); err != nil {
		return nil, err
	}
	if err := checkScalar("pow", exp.shape); err != nil {
		return nil, err
	}
	switch {
	case exp.isZero():
		return One(), nil
	case exp.isOne():
		return base, nil
	}
	return &Expr{kind: KindPow, shape: ScalarShape(), args: []*Expr{base, exp}}, nil
}

// Log is the natural logarithm of a scalar.
func Log(a *Expr) (*Expr, error) {
	if err := checkScalar("log", a.shape); err != nil {
		return nil, err
	}
	if a.isOne() {
		return Zeros(ScalarShape()), nil
	}
	return &Expr{kind: KindLog, shape: ScalarShape(), args: []*Expr{a}}, nil
}

// At is the scalar cell (row, col) of a vector or matrix; col is 0 for
// vectors.  The cell of a variable is its own cell variable.
func At(a *Expr, row, col int) (*Expr, error) {
	if err := checkIndex(a.shape, row, col); err != nil {
		return nil, err
	}
	switch {
	case a.isZero():
		return Zeros(ScalarShape()), nil
	case a.kind == KindVar:
		return a.cells[row*a.shape.cols+col], nil
	case a.kind == KindGrid:
		return a.args[row*a.shape.cols+col], nil
	}
	return &Expr{kind: KindEntry, shape: ScalarShape(), args: []*Expr{a}, row: row, col: col}, nil
}

// VecOf assembles a vector from scalar nodes.
func VecOf(entries ...*Expr) (*Expr, error) {
	if len(entries) == 0 {
		return nil, ShapeMismatch.New("vector needs at least one entry")
	}
	return grid(VectorShape(len(entries)), entries)
}

// MatOf assembles a matrix from rows of scalar nodes.
func MatOf(rows [][]*Expr) (*Expr, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ShapeMismatch.New("matrix needs at least one row and column")
	}
	c := len(rows[0])
	entries := make([]*Expr, 0, len(rows)*c)
	for i, r := range rows {
		if len(r) != c {
			return nil, ShapeMismatch.New("declared %d cols but row %d has %d", c, i, len(r))
		}
		entries = append(entries, r...)
	}
	return grid(MatrixShape(len(rows), c), entries)
}

func grid(s Shape, entries []*Expr) (*Expr, error) {
	if len(entries) != s.Len() {
		return nil, ShapeMismatch.New("grid: %s holds %d entries, have %d", s, s.Len(), len(entries))
	}
	zero := true
	for _, x := range entries {
		if err := checkScalar("grid", x.shape); err != nil {
			return nil, err
		}
		zero = zero && x.isZero()
	}
	if zero {
		return Zeros(s), nil
	}
	return &Expr{kind: KindGrid, shape: s, args: append([]*Expr(nil), entries...)}, nil
}

// ============================================================
// Composition and differentiation nodes
// ============================================================

// Invoke binds variables lazily: the result is a Composition node that
// substitutes b into e the first time it is resolved.  Empty bindings
// return e itself.
func (e *Expr) Invoke(b Bindings) *Expr {
	if b.Len() == 0 {
		return e
	}
	return &Expr{kind: KindComposition, shape: e.shape, args: []*Expr{e}, bindings: b, lazy: &memo{}}
}

// D differentiates e with respect to a variable.  A scalar target gives a
// Derivative of e's shape; a vector or matrix target gives the Gradient of
// a scalar e or the Jacobian of a vector e.
func D(e, wrt *Expr) (*Expr, error) {
	if wrt.kind != KindVar {
		return nil, UnsupportedOperation.New("d: target must be a variable, have %s", wrt.kind)
	}
	switch {
	case wrt.shape.IsScalar():
		return &Expr{kind: KindDerivative, shape: e.shape, args: []*Expr{e}, wrt: wrt, lazy: &memo{}}, nil
	case e.shape.IsScalar():
		return Grad(e, wrt)
	case e.shape.IsVector() && wrt.shape.IsVector():
		return Jacobian(e, wrt)
	}
	return nil, UnsupportedOperation.New("d: no derivative of %s with respect to %s", e.shape, wrt.shape)
}

// Grad is the gradient of a scalar with respect to a vector or matrix
// variable; it has the variable's shape.
func Grad(f, v *Expr) (*Expr, error) {
	if err := checkScalar("gradient", f.shape); err != nil {
		return nil, err
	}
	if v.kind != KindVar || len(v.cells) == 0 {
		return nil, UnsupportedOperation.New("gradient: target must be a vector or matrix variable")
	}
	return &Expr{kind: KindGradient, shape: v.shape, args: []*Expr{f}, wrt: v, lazy: &memo{}}, nil
}

// Jacobian of an R-vector with respect to a C-vector variable is R×C:
// rows are output components, columns input components.
func Jacobian(f, v *Expr) (*Expr, error) {
	if !f.shape.IsVector() {
		return nil, ShapeMismatch.New("jacobian: want vector function, have %s", f.shape)
	}
	if v.kind != KindVar || !v.shape.IsVector() {
		return nil, UnsupportedOperation.New("jacobian: target must be a vector variable")
	}
	return &Expr{kind: KindJacobian, shape: MatrixShape(f.shape.rows, v.shape.rows), args: []*Expr{f}, wrt: v, lazy: &memo{}}, nil
}

// ============================================================
// Method sugar
// ============================================================

// These panic with the constructor's error; wrap chains in Try.

func (e *Expr) Add(o *Expr) *Expr      { return must(Add(e, o)) }
func (e *Expr) Sub(o *Expr) *Expr      { return must(Sub(e, o)) }
func (e *Expr) Mul(o *Expr) *Expr      { return must(Mul(e, o)) }
func (e *Expr) Div(o *Expr) *Expr      { return must(Div(e, o)) }
func (e *Expr) Hadamard(o *Expr) *Expr { return must(Hadamard(e, o)) }
func (e *Expr) Dot(o *Expr) *Expr      { return must(Dot(e, o)) }
func (e *Expr) Pow(o *Expr) *Expr      { return must(Pow(e, o)) }
func (e *Expr) Log() *Expr             { return must(Log(e)) }
func (e *Expr) Neg() *Expr             { return Neg(e) }
func (e *Expr) T() *Expr               { return must(Transpose(e)) }
func (e *Expr) At(row, col int) *Expr  { return must(At(e, row, col)) }
func (e *Expr) D(wrt *Expr) *Expr      { return must(D(e, wrt)) }
