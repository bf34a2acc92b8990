package gograd

// ============================================================
// Differentiation
// ============================================================

// Rules are structural: each returns a new tree built from the operands
// and their derivatives, and never inspects constant content.  The chain
// rule through a Composition is realized by substituting first.

type differ struct {
	x    *Expr
	seen map[*Expr]*Expr
}

// differentiate is d(e)/d(x) for a scalar variable x.
func differentiate(e, x *Expr) *Expr {
	d := &differ{x: x, seen: map[*Expr]*Expr{}}
	return d.apply(e)
}

func (d *differ) apply(e *Expr) *Expr {
	if r, ok := d.seen[e]; ok {
		return r
	}
	r := d.rule(e)
	d.seen[e] = r
	return r
}

func (d *differ) rule(e *Expr) *Expr {
	a := e.args
	switch e.kind {
	case KindVar:
		switch {
		case e == d.x:
			return One()
		case d.x.parent == e:
			return ConstOf(indicator(e.shape, d.x.row, d.x.col))
		}
		return Zeros(e.shape)
	case KindConst:
		return Zeros(e.shape)
	case KindNeg:
		return Neg(d.apply(a[0]))
	case KindTranspose:
		return must(Transpose(d.apply(a[0])))
	case KindSum:
		return must(Add(d.apply(a[0]), d.apply(a[1])))
	case KindProd, KindScale, KindMatMul, KindMatVec:
		// operand order is kept: matrix products do not commute
		return must(Add(
			must(Mul(d.apply(a[0]), a[1])),
			must(Mul(a[0], d.apply(a[1]))),
		))
	case KindHadamard:
		return must(Add(
			must(Hadamard(d.apply(a[0]), a[1])),
			must(Hadamard(a[0], d.apply(a[1]))),
		))
	case KindDot:
		return must(Add(
			must(Dot(d.apply(a[0]), a[1])),
			must(Dot(a[0], d.apply(a[1]))),
		))
	case KindPow:
		return d.power(e)
	case KindLog:
		return must(Mul(d.apply(a[0]), must(Pow(a[0], Const(-1)))))
	case KindEntry:
		return must(At(d.apply(a[0]), e.row, e.col))
	case KindGrid:
		entries := make([]*Expr, len(a))
		for i, x := range a {
			entries[i] = d.apply(x)
		}
		return must(grid(e.shape, entries))
	case KindComposition, KindDerivative, KindGradient, KindJacobian:
		return d.apply(e.mustResolve())
	}
	panic(UnsupportedOperation.New("differentiate: no rule for %s", e.kind))
}

// power differentiates f^g.  A variable-free exponent takes the classical
// rule g·f^(g-1)·f'.  Otherwise f^g·(g'·ln f + g·f'/f), valid for f > 0.
func (d *differ) power(e *Expr) *Expr {
	f, g := e.args[0], e.args[1]
	df := d.apply(f)
	if len(freeVars(g)) == 0 {
		return must(Mul(
			must(Mul(g, must(Pow(f, must(Sub(g, One())))))),
			df,
		))
	}
	dg := d.apply(g)
	return must(Mul(e, must(Add(
		must(Mul(dg, must(Log(f)))),
		must(Mul(g, must(Mul(df, must(Pow(f, Const(-1))))))),
	))))
}

// gradient assembles d(f)/d(cell) for every cell of v into v's shape.
func gradient(f, v *Expr) *Expr {
	entries := make([]*Expr, len(v.cells))
	for i, c := range v.cells {
		entries[i] = differentiate(f, c)
	}
	return must(grid(v.shape, entries))
}

// jacobian puts d(f[i])/d(v[j]) at row i, column j.
func jacobian(f, v *Expr) *Expr {
	rows, cols := f.shape.rows, v.shape.rows
	partials := make([]*Expr, cols)
	for j, c := range v.cells {
		partials[j] = differentiate(f, c)
	}
	entries := make([]*Expr, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			entries = append(entries, must(At(partials[j], i, 0)))
		}
	}
	return must(grid(MatrixShape(rows, cols), entries))
}
