package gograd

// ============================================================
// Substitution
// ============================================================

// Apply rewrites e with b: bound variables are replaced, cells of a bound
// vector or matrix variable become entries of the replacement, lazy nodes
// are resolved first, and every subtree whose operands are all Constants
// is folded.  If b binds a Constant to every free variable the result is
// a Constant.
func Apply(e *Expr, b Bindings) (r *Expr, err error) {
	err = catch(func() { r = substitute(e, b) })
	return r, err
}

type substituter struct {
	b    Bindings
	seen map[*Expr]*Expr
}

func substitute(e *Expr, b Bindings) *Expr {
	s := &substituter{b: b, seen: map[*Expr]*Expr{}}
	return s.apply(e)
}

// apply memoizes per node so shared operands are rewritten once and stay
// shared in the result.
func (s *substituter) apply(e *Expr) *Expr {
	if r, ok := s.seen[e]; ok {
		return r
	}
	r := s.rewrite(e)
	s.seen[e] = r
	return r
}

func (s *substituter) rewrite(e *Expr) *Expr {
	switch e.kind {
	case KindVar:
		if r, ok := s.b.Lookup(e); ok {
			return r
		}
		if e.parent != nil {
			if r, ok := s.b.Lookup(e.parent); ok {
				return fold(must(At(r, e.row, e.col)))
			}
		}
		return e
	case KindConst:
		return e
	case KindComposition, KindDerivative, KindGradient, KindJacobian:
		return s.apply(e.mustResolve())
	case KindNeg, KindSum, KindProd, KindScale, KindHadamard, KindMatMul, KindMatVec,
		KindDot, KindTranspose, KindPow, KindLog, KindEntry, KindGrid:
		args := make([]*Expr, len(e.args))
		same := true
		for i, a := range e.args {
			args[i] = s.apply(a)
			same = same && args[i] == a
		}
		if same {
			return fold(e)
		}
		return fold(rebuild(e, args))
	}
	panic(UnsupportedOperation.New("substitute: no rule for %s", e.kind))
}

// rebuild re-combines new operands with e's operator.  Substitution never
// changes an operand's shape, so the constructors cannot fail.
func rebuild(e *Expr, args []*Expr) *Expr {
	switch e.kind {
	case KindNeg:
		return Neg(args[0])
	case KindSum:
		return must(Add(args[0], args[1]))
	case KindProd, KindScale, KindMatMul, KindMatVec:
		return must(Mul(args[0], args[1]))
	case KindHadamard:
		return must(Hadamard(args[0], args[1]))
	case KindDot:
		return must(Dot(args[0], args[1]))
	case KindTranspose:
		return must(Transpose(args[0]))
	case KindPow:
		return must(Pow(args[0], args[1]))
	case KindLog:
		return must(Log(args[0]))
	case KindEntry:
		return must(At(args[0], e.row, e.col))
	case KindGrid:
		return must(grid(e.shape, args))
	}
	panic(UnsupportedOperation.New("rebuild: no rule for %s", e.kind))
}

// ============================================================
// Constant folding
// ============================================================

func fold(e *Expr) *Expr {
	if e.kind == KindConst || e.kind == KindVar || e.kind.lazy() {
		return e
	}
	for _, a := range e.args {
		if a.kind != KindConst {
			return e
		}
	}
	return ConstOf(compute(e))
}

// compute applies e's operator to constant operands through the numeric
// backing.
func compute(e *Expr) Value {
	a := e.args
	switch e.kind {
	case KindNeg:
		return valNeg(a[0].value)
	case KindSum:
		return valAdd(a[0].value, a[1].value)
	case KindProd, KindHadamard:
		return valHadamard(a[0].value, a[1].value)
	case KindScale:
		return valScale(a[0].value.s, a[1].value)
	case KindMatMul:
		return valMatMul(a[0].value, a[1].value)
	case KindMatVec:
		return valMatVec(a[0].value, a[1].value)
	case KindDot:
		return valDot(a[0].value, a[1].value)
	case KindTranspose:
		return valTranspose(a[0].value)
	case KindPow:
		return valPow(a[0].value, a[1].value)
	case KindLog:
		return valLog(a[0].value)
	case KindEntry:
		return valEntry(a[0].value, e.row, e.col)
	case KindGrid:
		data := make([]float64, len(a))
		for i, x := range a {
			data[i] = x.value.s
		}
		return gridValue(e.shape, data)
	}
	panic(UnsupportedOperation.New("compute: no rule for %s", e.kind))
}
