package gograd

// ============================================================
// Structural equality
// ============================================================

// Equal reports whether a and b are the same tree: same kinds and shapes,
// identical variables, exactly equal constants and equal operands in
// order.  Lazy nodes are compared unexpanded.
func Equal(a, b *Expr) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.kind != b.kind || a.shape != b.shape {
		return false
	}
	switch a.kind {
	case KindVar:
		return false
	case KindConst:
		return a.value.EqualApprox(b.value, 0)
	case KindEntry:
		if a.row != b.row || a.col != b.col {
			return false
		}
	case KindComposition:
		if !equalBindings(a.bindings, b.bindings) {
			return false
		}
	case KindDerivative, KindGradient, KindJacobian:
		if a.wrt != b.wrt {
			return false
		}
	}
	if len(a.args) != len(b.args) {
		return false
	}
	for i := range a.args {
		if !Equal(a.args[i], b.args[i]) {
			return false
		}
	}
	return true
}

func (e *Expr) Equal(o *Expr) bool { return Equal(e, o) }

func equalBindings(a, b Bindings) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, k := range a.keys {
		r, ok := b.Lookup(k)
		if !ok || !Equal(a.vals[k], r) {
			return false
		}
	}
	return true
}
