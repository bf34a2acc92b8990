package gograd

import "sort"

// ============================================================
// Materialization
// ============================================================

// Materialize substitutes the empty binding set until nothing changes and
// returns the concrete content.  Any variable still free at that point
// fails the whole evaluation with UnboundVariable naming every one.
func (e *Expr) Materialize() (Value, error) {
	cur := e
	passes := 0
	for {
		next, err := Apply(cur, Bindings{})
		if err != nil {
			return Value{}, err
		}
		passes++
		if next == cur {
			break
		}
		cur = next
	}
	if cur.kind == KindConst {
		log.Debug("materialized", "shape", cur.shape, "passes", passes)
		return cur.value, nil
	}
	names := freeNames(cur)
	log.Debug("materialize failed", "unbound", names)
	return Value{}, newUnbound(names)
}

// Eval is Invoke followed by Materialize.
func (e *Expr) Eval(b Bindings) (Value, error) {
	return e.Invoke(b).Materialize()
}

// ============================================================
// Free variables
// ============================================================

// FreeVariables lists the variables e depends on, sorted by name.  Lazy
// nodes are resolved, so variables bound by a Composition or removed by
// differentiation are not reported.
func FreeVariables(e *Expr) (vars []*Expr, err error) {
	err = catch(func() { vars = freeVars(e) })
	return vars, err
}

func freeVars(e *Expr) []*Expr {
	seen := map[*Expr]bool{}
	found := map[*Expr]bool{}
	var walk func(*Expr)
	walk = func(n *Expr) {
		if seen[n] {
			return
		}
		seen[n] = true
		switch {
		case n.kind == KindVar:
			found[n] = true
		case n.kind.lazy():
			walk(n.mustResolve())
		default:
			for _, a := range n.args {
				walk(a)
			}
		}
	}
	walk(e)
	out := make([]*Expr, 0, len(found))
	for v := range found {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func freeNames(e *Expr) []string {
	vars := freeVars(e)
	names := make([]string, 0, len(vars))
	for i, v := range vars {
		if i > 0 && vars[i-1].name == v.name {
			continue
		}
		names = append(names, v.name)
	}
	return names
}
