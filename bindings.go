package gograd

import (
	"sort"
	"strings"
)

// ============================================================
// Bindings
// ============================================================

// Bindings is an immutable ordered map from variables to replacement
// expressions.  Keys are compared by identity.  The zero value is the
// empty binding set, which substitutes nothing.
type Bindings struct {
	keys []*Expr
	vals map[*Expr]*Expr
}

// Bind is a one-entry binding set.
func Bind(v, r *Expr) (Bindings, error) { return Bindings{}.With(v, r) }

// BindValue binds v to a constant.
func BindValue(v *Expr, val Value) (Bindings, error) { return Bind(v, ConstOf(val)) }

// With returns a copy of b with v bound to r.  Rebinding an existing key
// keeps its position and replaces the value.
func (b Bindings) With(v, r *Expr) (Bindings, error) {
	if v.kind != KindVar {
		return b, UnsupportedOperation.New("bind: key must be a variable, have %s", v.kind)
	}
	if err := checkBinding(v.shape, r.shape); err != nil {
		return b, err
	}
	out := Bindings{
		keys: append([]*Expr(nil), b.keys...),
		vals: make(map[*Expr]*Expr, len(b.vals)+1),
	}
	for k, x := range b.vals {
		out.vals[k] = x
	}
	if _, ok := out.vals[v]; !ok {
		out.keys = append(out.keys, v)
	}
	out.vals[v] = r
	return out, nil
}

// Merge applies o's entries over b's.  Shapes were checked when each
// entry was added, so merging cannot fail.
func (b Bindings) Merge(o Bindings) Bindings {
	out := b
	for _, k := range o.keys {
		out, _ = out.With(k, o.vals[k])
	}
	return out
}

func (b Bindings) Len() int { return len(b.keys) }

func (b Bindings) Lookup(v *Expr) (*Expr, bool) {
	r, ok := b.vals[v]
	return r, ok
}

// Vars are the bound variables in insertion order.
func (b Bindings) Vars() []*Expr { return append([]*Expr(nil), b.keys...) }

func (b Bindings) String() string {
	parts := make([]string, len(b.keys))
	for i, k := range b.keys {
		parts[i] = k.name + " := " + b.vals[k].String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// BindNames binds variables looked up by name to raw values (numbers,
// lists or lists of lists) as decoded from JSON, YAML or CBOR.  Names are
// bound in sorted order so errors are deterministic.
func BindNames(vars map[string]*Expr, raw map[string]interface{}) (Bindings, error) {
	names := make([]string, 0, len(raw))
	for n := range raw {
		names = append(names, n)
	}
	sort.Strings(names)
	var b Bindings
	for _, n := range names {
		v, ok := vars[n]
		if !ok {
			return Bindings{}, InvalidDocument.New("no variable named %q", n)
		}
		val, err := ValueOf(raw[n])
		if err != nil {
			return Bindings{}, err
		}
		if b, err = b.With(v, ConstOf(val)); err != nil {
			return Bindings{}, err
		}
	}
	return b, nil
}
