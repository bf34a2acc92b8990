package gograd

import (
	"fmt"
	"strings"
)

// ============================================================
// Rendering
// ============================================================

// Precedence levels, loosest first.
const (
	precSum = iota
	precNeg
	precProd
	precPow
	precAtom
)

func prec(e *Expr) int {
	switch e.kind {
	case KindSum:
		return precSum
	case KindNeg:
		return precNeg
	case KindProd, KindScale, KindHadamard, KindMatMul, KindMatVec:
		return precProd
	case KindPow:
		return precPow
	case KindConst:
		if e.shape.IsScalar() && e.value.s < 0 {
			return precNeg
		}
	}
	return precAtom
}

func wrap(e *Expr, min int) string {
	if prec(e) < min {
		return "(" + e.String() + ")"
	}
	return e.String()
}

func wrapLaTeX(e *Expr, min int) string {
	if prec(e) < min {
		return "\\left(" + e.LaTeX() + "\\right)"
	}
	return e.LaTeX()
}

// index renders the position of a cell variable or Entry node within its
// owner: one index for vectors, two for matrices.
func index(e *Expr) string {
	owner := e.parent
	if e.kind == KindEntry {
		owner = e.args[0]
	}
	if owner != nil && owner.shape.IsVector() {
		return fmt.Sprintf("%d", e.row)
	}
	return fmt.Sprintf("%d,%d", e.row, e.col)
}

// String renders e in plain infix form.
func (e *Expr) String() string {
	a := e.args
	switch e.kind {
	case KindVar:
		return e.name
	case KindConst:
		return e.value.String()
	case KindNeg:
		return "-" + wrap(a[0], precProd)
	case KindSum:
		if a[1].kind == KindNeg {
			return a[0].String() + " - " + wrap(a[1].args[0], precProd)
		}
		return a[0].String() + " + " + a[1].String()
	case KindProd, KindScale, KindMatMul, KindMatVec:
		return wrap(a[0], precProd) + "*" + wrap(a[1], precPow)
	case KindHadamard:
		return wrap(a[0], precProd) + " ⊙ " + wrap(a[1], precPow)
	case KindDot:
		return "dot(" + a[0].String() + ", " + a[1].String() + ")"
	case KindTranspose:
		return wrap(a[0], precAtom) + ".T"
	case KindPow:
		return wrap(a[0], precAtom) + "^" + wrap(a[1], precAtom)
	case KindLog:
		return "ln(" + a[0].String() + ")"
	case KindEntry:
		return wrap(a[0], precAtom) + "[" + index(e) + "]"
	case KindGrid:
		return gridString(e.shape, a, (*Expr).String, "[", ", ", "]")
	case KindComposition:
		return wrap(a[0], precAtom) + e.bindings.String()
	case KindDerivative:
		return "d(" + a[0].String() + ")/d(" + e.wrt.name + ")"
	case KindGradient:
		return "grad(" + a[0].String() + ", " + e.wrt.name + ")"
	case KindJacobian:
		return "jac(" + a[0].String() + ", " + e.wrt.name + ")"
	}
	return e.kind.String()
}

func gridString(s Shape, entries []*Expr, render func(*Expr) string, open, sep, close string) string {
	var sb strings.Builder
	row := func(xs []*Expr) {
		sb.WriteString(open)
		for j, x := range xs {
			if j > 0 {
				sb.WriteString(sep)
			}
			sb.WriteString(render(x))
		}
		sb.WriteString(close)
	}
	if s.IsVector() {
		row(entries)
		return sb.String()
	}
	sb.WriteString(open)
	for i := 0; i < s.rows; i++ {
		if i > 0 {
			sb.WriteString(sep)
		}
		row(entries[i*s.cols : (i+1)*s.cols])
	}
	sb.WriteString(close)
	return sb.String()
}

// LaTeX renders e for typesetting.  Vectors are rendered as columns.
func (e *Expr) LaTeX() string {
	a := e.args
	switch e.kind {
	case KindVar:
		if e.parent != nil {
			return e.parent.name + "_{" + index(e) + "}"
		}
		return e.name
	case KindConst:
		return valueLaTeX(e.value)
	case KindNeg:
		return "-" + wrapLaTeX(a[0], precProd)
	case KindSum:
		if a[1].kind == KindNeg {
			return a[0].LaTeX() + " - " + wrapLaTeX(a[1].args[0], precProd)
		}
		return a[0].LaTeX() + " + " + a[1].LaTeX()
	case KindProd, KindScale, KindMatMul, KindMatVec:
		return wrapLaTeX(a[0], precProd) + " " + wrapLaTeX(a[1], precPow)
	case KindHadamard:
		return wrapLaTeX(a[0], precProd) + " \\odot " + wrapLaTeX(a[1], precPow)
	case KindDot:
		return wrapLaTeX(a[0], precPow) + " \\cdot " + wrapLaTeX(a[1], precPow)
	case KindTranspose:
		return wrapLaTeX(a[0], precAtom) + "^{\\top}"
	case KindPow:
		return wrapLaTeX(a[0], precAtom) + "^{" + a[1].LaTeX() + "}"
	case KindLog:
		return "\\ln\\left(" + a[0].LaTeX() + "\\right)"
	case KindEntry:
		return wrapLaTeX(a[0], precAtom) + "_{" + index(e) + "}"
	case KindGrid:
		return pmatrix(e.shape, func(i int) string { return a[i].LaTeX() })
	case KindComposition:
		parts := make([]string, 0, e.bindings.Len())
		for _, v := range e.bindings.Vars() {
			r, _ := e.bindings.Lookup(v)
			parts = append(parts, v.LaTeX()+" = "+r.LaTeX())
		}
		return "\\left." + a[0].LaTeX() + "\\right|_{" + strings.Join(parts, ", ") + "}"
	case KindDerivative:
		return "\\frac{\\partial}{\\partial " + e.wrt.LaTeX() + "} " + wrapLaTeX(a[0], precAtom)
	case KindGradient:
		return "\\nabla_{" + e.wrt.LaTeX() + "} " + wrapLaTeX(a[0], precAtom)
	case KindJacobian:
		return "J_{" + e.wrt.LaTeX() + "} " + wrapLaTeX(a[0], precAtom)
	}
	return e.kind.String()
}

func valueLaTeX(v Value) string {
	if v.shape.IsScalar() {
		return formatFloat(v.s)
	}
	data := v.Data()
	return pmatrix(v.shape, func(i int) string { return formatFloat(data[i]) })
}

func pmatrix(s Shape, cell func(i int) string) string {
	var sb strings.Builder
	sb.WriteString("\\begin{pmatrix}")
	for i := 0; i < s.rows; i++ {
		if i > 0 {
			sb.WriteString(" \\\\ ")
		}
		for j := 0; j < s.cols; j++ {
			if j > 0 {
				sb.WriteString(" & ")
			}
			sb.WriteString(cell(i*s.cols + j))
		}
	}
	sb.WriteString("\\end{pmatrix}")
	return sb.String()
}
