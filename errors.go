package gograd

import (
	"sort"
	"strings"

	"github.com/spacemonkeygo/errors"
)

// grouping, do not instantiate
var Error *errors.ErrorClass = errors.NewClass("GogradError", errors.NoCaptureStack())

/*
	Raised at construction time when operand shapes violate the
	operation's shape contract.  The message names both shapes.
*/
var ShapeMismatch *errors.ErrorClass = Error.NewClass("ShapeMismatch", errors.NoCaptureStack())

/*
	Raised when materializing an expression that still has free variables.
	The sorted variable names are attached; see UnboundNames.
*/
var UnboundVariable *errors.ErrorClass = Error.NewClass("UnboundVariable", errors.NoCaptureStack())

/*
	Raised when a rewrite (substitution or differentiation) has no rule for
	a node kind, or when a derivative target is not meaningful.  This is a
	programming error signal and is not expected to be recovered.
*/
var UnsupportedOperation *errors.ErrorClass = Error.NewClass("UnsupportedOperation", errors.NoCaptureStack())

/*
	Raised when external input (a serialized graph, a binding document or a
	value literal) cannot be interpreted.
*/
var InvalidDocument *errors.ErrorClass = Error.NewClass("InvalidDocument", errors.NoCaptureStack())

var unboundNamesKey = errors.GenSym()

func newUnbound(names []string) error {
	return UnboundVariable.NewWith(
		"unbound variables: "+strings.Join(names, ", "),
		errors.SetData(unboundNamesKey, names),
	)
}

// UnboundNames returns the free variable names carried by an
// UnboundVariable error, or nil for any other error.
func UnboundNames(err error) []string {
	if err == nil || !UnboundVariable.Contains(err) {
		return nil
	}
	names, _ := errors.GetData(err, unboundNamesKey).([]string)
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

// Try runs build and converts any gograd error it panics with into a
// returned error.  Use it around chains of the panicking method sugar:
//
//	f, err := gograd.Try(func() *gograd.Expr {
//		return x.Mul(x).Add(gograd.Const(3).Mul(x))
//	})
func Try(build func() *Expr) (e *Expr, err error) {
	err = catch(func() { e = build() })
	if err != nil {
		return nil, err
	}
	return e, nil
}

// catch runs fn, turning a class panic into an error.  Any other panic
// keeps unwinding.
func catch(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if ce, ok := r.(error); ok && Error.Contains(ce) {
			err = ce
			return
		}
		panic(r)
	}()
	fn()
	return nil
}

// must panics with err when it is non-nil.
func must(e *Expr, err error) *Expr {
	if err != nil {
		panic(err)
	}
	return e
}
