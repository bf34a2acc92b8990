package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/njchilds90/gograd"
)

const (
	historyFile = ".gograd_history"
	prompt      = "gograd> "
)

var replCommands = []string{
	":load", ":bind", ":unbind", ":bindings", ":eval", ":d", ":reset", ":show", ":free", ":help", ":quit",
}

const replHelp = `:load <doc>          load a graph document
:bind <name> <value> bind a variable (2, [1, 2] or [[1, 2], [3, 4]])
:unbind <name>       drop a binding
:bindings            list bindings
:eval                evaluate the current expression
:d <name>            replace the current expression by its derivative
:reset               go back to the loaded expression
:show                print the current expression and its LaTeX
:free                list free variables
:quit                leave
`

// repl holds the interactive state.  Bound values are kept raw and only
// turned into Bindings against the current document's variables.
type repl struct {
	s      *session
	out    io.Writer
	loaded *gograd.Expr
	expr   *gograd.Expr
	vars   map[string]*gograd.Expr
	raw    map[string]interface{}
}

func newRepl(s *session) *repl {
	return &repl{s: s, out: s.stdout, raw: map[string]interface{}{}}
}

func (s *session) runRepl(path string) error {
	r := newRepl(s)
	if path != "" {
		if err := r.load(path); err != nil {
			return err
		}
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(complete)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt(prompt)
		if err == io.EOF || err == liner.ErrPromptAborted {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)
		quit, err := r.exec(line)
		if err != nil {
			fmt.Fprintf(r.out, "error: %s\n", err)
		}
		if quit {
			return nil
		}
	}
}

func complete(line string) []string {
	var out []string
	for _, c := range replCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

// exec runs one command line.
func (r *repl) exec(line string) (quit bool, err error) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case ":quit", ":q":
		return true, nil
	case ":help":
		fmt.Fprint(r.out, replHelp)
		return false, nil
	case ":load":
		if len(args) != 1 {
			return false, errors.New("usage: :load <doc>")
		}
		return false, r.load(args[0])
	case ":bind":
		if len(args) < 2 {
			return false, errors.New("usage: :bind <name> <value>")
		}
		return false, r.bind(args[0], strings.Join(args[1:], " "))
	case ":unbind":
		if len(args) != 1 {
			return false, errors.New("usage: :unbind <name>")
		}
		delete(r.raw, args[0])
		return false, nil
	case ":bindings":
		names := make([]string, 0, len(r.raw))
		for n := range r.raw {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			v, _ := gograd.ValueOf(r.raw[n])
			fmt.Fprintf(r.out, "%s := %s\n", n, v)
		}
		return false, nil
	}

	if r.expr == nil {
		return false, errors.New("no document loaded; use :load <doc>")
	}
	switch cmd {
	case ":show":
		fmt.Fprintf(r.out, "%s\n%s\nshape %s\n", r.expr, r.expr.LaTeX(), r.expr.Shape())
	case ":free":
		vars, err := gograd.FreeVariables(r.expr)
		if err != nil {
			return false, err
		}
		names := make([]string, len(vars))
		for i, v := range vars {
			names[i] = v.Name()
		}
		fmt.Fprintln(r.out, strings.Join(names, " "))
	case ":eval":
		b, err := r.bindings()
		if err != nil {
			return false, err
		}
		val, err := r.expr.Eval(b)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, val)
	case ":d":
		if len(args) != 1 {
			return false, errors.New("usage: :d <name>")
		}
		v, err := lookupVar(r.vars, args[0])
		if err != nil {
			return false, err
		}
		d, err := gograd.D(r.expr, v)
		if err != nil {
			return false, err
		}
		if d, err = d.Resolve(); err != nil {
			return false, err
		}
		r.expr = d
		fmt.Fprintln(r.out, d)
	case ":reset":
		r.expr = r.loaded
		fmt.Fprintln(r.out, r.expr)
	default:
		return false, errors.Errorf("unknown command %s; try :help", cmd)
	}
	return false, nil
}

func (r *repl) load(path string) error {
	e, vars, err := r.s.load(path)
	if err != nil {
		return err
	}
	r.loaded, r.expr, r.vars = e, e, vars
	fmt.Fprintf(r.out, "loaded %s: %s\n", path, e)
	return nil
}

// bind parses lit as a YAML scalar or flow sequence.
func (r *repl) bind(name, lit string) error {
	var raw interface{}
	if err := yaml.Unmarshal([]byte(lit), &raw); err != nil {
		return errors.Errorf("cannot parse %q: %s", lit, err)
	}
	val, err := gograd.ValueOf(raw)
	if err != nil {
		return err
	}
	if v, ok := r.vars[name]; ok {
		if _, err := gograd.BindValue(v, val); err != nil {
			return err
		}
	}
	r.raw[name] = raw
	return nil
}

// bindings binds every raw value whose name the current document knows.
func (r *repl) bindings() (gograd.Bindings, error) {
	raw := map[string]interface{}{}
	for n, v := range r.raw {
		if _, ok := r.vars[n]; ok {
			raw[n] = v
		}
	}
	return gograd.BindNames(r.vars, raw)
}
