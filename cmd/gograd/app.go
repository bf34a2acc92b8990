package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"

	"github.com/njchilds90/gograd"
)

type session struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	cfg        Config
	formatFlag string
	log        log15.Logger
}

// Main runs the command line in args.  Every returned error is either a
// CLIError or an engine error.
func Main(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	s := &session{stdin: stdin, stdout: stdout, stderr: stderr, log: log15.New("cmd", "gograd")}
	s.log.SetHandler(log15.DiscardHandler())

	app := cli.NewApp()
	app.Name = "gograd"
	app.Usage = "Differentiate and evaluate expression graphs."
	app.Version = "0.1.0"
	app.Writer = stdout
	app.ErrWriter = stderr

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "YAML config file",
			EnvVar: "GOGRAD_CONFIG",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn, error or crit",
		},
		cli.StringFlag{
			Name:  "format, f",
			Usage: "Input document format: json, cbor or yaml (default: by file extension)",
		},
	}
	app.Before = func(c *cli.Context) error {
		cfg, err := LoadConfig(c.String("config"))
		if err != nil {
			return err
		}
		if c.IsSet("log-level") {
			cfg.LogLevel = c.String("log-level")
		}
		if c.IsSet("format") {
			cfg.Format = c.String("format")
			s.formatFlag = cfg.Format
		}
		if err := cfg.validate(); err != nil {
			return err
		}
		s.cfg = cfg
		h := cfg.handler(stderr)
		s.log.SetHandler(h)
		gograd.SetLogHandler(h)
		return nil
	}

	app.Commands = []cli.Command{
		s.evalCommand(),
		s.diffCommand(),
		s.graphCommand(),
		s.checkCommand(),
		s.replCommand(),
	}

	// A typo'd subcommand must not exit zero.
	var notFound string
	app.CommandNotFound = func(c *cli.Context, command string) {
		notFound = command
	}

	err := app.Run(args)
	if notFound != "" {
		return Error.NewWith(fmt.Sprintf("'%s %s' is not a gograd subcommand", app.Name, notFound), SetExitCode(EXIT_BADARGS))
	}
	return classify(err)
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case Error.Contains(err), gograd.Error.Contains(err):
		return err
	}
	return Error.NewWith(err.Error(), SetExitCode(EXIT_USER))
}

var bindingsFlag = cli.StringFlag{
	Name:  "bindings, b",
	Usage: "YAML or JSON file mapping variable names to numbers, lists or lists of lists",
}

func (s *session) evalCommand() cli.Command {
	return cli.Command{
		Name:      "eval",
		Usage:     "Evaluate a graph document",
		ArgsUsage: "<doc>",
		Flags: []cli.Flag{
			bindingsFlag,
			cli.BoolFlag{Name: "json", Usage: "Print the value as JSON"},
		},
		Action: func(c *cli.Context) error {
			path, err := oneArg(c)
			if err != nil {
				return err
			}
			e, vars, err := s.load(path)
			if err != nil {
				return err
			}
			b, err := s.bindings(vars, c.String("bindings"))
			if err != nil {
				return err
			}
			val, err := e.Eval(b)
			if err != nil {
				return err
			}
			return s.printValue(val, c.Bool("json"))
		},
	}
}

func (s *session) diffCommand() cli.Command {
	return cli.Command{
		Name:      "diff",
		Usage:     "Differentiate a graph document with respect to a variable",
		ArgsUsage: "<doc>",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "var, v", Usage: "Variable to differentiate by"},
			bindingsFlag,
			cli.BoolFlag{Name: "eval", Usage: "Also evaluate the derivative under the bindings"},
			cli.StringFlag{Name: "emit", Usage: "Write the derivative as a graph document (json or cbor) instead of text"},
		},
		Action: func(c *cli.Context) error {
			path, err := oneArg(c)
			if err != nil {
				return err
			}
			e, vars, err := s.load(path)
			if err != nil {
				return err
			}
			v, err := lookupVar(vars, c.String("var"))
			if err != nil {
				return err
			}
			d, err := gograd.D(e, v)
			if err != nil {
				return err
			}
			if d, err = d.Resolve(); err != nil {
				return err
			}
			if emit := c.String("emit"); emit != "" {
				return s.writeGraph(gograd.ExportGraph(d), gograd.Format(emit))
			}
			fmt.Fprintln(s.stdout, d.String())
			if !c.Bool("eval") {
				return nil
			}
			b, err := s.bindings(vars, c.String("bindings"))
			if err != nil {
				return err
			}
			val, err := d.Eval(b)
			if err != nil {
				return err
			}
			return s.printValue(val, false)
		},
	}
}

func (s *session) graphCommand() cli.Command {
	return cli.Command{
		Name:      "graph",
		Usage:     "Rebuild a graph document and write it out normalized",
		ArgsUsage: "<doc>",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "to, t", Value: "json", Usage: "Output format: json or cbor"},
		},
		Action: func(c *cli.Context) error {
			path, err := oneArg(c)
			if err != nil {
				return err
			}
			e, _, err := s.load(path)
			if err != nil {
				return err
			}
			return s.writeGraph(gograd.ExportGraph(e), gograd.Format(c.String("to")))
		},
	}
}

func (s *session) checkCommand() cli.Command {
	return cli.Command{
		Name:      "check",
		Usage:     "Evaluate two graph documents under the same bindings and compare",
		ArgsUsage: "<doc> <doc>",
		Flags: []cli.Flag{
			bindingsFlag,
			cli.Float64Flag{Name: "tolerance", Usage: "Absolute tolerance (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return Error.NewWith("check takes exactly two documents", SetExitCode(EXIT_BADARGS))
			}
			tol := s.cfg.Tolerance
			if c.IsSet("tolerance") {
				tol = c.Float64("tolerance")
			}
			vals := make([]gograd.Value, 2)
			for i, path := range []string{c.Args().Get(0), c.Args().Get(1)} {
				e, vars, err := s.load(path)
				if err != nil {
					return err
				}
				b, err := s.bindings(vars, c.String("bindings"))
				if err != nil {
					return err
				}
				if vals[i], err = e.Eval(b); err != nil {
					return errors.Wrapf(err, "evaluate %s", path)
				}
			}
			if !vals[0].EqualApprox(vals[1], tol) {
				return Error.NewWith(
					fmt.Sprintf("documents differ: %s vs %s (tolerance %g)", vals[0], vals[1], tol),
					SetExitCode(EXIT_MISMATCH),
				)
			}
			fmt.Fprintf(s.stdout, "ok: %s\n", vals[0])
			return nil
		},
	}
}

func (s *session) replCommand() cli.Command {
	return cli.Command{
		Name:      "repl",
		Usage:     "Interactive session over one graph document",
		ArgsUsage: "[doc]",
		Action: func(c *cli.Context) error {
			return s.runRepl(c.Args().First())
		},
	}
}

// ============================================================
// Helpers
// ============================================================

func oneArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", Error.NewWith(fmt.Sprintf("%s takes exactly one document (- for stdin)", c.Command.Name), SetExitCode(EXIT_BADARGS))
	}
	return c.Args().First(), nil
}

func lookupVar(vars map[string]*gograd.Expr, name string) (*gograd.Expr, error) {
	if name == "" {
		return nil, Error.NewWith("missing variable name", SetExitCode(EXIT_BADARGS))
	}
	v, ok := vars[name]
	if !ok {
		return nil, Error.NewWith(fmt.Sprintf("no variable named %q", name), SetExitCode(EXIT_BADARGS))
	}
	return v, nil
}

var extFormats = map[string]gograd.Format{
	".json": gograd.FormatJSON,
	".cbor": gograd.FormatCBOR,
	".yaml": gograd.FormatYAML,
	".yml":  gograd.FormatYAML,
}

// formatFor picks --format, then the file extension, then the config.
func (s *session) formatFor(path string) gograd.Format {
	if s.formatFlag != "" {
		return gograd.Format(s.formatFlag)
	}
	if f, ok := extFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	return gograd.Format(s.cfg.Format)
}

func (s *session) load(path string) (*gograd.Expr, map[string]*gograd.Expr, error) {
	r := s.stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open %s", path)
		}
		defer f.Close()
		r = f
	}
	e, vars, err := gograd.ReadExpr(r, s.formatFor(path))
	if err != nil {
		return nil, nil, err
	}
	s.log.Debug("loaded document", "path", path, "shape", e.Shape(), "vars", len(vars))
	return e, vars, nil
}

// bindings merges the config's defaults for variables present in vars with
// the entries of file, which must all name variables of vars.
func (s *session) bindings(vars map[string]*gograd.Expr, file string) (gograd.Bindings, error) {
	raw := map[string]interface{}{}
	for name, val := range s.cfg.Bindings {
		if _, ok := vars[name]; ok {
			raw[name] = val
		}
	}
	if file != "" {
		byts, err := ioutil.ReadFile(file)
		if err != nil {
			return gograd.Bindings{}, errors.Wrapf(err, "read bindings %s", file)
		}
		var doc map[string]interface{}
		if err := yaml.Unmarshal(byts, &doc); err != nil {
			return gograd.Bindings{}, errors.Wrapf(err, "parse bindings %s", file)
		}
		for name, val := range doc {
			raw[name] = val
		}
	}
	return gograd.BindNames(vars, raw)
}

func (s *session) printValue(val gograd.Value, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprintln(s.stdout, val.String())
		return err
	}
	if err := codec.NewEncoder(s.stdout, &codec.JsonHandle{}).Encode(val.Interface()); err != nil {
		return err
	}
	_, err := s.stdout.Write([]byte{'\n'})
	return err
}

func (s *session) writeGraph(g *gograd.Graph, f gograd.Format) error {
	if err := gograd.WriteGraph(s.stdout, f, g); err != nil {
		return err
	}
	if f == gograd.FormatJSON {
		_, err := s.stdout.Write([]byte{'\n'})
		return err
	}
	return nil
}
