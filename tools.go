package gograd

import "fmt"

// ============================================================
// Tool interface
// ============================================================

// ToolRequest is one call against the engine.  Expressions travel as graph
// documents; Var and Bindings name variables of Expr by their names.
type ToolRequest struct {
	Tool     string                 `codec:"tool"`
	Expr     *Graph                 `codec:"expr,omitempty"`
	Var      string                 `codec:"var,omitempty"`
	Bindings map[string]interface{} `codec:"bindings,omitempty"`
}

type ToolResponse struct {
	Result interface{} `codec:"result,omitempty"`
	Value  interface{} `codec:"value,omitempty"`
	Shape  []int       `codec:"shape,omitempty"`
	String string      `codec:"string,omitempty"`
	LaTeX  string      `codec:"latex,omitempty"`
	Error  string      `codec:"error,omitempty"`
	Class  string      `codec:"class,omitempty"`
}

func fail(tool string, err error) ToolResponse {
	log.Info("tool failed", "tool", tool, "class", className(err), "err", err)
	return ToolResponse{Error: err.Error(), Class: className(err)}
}

func className(err error) string {
	switch {
	case ShapeMismatch.Contains(err):
		return "ShapeMismatch"
	case UnboundVariable.Contains(err):
		return "UnboundVariable"
	case UnsupportedOperation.Contains(err):
		return "UnsupportedOperation"
	case InvalidDocument.Contains(err):
		return "InvalidDocument"
	}
	return ""
}

// HandleToolCall dispatches req.  Failures are reported in the response,
// never panicked.
func HandleToolCall(req ToolRequest) (resp ToolResponse) {
	log.Debug("tool call", "tool", req.Tool)
	if req.Tool == "schema" {
		return ToolResponse{Result: ToolSpec(), String: "tool schema"}
	}
	if req.Expr == nil {
		return fail(req.Tool, InvalidDocument.New("%s: missing expr", req.Tool))
	}
	e, vars, err := req.Expr.Build()
	if err != nil {
		return fail(req.Tool, err)
	}
	bindings, err := BindNames(vars, req.Bindings)
	if err != nil {
		return fail(req.Tool, err)
	}
	target := func() (*Expr, error) {
		v, ok := vars[req.Var]
		if !ok {
			return nil, InvalidDocument.New("%s: no variable named %q", req.Tool, req.Var)
		}
		return v, nil
	}

	var out *Expr
	switch req.Tool {
	case "render":
		return ToolResponse{String: e.String(), LaTeX: e.LaTeX(), Shape: e.shape.Dims()}
	case "shape":
		return ToolResponse{Result: e.shape.Dims(), Shape: e.shape.Dims(), String: e.shape.String()}
	case "free_variables":
		fv, err := FreeVariables(e)
		if err != nil {
			return fail(req.Tool, err)
		}
		names := make([]string, len(fv))
		for i, v := range fv {
			names[i] = v.name
		}
		return ToolResponse{Result: names, String: fmt.Sprint(names)}
	case "graph":
		out = e
	case "eval":
		val, err := e.Eval(bindings)
		if err != nil {
			return fail(req.Tool, err)
		}
		return ToolResponse{Value: val.Interface(), Shape: val.Shape().Dims(), String: val.String()}
	case "diff", "gradient", "jacobian":
		v, err := target()
		if err != nil {
			return fail(req.Tool, err)
		}
		switch req.Tool {
		case "diff":
			out, err = D(e, v)
		case "gradient":
			out, err = Grad(e, v)
		default:
			out, err = Jacobian(e, v)
		}
		if err != nil {
			return fail(req.Tool, err)
		}
		if out, err = out.Resolve(); err != nil {
			return fail(req.Tool, err)
		}
	default:
		return ToolResponse{Error: fmt.Sprintf("unknown tool: %s", req.Tool)}
	}

	resp = ToolResponse{
		Result: ExportGraph(out),
		Shape:  out.shape.Dims(),
		String: out.String(),
		LaTeX:  out.LaTeX(),
	}
	if bindings.Len() > 0 {
		val, err := out.Eval(bindings)
		if err != nil {
			return fail(req.Tool, err)
		}
		resp.Value = val.Interface()
	}
	return resp
}

// ============================================================
// Tool specification
// ============================================================

type ToolDescriptor struct {
	Name        string      `codec:"name"`
	Description string      `codec:"description"`
	InputSchema InputSchema `codec:"inputSchema"`
}

type InputSchema struct {
	Type       string                    `codec:"type"`
	Properties map[string]SchemaProperty `codec:"properties"`
	Required   []string                  `codec:"required"`
}

type SchemaProperty struct {
	Type string `codec:"type"`
}

// ToolSpec describes every tool HandleToolCall accepts.
func ToolSpec() []ToolDescriptor {
	return []ToolDescriptor{
		ts("render", "Render an expression as text and LaTeX", "expr"),
		ts("shape", "Declared shape of an expression as a dimension list", "expr"),
		ts("free_variables", "Names of the variables an expression depends on", "expr"),
		ts("graph", "Normalized graph document of an expression", "expr"),
		ts("eval", "Evaluate under bindings {name: number | list | list of lists}", "expr", "bindings"),
		ts("diff", "Derivative with respect to var; evaluated when bindings are given", "expr", "var"),
		ts("gradient", "Gradient of a scalar with respect to a vector or matrix var", "expr", "var"),
		ts("jacobian", "Jacobian of a vector with respect to a vector var", "expr", "var"),
		ts("schema", "Return this tool schema"),
	}
}

var paramTypes = map[string]string{
	"expr":     "object",
	"var":      "string",
	"bindings": "object",
}

func ts(name, description string, required ...string) ToolDescriptor {
	props := map[string]SchemaProperty{}
	for _, p := range required {
		props[p] = SchemaProperty{Type: paramTypes[p]}
	}
	switch name {
	case "diff", "gradient", "jacobian":
		props["bindings"] = SchemaProperty{Type: paramTypes["bindings"]}
	}
	return ToolDescriptor{
		Name:        name,
		Description: description,
		InputSchema: InputSchema{Type: "object", Properties: props, Required: append([]string{}, required...)},
	}
}
