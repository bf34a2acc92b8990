package gograd

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ============================================================
// Value
// ============================================================

// Value is immutable concrete numeric content: a float64 scalar, a dense
// vector or a dense matrix.  Dense storage is never handed out without a
// copy.
type Value struct {
	shape Shape
	s     float64
	vec   *mat.VecDense
	dense *mat.Dense
}

func ScalarValue(f float64) Value { return Value{shape: ScalarShape(), s: f} }

// VectorValue panics with ShapeMismatch when xs is empty.
func VectorValue(xs ...float64) Value {
	shape := VectorShape(len(xs))
	return Value{shape: shape, vec: mat.NewVecDense(len(xs), append([]float64(nil), xs...))}
}

func MatrixValue(rows [][]float64) (Value, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Value{}, ShapeMismatch.New("matrix value needs at least one row and column")
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return Value{}, ShapeMismatch.New("declared %d cols but row %d has %d", c, i, len(row))
		}
		data = append(data, row...)
	}
	return Value{shape: MatrixShape(len(rows), c), dense: mat.NewDense(len(rows), c, data)}, nil
}

// DenseValue copies m.
func DenseValue(m mat.Matrix) Value {
	d := mat.DenseCopyOf(m)
	r, c := d.Dims()
	return Value{shape: MatrixShape(r, c), dense: d}
}

// VecDenseValue copies v.
func VecDenseValue(v mat.Vector) Value {
	d := mat.VecDenseCopyOf(v)
	return Value{shape: VectorShape(d.Len()), vec: d}
}

func (v Value) Shape() Shape { return v.shape }

// Float is the scalar content; zero for non-scalars.
func (v Value) Float() float64 { return v.s }

// At returns one cell.  For vectors col must be 0; a scalar is read at
// [0,0].  Any other index panics with ShapeMismatch.
func (v Value) At(row, col int) float64 {
	if v.shape.IsScalar() {
		if row != 0 || col != 0 {
			panic(ShapeMismatch.New("index [%d,%d] out of range for %s", row, col, v.shape))
		}
		return v.s
	}
	if err := checkIndex(v.shape, row, col); err != nil {
		panic(err)
	}
	switch v.shape.tier {
	case TierVector:
		return v.vec.AtVec(row)
	case TierMatrix:
		return v.dense.At(row, col)
	}
	return v.s
}

// Data is the row-major content.
func (v Value) Data() []float64 {
	switch v.shape.tier {
	case TierVector:
		out := make([]float64, v.vec.Len())
		for i := range out {
			out[i] = v.vec.AtVec(i)
		}
		return out
	case TierMatrix:
		out := make([]float64, 0, v.shape.Len())
		for i := 0; i < v.shape.rows; i++ {
			out = append(out, v.dense.RawRowView(i)...)
		}
		return out
	}
	return []float64{v.s}
}

// Rows is the matrix content as nested slices; a vector is one column.
func (v Value) Rows() [][]float64 {
	out := make([][]float64, v.shape.rows)
	for i := range out {
		out[i] = make([]float64, v.shape.cols)
		for j := range out[i] {
			out[i][j] = v.At(i, j)
		}
	}
	return out
}

// Dense is a copy of the matrix content, nil for other tiers.
func (v Value) Dense() *mat.Dense {
	if v.dense == nil {
		return nil
	}
	return mat.DenseCopyOf(v.dense)
}

// VecDense is a copy of the vector content, nil for other tiers.
func (v Value) VecDense() *mat.VecDense {
	if v.vec == nil {
		return nil
	}
	return mat.VecDenseCopyOf(v.vec)
}

// Interface renders v as float64, []float64 or [][]float64.
func (v Value) Interface() interface{} {
	switch v.shape.tier {
	case TierVector:
		return v.Data()
	case TierMatrix:
		return v.Rows()
	}
	return v.s
}

func (v Value) EqualApprox(o Value, tol float64) bool {
	return v.shape == o.shape && floats.EqualApprox(v.Data(), o.Data(), tol)
}

func (v Value) String() string {
	switch v.shape.tier {
	case TierVector:
		return formatRow(v.Data())
	case TierMatrix:
		parts := make([]string, v.shape.rows)
		for i := range parts {
			parts[i] = formatRow(v.dense.RawRowView(i))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return formatFloat(v.s)
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

func formatRow(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = formatFloat(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ValueOf interprets generic decoded data (JSON, YAML, CBOR): a number is
// a scalar, a list of numbers a vector and a list of lists a matrix.
func ValueOf(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case Value:
		return x, nil
	case []float64:
		if len(x) == 0 {
			return Value{}, InvalidDocument.New("empty vector literal")
		}
		return VectorValue(x...), nil
	case [][]float64:
		return MatrixValue(x)
	case []interface{}:
		if len(x) == 0 {
			return Value{}, InvalidDocument.New("empty vector literal")
		}
		if _, nested := x[0].([]interface{}); nested {
			rows := make([][]float64, len(x))
			for i, r := range x {
				cells, ok := r.([]interface{})
				if !ok {
					return Value{}, InvalidDocument.New("matrix row %d is %T, not a list", i, r)
				}
				row, err := numbers(cells)
				if err != nil {
					return Value{}, err
				}
				rows[i] = row
			}
			return MatrixValue(rows)
		}
		xs, err := numbers(x)
		if err != nil {
			return Value{}, err
		}
		return VectorValue(xs...), nil
	}
	f, ok := number(raw)
	if !ok {
		return Value{}, InvalidDocument.New("cannot interpret %T as a value", raw)
	}
	return ScalarValue(f), nil
}

func numbers(xs []interface{}) ([]float64, error) {
	out := make([]float64, len(xs))
	for i, x := range xs {
		f, ok := number(x)
		if !ok {
			return nil, InvalidDocument.New("element %d is %T, not a number", i, x)
		}
		out[i] = f
	}
	return out, nil
}

func number(x interface{}) (float64, bool) {
	switch n := x.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// ============================================================
// Primitive arithmetic (shapes are validated by the caller)
// ============================================================

func zeroValue(s Shape) Value {
	switch s.tier {
	case TierVector:
		return Value{shape: s, vec: mat.NewVecDense(s.rows, nil)}
	case TierMatrix:
		return Value{shape: s, dense: mat.NewDense(s.rows, s.cols, nil)}
	}
	return ScalarValue(0)
}

func fillValue(s Shape, f float64) Value {
	data := make([]float64, s.Len())
	for i := range data {
		data[i] = f
	}
	return gridValue(s, data)
}

// indicator is the derivative of a vector or matrix variable with respect
// to one of its own cells.
func indicator(s Shape, row, col int) Value {
	data := make([]float64, s.Len())
	data[row*s.cols+col] = 1
	return gridValue(s, data)
}

func gridValue(s Shape, data []float64) Value {
	switch s.tier {
	case TierVector:
		return Value{shape: s, vec: mat.NewVecDense(s.rows, data)}
	case TierMatrix:
		return Value{shape: s, dense: mat.NewDense(s.rows, s.cols, data)}
	}
	return ScalarValue(data[0])
}

func valAdd(a, b Value) Value {
	switch a.shape.tier {
	case TierVector:
		var v mat.VecDense
		v.AddVec(a.vec, b.vec)
		return Value{shape: a.shape, vec: &v}
	case TierMatrix:
		var d mat.Dense
		d.Add(a.dense, b.dense)
		return Value{shape: a.shape, dense: &d}
	}
	return ScalarValue(a.s + b.s)
}

func valScale(f float64, a Value) Value {
	switch a.shape.tier {
	case TierVector:
		var v mat.VecDense
		v.ScaleVec(f, a.vec)
		return Value{shape: a.shape, vec: &v}
	case TierMatrix:
		var d mat.Dense
		d.Scale(f, a.dense)
		return Value{shape: a.shape, dense: &d}
	}
	return ScalarValue(f * a.s)
}

func valNeg(a Value) Value { return valScale(-1, a) }

func valHadamard(a, b Value) Value {
	switch a.shape.tier {
	case TierVector:
		var v mat.VecDense
		v.MulElemVec(a.vec, b.vec)
		return Value{shape: a.shape, vec: &v}
	case TierMatrix:
		var d mat.Dense
		d.MulElem(a.dense, b.dense)
		return Value{shape: a.shape, dense: &d}
	}
	return ScalarValue(a.s * b.s)
}

func valMatMul(a, b Value) Value {
	var d mat.Dense
	d.Mul(a.dense, b.dense)
	return Value{shape: MatrixShape(a.shape.rows, b.shape.cols), dense: &d}
}

func valMatVec(a, b Value) Value {
	var v mat.VecDense
	v.MulVec(a.dense, b.vec)
	return Value{shape: VectorShape(a.shape.rows), vec: &v}
}

func valDot(a, b Value) Value { return ScalarValue(mat.Dot(a.vec, b.vec)) }

func valTranspose(a Value) Value {
	return Value{shape: a.shape.T(), dense: mat.DenseCopyOf(a.dense.T())}
}

func valPow(a, b Value) Value { return ScalarValue(math.Pow(a.s, b.s)) }

func valLog(a Value) Value { return ScalarValue(math.Log(a.s)) }

func valEntry(a Value, row, col int) Value { return ScalarValue(a.At(row, col)) }
