package features

import (
	"fmt"
	"math"
	"time"
)

// InvalidInputError reports a malformed or missing column in an event or
// feature table. Callers can match it with errors.As to distinguish bad
// input from internal failures.
type InvalidInputError struct {
	Column string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input: column %q: %s", e.Column, e.Reason)
}

// Frame is an ordered collection of named float64 columns, one row per
// input event. Missing values are math.NaN(), never zero. Row identity
// metadata (route, timestamp) rides alongside the numeric columns so
// callers can join predictions back to events.
type Frame struct {
	names []string
	cols  map[string][]float64
	n     int

	Routes     []string
	VehicleIDs []string
	StopIDs    []string
	Times      []time.Time
}

// NewFrame creates an empty frame with capacity for n rows.
func NewFrame(n int) *Frame {
	return &Frame{
		cols: make(map[string][]float64),
		n:    n,
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.n }

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// AddColumn appends a named column. The column length must match the
// frame's row count. Adding an existing name replaces its values but
// keeps its original position.
func (f *Frame) AddColumn(name string, values []float64) error {
	if len(values) != f.n {
		return &InvalidInputError{Column: name, Reason: fmt.Sprintf("length %d does not match %d rows", len(values), f.n)}
	}
	if _, exists := f.cols[name]; !exists {
		f.names = append(f.names, name)
	}
	f.cols[name] = values
	return nil
}

// Column returns the values of a named column, or false when absent.
// The returned slice is the frame's backing storage, not a copy.
func (f *Frame) Column(name string) ([]float64, bool) {
	c, ok := f.cols[name]
	return c, ok
}

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Matrix assembles a row-major matrix with columns in the requested
// order. Names not present in the frame are returned in missing; the
// matrix is nil when any are missing.
func (f *Frame) Matrix(names []string) (rows [][]float64, missing []string) {
	cols := make([][]float64, 0, len(names))
	for _, name := range names {
		c, ok := f.cols[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols = append(cols, c)
	}
	if len(missing) > 0 {
		return nil, missing
	}

	rows = make([][]float64, f.n)
	for i := 0; i < f.n; i++ {
		row := make([]float64, len(cols))
		for j, c := range cols {
			row[j] = c[i]
		}
		rows[i] = row
	}
	return rows, nil
}

// Target returns the delay target column with NaN rows filtered out,
// together with the indices of the rows kept. Training needs a complete
// target vector; inference does not use this.
func (f *Frame) Target() (y []float64, kept []int) {
	delays, ok := f.cols[ColDelayMinutes]
	if !ok {
		return nil, nil
	}
	for i, v := range delays {
		if math.IsNaN(v) {
			continue
		}
		y = append(y, v)
		kept = append(kept, i)
	}
	return y, kept
}

// SelectColumns returns a new frame holding only the named columns, in
// the given order, sharing column storage with the receiver. Row
// metadata is carried over. Names not present are returned in missing
// and the frame is nil.
func (f *Frame) SelectColumns(names []string) (*Frame, []string) {
	var missing []string
	for _, name := range names {
		if _, ok := f.cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, missing
	}
	out := NewFrame(f.n)
	for _, name := range names {
		out.names = append(out.names, name)
		out.cols[name] = f.cols[name]
	}
	out.Routes = f.Routes
	out.VehicleIDs = f.VehicleIDs
	out.StopIDs = f.StopIDs
	out.Times = f.Times
	return out, nil
}

// SelectRows returns a new frame containing only the given row indices,
// in the given order. Indices must be valid.
func (f *Frame) SelectRows(idx []int) *Frame {
	out := NewFrame(len(idx))
	for _, name := range f.names {
		src := f.cols[name]
		vals := make([]float64, len(idx))
		for i, j := range idx {
			vals[i] = src[j]
		}
		out.names = append(out.names, name)
		out.cols[name] = vals
	}
	pick := func(src []string) []string {
		if src == nil {
			return nil
		}
		vals := make([]string, len(idx))
		for i, j := range idx {
			vals[i] = src[j]
		}
		return vals
	}
	out.Routes = pick(f.Routes)
	out.VehicleIDs = pick(f.VehicleIDs)
	out.StopIDs = pick(f.StopIDs)
	if f.Times != nil {
		out.Times = make([]time.Time, len(idx))
		for i, j := range idx {
			out.Times[i] = f.Times[j]
		}
	}
	return out
}
