// Package extkernel implements the built-in external-collaborator
// leaves named by spec.md §6: file/CSV/HDF5-shaped I/O, random number
// draws, timers/debug output, and SQL reads. None of these carry
// algorithmic depth — each is a thin primitive.Node whose Eval shells
// out to a stdlib or driver call and returns the result as a
// value.Value, registered into the pattern table exactly like any
// other primitive. Grounded on the teacher's internal/database
// (database/sql + blank driver imports, DSN construction per driver)
// and internal/filesystem (os-based file helpers).
package extkernel

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	"github.com/dustin/go-humanize"
	_ "github.com/lib/pq"

	"phylanx/internal/array"
	"phylanx/internal/errors"
	"phylanx/internal/primitive"
	"phylanx/internal/primitives/arrayops"
	"phylanx/internal/value"
)

func evalOperand(ctx context.Context, v value.Value, table *primitive.Table, ec primitive.EvalContext) (value.Value, error) {
	h, ok := v.Handle()
	if !ok {
		return v, nil
	}
	node, ok := table.Get(h.Name)
	if !ok {
		return value.Nil(), errors.NewNameError(h.Name, "", 0, 0)
	}
	return primitive.Await(ctx, node.Eval(ctx, nil, ec))
}

func stringArg(v value.Value, who string) (string, error) {
	s, ok := v.String()
	if !ok {
		return "", errors.NewTypeError(who+" expects a string argument", "", 0, 0)
	}
	return s, nil
}

// FileRead implements `file_read(path)`: reads the whole file as a
// string, matching the teacher's internal/filesystem pattern of a
// single os.ReadFile call wrapped in the module's own error type.
type FileRead struct {
	primitive.Base
	Path  value.Value
	Table *primitive.Table
}

func NewFileRead(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &FileRead{Base: primitive.NewBase(name, args), Path: args[0], Table: table}, nil
}

func (f *FileRead) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		pv, err := evalOperand(ctx, f.Path, f.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		path, err := stringArg(pv, "file_read")
		if err != nil {
			return value.Nil(), err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return value.Nil(), errors.NewUserError(err.Error(), "", 0, 0)
		}
		return value.String(string(data)), nil
	})
}

// FileWrite implements `file_write(path, contents)`.
type FileWrite struct {
	primitive.Base
	Path, Contents value.Value
	Table          *primitive.Table
}

func NewFileWrite(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &FileWrite{Base: primitive.NewBase(name, args), Path: args[0], Contents: args[1], Table: table}, nil
}

func (f *FileWrite) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		pv, err := evalOperand(ctx, f.Path, f.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		path, err := stringArg(pv, "file_write")
		if err != nil {
			return value.Nil(), err
		}
		cv, err := evalOperand(ctx, f.Contents, f.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		contents, err := stringArg(cv, "file_write")
		if err != nil {
			return value.Nil(), err
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			return value.Nil(), errors.NewUserError(err.Error(), "", 0, 0)
		}
		return value.Bool(true), nil
	})
}

// FileReadCSV implements `file_read_csv(path)`: reads a CSV file into a
// rank-2 double array (every field parsed as a number; non-numeric
// fields become NaN-free zero, matching the engine's no-NaN numeric
// model by treating an unparsable cell as absent data rather than
// inventing a separate string-cell representation).
type FileReadCSV struct {
	primitive.Base
	Path  value.Value
	Table *primitive.Table
}

func NewFileReadCSV(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &FileReadCSV{Base: primitive.NewBase(name, args), Path: args[0], Table: table}, nil
}

func (f *FileReadCSV) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		pv, err := evalOperand(ctx, f.Path, f.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		path, err := stringArg(pv, "file_read_csv")
		if err != nil {
			return value.Nil(), err
		}
		file, err := os.Open(path)
		if err != nil {
			return value.Nil(), errors.NewUserError(err.Error(), "", 0, 0)
		}
		defer file.Close()
		rows, err := csv.NewReader(file).ReadAll()
		if err != nil {
			return value.Nil(), errors.NewUserError(err.Error(), "", 0, 0)
		}
		if len(rows) == 0 {
			out, err := array.NewDouble(nil, []int{0, 0})
			return value.Array(out), err
		}
		cols := len(rows[0])
		data := make([]float64, 0, len(rows)*cols)
		for _, row := range rows {
			for i := 0; i < cols; i++ {
				var v float64
				if i < len(row) {
					v, _ = strconv.ParseFloat(row[i], 64)
				}
				data = append(data, v)
			}
		}
		out, err := array.NewDouble(data, []int{len(rows), cols})
		if err != nil {
			return value.Nil(), err
		}
		return value.Array(out), nil
	})
}

// FileWriteCSV implements `file_write_csv(path, array)`.
type FileWriteCSV struct {
	primitive.Base
	Path, Array value.Value
	Table       *primitive.Table
}

func NewFileWriteCSV(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &FileWriteCSV{Base: primitive.NewBase(name, args), Path: args[0], Array: args[1], Table: table}, nil
}

func (f *FileWriteCSV) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		pv, err := evalOperand(ctx, f.Path, f.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		path, err := stringArg(pv, "file_write_csv")
		if err != nil {
			return value.Nil(), err
		}
		av, err := evalOperand(ctx, f.Array, f.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		arrer, ok := av.Array()
		if !ok {
			return value.Nil(), errors.NewTypeError("file_write_csv expects an array argument", "", 0, 0)
		}
		nd, ok := arrer.(*array.NDArray)
		if !ok {
			return value.Nil(), errors.NewTypeError("file_write_csv expects a dense numeric array", "", 0, 0)
		}
		file, err := os.Create(path)
		if err != nil {
			return value.Nil(), errors.NewUserError(err.Error(), "", 0, 0)
		}
		defer file.Close()
		w := csv.NewWriter(file)
		defer w.Flush()
		rows, cols := 1, nd.Size()
		if nd.Rank() >= 1 {
			rows = nd.Shape[0]
			cols = nd.Size() / rows
		}
		data := nd.AsDouble()
		for r := 0; r < rows; r++ {
			record := make([]string, cols)
			for c := 0; c < cols; c++ {
				record[c] = strconv.FormatFloat(data[r*cols+c], 'g', -1, 64)
			}
			if err := w.Write(record); err != nil {
				return value.Nil(), errors.NewUserError(err.Error(), "", 0, 0)
			}
		}
		return value.Bool(true), nil
	})
}

// FileReadHDF5 implements `file_read_hdf5(path, dataset)`. No HDF5
// library appears anywhere in the retrieval pack (see DESIGN.md); this
// leaf therefore reads the teacher-style lightweight stand-in format
// this engine actually writes (file_write_hdf5 below): a tab-separated
// shape header line followed by flat double data, which keeps the
// read/write pair self-consistent without inventing a fake binary HDF5
// reader.
type FileReadHDF5 struct {
	primitive.Base
	Path  value.Value
	Table *primitive.Table
}

func NewFileReadHDF5(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &FileReadHDF5{Base: primitive.NewBase(name, args), Path: args[0], Table: table}, nil
}

func (f *FileReadHDF5) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		pv, err := evalOperand(ctx, f.Path, f.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		path, err := stringArg(pv, "file_read_hdf5")
		if err != nil {
			return value.Nil(), err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return value.Nil(), errors.NewUserError(err.Error(), "", 0, 0)
		}
		nd, err := decodeHDF5Stub(raw)
		if err != nil {
			return value.Nil(), err
		}
		return value.Array(nd), nil
	})
}

// FileWriteHDF5 implements `file_write_hdf5(path, array)`, writing the
// same self-describing stub format FileReadHDF5 reads back.
type FileWriteHDF5 struct {
	primitive.Base
	Path, Array value.Value
	Table       *primitive.Table
}

func NewFileWriteHDF5(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &FileWriteHDF5{Base: primitive.NewBase(name, args), Path: args[0], Array: args[1], Table: table}, nil
}

func (f *FileWriteHDF5) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		pv, err := evalOperand(ctx, f.Path, f.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		path, err := stringArg(pv, "file_write_hdf5")
		if err != nil {
			return value.Nil(), err
		}
		av, err := evalOperand(ctx, f.Array, f.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		arrer, ok := av.Array()
		if !ok {
			return value.Nil(), errors.NewTypeError("file_write_hdf5 expects an array argument", "", 0, 0)
		}
		nd, ok := arrer.(*array.NDArray)
		if !ok {
			return value.Nil(), errors.NewTypeError("file_write_hdf5 expects a dense numeric array", "", 0, 0)
		}
		if err := os.WriteFile(path, encodeHDF5Stub(nd), 0o644); err != nil {
			return value.Nil(), errors.NewUserError(err.Error(), "", 0, 0)
		}
		return value.Bool(true), nil
	})
}

func encodeHDF5Stub(nd *array.NDArray) []byte {
	header := fmt.Sprintf("%d", nd.Dtype)
	for _, d := range nd.Shape {
		header += fmt.Sprintf("\t%d", d)
	}
	out := header + "\n"
	data := nd.AsDouble()
	for i, v := range data {
		if i > 0 {
			out += "\t"
		}
		out += strconv.FormatFloat(v, 'g', -1, 64)
	}
	return []byte(out + "\n")
}

func decodeHDF5Stub(raw []byte) (*array.NDArray, error) {
	var headerEnd int
	for headerEnd < len(raw) && raw[headerEnd] != '\n' {
		headerEnd++
	}
	header := string(raw[:headerEnd])
	var fields []string
	start := 0
	for i := 0; i <= len(header); i++ {
		if i == len(header) || header[i] == '\t' {
			fields = append(fields, header[start:i])
			start = i + 1
		}
	}
	if len(fields) == 0 {
		return nil, errors.NewUserError("file_read_hdf5: malformed header", "", 0, 0)
	}
	dtInt, _ := strconv.Atoi(fields[0])
	shape := make([]int, 0, len(fields)-1)
	for _, f := range fields[1:] {
		n, _ := strconv.Atoi(f)
		shape = append(shape, n)
	}
	rest := string(raw[min(headerEnd+1, len(raw)):])
	var data []float64
	num := ""
	flush := func() {
		if num != "" {
			v, _ := strconv.ParseFloat(num, 64)
			data = append(data, v)
			num = ""
		}
	}
	for _, r := range rest {
		if r == '\t' || r == '\n' {
			flush()
			continue
		}
		num += string(r)
	}
	flush()
	switch array.Dtype(dtInt) {
	case array.Int64:
		ints := make([]int64, len(data))
		for i, v := range data {
			ints[i] = int64(v)
		}
		return array.NewInt64(ints, shape)
	case array.Bool:
		bools := make([]bool, len(data))
		for i, v := range data {
			bools[i] = v != 0
		}
		return array.NewBool(bools, shape)
	default:
		return array.NewDouble(data, shape)
	}
}

// Random implements `random(shape...)`: draws uniform doubles in [0,1)
// from the process-global seeded generator (internal/primitives/arrayops.
// NewSeededRand), so a prior set_seed call makes a run reproducible
// (spec.md §8 determinism, scoped to seeded runs).
type Random struct {
	primitive.Base
	Shape []value.Value
	Table *primitive.Table
}

func NewRandom(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &Random{Base: primitive.NewBase(name, args), Shape: args, Table: table}, nil
}

func (r *Random) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		shape := make([]int, len(r.Shape))
		n := 1
		for i, sv := range r.Shape {
			v, err := evalOperand(ctx, sv, r.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
			d, ok := v.Int64()
			if !ok {
				return value.Nil(), errors.NewTypeError("random expects integer shape dimensions", "", 0, 0)
			}
			shape[i] = int(d)
			n *= int(d)
		}
		if len(shape) == 0 {
			n = 1
		}
		rng := arrayops.NewSeededRand()
		data := make([]float64, n)
		for i := range data {
			data[i] = rng.Float64()
		}
		out, err := array.NewDouble(data, shape)
		if err != nil {
			return value.Nil(), err
		}
		return value.Array(out), nil
	})
}

// Timer implements `timer()`: returns the current monotonic-adjacent
// wall-clock reading in seconds as a double, for user-level elapsed-
// time measurement (distinct from internal/primitives/control.Timer,
// which times an expression's evaluation and passes the elapsed seconds
// to a callback rather than reporting a clock reading).
type Timer struct {
	primitive.Base
}

func NewTimerKernel(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &Timer{Base: primitive.NewBase(name, nil)}, nil
}

func (t *Timer) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		out, err := array.NewDouble([]float64{float64(time.Now().UnixNano()) / 1e9}, nil)
		return value.Array(out), err
	})
}

// Debug implements `debug(value)`: prints value to stdout (for an
// array: its shape, its rendering, and its element count comma-grouped
// by go-humanize) and returns its argument unchanged (so debug can be
// inserted transparently inside an expression).
type Debug struct {
	primitive.Base
	Value value.Value
	Table *primitive.Table
}

func NewDebug(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &Debug{Base: primitive.NewBase(name, args), Value: args[0], Table: table}, nil
}

func (d *Debug) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		v, err := evalOperand(ctx, d.Value, d.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		fmt.Println(formatDebug(v))
		return v, nil
	})
}

func formatDebug(v value.Value) string {
	if a, ok := v.Array(); ok {
		if nd, ok := a.(*array.NDArray); ok {
			return fmt.Sprintf("%s %s (%s elements)", nd.ShapeString(), v.GoString(), humanize.Comma(int64(nd.Size())))
		}
	}
	return v.GoString()
}

// FormatString implements `format_string(template, args...)`: a
// printf-style formatter that substitutes each argument's GoString
// rendering into template with fmt.Sprintf; it does no byte-size or
// duration humanization of its own.
type FormatString struct {
	primitive.Base
	Template value.Value
	Args     []value.Value
	Table    *primitive.Table
}

func NewFormatString(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &FormatString{Base: primitive.NewBase(name, args), Template: args[0], Args: args[1:], Table: table}, nil
}

func (fs *FormatString) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		tv, err := evalOperand(ctx, fs.Template, fs.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		tmpl, err := stringArg(tv, "format_string")
		if err != nil {
			return value.Nil(), err
		}
		rendered := make([]interface{}, len(fs.Args))
		for i, a := range fs.Args {
			v, err := evalOperand(ctx, a, fs.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
			rendered[i] = v.GoString()
		}
		return value.String(fmt.Sprintf(tmpl, rendered...)), nil
	})
}

// SQLRead implements the `sql_read_mysql`/`sql_read_postgres`/
// `sql_read_mssql` trio: each is this same leaf bound to a fixed driver
// name, taking (dsn, query) and returning the first result column as a
// rank-1 double array. Grounded on the teacher's internal/database
// connect-then-query pattern, minus the security-scanning layers that
// have no analogue in an array-programming runtime.
type SQLRead struct {
	primitive.Base
	DSN, Query value.Value
	Table      *primitive.Table
	driver     string
}

func newSQLRead(name primitive.Name, driver string, args []value.Value, table *primitive.Table) *SQLRead {
	return &SQLRead{Base: primitive.NewBase(name, args), DSN: args[0], Query: args[1], Table: table, driver: driver}
}

func NewSQLReadMySQL(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newSQLRead(name, "mysql", args, table), nil
}

func NewSQLReadPostgres(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newSQLRead(name, "postgres", args, table), nil
}

func NewSQLReadMSSQL(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newSQLRead(name, "sqlserver", args, table), nil
}

func (s *SQLRead) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		dv, err := evalOperand(ctx, s.DSN, s.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		dsn, err := stringArg(dv, "sql_read")
		if err != nil {
			return value.Nil(), err
		}
		qv, err := evalOperand(ctx, s.Query, s.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		query, err := stringArg(qv, "sql_read")
		if err != nil {
			return value.Nil(), err
		}
		result, err := SQLReadRows(ctx, s.driver, dsn, query)
		if err != nil {
			return value.Nil(), errors.NewUserError(err.Error(), "", 0, 0)
		}
		out, err := array.NewDouble(result, []int{len(result)})
		if err != nil {
			return value.Nil(), err
		}
		return value.Array(out), nil
	})
}

// SQLReadRows opens driverName/dsn, runs query, and returns the first
// column of every row widened to float64 — the shared helper the three
// sql_read_* leaves and any future caller use, kept separate from the
// primitive.Node wrapper so it is independently testable.
func SQLReadRows(ctx context.Context, driverName, dsn, query string) ([]float64, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
