// Package points loads ROI point clouds from user-supplied files. Two
// formats are accepted: CSV with three coordinate columns and NumPy
// arrays of shape Nx3. Rows containing non-finite values are dropped
// and counted rather than failing the whole file.
package points

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/thladnik/mapzebrain-viewer/pkg/session"
)

// Result is a loaded point cloud plus the number of rows dropped for
// containing NaN or infinite coordinates.
type Result struct {
	Points  []r3.Vec
	Dropped int
}

// FromFile loads a point cloud, dispatching on the file extension.
func FromFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("points: opening %s: %w", path, err)
	}
	defer f.Close()

	source := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FromCSV(f, source)
	case ".npy":
		return FromNPY(f, source)
	}
	return nil, &session.MalformedPointDataError{
		Source: source,
		Reason: fmt.Sprintf("unsupported file type %q", filepath.Ext(path)),
	}
}

// FromCSV reads a point cloud from CSV. Two layouts are accepted: three
// bare numeric columns in x, y, z order, or a header row naming columns
// x, y and z (case-insensitive, any order, extra columns ignored).
func FromCSV(r io.Reader, source string) (*Result, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &session.MalformedPointDataError{Source: source, Reason: err.Error()}
	}
	if len(records) == 0 {
		return nil, &session.MalformedPointDataError{Source: source, Reason: "empty file"}
	}

	cols := [3]int{0, 1, 2}
	rows := records
	if headerIndex(records[0], &cols) {
		rows = records[1:]
	} else if len(records[0]) != 3 {
		return nil, &session.MalformedPointDataError{
			Source: source,
			Reason: fmt.Sprintf("want 3 coordinate columns or an x/y/z header, got %d columns", len(records[0])),
		}
	}

	res := &Result{}
	for i, rec := range rows {
		var coords [3]float64
		ok := true
		for j, col := range cols {
			if col >= len(rec) {
				return nil, &session.MalformedPointDataError{
					Source: source,
					Reason: fmt.Sprintf("row %d has %d columns", i+1, len(rec)),
				}
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
			if err != nil {
				return nil, &session.MalformedPointDataError{
					Source: source,
					Reason: fmt.Sprintf("row %d column %d: %v", i+1, col+1, err),
				}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				ok = false
			}
			coords[j] = v
		}
		if !ok {
			res.Dropped++
			continue
		}
		res.Points = append(res.Points, r3.Vec{X: coords[0], Y: coords[1], Z: coords[2]})
	}
	return res, nil
}

// headerIndex detects an x/y/z header row and fills cols with the column
// index of each coordinate.
func headerIndex(record []string, cols *[3]int) bool {
	found := 0
	for i, field := range record {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "x":
			cols[0] = i
			found++
		case "y":
			cols[1] = i
			found++
		case "z":
			cols[2] = i
			found++
		}
	}
	return found == 3
}

// FromNPY reads a point cloud from a NumPy array of shape Nx3, stored as
// float32 or float64 in C order.
func FromNPY(r io.Reader, source string) (*Result, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, &session.MalformedPointDataError{Source: source, Reason: err.Error()}
	}

	shape := nr.Header.Descr.Shape
	if len(shape) != 2 || shape[1] != 3 {
		return nil, &session.MalformedPointDataError{
			Source: source,
			Reason: fmt.Sprintf("want shape (N, 3), got %v", shape),
		}
	}
	if nr.Header.Descr.Fortran {
		return nil, &session.MalformedPointDataError{Source: source, Reason: "Fortran-ordered arrays are not supported"}
	}

	data, err := readFloats(nr)
	if err != nil {
		return nil, &session.MalformedPointDataError{Source: source, Reason: err.Error()}
	}

	res := &Result{}
	for i := 0; i+2 < len(data); i += 3 {
		x, y, z := data[i], data[i+1], data[i+2]
		if math.IsNaN(x) || math.IsInf(x, 0) ||
			math.IsNaN(y) || math.IsInf(y, 0) ||
			math.IsNaN(z) || math.IsInf(z, 0) {
			res.Dropped++
			continue
		}
		res.Points = append(res.Points, r3.Vec{X: x, Y: y, Z: z})
	}
	return res, nil
}

// readFloats reads the array payload as float64 regardless of whether it
// was stored in single or double precision.
func readFloats(nr *npyio.Reader) ([]float64, error) {
	switch {
	case strings.Contains(nr.Header.Descr.Type, "f8"):
		var data []float64
		if err := nr.Read(&data); err != nil {
			return nil, err
		}
		return data, nil
	case strings.Contains(nr.Header.Descr.Type, "f4"):
		var raw []float32
		if err := nr.Read(&raw); err != nil {
			return nil, err
		}
		data := make([]float64, len(raw))
		for i, v := range raw {
			data[i] = float64(v)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unsupported dtype %q", nr.Header.Descr.Type)
}
