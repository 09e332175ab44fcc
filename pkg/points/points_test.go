package points

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/thladnik/mapzebrain-viewer/pkg/session"
)

// TestFromCSVBareColumns reads the plain three-column layout and checks
// that a row with a non-finite coordinate is dropped and counted instead
// of failing the file.
func TestFromCSVBareColumns(t *testing.T) {
	in := strings.Join([]string{
		"1,2,3",
		"4,5,6",
		"7,nan,9",
		"10,11,12",
		"13,14,15",
	}, "\n")

	res, err := FromCSV(strings.NewReader(in), "test.csv")
	if err != nil {
		t.Fatalf("FromCSV: %v", err)
	}
	if len(res.Points) != 4 {
		t.Errorf("point count = %d, want 4", len(res.Points))
	}
	if res.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", res.Dropped)
	}
	if res.Points[0] != (r3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("first point = %v", res.Points[0])
	}
}

// TestFromCSVHeader checks the labeled layout: columns named x, y and z
// may appear in any order, with extra columns ignored.
func TestFromCSVHeader(t *testing.T) {
	in := "id,Z,x,y\n7,30,10,20\n8,60,40,50\n"

	res, err := FromCSV(strings.NewReader(in), "test.csv")
	if err != nil {
		t.Fatalf("FromCSV: %v", err)
	}
	if len(res.Points) != 2 {
		t.Fatalf("point count = %d, want 2", len(res.Points))
	}
	if res.Points[0] != (r3.Vec{X: 10, Y: 20, Z: 30}) {
		t.Errorf("first point = %v, want {10 20 30}", res.Points[0])
	}
}

func TestFromCSVMalformed(t *testing.T) {
	cases := map[string]string{
		"wrong column count": "1,2\n3,4\n",
		"non-numeric":        "1,2,3\n4,five,6\n",
		"empty":              "",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromCSV(strings.NewReader(in), "bad.csv")
			var malformed *session.MalformedPointDataError
			if !errors.As(err, &malformed) {
				t.Fatalf("error = %v, want MalformedPointDataError", err)
			}
			if malformed.Source != "bad.csv" {
				t.Errorf("source = %q", malformed.Source)
			}
		})
	}
}

// TestFromNPY round-trips an Nx3 float64 array and checks non-finite row
// filtering matches the CSV path.
func TestFromNPY(t *testing.T) {
	data := []float64{
		1, 2, 3,
		4, math.NaN(), 6,
		7, 8, 9,
	}
	var buf bytes.Buffer
	if err := npyio.Write(&buf, mat.NewDense(3, 3, data)); err != nil {
		t.Fatalf("npyio.Write: %v", err)
	}

	res, err := FromNPY(&buf, "test.npy")
	if err != nil {
		t.Fatalf("FromNPY: %v", err)
	}
	if len(res.Points) != 2 || res.Dropped != 1 {
		t.Fatalf("points = %d dropped = %d, want 2 and 1", len(res.Points), res.Dropped)
	}
	if res.Points[1] != (r3.Vec{X: 7, Y: 8, Z: 9}) {
		t.Errorf("second point = %v", res.Points[1])
	}
}

func TestFromNPYRejectsWrongShape(t *testing.T) {
	var buf bytes.Buffer
	if err := npyio.Write(&buf, mat.NewDense(2, 4, make([]float64, 8))); err != nil {
		t.Fatalf("npyio.Write: %v", err)
	}
	_, err := FromNPY(&buf, "bad.npy")
	var malformed *session.MalformedPointDataError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want MalformedPointDataError", err)
	}
}
