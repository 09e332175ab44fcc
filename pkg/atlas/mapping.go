package atlas

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Orientation identifies one of the three orthogonal section views.
type Orientation uint8

const (
	Sagittal Orientation = iota
	Coronal
	Transversal
)

// Orientations lists all section orientations in layout order.
var Orientations = [3]Orientation{Sagittal, Coronal, Transversal}

func (o Orientation) String() string {
	switch o {
	case Sagittal:
		return "sagittal"
	case Coronal:
		return "coronal"
	case Transversal:
		return "transversal"
	}
	return fmt.Sprintf("Orientation(%d)", uint8(o))
}

// Mapping describes how one section orientation indexes the canonical
// volume space: which axis the section walks (Slice), which axis runs
// down the rendered image (Row) and which runs across it (Col), and
// whether rows are flipped so that the anatomical "up" direction points
// up on screen instead of down in raw array order.
//
// A section pixel (r, c) at slice index i reads the voxel
//
//	{ Slice: i, Row: extent(Row)-1-r, Col: c }   (FlipRows)
//	{ Slice: i, Row: r,               Col: c }   (otherwise)
//
// and the vertical/horizontal cursor lines of the view track the Col and
// Row axes respectively.
type Mapping struct {
	Slice    Axis
	Row      Axis
	Col      Axis
	FlipRows bool
}

// MappingFor returns the fixed axis mapping of an orientation. All three
// orientations flip rows; they differ only in the axis assignment.
func MappingFor(o Orientation) Mapping {
	switch o {
	case Sagittal:
		return Mapping{Slice: AxisX, Row: AxisZ, Col: AxisY, FlipRows: true}
	case Coronal:
		return Mapping{Slice: AxisZ, Row: AxisX, Col: AxisY, FlipRows: true}
	case Transversal:
		return Mapping{Slice: AxisY, Row: AxisZ, Col: AxisX, FlipRows: true}
	}
	panic(fmt.Sprintf("atlas: unknown orientation %d", uint8(o)))
}

// YMax returns the extent of the row axis of an orientation, the constant
// used to convert between screen-down-positive line positions and
// physical-up-positive indices.
func YMax(o Orientation, space Space) int {
	return space.Extent(MappingFor(o).Row)
}

// SliceOf extracts the 2D section of vol at the given index along the
// orientation's slice axis. The index is clamped to the valid range, so
// walking past the end of the stack yields the last valid plane.
func SliceOf(vol *Volume, o Orientation, index int) *Slice {
	m := MappingFor(o)
	space := vol.Space()
	index = space.Clamp(m.Slice, index)

	rows := space.Extent(m.Row)
	cols := space.Extent(m.Col)
	ch := vol.Channels()
	out := &Slice{Rows: rows, Cols: cols, Channels: ch, Data: make([]float32, rows*cols*ch)}

	var voxel [3]int
	voxel[m.Slice] = index
	for r := 0; r < rows; r++ {
		src := r
		if m.FlipRows {
			src = rows - 1 - r
		}
		voxel[m.Row] = src
		for c := 0; c < cols; c++ {
			voxel[m.Col] = c
			for k := 0; k < ch; k++ {
				out.Data[(r*cols+c)*ch+k] = vol.At(voxel[0], voxel[1], voxel[2], k)
			}
		}
	}
	return out
}

// ScreenPoint is a projected 2D point in a section view's plane
// coordinates: X along the column axis, Y in physical-up-positive units.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ProjectPoints selects the points whose slice-axis coordinate rounds to
// index and projects them onto the orientation's image plane with the
// same axis order and row flip as SliceOf. The input is never mutated;
// coordinates are copied before the flip is applied. No matching points
// yields an empty (non-nil) result.
func ProjectPoints(o Orientation, space Space, points []r3.Vec, index int) []ScreenPoint {
	m := MappingFor(o)
	ymax := float64(space.Extent(m.Row))

	out := make([]ScreenPoint, 0, len(points))
	for _, p := range points {
		if int(math.Round(axisValue(p, m.Slice))) != index {
			continue
		}
		x := axisValue(p, m.Col)
		y := axisValue(p, m.Row)
		if m.FlipRows {
			y = ymax - y
		}
		out = append(out, ScreenPoint{X: x, Y: y})
	}
	return out
}

// axisValue returns the component of p along a canonical axis.
func axisValue(p r3.Vec, a Axis) float64 {
	switch a {
	case AxisX:
		return p.X
	case AxisY:
		return p.Y
	}
	return p.Z
}

// VLineIndex converts a vertical cursor line's raw position into the
// logical index along the orientation's column axis.
func VLineIndex(raw float64) int {
	return int(math.Floor(raw))
}

// VLinePos is the inverse of VLineIndex for integer indices.
func VLinePos(index int) float64 {
	return float64(index)
}

// HLineIndex converts a horizontal cursor line's raw position into the
// logical index along the orientation's row axis. Screen-vertical is
// flipped relative to physical-up, so the position is measured down from
// YMax. HLineIndex(o, space, HLinePos(o, space, i)) == i for any valid i.
func HLineIndex(o Orientation, space Space, raw float64) int {
	return YMax(o, space) - int(math.Floor(raw))
}

// HLinePos is the inverse of HLineIndex for integer indices.
func HLinePos(o Orientation, space Space, index int) float64 {
	return float64(YMax(o, space) - index)
}
