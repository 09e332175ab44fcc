// Package atlas defines the canonical 3D index space shared by all
// volumetric entities in a viewer session, and the axis mappings that
// project that space into the three orthogonal section orientations.
package atlas

import "fmt"

// Axis identifies one of the three canonical physical axes of a volume.
// The marker stacks published by the atlas API are ordered (X, Y, Z).
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Axes lists the canonical axes in order.
var Axes = [3]Axis{AxisX, AxisY, AxisZ}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("Axis(%d)", uint8(a))
}

// Space is the immutable extent triple of a volume along (X, Y, Z).
// All regions loaded into a session must share the marker's Space.
type Space [3]int

// Extent returns the number of voxels along the given axis.
func (s Space) Extent(a Axis) int {
	return s[a]
}

// Clamp restricts an index to the valid range [0, extent-1] for an axis.
func (s Space) Clamp(a Axis, i int) int {
	if i < 0 {
		return 0
	}
	if max := s[a] - 1; i > max {
		if max < 0 {
			return 0
		}
		return max
	}
	return i
}

// Center returns the midpoint index along each axis, the default cursor
// position after a marker load.
func (s Space) Center() [3]int {
	return [3]int{s[0] / 2, s[1] / 2, s[2] / 2}
}

// Voxels returns the total voxel count.
func (s Space) Voxels() int {
	return s[0] * s[1] * s[2]
}

// IsZero reports whether the space is empty along any axis.
func (s Space) IsZero() bool {
	return s[0] <= 0 || s[1] <= 0 || s[2] <= 0
}
