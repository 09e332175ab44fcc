package atlas

import "fmt"

// Volume is a dense 3D intensity array over a Space, with an optional
// channel dimension (1 for grayscale masks, 3 or 4 for composite markers).
// Volumes are immutable once constructed: a marker change publishes a new
// Volume rather than mutating the old one in place.
type Volume struct {
	space    Space
	channels int
	data     []float32
}

// NewVolume wraps data as a volume over space. The data layout is
// row-major over (X, Y, Z) with interleaved channels:
// index = ((x*S1 + y)*S2 + z)*channels + c.
func NewVolume(space Space, channels int, data []float32) (*Volume, error) {
	if space.IsZero() {
		return nil, fmt.Errorf("atlas: volume space %v has a non-positive extent", space)
	}
	if channels < 1 {
		return nil, fmt.Errorf("atlas: volume must have at least one channel, got %d", channels)
	}
	if want := space.Voxels() * channels; len(data) != want {
		return nil, fmt.Errorf("atlas: volume data length %d does not match space %v x %d channels (want %d)",
			len(data), space, channels, want)
	}
	return &Volume{space: space, channels: channels, data: data}, nil
}

// Space returns the extents of the volume.
func (v *Volume) Space() Space {
	return v.space
}

// Channels returns the number of interleaved channels per voxel.
func (v *Volume) Channels() int {
	return v.channels
}

// At returns the intensity at voxel (x, y, z), channel c.
func (v *Volume) At(x, y, z, c int) float32 {
	return v.data[((x*v.space[1]+y)*v.space[2]+z)*v.channels+c]
}

// Slice is a 2D section extracted from a Volume, row-major with
// interleaved channels, already in the display orientation of the
// section view that requested it.
type Slice struct {
	Rows     int       `json:"rows"`
	Cols     int       `json:"cols"`
	Channels int       `json:"channels"`
	Data     []float32 `json:"data"`
}

// At returns the value at (row, col), channel c.
func (s *Slice) At(r, c, ch int) float32 {
	return s.Data[(r*s.Cols+c)*s.Channels+ch]
}
