package view

import (
	"testing"

	"github.com/thladnik/mapzebrain-viewer/pkg/atlas"
	"github.com/thladnik/mapzebrain-viewer/pkg/kernel"
	"github.com/thladnik/mapzebrain-viewer/pkg/session"
)

// fakeKernel stands in for the sdfx backend so view tests never
// tessellate real geometry.
type fakeKernel struct{}

type fakeSolid struct{ dims [3]float64 }

func (s fakeSolid) BoundingBox() (min, max [3]float64) {
	return [3]float64{}, s.dims
}

func (fakeKernel) Box(x, y, z float64) kernel.Solid {
	return fakeSolid{dims: [3]float64{x, y, z}}
}

func (fakeKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	return &kernel.Mesh{Vertices: []float32{0, 0, 0}}, nil
}

// fixture bundles a fully wired view layer over an isolated session.
type fixture struct {
	sess   *session.Session
	ctrl   *CursorController
	volume *VolumeView
	views  map[atlas.Orientation]*SliceView
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sess := session.New()
	views := make(map[atlas.Orientation]*SliceView, 3)
	ordered := make([]*SliceView, 0, 3)
	for _, o := range atlas.Orientations {
		v := NewSliceView(o, sess)
		views[o] = v
		ordered = append(ordered, v)
	}
	volume := NewVolumeView(sess, fakeKernel{})
	ctrl := NewCursorController(volume, ordered...)
	Bind(sess, ctrl, volume, func(err error) { t.Fatalf("scene error: %v", err) }, ordered...)
	return &fixture{sess: sess, ctrl: ctrl, volume: volume, views: views}
}

// loadMarker stores an all-zero marker volume of the given space.
func (f *fixture) loadMarker(t *testing.T, space atlas.Space) {
	t.Helper()
	vol, err := atlas.NewVolume(space, 1, make([]float32, space.Voxels()))
	if err != nil {
		t.Fatalf("NewVolume: %v", err)
	}
	if err := f.sess.SetMarker(vol); err != nil {
		t.Fatalf("SetMarker: %v", err)
	}
}

// maskVolume builds a single-channel mask that is 1 on every voxel whose
// coordinate along axis equals index.
func maskVolume(t *testing.T, space atlas.Space, axis atlas.Axis, index int) *atlas.Volume {
	t.Helper()
	data := make([]float32, space.Voxels())
	s1 := space.Extent(atlas.AxisY)
	s2 := space.Extent(atlas.AxisZ)
	for x := 0; x < space.Extent(atlas.AxisX); x++ {
		for y := 0; y < s1; y++ {
			for z := 0; z < s2; z++ {
				v := [3]int{x, y, z}
				if v[axis] == index {
					data[(x*s1+y)*s2+z] = 1
				}
			}
		}
	}
	vol, err := atlas.NewVolume(space, 1, data)
	if err != nil {
		t.Fatalf("NewVolume: %v", err)
	}
	return vol
}

func sliceMax(s *atlas.Slice) float32 {
	var max float32
	for _, v := range s.Data {
		if v > max {
			max = v
		}
	}
	return max
}
