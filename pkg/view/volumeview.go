package view

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/thladnik/mapzebrain-viewer/pkg/atlas"
	"github.com/thladnik/mapzebrain-viewer/pkg/kernel"
	"github.com/thladnik/mapzebrain-viewer/pkg/palette"
	"github.com/thladnik/mapzebrain-viewer/pkg/session"
)

// PlaneThickness is the slab depth of the three cutting planes, in voxel
// units.
const PlaneThickness = 2.0

// meshAlphaDivisor dims region meshes in the 3D scene relative to their
// 2D overlay color, so stacked translucent surfaces stay readable.
const meshAlphaDivisor = 10

// Plane is one axis-aligned cutting-plane slab in the 3D scene. The slab
// geometry is tessellated once per marker load; moving the plane only
// changes its placement offset.
type Plane struct {
	Axis   atlas.Axis   `json:"axis"`
	Mesh   *kernel.Mesh `json:"mesh"`
	Offset [3]float64   `json:"offset"`
}

// MeshHandle is the stable render handle for one region's surface mesh
// in the 3D scene. Like section overlays, handles are hidden rather than
// destroyed when the region disappears.
type MeshHandle struct {
	Name    string        `json:"name"`
	Mesh    *kernel.Mesh  `json:"mesh"`
	Color   palette.Color `json:"color"`
	Visible bool          `json:"visible"`
}

// PointsHandle is the render handle for one ROI set's 3D point cloud.
type PointsHandle struct {
	Name    string        `json:"name"`
	Points  []r3.Vec      `json:"points"`
	Color   palette.Color `json:"color"`
	Visible bool          `json:"visible"`
}

// Camera is the orbital camera state of the 3D view.
type Camera struct {
	Azimuth   float64    `json:"azimuth"`
	Elevation float64    `json:"elevation"`
	Distance  float64    `json:"distance"`
	Center    [3]float64 `json:"center"`
}

// Scene is the serializable render state of the 3D view.
type Scene struct {
	Bounds   *kernel.Mesh    `json:"bounds"`
	Planes   [3]*Plane       `json:"planes"`
	Meshes   []*MeshHandle   `json:"meshes"`
	Scatters []*PointsHandle `json:"scatters"`
	Camera   Camera          `json:"camera"`
	Seq      uint64          `json:"seq"`
}

// cameraPresets are the canonical orthogonal viewing directions,
// selectable by name.
var cameraPresets = map[string][2]float64{
	"xy":  {-90, 90},
	"x-y": {90, -90},
	"xz":  {-90, 0},
	"yz":  {0, 0},
	"x-z": {90, 180},
	"y-z": {180, 0},
}

// VolumeView renders the session in 3D: a wireframe bounding box of the
// marker volume, one movable cutting-plane slab per axis, region surface
// meshes and ROI point clouds.
//
// The 3D scene is mirrored along the first axis relative to raw volume
// coordinates, matching the anatomical left-right convention of the
// section views. The mirror is applied exactly once, when a mesh or
// point cloud is ingested, never during later updates.
type VolumeView struct {
	sess *session.Session
	kern kernel.Kernel

	space  atlas.Space
	bounds *kernel.Mesh
	planes [3]*Plane

	meshes    map[string]*MeshHandle
	meshOrder []string

	scatters     map[string]*PointsHandle
	scatterOrder []string

	camera Camera
	seq    uint64
}

// NewVolumeView creates the 3D view over sess with the given geometry
// kernel. The scene stays empty until the first marker load.
func NewVolumeView(sess *session.Session, kern kernel.Kernel) *VolumeView {
	return &VolumeView{
		sess:     sess,
		kern:     kern,
		meshes:   make(map[string]*MeshHandle),
		scatters: make(map[string]*PointsHandle),
	}
}

// Seq returns the visible-render counter of the 3D scene.
func (v *VolumeView) Seq() uint64 {
	return v.seq
}

// Camera returns the current camera state.
func (v *VolumeView) Camera() Camera {
	return v.camera
}

// OnMarkerUpdated rebuilds the static scene solids for a new marker
// volume: the bounding box and the three cutting-plane slabs. This is
// the only place slab geometry is tessellated; SetPlanePosition moves
// the finished meshes by offset alone.
func (v *VolumeView) OnMarkerUpdated() error {
	space := v.sess.Space()
	if space.IsZero() {
		return nil
	}
	v.space = space

	sx := float64(space.Extent(atlas.AxisX))
	sy := float64(space.Extent(atlas.AxisY))
	sz := float64(space.Extent(atlas.AxisZ))

	bounds, err := v.kern.ToMesh(v.kern.Box(sx, sy, sz))
	if err != nil {
		return fmt.Errorf("building volume bounds: %w", err)
	}
	v.bounds = bounds

	dims := [3][3]float64{
		atlas.AxisX: {PlaneThickness, sy, sz},
		atlas.AxisY: {sx, PlaneThickness, sz},
		atlas.AxisZ: {sx, sy, PlaneThickness},
	}
	for _, a := range atlas.Axes {
		d := dims[a]
		mesh, err := v.kern.ToMesh(v.kern.Box(d[0], d[1], d[2]))
		if err != nil {
			return fmt.Errorf("building %s cutting plane: %w", a, err)
		}
		v.planes[a] = &Plane{Axis: a, Mesh: mesh}
	}

	v.camera = Camera{
		Azimuth:   cameraPresets["xy"][0],
		Elevation: cameraPresets["xy"][1],
		Distance:  2 * math.Max(sx, math.Max(sy, sz)),
		Center:    [3]float64{sx / 2, sy / 2, sz / 2},
	}

	// Cached handles carry the previous marker's mirror, and point
	// clouds stored before the first marker were never ingested at all.
	// Drop the caches and replay the stored ROI sets against the new
	// extents; region meshes come back through the next
	// OnRegionsChanged pass.
	v.meshes = make(map[string]*MeshHandle)
	v.meshOrder = nil
	v.scatters = make(map[string]*PointsHandle)
	v.scatterOrder = nil
	for _, roi := range v.sess.RoiSets() {
		v.AddScatter(roi.Name)
	}

	v.seq++
	return nil
}

// SetPlanePosition moves the cutting plane of one axis to a slice index.
// Only the plane's placement offset changes. The first axis is mirrored
// like all ingested geometry, so the plane lines up with the mirrored
// meshes and point clouds.
func (v *VolumeView) SetPlanePosition(axis atlas.Axis, index int) {
	p := v.planes[axis]
	if p == nil {
		return
	}
	pos := float64(index)
	if axis == atlas.AxisX {
		pos = float64(v.space.Extent(atlas.AxisX)) - pos
	}
	var off [3]float64
	off[axis] = pos - PlaneThickness/2
	if p.Offset == off {
		return
	}
	p.Offset = off
	v.seq++
}

// OnRegionsChanged synchronizes mesh handles with the region store:
// hide everything, then re-show each stored region that carries a
// surface mesh. Meshes are mirrored and tessellated into render form on
// first appearance only; later passes re-tint the existing handle.
func (v *VolumeView) OnRegionsChanged() {
	if v.space.IsZero() {
		return
	}
	for _, h := range v.meshes {
		h.Visible = false
	}
	for _, r := range v.sess.Regions() {
		if len(r.Mesh) == 0 {
			continue
		}
		h := v.meshes[r.Name]
		if h == nil {
			h = &MeshHandle{
				Name: r.Name,
				Mesh: kernel.FromTriangles(v.mirrorTriangles(r.Mesh)),
			}
			v.meshes[r.Name] = h
			v.meshOrder = append(v.meshOrder, r.Name)
		}
		h.Color = r.Color.WithAlpha(r.Color.A / meshAlphaDivisor)
		h.Visible = true
	}
	v.seq++
}

// AddScatter ingests a newly stored ROI set into the 3D scene, mirroring
// its points once.
func (v *VolumeView) AddScatter(name string) {
	roi := v.sess.RoiSet(name)
	if roi == nil || v.space.IsZero() {
		return
	}
	h := v.scatters[name]
	if h == nil {
		h = &PointsHandle{Name: name, Points: v.mirrorPoints(roi.Points)}
		v.scatters[name] = h
		v.scatterOrder = append(v.scatterOrder, name)
	}
	h.Color = roi.Color
	h.Visible = roi.Visible
	v.seq++
}

// RemoveScatter drops an ROI set's point cloud from the scene.
func (v *VolumeView) RemoveScatter(name string) {
	if _, ok := v.scatters[name]; !ok {
		return
	}
	delete(v.scatters, name)
	v.scatterOrder = removeName(v.scatterOrder, name)
	v.seq++
}

// RestyleScatter re-tints an existing point cloud in place. The stored
// (already mirrored) points are untouched.
func (v *VolumeView) RestyleScatter(name string) {
	roi := v.sess.RoiSet(name)
	h := v.scatters[name]
	if roi == nil || h == nil {
		return
	}
	h.Color = roi.Color
	h.Visible = roi.Visible
	v.seq++
}

// mirrorPoints copies points with the first-axis mirror applied.
func (v *VolumeView) mirrorPoints(points []r3.Vec) []r3.Vec {
	sx := float64(v.space.Extent(atlas.AxisX))
	out := make([]r3.Vec, len(points))
	for i, p := range points {
		out[i] = r3.Vec{X: sx - p.X, Y: p.Y, Z: p.Z}
	}
	return out
}

// mirrorTriangles copies triangles with the first-axis mirror applied.
// Vertex order is reversed so the mirrored faces keep outward normals.
func (v *VolumeView) mirrorTriangles(tris []atlas.Triangle) []atlas.Triangle {
	sx := float64(v.space.Extent(atlas.AxisX))
	out := make([]atlas.Triangle, len(tris))
	for i, t := range tris {
		for j, p := range t {
			out[i][2-j] = r3.Vec{X: sx - p.X, Y: p.Y, Z: p.Z}
		}
	}
	return out
}

// Pan shifts the camera center in world coordinates.
func (v *VolumeView) Pan(dx, dy, dz float64) {
	v.camera.Center[0] += dx
	v.camera.Center[1] += dy
	v.camera.Center[2] += dz
	v.seq++
}

// Orbit rotates the camera around its center. Elevation is clamped to
// avoid flipping over the poles.
func (v *VolumeView) Orbit(dAzimuth, dElevation float64) {
	v.camera.Azimuth = math.Mod(v.camera.Azimuth+dAzimuth, 360)
	v.camera.Elevation = math.Max(-90, math.Min(90, v.camera.Elevation+dElevation))
	v.seq++
}

// Zoom scales the camera distance by a positive factor.
func (v *VolumeView) Zoom(factor float64) {
	if factor <= 0 {
		return
	}
	v.camera.Distance *= factor
	v.seq++
}

// SetPreset snaps the camera to a named orthogonal viewing direction.
// Unknown names are ignored and reported false.
func (v *VolumeView) SetPreset(name string) bool {
	angles, ok := cameraPresets[name]
	if !ok {
		return false
	}
	v.camera.Azimuth = angles[0]
	v.camera.Elevation = angles[1]
	v.seq++
	return true
}

// Presets lists the available camera preset names.
func Presets() []string {
	names := make([]string, 0, len(cameraPresets))
	for name := range cameraPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scene renders the 3D view's current serializable state in stable
// handle order.
func (v *VolumeView) Scene() *Scene {
	s := &Scene{
		Bounds: v.bounds,
		Planes: v.planes,
		Camera: v.camera,
		Seq:    v.seq,
	}
	for _, name := range v.meshOrder {
		s.Meshes = append(s.Meshes, v.meshes[name])
	}
	for _, name := range v.scatterOrder {
		s.Scatters = append(s.Scatters, v.scatters[name])
	}
	return s
}
