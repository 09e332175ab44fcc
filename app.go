package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/thladnik/mapzebrain-viewer/pkg/anatomy"
	"github.com/thladnik/mapzebrain-viewer/pkg/atlas"
	"github.com/thladnik/mapzebrain-viewer/pkg/config"
	"github.com/thladnik/mapzebrain-viewer/pkg/kernel/sdfx"
	"github.com/thladnik/mapzebrain-viewer/pkg/loader"
	"github.com/thladnik/mapzebrain-viewer/pkg/palette"
	"github.com/thladnik/mapzebrain-viewer/pkg/points"
	"github.com/thladnik/mapzebrain-viewer/pkg/script"
	"github.com/thladnik/mapzebrain-viewer/pkg/session"
	"github.com/thladnik/mapzebrain-viewer/pkg/view"
)

// App is the Wails backend. It owns the session, the loader and the
// view layer, and exposes the viewer operations to the frontend via
// bindings. It also implements script.Target, so the Lisp console
// drives the same code paths as the UI.
type App struct {
	ctx context.Context
	cfg *config.Config

	sess   *session.Session
	loader *loader.Client
	engine *script.Engine

	slices map[atlas.Orientation]*view.SliceView
	volume *view.VolumeView
	cursor *view.CursorController

	catalog []anatomy.Marker
	tree    *anatomy.Tree
}

// EvalErrorData is a JSON-serializable eval error for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// ScriptResult is the console evaluation result sent to the frontend.
type ScriptResult struct {
	Output string          `json:"output"`
	Errors []EvalErrorData `json:"errors"`
}

// NewApp wires a viewer instance from configuration.
func NewApp(cfg *config.Config) (*App, error) {
	cacheDir, err := cfg.EffectiveCacheDir()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		sess:   session.New(),
		loader: loader.New(cfg.Atlas.BaseURL, cfg.Atlas.RegionVersion, cacheDir),
		slices: make(map[atlas.Orientation]*view.SliceView, 3),
		tree:   anatomy.Default(),
	}

	ordered := make([]*view.SliceView, 0, 3)
	for _, o := range atlas.Orientations {
		v := view.NewSliceView(o, a.sess)
		a.slices[o] = v
		ordered = append(ordered, v)
	}
	a.volume = view.NewVolumeView(a.sess, sdfx.New())
	a.cursor = view.NewCursorController(a.volume, ordered...)
	view.Bind(a.sess, a.cursor, a.volume, a.reportError, ordered...)

	a.engine = script.NewEngine(a)
	a.engine.SetTimeout(time.Duration(cfg.Script.TimeoutSeconds) * time.Second)
	return a, nil
}

// startup is called by Wails on app startup. The context is saved so
// runtime events can be emitted later.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	if name := a.cfg.Atlas.DefaultMarker; name != "" {
		if err := a.SetMarker(name); err != nil {
			a.reportError(err)
		}
	}
}

// runCtx returns the runtime context, or a background context when the
// app runs without the Wails runtime (tests, console replay).
func (a *App) runCtx() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

// emit publishes a frontend event. Outside the Wails runtime it is a
// no-op, which keeps the whole backend testable headlessly.
func (a *App) emit(event string, data ...interface{}) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, event, data...)
}

// reportError logs and forwards an error to the frontend status bar.
func (a *App) reportError(err error) {
	log.Printf("viewer error: %v", err)
	a.emit("status:error", err.Error())
}

// publish pushes the full render state to the frontend: one frame per
// section view, the 3D scene and the cursor position.
func (a *App) publish() {
	for o, v := range a.slices {
		a.emit("slice:frame:"+o.String(), v.Frame())
	}
	a.emit("volume:scene", a.volume.Scene())
	a.emit("cursor:changed", a.cursor.Position())
}

// ---------------------------------------------------------------------------
// Marker and region bindings (also the script.Target implementation)
// ---------------------------------------------------------------------------

// Markers lists the marker lines of the catalog, downloading the catalog
// on first use.
func (a *App) Markers() ([]string, error) {
	if a.catalog == nil {
		catalog, err := a.loader.Catalog(a.runCtx())
		if err != nil {
			return nil, err
		}
		a.catalog = catalog
	}
	names := make([]string, len(a.catalog))
	for i, m := range a.catalog {
		names[i] = m.Name
	}
	return names, nil
}

// SetMarker loads a marker line by catalog name and makes it the
// session's marker volume.
func (a *App) SetMarker(name string) error {
	if _, err := a.Markers(); err != nil {
		return err
	}
	for _, m := range a.catalog {
		if m.Name != name {
			continue
		}
		vol, err := a.loader.LoadMarker(a.runCtx(), m)
		if err != nil {
			return err
		}
		if err := a.sess.SetMarker(vol); err != nil {
			return err
		}
		a.publish()
		return nil
	}
	return &session.AssetUnavailableError{Kind: "marker", Name: name, Err: fmt.Errorf("not in catalog")}
}

// RegionTree returns the anatomical region hierarchy for the picker.
func (a *App) RegionTree() []*anatomy.Node {
	return a.tree.Roots()
}

// Regions lists the names of the loaded regions in insertion order.
func (a *App) Regions() []string {
	regions := a.sess.Regions()
	names := make([]string, len(regions))
	for i, r := range regions {
		names[i] = r.Name
	}
	return names
}

// AddRegion loads a region's mask and surface and stores it in the
// session.
func (a *App) AddRegion(name string) error {
	vol, mesh, err := a.loader.LoadRegion(a.runCtx(), name)
	if err != nil {
		return err
	}
	if err := a.sess.AddRegion(&session.Region{Name: name, Volume: vol, Mesh: mesh}); err != nil {
		return err
	}
	a.publish()
	return nil
}

// RemoveRegion drops a region from the session.
func (a *App) RemoveRegion(name string) error {
	a.sess.RemoveRegion(name)
	a.publish()
	return nil
}

// SetRegionColor recolors a loaded region.
func (a *App) SetRegionColor(name, hex string) error {
	c, err := palette.ParseHex(hex)
	if err != nil {
		return err
	}
	if err := a.sess.SetRegionColor(name, c); err != nil {
		return err
	}
	a.publish()
	return nil
}

// ---------------------------------------------------------------------------
// ROI bindings
// ---------------------------------------------------------------------------

// AddRoi loads a point cloud file (CSV or NumPy) and stores it under
// name. Rows with non-finite coordinates are dropped; the drop count is
// forwarded to the status bar.
func (a *App) AddRoi(name, path string) error {
	res, err := points.FromFile(path)
	if err != nil {
		return err
	}
	if res.Dropped > 0 {
		a.emit("status:info", fmt.Sprintf("%s: dropped %d non-finite rows", name, res.Dropped))
	}
	if err := a.sess.AddRoiSet(name, res.Points, palette.Color{}); err != nil {
		return err
	}
	a.publish()
	return nil
}

// AddRoiPoints stores an in-memory point cloud, applying the same
// non-finite filtering and drop reporting as the file path.
func (a *App) AddRoiPoints(name string, pts [][3]float64) error {
	vecs, dropped := finitePoints(pts)
	if dropped > 0 {
		a.emit("status:info", fmt.Sprintf("%s: dropped %d non-finite rows", name, dropped))
	}
	if err := a.sess.AddRoiSet(name, vecs, palette.Color{}); err != nil {
		return err
	}
	a.publish()
	return nil
}

// finitePoints filters rows containing NaN or infinite coordinates,
// returning the kept points and the drop count.
func finitePoints(pts [][3]float64) ([]r3.Vec, int) {
	vecs := make([]r3.Vec, 0, len(pts))
	dropped := 0
	for _, p := range pts {
		if math.IsNaN(p[0]) || math.IsInf(p[0], 0) ||
			math.IsNaN(p[1]) || math.IsInf(p[1], 0) ||
			math.IsNaN(p[2]) || math.IsInf(p[2], 0) {
			dropped++
			continue
		}
		vecs = append(vecs, r3.Vec{X: p[0], Y: p[1], Z: p[2]})
	}
	return vecs, dropped
}

// RemoveRoi drops an ROI set from the session.
func (a *App) RemoveRoi(name string) error {
	a.sess.RemoveRoiSet(name)
	a.publish()
	return nil
}

// SetRoiColor recolors an ROI set.
func (a *App) SetRoiColor(name, hex string) error {
	c, err := palette.ParseHex(hex)
	if err != nil {
		return err
	}
	if err := a.sess.SetRoiColor(name, c); err != nil {
		return err
	}
	a.publish()
	return nil
}

// SetRoiVisible toggles an ROI set.
func (a *App) SetRoiVisible(name string, visible bool) error {
	if err := a.sess.SetRoiVisibility(name, visible); err != nil {
		return err
	}
	a.publish()
	return nil
}

// ---------------------------------------------------------------------------
// Cursor and view bindings
// ---------------------------------------------------------------------------

// CursorPosition returns the logical cursor's voxel coordinate.
func (a *App) CursorPosition() [3]int {
	return a.cursor.Position()
}

// SetCursor moves the cursor to an absolute voxel coordinate.
func (a *App) SetCursor(x, y, z int) error {
	if a.sess.Marker() == nil {
		return fmt.Errorf("no marker loaded")
	}
	pos := a.cursor.Position()
	target := [3]int{x, y, z}
	for _, axis := range atlas.Axes {
		if target[axis] != pos[axis] {
			a.cursor.Move(axis, target[axis])
		}
	}
	a.publish()
	return nil
}

// DragLine handles a cursor line drag in one section view. line is "v"
// for the vertical line, "h" for the horizontal line and "slice" for
// the view's own slice position marker.
func (a *App) DragLine(viewName, line string, raw float64) error {
	v, err := a.sliceView(viewName)
	if err != nil {
		return err
	}
	switch line {
	case "v":
		v.DragVLine(raw)
	case "h":
		v.DragHLine(raw)
	case "slice":
		v.DragTimeline(raw)
	default:
		return fmt.Errorf("unknown cursor line %q", line)
	}
	a.publish()
	return nil
}

// SetSliceIndex jumps one section view to an absolute slice index,
// moving the cursor along that view's slice axis.
func (a *App) SetSliceIndex(viewName string, index int) error {
	v, err := a.sliceView(viewName)
	if err != nil {
		return err
	}
	a.cursor.Move(atlas.MappingFor(v.Orientation()).Slice, index)
	a.publish()
	return nil
}

// Frame returns the current render state of one section view.
func (a *App) Frame(viewName string) (*view.Frame, error) {
	v, err := a.sliceView(viewName)
	if err != nil {
		return nil, err
	}
	return v.Frame(), nil
}

// Scene returns the current 3D scene.
func (a *App) Scene() *view.Scene {
	return a.volume.Scene()
}

// RenderSlice flattens one section view's marker slice and visible
// region overlays into a premultiplied RGBA pixel buffer, using the
// configured overlay blend weight.
func (a *App) RenderSlice(viewName string) ([]uint8, error) {
	v, err := a.sliceView(viewName)
	if err != nil {
		return nil, err
	}
	f := v.Frame()
	return view.Composite(f.Marker, f.Overlays, a.cfg.UI.OverlayAlpha), nil
}

// Settings is the frontend's copy of the UI tunables.
type Settings struct {
	OverlayAlpha float64 `json:"overlayAlpha"`
	PlaneColor   string  `json:"planeColor"`
	ScatterSize  int     `json:"scatterSize"`
}

// UISettings returns the configured UI tunables for the renderer.
func (a *App) UISettings() Settings {
	return Settings{
		OverlayAlpha: a.cfg.UI.OverlayAlpha,
		PlaneColor:   a.cfg.UI.PlaneColor,
		ScatterSize:  a.cfg.UI.ScatterSize,
	}
}

func (a *App) sliceView(name string) (*view.SliceView, error) {
	for o, v := range a.slices {
		if o.String() == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("unknown view %q", name)
}

// ---------------------------------------------------------------------------
// Camera bindings
// ---------------------------------------------------------------------------

// CameraState returns the 3D camera.
func (a *App) CameraState() view.Camera {
	return a.volume.Camera()
}

// CameraPreset snaps the camera to a named orthogonal view.
func (a *App) CameraPreset(name string) error {
	if !a.volume.SetPreset(name) {
		return fmt.Errorf("unknown camera preset %q", name)
	}
	a.publish()
	return nil
}

// CameraPresets lists the available preset names.
func (a *App) CameraPresets() []string {
	return view.Presets()
}

// PanCamera shifts the camera center.
func (a *App) PanCamera(dx, dy, dz float64) {
	a.volume.Pan(dx, dy, dz)
	a.publish()
}

// OrbitCamera rotates the camera around its center.
func (a *App) OrbitCamera(dAzimuth, dElevation float64) {
	a.volume.Orbit(dAzimuth, dElevation)
	a.publish()
}

// ZoomCamera scales the camera distance.
func (a *App) ZoomCamera(factor float64) {
	a.volume.Zoom(factor)
	a.publish()
}

// ---------------------------------------------------------------------------
// Script console
// ---------------------------------------------------------------------------

// RunScript evaluates console input against the live session.
func (a *App) RunScript(source string) ScriptResult {
	result := ScriptResult{Errors: []EvalErrorData{}}

	out, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		log.Printf("script fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	for _, e := range evalErrs {
		result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
	}
	result.Output = out
	return result
}
