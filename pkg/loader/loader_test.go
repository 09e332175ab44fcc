package loader

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hschendel/stl"

	"github.com/thladnik/mapzebrain-viewer/pkg/anatomy"
	"github.com/thladnik/mapzebrain-viewer/pkg/atlas"
	"github.com/thladnik/mapzebrain-viewer/pkg/session"
)

// npyBytes serializes a float32 array of the given shape in NumPy v1.0
// format, C order.
func npyBytes(t *testing.T, shape []int, data []float32) []byte {
	t.Helper()
	dims := make([]string, len(shape))
	for i, s := range shape {
		dims[i] = fmt.Sprintf("%d", s)
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%s), }", strings.Join(dims, ", "))
	// Pad so that magic + version + length + header is a multiple of 64,
	// with the closing newline required by the format.
	total := 6 + 2 + 2 + len(header) + 1
	if pad := 64 - total%64; pad < 64 {
		header += strings.Repeat(" ", pad)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(header))); err != nil {
		t.Fatal(err)
	}
	buf.WriteString(header)
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// atlasServer fakes the asset API: a catalog, one marker stack, one
// region mask served only under its fallback name, and one surface mesh.
type atlasServer struct {
	t    *testing.T
	hits map[string]int
	body map[string][]byte
}

func newAtlasServer(t *testing.T) (*atlasServer, *httptest.Server) {
	t.Helper()
	s := &atlasServer{t: t, hits: make(map[string]int), body: make(map[string][]byte)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits[r.URL.Path]++
		body, ok := s.body[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return s, srv
}

func stlBytes(t *testing.T) []byte {
	t.Helper()
	solid := &stl.Solid{
		Triangles: []stl.Triangle{{
			Vertices: [3]stl.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		}},
	}
	var buf bytes.Buffer
	if err := solid.WriteAll(&buf); err != nil {
		t.Fatalf("writing stl fixture: %v", err)
	}
	return buf.Bytes()
}

func TestCatalogDownloadedOnce(t *testing.T) {
	s, srv := newAtlasServer(t)
	s.body["/downloads/Lines/markers_catalog.json"] =
		[]byte(`[{"name":"Gad1b","stack":"Lines/Gad1b/Gad1b.npy"}]`)

	c := New(srv.URL, "v2.0.1", t.TempDir())
	for i := 0; i < 2; i++ {
		markers, err := c.Catalog(context.Background())
		if err != nil {
			t.Fatalf("Catalog: %v", err)
		}
		if len(markers) != 1 || markers[0].Name != "Gad1b" {
			t.Fatalf("markers = %+v", markers)
		}
	}
	if got := s.hits["/downloads/Lines/markers_catalog.json"]; got != 1 {
		t.Errorf("catalog fetched %d times, want 1", got)
	}
}

func TestLoadMarker(t *testing.T) {
	s, srv := newAtlasServer(t)
	data := make([]float32, 2*3*4)
	data[atlas.Space{2, 3, 4}.Voxels()-1] = 7
	s.body["/Lines/Gad1b/Gad1b.npy"] = npyBytes(t, []int{2, 3, 4}, data)

	c := New(srv.URL, "v2.0.1", t.TempDir())
	vol, err := c.LoadMarker(context.Background(), anatomy.Marker{Name: "Gad1b", Stack: "Lines/Gad1b/Gad1b.npy"})
	if err != nil {
		t.Fatalf("LoadMarker: %v", err)
	}
	if vol.Space() != (atlas.Space{2, 3, 4}) {
		t.Errorf("space = %v", vol.Space())
	}
	if got := vol.At(1, 2, 3, 0); got != 7 {
		t.Errorf("last voxel = %v, want 7", got)
	}
}

func TestLoadRegionWithMesh(t *testing.T) {
	s, srv := newAtlasServer(t)
	s.body["/Regions/v2.0.1/cerebellum/cerebellum.npy"] =
		npyBytes(t, []int{2, 2, 2}, make([]float32, 8))
	s.body["/Regions/v2.0.1/cerebellum/cerebellum.stl"] = stlBytes(t)

	c := New(srv.URL, "v2.0.1", t.TempDir())
	vol, mesh, err := c.LoadRegion(context.Background(), "cerebellum")
	if err != nil {
		t.Fatalf("LoadRegion: %v", err)
	}
	if vol == nil || vol.Space() != (atlas.Space{2, 2, 2}) {
		t.Fatalf("volume = %v", vol)
	}
	if len(mesh) != 1 {
		t.Fatalf("mesh triangle count = %d, want 1", len(mesh))
	}
	if mesh[0][1].X != 1 {
		t.Errorf("vertex = %v", mesh[0][1])
	}
}

// TestLoadRegionCorruptMesh serves a surface file that is not valid STL
// and checks the region degrades to mask-only while the broken cache
// entry is evicted, so a later load re-fetches instead of re-parsing it.
func TestLoadRegionCorruptMesh(t *testing.T) {
	s, srv := newAtlasServer(t)
	meshPath := "/Regions/v2.0.1/cerebellum/cerebellum.stl"
	s.body["/Regions/v2.0.1/cerebellum/cerebellum.npy"] =
		npyBytes(t, []int{2, 2, 2}, make([]float32, 8))
	s.body[meshPath] = []byte("garbage")

	c := New(srv.URL, "v2.0.1", t.TempDir())
	for i := 0; i < 2; i++ {
		vol, mesh, err := c.LoadRegion(context.Background(), "cerebellum")
		if err != nil {
			t.Fatalf("LoadRegion: %v", err)
		}
		if vol == nil {
			t.Fatal("volume missing")
		}
		if mesh != nil {
			t.Fatalf("mesh = %v, want none", mesh)
		}
	}
	if got := s.hits[meshPath]; got != 2 {
		t.Errorf("corrupt mesh fetched %d times, want 2 (cache evicted)", got)
	}
}

// TestLoadRegionFallbackName serves the mask only under the name without
// the parenthetical and checks the retry picks it up.
func TestLoadRegionFallbackName(t *testing.T) {
	s, srv := newAtlasServer(t)
	s.body["/Regions/v2.0.1/pituitary/pituitary.npy"] =
		npyBytes(t, []int{2, 2, 2}, make([]float32, 8))

	c := New(srv.URL, "v2.0.1", t.TempDir())
	vol, mesh, err := c.LoadRegion(context.Background(), "pituitary (hypophysis)")
	if err != nil {
		t.Fatalf("LoadRegion: %v", err)
	}
	if vol == nil {
		t.Fatal("volume missing")
	}
	if mesh != nil {
		t.Errorf("unexpected mesh: %v", mesh)
	}
	if s.hits["/Regions/v2.0.1/pituitary_(hypophysis)/pituitary_(hypophysis).npy"] != 1 {
		t.Error("canonical name never tried")
	}
}

func TestLoadRegionUnavailable(t *testing.T) {
	_, srv := newAtlasServer(t)

	c := New(srv.URL, "v2.0.1", t.TempDir())
	_, _, err := c.LoadRegion(context.Background(), "cerebellum")
	var unavailable *session.AssetUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v, want AssetUnavailableError", err)
	}
	if unavailable.Kind != "region" || unavailable.Name != "cerebellum" {
		t.Errorf("error detail = %+v", unavailable)
	}
}

// TestLoadRegionCached checks the second load never touches the network.
func TestLoadRegionCached(t *testing.T) {
	s, srv := newAtlasServer(t)
	path := "/Regions/v2.0.1/cerebellum/cerebellum.npy"
	s.body[path] = npyBytes(t, []int{2, 2, 2}, make([]float32, 8))

	c := New(srv.URL, "v2.0.1", t.TempDir())
	for i := 0; i < 2; i++ {
		if _, _, err := c.LoadRegion(context.Background(), "cerebellum"); err != nil {
			t.Fatalf("LoadRegion #%d: %v", i+1, err)
		}
	}
	if got := s.hits[path]; got != 1 {
		t.Errorf("mask fetched %d times, want 1", got)
	}
}

func TestReadVolumeRejectsBadShape(t *testing.T) {
	s, srv := newAtlasServer(t)
	s.body["/Lines/flat/flat.npy"] = npyBytes(t, []int{4, 3}, make([]float32, 12))

	c := New(srv.URL, "v2.0.1", t.TempDir())
	_, err := c.LoadMarker(context.Background(), anatomy.Marker{Name: "flat", Stack: "Lines/flat/flat.npy"})
	var unavailable *session.AssetUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v, want AssetUnavailableError", err)
	}
}
