// Package loader retrieves atlas assets from the mapzebrain API and
// caches them on disk. Every asset is downloaded at most once; later
// loads are served from the cache directory, so the viewer works offline
// once its assets are present.
//
// Marker stacks and region masks are NumPy volumes, region surfaces are
// binary STL. A failed region download is retried once under the
// region's fallback name (the part before the parenthetical) before
// giving up.
package loader

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hschendel/stl"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/thladnik/mapzebrain-viewer/pkg/anatomy"
	"github.com/thladnik/mapzebrain-viewer/pkg/atlas"
	"github.com/thladnik/mapzebrain-viewer/pkg/session"
)

const catalogFile = "markers_catalog.json"

// Client fetches and caches atlas assets.
type Client struct {
	baseURL       string
	regionVersion string
	cacheDir      string
	http          *http.Client
}

// New creates a loader over the given API endpoint and cache directory.
func New(baseURL, regionVersion, cacheDir string) *Client {
	return &Client{
		baseURL:       baseURL,
		regionVersion: regionVersion,
		cacheDir:      cacheDir,
		http:          &http.Client{},
	}
}

// markerDir returns the marker cache directory, creating it on demand.
func (c *Client) markerDir() (string, error) {
	return c.ensureDir("markers")
}

// regionDir returns the region cache directory, creating it on demand.
func (c *Client) regionDir() (string, error) {
	return c.ensureDir("regions")
}

func (c *Client) ensureDir(sub string) (string, error) {
	dir := filepath.Join(c.cacheDir, sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("loader: creating cache dir: %w", err)
	}
	return dir, nil
}

// Catalog returns the marker line catalog, downloading it on first use.
func (c *Client) Catalog(ctx context.Context) ([]anatomy.Marker, error) {
	dir, err := c.markerDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, catalogFile)
	if err := c.fetch(ctx, c.baseURL+"/downloads/Lines/"+catalogFile, path); err != nil {
		return nil, &session.AssetUnavailableError{Kind: "catalog", Name: catalogFile, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &session.AssetUnavailableError{Kind: "catalog", Name: catalogFile, Err: err}
	}
	return anatomy.ParseMarkerCatalog(data)
}

// LoadMarker fetches a marker line's stack and decodes it into a volume.
// The stack path comes from the catalog entry and is resolved against
// the API base URL.
func (c *Client) LoadMarker(ctx context.Context, m anatomy.Marker) (*atlas.Volume, error) {
	dir, err := c.markerDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, anatomy.FileName(m.Name)+".npy")
	if err := c.fetch(ctx, c.baseURL+"/"+m.Stack, path); err != nil {
		return nil, &session.AssetUnavailableError{Kind: "marker", Name: m.Name, Err: err}
	}
	vol, err := readVolume(path)
	if err != nil {
		return nil, &session.AssetUnavailableError{Kind: "marker", Name: m.Name, Err: err}
	}
	return vol, nil
}

// LoadRegion fetches a region's mask volume and, when available, its
// surface mesh. A missing mesh is not an error; a missing mask is, after
// the fallback-name retry also fails.
func (c *Client) LoadRegion(ctx context.Context, name string) (*atlas.Volume, []atlas.Triangle, error) {
	dir, err := c.regionDir()
	if err != nil {
		return nil, nil, err
	}
	fileName := anatomy.FileName(name)

	maskPath := filepath.Join(dir, fileName+".npy")
	if err := c.fetchRegionAsset(ctx, fileName, ".npy", maskPath); err != nil {
		return nil, nil, &session.AssetUnavailableError{Kind: "region", Name: name, Err: err}
	}
	vol, err := readVolume(maskPath)
	if err != nil {
		return nil, nil, &session.AssetUnavailableError{Kind: "region", Name: name, Err: err}
	}

	meshPath := filepath.Join(dir, fileName+".stl")
	if err := c.fetchRegionAsset(ctx, fileName, ".stl", meshPath); err != nil {
		return vol, nil, nil
	}
	mesh, err := readMesh(meshPath)
	if err != nil {
		// A region without a surface is fine, a downloaded file that
		// fails to parse is not: report it and evict the cached copy so
		// a later load can re-fetch.
		log.Printf("loader: region %q surface mesh unusable, continuing with mask only: %v", name, err)
		os.Remove(meshPath)
		return vol, nil, nil
	}
	return vol, mesh, nil
}

// fetchRegionAsset downloads one region file, retrying under the
// fallback name when the canonical name is not served. The file is
// cached under the canonical name either way.
func (c *Client) fetchRegionAsset(ctx context.Context, fileName, ext, dest string) error {
	url := fmt.Sprintf("%s/Regions/%s/%s/%s%s", c.baseURL, c.regionVersion, fileName, fileName, ext)
	err := c.fetch(ctx, url, dest)
	if err == nil {
		return nil
	}
	alt := anatomy.FallbackName(fileName)
	if alt == "" {
		return err
	}
	altURL := fmt.Sprintf("%s/Regions/%s/%s/%s%s", c.baseURL, c.regionVersion, alt, alt, ext)
	if altErr := c.fetch(ctx, altURL, dest); altErr != nil {
		return fmt.Errorf("%w (fallback %q: %v)", err, alt, altErr)
	}
	return nil
}

// fetch downloads url into dest unless dest already exists. The download
// goes through a temp file and a rename, so a cached file is always
// complete.
func (c *Client) fetch(ctx context.Context, url, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// readMesh decodes a binary or ASCII STL file into a triangle list.
func readMesh(path string) ([]atlas.Triangle, error) {
	solid, err := stl.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", filepath.Base(path), err)
	}
	tris := make([]atlas.Triangle, len(solid.Triangles))
	for i, t := range solid.Triangles {
		for j, v := range t.Vertices {
			tris[i][j] = r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
		}
	}
	return tris, nil
}
