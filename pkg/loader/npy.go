package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio"

	"github.com/thladnik/mapzebrain-viewer/pkg/atlas"
)

// readVolume decodes a NumPy array file into an atlas volume. Shapes
// (x, y, z) and (x, y, z, channels) are accepted; the array must be in C
// order, matching the volume's memory layout exactly.
func readVolume(path string) (*atlas.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	nr, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", filepath.Base(path), err)
	}
	if nr.Header.Descr.Fortran {
		return nil, fmt.Errorf("loader: %s: Fortran-ordered arrays are not supported", filepath.Base(path))
	}

	shape := nr.Header.Descr.Shape
	channels := 1
	switch len(shape) {
	case 3:
	case 4:
		channels = shape[3]
	default:
		return nil, fmt.Errorf("loader: %s: want 3 or 4 dimensions, got shape %v", filepath.Base(path), shape)
	}

	data, err := readVolumeData(nr)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", filepath.Base(path), err)
	}

	space := atlas.Space{shape[0], shape[1], shape[2]}
	vol, err := atlas.NewVolume(space, channels, data)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", filepath.Base(path), err)
	}
	return vol, nil
}

// readVolumeData reads the array payload as float32. Masks are served as
// uint8, marker stacks as uint8, uint16 or float.
func readVolumeData(nr *npyio.Reader) ([]float32, error) {
	dtype := nr.Header.Descr.Type
	switch {
	case strings.Contains(dtype, "f4"):
		var data []float32
		if err := nr.Read(&data); err != nil {
			return nil, err
		}
		return data, nil
	case strings.Contains(dtype, "f8"):
		var raw []float64
		if err := nr.Read(&raw); err != nil {
			return nil, err
		}
		return toFloat32(raw), nil
	case strings.Contains(dtype, "u1"):
		var raw []uint8
		if err := nr.Read(&raw); err != nil {
			return nil, err
		}
		return toFloat32(raw), nil
	case strings.Contains(dtype, "u2"):
		var raw []uint16
		if err := nr.Read(&raw); err != nil {
			return nil, err
		}
		return toFloat32(raw), nil
	}
	return nil, fmt.Errorf("unsupported dtype %q", dtype)
}

func toFloat32[T float64 | uint8 | uint16](raw []T) []float32 {
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out
}
