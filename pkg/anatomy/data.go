package anatomy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
)

// regionData is the atlas region hierarchy shipped with the viewer.
//
//go:embed regions.txt
var regionData []byte

var (
	defaultOnce sync.Once
	defaultTree *Tree
)

// Default returns the built-in region hierarchy. The embedded data is
// parsed once; a parse failure is a build defect and panics.
func Default() *Tree {
	defaultOnce.Do(func() {
		roots, err := ParseHierarchy(regionData)
		if err != nil {
			panic(fmt.Sprintf("anatomy: embedded hierarchy: %v", err))
		}
		defaultTree, err = NewTree(roots)
		if err != nil {
			panic(fmt.Sprintf("anatomy: embedded hierarchy: %v", err))
		}
	})
	return defaultTree
}

// Marker is one entry of the marker line catalog.
type Marker struct {
	Name  string `json:"name"`
	Stack string `json:"stack"`
}

// ParseMarkerCatalog decodes the catalog JSON served by the atlas API, a
// flat array of marker line entries.
func ParseMarkerCatalog(data []byte) ([]Marker, error) {
	var markers []Marker
	if err := json.Unmarshal(data, &markers); err != nil {
		return nil, fmt.Errorf("anatomy: parsing marker catalog: %w", err)
	}
	return markers, nil
}
