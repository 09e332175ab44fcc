package atlas

import "gonum.org/v1/gonum/spatial/r3"

// Triangle is one face of a region surface mesh. Vertices are in
// physical-space coordinates, independent of any volume's resolution.
type Triangle [3]r3.Vec
