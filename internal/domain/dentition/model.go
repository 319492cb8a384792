// Package dentition holds the fixed tooth diagram geometry and the report
// overlay that marks teeth with detected anomalies.
package dentition

import (
	"strconv"
)

// ToothCount is the number of regions on the reference diagram.
const ToothCount = 32

// Reference diagram size in pixels. Boxes are fractions of these.
const (
	ReferenceWidth  = 1200
	ReferenceHeight = 600
)

// ToothID identifies a tooth by its number, 1 through 32.
type ToothID int

// Valid reports whether id names one of the 32 diagram regions.
func (id ToothID) Valid() bool {
	return id >= 1 && id <= ToothCount
}

func (id ToothID) String() string {
	return strconv.Itoa(int(id))
}

// Upper reports whether the tooth sits on the upper arch (1-16).
func (id ToothID) Upper() bool {
	return id >= 1 && id <= ToothCount/2
}

// ParseToothID parses a report key or query value such as "5". Only the
// plain decimal form of a number in 1..32 is accepted: "05", "+5" and " 5"
// yield false.
func ParseToothID(s string) (ToothID, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || strconv.Itoa(n) != s {
		return 0, false
	}
	id := ToothID(n)
	if !id.Valid() {
		return 0, false
	}
	return id, true
}

// Box is a rectangle expressed as fractions of the reference diagram.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the right edge as a fraction of the diagram width.
func (b Box) Right() float64 { return b.Left + b.Width }

// Bottom returns the bottom edge as a fraction of the diagram height.
func (b Box) Bottom() float64 { return b.Top + b.Height }

// Scale converts the box to pixel coordinates for a w x h canvas.
func (b Box) Scale(w, h int) (x0, y0, x1, y1 int) {
	fw, fh := float64(w), float64(h)
	return int(b.Left * fw), int(b.Top * fh), int(b.Right() * fw), int(b.Bottom() * fh)
}

// Region is one tooth on the reference diagram.
type Region struct {
	ID    ToothID `json:"id"`
	Label string  `json:"label"`
	Box   Box     `json:"box"`
}

// regions is ordered so that regions[i].ID == i+1. Upper teeth run left to
// right across the top of the diagram, lower teeth left to right below them.
var regions = [ToothCount]Region{
	{1, "Upper Tooth 1", Box{Left: 0.05, Top: 0.315, Width: 0.045, Height: 0.2}},
	{2, "Upper Tooth 2", Box{Left: 0.108, Top: 0.33, Width: 0.049, Height: 0.2}},
	{3, "Upper Tooth 3", Box{Left: 0.175, Top: 0.33, Width: 0.055, Height: 0.21}},
	{4, "Upper Tooth 4", Box{Left: 0.24, Top: 0.34, Width: 0.045, Height: 0.2}},
	{5, "Upper Tooth 5", Box{Left: 0.29, Top: 0.34, Width: 0.045, Height: 0.2}},
	{6, "Upper Tooth 6", Box{Left: 0.341, Top: 0.33, Width: 0.042, Height: 0.22}},
	{7, "Upper Tooth 7", Box{Left: 0.395, Top: 0.33, Width: 0.036, Height: 0.21}},
	{8, "Upper Tooth 8", Box{Left: 0.445, Top: 0.34, Width: 0.045, Height: 0.21}},
	{9, "Upper Tooth 9", Box{Left: 0.5, Top: 0.33, Width: 0.041, Height: 0.22}},
	{10, "Upper Tooth 10", Box{Left: 0.55, Top: 0.33, Width: 0.045, Height: 0.2}},
	{11, "Upper Tooth 11", Box{Left: 0.605, Top: 0.31, Width: 0.045, Height: 0.23}},
	{12, "Upper Tooth 12", Box{Left: 0.66, Top: 0.33, Width: 0.038, Height: 0.2}},
	{13, "Upper Tooth 13", Box{Left: 0.708, Top: 0.31, Width: 0.036, Height: 0.22}},
	{14, "Upper Tooth 14", Box{Left: 0.757, Top: 0.315, Width: 0.059, Height: 0.21}},
	{15, "Upper Tooth 15", Box{Left: 0.831, Top: 0.30, Width: 0.059, Height: 0.21}},
	{16, "Upper Tooth 16", Box{Left: 0.896, Top: 0.30, Width: 0.047, Height: 0.2}},
	{17, "Lower Tooth 17", Box{Left: 0.05, Top: 0.63, Width: 0.0495, Height: 0.2}},
	{18, "Lower Tooth 18", Box{Left: 0.108, Top: 0.63, Width: 0.055, Height: 0.2}},
	{19, "Lower Tooth 19", Box{Left: 0.175, Top: 0.615, Width: 0.058, Height: 0.2}},
	{20, "Lower Tooth 20", Box{Left: 0.24, Top: 0.62, Width: 0.045, Height: 0.2}},
	{21, "Lower Tooth 21", Box{Left: 0.293, Top: 0.62, Width: 0.04, Height: 0.2}},
	{22, "Lower Tooth 22", Box{Left: 0.349, Top: 0.605, Width: 0.042, Height: 0.22}},
	{23, "Lower Tooth 23", Box{Left: 0.405, Top: 0.605, Width: 0.036, Height: 0.21}},
	{24, "Lower Tooth 24", Box{Left: 0.45, Top: 0.605, Width: 0.045, Height: 0.21}},
	{25, "Lower Tooth 25", Box{Left: 0.5, Top: 0.59, Width: 0.038, Height: 0.22}},
	{26, "Lower Tooth 26", Box{Left: 0.55, Top: 0.59, Width: 0.04, Height: 0.21}},
	{27, "Lower Tooth 27", Box{Left: 0.596, Top: 0.595, Width: 0.045, Height: 0.23}},
	{28, "Lower Tooth 28", Box{Left: 0.657, Top: 0.595, Width: 0.038, Height: 0.21}},
	{29, "Lower Tooth 29", Box{Left: 0.708, Top: 0.595, Width: 0.038, Height: 0.22}},
	{30, "Lower Tooth 30", Box{Left: 0.757, Top: 0.595, Width: 0.058, Height: 0.21}},
	{31, "Lower Tooth 31", Box{Left: 0.827, Top: 0.595, Width: 0.06, Height: 0.21}},
	{32, "Lower Tooth 32", Box{Left: 0.894, Top: 0.6, Width: 0.054, Height: 0.2}},
}

// Regions returns a copy of the geometry table in tooth order.
func Regions() [ToothCount]Region {
	return regions
}

// RegionAt returns the region at zero-based position pos.
func RegionAt(pos int) (Region, bool) {
	if pos < 0 || pos >= ToothCount {
		return Region{}, false
	}
	return regions[pos], true
}

// RegionFor returns the region for tooth id.
func RegionFor(id ToothID) (Region, bool) {
	if !id.Valid() {
		return Region{}, false
	}
	return regions[int(id)-1], true
}
