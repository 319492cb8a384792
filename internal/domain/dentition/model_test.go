package dentition

import (
	"fmt"
	"testing"
)

func TestRegions_PositionMapsToToothNumber(t *testing.T) {
	table := Regions()
	if len(table) != ToothCount {
		t.Fatalf("expected %d regions, got %d", ToothCount, len(table))
	}
	for i, r := range table {
		if r.ID != ToothID(i+1) {
			t.Errorf("position %d: expected tooth %d, got %d", i, i+1, r.ID)
		}
	}
}

func TestRegions_Labels(t *testing.T) {
	for i, r := range Regions() {
		arch := "Upper"
		if i >= 16 {
			arch = "Lower"
		}
		want := fmt.Sprintf("%s Tooth %d", arch, i+1)
		if r.Label != want {
			t.Errorf("tooth %d: expected label %q, got %q", i+1, want, r.Label)
		}
	}
}

func TestRegions_BoxesNormalized(t *testing.T) {
	for _, r := range Regions() {
		b := r.Box
		if b.Left < 0 || b.Top < 0 || b.Width <= 0 || b.Height <= 0 {
			t.Errorf("tooth %d: invalid box %+v", r.ID, b)
		}
		if b.Right() > 1 || b.Bottom() > 1 {
			t.Errorf("tooth %d: box %+v extends past the diagram", r.ID, b)
		}
	}
}

func TestRegions_ReturnsCopy(t *testing.T) {
	table := Regions()
	table[0].Label = "changed"
	table[0].ID = 99
	again := Regions()
	if again[0].Label != "Upper Tooth 1" || again[0].ID != 1 {
		t.Errorf("geometry table was mutated through returned copy: %+v", again[0])
	}
}

func TestRegionAt(t *testing.T) {
	r, ok := RegionAt(4)
	if !ok || r.ID != 5 {
		t.Errorf("RegionAt(4) = %+v, %v; want tooth 5", r, ok)
	}
	for _, pos := range []int{-1, 32, 100} {
		if _, ok := RegionAt(pos); ok {
			t.Errorf("RegionAt(%d) should not be found", pos)
		}
	}
}

func TestRegionFor(t *testing.T) {
	r, ok := RegionFor(32)
	if !ok || r.Label != "Lower Tooth 32" {
		t.Errorf("RegionFor(32) = %+v, %v", r, ok)
	}
	for _, id := range []ToothID{0, -3, 33, 99} {
		if _, ok := RegionFor(id); ok {
			t.Errorf("RegionFor(%d) should not be found", id)
		}
	}
}

func TestParseToothID(t *testing.T) {
	tests := []struct {
		in   string
		want ToothID
		ok   bool
	}{
		{"1", 1, true},
		{"32", 32, true},
		{" 7 ", 0, false},
		{"07", 0, false},
		{"+7", 0, false},
		{"-0", 0, false},
		{"0", 0, false},
		{"33", 0, false},
		{"99", 0, false},
		{"tooth5", 0, false},
		{"", 0, false},
		{"5.5", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseToothID(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseToothID(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestToothID_Upper(t *testing.T) {
	if !ToothID(16).Upper() {
		t.Error("expected tooth 16 on the upper arch")
	}
	if ToothID(17).Upper() {
		t.Error("expected tooth 17 on the lower arch")
	}
}

func TestBox_Scale(t *testing.T) {
	b := Box{Left: 0.5, Top: 0.25, Width: 0.1, Height: 0.5}
	x0, y0, x1, y1 := b.Scale(1000, 400)
	if x0 != 500 || y0 != 100 || x1 != 600 || y1 != 300 {
		t.Errorf("Scale = (%d,%d,%d,%d)", x0, y0, x1, y1)
	}
}
