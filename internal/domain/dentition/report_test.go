package dentition

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseReport_MissingAndEmptyAreEquivalent(t *testing.T) {
	missing := ParseReport(map[string][]string{"5": {"Cavity"}})
	empty := ParseReport(map[string][]string{"5": {"Cavity"}, "7": {}})

	if missing.HasAnomaly(7) || empty.HasAnomaly(7) {
		t.Fatal("tooth 7 should have no anomalies in either report")
	}
	if missing.Anomalies(7) != nil || empty.Anomalies(7) != nil {
		t.Error("expected nil anomalies for tooth 7")
	}
	if !reflect.DeepEqual(missing.Affected(), empty.Affected()) {
		t.Errorf("affected teeth differ: %v vs %v", missing.Affected(), empty.Affected())
	}
}

func TestParseReport_IgnoresInvalidKeys(t *testing.T) {
	r := ParseReport(map[string][]string{
		"99":     {"Cavity"},
		"0":      {"Crack"},
		"tooth3": {"Caries"},
		"abc":    {"X"},
		"12":     {"Impacted"},
	})
	if got := r.Affected(); !reflect.DeepEqual(got, []ToothID{12}) {
		t.Errorf("expected only tooth 12 affected, got %v", got)
	}
	if r.Total() != 1 {
		t.Errorf("expected total 1, got %d", r.Total())
	}
}

func TestParseReport_OnlyCanonicalKeys(t *testing.T) {
	r := ParseReport(map[string][]string{
		"05":  {"Cavity"},
		"+7":  {"Crack"},
		" 9 ": {"Wear"},
		" 5":  {"Caries"},
	})
	if !r.Empty() {
		t.Errorf("expected no affected teeth, got %v", r.Affected())
	}
}

func TestParseReport_PaddedKeyDoesNotShadowTooth(t *testing.T) {
	for i := 0; i < 50; i++ {
		r := ParseReport(map[string][]string{"5": {"Cavity"}, "05": {"Other"}})
		if got := r.Anomalies(5); !reflect.DeepEqual(got, []string{"Cavity"}) {
			t.Fatalf("run %d: expected [Cavity] for tooth 5, got %v", i, got)
		}
	}

	var decoded Report
	if err := json.Unmarshal([]byte(`{"05":["Other"],"5":["Cavity"],"+5":["Crack"]}`), &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := decoded.Anomalies(5); !reflect.DeepEqual(got, []string{"Cavity"}) {
		t.Errorf("expected [Cavity] for tooth 5, got %v", got)
	}
}

func TestReport_AnomaliesPreserveOrder(t *testing.T) {
	r := ParseReport(map[string][]string{"5": {"Cavity", "Crack"}})
	if got := r.Anomalies(5); !reflect.DeepEqual(got, []string{"Cavity", "Crack"}) {
		t.Errorf("unexpected anomalies: %v", got)
	}
}

func TestReport_AnomaliesReturnsCopy(t *testing.T) {
	src := []string{"Cavity"}
	r := NewReport(map[ToothID][]string{5: src})
	src[0] = "mutated"
	got := r.Anomalies(5)
	got[0] = "also mutated"
	if again := r.Anomalies(5); again[0] != "Cavity" {
		t.Errorf("report was mutated: %v", again)
	}
}

func TestReport_ZeroValue(t *testing.T) {
	var r Report
	if !r.Empty() || r.HasAnomaly(1) || r.Total() != 0 || len(r.Affected()) != 0 {
		t.Error("zero report should be empty")
	}
}

func TestDecodeReport(t *testing.T) {
	data := []byte(`{"1": [], "5": ["Cavity", "Crack"], "9": "not a list", "99": ["Ghost"], "x": ["Y"], "14": [1, 2]}`)
	r, err := DecodeReport(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.Affected(); !reflect.DeepEqual(got, []ToothID{5}) {
		t.Errorf("expected only tooth 5 affected, got %v", got)
	}
}

func TestDecodeReport_EmptyObject(t *testing.T) {
	r, err := DecodeReport([]byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Empty() {
		t.Error("expected empty report")
	}
}

func TestDecodeReport_Null(t *testing.T) {
	r, err := DecodeReport([]byte(`null`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Empty() {
		t.Error("expected empty report")
	}
}

func TestDecodeReport_NotAnObject(t *testing.T) {
	if _, err := DecodeReport([]byte(`["Cavity"]`)); err == nil {
		t.Error("expected error for non-object payload")
	}
}

func TestReport_MarshalJSON(t *testing.T) {
	r := ParseReport(map[string][]string{"5": {"Cavity"}})
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string][]string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != ToothCount {
		t.Errorf("expected %d keys, got %d", ToothCount, len(out))
	}
	if out["1"] == nil || len(out["1"]) != 0 {
		t.Errorf("expected empty list for tooth 1, got %v", out["1"])
	}
	if !reflect.DeepEqual(out["5"], []string{"Cavity"}) {
		t.Errorf("unexpected tooth 5: %v", out["5"])
	}
}
