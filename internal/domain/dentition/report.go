package dentition

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Report maps teeth to the anomalies found on them. A tooth without an entry
// and a tooth with an empty entry are the same thing: only non-empty lists are
// kept, so both read back as "no anomalies". Keys outside 1..32 are dropped.
//
// The zero value is an empty report. A Report is never mutated after
// construction.
type Report struct {
	byTooth map[ToothID][]string
}

// NewReport builds a report from anomalies keyed by tooth.
func NewReport(anomalies map[ToothID][]string) Report {
	r := Report{byTooth: make(map[ToothID][]string, len(anomalies))}
	for id, list := range anomalies {
		r.add(id, list)
	}
	return r
}

// ParseReport builds a report from the wire shape, where teeth are keyed by
// their number as a string. Unparseable keys are ignored.
func ParseReport(raw map[string][]string) Report {
	r := Report{byTooth: make(map[ToothID][]string, len(raw))}
	for key, list := range raw {
		id, ok := ParseToothID(key)
		if !ok {
			continue
		}
		r.add(id, list)
	}
	return r
}

// DecodeReport parses a JSON object of tooth number to anomaly list. Entries
// whose value is not a list of strings count as empty. Only a payload that is
// not a JSON object at all returns an error.
func DecodeReport(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, err
	}
	return r, nil
}

func (r *Report) add(id ToothID, list []string) {
	if !id.Valid() || len(list) == 0 {
		return
	}
	cp := make([]string, len(list))
	copy(cp, list)
	r.byTooth[id] = cp
}

// Anomalies returns the ordered anomalies for a tooth, or nil when there are
// none. The returned slice is a copy.
func (r Report) Anomalies(id ToothID) []string {
	list, ok := r.byTooth[id]
	if !ok {
		return nil
	}
	cp := make([]string, len(list))
	copy(cp, list)
	return cp
}

// HasAnomaly reports whether the tooth has at least one anomaly.
func (r Report) HasAnomaly(id ToothID) bool {
	return len(r.byTooth[id]) > 0
}

// Affected returns the teeth with anomalies in ascending order.
func (r Report) Affected() []ToothID {
	ids := make([]ToothID, 0, len(r.byTooth))
	for id := range r.byTooth {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Total returns the number of anomaly entries across all teeth.
func (r Report) Total() int {
	n := 0
	for _, list := range r.byTooth {
		n += len(list)
	}
	return n
}

// Empty reports whether no tooth has an anomaly.
func (r Report) Empty() bool {
	return len(r.byTooth) == 0
}

// MarshalJSON writes the wire shape with every tooth present, empty teeth as
// empty lists, matching what the analysis service produces.
func (r Report) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, ToothCount)
	for i := 1; i <= ToothCount; i++ {
		id := ToothID(i)
		list := r.byTooth[id]
		if list == nil {
			list = []string{}
		}
		out[strconv.Itoa(i)] = list
	}
	return json.Marshal(out)
}

func (r *Report) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	r.byTooth = make(map[ToothID][]string, len(raw))
	for key, val := range raw {
		id, ok := ParseToothID(key)
		if !ok {
			continue
		}
		var list []string
		if err := json.Unmarshal(val, &list); err != nil {
			continue
		}
		r.add(id, list)
	}
	return nil
}
