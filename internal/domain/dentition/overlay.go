package dentition

// NoAnomaliesMessage is shown in the detail panel for a tooth without findings.
const NoAnomaliesMessage = "No anomalies detected"

// Selection is either empty or exactly one tooth. The zero value is empty.
type Selection struct {
	tooth ToothID
}

// NoSelection returns the empty selection.
func NoSelection() Selection { return Selection{} }

// Selected returns a selection of id, or the empty selection if id is not a
// diagram tooth.
func Selected(id ToothID) Selection {
	if !id.Valid() {
		return Selection{}
	}
	return Selection{tooth: id}
}

// Tooth returns the selected tooth and true, or false when nothing is selected.
func (s Selection) Tooth() (ToothID, bool) {
	return s.tooth, s.tooth != 0
}

// IsNone reports whether nothing is selected.
func (s Selection) IsNone() bool { return s.tooth == 0 }

// Option configures an Overlay.
type Option func(*Overlay)

// WithSelected sets the initial selection. It does not fire the change
// callback. Invalid ids leave the overlay unselected.
func WithSelected(id ToothID) Option {
	return func(o *Overlay) {
		o.selected = Selected(id)
	}
}

// WithOnChange registers a callback invoked after every selection change.
func WithOnChange(fn func(Selection)) Option {
	return func(o *Overlay) {
		o.onChange = fn
	}
}

// Overlay combines the geometry table with one report and tracks which tooth,
// if any, the user has opened. It is not safe for concurrent use; each render
// owns its own Overlay.
type Overlay struct {
	report   Report
	selected Selection
	onChange func(Selection)
}

// NewOverlay returns an overlay over report with nothing selected unless
// WithSelected says otherwise.
func NewOverlay(report Report, opts ...Option) *Overlay {
	o := &Overlay{report: report}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Report returns the report the overlay is showing.
func (o *Overlay) Report() Report { return o.report }

// Selection returns the current selection.
func (o *Overlay) Selection() Selection { return o.selected }

// Select makes id the only selected tooth. Selecting the tooth that is
// already selected changes nothing; ids outside 1..32 are ignored.
func (o *Overlay) Select(id ToothID) {
	if !id.Valid() || o.selected.tooth == id {
		return
	}
	o.set(Selected(id))
}

// Dismiss closes the detail panel. The report is unchanged.
func (o *Overlay) Dismiss() {
	if o.selected.IsNone() {
		return
	}
	o.set(NoSelection())
}

// SetReport swaps in a new report and clears the selection.
func (o *Overlay) SetReport(r Report) {
	o.report = r
	if !o.selected.IsNone() {
		o.set(NoSelection())
	}
}

func (o *Overlay) set(s Selection) {
	o.selected = s
	if o.onChange != nil {
		o.onChange(s)
	}
}

// RegionView is one clickable region in a rendered overlay.
type RegionView struct {
	Region
	HasAnomaly   bool
	AnomalyCount int
	Selected     bool
}

// Detail is the panel shown for the selected tooth. Anomalies keeps the
// report order; Message is set only when the list is empty.
type Detail struct {
	Tooth     ToothID
	Label     string
	Anomalies []string
	Message   string
}

// View is everything needed to draw the overlay once.
type View struct {
	Regions [ToothCount]RegionView
	Detail  *Detail
}

// View classifies every region against the current report. It is recomputed
// on every call.
func (o *Overlay) View() View {
	var v View
	sel, hasSel := o.selected.Tooth()
	for i, region := range regions {
		id := ToothID(i + 1)
		n := len(o.report.byTooth[id])
		v.Regions[i] = RegionView{
			Region:       region,
			HasAnomaly:   n > 0,
			AnomalyCount: n,
			Selected:     hasSel && sel == id,
		}
	}
	if hasSel {
		region := regions[int(sel)-1]
		d := &Detail{
			Tooth:     sel,
			Label:     region.Label,
			Anomalies: o.report.Anomalies(sel),
		}
		if len(d.Anomalies) == 0 {
			d.Message = NoAnomaliesMessage
		}
		v.Detail = d
	}
	return v
}

// Flagged returns the ids of regions marked as having anomalies.
func (v View) Flagged() []ToothID {
	var ids []ToothID
	for _, r := range v.Regions {
		if r.HasAnomaly {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
