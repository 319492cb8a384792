package radiograph

import (
	"net/url"

	"github.com/orthovision/portal/internal/domain/dentition"
	"github.com/orthovision/portal/internal/platform/session"
)

// overlayState is the overlay for one page view, bound to the selection the
// session remembers.
type overlayState struct {
	*dentition.Overlay
	dirty bool
}

// restoreOverlay builds the overlay for rec starting from the selection in
// sel. A selection remembered for another report is reset, as any report
// change resets it. Every change is written back to sel.
func restoreOverlay(rec *Radiograph, sel *session.OverlaySelection) *overlayState {
	st := &overlayState{}
	st.Overlay = dentition.NewOverlay(rec.Report,
		dentition.WithSelected(dentition.ToothID(sel.Tooth)),
		dentition.WithOnChange(func(s dentition.Selection) {
			id, _ := s.Tooth()
			*sel = session.OverlaySelection{ReportID: rec.ID, Tooth: int(id)}
			st.dirty = true
		}),
	)
	if sel.ReportID == rec.ID {
		return st
	}
	// SetReport reports the reset through onChange only when a tooth was
	// selected. Bind an empty selection to this report either way.
	st.SetReport(rec.Report)
	*sel = session.OverlaySelection{ReportID: rec.ID}
	st.dirty = true
	return st
}

// apply handles the overlay's links: ?tooth=N selects a tooth and ?close
// dismisses the detail panel. Anything else leaves the selection alone.
func (st *overlayState) apply(q url.Values) {
	if q.Has("close") {
		st.Dismiss()
		return
	}
	if id, ok := dentition.ParseToothID(q.Get("tooth")); ok {
		st.Select(id)
	}
}
