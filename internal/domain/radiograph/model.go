package radiograph

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/orthovision/portal/internal/domain/dentition"
	"github.com/orthovision/portal/internal/platform/apiclient"
)

// Radiograph is one analysed X-ray: the annotated image and the per-tooth
// report produced for it.
type Radiograph struct {
	ID        string
	PatientID string
	ImageURL  string
	CreatedAt time.Time
	Report    dentition.Report
	RawReport json.RawMessage
}

// Findings returns the number of anomalies across all teeth.
func (r *Radiograph) Findings() int { return r.Report.Total() }

// Affected lists the teeth with at least one anomaly, in tooth order.
func (r *Radiograph) Affected() []dentition.ToothID { return r.Report.Affected() }

// Upload is a radiograph file submitted for analysis.
type Upload struct {
	PatientID   string
	FileName    string
	ContentType string
	Data        []byte
	UploadedBy  string
}

// createdLayouts are the timestamp shapes the API has used for created_at.
var createdLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseCreated(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// fromAPI converts an API record. A report that does not decode is treated
// as a report without findings.
func fromAPI(a apiclient.Radiograph) *Radiograph {
	r := &Radiograph{
		ID:        a.ID.String(),
		PatientID: a.PatientID.String(),
		ImageURL:  a.URL,
		CreatedAt: parseCreated(a.CreatedAt),
		RawReport: a.Report,
	}
	if len(a.Report) > 0 {
		if rep, err := dentition.DecodeReport(a.Report); err == nil {
			r.Report = rep
		}
	}
	return r
}

func (r *Radiograph) toAPI() apiclient.Radiograph {
	out := apiclient.Radiograph{
		ID:        apiclient.ID(r.ID),
		PatientID: apiclient.ID(r.PatientID),
		URL:       r.ImageURL,
		Report:    r.RawReport,
	}
	if !r.CreatedAt.IsZero() {
		out.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}
