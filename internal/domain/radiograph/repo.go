package radiograph

import (
	"context"
	"encoding/json"
)

// Repository stores radiograph records. Calls run as the user whose API
// token is on ctx.
type Repository interface {
	List(ctx context.Context, patientID string) ([]*Radiograph, error)
	Create(ctx context.Context, r *Radiograph) error
}

// Analyzer runs anomaly detection on an X-ray.
type Analyzer interface {
	// Analyze returns the annotated image and its content type.
	Analyze(ctx context.Context, fileName string, image []byte) ([]byte, string, error)
	// LatestReport returns the report of the most recent analysis, or nil
	// when the service has none.
	LatestReport(ctx context.Context) (json.RawMessage, error)
}
