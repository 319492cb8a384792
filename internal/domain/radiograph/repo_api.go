package radiograph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orthovision/portal/internal/platform/apiclient"
	"github.com/orthovision/portal/internal/platform/auth"
)

type apiRepo struct {
	api *apiclient.Client
}

// NewAPIRepository returns a Repository backed by the clinic API.
func NewAPIRepository(api *apiclient.Client) Repository {
	return &apiRepo{api: api}
}

// List returns the patient's radiographs. The API answers 400 for a patient
// with no radiographs yet, which reads as an empty history.
func (r *apiRepo) List(ctx context.Context, patientID string) ([]*Radiograph, error) {
	rows, err := r.api.ListRadiographs(ctx, auth.TokenFromContext(ctx), apiclient.ID(patientID))
	if err != nil {
		if apiclient.IsBadRequest(err) || apiclient.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list radiographs for patient %s: %w", patientID, err)
	}
	out := make([]*Radiograph, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromAPI(row))
	}
	return out, nil
}

func (r *apiRepo) Create(ctx context.Context, rec *Radiograph) error {
	created, err := r.api.CreateRadiograph(ctx, auth.TokenFromContext(ctx), rec.toAPI())
	if err != nil {
		return fmt.Errorf("create radiograph: %w", err)
	}
	stored := fromAPI(*created)
	if stored.ID != "" {
		rec.ID = stored.ID
	}
	if !stored.CreatedAt.IsZero() {
		rec.CreatedAt = stored.CreatedAt
	}
	return nil
}

type apiAnalyzer struct {
	api *apiclient.Client
}

// NewAPIAnalyzer returns an Analyzer that uses the clinic API's inference
// endpoints.
func NewAPIAnalyzer(api *apiclient.Client) Analyzer {
	return &apiAnalyzer{api: api}
}

func (a *apiAnalyzer) Analyze(ctx context.Context, fileName string, image []byte) ([]byte, string, error) {
	out, ct, err := a.api.Analyze(ctx, auth.TokenFromContext(ctx), fileName, image)
	if err != nil {
		return nil, "", fmt.Errorf("analyze %s: %w", fileName, err)
	}
	return out, ct, nil
}

func (a *apiAnalyzer) LatestReport(ctx context.Context) (json.RawMessage, error) {
	raw, err := a.api.LatestReport(ctx, auth.TokenFromContext(ctx))
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch report: %w", err)
	}
	return raw, nil
}
