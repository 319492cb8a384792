package patient

import (
	"context"
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

func (r *apiRepo) List(ctx context.Context, userID string) ([]*Patient, error) {
	rows, err := r.api.ListPatients(ctx, auth.TokenFromContext(ctx), apiclient.ID(userID))
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	out := make([]*Patient, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromAPI(row))
	}
	return out, nil
}

func (r *apiRepo) GetByID(ctx context.Context, id string) (*Patient, error) {
	row, err := r.api.GetPatient(ctx, auth.TokenFromContext(ctx), apiclient.ID(id))
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	p := fromAPI(*row)
	if p.ID == "" {
		p.ID = id
	}
	return p, nil
}

func (r *apiRepo) Create(ctx context.Context, p *Patient) error {
	created, err := r.api.CreatePatient(ctx, auth.TokenFromContext(ctx), p.toAPI())
	if err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	if !created.ID.IsZero() {
		p.ID = created.ID.String()
	}
	return nil
}

func (r *apiRepo) Update(ctx context.Context, p *Patient) error {
	if err := r.api.UpdatePatient(ctx, auth.TokenFromContext(ctx), p.toAPI()); err != nil {
		if apiclient.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("update patient %s: %w", p.ID, err)
	}
	return nil
}

func (r *apiRepo) Delete(ctx context.Context, id string) error {
	if err := r.api.DeletePatient(ctx, auth.TokenFromContext(ctx), apiclient.ID(id)); err != nil {
		if apiclient.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete patient %s: %w", id, err)
	}
	return nil
}
