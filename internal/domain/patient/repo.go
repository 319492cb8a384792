package patient

import (
	"context"
)

// Repository reads and writes patient records. Calls run as the user whose
// API token is on ctx.
type Repository interface {
	List(ctx context.Context, userID string) ([]*Patient, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id string) error
}
