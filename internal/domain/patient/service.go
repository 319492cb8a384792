package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/orthovision/portal/pkg/pagination"
)

var (
	ErrNotFound     = errors.New("patient not found")
	ErrInvalidInput = errors.New("invalid patient")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ListPatients returns one page of the clinician's patients, sorted by name.
// A non-empty query keeps patients whose name or email contains it.
func (s *Service) ListPatients(ctx context.Context, userID, query string, limit, offset int) ([]*Patient, int, error) {
	if userID == "" {
		return nil, 0, fmt.Errorf("user_id is required")
	}
	all, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	matched := all[:0:0]
	q := strings.ToLower(strings.TrimSpace(query))
	for _, p := range all {
		if q == "" || matches(p, q) {
			matched = append(matched, p)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !strings.EqualFold(a.LastName, b.LastName) {
			return strings.ToLower(a.LastName) < strings.ToLower(b.LastName)
		}
		return strings.ToLower(a.FirstName) < strings.ToLower(b.FirstName)
	})

	page := pagination.Window(matched, pagination.Params{Limit: limit, Offset: offset})
	return page, len(matched), nil
}

func matches(p *Patient, q string) bool {
	return strings.Contains(strings.ToLower(p.FullName()), q) ||
		strings.Contains(strings.ToLower(p.Email), q)
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// CreatePatient validates p and stores it under the owning clinician.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	p.Normalize()
	if err := p.Validate(s.now()); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.ID == "" {
		return ErrNotFound
	}
	p.Normalize()
	if err := p.Validate(s.now()); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}
