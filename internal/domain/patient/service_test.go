package patient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// -- Mock Patient Repository --

type mockRepo struct {
	patients map[string]*Patient
	nextID   int
	listErr  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[string]*Patient)}
}

func (m *mockRepo) List(_ context.Context, userID string) ([]*Patient, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*Patient
	for _, p := range m.patients {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	m.nextID++
	p.ID = fmt.Sprintf("%d", m.nextID)
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.patients[id]; !ok {
		return ErrNotFound
	}
	delete(m.patients, id)
	return nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo
}

func validPatient() *Patient {
	return &Patient{
		UserID:        "7",
		FirstName:     "Maria",
		LastName:      "Lopez",
		DOB:           "1990-05-15",
		Gender:        "Female",
		ContactNumber: "555-0101",
		Email:         "maria@example.com",
	}
}

func TestService_CreatePatient(t *testing.T) {
	svc, repo := newTestService()
	p := validPatient()
	p.FirstName = "  Maria "

	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if repo.patients[p.ID].FirstName != "Maria" {
		t.Errorf("expected trimmed first name, got %q", repo.patients[p.ID].FirstName)
	}
}

func TestService_CreatePatient_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Patient)
		field  string
	}{
		{"missing first name", func(p *Patient) { p.FirstName = "" }, "first_name"},
		{"missing last name", func(p *Patient) { p.LastName = " " }, "last_name"},
		{"missing dob", func(p *Patient) { p.DOB = "" }, "dob"},
		{"bad dob", func(p *Patient) { p.DOB = "15/05/1990" }, "dob"},
		{"future dob", func(p *Patient) { p.DOB = "2030-01-01" }, "dob"},
		{"missing gender", func(p *Patient) { p.Gender = "" }, "gender"},
		{"unknown gender", func(p *Patient) { p.Gender = "robot" }, "gender"},
		{"missing contact", func(p *Patient) { p.ContactNumber = "" }, "contact_number"},
		{"missing email", func(p *Patient) { p.Email = "" }, "email"},
		{"bad email", func(p *Patient) { p.Email = "not-an-email" }, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			p := validPatient()
			tt.mutate(p)

			err := svc.CreatePatient(context.Background(), p)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("expected field %s in %v", tt.field, verr.Fields)
			}
			if len(repo.patients) != 0 {
				t.Error("invalid patient should not be stored")
			}
		})
	}
}

func TestService_CreatePatient_RequiresOwner(t *testing.T) {
	svc, _ := newTestService()
	p := validPatient()
	p.UserID = ""
	if err := svc.CreatePatient(context.Background(), p); err == nil {
		t.Error("expected error for missing user_id")
	}
}

func TestService_CreatePatient_NormalizesTimestampDOB(t *testing.T) {
	svc, _ := newTestService()
	p := validPatient()
	p.DOB = "1990-05-15T00:00:00Z"
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DOB != "1990-05-15" {
		t.Errorf("expected DOB 1990-05-15, got %s", p.DOB)
	}
}

func TestService_ListPatients(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for _, name := range [][2]string{{"Ana", "Zeller"}, {"Bob", "Adams"}, {"Cara", "Miller"}, {"Dan", "Adams"}} {
		p := validPatient()
		p.FirstName, p.LastName = name[0], name[1]
		if err := svc.CreatePatient(ctx, p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	other := validPatient()
	other.UserID = "8"
	svc.CreatePatient(ctx, other)

	page, total, err := svc.ListPatients(ctx, "7", "", 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 4 {
		t.Errorf("expected 4 patients for user 7, got %d", total)
	}
	if len(page) != 2 || page[0].FirstName != "Bob" || page[1].FirstName != "Dan" {
		t.Errorf("expected Bob, Dan Adams first, got %+v", page)
	}

	page, total, _ = svc.ListPatients(ctx, "7", "mill", 20, 0)
	if total != 1 || page[0].LastName != "Miller" {
		t.Errorf("search mill: got %d %+v", total, page)
	}

	page, _, _ = svc.ListPatients(ctx, "7", "", 2, 10)
	if len(page) != 0 {
		t.Errorf("expected empty page past end, got %d", len(page))
	}
}

func TestService_ListPatients_RequiresUser(t *testing.T) {
	svc, _ := newTestService()
	if _, _, err := svc.ListPatients(context.Background(), "", "", 20, 0); err == nil {
		t.Error("expected error for missing user")
	}
}

func TestService_ListPatients_RepoError(t *testing.T) {
	svc, repo := newTestService()
	repo.listErr = errors.New("api down")
	if _, _, err := svc.ListPatients(context.Background(), "7", "", 20, 0); err == nil {
		t.Error("expected repo error to propagate")
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	p := validPatient()
	svc.CreatePatient(ctx, p)

	p.ContactNumber = "555-0199"
	if err := svc.UpdatePatient(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}
	if repo.patients[p.ID].ContactNumber != "555-0199" {
		t.Error("update not stored")
	}

	missing := validPatient()
	missing.ID = "999"
	if err := svc.UpdatePatient(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := svc.DeletePatient(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetPatient(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.DeletePatient(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty id, got %v", err)
	}
}

func TestPatient_Age(t *testing.T) {
	p := &Patient{DOB: "1990-05-15"}
	tests := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC), 35},
		{time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC), 36},
		{time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), 36},
	}
	for _, tt := range tests {
		got, ok := p.Age(tt.now)
		if !ok || got != tt.want {
			t.Errorf("Age(%s) = %d, %v; want %d", tt.now.Format(DateLayout), got, ok, tt.want)
		}
	}
	if _, ok := (&Patient{DOB: "unknown"}).Age(time.Now()); ok {
		t.Error("expected no age for unparseable DOB")
	}
}
