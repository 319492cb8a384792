package patient

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/orthovision/portal/internal/platform/apiclient"
)

// DateLayout is the date of birth format used by the clinic API and the
// patient forms.
const DateLayout = "2006-01-02"

// Genders offered on the patient forms.
var Genders = []string{"Male", "Female", "Other"}

// Patient is a patient record owned by one clinician.
type Patient struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	FirstName     string `json:"first_name" form:"first_name"`
	LastName      string `json:"last_name" form:"last_name"`
	DOB           string `json:"dob" form:"dob"`
	Gender        string `json:"gender" form:"gender"`
	ContactNumber string `json:"contact_number" form:"contact_number"`
	Email         string `json:"email" form:"email"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// BirthDate parses DOB. The API has returned both plain dates and RFC 3339
// timestamps.
func (p *Patient) BirthDate() (time.Time, bool) {
	if t, err := time.Parse(DateLayout, p.DOB); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, p.DOB); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Age returns the patient's age in whole years at now.
func (p *Patient) Age(now time.Time) (int, bool) {
	dob, ok := p.BirthDate()
	if !ok || dob.After(now) {
		return 0, false
	}
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years, true
}

// Normalize trims form input and rewrites DOB to DateLayout when it parses.
func (p *Patient) Normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.DOB = strings.TrimSpace(p.DOB)
	p.Gender = strings.TrimSpace(p.Gender)
	p.ContactNumber = strings.TrimSpace(p.ContactNumber)
	p.Email = strings.TrimSpace(p.Email)
	if t, ok := p.BirthDate(); ok {
		p.DOB = t.Format(DateLayout)
	}
}

// ValidationError lists the form fields that failed validation, keyed by
// form field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, name := range fieldOrder {
		if msg, ok := e.Fields[name]; ok {
			parts = append(parts, msg)
		}
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

var fieldOrder = []string{"first_name", "last_name", "dob", "gender", "contact_number", "email"}

// Validate checks the fields the clinic API requires. Every field is
// mandatory; the date of birth must be a past date.
func (p *Patient) Validate(now time.Time) error {
	fields := map[string]string{}
	if p.FirstName == "" {
		fields["first_name"] = "first name is required"
	}
	if p.LastName == "" {
		fields["last_name"] = "last name is required"
	}
	if p.DOB == "" {
		fields["dob"] = "date of birth is required"
	} else if dob, ok := p.BirthDate(); !ok {
		fields["dob"] = "date of birth must be a date (YYYY-MM-DD)"
	} else if dob.After(now) {
		fields["dob"] = "date of birth cannot be in the future"
	}
	if p.Gender == "" {
		fields["gender"] = "gender is required"
	} else if !validGender(p.Gender) {
		fields["gender"] = "gender must be one of " + strings.Join(Genders, ", ")
	}
	if p.ContactNumber == "" {
		fields["contact_number"] = "contact number is required"
	}
	if p.Email == "" {
		fields["email"] = "email is required"
	} else if _, err := mail.ParseAddress(p.Email); err != nil {
		fields["email"] = "email is not a valid address"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validGender(g string) bool {
	for _, v := range Genders {
		if strings.EqualFold(v, g) {
			return true
		}
	}
	return false
}

func fromAPI(a apiclient.Patient) *Patient {
	return &Patient{
		ID:            a.ID.String(),
		UserID:        a.UserID.String(),
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		DOB:           a.DOB,
		Gender:        a.Gender,
		ContactNumber: a.ContactNumber,
		Email:         a.Email,
	}
}

func (p *Patient) toAPI() apiclient.Patient {
	return apiclient.Patient{
		ID:            apiclient.ID(p.ID),
		UserID:        apiclient.ID(p.UserID),
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		DOB:           p.DOB,
		Gender:        p.Gender,
		ContactNumber: p.ContactNumber,
		Email:         p.Email,
	}
}
