package account

import (
	"net/mail"
	"strings"

	"github.com/orthovision/portal/internal/platform/session"
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 8

// SignUpRoles are the roles a visitor may register with.
var SignUpRoles = []string{session.RoleDoctor, session.RolePatient}

// Identity is what the clinic API returns for a successful sign-in.
type Identity struct {
	Token     string
	UserID    string
	Role      string
	PatientID string
}

// User is the signed-in account as the API describes it.
type User struct {
	ID       string
	FullName string
	Email    string
	Role     string
}

type SignInForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

func (f *SignInForm) Validate() error {
	f.Email = strings.TrimSpace(f.Email)
	if f.Email == "" || f.Password == "" {
		return &FormError{Message: "Email and password are required."}
	}
	return nil
}

type SignUpForm struct {
	FullName string `form:"fullname"`
	Email    string `form:"email"`
	Password string `form:"password"`
	Confirm  string `form:"confirm"`
	Role     string `form:"role"`
}

func (f *SignUpForm) Validate() error {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = strings.TrimSpace(f.Email)
	f.Role = strings.ToLower(strings.TrimSpace(f.Role))

	switch {
	case f.FullName == "" || f.Email == "" || f.Password == "":
		return &FormError{Message: "Full name, email and password are required."}
	case !validEmail(f.Email):
		return &FormError{Message: "Enter a valid email address."}
	case len(f.Password) < MinPasswordLength:
		return &FormError{Message: "Password must be at least 8 characters."}
	case f.Confirm != "" && f.Confirm != f.Password:
		return &FormError{Message: "Passwords do not match."}
	}
	for _, r := range SignUpRoles {
		if f.Role == r {
			return nil
		}
	}
	return &FormError{Message: "Choose whether you are a doctor or a patient."}
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// FormError is a problem the user can fix by resubmitting the form.
type FormError struct {
	Message string
}

func (e *FormError) Error() string { return e.Message }
