package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is a record identifier. The API returns some ids as numbers and some as
// uuid strings, so both decode into the same string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// -- Auth --

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullname"`
	Role     string `json:"role"`
}

// AuthResponse is returned by both sign-in and sign-up.
type AuthResponse struct {
	Message   string `json:"message"`
	Token     string `json:"token"`
	UserID    ID     `json:"user_id"`
	Role      string `json:"role,omitempty"`
	PatientID ID     `json:"patient_id,omitempty"`
}

type User struct {
	ID       ID     `json:"id"`
	UserID   ID     `json:"user_id,omitempty"`
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// -- Patients --

type Patient struct {
	ID            ID     `json:"id,omitempty"`
	UserID        ID     `json:"user_id,omitempty"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	DOB           string `json:"dob"`
	Gender        string `json:"gender"`
	ContactNumber string `json:"contact_number"`
	Email         string `json:"email"`
}

// -- Radiographs --

type Radiograph struct {
	ID        ID              `json:"id,omitempty"`
	PatientID ID              `json:"patient_id"`
	URL       string          `json:"url"`
	CreatedAt string          `json:"created_at,omitempty"`
	Report    json.RawMessage `json:"report,omitempty"`
}

// -- Chat --

type ChatMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type ChatRequest struct {
	Message string          `json:"message"`
	History []ChatMessage   `json:"history"`
	Report  json.RawMessage `json:"report,omitempty"`
}

type ChatResponse struct {
	Response string `json:"response"`
}
