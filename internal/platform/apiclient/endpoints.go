package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// -- Auth --

func (c *Client) SignIn(ctx context.Context, req SignInRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/signin", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/signup", "", req, &out); err != nil {
		return nil, err
	}
	if out.Role == "" {
		out.Role = req.Role
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodPost, "/logout", token, struct{}{}, nil)
}

func (c *Client) GetUser(ctx context.Context, token string, userID ID) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	in := map[string]string{"user_id": userID.String()}
	if err := c.doJSON(ctx, http.MethodPost, "/get_user", token, in, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) UpdateUserName(ctx context.Context, token string, userID ID, fullName string) error {
	in := map[string]string{"fullname": fullName}
	return c.doJSON(ctx, http.MethodPut, "/users/"+url.PathEscape(userID.String()), token, in, nil)
}

// -- Patients --

func (c *Client) ListPatients(ctx context.Context, token string, userID ID) ([]Patient, error) {
	var out struct {
		Patients []Patient `json:"patients"`
	}
	path := "/patients?user_id=" + url.QueryEscape(userID.String())
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Patients, nil
}

func (c *Client) GetPatient(ctx context.Context, token string, id ID) (*Patient, error) {
	var out struct {
		Patient Patient `json:"patient"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/patients/"+url.PathEscape(id.String()), token, nil, &out); err != nil {
		return nil, err
	}
	return &out.Patient, nil
}

// CreatePatient posts p and returns the stored record when the API echoes it.
func (c *Client) CreatePatient(ctx context.Context, token string, p Patient) (*Patient, error) {
	var out struct {
		Data []Patient `json:"data"`
	}
	p.ID = ""
	if err := c.doJSON(ctx, http.MethodPost, "/patients", token, p, &out); err != nil {
		return nil, err
	}
	if len(out.Data) > 0 {
		return &out.Data[0], nil
	}
	return &p, nil
}

func (c *Client) UpdatePatient(ctx context.Context, token string, p Patient) error {
	return c.doJSON(ctx, http.MethodPut, "/patients/"+url.PathEscape(p.ID.String()), token, p, nil)
}

func (c *Client) DeletePatient(ctx context.Context, token string, id ID) error {
	return c.doJSON(ctx, http.MethodDelete, "/patients/"+url.PathEscape(id.String()), token, nil, nil)
}

// -- Radiographs --

func (c *Client) ListRadiographs(ctx context.Context, token string, patientID ID) ([]Radiograph, error) {
	// The API lists radiographs under a "patients" key.
	var out struct {
		Patients    []Radiograph `json:"patients"`
		Radiographs []Radiograph `json:"radiographs"`
	}
	path := "/radiographs?patient_id=" + url.QueryEscape(patientID.String())
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Radiographs) > 0 {
		return out.Radiographs, nil
	}
	return out.Patients, nil
}

func (c *Client) CreateRadiograph(ctx context.Context, token string, r Radiograph) (*Radiograph, error) {
	var out struct {
		Data []Radiograph `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/radiographs", token, r, &out); err != nil {
		return nil, err
	}
	if len(out.Data) > 0 {
		created := out.Data[0]
		if len(created.Report) == 0 {
			created.Report = r.Report
		}
		return &created, nil
	}
	return &r, nil
}

// Analyze uploads a radiograph for anomaly detection and returns the
// annotated image the service draws.
func (c *Client) Analyze(ctx context.Context, token, fileName string, image []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("build upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", token, &buf)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "image/jpeg, image/*")

	resp, err := c.send(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	annotated, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read annotated image: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(annotated)
	}
	return annotated, contentType, nil
}

// LatestReport fetches the anomaly report of the most recent analysis as raw
// JSON, keyed by tooth number.
func (c *Client) LatestReport(ctx context.Context, token string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/report", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// -- Chat --

func (c *Client) Chat(ctx context.Context, token string, req ChatRequest) (string, error) {
	if req.History == nil {
		req.History = []ChatMessage{}
	}
	var out ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat", token, req, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}
