package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrUnauthorized marks 401 responses so callers can force a re-login.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response. The server body is carried verbatim so the
// UI can surface it as the failure message.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("server error %d", e.StatusCode)
	}
	return body
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match expired-token responses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client calls the attendance backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client for the given API base URL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // uploads carry a full JPEG frame
		},
	}
}

// Login exchanges credentials for a bearer token and the user profile.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out LoginResult
	if err := c.do(req, &out); err != nil {
		return LoginResult{}, err
	}
	if out.AccessToken == "" {
		return LoginResult{}, errors.New("login response missing access token")
	}
	return out, nil
}

// Me fetches the profile behind the token.
func (c *Client) Me(ctx context.Context, token string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/auth/me", nil)
	if err != nil {
		return User{}, err
	}
	bearer(req, token)

	var out User
	if err := c.do(req, &out); err != nil {
		return User{}, err
	}
	return out, nil
}

// RegisterInput is the multipart /auth/register form. FaceImage is optional;
// when present it seeds the stored face signature.
type RegisterInput struct {
	Username  string
	Password  string
	Role      string
	CompanyID string
	FullName  string
	FaceImage []byte
}

// Register creates a user account.
func (c *Client) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	if in.Username == "" || in.Password == "" {
		return RegisterResult{}, errors.New("username and password required")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("username", in.Username)
	_ = w.WriteField("password", in.Password)
	if in.Role != "" {
		_ = w.WriteField("role", in.Role)
	}
	if in.CompanyID != "" {
		_ = w.WriteField("company_id", in.CompanyID)
	}
	if in.FullName != "" {
		_ = w.WriteField("full_name", in.FullName)
	}
	if len(in.FaceImage) > 0 {
		part, err := w.CreateFormFile("image", "face.jpg")
		if err != nil {
			return RegisterResult{}, fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(part, bytes.NewReader(in.FaceImage)); err != nil {
			return RegisterResult{}, fmt.Errorf("write face image: %w", err)
		}
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auth/register", &buf)
	if err != nil {
		return RegisterResult{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out RegisterResult
	if err := c.do(req, &out); err != nil {
		return RegisterResult{}, err
	}
	return out, nil
}

// Submit uploads one selfie frame plus its geofix as multipart form data and
// returns the server's verdict.
func (c *Client) Submit(ctx context.Context, token string, image []byte, lat, lon float64) (Verdict, error) {
	if len(image) == 0 {
		return Verdict{}, errors.New("image required")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "selfie.jpg")
	if err != nil {
		return Verdict{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(image)); err != nil {
		return Verdict{}, fmt.Errorf("write image: %w", err)
	}
	_ = w.WriteField("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	_ = w.WriteField("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/attendance", &buf)
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	bearer(req, token)

	var out Verdict
	if err := c.do(req, &out); err != nil {
		return Verdict{}, err
	}
	return out, nil
}

// MyHistory returns the caller's attendance records, most recent first.
func (c *Client) MyHistory(ctx context.Context, token string) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/attendance/me", nil)
	if err != nil {
		return nil, err
	}
	bearer(req, token)

	var out []Record
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminRecords runs a filtered records query. The returned total is the
// server's count over the whole filtered set, not the page length.
func (c *Client) AdminRecords(ctx context.Context, token string, f Filter) (RecordsPage, error) {
	u := c.BaseURL + "/admin/records"
	if qs := f.Values().Encode(); qs != "" {
		u += "?" + qs
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return RecordsPage{}, err
	}
	bearer(req, token)

	var out RecordsPage
	if err := c.do(req, &out); err != nil {
		return RecordsPage{}, err
	}
	return out, nil
}

// AdminExport downloads the spreadsheet artifact for the same filter set.
func (c *Client) AdminExport(ctx context.Context, token string, f Filter) ([]byte, error) {
	u := c.BaseURL + "/admin/export"
	if qs := f.Values().Encode(); qs != "" {
		u += "?" + qs
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	bearer(req, token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// do sends the request and decodes a JSON response into out.
// Non-2xx responses become *APIError carrying the body verbatim.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func bearer(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
