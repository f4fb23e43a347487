// Package directory is the client for the enterprise directory gateway, the
// external service that verifies staff credentials and returns profile
// attributes. The gateway fronts the corporate directory; its own protocol is
// not this service's concern.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrAuthFailed is returned when the directory rejects the credentials.
	ErrAuthFailed = errors.New("directory: authentication failed")
	// ErrUnavailable is returned when the directory cannot be reached or answers
	// with an unexpected status. Callers treat it as a verification failure, not
	// a fatal error, but may log and count it separately.
	ErrUnavailable = errors.New("directory: unavailable")
)

// Profile is the identity the directory returns on successful authentication.
// Department and position may be fresher than the locally cached record.
type Profile struct {
	Username   string `json:"username"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Position   string `json:"position"`
	Phone      string `json:"phone"`
}

// Client authenticates a username/password pair against the enterprise directory.
type Client interface {
	Authenticate(ctx context.Context, username, password string) (*Profile, error)
}

// RESTClient talks to the directory gateway over HTTP.
type RESTClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewRESTClient returns a client for the gateway at baseURL. timeout bounds a
// single authentication call so a slow directory cannot stall login handling.
func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Authenticate posts the credentials to the gateway. Returns the profile on
// success, ErrAuthFailed when the directory rejects the pair, and
// ErrUnavailable (wrapped) for transport failures or unexpected statuses.
func (c *RESTClient) Authenticate(ctx context.Context, username, password string) (*Profile, error) {
	raw, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/authenticate", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrAuthFailed
	default:
		return nil, fmt.Errorf("%w: status=%d", ErrUnavailable, resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if p.Username == "" {
		p.Username = username
	}
	return &p, nil
}
