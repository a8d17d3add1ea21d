// Package faceclient talks to the face recognition service used to confirm
// photo check-ins.
package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// VerifyResult is the service's 1:1 comparison of a photo against a
// student's enrolled face.
type VerifyResult struct {
	UserID     string  `json:"user_id"`
	Verified   bool    `json:"verified"`
	Similarity float64 `json:"similarity"`
	Threshold  float64 `json:"threshold"`
}

// ErrSkipped is returned by Verify in skip mode. No comparison was made,
// so callers must not record a result.
var ErrSkipped = errors.New("face verification skipped")

// Client calls the face service. In skip mode no requests are made.
type Client struct {
	baseURL string
	skip    bool
	http    *http.Client
}

func New(baseURL string, skip bool) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		skip:    skip,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health pings GET /health.
func (c *Client) Health(ctx context.Context) error {
	if c.skip {
		return nil
	}
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Verify posts the student id and photo URL to /verify.
func (c *Client) Verify(ctx context.Context, studentID, imageURL string) (*VerifyResult, error) {
	if c.skip {
		return nil, ErrSkipped
	}
	if imageURL == "" {
		return nil, errors.New("face verify: image url required")
	}

	payload, err := json.Marshal(struct {
		UserID   string `json:"user_id"`
		ImageURL string `json:"image_url"`
	}{studentID, imageURL})
	if err != nil {
		return nil, errors.Wrap(err, "face verify: encoding request")
	}
	resp, err := c.do(ctx, http.MethodPost, "/verify", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out VerifyResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "face verify: decoding response")
	}
	return &out, nil
}

// do sends a request and turns non-2xx replies into errors carrying the
// start of the response body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "face service: building %s", path)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "face service unavailable")
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, errors.Errorf("face service %s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}
