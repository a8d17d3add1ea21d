package media

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const cloudinaryHost = "https://api.cloudinary.com"

// Cloudinary uploads images with signed requests to the Cloudinary REST API.
type Cloudinary struct {
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	host      string
	http      *http.Client
	now       func() time.Time
}

func NewCloudinary(cloudName, apiKey, apiSecret, folder string) *Cloudinary {
	return &Cloudinary{
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		folder:    folder,
		host:      cloudinaryHost,
		http:      &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

type uploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
}

// Upload sends image and returns its HTTPS URL.
func (c *Cloudinary) Upload(ctx context.Context, image string) (string, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if c.folder != "" {
		params["folder"] = c.folder
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.apiKey
	params["file"] = DataURI(image)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		if err := w.WriteField(k, v); err != nil {
			return "", errors.Wrap(err, "building upload form")
		}
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "building upload form")
	}

	url := fmt.Sprintf("%s/v1_1/%s/image/upload", c.host, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", errors.Wrap(err, "creating upload request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "uploading image")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return "", errors.Errorf("cloudinary upload failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var res uploadResult
	if err := json.Unmarshal(body, &res); err != nil {
		return "", errors.Wrap(err, "decoding upload response")
	}
	if res.SecureURL != "" {
		return res.SecureURL, nil
	}
	if res.URL == "" {
		return "", errors.New("cloudinary upload returned no url")
	}
	return res.URL, nil
}

// sign is the SHA-1 of the sorted key=value pairs followed by the secret.
// api_key and file are never signed.
func (c *Cloudinary) sign(params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if k == "api_key" || k == "file" || k == "resource_type" || v == "" {
			continue
		}
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(sum[:])
}
