package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataURI(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,abcd", DataURI(" abcd "))
	assert.Equal(t, "data:image/png;base64,abcd", DataURI("data:image/png;base64,abcd"))
}

func TestSign(t *testing.T) {
	c := NewCloudinary("demo", "key", "secret", "")
	got := c.sign(map[string]string{"timestamp": "100", "folder": "checkins", "api_key": "key", "file": "x"})

	sum := sha1.Sum([]byte("folder=checkins&timestamp=100secret"))
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestCloudinaryUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/demo/image/upload", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "key", r.FormValue("api_key"))
		assert.Equal(t, "checkins", r.FormValue("folder"))
		assert.Equal(t, "1700000000", r.FormValue("timestamp"))
		assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", r.FormValue("file"))
		assert.NotEmpty(t, r.FormValue("signature"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"public_id":"checkins/a1","secure_url":"https://res.cloudinary.com/demo/a1.jpg"}`))
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "secret", "checkins")
	c.host = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	url, err := c.Upload(context.Background(), "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/a1.jpg", url)
}

func TestCloudinaryUploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "wrong", "")
	c.host = srv.URL

	_, err := c.Upload(context.Background(), "aGVsbG8=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
