package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentattendance/internal/access"
	"studentattendance/internal/apperr"
)

func newTestRouter(tokens *Tokens) *gin.Engine {
	gin.SetMode(gin.TestMode)
	resolve := func(_ context.Context, claims Claims) (access.Caller, error) {
		if claims.Subject == "ghost" {
			return access.Caller{}, apperr.New(apperr.Unauthorized, "user not found")
		}
		return access.Caller{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
	}
	r := gin.New()
	g := r.Group("/", Authenticate(tokens, resolve))
	g.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CallerFrom(c).ID})
	})
	g.GET("/staff", RequireRole(access.Lecturer, access.Admin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	tokens := NewTokens("attendance", "secret", time.Minute, time.Hour)
	r := newTestRouter(tokens)

	student, err := tokens.Issue("s1", "s@uni.test", access.Student)
	require.NoError(t, err)
	ghost, err := tokens.Issue("ghost", "g@uni.test", access.Student)
	require.NoError(t, err)
	lecturer, err := tokens.Issue("l1", "l@uni.test", access.Lecturer)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "missing header", path: "/me", want: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/me", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "refresh token rejected", path: "/me", header: "Bearer " + student.RefreshToken, want: http.StatusUnauthorized},
		{name: "unknown user", path: "/me", header: "Bearer " + ghost.AccessToken, want: http.StatusUnauthorized},
		{name: "ok", path: "/me", header: "Bearer " + student.AccessToken, want: http.StatusOK},
		{name: "student forbidden", path: "/staff", header: "Bearer " + student.AccessToken, want: http.StatusForbidden},
		{name: "lecturer allowed", path: "/staff", header: "bearer " + lecturer.AccessToken, want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
