package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleRecordsMessages(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c := NewConsole(logger, "Attendance")

	require.NoError(t, c.Send(context.Background(), VerificationMessage("a@uni.test", "Ada", "123456")))
	require.NoError(t, c.Send(context.Background(), PasswordResetMessage("b@uni.test", "Bob", "tok")))

	assert.Len(t, c.Sent(), 2)
	msg, ok := c.Last("a@uni.test")
	require.True(t, ok)
	assert.Contains(t, msg.Text, "123456")
	_, ok = c.Last("nobody@uni.test")
	assert.False(t, ok)

	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, "[Attendance] Verify your email", hook.AllEntries()[0].Data["subject"])
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

func TestSendGridSend(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sendgridEndpoint, r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sg := NewSendGrid("key", "Attendance", "noreply@uni.test")
	sg.host = srv.URL

	require.NoError(t, sg.Send(context.Background(), VerificationMessage("a@uni.test", "Ada", "654321")))
	require.NotNil(t, got)
	personalizations := got["personalizations"].([]interface{})
	first := personalizations[0].(map[string]interface{})
	assert.Equal(t, "[Attendance] Verify your email", first["subject"])
}

func TestSendGridSendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	sg := NewSendGrid("key", "Attendance", "noreply@uni.test")
	sg.host = srv.URL
	err := sg.Send(context.Background(), PasswordResetMessage("a@uni.test", "Ada", "tok"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sendgrid: status 401")
	assert.Contains(t, err.Error(), "bad key")
	assert.Contains(t, fmt.Sprintf("%+v", err), "(*SendGrid).Send", "error carries a stack trace")
}
