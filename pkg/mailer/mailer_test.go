package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reathuta/lms/config"
)

func TestRenderLoginCode(t *testing.T) {
	body, err := RenderLoginCode("123456", 10*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, body, "<b>123456</b>")
	assert.Contains(t, body, "10 minutes")
}

func TestSendDroppedWithoutSMTP(t *testing.T) {
	m := New(config.EmailConfig{}, zaptest.NewLogger(t))
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	assert.NoError(t, m.SendLoginCode(context.Background(), "a@b.co", "123456", time.Minute))
}

func TestSendComposesMessage(t *testing.T) {
	m := New(config.EmailConfig{
		FromAddress: "noreply@reathuta.com",
		FromName:    "REATHUTA Security",
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
		SMTPUser:    "u",
		SMTPPass:    "p",
	}, zaptest.NewLogger(t))

	var gotAddr string
	var gotTo []string
	var gotMsg string
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.NotNil(t, a)
		assert.Equal(t, "noreply@reathuta.com", from)
		return nil
	}
	require.NoError(t, m.SendLoginCode(context.Background(), "learner@example.com", "654321", 10*time.Minute))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"learner@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(gotMsg, "From: REATHUTA Security <noreply@reathuta.com>\r\n"))
	assert.Contains(t, gotMsg, "Subject: "+LoginCodeSubject)
	assert.Contains(t, gotMsg, "654321")
}

func TestSendWrapsTransportError(t *testing.T) {
	m := New(config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 25}, zaptest.NewLogger(t))
	boom := errors.New("connection refused")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	err := m.Send(context.Background(), "a@b.co", "s", "<p>x</p>")
	assert.ErrorIs(t, err, boom)
}
