package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diewo77/freelance-desk/internal/config"
)

func TestNewWithoutHostLogs(t *testing.T) {
	m, err := New(config.MailConfig{}, zap.NewNop())
	require.NoError(t, err)
	lm, ok := m.(*LogMailer)
	require.True(t, ok, "expected LogMailer, got %T", m)

	require.NoError(t, lm.Send(context.Background(), VerifyEmail("a@b.co", "Ann", "http://x/verify?token=t")))
	sent := lm.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@b.co", sent[0].To)
	assert.Contains(t, sent[0].Body, "http://x/verify?token=t")
	assert.Contains(t, sent[0].Body, "Hi Ann")
}

func TestNewWithHostBuildsSMTP(t *testing.T) {
	m, err := New(config.MailConfig{Host: "smtp.example.com", Port: 587, User: "u", Password: "p", From: "no-reply@example.com"}, zap.NewNop())
	require.NoError(t, err)
	_, ok := m.(*SMTP)
	assert.True(t, ok)
}

func TestResetPasswordTemplate(t *testing.T) {
	msg := ResetPassword("a@b.co", "", "http://x/reset?token=t")
	assert.Equal(t, "Reset your password", msg.Subject)
	assert.Contains(t, msg.Body, "Hi there")
	assert.Contains(t, msg.Body, "http://x/reset?token=t")
}
