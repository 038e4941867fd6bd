package mailer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vtreporter/internal/recipients"
	logx "vtreporter/pkg/logx"
)

func TestAttachmentName(t *testing.T) {
	ts := time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC).Format("2006-01-02 15:04")
	assert.Equal(t, "video-transcoding-report-2025-03-09-14-30.csv", AttachmentName(ts))
}

func TestClientOptionsSkipAuthWithoutCredentials(t *testing.T) {
	anon := New(Config{Host: "relay.internal", Port: 25, From: "noreply@example.com"}, nil, logx.Nop())
	authed := New(Config{Host: "smtp.example.com", Port: 587, User: "u", Pass: "p", From: "noreply@example.com"}, nil, logx.Nop())

	assert.Len(t, anon.clientOptions(), 2, "port and TLS policy only; no AUTH against an open relay")
	assert.Len(t, authed.clientOptions(), 5, "AUTH PLAIN plus credentials when a user is configured")
}

func TestSendRequiresRecipients(t *testing.T) {
	list, err := recipients.Open(filepath.Join(t.TempDir(), "emails.json"), recipients.List{}, logx.Nop())
	require.NoError(t, err)

	m := New(Config{Host: "localhost", Port: 587, From: "noreply@example.com"}, list, logx.Nop())
	err = m.Send(context.Background(), "<p>report</p>", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recipients")
}
