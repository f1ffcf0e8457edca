package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	netmail "net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	m, err := New(Config{}, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)

	m, err = New(Config{Provider: "SMTP", From: "shop@example.com", SMTP: SMTPConfig{Host: "mail.example.com"}}, nil)
	require.NoError(t, err)
	smtpMailer, ok := m.(*SMTPMailer)
	require.True(t, ok)
	assert.Equal(t, "mail.example.com:587", smtpMailer.addr())

	_, err = New(Config{Provider: "pigeon"}, nil)
	require.Error(t, err)
}

func TestNewSMTPMailerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSMTPMailer(SMTPConfig{}, "shop@example.com")
	require.Error(t, err)

	_, err = NewSMTPMailer(SMTPConfig{Host: "localhost"}, "")
	require.Error(t, err)
}

func TestLogMailerSend(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	m := NewLogMailer(logger, "shop@example.com")

	err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "Hi", Body: "hello"})
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "a@example.com", rec["to"])
	assert.Equal(t, "Hi", rec["subject"])
	assert.Equal(t, "hello", rec["body"])
}

func TestLogMailerHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewLogMailer(slog.Default(), "").Send(ctx, Message{To: "a@example.com"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSMTPMailerDialFailure(t *testing.T) {
	t.Parallel()

	// Port 1 on loopback is never an SMTP server.
	m, err := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1}, "shop@example.com")
	require.NoError(t, err)

	err = m.Send(context.Background(), Message{To: "a@example.com"})
	require.Error(t, err)
}

func TestSMTPMessageHeaders(t *testing.T) {
	t.Parallel()

	m, err := NewSMTPMailer(SMTPConfig{Host: "mail.example.com"}, "shop@example.com")
	require.NoError(t, err)

	msg, err := m.newMsg(Message{
		To:      "a@example.com",
		Subject: "Récupération du mot de passe",
		Body:    "line one\nline two",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	parsed, err := netmail.ReadMessage(&buf)
	require.NoError(t, err)

	assert.NotEmpty(t, parsed.Header.Get("Date"))
	_, err = parsed.Header.Date()
	require.NoError(t, err)
	assert.NotEmpty(t, parsed.Header.Get("Message-ID"))

	rawSubject := parsed.Header.Get("Subject")
	assert.NotEqual(t, "Récupération du mot de passe", rawSubject, "non-ASCII subject must be encoded")
	subject, err := new(mime.WordDecoder).DecodeHeader(rawSubject)
	require.NoError(t, err)
	assert.Equal(t, "Récupération du mot de passe", subject)

	to, err := parsed.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "a@example.com", to[0].Address)

	body, err := io.ReadAll(parsed.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "line one")
}

func TestSMTPRejectsBadRecipient(t *testing.T) {
	t.Parallel()

	m, err := NewSMTPMailer(SMTPConfig{Host: "mail.example.com"}, "shop@example.com")
	require.NoError(t, err)

	err = m.Send(context.Background(), Message{To: "not an address"})
	require.Error(t, err)
}
