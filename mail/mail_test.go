package mail

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mrz1836/postmark"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

var validMessage = Message{
	To:      "customer@example.com",
	Subject: "Order #1001 confirmed",
	HTML:    "<p>Thanks</p>",
	Tag:     "order_confirmation",
}

func TestMessageValidate(t *testing.T) {
	assert.NoError(t, validMessage.Validate())

	for name, mutate := range map[string]func(*Message){
		"no recipient":  func(m *Message) { m.To = "" },
		"bad recipient": func(m *Message) { m.To = "not-an-address" },
		"no subject":    func(m *Message) { m.Subject = " " },
		"no body":       func(m *Message) { m.HTML = "" },
	} {
		var msg = validMessage
		mutate(&msg)
		assert.ErrorIs(t, msg.Validate(), ErrInvalidParams, name)
	}
}

func TestDevSender(t *testing.T) {
	var dir = filepath.Join(t.TempDir(), "outbox")
	var sender = NewDevSender(dir)
	sender.now = func() time.Time { return time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC) }

	require.NoError(t, sender.Send(context.Background(), validMessage))

	var entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var htmlFile, jsonFile string
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Name(), "2024_03_05_143000_order_confirmation_"), e.Name())
		switch filepath.Ext(e.Name()) {
		case ".html":
			htmlFile = e.Name()
		case ".json":
			jsonFile = e.Name()
		}
	}
	body, err := os.ReadFile(filepath.Join(dir, htmlFile))
	require.NoError(t, err)
	assert.Equal(t, validMessage.HTML, string(body))

	raw, err := os.ReadFile(filepath.Join(dir, jsonFile))
	require.NoError(t, err)
	var meta devMetadata
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, validMessage.To, meta.To)
	assert.Equal(t, htmlFile, meta.HTMLFile)
	assert.Len(t, meta.ID, 36)
}

func TestDevSenderRejectsInvalid(t *testing.T) {
	var dir = filepath.Join(t.TempDir(), "outbox")
	var err = NewDevSender(dir).Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "order_1001_confirmed", sanitizeFilename("Order #1001 confirmed"))
	assert.Equal(t, "email", sanitizeFilename("!!!"))
	assert.Len(t, sanitizeFilename(strings.Repeat("a", 200)), 100)
}

type fakePostmark struct {
	sent []postmark.Email
	resp postmark.EmailResponse
	err  error
}

func (f *fakePostmark) SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error) {
	f.sent = append(f.sent, email)
	return f.resp, f.err
}

func TestPostmarkSender(t *testing.T) {
	var _, err = NewPostmarkSender(PostmarkConfig{From: "shop@example.com"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewPostmarkSender(PostmarkConfig{ServerToken: "x", From: "nope"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	sender, err := NewPostmarkSender(PostmarkConfig{
		ServerToken: "server",
		From:        "shop@example.com",
		ReplyTo:     "support@example.com",
	})
	require.NoError(t, err)

	var fake = &fakePostmark{resp: postmark.EmailResponse{MessageID: "abc"}}
	sender.client = fake
	require.NoError(t, sender.Send(context.Background(), validMessage))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "shop@example.com", fake.sent[0].From)
	assert.Equal(t, "support@example.com", fake.sent[0].ReplyTo)
	assert.Equal(t, validMessage.HTML, fake.sent[0].HTMLBody)
	assert.Equal(t, "order_confirmation", fake.sent[0].Tag)

	fake.resp = postmark.EmailResponse{ErrorCode: 300, Message: "Invalid email request"}
	err = sender.Send(context.Background(), validMessage)
	assert.ErrorIs(t, err, ErrFailedToSend)
	assert.Contains(t, err.Error(), "Invalid email request")

	fake.err = errors.New("connection refused")
	assert.ErrorIs(t, sender.Send(context.Background(), validMessage), ErrFailedToSend)
}
