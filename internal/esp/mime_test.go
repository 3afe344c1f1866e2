package esp

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() *Message {
	return &Message{
		FromName:    "Simone Susinna Fan Club",
		FromEmail:   "club@example.com",
		To:          "fan@example.com",
		Subject:     "🎉 Your Gold Membership Confirmation",
		HTMLContent: "<html><body><p>Welcome to the club, this line is long enough to need soft line breaks in quoted printable output.</p></body></html>",
		Reference:   "ref-123",
	}
}

func TestBuildMIMESinglePart(t *testing.T) {
	raw, err := buildMIME(sampleMessage(), time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	m, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, `"Simone Susinna Fan Club" <club@example.com>`, m.Header.Get("From"))
	assert.Equal(t, "fan@example.com", m.Header.Get("To"))
	assert.Contains(t, m.Header.Get("Message-Id"), "ref-123.")
	assert.True(t, strings.HasSuffix(m.Header.Get("Message-Id"), "@example.com>"))

	subject, err := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "🎉 Your Gold Membership Confirmation", subject)

	mediaType, _, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "text/html", mediaType)

	body, err := io.ReadAll(quotedprintable.NewReader(m.Body))
	require.NoError(t, err)
	assert.Equal(t, sampleMessage().HTMLContent, string(body))
}

func TestBuildMIMEWithAttachment(t *testing.T) {
	msg := sampleMessage()
	img := bytes.Repeat([]byte{0xFF, 0xD8, 0xFF, 0xE0}, 100)
	msg.Attachments = []Attachment{{Filename: "giftcard_TX-1.jpg", ContentType: "image/jpeg", Content: img}}
	msg.Headers = map[string]string{"x-membership-reference": "ref-123"}

	raw, err := buildMIME(msg, time.Now())
	require.NoError(t, err)

	m, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "ref-123", m.Header.Get("X-Membership-Reference"))

	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(m.Body, params["boundary"])

	htmlPart, err := mr.NextRawPart()
	require.NoError(t, err)
	assert.Contains(t, htmlPart.Header.Get("Content-Type"), "text/html")

	attPart, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "giftcard_TX-1.jpg", attPart.FileName())
	assert.Equal(t, "base64", attPart.Header.Get("Content-Transfer-Encoding"))

	// multipart.Reader does not decode base64; do it by hand.
	encoded, err := io.ReadAll(attPart)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(string(encoded)), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}

	_, err = mr.NextPart()
	assert.Equal(t, io.EOF, err)
}

func TestBuildMIMEStripsHeaderInjection(t *testing.T) {
	msg := sampleMessage()
	msg.Subject = "hello\r\nBcc: victim@example.com"

	raw, err := buildMIME(msg, time.Now())
	require.NoError(t, err)

	m, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Empty(t, m.Header.Get("Bcc"))
}

func TestMessageFrom(t *testing.T) {
	msg := &Message{FromName: "Club", FromEmail: "club@example.com"}
	assert.Equal(t, `"Club" <club@example.com>`, msg.From())

	msg.FromName = ""
	assert.Equal(t, "<club@example.com>", msg.From())
}
