package mail

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePart(t *testing.T, p *multipart.Part) []byte {
	t.Helper()
	raw, err := io.ReadAll(p)
	require.NoError(t, err)
	if p.Header.Get("Content-Transfer-Encoding") == "base64" {
		cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(raw))
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		require.NoError(t, err)
		return decoded
	}
	return raw
}

func TestBuildMIMEWithAttachments(t *testing.T) {
	msg := &Message{
		To:        "alice@example.com",
		FromEmail: "orders@stitchfolk.com",
		FromName:  "Stitchfolk",
		ReplyTo:   "support@stitchfolk.com",
		Subject:   "Your pattern order SF-1042 is ready",
		HTMLBody:  "<p>files attached</p>",
		TextBody:  "files attached",
		Attachments: []Attachment{
			{Filename: "pattern.pdf", Content: []byte("%PDF-1.4 fake"), ContentType: "application/pdf"},
			{Filename: "sizing-chart.jpg", Content: []byte{0xff, 0xd8, 0xff}, ContentType: "image/jpeg"},
		},
	}

	raw, err := buildMIME(msg)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", parsed.Header.Get("To"))
	assert.Contains(t, parsed.Header.Get("From"), "orders@stitchfolk.com")
	assert.Equal(t, "support@stitchfolk.com", parsed.Header.Get("Reply-To"))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])

	// First part: the alternative body.
	body, err := mr.NextPart()
	require.NoError(t, err)
	bodyType, bodyParams, err := mime.ParseMediaType(body.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", bodyType)

	ar := multipart.NewReader(body, bodyParams["boundary"])
	textPart, err := ar.NextPart()
	require.NoError(t, err)
	assert.Contains(t, textPart.Header.Get("Content-Type"), "text/plain")
	assert.Equal(t, "files attached", string(decodePart(t, textPart)))

	htmlPart, err := ar.NextPart()
	require.NoError(t, err)
	assert.Contains(t, htmlPart.Header.Get("Content-Type"), "text/html")
	assert.Equal(t, "<p>files attached</p>", string(decodePart(t, htmlPart)))

	// Then the attachments, order preserved.
	pdfPart, err := mr.NextPart()
	require.NoError(t, err)
	assert.Contains(t, pdfPart.Header.Get("Content-Disposition"), `filename="pattern.pdf"`)
	assert.Contains(t, pdfPart.Header.Get("Content-Type"), "application/pdf")
	assert.Equal(t, []byte("%PDF-1.4 fake"), decodePart(t, pdfPart))

	jpgPart, err := mr.NextPart()
	require.NoError(t, err)
	assert.Contains(t, jpgPart.Header.Get("Content-Disposition"), `filename="sizing-chart.jpg"`)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, decodePart(t, jpgPart))

	_, err = mr.NextPart()
	assert.Equal(t, io.EOF, err)
}

func TestBuildMIMEZeroAttachments(t *testing.T) {
	msg := &Message{
		To:        "bob@example.com",
		FromEmail: "orders@stitchfolk.com",
		Subject:   "Your pattern order SF-1043 is ready",
		HTMLBody:  "<p>confirmed</p>",
		TextBody:  "confirmed",
	}

	raw, err := buildMIME(msg)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	_, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	_, err = mr.NextPart()
	require.NoError(t, err)
	_, err = mr.NextPart()
	assert.Equal(t, io.EOF, err, "only the body part should be present")
}

func TestBuildMIMEValidation(t *testing.T) {
	_, err := buildMIME(&Message{FromEmail: "orders@stitchfolk.com"})
	assert.Error(t, err, "missing recipient")

	_, err = buildMIME(&Message{To: "alice@example.com"})
	assert.Error(t, err, "missing sender")
}

func TestBuildMIMERejectsHeaderInjection(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"newline in to", Message{To: "a@example.com\r\nBcc: evil@example.net", FromEmail: "orders@stitchfolk.com"}},
		{"newline in from", Message{To: "a@example.com", FromEmail: "orders@stitchfolk.com\nX-Spam: yes"}},
		{"newline in reply-to", Message{To: "a@example.com", FromEmail: "orders@stitchfolk.com", ReplyTo: "b@example.com\r"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildMIME(&tt.msg)
			assert.ErrorContains(t, err, "line break")
		})
	}
}
