// Package mail is the outbound email transport for order deliveries.
package mail

import "context"

// Attachment is a prepared email attachment.
type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

// Message is a single transactional email.
type Message struct {
	To          string
	FromEmail   string
	FromName    string
	ReplyTo     string
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []Attachment
}

// Sender delivers a transactional email and returns the provider message ID.
type Sender interface {
	Send(ctx context.Context, msg *Message) (string, error)
}
