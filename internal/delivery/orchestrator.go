// Package delivery orchestrates the digital file delivery pipeline: fetch
// each purchased file through the SSRF-guarded fetcher, watermark PDFs with
// the buyer's identity, and send everything as attachments on the order
// confirmation email.
//
// Delivery is best-effort by contract. A failed file is skipped, a failed
// watermark falls back to the original bytes, and even a failed email send
// only surfaces in logs: the completed order is the source of truth and is
// never rolled back from here.
package delivery

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/stitchfolk/pattern-delivery/internal/mail"
	"github.com/stitchfolk/pattern-delivery/internal/pkg/logger"
	"github.com/stitchfolk/pattern-delivery/internal/safefetch"
)

// fallbackFilename is used when no name can be derived from the file URL.
const fallbackFilename = "pattern-download"

// Fetcher retrieves a file from seller storage through the SSRF guard.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, allowedHosts []string) (*safefetch.Result, error)
}

// Watermarker stamps PDF bytes with a license identity. Implementations
// must return usable bytes even on internal failure.
type Watermarker interface {
	Stamp(pdf []byte, licenseIdentity string) []byte
}

// Orchestrator runs one delivery attempt per completed order.
type Orchestrator struct {
	fetcher      Fetcher
	stamper      Watermarker
	sender       mail.Sender
	templates    *mail.Templates
	storageHosts []string
	fromEmail    string
	fromName     string
	replyTo      string
	log          *logger.Logger
}

// NewOrchestrator wires the pipeline. storageHosts is the allow-list applied
// to every outbound file fetch.
func NewOrchestrator(fetcher Fetcher, stamper Watermarker, sender mail.Sender, templates *mail.Templates, storageHosts []string, fromEmail, fromName, replyTo string) *Orchestrator {
	return &Orchestrator{
		fetcher:      fetcher,
		stamper:      stamper,
		sender:       sender,
		templates:    templates,
		storageHosts: storageHosts,
		fromEmail:    fromEmail,
		fromName:     fromName,
		replyTo:      replyTo,
		log:          logger.With("delivery"),
	}
}

// Deliver fetches, watermarks and emails the order's files. It reports all
// failures through logs and the returned summary; it never panics and never
// returns an error, because callers invoke it fire-and-forget after order
// completion.
func (o *Orchestrator) Deliver(ctx context.Context, req Request) (summary *Summary) {
	summary = &Summary{OrderID: req.OrderID}

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("delivery panicked", "order_id", req.OrderID, "panic", r)
		}
	}()

	// Files are processed sequentially so per-order log lines stay
	// contiguous; there is no shared state to parallelize over anyway.
	attachments := make([]mail.Attachment, 0, len(req.Files))
	for _, file := range req.Files {
		summary.FilesAttempted++

		att, ok := o.prepareAttachment(ctx, file, req.RecipientEmail, req.OrderID)
		if !ok {
			summary.FilesFailed++
			continue
		}
		attachments = append(attachments, att)
		summary.FilesAttached++
	}

	// The confirmation goes out even with zero attachments: the order
	// itself succeeded, and the buyer must hear that. An operator can
	// resend files from the logs.
	names := make([]string, 0, len(attachments))
	for _, att := range attachments {
		names = append(names, att.Filename)
	}

	subject, htmlBody, textBody, err := o.templates.Render(mail.TemplateData{
		BuyerName:       req.BuyerName,
		OrderNumber:     req.OrderNumber,
		ProductTitle:    req.ProductTitle,
		AttachmentNames: names,
	})
	if err != nil {
		o.log.Error("rendering confirmation templates", "order_id", req.OrderID, "error", err.Error())
		o.logSummary(summary)
		return summary
	}

	messageID, err := o.sender.Send(ctx, &mail.Message{
		To:          req.RecipientEmail,
		FromEmail:   o.fromEmail,
		FromName:    o.fromName,
		ReplyTo:     o.replyTo,
		Subject:     subject,
		HTMLBody:    htmlBody,
		TextBody:    textBody,
		Attachments: attachments,
	})
	if err != nil {
		o.log.Error("sending delivery email", "order_id", req.OrderID,
			"recipient", req.RecipientEmail, "error", err.Error())
		o.logSummary(summary)
		return summary
	}

	summary.EmailSent = true
	summary.MessageID = messageID
	o.logSummary(summary)
	return summary
}

func (o *Orchestrator) prepareAttachment(ctx context.Context, file SourceFile, recipientEmail, orderID string) (mail.Attachment, bool) {
	res, err := o.fetcher.Fetch(ctx, file.URL, o.storageHosts)
	if err != nil {
		o.log.Error("file fetch failed, skipping attachment",
			"order_id", orderID, "url", file.URL, "error", err.Error())
		return mail.Attachment{}, false
	}

	filename := filenameFromURL(file.URL, file.DisplayName)
	contentType := file.ContentType
	if contentType == "" {
		contentType = res.ContentType
	}

	content := res.Body
	if isPDF(filename, contentType) {
		// Stamp never fails; on internal error it hands back the
		// original bytes so the attachment still goes out.
		content = o.stamper.Stamp(content, recipientEmail)
	}

	return mail.Attachment{
		Filename:    filename,
		Content:     content,
		ContentType: contentType,
	}, true
}

func (o *Orchestrator) logSummary(s *Summary) {
	o.log.Info("delivery summary",
		"order_id", s.OrderID,
		"files_attempted", s.FilesAttempted,
		"files_attached", s.FilesAttached,
		"files_failed", s.FilesFailed,
		"email_sent", s.EmailSent,
		"message_id", s.MessageID)
}

// filenameFromURL derives the attachment name from the URL's last path
// segment with any query string already stripped by parsing. displayName
// wins when the seller provided one.
func filenameFromURL(rawURL, displayName string) string {
	if name := sanitizeFilename(displayName); name != "" {
		return name
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallbackFilename
	}
	if name := sanitizeFilename(path.Base(u.Path)); name != "" {
		return name
	}
	return fallbackFilename
}

// sanitizeFilename strips path separators and control characters so a stored
// name can never influence where a mail client writes the file.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return -1
		case r == '/' || r == '\\' || r == ':':
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, ".")
	if name == "" || name == "_" {
		return ""
	}
	return name
}

func isPDF(filename, contentType string) bool {
	if strings.EqualFold(path.Ext(filename), ".pdf") {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "application/pdf")
}
