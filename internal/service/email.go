package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"advisor-marketplace-backend/internal/logger"

	"github.com/go-resty/resty/v2"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is one rendered email addressed to one or more recipients.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
	// Template is the template name, used for logging and metrics only.
	Template string
}

// EmailSender delivers a rendered message and returns the provider's message id.
type EmailSender interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

type resendSender struct {
	client *resty.Client
	from   string
}

// NewResendSender sends through the Resend HTTP API.
func NewResendSender(baseURL, apiKey, from string) EmailSender {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)
	return &resendSender{client: client, from: from}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (s *resendSender) Send(ctx context.Context, msg *Message) (string, error) {
	logger.ExternalServiceCall("resend", "send", "template", msg.Template, "recipients", len(msg.To))

	var out resendResponse
	var apiErr resendError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(resendRequest{From: s.from, To: msg.To, Subject: msg.Subject, HTML: msg.HTML, Text: msg.Text}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		err = fmt.Errorf("failed to send email via resend: %w", err)
		logger.ExternalServiceResult("resend", "send", err)
		return "", err
	}
	if resp.IsError() {
		err = fmt.Errorf("resend request failed with status %d: %s", resp.StatusCode(), apiErr.Message)
		logger.ExternalServiceResult("resend", "send", err)
		return "", err
	}

	logger.ExternalServiceResult("resend", "send", nil, "id", out.ID)
	return out.ID, nil
}

type sendgridSender struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

// NewSendGridSender sends through the SendGrid v3 mail API.
func NewSendGridSender(apiKey, from, fromName string) EmailSender {
	return &sendgridSender{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: fromName,
	}
}

func (s *sendgridSender) Send(ctx context.Context, msg *Message) (string, error) {
	logger.ExternalServiceCall("sendgrid", "send", "template", msg.Template, "recipients", len(msg.To))

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(s.fromName, s.from))
	message.Subject = msg.Subject

	personalization := mail.NewPersonalization()
	for _, to := range msg.To {
		personalization.AddTos(mail.NewEmail("", to))
	}
	message.AddPersonalizations(personalization)
	if msg.Text != "" {
		message.AddContent(mail.NewContent("text/plain", msg.Text))
	}
	message.AddContent(mail.NewContent("text/html", msg.HTML))

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		err = fmt.Errorf("failed to send email via sendgrid: %w", err)
		logger.ExternalServiceResult("sendgrid", "send", err)
		return "", err
	}
	if response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		logger.ExternalServiceResult("sendgrid", "send", err)
		return "", err
	}

	var id string
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		id = ids[0]
	}
	logger.ExternalServiceResult("sendgrid", "send", nil, "id", id)
	return id, nil
}
