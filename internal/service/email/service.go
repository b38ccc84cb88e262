package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v3"

	"activity-hub/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type Service interface {
	SendNotificationEmail(ctx context.Context, toEmail, recipientName, title, body, link string) error
}

// sender is the slice of the resend client the service uses.
type sender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type service struct {
	emails sender
	config *config.Config
}

// NewService returns nil when no Resend API key is configured; callers treat
// a nil Service as "email disabled".
func NewService(cfg *config.Config) Service {
	if cfg.ResendAPIKey == "" {
		return nil
	}
	client := resend.NewClient(cfg.ResendAPIKey)
	return &service{emails: client.Emails, config: cfg}
}

func render(data interface{}) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, "layout.html", data); err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}
	return body.String(), nil
}

func (s *service) sendEmail(ctx context.Context, toEmail, subject string, data interface{}) error {
	html, err := render(data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("Activity Hub <%s>", s.config.FromEmail),
		To:      []string{toEmail},
		Html:    html,
		Subject: subject,
	}

	_, err = s.emails.SendWithContext(ctx, params)
	return err
}

func (s *service) SendNotificationEmail(ctx context.Context, toEmail, recipientName, title, body, link string) error {
	if link != "" {
		link = fmt.Sprintf("https://%s%s", s.config.Domain, link)
	}
	data := struct {
		Title string
		Name  string
		Body  string
		Link  string
	}{
		Title: title,
		Name:  recipientName,
		Body:  body,
		Link:  link,
	}
	return s.sendEmail(ctx, toEmail, title, data)
}
