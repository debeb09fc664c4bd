package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"

	"github.com/monocle-dev/taskhub/internal/config"
)

const productName = "Task Manager"

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// MailTransport delivers a rendered email.
type MailTransport interface {
	Send(ctx context.Context, email Email) error
}

// Mailer renders markdown templates and hands them to a transport. Delivery
// failures are logged and swallowed.
type Mailer struct {
	transport MailTransport
	markdown  goldmark.Markdown
}

func NewMailer(transport MailTransport) *Mailer {
	return &Mailer{transport: transport, markdown: goldmark.New()}
}

// NewMailTransport picks the transport named in cfg.Driver.
func NewMailTransport(cfg config.MailConfig) (MailTransport, error) {
	switch cfg.Driver {
	case "", "log":
		return LogTransport{}, nil
	case "resend":
		return &ResendTransport{From: cfg.From, APIKey: cfg.ResendAPIKey, Endpoint: resendEndpoint, Client: &http.Client{Timeout: 10 * time.Second}}, nil
	case "smtp":
		return &SMTPTransport{From: cfg.From, Host: cfg.SMTPHost, Port: cfg.SMTPPort, User: cfg.SMTPUser, Pass: cfg.SMTPPass}, nil
	default:
		return nil, fmt.Errorf("unsupported MAIL_DRIVER %q", cfg.Driver)
	}
}

func (m *Mailer) SendVerification(ctx context.Context, to, username, link string) {
	body := fmt.Sprintf("Hi **%s**,\n\nWelcome to %s!\n\nTo verify your email please open the link below:\n\n[Verify your email](%s)\n\nThe link expires in 20 minutes.\n\nNeed help, or have queries? Just reply to this email.\n", username, productName, link)
	m.deliver(ctx, to, "Please verify your email", body)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, username, link string) {
	body := fmt.Sprintf("Hi **%s**,\n\nWe got a request to reset the password of your account.\n\nTo reset your password open the link below:\n\n[Reset password](%s)\n\nThe link expires in 20 minutes. If you did not ask for this, ignore this email.\n", username, link)
	m.deliver(ctx, to, "Password reset", body)
}

func (m *Mailer) deliver(ctx context.Context, to, subject, markdown string) {
	var html bytes.Buffer
	if err := m.markdown.Convert([]byte(markdown), &html); err != nil {
		log.WithFields(log.Fields{"to": to, "subject": subject, "error": err}).Error("render email")
		return
	}

	email := Email{To: to, Subject: subject, Text: markdown, HTML: html.String()}
	if err := m.transport.Send(ctx, email); err != nil {
		log.WithFields(log.Fields{"to": to, "subject": subject, "error": err}).Error("email delivery failed")
	}
}

// LogTransport writes emails to the log instead of sending them.
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, email Email) error {
	log.WithFields(log.Fields{"to": email.To, "subject": email.Subject}).Info(email.Text)
	return nil
}

const resendEndpoint = "https://api.resend.com/emails"

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

type ResendTransport struct {
	From     string
	APIKey   string
	Endpoint string
	Client   *http.Client
}

func (t *ResendTransport) Send(ctx context.Context, email Email) error {
	body, err := sonic.Marshal(resendRequest{
		From:    t.From,
		To:      []string{email.To},
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    email.Text,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}
	return nil
}

type SMTPTransport struct {
	From string
	Host string
	Port string
	User string
	Pass string
}

func (t *SMTPTransport) Send(_ context.Context, email Email) error {
	msg := strings.Join([]string{
		"From: " + t.From,
		"To: " + email.To,
		"Subject: " + email.Subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		email.HTML,
	}, "\r\n")

	var auth smtp.Auth
	if t.User != "" {
		auth = smtp.PlainAuth("", t.User, t.Pass, t.Host)
	}

	if err := smtp.SendMail(t.Host+":"+t.Port, auth, t.From, []string{email.To}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
