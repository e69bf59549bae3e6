package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"clicksprout/internal/config"
	"clicksprout/models"
)

// EmailSender delivers one multipart message
type EmailSender interface {
	SendEmail(recipients []string, subject, htmlBody, textBody string) error
}

// SMTPEmailSender sends mail through the configured SMTP relay
type SMTPEmailSender struct {
	config *config.Config
}

func NewSMTPEmailSender(cfg *config.Config) *SMTPEmailSender {
	return &SMTPEmailSender{config: cfg}
}

// Enabled reports whether SMTP is configured well enough to send
func (s *SMTPEmailSender) Enabled() bool {
	return s.config.SMTPHost != "" && s.config.SMTPFrom != "" && len(s.config.AdminEmails) > 0
}

// SendEmail sends a generic email with HTML and text bodies
func (s *SMTPEmailSender) SendEmail(recipients []string, subject, htmlBody, textBody string) error {
	auth := smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPass, s.config.SMTPHost)
	addr := fmt.Sprintf("%s:%s", s.config.SMTPHost, s.config.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.SMTPFrom, recipients, composeMessage(s.config.SMTPFrom, recipients, subject, htmlBody, textBody))
}

func composeMessage(from string, recipients []string, subject, htmlBody, textBody string) []byte {
	message := fmt.Sprintf(`From: %s
To: %s
Subject: %s
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="clicksprout-alert"

--clicksprout-alert
Content-Type: text/plain; charset=UTF-8

%s

--clicksprout-alert
Content-Type: text/html; charset=UTF-8

%s

--clicksprout-alert--`,
		from,
		strings.Join(recipients, ", "),
		subject,
		textBody,
		htmlBody)
	return []byte(message)
}

// alertMailData feeds the alert templates
type alertMailData struct {
	Title     string
	Message   string
	Severity  string
	Platform  string
	PostID    string
	CreatedAt string
}

// EmailNotifier mails high and critical alerts to the admin list
type EmailNotifier struct {
	sender     EmailSender
	recipients []string
}

func NewEmailNotifier(sender EmailSender, recipients []string) *EmailNotifier {
	var clean []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, r)
		}
	}
	return &EmailNotifier{sender: sender, recipients: clean}
}

func (n *EmailNotifier) NotifyAlert(ctx context.Context, alert models.SystemAlert) error {
	if len(n.recipients) == 0 {
		return fmt.Errorf("no recipients configured for alert %s", alert.ID)
	}
	subject, htmlBody, textBody, err := renderAlertMail(alert)
	if err != nil {
		return fmt.Errorf("failed to generate email content: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- n.sender.SendEmail(n.recipients, subject, htmlBody, textBody) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func renderAlertMail(alert models.SystemAlert) (subject, htmlBody, textBody string, err error) {
	data := alertMailData{
		Title:     alert.Title,
		Message:   alert.Message,
		Severity:  strings.ToUpper(string(alert.Severity)),
		Platform:  string(alert.Platform),
		PostID:    alert.PostID,
		CreatedAt: alert.CreatedAt.Format(time.RFC1123),
	}

	subjectT, err := template.New("subject").Parse(alertSubjectTemplate)
	if err != nil {
		return "", "", "", err
	}
	htmlT, err := template.New("html").Parse(alertHTMLTemplate)
	if err != nil {
		return "", "", "", err
	}
	textT, err := template.New("text").Parse(alertTextTemplate)
	if err != nil {
		return "", "", "", err
	}

	var subjectBuf, htmlBuf, textBuf bytes.Buffer
	if err := subjectT.Execute(&subjectBuf, data); err != nil {
		return "", "", "", err
	}
	if err := htmlT.Execute(&htmlBuf, data); err != nil {
		return "", "", "", err
	}
	if err := textT.Execute(&textBuf, data); err != nil {
		return "", "", "", err
	}
	return subjectBuf.String(), htmlBuf.String(), textBuf.String(), nil
}

// Email templates
const alertSubjectTemplate = `[{{.Severity}}] ClickSprout: {{.Title}}`

const alertHTMLTemplate = `<html><body>
<h2 style="color: red;">{{.Title}}</h2>
<p>{{.Message}}</p>
<ul>
<li>Severity: {{.Severity}}</li>
{{if .Platform}}<li>Platform: {{.Platform}}</li>{{end}}
{{if .PostID}}<li>Post: {{.PostID}}</li>{{end}}
<li>Raised: {{.CreatedAt}}</li>
</ul>
<p>Resolve or acknowledge this alert from the posting engine dashboard.</p>
</body></html>`

const alertTextTemplate = `{{.Title}}

{{.Message}}

Severity: {{.Severity}}
{{if .Platform}}Platform: {{.Platform}}
{{end}}{{if .PostID}}Post: {{.PostID}}
{{end}}Raised: {{.CreatedAt}}

Resolve or acknowledge this alert from the posting engine dashboard.`
