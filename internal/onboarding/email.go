package onboarding

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/smtp"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/systmms/homelab/internal/config"
)

// WelcomeSubject is the subject line of onboarding emails.
const WelcomeSubject = "Welcome - Set Up Your Account"

// headerPattern matches common email header injection patterns.
var headerPattern = regexp.MustCompile(`(?i)\b(bcc|cc|to|from|subject|reply-to|x-[a-z0-9-]+)\s*:`)

const welcomeText = `Hi {{.DisplayName}},

Your account has been created! Your username is '{{.Username}}'. To get started, please set your password by visiting:

{{.ResetURL}}

Click on "Reset password" and enter your email address to receive a password reset link.

If you have any questions, please contact your administrator.
`

const welcomeHTML = `<html>
  <body>
    <p>Hi {{.DisplayName}},</p>

    <p>Your account has been created! Your username is '{{.Username}}'. To get started, please set your password by visiting:</p>

    <p><a href="{{.ResetURL}}">{{.ResetURL}}</a></p>

    <p>Click on <strong>"Reset password"</strong> and enter your email address to receive a password reset link.</p>

    <p>If you have any questions, please contact your administrator.</p>
  </body>
</html>
`

var (
	welcomeTextTemplate = template.Must(template.New("welcome_text").Parse(welcomeText))
	welcomeHTMLTemplate = htmltemplate.Must(htmltemplate.New("welcome_html").Parse(welcomeHTML))
)

// WelcomeData fills the welcome templates.
type WelcomeData struct {
	DisplayName string
	Username    string
	ResetURL    string
}

// SMTPSendFunc is the function signature for sending emails via SMTP.
type SMTPSendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends welcome emails through one SMTP relay.
type Mailer struct {
	smtp       config.SMTPConfig
	from       string
	resetURL   string
	smtpSender SMTPSendFunc
	now        func() time.Time
}

// NewMailer creates a mailer from the onboarding configuration.
func NewMailer(cfg *config.OnboardingConfig) *Mailer {
	return &Mailer{
		smtp:       cfg.SMTP,
		from:       cfg.EmailFrom,
		resetURL:   cfg.AutheliaURL,
		smtpSender: smtp.SendMail,
		now:        time.Now,
	}
}

// SendWelcome emails to the new user how to set a password.
func (m *Mailer) SendWelcome(ctx context.Context, to string, data WelcomeData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data.ResetURL = m.resetURL

	msg, err := m.buildMIMEMessage(to, data)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.smtp.Host, m.smtp.Port)

	var auth smtp.Auth
	if m.smtp.Username != "" {
		auth = smtp.PlainAuth("", m.smtp.Username, m.smtp.Password, m.smtp.Host)
	}

	if err := m.smtpSender(addr, auth, sanitizeHeader(m.from), []string{sanitizeHeader(to)}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// buildMIMEMessage creates a multipart/alternative message with a plain-text
// and an HTML part.
func (m *Mailer) buildMIMEMessage(to string, data WelcomeData) ([]byte, error) {
	var text, htmlBody bytes.Buffer
	if err := welcomeTextTemplate.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	if err := welcomeHTMLTemplate.Execute(&htmlBody, data); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	boundary := fmt.Sprintf("----=_Part_%d", m.now().UnixNano())

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", sanitizeHeader(m.from))
	fmt.Fprintf(&buf, "To: %s\r\n", sanitizeHeader(to))
	fmt.Fprintf(&buf, "Subject: %s\r\n", WelcomeSubject)
	fmt.Fprintf(&buf, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	buf.WriteString("\r\n")

	writePart(&buf, boundary, "text/plain", text.String())
	writePart(&buf, boundary, "text/html", htmlBody.String())

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes(), nil
}

func writePart(buf *bytes.Buffer, boundary, contentType, body string) {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	fmt.Fprintf(buf, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	buf.WriteString("\r\n")
}

// sanitizeHeader strips CR/LF and header-like tokens from a header value.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")

	s = headerPattern.ReplaceAllString(s, "")

	return strings.Join(strings.Fields(s), " ")
}
