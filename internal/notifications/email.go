package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"loreforge/internal/config"
)

// SendFunc delivers one message. It matches smtp.SendMail.
type SendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails health reports and failures.
type EmailNotifier struct {
	cfg  config.Email
	send SendFunc
	now  func() time.Time
}

// NewEmailNotifier mails through cfg. A nil send picks implicit TLS when
// cfg.SSL is set and smtp.SendMail (which upgrades with STARTTLS when the
// server offers it) otherwise.
func NewEmailNotifier(cfg config.Email, send SendFunc) *EmailNotifier {
	n := &EmailNotifier{cfg: cfg, send: send, now: time.Now}
	if n.send == nil {
		if cfg.SSL {
			n.send = sendImplicitTLS(cfg.SMTPHost)
		} else {
			n.send = smtp.SendMail
		}
	}
	return n
}

// Publish implements Service. Only alert-worthy events are mailed.
func (e *EmailNotifier) Publish(ctx context.Context, event Event, payload Payload) error {
	subject, body, ok := e.render(event, payload)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	from := strings.TrimSpace(e.cfg.From)
	if from == "" {
		from = e.cfg.To[0]
	}
	msg := buildMessage(from, e.cfg.To, subject, body)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPHost)
	}
	addr := net.JoinHostPort(e.cfg.SMTPHost, strconv.Itoa(e.cfg.SMTPPort))
	if err := e.send(addr, auth, from, e.cfg.To, msg); err != nil {
		return fmt.Errorf("email notification %s: %w", event, err)
	}
	return nil
}

func (e *EmailNotifier) render(event Event, p Payload) (string, string, bool) {
	host := hostname()
	day := p.textOr("day", "latest")
	var overall string
	switch event {
	case EventHealthReport:
		overall = p.textOr("overall", "RED")
	case EventPublishFailed, EventAtomFailed:
		overall = "RED"
	default:
		return "", "", false
	}

	lines := []string{
		"utc=" + e.now().UTC().Format(time.RFC3339),
		"host=" + host,
		"day=" + day,
		"event=" + string(event),
		"overall=" + overall,
	}
	for _, key := range []string{"atom", "gate", "registry", "content_id", "rc", "reason"} {
		if v := p.text(key); v != "" {
			lines = append(lines, key+"="+v)
		}
	}
	if details := p.text("details"); details != "" {
		lines = append(lines, "", "details:", details)
	}
	subject := fmt.Sprintf("[Loreforge Pipeline] %s | %s | %s", overall, host, day)
	return subject, strings.Join(lines, "\n") + "\n", true
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return buf.Bytes()
}

func sendImplicitTLS(host string) SendFunc {
	return func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		dialer := &net.Dialer{Timeout: 30 * time.Second}
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: host})
		if err != nil {
			return fmt.Errorf("dial smtp: %w", err)
		}
		client, err := smtp.NewClient(conn, host)
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("smtp handshake: %w", err)
		}
		defer client.Close()
		if auth != nil {
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
		if err := client.Mail(from); err != nil {
			return err
		}
		for _, rcpt := range to {
			if err := client.Rcpt(rcpt); err != nil {
				return err
			}
		}
		w, err := client.Data()
		if err != nil {
			return err
		}
		if _, err := w.Write(msg); err != nil {
			_ = w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		return client.Quit()
	}
}
