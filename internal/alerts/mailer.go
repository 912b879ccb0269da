package alerts

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/zillah777/fixia-platform-sub000/internal/config"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, env EmailEnvelope) error
}

// Mailer sends plain text email over SMTP with TLS, throttled so a burst of
// notifications cannot trip the provider's rate limits. Without a host it
// only logs.
type Mailer struct {
	cfg     config.SMTP
	limiter *rate.Limiter
	deliver func(ctx context.Context, to string, msg []byte) error
}

func NewMailer(cfg config.SMTP, perSecond float64, burst int) *Mailer {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	m := &Mailer{cfg: cfg, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
	m.deliver = m.smtpDeliver
	return m
}

// headerSafe folds CR and LF to spaces so a value cannot start a new header.
var headerSafe = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// compose builds the RFC 5322 message.
func compose(from string, env EmailEnvelope) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerSafe.Replace(from))
	fmt.Fprintf(&b, "To: %s\r\n", headerSafe.Replace(env.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerSafe.Replace(env.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	contentType := "text/plain"
	lb := strings.ToLower(env.Body)
	if strings.Contains(lb, "<html") || strings.Contains(lb, "<body") || strings.Contains(lb, "<!doctype html") {
		contentType = "text/html"
	}
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	b.WriteString("\r\n" + env.Body + "\r\n")
	return []byte(b.String())
}

func (m *Mailer) Send(ctx context.Context, env EmailEnvelope) error {
	if env.To == "" {
		return fmt.Errorf("mail: empty recipient")
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mail throttle: %w", err)
	}
	if !m.cfg.Enabled() {
		log.Printf("[notify] smtp disabled, would send to=%s subject=%q", env.To, env.Subject)
		return nil
	}
	return m.deliver(ctx, env.To, compose(m.cfg.From, env))
}

func (m *Mailer) smtpDeliver(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: m.cfg.Host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if m.cfg.User != "" {
		auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}

// InlineMail sends email in the background without a queue. It is used
// when no Redis is configured.
type InlineMail struct {
	Sender Sender
}

func (m InlineMail) EnqueueEmail(_ context.Context, p EmailPayload) error {
	go func() {
		if err := m.Sender.Send(context.Background(), p.Envelope); err != nil {
			log.Printf("[notify][ERROR] %s email to user=%s failed: %v", p.Type, p.UserID, err)
		}
	}()
	return nil
}
