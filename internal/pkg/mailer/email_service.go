package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"inventory-assistant-be/internal/config"
	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/acts"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/gomail.v2"
)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService sends transfer acts as attachments.
type EmailService struct {
	dialer      sender
	senderEmail string
	senderName  string
	logger      logger.ILogger
}

var _ acts.EmailTransport = (*EmailService)(nil)

func NewEmailService(cfg config.SMTPConfig, log logger.ILogger) *EmailService {
	var d *gomail.Dialer
	if isLocalRelay(cfg.Host) || cfg.Password == "" {
		// local relays accept mail without AUTH and often present self-signed certificates
		d = &gomail.Dialer{Host: cfg.Host, Port: cfg.Port}
		d.TLSConfig = &tls.Config{ServerName: cfg.Host, InsecureSkipVerify: true}
	} else {
		d = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Email, cfg.Password)
	}
	return &EmailService{dialer: d, senderEmail: cfg.Email, senderName: cfg.SenderName, logger: log}
}

func isLocalRelay(host string) bool {
	if host == "localhost" {
		return true
	}
	for _, prefix := range []string{"127.", "10.", "192.168.", "172."} {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	return false
}

func (s *EmailService) SendFiles(ctx context.Context, recipient string, files []acts.Attachment, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	for _, f := range files {
		if _, err := os.Stat(f.Path); err != nil {
			return fmt.Errorf("attachment %s: %w", f.Label, err)
		}
		m.Attach(f.Path, gomail.Rename(ASCIIName(f.Label)))
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("Mailer", "Failed to send email", map[string]interface{}{
			"recipient":   recipient,
			"attachments": len(files),
			"error":       err,
		})
		return err
	}

	s.logger.Info("Mailer", "Email sent", map[string]interface{}{
		"recipient":   recipient,
		"attachments": len(files),
	})
	return nil
}

var (
	unsafeName   = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// ASCIIName keeps attachment names readable by mail clients that mangle
// non-ASCII filenames. The extension is preserved.
func ASCIIName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	if folded, _, err := transform.String(stripAccents, stem); err == nil {
		stem = folded
	}
	stem = strings.Trim(unsafeName.ReplaceAllString(stem, "_"), "_")
	if stem == "" {
		stem = "act"
	}
	ext = unsafeName.ReplaceAllString(ext, "")
	return stem + ext
}
