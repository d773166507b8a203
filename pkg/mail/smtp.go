package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/petalhouse/petalhouse-backend/config"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
)

// Message is a single HTML mail.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type smtpSender struct {
	host     string
	port     string
	from     string
	password string
}

// NewSMTPSender returns a sender for cfg. Without credentials it runs in
// development mode and only logs the mail.
func NewSMTPSender(cfg config.SMTPConfig) Sender {
	return &smtpSender{
		host:     cfg.Host,
		port:     cfg.Port,
		from:     cfg.From,
		password: cfg.Password,
	}
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mail has no recipients")
	}

	if s.from == "" || s.password == "" {
		logger.Info("[DEV MODE] mail not sent", map[string]interface{}{
			"to":      msg.To,
			"subject": msg.Subject,
		})
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	body := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		s.from, strings.Join(msg.To, ", "), msg.Subject, msg.HTML,
	))

	auth := smtp.PlainAuth("", s.from, s.password, s.host)
	if err := smtp.SendMail(s.host+":"+s.port, auth, s.from, msg.To, body); err != nil {
		logger.Error("Failed to send mail", err, map[string]interface{}{
			"to":      msg.To,
			"subject": msg.Subject,
		})
		return fmt.Errorf("send mail: %w", err)
	}

	logger.Debug("Mail sent", map[string]interface{}{
		"to":      msg.To,
		"subject": msg.Subject,
	})
	return nil
}
