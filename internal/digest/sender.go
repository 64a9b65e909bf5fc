package digest

import (
	"context"
	"fmt"
	"time"

	"maildigest/internal/config"
	"maildigest/internal/email"
	"maildigest/internal/smtp"
)

// Sender mails a report from the configured account to itself.
type Sender struct {
	cfg  config.Config
	send func(cfg config.Config, from string, recipients []string, msg []byte) error
	now  func() time.Time
}

func NewSender(cfg config.Config) *Sender {
	return &Sender{cfg: cfg, send: smtp.Send, now: time.Now}
}

func (s *Sender) Send(ctx context.Context, report Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	owner := s.cfg.Auth.Username
	msg, err := email.BuildMessage(email.ComposeInput{
		From:    owner,
		To:      []string{owner},
		Subject: report.Subject,
		Body:    report.Body,
		Date:    s.now(),
	})
	if err != nil {
		return fmt.Errorf("build digest message: %w", err)
	}

	if err := s.send(s.cfg, owner, []string{owner}, msg); err != nil {
		return fmt.Errorf("deliver digest to %s: %w", owner, err)
	}
	return nil
}
