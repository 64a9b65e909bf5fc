package smtp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"maildigest/internal/config"
)

var ErrPlaintext = errors.New("smtp: refusing to authenticate without tls")

// Send delivers msg over implicit TLS or STARTTLS. The session is closed on
// every return path.
func Send(cfg config.Config, from string, recipients []string, msg []byte) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients provided")
	}

	c, err := dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := deliver(c, cfg, from, recipients, msg); err != nil {
		return err
	}
	return c.Quit()
}

func dial(cfg config.Config) (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	host := cfg.SMTP.Host
	tlsConfig := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
	}

	switch {
	case cfg.SMTP.TLS:
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: 30 * time.Second}, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("dial smtp %s: %w", addr, err)
		}
		c, err := smtp.NewClient(conn, host)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("smtp handshake: %w", err)
		}
		return c, nil
	case cfg.SMTP.StartTLS:
		c, err := smtp.Dial(addr)
		if err != nil {
			return nil, fmt.Errorf("dial smtp %s: %w", addr, err)
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("smtp starttls: %w", err)
		}
		return c, nil
	default:
		return nil, ErrPlaintext
	}
}

func deliver(c *smtp.Client, cfg config.Config, from string, recipients []string, msg []byte) error {
	auth := smtp.PlainAuth("", cfg.Auth.Username, cfg.Auth.Password, cfg.SMTP.Host)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
