package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"time"

	"maildigest/internal/config"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
)

type Client interface {
	Login(username, password string) error
	Logout() error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
}

type Service struct {
	Connector func(cfg config.Config) (Client, error)
	Logger    *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	return &Service{Connector: Connect, Logger: logger}
}

func Connect(cfg config.Config) (Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.IMAP.Host, cfg.IMAP.Port)
	var c *imapclient.Client
	var err error

	tlsConfig := &tls.Config{
		ServerName:         cfg.IMAP.Host,
		InsecureSkipVerify: cfg.IMAP.InsecureSkipVerify,
	}

	if cfg.IMAP.TLS {
		c, err = imapclient.DialTLS(addr, tlsConfig)
	} else {
		c, err = imapclient.Dial(addr)
		if err == nil && cfg.IMAP.StartTLS {
			if err := c.StartTLS(tlsConfig); err != nil {
				_ = c.Logout()
				return nil, fmt.Errorf("imap starttls: %w", err)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", addr, err)
	}

	if err := c.Login(cfg.Auth.Username, cfg.Auth.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login as %s: %w", cfg.Auth.Username, err)
	}

	return c, nil
}

func (s *Service) withClient(cfg config.Config, fn func(Client) error) error {
	connector := s.Connector
	if connector == nil {
		connector = Connect
	}
	client, err := connector(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Logout(); err != nil && s.Logger != nil {
			s.Logger.Debug("imap logout failed", "error", err)
		}
	}()
	return fn(client)
}

// FetchSince returns every message in the configured mailbox received on or
// after the calendar date of since, in search order. The date is taken in
// since's own location; the server compares at day granularity.
func (s *Service) FetchSince(ctx context.Context, cfg config.Config, since time.Time) ([]RawMessage, error) {
	var messages []RawMessage

	err := s.withClient(cfg, func(c Client) error {
		if _, err := c.Select(cfg.IMAP.Mailbox, true); err != nil {
			return fmt.Errorf("select %s: %w", cfg.IMAP.Mailbox, err)
		}

		criteria := imap.NewSearchCriteria()
		criteria.Since = time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, since.Location())

		uids, err := c.UidSearch(criteria)
		if err != nil {
			return fmt.Errorf("search since %s: %w", criteria.Since.Format("02-Jan-2006"), err)
		}
		if s.Logger != nil {
			s.Logger.Debug("imap search", "mailbox", cfg.IMAP.Mailbox, "since", criteria.Since.Format("02-Jan-2006"), "matches", len(uids))
		}
		if len(uids) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fetched, err := fetchBodies(c, uids)
		if err != nil {
			return err
		}

		messages = make([]RawMessage, 0, len(uids))
		for _, uid := range uids {
			raw, ok := fetched[uid]
			if !ok {
				if s.Logger != nil {
					s.Logger.Warn("message vanished before fetch", "uid", uid)
				}
				continue
			}
			messages = append(messages, RawMessage{UID: uid, Raw: raw})
		}
		return nil
	})

	return messages, err
}

// fetchBodies loads the full RFC 822 content of uids without setting \Seen.
func fetchBodies(c Client, uids []uint32) (map[uint32][]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	ch := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, ch)
	}()

	bodies := make(map[uint32][]byte, len(uids))
	var readErr error
	for msg := range ch {
		if msg == nil || readErr != nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		data, err := io.ReadAll(body)
		if err != nil {
			readErr = fmt.Errorf("read message %d: %w", msg.Uid, err)
			continue
		}
		bodies[msg.Uid] = data
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if readErr != nil {
		return nil, readErr
	}
	return bodies, nil
}
