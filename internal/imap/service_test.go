package imap

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"maildigest/internal/config"

	"github.com/emersion/go-imap"
)

type mockClient struct {
	messages  map[uint32]string
	order     []uint32
	searchErr error
	selectErr error

	selected  string
	readOnly  bool
	criteria  *imap.SearchCriteria
	fetchedIt []imap.FetchItem
	loggedOut bool
}

func (m *mockClient) Login(username, password string) error { return nil }
func (m *mockClient) Logout() error {
	m.loggedOut = true
	return nil
}
func (m *mockClient) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	m.selected = name
	m.readOnly = readOnly
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	return &imap.MailboxStatus{Name: name}, nil
}
func (m *mockClient) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	m.criteria = criteria
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.order, nil
}

// UidFetch answers in descending UID order to prove that FetchSince keeps
// the search order rather than the arrival order of fetch responses.
func (m *mockClient) UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	m.fetchedIt = items
	for i := len(m.order) - 1; i >= 0; i-- {
		uid := m.order[i]
		raw, ok := m.messages[uid]
		if !ok {
			continue
		}
		ch <- &imap.Message{
			Uid: uid,
			Body: map[*imap.BodySectionName]imap.Literal{
				{}: bytes.NewBufferString(raw),
			},
		}
	}
	close(ch)
	return nil
}

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.IMAP.Host = "imap.example.com"
	return cfg
}

func TestFetchSinceKeepsSearchOrder(t *testing.T) {
	mock := &mockClient{
		order: []uint32{3, 7, 9},
		messages: map[uint32]string{
			3: "Subject: a\r\n\r\nfirst",
			7: "Subject: b\r\n\r\nsecond",
			9: "Subject: c\r\n\r\nthird",
		},
	}
	svc := &Service{Connector: func(cfg config.Config) (Client, error) { return mock, nil }}

	loc := time.FixedZone("IST", 5*3600+1800)
	since := time.Date(2024, time.March, 5, 19, 30, 0, 0, loc)

	msgs, err := svc.FetchSince(context.Background(), testConfig(), since)
	if err != nil {
		t.Fatalf("fetch since: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []uint32{3, 7, 9} {
		if msgs[i].UID != want {
			t.Fatalf("message %d: expected uid %d, got %d", i, want, msgs[i].UID)
		}
	}
	if string(msgs[1].Raw) != "Subject: b\r\n\r\nsecond" {
		t.Fatalf("unexpected raw body %q", msgs[1].Raw)
	}

	if mock.selected != "INBOX" || !mock.readOnly {
		t.Fatalf("expected read-only INBOX select, got %q readOnly=%v", mock.selected, mock.readOnly)
	}
	if got := mock.criteria.Since.Format("02-Jan-2006"); got != "05-Mar-2024" {
		t.Fatalf("expected since date 05-Mar-2024, got %s", got)
	}
	if mock.criteria.Since.Hour() != 0 || mock.criteria.Since.Minute() != 0 {
		t.Fatalf("expected midnight, got %s", mock.criteria.Since)
	}
	peek := false
	for _, item := range mock.fetchedIt {
		if item == "BODY.PEEK[]" {
			peek = true
		}
	}
	if !peek {
		t.Fatalf("expected BODY.PEEK[] fetch, got %v", mock.fetchedIt)
	}
	if !mock.loggedOut {
		t.Fatalf("expected logout to be called")
	}
}

func TestFetchSinceNoMatches(t *testing.T) {
	mock := &mockClient{}
	svc := &Service{Connector: func(cfg config.Config) (Client, error) { return mock, nil }}

	msgs, err := svc.FetchSince(context.Background(), testConfig(), time.Now())
	if err != nil {
		t.Fatalf("fetch since: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
	if !mock.loggedOut {
		t.Fatalf("expected logout to be called")
	}
}

func TestFetchSinceLogsOutOnError(t *testing.T) {
	searchErr := errors.New("search exploded")
	mock := &mockClient{searchErr: searchErr}
	svc := &Service{Connector: func(cfg config.Config) (Client, error) { return mock, nil }}

	_, err := svc.FetchSince(context.Background(), testConfig(), time.Now())
	if !errors.Is(err, searchErr) {
		t.Fatalf("expected search error, got %v", err)
	}
	if !mock.loggedOut {
		t.Fatalf("expected logout after failure")
	}
}

func TestFetchSinceConnectFailure(t *testing.T) {
	connErr := errors.New("authentication failed")
	svc := &Service{Connector: func(cfg config.Config) (Client, error) { return nil, connErr }}

	_, err := svc.FetchSince(context.Background(), testConfig(), time.Now())
	if !errors.Is(err, connErr) {
		t.Fatalf("expected connect error, got %v", err)
	}
}
