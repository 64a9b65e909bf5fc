package email

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
)

func TestBuildMessageRoundTrip(t *testing.T) {
	body := "1. From: a@x.com\nSubject: Hi\nSummary: ok\n\n"
	raw, err := BuildMessage(ComposeInput{
		From:    "me@example.com",
		To:      []string{"me@example.com"},
		Subject: "Today's Email Summary",
		Body:    body,
		Date:    time.Date(2024, time.March, 5, 20, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("build message: %v", err)
	}

	r, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	subject, err := r.Header.Subject()
	if err != nil || subject != "Today's Email Summary" {
		t.Fatalf("unexpected subject %q (%v)", subject, err)
	}
	to, err := r.Header.AddressList("To")
	if err != nil || len(to) != 1 || to[0].Address != "me@example.com" {
		t.Fatalf("unexpected recipients %v (%v)", to, err)
	}

	part, err := r.NextPart()
	if err != nil {
		t.Fatalf("read part: %v", err)
	}
	data, err := io.ReadAll(part.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	// quoted-printable emits CRLF hard line breaks
	if got := strings.ReplaceAll(string(data), "\r\n", "\n"); got != body {
		t.Fatalf("body mismatch:\n%q\n%q", data, body)
	}
}

func TestBuildMessageEncodesNonASCIISubject(t *testing.T) {
	raw, err := BuildMessage(ComposeInput{
		From:    "me@example.com",
		To:      []string{"me@example.com"},
		Subject: "Résumé du jour",
		Body:    "x",
	})
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	if !strings.Contains(string(raw), "Subject: =?utf-8?q?") {
		t.Fatalf("expected encoded subject, got:\n%s", raw)
	}
}

func TestBuildMessageRequiresAddresses(t *testing.T) {
	if _, err := BuildMessage(ComposeInput{To: []string{"a@x.com"}}); err == nil {
		t.Fatalf("expected error without from")
	}
	if _, err := BuildMessage(ComposeInput{From: "a@x.com"}); err == nil {
		t.Fatalf("expected error without recipients")
	}
}
