package email

import (
	"strings"
	"testing"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestExtractSinglePart(t *testing.T) {
	raw := crlf(`From: a@x.com
Subject: Hi
Content-Type: text/plain; charset=utf-8

ok`)

	rec := Extract(raw, ExtractOptions{})
	if rec.From != "a@x.com" || rec.Subject != "Hi" || rec.Body != "ok" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestExtractPrefersFirstInlinePlainPart(t *testing.T) {
	raw := crlf(`From: Alice <alice@example.com>
Subject: Report
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: text/plain; charset=utf-8
Content-Disposition: attachment; filename="notes.txt"

attached notes
--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/html; charset=utf-8

<p>html body</p>
--inner
Content-Type: text/plain; charset=utf-8

plain body
--inner--
--outer
Content-Type: text/plain; charset=utf-8

later plain body
--outer--
`)

	rec := Extract(raw, ExtractOptions{})
	if rec.Body != "plain body" {
		t.Fatalf("expected first inline plain part, got %q", rec.Body)
	}
	if rec.From != "Alice <alice@example.com>" {
		t.Fatalf("unexpected from %q", rec.From)
	}
}

func TestExtractNoPlainPartIsEmpty(t *testing.T) {
	raw := crlf(`From: a@x.com
Subject: Newsletter
Content-Type: multipart/alternative; boundary="b"

--b
Content-Type: text/html; charset=utf-8

<h1>Big news</h1><p>Read <b>this</b>.</p>
--b--
`)

	if rec := Extract(raw, ExtractOptions{}); rec.Body != "" {
		t.Fatalf("expected empty body, got %q", rec.Body)
	}

	rec := Extract(raw, ExtractOptions{HTMLFallback: true})
	if !strings.Contains(rec.Body, "Big news") || strings.Contains(rec.Body, "<h1>") {
		t.Fatalf("expected markdown fallback, got %q", rec.Body)
	}
}

func TestExtractSinglePartHTML(t *testing.T) {
	raw := crlf(`From: news@x.com
Subject: Weekly
Content-Type: text/html; charset=utf-8

<p>Quarterly results are in: revenue grew <b>twelve percent</b>.</p>`)

	rec := Extract(raw, ExtractOptions{})
	if !strings.Contains(rec.Body, "Quarterly results are in") || strings.Contains(rec.Body, "<p>") {
		t.Fatalf("expected converted html body, got %q", rec.Body)
	}
	if rec.Subject != "Weekly" {
		t.Fatalf("unexpected subject %q", rec.Subject)
	}
}

func TestExtractSkipsMalformedHeaderLines(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"line without colon", crlf("From: a@x.com\nSubject: Hello there\nX-Broken header without colon\nContent-Type: text/plain\n\nbody text")},
		{"bare newlines", []byte("From: a@x.com\nSubject: Hello there\nX-Broken header without colon\nContent-Type: text/plain\n\nbody text")},
		{"space in key", crlf("From: a@x.com\nBad Key: value\n  folded onto bad key\nSubject: Hello there\n\nbody text")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Extract(tt.raw, ExtractOptions{})
			if rec.From != "a@x.com" || rec.Subject != "Hello there" || rec.Body != "body text" {
				t.Fatalf("unexpected record: %+v", rec)
			}
		})
	}
}

func TestExtractReplacesInvalidBytes(t *testing.T) {
	raw := append(crlf("From: a@x.com\nSubject: Broken\nContent-Type: text/plain; charset=utf-8\n\nbad "), 0xff, 0xfe, 'e', 'n', 'd')

	rec := Extract(raw, ExtractOptions{})
	if rec.Body != "bad �end" {
		t.Fatalf("expected replacement character, got %q", rec.Body)
	}
}

func TestExtractUnknownCharsetFallsBack(t *testing.T) {
	raw := crlf(`From: a@x.com
Subject: Odd
Content-Type: text/plain; charset=x-made-up

still readable`)

	rec := Extract(raw, ExtractOptions{})
	if rec.Body != "still readable" {
		t.Fatalf("expected raw body for unknown charset, got %q", rec.Body)
	}
}

func TestExtractDecodesEncodedHeadersAndCharset(t *testing.T) {
	raw := crlf(`From: =?utf-8?q?J=C3=BCrgen?= <j@example.de>
Subject: =?iso-8859-1?q?Gr=FC=DFe?=
Content-Type: text/plain; charset=iso-8859-1
Content-Transfer-Encoding: quoted-printable

Sch=F6ne Gr=FC=DFe`)

	rec := Extract(raw, ExtractOptions{})
	if rec.Subject != "Grüße" {
		t.Fatalf("unexpected subject %q", rec.Subject)
	}
	if rec.From != "Jürgen <j@example.de>" {
		t.Fatalf("unexpected from %q", rec.From)
	}
	if rec.Body != "Schöne Grüße" {
		t.Fatalf("unexpected body %q", rec.Body)
	}
}

func TestExtractGarbageDoesNotPanic(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("no header terminator"), {0x00, 0xff, 0x0a}} {
		_ = Extract(raw, ExtractOptions{HTMLFallback: true})
	}
}
