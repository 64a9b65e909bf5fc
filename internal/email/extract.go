package email

import (
	"bytes"
	"io"
	"mime"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/emersion/go-message"
	// Register charset decoders (windows-1252, iso-8859-*, koi8-r, etc.)
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const replacement = "\uFFFD"

// MessageRecord is the readable form of one fetched message.
type MessageRecord struct {
	From    string
	Subject string
	Body    string
}

type ExtractOptions struct {
	// HTMLFallback converts the first inline text/html part of a multipart
	// message to Markdown when it carries no plain text part. Single-part
	// HTML is always converted.
	HTMLFallback bool
}

// Extract decodes the sender, subject and primary plain text body of raw.
// It never fails: undecodable content degrades to replacement characters or
// an empty body, and malformed header lines are skipped.
func Extract(raw []byte, opts ExtractOptions) MessageRecord {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !isRecoverable(err) {
		entity, err = message.Read(bytes.NewReader(dropMalformedHeaderLines(raw)))
	}
	if entity == nil || (err != nil && !isRecoverable(err)) {
		return MessageRecord{}
	}

	header := mail.Header{Header: entity.Header}
	record := MessageRecord{
		From:    decodeField(header, "From"),
		Subject: decodeField(header, "Subject"),
	}

	var html string
	mr := entity.MultipartReader()
	switch {
	case mr != nil:
		record.Body, html = walkParts(mr)
		if record.Body == "" && opts.HTMLFallback && html != "" {
			record.Body = htmlToText(html)
		}
	case isHTML(entity):
		html = readText(entity.Body)
		if record.Body = htmlToText(html); record.Body == "" {
			record.Body = strings.TrimSpace(html)
		}
	default:
		record.Body = readText(entity.Body)
	}

	return record
}

// walkParts scans parts depth-first and returns the first inline plain text
// body together with the first inline HTML body.
func walkParts(mr message.MultipartReader) (plain, html string) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return plain, html
		}
		if err != nil && (part == nil || !isRecoverable(err)) {
			return plain, html
		}

		if nested := part.MultipartReader(); nested != nil {
			p, h := walkParts(nested)
			if html == "" {
				html = h
			}
			if p != "" {
				return p, html
			}
			continue
		}

		switch {
		case isInlineText(part, "text/plain"):
			return readText(part.Body), html
		case html == "" && isInlineText(part, "text/html"):
			html = readText(part.Body)
		}
	}
}

func isInlineText(e *message.Entity, want string) bool {
	mediaType, _, _ := e.Header.ContentType()
	if mediaType == "" {
		mediaType = "text/plain"
	}
	return strings.EqualFold(mediaType, want) && !isAttachment(e)
}

func isHTML(e *message.Entity) bool {
	mediaType, _, _ := e.Header.ContentType()
	return strings.EqualFold(mediaType, "text/html")
}

func isAttachment(e *message.Entity) bool {
	disposition, _, _ := e.Header.ContentDisposition()
	return strings.EqualFold(disposition, "attachment")
}

// readText drains r and replaces invalid UTF-8 sequences. Unknown charsets
// reach this point undecoded, so replacement is the only decoding applied.
func readText(r io.Reader) string {
	data, err := io.ReadAll(r)
	if err != nil && len(data) == 0 {
		return ""
	}
	return strings.ToValidUTF8(string(data), replacement)
}

func htmlToText(html string) string {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}

var wordDecoder = &mime.WordDecoder{CharsetReader: message.CharsetReader}

func decodeField(header mail.Header, key string) string {
	if text, err := header.Text(key); err == nil {
		return strings.ToValidUTF8(text, replacement)
	}
	value := header.Get(key)
	if decoded, err := wordDecoder.DecodeHeader(value); err == nil {
		return strings.ToValidUTF8(decoded, replacement)
	}
	return strings.ToValidUTF8(value, replacement)
}

// dropMalformedHeaderLines removes header lines that are neither a valid
// "Key: value" field nor a continuation of a kept field. The body is
// returned untouched.
func dropMalformedHeaderLines(raw []byte) []byte {
	end := len(raw)
	if i := bytes.Index(raw, []byte("\n\r\n")); i >= 0 {
		end = i + 1
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 && i+1 < end {
		end = i + 1
	}

	var out bytes.Buffer
	out.Grow(len(raw))
	kept := false
	for _, line := range bytes.SplitAfter(raw[:end], []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if kept {
				out.Write(line)
			}
			continue
		}
		kept = isHeaderField(line)
		if kept {
			out.Write(line)
		}
	}
	out.Write(raw[end:])
	return out.Bytes()
}

func isHeaderField(line []byte) bool {
	i := bytes.IndexByte(line, ':')
	if i <= 0 {
		return false
	}
	for _, c := range line[:i] {
		if c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}

func isRecoverable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}
