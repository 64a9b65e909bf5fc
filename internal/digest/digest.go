// Package digest renders and delivers the daily summary report.
package digest

import (
	"strconv"
	"strings"
)

const (
	Subject   = "Today's Email Summary"
	EmptyBody = "No emails received today."
)

type SummaryRecord struct {
	From    string
	Subject string
	Summary string
}

type Report struct {
	Subject string
	Body    string
}

// Compose numbers records from 1 in the order given. It has no side effects,
// so identical input always renders identical output.
func Compose(records []SummaryRecord) Report {
	if len(records) == 0 {
		return Report{Subject: Subject, Body: EmptyBody}
	}

	var b strings.Builder
	for i, r := range records {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". From: ")
		b.WriteString(r.From)
		b.WriteString("\nSubject: ")
		b.WriteString(r.Subject)
		b.WriteString("\nSummary: ")
		b.WriteString(r.Summary)
		b.WriteString("\n\n")
	}
	return Report{Subject: Subject, Body: b.String()}
}
