// Package job runs the fetch, summarize, compose and deliver pipeline once.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"maildigest/internal/config"
	"maildigest/internal/digest"
	"maildigest/internal/email"
	"maildigest/internal/imap"
)

// FallbackSummary stands in for a summary the capability failed to produce.
const FallbackSummary = "[summary unavailable]"

type Stage string

const (
	StageFetching    Stage = "fetching"
	StageExtracting  Stage = "extracting"
	StageSummarizing Stage = "summarizing"
	StageComposing   Stage = "composing"
	StageSending     Stage = "sending"
)

type Fetcher interface {
	FetchSince(ctx context.Context, cfg config.Config, since time.Time) ([]imap.RawMessage, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, body string) (string, error)
}

type Sender interface {
	Send(ctx context.Context, report digest.Report) error
}

type Options struct {
	Fetcher    Fetcher
	Summarizer Summarizer
	Sender     Sender
	Logger     *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// Preview, when set, receives the report instead of the sender.
	Preview io.Writer
}

type Runner struct {
	cfg     config.Config
	loc     *time.Location
	opts    Options
	extract email.ExtractOptions
	logger  *slog.Logger
}

// Result describes one finished run.
type Result struct {
	Fetched    int
	Summarized int
	Fallbacks  int
	Delivered  bool
	Report     digest.Report
}

func New(cfg config.Config, opts Options) (*Runner, error) {
	if opts.Fetcher == nil || opts.Summarizer == nil {
		return nil, errors.New("job: fetcher and summarizer are required")
	}
	if opts.Sender == nil && opts.Preview == nil {
		return nil, errors.New("job: sender or preview writer is required")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		cfg:     cfg,
		loc:     loc,
		opts:    opts,
		extract: email.ExtractOptions{HTMLFallback: cfg.Extract.HTMLFallback},
		logger:  logger,
	}, nil
}

// Run executes one pass of the pipeline. Only a fetch failure is returned as
// an error; summarization failures degrade per message and delivery failures
// are logged.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result
	now := r.opts.Now().In(r.loc)
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
	started := time.Now()

	r.logger.Info("digest run started", "stage", StageFetching, "since", since.Format("2006-01-02"), "timezone", r.loc.String())
	raws, err := r.opts.Fetcher.FetchSince(ctx, r.cfg, since)
	if err != nil {
		r.logger.Error("digest run aborted", "stage", StageFetching, "error", err)
		return res, fmt.Errorf("fetch messages: %w", err)
	}
	res.Fetched = len(raws)

	r.logger.Debug("extracting messages", "stage", StageExtracting, "count", len(raws))
	records := make([]email.MessageRecord, len(raws))
	for i, raw := range raws {
		records[i] = email.Extract(raw.Raw, r.extract)
	}

	summaries := make([]digest.SummaryRecord, len(records))
	for i, rec := range records {
		summary, err := r.opts.Summarizer.Summarize(ctx, rec.Body)
		if err != nil {
			r.logger.Warn("summary unavailable", "stage", StageSummarizing, "uid", raws[i].UID, "subject", rec.Subject, "error", err)
			summary = FallbackSummary
			res.Fallbacks++
		} else {
			res.Summarized++
		}
		summaries[i] = digest.SummaryRecord{From: rec.From, Subject: rec.Subject, Summary: summary}
	}

	res.Report = digest.Compose(summaries)
	r.logger.Debug("digest composed", "stage", StageComposing, "entries", len(summaries), "summarized", res.Summarized, "fallbacks", res.Fallbacks)

	if r.opts.Preview != nil {
		if _, err := io.WriteString(r.opts.Preview, res.Report.Body); err != nil {
			r.logger.Error("digest preview failed", "error", err)
		}
		r.logger.Info("digest run finished", "messages", res.Fetched, "preview", true, "elapsed", time.Since(started))
		return res, nil
	}

	if err := r.opts.Sender.Send(ctx, res.Report); err != nil {
		r.logger.Error("digest delivery failed", "stage", StageSending, "error", err)
		return res, nil
	}
	res.Delivered = true
	r.logger.Info("digest run finished", "messages", res.Fetched, "fallbacks", res.Fallbacks, "elapsed", time.Since(started))
	return res, nil
}
