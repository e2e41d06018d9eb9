// Package pipeline orchestrates the linear ingest-and-report flow:
// fetch, normalize, dedupe, write, aggregate, format, summarize.
package pipeline

import (
	"context"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/caiqy/threatdigest/internal/digest"
	"github.com/caiqy/threatdigest/internal/feed"
	"github.com/caiqy/threatdigest/internal/normalize"
	"github.com/caiqy/threatdigest/internal/store"
	"github.com/caiqy/threatdigest/internal/summarize"
)

// Pipeline wires the collaborators of one ingest-and-summarize run.
type Pipeline struct {
	fetcher     feed.Fetcher
	db          *gorm.DB
	writer      *store.Writer
	summarizers []summarize.Summarizer
}

// New constructs a pipeline over an open store connection.
func New(fetcher feed.Fetcher, db *gorm.DB, summarizers []summarize.Summarizer) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		db:          db,
		writer:      store.NewWriter(db),
		summarizers: summarizers,
	}
}

// IngestReport summarizes what one ingest pass did.
type IngestReport struct {
	Fetched           int
	PulsesWritten     int
	IndicatorsWritten int
	Dropped           int
}

// Ingest fetches the feed and persists the normalized batch. A failed or
// empty fetch is "nothing to ingest": logged, writer not invoked, nil
// error. A persistence failure is fatal for the run.
func (p *Pipeline) Ingest(ctx context.Context) (*IngestReport, error) {
	records, err := p.fetcher.Subscribed(ctx)
	if err != nil {
		log.WithError(err).Warn("feed fetch failed, nothing to ingest")
		return &IngestReport{}, nil
	}
	if len(records) == 0 {
		log.Info("feed returned no pulses, nothing to ingest")
		return &IngestReport{}, nil
	}
	log.WithField("pulses", len(records)).Info("fetched feed")

	res := normalize.Batch(records)
	for _, dropErr := range res.Dropped {
		log.WithError(dropErr).Warn("dropped malformed record")
	}

	pulses := normalize.DedupePulses(res.Pulses)
	indicators := normalize.DedupeIndicators(res.Indicators)

	if err := p.writer.Write(ctx, pulses, indicators); err != nil {
		log.WithError(err).Error("batch write failed, rolled back")
		return nil, err
	}

	report := &IngestReport{
		Fetched:           len(records),
		PulsesWritten:     len(pulses),
		IndicatorsWritten: len(indicators),
		Dropped:           len(res.Dropped),
	}
	log.WithFields(log.Fields{
		"pulses":     report.PulsesWritten,
		"indicators": report.IndicatorsWritten,
		"dropped":    report.Dropped,
	}).Info("batch persisted")
	return report, nil
}

// ServiceSummary is one summarizer's response (or its inline error text).
type ServiceSummary struct {
	Service string
	Text    string
	Failed  bool
}

// SummaryReport carries the digest, the formatted prompt, and the
// per-service responses.
type SummaryReport struct {
	Digest    *digest.Digest
	Prompt    string
	Summaries []ServiceSummary
}

// Summarize aggregates the persisted data, formats the prompt, and fans it
// out to every configured summarizer. Service failures are captured as
// inline text; only an unreachable store is fatal.
func (p *Pipeline) Summarize(ctx context.Context) (*SummaryReport, error) {
	agg := digest.NewAggregator(p.db)
	d, err := agg.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(d.Errors) > 0 {
		log.WithField("failed_queries", len(d.Errors)).Warn("digest is partial")
	}

	report := &SummaryReport{
		Digest: d,
		Prompt: digest.Format(d),
	}
	for _, s := range p.summarizers {
		text, errSum := s.Summarize(ctx, report.Prompt)
		if errSum != nil {
			log.WithError(errSum).WithField("service", s.Name()).Warn("summarization failed")
			report.Summaries = append(report.Summaries, ServiceSummary{
				Service: s.Name(),
				Text:    "error from " + s.Name() + ": " + errSum.Error(),
				Failed:  true,
			})
			continue
		}
		report.Summaries = append(report.Summaries, ServiceSummary{Service: s.Name(), Text: text})
	}
	return report, nil
}

// Run executes the full pipeline. When the feed yields nothing the run
// stops before touching the store, mirroring a normal early exit.
func (p *Pipeline) Run(ctx context.Context) (*IngestReport, *SummaryReport, error) {
	ingest, err := p.Ingest(ctx)
	if err != nil {
		return nil, nil, err
	}
	if ingest.Fetched == 0 {
		return ingest, nil, nil
	}
	summary, err := p.Summarize(ctx)
	if err != nil {
		return ingest, nil, err
	}
	return ingest, summary, nil
}
