package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"confsched/internal/ics"
	appLog "confsched/internal/log"
	"confsched/internal/metrics"
	"confsched/internal/model"
	"confsched/internal/normalize"
	"confsched/internal/source"
)

// Loader turns the configured sources into a normalized event list.
type Loader struct {
	Fetcher *source.Fetcher
	Sources []source.Source
	Expand  ics.ExpandConfig
}

// Result is the outcome of one load.
type Result struct {
	Events []model.Event
	Stats  normalize.Stats
	// Raw is the body of the first CSV source that parsed, for passthrough.
	// It stays nil when only ICS feeds are configured.
	Raw []byte
}

// Load fetches and parses every source, then normalizes all rows together
// so that Main and Side rows split across feeds still merge. It fails only
// when no source produced any table: that error wraps
// source.ErrSourceUnavailable or source.ErrMalformedTable. Partial failures
// are logged and the remaining sources are used.
func (l *Loader) Load(ctx context.Context) (Result, error) {
	if len(l.Sources) == 0 {
		return Result{}, fmt.Errorf("%w: no sources configured", source.ErrSourceUnavailable)
	}

	fetched, fetchErr := l.Fetcher.FetchAll(ctx, l.Sources)
	if len(fetched) == 0 {
		return Result{}, fetchErr
	}

	var (
		rows     []model.RawRow
		raw      []byte
		parseErr error
		parsed   int
	)
	for _, res := range fetched {
		srcRows, err := parseRows(res, l.Expand)
		if err != nil {
			appLog.Error("source parse failed", err, "id", res.Source.ID)
			parseErr = multierr.Append(parseErr, fmt.Errorf("%s: %w", res.Source.ID, err))
			continue
		}
		if raw == nil && formatOf(res.Source) == source.FormatCSV {
			raw = res.Body
		}
		parsed++
		rows = append(rows, srcRows...)
	}
	if parsed == 0 {
		return Result{}, multierr.Append(fetchErr, parseErr)
	}

	events, stats := normalize.NormalizeWithStats(rows)
	appLog.Info("events loaded",
		"sources", parsed,
		"rows", stats.Rows,
		"skipped", stats.Skipped,
		"merged", stats.Merged,
		"events", stats.Events,
	)
	return Result{Events: events, Stats: stats, Raw: raw}, nil
}

// Refresh loads into c. On failure the catalog is emptied and the error is
// returned for the caller to surface.
func (l *Loader) Refresh(ctx context.Context, c *Catalog) error {
	res, err := l.Load(ctx)
	if err != nil {
		appLog.Error("event load failed; serving empty catalog", err)
		metrics.ObserveLoad(false, 0, 0, 0)
		c.Fail(err)
		return err
	}
	metrics.ObserveLoad(true, len(res.Events), res.Stats.Skipped, res.Stats.Merged)
	c.Replace(res.Events, res.Raw)
	return nil
}

func parseRows(res source.FetchResult, expand ics.ExpandConfig) ([]model.RawRow, error) {
	switch formatOf(res.Source) {
	case source.FormatICS:
		parsed, err := ics.ParseICS(res.Source.ID, res.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", source.ErrMalformedTable, err)
		}
		return ics.ExpandRows(parsed, expand)
	default:
		return source.ParseCSV(bytes.NewReader(res.Body))
	}
}

// formatOf honours an explicit format and otherwise guesses from the file
// extension, defaulting to CSV.
func formatOf(src source.Source) source.Format {
	if src.Format != "" {
		return source.Format(strings.ToLower(string(src.Format)))
	}
	name := src.Path
	if name == "" {
		name = src.URL
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			name = name[:i]
		}
	}
	if strings.EqualFold(filepath.Ext(name), ".ics") {
		return source.FormatICS
	}
	return source.FormatCSV
}

// IsUnavailable reports whether err means no source could be read.
func IsUnavailable(err error) bool {
	return errors.Is(err, source.ErrSourceUnavailable)
}
