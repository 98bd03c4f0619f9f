// Package enrich implements the third pipeline stage: pure, row-wise
// derivation of the categorical and flag fields stored on the fact table.
// No derivation depends on any other row.
package enrich

import (
	"strconv"
	"strings"
	"time"

	"searchetl/internal/ga4"
	"searchetl/internal/warehouse"
)

// Stats counts row-level quality findings. Malformed click positions do not
// fail the batch; the row proceeds with a null position and is counted here
// for data-quality review.
type Stats struct {
	MalformedClickPos int
}

// Enricher derives fact rows from deduplicated search events. ProcessedAt
// and DataDate are stamped onto every row: ProcessedAt is captured once per
// run, DataDate is the explicit processing date (never an implicit clock
// read).
type Enricher struct {
	Regions     *RegionMap
	ProcessedAt time.Time
	DataDate    time.Time

	// OnMalformed is invoked when a click event carries an unparseable
	// position. May be nil.
	OnMalformed func(ev *ga4.SearchEvent, reason string)
}

// Enrich derives fact rows for all events.
func (e *Enricher) Enrich(events []ga4.SearchEvent) ([]warehouse.FactRow, Stats) {
	var stats Stats
	out := make([]warehouse.FactRow, 0, len(events))
	for i := range events {
		out = append(out, e.enrichOne(&events[i], &stats))
	}
	return out, stats
}

func (e *Enricher) enrichOne(ev *ga4.SearchEvent, stats *Stats) warehouse.FactRow {
	row := warehouse.FactRow{
		EventDate:      ev.EventDate,
		EventTimestamp: ev.EventTimestamp,
		EventName:      ev.EventName,
		UserPseudoID:   ev.UserPseudoID,
		SearchTerm:     ev.SearchTerm,
		ResultCount:    ev.ResultCount,
		SearchType:     ClassifySearchType(ev.EventLabel),
		IsZeroResult:   ev.ResultCount != nil && *ev.ResultCount == 0,
		CountryCode:    ev.CountryCode,
		Region:         e.Regions.Region(ev.CountryCode),
		DeviceCategory: ev.DeviceCategory,
		TrafficSource:  ev.TrafficSource,
		ProcessedAt:    e.ProcessedAt,
		DataDate:       e.DataDate,
	}

	if ev.EventName == ga4.EventSearchClick {
		pos, reason := ParseClickPosition(ev.EventLabel)
		if reason != "" {
			stats.MalformedClickPos++
			if e.OnMalformed != nil {
				e.OnMalformed(ev, reason)
			}
		}
		row.ClickPosition = pos
	}

	return row
}

// ClassifySearchType classifies an event label into a search type. Patterns
// are checked in fixed priority order and the first match wins; a label that
// happens to satisfy several patterns is classified by the earliest one.
func ClassifySearchType(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "default"):
		return warehouse.SearchTypeDefault
	case strings.Contains(l, "auto suggestion"):
		return warehouse.SearchTypeAutoSuggestion
	case strings.Contains(l, "keyword box"):
		return warehouse.SearchTypeKeywordBox
	default:
		return warehouse.SearchTypeOther
	}
}

// ParseClickPosition extracts the result position from a pipe-delimited click
// label such as "results|3|https://x". It returns (nil, reason) when the
// label has no second field or the field is not an integer; the reason string
// is empty on success.
func ParseClickPosition(label string) (*int64, string) {
	parts := strings.Split(label, "|")
	if len(parts) < 2 {
		return nil, "label has no position field"
	}
	n, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return nil, "position is not an integer"
	}
	return &n, ""
}
