// Package extract implements the first pipeline stage: reading the raw-event
// landing partition for one processing date, filtering to the global-search
// category, and flattening GA4 event parameters into named fields.
package extract

import (
	"context"
	"fmt"
	"io"
	"time"

	"searchetl/internal/datasource/file"
	"searchetl/internal/ga4"
)

// DefaultCategory is the event category this pipeline processes.
const DefaultCategory = "global search"

// Stats counts what the extractor saw in one partition.
type Stats struct {
	Read      int // raw lines decoded successfully
	ParseErrs int // lines that could not be decoded
	Filtered  int // events outside the target category
	Extracted int // flattened search events returned
}

// Extractor reads one landing partition and emits flattened search events.
// It never mutates source data.
type Extractor struct {
	Source   *file.PartitionSource
	Category string // defaults to DefaultCategory when empty

	// OnParseErr is invoked for each undecodable line (fail-soft, mirrors the
	// row-level error policy). May be nil.
	OnParseErr func(line int, err error)
}

// Extract returns all search events for date. A missing landing partition
// surfaces as file.ErrMissingPartition and is fatal to the run.
func (x *Extractor) Extract(ctx context.Context, date time.Time) ([]ga4.SearchEvent, Stats, error) {
	var stats Stats

	category := x.Category
	if category == "" {
		category = DefaultCategory
	}

	src, err := x.Source.Open(ctx, date)
	if err != nil {
		return nil, stats, err
	}
	defer src.Close()

	var out []ga4.SearchEvent
	dec := ga4.NewDecoder(src)
	for {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		raw, line, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.ParseErrs++
			if x.OnParseErr != nil {
				x.OnParseErr(line, err)
			}
			continue
		}
		stats.Read++

		if cat, _ := raw.StringParam(ga4.ParamEventCategory); cat != category {
			stats.Filtered++
			continue
		}

		ev, err := Flatten(&raw)
		if err != nil {
			stats.ParseErrs++
			if x.OnParseErr != nil {
				x.OnParseErr(line, err)
			}
			continue
		}
		out = append(out, ev)
		stats.Extracted++
	}

	return out, stats, nil
}

// Flatten projects the recognized event parameters of a raw global-search
// event into the named fields of a SearchEvent. Absent parameters yield nil
// (nullable) fields; the envelope fields are copied as-is.
func Flatten(raw *ga4.RawEvent) (ga4.SearchEvent, error) {
	date, err := raw.Date()
	if err != nil {
		return ga4.SearchEvent{}, fmt.Errorf("flatten: %w", err)
	}

	ev := ga4.SearchEvent{
		EventDate:      date,
		EventTimestamp: raw.EventTimestamp,
		EventName:      raw.EventName,
		UserPseudoID:   raw.UserPseudoID,
		CountryCode:    raw.Geo.Country,
		DeviceCategory: raw.Device.Category,
		TrafficSource:  raw.TrafficSource.Source,
	}

	if term, ok := raw.StringParam(ga4.ParamSearchTerm); ok {
		ev.SearchTerm = &term
	}
	if n, ok := raw.IntParam(ga4.ParamResultCount); ok {
		ev.ResultCount = &n
	}
	if v, ok := raw.StringParam(ga4.ParamEventAction); ok {
		ev.EventAction = v
	}
	if v, ok := raw.StringParam(ga4.ParamEventLabel); ok {
		ev.EventLabel = v
	}
	if v, ok := raw.StringParam(ga4.ParamPageName); ok {
		ev.PageName = v
	}

	return ev, nil
}
