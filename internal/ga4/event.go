// Package ga4 defines the raw GA4 event model as it lands in the daily
// export partitions, plus the flattened search-event record the pipeline
// works with.
//
// Raw events arrive as newline-delimited JSON objects (one event per line),
// mirroring the GA4 BigQuery export shape: a fixed envelope plus an
// event_params array of key/value pairs where each value carries exactly one
// of string_value or int_value.
package ga4

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Event names emitted by the global search frontend.
const (
	EventSearchSubmit = "global_search_submit"
	EventSearchClick  = "global_search_click_result"
	EventSearchRefine = "global_search_refinement"
)

// Parameter keys recognized by the extractor. Any other keys are ignored.
const (
	ParamEventCategory = "event_category"
	ParamEventAction   = "event_action"
	ParamEventLabel    = "event_label"
	ParamSearchTerm    = "search_term"
	ParamResultCount   = "search_result_count"
	ParamPageName      = "page_name"
)

// ParamValue holds a typed GA4 parameter value. Exactly one field is set.
type ParamValue struct {
	StringValue *string `json:"string_value,omitempty"`
	IntValue    *int64  `json:"int_value,omitempty"`
}

// Param is a single entry of the event_params array.
type Param struct {
	Key   string     `json:"key"`
	Value ParamValue `json:"value"`
}

// Geo carries the geographic descriptors attached to an event.
type Geo struct {
	Country string `json:"country"`
}

// Device carries the device descriptors attached to an event.
type Device struct {
	Category string `json:"category"`
}

// TrafficSource carries the acquisition descriptors attached to an event.
type TrafficSource struct {
	Source string `json:"source"`
}

// RawEvent is one user-interaction record exactly as ingested by the landing
// connector. It is immutable once landed; the pipeline never writes back.
type RawEvent struct {
	EventDate      string        `json:"event_date"`      // "20060102"
	EventTimestamp int64         `json:"event_timestamp"` // unix milliseconds
	EventName      string        `json:"event_name"`
	UserPseudoID   string        `json:"user_pseudo_id"`
	Params         []Param       `json:"event_params"`
	Geo            Geo           `json:"geo"`
	Device         Device        `json:"device"`
	TrafficSource  TrafficSource `json:"traffic_source"`
}

// StringParam returns the string value for key and whether it was present
// with a string payload.
func (e *RawEvent) StringParam(key string) (string, bool) {
	for _, p := range e.Params {
		if p.Key == key && p.Value.StringValue != nil {
			return *p.Value.StringValue, true
		}
	}
	return "", false
}

// IntParam returns the integer value for key and whether it was present with
// an integer payload.
func (e *RawEvent) IntParam(key string) (int64, bool) {
	for _, p := range e.Params {
		if p.Key == key && p.Value.IntValue != nil {
			return *p.Value.IntValue, true
		}
	}
	return 0, false
}

// Date parses the event_date envelope field ("20060102").
func (e *RawEvent) Date() (time.Time, error) {
	t, err := time.ParseInLocation("20060102", e.EventDate, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("event_date %q: %w", e.EventDate, err)
	}
	return t, nil
}

// SearchEvent is a RawEvent restricted to the global-search category with its
// parameters flattened into named fields. SearchTerm and ResultCount are nil
// when the corresponding parameter was absent.
type SearchEvent struct {
	EventDate      time.Time
	EventTimestamp int64
	EventName      string
	UserPseudoID   string
	SearchTerm     *string
	ResultCount    *int64
	EventAction    string
	EventLabel     string
	PageName       string
	CountryCode    string
	DeviceCategory string
	TrafficSource  string
}

// Decoder reads newline-delimited RawEvent objects from a landing partition.
// A malformed line yields a per-line error without poisoning the rest of the
// stream, so callers can count bad lines and keep going.
type Decoder struct {
	sc   *bufio.Scanner
	line int
}

// NewDecoder wraps r, which must contain one JSON object per line.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	// GA4 export lines can be large; a 10 MiB cap is generous.
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	return &Decoder{sc: sc}
}

// Next returns the next raw event and its 1-based line number. io.EOF signals
// an exhausted stream; any other error refers to the reported line only.
func (d *Decoder) Next() (RawEvent, int, error) {
	for d.sc.Scan() {
		d.line++
		b := bytes.TrimSpace(d.sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var ev RawEvent
		if err := json.Unmarshal(b, &ev); err != nil {
			return RawEvent{}, d.line, fmt.Errorf("line %d: decode: %w", d.line, err)
		}
		return ev, d.line, nil
	}
	if err := d.sc.Err(); err != nil {
		return RawEvent{}, d.line, fmt.Errorf("read: %w", err)
	}
	return RawEvent{}, d.line, io.EOF
}
