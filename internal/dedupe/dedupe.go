// Package dedupe implements the second pipeline stage: dropping rows that
// are unusable for grouping or joins (missing timestamp or user identifier)
// and collapsing exact-duplicate events to a single occurrence.
//
// Duplicate detection keys on a canonical encoding of every field, hashed
// with xxh3-128 so the winner map stays small on large partitions. The first
// occurrence wins; relative input order is preserved.
package dedupe

import (
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"searchetl/internal/ga4"
)

// Stats counts rows removed by the stage.
type Stats struct {
	DroppedMissingID int // rows lacking timestamp or user id
	Duplicates       int // exact-duplicate rows collapsed
}

// Dedupe returns the surviving events. Every output row has a non-zero
// timestamp and a non-empty user id, and output length never exceeds input
// length.
func Dedupe(in []ga4.SearchEvent) ([]ga4.SearchEvent, Stats) {
	var stats Stats
	out := make([]ga4.SearchEvent, 0, len(in))
	seen := make(map[xxh3.Uint128]struct{}, len(in))

	for i := range in {
		ev := &in[i]
		if ev.EventTimestamp == 0 || ev.UserPseudoID == "" {
			stats.DroppedMissingID++
			continue
		}
		key := xxh3.HashString128(canonical(ev))
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, *ev)
	}

	return out, stats
}

// canonical renders every field of ev into an unambiguous string. Nil and
// empty values encode differently so optional fields cannot alias.
func canonical(ev *ga4.SearchEvent) string {
	var b strings.Builder
	b.Grow(128)

	field := func(s string) {
		b.WriteString(s)
		b.WriteByte(0x1f)
	}
	optStr := func(p *string) {
		if p == nil {
			b.WriteByte(0x00)
		} else {
			b.WriteString(*p)
		}
		b.WriteByte(0x1f)
	}

	field(ev.EventDate.Format("2006-01-02"))
	field(strconv.FormatInt(ev.EventTimestamp, 10))
	field(ev.EventName)
	field(ev.UserPseudoID)
	optStr(ev.SearchTerm)
	if ev.ResultCount == nil {
		b.WriteByte(0x00)
	} else {
		b.WriteString(strconv.FormatInt(*ev.ResultCount, 10))
	}
	b.WriteByte(0x1f)
	field(ev.EventAction)
	field(ev.EventLabel)
	field(ev.PageName)
	field(ev.CountryCode)
	field(ev.DeviceCategory)
	field(ev.TrafficSource)

	return b.String()
}
