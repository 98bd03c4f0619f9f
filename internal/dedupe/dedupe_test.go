package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchetl/internal/ga4"
)

func baseEvent() ga4.SearchEvent {
	return ga4.SearchEvent{
		EventDate:      time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		EventTimestamp: 1760000000000,
		EventName:      ga4.EventSearchSubmit,
		UserPseudoID:   "u1",
		CountryCode:    "DE",
		DeviceCategory: "desktop",
		TrafficSource:  "direct",
	}
}

func TestDropMissingIdentity(t *testing.T) {
	noTS := baseEvent()
	noTS.EventTimestamp = 0
	noUser := baseEvent()
	noUser.UserPseudoID = ""

	out, stats := Dedupe([]ga4.SearchEvent{noTS, noUser, baseEvent()})
	assert.Len(t, out, 1)
	assert.Equal(t, 2, stats.DroppedMissingID)
	assert.Equal(t, 0, stats.Duplicates)
}

func TestExactDuplicatesCollapse(t *testing.T) {
	a := baseEvent()
	b := baseEvent() // identical
	c := baseEvent()
	c.EventTimestamp++ // differs in one field

	out, stats := Dedupe([]ga4.SearchEvent{a, b, c, b})
	require.Len(t, out, 2)
	assert.Equal(t, 2, stats.Duplicates)

	// First occurrence wins and order is preserved.
	assert.Equal(t, a.EventTimestamp, out[0].EventTimestamp)
	assert.Equal(t, c.EventTimestamp, out[1].EventTimestamp)
}

func TestNilAndEmptyTermDiffer(t *testing.T) {
	withNil := baseEvent()
	withEmpty := baseEvent()
	empty := ""
	withEmpty.SearchTerm = &empty

	out, stats := Dedupe([]ga4.SearchEvent{withNil, withEmpty})
	assert.Len(t, out, 2)
	assert.Equal(t, 0, stats.Duplicates)
}

func TestNilAndZeroResultCountDiffer(t *testing.T) {
	withNil := baseEvent()
	withZero := baseEvent()
	zero := int64(0)
	withZero.ResultCount = &zero

	out, _ := Dedupe([]ga4.SearchEvent{withNil, withZero})
	assert.Len(t, out, 2)
}

func TestDedupeEmptyInput(t *testing.T) {
	out, stats := Dedupe(nil)
	assert.Empty(t, out)
	assert.Equal(t, Stats{}, stats)
}

func TestOutputNeverExceedsInput(t *testing.T) {
	events := make([]ga4.SearchEvent, 0, 100)
	for i := 0; i < 100; i++ {
		ev := baseEvent()
		ev.EventTimestamp = int64(1760000000000 + i%10)
		events = append(events, ev)
	}
	out, stats := Dedupe(events)
	assert.Len(t, out, 10)
	assert.Equal(t, 90, stats.Duplicates)
}
