// Package ics imports busy blocks from subscribed calendars. Events in
// a busy calendar become specific-date block rules, so a lesson slot
// that collides with the operator's own calendar is never offered.
package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "slotcal/internal/log"
)

// BusyEvent is the normalized representation of a VEVENT from a busy
// calendar, before recurrence expansion.
type BusyEvent struct {
	SourceID string
	UID      string
	Summary  string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time
}

// Parse parses a single ICS payload into busy events. Individual
// malformed VEVENTs are logged and skipped; one bad event must not
// discard the calendar.
func Parse(sourceID string, body []byte) ([]BusyEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]BusyEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(sourceID, ve)
		if perr != nil {
			appLog.Error("busy vevent parse failed", perr, "id", sourceID)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("busy calendar parsed", "id", sourceID, "event_count", len(events))
	return events, nil
}

func parseVEvent(sourceID string, ve *ical.VEvent) (BusyEvent, error) {
	out := BusyEvent{SourceID: sourceID}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	// The library's helpers handle VALUE=DATE and TZID forms; a missing
	// DTSTART yields a zero time, which falls outside any horizon window.
	start, _ := ve.GetStartAt()
	end, _ := ve.GetEndAt()
	out.Start = start
	out.End = end

	// All-day detection: VALUE=DATE or a DTSTART without a time part.
	if dtStart := ve.GetProperty(ical.ComponentPropertyDtStart); dtStart != nil {
		if params := dtStart.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				out.AllDay = true
			}
		}
		if !strings.Contains(dtStart.Value, "T") {
			out.AllDay = true
		}
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE may appear multiple times and hold comma-joined values.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	return out, nil
}

// parseICSTime parses a basic ICS date/date-time string.
func parseICSTime(v string) (time.Time, error) {
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, time.Local)
	default:
		return time.ParseInLocation("20060102", v, time.Local)
	}
}
