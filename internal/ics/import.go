package ics

import (
	"context"
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"slotcal/internal/config"
	"slotcal/internal/fetch"
	appLog "slotcal/internal/log"
	"slotcal/internal/rules"
)

const maxOccurrencesPerEvent = 1000

// statusCalendar marks rules that came from a busy calendar rather
// than the sheet; diagnostics only.
const statusCalendar = "Calendar"

// ImportConfig controls how busy events are converted into rules.
type ImportConfig struct {
	// Location anchors the horizon window and slot intervals.
	Location *time.Location

	// RangeStart / RangeEnd bound the expansion window; occurrences
	// outside it cannot affect the board and are not expanded.
	RangeStart time.Time
	RangeEnd   time.Time

	// Grid is the fixed slot grid; SlotMinutes its nominal slot length.
	Grid        []string
	SlotMinutes int
}

// LoadBusy fetches every configured busy calendar and converts its
// events into block rules. Per-source failures are logged and skipped;
// busy import degrades to fewer blocks, never to an error.
func LoadBusy(ctx context.Context, fetcher *fetch.Fetcher, sources []config.ICSConfig, cfg ImportConfig) rules.RuleSet {
	out := make(rules.RuleSet, 0)
	for _, src := range sources {
		if src.URL == "" {
			continue
		}
		id := src.ID
		if id == "" {
			if src.Name != "" {
				id = src.Name
			} else {
				id = src.URL
			}
		}

		res, err := fetcher.Fetch(ctx, fetch.Source{ID: id, URL: src.URL})
		if err != nil {
			appLog.Error("busy calendar fetch failed", err, "id", id, "url", fetch.RedactURL(src.URL))
			continue
		}
		events, err := Parse(id, res.Body)
		if err != nil {
			appLog.Error("busy calendar parse failed", err, "id", id)
			continue
		}
		out = append(out, BlockRules(events, cfg)...)
	}
	return out
}

// BlockRules expands busy events over the window and emits block rules:
// all-day events block whole days, timed events block every grid slot
// whose interval they overlap.
func BlockRules(events []BusyEvent, cfg ImportConfig) rules.RuleSet {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	out := make(rules.RuleSet, 0)
	for _, ev := range events {
		for _, occ := range expandOccurrences(ev, cfg) {
			out = append(out, occurrenceRules(occ, cfg)...)
		}
	}
	return out
}

type occurrence struct {
	start  time.Time
	end    time.Time
	allDay bool
}

func expandOccurrences(ev BusyEvent, cfg ImportConfig) []occurrence {
	// Single event: include it if it intersects the window.
	if ev.RawRRule == "" {
		if ev.End.Before(cfg.RangeStart) || ev.Start.After(cfg.RangeEnd) {
			return nil
		}
		return []occurrence{{start: ev.Start, end: ev.End, allDay: ev.AllDay}}
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("busy RRULE parse failed", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	starts := set.Between(cfg.RangeStart.In(ev.Start.Location()), cfg.RangeEnd.In(ev.Start.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		appLog.Error("busy expansion truncated", errors.New("max occurrences reached"), "uid", ev.UID, "cap", maxOccurrencesPerEvent)
		starts = starts[:maxOccurrencesPerEvent]
	}

	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		if ev.AllDay {
			day := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			out = append(out, occurrence{start: day, end: day.Add(24 * time.Hour), allDay: true})
			continue
		}
		out = append(out, occurrence{start: s, end: s.Add(dur)})
	}
	return out
}

// occurrenceRules converts one concrete occurrence into block rules.
func occurrenceRules(occ occurrence, cfg ImportConfig) rules.RuleSet {
	start := occ.start.In(cfg.Location)
	end := occ.end.In(cfg.Location)
	if occ.allDay && !end.After(start) {
		// Single all-day VEVENTs may omit DTEND.
		end = start.Add(24 * time.Hour)
	}
	if !end.After(start) {
		end = start
	}

	out := make(rules.RuleSet, 0)

	if occ.allDay {
		// An all-day span of [start, end) excludes the end date itself.
		for day := dateOf(start); day.Before(end); day = day.AddDate(0, 0, 1) {
			out = append(out, rules.Rule{Date: day.Format("2006-01-02"), AllDay: true, Status: statusCalendar})
		}
		return out
	}

	for day := dateOf(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		iso := day.Format("2006-01-02")
		for _, label := range cfg.Grid {
			slotStart, ok := slotTime(day, label, cfg.Location)
			if !ok {
				// Slot labels are opaque; unparseable ones just opt out
				// of calendar blocking.
				continue
			}
			slotEnd := slotStart.Add(time.Duration(cfg.SlotMinutes) * time.Minute)
			if slotStart.Before(end) && start.Before(slotEnd) {
				out = append(out, rules.Rule{Date: iso, Slot: label, Status: statusCalendar})
			}
		}
	}
	return out
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func slotTime(day time.Time, label string, loc *time.Location) (time.Time, bool) {
	hm, err := time.Parse("15:04", label)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hm.Hour(), hm.Minute(), 0, 0, loc), true
}
