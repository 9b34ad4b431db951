// Package availability resolves the rule set into per-slot OPEN/BLOCKED
// decisions over the display horizon.
//
// Precedence, highest first:
//  1. a specific-date rule for an individual slot decides that slot
//  2. a specific-date all-day rule decides the whole day (open or blocked)
//  3. a recurring weekday all-day rule blocks the day
//  4. a recurring weekday slot rule blocks just that slot
//  5. otherwise the slot is open
//
// Duplicate rows for the same key combine with OR-semantics: one
// explicit open marker wins over any number of block markers, so an
// editor can add an exception row without deleting conflicting ones.
package availability

import (
	"time"

	"slotcal/internal/rules"
)

// SlotView is one grid slot's resolved state for one day.
type SlotView struct {
	Label     string `json:"label"`
	Available bool   `json:"available"`
}

// DayView is the resolved state of one calendar day.
//
// DayBlocked and ForcedOpen describe the day-level outcome; Slots is
// authoritative per slot. A renderer shows a single closed banner when
// DayBlocked && !ForcedOpen, but must still honor an individually open
// slot on such a day (that is how a one-off extra lesson appears on an
// otherwise-closed day).
type DayView struct {
	Date       string     `json:"date"`
	Weekday    string     `json:"weekday"`
	DayBlocked bool       `json:"day_blocked"`
	ForcedOpen bool       `json:"forced_open"`
	Slots      []SlotView `json:"slots"`
}

// Resolve computes the DayView for one date. It is a pure, total
// function of its inputs; with no rules everything is open.
func Resolve(rs rules.RuleSet, date, weekday string, grid []string) DayView {
	var specific, recurring rules.RuleSet
	for _, r := range rs {
		switch {
		case r.Date == date:
			specific = append(specific, r)
		case r.Weekday == weekday:
			recurring = append(recurring, r)
		}
	}

	view := DayView{Date: date, Weekday: weekday}

	// Day level: a specific-date all-day rule takes absolute precedence
	// over the weekly default.
	hasSpecificAllDay := false
	for _, r := range specific {
		if !r.AllDay {
			continue
		}
		hasSpecificAllDay = true
		if r.Open {
			view.ForcedOpen = true
		}
	}
	switch {
	case hasSpecificAllDay:
		view.DayBlocked = !view.ForcedOpen
	default:
		for _, r := range recurring {
			if r.AllDay {
				view.DayBlocked = true
				break
			}
		}
	}

	view.Slots = make([]SlotView, 0, len(grid))
	for _, label := range grid {
		view.Slots = append(view.Slots, SlotView{
			Label:     label,
			Available: slotAvailable(specific, recurring, view, label),
		})
	}
	return view
}

// slotAvailable decides one slot independently of the others.
func slotAvailable(specific, recurring rules.RuleSet, view DayView, label string) bool {
	// A specific-date rule for this exact slot decides it outright,
	// overriding the day-level outcome in either direction.
	hasSlotSpecific := false
	for _, r := range specific {
		if r.AllDay || r.Slot != label {
			continue
		}
		hasSlotSpecific = true
		if r.Open {
			return true
		}
	}
	if hasSlotSpecific {
		return false
	}

	if view.ForcedOpen {
		return true
	}
	if view.DayBlocked {
		return false
	}
	for _, r := range recurring {
		if !r.AllDay && r.Slot == label {
			return false
		}
	}
	return true
}

// Plan resolves the horizon: one DayView per date from today through
// today+horizonDays-1, ascending.
func Plan(rs rules.RuleSet, grid []string, today time.Time, horizonDays int) []DayView {
	if horizonDays <= 0 {
		horizonDays = 14
	}
	out := make([]DayView, 0, horizonDays)
	for i := 0; i < horizonDays; i++ {
		d := today.AddDate(0, 0, i)
		out = append(out, Resolve(rs, d.Format("2006-01-02"), d.Weekday().String(), grid))
	}
	return out
}
