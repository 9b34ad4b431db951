// Package feed renders the planned horizon as an ICS calendar of open
// slots, so a student can subscribe instead of polling the board. It
// consumes resolved DayViews only and never looks at raw rules.
package feed

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"slotcal/internal/availability"
)

// Config controls feed rendering.
type Config struct {
	// Location anchors slot labels to concrete times.
	Location *time.Location
	// SlotMinutes is the nominal slot length for VEVENT duration.
	SlotMinutes int
	// Summary is the VEVENT summary, e.g. the board's page title.
	Summary string
}

// OpenSlots serializes one VEVENT per available slot across the given
// days. Slot labels that do not parse as HH:MM are skipped; they can
// still be booked on the board but have no meaningful feed time.
func OpenSlots(days []availability.DayView, cfg Config) string {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.SlotMinutes <= 0 {
		cfg.SlotMinutes = 75
	}
	if cfg.Summary == "" {
		cfg.Summary = "Open slot"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)

	now := time.Now()
	for _, day := range days {
		date, err := time.ParseInLocation("2006-01-02", day.Date, cfg.Location)
		if err != nil {
			continue
		}
		for _, slot := range day.Slots {
			if !slot.Available {
				continue
			}
			hm, err := time.Parse("15:04", slot.Label)
			if err != nil {
				continue
			}
			start := time.Date(date.Year(), date.Month(), date.Day(), hm.Hour(), hm.Minute(), 0, 0, cfg.Location)

			uid := fmt.Sprintf("open-%s-%s@slotcal", day.Date, strings.ReplaceAll(slot.Label, ":", ""))
			ev := cal.AddEvent(uid)
			ev.SetDtStampTime(now)
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(time.Duration(cfg.SlotMinutes) * time.Minute))
			ev.SetSummary(cfg.Summary)
		}
	}

	return cal.Serialize()
}
