package rules

import (
	"strings"
	"time"

	appLog "slotcal/internal/log"
)

// Table is a raw tabular payload as delivered by a source: one header
// row plus data rows. Cells are untrimmed strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// statusBusy is assigned to every row when the source carries no
// status column at all.
const statusBusy = "Busy"

// allDaySentinel marks a rule covering the entire day.
const allDaySentinel = "ALL"

// Normalize turns a raw table into a RuleSet.
//
// It reconciles header spellings (Date / legacy Day_or_Date), repairs a
// source that collapsed into a single text column, trims every cell,
// canonicalizes dates to YYYY-MM-DD and weekday names to title case,
// and drops rows without a usable match or time value. It never fails;
// garbage in means fewer rules out.
func Normalize(t Table) RuleSet {
	t = repairCollapsedColumns(t)

	matchCol, slotCol, statusCol := findColumns(t.Header)
	if matchCol < 0 || slotCol < 0 {
		appLog.Debug("rule table has no usable columns", "header_count", len(t.Header))
		return RuleSet{}
	}

	out := make(RuleSet, 0, len(t.Rows))
	for _, row := range t.Rows {
		r, ok := normalizeRow(row, matchCol, slotCol, statusCol)
		if !ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// repairCollapsedColumns handles a source that degenerated into a
// single text column (the producer failed to split fields): cell
// values are split on commas, and if the header itself contains the
// word "Date" and splits into the same number of parts as the data,
// the split header parts become the field names. Otherwise positional
// Date/Time/Status names are assumed.
func repairCollapsedColumns(t Table) Table {
	if len(t.Header) != 1 {
		return t
	}

	rows := make([][]string, 0, len(t.Rows))
	width := 0
	for _, row := range t.Rows {
		if len(row) == 0 {
			continue
		}
		parts := strings.Split(row[0], ",")
		if len(parts) > width {
			width = len(parts)
		}
		rows = append(rows, parts)
	}

	headerParts := strings.Split(t.Header[0], ",")
	if !strings.Contains(t.Header[0], "Date") || len(headerParts) != width {
		fallback := []string{"Date", "Time", "Status"}
		if width < len(fallback) {
			headerParts = fallback[:width]
		} else {
			headerParts = fallback
		}
	}

	return Table{Header: headerParts, Rows: rows}
}

// findColumns locates the match, slot and status columns. The status
// column may be absent (-1); rows then default to a block status.
func findColumns(header []string) (matchCol, slotCol, statusCol int) {
	matchCol, slotCol, statusCol = -1, -1, -1
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch {
		case strings.EqualFold(h, "Date"), strings.EqualFold(h, "Day_or_Date"):
			if matchCol < 0 {
				matchCol = i
			}
		case strings.EqualFold(h, "Time"), strings.EqualFold(h, "Slot"):
			if slotCol < 0 {
				slotCol = i
			}
		case strings.Contains(strings.ToLower(h), "status"):
			if statusCol < 0 {
				statusCol = i
			}
		}
	}
	return matchCol, slotCol, statusCol
}

func normalizeRow(row []string, matchCol, slotCol, statusCol int) (Rule, bool) {
	matchCell := cellAt(row, matchCol)
	slotCell := cellAt(row, slotCol)
	if matchCell == "" || slotCell == "" {
		// Unusable row from a non-technical editor; drop, don't error.
		return Rule{}, false
	}

	var r Rule
	if iso, ok := parseLooseDate(matchCell); ok {
		r.Date = iso
	} else {
		r.Weekday = canonicalWeekday(matchCell)
	}

	if strings.EqualFold(slotCell, allDaySentinel) {
		r.AllDay = true
	} else {
		// Verbatim; a misspelled label never matches the grid and is inert.
		r.Slot = slotCell
	}

	statusCell := cellAt(row, statusCol)
	if statusCol < 0 || statusCell == "" {
		statusCell = statusBusy
	}
	r.Status = statusCell
	r.Open = strings.Contains(strings.ToUpper(statusCell), "OPEN")

	return r, true
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Date layouts are tried in two passes: month-first, then day-first.
// External spreadsheets are not guaranteed to emit ISO form, so the
// first layout that yields a valid date wins and is canonicalized.
var (
	monthFirstLayouts = []string{
		"2006-01-02",
		"2006/01/02",
		"1/2/2006",
		"1-2-2006",
		"January 2, 2006",
		"Jan 2, 2006",
	}
	dayFirstLayouts = []string{
		"2/1/2006",
		"2-1-2006",
		"2.1.2006",
		"2 January 2006",
		"2 Jan 2006",
	}
)

// parseLooseDate attempts calendar-date parsing month-first then
// day-first, returning the canonical YYYY-MM-DD form of the first
// layout that accepts the value.
func parseLooseDate(s string) (string, bool) {
	for _, layout := range monthFirstLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02"), true
		}
	}
	for _, layout := range dayFirstLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02"), true
		}
	}
	return "", false
}

// weekdayAliases maps lowercase weekday spellings (full names and the
// common short forms) to the canonical title-case name.
var weekdayAliases = map[string]string{
	"monday": "Monday", "mon": "Monday",
	"tuesday": "Tuesday", "tue": "Tuesday", "tues": "Tuesday",
	"wednesday": "Wednesday", "wed": "Wednesday",
	"thursday": "Thursday", "thu": "Thursday", "thur": "Thursday", "thurs": "Thursday",
	"friday": "Friday", "fri": "Friday",
	"saturday": "Saturday", "sat": "Saturday",
	"sunday": "Sunday", "sun": "Sunday",
}

// canonicalWeekday returns the title-case weekday name for recognized
// spellings; anything else is title-cased verbatim and simply never
// matches a real weekday.
func canonicalWeekday(s string) string {
	if full, ok := weekdayAliases[strings.ToLower(s)]; ok {
		return full
	}
	return titleCase(s)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
