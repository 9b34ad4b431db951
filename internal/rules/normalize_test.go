package rules

import "testing"

func TestNormalize_BasicRows(t *testing.T) {
	rs := Normalize(Table{
		Header: []string{"Date", "Time", "Status"},
		Rows: [][]string{
			{"2026-01-03", "ALL", "Busy"},
			{"Saturday", "10:15", "Busy"},
			{"2026-01-03", "14:00", "open"},
		},
	})

	if len(rs) != 3 {
		t.Fatalf("expected 3 rules, got %d: %+v", len(rs), rs)
	}
	if rs[0].Date != "2026-01-03" || !rs[0].AllDay || rs[0].Open {
		t.Fatalf("rule 0 wrong: %+v", rs[0])
	}
	if rs[1].Weekday != "Saturday" || rs[1].Slot != "10:15" || rs[1].AllDay {
		t.Fatalf("rule 1 wrong: %+v", rs[1])
	}
	if !rs[2].Open || rs[2].Slot != "14:00" {
		t.Fatalf("rule 2 wrong: %+v", rs[2])
	}
}

func TestNormalize_LegacyHeaderAlias(t *testing.T) {
	rs := Normalize(Table{
		Header: []string{"Day_or_Date", "Time"},
		Rows:   [][]string{{"Saturday", "ALL"}},
	})

	if len(rs) != 1 || rs[0].Weekday != "Saturday" || !rs[0].AllDay {
		t.Fatalf("legacy header not reconciled: %+v", rs)
	}
}

func TestNormalize_MissingStatusColumnDefaultsToBusy(t *testing.T) {
	rs := Normalize(Table{
		Header: []string{"Date", "Time"},
		Rows:   [][]string{{"Saturday", "10:15"}},
	})

	if len(rs) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rs))
	}
	if rs[0].Open {
		t.Fatal("row without status column must default to a block")
	}
	if rs[0].Status != "Busy" {
		t.Fatalf("expected default status Busy, got %q", rs[0].Status)
	}
}

func TestNormalize_StatusOpenSubstringCaseInsensitive(t *testing.T) {
	cases := []struct {
		status string
		open   bool
	}{
		{"OPEN", true},
		{"open", true},
		{"Open for exams", true},
		{"Busy", false},
		{"blocked", false},
		{"", false},
	}
	for _, tc := range cases {
		rs := Normalize(Table{
			Header: []string{"Date", "Time", "Status"},
			Rows:   [][]string{{"Monday", "10:15", tc.status}},
		})
		if len(rs) != 1 {
			t.Fatalf("status %q: expected 1 rule, got %d", tc.status, len(rs))
		}
		if rs[0].Open != tc.open {
			t.Errorf("status %q: expected open=%v, got %+v", tc.status, tc.open, rs[0])
		}
	}
}

func TestNormalize_CellTrimming(t *testing.T) {
	rs := Normalize(Table{
		Header: []string{" Date ", " Time ", " Status "},
		Rows:   [][]string{{"  Saturday ", " 10:15  ", "  Busy "}},
	})

	if len(rs) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rs))
	}
	if rs[0].Weekday != "Saturday" || rs[0].Slot != "10:15" || rs[0].Status != "Busy" {
		t.Fatalf("cells not trimmed: %+v", rs[0])
	}
}

func TestNormalize_DropsUnusableRows(t *testing.T) {
	rs := Normalize(Table{
		Header: []string{"Date", "Time"},
		Rows: [][]string{
			{"", "10:15"},       // no match value
			{"Saturday", ""},    // no time value
			{"Saturday"},        // short row
			{},                  // empty row
			{"Saturday", "ALL"}, // the one good row
		},
	})

	if len(rs) != 1 {
		t.Fatalf("expected 1 surviving rule, got %d: %+v", len(rs), rs)
	}
}

func TestNormalize_ColumnCollapseRepair(t *testing.T) {
	rs := Normalize(Table{
		Header: []string{"Date,Time,Status"},
		Rows: [][]string{
			{"Saturday,ALL,Busy"},
			{"2026-01-03,14:00,OPEN"},
		},
	})

	if len(rs) != 2 {
		t.Fatalf("expected 2 rules after repair, got %d: %+v", len(rs), rs)
	}
	if rs[0].Weekday != "Saturday" || !rs[0].AllDay {
		t.Fatalf("rule 0 wrong after repair: %+v", rs[0])
	}
	if rs[1].Date != "2026-01-03" || rs[1].Slot != "14:00" || !rs[1].Open {
		t.Fatalf("rule 1 wrong after repair: %+v", rs[1])
	}
}

func TestNormalize_CollapseRepairWithoutDateHeaderFallsBackToPositional(t *testing.T) {
	rs := Normalize(Table{
		Header: []string{"Schedule"},
		Rows:   [][]string{{"Saturday,ALL"}},
	})

	if len(rs) != 1 || rs[0].Weekday != "Saturday" || !rs[0].AllDay {
		t.Fatalf("positional fallback failed: %+v", rs)
	}
}

func TestNormalize_AllSentinelCaseInsensitive(t *testing.T) {
	rs := Normalize(Table{
		Header: []string{"Date", "Time"},
		Rows:   [][]string{{"Saturday", "all"}},
	})

	if len(rs) != 1 || !rs[0].AllDay {
		t.Fatalf("lowercase all should map to the whole day: %+v", rs)
	}
}

func TestParseLooseDate_TwoPass(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2026-01-03", "2026-01-03"},  // already canonical
		{"2026/01/03", "2026-01-03"},  // slashed ISO-ish
		{"1/3/2026", "2026-01-03"},    // month-first wins when valid
		{"3/13/2026", "2026-03-13"},   // only month-first parses
		{"13/3/2026", "2026-03-13"},   // month-first invalid, day-first rescues
		{"Jan 3, 2026", "2026-01-03"}, // textual month-first
		{"3 January 2026", "2026-01-03"},
		{"03.01.2026", "2026-01-03"}, // dotted day-first
	}
	for _, tc := range cases {
		got, ok := parseLooseDate(tc.in)
		if !ok {
			t.Errorf("parseLooseDate(%q): expected success", tc.in)
			continue
		}
		if got != tc.want {
			t.Errorf("parseLooseDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseLooseDate_IdempotentOnCanonicalForm(t *testing.T) {
	got, ok := parseLooseDate("2026-01-03")
	if !ok || got != "2026-01-03" {
		t.Fatalf("canonical date must normalize to itself, got %q ok=%v", got, ok)
	}
	again, ok := parseLooseDate(got)
	if !ok || again != got {
		t.Fatalf("normalization not idempotent: %q -> %q", got, again)
	}
}

func TestParseLooseDate_RejectsNonDates(t *testing.T) {
	for _, in := range []string{"Saturday", "soon", "ALL", ""} {
		if got, ok := parseLooseDate(in); ok {
			t.Errorf("parseLooseDate(%q) unexpectedly parsed to %q", in, got)
		}
	}
}

func TestCanonicalWeekday(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"saturday", "Saturday"},
		{"SATURDAY", "Saturday"},
		{"Sat", "Saturday"},
		{"tues", "Tuesday"},
		{"Monday", "Monday"},
		{"Saturnday", "Saturnday"}, // misspelling stays inert, never matches
	}
	for _, tc := range cases {
		if got := canonicalWeekday(tc.in); got != tc.want {
			t.Errorf("canonicalWeekday(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
