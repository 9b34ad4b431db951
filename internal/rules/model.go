package rules

import "time"

// Rule is one normalized row of the external rule table.
//
// The match key is exactly one of Date or Weekday:
//   - Date is a canonical calendar date in YYYY-MM-DD form (a one-off rule).
//   - Weekday is a full weekday name in title case, e.g. "Saturday"
//     (a recurring rule applied to every occurrence of that weekday).
//
// The slot key is either the whole day (AllDay) or one verbatim grid
// label (Slot). A label that matches no grid entry is inert.
type Rule struct {
	Date    string
	Weekday string

	AllDay bool
	Slot   string

	// Open marks an explicit open override. Anything else is a block;
	// Status keeps the raw text for diagnostics only.
	Open   bool
	Status string
}

// Recurring reports whether the rule is keyed to a weekday rather than
// an exact date.
func (r Rule) Recurring() bool {
	return r.Weekday != ""
}

// RuleSet is an ordered sequence of rules. Order is preserved from the
// source, but resolution is defined as any-match queries and never
// depends on it. A RuleSet is rebuilt on every refresh and treated as
// an immutable snapshot afterwards.
type RuleSet []Rule

// Snapshot is one refresh result: the rule set plus when it was built.
type Snapshot struct {
	Rules     RuleSet
	FetchedAt time.Time
}
