// Package sheet loads the rule table from a published Google Sheet.
package sheet

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"slotcal/internal/fetch"
	appLog "slotcal/internal/log"
	"slotcal/internal/rules"
)

// ExportURL rewrites a Google Sheet sharing URL into its CSV export
// form. URLs that are already export URLs (or not sharing URLs at all)
// pass through unchanged.
//
//	.../edit?usp=sharing -> .../export?format=csv
//	.../edit#gid=0       -> .../export?format=csv&gid=0
func ExportURL(u string) string {
	u = strings.Replace(u, "/edit?usp=sharing", "/export?format=csv", 1)
	u = strings.Replace(u, "/edit#gid=", "/export?format=csv&gid=", 1)
	return u
}

// Source polls one sheet and normalizes it into rules.
type Source struct {
	url     string
	fetcher *fetch.Fetcher
}

// NewSource creates a sheet source for the given sharing or export URL.
func NewSource(url string, fetcher *fetch.Fetcher) *Source {
	return &Source{url: ExportURL(url), fetcher: fetcher}
}

// Load fetches and normalizes the rule table.
//
// It never returns an error: any acquisition or parse failure degrades
// to an empty RuleSet, which resolves to everything open. A transient
// sheet outage must not falsely show the operator as fully booked.
func (s *Source) Load(ctx context.Context) rules.RuleSet {
	if s == nil || s.url == "" {
		return rules.RuleSet{}
	}

	res, err := s.fetcher.Fetch(ctx, fetch.Source{ID: "sheet", URL: s.url})
	if err != nil {
		appLog.Error("sheet fetch failed; treating as empty", err, "url", fetch.RedactURL(s.url))
		return rules.RuleSet{}
	}

	table, err := decodeCSV(res.Body)
	if err != nil {
		appLog.Error("sheet CSV decode failed; treating as empty", err, "url", fetch.RedactURL(s.url))
		return rules.RuleSet{}
	}

	rs := rules.Normalize(table)
	appLog.Info("sheet loaded", "rows", len(table.Rows), "rules", len(rs), "from_cache", res.FromCache)
	return rs
}

// decodeCSV splits a CSV body into header and data rows. Ragged rows
// are tolerated; the normalizer decides what is usable.
func decodeCSV(body []byte) (rules.Table, error) {
	if len(body) == 0 {
		return rules.Table{}, errors.New("empty CSV body")
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var t rules.Table
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rules.Table{}, err
		}
		if t.Header == nil {
			t.Header = record
			continue
		}
		t.Rows = append(t.Rows, record)
	}
	if t.Header == nil {
		return rules.Table{}, errors.New("CSV body has no header row")
	}
	return t, nil
}
