// Package summary aggregates campsite availability for a stay.
package summary

import (
	"fmt"
	"sort"
	"time"

	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/pkg/errors"
)

// Query is a stay from CheckIn up to, but excluding, CheckOut
type Query struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// ParseQuery parses MM/DD/YYYY check-in and check-out dates
func ParseQuery(checkIn, checkOut string) (Query, error) {
	in, err := session.ParseDate(checkIn)
	if err != nil {
		return Query{}, err
	}
	out, err := session.ParseDate(checkOut)
	if err != nil {
		return Query{}, err
	}
	return Query{CheckIn: in, CheckOut: out}, nil
}

// Nights returns the date keys a site must be available on
func (q Query) Nights() []string {
	return session.DateKeys(session.DateRange(q.CheckIn, q.CheckOut.AddDate(0, 0, -1)))
}

// ParkSummary counts the sites of one park available for the whole stay, by site type
type ParkSummary struct {
	Park      string
	URL       string
	Counts    map[string]int
	Available int
	Full      bool
}

// SiteTypes returns the counted site types in sorted order
func (s ParkSummary) SiteTypes() []string {
	types := make([]string, 0, len(s.Counts))
	for t := range s.Counts {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Summarize counts, per park and site type, the sites available on every night of q.
// Every site type present in a park is reported, with zero when none are available.
// A date no site has any status for is an out_of_range error.
func Summarize(parks session.Parks, q Query) ([]ParkSummary, error) {
	if !q.CheckOut.After(q.CheckIn) {
		return nil, errors.NewValidation(session.FormatDate(q.CheckOut), "check-out must be after check-in")
	}

	nights := q.Nights()
	if err := checkRange(parks, nights); err != nil {
		return nil, err
	}

	summaries := make([]ParkSummary, 0, len(parks))
	for _, name := range parks.Names() {
		park := parks[name]
		s := ParkSummary{Park: name, URL: park.URL, Counts: make(map[string]int)}

		for _, site := range park.Sites {
			if _, ok := s.Counts[site.SiteType]; !ok {
				s.Counts[site.SiteType] = 0
			}
			if availableFor(site, nights) {
				s.Counts[site.SiteType]++
				s.Available++
			}
		}

		s.Full = s.Available == 0
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func availableFor(site *session.Site, nights []string) bool {
	for _, d := range nights {
		if site.Dates[d] != session.StatusAvailable {
			return false
		}
	}
	return true
}

// checkRange fails for the first night no site in the session has a status for
func checkRange(parks session.Parks, nights []string) error {
	known := make(map[string]bool)
	for _, park := range parks {
		for _, site := range park.Sites {
			for d := range site.Dates {
				known[d] = true
			}
		}
	}

	for _, d := range nights {
		if !known[d] {
			return errors.NewOutOfRange(d, fmt.Sprintf("no availability was scraped for %s", d))
		}
	}
	return nil
}
