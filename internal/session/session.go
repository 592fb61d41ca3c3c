// Package session holds the accumulated state of one scrape run.
package session

import (
	"sort"
	"time"

	"sjsage522/parkscraper/pkg/errors"
)

// DateLayout is the MM/DD/YYYY layout used as date keys.
const DateLayout = "01/02/2006"

// Status is the availability of a site on one date
type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusUnknown   Status = "unknown"
)

// ParseStatus maps extracted text to a Status, falling back to unknown.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusAvailable, StatusReserved:
		return Status(s)
	default:
		return StatusUnknown
	}
}

// Record is a mapping from field name to extracted value
type Record map[string]string

// Records is a tabular session: one record per matched element, in page order.
type Records []Record

// Parks is the nested session of the reservation scraper, keyed by park name.
type Parks map[string]*Park

// Park is one state park and its campsites
type Park struct {
	URL   string           `json:"url" yaml:"url"`
	Sites map[string]*Site `json:"sites" yaml:"sites"`
}

// Site is one campsite and its availability per date
type Site struct {
	PetsAllowed bool              `json:"pets_allowed" yaml:"pets_allowed"`
	SiteType    string            `json:"site_type" yaml:"site_type"`
	Dates       map[string]Status `json:"dates" yaml:"dates"`
}

// Names returns the park names in sorted order.
func (p Parks) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize replaces nil Sites and Dates maps with empty ones, so a session reads the
// same whether it was decoded from JSON (null) or YAML ({}) and can be written to.
func (p Parks) Normalize() {
	for name, park := range p {
		if park == nil {
			park = &Park{}
			p[name] = park
		}
		if park.Sites == nil {
			park.Sites = map[string]*Site{}
		}
		for id, site := range park.Sites {
			if site == nil {
				site = &Site{}
				park.Sites[id] = site
			}
			if site.Dates == nil {
				site.Dates = map[string]Status{}
			}
		}
	}
}

// Clone returns a deep copy so a snapshot can be persisted while scraping continues.
func (p Parks) Clone() Parks {
	if p == nil {
		return nil
	}
	out := make(Parks, len(p))
	for name, park := range p {
		out[name] = park.Clone()
	}
	return out
}

// Clone returns a deep copy of the park
func (p *Park) Clone() *Park {
	if p == nil {
		return nil
	}
	out := &Park{URL: p.URL}
	if p.Sites != nil {
		out.Sites = make(map[string]*Site, len(p.Sites))
		for id, site := range p.Sites {
			out.Sites[id] = site.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the site
func (s *Site) Clone() *Site {
	if s == nil {
		return nil
	}
	out := &Site{PetsAllowed: s.PetsAllowed, SiteType: s.SiteType}
	if s.Dates != nil {
		out.Dates = make(map[string]Status, len(s.Dates))
		for d, st := range s.Dates {
			out.Dates[d] = st
		}
	}
	return out
}

// Covers reports whether the site has a status recorded for every date key.
func (s *Site) Covers(dates []string) bool {
	for _, d := range dates {
		if _, ok := s.Dates[d]; !ok {
			return false
		}
	}
	return true
}

// Complete reports whether the park has sites and every site covers dates.
func (p *Park) Complete(dates []string) bool {
	if len(p.Sites) == 0 {
		return false
	}
	for _, site := range p.Sites {
		if !site.Covers(dates) {
			return false
		}
	}
	return true
}

// shortDateLayout accepts dates written without leading zeros, e.g. 6/15/2020
const shortDateLayout = "1/2/2006"

// ParseDate parses an MM/DD/YYYY date key. Leading zeros may be omitted.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err == nil {
		return t, nil
	}
	if t, err := time.Parse(shortDateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, errors.NewValidation(s, "date must be MM/DD/YYYY")
}

// FormatDate formats t as an MM/DD/YYYY date key.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateRange expands the inclusive range [start, end] into one time per day.
func DateRange(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// DateKeys formats every date as an MM/DD/YYYY key.
func DateKeys(days []time.Time) []string {
	keys := make([]string, len(days))
	for i, d := range days {
		keys[i] = FormatDate(d)
	}
	return keys
}
