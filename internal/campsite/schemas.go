// Package campsite scrapes parks, campsites and their availability from the
// state-park reservation system.
package campsite

import (
	"sjsage522/parkscraper/internal/extract"
)

// NextSelector is the paging control of the park and site lists
const NextSelector = "a.link.standard.btnNext.hidden-xs.pagingButton"

// Field names produced by the built-in schemas
const (
	FieldPark        = "park"
	FieldAnchorID    = "anchor_id"
	FieldSiteID      = "site_id"
	FieldPetsAllowed = "pets_allowed"
	FieldSiteType    = "site_type"
	FieldStatus      = "status"
)

// ParkListSchema reads the park name and the id of its link from every row of the park list
var ParkListSchema = extract.Schema{
	Name:      "park_list",
	Container: `tr[name="e_Glow"]`,
	Fields: []extract.Field{
		{Name: FieldPark, Selector: "td:first-child span > a[id]", Required: true},
		{Name: FieldAnchorID, Selector: "td:first-child span > a[id]", Kind: extract.KindAttr, Attr: "id", Required: true},
	},
}

// SiteListSchema reads one campsite per row of a park's site list.
// The site id is the element id without its 9-character prefix.
var SiteListSchema = extract.Schema{
	Name:      "site_list",
	Container: `tr[name="e_Glow"]`,
	Fields: []extract.Field{
		{Name: FieldSiteID, Selector: "td:first-child > div > [id]", Kind: extract.KindAttr, Attr: "id", Pattern: `^.{9}(.+)$`, Required: true},
		{Name: FieldPetsAllowed, Selector: `[title="Pets Allowed"]`, Kind: extract.KindExists},
		{Name: FieldSiteType, Selector: "td:nth-child(3)", Default: "unknown"},
	},
}

// CalendarSchema reads one availability cell per day of the calendar view.
// A link means the day can be booked and "R" means reserved.
var CalendarSchema = extract.Schema{
	Name:      "calendar",
	Container: "#calendarGrid > span",
	Fields: []extract.Field{
		{
			Name:    FieldStatus,
			Default: "unknown",
			Cases: []extract.Case{
				{Selector: "a", Value: "available"},
				{Equals: "R", Value: "reserved"},
			},
		},
	},
}

// Schemas are the selector schemas the scraper applies
type Schemas struct {
	ParkList extract.Schema
	SiteList extract.Schema
	Calendar extract.Schema
}

// DefaultSchemas returns the built-in schemas
func DefaultSchemas() Schemas {
	return Schemas{
		ParkList: ParkListSchema,
		SiteList: SiteListSchema,
		Calendar: CalendarSchema,
	}
}

// Override replaces schemas by name with those loaded from a schema file
func (s Schemas) Override(overrides map[string]extract.Schema) Schemas {
	return Schemas{
		ParkList: extract.Override(s.ParkList, overrides),
		SiteList: extract.Override(s.SiteList, overrides),
		Calendar: extract.Override(s.Calendar, overrides),
	}
}
