package extract

import (
	"strings"
	"testing"

	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `
<html><body>
	<div class="item">
		<h3 class="title">Laptop One <span class="badge">NEW</span></h3>
		<a class="link" href="/p/1">View</a>
		<div class="price">₹49,990</div>
		<div class="rating">4.4</div>
	</div>
	<div class="item">
		<h3 class="title">Laptop Two</h3>
		<a class="link" href="/p/2">View</a>
		<div class="price">₹59,990</div>
	</div>
	<div class="item sponsored">
		<h3 class="title">Sponsored</h3>
		<div class="price">₹1</div>
	</div>
	<div class="item">
		<div class="price">₹9,990</div>
	</div>
</body></html>`

func listingSchema() Schema {
	return Schema{
		Name:      "listing",
		Container: "div.item",
		Exclude:   ".sponsored",
		Fields: []Field{
			{Name: "name", Selector: "h3.title", Required: true, Remove: []string{"span.badge"}},
			{Name: "link", Selector: "a.link", Kind: KindAttr, Attr: "href"},
			{Name: "price", Selector: "div.price", Pattern: `([\d,]+)`},
			{Name: "rating", Selector: "div.rating", Default: ""},
			{Name: "rated", Selector: "div.rating", Kind: KindExists},
		},
	}
}

func newExtractor(t *testing.T, s Schema) *Extractor {
	t.Helper()
	e, err := New(s)
	require.NoError(t, err)
	return e
}

func TestExtractor_Extract(t *testing.T) {
	e, err := New(listingSchema())
	require.NoError(t, err)

	records, err := e.Extract(listingHTML)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, session.Record{
		"name":   "Laptop One",
		"link":   "/p/1",
		"price":  "49,990",
		"rating": "4.4",
		"rated":  "true",
	}, records[0])

	// Missing optional fields take their defaults
	assert.Equal(t, "", records[1]["rating"])
	assert.Equal(t, "false", records[1]["rated"])

	// The container without a name is skipped, not fatal
	assert.Equal(t, int64(1), e.Malformed())
}

func TestExtractor_NoContainers(t *testing.T) {
	e := newExtractor(t, listingSchema())

	for _, html := range []string{"", "<html></html>", "<div class='other'>x</div>"} {
		records, err := e.Extract(html)
		assert.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	}
}

func TestExtractor_MissingFieldDefault(t *testing.T) {
	e := newExtractor(t, Schema{
		Name:      "sites",
		Container: "tr",
		Fields: []Field{
			{Name: "site_type", Selector: "td.type", Default: "unknown"},
			{Name: "loop", Selector: "td.loop", Kind: KindAttr, Attr: "data-loop", Default: "none"},
		},
	})

	records, err := e.Extract(`<table><tr><td class="type">   </td><td class="loop">A</td></tr></table>`)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "unknown", records[0]["site_type"])
	assert.Equal(t, "none", records[0]["loop"])
}

func TestExtractor_Cases(t *testing.T) {
	e := newExtractor(t, Schema{
		Name:      "calendar",
		Container: "#calendarGrid > span",
		Fields: []Field{
			{
				Name:    "status",
				Default: "unknown",
				Cases: []Case{
					{Selector: "a", Value: "available"},
					{Equals: "R", Value: "reserved"},
				},
			},
		},
	})

	html := `<div id="calendarGrid">
		<span><a href="#">A</a></span>
		<span>R</span>
		<span>W</span>
		<span> R </span>
		<div><span>nested is ignored</span></div>
	</div>`

	records, err := e.Extract(html)
	require.NoError(t, err)
	require.Len(t, records, 4)

	statuses := make([]string, len(records))
	for i, r := range records {
		statuses[i] = r["status"]
	}
	assert.Equal(t, []string{"available", "reserved", "unknown", "reserved"}, statuses)
}

func TestExtractor_EqualsKind(t *testing.T) {
	e := newExtractor(t, Schema{
		Name:      "cells",
		Container: "li",
		Fields: []Field{
			{Name: "reserved", Kind: KindEquals, Equals: "R"},
		},
	})

	records, err := e.Extract(`<ul><li>R</li><li>A</li></ul>`)
	require.NoError(t, err)
	assert.Equal(t, "true", records[0]["reserved"])
	assert.Equal(t, "false", records[1]["reserved"])
}

func TestExtractor_RecordRequired(t *testing.T) {
	e := newExtractor(t, Schema{
		Name:      "sites",
		Container: "tr",
		Fields: []Field{
			{Name: "site_id", Selector: "div[id]", Kind: KindAttr, Attr: "id", Pattern: `^.{9}(.+)$`, Required: true},
		},
	})

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<table><tr><td><div id="siteName_1073"></div></td></tr><tr><td>no id</td></tr></table>`))
	require.NoError(t, err)

	rows := doc.Find("tr")
	record, err := e.Record(rows.Eq(0))
	require.NoError(t, err)
	assert.Equal(t, "1073", record["site_id"])

	_, err = e.Record(rows.Eq(1))
	assert.True(t, errors.IsMalformedRecord(err))
}

func TestSchema_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		schema Schema
	}{
		{"no name", Schema{Container: "div", Fields: []Field{{Name: "a"}}}},
		{"no container", Schema{Name: "s", Fields: []Field{{Name: "a"}}}},
		{"no fields", Schema{Name: "s", Container: "div"}},
		{"duplicate field", Schema{Name: "s", Container: "div", Fields: []Field{{Name: "a"}, {Name: "a"}}}},
		{"attr without attr", Schema{Name: "s", Container: "div", Fields: []Field{{Name: "a", Kind: KindAttr}}}},
		{"exists without selector", Schema{Name: "s", Container: "div", Fields: []Field{{Name: "a", Kind: KindExists}}}},
		{"unknown kind", Schema{Name: "s", Container: "div", Fields: []Field{{Name: "a", Kind: "xpath"}}}},
		{"empty case", Schema{Name: "s", Container: "div", Fields: []Field{{Name: "a", Cases: []Case{{Value: "x"}}}}}},
		{"bad pattern", Schema{Name: "s", Container: "div", Fields: []Field{{Name: "a", Pattern: "("}}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.schema)
			assert.Error(t, err)
		})
	}
}

func TestParseSchemas(t *testing.T) {
	data := []byte(`
schemas:
  - name: products
    container: "a._31qSD5[href]"
    fields:
      - name: Product Name
        selector: div._3wU53n
        required: true
      - name: Rating
        selector: div.hGSR34
        default: ""
  - name: calendar
    container: "#calendarGrid > span"
    fields:
      - name: status
        default: unknown
        cases:
          - selector: a
            value: available
          - equals: R
            value: reserved
`)

	schemas, err := ParseSchemas(data)
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	assert.Equal(t, []string{"Product Name", "Rating"}, schemas["products"].Columns())
	assert.Len(t, schemas["calendar"].Fields[0].Cases, 2)

	base := Schema{Name: "calendar", Container: "div"}
	assert.Equal(t, "#calendarGrid > span", Override(base, schemas).Container)
	assert.Equal(t, "div", Override(Schema{Name: "other", Container: "div"}, schemas).Container)
}

func TestParseSchemas_Invalid(t *testing.T) {
	_, err := ParseSchemas([]byte("schemas: [ {name: x} ]"))
	assert.True(t, errors.IsValidation(err))

	_, err = ParseSchemas([]byte("schemas: [unclosed"))
	assert.Error(t, err)
}
