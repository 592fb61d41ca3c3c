// Package extract turns rendered HTML into records using declarative selector schemas.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// Extractor applies one schema to pages
type Extractor struct {
	schema    Schema
	patterns  map[string]*regexp.Regexp
	log       *logger.Logger
	malformed atomic.Int64
}

// New validates the schema and compiles its patterns
func New(s Schema) (*Extractor, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	patterns := make(map[string]*regexp.Regexp)
	for _, f := range s.Fields {
		if f.Pattern != "" {
			patterns[f.Name] = regexp.MustCompile(f.Pattern)
		}
	}

	return &Extractor{
		schema:   s,
		patterns: patterns,
		log:      logger.ForExtractor(s.Name),
	}, nil
}

// Malformed returns how many containers were skipped for a missing required field
func (e *Extractor) Malformed() int64 {
	return e.malformed.Load()
}

// Extract parses html and returns one record per matched container
func (e *Extractor) Extract(html string) (session.Records, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewParsing(e.schema.Name, "HTML parsing failed", err)
	}
	return e.ExtractDocument(doc), nil
}

// ExtractDocument returns one record per container matched in doc
func (e *Extractor) ExtractDocument(doc *goquery.Document) session.Records {
	return e.ExtractSelection(doc.Selection)
}

// ExtractSelection returns one record per container matched below root, in document order.
func (e *Extractor) ExtractSelection(root *goquery.Selection) session.Records {
	records := session.Records{}

	root.Find(e.schema.Container).Each(func(i int, s *goquery.Selection) {
		if e.schema.Exclude != "" && s.Is(e.schema.Exclude) {
			return
		}

		record, err := e.Record(s)
		if err != nil {
			e.malformed.Add(1)
			e.log.Debug().Err(err).Int("index", i).Msg("Skipping malformed record")
			return
		}
		records = append(records, record)
	})

	return records
}

// Record resolves every field of a single container independently.
// A missing optional field takes its default; a missing required field fails the record.
func (e *Extractor) Record(s *goquery.Selection) (session.Record, error) {
	record := make(session.Record, len(e.schema.Fields))
	for _, f := range e.schema.Fields {
		value, ok := e.resolve(s, f)
		if !ok {
			if f.Required {
				return nil, errors.NewMalformedRecord(e.schema.Name, fmt.Sprintf("required field %q is missing", f.Name))
			}
			value = f.Default
		}
		record[f.Name] = value
	}
	return record, nil
}

// resolve returns the field value and whether it was found
func (e *Extractor) resolve(s *goquery.Selection, f Field) (string, bool) {
	if len(f.Cases) > 0 {
		return e.resolveCases(s, f)
	}

	switch f.kind() {
	case KindExists:
		return boolString(s.Find(f.Selector).Length() > 0), true
	case KindEquals:
		target := e.scope(s, f.Selector)
		return boolString(target.Length() > 0 && e.text(target, f) == f.Equals), true
	}

	target := e.scope(s, f.Selector)
	if target.Length() == 0 {
		return "", false
	}

	var value string
	switch f.kind() {
	case KindAttr:
		attr, exists := target.Attr(f.Attr)
		if !exists {
			return "", false
		}
		value = strings.TrimSpace(attr)
	case KindHTML:
		html, err := e.cleanSelection(target, f).Html()
		if err != nil {
			return "", false
		}
		value = strings.TrimSpace(html)
	default:
		value = e.text(target, f)
	}

	if re, ok := e.patterns[f.Name]; ok {
		m := re.FindStringSubmatch(value)
		if m == nil {
			return "", false
		}
		if len(m) > 1 {
			value = m[1]
		} else {
			value = m[0]
		}
	}

	if value == "" {
		return "", false
	}
	return value, true
}

// resolveCases returns the value of the first matching case; no match counts as missing.
func (e *Extractor) resolveCases(s *goquery.Selection, f Field) (string, bool) {
	for _, c := range f.Cases {
		target := e.scope(s, c.Selector)
		if target.Length() == 0 {
			continue
		}
		if c.Equals == "" || e.text(target, f) == c.Equals {
			return c.Value, true
		}
	}
	return "", false
}

// scope returns the first element matching selector inside s, or s itself for an empty selector
func (e *Extractor) scope(s *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return s
	}
	return s.Find(selector).First()
}

// cleanSelection removes the field's excluded elements from a copy of sel
func (e *Extractor) cleanSelection(sel *goquery.Selection, f Field) *goquery.Selection {
	if len(f.Remove) == 0 {
		return sel
	}

	// Clone the selection to avoid modifying the shared document
	clone := sel.Clone()
	for _, selector := range f.Remove {
		clone.Find(selector).Remove()
	}
	return clone
}

func (e *Extractor) text(sel *goquery.Selection, f Field) string {
	return strings.TrimSpace(e.cleanSelection(sel, f).Text())
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
