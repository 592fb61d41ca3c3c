package extract

import (
	"fmt"
	"os"
	"regexp"

	"sjsage522/parkscraper/pkg/errors"

	"gopkg.in/yaml.v3"
)

// FieldKind selects how a field value is read from the matched element
type FieldKind string

const (
	// KindText reads the trimmed text content (default)
	KindText FieldKind = "text"
	// KindAttr reads the attribute named by Attr
	KindAttr FieldKind = "attr"
	// KindExists yields "true" when Selector matches anything, "false" otherwise
	KindExists FieldKind = "exists"
	// KindEquals yields "true" when the text content equals Equals, "false" otherwise
	KindEquals FieldKind = "equals"
	// KindHTML reads the inner HTML
	KindHTML FieldKind = "html"
)

// Case maps a structural or textual condition to a value.
// With only Selector set the case matches when Selector is present in the container;
// with Equals set it matches when the selected text (or the container's) equals it.
type Case struct {
	Selector string `yaml:"selector"`
	Equals   string `yaml:"equals"`
	Value    string `yaml:"value"`
}

// Field describes one value extracted from every container
type Field struct {
	Name     string    `yaml:"name"`
	Selector string    `yaml:"selector"`
	Kind     FieldKind `yaml:"kind"`
	Attr     string    `yaml:"attr"`
	Equals   string    `yaml:"equals"`
	Pattern  string    `yaml:"pattern"`
	Default  string    `yaml:"default"`
	Required bool      `yaml:"required"`
	Remove   []string  `yaml:"remove"`
	Cases    []Case    `yaml:"cases"`
}

// Schema enumerates the containing element of a record type and its fields
type Schema struct {
	Name      string  `yaml:"name"`
	Container string  `yaml:"container"`
	Exclude   string  `yaml:"exclude"`
	Fields    []Field `yaml:"fields"`
}

// Validate checks a schema before use
func (s Schema) Validate() error {
	if s.Name == "" {
		return errors.NewValidation("schema", "name is required")
	}
	if s.Container == "" {
		return errors.NewValidation(s.Name, "container selector is required")
	}
	if len(s.Fields) == 0 {
		return errors.NewValidation(s.Name, "at least one field is required")
	}

	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return errors.NewValidation(s.Name, "field name is required")
		}
		if seen[f.Name] {
			return errors.NewValidation(s.Name, fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true

		switch f.kind() {
		case KindText, KindHTML:
		case KindAttr:
			if f.Attr == "" {
				return errors.NewValidation(s.Name, fmt.Sprintf("field %q: attr kind needs attr", f.Name))
			}
		case KindExists:
			if f.Selector == "" {
				return errors.NewValidation(s.Name, fmt.Sprintf("field %q: exists kind needs a selector", f.Name))
			}
		case KindEquals:
			if f.Equals == "" {
				return errors.NewValidation(s.Name, fmt.Sprintf("field %q: equals kind needs equals", f.Name))
			}
		default:
			return errors.NewValidation(s.Name, fmt.Sprintf("field %q: unknown kind %q", f.Name, f.Kind))
		}

		for _, c := range f.Cases {
			if c.Selector == "" && c.Equals == "" {
				return errors.NewValidation(s.Name, fmt.Sprintf("field %q: case needs selector or equals", f.Name))
			}
		}

		if f.Pattern != "" {
			if _, err := regexp.Compile(f.Pattern); err != nil {
				return errors.NewParsing(s.Name, fmt.Sprintf("field %q: invalid pattern", f.Name), err)
			}
		}
	}
	return nil
}

// Columns returns the field names in declaration order
func (s Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

func (f Field) kind() FieldKind {
	if f.Kind == "" {
		return KindText
	}
	return f.Kind
}

type schemaFile struct {
	Schemas []Schema `yaml:"schemas"`
}

// LoadSchemas reads a YAML file of schemas keyed by schema name
func LoadSchemas(path string) (map[string]Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfiguration("failed to read schema file "+path, err)
	}
	return ParseSchemas(data)
}

// ParseSchemas decodes YAML schemas and validates each of them
func ParseSchemas(data []byte) (map[string]Schema, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.NewParsing("schemas", "invalid schema YAML", err)
	}

	schemas := make(map[string]Schema, len(file.Schemas))
	for _, s := range file.Schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		schemas[s.Name] = s
	}
	return schemas, nil
}

// Override returns the schema named like base from overrides, or base itself.
func Override(base Schema, overrides map[string]Schema) Schema {
	if s, ok := overrides[base.Name]; ok {
		return s
	}
	return base
}
