package sink

import (
	"os"
	"path/filepath"
	"testing"

	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleParks() session.Parks {
	return session.Parks{
		"Steamboat Lake": {
			URL: "https://www.cpwshop.com/campground.page?parkID=50025",
			Sites: map[string]*session.Site{
				"1073": {
					PetsAllowed: true,
					SiteType:    "Electric",
					Dates: map[string]session.Status{
						"06/17/2020": session.StatusAvailable,
						"06/18/2020": session.StatusReserved,
					},
				},
				"1074": {
					SiteType: "unknown",
					Dates:    map[string]session.Status{"06/17/2020": session.StatusUnknown},
				},
			},
		},
		"Cherry Creek": {URL: "https://www.cpwshop.com/campground.page?parkID=50032", Sites: map[string]*session.Site{}},
	}
}

func TestStructured_RoundTrip(t *testing.T) {
	for _, name := range []string{"parks.json", "parks.yaml"} {
		t.Run(name, func(t *testing.T) {
			s := NewStructured(filepath.Join(t.TempDir(), "out", name))
			parks := sampleParks()

			require.NoError(t, s.Persist(parks))
			assert.True(t, s.Exists())

			var loaded session.Parks
			require.NoError(t, s.Load(&loaded))
			assert.Equal(t, parks, loaded)
		})
	}
}

func TestStructured_RoundTripNilMaps(t *testing.T) {
	for _, name := range []string{"parks.json", "parks.yaml"} {
		t.Run(name, func(t *testing.T) {
			s := NewStructured(filepath.Join(t.TempDir(), name))
			parks := session.Parks{
				"Cherry Creek":   {URL: "https://www.cpwshop.com/campground.page?parkID=50032"},
				"Steamboat Lake": {Sites: map[string]*session.Site{"1073": {SiteType: "Basic"}}},
			}

			require.NoError(t, s.Persist(parks))

			var loaded session.Parks
			require.NoError(t, s.Load(&loaded))
			assert.Equal(t, map[string]*session.Site{}, loaded["Cherry Creek"].Sites)
			assert.Equal(t, map[string]session.Status{}, loaded["Steamboat Lake"].Sites["1073"].Dates)

			parks.Normalize()
			assert.Equal(t, parks, loaded)
		})
	}
}

func TestStructured_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parks.json")
	s := NewStructured(path)

	require.NoError(t, s.Persist(sampleParks()))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, s.Persist(sampleParks()))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Persisting overwrites rather than appends
	require.NoError(t, s.Persist(session.Parks{}))
	third, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(third))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStructured_LoadErrors(t *testing.T) {
	dir := t.TempDir()

	var parks session.Parks
	err := NewStructured(filepath.Join(dir, "missing.json")).Load(&parks)
	assert.Equal(t, errors.ErrorTypeStorage, errors.TypeOf(err))

	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	err = NewStructured(path).Load(&parks)
	assert.Equal(t, errors.ErrorTypeParsing, errors.TypeOf(err))
}

func TestTabular_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "laptops.csv")
	columns := []string{"Product Name", "Price", "Rating"}
	tab := NewTabular(path, columns)

	records := session.Records{
		{"Product Name": "Lenovo Ideapad 330, Core i3", "Price": "₹26,990", "Rating": "4.3"},
		{"Product Name": `HP 15 "Thin"`, "Price": "₹31,490", "Rating": ""},
	}

	require.NoError(t, tab.Persist(records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Product Name,Price,Rating\n"+
		"\"Lenovo Ideapad 330, Core i3\",\"₹26,990\",4.3\n"+
		"\"HP 15 \"\"Thin\"\"\",\"₹31,490\",\n", string(data))

	loaded, err := tab.Load()
	require.NoError(t, err)
	assert.Equal(t, records, loaded)

	// Idempotent overwrite
	require.NoError(t, tab.Persist(records))
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestTabular_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	tab := NewTabular(path, []string{"a", "b"})

	require.NoError(t, tab.Persist(nil))
	loaded, err := tab.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)

	err = NewTabular(path, nil).Persist(nil)
	assert.True(t, errors.IsValidation(err))

	_, err = NewTabular(path, []string{"x"}).Load()
	assert.True(t, errors.IsValidation(err))
}
