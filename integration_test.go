package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sjsage522/parkscraper/internal/campsite"
	"sjsage522/parkscraper/internal/catalog"
	"sjsage522/parkscraper/internal/fetch"
	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/internal/sink"
	"sjsage522/parkscraper/internal/summary"
	"sjsage522/parkscraper/services/cache"
	"sjsage522/parkscraper/services/publisher"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pagerLink = `<a class="link standard btnNext hidden-xs pagingButton" href="%s">Next</a>`

// reservationSite serves a static copy of the park list, site lists and calendars.
// Park 1 has two free sites, park 2 has one site reserved on the first night.
func reservationSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/camping.page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Query().Get("page") == "2" {
			io.WriteString(w, `<html><body><table>
				<tr name="e_Glow"><td><span><a id="park_2" href="/r/campgroundDetails.page?parkID=2">Steamboat Lake</a></span></td></tr>
			</table></body></html>`)
			return
		}
		io.WriteString(w, `<html><body><table>
			<tr name="e_Glow"><td><span><a id="park_1" href="/r/campgroundDetails.page?parkID=1">Cherry Creek</a></span></td></tr>
		</table>`+fmt.Sprintf(pagerLink, "/camping.page?page=2")+`</body></html>`)
	})
	mux.HandleFunc("/r/campgroundDetails.page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Query().Get("tab") != "sites" {
			io.WriteString(w, `<html><body><h1>Park</h1></body></html>`)
			return
		}
		var rows string
		switch r.URL.Query().Get("parkID") {
		case "1":
			rows = siteRow("101", "Basic", true) + siteRow("102", "Electric", false)
		case "2":
			rows = siteRow("201", "Basic", false)
		}
		io.WriteString(w, "<html><body><table>"+rows+"</table></body></html>")
	})
	mux.HandleFunc("/r/campsiteDetails.page", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("lengthOfStay"))
		start, err := session.ParseDate(q.Get("arvdate"))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var cells strings.Builder
		for i := 0; i < 14; i++ {
			day := start.AddDate(0, 0, i)
			if q.Get("siteID") == "201" && session.FormatDate(day) == "06/17/2020" {
				cells.WriteString("<span>R</span>")
				continue
			}
			cells.WriteString(`<span><a href="#">A</a></span>`)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<html><body><div id="calendarGrid">`+cells.String()+`</div></body></html>`)
	})

	return httptest.NewServer(mux)
}

func siteRow(id, siteType string, pets bool) string {
	icon := ""
	if pets {
		icon = `<img title="Pets Allowed" src="/pets.png"/>`
	}
	return `<tr name="e_Glow"><td><div><div id="siteName_` + id + `">` + id + `</div></div></td><td>` +
		icon + `</td><td>` + siteType + `</td></tr>`
}

func TestIntegration_Availability(t *testing.T) {
	server := reservationSite(t)
	defer server.Close()

	ctx := context.Background()
	dir := t.TempDir()

	scraper, err := campsite.NewScraper(campsite.Options{
		ParksURL:   server.URL + "/camping.page",
		RetryDelay: 10 * time.Millisecond,
		BatchSize:  14,
	}, campsite.DefaultSchemas())
	require.NoError(t, err)

	// Park discovery
	f := fetch.NewHTTPFetcher(fetch.HTTPOptions{})
	defer f.Close()

	parksFile := sink.NewStructured(filepath.Join(dir, "parks.json"))
	parks, err := scraper.Parks(ctx, f, nil, func(p session.Parks) error { return parksFile.Persist(p) })
	require.NoError(t, err)
	require.Len(t, parks, 2)
	assert.Equal(t, server.URL+"/r/campgroundDetails.page?parkID=1", parks["Cherry Creek"].URL)
	assert.Equal(t, server.URL+"/r/campgroundDetails.page?parkID=2", parks["Steamboat Lake"].URL)

	var persisted session.Parks
	require.NoError(t, parksFile.Load(&persisted))
	assert.Equal(t, parks, persisted)

	// Sites and availability, two tabs sharing a page cache
	start, err := session.ParseDate("06/17/2020")
	require.NoError(t, err)
	end, err := session.ParseDate("06/18/2020")
	require.NoError(t, err)

	out := sink.NewStructured(filepath.Join(dir, "allparks.json"))
	opener := fetch.NewCachedOpener(f, cache.NewMemoryCache(), time.Hour)
	runner := campsite.NewRunner(scraper, opener, out, publisher.NopPublisher{}, campsite.RunnerOptions{
		Run:         "integration",
		Concurrency: 2,
		Dates:       session.DateRange(start, end),
	})

	result, err := runner.Run(ctx, parks)
	require.NoError(t, err)

	cherry := result["Cherry Creek"]
	require.Len(t, cherry.Sites, 2)
	assert.True(t, cherry.Sites["101"].PetsAllowed)
	assert.Equal(t, "Electric", cherry.Sites["102"].SiteType)
	assert.Equal(t, map[string]session.Status{
		"06/17/2020": session.StatusAvailable,
		"06/18/2020": session.StatusAvailable,
	}, cherry.Sites["102"].Dates)
	assert.Equal(t, session.StatusReserved, result["Steamboat Lake"].Sites["201"].Dates["06/17/2020"])

	var saved session.Parks
	require.NoError(t, out.Load(&saved))
	assert.Equal(t, result, saved)

	// Query the saved session
	q, err := summary.ParseQuery("06/17/2020", "06/18/2020")
	require.NoError(t, err)
	summaries, err := summary.Summarize(saved, q)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "Cherry Creek", summaries[0].Park)
	assert.Equal(t, 2, summaries[0].Available)
	assert.Equal(t, map[string]int{"Basic": 1, "Electric": 1}, summaries[0].Counts)
	assert.True(t, summaries[1].Full)
	assert.Equal(t, map[string]int{"Basic": 0}, summaries[1].Counts)
}

func TestIntegration_Products(t *testing.T) {
	product := func(name, price, rating string) string {
		r := ""
		if rating != "" {
			r = `<div class="hGSR34">` + rating + `</div>`
		}
		return `<a class="_31qSD5" href="/p/` + name + `"><div class="_3wU53n">` + name +
			`</div><div class="_1vC4OE _2rQ-NK">` + price + `</div>` + r + `</a>`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Query().Get("page") == "2" {
			io.WriteString(w, "<html><body>"+product("Laptop C", "₹39,990", "")+"</body></html>")
			return
		}
		io.WriteString(w, "<html><body>"+product("Laptop A", "₹49,990", "4.4")+product("Laptop B", "₹59,990", "4.1")+
			`<a class="_3fVaIS" href="?page=2">Next</a></body></html>`)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "products.csv")
	out := sink.NewTabular(path, nil)

	scraper, err := catalog.NewScraper(catalog.Options{
		URL:          server.URL + "/laptops",
		NextSelector: "a._3fVaIS",
		RetryDelay:   10 * time.Millisecond,
	}, catalog.ProductSchema, out)
	require.NoError(t, err)

	f := fetch.NewHTTPFetcher(fetch.HTTPOptions{})
	defer f.Close()

	records, err := scraper.Scrape(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, records, 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Product Name,Price,Rating\n"+
		"Laptop A,\"₹49,990\",4.4\n"+
		"Laptop B,\"₹59,990\",4.1\n"+
		"Laptop C,\"₹39,990\",\n", string(data))
}

func TestIntegration_ProgressStream(t *testing.T) {
	if os.Getenv("CI") != "" {
		t.Skip("Skipping Redis integration test in CI")
	}

	ctx := context.Background()
	redisAddr := "localhost:6379"
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr, DB: 0})
	defer redisClient.Close()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		t.Skip("Redis is not available, skipping integration test")
	}

	stream := fmt.Sprintf("test_progress_%d", time.Now().UnixNano())
	defer redisClient.Del(ctx, stream)

	server := reservationSite(t)
	defer server.Close()

	scraper, err := campsite.NewScraper(campsite.Options{
		ParksURL:   server.URL + "/camping.page",
		RetryDelay: 10 * time.Millisecond,
		BatchSize:  14,
	}, campsite.DefaultSchemas())
	require.NoError(t, err)

	pub := publisher.NewRedisPublisher(ctx, redisAddr, 0, stream, 100)
	defer pub.Close()

	parks := session.Parks{
		"Cherry Creek": {URL: server.URL + "/r/campgroundDetails.page?parkID=1", Sites: map[string]*session.Site{}},
	}
	f := fetch.NewHTTPFetcher(fetch.HTTPOptions{})
	defer f.Close()

	out := sink.NewStructured(filepath.Join(t.TempDir(), "sites.json"))
	_, err = campsite.NewRunner(scraper, f, out, pub, campsite.RunnerOptions{Run: "progress", Concurrency: 1}).Run(ctx, parks)
	require.NoError(t, err)

	entries, err := redisClient.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	encoded, ok := entries[0].Values[publisher.ProgressKey].(string)
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var progress publisher.Progress
	require.NoError(t, json.Unmarshal(decoded, &progress))
	assert.Equal(t, "progress", progress.Run)
	assert.Equal(t, "Cherry Creek", progress.Unit)
	assert.Equal(t, "done", progress.Status)
	assert.Equal(t, 1, progress.Done)
	assert.Equal(t, 1, progress.Total)
}
