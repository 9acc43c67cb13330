package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-eco/internal/db"
	"github.com/joeblew999/plat-eco/internal/humastar"
	"github.com/joeblew999/plat-eco/internal/regions"
	"github.com/joeblew999/plat-eco/internal/service"
	"github.com/joeblew999/plat-eco/internal/templates"
)

func square(minX, minY, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {minX + size, minY}, {minX + size, minY + size}, {minX, minY + size}, {minX, minY},
	}}
}

func testCatalog() *regions.Catalog {
	rs := geojson.NewFeatureCollection()
	f := geojson.NewFeature(square(69, 41, 1))
	f.Properties["region_soato"] = "1726"
	f.Properties["shapeISO"] = "UZ-TK"
	rs.Append(f)

	ds := geojson.NewFeatureCollection()
	d := geojson.NewFeature(square(69, 41, 0.5))
	d.Properties["district"] = "1726262"
	d.Properties["nomi_lot"] = "Chilonzor"
	d.Properties["nomi_ru"] = "Чиланзарский район"
	ds.Append(d)
	d = geojson.NewFeature(square(69.5, 41, 0.5))
	d.Properties["district"] = "1726269"
	d.Properties["nomi_lot"] = "Yunusobod"
	ds.Append(d)
	return regions.New(rs, ds)
}

type testEnv struct {
	handler http.Handler
	api     humatest.TestAPI
	svc     *Services
}

func setup(t *testing.T, withDB bool) testEnv {
	t.Helper()
	links := humastar.NewLinks()
	cfg := huma.DefaultConfig("Test API", "1.0.0")
	cfg.Transformers = append(cfg.Transformers, links.Transformer())
	handler, tapi := humatest.New(t, cfg)

	svc := &Services{
		Selection: service.NewSelectionService(service.NewFileStore(""), nil, nil),
		Regions:   testCatalog(),
	}
	if withDB {
		conn, err := db.Open(db.Config{})
		if err != nil {
			t.Fatalf("open duckdb: %v", err)
		}
		t.Cleanup(func() { conn.Close() })
		svc.DB = conn
	}
	renderer, err := templates.New()
	if err != nil {
		t.Fatal(err)
	}

	h := NewAPIHandler(svc)
	huma.AutoRegister(tapi, h)
	NewInfoHandler("", "file", "", svc).RegisterRoutes(tapi)
	NewStreamHandler(h, renderer, nil).RegisterRoutes(tapi)
	Links(tapi, links)
	return testEnv{handler: handler, api: tapi, svc: svc}
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return v
}

func hasLink(h http.Header, want string) bool {
	return slices.Contains(h.Values("Link"), want)
}

func TestHealthAndInfo(t *testing.T) {
	env := setup(t, false)

	resp := env.api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("health status = %d", resp.Code)
	}
	if !hasLink(resp.Header(), `</openapi.json>; rel="service-desc"`) {
		t.Errorf("health links = %q", resp.Header().Values("Link"))
	}

	info := decode[InfoBody](t, env.api.Get("/api/v1/info").Body.Bytes())
	if info.Name != "plat-eco" || info.Store != "file" || info.DB || info.Regions != 1 || info.Districts != 2 {
		t.Errorf("info = %+v", info)
	}
}

func TestResolveSoato(t *testing.T) {
	env := setup(t, false)
	tests := []struct {
		code     string
		kind     string
		region   string
		district string
		parent   string
		valid    bool
	}{
		{"1726", "region", "1726", "", "all", true},
		{"1726262", "district", "1726", "1726262", "1726", true},
		{"1724413001", "settlement", "1724", "1724413", "1724413", true},
		{"all", "all", "all", "", "all", true},
		{"12345", "unknown", "12345", "", "all", false},
	}
	for _, tt := range tests {
		resp := env.api.Get("/api/v1/soato/" + tt.code)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: status %d", tt.code, resp.Code)
		}
		got := decode[SoatoBody](t, resp.Body.Bytes())
		if got.Kind != tt.kind || got.Region != tt.region || got.District != tt.district || got.Parent != tt.parent || got.Valid != tt.valid {
			t.Errorf("%s: got %+v", tt.code, got)
		}
	}
}

func TestNormalizeGlobalID(t *testing.T) {
	env := setup(t, false)
	got := decode[GlobalIDBody](t, env.api.Get("/api/v1/globalid/%7Babc-123%7D").Body.Bytes())
	if got.Normalized != "ABC-123" || got.Braced != "{ABC-123}" || got.Valid {
		t.Errorf("got %+v", got)
	}
	got = decode[GlobalIDBody](t, env.api.Get("/api/v1/globalid/6f1e2c3a-0000-4000-8000-000000000001").Body.Bytes())
	if !got.Valid || got.Braced != "{6F1E2C3A-0000-4000-8000-000000000001}" {
		t.Errorf("got %+v", got)
	}
}

func TestSelectionRoutes(t *testing.T) {
	env := setup(t, false)
	ch := env.svc.Selection.Bus().Subscribe()
	defer env.svc.Selection.Bus().Unsubscribe(ch)

	sel := decode[service.Selection](t, env.api.Get("/api/v1/selection").Body.Bytes())
	if sel.Soato != "all" || sel.Locale != "ru" {
		t.Errorf("defaults = %+v", sel)
	}

	resp := env.api.Put("/api/v1/selection/selectedSoato", map[string]any{"value": "1726262"})
	if resp.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", resp.Code, resp.Body)
	}
	sel = decode[service.Selection](t, resp.Body.Bytes())
	if sel.Soato != "1726262" || sel.Revision != 1 {
		t.Errorf("after put = %+v", sel)
	}
	ev := <-ch
	if ev.Key != service.KeySoato || ev.Value != "1726262" || ev.Previous != "" {
		t.Errorf("event = %+v", ev)
	}

	if resp := env.api.Put("/api/v1/selection/bogus", map[string]any{"value": "x"}); resp.Code != http.StatusNotFound {
		t.Errorf("unknown key status = %d", resp.Code)
	}
	if resp := env.api.Put("/api/v1/selection/selectedYear", map[string]any{"value": "24"}); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad year status = %d", resp.Code)
	}

	resp = env.api.Put("/api/v1/selection", map[string]string{"selectedYear": "2024", "status": "approved"})
	if resp.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", resp.Code, resp.Body)
	}
	sel = decode[service.Selection](t, resp.Body.Bytes())
	if sel.Year != "2024" || sel.Status != "tasdiqlangan" {
		t.Errorf("after patch = %+v", sel)
	}
	if resp := env.api.Put("/api/v1/selection", map[string]string{"selectedYear": "2025", "nope": "1"}); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("patch with unknown key status = %d", resp.Code)
	}

	fb := decode[FilterBody](t, env.api.Get("/api/v1/selection/filter").Body.Bytes())
	if fb.Query != "district=1726262&limit=50&offset=0&status=tasdiqlangan&year=2024" || fb.Code != "1726262" {
		t.Errorf("filter = %+v", fb)
	}
	if fb.URL != "" {
		t.Errorf("url without upstream = %q", fb.URL)
	}
	env.svc.Upstream = "http://eco.example/"
	fb = decode[FilterBody](t, env.api.Get("/api/v1/selection/filter?limit=10").Body.Bytes())
	if fb.URL != "http://eco.example/api/ecology/geojson?district=1726262&limit=10&offset=0&status=tasdiqlangan&year=2024" {
		t.Errorf("upstream url = %q", fb.URL)
	}
	env.svc.Upstream = ""

	if _, err := env.svc.Selection.Set(context.Background(), service.KeySoato, "1726262001"); err != nil {
		t.Fatal(err)
	}
	fb = decode[FilterBody](t, env.api.Get("/api/v1/selection/filter").Body.Bytes())
	if fb.Query != "limit=50&mahalla_id=1726262001&offset=0&status=tasdiqlangan&year=2024" || fb.Code != "1726262001" {
		t.Errorf("settlement filter = %+v", fb)
	}
	if _, err := env.svc.Selection.Set(context.Background(), service.KeySoato, "1726262"); err != nil {
		t.Fatal(err)
	}

	resp = env.api.Delete("/api/v1/selection/selectedYear")
	sel = decode[service.Selection](t, resp.Body.Bytes())
	if sel.Year != "" || sel.Soato != "1726262" {
		t.Errorf("after delete = %+v", sel)
	}
}

func TestRegionRoutes(t *testing.T) {
	env := setup(t, false)

	list := decode[[]RegionSummary](t, env.api.Get("/api/v1/regions").Body.Bytes())
	if len(list) != len(regions.Table) {
		t.Fatalf("regions = %d", len(list))
	}
	for _, r := range list {
		if r.HasBoundary != (r.Code == "1726") {
			t.Errorf("%s hasBoundary = %v", r.Code, r.HasBoundary)
		}
	}

	resp := env.api.Get("/api/v1/regions/1726")
	if resp.Code != http.StatusOK {
		t.Fatalf("region status = %d", resp.Code)
	}
	body := decode[RegionBody](t, resp.Body.Bytes())
	if body.Kind != "region" || body.Name != "город Ташкент" || body.Parent != "all" {
		t.Errorf("region = %+v", body)
	}
	for _, want := range []string{
		`</api/v1/regions/1726/districts>; rel="districts"; method="GET"; title="Districts"`,
		`</api/v1/regions/1726/mask>; rel="mask"; method="GET"; title="Map mask"`,
		`</api/v1/regions/all>; rel="up"; method="GET"`,
		`</api/v1/regions/1726>; rel="self"`,
	} {
		if !hasLink(resp.Header(), want) {
			t.Errorf("missing link %s in %q", want, resp.Header().Values("Link"))
		}
	}

	body = decode[RegionBody](t, env.api.Get("/api/v1/regions/1726262001?locale=uz-Cyrl").Body.Bytes())
	if body.Kind != "settlement" || body.Name != "Чилонзор" || body.Parent != "1726262" {
		t.Errorf("settlement = %+v", body)
	}

	if resp := env.api.Get("/api/v1/regions/1735"); resp.Code != http.StatusNotFound {
		t.Errorf("missing region status = %d", resp.Code)
	}

	ds := decode[[]DistrictSummary](t, env.api.Get("/api/v1/regions/1726/districts?locale=uz-Latn").Body.Bytes())
	if len(ds) != 2 || ds[0].Code != "1726262" || ds[0].Name != "Chilonzor" {
		t.Errorf("districts = %+v", ds)
	}
	if resp := env.api.Get("/api/v1/regions/1726262/districts"); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("districts of a district status = %d", resp.Code)
	}

	mask := decode[struct {
		Extent   []float64 `json:"extent"`
		Geometry struct {
			Type        string        `json:"type"`
			Coordinates [][][]float64 `json:"-"`
		} `json:"geometry"`
	}](t, env.api.Get("/api/v1/regions/1726/mask").Body.Bytes())
	if mask.Geometry.Type != "MultiPolygon" || len(mask.Extent) != 4 || mask.Extent[0] != 5 {
		t.Errorf("mask = %+v", mask)
	}

	cam := decode[regions.Camera](t, env.api.Get("/api/v1/regions/1726/view").Body.Bytes())
	if cam.Zoom != 10 || len(cam.Center) != 2 {
		t.Errorf("view = %+v", cam)
	}
}

func TestLocate(t *testing.T) {
	env := setup(t, false)

	resp := env.api.Get("/api/v1/locate?lon=69.2&lat=41.2&locale=ru")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body)
	}
	got := decode[LocateBody](t, resp.Body.Bytes())
	if got.Region != "1726" || got.District != "1726262" || got.Code != "1726262" || got.Name != "Чиланзарский район" {
		t.Errorf("locate = %+v", got)
	}
	if resp := env.api.Get("/api/v1/locate?lon=10&lat=10"); resp.Code != http.StatusNotFound {
		t.Errorf("outside status = %d", resp.Code)
	}
	if resp := env.api.Get("/api/v1/locate?lon=500&lat=10"); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid lon status = %d", resp.Code)
	}
}

func seedRecords(t *testing.T, svc *Services) {
	t.Helper()
	records := []service.Record{
		{GID: 1, GlobalID: "{00000000-0000-4000-8000-000000000001}", Region: "1726", District: "1726262", Year: "2024", Status: "jarayonda", Tur: "2", Maydon: 1},
		{GID: 2, GlobalID: "{00000000-0000-4000-8000-000000000002}", Region: "1726", District: "1726262", Year: "2024", Status: "tasdiqlangan", Tur: "2", Maydon: 0.5},
		{GID: 3, GlobalID: "{00000000-0000-4000-8000-000000000003}", Region: "1726", District: "1726269", Year: "2023", Status: "jarayonda", Maydon: 2},
		{GID: 4, GlobalID: "{00000000-0000-4000-8000-000000000004}", Region: "1727", Year: "2024", Status: "tekshirilgan", Tur: "0"},
	}
	if _, err := svc.Records.Insert(context.Background(), records); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestRecordRoutes(t *testing.T) {
	env := setup(t, true)
	seedRecords(t, env.svc)

	resp := env.api.Get("/api/v1/records?region=1726&limit=2")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body)
	}
	page := decode[humastar.PageBody[service.Record]](t, resp.Body.Bytes())
	if page.Total != 3 || len(page.Data) != 2 || page.Data[0].GID != 1 {
		t.Errorf("page = %+v", page)
	}
	if !hasLink(resp.Header(), `</api/v1/records?region=1726&offset=2&limit=2>; rel="next"`) {
		t.Errorf("links = %q", resp.Header().Values("Link"))
	}

	if _, err := env.svc.Selection.Patch(context.Background(), map[service.Key]string{
		service.KeySoato: "1726262001", service.KeyYear: "2024",
	}); err != nil {
		t.Fatal(err)
	}
	// no record carries a mahalla, so the settlement narrows to nothing
	page = decode[humastar.PageBody[service.Record]](t, env.api.Get("/api/v1/records?fromSelection=true").Body.Bytes())
	if page.Total != 0 {
		t.Errorf("settlement page = %+v", page)
	}
	if _, err := env.svc.Selection.Set(context.Background(), service.KeySoato, "1726262"); err != nil {
		t.Fatal(err)
	}
	page = decode[humastar.PageBody[service.Record]](t, env.api.Get("/api/v1/records?fromSelection=true").Body.Bytes())
	if page.Total != 2 {
		t.Errorf("district page = %+v", page)
	}

	stats := decode[service.StatusStats](t, env.api.Get("/api/v1/records/stats?region=1726").Body.Bytes())
	if stats.InProgress != 2 || stats.Approved != 1 || stats.Total != 3 || stats.Maydon != 3.5 {
		t.Errorf("stats = %+v", stats)
	}

	cats := decode[[]service.CategoryStat](t, env.api.Get("/api/v1/records/stats/categories?year=2024").Body.Bytes())
	if len(cats) != 2 || cats[0].Tur != "2" || cats[0].Quantity != 2 || cats[1].Tur != "0" {
		t.Errorf("categories = %+v", cats)
	}

	years := decode[[]service.YearBreakdown](t, env.api.Get("/api/v1/records/stats/breakdown?region=1726").Body.Bytes())
	if len(years) != 2 || years[0].Year != "2024" || years[0].Quantity != 2 || years[1].Year != "2023" {
		t.Fatalf("breakdown = %+v", years)
	}
	if d := years[0].Regions[0].Districts; len(d) != 1 || d[0].District != "1726262" || d[0].Quantity != 2 {
		t.Errorf("2024 districts = %+v", d)
	}

	r := decode[service.Record](t, env.api.Get("/api/v1/records/00000000-0000-4000-8000-000000000002").Body.Bytes())
	if r.GID != 2 {
		t.Errorf("record = %+v", r)
	}
	if resp := env.api.Get("/api/v1/records/%7Bmissing%7D"); resp.Code != http.StatusNotFound {
		t.Errorf("missing record status = %d", resp.Code)
	}

	tables := decode[struct {
		Tables []string `json:"tables"`
	}](t, env.api.Get("/api/v1/tables").Body.Bytes())
	if !slices.Contains(tables.Tables, "ecology") {
		t.Errorf("tables = %v", tables.Tables)
	}
}

func TestRecordsWithoutDatabase(t *testing.T) {
	env := setup(t, false)
	for _, path := range []string{"/api/v1/records", "/api/v1/records/stats", "/api/v1/records/stats/categories", "/api/v1/records/stats/breakdown", "/api/v1/tables"} {
		if resp := env.api.Get(path); resp.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d", path, resp.Code)
		}
	}
}

func TestSignalsPost(t *testing.T) {
	env := setup(t, false)

	resp := env.api.Post("/api/v1/selection/signals", strings.NewReader(`{"selectedYear":2024,"status":"checked","unrelated":true}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.Contains(body, "datastar-patch-signals") || !strings.Contains(body, "tekshirilgan") {
		t.Errorf("body = %s", body)
	}
	sel, _ := env.svc.Selection.Get(context.Background())
	if sel.Year != "2024" || sel.Status != "tekshirilgan" {
		t.Errorf("selection = %+v", sel)
	}

	resp = env.api.Post("/api/v1/selection/signals", strings.NewReader(`{"selectedYear":"x"}`))
	if !strings.Contains(resp.Body.String(), "error") {
		t.Errorf("invalid signal body = %s", resp.Body)
	}
}

func TestEventsStream(t *testing.T) {
	env := setup(t, false)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/selection/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	waitFor := func(substr string) {
		t.Helper()
		for sc.Scan() {
			if strings.Contains(sc.Text(), substr) {
				return
			}
		}
		t.Fatalf("stream ended before %q: %v", substr, sc.Err())
	}

	waitFor(`"selectedSoato":"all"`)
	waitFor(SummarySelector)

	if _, err := env.svc.Selection.Set(ctx, service.KeySoato, "1726"); err != nil {
		t.Fatal(err)
	}
	waitFor(`"selectedSoato":"1726"`)
	waitFor(DistrictSelector)
	waitFor("selection-changed")
}
