package service

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/joeblew999/plat-eco/internal/db"
)

const recordsFixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [69.2, 41.3]},
     "properties": {"gid": 1, "globalid": "{aaaaaaaa-0000-4000-8000-000000000001}", "district": "1726262", "yil": "2024", "status": "jarayonda", "maydon": 1.5, "tur": 1}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [69.3, 41.2]},
     "properties": {"gid": 2, "GlobalID": "AAAAAAAA-0000-4000-8000-000000000002", "mahalla_id": "1726262001", "yil": "2024", "status": "tasdiqlangan", "tur": "1"}},
    {"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[64,40],[66,40],[66,42],[64,42],[64,40]]]},
     "properties": {"gid": 3, "globalid": "aaaaaaaa-0000-4000-8000-000000000003", "region": 1703, "yil": "2023", "status": "tekshirilgan", "tur": 4, "maydon": 2.25}},
    {"type": "Feature", "geometry": null, "properties": {"gid": 4, "yil": "2024"}}
  ]
}`

func newTestRecords(t *testing.T) *RecordService {
	t.Helper()
	conn, err := db.Open(db.Config{})
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	svc := NewRecordService(conn)
	n, err := svc.ImportGeoJSON(context.Background(), strings.NewReader(recordsFixture))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 3 {
		t.Fatalf("imported %d records, want 3", n)
	}
	return svc
}

func TestRecordFromFeatureAreaCodes(t *testing.T) {
	svc := newTestRecords(t)
	rec, err := svc.Get(context.Background(), "AAAAAAAA-0000-4000-8000-000000000002")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Region != "1726" || rec.District != "1726262" || rec.Mahalla != "1726262001" {
		t.Fatalf("area codes = %s/%s/%s", rec.Region, rec.District, rec.Mahalla)
	}
	if rec.GlobalID != "{AAAAAAAA-0000-4000-8000-000000000002}" {
		t.Fatalf("globalid = %q", rec.GlobalID)
	}
}

func TestRecordPolygonCentroid(t *testing.T) {
	svc := newTestRecords(t)
	rec, err := svc.Get(context.Background(), "{aaaaaaaa-0000-4000-8000-000000000003}")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(rec.Longitude-65) > 1e-9 || math.Abs(rec.Latitude-41) > 1e-9 {
		t.Fatalf("centroid = %v,%v", rec.Longitude, rec.Latitude)
	}
	if rec.Region != "1703" || rec.District != "" {
		t.Fatalf("region = %q district = %q", rec.Region, rec.District)
	}
}

func TestRecordGetNotFound(t *testing.T) {
	svc := newTestRecords(t)
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRecordList(t *testing.T) {
	svc := newTestRecords(t)
	ctx := context.Background()

	recs, total, err := svc.List(ctx, Filter{District: "1726262"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(recs) != 2 || recs[0].GID != 1 {
		t.Fatalf("district list = %d %v", total, recs)
	}

	recs, total, err = svc.List(ctx, Filter{Year: "2024", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(recs) != 1 || recs[0].GID != 2 {
		t.Fatalf("paged list = %d %v", total, recs)
	}
}

func TestRecordStats(t *testing.T) {
	svc := newTestRecords(t)
	stats, err := svc.Stats(context.Background(), Filter{Year: "2024", Status: "jarayonda"})
	if err != nil {
		t.Fatal(err)
	}
	want := StatusStats{InProgress: 1, Approved: 1, Total: 2, Maydon: 1.5}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

func TestRecordCategories(t *testing.T) {
	svc := newTestRecords(t)
	ctx := context.Background()

	got, err := svc.Categories(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	want := []CategoryStat{{Tur: "1", Quantity: 2, Maydon: 1.5}, {Tur: "4", Quantity: 1, Maydon: 2.25}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("categories = %+v, want %+v", got, want)
	}

	got, err = svc.Categories(ctx, Filter{Year: "2023", Tur: "4"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Tur != "4" {
		t.Fatalf("filtered categories = %+v", got)
	}
}

func TestRecordBreakdown(t *testing.T) {
	svc := newTestRecords(t)
	got, err := svc.Breakdown(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	want := []YearBreakdown{
		{Year: "2024", Quantity: 2, Regions: []RegionBreakdown{
			{Region: "1726", Quantity: 2, Districts: []DistrictBreakdown{
				{District: "1726262", Quantity: 2, Mahallas: []MahallaCount{{Mahalla: "1726262001", Quantity: 1}}},
			}},
		}},
		{Year: "2023", Quantity: 1, Regions: []RegionBreakdown{
			{Region: "1703", Quantity: 1, Districts: []DistrictBreakdown{}},
		}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("breakdown = %+v, want %+v", got, want)
	}
}

func TestRecordServiceWithoutDatabase(t *testing.T) {
	svc := NewRecordService(nil)
	if _, _, err := svc.List(context.Background(), Filter{}); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Categories(context.Background(), Filter{}); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("categories err = %v", err)
	}
	if _, err := svc.Breakdown(context.Background(), Filter{}); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("breakdown err = %v", err)
	}
}
