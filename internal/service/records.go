package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/plat-eco/internal/globalid"
	"github.com/joeblew999/plat-eco/internal/metrics"
	"github.com/joeblew999/plat-eco/internal/soato"
)

// Record is one ecology inspection record.
type Record struct {
	GID       int64   `json:"gid" doc:"Backend feature id"`
	GlobalID  string  `json:"globalid" doc:"GlobalID, braced" example:"{6F1E2C3A-0000-4000-8000-000000000001}"`
	Region    string  `json:"region" doc:"Region SOATO code" example:"1726"`
	District  string  `json:"district,omitempty" doc:"District SOATO code" example:"1726262"`
	Mahalla   string  `json:"mahalla,omitempty" doc:"Settlement SOATO code"`
	Year      string  `json:"year" doc:"Inspection year" example:"2024"`
	Status    string  `json:"status" doc:"Status (Uzbek value)" example:"jarayonda"`
	Tur       string  `json:"tur,omitempty" doc:"Violation category"`
	Maydon    float64 `json:"maydon" doc:"Area in hectares"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// StatusStats counts records per status.
type StatusStats struct {
	Checked    int     `json:"checkedCount"`
	Approved   int     `json:"approvedCount"`
	Rejected   int     `json:"rejectedCount"`
	InProgress int     `json:"inProgressCount"`
	Total      int     `json:"total"`
	Maydon     float64 `json:"totalMaydon" doc:"Total area in hectares"`
}

// CategoryStat counts the records of one violation category.
type CategoryStat struct {
	Tur      string  `json:"tur" doc:"Violation category"`
	Quantity int     `json:"quantity"`
	Maydon   float64 `json:"maydon" doc:"Total area in hectares"`
}

// YearBreakdown counts one year's records per region, district and
// settlement. Records without a district count toward their region only.
type YearBreakdown struct {
	Year     string            `json:"year" example:"2024"`
	Quantity int               `json:"quantity"`
	Regions  []RegionBreakdown `json:"regions"`
}

type RegionBreakdown struct {
	Region    string              `json:"region" example:"1726"`
	Quantity  int                 `json:"quantity"`
	Districts []DistrictBreakdown `json:"districts"`
}

type DistrictBreakdown struct {
	District string         `json:"district" example:"1726262"`
	Quantity int            `json:"quantity"`
	Mahallas []MahallaCount `json:"mahallas"`
}

type MahallaCount struct {
	Mahalla  string `json:"mahalla_id" example:"1726262001"`
	Quantity int    `json:"quantity"`
}

// RecordService queries ecology records stored in DuckDB.
type RecordService struct {
	db *sql.DB
}

// NewRecordService creates a record service. db may be nil, in which case
// every query fails with ErrNoDatabase.
func NewRecordService(db *sql.DB) *RecordService {
	return &RecordService{db: db}
}

// ErrNoDatabase is returned when the records database is unavailable.
var ErrNoDatabase = errors.New("records database not available")

const recordColumns = "gid, globalid, region, district, mahalla, year, status, tur, maydon, latitude, longitude"

// List returns one page of records matching f and the total match count.
func (s *RecordService) List(ctx context.Context, f Filter) ([]Record, int, error) {
	if s.db == nil {
		return nil, 0, ErrNoDatabase
	}
	defer observe("list", time.Now())

	where, args := f.Where()

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ecology "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	q := "SELECT " + recordColumns + " FROM ecology " + where + " ORDER BY gid"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, r)
	}
	return records, total, rows.Err()
}

// Get finds a record by GlobalID, ignoring braces and case.
func (s *RecordService) Get(ctx context.Context, id string) (Record, error) {
	if s.db == nil {
		return Record{}, ErrNoDatabase
	}
	defer observe("get", time.Now())

	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM ecology WHERE globalid = ?", globalid.Canonical(id))
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return r, err
}

// Stats counts records per status. The status field of f is ignored so
// every column of the statistics view stays visible.
func (s *RecordService) Stats(ctx context.Context, f Filter) (StatusStats, error) {
	if s.db == nil {
		return StatusStats{}, ErrNoDatabase
	}
	defer observe("stats", time.Now())

	f.Status = ""
	where, args := f.Where()
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*), COALESCE(SUM(maydon), 0) FROM ecology "+where+" GROUP BY status", args...)
	if err != nil {
		return StatusStats{}, fmt.Errorf("count statuses: %w", err)
	}
	defer rows.Close()

	var stats StatusStats
	for rows.Next() {
		var (
			status sql.NullString
			n      int
			area   float64
		)
		if err := rows.Scan(&status, &n, &area); err != nil {
			return StatusStats{}, err
		}
		stats.Total += n
		stats.Maydon += area
		st, err := ParseStatus(status.String)
		if err != nil {
			continue
		}
		switch st {
		case StatusChecked:
			stats.Checked += n
		case StatusApproved:
			stats.Approved += n
		case StatusRejected:
			stats.Rejected += n
		case StatusInProgress:
			stats.InProgress += n
		}
	}
	return stats, rows.Err()
}

// Categories counts records per violation category, largest first.
// Records without a category are left out.
func (s *RecordService) Categories(ctx context.Context, f Filter) ([]CategoryStat, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	defer observe("categories", time.Now())

	where, args := f.Where()
	rows, err := s.db.QueryContext(ctx,
		"SELECT tur, COUNT(*), COALESCE(SUM(maydon), 0) FROM ecology "+
			and(where, "COALESCE(tur, '') <> ''")+
			" GROUP BY tur ORDER BY 2 DESC, 1", args...)
	if err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	defer rows.Close()

	stats := []CategoryStat{}
	for rows.Next() {
		var c CategoryStat
		if err := rows.Scan(&c.Tur, &c.Quantity, &c.Maydon); err != nil {
			return nil, err
		}
		stats = append(stats, c)
	}
	return stats, rows.Err()
}

// Breakdown counts records per year, region, district and settlement,
// newest year first.
func (s *RecordService) Breakdown(ctx context.Context, f Filter) ([]YearBreakdown, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	defer observe("breakdown", time.Now())

	where, args := f.Where()
	rows, err := s.db.QueryContext(ctx,
		"SELECT COALESCE(year, ''), COALESCE(region, ''), COALESCE(district, ''), COALESCE(mahalla, ''), COUNT(*) FROM ecology "+
			where+" GROUP BY 1, 2, 3, 4 ORDER BY 1 DESC, 2, 3, 4", args...)
	if err != nil {
		return nil, fmt.Errorf("count areas: %w", err)
	}
	defer rows.Close()

	years := []YearBreakdown{}
	for rows.Next() {
		var (
			year, region, district, mahalla string
			n                               int
		)
		if err := rows.Scan(&year, &region, &district, &mahalla, &n); err != nil {
			return nil, err
		}

		if len(years) == 0 || years[len(years)-1].Year != year {
			years = append(years, YearBreakdown{Year: year, Regions: []RegionBreakdown{}})
		}
		y := &years[len(years)-1]
		y.Quantity += n

		if len(y.Regions) == 0 || y.Regions[len(y.Regions)-1].Region != region {
			y.Regions = append(y.Regions, RegionBreakdown{Region: region, Districts: []DistrictBreakdown{}})
		}
		r := &y.Regions[len(y.Regions)-1]
		r.Quantity += n
		if district == "" {
			continue
		}

		if len(r.Districts) == 0 || r.Districts[len(r.Districts)-1].District != district {
			r.Districts = append(r.Districts, DistrictBreakdown{District: district, Mahallas: []MahallaCount{}})
		}
		d := &r.Districts[len(r.Districts)-1]
		d.Quantity += n
		if mahalla != "" {
			d.Mahallas = append(d.Mahallas, MahallaCount{Mahalla: mahalla, Quantity: n})
		}
	}
	return years, rows.Err()
}

// and appends cond to a WHERE clause built by Filter.Where.
func and(where, cond string) string {
	if where == "" {
		return "WHERE " + cond
	}
	return where + " AND " + cond
}

// Insert upserts records in one transaction.
func (s *RecordService) Insert(ctx context.Context, records []Record) (int, error) {
	if s.db == nil {
		return 0, ErrNoDatabase
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO ecology ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.GID, globalid.Canonical(r.GlobalID), r.Region, r.District, r.Mahalla,
			r.Year, r.Status, r.Tur, r.Maydon, r.Latitude, r.Longitude,
		); err != nil {
			return 0, fmt.Errorf("insert %s: %w", r.GlobalID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

// ImportGeoJSON loads a feature collection of records. Features without a
// GlobalID are skipped.
func (s *RecordService) ImportGeoJSON(ctx context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return 0, fmt.Errorf("parsing geojson: %w", err)
	}

	records := make([]Record, 0, len(fc.Features))
	for _, f := range fc.Features {
		rec, ok := RecordFromFeature(f)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return s.Insert(ctx, records)
}

// RecordFromFeature maps a backend feature to a record. The area codes
// are derived from the finest SOATO code the feature carries.
func RecordFromFeature(f *geojson.Feature) (Record, bool) {
	props := map[string]any(f.Properties)
	id, ok := globalid.FromProperties(props)
	if !ok {
		return Record{}, false
	}

	rec := Record{
		GID:      int64(f.Properties.MustFloat64("gid", 0)),
		GlobalID: globalid.Canonical(id),
		Year:     propString(props, "yil", "year"),
		Tur:      propString(props, "tur"),
		Maydon:   f.Properties.MustFloat64("maydon", 0),
	}
	if st, err := ParseStatus(propString(props, "status", "holat")); err == nil {
		rec.Status = st.Uzbek()
	}

	code := soato.Parse(propString(props, "mahalla_id", "mahalla", "district", "region"))
	if !code.IsAll() {
		res := code.Resolve()
		rec.Region = res.Region
		rec.District = res.District
		rec.Mahalla = code.Settlement()
	}

	if f.Geometry != nil {
		var pt orb.Point
		switch g := f.Geometry.(type) {
		case orb.Point:
			pt = g
		default:
			pt, _ = planar.CentroidArea(g)
		}
		rec.Longitude, rec.Latitude = pt.Lon(), pt.Lat()
	} else {
		rec.Latitude = f.Properties.MustFloat64("latitude", 0)
		rec.Longitude = f.Properties.MustFloat64("longitude", 0)
	}
	return rec, true
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		r                                  Record
		district, mahalla, status, tur, yr sql.NullString
		region                             sql.NullString
		maydon, lat, lon                   sql.NullFloat64
	)
	if err := row.Scan(&r.GID, &r.GlobalID, &region, &district, &mahalla, &yr, &status, &tur, &maydon, &lat, &lon); err != nil {
		return Record{}, err
	}
	r.Region, r.District, r.Mahalla = region.String, district.String, mahalla.String
	r.Year, r.Status, r.Tur = yr.String, status.String, tur.String
	r.Maydon, r.Latitude, r.Longitude = maydon.Float64, lat.Float64, lon.Float64
	return r, nil
}

// propString returns the first non-empty property among keys, formatting
// numbers without a fraction.
func propString(props map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := props[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func observe(query string, start time.Time) {
	metrics.RecordQueryDurationMs.WithLabelValues(query).Observe(float64(time.Since(start).Milliseconds()))
}
