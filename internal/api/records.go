package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-eco/internal/humastar"
	"github.com/joeblew999/plat-eco/internal/service"
)

// RecordsInput filters records explicitly or, with fromSelection, by the
// shared selection. Paging always comes from the request.
type RecordsInput struct {
	service.Filter
	FromSelection bool `query:"fromSelection" doc:"Derive year, area and status from the shared selection"`
}

func (h *APIHandler) filter(ctx context.Context, in *RecordsInput) (service.Filter, error) {
	if !in.FromSelection {
		return in.Filter, nil
	}
	f, err := h.svc.Selection.Filter(ctx)
	if err != nil {
		return service.Filter{}, err
	}
	f.Offset, f.Limit = in.Offset, in.Limit
	return f, nil
}

// RegisterRecords registers the ecology record routes.
func (h *APIHandler) RegisterRecords(api huma.API) {
	huma.Get(api, "/api/v1/records", h.ListRecords, huma.OperationTags("records"))
	huma.Get(api, "/api/v1/records/stats", h.RecordStats, huma.OperationTags("records"))
	huma.Get(api, "/api/v1/records/stats/categories", h.RecordCategories, huma.OperationTags("records"))
	huma.Get(api, "/api/v1/records/stats/breakdown", h.RecordBreakdown, huma.OperationTags("records"))
	huma.Get(api, "/api/v1/records/{globalid}", h.GetRecord, huma.OperationTags("records"))
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("records"))
}

func (h *APIHandler) ListRecords(ctx context.Context, input *RecordsInput) (*struct {
	Body humastar.PageBody[service.Record]
}, error) {
	f, err := h.filter(ctx, input)
	if err != nil {
		return nil, httpError(err)
	}
	records, total, err := h.svc.Records.List(ctx, f)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct {
		Body humastar.PageBody[service.Record]
	}{Body: humastar.PageBody[service.Record]{
		Total: total, Offset: f.Offset, Limit: f.Limit, Data: records,
	}}, nil
}

func (h *APIHandler) RecordStats(ctx context.Context, input *RecordsInput) (*struct{ Body service.StatusStats }, error) {
	f, err := h.filter(ctx, input)
	if err != nil {
		return nil, httpError(err)
	}
	stats, err := h.svc.Records.Stats(ctx, f)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body service.StatusStats }{Body: stats}, nil
}

// RecordCategories counts records per violation category.
func (h *APIHandler) RecordCategories(ctx context.Context, input *RecordsInput) (*struct{ Body []service.CategoryStat }, error) {
	f, err := h.filter(ctx, input)
	if err != nil {
		return nil, httpError(err)
	}
	stats, err := h.svc.Records.Categories(ctx, f)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body []service.CategoryStat }{Body: stats}, nil
}

// RecordBreakdown counts records per year, region, district and settlement.
func (h *APIHandler) RecordBreakdown(ctx context.Context, input *RecordsInput) (*struct{ Body []service.YearBreakdown }, error) {
	f, err := h.filter(ctx, input)
	if err != nil {
		return nil, httpError(err)
	}
	years, err := h.svc.Records.Breakdown(ctx, f)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body []service.YearBreakdown }{Body: years}, nil
}

func (h *APIHandler) GetRecord(ctx context.Context, input *struct {
	GlobalID string `path:"globalid" doc:"GlobalID, braced or not"`
}) (*struct{ Body service.Record }, error) {
	r, err := h.svc.Records.Get(ctx, input.GlobalID)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body service.Record }{Body: r}, nil
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// ListTables returns all DuckDB tables.
func (h *APIHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	rows, err := h.svc.DB.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	out := &TablesOutput{}
	out.Body.Tables = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, huma.Error500InternalServerError("Failed to list tables", err)
		}
		out.Body.Tables = append(out.Body.Tables, name)
	}
	return out, nil
}
