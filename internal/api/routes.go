// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"database/sql"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-eco/internal/globalid"
	"github.com/joeblew999/plat-eco/internal/regions"
	"github.com/joeblew999/plat-eco/internal/service"
	"github.com/joeblew999/plat-eco/internal/soato"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Selection *service.SelectionService
	Regions   *regions.Catalog
	Records   *service.RecordService
	DB        *sql.DB
	Upstream  string // base URL of the ecology REST API, optional
}

// APIHandler holds the REST handlers. Methods named Register* are
// discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	if svc.Regions == nil {
		svc.Regions = regions.New(nil, nil)
	}
	if svc.Records == nil {
		svc.Records = service.NewRecordService(svc.DB)
	}
	return &APIHandler{svc: svc}
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

// RegisterHealth registers the health check.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

type CodeInput struct {
	Code string `path:"code" doc:"SOATO code or all" example:"1726262"`
}

type SoatoBody struct {
	Code string `json:"code" doc:"Code as given"`
	Kind string `json:"kind" doc:"Granularity" enum:"all,region,district,settlement,unknown"`
	soato.Resolution
	Valid  bool   `json:"valid" doc:"Whether the code has a known length and only digits"`
	Parent string `json:"parent" doc:"Enclosing code" example:"1726"`
}

// RegisterSoato registers the SOATO resolver.
func (h *APIHandler) RegisterSoato(api huma.API) {
	huma.Get(api, "/api/v1/soato/{code}", h.ResolveSoato, huma.OperationTags("soato"))
}

func (h *APIHandler) ResolveSoato(ctx context.Context, input *CodeInput) (*struct{ Body SoatoBody }, error) {
	code := soato.Parse(input.Code)
	return &struct{ Body SoatoBody }{Body: SoatoBody{
		Code:       input.Code,
		Kind:       code.Kind().String(),
		Resolution: code.Resolve(),
		Valid:      code.Valid(),
		Parent:     code.Parent().String(),
	}}, nil
}

type GlobalIDBody struct {
	Input      string `json:"input" doc:"Identifier as given"`
	Normalized string `json:"normalized" doc:"Braces stripped, upper-cased" example:"6F1E2C3A-0000-4000-8000-000000000001"`
	Braced     string `json:"braced" doc:"Canonical braced form" example:"{6F1E2C3A-0000-4000-8000-000000000001}"`
	Valid      bool   `json:"valid" doc:"Whether the identifier is a UUID"`
}

// RegisterGlobalID registers the identifier normalizer.
func (h *APIHandler) RegisterGlobalID(api huma.API) {
	huma.Get(api, "/api/v1/globalid/{id}", h.NormalizeGlobalID, huma.OperationTags("globalid"))
}

func (h *APIHandler) NormalizeGlobalID(ctx context.Context, input *struct {
	ID string `path:"id" doc:"Identifier, braced or not"`
}) (*struct{ Body GlobalIDBody }, error) {
	return &struct{ Body GlobalIDBody }{Body: GlobalIDBody{
		Input:      input.ID,
		Normalized: globalid.Normalize(input.ID),
		Braced:     globalid.Canonical(input.ID),
		Valid:      globalid.Valid(input.ID),
	}}, nil
}

// httpError maps service errors to Huma status errors.
func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrUnknownKey), errors.Is(err, service.ErrInvalidValue):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, regions.ErrOutsideExtent), errors.Is(err, regions.ErrNotPolygonal):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, service.ErrNoDatabase):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, context.Canceled):
		return huma.Error503ServiceUnavailable("request canceled")
	}
	return huma.Error500InternalServerError("internal error", err)
}
