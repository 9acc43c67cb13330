package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-eco/internal/regions"
	"github.com/joeblew999/plat-eco/internal/service"
)

type InfoHandler struct {
	dataDir  string
	store    string
	selBus   *service.EventBus
	dbOK     bool
	catalog  *regions.Catalog
	upstream string
}

// NewInfoHandler describes the running instance. store names the selection
// backend ("file" or "redis").
func NewInfoHandler(dataDir, store, upstream string, svc *Services) *InfoHandler {
	h := &InfoHandler{dataDir: dataDir, store: store, upstream: upstream, dbOK: svc.DB != nil, catalog: svc.Regions}
	if svc.Selection != nil {
		h.selBus = svc.Selection.Bus()
	}
	return h
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name        string   `json:"name" doc:"Service name"`
	Version     string   `json:"version" doc:"Service version"`
	DataDir     string   `json:"data_dir" doc:"Data directory path"`
	Store       string   `json:"store" doc:"Selection store backend" enum:"file,redis"`
	DB          bool     `json:"db" doc:"Whether the records database is available"`
	Regions     int      `json:"regions" doc:"Loaded region boundaries"`
	Districts   int      `json:"districts" doc:"Loaded district boundaries"`
	Subscribers int      `json:"subscribers" doc:"Open selection event streams"`
	Upstream    string   `json:"upstream,omitempty" doc:"Upstream ecology API the selection filter targets"`
	Features    []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "plat-eco",
		Version:  Version,
		DataDir:  h.dataDir,
		Store:    h.store,
		DB:       h.dbOK,
		Upstream: h.upstream,
		Features: []string{"soato", "globalid", "selection", "sse"},
	}
	if h.catalog != nil {
		body.Regions, body.Districts = h.catalog.Size()
		if body.Regions > 0 {
			body.Features = append(body.Features, "regions", "mask")
		}
	}
	if h.selBus != nil {
		body.Subscribers = h.selBus.Len()
	}
	if h.dbOK {
		body.Features = append(body.Features, "records", "duckdb")
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
