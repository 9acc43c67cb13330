package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-eco/internal/humastar"
)

// domainLinks are relations the OpenAPI paths alone do not reveal.
// Enables restish hypermedia navigation via `restish links <url>`.
var domainLinks = map[string][][2]string{
	"/api/v1/selection": {
		{"/api/v1/selection/events", "monitor"},
		{"/api/v1/selection/filter", "filter"},
		{"/api/v1/records?fromSelection=true", "records"},
	},
	"/api/v1/selection/filter": {
		{"/api/v1/records?fromSelection=true", "records"},
		{"/api/v1/records/stats?fromSelection=true", "stats"},
	},
	"/api/v1/regions": {
		{"/api/v1/locate", "search"},
		{"/api/v1/soato/{code}", "resolve"},
	},
	"/api/v1/records": {
		{"/api/v1/records/stats", "stats"},
		{"/api/v1/tables", "tables"},
	},
	"/api/v1/records/stats": {
		{"/api/v1/records", "collection"},
		{"/api/v1/records/stats/categories", "categories"},
		{"/api/v1/records/stats/breakdown", "breakdown"},
	},
	"/api/v1/locate": {
		{"/api/v1/regions", "collection"},
	},
}

// Links derives the Link headers for every registered route. Call it after
// all routes are registered; l.Transformer() must already be installed.
func Links(api huma.API, l *humastar.Links) {
	l.Derive(api)
	for from, targets := range domainLinks {
		for _, t := range targets {
			l.Add(from, t[0], t[1])
		}
	}
}
