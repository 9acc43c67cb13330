package humastar

import "fmt"

// ActionDef is a reusable action template. Pattern holds a single %s verb
// for the resource ID.
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
}

// ActionsFor expands defs for the resource id.
func ActionsFor(id string, defs ...ActionDef) []Action {
	actions := make([]Action, len(defs))
	for i, d := range defs {
		actions[i] = Action{
			Rel:    d.Rel,
			Href:   fmt.Sprintf(d.Pattern, id),
			Method: d.Method,
			Title:  d.Title,
		}
	}
	return actions
}
