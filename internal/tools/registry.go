// Package tools provides the catalog of data-lookup operations the
// model may request during an analysis. The catalog only describes
// contracts; execution belongs to the host application's executor.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/scout-ai/scout/internal/model"
	"github.com/scout-ai/scout/internal/tools/schemas"
	"github.com/scout-ai/scout/pkg/protocol"
)

// Executor performs a tool call on behalf of the orchestrator. It is
// supplied by the host application and does all actual data access;
// the credential is an opaque bearer token passed through untouched.
type Executor func(ctx context.Context, call protocol.ToolCall, credential string) protocol.ToolResult

// Registry is the static tool catalog.
type Registry struct {
	schemas *schemas.Registry
}

// NewRegistry creates a registry with the full investor tool catalog.
func NewRegistry() *Registry {
	r := &Registry{schemas: schemas.NewRegistry()}
	r.initialize()
	return r
}

// Schemas returns the underlying schema registry.
func (r *Registry) Schemas() *schemas.Registry {
	return r.schemas
}

// Has reports whether a tool with the given name is cataloged.
func (r *Registry) Has(name string) bool {
	_, ok := r.schemas.Get(name)
	return ok
}

// Defs returns the catalog as tool definitions for the inference engine.
func (r *Registry) Defs() []model.ToolDef {
	all := r.schemas.All()
	defs := make([]model.ToolDef, 0, len(all))
	for _, s := range all {
		defs = append(defs, model.ToolDef{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.Parameters,
		})
	}
	return defs
}

// CatalogText renders the catalog as prompt-ready lines.
func (r *Registry) CatalogText() string {
	var b strings.Builder
	for _, s := range r.schemas.All() {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Description)
	}
	return strings.TrimSpace(b.String())
}

// initialize registers the full catalog. These names form the contract
// the host executor must honor.
func (r *Registry) initialize() {
	// === LOOKUP TOOLS ===
	r.schemas.Register(schemas.NewSchema("get_person", "Fetch a person's full profile by ID").
		AddParam("person_id", "string", "Unique identifier of the person", true).
		Build())

	r.schemas.Register(schemas.NewSchema("get_company", "Fetch a company's profile and funding data by ID").
		AddParam("company_id", "string", "Unique identifier of the company", true).
		Build())

	r.schemas.Register(schemas.NewSchema("score_candidate", "Score a candidate's highlights against the active investment persona").
		AddParam("highlights", "array", "Feature tags describing the candidate", true).
		Build())

	// === FEEDBACK TOOLS ===
	r.schemas.Register(schemas.NewSchema("bulk_like", "Mark multiple entities as liked, recording their datapoints as positive signals").
		AddParam("entity_ids", "array", "IDs of the entities to like", true).
		AddParam("datapoints", "array", "Feature tags carried by the entities", true).
		AddParam("note", "string", "Optional note explaining the action", false).
		Build())

	r.schemas.Register(schemas.NewSchema("bulk_dislike", "Mark multiple entities as disliked, recording their datapoints as negative signals").
		AddParam("entity_ids", "array", "IDs of the entities to dislike", true).
		AddParam("datapoints", "array", "Feature tags carried by the entities", true).
		AddParam("note", "string", "Optional note explaining the action", false).
		Build())

	// === WORKFLOW TOOLS ===
	r.schemas.Register(schemas.NewSchema("create_shortlist", "Create a named shortlist containing the given entities").
		AddParam("name", "string", "Name for the shortlist", true).
		AddParam("entity_ids", "array", "IDs of the entities to include", true).
		Build())

	r.schemas.Register(schemas.NewSchema("get_learned_weights", "Inspect the learned preference weights for the active persona").
		AddParam("limit", "integer", "Maximum number of weights to return", false).
		Build())

	r.schemas.Register(schemas.NewSchema("switch_persona", "Switch the active investment persona").
		AddParam("persona_id", "string", "ID of the persona to activate", true).
		Build())
}
