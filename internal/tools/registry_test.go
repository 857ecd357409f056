package tools

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scout-ai/scout/internal/tools/schemas"
)

func TestCatalogNamesAndOrder(t *testing.T) {
	r := NewRegistry()

	want := []string{
		"get_person",
		"get_company",
		"score_candidate",
		"bulk_like",
		"bulk_dislike",
		"create_shortlist",
		"get_learned_weights",
		"switch_persona",
	}
	require.Equal(t, want, r.Schemas().List())

	for _, name := range want {
		require.True(t, r.Has(name), "missing %s", name)
	}
	require.False(t, r.Has("delete_everything"))
}

func TestDefsMirrorSchemas(t *testing.T) {
	r := NewRegistry()
	defs := r.Defs()
	require.Len(t, defs, 8)

	require.Equal(t, "get_person", defs[0].Name)
	require.NotEmpty(t, defs[0].Description)

	props, ok := defs[0].Parameters["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "person_id")
	require.Equal(t, []string{"person_id"}, defs[0].Parameters["required"])
}

func TestCatalogText(t *testing.T) {
	r := NewRegistry()
	text := r.CatalogText()
	require.Contains(t, text, "- get_person: ")
	require.Contains(t, text, "- switch_persona: ")
	require.NotContains(t, text, "\n\n")
}

func TestBulkLikeOptionalNote(t *testing.T) {
	r := NewRegistry()
	s, ok := r.Schemas().Get("bulk_like")
	require.True(t, ok)

	required, ok := s.Parameters["required"].([]string)
	require.True(t, ok)
	require.ElementsMatch(t, []string{"entity_ids", "datapoints"}, required)
	props := s.Parameters["properties"].(map[string]any)
	require.Contains(t, props, "note")
}

func TestRegisterReplacesInPlace(t *testing.T) {
	r := schemas.NewRegistry()
	r.Register(schemas.NewSchema("a", "first").Build())
	r.Register(schemas.NewSchema("b", "second").Build())
	r.Register(schemas.NewSchema("a", "updated").Build())

	require.Equal(t, []string{"a", "b"}, r.List())
	s, ok := r.Get("a")
	require.True(t, ok)
	require.Equal(t, "updated", s.Description)
}
