package schemaverify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/datavet/datavet/config"
	"github.com/datavet/datavet/connector"
	"github.com/datavet/datavet/validate/result"
)

func TestCompare(t *testing.T) {
	source := []connector.SchemaColumn{
		{Name: "id", DeclaredType: "bigint"},
		{Name: "email", DeclaredType: "varchar(255)"},
		{Name: "legacy_flag", DeclaredType: "boolean"},
		{Name: "total", DeclaredType: "numeric(10,2)"},
	}
	target := []connector.SchemaColumn{
		{Name: "id", DeclaredType: "int8"},
		{Name: "email", DeclaredType: "text"},
		{Name: "total", DeclaredType: "double precision"},
		{Name: "loaded_at", DeclaredType: "timestamptz"},
	}

	diffs := compare(source, target)
	byColumn := map[string]int{}
	for _, d := range diffs {
		byColumn[d.column]++
	}

	// legacy_flag missing in target, loaded_at missing in source, total type
	// mismatch. id and email normalize to matching canonical types.
	require.Len(t, diffs, 3)
	require.Equal(t, 1, byColumn["legacy_flag"])
	require.Equal(t, 1, byColumn["loaded_at"])
	require.Equal(t, 1, byColumn["total"])
}

func TestCompareIdentical(t *testing.T) {
	cols := []connector.SchemaColumn{
		{Name: "id", DeclaredType: "bigint"},
		{Name: "name", DeclaredType: "text"},
	}
	require.Empty(t, compare(cols, cols))
}

func newSpec(critical ...string) *config.ValidationSpec {
	return &config.ValidationSpec{
		Name:        "schema check",
		Kind:        config.KindSchema,
		Source:      "legacy",
		Target:      "warehouse",
		SourceTable: "orders",
		TargetTable: "orders",
		Schema:      &config.SchemaOptions{CriticalColumns: critical},
	}
}

func handlesFor(source, target []connector.SchemaColumn) (*connector.Handle, *connector.Handle) {
	sourceFake := connector.MakeFake("legacy")
	sourceFake.Schemas["orders"] = source
	targetFake := connector.MakeFake("warehouse")
	targetFake.Schemas["orders"] = target
	return connector.FakeHandle(sourceFake), connector.FakeHandle(targetFake)
}

func TestValidate(t *testing.T) {
	v := New(zerolog.Nop())

	matching := []connector.SchemaColumn{{Name: "id", DeclaredType: "bigint"}}
	divergent := []connector.SchemaColumn{{Name: "id", DeclaredType: "text"}}

	t.Run("identical schemas pass", func(t *testing.T) {
		source, target := handlesFor(matching, matching)
		res, err := v.Validate(context.Background(), newSpec(), source, target)
		require.NoError(t, err)
		require.Equal(t, result.Passed, res.Status)
		require.Empty(t, res.SchemaDifferences)
	})

	t.Run("non-critical differences warn", func(t *testing.T) {
		source, target := handlesFor(matching, divergent)
		res, err := v.Validate(context.Background(), newSpec(), source, target)
		require.NoError(t, err)
		require.Equal(t, result.Warning, res.Status)
		require.Len(t, res.SchemaDifferences, 1)
	})

	t.Run("critical differences fail", func(t *testing.T) {
		source, target := handlesFor(matching, divergent)
		res, err := v.Validate(context.Background(), newSpec("ID"), source, target)
		require.NoError(t, err)
		require.Equal(t, result.Failed, res.Status)
	})
}

func TestFetchSchemaFromQuery(t *testing.T) {
	fake := connector.MakeFake("legacy")
	fake.Datasets["SELECT id, email FROM users"] = &connector.Rows{
		Columns: []string{"id", "email"},
		Types:   []string{"int8", "text"},
		Data:    [][]any{{1, "a@x.com"}},
	}
	h := connector.FakeHandle(fake)

	schema, err := FetchSchema(context.Background(), h, "SELECT id, email FROM users", true)
	require.NoError(t, err)
	require.Equal(t, []connector.SchemaColumn{
		{Name: "id", DeclaredType: "int8", Nullable: true},
		{Name: "email", DeclaredType: "text", Nullable: true},
	}, schema)
}

func TestFetchSchemaTableNamedSelections(t *testing.T) {
	declared := []connector.SchemaColumn{
		{Name: "id", DeclaredType: "bigint", Nullable: false},
		{Name: "choice", DeclaredType: "text", Nullable: true},
	}
	fake := connector.MakeFake("legacy")
	fake.Schemas["selections"] = declared
	h := connector.FakeHandle(fake)

	// A table identifier containing "select" still goes through the declared
	// schema, not a limit-1 read.
	schema, err := FetchSchema(context.Background(), h, "selections", false)
	require.NoError(t, err)
	require.Equal(t, declared, schema)
}
