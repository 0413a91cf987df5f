package dataset

import (
	"testing"

	"recipe-resolver/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
)

func TestBuildQuery_DefaultColumns(t *testing.T) {
	q := buildQuery(config.DatasetConfig{})

	assert.Equal(t,
		`SELECT "id"::text, COALESCE("recipe_name", ''), COALESCE("ingredients"::text, ''), COALESCE("img_src", '') `+
			`FROM "recipes" WHERE "recipe_name" ILIKE ANY($1) OR "ingredients"::text ILIKE ANY($1) LIMIT $2`,
		q)
}

func TestBuildQuery_SanitizesIdentifiers(t *testing.T) {
	q := buildQuery(config.DatasetConfig{
		Table:      "public.recipes",
		NameColumn: `name"; DROP TABLE x; --`,
	})

	assert.Contains(t, q, `FROM "public"."recipes"`)
	assert.Contains(t, q, `"name""; DROP TABLE x; --"`)
}

func TestLikePatterns(t *testing.T) {
	got := LikePatterns([]string{"pork", "100%", "a_b", `c\d`})
	assert.Equal(t, []string{`%pork%`, `%100\%%`, `%a\_b%`, `%c\\d%`}, got)
}
