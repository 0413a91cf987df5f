package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator 可設定回傳值並記錄呼叫順序
type fakeGenerator struct {
	unavailable bool
	err         error

	recipes      []Candidate
	details      *RecipeDetails
	custom       *Candidate
	substitution *RecipeDetails
	substitutes  *SubstituteResult
	context      []string

	calls              []string
	originalIngredient string
	panicOn            string
}

func (f *fakeGenerator) record(name string) {
	f.calls = append(f.calls, name)
	if f.panicOn == name {
		panic("boom")
	}
}

func (f *fakeGenerator) IsAvailable() bool { return !f.unavailable }

func (f *fakeGenerator) SuggestRecipes(_ context.Context, _ []string, _ int) ([]Candidate, error) {
	f.record("SuggestRecipes")
	return f.recipes, f.err
}

func (f *fakeGenerator) SimilarRecipes(_ context.Context, _ string, _ int) ([]Candidate, error) {
	f.record("SimilarRecipes")
	return f.recipes, f.err
}

func (f *fakeGenerator) RecipesWithRequiredIngredients(_ context.Context, _ []string, _ string, _ int) ([]Candidate, error) {
	f.record("RecipesWithRequiredIngredients")
	return f.recipes, f.err
}

func (f *fakeGenerator) RecipeDetails(_ context.Context, _ string) (*RecipeDetails, error) {
	f.record("RecipeDetails")
	return f.details, f.err
}

func (f *fakeGenerator) RecipeWithSubstitutes(_ context.Context, _ string, _ []string) (*Candidate, error) {
	f.record("RecipeWithSubstitutes")
	return f.custom, f.err
}

func (f *fakeGenerator) SubstitutionDetails(_ context.Context, _, originalIngredients, _, _ string) (*RecipeDetails, error) {
	f.record("SubstitutionDetails")
	f.originalIngredient = originalIngredients
	return f.substitution, f.err
}

func (f *fakeGenerator) Substitutes(_ context.Context, _, _ string, _ int, _ bool) (*SubstituteResult, error) {
	f.record("Substitutes")
	return f.substitutes, f.err
}

func (f *fakeGenerator) ContextMatches(_ context.Context, _ ContextFilter, _ int) ([]string, error) {
	f.record("ContextMatches")
	return f.context, f.err
}

type fakeSearcher struct {
	rows     []Candidate
	calls    int
	gotLimit int
}

func (f *fakeSearcher) Search(_ context.Context, _ []string, limit int) []Candidate {
	f.calls++
	f.gotLimit = limit
	if len(f.rows) > limit {
		return f.rows[:limit]
	}
	return f.rows
}

func toJSON(t *testing.T, env *Envelope) map[string]any {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestResolve_SuggestFallsBackToGenerated(t *testing.T) {
	gen := &fakeGenerator{recipes: []Candidate{
		{Name: "Pad Krapow", Ingredients: []string{"pork", "basil"}},
		{Name: "Garlic Pork"},
	}}
	ds := &fakeSearcher{}
	engine := NewEngine(gen, ds, testDefaults)

	env := engine.Resolve(context.Background(), "suggest", EntityBag{
		"ingredients": []any{"pork", "basil", "garlic"},
		"max_results": float64(3),
	}, 0.92)

	require.False(t, env.Failed())
	assert.Equal(t, 1, ds.calls)
	assert.Equal(t, SourceGenerated, *env.Source)
	assert.Equal(t, 0.92, env.Confidence)

	out := toJSON(t, env)
	assert.Nil(t, out["error"])
	recipes := out["data"].(map[string]any)["recipes"].([]any)
	require.Len(t, recipes, 2)
	for _, r := range recipes {
		row := r.(map[string]any)
		assert.Contains(t, row, "id")
		assert.Nil(t, row["id"])
		assert.Contains(t, row, "image")
		assert.Nil(t, row["image"])
	}
	assert.Nil(t, recipes[1].(map[string]any)["ingredients"])
}

func TestResolve_SuggestPrefersDataset(t *testing.T) {
	gen := &fakeGenerator{recipes: []Candidate{{Name: "never"}}}
	ds := &fakeSearcher{rows: []Candidate{
		{ID: "17", Name: "Basil Pork", Ingredients: []string{"pork", "basil"}, Image: "https://img/17.jpg"},
		{ID: "4", Name: "Pork Rice", Ingredients: []string{"pork"}},
	}}
	engine := NewEngine(gen, ds, testDefaults)

	env := engine.Resolve(context.Background(), "suggest", EntityBag{"ingredients": "pork, basil"}, 0.5)

	assert.Equal(t, SourceDataset, *env.Source)
	assert.Empty(t, gen.calls)

	list := env.Data.(RecipeList)
	require.Len(t, list.Recipes, 2)
	for _, row := range list.Recipes {
		assert.NotNil(t, row.ID)
		assert.NotNil(t, row.Image)
	}
	assert.Equal(t, "17", *list.Recipes[0].ID)
	assert.Equal(t, "https://img/17.jpg", *list.Recipes[0].Image)
}

func TestResolve_SuggestHugeMaxResultsStaysOnDataset(t *testing.T) {
	gen := &fakeGenerator{recipes: []Candidate{{Name: "never"}}}
	ds := &fakeSearcher{rows: []Candidate{{ID: "4", Name: "Pork Rice", Ingredients: []string{"pork", "rice"}}}}
	defaults := testDefaults
	defaults.MaxResultsCap = 20

	env := NewEngine(gen, ds, defaults).Resolve(context.Background(), "suggest", EntityBag{
		"ingredients": []any{"pork"},
		"max_results": json.Number("4000000000000000000"),
	}, 0.8)

	require.False(t, env.Failed())
	assert.Equal(t, SourceDataset, *env.Source)
	assert.Equal(t, 20, ds.gotLimit)
	assert.Empty(t, gen.calls)
	require.Len(t, env.Data.(RecipeList).Recipes, 1)
}

func TestResolve_DatasetRowWithoutImageRendersEmptyString(t *testing.T) {
	ds := &fakeSearcher{rows: []Candidate{{ID: "9", Name: "Plain Congee", Ingredients: []string{"rice"}}}}

	env := NewEngine(&fakeGenerator{}, ds, testDefaults).
		Resolve(context.Background(), "suggest", EntityBag{"ingredients": "rice"}, 0.7)

	row := toJSON(t, env)["data"].(map[string]any)["recipes"].([]any)[0].(map[string]any)
	require.Contains(t, row, "image")
	assert.Equal(t, "", row["image"])
	assert.Equal(t, "9", row["id"])
}

func TestResolve_SuggestBothEmpty(t *testing.T) {
	engine := NewEngine(&fakeGenerator{}, &fakeSearcher{}, testDefaults)

	env := engine.Resolve(context.Background(), "suggest", EntityBag{"ingredients": []any{"kale"}}, 0.3)

	require.False(t, env.Failed())
	assert.Equal(t, SourceNone, *env.Source)
	assert.Equal(t, RecipeList{Recipes: []RecipeRow{}}, env.Data)

	out := toJSON(t, env)
	assert.Equal(t, map[string]any{"recipes": []any{}}, out["data"])
}

func TestResolve_SuggestWithoutDatasetOrGenerator(t *testing.T) {
	engine := NewEngine(&fakeGenerator{unavailable: true}, nil, testDefaults)

	env := engine.Resolve(context.Background(), "suggest", EntityBag{"ingredients": []any{"kale"}}, 0.3)

	require.False(t, env.Failed())
	assert.Equal(t, SourceNone, *env.Source)
}

func TestResolve_GeneratorUnavailableIsNeverCalled(t *testing.T) {
	gen := &fakeGenerator{unavailable: true}
	engine := NewEngine(gen, nil, testDefaults)

	env := engine.Resolve(context.Background(), "similar", EntityBag{"recipe": "Pho"}, 0.8)

	assert.Empty(t, gen.calls)
	assert.Equal(t, SourceNone, *env.Source)
	assert.Nil(t, env.Error)
}

func TestResolve_SimilarEmptyIsNone(t *testing.T) {
	env := NewEngine(&fakeGenerator{}, nil, testDefaults).
		Resolve(context.Background(), "similar", EntityBag{"recipe": "Pho"}, 0.8)

	assert.Equal(t, SourceNone, *env.Source)
	assert.Nil(t, env.Error)
}

func TestResolve_SpecificCapsResults(t *testing.T) {
	gen := &fakeGenerator{recipes: []Candidate{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	env := NewEngine(gen, nil, testDefaults).Resolve(context.Background(), "specific", EntityBag{
		"required_ingredients": []any{"egg"},
		"max_results":          2,
	}, 0.8)

	assert.Equal(t, SourceGenerated, *env.Source)
	assert.Len(t, env.Data.(RecipeList).Recipes, 2)
}

func TestResolve_LookupAbsentIsReportedError(t *testing.T) {
	env := NewEngine(&fakeGenerator{}, nil, testDefaults).
		Resolve(context.Background(), "lookup", EntityBag{"recipe": "Pad Gaprao"}, 0.77)

	require.True(t, env.Failed())
	assert.Equal(t, "could not find details for recipe: Pad Gaprao", *env.Error)
	assert.Nil(t, env.Data)
	assert.Nil(t, env.Source)
	assert.Equal(t, 0.77, env.Confidence)

	out := toJSON(t, env)
	assert.Contains(t, out, "data")
	assert.Nil(t, out["data"])
	assert.Contains(t, out, "source")
	assert.Nil(t, out["source"])
}

func TestResolve_LookupFound(t *testing.T) {
	gen := &fakeGenerator{details: &RecipeDetails{
		Ingredients:   []string{"chicken", "holy basil"},
		CookingMethod: []string{"Stir-fry chicken", "Add basil"},
	}}
	env := NewEngine(gen, nil, testDefaults).
		Resolve(context.Background(), "lookup", EntityBag{"recipe": "Pad Gaprao"}, 0.9)

	assert.Equal(t, SourceGenerated, *env.Source)
	assert.Equal(t, RecipeDetailData{
		Name:          "Pad Gaprao",
		Ingredients:   []string{"chicken", "holy basil"},
		CookingMethod: []string{"Stir-fry chicken", "Add basil"},
	}, env.Data)
}

func TestResolve_TransportErrorIsDowngraded(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection reset")}

	env := NewEngine(gen, nil, testDefaults).
		Resolve(context.Background(), "similar", EntityBag{"recipe": "Pho"}, 0.6)
	assert.Nil(t, env.Error)
	assert.Equal(t, SourceNone, *env.Source)

	env = NewEngine(gen, nil, testDefaults).
		Resolve(context.Background(), "lookup", EntityBag{"recipe": "Pho"}, 0.6)
	require.NotNil(t, env.Error)
	assert.Equal(t, "could not find details for recipe: Pho", *env.Error)
}

func TestResolve_RecipeCustom(t *testing.T) {
	gen := &fakeGenerator{custom: &Candidate{Name: "Tofu Stew", Ingredients: []string{"tofu", "carrot"}}}
	env := NewEngine(gen, nil, testDefaults).Resolve(context.Background(), "recipe_custom", EntityBag{
		"recipe":      "Beef Stew",
		"substitutes": []any{"tofu"},
	}, 0.9)

	require.False(t, env.Failed())
	row := env.Data.(RecipeRow)
	assert.Equal(t, "Tofu Stew", row.Name)
	assert.Nil(t, row.ID)
	assert.Nil(t, row.Image)

	env = NewEngine(&fakeGenerator{}, nil, testDefaults).Resolve(context.Background(), "recipe_custom", EntityBag{
		"recipe":      "Beef Stew",
		"substitutes": []any{"tofu"},
	}, 0.9)
	require.True(t, env.Failed())
	assert.Equal(t, "could not generate recipe: Beef Stew", *env.Error)
}

func TestResolve_RewriteFetchesIngredientsOnce(t *testing.T) {
	gen := &fakeGenerator{
		details:      &RecipeDetails{Ingredients: []string{"beef", "potato", "carrot"}},
		substitution: &RecipeDetails{Ingredients: []string{"tofu", "potato", "carrot"}, CookingMethod: []string{"Simmer"}},
	}
	env := NewEngine(gen, nil, testDefaults).Resolve(context.Background(), "rewrite", EntityBag{
		"recipe":      "Beef Stew",
		"ingredient":  "beef",
		"replacement": "tofu",
	}, 0.88)

	require.False(t, env.Failed())
	assert.Equal(t, []string{"RecipeDetails", "SubstitutionDetails"}, gen.calls)
	assert.Equal(t, "beef, potato, carrot", gen.originalIngredient)
	assert.Equal(t, "Beef Stew", env.Data.(RecipeDetailData).Name)
}

func TestResolve_RewriteWithOriginalIngredientsSkipsLookup(t *testing.T) {
	gen := &fakeGenerator{substitution: &RecipeDetails{Ingredients: []string{"tofu"}}}
	env := NewEngine(gen, nil, testDefaults).Resolve(context.Background(), "rewrite", EntityBag{
		"recipe":               "Beef Stew",
		"ingredient":           "beef",
		"replacement":          "tofu",
		"original_ingredients": "beef, potato",
	}, 0.88)

	require.False(t, env.Failed())
	assert.Equal(t, []string{"SubstitutionDetails"}, gen.calls)
	assert.Equal(t, "beef, potato", gen.originalIngredient)
}

func TestResolve_RewriteErrors(t *testing.T) {
	bag := EntityBag{"recipe": "Beef Stew", "ingredient": "beef", "replacement": "tofu"}

	gen := &fakeGenerator{}
	env := NewEngine(gen, nil, testDefaults).Resolve(context.Background(), "rewrite", bag, 0.5)
	require.True(t, env.Failed())
	assert.Equal(t, "could not fetch ingredients for recipe: Beef Stew", *env.Error)
	assert.Equal(t, []string{"RecipeDetails"}, gen.calls)

	gen = &fakeGenerator{details: &RecipeDetails{Ingredients: []string{"beef"}}}
	env = NewEngine(gen, nil, testDefaults).Resolve(context.Background(), "rewrite", bag, 0.5)
	require.True(t, env.Failed())
	assert.Equal(t, "could not rewrite recipe: Beef Stew", *env.Error)
}

func TestResolve_SubstituteReasons(t *testing.T) {
	result := func() *SubstituteResult {
		return &SubstituteResult{
			Items:   []string{"margarine", "coconut oil"},
			Reasons: map[string]string{"margarine": "similar fat content"},
		}
	}

	env := NewEngine(&fakeGenerator{substitutes: result()}, nil, testDefaults).Resolve(context.Background(), "substitute",
		EntityBag{"ingredient": "butter", "include_reasoning": true}, 0.9)
	assert.Equal(t, SourceGenerated, *env.Source)
	data := env.Data.(SubstituteData)
	assert.Equal(t, []string{"margarine", "coconut oil"}, data.Substitutes)
	assert.Equal(t, "similar fat content", data.Reasons["margarine"])

	env = NewEngine(&fakeGenerator{substitutes: result()}, nil, testDefaults).Resolve(context.Background(), "substitute",
		EntityBag{"ingredient": "butter"}, 0.9)
	out := toJSON(t, env)
	assert.NotContains(t, out["data"], "reasons")
}

func TestResolve_SubstituteEmptyAnswerIsGenerated(t *testing.T) {
	gen := &fakeGenerator{substitutes: &SubstituteResult{}}
	env := NewEngine(gen, nil, testDefaults).Resolve(context.Background(), "substitute",
		EntityBag{"ingredient": "saffron"}, 0.4)

	assert.Equal(t, SourceGenerated, *env.Source)
	assert.Equal(t, SubstituteData{Substitutes: []string{}}, env.Data)

	env = NewEngine(&fakeGenerator{unavailable: true}, nil, testDefaults).Resolve(context.Background(), "substitute",
		EntityBag{"ingredient": "saffron"}, 0.4)
	assert.Equal(t, SourceNone, *env.Source)
	assert.Nil(t, env.Error)
}

func TestResolve_ContextWithEmptyFilter(t *testing.T) {
	gen := &fakeGenerator{context: []string{"chili", "ginger"}}
	env := NewEngine(gen, nil, testDefaults).Resolve(context.Background(), "context", EntityBag{}, 0.7)

	assert.Equal(t, SourceGenerated, *env.Source)
	assert.Equal(t, ContextData{Ingredients: []string{"chili", "ginger"}}, env.Data)
}

func TestResolve_ValidationAndUnknownIntent(t *testing.T) {
	engine := NewEngine(&fakeGenerator{}, nil, testDefaults)

	env := engine.Resolve(context.Background(), "suggest", EntityBag{}, 0.61)
	require.True(t, env.Failed())
	assert.Equal(t, "missing required field: ingredients", *env.Error)
	assert.Equal(t, 0.61, env.Confidence)

	env = engine.Resolve(context.Background(), "dessert", EntityBag{}, 0.2)
	require.True(t, env.Failed())
	assert.Equal(t, "dessert", env.Classification)
	assert.Equal(t, "unsupported classification: dessert", *env.Error)
}

func TestResolve_PanicBecomesErrorEnvelope(t *testing.T) {
	gen := &fakeGenerator{panicOn: "SimilarRecipes"}
	env := NewEngine(gen, nil, testDefaults).Resolve(context.Background(), "similar", EntityBag{"recipe": "Pho"}, 0.55)

	require.True(t, env.Failed())
	assert.Contains(t, *env.Error, "boom")
	assert.Nil(t, env.Data)
	assert.Equal(t, 0.55, env.Confidence)
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeGenerator{recipes: []Candidate{{Name: "x"}}}
	env := NewEngine(gen, nil, testDefaults).Resolve(ctx, "similar", EntityBag{"recipe": "Pho"}, 0.5)

	require.True(t, env.Failed())
	assert.Equal(t, "request cancelled", *env.Error)
	assert.Empty(t, gen.calls)
}

func TestResolve_ConfidenceAlwaysEchoed(t *testing.T) {
	engine := NewEngine(&fakeGenerator{}, &fakeSearcher{}, testDefaults)
	bags := map[Intent]EntityBag{
		IntentSubstitute:   {"ingredient": "egg"},
		IntentContext:      {},
		IntentSuggest:      {"ingredients": "egg"},
		IntentSimilar:      {"recipe": "Omelette"},
		IntentSpecific:     {"required_ingredients": "egg"},
		IntentRecipeCustom: {"recipe": "Omelette", "substitutes": "tofu"},
		IntentLookup:       {"recipe": "Omelette"},
		IntentRewrite:      {"recipe": "Omelette"},
	}
	for intent, bag := range bags {
		env := engine.Resolve(context.Background(), string(intent), bag, 0.123)
		assert.Equal(t, 0.123, env.Confidence, intent)
		assert.Equal(t, string(intent), env.Classification, intent)
	}
}
