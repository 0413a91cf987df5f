package recipe

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"recipe-resolver/internal/pkg/common"

	"github.com/kaptinlin/jsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

type replyKind string

const (
	replyRecipeList    replyKind = "recipe_list"
	replyRecipeDetails replyKind = "recipe_details"
	replyCustomRecipe  replyKind = "custom_recipe"
	replySubstitutes   replyKind = "substitutes"
	replyContext       replyKind = "context_matches"
)

var replyKinds = []replyKind{
	replyRecipeList,
	replyRecipeDetails,
	replyCustomRecipe,
	replySubstitutes,
	replyContext,
}

// compileSchemas 編譯所有回應格式的 JSON Schema
func compileSchemas() (map[replyKind]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	out := make(map[replyKind]*jsonschema.Schema, len(replyKinds))
	for _, kind := range replyKinds {
		data, err := schemaFS.ReadFile("schemas/" + string(kind) + ".json")
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", kind, err)
		}
		schema, err := compiler.Compile(data)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", kind, err)
		}
		out[kind] = schema
	}
	return out, nil
}

// flexList 接受字串陣列或逗號/換行分隔的單一字串
type flexList []string

func (l *flexList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = splitLines(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = clean(items)
	return nil
}

// splitLines 步驟常以換行分隔，食材常以逗號分隔
func splitLines(s string) []string {
	if strings.Contains(s, "\n") {
		return clean(strings.Split(s, "\n"))
	}
	return common.SplitList(s)
}

func clean(items []string) []string {
	var out []string
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type recipeListReply struct {
	Recipes []struct {
		Name        string   `json:"name"`
		Ingredients flexList `json:"ingredients"`
	} `json:"recipes"`
}

type recipeDetailsReply struct {
	Ingredients   flexList `json:"ingredients"`
	CookingMethod flexList `json:"cooking_method"`
}

type customRecipeReply struct {
	Name        string   `json:"name"`
	Ingredients flexList `json:"ingredients"`
}

type substitutesReply struct {
	Substitutes flexList          `json:"substitutes"`
	Reasons     map[string]string `json:"reasons"`
}

type contextReply struct {
	Ingredients flexList `json:"ingredients"`
}

// notFound 是否為明確的「沒有結果」回應
func notFound(raw string) bool {
	var probe struct {
		Found *bool `json:"found"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return false
	}
	return probe.Found != nil && !*probe.Found
}
