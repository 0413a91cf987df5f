package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"recipe-resolver/internal/core/ai/service"
	"recipe-resolver/internal/core/resolver"
	"recipe-resolver/internal/pkg/common"

	"github.com/kaptinlin/jsonschema"
	"go.uber.org/zap"
)

var errNoJSON = errors.New("no JSON object in generative reply")

// Completer 生成式後端，*service.Service 實作此介面
type Completer interface {
	Available() bool
	ProcessRequest(ctx context.Context, prompt string, accept service.Accept) (*service.Response, error)
}

// Generator 以提示詞呼叫生成式後端並解析 JSON 回應
type Generator struct {
	ai      Completer
	schemas map[replyKind]*jsonschema.Schema
}

var _ resolver.Generator = (*Generator)(nil)

// NewGenerator 創建生成層
func NewGenerator(ai Completer) (*Generator, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Generator{ai: ai, schemas: schemas}, nil
}

// IsAvailable 後端是否已設定
func (g *Generator) IsAvailable() bool {
	return g.ai != nil && g.ai.Available()
}

// ask 送出提示詞，回應驗證通過後解析到 out。
// 回傳 false 代表後端明確表示沒有結果。
// 驗證在快取寫入前進行，格式錯誤的回應不會被快取。
func (g *Generator) ask(ctx context.Context, kind replyKind, prompt string, out any) (bool, error) {
	var found bool
	_, err := g.ai.ProcessRequest(ctx, prompt, func(content string) error {
		var err error
		found, err = g.decode(ctx, kind, content, out)
		return err
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// decode 擷取回應中的 JSON，通過 schema 驗證後解析到 out
func (g *Generator) decode(ctx context.Context, kind replyKind, content string, out any) (bool, error) {
	raw, ok := common.ExtractJSONObject(content)
	if !ok {
		return false, errNoJSON
	}
	// 模型偶爾省略鍵名引號
	if !json.Valid([]byte(raw)) {
		raw = common.QuoteJSONKeys(raw)
	}

	result := g.schemas[kind].ValidateJSON([]byte(raw))
	if !result.IsValid() {
		common.LogWarn("生成式回應格式不符",
			zap.String("request_id", common.RequestIDFrom(ctx)),
			zap.String("kind", string(kind)),
			zap.Int("reply_length", len(raw)),
		)
		return false, fmt.Errorf("%s reply failed schema validation: %v", kind, result.Errors)
	}
	if notFound(raw) {
		return false, nil
	}
	if err := common.ParseJSON(raw, out); err != nil {
		return false, fmt.Errorf("failed to parse %s reply: %w", kind, err)
	}
	return true, nil
}

func (g *Generator) recipeList(ctx context.Context, prompt string, limit int) ([]resolver.Candidate, error) {
	var reply recipeListReply
	found, err := g.ask(ctx, replyRecipeList, prompt, &reply)
	if err != nil || !found {
		return nil, err
	}

	out := make([]resolver.Candidate, 0, len(reply.Recipes))
	for _, r := range reply.Recipes {
		if r.Name == "" {
			continue
		}
		out = append(out, resolver.Candidate{Name: r.Name, Ingredients: r.Ingredients})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (g *Generator) SuggestRecipes(ctx context.Context, ingredients []string, limit int) ([]resolver.Candidate, error) {
	return g.recipeList(ctx, suggestPrompt(ingredients, limit), limit)
}

func (g *Generator) SimilarRecipes(ctx context.Context, recipe string, limit int) ([]resolver.Candidate, error) {
	return g.recipeList(ctx, similarPrompt(recipe, limit), limit)
}

func (g *Generator) RecipesWithRequiredIngredients(ctx context.Context, required []string, recipeContext string, limit int) ([]resolver.Candidate, error) {
	return g.recipeList(ctx, requiredIngredientsPrompt(required, recipeContext, limit), limit)
}

// RecipeDetails 沒有食材也沒有步驟時視為找不到
func (g *Generator) RecipeDetails(ctx context.Context, recipe string) (*resolver.RecipeDetails, error) {
	return g.details(ctx, detailsPrompt(recipe))
}

func (g *Generator) SubstitutionDetails(ctx context.Context, recipe, originalIngredients, originalIngredient, newIngredient string) (*resolver.RecipeDetails, error) {
	return g.details(ctx, substitutionPrompt(recipe, originalIngredients, originalIngredient, newIngredient))
}

func (g *Generator) details(ctx context.Context, prompt string) (*resolver.RecipeDetails, error) {
	var reply recipeDetailsReply
	found, err := g.ask(ctx, replyRecipeDetails, prompt, &reply)
	if err != nil || !found {
		return nil, err
	}
	if len(reply.Ingredients) == 0 && len(reply.CookingMethod) == 0 {
		return nil, nil
	}
	return &resolver.RecipeDetails{
		Ingredients:   reply.Ingredients,
		CookingMethod: reply.CookingMethod,
	}, nil
}

func (g *Generator) RecipeWithSubstitutes(ctx context.Context, recipe string, substitutes []string) (*resolver.Candidate, error) {
	var reply customRecipeReply
	found, err := g.ask(ctx, replyCustomRecipe, customRecipePrompt(recipe, substitutes), &reply)
	if err != nil || !found || reply.Name == "" {
		return nil, err
	}
	return &resolver.Candidate{Name: reply.Name, Ingredients: reply.Ingredients}, nil
}

// Substitutes 只有要求時才保留原因，且只保留出現在清單中的替代食材
func (g *Generator) Substitutes(ctx context.Context, ingredient, recipeContext string, limit int, includeReasoning bool) (*resolver.SubstituteResult, error) {
	var reply substitutesReply
	found, err := g.ask(ctx, replySubstitutes, substitutesPrompt(ingredient, recipeContext, limit, includeReasoning), &reply)
	if err != nil {
		return nil, err
	}
	if !found {
		return &resolver.SubstituteResult{}, nil
	}

	items := []string(reply.Substitutes)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	result := &resolver.SubstituteResult{Items: items}
	if includeReasoning && len(reply.Reasons) > 0 {
		result.Reasons = make(map[string]string, len(items))
		for _, item := range items {
			if reason, ok := reply.Reasons[item]; ok && reason != "" {
				result.Reasons[item] = reason
			}
		}
	}
	return result, nil
}

func (g *Generator) ContextMatches(ctx context.Context, filter resolver.ContextFilter, limit int) ([]string, error) {
	var reply contextReply
	found, err := g.ask(ctx, replyContext, contextPrompt(filter, limit), &reply)
	if err != nil || !found {
		return nil, err
	}
	items := []string(reply.Ingredients)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
