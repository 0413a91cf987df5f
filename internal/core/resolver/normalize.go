package resolver

import (
	"fmt"
	"strings"

	"recipe-resolver/internal/pkg/common"
)

const (
	defaultSubstituteRecipe = "General Recipe"
	defaultSimilarResults   = 4
	defaultSpecificResults  = 5
	defaultMaxResultsCap    = 50
)

// Defaults 各意圖的結果數上限，由設定檔提供
type Defaults struct {
	MaxRecipes        int
	MaxSubstitutes    int
	MaxContextResults int
	// MaxResultsCap 呼叫端 max_results 的上限，0 時使用 50
	MaxResultsCap int
}

// Params 正規化後的意圖參數
type Params interface {
	Intent() Intent
}

type SubstituteParams struct {
	Ingredient       string
	Recipe           string
	IncludeReasoning bool
	MaxResults       int
}

type ContextParams struct {
	Filter     ContextFilter
	MaxResults int
}

type SuggestParams struct {
	Ingredients []string
	MaxResults  int
}

type SimilarParams struct {
	Recipe     string
	MaxResults int
}

type SpecificParams struct {
	RequiredIngredients []string
	RecipeContext       string
	MaxResults          int
}

type RecipeCustomParams struct {
	Recipe      string
	Substitutes []string
}

type LookupParams struct {
	Recipe string
}

// RewriteParams OriginalIngredients 為空時，協調器會先查詢食譜詳情
type RewriteParams struct {
	Recipe              string
	Ingredient          string
	Replacement         string
	OriginalIngredients string
}

func (SubstituteParams) Intent() Intent   { return IntentSubstitute }
func (ContextParams) Intent() Intent      { return IntentContext }
func (SuggestParams) Intent() Intent      { return IntentSuggest }
func (SimilarParams) Intent() Intent      { return IntentSimilar }
func (SpecificParams) Intent() Intent     { return IntentSpecific }
func (RecipeCustomParams) Intent() Intent { return IntentRecipeCustom }
func (LookupParams) Intent() Intent       { return IntentLookup }
func (RewriteParams) Intent() Intent      { return IntentRewrite }

// MissingFieldError 必填欄位缺漏
type MissingFieldError struct {
	Intent Intent
	Fields []string
}

// Field 第一個缺漏的欄位
func (e *MissingFieldError) Field() string {
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[0]
}

func (e *MissingFieldError) Error() string {
	if len(e.Fields) == 1 {
		return "missing required field: " + e.Fields[0]
	}
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// ValidationFailure 讓 common.IsValidationError 能辨識
func (e *MissingFieldError) ValidationFailure() bool { return true }

func missing(intent Intent, fields ...string) error {
	return &MissingFieldError{Intent: intent, Fields: fields}
}

// Normalize 將鬆散的實體參數轉為各意圖的嚴格參數。
//
// 規則：平面鍵優先，其次 entities["attributes"]，最後套用預設值。
// 必填欄位缺漏時回傳 *MissingFieldError，不會呼叫任何解析層。
func Normalize(intent Intent, bag EntityBag, defaults Defaults) (Params, error) {
	// nil 與空的實體視為相同
	if bag == nil {
		bag = EntityBag{}
	}

	switch intent {
	// 替代食材：ingredient 必填，沒有食譜時使用通用名稱
	case IntentSubstitute:
		ingredient := bag.String("ingredient")
		if ingredient == "" {
			return nil, missing(intent, "ingredient")
		}
		recipe := bag.String("recipe")
		if recipe == "" {
			recipe = defaultSubstituteRecipe
		}
		return SubstituteParams{
			Ingredient:       ingredient,
			Recipe:           recipe,
			IncludeReasoning: bag.Bool("include_reasoning"),
			MaxResults:       maxResults(bag, defaults.MaxSubstitutes, defaults.MaxResultsCap),
		}, nil

	// 情境查詢：沒有必填欄位，recipe_context 優先於 recipe
	case IntentContext:
		recipeTitle := bag.String("recipe_context")
		if recipeTitle == "" {
			recipeTitle = bag.String("recipe")
		}
		// 屬性可放在平面鍵或 attributes 之下
		return ContextParams{
			Filter: ContextFilter{
				Taste:              bag.FlatOrNested("attributes", "taste"),
				Texture:            bag.FlatOrNested("attributes", "texture"),
				Color:              bag.FlatOrNested("attributes", "color"),
				CookingMethod:      bag.FlatOrNested("attributes", "cooking_method"),
				RecipeTitle:        recipeTitle,
				NaturalDescription: bag.String("natural_description"),
			},
			MaxResults: maxResults(bag, defaults.MaxContextResults, defaults.MaxResultsCap),
		}, nil

	// 食材推薦：字串以逗號拆開，清單逐項去空白
	case IntentSuggest:
		ingredients := bag.Strings("ingredients")
		if len(ingredients) == 0 {
			return nil, missing(intent, "ingredients")
		}
		return SuggestParams{
			Ingredients: ingredients,
			MaxResults:  maxResults(bag, defaults.MaxRecipes, defaults.MaxResultsCap),
		}, nil

	// 相似食譜
	case IntentSimilar:
		recipe := bag.String("recipe")
		if recipe == "" {
			return nil, missing(intent, "recipe")
		}
		return SimilarParams{Recipe: recipe, MaxResults: maxResults(bag, defaultSimilarResults, defaults.MaxResultsCap)}, nil

	// 指定食材：每一項都必須出現在結果中
	case IntentSpecific:
		required := bag.Strings("required_ingredients")
		if len(required) == 0 {
			return nil, missing(intent, "required_ingredients")
		}
		return SpecificParams{
			RequiredIngredients: required,
			RecipeContext:       bag.String("recipe_context"),
			MaxResults:          maxResults(bag, defaultSpecificResults, defaults.MaxResultsCap),
		}, nil

	// 自訂食譜：食譜與替代食材皆必填
	case IntentRecipeCustom:
		recipe := bag.String("recipe")
		if recipe == "" {
			return nil, missing(intent, "recipe")
		}
		substitutes := bag.Strings("substitutes")
		if len(substitutes) == 0 {
			return nil, missing(intent, "substitutes")
		}
		return RecipeCustomParams{Recipe: recipe, Substitutes: substitutes}, nil

	// 食譜詳情
	case IntentLookup:
		recipe := bag.String("recipe")
		if recipe == "" {
			return nil, missing(intent, "recipe")
		}
		return LookupParams{Recipe: recipe}, nil

	// 改寫食譜：一次列出所有缺漏欄位
	case IntentRewrite:
		p := RewriteParams{
			Recipe:      bag.String("recipe"),
			Ingredient:  bag.String("ingredient"),
			Replacement: bag.String("replacement"),
			// 字串或清單皆可，清單以 ", " 串接
			OriginalIngredients: bag.String("original_ingredients"),
		}
		var absent []string
		if p.Recipe == "" {
			absent = append(absent, "recipe")
		}
		if p.Ingredient == "" {
			absent = append(absent, "ingredient")
		}
		if p.Replacement == "" {
			absent = append(absent, "replacement")
		}
		if len(absent) > 0 {
			return nil, missing(intent, absent...)
		}
		return p, nil
	}

	return nil, common.NewValidationError(fmt.Sprintf("unsupported classification: %s", intent))
}

// maxResults 呼叫端指定的數量超過上限時截斷，避免放大資料庫查詢與提示詞
func maxResults(bag EntityBag, fallback, ceiling int) int {
	if ceiling <= 0 {
		ceiling = defaultMaxResultsCap
	}
	n, ok := bag.Int("max_results")
	if !ok || n <= 0 {
		return fallback
	}
	return min(n, ceiling)
}
