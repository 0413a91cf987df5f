package resolver

import "context"

// Provenance 紀錄實際產出資料的層級
type Provenance string

const (
	SourceDataset   Provenance = "dataset"
	SourceGenerated Provenance = "generated"
	SourceNone      Provenance = "none"
)

// Candidate 一筆食譜結果。ID 與 Image 只有資料庫來源才會有值
type Candidate struct {
	ID          string
	Name        string
	Ingredients []string
	Image       string
}

// RecipeDetails 食譜詳情：食材清單與烹調步驟
type RecipeDetails struct {
	Ingredients   []string
	CookingMethod []string
}

// SubstituteResult 替代食材結果，Reasons 以替代食材為鍵
type SubstituteResult struct {
	Items   []string
	Reasons map[string]string
}

// ContextFilter 以口味/口感/顏色/烹調方式篩選食材，欄位皆可為空
type ContextFilter struct {
	Taste              string
	Texture            string
	Color              string
	CookingMethod      string
	RecipeTitle        string
	NaturalDescription string
}

// IsEmpty 是否沒有任何篩選條件
func (f ContextFilter) IsEmpty() bool {
	return f.Taste == "" && f.Texture == "" && f.Color == "" &&
		f.CookingMethod == "" && f.RecipeTitle == "" && f.NaturalDescription == ""
}

// Generator 生成式後端能力。
//
// 回傳 nil 結果代表「沒有結果」，error 一律視為傳輸錯誤，由協調器降級為未命中。
// 呼叫前必須先確認 IsAvailable。
type Generator interface {
	IsAvailable() bool
	SuggestRecipes(ctx context.Context, ingredients []string, limit int) ([]Candidate, error)
	SimilarRecipes(ctx context.Context, recipe string, limit int) ([]Candidate, error)
	RecipesWithRequiredIngredients(ctx context.Context, required []string, recipeContext string, limit int) ([]Candidate, error)
	RecipeDetails(ctx context.Context, recipe string) (*RecipeDetails, error)
	RecipeWithSubstitutes(ctx context.Context, recipe string, substitutes []string) (*Candidate, error)
	SubstitutionDetails(ctx context.Context, recipe, originalIngredients, originalIngredient, newIngredient string) (*RecipeDetails, error)
	Substitutes(ctx context.Context, ingredient, recipeContext string, limit int, includeReasoning bool) (*SubstituteResult, error)
	ContextMatches(ctx context.Context, filter ContextFilter, limit int) ([]string, error)
}

// CandidateSearcher 資料庫層。依匹配詞數遞減排序，不回傳零匹配結果，錯誤時回傳空清單
type CandidateSearcher interface {
	Search(ctx context.Context, terms []string, limit int) []Candidate
}
