package resolver

import (
	"fmt"
	"strings"

	"recipe-resolver/internal/pkg/common"
)

// Intent 預先分類好的意圖
type Intent string

const (
	IntentSubstitute   Intent = "substitute"
	IntentContext      Intent = "context"
	IntentSuggest      Intent = "suggest"
	IntentSimilar      Intent = "similar"
	IntentSpecific     Intent = "specific"
	IntentRecipeCustom Intent = "recipe_custom"
	IntentLookup       Intent = "lookup"
	IntentRewrite      Intent = "rewrite"
)

// Intents 所有支援的意圖，順序固定
var Intents = []Intent{
	IntentSubstitute,
	IntentContext,
	IntentSuggest,
	IntentSimilar,
	IntentSpecific,
	IntentRecipeCustom,
	IntentLookup,
	IntentRewrite,
}

// Valid 是否為支援的意圖
func (i Intent) Valid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// ParseIntent 解析分類字串
func ParseIntent(s string) (Intent, error) {
	intent := Intent(strings.ToLower(strings.TrimSpace(s)))
	if !intent.Valid() {
		return intent, common.NewValidationError(fmt.Sprintf("unsupported classification: %s", s))
	}
	return intent, nil
}
