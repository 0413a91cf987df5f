package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-resolver/internal/pkg/common"

	"go.uber.org/zap"
)

// Tier 解析層
type Tier string

const (
	TierDataset    Tier = "dataset"
	TierGenerative Tier = "generative"
)

// emptyRule 所有解析層都沒有結果時的處理方式
type emptyRule int

const (
	// 回傳空資料，來源為 none
	emptyIsNone emptyRule = iota
	// 後端有回應就算 generated，即使是空的
	emptyIsAnswer
	// 沒有合法的空結果，回報錯誤
	emptyIsError
)

type policy struct {
	tiers       []Tier
	onEmpty     emptyRule
	missMessage string
}

// policies 各意圖的解析層順序
var policies = map[Intent]policy{
	IntentSuggest:      {tiers: []Tier{TierDataset, TierGenerative}, onEmpty: emptyIsNone},
	IntentSimilar:      {tiers: []Tier{TierGenerative}, onEmpty: emptyIsNone},
	IntentSpecific:     {tiers: []Tier{TierGenerative}, onEmpty: emptyIsNone},
	IntentSubstitute:   {tiers: []Tier{TierGenerative}, onEmpty: emptyIsAnswer},
	IntentContext:      {tiers: []Tier{TierGenerative}, onEmpty: emptyIsAnswer},
	IntentLookup:       {tiers: []Tier{TierGenerative}, onEmpty: emptyIsError, missMessage: "could not find details for recipe: %s"},
	IntentRecipeCustom: {tiers: []Tier{TierGenerative}, onEmpty: emptyIsError, missMessage: "could not generate recipe: %s"},
	IntentRewrite:      {tiers: []Tier{TierGenerative}, onEmpty: emptyIsError, missMessage: "could not rewrite recipe: %s"},
}

// ReportedError 沒有合法空結果的意圖所回報的錯誤
type ReportedError struct {
	Message string
}

func (e *ReportedError) Error() string { return e.Message }

func reported(format string, args ...any) error {
	return &ReportedError{Message: fmt.Sprintf(format, args...)}
}

var errTierUnavailable = errors.New("tier unavailable")

// Engine 解析協調器。
//
// generator 與 dataset 在啟動時建立一次，之後只讀；dataset 可為 nil。
// 同一請求內各解析層依序執行，前一層有結果就停止。
type Engine struct {
	generator Generator
	dataset   CandidateSearcher
	defaults  Defaults
}

// NewEngine 建立協調器
func NewEngine(generator Generator, dataset CandidateSearcher, defaults Defaults) *Engine {
	return &Engine{
		generator: generator,
		dataset:   dataset,
		defaults:  defaults,
	}
}

// Resolve 解析一個已分類的請求，永遠回傳格式完整的 Envelope
func (e *Engine) Resolve(ctx context.Context, classification string, bag EntityBag, confidence float64) (env *Envelope) {
	start := time.Now()
	requestID := common.RequestIDFrom(ctx)

	// 任何 panic 都轉成錯誤回應
	defer func() {
		if r := recover(); r != nil {
			common.LogError("意圖解析發生 panic",
				zap.String("request_id", requestID),
				zap.String("classification", classification),
				zap.Any("panic", r),
			)
			env = ErrorEnvelope(classification, fmt.Sprintf("internal error: %v", r), confidence)
		}
	}()

	// 解析意圖
	intent, err := ParseIntent(classification)
	if err != nil {
		return ErrorEnvelope(classification, err.Error(), confidence)
	}

	// 正規化實體參數，缺少必填欄位時不呼叫任何解析層
	params, err := Normalize(intent, bag, e.defaults)
	if err != nil {
		common.LogWarn("實體參數驗證失敗",
			zap.String("request_id", requestID),
			zap.String("classification", string(intent)),
			zap.Error(err),
		)
		return ErrorEnvelope(string(intent), err.Error(), confidence)
	}

	// 依序執行解析層
	out, src, err := e.resolve(ctx, intent, params)

	// 傳輸層的期限到了，不回傳部分結果
	switch ctx.Err() {
	case context.DeadlineExceeded:
		err = errors.New("request timed out")
	case context.Canceled:
		err = errors.New("request cancelled")
	}

	if err != nil {
		common.LogWarn("意圖解析失敗",
			zap.String("request_id", requestID),
			zap.String("classification", string(intent)),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return ErrorEnvelope(string(intent), err.Error(), confidence)
	}

	// 記錄成功並依來源整形資料
	common.LogInfo("意圖解析完成",
		zap.String("request_id", requestID),
		zap.String("classification", string(intent)),
		zap.String("source", string(src)),
		zap.Duration("duration", time.Since(start)),
	)
	return successEnvelope(intent, out.shape(src), src, confidence)
}

func (e *Engine) resolve(ctx context.Context, intent Intent, params Params) (payload, Provenance, error) {
	pol, ok := policies[intent]
	if !ok {
		return nil, SourceNone, fmt.Errorf("no resolution policy for %s", intent)
	}
	requestID := common.RequestIDFrom(ctx)

	var answer payload
	for _, tier := range pol.tiers {
		// 請求已取消或逾時，不再嘗試下一層
		if ctx.Err() != nil {
			break
		}

		out, err := e.attempt(ctx, tier, params)
		var rep *ReportedError
		switch {
		// 回報錯誤直接結束，不再往下一層
		case errors.As(err, &rep):
			return nil, SourceNone, err
		case errors.Is(err, errTierUnavailable):
			common.LogDebug("解析層不可用，略過",
				zap.String("request_id", requestID),
				zap.String("tier", string(tier)),
			)
			continue
		// 傳輸錯誤降級為未命中
		case err != nil:
			common.LogWarn("解析層錯誤，視為未命中",
				zap.String("request_id", requestID),
				zap.String("classification", string(intent)),
				zap.String("tier", string(tier)),
				zap.Error(err),
			)
			continue
		}

		// 第一個有結果的解析層勝出
		if out != nil && !out.empty() {
			return out, provenanceOf(tier), nil
		}
		common.LogDebug("解析層沒有結果",
			zap.String("request_id", requestID),
			zap.String("classification", string(intent)),
			zap.String("tier", string(tier)),
		)
		answer = out
	}

	// 全部未命中，依意圖決定空結果的處理
	switch pol.onEmpty {
	case emptyIsAnswer:
		if answer != nil {
			return answer, SourceGenerated, nil
		}
		return emptyPayload(params), SourceNone, nil
	case emptyIsError:
		return nil, SourceNone, reported(pol.missMessage, recipeOf(params))
	default:
		return emptyPayload(params), SourceNone, nil
	}
}

func (e *Engine) attempt(ctx context.Context, tier Tier, params Params) (payload, error) {
	switch tier {
	case TierDataset:
		return e.searchDataset(ctx, params)
	case TierGenerative:
		if e.generator == nil || !e.generator.IsAvailable() {
			return nil, errTierUnavailable
		}
		return e.generate(ctx, params)
	}
	return nil, fmt.Errorf("unknown tier: %s", tier)
}

func (e *Engine) searchDataset(ctx context.Context, params Params) (payload, error) {
	if e.dataset == nil {
		return nil, errTierUnavailable
	}
	p, ok := params.(SuggestParams)
	if !ok {
		return nil, fmt.Errorf("dataset tier cannot serve %s", params.Intent())
	}
	return candidates(e.dataset.Search(ctx, p.Ingredients, p.MaxResults)), nil
}

func (e *Engine) generate(ctx context.Context, params Params) (payload, error) {
	g := e.generator
	switch p := params.(type) {
	case SuggestParams:
		out, err := g.SuggestRecipes(ctx, p.Ingredients, p.MaxResults)
		return candidates(limit(out, p.MaxResults)), err
	case SimilarParams:
		out, err := g.SimilarRecipes(ctx, p.Recipe, p.MaxResults)
		return candidates(limit(out, p.MaxResults)), err
	case SpecificParams:
		out, err := g.RecipesWithRequiredIngredients(ctx, p.RequiredIngredients, p.RecipeContext, p.MaxResults)
		return candidates(limit(out, p.MaxResults)), err
	case SubstituteParams:
		out, err := g.Substitutes(ctx, p.Ingredient, p.Recipe, p.MaxResults, p.IncludeReasoning)
		// 後端可能回傳超過上限的數量
		if out != nil {
			out.Items = limit(out.Items, p.MaxResults)
		}
		return substituteSet{result: out, includeReasoning: p.IncludeReasoning}, err
	case ContextParams:
		out, err := g.ContextMatches(ctx, p.Filter, p.MaxResults)
		return contextItems(limit(out, p.MaxResults)), err
	case LookupParams:
		out, err := g.RecipeDetails(ctx, p.Recipe)
		return details{name: p.Recipe, RecipeDetails: out}, err
	case RecipeCustomParams:
		out, err := g.RecipeWithSubstitutes(ctx, p.Recipe, p.Substitutes)
		return singleRecipe{Candidate: out}, err
	case RewriteParams:
		return e.rewrite(ctx, p)
	}
	return nil, fmt.Errorf("generative tier cannot serve %T", params)
}

// rewrite 沒有原始食材時先查一次食譜詳情，再做替換
func (e *Engine) rewrite(ctx context.Context, p RewriteParams) (payload, error) {
	original := p.OriginalIngredients
	if original == "" {
		d, err := e.generator.RecipeDetails(ctx, p.Recipe)
		if err != nil {
			common.LogWarn("查詢原始食材失敗",
				zap.String("request_id", common.RequestIDFrom(ctx)),
				zap.String("recipe", p.Recipe),
				zap.Error(err),
			)
		}
		if d == nil || len(d.Ingredients) == 0 {
			return nil, reported("could not fetch ingredients for recipe: %s", p.Recipe)
		}
		original = common.JoinList(d.Ingredients)
	}

	// 以原始食材產生替換後的食譜
	out, err := e.generator.SubstitutionDetails(ctx, p.Recipe, original, p.Ingredient, p.Replacement)
	return details{name: p.Recipe, RecipeDetails: out}, err
}

// provenanceOf 解析層對應的來源標記
func provenanceOf(tier Tier) Provenance {
	if tier == TierDataset {
		return SourceDataset
	}
	return SourceGenerated
}

// emptyPayload 各意圖的空結果形狀
func emptyPayload(params Params) payload {
	switch p := params.(type) {
	case SubstituteParams:
		return substituteSet{includeReasoning: p.IncludeReasoning}
	case ContextParams:
		return contextItems(nil)
	}
	return candidates(nil)
}

// recipeOf 錯誤訊息中使用的食譜名稱
func recipeOf(params Params) string {
	switch p := params.(type) {
	case LookupParams:
		return p.Recipe
	case RecipeCustomParams:
		return p.Recipe
	case RewriteParams:
		return p.Recipe
	}
	return ""
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
