package dataset

import (
	"context"
	"sort"
	"strings"

	"recipe-resolver/internal/core/resolver"
	"recipe-resolver/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// DefaultFetchCap 單次查詢最多取回的候選筆數
const DefaultFetchCap = 100

// Row 資料庫原始資料列
type Row struct {
	ID              string
	Name            string
	IngredientsText string
	ImageRef        string
}

// Store 結構化食譜資料來源
type Store interface {
	// Query 回傳名稱或食材包含任一詞的資料列，順序即資料庫順序
	Query(ctx context.Context, terms []string, limit int) ([]Row, error)
	Ping(ctx context.Context) error
	Close() error
}

// Resolver 資料庫解析層：取回候選、本地計分、排序、截斷
type Resolver struct {
	store    Store
	fetchCap int
}

// NewResolver 建立資料庫解析層，fetchCap <= 0 時使用預設值
func NewResolver(store Store, fetchCap int) *Resolver {
	if fetchCap <= 0 {
		fetchCap = DefaultFetchCap
	}
	return &Resolver{store: store, fetchCap: fetchCap}
}

// Available 資料庫是否可連線
func (r *Resolver) Available(ctx context.Context) bool {
	if r == nil || r.store == nil {
		return false
	}
	return r.store.Ping(ctx) == nil
}

type scored struct {
	row   Row
	score int
}

// Search 依匹配詞數遞減排序，同分保留資料庫順序。
//
// 查詢錯誤不會往上傳，只記錄日誌並回傳空結果，讓協調器改用下一層。
func (r *Resolver) Search(ctx context.Context, terms []string, limit int) []resolver.Candidate {
	if r == nil || r.store == nil || limit <= 0 {
		return nil
	}

	normalized := NormalizeTerms(terms)
	if len(normalized) == 0 {
		return nil
	}

	// 多取三倍候選再排序，limit 過大時直接用上限，避免乘法溢位
	fetch := r.fetchCap
	if limit <= r.fetchCap/3 {
		fetch = limit * 3
	}
	rows, err := r.store.Query(ctx, normalized, fetch)
	if err != nil {
		common.LogWarn("資料庫查詢失敗，視為未命中",
			zap.String("request_id", common.RequestIDFrom(ctx)),
			zap.Strings("terms", normalized),
			zap.Error(err),
		)
		return nil
	}

	seen := make(map[string]bool, len(rows))
	ranked := make([]scored, 0, len(rows))
	for _, row := range rows {
		key := row.ID
		if key == "" {
			key = "name:" + strings.ToLower(row.Name)
		}
		if seen[key] {
			continue
		}

		score := Score(row, normalized)
		if score == 0 {
			continue
		}
		seen[key] = true
		ranked = append(ranked, scored{row: row, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]resolver.Candidate, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, resolver.Candidate{
			ID:          s.row.ID,
			Name:        s.row.Name,
			Ingredients: common.SplitList(s.row.IngredientsText),
			Image:       s.row.ImageRef,
		})
	}

	common.LogDebug("資料庫查詢完成",
		zap.String("request_id", common.RequestIDFrom(ctx)),
		zap.Int("fetched", len(rows)),
		zap.Int("matched", len(out)),
	)
	return out
}

// Score 計算有多少個不同的詞出現在名稱或食材文字中，terms 需已正規化
func Score(row Row, terms []string) int {
	text := fold(row.Name + " " + row.IngredientsText)
	score := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			score++
		}
	}
	return score
}

// NormalizeTerms NFKC、去空白、轉小寫並去除重複
func NormalizeTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	for _, term := range terms {
		t := fold(term)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}
