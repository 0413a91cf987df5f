package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"recipe-resolver/internal/infrastructure/config"
	"recipe-resolver/internal/pkg/common"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const defaultQueryTimeout = 5 * time.Second

// PostgresStore 以 pgx 查詢 recipes 資料表
type PostgresStore struct {
	db           *sql.DB
	query        string
	queryTimeout time.Duration
}

// NewPostgresStore 開啟連線並確認可用
func NewPostgresStore(cfg config.DatasetConfig) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset store: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	store := newPostgresStore(db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), store.queryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach dataset store: %w", err)
	}

	common.LogInfo("資料庫連線成功",
		zap.String("table", cfg.Table),
		zap.Int("fetch_cap", cfg.FetchCap),
	)
	return store, nil
}

func newPostgresStore(db *sql.DB, cfg config.DatasetConfig) *PostgresStore {
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &PostgresStore{
		db:           db,
		query:        buildQuery(cfg),
		queryTimeout: timeout,
	}
}

// buildQuery 表名與欄位名經 pgx.Identifier 處理，詞以參數傳入
func buildQuery(cfg config.DatasetConfig) string {
	ident := func(name, fallback string) string {
		if strings.TrimSpace(name) == "" {
			name = fallback
		}
		return pgx.Identifier{name}.Sanitize()
	}

	table := pgx.Identifier(strings.Split(orDefault(cfg.Table, "recipes"), ".")).Sanitize()
	id := ident(cfg.IDColumn, "id")
	name := ident(cfg.NameColumn, "recipe_name")
	ingredients := ident(cfg.IngredientColumn, "ingredients")
	image := ident(cfg.ImageColumn, "img_src")

	// NULL 圖片轉成空字串，資料庫來源的 image 欄位一律不為 null
	return fmt.Sprintf(
		`SELECT %[1]s::text, COALESCE(%[2]s, ''), COALESCE(%[3]s::text, ''), COALESCE(%[4]s, '') `+
			`FROM %[5]s WHERE %[2]s ILIKE ANY($1) OR %[3]s::text ILIKE ANY($1) LIMIT $2`,
		id, name, ingredients, image, table,
	)
}

// Query 取回名稱或食材符合任一詞的資料列
func (s *PostgresStore) Query(ctx context.Context, terms []string, limit int) ([]Row, error) {
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.query, LikePatterns(terms), limit)
	if err != nil {
		return nil, fmt.Errorf("dataset query failed: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Name, &r.IngredientsText, &r.ImageRef); err != nil {
			return nil, fmt.Errorf("dataset scan failed: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dataset rows failed: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// LikePatterns 將詞轉成 %term% 並跳脫 LIKE 特殊字元
func LikePatterns(terms []string) []string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, "%"+escaper.Replace(t)+"%")
	}
	return out
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
