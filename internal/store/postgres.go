package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-cli/internal/db"
	"github.com/sells-group/geo-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. Hot queries
// rely on pgx's per-connection statement cache rather than explicit
// preparation, so the pool can be opened before Migrate has run.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}


const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id             TEXT NOT NULL DEFAULT '',
	url                 TEXT NOT NULL,
	brand_name          TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT 'pending',
	progress            INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
	current_step        TEXT NOT NULL DEFAULT '',
	pages_crawled       INTEGER NOT NULL DEFAULT 0,
	questions_generated INTEGER NOT NULL DEFAULT 0,
	score               INTEGER CHECK (score BETWEEN 0 AND 100),
	completed_at        TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS llm_responses (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	analysis_id           TEXT NOT NULL REFERENCES analyses(id),
	provider              TEXT NOT NULL,
	question              TEXT NOT NULL,
	answer                TEXT NOT NULL,
	mentions_brand        BOOLEAN NOT NULL DEFAULT false,
	sentiment             TEXT NOT NULL DEFAULT 'neutral',
	competitors_mentioned TEXT[] NOT NULL DEFAULT '{}',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS competitors (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	analysis_id     TEXT NOT NULL REFERENCES analyses(id),
	position        INTEGER NOT NULL,
	name            TEXT NOT NULL,
	domain          TEXT NOT NULL DEFAULT '',
	mention_count   INTEGER NOT NULL DEFAULT 0,
	providers       TEXT[] NOT NULL DEFAULT '{}',
	relevance_score INTEGER NOT NULL DEFAULT 50,
	reason          TEXT NOT NULL DEFAULT '',
	is_validated    BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS provider_scores (
	analysis_id  TEXT NOT NULL REFERENCES analyses(id),
	provider     TEXT NOT NULL,
	position     INTEGER NOT NULL,
	display_name TEXT NOT NULL,
	score        INTEGER NOT NULL,
	mentions     INTEGER NOT NULL,
	color        TEXT NOT NULL,
	PRIMARY KEY (analysis_id, provider)
);

CREATE TABLE IF NOT EXISTS recommendations (
	analysis_id    TEXT NOT NULL REFERENCES analyses(id),
	position       INTEGER NOT NULL,
	priority       TEXT NOT NULL CHECK (priority IN ('P0', 'P1', 'P2')),
	title          TEXT NOT NULL,
	description    TEXT NOT NULL,
	impact         TEXT NOT NULL CHECK (impact IN ('high', 'medium', 'low')),
	category       TEXT NOT NULL CHECK (category IN ('content', 'technical', 'authority', 'structure')),
	affected_pages TEXT[] NOT NULL DEFAULT '{}',
	how_to_fix     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (analysis_id, position)
);

CREATE TABLE IF NOT EXISTS user_plans (
	user_id    TEXT PRIMARY KEY,
	plan       TEXT NOT NULL DEFAULT 'free',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS crawl_cache (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	site_url   TEXT NOT NULL UNIQUE,
	pages      JSONB NOT NULL,
	max_pages  INTEGER NOT NULL DEFAULT 0,
	crawled_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
CREATE INDEX IF NOT EXISTS idx_analyses_user ON analyses(user_id);
CREATE INDEX IF NOT EXISTS idx_llm_responses_analysis ON llm_responses(analysis_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_competitors_name ON competitors(analysis_id, lower(name));
CREATE INDEX IF NOT EXISTS idx_crawl_cache_expires_at ON crawl_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const pgAnalysisColumns = `id, user_id, url, brand_name, status, progress, current_step,
	pages_crawled, questions_generated, score, completed_at, created_at, updated_at`

func (s *PostgresStore) CreateAnalysis(ctx context.Context, in NewAnalysis) (*model.Analysis, error) {
	now := time.Now().UTC()
	a := &model.Analysis{
		ID:        uuid.New().String(),
		UserID:    in.UserID,
		URL:       in.URL,
		BrandName: in.BrandName,
		Status:    model.AnalysisStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analyses (id, user_id, url, brand_name, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, a.URL, a.BrandName, string(a.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create analysis")
	}
	return a, nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*model.Analysis, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgAnalysisColumns+` FROM analyses WHERE id = $1`, id)
	a, err := scanPgAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get analysis %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get analysis")
	}
	return a, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error) {
	query := `SELECT ` + pgAnalysisColumns + ` FROM analyses WHERE 1=1`
	var args []any
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.UserID != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var out []model.Analysis
	for rows.Next() {
		a, err := scanPgAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list analyses rows")
}

func (s *PostgresStore) StartAnalysis(ctx context.Context, id string, update model.ProgressUpdate) (*model.Analysis, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin start analysis")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM analyses WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: start analysis %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: read analysis status")
	}
	if !model.AnalysisStatus(status).IsStartable() {
		return nil, eris.Wrapf(ErrNotStartable, "postgres: analysis %s is %s", id, status)
	}

	if model.AnalysisStatus(status) == model.AnalysisStatusFailed {
		for _, table := range childTables {
			if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE analysis_id = $1`, table), id); err != nil {
				return nil, eris.Wrapf(err, "postgres: clear %s", table)
			}
		}
	}

	row := tx.QueryRow(ctx,
		`UPDATE analyses SET status = $1, progress = $2, current_step = $3, pages_crawled = 0,
		 questions_generated = 0, score = NULL, completed_at = NULL, updated_at = now()
		 WHERE id = $4 RETURNING `+pgAnalysisColumns,
		string(update.Status), update.Progress, update.CurrentStep, id,
	)
	a, err := scanPgAnalysis(row)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start analysis")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit start analysis")
	}
	return a, nil
}

func (s *PostgresStore) UpdateProgress(ctx context.Context, id string, update model.ProgressUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET
			status = COALESCE(NULLIF($1, ''), status),
			progress = GREATEST(progress, $2),
			current_step = $3,
			pages_crawled = COALESCE($4, pages_crawled),
			questions_generated = COALESCE($5, questions_generated),
			score = COALESCE($6, score),
			completed_at = COALESCE($7, completed_at),
			updated_at = now()
		 WHERE id = $8 AND status NOT IN ('completed', 'failed')`,
		string(update.Status), update.Progress, update.CurrentStep,
		update.PagesCrawled, update.QuestionsGenerated, update.Score, update.CompletedAt, id,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update progress")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotUpdatable, "postgres: analysis %s", id)
	}
	return nil
}

func (s *PostgresStore) InsertResponse(ctx context.Context, r *model.LLMResponse) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO llm_responses (id, analysis_id, provider, question, answer, mentions_brand, sentiment, competitors_mentioned, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.AnalysisID, string(r.Provider), r.Question, r.Answer, r.MentionsBrand, string(r.Sentiment), nonNil(r.CompetitorsMentioned), r.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert response")
}

func (s *PostgresStore) InsertCompetitors(ctx context.Context, analysisID string, competitors []model.Competitor) error {
	now := time.Now().UTC()
	rows := make([][]any, len(competitors))
	for i, c := range competitors {
		rows[i] = []any{
			uuid.New().String(), analysisID, i, c.Name, c.Domain, c.MentionCount,
			nonNil(providerStrings(c.Providers)), c.RelevanceScore, c.Reason, c.IsValidated, now,
		}
	}
	_, err := db.CopyFrom(ctx, s.pool, "competitors",
		[]string{"id", "analysis_id", "position", "name", "domain", "mention_count", "providers", "relevance_score", "reason", "is_validated", "created_at"},
		rows)
	return eris.Wrap(err, "postgres: insert competitors")
}

func (s *PostgresStore) InsertProviderScores(ctx context.Context, analysisID string, scores []model.ProviderScore) error {
	rows := make([][]any, len(scores))
	for i, ps := range scores {
		rows[i] = []any{analysisID, string(ps.Provider), i, ps.DisplayName, ps.Score, ps.Mentions, ps.Color}
	}
	_, err := db.CopyFrom(ctx, s.pool, "provider_scores",
		[]string{"analysis_id", "provider", "position", "display_name", "score", "mentions", "color"},
		rows)
	return eris.Wrap(err, "postgres: insert provider scores")
}

func (s *PostgresStore) InsertRecommendations(ctx context.Context, analysisID string, recs []model.Recommendation) error {
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = []any{
			analysisID, i, string(r.Priority), r.Title, r.Description, string(r.Impact), string(r.Category),
			nonNil(r.AffectedPages), r.HowToFix,
		}
	}
	_, err := db.CopyFrom(ctx, s.pool, "recommendations",
		[]string{"analysis_id", "position", "priority", "title", "description", "impact", "category", "affected_pages", "how_to_fix"},
		rows)
	return eris.Wrap(err, "postgres: insert recommendations")
}

func (s *PostgresStore) ListResponses(ctx context.Context, analysisID string) ([]model.LLMResponse, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, analysis_id, provider, question, answer, mentions_brand, sentiment, competitors_mentioned, created_at
		 FROM llm_responses WHERE analysis_id = $1 ORDER BY created_at`, analysisID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list responses")
	}
	defer rows.Close()

	var out []model.LLMResponse
	for rows.Next() {
		var r model.LLMResponse
		var provider, sentiment string
		if err := rows.Scan(&r.ID, &r.AnalysisID, &provider, &r.Question, &r.Answer, &r.MentionsBrand, &sentiment, &r.CompetitorsMentioned, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan response")
		}
		r.Provider = model.ProviderID(provider)
		r.Sentiment = model.Sentiment(sentiment)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list responses rows")
}

func (s *PostgresStore) ListCompetitors(ctx context.Context, analysisID string) ([]model.Competitor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, analysis_id, name, domain, mention_count, providers, relevance_score, reason, is_validated, created_at
		 FROM competitors WHERE analysis_id = $1 ORDER BY position`, analysisID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list competitors")
	}
	defer rows.Close()

	var out []model.Competitor
	for rows.Next() {
		var c model.Competitor
		var providers []string
		if err := rows.Scan(&c.ID, &c.AnalysisID, &c.Name, &c.Domain, &c.MentionCount, &providers, &c.RelevanceScore, &c.Reason, &c.IsValidated, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan competitor")
		}
		c.Providers = providerIDs(providers)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list competitors rows")
}

func (s *PostgresStore) ListProviderScores(ctx context.Context, analysisID string) ([]model.ProviderScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT analysis_id, provider, display_name, score, mentions, color
		 FROM provider_scores WHERE analysis_id = $1 ORDER BY position`, analysisID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list provider scores")
	}
	defer rows.Close()

	var out []model.ProviderScore
	for rows.Next() {
		var ps model.ProviderScore
		var provider string
		if err := rows.Scan(&ps.AnalysisID, &provider, &ps.DisplayName, &ps.Score, &ps.Mentions, &ps.Color); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider score")
		}
		ps.Provider = model.ProviderID(provider)
		out = append(out, ps)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list provider scores rows")
}

func (s *PostgresStore) ListRecommendations(ctx context.Context, analysisID string) ([]model.Recommendation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT analysis_id, position, priority, title, description, impact, category, affected_pages, how_to_fix
		 FROM recommendations WHERE analysis_id = $1 ORDER BY position`, analysisID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recommendations")
	}
	defer rows.Close()

	var out []model.Recommendation
	for rows.Next() {
		var r model.Recommendation
		var priority, impact, category string
		if err := rows.Scan(&r.AnalysisID, &r.Position, &priority, &r.Title, &r.Description, &impact, &category, &r.AffectedPages, &r.HowToFix); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recommendation")
		}
		r.Priority = model.Priority(priority)
		r.Impact = model.Impact(impact)
		r.Category = model.Category(category)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list recommendations rows")
}

func (s *PostgresStore) GetUserPlan(ctx context.Context, userID string) (model.PlanTier, error) {
	if userID == "" {
		return model.PlanFree, nil
	}
	var plan string
	err := s.pool.QueryRow(ctx, `SELECT plan FROM user_plans WHERE user_id = $1`, userID).Scan(&plan)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PlanFree, nil
	}
	if err != nil {
		return "", eris.Wrap(err, "postgres: get user plan")
	}
	return model.ParsePlanTier(plan), nil
}

func (s *PostgresStore) SetUserPlan(ctx context.Context, userID string, tier model.PlanTier) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_plans (user_id, plan, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET plan = EXCLUDED.plan, updated_at = now()`,
		userID, string(tier),
	)
	return eris.Wrap(err, "postgres: set user plan")
}

func (s *PostgresStore) GetCachedCrawl(ctx context.Context, siteURL string) (*model.CrawlCache, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, site_url, pages, max_pages, crawled_at, expires_at FROM crawl_cache
		 WHERE site_url = $1 AND expires_at > now() ORDER BY crawled_at DESC LIMIT 1`,
		siteURL,
	)

	var cc model.CrawlCache
	var pagesJSON []byte
	err := row.Scan(&cc.ID, &cc.SiteURL, &pagesJSON, &cc.MaxPages, &cc.CrawledAt, &cc.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached crawl")
	}
	if err := json.Unmarshal(pagesJSON, &cc.Pages); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached pages")
	}
	return &cc, nil
}

func (s *PostgresStore) SetCachedCrawl(ctx context.Context, siteURL string, pages []model.CrawledPage, maxPages int, ttl time.Duration) error {
	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal pages")
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO crawl_cache (id, site_url, pages, max_pages, crawled_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (site_url) DO UPDATE SET pages = EXCLUDED.pages, max_pages = EXCLUDED.max_pages, crawled_at = EXCLUDED.crawled_at, expires_at = EXCLUDED.expires_at`,
		uuid.New().String(), siteURL, pagesJSON, maxPages, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached crawl")
}

func (s *PostgresStore) DeleteExpiredCrawls(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM crawl_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired crawls")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgAnalysis(row pgx.Row) (*model.Analysis, error) {
	var a model.Analysis
	var status string
	err := row.Scan(&a.ID, &a.UserID, &a.URL, &a.BrandName, &status, &a.Progress, &a.CurrentStep,
		&a.PagesCrawled, &a.QuestionsGenerated, &a.Score, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = model.AnalysisStatus(status)
	return &a, nil
}
