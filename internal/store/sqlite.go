package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/geo-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL DEFAULT '',
	url                 TEXT NOT NULL,
	brand_name          TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT 'pending',
	progress            INTEGER NOT NULL DEFAULT 0,
	current_step        TEXT NOT NULL DEFAULT '',
	pages_crawled       INTEGER NOT NULL DEFAULT 0,
	questions_generated INTEGER NOT NULL DEFAULT 0,
	score               INTEGER,
	completed_at        DATETIME,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS llm_responses (
	id                    TEXT PRIMARY KEY,
	analysis_id           TEXT NOT NULL REFERENCES analyses(id),
	provider              TEXT NOT NULL,
	question              TEXT NOT NULL,
	answer                TEXT NOT NULL,
	mentions_brand        INTEGER NOT NULL DEFAULT 0,
	sentiment             TEXT NOT NULL DEFAULT 'neutral',
	competitors_mentioned TEXT NOT NULL DEFAULT '[]',
	created_at            DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS competitors (
	id              TEXT PRIMARY KEY,
	analysis_id     TEXT NOT NULL REFERENCES analyses(id),
	position        INTEGER NOT NULL,
	name            TEXT NOT NULL,
	domain          TEXT NOT NULL DEFAULT '',
	mention_count   INTEGER NOT NULL DEFAULT 0,
	providers       TEXT NOT NULL DEFAULT '[]',
	relevance_score INTEGER NOT NULL DEFAULT 50,
	reason          TEXT NOT NULL DEFAULT '',
	is_validated    INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL
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
	affected_pages TEXT NOT NULL DEFAULT '[]',
	how_to_fix     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (analysis_id, position)
);

CREATE TABLE IF NOT EXISTS user_plans (
	user_id    TEXT PRIMARY KEY,
	plan       TEXT NOT NULL DEFAULT 'free',
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_cache (
	id         TEXT PRIMARY KEY,
	site_url   TEXT NOT NULL,
	pages      TEXT NOT NULL,
	max_pages  INTEGER NOT NULL DEFAULT 0,
	crawled_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
CREATE INDEX IF NOT EXISTS idx_analyses_user ON analyses(user_id);
CREATE INDEX IF NOT EXISTS idx_llm_responses_analysis ON llm_responses(analysis_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_competitors_name ON competitors(analysis_id, lower(name));
CREATE INDEX IF NOT EXISTS idx_crawl_cache_site_url ON crawl_cache(site_url);
CREATE INDEX IF NOT EXISTS idx_crawl_cache_expires_at ON crawl_cache(expires_at);
`

// childTables are cleared when a failed analysis is restarted.
var childTables = []string{"llm_responses", "competitors", "provider_scores", "recommendations"}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteAnalysisColumns = `id, user_id, url, brand_name, status, progress, current_step,
	pages_crawled, questions_generated, score, completed_at, created_at, updated_at`

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, in NewAnalysis) (*model.Analysis, error) {
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, user_id, url, brand_name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.URL, a.BrandName, string(a.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create analysis")
	}
	return a, nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*model.Analysis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteAnalysisColumns+` FROM analyses WHERE id = ?`, id)
	a, err := scanSQLiteAnalysis(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get analysis %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get analysis")
	}
	return a, nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error) {
	query := `SELECT ` + sqliteAnalysisColumns + ` FROM analyses WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var out []model.Analysis
	for rows.Next() {
		a, err := scanSQLiteAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list analyses rows")
}

func (s *SQLiteStore) StartAnalysis(ctx context.Context, id string, update model.ProgressUpdate) (*model.Analysis, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin start analysis")
	}
	defer tx.Rollback() //nolint:errcheck

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM analyses WHERE id = ?`, id).Scan(&status)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: start analysis %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: read analysis status")
	}
	if !model.AnalysisStatus(status).IsStartable() {
		return nil, eris.Wrapf(ErrNotStartable, "sqlite: analysis %s is %s", id, status)
	}

	if model.AnalysisStatus(status) == model.AnalysisStatusFailed {
		for _, table := range childTables {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE analysis_id = ?`, table), id); err != nil {
				return nil, eris.Wrapf(err, "sqlite: clear %s", table)
			}
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE analyses SET status = ?, progress = ?, current_step = ?, pages_crawled = 0,
		 questions_generated = 0, score = NULL, completed_at = NULL, updated_at = ?
		 WHERE id = ? AND status IN ('pending', 'failed')`,
		string(update.Status), update.Progress, update.CurrentStep, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start analysis")
	}
	if err := checkRowsAffected(res, ErrNotStartable, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit start analysis")
	}
	return s.GetAnalysis(ctx, id)
}

func (s *SQLiteStore) UpdateProgress(ctx context.Context, id string, update model.ProgressUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET
			status = COALESCE(NULLIF(?, ''), status),
			progress = MAX(progress, ?),
			current_step = ?,
			pages_crawled = COALESCE(?, pages_crawled),
			questions_generated = COALESCE(?, questions_generated),
			score = COALESCE(?, score),
			completed_at = COALESCE(?, completed_at),
			updated_at = ?
		 WHERE id = ? AND status NOT IN ('completed', 'failed')`,
		string(update.Status), update.Progress, update.CurrentStep,
		update.PagesCrawled, update.QuestionsGenerated, update.Score, update.CompletedAt,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update progress")
	}
	return checkRowsAffected(res, ErrNotUpdatable, id)
}

func (s *SQLiteStore) InsertResponse(ctx context.Context, r *model.LLMResponse) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	mentioned, err := json.Marshal(nonNil(r.CompetitorsMentioned))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal competitors mentioned")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO llm_responses (id, analysis_id, provider, question, answer, mentions_brand, sentiment, competitors_mentioned, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AnalysisID, string(r.Provider), r.Question, r.Answer, r.MentionsBrand, string(r.Sentiment), string(mentioned), r.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert response")
}

func (s *SQLiteStore) InsertCompetitors(ctx context.Context, analysisID string, competitors []model.Competitor) error {
	if len(competitors) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.inTx(ctx, "insert competitors", func(tx *sql.Tx) error {
		for i, c := range competitors {
			providers, err := json.Marshal(nonNil(providerStrings(c.Providers)))
			if err != nil {
				return eris.Wrap(err, "marshal providers")
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO competitors (id, analysis_id, position, name, domain, mention_count, providers, relevance_score, reason, is_validated, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.New().String(), analysisID, i, c.Name, c.Domain, c.MentionCount, string(providers),
				c.RelevanceScore, c.Reason, c.IsValidated, now,
			)
			if err != nil {
				return eris.Wrapf(err, "competitor %q", c.Name)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) InsertProviderScores(ctx context.Context, analysisID string, scores []model.ProviderScore) error {
	if len(scores) == 0 {
		return nil
	}
	return s.inTx(ctx, "insert provider scores", func(tx *sql.Tx) error {
		for i, ps := range scores {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO provider_scores (analysis_id, provider, position, display_name, score, mentions, color) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				analysisID, string(ps.Provider), i, ps.DisplayName, ps.Score, ps.Mentions, ps.Color,
			)
			if err != nil {
				return eris.Wrapf(err, "provider %s", ps.Provider)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) InsertRecommendations(ctx context.Context, analysisID string, recs []model.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	return s.inTx(ctx, "insert recommendations", func(tx *sql.Tx) error {
		for i, r := range recs {
			pages, err := json.Marshal(nonNil(r.AffectedPages))
			if err != nil {
				return eris.Wrap(err, "marshal affected pages")
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO recommendations (analysis_id, position, priority, title, description, impact, category, affected_pages, how_to_fix)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				analysisID, i, string(r.Priority), r.Title, r.Description, string(r.Impact), string(r.Category), string(pages), r.HowToFix,
			)
			if err != nil {
				return eris.Wrapf(err, "recommendation %d", i)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListResponses(ctx context.Context, analysisID string) ([]model.LLMResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, analysis_id, provider, question, answer, mentions_brand, sentiment, competitors_mentioned, created_at
		 FROM llm_responses WHERE analysis_id = ? ORDER BY created_at, rowid`, analysisID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list responses")
	}
	defer rows.Close()

	var out []model.LLMResponse
	for rows.Next() {
		var r model.LLMResponse
		var provider, sentiment, mentioned string
		if err := rows.Scan(&r.ID, &r.AnalysisID, &provider, &r.Question, &r.Answer, &r.MentionsBrand, &sentiment, &mentioned, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan response")
		}
		r.Provider = model.ProviderID(provider)
		r.Sentiment = model.Sentiment(sentiment)
		if err := json.Unmarshal([]byte(mentioned), &r.CompetitorsMentioned); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal competitors mentioned")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list responses rows")
}

func (s *SQLiteStore) ListCompetitors(ctx context.Context, analysisID string) ([]model.Competitor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, analysis_id, name, domain, mention_count, providers, relevance_score, reason, is_validated, created_at
		 FROM competitors WHERE analysis_id = ? ORDER BY position`, analysisID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list competitors")
	}
	defer rows.Close()

	var out []model.Competitor
	for rows.Next() {
		var c model.Competitor
		var providers string
		if err := rows.Scan(&c.ID, &c.AnalysisID, &c.Name, &c.Domain, &c.MentionCount, &providers, &c.RelevanceScore, &c.Reason, &c.IsValidated, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan competitor")
		}
		var ids []string
		if err := json.Unmarshal([]byte(providers), &ids); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal providers")
		}
		c.Providers = providerIDs(ids)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list competitors rows")
}

func (s *SQLiteStore) ListProviderScores(ctx context.Context, analysisID string) ([]model.ProviderScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT analysis_id, provider, display_name, score, mentions, color
		 FROM provider_scores WHERE analysis_id = ? ORDER BY position`, analysisID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list provider scores")
	}
	defer rows.Close()

	var out []model.ProviderScore
	for rows.Next() {
		var ps model.ProviderScore
		var provider string
		if err := rows.Scan(&ps.AnalysisID, &provider, &ps.DisplayName, &ps.Score, &ps.Mentions, &ps.Color); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider score")
		}
		ps.Provider = model.ProviderID(provider)
		out = append(out, ps)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list provider scores rows")
}

func (s *SQLiteStore) ListRecommendations(ctx context.Context, analysisID string) ([]model.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT analysis_id, position, priority, title, description, impact, category, affected_pages, how_to_fix
		 FROM recommendations WHERE analysis_id = ? ORDER BY position`, analysisID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recommendations")
	}
	defer rows.Close()

	var out []model.Recommendation
	for rows.Next() {
		var r model.Recommendation
		var priority, impact, category, pages string
		if err := rows.Scan(&r.AnalysisID, &r.Position, &priority, &r.Title, &r.Description, &impact, &category, &pages, &r.HowToFix); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recommendation")
		}
		r.Priority = model.Priority(priority)
		r.Impact = model.Impact(impact)
		r.Category = model.Category(category)
		if err := json.Unmarshal([]byte(pages), &r.AffectedPages); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal affected pages")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list recommendations rows")
}

func (s *SQLiteStore) GetUserPlan(ctx context.Context, userID string) (model.PlanTier, error) {
	if userID == "" {
		return model.PlanFree, nil
	}
	var plan string
	err := s.db.QueryRowContext(ctx, `SELECT plan FROM user_plans WHERE user_id = ?`, userID).Scan(&plan)
	if eris.Is(err, sql.ErrNoRows) {
		return model.PlanFree, nil
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: get user plan")
	}
	return model.ParsePlanTier(plan), nil
}

func (s *SQLiteStore) SetUserPlan(ctx context.Context, userID string, tier model.PlanTier) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_plans (user_id, plan, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET plan = excluded.plan, updated_at = excluded.updated_at`,
		userID, string(tier), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: set user plan")
}

func (s *SQLiteStore) GetCachedCrawl(ctx context.Context, siteURL string) (*model.CrawlCache, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, site_url, pages, max_pages, crawled_at, expires_at FROM crawl_cache
		 WHERE site_url = ? AND expires_at > ?
		 ORDER BY crawled_at DESC LIMIT 1`,
		siteURL, time.Now().UTC(),
	)

	var cc model.CrawlCache
	var pagesJSON string
	err := row.Scan(&cc.ID, &cc.SiteURL, &pagesJSON, &cc.MaxPages, &cc.CrawledAt, &cc.ExpiresAt)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached crawl")
	}
	if err := json.Unmarshal([]byte(pagesJSON), &cc.Pages); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached pages")
	}
	return &cc, nil
}

func (s *SQLiteStore) SetCachedCrawl(ctx context.Context, siteURL string, pages []model.CrawledPage, maxPages int, ttl time.Duration) error {
	now := time.Now().UTC()
	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pages")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO crawl_cache (id, site_url, pages, max_pages, crawled_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), siteURL, string(pagesJSON), maxPages, now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached crawl")
}

func (s *SQLiteStore) DeleteExpiredCrawls(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM crawl_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired crawls")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) inTx(ctx context.Context, action string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin %s", action)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return eris.Wrapf(err, "sqlite: %s", action)
	}
	return eris.Wrapf(tx.Commit(), "sqlite: commit %s", action)
}

// checkRowsAffected maps a zero-row update onto sentinel.
func checkRowsAffected(res sql.Result, sentinel error, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(sentinel, "analysis %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteAnalysis(row scannable) (*model.Analysis, error) {
	var a model.Analysis
	var status string
	var score sql.NullInt64
	var completedAt sql.NullTime
	err := row.Scan(&a.ID, &a.UserID, &a.URL, &a.BrandName, &status, &a.Progress, &a.CurrentStep,
		&a.PagesCrawled, &a.QuestionsGenerated, &score, &completedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = model.AnalysisStatus(status)
	if score.Valid {
		v := int(score.Int64)
		a.Score = &v
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return &a, nil
}
