package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true, since the whole app is down when Postgres is.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across npcs, quests, lore_entries, and
// assets using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	projectClause := ""
	if len(q.ProjectIDs) > 0 {
		placeholders := make([]string, len(q.ProjectIDs))
		for i, id := range q.ProjectIDs {
			placeholders[i] = fmt.Sprintf("$%d", argN)
			args = append(args, id)
			argN++
		}
		projectClause = fmt.Sprintf(" AND project_id IN (%s)", strings.Join(placeholders, ", "))
	}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultNPC {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'npc'::text AS type, id, name AS title,
				ts_headline('english', coalesce(backstory, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				project_id,
				ts_rank(fts, %s) AS rank
			FROM npcs
			WHERE fts @@ %s%s`, tsQuery, tsQuery, tsQuery, projectClause))
	}

	if q.FilterType == "" || q.FilterType == ResultQuest {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'quest'::text AS type, id, title,
				ts_headline('english', coalesce(summary, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				project_id,
				ts_rank(fts, %s) AS rank
			FROM quests
			WHERE fts @@ %s%s`, tsQuery, tsQuery, tsQuery, projectClause))
	}

	if q.FilterType == "" || q.FilterType == ResultLore {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'lore'::text AS type, id, title,
				ts_headline('english', coalesce(body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				project_id,
				ts_rank(fts, %s) AS rank
			FROM lore_entries
			WHERE fts @@ %s%s`, tsQuery, tsQuery, tsQuery, projectClause))
	}

	if q.FilterType == "" || q.FilterType == ResultAsset {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'asset'::text AS type, id, name AS title,
				type || ' / ' || format AS snippet,
				project_id,
				ts_rank(fts, %s) AS rank
			FROM assets
			WHERE fts @@ %s%s`, tsQuery, tsQuery, projectClause))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, project_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ProjectID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]NPCRecord, []QuestRecord, []LoreRecord, []AssetRecord, error) {
	npcRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, role, personality, backstory, project_id
		FROM npcs
	`)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load npcs: %w", err)
	}
	defer npcRows.Close()

	npcs := make([]NPCRecord, 0)
	for npcRows.Next() {
		var n NPCRecord
		if err := npcRows.Scan(&n.ID, &n.Name, &n.Role, &n.Personality, &n.Backstory, &n.ProjectID); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("scan npc: %w", err)
		}
		npcs = append(npcs, n)
	}
	if err := npcRows.Err(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("iterate npcs: %w", err)
	}

	questRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, summary, status, project_id
		FROM quests
	`)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load quests: %w", err)
	}
	defer questRows.Close()

	quests := make([]QuestRecord, 0)
	for questRows.Next() {
		var qr QuestRecord
		if err := questRows.Scan(&qr.ID, &qr.Title, &qr.Summary, &qr.Status, &qr.ProjectID); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("scan quest: %w", err)
		}
		quests = append(quests, qr)
	}
	if err := questRows.Err(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("iterate quests: %w", err)
	}

	loreRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, body, category, project_id
		FROM lore_entries
	`)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load lore entries: %w", err)
	}
	defer loreRows.Close()

	lore := make([]LoreRecord, 0)
	for loreRows.Next() {
		var l LoreRecord
		if err := loreRows.Scan(&l.ID, &l.Title, &l.Body, &l.Category, &l.ProjectID); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("scan lore entry: %w", err)
		}
		lore = append(lore, l)
	}
	if err := loreRows.Err(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("iterate lore entries: %w", err)
	}

	assetRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, type, format, status, project_id
		FROM assets
	`)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load assets: %w", err)
	}
	defer assetRows.Close()

	assets := make([]AssetRecord, 0)
	for assetRows.Next() {
		var a AssetRecord
		if err := assetRows.Scan(&a.ID, &a.Name, &a.Type, &a.Format, &a.Status, &a.ProjectID); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := assetRows.Err(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("iterate assets: %w", err)
	}

	return npcs, quests, lore, assets, nil
}
