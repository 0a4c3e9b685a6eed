package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertNPC(ctx context.Context, npc NPC) error {
	questIDs, err := encodeList(npc.QuestIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO npcs (id, project_id, name, role, personality, backstory, portrait_url, quest_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, npc.ID, npc.ProjectID, npc.Name, npc.Role, npc.Personality, npc.Backstory, npc.PortraitURL, questIDs)
	if err != nil {
		return fmt.Errorf("insert npc: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNPC(ctx context.Context, projectID, npcID string) (NPC, error) {
	var npc NPC
	var questIDs []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, role, personality, backstory, portrait_url, quest_ids, created_at, updated_at
		FROM npcs WHERE project_id=$1 AND id=$2
	`, projectID, npcID).Scan(&npc.ID, &npc.ProjectID, &npc.Name, &npc.Role, &npc.Personality, &npc.Backstory, &npc.PortraitURL, &questIDs, &npc.CreatedAt, &npc.UpdatedAt)
	if err != nil {
		return NPC{}, err
	}
	if npc.QuestIDs, err = decodeList(questIDs); err != nil {
		return NPC{}, err
	}
	return npc, nil
}

func (s *PostgresStore) ListNPCs(ctx context.Context, projectID string) ([]NPC, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, role, personality, backstory, portrait_url, quest_ids, created_at, updated_at
		FROM npcs WHERE project_id=$1
		ORDER BY updated_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list npcs: %w", err)
	}
	defer rows.Close()

	items := make([]NPC, 0)
	for rows.Next() {
		var npc NPC
		var questIDs []byte
		if err := rows.Scan(&npc.ID, &npc.ProjectID, &npc.Name, &npc.Role, &npc.Personality, &npc.Backstory, &npc.PortraitURL, &questIDs, &npc.CreatedAt, &npc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan npc: %w", err)
		}
		if npc.QuestIDs, err = decodeList(questIDs); err != nil {
			return nil, err
		}
		items = append(items, npc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate npcs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateNPC(ctx context.Context, npc NPC) error {
	questIDs, err := encodeList(npc.QuestIDs)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE npcs
		SET name=$3, role=$4, personality=$5, backstory=$6, quest_ids=$7, updated_at=NOW()
		WHERE project_id=$1 AND id=$2
	`, npc.ProjectID, npc.ID, npc.Name, npc.Role, npc.Personality, npc.Backstory, questIDs)
	if err != nil {
		return fmt.Errorf("update npc: %w", err)
	}
	return requireRow(result)
}

// SetNPCPortrait is its own statement because portrait generation completes
// asynchronously and must not clobber concurrent field edits.
func (s *PostgresStore) SetNPCPortrait(ctx context.Context, projectID, npcID, portraitURL string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE npcs SET portrait_url=$3, updated_at=NOW() WHERE project_id=$1 AND id=$2
	`, projectID, npcID, portraitURL)
	if err != nil {
		return fmt.Errorf("set npc portrait: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) DeleteNPC(ctx context.Context, projectID, npcID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM npcs WHERE project_id=$1 AND id=$2`, projectID, npcID)
	if err != nil {
		return fmt.Errorf("delete npc: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) InsertQuest(ctx context.Context, quest Quest) error {
	objectives, err := encodeList(quest.Objectives)
	if err != nil {
		return err
	}
	npcIDs, err := encodeList(quest.NPCIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quests (id, project_id, title, summary, objectives, status, giver_npc_id, npc_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, quest.ID, quest.ProjectID, quest.Title, quest.Summary, objectives, quest.Status, quest.GiverNPCID, npcIDs)
	if err != nil {
		return fmt.Errorf("insert quest: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetQuest(ctx context.Context, projectID, questID string) (Quest, error) {
	var quest Quest
	var objectives, npcIDs []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, summary, objectives, status, giver_npc_id, npc_ids, created_at, updated_at
		FROM quests WHERE project_id=$1 AND id=$2
	`, projectID, questID).Scan(&quest.ID, &quest.ProjectID, &quest.Title, &quest.Summary, &objectives, &quest.Status, &quest.GiverNPCID, &npcIDs, &quest.CreatedAt, &quest.UpdatedAt)
	if err != nil {
		return Quest{}, err
	}
	if quest.Objectives, err = decodeList(objectives); err != nil {
		return Quest{}, err
	}
	if quest.NPCIDs, err = decodeList(npcIDs); err != nil {
		return Quest{}, err
	}
	return quest, nil
}

func (s *PostgresStore) ListQuests(ctx context.Context, projectID string) ([]Quest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, summary, objectives, status, giver_npc_id, npc_ids, created_at, updated_at
		FROM quests WHERE project_id=$1
		ORDER BY updated_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	defer rows.Close()

	items := make([]Quest, 0)
	for rows.Next() {
		var quest Quest
		var objectives, npcIDs []byte
		if err := rows.Scan(&quest.ID, &quest.ProjectID, &quest.Title, &quest.Summary, &objectives, &quest.Status, &quest.GiverNPCID, &npcIDs, &quest.CreatedAt, &quest.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan quest: %w", err)
		}
		if quest.Objectives, err = decodeList(objectives); err != nil {
			return nil, err
		}
		if quest.NPCIDs, err = decodeList(npcIDs); err != nil {
			return nil, err
		}
		items = append(items, quest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quests: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateQuest(ctx context.Context, quest Quest) error {
	objectives, err := encodeList(quest.Objectives)
	if err != nil {
		return err
	}
	npcIDs, err := encodeList(quest.NPCIDs)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE quests
		SET title=$3, summary=$4, objectives=$5, status=$6, giver_npc_id=$7, npc_ids=$8, updated_at=NOW()
		WHERE project_id=$1 AND id=$2
	`, quest.ProjectID, quest.ID, quest.Title, quest.Summary, objectives, quest.Status, quest.GiverNPCID, npcIDs)
	if err != nil {
		return fmt.Errorf("update quest: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) DeleteQuest(ctx context.Context, projectID, questID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM quests WHERE project_id=$1 AND id=$2`, projectID, questID)
	if err != nil {
		return fmt.Errorf("delete quest: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) InsertLoreEntry(ctx context.Context, entry LoreEntry) error {
	tags, err := encodeList(entry.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO lore_entries (id, project_id, title, body, category, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.ProjectID, entry.Title, entry.Body, entry.Category, tags)
	if err != nil {
		return fmt.Errorf("insert lore entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLoreEntry(ctx context.Context, projectID, entryID string) (LoreEntry, error) {
	var entry LoreEntry
	var tags []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, body, category, tags, created_at, updated_at
		FROM lore_entries WHERE project_id=$1 AND id=$2
	`, projectID, entryID).Scan(&entry.ID, &entry.ProjectID, &entry.Title, &entry.Body, &entry.Category, &tags, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return LoreEntry{}, err
	}
	if entry.Tags, err = decodeList(tags); err != nil {
		return LoreEntry{}, err
	}
	return entry, nil
}

func (s *PostgresStore) ListLoreEntries(ctx context.Context, projectID, category string) ([]LoreEntry, error) {
	query := `
		SELECT id, project_id, title, body, category, tags, created_at, updated_at
		FROM lore_entries WHERE project_id=$1
	`
	args := []any{projectID}
	if category != "" {
		query += ` AND category=$2`
		args = append(args, category)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lore entries: %w", err)
	}
	defer rows.Close()

	items := make([]LoreEntry, 0)
	for rows.Next() {
		var entry LoreEntry
		var tags []byte
		if err := rows.Scan(&entry.ID, &entry.ProjectID, &entry.Title, &entry.Body, &entry.Category, &tags, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan lore entry: %w", err)
		}
		if entry.Tags, err = decodeList(tags); err != nil {
			return nil, err
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lore entries: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateLoreEntry(ctx context.Context, entry LoreEntry) error {
	tags, err := encodeList(entry.Tags)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE lore_entries
		SET title=$3, body=$4, category=$5, tags=$6, updated_at=NOW()
		WHERE project_id=$1 AND id=$2
	`, entry.ProjectID, entry.ID, entry.Title, entry.Body, entry.Category, tags)
	if err != nil {
		return fmt.Errorf("update lore entry: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) DeleteLoreEntry(ctx context.Context, projectID, entryID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM lore_entries WHERE project_id=$1 AND id=$2`, projectID, entryID)
	if err != nil {
		return fmt.Errorf("delete lore entry: %w", err)
	}
	return requireRow(result)
}
