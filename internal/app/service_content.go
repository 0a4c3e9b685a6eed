package app

import (
	"context"
	"net/http"
	"strings"

	"forge/api/internal/knowledge"
	"forge/api/internal/rbac"
	"forge/api/internal/search"
	"forge/api/internal/store"
	"forge/api/internal/util"
)

// NPCInput carries the mutable fields of an NPC.
type NPCInput struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Personality string   `json:"personality"`
	Backstory   string   `json:"backstory"`
	QuestIDs    []string `json:"questIds"`
}

// QuestInput carries the mutable fields of a quest.
type QuestInput struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Objectives []string `json:"objectives"`
	Status     string   `json:"status"`
	GiverNPCID string   `json:"giverNpcId"`
	NPCIDs     []string `json:"npcIds"`
}

// LoreInput carries the mutable fields of a lore entry.
type LoreInput struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

var questStatuses = map[string]bool{"draft": true, "active": true, "completed": true}

func (s *Service) indexNPC(n store.NPC) {
	s.search.IndexNPC(search.NPCRecord{
		ID:          n.ID,
		Name:        n.Name,
		Role:        n.Role,
		Personality: n.Personality,
		Backstory:   n.Backstory,
		ProjectID:   n.ProjectID,
	})
}

func (s *Service) indexQuest(q store.Quest) {
	s.search.IndexQuest(search.QuestRecord{
		ID:        q.ID,
		Title:     q.Title,
		Summary:   q.Summary,
		Status:    q.Status,
		ProjectID: q.ProjectID,
	})
}

func (s *Service) indexLore(l store.LoreEntry) {
	s.search.IndexLore(search.LoreRecord{
		ID:        l.ID,
		Title:     l.Title,
		Body:      l.Body,
		Category:  l.Category,
		ProjectID: l.ProjectID,
	})
}

// CreateNPC adds an NPC to a project.
func (s *Service) CreateNPC(ctx context.Context, session Session, projectID string, in NPCInput) (store.NPC, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return store.NPC{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return store.NPC{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	npc := store.NPC{
		ID:          util.NewID("npc"),
		ProjectID:   projectID,
		Name:        strings.TrimSpace(in.Name),
		Role:        in.Role,
		Personality: in.Personality,
		Backstory:   in.Backstory,
		QuestIDs:    in.QuestIDs,
	}
	if err := s.store.InsertNPC(ctx, npc); err != nil {
		return store.NPC{}, err
	}

	created, err := s.store.GetNPC(ctx, projectID, npc.ID)
	if err != nil {
		return store.NPC{}, err
	}
	s.indexNPC(created)
	s.world.Invalidate(projectID)
	return created, nil
}

// GetNPC fetches an NPC.
func (s *Service) GetNPC(ctx context.Context, session Session, projectID, npcID string) (store.NPC, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return store.NPC{}, err
	}
	return s.store.GetNPC(ctx, projectID, npcID)
}

// ListNPCs lists a project's NPCs.
func (s *Service) ListNPCs(ctx context.Context, session Session, projectID string) ([]store.NPC, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListNPCs(ctx, projectID)
}

// UpdateNPC replaces an NPC's mutable fields.
func (s *Service) UpdateNPC(ctx context.Context, session Session, projectID, npcID string, in NPCInput) (store.NPC, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return store.NPC{}, err
	}
	existing, err := s.store.GetNPC(ctx, projectID, npcID)
	if err != nil {
		return store.NPC{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return store.NPC{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	existing.Name = strings.TrimSpace(in.Name)
	existing.Role = in.Role
	existing.Personality = in.Personality
	existing.Backstory = in.Backstory
	existing.QuestIDs = in.QuestIDs
	if err := s.store.UpdateNPC(ctx, existing); err != nil {
		return store.NPC{}, err
	}

	updated, err := s.store.GetNPC(ctx, projectID, npcID)
	if err != nil {
		return store.NPC{}, err
	}
	s.indexNPC(updated)
	s.world.Invalidate(projectID)
	return updated, nil
}

// DeleteNPC removes an NPC.
func (s *Service) DeleteNPC(ctx context.Context, session Session, projectID, npcID string) error {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return err
	}
	if _, err := s.store.GetNPC(ctx, projectID, npcID); err != nil {
		return err
	}
	if err := s.store.DeleteNPC(ctx, projectID, npcID); err != nil {
		return err
	}
	s.search.DeleteNPC(npcID)
	s.world.Invalidate(projectID)
	return nil
}

// CreateQuest adds a quest to a project.
func (s *Service) CreateQuest(ctx context.Context, session Session, projectID string, in QuestInput) (store.Quest, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return store.Quest{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return store.Quest{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	status := in.Status
	if status == "" {
		status = "draft"
	}
	if !questStatuses[status] {
		return store.Quest{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be draft, active or completed", nil)
	}

	quest := store.Quest{
		ID:         util.NewID("qst"),
		ProjectID:  projectID,
		Title:      strings.TrimSpace(in.Title),
		Summary:    in.Summary,
		Objectives: in.Objectives,
		Status:     status,
		GiverNPCID: in.GiverNPCID,
		NPCIDs:     in.NPCIDs,
	}
	if err := s.store.InsertQuest(ctx, quest); err != nil {
		return store.Quest{}, err
	}

	created, err := s.store.GetQuest(ctx, projectID, quest.ID)
	if err != nil {
		return store.Quest{}, err
	}
	s.indexQuest(created)
	s.world.Invalidate(projectID)
	return created, nil
}

// GetQuest fetches a quest.
func (s *Service) GetQuest(ctx context.Context, session Session, projectID, questID string) (store.Quest, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return store.Quest{}, err
	}
	return s.store.GetQuest(ctx, projectID, questID)
}

// ListQuests lists a project's quests.
func (s *Service) ListQuests(ctx context.Context, session Session, projectID string) ([]store.Quest, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListQuests(ctx, projectID)
}

// UpdateQuest replaces a quest's mutable fields.
func (s *Service) UpdateQuest(ctx context.Context, session Session, projectID, questID string, in QuestInput) (store.Quest, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return store.Quest{}, err
	}
	existing, err := s.store.GetQuest(ctx, projectID, questID)
	if err != nil {
		return store.Quest{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return store.Quest{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	status := in.Status
	if status == "" {
		status = existing.Status
	}
	if !questStatuses[status] {
		return store.Quest{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be draft, active or completed", nil)
	}

	existing.Title = strings.TrimSpace(in.Title)
	existing.Summary = in.Summary
	existing.Objectives = in.Objectives
	existing.Status = status
	existing.GiverNPCID = in.GiverNPCID
	existing.NPCIDs = in.NPCIDs
	if err := s.store.UpdateQuest(ctx, existing); err != nil {
		return store.Quest{}, err
	}

	updated, err := s.store.GetQuest(ctx, projectID, questID)
	if err != nil {
		return store.Quest{}, err
	}
	s.indexQuest(updated)
	s.world.Invalidate(projectID)
	return updated, nil
}

// DeleteQuest removes a quest.
func (s *Service) DeleteQuest(ctx context.Context, session Session, projectID, questID string) error {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return err
	}
	if _, err := s.store.GetQuest(ctx, projectID, questID); err != nil {
		return err
	}
	if err := s.store.DeleteQuest(ctx, projectID, questID); err != nil {
		return err
	}
	s.search.DeleteQuest(questID)
	s.world.Invalidate(projectID)
	return nil
}

// CreateLoreEntry adds a lore entry to a project.
func (s *Service) CreateLoreEntry(ctx context.Context, session Session, projectID string, in LoreInput) (store.LoreEntry, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return store.LoreEntry{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return store.LoreEntry{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	entry := store.LoreEntry{
		ID:        util.NewID("lor"),
		ProjectID: projectID,
		Title:     strings.TrimSpace(in.Title),
		Body:      in.Body,
		Category:  in.Category,
		Tags:      in.Tags,
	}
	if err := s.store.InsertLoreEntry(ctx, entry); err != nil {
		return store.LoreEntry{}, err
	}

	created, err := s.store.GetLoreEntry(ctx, projectID, entry.ID)
	if err != nil {
		return store.LoreEntry{}, err
	}
	s.indexLore(created)
	s.world.Invalidate(projectID)
	return created, nil
}

// GetLoreEntry fetches a lore entry.
func (s *Service) GetLoreEntry(ctx context.Context, session Session, projectID, entryID string) (store.LoreEntry, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return store.LoreEntry{}, err
	}
	return s.store.GetLoreEntry(ctx, projectID, entryID)
}

// ListLoreEntries lists a project's lore, optionally filtered by category.
func (s *Service) ListLoreEntries(ctx context.Context, session Session, projectID, category string) ([]store.LoreEntry, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListLoreEntries(ctx, projectID, category)
}

// UpdateLoreEntry replaces a lore entry's mutable fields.
func (s *Service) UpdateLoreEntry(ctx context.Context, session Session, projectID, entryID string, in LoreInput) (store.LoreEntry, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return store.LoreEntry{}, err
	}
	existing, err := s.store.GetLoreEntry(ctx, projectID, entryID)
	if err != nil {
		return store.LoreEntry{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return store.LoreEntry{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	existing.Title = strings.TrimSpace(in.Title)
	existing.Body = in.Body
	existing.Category = in.Category
	existing.Tags = in.Tags
	if err := s.store.UpdateLoreEntry(ctx, existing); err != nil {
		return store.LoreEntry{}, err
	}

	updated, err := s.store.GetLoreEntry(ctx, projectID, entryID)
	if err != nil {
		return store.LoreEntry{}, err
	}
	s.indexLore(updated)
	s.world.Invalidate(projectID)
	return updated, nil
}

// DeleteLoreEntry removes a lore entry.
func (s *Service) DeleteLoreEntry(ctx context.Context, session Session, projectID, entryID string) error {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return err
	}
	if _, err := s.store.GetLoreEntry(ctx, projectID, entryID); err != nil {
		return err
	}
	if err := s.store.DeleteLoreEntry(ctx, projectID, entryID); err != nil {
		return err
	}
	s.search.DeleteLore(entryID)
	s.world.Invalidate(projectID)
	return nil
}

// WorldContext answers a world-knowledge query rooted at an entity.
func (s *Service) WorldContext(ctx context.Context, session Session, projectID, kind, id string, depth int) (knowledge.Context, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return knowledge.Context{}, err
	}
	switch knowledge.Kind(kind) {
	case knowledge.KindNPC, knowledge.KindQuest, knowledge.KindLore:
	default:
		return knowledge.Context{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "kind must be npc, quest or lore", nil)
	}
	return s.world.Query(ctx, projectID, knowledge.Kind(kind), id, depth)
}
