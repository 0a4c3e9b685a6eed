package search

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Warn().Err(err).Msg("meilisearch error, falling back to pgfts")
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Error().Err(err).Msg("pgfts search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexNPC indexes an NPC (fire-and-forget to Meilisearch).
func (s *Service) IndexNPC(n NPCRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexNPC(n); err != nil {
			log.Warn().Err(err).Str("npc", n.ID).Msg("index npc")
		}
	}()
}

// IndexQuest indexes a quest (fire-and-forget to Meilisearch).
func (s *Service) IndexQuest(q QuestRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexQuest(q); err != nil {
			log.Warn().Err(err).Str("quest", q.ID).Msg("index quest")
		}
	}()
}

// IndexLore indexes a lore entry (fire-and-forget to Meilisearch).
func (s *Service) IndexLore(l LoreRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexLore(l); err != nil {
			log.Warn().Err(err).Str("lore", l.ID).Msg("index lore entry")
		}
	}()
}

// IndexAsset indexes an asset (fire-and-forget to Meilisearch).
func (s *Service) IndexAsset(a AssetRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexAsset(a); err != nil {
			log.Warn().Err(err).Str("asset", a.ID).Msg("index asset")
		}
	}()
}

// DeleteNPC removes an NPC from the search index (fire-and-forget).
func (s *Service) DeleteNPC(id string) {
	s.deleteEntity("npc", id, func() error { return s.meili.DeleteNPC(id) })
}

// DeleteQuest removes a quest from the search index (fire-and-forget).
func (s *Service) DeleteQuest(id string) {
	s.deleteEntity("quest", id, func() error { return s.meili.DeleteQuest(id) })
}

// DeleteLore removes a lore entry from the search index (fire-and-forget).
func (s *Service) DeleteLore(id string) {
	s.deleteEntity("lore", id, func() error { return s.meili.DeleteLore(id) })
}

// DeleteAsset removes an asset from the search index (fire-and-forget).
func (s *Service) DeleteAsset(id string) {
	s.deleteEntity("asset", id, func() error { return s.meili.DeleteAsset(id) })
}

func (s *Service) deleteEntity(kind, id string, del func() error) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := del(); err != nil {
			log.Warn().Err(err).Str(kind, id).Msg("delete from search index")
		}
	}()
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into
// Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	npcs, quests, lore, assets, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Error().Err(err).Msg("search reindex load failed")
		return
	}

	if err := s.meili.IndexNPCs(npcs); err != nil {
		log.Warn().Err(err).Msg("reindex npcs")
	}
	if err := s.meili.IndexQuests(quests); err != nil {
		log.Warn().Err(err).Msg("reindex quests")
	}
	if err := s.meili.IndexLoreEntries(lore); err != nil {
		log.Warn().Err(err).Msg("reindex lore entries")
	}
	if err := s.meili.IndexAssets(assets); err != nil {
		log.Warn().Err(err).Msg("reindex assets")
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
