package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog/log"
)

const (
	idxNPCs   = "forge_npcs"
	idxQuests = "forge_quests"
	idxLore   = "forge_lore"
	idxAssets = "forge_assets"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. The service
// keeps running without it when the initial connection fails; the health
// loop picks it up once it comes back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxNPCs,
			filterable: []string{"projectId"},
			searchable: []string{"name", "role", "personality", "backstory"},
		},
		{
			uid:        idxQuests,
			filterable: []string{"projectId", "status"},
			searchable: []string{"title", "summary"},
		},
		{
			uid:        idxLore,
			filterable: []string{"projectId", "category"},
			searchable: []string{"title", "body", "category"},
		},
		{
			uid:        idxAssets,
			filterable: []string{"projectId", "type", "status"},
			searchable: []string{"name", "type", "format"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Debug().Err(err).Str("index", idx.uid).Msg("create index (may already exist)")
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			log.Warn().Err(err).Str("index", idx.uid).Msg("update filterable attributes")
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Warn().Err(err).Str("index", idx.uid).Msg("update searchable attributes")
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Info().Msg("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the four indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxNPCs, ResultNPC},
		{idxQuests, ResultQuest},
		{idxLore, ResultLore},
		{idxAssets, ResultAsset},
	}

	var queries []*meili.SearchRequest
	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}
		if len(q.ProjectIDs) > 0 {
			sr.Filter = []string{projectFilter(q.ProjectIDs)}
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func projectFilter(projectIDs []string) string {
	quoted := make([]string, len(projectIDs))
	for i, id := range projectIDs {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return fmt.Sprintf("projectId IN [%s]", strings.Join(quoted, ", "))
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxNPCs:
		return ResultNPC
	case idxQuests:
		return ResultQuest
	case idxLore:
		return ResultLore
	case idxAssets:
		return ResultAsset
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.ProjectID = decodeString(hit, "projectId")

	switch rtyp {
	case ResultNPC:
		r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "backstory"), decodeString(hit, "role"))
	case ResultQuest:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "summary"), decodeString(hit, "summary"))
	case ResultLore:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "body"), decodeString(hit, "body"))
	case ResultAsset:
		r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "type"), decodeString(hit, "type"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexNPC adds or updates an NPC in the search index.
func (m *Meili) IndexNPC(n NPCRecord) error {
	_, err := m.client.Index(idxNPCs).AddDocuments([]NPCRecord{n}, nil)
	return err
}

// IndexQuest adds or updates a quest in the search index.
func (m *Meili) IndexQuest(q QuestRecord) error {
	_, err := m.client.Index(idxQuests).AddDocuments([]QuestRecord{q}, nil)
	return err
}

// IndexLore adds or updates a lore entry in the search index.
func (m *Meili) IndexLore(l LoreRecord) error {
	_, err := m.client.Index(idxLore).AddDocuments([]LoreRecord{l}, nil)
	return err
}

// IndexAsset adds or updates an asset in the search index.
func (m *Meili) IndexAsset(a AssetRecord) error {
	_, err := m.client.Index(idxAssets).AddDocuments([]AssetRecord{a}, nil)
	return err
}

// DeleteNPC removes an NPC from the search index.
func (m *Meili) DeleteNPC(id string) error {
	_, err := m.client.Index(idxNPCs).DeleteDocument(id, nil)
	return err
}

// DeleteQuest removes a quest from the search index.
func (m *Meili) DeleteQuest(id string) error {
	_, err := m.client.Index(idxQuests).DeleteDocument(id, nil)
	return err
}

// DeleteLore removes a lore entry from the search index.
func (m *Meili) DeleteLore(id string) error {
	_, err := m.client.Index(idxLore).DeleteDocument(id, nil)
	return err
}

// DeleteAsset removes an asset from the search index.
func (m *Meili) DeleteAsset(id string) error {
	_, err := m.client.Index(idxAssets).DeleteDocument(id, nil)
	return err
}

// IndexNPCs bulk-indexes NPCs.
func (m *Meili) IndexNPCs(records []NPCRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxNPCs).AddDocuments(records, nil)
	return err
}

// IndexQuests bulk-indexes quests.
func (m *Meili) IndexQuests(records []QuestRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxQuests).AddDocuments(records, nil)
	return err
}

// IndexLoreEntries bulk-indexes lore entries.
func (m *Meili) IndexLoreEntries(records []LoreRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxLore).AddDocuments(records, nil)
	return err
}

// IndexAssets bulk-indexes assets.
func (m *Meili) IndexAssets(records []AssetRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxAssets).AddDocuments(records, nil)
	return err
}
