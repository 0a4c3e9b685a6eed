// Package search provides full-text search over project content, backed by
// Meilisearch with a PostgreSQL fallback.
package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultNPC   ResultType = "npc"
	ResultQuest ResultType = "quest"
	ResultLore  ResultType = "lore"
	ResultAsset ResultType = "asset"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	ProjectID string     `json:"projectId"`
}

// Query describes a search request. Results are always scoped to the
// projects the caller can read.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	ProjectIDs []string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexNPC(n NPCRecord) error
	IndexQuest(q QuestRecord) error
	IndexLore(l LoreRecord) error
	IndexAsset(a AssetRecord) error
	DeleteNPC(id string) error
	DeleteQuest(id string) error
	DeleteLore(id string) error
	DeleteAsset(id string) error
}

// NPCRecord is the data we index for an NPC.
type NPCRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Personality string `json:"personality"`
	Backstory   string `json:"backstory"`
	ProjectID   string `json:"projectId"`
}

// QuestRecord is the data we index for a quest.
type QuestRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Status    string `json:"status"`
	ProjectID string `json:"projectId"`
}

// LoreRecord is the data we index for a lore entry.
type LoreRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Category  string `json:"category"`
	ProjectID string `json:"projectId"`
}

// AssetRecord is the data we index for an asset.
type AssetRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Format    string `json:"format"`
	Status    string `json:"status"`
	ProjectID string `json:"projectId"`
}
