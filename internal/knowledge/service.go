// Package knowledge assembles "what the world knows about X" answers from
// project content. NPCs, quests, and lore form a graph: quests link to the
// NPCs that give or appear in them, and lore entries link to anything their
// tags name. Queries walk that graph breadth-first from a starting entity.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"forge/api/internal/store"
)

// ErrNotFound is returned when the queried entity is not in the graph.
var ErrNotFound = errors.New("entity not found")

// Kind identifies an entity type in the world graph.
type Kind string

const (
	KindNPC   Kind = "npc"
	KindQuest Kind = "quest"
	KindLore  Kind = "lore"
)

const (
	defaultDepth = 2
	maxDepth     = 3
	snippetLen   = 240
)

// ContentStore is the slice of the persistence layer the graph is built from.
type ContentStore interface {
	ListNPCs(ctx context.Context, projectID string) ([]store.NPC, error)
	ListQuests(ctx context.Context, projectID string) ([]store.Quest, error)
	ListLoreEntries(ctx context.Context, projectID, category string) ([]store.LoreEntry, error)
}

// Entity is a node in the world graph as returned to callers.
type Entity struct {
	Kind    Kind   `json:"kind"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
}

// Context is the answer to a knowledge query: the root entity plus
// everything reachable within the requested depth, nearest first.
type Context struct {
	Root    Entity   `json:"root"`
	Related []Entity `json:"related"`
	Depth   int      `json:"depth"`
}

type ref struct {
	kind Kind
	id   string
}

// worldGraph is an immutable snapshot of one project's content.
type worldGraph struct {
	builtAt  time.Time
	entities map[ref]Entity
	edges    map[ref][]ref
}

// Service builds and caches per-project world graphs.
type Service struct {
	store ContentStore
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]*worldGraph
}

func NewService(s ContentStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		store: s,
		ttl:   ttl,
		cache: make(map[string]*worldGraph),
	}
}

// Invalidate drops the cached graph for a project. Called after any
// content write so the next query sees fresh links.
func (s *Service) Invalidate(projectID string) {
	s.mu.Lock()
	delete(s.cache, projectID)
	s.mu.Unlock()
}

// Query walks the world graph breadth-first from the given entity.
// depth <= 0 uses the default; anything above the cap is clamped.
func (s *Service) Query(ctx context.Context, projectID string, kind Kind, id string, depth int) (Context, error) {
	if depth <= 0 {
		depth = defaultDepth
	}
	if depth > maxDepth {
		depth = maxDepth
	}

	g, err := s.graph(ctx, projectID)
	if err != nil {
		return Context{}, err
	}

	start := ref{kind: kind, id: id}
	root, ok := g.entities[start]
	if !ok {
		return Context{}, fmt.Errorf("%s %s in project %s: %w", kind, id, projectID, ErrNotFound)
	}

	visited := map[ref]bool{start: true}
	frontier := []ref{start}
	var related []Entity

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []ref
		for _, cur := range frontier {
			for _, nb := range g.edges[cur] {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				related = append(related, g.entities[nb])
				next = append(next, nb)
			}
		}
		frontier = next
	}

	return Context{Root: root, Related: related, Depth: depth}, nil
}

func (s *Service) graph(ctx context.Context, projectID string) (*worldGraph, error) {
	s.mu.Lock()
	if g, ok := s.cache[projectID]; ok && time.Since(g.builtAt) < s.ttl {
		s.mu.Unlock()
		return g, nil
	}
	s.mu.Unlock()

	g, err := s.build(ctx, projectID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[projectID] = g
	s.mu.Unlock()
	return g, nil
}

func (s *Service) build(ctx context.Context, projectID string) (*worldGraph, error) {
	npcs, err := s.store.ListNPCs(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load npcs: %w", err)
	}
	quests, err := s.store.ListQuests(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load quests: %w", err)
	}
	lore, err := s.store.ListLoreEntries(ctx, projectID, "")
	if err != nil {
		return nil, fmt.Errorf("load lore entries: %w", err)
	}

	g := &worldGraph{
		builtAt:  time.Now(),
		entities: make(map[ref]Entity),
		edges:    make(map[ref][]ref),
	}

	// Name lookups for resolving lore tags to entities.
	npcByName := make(map[string]ref)
	questByTitle := make(map[string]ref)

	for _, n := range npcs {
		r := ref{kind: KindNPC, id: n.ID}
		g.entities[r] = Entity{Kind: KindNPC, ID: n.ID, Name: n.Name, Summary: snippet(firstOf(n.Backstory, n.Role))}
		npcByName[normalize(n.Name)] = r
	}
	for _, q := range quests {
		r := ref{kind: KindQuest, id: q.ID}
		g.entities[r] = Entity{Kind: KindQuest, ID: q.ID, Name: q.Title, Summary: snippet(q.Summary)}
		questByTitle[normalize(q.Title)] = r
	}
	for _, l := range lore {
		r := ref{kind: KindLore, id: l.ID}
		g.entities[r] = Entity{Kind: KindLore, ID: l.ID, Name: l.Title, Summary: snippet(l.Body)}
	}

	// NPC <-> quest edges come from both sides so a half-maintained link
	// still connects the pair.
	for _, n := range npcs {
		nr := ref{kind: KindNPC, id: n.ID}
		for _, qid := range n.QuestIDs {
			g.link(nr, ref{kind: KindQuest, id: qid})
		}
	}
	for _, q := range quests {
		qr := ref{kind: KindQuest, id: q.ID}
		if q.GiverNPCID != "" {
			g.link(qr, ref{kind: KindNPC, id: q.GiverNPCID})
		}
		for _, nid := range q.NPCIDs {
			g.link(qr, ref{kind: KindNPC, id: nid})
		}
	}

	// Lore tags that match an NPC name or quest title become edges.
	for _, l := range lore {
		lr := ref{kind: KindLore, id: l.ID}
		for _, tag := range l.Tags {
			key := normalize(tag)
			if nr, ok := npcByName[key]; ok {
				g.link(lr, nr)
			}
			if qr, ok := questByTitle[key]; ok {
				g.link(lr, qr)
			}
		}
	}

	return g, nil
}

// link adds an undirected edge, skipping dangling references and duplicates.
func (g *worldGraph) link(a, b ref) {
	if _, ok := g.entities[a]; !ok {
		return
	}
	if _, ok := g.entities[b]; !ok {
		return
	}
	g.edges[a] = appendUnique(g.edges[a], b)
	g.edges[b] = appendUnique(g.edges[b], a)
}

func appendUnique(refs []ref, r ref) []ref {
	for _, existing := range refs {
		if existing == r {
			return refs
		}
	}
	return append(refs, r)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func firstOf(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= snippetLen {
		return s
	}
	cut := s[:snippetLen]
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	} else {
		// No space to break on; back off to a rune boundary so the cut
		// never splits a multi-byte character.
		for len(cut) > 0 {
			r, size := utf8.DecodeLastRuneInString(cut)
			if r != utf8.RuneError || size > 1 {
				break
			}
			cut = cut[:len(cut)-1]
		}
	}
	return cut + "…"
}
