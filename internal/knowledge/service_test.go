package knowledge

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"forge/api/internal/store"
)

type fakeContent struct {
	npcs   []store.NPC
	quests []store.Quest
	lore   []store.LoreEntry

	listNPCCalls int
}

func (f *fakeContent) ListNPCs(_ context.Context, _ string) ([]store.NPC, error) {
	f.listNPCCalls++
	return f.npcs, nil
}
func (f *fakeContent) ListQuests(_ context.Context, _ string) ([]store.Quest, error) {
	return f.quests, nil
}
func (f *fakeContent) ListLoreEntries(_ context.Context, _, _ string) ([]store.LoreEntry, error) {
	return f.lore, nil
}

// A small world: Mara gives "The Lost Forge" which also features Tobben,
// and a lore entry tagged "Mara" records her history.
func testWorld() *fakeContent {
	return &fakeContent{
		npcs: []store.NPC{
			{ID: "npc_mara", Name: "Mara", Role: "blacksmith"},
			{ID: "npc_tobben", Name: "Tobben", Role: "innkeeper"},
			{ID: "npc_hermit", Name: "Hermit", Role: "recluse"},
		},
		quests: []store.Quest{
			{ID: "qst_forge", Title: "The Lost Forge", GiverNPCID: "npc_mara", NPCIDs: []string{"npc_tobben"}},
		},
		lore: []store.LoreEntry{
			{ID: "lor_mara", Title: "Mara of the Anvil", Body: "Her family forged the city gates.", Tags: []string{"mara"}},
		},
	}
}

func relatedIDs(c Context) []string {
	ids := make([]string, 0, len(c.Related))
	for _, e := range c.Related {
		ids = append(ids, e.ID)
	}
	return ids
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestQueryDepthOne(t *testing.T) {
	svc := NewService(testWorld(), time.Minute)

	c, err := svc.Query(context.Background(), "prj_1", KindNPC, "npc_mara", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if c.Root.Name != "Mara" {
		t.Errorf("root = %q, want Mara", c.Root.Name)
	}

	ids := relatedIDs(c)
	if !contains(ids, "qst_forge") {
		t.Errorf("related %v missing quest via giver link", ids)
	}
	if !contains(ids, "lor_mara") {
		t.Errorf("related %v missing lore via tag link", ids)
	}
	if contains(ids, "npc_tobben") {
		t.Errorf("related %v includes two-hop neighbor at depth 1", ids)
	}
}

func TestQueryDepthTwoReachesQuestCast(t *testing.T) {
	svc := NewService(testWorld(), time.Minute)

	c, err := svc.Query(context.Background(), "prj_1", KindNPC, "npc_mara", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	ids := relatedIDs(c)
	if !contains(ids, "npc_tobben") {
		t.Errorf("related %v missing npc reachable through the quest", ids)
	}
	if contains(ids, "npc_hermit") {
		t.Errorf("related %v includes unconnected npc", ids)
	}
}

func TestQueryUnknownEntity(t *testing.T) {
	svc := NewService(testWorld(), time.Minute)

	if _, err := svc.Query(context.Background(), "prj_1", KindNPC, "npc_ghost", 1); err == nil {
		t.Error("expected error for unknown entity")
	}
}

func TestGraphIsCachedUntilInvalidated(t *testing.T) {
	world := testWorld()
	svc := NewService(world, time.Minute)
	ctx := context.Background()

	svc.Query(ctx, "prj_1", KindNPC, "npc_mara", 1)
	svc.Query(ctx, "prj_1", KindQuest, "qst_forge", 1)
	if world.listNPCCalls != 1 {
		t.Errorf("store hit %d times, want 1 (cached)", world.listNPCCalls)
	}

	svc.Invalidate("prj_1")
	svc.Query(ctx, "prj_1", KindNPC, "npc_mara", 1)
	if world.listNPCCalls != 2 {
		t.Errorf("store hit %d times after invalidate, want 2", world.listNPCCalls)
	}
}

func TestSnippetTruncatesOnWordBoundary(t *testing.T) {
	long := strings.Repeat("forge hammer anvil ", 30)
	got := snippet(long)
	if len(got) > snippetLen+len("…") {
		t.Errorf("snippet length = %d", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("snippet %q missing ellipsis", got)
	}
}

func TestSnippetKeepsRuneBoundaryWithoutSpaces(t *testing.T) {
	// An unbroken CJK backstory has no space inside the window, so the cut
	// must back off to a rune boundary instead of splitting a character.
	long := "a" + strings.Repeat("世界", 200)
	got := snippet(long)
	if !utf8.ValidString(got) {
		t.Fatalf("snippet produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("snippet %q missing ellipsis", got)
	}
	if len(got) > snippetLen+len("…") {
		t.Errorf("snippet length = %d", len(got))
	}
}
