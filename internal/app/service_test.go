package app

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"forge/api/internal/knowledge"
	"forge/api/internal/search"
	"forge/api/internal/storage"
	"forge/api/internal/store"
)

type fakeStore struct {
	pingFn                     func(context.Context) error
	getUserByIDFn              func(context.Context, string) (store.User, error)
	getUserByEmailFn           func(context.Context, string) (store.User, error)
	createUserFn               func(context.Context, store.User) error
	isAccessTokenRevokedFn     func(context.Context, string) (bool, error)
	insertProjectFn            func(context.Context, store.Project) error
	getProjectFn               func(context.Context, string) (store.Project, error)
	listProjectsByMemberFn     func(context.Context, string) ([]store.Project, error)
	updateProjectFn            func(context.Context, string, string, string) error
	setProjectStatusFn         func(context.Context, string, string) error
	deleteProjectFn            func(context.Context, string) error
	upsertProjectMemberFn      func(context.Context, string, string, string) error
	removeProjectMemberFn      func(context.Context, string, string) error
	listProjectMembersFn       func(context.Context, string) ([]store.ProjectMember, error)
	getProjectRoleFn           func(context.Context, string, string) (string, error)
	insertNPCFn                func(context.Context, store.NPC) error
	getNPCFn                   func(context.Context, string, string) (store.NPC, error)
	listNPCsFn                 func(context.Context, string) ([]store.NPC, error)
	updateNPCFn                func(context.Context, store.NPC) error
	setNPCPortraitFn           func(context.Context, string, string, string) error
	deleteNPCFn                func(context.Context, string, string) error
	insertQuestFn              func(context.Context, store.Quest) error
	getQuestFn                 func(context.Context, string, string) (store.Quest, error)
	listQuestsFn               func(context.Context, string) ([]store.Quest, error)
	insertLoreEntryFn          func(context.Context, store.LoreEntry) error
	getLoreEntryFn             func(context.Context, string, string) (store.LoreEntry, error)
	listLoreEntriesFn          func(context.Context, string, string) ([]store.LoreEntry, error)
	insertAssetFn              func(context.Context, store.Asset) error
	getAssetFn                 func(context.Context, string) (store.Asset, error)
	listAssetsFn               func(context.Context, string, string, string) ([]store.Asset, error)
	setAssetStatusFn           func(context.Context, string, string) error
	setAssetObjectFn           func(context.Context, string, string, string) error
	deleteAssetFn              func(context.Context, string) error
	insertGenerationJobFn      func(context.Context, store.GenerationJob) error
	getGenerationJobFn         func(context.Context, string) (store.GenerationJob, error)
	listGenerationJobsFn       func(context.Context, string, string) ([]store.GenerationJob, error)
	markGenerationJobRunningFn func(context.Context, string) error
	completeGenerationJobFn    func(context.Context, string, string) error
	failGenerationJobFn        func(context.Context, string, string) error
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID, DisplayName: "Avery", IsEmailVerified: true}, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) SaveRefreshSession(context.Context, string, string, time.Time) error {
	return nil
}

func (f *fakeStore) LookupRefreshSession(context.Context, string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) RevokeRefreshSession(context.Context, string) error { return nil }

func (f *fakeStore) RevokeAccessToken(context.Context, string, time.Time) error { return nil }

func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessTokenRevokedFn != nil {
		return f.isAccessTokenRevokedFn(ctx, jti)
	}
	return false, nil
}

// authpw.UserStore methods so the same fake can back the password service.

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	return nil
}

func (f *fakeStore) UpdateUserVerificationToken(context.Context, string, string, time.Time) error {
	return nil
}

func (f *fakeStore) VerifyUserEmail(context.Context, string) error { return nil }

func (f *fakeStore) UpdateUserPassword(context.Context, string, string) error { return nil }

func (f *fakeStore) CreatePasswordReset(context.Context, string, string, time.Time) error {
	return nil
}

func (f *fakeStore) GetPasswordReset(context.Context, string) (string, error) {
	return "", sql.ErrNoRows
}

func (f *fakeStore) MarkPasswordResetUsed(context.Context, string) error { return nil }

func (f *fakeStore) InsertProject(ctx context.Context, project store.Project) error {
	if f.insertProjectFn != nil {
		return f.insertProjectFn(ctx, project)
	}
	return nil
}

func (f *fakeStore) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, projectID)
	}
	return store.Project{ID: projectID, Name: "Test Project", Status: store.ProjectStatusActive, OwnerID: "usr_owner"}, nil
}

func (f *fakeStore) ListProjectsByMember(ctx context.Context, userID string) ([]store.Project, error) {
	if f.listProjectsByMemberFn != nil {
		return f.listProjectsByMemberFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeStore) UpdateProject(ctx context.Context, projectID, name, description string) error {
	if f.updateProjectFn != nil {
		return f.updateProjectFn(ctx, projectID, name, description)
	}
	return nil
}

func (f *fakeStore) SetProjectStatus(ctx context.Context, projectID, status string) error {
	if f.setProjectStatusFn != nil {
		return f.setProjectStatusFn(ctx, projectID, status)
	}
	return nil
}

func (f *fakeStore) DeleteProject(ctx context.Context, projectID string) error {
	if f.deleteProjectFn != nil {
		return f.deleteProjectFn(ctx, projectID)
	}
	return nil
}

func (f *fakeStore) UpsertProjectMember(ctx context.Context, projectID, userID, role string) error {
	if f.upsertProjectMemberFn != nil {
		return f.upsertProjectMemberFn(ctx, projectID, userID, role)
	}
	return nil
}

func (f *fakeStore) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	if f.removeProjectMemberFn != nil {
		return f.removeProjectMemberFn(ctx, projectID, userID)
	}
	return nil
}

func (f *fakeStore) ListProjectMembers(ctx context.Context, projectID string) ([]store.ProjectMember, error) {
	if f.listProjectMembersFn != nil {
		return f.listProjectMembersFn(ctx, projectID)
	}
	return nil, nil
}

func (f *fakeStore) GetProjectRole(ctx context.Context, projectID, userID string) (string, error) {
	if f.getProjectRoleFn != nil {
		return f.getProjectRoleFn(ctx, projectID, userID)
	}
	return "owner", nil
}

func (f *fakeStore) InsertNPC(ctx context.Context, npc store.NPC) error {
	if f.insertNPCFn != nil {
		return f.insertNPCFn(ctx, npc)
	}
	return nil
}

func (f *fakeStore) GetNPC(ctx context.Context, projectID, npcID string) (store.NPC, error) {
	if f.getNPCFn != nil {
		return f.getNPCFn(ctx, projectID, npcID)
	}
	return store.NPC{ID: npcID, ProjectID: projectID, Name: "Mara"}, nil
}

func (f *fakeStore) ListNPCs(ctx context.Context, projectID string) ([]store.NPC, error) {
	if f.listNPCsFn != nil {
		return f.listNPCsFn(ctx, projectID)
	}
	return nil, nil
}

func (f *fakeStore) UpdateNPC(ctx context.Context, npc store.NPC) error {
	if f.updateNPCFn != nil {
		return f.updateNPCFn(ctx, npc)
	}
	return nil
}

func (f *fakeStore) SetNPCPortrait(ctx context.Context, projectID, npcID, portraitURL string) error {
	if f.setNPCPortraitFn != nil {
		return f.setNPCPortraitFn(ctx, projectID, npcID, portraitURL)
	}
	return nil
}

func (f *fakeStore) DeleteNPC(ctx context.Context, projectID, npcID string) error {
	if f.deleteNPCFn != nil {
		return f.deleteNPCFn(ctx, projectID, npcID)
	}
	return nil
}

func (f *fakeStore) InsertQuest(ctx context.Context, quest store.Quest) error {
	if f.insertQuestFn != nil {
		return f.insertQuestFn(ctx, quest)
	}
	return nil
}

func (f *fakeStore) GetQuest(ctx context.Context, projectID, questID string) (store.Quest, error) {
	if f.getQuestFn != nil {
		return f.getQuestFn(ctx, projectID, questID)
	}
	return store.Quest{ID: questID, ProjectID: projectID, Title: "The Forge", Status: "draft"}, nil
}

func (f *fakeStore) ListQuests(ctx context.Context, projectID string) ([]store.Quest, error) {
	if f.listQuestsFn != nil {
		return f.listQuestsFn(ctx, projectID)
	}
	return nil, nil
}

func (f *fakeStore) UpdateQuest(context.Context, store.Quest) error { return nil }

func (f *fakeStore) DeleteQuest(context.Context, string, string) error { return nil }

func (f *fakeStore) InsertLoreEntry(ctx context.Context, entry store.LoreEntry) error {
	if f.insertLoreEntryFn != nil {
		return f.insertLoreEntryFn(ctx, entry)
	}
	return nil
}

func (f *fakeStore) GetLoreEntry(ctx context.Context, projectID, entryID string) (store.LoreEntry, error) {
	if f.getLoreEntryFn != nil {
		return f.getLoreEntryFn(ctx, projectID, entryID)
	}
	return store.LoreEntry{ID: entryID, ProjectID: projectID, Title: "Origins"}, nil
}

func (f *fakeStore) ListLoreEntries(ctx context.Context, projectID, category string) ([]store.LoreEntry, error) {
	if f.listLoreEntriesFn != nil {
		return f.listLoreEntriesFn(ctx, projectID, category)
	}
	return nil, nil
}

func (f *fakeStore) UpdateLoreEntry(context.Context, store.LoreEntry) error { return nil }

func (f *fakeStore) DeleteLoreEntry(context.Context, string, string) error { return nil }

func (f *fakeStore) InsertAsset(ctx context.Context, asset store.Asset) error {
	if f.insertAssetFn != nil {
		return f.insertAssetFn(ctx, asset)
	}
	return nil
}

func (f *fakeStore) GetAsset(ctx context.Context, assetID string) (store.Asset, error) {
	if f.getAssetFn != nil {
		return f.getAssetFn(ctx, assetID)
	}
	return store.Asset{ID: assetID, ProjectID: "prj_1", Name: "sword", Type: "model", Status: store.AssetStatusPending}, nil
}

func (f *fakeStore) ListAssets(ctx context.Context, projectID, assetType, status string) ([]store.Asset, error) {
	if f.listAssetsFn != nil {
		return f.listAssetsFn(ctx, projectID, assetType, status)
	}
	return nil, nil
}

func (f *fakeStore) UpdateAssetMetadata(context.Context, string, string, int) error { return nil }

func (f *fakeStore) SetAssetStatus(ctx context.Context, assetID, status string) error {
	if f.setAssetStatusFn != nil {
		return f.setAssetStatusFn(ctx, assetID, status)
	}
	return nil
}

func (f *fakeStore) SetAssetObject(ctx context.Context, assetID, objectKey, cdnURL string) error {
	if f.setAssetObjectFn != nil {
		return f.setAssetObjectFn(ctx, assetID, objectKey, cdnURL)
	}
	return nil
}

func (f *fakeStore) DeleteAsset(ctx context.Context, assetID string) error {
	if f.deleteAssetFn != nil {
		return f.deleteAssetFn(ctx, assetID)
	}
	return nil
}

func (f *fakeStore) InsertGenerationJob(ctx context.Context, job store.GenerationJob) error {
	if f.insertGenerationJobFn != nil {
		return f.insertGenerationJobFn(ctx, job)
	}
	return nil
}

func (f *fakeStore) GetGenerationJob(ctx context.Context, jobID string) (store.GenerationJob, error) {
	if f.getGenerationJobFn != nil {
		return f.getGenerationJobFn(ctx, jobID)
	}
	return store.GenerationJob{ID: jobID, ProjectID: "prj_1", Type: "model", Status: store.JobStatusQueued}, nil
}

func (f *fakeStore) ListGenerationJobs(ctx context.Context, projectID, status string) ([]store.GenerationJob, error) {
	if f.listGenerationJobsFn != nil {
		return f.listGenerationJobsFn(ctx, projectID, status)
	}
	return nil, nil
}

func (f *fakeStore) MarkGenerationJobRunning(ctx context.Context, jobID string) error {
	if f.markGenerationJobRunningFn != nil {
		return f.markGenerationJobRunningFn(ctx, jobID)
	}
	return nil
}

func (f *fakeStore) CompleteGenerationJob(ctx context.Context, jobID, resultAssetID string) error {
	if f.completeGenerationJobFn != nil {
		return f.completeGenerationJobFn(ctx, jobID, resultAssetID)
	}
	return nil
}

func (f *fakeStore) FailGenerationJob(ctx context.Context, jobID, jobErr string) error {
	if f.failGenerationJobFn != nil {
		return f.failGenerationJobFn(ctx, jobID, jobErr)
	}
	return nil
}

// fakeSessions is an in-memory refresh token store.
type fakeSessions struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: make(map[string]string)}
}

func (f *fakeSessions) Save(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[tokenHash] = userID
	return nil
}

func (f *fakeSessions) Lookup(_ context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.tokens[tokenHash]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

func (f *fakeSessions) Revoke(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, tokenHash)
	return nil
}

// fakeSearch records index and delete calls.
type fakeSearch struct {
	mu       sync.Mutex
	searchFn func(search.Query) search.Response
	indexed  []string
	deleted  []string
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	if f.searchFn != nil {
		return f.searchFn(q)
	}
	return search.Response{Results: []search.Result{}, Query: q.Text}
}

func (f *fakeSearch) record(list *[]string, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*list = append(*list, id)
}

func (f *fakeSearch) IndexNPC(n search.NPCRecord)     { f.record(&f.indexed, n.ID) }
func (f *fakeSearch) IndexQuest(q search.QuestRecord) { f.record(&f.indexed, q.ID) }
func (f *fakeSearch) IndexLore(l search.LoreRecord)   { f.record(&f.indexed, l.ID) }
func (f *fakeSearch) IndexAsset(a search.AssetRecord) { f.record(&f.indexed, a.ID) }
func (f *fakeSearch) DeleteNPC(id string)             { f.record(&f.deleted, id) }
func (f *fakeSearch) DeleteQuest(id string)           { f.record(&f.deleted, id) }
func (f *fakeSearch) DeleteLore(id string)            { f.record(&f.deleted, id) }
func (f *fakeSearch) DeleteAsset(id string)           { f.record(&f.deleted, id) }

func (f *fakeSearch) indexedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.indexed...)
}

func (f *fakeSearch) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// fakeWorld records cache invalidations.
type fakeWorld struct {
	mu          sync.Mutex
	queryFn     func(context.Context, string, knowledge.Kind, string, int) (knowledge.Context, error)
	invalidated []string
}

func (f *fakeWorld) Query(ctx context.Context, projectID string, kind knowledge.Kind, id string, depth int) (knowledge.Context, error) {
	if f.queryFn != nil {
		return f.queryFn(ctx, projectID, kind, id, depth)
	}
	return knowledge.Context{Root: knowledge.Entity{Kind: kind, ID: id}, Depth: depth}, nil
}

func (f *fakeWorld) Invalidate(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, projectID)
}

func (f *fakeWorld) invalidatedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...)
}

// fakeKeys stubs the API key service.
type fakeKeys struct {
	generateFn     func(context.Context, string, string, []string) (store.APIKey, string, error)
	authenticateFn func(context.Context, string) (store.APIKey, error)
	listFn         func(context.Context, string) ([]store.APIKey, error)
	revokeFn       func(context.Context, string, string) error
}

func (f *fakeKeys) Generate(ctx context.Context, userID, name string, scopes []string) (store.APIKey, string, error) {
	if f.generateFn != nil {
		return f.generateFn(ctx, userID, name, scopes)
	}
	return store.APIKey{ID: "key_1", UserID: userID, Name: name, Scopes: scopes, Prefix: "fk_test1234"}, "fk_test1234raw", nil
}

func (f *fakeKeys) Authenticate(ctx context.Context, raw string) (store.APIKey, error) {
	if f.authenticateFn != nil {
		return f.authenticateFn(ctx, raw)
	}
	return store.APIKey{}, sql.ErrNoRows
}

func (f *fakeKeys) List(ctx context.Context, userID string) ([]store.APIKey, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeKeys) Revoke(ctx context.Context, userID, keyID string) error {
	if f.revokeFn != nil {
		return f.revokeFn(ctx, userID, keyID)
	}
	return nil
}

func newTestService(fs *fakeStore) *Service {
	return newTestServiceWith(fs, &fakeSearch{}, &fakeWorld{})
}

func newTestServiceWith(fs *fakeStore, idx *fakeSearch, world *fakeWorld) *Service {
	svc := &Service{
		store:    fs,
		sessions: newFakeSessions(),
		keys:     &fakeKeys{},
		objects:  storage.NewMemoryStore(),
		search:   idx,
		world:    world,
	}
	svc.cfg.JWTSecret = "test-secret"
	svc.cfg.AccessTTL = time.Hour
	svc.cfg.RefreshTTL = 24 * time.Hour
	return svc
}
