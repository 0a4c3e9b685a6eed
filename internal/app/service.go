package app

import (
	"context"
	"net/http"
	"time"

	"forge/api/internal/apikey"
	"forge/api/internal/auth"
	"forge/api/internal/authpw"
	"forge/api/internal/config"
	"forge/api/internal/email"
	"forge/api/internal/knowledge"
	"forge/api/internal/rbac"
	"forge/api/internal/search"
	"forge/api/internal/storage"
	"forge/api/internal/store"
	"forge/api/internal/util"
)

// Session is the resolved caller identity for a request, whether it arrived
// with a bearer token or an API key.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time

	// Set when the caller authenticated with an API key.
	ViaAPIKey bool
	KeyID     string
	Scopes    []string
}

// dataStore is the persistence surface the service works against.
type dataStore interface {
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)

	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	InsertProject(ctx context.Context, project store.Project) error
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	ListProjectsByMember(ctx context.Context, userID string) ([]store.Project, error)
	UpdateProject(ctx context.Context, projectID, name, description string) error
	SetProjectStatus(ctx context.Context, projectID, status string) error
	DeleteProject(ctx context.Context, projectID string) error
	UpsertProjectMember(ctx context.Context, projectID, userID, role string) error
	RemoveProjectMember(ctx context.Context, projectID, userID string) error
	ListProjectMembers(ctx context.Context, projectID string) ([]store.ProjectMember, error)
	GetProjectRole(ctx context.Context, projectID, userID string) (string, error)

	InsertNPC(ctx context.Context, npc store.NPC) error
	GetNPC(ctx context.Context, projectID, npcID string) (store.NPC, error)
	ListNPCs(ctx context.Context, projectID string) ([]store.NPC, error)
	UpdateNPC(ctx context.Context, npc store.NPC) error
	SetNPCPortrait(ctx context.Context, projectID, npcID, portraitURL string) error
	DeleteNPC(ctx context.Context, projectID, npcID string) error

	InsertQuest(ctx context.Context, quest store.Quest) error
	GetQuest(ctx context.Context, projectID, questID string) (store.Quest, error)
	ListQuests(ctx context.Context, projectID string) ([]store.Quest, error)
	UpdateQuest(ctx context.Context, quest store.Quest) error
	DeleteQuest(ctx context.Context, projectID, questID string) error

	InsertLoreEntry(ctx context.Context, entry store.LoreEntry) error
	GetLoreEntry(ctx context.Context, projectID, entryID string) (store.LoreEntry, error)
	ListLoreEntries(ctx context.Context, projectID, category string) ([]store.LoreEntry, error)
	UpdateLoreEntry(ctx context.Context, entry store.LoreEntry) error
	DeleteLoreEntry(ctx context.Context, projectID, entryID string) error

	InsertAsset(ctx context.Context, asset store.Asset) error
	GetAsset(ctx context.Context, assetID string) (store.Asset, error)
	ListAssets(ctx context.Context, projectID, assetType, status string) ([]store.Asset, error)
	UpdateAssetMetadata(ctx context.Context, assetID, name string, polygonCount int) error
	SetAssetStatus(ctx context.Context, assetID, status string) error
	SetAssetObject(ctx context.Context, assetID, objectKey, cdnURL string) error
	DeleteAsset(ctx context.Context, assetID string) error

	InsertGenerationJob(ctx context.Context, job store.GenerationJob) error
	GetGenerationJob(ctx context.Context, jobID string) (store.GenerationJob, error)
	ListGenerationJobs(ctx context.Context, projectID, status string) ([]store.GenerationJob, error)
	MarkGenerationJobRunning(ctx context.Context, jobID string) error
	CompleteGenerationJob(ctx context.Context, jobID, resultAssetID string) error
	FailGenerationJob(ctx context.Context, jobID, jobErr string) error
}

// sessionStore holds refresh tokens. Redis in production, with a Postgres
// fallback when Redis is not configured.
type sessionStore interface {
	Save(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (string, error)
	Revoke(ctx context.Context, tokenHash string) error
}

// keyService manages API keys.
type keyService interface {
	Generate(ctx context.Context, userID, name string, scopes []string) (store.APIKey, string, error)
	Authenticate(ctx context.Context, raw string) (store.APIKey, error)
	List(ctx context.Context, userID string) ([]store.APIKey, error)
	Revoke(ctx context.Context, userID, keyID string) error
}

// searchIndex is the search facade: query plus fire-and-forget indexing.
type searchIndex interface {
	Search(q search.Query) search.Response
	IndexNPC(n search.NPCRecord)
	IndexQuest(q search.QuestRecord)
	IndexLore(l search.LoreRecord)
	IndexAsset(a search.AssetRecord)
	DeleteNPC(id string)
	DeleteQuest(id string)
	DeleteLore(id string)
	DeleteAsset(id string)
}

// worldKnowledge answers entity-graph queries over project content.
type worldKnowledge interface {
	Query(ctx context.Context, projectID string, kind knowledge.Kind, id string, depth int) (knowledge.Context, error)
	Invalidate(projectID string)
}

// emailSender delivers verification and reset mail.
type emailSender interface {
	IsConfigured() bool
	SendVerificationEmail(to, userName, verificationURL string) error
	SendPasswordResetEmail(to, userName, resetURL string) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	keys      keyService
	objects   storage.ObjectStore
	search    searchIndex
	world     worldKnowledge
	email     emailSender
	passwords *authpw.Service
	provider  Provider
}

func New(
	cfg config.Config,
	pg *store.PostgresStore,
	sessions sessionStore,
	keys *apikey.Service,
	objects storage.ObjectStore,
	searchSvc *search.Service,
	world *knowledge.Service,
	emailSvc *email.Service,
	passwords *authpw.Service,
	provider Provider,
) *Service {
	return &Service{
		cfg:       cfg,
		store:     pg,
		sessions:  sessions,
		keys:      keys,
		objects:   objects,
		search:    searchSvc,
		world:     world,
		email:     emailSvc,
		passwords: passwords,
		provider:  provider,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// AuthPasswordService exposes the email/password service to HTTP handlers.
func (s *Service) AuthPasswordService() *authpw.Service {
	return s.passwords
}

// SMTPConfigured reports whether outbound email works; handlers fall back
// to dev bypass tokens when it does not.
func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// PublicBaseURL is the origin verification and reset links point at.
func (s *Service) PublicBaseURL() string {
	return s.cfg.PublicBaseURL
}

// SendVerificationEmail mails a verification link, best effort.
func (s *Service) SendVerificationEmail(to, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := s.cfg.PublicBaseURL + "/verify-email?token=" + token
	go func() {
		_ = s.email.SendVerificationEmail(to, userName, url)
	}()
}

// SendPasswordResetEmail mails a reset link, best effort.
func (s *Service) SendPasswordResetEmail(to, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := s.cfg.PublicBaseURL + "/reset-password?token=" + token
	go func() {
		_ = s.email.SendPasswordResetEmail(to, userName, url)
	}()
}

// CreateSession issues an access/refresh token pair for a signed-in user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.Lookup(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.Revoke(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewSecret()
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.Save(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken resolves a bearer access token.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// SessionFromAPIKey resolves an X-API-Key header to a scoped session.
func (s *Service) SessionFromAPIKey(ctx context.Context, raw string) (Session, error) {
	key, err := s.keys.Authenticate(ctx, raw)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, key.UserID)
	if err != nil {
		return Session{}, err
	}
	return Session{
		UserID:    user.ID,
		UserName:  user.DisplayName,
		ViaAPIKey: true,
		KeyID:     key.ID,
		Scopes:    key.Scopes,
	}, nil
}

// Logout revokes the access token (by jti) and the refresh token.
func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.Revoke(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// GenerateAPIKey mints a key for the session user.
func (s *Service) GenerateAPIKey(ctx context.Context, session Session, name string, scopes []string) (store.APIKey, string, error) {
	if session.ViaAPIKey {
		// Keys cannot mint further keys.
		return store.APIKey{}, "", domainError(http.StatusForbidden, "FORBIDDEN", "API keys cannot manage keys", nil)
	}
	return s.keys.Generate(ctx, session.UserID, name, scopes)
}

// ListAPIKeys lists the session user's keys.
func (s *Service) ListAPIKeys(ctx context.Context, session Session) ([]store.APIKey, error) {
	if session.ViaAPIKey {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "API keys cannot manage keys", nil)
	}
	return s.keys.List(ctx, session.UserID)
}

// RevokeAPIKey revokes one of the session user's keys.
func (s *Service) RevokeAPIKey(ctx context.Context, session Session, keyID string) error {
	if session.ViaAPIKey {
		return domainError(http.StatusForbidden, "FORBIDDEN", "API keys cannot manage keys", nil)
	}
	return s.keys.Revoke(ctx, session.UserID, keyID)
}

// requireProjectRole loads the project and checks the caller may perform
// the action. Membership grants a role; API-key callers additionally need a
// scope covering the action. Writes against archived projects are rejected.
func (s *Service) requireProjectRole(ctx context.Context, session Session, projectID string, action rbac.Action) (store.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Project{}, err
	}

	role, err := s.store.GetProjectRole(ctx, projectID, session.UserID)
	if err != nil {
		return store.Project{}, err
	}
	if role == "" {
		return store.Project{}, domainError(http.StatusForbidden, "FORBIDDEN", "Not a member of this project", nil)
	}
	if !rbac.Can(rbac.Normalize(role), action) {
		return store.Project{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if session.ViaAPIKey && !rbac.ScopesAllow(session.Scopes, action) {
		return store.Project{}, domainError(http.StatusForbidden, "INSUFFICIENT_SCOPE", "API key scope does not cover this action", nil)
	}
	if project.Status == store.ProjectStatusArchived && action != rbac.ActionRead {
		return store.Project{}, domainError(http.StatusConflict, "PROJECT_ARCHIVED", "Project is archived and read-only", nil)
	}
	return project, nil
}
