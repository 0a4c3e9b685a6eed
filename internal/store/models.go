package store

import "time"

const (
	ProjectStatusActive   = "active"
	ProjectStatusArchived = "archived"
)

const (
	AssetStatusPending = "pending"
	AssetStatusReady   = "ready"
	AssetStatusFailed  = "failed"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Project struct {
	ID          string
	Name        string
	Description string
	Status      string // "active" or "archived"
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ProjectMember struct {
	ProjectID   string
	UserID      string
	DisplayName string
	Role        string
	AddedAt     time.Time
}

type Asset struct {
	ID           string
	ProjectID    string
	Name         string
	Type         string // "model", "texture", "image"
	Format       string // "glb", "fbx", "png", ...
	Status       string // "pending", "ready", "failed"
	PolygonCount int
	ObjectKey    string
	PreviewURL   string
	CDNURL       string
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type NPC struct {
	ID          string
	ProjectID   string
	Name        string
	Role        string
	Personality string
	Backstory   string
	PortraitURL string
	QuestIDs    []string
	UpdatedAt   time.Time
	CreatedAt   time.Time
}

type Quest struct {
	ID         string
	ProjectID  string
	Title      string
	Summary    string
	Objectives []string
	Status     string // "draft", "active", "completed"
	GiverNPCID string
	NPCIDs     []string
	UpdatedAt  time.Time
	CreatedAt  time.Time
}

type LoreEntry struct {
	ID        string
	ProjectID string
	Title     string
	Body      string
	Category  string
	Tags      []string
	UpdatedAt time.Time
	CreatedAt time.Time
}

type APIKey struct {
	ID         string
	UserID     string
	Name       string
	Prefix     string
	KeyHash    string
	Scopes     []string
	LastUsedAt *time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

type GenerationJob struct {
	ID            string
	ProjectID     string
	Type          string // "model", "portrait", "retexture"
	Prompt        string
	StyleParams   string // raw JSON, provider-specific
	Status        string // "queued", "running", "succeeded", "failed"
	SourceAssetID string // set for retexture jobs
	ResultAssetID string
	TargetID      string // NPC id for portrait jobs
	Error         string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
