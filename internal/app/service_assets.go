package app

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"forge/api/internal/rbac"
	"forge/api/internal/search"
	"forge/api/internal/storage"
	"forge/api/internal/store"
	"forge/api/internal/util"
)

// AssetInput carries the fields accepted when registering an asset.
type AssetInput struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Format       string `json:"format"`
	PolygonCount int    `json:"polygonCount"`
	PreviewURL   string `json:"previewUrl"`
}

var assetTypes = map[string]bool{"model": true, "texture": true, "image": true}

func (s *Service) indexAsset(a store.Asset) {
	s.search.IndexAsset(search.AssetRecord{
		ID:        a.ID,
		Name:      a.Name,
		Type:      a.Type,
		Format:    a.Format,
		Status:    a.Status,
		ProjectID: a.ProjectID,
	})
}

// CreateAsset registers an asset record. The binary is uploaded separately.
func (s *Service) CreateAsset(ctx context.Context, session Session, projectID string, in AssetInput) (store.Asset, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return store.Asset{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return store.Asset{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if !assetTypes[in.Type] {
		return store.Asset{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be model, texture or image", nil)
	}

	asset := store.Asset{
		ID:           util.NewID("ast"),
		ProjectID:    projectID,
		Name:         strings.TrimSpace(in.Name),
		Type:         in.Type,
		Format:       strings.ToLower(strings.TrimSpace(in.Format)),
		Status:       store.AssetStatusPending,
		PolygonCount: in.PolygonCount,
		PreviewURL:   in.PreviewURL,
		CreatedBy:    session.UserID,
	}
	if err := s.store.InsertAsset(ctx, asset); err != nil {
		return store.Asset{}, err
	}

	created, err := s.store.GetAsset(ctx, asset.ID)
	if err != nil {
		return store.Asset{}, err
	}
	s.indexAsset(created)
	return created, nil
}

// GetAsset fetches an asset, checking it belongs to the given project.
func (s *Service) GetAsset(ctx context.Context, session Session, projectID, assetID string) (store.Asset, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return store.Asset{}, err
	}
	return s.projectAsset(ctx, projectID, assetID)
}

// ListAssets lists a project's assets with optional type and status filters.
func (s *Service) ListAssets(ctx context.Context, session Session, projectID, assetType, status string) ([]store.Asset, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListAssets(ctx, projectID, assetType, status)
}

// UpdateAssetMetadata renames an asset or corrects its polygon count.
func (s *Service) UpdateAssetMetadata(ctx context.Context, session Session, projectID, assetID string, name string, polygonCount int) (store.Asset, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return store.Asset{}, err
	}
	asset, err := s.projectAsset(ctx, projectID, assetID)
	if err != nil {
		return store.Asset{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = asset.Name
	}
	if polygonCount <= 0 {
		polygonCount = asset.PolygonCount
	}
	if err := s.store.UpdateAssetMetadata(ctx, assetID, name, polygonCount); err != nil {
		return store.Asset{}, err
	}

	updated, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return store.Asset{}, err
	}
	s.indexAsset(updated)
	return updated, nil
}

// UploadAsset stores the asset binary and marks the record ready.
func (s *Service) UploadAsset(ctx context.Context, session Session, projectID, assetID, filename, contentType string, body io.Reader, size int64) (store.Asset, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return store.Asset{}, err
	}
	asset, err := s.projectAsset(ctx, projectID, assetID)
	if err != nil {
		return store.Asset{}, err
	}

	filename = path.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		filename = asset.Name
	}
	key := "assets/" + asset.ID + "/" + filename

	if err := s.objects.Put(ctx, key, body, size, storage.PutOptions{ContentType: contentType}); err != nil {
		return store.Asset{}, err
	}
	if err := s.store.SetAssetObject(ctx, assetID, key, ""); err != nil {
		return store.Asset{}, err
	}
	if err := s.store.SetAssetStatus(ctx, assetID, store.AssetStatusReady); err != nil {
		return store.Asset{}, err
	}

	updated, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return store.Asset{}, err
	}
	s.indexAsset(updated)
	return updated, nil
}

// AssetDownloadURL returns a short-lived presigned URL for the stored binary.
func (s *Service) AssetDownloadURL(ctx context.Context, session Session, projectID, assetID string) (string, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return "", err
	}
	asset, err := s.projectAsset(ctx, projectID, assetID)
	if err != nil {
		return "", err
	}
	if asset.ObjectKey == "" {
		return "", domainError(http.StatusConflict, "ASSET_NOT_UPLOADED", "Asset has no stored binary", nil)
	}
	return s.objects.PresignedURL(ctx, asset.ObjectKey, 15*time.Minute)
}

// DeleteAsset removes the record and the stored binary, if any.
func (s *Service) DeleteAsset(ctx context.Context, session Session, projectID, assetID string) error {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite); err != nil {
		return err
	}
	asset, err := s.projectAsset(ctx, projectID, assetID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteAsset(ctx, assetID); err != nil {
		return err
	}
	if asset.ObjectKey != "" {
		_ = s.objects.Remove(ctx, asset.ObjectKey)
	}
	s.search.DeleteAsset(assetID)
	return nil
}

// projectAsset loads an asset and verifies it belongs to the project from
// the route, so one project's members cannot reach another's assets.
func (s *Service) projectAsset(ctx context.Context, projectID, assetID string) (store.Asset, error) {
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return store.Asset{}, err
	}
	if asset.ProjectID != projectID {
		return store.Asset{}, domainError(http.StatusNotFound, "NOT_FOUND", "Asset not found", nil)
	}
	return asset, nil
}
