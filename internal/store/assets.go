package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertAsset(ctx context.Context, asset Asset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, project_id, name, type, format, status, polygon_count, object_key, preview_url, cdn_url, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, asset.ID, asset.ProjectID, asset.Name, asset.Type, asset.Format, asset.Status, asset.PolygonCount, asset.ObjectKey, asset.PreviewURL, asset.CDNURL, asset.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, assetID string) (Asset, error) {
	var asset Asset
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, type, format, status, polygon_count, object_key, preview_url, cdn_url, created_by, created_at, updated_at
		FROM assets WHERE id=$1
	`, assetID).Scan(&asset.ID, &asset.ProjectID, &asset.Name, &asset.Type, &asset.Format, &asset.Status, &asset.PolygonCount, &asset.ObjectKey, &asset.PreviewURL, &asset.CDNURL, &asset.CreatedBy, &asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		return Asset{}, err
	}
	return asset, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context, projectID, assetType, status string) ([]Asset, error) {
	query := `
		SELECT id, project_id, name, type, format, status, polygon_count, object_key, preview_url, cdn_url, created_by, created_at, updated_at
		FROM assets WHERE project_id=$1
	`
	args := []any{projectID}
	if assetType != "" {
		args = append(args, assetType)
		query += fmt.Sprintf(` AND type=$%d`, len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	items := make([]Asset, 0)
	for rows.Next() {
		var asset Asset
		if err := rows.Scan(&asset.ID, &asset.ProjectID, &asset.Name, &asset.Type, &asset.Format, &asset.Status, &asset.PolygonCount, &asset.ObjectKey, &asset.PreviewURL, &asset.CDNURL, &asset.CreatedBy, &asset.CreatedAt, &asset.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		items = append(items, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateAssetMetadata(ctx context.Context, assetID, name string, polygonCount int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE assets SET name=$2, polygon_count=$3, updated_at=NOW() WHERE id=$1
	`, assetID, name, polygonCount)
	if err != nil {
		return fmt.Errorf("update asset metadata: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) SetAssetStatus(ctx context.Context, assetID, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE assets SET status=$2, updated_at=NOW() WHERE id=$1
	`, assetID, status)
	if err != nil {
		return fmt.Errorf("set asset status: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) SetAssetObject(ctx context.Context, assetID, objectKey, cdnURL string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE assets SET object_key=$2, cdn_url=$3, status='ready', updated_at=NOW() WHERE id=$1
	`, assetID, objectKey, cdnURL)
	if err != nil {
		return fmt.Errorf("set asset object: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) DeleteAsset(ctx context.Context, assetID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id=$1`, assetID)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return requireRow(result)
}
