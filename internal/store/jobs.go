package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertGenerationJob(ctx context.Context, job GenerationJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generation_jobs (id, project_id, type, prompt, style_params, status, source_asset_id, target_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, job.ID, job.ProjectID, job.Type, job.Prompt, job.StyleParams, job.Status, job.SourceAssetID, job.TargetID, job.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert generation job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGenerationJob(ctx context.Context, jobID string) (GenerationJob, error) {
	var job GenerationJob
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, type, prompt, style_params, status, source_asset_id, result_asset_id, target_id, error, created_by, created_at, updated_at
		FROM generation_jobs WHERE id=$1
	`, jobID).Scan(&job.ID, &job.ProjectID, &job.Type, &job.Prompt, &job.StyleParams, &job.Status, &job.SourceAssetID, &job.ResultAssetID, &job.TargetID, &job.Error, &job.CreatedBy, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return GenerationJob{}, err
	}
	return job, nil
}

func (s *PostgresStore) ListGenerationJobs(ctx context.Context, projectID, status string) ([]GenerationJob, error) {
	query := `
		SELECT id, project_id, type, prompt, style_params, status, source_asset_id, result_asset_id, target_id, error, created_by, created_at, updated_at
		FROM generation_jobs WHERE project_id=$1
	`
	args := []any{projectID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list generation jobs: %w", err)
	}
	defer rows.Close()

	items := make([]GenerationJob, 0)
	for rows.Next() {
		var job GenerationJob
		if err := rows.Scan(&job.ID, &job.ProjectID, &job.Type, &job.Prompt, &job.StyleParams, &job.Status, &job.SourceAssetID, &job.ResultAssetID, &job.TargetID, &job.Error, &job.CreatedBy, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan generation job: %w", err)
		}
		items = append(items, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generation jobs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MarkGenerationJobRunning(ctx context.Context, jobID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_jobs SET status='running', updated_at=NOW()
		WHERE id=$1 AND status='queued'
	`, jobID)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) CompleteGenerationJob(ctx context.Context, jobID, resultAssetID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_jobs SET status='succeeded', result_asset_id=$2, updated_at=NOW()
		WHERE id=$1 AND status IN ('queued', 'running')
	`, jobID, resultAssetID)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) FailGenerationJob(ctx context.Context, jobID, jobErr string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE generation_jobs SET status='failed', error=$2, updated_at=NOW()
		WHERE id=$1 AND status IN ('queued', 'running')
	`, jobID, jobErr)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return requireRow(result)
}
