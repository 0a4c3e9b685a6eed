package app

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"forge/api/internal/metrics"
	"forge/api/internal/rbac"
	"forge/api/internal/storage"
	"forge/api/internal/store"
	"forge/api/internal/util"
)

// GeneratedAsset is what a provider hands back: asset metadata plus an
// optional binary payload to store.
type GeneratedAsset struct {
	Name         string
	Type         string
	Format       string
	PolygonCount int
	PreviewURL   string
	Payload      []byte
	ContentType  string
}

// Provider produces game assets from a generation job. Implementations call
// out to an external generation backend.
type Provider interface {
	Generate(ctx context.Context, job store.GenerationJob) (GeneratedAsset, error)
}

// StubProvider fulfils jobs with tiny placeholder assets. It stands in
// wherever a real generation backend is not configured.
type StubProvider struct{}

func (StubProvider) Generate(_ context.Context, job store.GenerationJob) (GeneratedAsset, error) {
	name := strings.TrimSpace(job.Prompt)
	if len(name) > 40 {
		name = name[:40]
	}
	if name == "" {
		name = "generated " + job.Type
	}

	switch job.Type {
	case "portrait":
		return GeneratedAsset{
			Name:        name,
			Type:        "image",
			Format:      "png",
			Payload:     []byte("placeholder portrait: " + job.Prompt),
			ContentType: "image/png",
		}, nil
	case "retexture":
		return GeneratedAsset{
			Name:        name,
			Type:        "texture",
			Format:      "png",
			Payload:     []byte("placeholder texture: " + job.Prompt),
			ContentType: "image/png",
		}, nil
	default:
		return GeneratedAsset{
			Name:         name,
			Type:         "model",
			Format:       "glb",
			PolygonCount: 1200,
			Payload:      []byte("placeholder model: " + job.Prompt),
			ContentType:  "model/gltf-binary",
		}, nil
	}
}

// JobInput carries the fields accepted when queueing a generation job.
type JobInput struct {
	Type          string `json:"type"`
	Prompt        string `json:"prompt"`
	StyleParams   string `json:"styleParams"`
	SourceAssetID string `json:"sourceAssetId"`
	TargetID      string `json:"targetId"`
}

var jobTypes = map[string]bool{"model": true, "portrait": true, "retexture": true}

// CreateGenerationJob queues a job and kicks off the provider asynchronously.
func (s *Service) CreateGenerationJob(ctx context.Context, session Session, projectID string, in JobInput) (store.GenerationJob, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionGenerate); err != nil {
		return store.GenerationJob{}, err
	}
	if !jobTypes[in.Type] {
		return store.GenerationJob{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be model, portrait or retexture", nil)
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return store.GenerationJob{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "prompt is required", nil)
	}
	if in.Type == "retexture" {
		if in.SourceAssetID == "" {
			return store.GenerationJob{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sourceAssetId is required for retexture jobs", nil)
		}
		if _, err := s.projectAsset(ctx, projectID, in.SourceAssetID); err != nil {
			return store.GenerationJob{}, err
		}
	}
	if in.Type == "portrait" {
		if in.TargetID == "" {
			return store.GenerationJob{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "targetId is required for portrait jobs", nil)
		}
		if _, err := s.store.GetNPC(ctx, projectID, in.TargetID); err != nil {
			return store.GenerationJob{}, err
		}
	}

	job := store.GenerationJob{
		ID:            util.NewID("job"),
		ProjectID:     projectID,
		Type:          in.Type,
		Prompt:        strings.TrimSpace(in.Prompt),
		StyleParams:   in.StyleParams,
		Status:        store.JobStatusQueued,
		SourceAssetID: in.SourceAssetID,
		TargetID:      in.TargetID,
		CreatedBy:     session.UserID,
	}
	if err := s.store.InsertGenerationJob(ctx, job); err != nil {
		return store.GenerationJob{}, err
	}

	created, err := s.store.GetGenerationJob(ctx, job.ID)
	if err != nil {
		return store.GenerationJob{}, err
	}
	if s.provider != nil {
		go s.runJob(created)
	}
	return created, nil
}

// GetGenerationJob fetches a job, checking it belongs to the project.
func (s *Service) GetGenerationJob(ctx context.Context, session Session, projectID, jobID string) (store.GenerationJob, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return store.GenerationJob{}, err
	}
	job, err := s.store.GetGenerationJob(ctx, jobID)
	if err != nil {
		return store.GenerationJob{}, err
	}
	if job.ProjectID != projectID {
		return store.GenerationJob{}, domainError(http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
	}
	return job, nil
}

// ListGenerationJobs lists a project's jobs with an optional status filter.
func (s *Service) ListGenerationJobs(ctx context.Context, session Session, projectID, status string) ([]store.GenerationJob, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListGenerationJobs(ctx, projectID, status)
}

// runJob drives a queued job through the provider. It runs detached from
// the request, on its own context.
func (s *Service) runJob(job store.GenerationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := s.store.MarkGenerationJobRunning(ctx, job.ID); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("could not mark job running")
		return
	}

	generated, err := s.provider.Generate(ctx, job)
	if err != nil {
		s.failJob(ctx, job, err)
		return
	}

	asset := store.Asset{
		ID:           util.NewID("ast"),
		ProjectID:    job.ProjectID,
		Name:         generated.Name,
		Type:         generated.Type,
		Format:       generated.Format,
		Status:       store.AssetStatusPending,
		PolygonCount: generated.PolygonCount,
		PreviewURL:   generated.PreviewURL,
		CreatedBy:    job.CreatedBy,
	}
	if err := s.store.InsertAsset(ctx, asset); err != nil {
		s.failJob(ctx, job, err)
		return
	}

	if len(generated.Payload) > 0 {
		key := "assets/" + asset.ID + "/" + asset.ID + "." + generated.Format
		opts := storage.PutOptions{ContentType: generated.ContentType}
		if err := s.objects.Put(ctx, key, bytes.NewReader(generated.Payload), int64(len(generated.Payload)), opts); err != nil {
			s.failJob(ctx, job, err)
			return
		}
		if err := s.store.SetAssetObject(ctx, asset.ID, key, ""); err != nil {
			s.failJob(ctx, job, err)
			return
		}
	}
	if err := s.store.SetAssetStatus(ctx, asset.ID, store.AssetStatusReady); err != nil {
		s.failJob(ctx, job, err)
		return
	}

	if err := s.store.CompleteGenerationJob(ctx, job.ID, asset.ID); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("could not complete job")
		return
	}

	// Portrait jobs attach the result to their NPC.
	if job.Type == "portrait" && job.TargetID != "" {
		url, err := s.objects.PresignedURL(ctx, "assets/"+asset.ID+"/"+asset.ID+"."+generated.Format, 7*24*time.Hour)
		if err == nil {
			if err := s.store.SetNPCPortrait(ctx, job.ProjectID, job.TargetID, url); err != nil {
				log.Warn().Err(err).Str("npc_id", job.TargetID).Msg("could not set portrait")
			} else {
				s.world.Invalidate(job.ProjectID)
			}
		}
	}

	if done, err := s.store.GetAsset(ctx, asset.ID); err == nil {
		s.indexAsset(done)
	}
	metrics.RecordGenerationJob(job.Type, store.JobStatusSucceeded, time.Since(job.CreatedAt))
}

func (s *Service) failJob(ctx context.Context, job store.GenerationJob, cause error) {
	log.Warn().Err(cause).Str("job_id", job.ID).Str("type", job.Type).Msg("generation job failed")
	if err := s.store.FailGenerationJob(ctx, job.ID, cause.Error()); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("could not mark job failed")
	}
	metrics.RecordGenerationJob(job.Type, store.JobStatusFailed, time.Since(job.CreatedAt))
}
