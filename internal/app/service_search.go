package app

import (
	"context"
	"net/http"
	"strings"

	"forge/api/internal/rbac"
	"forge/api/internal/search"
)

// Search runs a full-text search scoped to the projects the caller can read.
// An explicit projectID narrows the scope to that one project.
func (s *Service) Search(ctx context.Context, session Session, text, filterType, projectID string, limit, offset int) (search.Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "q is required", nil)
	}
	switch search.ResultType(filterType) {
	case "", search.ResultNPC, search.ResultQuest, search.ResultLore, search.ResultAsset:
	default:
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be npc, quest, lore or asset", nil)
	}

	var projectIDs []string
	if projectID != "" {
		if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
			return search.Response{}, err
		}
		projectIDs = []string{projectID}
	} else {
		if session.ViaAPIKey && !rbac.ScopesAllow(session.Scopes, rbac.ActionRead) {
			return search.Response{}, domainError(http.StatusForbidden, "INSUFFICIENT_SCOPE", "API key scope does not cover this action", nil)
		}
		projects, err := s.store.ListProjectsByMember(ctx, session.UserID)
		if err != nil {
			return search.Response{}, err
		}
		if len(projects) == 0 {
			return search.Response{Results: []search.Result{}, Query: text}, nil
		}
		for _, p := range projects {
			projectIDs = append(projectIDs, p.ID)
		}
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.search.Search(search.Query{
		Text:       text,
		FilterType: search.ResultType(filterType),
		ProjectIDs: projectIDs,
		Limit:      limit,
		Offset:     offset,
	}), nil
}
