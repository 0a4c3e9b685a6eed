package app

import (
	"context"
	"net/http"
	"strings"

	"forge/api/internal/rbac"
	"forge/api/internal/store"
	"forge/api/internal/util"
)

// CreateProject creates a project owned by the caller.
func (s *Service) CreateProject(ctx context.Context, session Session, name, description string) (store.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Project{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if session.ViaAPIKey && !rbac.ScopesAllow(session.Scopes, rbac.ActionWrite) {
		return store.Project{}, domainError(http.StatusForbidden, "INSUFFICIENT_SCOPE", "API key scope does not cover this action", nil)
	}

	project := store.Project{
		ID:          util.NewID("prj"),
		Name:        name,
		Description: strings.TrimSpace(description),
		Status:      store.ProjectStatusActive,
		OwnerID:     session.UserID,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return store.Project{}, err
	}
	return s.store.GetProject(ctx, project.ID)
}

// ListProjects lists the projects the caller belongs to.
func (s *Service) ListProjects(ctx context.Context, session Session) ([]store.Project, error) {
	return s.store.ListProjectsByMember(ctx, session.UserID)
}

// GetProject returns a project with its member list.
func (s *Service) GetProject(ctx context.Context, session Session, projectID string) (store.Project, []store.ProjectMember, error) {
	project, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead)
	if err != nil {
		return store.Project{}, nil, err
	}
	members, err := s.store.ListProjectMembers(ctx, projectID)
	if err != nil {
		return store.Project{}, nil, err
	}
	return project, members, nil
}

// UpdateProject renames a project or changes its description.
func (s *Service) UpdateProject(ctx context.Context, session Session, projectID, name, description string) (store.Project, error) {
	project, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionWrite)
	if err != nil {
		return store.Project{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = project.Name
	}
	if err := s.store.UpdateProject(ctx, projectID, name, strings.TrimSpace(description)); err != nil {
		return store.Project{}, err
	}
	return s.store.GetProject(ctx, projectID)
}

// ArchiveProject flips a project to read-only.
func (s *Service) ArchiveProject(ctx context.Context, session Session, projectID string) (store.Project, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionManage); err != nil {
		return store.Project{}, err
	}
	if err := s.store.SetProjectStatus(ctx, projectID, store.ProjectStatusArchived); err != nil {
		return store.Project{}, err
	}
	return s.store.GetProject(ctx, projectID)
}

// RestoreProject re-activates an archived project. The manage check is done
// directly because requireProjectRole rejects non-read actions while the
// project is archived.
func (s *Service) RestoreProject(ctx context.Context, session Session, projectID string) (store.Project, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return store.Project{}, err
	}
	role, err := s.store.GetProjectRole(ctx, projectID, session.UserID)
	if err != nil {
		return store.Project{}, err
	}
	if role == "" || !rbac.Can(rbac.Normalize(role), rbac.ActionManage) {
		return store.Project{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if session.ViaAPIKey {
		return store.Project{}, domainError(http.StatusForbidden, "INSUFFICIENT_SCOPE", "API key scope does not cover this action", nil)
	}

	if err := s.store.SetProjectStatus(ctx, projectID, store.ProjectStatusActive); err != nil {
		return store.Project{}, err
	}
	return s.store.GetProject(ctx, projectID)
}

// DeleteProject removes a project and everything under it, including stored
// objects and search index entries.
func (s *Service) DeleteProject(ctx context.Context, session Session, projectID string) error {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	role, err := s.store.GetProjectRole(ctx, projectID, session.UserID)
	if err != nil {
		return err
	}
	if session.ViaAPIKey || !rbac.Can(rbac.Normalize(role), rbac.ActionManage) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only the project owner may delete a project", nil)
	}

	// Stored objects go first so the records that reference them are still
	// around if the cleanup fails midway.
	assets, err := s.store.ListAssets(ctx, projectID, "", "")
	if err != nil {
		return err
	}
	for _, a := range assets {
		if a.ObjectKey != "" {
			_ = s.objects.Remove(ctx, a.ObjectKey)
		}
		s.search.DeleteAsset(a.ID)
	}
	s.dropContentFromIndex(ctx, projectID)

	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.world.Invalidate(project.ID)
	return nil
}

func (s *Service) dropContentFromIndex(ctx context.Context, projectID string) {
	if npcs, err := s.store.ListNPCs(ctx, projectID); err == nil {
		for _, n := range npcs {
			s.search.DeleteNPC(n.ID)
		}
	}
	if quests, err := s.store.ListQuests(ctx, projectID); err == nil {
		for _, q := range quests {
			s.search.DeleteQuest(q.ID)
		}
	}
	if lore, err := s.store.ListLoreEntries(ctx, projectID, ""); err == nil {
		for _, l := range lore {
			s.search.DeleteLore(l.ID)
		}
	}
}

// AddProjectMember adds or re-roles a member and returns the updated list.
func (s *Service) AddProjectMember(ctx context.Context, session Session, projectID, userID, role string) ([]store.ProjectMember, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionManage); err != nil {
		return nil, err
	}

	normalized := rbac.Normalize(role)
	if normalized == rbac.RoleOwner {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ownership is not transferable through membership", nil)
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	if err := s.store.UpsertProjectMember(ctx, projectID, userID, string(normalized)); err != nil {
		return nil, err
	}
	return s.store.ListProjectMembers(ctx, projectID)
}

// RemoveProjectMember removes a member. The owner cannot be removed.
func (s *Service) RemoveProjectMember(ctx context.Context, session Session, projectID, userID string) ([]store.ProjectMember, error) {
	project, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionManage)
	if err != nil {
		return nil, err
	}
	if userID == project.OwnerID {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "the project owner cannot be removed", nil)
	}

	if err := s.store.RemoveProjectMember(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.store.ListProjectMembers(ctx, projectID)
}

// ListMembers lists a project's members.
func (s *Service) ListMembers(ctx context.Context, session Session, projectID string) ([]store.ProjectMember, error) {
	if _, err := s.requireProjectRole(ctx, session, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListProjectMembers(ctx, projectID)
}
