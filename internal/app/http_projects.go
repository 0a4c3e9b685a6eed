package app

import (
	"net/http"
	"time"

	"forge/api/internal/store"
)

func projectPayload(p store.Project) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"status":      p.Status,
		"ownerId":     p.OwnerID,
		"createdAt":   p.CreatedAt.Format(time.RFC3339),
		"updatedAt":   p.UpdatedAt.Format(time.RFC3339),
	}
}

func memberPayload(m store.ProjectMember) map[string]any {
	return map[string]any{
		"userId":      m.UserID,
		"displayName": m.DisplayName,
		"role":        m.Role,
		"addedAt":     m.AddedAt.Format(time.RFC3339),
	}
}

func memberListPayload(members []store.ProjectMember) []map[string]any {
	items := make([]map[string]any, 0, len(members))
	for _, m := range members {
		items = append(items, memberPayload(m))
	}
	return items
}

func apiKeyPayload(k store.APIKey) map[string]any {
	payload := map[string]any{
		"id":        k.ID,
		"name":      k.Name,
		"prefix":    k.Prefix,
		"scopes":    k.Scopes,
		"createdAt": k.CreatedAt.Format(time.RFC3339),
	}
	if k.LastUsedAt != nil {
		payload["lastUsedAt"] = k.LastUsedAt.Format(time.RFC3339)
	}
	return payload
}

// handleProjects dispatches everything under /api/projects. parts holds the
// path segments after "projects".
func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			projects, err := s.service.ListProjects(r.Context(), session)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			items := make([]map[string]any, 0, len(projects))
			for _, p := range projects {
				items = append(items, projectPayload(p))
			}
			writeJSON(w, http.StatusOK, map[string]any{"projects": items})
		case http.MethodPost:
			var body struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			project, err := s.service.CreateProject(r.Context(), session, body.Name, body.Description)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, projectPayload(project))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	projectID := parts[0]
	rest := parts[1:]

	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			project, members, err := s.service.GetProject(r.Context(), session, projectID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			payload := projectPayload(project)
			payload["members"] = memberListPayload(members)
			writeJSON(w, http.StatusOK, payload)
		case http.MethodPut:
			var body struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			project, err := s.service.UpdateProject(r.Context(), session, projectID, body.Name, body.Description)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, projectPayload(project))
		case http.MethodDelete:
			if err := s.service.DeleteProject(r.Context(), session, projectID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch rest[0] {
	case "archive":
		if len(rest) == 1 && r.Method == http.MethodPost {
			project, err := s.service.ArchiveProject(r.Context(), session, projectID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, projectPayload(project))
			return
		}
	case "restore":
		if len(rest) == 1 && r.Method == http.MethodPost {
			project, err := s.service.RestoreProject(r.Context(), session, projectID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, projectPayload(project))
			return
		}
	case "members":
		s.handleProjectMembers(w, r, session, projectID, rest[1:])
		return
	case "npcs":
		s.handleNPCs(w, r, session, projectID, rest[1:])
		return
	case "quests":
		s.handleQuests(w, r, session, projectID, rest[1:])
		return
	case "lore":
		s.handleLore(w, r, session, projectID, rest[1:])
		return
	case "assets":
		s.handleAssets(w, r, session, projectID, rest[1:])
		return
	case "jobs":
		s.handleJobs(w, r, session, projectID, rest[1:])
		return
	case "knowledge":
		s.handleKnowledge(w, r, session, projectID, rest[1:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleProjectMembers(w http.ResponseWriter, r *http.Request, session Session, projectID string, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			members, err := s.service.ListMembers(r.Context(), session, projectID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"members": memberListPayload(members)})
		case http.MethodPost:
			var body struct {
				UserID string `json:"userId"`
				Role   string `json:"role"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			members, err := s.service.AddProjectMember(r.Context(), session, projectID, body.UserID, body.Role)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"members": memberListPayload(members)})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 1 && r.Method == http.MethodDelete {
		members, err := s.service.RemoveProjectMember(r.Context(), session, projectID, parts[0])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"members": memberListPayload(members)})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
