package app

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"forge/api/internal/store"
)

func npcPayload(n store.NPC) map[string]any {
	return map[string]any{
		"id":          n.ID,
		"projectId":   n.ProjectID,
		"name":        n.Name,
		"role":        n.Role,
		"personality": n.Personality,
		"backstory":   n.Backstory,
		"portraitUrl": n.PortraitURL,
		"questIds":    nonNilStrings(n.QuestIDs),
		"createdAt":   n.CreatedAt.Format(time.RFC3339),
		"updatedAt":   n.UpdatedAt.Format(time.RFC3339),
	}
}

func questPayload(q store.Quest) map[string]any {
	return map[string]any{
		"id":         q.ID,
		"projectId":  q.ProjectID,
		"title":      q.Title,
		"summary":    q.Summary,
		"objectives": nonNilStrings(q.Objectives),
		"status":     q.Status,
		"giverNpcId": q.GiverNPCID,
		"npcIds":     nonNilStrings(q.NPCIDs),
		"createdAt":  q.CreatedAt.Format(time.RFC3339),
		"updatedAt":  q.UpdatedAt.Format(time.RFC3339),
	}
}

func lorePayload(l store.LoreEntry) map[string]any {
	return map[string]any{
		"id":        l.ID,
		"projectId": l.ProjectID,
		"title":     l.Title,
		"body":      l.Body,
		"category":  l.Category,
		"tags":      nonNilStrings(l.Tags),
		"createdAt": l.CreatedAt.Format(time.RFC3339),
		"updatedAt": l.UpdatedAt.Format(time.RFC3339),
	}
}

func nonNilStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func (s *HTTPServer) handleNPCs(w http.ResponseWriter, r *http.Request, session Session, projectID string, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			npcs, err := s.service.ListNPCs(r.Context(), session, projectID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			items := make([]map[string]any, 0, len(npcs))
			for _, n := range npcs {
				items = append(items, npcPayload(n))
			}
			writeJSON(w, http.StatusOK, map[string]any{"npcs": items})
		case http.MethodPost:
			var body NPCInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			npc, err := s.service.CreateNPC(r.Context(), session, projectID, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, npcPayload(npc))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	npcID := parts[0]

	switch r.Method {
	case http.MethodGet:
		npc, err := s.service.GetNPC(r.Context(), session, projectID, npcID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, npcPayload(npc))
	case http.MethodPut:
		var body NPCInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		npc, err := s.service.UpdateNPC(r.Context(), session, projectID, npcID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, npcPayload(npc))
	case http.MethodDelete:
		if err := s.service.DeleteNPC(r.Context(), session, projectID, npcID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleQuests(w http.ResponseWriter, r *http.Request, session Session, projectID string, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			quests, err := s.service.ListQuests(r.Context(), session, projectID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			items := make([]map[string]any, 0, len(quests))
			for _, q := range quests {
				items = append(items, questPayload(q))
			}
			writeJSON(w, http.StatusOK, map[string]any{"quests": items})
		case http.MethodPost:
			var body QuestInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			quest, err := s.service.CreateQuest(r.Context(), session, projectID, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, questPayload(quest))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	questID := parts[0]

	switch r.Method {
	case http.MethodGet:
		quest, err := s.service.GetQuest(r.Context(), session, projectID, questID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, questPayload(quest))
	case http.MethodPut:
		var body QuestInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		quest, err := s.service.UpdateQuest(r.Context(), session, projectID, questID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, questPayload(quest))
	case http.MethodDelete:
		if err := s.service.DeleteQuest(r.Context(), session, projectID, questID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleLore(w http.ResponseWriter, r *http.Request, session Session, projectID string, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			category := strings.TrimSpace(r.URL.Query().Get("category"))
			entries, err := s.service.ListLoreEntries(r.Context(), session, projectID, category)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			items := make([]map[string]any, 0, len(entries))
			for _, l := range entries {
				items = append(items, lorePayload(l))
			}
			writeJSON(w, http.StatusOK, map[string]any{"lore": items})
		case http.MethodPost:
			var body LoreInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			entry, err := s.service.CreateLoreEntry(r.Context(), session, projectID, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, lorePayload(entry))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	entryID := parts[0]

	switch r.Method {
	case http.MethodGet:
		entry, err := s.service.GetLoreEntry(r.Context(), session, projectID, entryID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, lorePayload(entry))
	case http.MethodPut:
		var body LoreInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		entry, err := s.service.UpdateLoreEntry(r.Context(), session, projectID, entryID, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, lorePayload(entry))
	case http.MethodDelete:
		if err := s.service.DeleteLoreEntry(r.Context(), session, projectID, entryID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

// handleKnowledge serves GET .../knowledge?kind=npc&id=npc_x&depth=2.
func (s *HTTPServer) handleKnowledge(w http.ResponseWriter, r *http.Request, session Session, projectID string, parts []string) {
	if len(parts) != 0 || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if kind == "" || id == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "kind and id are required", nil)
		return
	}
	depth := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("depth")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "depth must be an integer", nil)
			return
		}
		depth = parsed
	}

	payload, err := s.service.WorldContext(r.Context(), session, projectID, kind, id, depth)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
