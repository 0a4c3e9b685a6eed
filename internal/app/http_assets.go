package app

import (
	"net/http"
	"strings"
	"time"

	"forge/api/internal/store"
)

// Upload bodies are capped; generated game assets run a few hundred MB at
// the very top end.
const maxUploadBytes = 512 << 20

func assetPayload(a store.Asset) map[string]any {
	return map[string]any{
		"id":           a.ID,
		"projectId":    a.ProjectID,
		"name":         a.Name,
		"type":         a.Type,
		"format":       a.Format,
		"status":       a.Status,
		"polygonCount": a.PolygonCount,
		"previewUrl":   a.PreviewURL,
		"cdnUrl":       a.CDNURL,
		"uploaded":     a.ObjectKey != "",
		"createdBy":    a.CreatedBy,
		"createdAt":    a.CreatedAt.Format(time.RFC3339),
		"updatedAt":    a.UpdatedAt.Format(time.RFC3339),
	}
}

func jobPayload(j store.GenerationJob) map[string]any {
	payload := map[string]any{
		"id":        j.ID,
		"projectId": j.ProjectID,
		"type":      j.Type,
		"prompt":    j.Prompt,
		"status":    j.Status,
		"createdBy": j.CreatedBy,
		"createdAt": j.CreatedAt.Format(time.RFC3339),
		"updatedAt": j.UpdatedAt.Format(time.RFC3339),
	}
	if j.StyleParams != "" {
		payload["styleParams"] = j.StyleParams
	}
	if j.SourceAssetID != "" {
		payload["sourceAssetId"] = j.SourceAssetID
	}
	if j.TargetID != "" {
		payload["targetId"] = j.TargetID
	}
	if j.ResultAssetID != "" {
		payload["resultAssetId"] = j.ResultAssetID
	}
	if j.Error != "" {
		payload["error"] = j.Error
	}
	return payload
}

func (s *HTTPServer) handleAssets(w http.ResponseWriter, r *http.Request, session Session, projectID string, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			assetType := strings.TrimSpace(r.URL.Query().Get("type"))
			status := strings.TrimSpace(r.URL.Query().Get("status"))
			assets, err := s.service.ListAssets(r.Context(), session, projectID, assetType, status)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			items := make([]map[string]any, 0, len(assets))
			for _, a := range assets {
				items = append(items, assetPayload(a))
			}
			writeJSON(w, http.StatusOK, map[string]any{"assets": items})
		case http.MethodPost:
			var body AssetInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			asset, err := s.service.CreateAsset(r.Context(), session, projectID, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, assetPayload(asset))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	assetID := parts[0]

	if len(parts) == 2 {
		switch parts[1] {
		case "upload":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			s.handleAssetUpload(w, r, session, projectID, assetID)
			return
		case "download":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			url, err := s.service.AssetDownloadURL(r.Context(), session, projectID, assetID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"url": url})
			return
		}
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		asset, err := s.service.GetAsset(r.Context(), session, projectID, assetID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, assetPayload(asset))
	case http.MethodPut:
		var body struct {
			Name         string `json:"name"`
			PolygonCount int    `json:"polygonCount"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		asset, err := s.service.UpdateAssetMetadata(r.Context(), session, projectID, assetID, body.Name, body.PolygonCount)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, assetPayload(asset))
	case http.MethodDelete:
		if err := s.service.DeleteAsset(r.Context(), session, projectID, assetID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

// handleAssetUpload streams the raw request body into object storage. The
// filename comes from the query string; Content-Type from the header.
func (s *HTTPServer) handleAssetUpload(w http.ResponseWriter, r *http.Request, session Session, projectID, assetID string) {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body is required", nil)
		return
	}
	defer r.Body.Close()

	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	contentType := r.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/json") {
		contentType = "application/octet-stream"
	}

	size := r.ContentLength
	if size > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "Upload exceeds the size limit", nil)
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)

	asset, err := s.service.UploadAsset(r.Context(), session, projectID, assetID, filename, contentType, body, size)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, assetPayload(asset))
}

func (s *HTTPServer) handleJobs(w http.ResponseWriter, r *http.Request, session Session, projectID string, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			status := strings.TrimSpace(r.URL.Query().Get("status"))
			jobs, err := s.service.ListGenerationJobs(r.Context(), session, projectID, status)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			items := make([]map[string]any, 0, len(jobs))
			for _, j := range jobs {
				items = append(items, jobPayload(j))
			}
			writeJSON(w, http.StatusOK, map[string]any{"jobs": items})
		case http.MethodPost:
			var body JobInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			job, err := s.service.CreateGenerationJob(r.Context(), session, projectID, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusAccepted, jobPayload(job))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) != 1 || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	job, err := s.service.GetGenerationJob(r.Context(), session, projectID, parts[0])
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, jobPayload(job))
}
