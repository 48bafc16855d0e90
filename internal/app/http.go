package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"filehaven/api/internal/store"
)

const maxUploadBytes = 64 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/users" {
		users, err := s.service.ListUsers(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": userPayloads(users)})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/folders" {
		var body struct {
			Name         string   `json:"name"`
			ParentID     *string  `json:"parentId"`
			OwnerID      string   `json:"ownerId"`
			AllowedUsers []string `json:"allowedUsers"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		node, err := s.service.CreateFolder(r.Context(), CreateFolderInput{
			Name:         body.Name,
			ParentID:     body.ParentID,
			OwnerID:      body.OwnerID,
			AllowedUsers: body.AllowedUsers,
		})
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"node": nodePayload(node)})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/files" {
		s.handleUpload(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/files" {
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		var parentID *string
		if raw := strings.TrimSpace(r.URL.Query().Get("parentId")); raw != "" {
			parentID = &raw
		}
		nodes, err := s.service.ListChildren(r.Context(), parentID, userID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"nodes": nodePayloads(nodes)})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/files/all" {
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		nodes, err := s.service.ListAll(r.Context(), userID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"nodes": nodePayloads(nodes)})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/access" {
		var body struct {
			TargetID     string `json:"targetId"`
			AddUserID    string `json:"addUserId"`
			RemoveUserID string `json:"removeUserId"`
			By           string `json:"by"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.UpdateAccess(r.Context(), body.TargetID, body.AddUserID, body.RemoveUserID, body.By)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"changedCount": result.ChangedCount,
			"allowedUsers": userPayloads(result.AllowedUsers),
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/access/request" {
		var body struct {
			FileID string `json:"fileId"`
			UserID string `json:"userId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		n, err := s.service.RequestAccess(r.Context(), body.FileID, body.UserID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"notification": notificationPayload(n)})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/access/accept" {
		var body struct {
			NotificationID string `json:"notificationId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.AcceptAccess(r.Context(), body.NotificationID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"changedCount": result.ChangedCount})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/search" {
		var body struct {
			Query     string  `json:"query"`
			UserID    string  `json:"userId"`
			TopK      int     `json:"topK"`
			Threshold float64 `json:"threshold"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		results, err := s.service.Search(r.Context(), body.Query, body.UserID, body.TopK, body.Threshold)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/notifications" {
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		items, err := s.service.ListNotifications(r.Context(), userID)
		if err != nil {
			s.fail(w, err)
			return
		}
		payloads := make([]map[string]any, 0, len(items))
		for _, n := range items {
			payloads = append(payloads, notificationPayload(n))
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": payloads})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/analytics/track-access" {
		var body struct {
			UserID    string `json:"userId"`
			FileID    string `json:"fileId"`
			EventType string `json:"eventType"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.TrackAccess(r.Context(), body.UserID, body.FileID, body.EventType); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/analytics/recent-files" {
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			limit = parsed
		}
		items, err := s.service.RecentFiles(r.Context(), userID, limit)
		if err != nil {
			s.fail(w, err)
			return
		}
		payloads := make([]map[string]any, 0, len(items))
		for _, item := range items {
			payload := nodePayload(item.Node)
			payload["lastAccessed"] = item.LastAccessed
			payloads = append(payloads, payload)
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": payloads})
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "nodes" {
		nodeID := parts[2]
		if r.Method == http.MethodGet {
			node, err := s.service.GetNode(r.Context(), nodeID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"node": nodePayload(node)})
			return
		}
		if r.Method == http.MethodDelete {
			result, err := s.service.DeleteSubtree(r.Context(), nodeID, strings.TrimSpace(r.URL.Query().Get("by")))
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "access" && parts[2] == "common" && r.Method == http.MethodGet {
		result, err := s.service.UsersWithFullAccess(r.Context(), parts[3])
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count": result.Count,
			"users": userPayloads(result.Users),
		})
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "notifications" && parts[3] == "seen" && r.Method == http.MethodPost {
		var body struct {
			UserID string `json:"userId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.MarkNotificationSeen(r.Context(), parts[2], body.UserID); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "analytics" && parts[2] == "storage" && r.Method == http.MethodGet {
		report, err := s.service.StorageUsage(r.Context(), parts[3])
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart body", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "file part is required", nil)
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read file part", nil)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = header.Filename
	}
	fileType := strings.TrimSpace(r.FormValue("fileType"))
	if fileType == "" {
		fileType = strings.TrimPrefix(filepath.Ext(name), ".")
	}
	var parentID *string
	if pid := strings.TrimSpace(r.FormValue("parentId")); pid != "" {
		parentID = &pid
	}

	node, err := s.service.IngestFile(r.Context(), IngestFileInput{
		Name:         name,
		ParentID:     parentID,
		OwnerID:      strings.TrimSpace(r.FormValue("ownerId")),
		FileType:     fileType,
		AllowedUsers: splitCSV(r.FormValue("allowedUsers")),
	}, raw)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"node": nodePayload(node)})
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func nodePayload(n store.Node) map[string]any {
	return map[string]any{
		"id":           n.ID,
		"kind":         n.Kind,
		"name":         n.Name,
		"parentId":     n.ParentID,
		"ownerId":      n.OwnerID,
		"ownerName":    n.OwnerName,
		"allowedUsers": n.AllowedUsers,
		"sizeBytes":    n.SizeBytes,
		"fileType":     n.FileType,
		"path":         n.Path,
		"createdAt":    n.CreatedAt,
	}
}

func nodePayloads(nodes []store.Node) []map[string]any {
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodePayload(n))
	}
	return out
}

func userPayload(u store.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"role":       u.Role,
		"department": u.Department,
	}
}

func userPayloads(users []store.User) []map[string]any {
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, userPayload(u))
	}
	return out
}

func notificationPayload(n store.Notification) map[string]any {
	return map[string]any{
		"id":         n.ID,
		"message":    n.Message,
		"parent":     n.Parent,
		"type":       n.Type,
		"by":         n.By,
		"fileType":   n.FileType,
		"nodeId":     n.NodeID,
		"subjectId":  n.SubjectID,
		"time":       n.Time,
		"recipients": n.Recipients,
	}
}
