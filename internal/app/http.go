package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dietscore/internal/search"
	"dietscore/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *slog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: service.logger}
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
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		if _, digest, computedAt, err := s.service.Report(); err == nil {
			checks["report"] = map[string]any{"status": "ok", "digest": digest, "computedAt": computedAt}
		} else {
			checks["report"] = map[string]any{"status": "pending"}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/runs" {
		result, err := s.service.Run(r.Context())
		if err != nil {
			s.logger.Error("scoring run failed", "request_id", requestID(r.Context()), "error", err)
			writeError(w, http.StatusInternalServerError, "RUN_FAILED", "Scoring run failed", nil)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	switch {
	case parts[1] == "reports" && len(parts) == 2:
		report, digest, computedAt, err := s.service.Report()
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"digest":     digest,
			"computedAt": computedAt,
			"bills":      report,
		})
	case parts[1] == "reports" && len(parts) == 3:
		billID, ok := parseID(w, parts[2], "billId")
		if !ok {
			return
		}
		bill, err := s.service.BillScore(billID)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, bill)
	case parts[1] == "members" && len(parts) == 4 && parts[3] == "group":
		s.handleMemberGroup(w, r, parts[2])
	case parts[1] == "groups" && len(parts) == 4 && parts[3] == "members":
		s.handleGroupMembers(w, r, parts[2])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleMemberGroup(w http.ResponseWriter, r *http.Request, rawID string) {
	memberID, ok := parseID(w, rawID, "memberId")
	if !ok {
		return
	}
	date, ok := parseDateParam(w, r)
	if !ok {
		return
	}
	var chamber *store.Chamber
	if raw := strings.TrimSpace(r.URL.Query().Get("chamber")); raw != "" {
		parsed, err := store.ParseChamber(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_CHAMBER", err.Error(), map[string]any{"allowed": store.Chambers})
			return
		}
		chamber = &parsed
	}

	group, found, err := s.service.GroupForMember(memberID, date, chamber)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	response := map[string]any{
		"memberId": memberID,
		"date":     store.FormatDate(date),
		"group":    nil,
	}
	if chamber != nil {
		response["chamber"] = *chamber
	}
	if found {
		response["group"] = groupJSON(group)
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleGroupMembers(w http.ResponseWriter, r *http.Request, rawID string) {
	groupID, ok := parseID(w, rawID, "groupId")
	if !ok {
		return
	}
	date, ok := parseDateParam(w, r)
	if !ok {
		return
	}
	group, members, err := s.service.MembersInGroup(groupID, date)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group":   groupJSON(group),
		"date":    store.FormatDate(date),
		"members": members,
	})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := search.Query{
		Text:   strings.TrimSpace(query.Get("q")),
		Limit:  atoiDefault(query.Get("limit"), 20),
		Offset: atoiDefault(query.Get("offset"), 0),
	}
	if raw := strings.TrimSpace(query.Get("type")); raw != "" {
		billType, err := store.ParseBillType(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BILL_TYPE", err.Error(), nil)
			return
		}
		q.BillType = billType
	}
	if raw := strings.TrimSpace(query.Get("session")); raw != "" {
		session, err := strconv.Atoi(raw)
		if err != nil || session <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_SESSION", "session must be a positive integer", nil)
			return
		}
		q.Session = session
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	resp, err := s.service.Search(q)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
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
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
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

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func parseID(w http.ResponseWriter, raw, name string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", name+" must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "date is required", nil)
		return time.Time{}, false
	}
	date, err := store.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD", nil)
		return time.Time{}, false
	}
	return date, true
}

func atoiDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

func groupJSON(g store.Group) map[string]any {
	return map[string]any{"id": g.ID, "name": g.Name, "chamber": g.Chamber}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, ErrNoReport) {
		return http.StatusConflict, "NO_REPORT", "No report has been computed yet", nil
	}
	if errors.Is(err, store.ErrUnknownChamber) || errors.Is(err, store.ErrUnknownBillType) {
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
