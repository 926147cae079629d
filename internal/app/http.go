package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"secularreview/api/internal/accounts"
	"secularreview/api/internal/comments"
	"secularreview/api/internal/docstore"
	"secularreview/api/internal/gate"
	"secularreview/api/internal/store"
)

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

	if r.Method == http.MethodPost && r.URL.Path == "/api/v1/signup" {
		s.handleSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/v1/login" {
		s.handleLogin(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/v1/login/google" {
		s.handleGoogleLogin(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/v1/chapters" {
		s.handleListChapters(w, r)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) == 3 && parts[0] == "api" && parts[1] == "v1" && parts[2] == "chapter" {
		if r.Method == http.MethodPost {
			s.handleCreateChapter(w, r)
			return
		}
		writeMsg(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "v1" && parts[2] == "chapter" {
		chapterID := parts[3]
		switch r.Method {
		case http.MethodGet:
			s.handleGetChapter(w, r, chapterID)
		case http.MethodPut:
			s.handleUpdateChapter(w, r, chapterID)
		default:
			writeMsg(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if len(parts) == 4 && parts[0] == "api" && parts[1] == "v1" && parts[2] == "comment" {
		if r.Method == http.MethodPost {
			s.handlePostComment(w, r, parts[3])
			return
		}
		writeMsg(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if len(parts) == 5 && parts[0] == "api" && parts[1] == "v1" && parts[2] == "comment" {
		chapterID, commentID := parts[3], parts[4]
		switch r.Method {
		case http.MethodPut:
			s.handleUpdateComment(w, r, chapterID, commentID)
		case http.MethodDelete:
			s.handleDeleteComment(w, r, chapterID, commentID)
		default:
			writeMsg(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	writeMsg(w, http.StatusNotFound, "not found")
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body accounts.SignUpRequest
	if err := decodeBody(r, &body); err != nil {
		writeMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.service.SignUp(r.Context(), body)
	if err != nil {
		status, msg := mapError(err)
		writeMsg(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"msg": "user created", "_id": user.ID.Hex()})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	token, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		status, msg := mapError(err)
		writeMsg(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (s *HTTPServer) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDToken string `json:"id_token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.IDToken) == "" {
		writeMsg(w, http.StatusBadRequest, "id_token is required")
		return
	}
	token, err := s.service.GoogleLogin(r.Context(), body.IDToken)
	if err != nil {
		status, msg := mapError(err)
		writeMsg(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (s *HTTPServer) handleListChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := s.service.ListChapters(r.Context())
	if err != nil {
		status, msg := mapError(err)
		writeMsg(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, chapters)
}

func (s *HTTPServer) handleGetChapter(w http.ResponseWriter, r *http.Request, chapterID string) {
	chapter, err := s.service.GetChapter(r.Context(), chapterID)
	if errors.Is(err, docstore.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"msg": "chapter not found", "_id": chapterID})
		return
	}
	if err != nil {
		status, msg := mapError(err)
		writeMsg(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, chapter)
}

func (s *HTTPServer) handleCreateChapter(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireRole(w, r, store.RoleAdmin); !ok {
		return
	}
	var body store.ChapterUpdate
	if err := decodeBody(r, &body); err != nil {
		writeMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.service.CreateChapter(r.Context(), body)
	if err != nil {
		status, msg := mapError(err)
		writeMsg(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"msg": "chapter created", "_id": id.Hex()})
}

func (s *HTTPServer) handleUpdateChapter(w http.ResponseWriter, r *http.Request, chapterID string) {
	if _, ok := s.requireRole(w, r, store.RoleAdmin); !ok {
		return
	}
	var body store.ChapterUpdate
	if err := decodeBody(r, &body); err != nil {
		writeMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.service.UpdateChapter(r.Context(), chapterID, body); err != nil {
		status, msg := mapError(err)
		writeMsg(w, status, msg)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"msg": "chapter updated"})
}

func (s *HTTPServer) handlePostComment(w http.ResponseWriter, r *http.Request, chapterID string) {
	caller, ok := s.requireAuthenticated(w, r)
	if !ok {
		return
	}
	var body comments.Payload
	if err := decodeBody(r, &body); err != nil {
		writeMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.service.PostComment(r.Context(), chapterID, body, caller)
	if err != nil {
		status, msg := mapError(err)
		writeMsg(w, status, msg)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"msg": "comment added", "_id": id.Hex()})
}

func (s *HTTPServer) handleUpdateComment(w http.ResponseWriter, r *http.Request, chapterID, commentID string) {
	caller, ok := s.requireAuthenticated(w, r)
	if !ok {
		return
	}
	var body comments.Payload
	if err := decodeBody(r, &body); err != nil {
		writeMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.service.UpdateComment(r.Context(), chapterID, commentID, body, caller); err != nil {
		status, msg := mapError(err)
		writeMsg(w, status, msg)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"msg": "comment updated"})
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request, chapterID, commentID string) {
	caller, ok := s.requireAuthenticated(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteComment(r.Context(), chapterID, commentID, caller); err != nil {
		status, msg := mapError(err)
		writeMsg(w, status, msg)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"msg": "comment deleted"})
}

func (s *HTTPServer) requireAuthenticated(w http.ResponseWriter, r *http.Request) (store.User, bool) {
	token := bearerToken(r)
	if token == "" {
		writeMsg(w, http.StatusUnauthorized, "unauthorized")
		return store.User{}, false
	}
	user, err := s.service.Authenticate(r.Context(), token)
	if err != nil {
		status, msg := mapError(err)
		writeMsg(w, status, msg)
		return store.User{}, false
	}
	return user, true
}

func (s *HTTPServer) requireRole(w http.ResponseWriter, r *http.Request, role store.Role) (store.User, bool) {
	token := bearerToken(r)
	if token == "" {
		writeMsg(w, http.StatusUnauthorized, "unauthorized")
		return store.User{}, false
	}
	user, err := s.service.AuthorizeRole(r.Context(), token, role)
	if err != nil {
		status, msg := mapError(err)
		writeMsg(w, status, msg)
		return store.User{}, false
	}
	return user, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

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

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"msg": msg})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, comments.ErrChapterNotFound), errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound, "chapter not found"
	case errors.Is(err, comments.ErrCommentNotFoundOrNotOwned),
		errors.Is(err, comments.ErrUpdateFailed),
		errors.Is(err, comments.ErrDeleteFailed):
		return http.StatusNotFound, "comment not found"
	case errors.Is(err, comments.ErrValidationFailed),
		errors.Is(err, accounts.ErrValidation),
		errors.Is(err, errInvalidChapter):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, gate.ErrUnauthorized), errors.Is(err, accounts.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, gate.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, accounts.ErrDuplicateUser):
		return http.StatusConflict, "username or email already registered"
	default:
		return http.StatusInternalServerError, "server error"
	}
}
