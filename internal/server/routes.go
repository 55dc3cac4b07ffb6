package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"timetrack-backend/internal/common"
	"timetrack-backend/internal/domain"
	"timetrack-backend/internal/service"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.helloHandler)
	r.Get("/health", s.healthHandler)

	r.Post("/api/register", s.registerHandler)
	r.Post("/api/login", s.loginHandler)
	r.Get("/logout", s.logoutHandler)
	r.Get("/api/me", s.meHandler)

	r.Route("/api/projects", func(r chi.Router) {
		r.Get("/", s.listProjectsHandler)
		r.Post("/", s.createProjectHandler)
		r.Delete("/{id}", s.deleteProjectHandler)
	})

	r.Route("/api/todos", func(r chi.Router) {
		r.Get("/", s.listTodosHandler)
		r.Post("/", s.createTodoHandler)
		r.Put("/{id}", s.updateTodoHandler)
		r.Delete("/{id}", s.deleteTodoHandler)
		r.Post("/{id}/action", s.todoActionHandler)
	})

	r.Get("/api/total-time", s.totalTimeHandler)

	return r
}

func (s *Server) helloHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Timetrack API"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthStats := s.store.Health()
	if status, ok := healthStats["status"]; ok && status == "down" {
		respondWithJSON(w, http.StatusServiceUnavailable, healthStats)
		return
	}
	respondWithJSON(w, http.StatusOK, healthStats)
}

// --- Auth handlers ---

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if _, err := s.users.Register(r.Context(), req); err != nil {
		respondWithServiceError(w, err, "Register")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]any{"ok": true, "message": "User created successfully"})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	// An absent body counts as empty credentials and fails authentication
	// below, rather than being rejected as malformed.
	if r.Body != nil && r.ContentLength != 0 {
		if !decodeJSONBody(w, r, &req) {
			return
		}
	}

	user, err := s.users.Authenticate(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, err, "Login")
		return
	}
	if err := s.sessions.SignIn(w, r, user); err != nil {
		log.Printf("Error establishing session: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.SignOut(w, r); err != nil {
		log.Printf("Error clearing session: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.sessions.Current(r)
	if !ok {
		respondWithJSON(w, http.StatusOK, map[string]any{"ok": false})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"ok": true, "user": ident})
}

// --- Project handlers ---

func (s *Server) listProjectsHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.sessions.Current(r)
	if !ok {
		// Anonymous list calls answer 401 with an empty collection.
		respondWithJSON(w, http.StatusUnauthorized, []*domain.Project{})
		return
	}

	projects, err := s.projects.List(r.Context(), ident.OwnerKey())
	if err != nil {
		respondWithServiceError(w, err, "ListProjects")
		return
	}
	respondWithJSON(w, http.StatusOK, projects)
}

func (s *Server) createProjectHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.sessions.Current(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req service.CreateProjectRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	project, err := s.projects.Create(r.Context(), ident.OwnerKey(), req)
	if err != nil {
		respondWithServiceError(w, err, "CreateProject")
		return
	}
	respondWithJSON(w, http.StatusCreated, project)
}

func (s *Server) deleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.sessions.Current(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := s.projects.Delete(r.Context(), ident.OwnerKey(), chi.URLParam(r, "id")); err != nil {
		respondWithServiceError(w, err, "DeleteProject")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Todo handlers ---

func (s *Server) listTodosHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.sessions.Current(r)
	if !ok {
		respondWithJSON(w, http.StatusUnauthorized, []*domain.Todo{})
		return
	}

	todos, err := s.todos.List(r.Context(), ident.OwnerKey())
	if err != nil {
		respondWithServiceError(w, err, "ListTodos")
		return
	}
	respondWithJSON(w, http.StatusOK, todos)
}

func (s *Server) createTodoHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.sessions.Current(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req service.CreateTodoRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	todo, err := s.todos.Create(r.Context(), ident.OwnerKey(), req)
	if err != nil {
		respondWithServiceError(w, err, "CreateTodo")
		return
	}
	respondWithJSON(w, http.StatusCreated, todo)
}

func (s *Server) updateTodoHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.sessions.Current(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, ok := todoIDParam(w, r)
	if !ok {
		return
	}

	var req service.UpdateTodoRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	todo, err := s.todos.Update(r.Context(), ident.OwnerKey(), id, req)
	if err != nil {
		respondWithServiceError(w, err, "UpdateTodo")
		return
	}
	respondWithJSON(w, http.StatusOK, todo)
}

func (s *Server) deleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.sessions.Current(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, ok := todoIDParam(w, r)
	if !ok {
		return
	}

	if err := s.todos.Delete(r.Context(), ident.OwnerKey(), id); err != nil {
		respondWithServiceError(w, err, "DeleteTodo")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) todoActionHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.sessions.Current(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, ok := todoIDParam(w, r)
	if !ok {
		return
	}

	var req service.ActionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	todo, err := s.todos.Act(r.Context(), ident.OwnerKey(), id, req.Action)
	if err != nil {
		respondWithServiceError(w, err, "TodoAction")
		return
	}
	respondWithJSON(w, http.StatusOK, todo)
}

func (s *Server) totalTimeHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.sessions.Current(r)
	if !ok {
		// Never errors: anonymous callers get a zero total.
		respondWithJSON(w, http.StatusOK, service.TotalTimeResponse{Formatted: "00:00:00"})
		return
	}

	total, err := s.todos.TotalTime(r.Context(), ident.OwnerKey())
	if err != nil {
		respondWithServiceError(w, err, "TotalTime")
		return
	}
	respondWithJSON(w, http.StatusOK, total)
}

// --- Helpers ---

func todoIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id == 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid todo ID provided")
		return 0, false
	}
	return id, true
}

// decodeJSONBody decodes a request body into dst with strict field checking.
// On failure it writes the error response and returns false.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dst)
	if err == nil {
		return true
	}

	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
		respondWithError(w, http.StatusBadRequest, msg)
	case errors.Is(err, io.ErrUnexpectedEOF):
		respondWithError(w, http.StatusBadRequest, "Request body contains badly-formed JSON")
	case errors.As(err, &unmarshalTypeError):
		msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
		respondWithError(w, http.StatusBadRequest, msg)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Request body contains unknown field %s", fieldName))
	case errors.Is(err, io.EOF):
		respondWithError(w, http.StatusBadRequest, "Request body must not be empty")
	default:
		log.Printf("Error decoding request body: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Error processing request")
	}
	return false
}

// respondWithServiceError maps the service error taxonomy onto HTTP status
// codes.
func respondWithServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, common.ErrForbidden):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrUnavailable):
		log.Printf("Storage unavailable in %s: %v", op, err)
		respondWithError(w, http.StatusServiceUnavailable, "Storage unavailable")
	default:
		log.Printf("Error in %s: %v", op, err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling JSON response: %v", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal server error preparing response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
