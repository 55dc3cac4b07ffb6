package server

import (
	"fmt"
	"net/http"
	"time"

	"timetrack-backend/internal/auth"
	"timetrack-backend/internal/config"
	"timetrack-backend/internal/service"
	"timetrack-backend/internal/storage"
)

type Server struct {
	port     int
	users    service.UserService
	projects service.ProjectService
	todos    service.TodoService
	sessions *auth.Sessions
	store    storage.Store
}

func NewServer(cfg *config.Config, users service.UserService, projects service.ProjectService, todos service.TodoService, sessions *auth.Sessions, store storage.Store) *http.Server {
	appServer := &Server{
		port:     cfg.Port,
		users:    users,
		projects: projects,
		todos:    todos,
		sessions: sessions,
		store:    store,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", appServer.port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
