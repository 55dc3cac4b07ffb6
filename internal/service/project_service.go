package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"timetrack-backend/internal/common"
	"timetrack-backend/internal/domain"
	"timetrack-backend/internal/storage"
)

// CreateProjectRequest holds the data needed to create a project.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// ProjectService defines owner-scoped project operations.
type ProjectService interface {
	// List returns the owner's projects in stored order.
	List(ctx context.Context, owner string) ([]*domain.Project, error)

	// Create adds a project. Fails with common.ErrValidation on an empty
	// name.
	Create(ctx context.Context, owner string, req CreateProjectRequest) (*domain.Project, error)

	// Delete removes the owner's project and every todo filed under it.
	// Fails with common.ErrNotFound when no owner-scoped match exists.
	Delete(ctx context.Context, owner string, id string) error
}

type projectService struct {
	store storage.Store
	now   func() time.Time
}

func NewProjectService(store storage.Store) ProjectService {
	return &projectService{store: store, now: time.Now}
}

func (s *projectService) List(ctx context.Context, owner string) ([]*domain.Project, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	projects := make([]*domain.Project, 0, len(doc.Projects))
	for _, p := range doc.Projects {
		if p.Owner == owner {
			projects = append(projects, p)
		}
	}
	return projects, nil
}

func (s *projectService) Create(ctx context.Context, owner string, req CreateProjectRequest) (*domain.Project, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: project name required", common.ErrValidation)
	}

	project := &domain.Project{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Owner:     owner,
		CreatedAt: unixSeconds(s.now()),
	}

	err := s.store.Update(ctx, func(doc *domain.Document) error {
		doc.Projects = append(doc.Projects, project)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *projectService) Delete(ctx context.Context, owner string, id string) error {
	return s.store.Update(ctx, func(doc *domain.Document) error {
		idx := -1
		for i, p := range doc.Projects {
			if p.ID == id && p.Owner == owner {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("project: %w", common.ErrNotFound)
		}
		doc.Projects = append(doc.Projects[:idx], doc.Projects[idx+1:]...)

		// Cascade: drop the owner's todos filed under this project. The
		// owner check guards against a project id colliding across owners.
		kept := doc.Todos[:0]
		for _, t := range doc.Todos {
			if t.Owner == owner && t.ProjectID != nil && *t.ProjectID == id {
				continue
			}
			kept = append(kept, t)
		}
		doc.Todos = kept
		return nil
	})
}

// unixSeconds converts a time to the float unix-seconds format used in the
// persisted document.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
