package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"timetrack-backend/internal/common"
	"timetrack-backend/internal/domain"
	"timetrack-backend/internal/storage"
)

// Timer actions accepted by Act.
const (
	ActionStart = "start"
	ActionPause = "pause"
	ActionReset = "reset"
)

// CreateTodoRequest holds the data needed to create a new todo.
type CreateTodoRequest struct {
	Item      string  `json:"item"`
	ProjectID *string `json:"project_id"`
}

// UpdateTodoRequest holds a partial update. Pointer fields distinguish
// omitted from zero values; ProjectID stays raw so an explicit null (move to
// inbox) is distinguishable from an absent key.
type UpdateTodoRequest struct {
	Item      *string         `json:"item"`
	Status    *bool           `json:"status"`
	ProjectID json.RawMessage `json:"project_id"`
}

// ActionRequest names the timer transition to apply.
type ActionRequest struct {
	Action string `json:"action"`
}

// TotalTimeResponse is the aggregate time across all of an owner's todos,
// including any interval still running.
type TotalTimeResponse struct {
	TotalSeconds int64  `json:"total_seconds"`
	Formatted    string `json:"formatted"`
}

// TodoService defines owner-scoped todo operations and the per-todo timer
// state machine.
type TodoService interface {
	List(ctx context.Context, owner string) ([]*domain.Todo, error)

	// Create inserts a new todo at the front of the collection. Fails with
	// common.ErrValidation on empty item text.
	Create(ctx context.Context, owner string, req CreateTodoRequest) (*domain.Todo, error)

	// Update applies the fields present in req. Fails with
	// common.ErrNotFound when the id is unknown and common.ErrForbidden
	// when the todo belongs to another owner.
	Update(ctx context.Context, owner string, id int64, req UpdateTodoRequest) (*domain.Todo, error)

	Delete(ctx context.Context, owner string, id int64) error

	// Act drives the timer state machine: start is idempotent while
	// running, pause credits the open interval to timeSpent, reset zeroes
	// accumulated time unconditionally. Unknown actions fail with
	// common.ErrValidation.
	Act(ctx context.Context, owner string, id int64, action string) (*domain.Todo, error)

	// TotalTime sums timeSpent across the owner's todos plus the elapsed
	// part of any currently running interval.
	TotalTime(ctx context.Context, owner string) (TotalTimeResponse, error)
}

type todoService struct {
	store storage.Store
	now   func() time.Time
}

func NewTodoService(store storage.Store) TodoService {
	return &todoService{store: store, now: time.Now}
}

func (s *todoService) List(ctx context.Context, owner string) ([]*domain.Todo, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	todos := make([]*domain.Todo, 0, len(doc.Todos))
	for _, t := range doc.Todos {
		if t.Owner == owner {
			todos = append(todos, t)
		}
	}
	return todos, nil
}

// allocateTodoID derives an id from the wall clock in milliseconds and bumps
// it past any id already present, so rapid creates cannot collide. Runs
// under the store's Update lock.
func allocateTodoID(doc *domain.Document, now time.Time) int64 {
	id := now.UnixMilli()
	for doc.FindTodo(id) != nil {
		id++
	}
	return id
}

func (s *todoService) Create(ctx context.Context, owner string, req CreateTodoRequest) (*domain.Todo, error) {
	if req.Item == "" {
		return nil, fmt.Errorf("%w: missing item text", common.ErrValidation)
	}

	var created *domain.Todo
	err := s.store.Update(ctx, func(doc *domain.Document) error {
		todo := &domain.Todo{
			ID:        allocateTodoID(doc, s.now()),
			Item:      req.Item,
			Owner:     owner,
			ProjectID: req.ProjectID,
		}
		// Most-recent-first ordering.
		doc.Todos = append([]*domain.Todo{todo}, doc.Todos...)
		created = todo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// findOwned locates a todo by id and checks ownership.
func findOwned(doc *domain.Document, owner string, id int64) (*domain.Todo, error) {
	todo := doc.FindTodo(id)
	if todo == nil {
		return nil, fmt.Errorf("todo: %w", common.ErrNotFound)
	}
	if todo.Owner != owner {
		return nil, fmt.Errorf("%w: todo belongs to another user", common.ErrForbidden)
	}
	return todo, nil
}

func (s *todoService) Update(ctx context.Context, owner string, id int64, req UpdateTodoRequest) (*domain.Todo, error) {
	var updated *domain.Todo
	err := s.store.Update(ctx, func(doc *domain.Document) error {
		todo, err := findOwned(doc, owner, id)
		if err != nil {
			return err
		}

		if req.Item != nil {
			todo.Item = *req.Item
		}
		if req.Status != nil {
			todo.Status = *req.Status
		}
		if len(req.ProjectID) > 0 {
			if string(req.ProjectID) == "null" {
				todo.ProjectID = nil
			} else {
				var pid string
				if err := json.Unmarshal(req.ProjectID, &pid); err != nil {
					return fmt.Errorf("%w: project_id must be a string or null", common.ErrValidation)
				}
				todo.ProjectID = &pid
			}
		}

		updated = todo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *todoService) Delete(ctx context.Context, owner string, id int64) error {
	return s.store.Update(ctx, func(doc *domain.Document) error {
		if _, err := findOwned(doc, owner, id); err != nil {
			return err
		}
		kept := doc.Todos[:0]
		for _, t := range doc.Todos {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		doc.Todos = kept
		return nil
	})
}

func (s *todoService) Act(ctx context.Context, owner string, id int64, action string) (*domain.Todo, error) {
	var updated *domain.Todo
	err := s.store.Update(ctx, func(doc *domain.Document) error {
		todo, err := findOwned(doc, owner, id)
		if err != nil {
			return err
		}

		now := unixSeconds(s.now())
		switch action {
		case ActionStart:
			if !todo.TimerRunning {
				todo.TimerRunning = true
				started := now
				todo.LastStartedAt = &started
			}
		case ActionPause:
			if todo.TimerRunning {
				last := now
				if todo.LastStartedAt != nil {
					last = *todo.LastStartedAt
				}
				todo.TimeSpent += int64(now - last)
				todo.TimerRunning = false
				todo.LastStartedAt = nil
			}
		case ActionReset:
			// Discards any open interval without crediting it.
			todo.TimeSpent = 0
			todo.TimerRunning = false
			todo.LastStartedAt = nil
		default:
			return fmt.Errorf("%w: unknown action", common.ErrValidation)
		}

		updated = todo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *todoService) TotalTime(ctx context.Context, owner string) (TotalTimeResponse, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return TotalTimeResponse{}, err
	}

	now := unixSeconds(s.now())
	var total int64
	for _, t := range doc.Todos {
		if t.Owner != owner {
			continue
		}
		total += t.TimeSpent
		if t.TimerRunning && t.LastStartedAt != nil {
			total += int64(now - *t.LastStartedAt)
		}
	}
	return TotalTimeResponse{TotalSeconds: total, Formatted: formatTime(total)}, nil
}

// formatTime renders seconds as HH:MM:SS with unbounded hours.
func formatTime(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
