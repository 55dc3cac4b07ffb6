// Package domain holds the records persisted in the tracker document.
// JSON field names match the on-disk data file and must not change.
package domain

// User is an account record. Users are immutable once created.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password"` // bcrypt hash, never the plaintext
}

// Project groups todos like a folder. Deleting a project cascades to its
// todos.
type Project struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Owner     string  `json:"owner"`
	CreatedAt float64 `json:"created_at"` // unix seconds
}

// Todo is a single task with an accumulating timer.
//
// TimeSpent never includes the currently open interval; while the timer runs,
// the open interval is computed on demand from LastStartedAt.
type Todo struct {
	ID            int64    `json:"id"`
	Item          string   `json:"item"`
	Status        bool     `json:"status"`
	TimeSpent     int64    `json:"timeSpent"`
	TimerRunning  bool     `json:"timerRunning"`
	LastStartedAt *float64 `json:"last_started_at"` // unix seconds, nil when stopped
	Owner         string   `json:"owner"`
	ProjectID     *string  `json:"project_id"` // nil = inbox
}

// Document is the whole persisted store.
type Document struct {
	Todos    []*Todo    `json:"todos"`
	Users    []*User    `json:"users"`
	Projects []*Project `json:"projects"`
	// TotalSeconds is a legacy aggregate counter kept for data-file
	// compatibility; current logic never reads it.
	TotalSeconds int64 `json:"total_seconds"`
}

// NewDocument returns an empty document with all collections allocated.
func NewDocument() *Document {
	return &Document{
		Todos:    []*Todo{},
		Users:    []*User{},
		Projects: []*Project{},
	}
}

// FindTodo returns the todo with the given id, or nil.
func (d *Document) FindTodo(id int64) *Todo {
	for _, t := range d.Todos {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// FindUserByEmail returns the user with the given email (case-sensitive,
// as stored), or nil.
func (d *Document) FindUserByEmail(email string) *User {
	for _, u := range d.Users {
		if u.Email == email {
			return u
		}
	}
	return nil
}
