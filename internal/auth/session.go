package auth

import (
	"net/http"

	"github.com/gorilla/sessions"

	"timetrack-backend/internal/domain"
)

const sessionName = "timetrack_session"

// Identity is the authenticated user carried by a session.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// OwnerKey returns the scope string tagged onto every record this user owns.
func (i Identity) OwnerKey() string {
	return "user:" + i.ID
}

// Sessions manages the signed session cookie.
type Sessions struct {
	store *sessions.CookieStore
}

func NewSessions(secret string) *Sessions {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store}
}

// SignIn binds the session cookie to the given user.
func (s *Sessions) SignIn(w http.ResponseWriter, r *http.Request, user *domain.User) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values["user_id"] = user.ID
	sess.Values["email"] = user.Email
	return sess.Save(r, w)
}

// SignOut clears the session cookie.
func (s *Sessions) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Options.MaxAge = -1
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	return sess.Save(r, w)
}

// Current resolves the request's session into an identity. ok is false for
// anonymous callers and for stale or tampered cookies.
func (s *Sessions) Current(r *http.Request) (Identity, bool) {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return Identity{}, false
	}
	id, ok := sess.Values["user_id"].(string)
	if !ok || id == "" {
		return Identity{}, false
	}
	email, _ := sess.Values["email"].(string)
	return Identity{ID: id, Email: email}, true
}
