// Package session binds a browser to a user id through a signed cookie
// and carries one-shot flash messages between requests.
package session

import (
	"encoding/gob"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const userIDKey = "user_id"

// Flash categories used by the templates.
const (
	Success = "success"
	Error   = "error"
)

type Flash struct {
	Category string
	Message  string
}

func init() {
	gob.Register(Flash{})
}

type Manager struct {
	store sessions.Store
	name  string
}

func NewManager(secret []byte, name string, maxAge int, secure bool) *Manager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store, name: name}
}

// get never fails: an undecodable cookie yields a fresh session.
func (m *Manager) get(c *gin.Context) *sessions.Session {
	sess, _ := m.store.Get(c.Request, m.name)
	return sess
}

func (m *Manager) Login(c *gin.Context, userID uint) error {
	sess := m.get(c)
	sess.Values[userIDKey] = userID
	return sess.Save(c.Request, c.Writer)
}

func (m *Manager) UserID(c *gin.Context) (uint, bool) {
	id, ok := m.get(c).Values[userIDKey].(uint)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

// Logout drops the user id and keeps the session, so a flash can still
// be attached afterwards. Logging out twice is fine.
func (m *Manager) Logout(c *gin.Context) error {
	sess := m.get(c)
	delete(sess.Values, userIDKey)
	return sess.Save(c.Request, c.Writer)
}

func (m *Manager) AddFlash(c *gin.Context, category, message string) error {
	sess := m.get(c)
	sess.AddFlash(Flash{Category: category, Message: message})
	return sess.Save(c.Request, c.Writer)
}

// Flashes pops every pending flash.
func (m *Manager) Flashes(c *gin.Context) []Flash {
	sess := m.get(c)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = sess.Save(c.Request, c.Writer)

	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out
}

// RequireLogin redirects anonymous browsers to the login page.
func (m *Manager) RequireLogin(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := m.UserID(c)
		if !ok {
			c.Redirect(http.StatusSeeOther, loginPath)
			c.Abort()
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

// CurrentUserID returns the id stored by RequireLogin.
func CurrentUserID(c *gin.Context) uint {
	return c.GetUint(userIDKey)
}
