package session

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(m *Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/login/:id", func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("id"))
		if err := m.Login(c, uint(id)); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		_ = m.AddFlash(c, Success, "Login successful!")
		c.Status(http.StatusOK)
	})
	r.GET("/logout", func(c *gin.Context) {
		_ = m.Logout(c)
		c.Status(http.StatusOK)
	})
	r.GET("/flashes", func(c *gin.Context) {
		var msgs string
		for _, f := range m.Flashes(c) {
			msgs += f.Category + ":" + f.Message + ";"
		}
		c.String(http.StatusOK, msgs)
	})
	r.GET("/private", m.RequireLogin("/login"), func(c *gin.Context) {
		c.String(http.StatusOK, strconv.Itoa(int(CurrentUserID(c))))
	})
	return r
}

// client keeps the latest cookies between requests like a browser.
type client struct {
	t       *testing.T
	r       *gin.Engine
	cookies []*http.Cookie
}

func (cl *client) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, ck := range cl.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	cl.r.ServeHTTP(w, req)
	if set := w.Result().Cookies(); len(set) > 0 {
		cl.cookies = set[len(set)-1:]
	}
	return w
}

func TestLoginLogoutCycle(t *testing.T) {
	m := NewManager([]byte("0123456789abcdef0123456789abcdef"), "test_session", 3600, false)
	cl := &client{t: t, r: newRouter(m)}

	w := cl.get("/private")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	require.Equal(t, http.StatusOK, cl.get("/login/42").Code)
	w = cl.get("/private")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	assert.Equal(t, "success:Login successful!;", cl.get("/flashes").Body.String())
	assert.Empty(t, cl.get("/flashes").Body.String(), "flashes are consumed once")

	require.Equal(t, http.StatusOK, cl.get("/logout").Code)
	assert.Equal(t, http.StatusSeeOther, cl.get("/private").Code)
	require.Equal(t, http.StatusOK, cl.get("/logout").Code)
}

func TestTamperedCookieIsAnonymous(t *testing.T) {
	m := NewManager([]byte("0123456789abcdef0123456789abcdef"), "test_session", 3600, false)
	other := NewManager([]byte("ffffffffffffffffffffffffffffffff"), "test_session", 3600, false)

	cl := &client{t: t, r: newRouter(other)}
	require.Equal(t, http.StatusOK, cl.get("/login/1").Code)

	cl.r = newRouter(m)
	assert.Equal(t, http.StatusSeeOther, cl.get("/private").Code)
}
