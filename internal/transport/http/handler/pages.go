package handler

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mushroom-classifier/internal/app"
	"mushroom-classifier/internal/logging"
	"mushroom-classifier/internal/metrics"
	"mushroom-classifier/internal/transport/http/session"
	"mushroom-classifier/internal/upload"
	"mushroom-classifier/web"
)

const (
	msgRegistered   = "Registration successful, please log in!"
	msgUserExists   = "Username or Email already exists!"
	msgMissingField = "Username, email and password are required."
	msgLoggedIn     = "Login successful!"
	msgBadLogin     = "Invalid credentials. Please try again."
	msgLoggedOut    = "You have been logged out."
)

// PageHandler serves the server-rendered browser flow.
type PageHandler struct {
	auth        *app.AuthService
	predictions *app.PredictionService
	uploads     *upload.Store
	sessions    *session.Manager
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewPageHandler(
	auth *app.AuthService,
	predictions *app.PredictionService,
	uploads *upload.Store,
	sessions *session.Manager,
	m *metrics.Metrics,
	log *zap.Logger,
) *PageHandler {
	return &PageHandler{
		auth:        auth,
		predictions: predictions,
		uploads:     uploads,
		sessions:    sessions,
		metrics:     m,
		log:         log,
	}
}

func (h *PageHandler) RegisterForm(c *gin.Context) {
	h.render(c, http.StatusOK, "register.html", nil)
}

func (h *PageHandler) Register(c *gin.Context) {
	_, err := h.auth.Register(c.Request.Context(), app.RegisterInput{
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
	})
	switch {
	case err == nil:
		h.metrics.Registrations.WithLabelValues("created").Inc()
		h.flash(c, session.Success, msgRegistered)
		c.Redirect(http.StatusSeeOther, "/login")
	case errors.Is(err, app.ErrUserExists):
		h.metrics.Registrations.WithLabelValues("conflict").Inc()
		h.flash(c, session.Error, msgUserExists)
		h.render(c, http.StatusOK, "register.html", nil)
	case errors.Is(err, app.ErrInvalidInput):
		h.metrics.Registrations.WithLabelValues("invalid").Inc()
		h.flash(c, session.Error, msgMissingField)
		h.render(c, http.StatusBadRequest, "register.html", nil)
	default:
		h.fail(c, "register failed", err)
	}
}

func (h *PageHandler) LoginForm(c *gin.Context) {
	h.render(c, http.StatusOK, "login.html", nil)
}

func (h *PageHandler) Login(c *gin.Context) {
	user, err := h.auth.Authenticate(c.Request.Context(), app.LoginInput{
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
	})
	switch {
	case err == nil:
		if err := h.sessions.Login(c, user.ID); err != nil {
			h.fail(c, "save session failed", err)
			return
		}
		h.metrics.Logins.WithLabelValues("success").Inc()
		h.flash(c, session.Success, msgLoggedIn)
		c.Redirect(http.StatusSeeOther, "/")
	case errors.Is(err, app.ErrInvalidCredentials):
		h.metrics.Logins.WithLabelValues("failure").Inc()
		h.flash(c, session.Error, msgBadLogin)
		h.render(c, http.StatusOK, "login.html", nil)
	default:
		h.fail(c, "login failed", err)
	}
}

func (h *PageHandler) Index(c *gin.Context) {
	userID := session.CurrentUserID(c)
	h.render(c, http.StatusOK, "index.html", gin.H{
		"Recent": h.predictions.Recent(c.Request.Context(), userID),
	})
}

// Predict answers validation failures with a plain-text 400 and
// successes with the result page. It does not require a session;
// anonymous predictions are simply not added to any history.
func (h *PageHandler) Predict(c *gin.Context) {
	userID, _ := h.sessions.UserID(c)
	pred, err := h.predictions.Classify(c.Request.Context(), userID, formFile(c, "file"))
	if err != nil {
		if msg := upload.Message(err); msg != "" {
			c.String(http.StatusBadRequest, msg)
			return
		}
		h.fail(c, "classify upload failed", err)
		return
	}

	c.HTML(http.StatusOK, "result.html", gin.H{
		"Label":         pred.Label,
		"ImageFilename": pred.Filename,
		"ImageURL":      web.UploadURL(pred.Filename),
	})
}

// Uploaded serves a previously stored image.
func (h *PageHandler) Uploaded(c *gin.Context) {
	path, err := h.uploads.Path(c.Param("filename"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.Status(http.StatusNotFound)
		return
	}
	c.File(path)
}

func (h *PageHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c); err != nil {
		logging.FromContext(c, h.log).Warn("clear session failed", zap.Error(err))
	}
	h.flash(c, session.Success, msgLoggedOut)
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *PageHandler) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Flashes"] = h.sessions.Flashes(c)
	c.HTML(status, name, data)
}

func (h *PageHandler) flash(c *gin.Context, category, message string) {
	if err := h.sessions.AddFlash(c, category, message); err != nil {
		logging.FromContext(c, h.log).Warn("save flash failed", zap.Error(err))
	}
}

func (h *PageHandler) fail(c *gin.Context, msg string, err error) {
	logging.FromContext(c, h.log).Error(msg, zap.Error(err))
	c.String(http.StatusInternalServerError, "Internal Server Error")
}
