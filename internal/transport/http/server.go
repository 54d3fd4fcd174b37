package http

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"mushroom-classifier/internal/bootstrap"
	"mushroom-classifier/internal/logging"
	"mushroom-classifier/internal/transport/http/handler"
	"mushroom-classifier/internal/transport/http/middleware"
	"mushroom-classifier/web"
)

func NewRouter(app *bootstrap.App) (*gin.Engine, error) {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(logging.GinMiddleware(app.Logger), gin.Recovery())

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates failed: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	if app.Config.Metrics.Enabled {
		router.GET(app.Config.Metrics.Path, app.Metrics.Handler())
	}

	pages := handler.NewPageHandler(app.Auth, app.Predictions, app.Uploads, app.Sessions, app.Metrics, app.Logger)
	router.GET("/register", pages.RegisterForm)
	router.POST("/register", pages.Register)
	router.GET("/login", pages.LoginForm)
	router.POST("/login", pages.Login)
	router.GET("/logout", pages.Logout)
	router.GET("/uploads/:filename", pages.Uploaded)
	// the upload form is gated, the form target is not
	router.POST("/predict", pages.Predict)

	private := router.Group("/", app.Sessions.RequireLogin("/login"))
	private.GET("/", pages.Index)

	authHandler := handler.NewAuthHandler(app.Auth, app.Metrics, app.Logger)
	visionHandler := handler.NewVisionHandler(app.Predictions, app.Logger)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.BearerAuth(app.Config.Auth.JWTSecret), authHandler.Me)

	visionGroup := v1.Group("")
	visionGroup.Use(middleware.BearerAuth(app.Config.Auth.JWTSecret))
	visionGroup.POST("/predict", visionHandler.Predict)
	visionGroup.GET("/predictions", visionHandler.Recent)

	return router, nil
}
