// Package server exposes the assistant over HTTP: ask a question,
// approve a paused retrieval, inspect a session. Auth is optional and
// covers the /api group when enabled.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/questor-ai/questor/config"
	"github.com/questor-ai/questor/internal/app"
)

func Run(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.General.KnowledgeDir != "" {
		if _, err := a.IndexKnowledge(ctx); err != nil {
			log.Printf("knowledge indexing failed, local retrieval starts empty: %v", err)
		}
	}

	e := newEcho()
	registerRoutes(e, a, cfg)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))
	return e
}

func registerRoutes(e *echo.Echo, a *app.App, cfg *config.Config) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	if cfg.Server.AuthEnabled {
		auth := newAuth(cfg.Server)
		auth.Register(api.Group("/auth"))
		api.Use(authMiddlewareSkippingAuth(auth.Secret))
	}

	sh := &SessionsHandler{App: a}
	sh.Register(api)
}

// authMiddlewareSkippingAuth protects the /api group while leaving the
// login endpoints reachable.
func authMiddlewareSkippingAuth(secret []byte) echo.MiddlewareFunc {
	inner := authMiddleware(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		protected := inner(next)
		return func(c echo.Context) error {
			if len(c.Path()) >= len("/api/auth") && c.Path()[:len("/api/auth")] == "/api/auth" {
				return next(c)
			}
			return protected(c)
		}
	}
}
