// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"github.com/labstack/echo/v4"
)

// Routes registers every handler on e.
func Routes(e *echo.Echo, h *Handlers, auth *AuthHandlers, adm *AdminHandlers) {
	e.HTTPErrorHandler = h.HTTPError

	e.GET("/health", h.Health)
	e.GET("/", h.Home)

	a := e.Group("/auth")
	a.GET("/register", auth.RegisterPage)
	a.POST("/register", auth.Register)
	a.GET("/login", auth.LoginPage)
	a.POST("/login", auth.Login)
	a.GET("/verify", auth.Verify)
	a.POST("/logout", auth.Logout)

	g := e.Group("/admin")
	g.GET("", adm.Index)
	g.POST("/block", adm.Block)
	g.POST("/unblock", adm.Unblock)
	g.POST("/delete", adm.Delete)
	g.POST("/delete-unverified", adm.DeleteUnverified)
}
