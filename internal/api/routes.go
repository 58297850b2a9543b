package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/satriahrh/suara/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, wsPath string, handler *websocket.Handler, registry *websocket.Registry) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")
	v1.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, StatusResponse{
			Status:            "ok",
			ActiveConnections: registry.Count(),
		})
	})

	// Voice chat websocket
	e.GET(wsPath, handler.ServeWS)
}
