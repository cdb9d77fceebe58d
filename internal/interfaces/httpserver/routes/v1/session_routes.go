package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"jan-server/services/vision-api/internal/infrastructure/devices"
	"jan-server/services/vision-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/vision-api/internal/interfaces/httpserver/responses"
	"jan-server/services/vision-api/internal/utils/platformerrors"
)

// RegisterSessionRoutes registers the session registry routes.
func RegisterSessionRoutes(router gin.IRoutes, handler *handlers.SessionHandler) {
	router.GET("/sessions", listSessions(handler))
	router.POST("/sessions/initialize", initializeSessions(handler))
	router.GET("/sessions/:id", getSession(handler))
	router.POST("/sessions/:id/start", sessionAction(handler.Start, "Started", "failed to start session"))
	router.POST("/sessions/:id/stop", sessionAction(handler.Stop, "Stopped", "failed to stop session"))
	router.POST("/sessions/:id/restart", sessionAction(handler.Restart, "Restarted", "failed to restart session"))
	router.DELETE("/sessions/:id", deleteSession(handler))
}

// listSessions godoc
// @Summary      List sessions
// @Description  Lists every configured device merged with the live state of its session
// @Tags         Sessions
// @Produce      json
// @Success      200 {array} object
// @Failure      500 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/sessions [get]
func listSessions(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := handler.List(c.Request.Context())
		if err != nil {
			responses.HandleError(c, err, "failed to list sessions")
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

// initializeSessions godoc
// @Summary      Initialize sessions
// @Description  Registers a stopped session for every device not yet known. Accepts {"devices": [...]} or a bare array.
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Param        request body requests.InitializeSessionsRequest true "Devices"
// @Success      200 {object} responses.InitializeResponse
// @Failure      400 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/sessions/initialize [post]
func initializeSessions(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil || len(body) == 0 {
			platformerrors.WriteValidationError(c, "request body with devices is required")
			return
		}
		cfg, err := devices.Decode(body)
		if err != nil {
			platformerrors.WriteValidationError(c, err.Error())
			return
		}

		created, total, err := handler.Initialize(c.Request.Context(), cfg.Devices)
		if err != nil {
			responses.HandleError(c, err, "failed to initialize sessions")
			return
		}
		c.JSON(http.StatusOK, responses.InitializeResponse{Created: created, Sessions: total})
	}
}

// getSession godoc
// @Summary      Get a session
// @Tags         Sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} session.Summary
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/sessions/{id} [get]
func getSession(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := handler.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			responses.HandleError(c, err, "session not found")
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// sessionAction godoc
// @Summary      Start, stop or restart a session
// @Description  start: 409 when running, 502 when the source cannot be opened. stop: 409 when stopped.
// @Tags         Sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} responses.SessionActionResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Failure      502 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/sessions/{id}/start [post]
// @Router       /v1/sessions/{id}/stop [post]
// @Router       /v1/sessions/{id}/restart [post]
func sessionAction(op func(ctx context.Context, id string) error, status, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := op(c.Request.Context(), id); err != nil {
			responses.HandleError(c, err, message)
			return
		}
		c.JSON(http.StatusOK, responses.SessionActionResponse{SessionID: id, Status: status})
	}
}

// deleteSession godoc
// @Summary      Delete a session
// @Description  Stops the pipeline if needed and removes the session from the registry
// @Tags         Sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} responses.DeleteSessionResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/sessions/{id} [delete]
func deleteSession(handler *handlers.SessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := handler.Delete(c.Request.Context(), id); err != nil {
			responses.HandleError(c, err, "failed to delete session")
			return
		}
		c.JSON(http.StatusOK, responses.DeleteSessionResponse{SessionID: id, Deleted: true})
	}
}
