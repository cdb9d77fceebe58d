package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"jan-server/services/vision-api/internal/interfaces/httpserver/handlers"
)

// RegisterLiveRoutes registers the websocket push channels.
func RegisterLiveRoutes(router gin.IRoutes, handler *handlers.LiveHandler) {
	router.GET("/ws/sessions/:id", sessionSocket(handler))
	router.GET("/ws/captures", capturesSocket(handler))
}

// sessionSocket godoc
// @Summary      Session status websocket
// @Description  Pushes {session_id, frame_number, status} for every processed frame. Browsers may pass the token as access_token.
// @Tags         Live
// @Param        id path string true "Session ID"
// @Success      101
// @Router       /v1/ws/sessions/{id} [get]
func sessionSocket(handler *handlers.LiveHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := handler.Session(c.Request.Context(), c.Writer, c.Request, id); err != nil {
			log.Debug().Err(err).Str("session_id", id).Msg("session websocket closed with error")
		}
	}
}

// capturesSocket godoc
// @Summary      Capture notifications websocket
// @Description  Pushes {"message": {...}} for every crossing event.
// @Tags         Live
// @Success      101
// @Router       /v1/ws/captures [get]
func capturesSocket(handler *handlers.LiveHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := handler.Captures(c.Writer, c.Request); err != nil {
			log.Debug().Err(err).Msg("captures websocket closed with error")
		}
	}
}
