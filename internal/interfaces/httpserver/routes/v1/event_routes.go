package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jan-server/services/vision-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/vision-api/internal/interfaces/httpserver/requests"
	"jan-server/services/vision-api/internal/interfaces/httpserver/responses"
	"jan-server/services/vision-api/internal/utils/platformerrors"
)

// RegisterEventRoutes registers crossing event queries and frame downloads.
func RegisterEventRoutes(router gin.IRoutes, events *handlers.EventHandler, frames *handlers.FrameHandler) {
	router.GET("/events", listEvents(events))
	router.GET("/events/recent", recentEvents(events))
	router.GET("/frames/*frame_id", getFrame(frames))
}

// listEvents godoc
// @Summary      List crossing events
// @Tags         Events
// @Produce      json
// @Param        device_id query string false "Device ID"
// @Param        limit query int false "Max events (default 50, max 500)"
// @Success      200 {object} responses.EventListResponse
// @Failure      400 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/events [get]
func listEvents(handler *handlers.EventHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q requests.EventQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			platformerrors.WriteValidationError(c, "invalid query: "+err.Error())
			return
		}
		records, err := handler.List(c.Request.Context(), q.DeviceID, q.Limit)
		if err != nil {
			responses.HandleError(c, err, "failed to list events")
			return
		}
		c.JSON(http.StatusOK, responses.NewEventListResponse(records))
	}
}

// recentEvents godoc
// @Summary      Recent captures
// @Description  Most recent captures from the cache; empty when the cache is disabled
// @Tags         Events
// @Produce      json
// @Param        limit query int false "Max events"
// @Success      200 {object} responses.EventListResponse
// @Security     BearerAuth
// @Router       /v1/events/recent [get]
func recentEvents(handler *handlers.EventHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q requests.RecentQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			platformerrors.WriteValidationError(c, "invalid query: "+err.Error())
			return
		}
		records, err := handler.Recent(c.Request.Context(), q.Limit)
		if err != nil {
			responses.HandleError(c, err, "failed to read recent captures")
			return
		}
		c.JSON(http.StatusOK, responses.NewEventListResponse(records))
	}
}

// getFrame godoc
// @Summary      Download a stored frame
// @Tags         Events
// @Produce      image/jpeg
// @Param        frame_id path string true "Frame ID (<date>/<uuid>)"
// @Success      200
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/frames/{frame_id} [get]
func getFrame(handler *handlers.FrameHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		frameID := strings.TrimPrefix(c.Param("frame_id"), "/")
		data, mime, err := handler.Load(c.Request.Context(), frameID)
		if err != nil {
			responses.HandleError(c, err, "frame not found")
			return
		}
		c.Data(http.StatusOK, mime, data)
	}
}
